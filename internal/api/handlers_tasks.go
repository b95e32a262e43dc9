package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/enrollgest/internal/blobstore"
	"github.com/dgallion1/enrollgest/internal/pipeline"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task := s.orchestrator.GetTask(taskID)
	if task == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": pipeline.StatusNotFound, "progress": 0})
		return
	}
	writeJSON(w, http.StatusOK, task.Snapshot())
}

type fileEntry struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	ModTime     time.Time `json:"modified"`
	URL         string    `json:"url"`
}

// handleListFiles lists the generated files of a task. Results outlive the
// in-memory task, so the listing reads the store directly.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if !validTaskID(taskID) {
		jsonError(w, "invalid task id", http.StatusBadRequest)
		return
	}
	prefix := taskID + "/"
	objects, err := s.store.List(r.Context(), prefix)
	if err != nil {
		s.log.Error("list files failed", "task_id", taskID, "error", err)
		jsonError(w, "failed to list files", http.StatusInternalServerError)
		return
	}

	files := make([]fileEntry, 0, len(objects))
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, prefix)
		files = append(files, fileEntry{
			Name:        name,
			Key:         obj.Key,
			Size:        obj.Size,
			ContentType: obj.ContentType,
			ModTime:     obj.ModTime,
			URL:         fmt.Sprintf("/api/tasks/%s/files/%s", taskID, name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": taskID, "files": files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	name := chi.URLParam(r, "*")
	if !validTaskID(taskID) || name == "" {
		jsonError(w, "invalid file path", http.StatusBadRequest)
		return
	}
	key, err := blobstore.CleanKey(taskID + "/" + name)
	if err != nil || !strings.HasPrefix(key, taskID+"/") {
		jsonError(w, "invalid file path", http.StatusBadRequest)
		return
	}

	rc, info, err := s.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			jsonError(w, "file not found", http.StatusNotFound)
			return
		}
		s.log.Error("get file failed", "key", key, "error", err)
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("file download interrupted", "key", key, "error", err)
	}
}

// validTaskID rejects ids that could address another prefix, such as uploads.
func validTaskID(id string) bool {
	if id == "" || id == "uploads" || strings.ContainsAny(id, `/\.`) {
		return false
	}
	return true
}
