package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/enrollgest/internal/blobstore"
	"github.com/dgallion1/enrollgest/internal/parser"
	"github.com/dgallion1/enrollgest/internal/pipeline"
	"github.com/dgallion1/enrollgest/internal/timetable"
)

// fileMetadata pairs with the uploaded file at the same index.
type fileMetadata struct {
	SubjectCode string `json:"subject_code"`
	TermYear    string `json:"term_year"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var meta []fileMetadata
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &meta); err != nil {
		jsonError(w, "metadata must be a JSON array: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(meta) != len(files) {
		jsonError(w, fmt.Sprintf("metadata has %d entries for %d files", len(meta), len(files)), http.StatusBadRequest)
		return
	}

	for i, m := range meta {
		meta[i].SubjectCode = strings.ToUpper(strings.TrimSpace(m.SubjectCode))
		meta[i].TermYear = strings.TrimSpace(m.TermYear)
		if meta[i].SubjectCode == "" {
			jsonError(w, fmt.Sprintf("metadata[%d]: subject_code is required", i), http.StatusBadRequest)
			return
		}
		if meta[i].TermYear == "" {
			meta[i].TermYear = timetable.DefaultTerm(s.now())
		}
		if err := timetable.ValidateTerm(meta[i].TermYear); err != nil {
			jsonError(w, fmt.Sprintf("metadata[%d]: %s", i, err), http.StatusBadRequest)
			return
		}
	}

	task := pipeline.NewTask(nil)
	log := s.log.With("task_id", task.ID)
	ctx := r.Context()

	var stored []string
	cleanup := func() {
		for _, key := range stored {
			if err := s.store.Delete(ctx, key); err != nil {
				log.Warn("upload cleanup failed", "key", key, "error", err)
			}
		}
	}

	for i, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			cleanup()
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
			return
		}

		f, err := fh.Open()
		if err != nil {
			cleanup()
			jsonError(w, "failed to open file", http.StatusInternalServerError)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil {
			cleanup()
			jsonError(w, "failed to read file", http.StatusInternalServerError)
			return
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			cleanup()
			jsonError(w, fmt.Sprintf("%s exceeds max size (%d bytes)", filename, s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}

		key := blobstore.UploadKey(task.ID, fmt.Sprintf("%d-%s", i, filename))
		if _, err := s.store.Put(ctx, key, bytes.NewReader(data), "application/pdf"); err != nil {
			cleanup()
			log.Error("store upload failed", "file", filename, "error", err)
			jsonError(w, "failed to store file", http.StatusInternalServerError)
			return
		}
		stored = append(stored, key)

		task.AddFile(pipeline.FileInput{
			Filename:  filename,
			Subject:   meta[i].SubjectCode,
			Term:      meta[i].TermYear,
			UploadKey: key,
		})
		log.Info("saved upload", "file", filename, "subject", meta[i].SubjectCode, "term", meta[i].TermYear)
	}

	if err := s.orchestrator.Submit(task); err != nil {
		cleanup()
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id":  task.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/status/%s", task.ID),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
