package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// frontendLogEntry uses numeric levels: 10 debug, 20 info, 30 warning,
// 40 error, 50 critical.
type frontendLogEntry struct {
	Name        string         `json:"name"`
	Level       int            `json:"level"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Environment string         `json:"environment"`
}

func frontendLevel(level int) slog.Level {
	switch {
	case level < 20:
		return slog.LevelDebug
	case level < 30:
		return slog.LevelInfo
	case level < 40:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (s *Server) handleFrontendLog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var entry frontendLogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		jsonError(w, "invalid log entry: "+err.Error(), http.StatusBadRequest)
		return
	}
	if entry.Message == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	attrs := []any{"source", "frontend", "name", entry.Name, "environment", entry.Environment}
	if len(entry.Details) > 0 {
		attrs = append(attrs, "details", entry.Details)
	}
	s.log.Log(r.Context(), frontendLevel(entry.Level), entry.Message, attrs...)

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Log entry saved"})
}
