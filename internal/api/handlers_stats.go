package api

import (
	"net/http"
)

func (s *Server) handleCatalogStats(w http.ResponseWriter, r *http.Request) {
	if s.catalogStats == nil {
		jsonError(w, "catalog stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.catalogStats.Snapshot(),
	})
}
