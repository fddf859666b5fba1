package api

import (
	"net/http"

	"github.com/YelovSK/Damebooru-sub002/internal/httputil"
)

const maxLogRows = 1000

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 100)
	if limit < 1 {
		limit = 100
	}
	if limit > maxLogRows {
		limit = maxLogRows
	}
	entries, err := s.logs.ListRecent(limit, r.URL.Query().Get("level"))
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}
