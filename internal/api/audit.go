package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/tankbot-core/internal/audit"
)

// handleListAudit returns paginated command audit entries with optional filters.
//
// Query parameters:
//   - command: filter by command name (GoForward, Dance, ...)
//   - result: filter by result (published, dropped)
//   - source: filter by invoking surface (api, dispatch)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Command: q.Get("command"),
		Result:  q.Get("result"),
		Source:  q.Get("source"),
	}

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListSessionEvents returns recent session state transitions.
func (s *Server) handleListSessionEvents(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit trail not configured")
		return
	}

	limit, ok := intParam(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	events, err := s.audit.ListStates(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list session events", "error", err)
		writeInternalError(w, "failed to list session events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// intParam parses an optional integer query parameter. On a malformed value
// it writes a 400 and returns false.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, name+" must be an integer")
		return 0, false
	}
	return n, true
}
