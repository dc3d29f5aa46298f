package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/relay-gateway/internal/audit"
)

// HistoryReader lists recorded command and state history.
type HistoryReader interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// handleHistory serves GET /history?action=&kind=&limit=&offset=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action: q.Get("action"),
		Kind:   q.Get("kind"),
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, p.name+" must be a non-negative integer")
			return
		}
		*p.dst = n
	}

	res, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing history", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
