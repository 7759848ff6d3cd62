package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/yeoju/observability"
	"github.com/hazyhaar/yeoju/recordstore"
)

// RecordBrowser lists and removes submitted records.
type RecordBrowser interface {
	List(ctx context.Context, collection string, f recordstore.Filter) ([]*recordstore.Record, error)
	Delete(ctx context.Context, collection, id string) error
}

// EventFeed reads back logged editor events.
type EventFeed interface {
	Recent(ctx context.Context, eventType string, limit int) ([]*observability.Event, error)
}

// filterValue types a query value the way taxonomy fields are stored.
func filterValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 500 {
		return 0, badRequest(errLimit)
	}
	return n, nil
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := recordstore.Filter{Field: q.Get("field"), Limit: limit}
	if f.Field != "" {
		f.Value = filterValue(q.Get("value"))
	}
	recs, err := s.opts.Records.List(r.Context(), chi.URLParam(r, "collection"), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*recordstore.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	err := s.opts.Records.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.opts.Events.Recent(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*observability.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if ed, ok := s.draft(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]any{"draft_id": ed.ID(), "ops": ed.History()})
	}
}
