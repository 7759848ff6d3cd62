// CLAUDE:SUMMARY Buffered business-event log for editor actions (uploads, links, submits) persisted to SQLite without blocking callers.
// Package observability records editor business events: asset insertions,
// upload failures, link insertions and submits. Writes are buffered and
// batched; a failing event store never blocks or fails an editor action.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/yeoju/idgen"
)

// Event types emitted by the editor.
const (
	EventImageInserted = "image_inserted"
	EventImageSkipped  = "image_skipped"
	EventUploadFailed  = "upload_failed"
	EventLinkInserted  = "link_inserted"
	EventInsertStale   = "insert_stale"
	EventSubmitted     = "submitted"
	EventSubmitFailed  = "submit_failed"
)

// Event is one business event.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	DraftID    string         `json:"draft_id,omitempty"`
	Collection string         `json:"collection,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Success    bool           `json:"success"`
	CreatedAt  time.Time      `json:"created_at"`
}

// EventLogger persists events asynchronously.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	now    func() time.Time
	logger *slog.Logger
	ch     chan *Event
	flushC chan chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithLogger sets the logger used to report store failures.
func WithLogger(logger *slog.Logger) EventLoggerOption {
	return func(l *EventLogger) { l.logger = logger }
}

// WithClock sets the event timestamp source.
func WithClock(fn func() time.Time) EventLoggerOption {
	return func(l *EventLogger) { l.now = fn }
}

// NewEventLogger starts a logger backed by db. bufferSize <= 0 means 256.
func NewEventLogger(db *sql.DB, bufferSize int, opts ...EventLoggerOption) *EventLogger {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	l := &EventLogger{
		db:     db,
		newID:  idgen.Prefixed(idgen.EventPrefix, idgen.Default),
		now:    time.Now,
		logger: slog.Default(),
		ch:     make(chan *Event, bufferSize),
		flushC: make(chan chan struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// LogEvent queues e. It never blocks: when the buffer is full the event is
// dropped with a warning.
func (l *EventLogger) LogEvent(_ context.Context, e Event) {
	if e.ID == "" {
		e.ID = l.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}
	select {
	case l.ch <- &e:
	default:
		l.logger.Warn("observability: event buffer full, dropping", "event_type", e.Type, "draft_id", e.DraftID)
	}
}

// Flush waits until every queued event has been written.
func (l *EventLogger) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case l.flushC <- ack:
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the buffer and stops the flush goroutine.
func (l *EventLogger) Close() error {
	close(l.stop)
	<-l.done
	return nil
}

func (l *EventLogger) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	batch := make([]*Event, 0, 64)

	drain := func() {
		for {
			select {
			case e := <-l.ch:
				batch = append(batch, e)
			default:
				return
			}
		}
	}
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.insert(batch); err != nil {
			l.logger.Error("observability: event flush failed", "error", err, "events", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-l.stop:
			drain()
			flush()
			return
		case ack := <-l.flushC:
			drain()
			flush()
			close(ack)
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= 64 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (l *EventLogger) insert(batch []*Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO editor_events
		(event_id, event_type, draft_id, collection, entity_id, details, success, created_at)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		details := "{}"
		if len(e.Details) > 0 {
			if b, err := json.Marshal(e.Details); err == nil {
				details = string(b)
			}
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Type, e.DraftID, e.Collection, e.EntityID,
			details, e.Success, e.CreatedAt.UnixMilli()); err != nil {
			l.logger.Error("observability: insert event", "error", err, "event_id", e.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns the latest events from the logger's database. Queued events
// not yet flushed are not included.
func (l *EventLogger) Recent(ctx context.Context, eventType string, limit int) ([]*Event, error) {
	return Recent(ctx, l.db, eventType, limit)
}

// Recent returns the latest events, newest first. An empty eventType matches
// every type.
func Recent(ctx context.Context, db *sql.DB, eventType string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `SELECT event_id, event_type, draft_id, collection, entity_id, details, success, created_at
		FROM editor_events WHERE (? = '' OR event_type = ?)
		ORDER BY created_at DESC, event_id DESC LIMIT ?`, eventType, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("observability: query events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var details string
		var created int64
		if err := rows.Scan(&e.ID, &e.Type, &e.DraftID, &e.Collection, &e.EntityID, &details, &e.Success, &created); err != nil {
			return nil, fmt.Errorf("observability: scan event: %w", err)
		}
		if details != "" && details != "{}" {
			_ = json.Unmarshal([]byte(details), &e.Details)
		}
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than retentionDays. Zero disables cleanup.
func Cleanup(ctx context.Context, db *sql.DB, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour).UnixMilli()
	res, err := db.ExecContext(ctx, `DELETE FROM editor_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup editor_events: %w", err)
	}
	return res.RowsAffected()
}
