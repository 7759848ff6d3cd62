// CLAUDE:SUMMARY SQLite record store for editor submissions: filtered CRUD over the posts and notices collections.
// Package recordstore persists submitted editor content. Each record belongs
// to a named collection; taxonomy fields (board_type, is_pinned, counters)
// travel in a JSON document so collections share one table.
package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/yeoju/dbopen"
	"github.com/hazyhaar/yeoju/horosafe"
	"github.com/hazyhaar/yeoju/idgen"
)

// Collections.
const (
	Posts   = "posts"
	Notices = "notices"
)

var collections = map[string]bool{Posts: true, Notices: true}

// ErrInvalidInput is returned when a record or query fails validation.
var ErrInvalidInput = errors.New("recordstore: invalid input")

// ErrNotFound is returned by Update and Delete for a missing record.
var ErrNotFound = errors.New("recordstore: record not found")

// Record is one persisted post or notice.
type Record struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Excerpt    string         `json:"excerpt,omitempty"`
	Images     []string       `json:"images"`
	Fields     map[string]any `json:"fields,omitempty"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
}

// Filter selects records whose taxonomy Field equals Value. An empty Field
// lists the whole collection. Limit <= 0 means 50.
type Filter struct {
	Field string
	Value any
	Limit int
}

// Store wraps the records database.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the generator for record IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// WithClock sets the clock used for timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// New wraps an opened database. The schema must already be applied, see
// Schema and dbopen.WithSchema.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		newID: idgen.Prefixed(idgen.RecordPrefix, idgen.Default),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func checkCollection(c string) error {
	if err := horosafe.ValidateIdentifier(c); err != nil || !collections[c] {
		return fmt.Errorf("%w: unknown collection %q", ErrInvalidInput, c)
	}
	return nil
}

func checkField(f string) error {
	if err := horosafe.ValidateIdentifier(f); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrInvalidInput, f, err)
	}
	return nil
}

func encode(r *Record) (images, fields string, err error) {
	imgs := r.Images
	if imgs == nil {
		imgs = []string{}
	}
	b, err := json.Marshal(imgs)
	if err != nil {
		return "", "", fmt.Errorf("encode images: %w", err)
	}
	f := r.Fields
	if f == nil {
		f = map[string]any{}
	}
	fb, err := json.Marshal(f)
	if err != nil {
		return "", "", fmt.Errorf("encode fields: %w", err)
	}
	return string(b), string(fb), nil
}

// Insert stores rec in collection and returns its new ID. rec.ID,
// rec.Collection and the timestamps are filled in.
func (s *Store) Insert(ctx context.Context, collection string, rec *Record) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	if strings.TrimSpace(rec.Title) == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	images, fields, err := encode(rec)
	if err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	now := s.now().UnixMilli()
	rec.Collection = collection
	rec.CreatedAt, rec.UpdatedAt = now, now

	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO records (id, collection, title, content, excerpt, images_json, fields_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, collection, rec.Title, rec.Content, rec.Excerpt, images, fields, now, now)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("recordstore: insert: %w", err)
	}
	return rec.ID, nil
}

// Update replaces the content of an existing record. Fields are merged over
// the stored ones so counters the editor never sees survive.
func (s *Store) Update(ctx context.Context, collection, id string, rec *Record) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if strings.TrimSpace(rec.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	now := s.now().UnixMilli()
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var stored string
		var created int64
		err := tx.QueryRowContext(ctx,
			`SELECT fields_json, created_at FROM records WHERE id = ? AND collection = ?`, id, collection).
			Scan(&stored, &created)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		if err != nil {
			return fmt.Errorf("recordstore: load: %w", err)
		}
		merged := map[string]any{}
		if err := json.Unmarshal([]byte(stored), &merged); err != nil {
			return fmt.Errorf("recordstore: decode fields: %w", err)
		}
		for k, v := range rec.Fields {
			merged[k] = v
		}
		rec.Fields = merged
		images, fields, err := encode(rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET title=?, content=?, excerpt=?, images_json=?, fields_json=?, updated_at=?
			WHERE id=?`,
			rec.Title, rec.Content, rec.Excerpt, images, fields, now, id); err != nil {
			return fmt.Errorf("recordstore: update: %w", err)
		}
		rec.ID, rec.Collection, rec.CreatedAt, rec.UpdatedAt = id, collection, created, now
		return nil
	})
}

const selectColumns = `SELECT id, collection, title, content, excerpt, images_json, fields_json, created_at, updated_at FROM records`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var images, fields string
	if err := row.Scan(&r.ID, &r.Collection, &r.Title, &r.Content, &r.Excerpt, &images, &fields, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &r.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return &r, nil
}

// Get returns the record, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, collection, id string) (*Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ? AND collection = ?`, id, collection)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recordstore: get: %w", err)
	}
	return r, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ? AND collection = ?`, id, collection)
	if err != nil {
		return fmt.Errorf("recordstore: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

// List returns records of collection matching f, newest first. Notices sort
// pinned entries first.
func (s *Store) List(ctx context.Context, collection string, f Filter) ([]*Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := selectColumns + ` WHERE collection = ?`
	args := []any{collection}
	if f.Field != "" {
		if err := checkField(f.Field); err != nil {
			return nil, err
		}
		q += ` AND json_extract(fields_json, '$.' || ?) = ?`
		v := f.Value
		if b, ok := v.(bool); ok {
			// json_extract yields 1/0 for JSON booleans.
			v = 0
			if b {
				v = 1
			}
		}
		args = append(args, f.Field, v)
	}
	if collection == Notices {
		q += ` ORDER BY COALESCE(json_extract(fields_json, '$.is_pinned'), 0) DESC, created_at DESC, id DESC`
	} else {
		q += ` ORDER BY created_at DESC, id DESC`
	}
	q += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recordstore: list: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("recordstore: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
