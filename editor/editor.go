// CLAUDE:SUMMARY Editor instance: document ownership, live selection and one-shot selection snapshot, liveness generation and busy guard.
// Package editor is the rich-text post and notice editor. It owns one
// richtext.Document, tracks where the user's cursor was before an action that
// suspends (file upload, link metadata fetch), and splices the resulting embed
// exactly there once the action completes.
//
// Every suspend point captures a generation token. Load and Close bump it, so
// a result arriving after the editor was reloaded or navigated away from is
// discarded (ErrStale) instead of mutating a document it no longer belongs to.
// At most one suspended operation runs at a time (ErrBusy).
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/yeoju/blobstore"
	"github.com/hazyhaar/yeoju/idgen"
	"github.com/hazyhaar/yeoju/linkpreview"
	"github.com/hazyhaar/yeoju/observability"
	"github.com/hazyhaar/yeoju/recordstore"
	"github.com/hazyhaar/yeoju/richtext"
)

// BlobStore uploads file bytes and returns the stored object.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*blobstore.Object, error)
}

// BlobDeleter is implemented by blob stores that can remove an object. The
// editor uses it to clean up uploads whose result was discarded.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// MetadataResolver fetches link metadata. Errors mean "no metadata".
type MetadataResolver interface {
	Resolve(ctx context.Context, url string) (*linkpreview.Metadata, error)
}

// RecordStore persists submitted content.
type RecordStore interface {
	Insert(ctx context.Context, collection string, rec *recordstore.Record) (string, error)
	Update(ctx context.Context, collection, id string, rec *recordstore.Record) error
	Get(ctx context.Context, collection, id string) (*recordstore.Record, error)
}

// EventSink receives business events.
type EventSink interface {
	LogEvent(ctx context.Context, e observability.Event)
}

// Config configures an Editor.
type Config struct {
	ID         string // Default: a new drf_ id.
	Collection string // recordstore.Posts or recordstore.Notices.

	Blobs    BlobStore
	Resolver MetadataResolver // nil: every link is a plain hyperlink.
	Records  RecordStore
	Events   EventSink

	MaxFileBytes int64  // Default: blobstore.MaxFileBytes.
	Folder       string // Default: the collection's folder.

	Logger *slog.Logger
	Now    func() time.Time
	Nonce  idgen.Generator // Blob key disambiguator. Default: idgen.Short(8).
}

func (c *Config) defaults() {
	if c.ID == "" {
		c.ID = idgen.Prefixed(idgen.DraftPrefix, idgen.Default)()
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = blobstore.MaxFileBytes
	}
	if c.Folder == "" {
		c.Folder = blobstore.FolderPosts
		if c.Collection == recordstore.Notices {
			c.Folder = blobstore.FolderNotices
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Nonce == nil {
		c.Nonce = idgen.Short(8)
	}
}

// Editor is one editing session. It is safe for concurrent use; suspended
// operations release the lock while they wait on a collaborator.
type Editor struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	doc        *richtext.Document
	focused    bool
	snapshot   *richtext.Selection
	generation uint64
	busy       bool
	closed     bool
	recordID   string
}

// New creates an editor over an empty document (write flow).
func New(cfg Config) (*Editor, error) {
	if cfg.Collection != recordstore.Posts && cfg.Collection != recordstore.Notices {
		return nil, fmt.Errorf("%w: unknown collection %q", ErrInvalidField, cfg.Collection)
	}
	cfg.defaults()
	if !blobstore.ValidFolder(cfg.Folder) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFolder, cfg.Folder)
	}
	return &Editor{
		cfg:    cfg,
		logger: cfg.Logger.With("draft_id", cfg.ID, "collection", cfg.Collection),
		doc:    richtext.New(),
	}, nil
}

// ID returns the draft id.
func (e *Editor) ID() string { return e.cfg.ID }

// Collection returns the target collection.
func (e *Editor) Collection() string { return e.cfg.Collection }

// RecordID returns the id of the record being edited, or "" in the write flow
// before the first submit.
func (e *Editor) RecordID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordID
}

// SetSelection records a pointer-up or key-up inside the editable region: the
// live selection moves and is captured as the snapshot.
func (e *Editor) SetSelection(sel richtext.Selection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if err := e.doc.SetSelection(sel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	e.focused = true
	e.captureLocked()
	return nil
}

// Blur records that focus left the editable region, e.g. a toolbar click.
func (e *Editor) Blur() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focused = false
}

// CaptureSelection snapshots the live selection when it lies inside the
// document. Otherwise any existing snapshot is left untouched. It reports
// whether a snapshot was taken.
func (e *Editor) CaptureSelection() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captureLocked()
}

func (e *Editor) captureLocked() bool {
	if e.closed || !e.focused {
		return false
	}
	sel := e.doc.Selection()
	if !e.doc.Valid(sel.Start) || !e.doc.Valid(sel.End) {
		return false
	}
	e.snapshot = &sel
	return true
}

// ConsumeSelection returns the snapshot and clears it.
func (e *Editor) ConsumeSelection() (richtext.Selection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consumeLocked()
}

func (e *Editor) consumeLocked() (richtext.Selection, bool) {
	s := e.snapshot
	e.snapshot = nil
	if s == nil || !e.doc.Valid(s.Start) || !e.doc.Valid(s.End) {
		return richtext.Selection{}, false
	}
	return *s, true
}

// revalidateLocked drops a snapshot the last mutation made unreachable.
func (e *Editor) revalidateLocked() {
	if e.snapshot != nil && (!e.doc.Valid(e.snapshot.Start) || !e.doc.Valid(e.snapshot.End)) {
		e.snapshot = nil
	}
}

// Load replaces the document with persisted markup (edit flow). The markup is
// sanitized first. Any snapshot is dropped and in-flight operations become
// stale.
func (e *Editor) Load(markup string) error {
	doc, err := richtext.Parse(richtext.Sanitize(markup))
	if err != nil {
		return fmt.Errorf("editor: load: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.doc = doc
	e.resetLocked()
	return nil
}

// Edit loads an existing record into the editor; later submits update it.
func (e *Editor) Edit(ctx context.Context, recordID string) error {
	if e.cfg.Records == nil {
		return &PersistenceError{Collection: e.cfg.Collection, Op: "get", Err: fmt.Errorf("no record store")}
	}
	rec, err := e.cfg.Records.Get(ctx, e.cfg.Collection, recordID)
	if err != nil {
		return &PersistenceError{Collection: e.cfg.Collection, Op: "get", Err: err}
	}
	if rec == nil {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, e.cfg.Collection, recordID)
	}
	if err := e.Load(rec.Content); err != nil {
		return err
	}
	e.mu.Lock()
	e.recordID = rec.ID
	e.mu.Unlock()
	return nil
}

// Close discards the editor (navigation away). Results of in-flight
// operations are ignored when they arrive.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.resetLocked()
}

func (e *Editor) resetLocked() {
	e.snapshot = nil
	e.focused = false
	e.busy = false
	e.generation++
}

// Closed reports whether Close was called.
func (e *Editor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Busy reports whether a suspended operation is in flight.
func (e *Editor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// beginLocked claims the single suspend slot and returns the generation the
// operation belongs to.
func (e *Editor) beginLocked() (uint64, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if e.busy {
		return 0, ErrBusy
	}
	e.busy = true
	return e.generation, nil
}

// resumeLocked reports whether gen is still current and, if so, releases the
// suspend slot. A stale operation leaves the slot to the new generation.
func (e *Editor) resumeLocked(gen uint64) bool {
	if e.closed || e.generation != gen {
		return false
	}
	e.busy = false
	return true
}

// ApplyFormatting runs a toolbar command on the live selection. With focus
// outside the document it does nothing. insertText also recaptures the
// selection, like the key-up that follows typing.
func (e *Editor) ApplyFormatting(cmd richtext.Command, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if _, err := richtext.ParseCommand(string(cmd)); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !e.focused {
		return nil
	}
	if err := e.doc.ApplyFormatting(cmd, value); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if cmd == richtext.CmdInsertText {
		// Typing and pasting end with a key-up inside the document.
		e.captureLocked()
		return nil
	}
	e.revalidateLocked()
	return nil
}

// Serialize returns the document markup.
func (e *Editor) Serialize() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Serialize()
}

// ExtractAssetURLs returns every image URL in the document in order.
func (e *Editor) ExtractAssetURLs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.ImageURLs()
}

// IsEmpty reports whether the document has no text and no embeds.
func (e *Editor) IsEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.IsEmpty()
}

// ValidateNonEmpty returns ErrEmptyContent for an empty document.
func (e *Editor) ValidateNonEmpty() error {
	if e.IsEmpty() {
		return ErrEmptyContent
	}
	return nil
}

// State is a read-only view of the editor.
type State struct {
	DraftID    string                    `json:"draft_id"`
	Collection string                    `json:"collection"`
	RecordID   string                    `json:"record_id,omitempty"`
	Content    string                    `json:"content"`
	Assets     []richtext.AssetReference `json:"assets"`
	AssetURLs  []string                  `json:"asset_urls"`
	Empty      bool                      `json:"empty"`
	Selection  richtext.Selection        `json:"selection"`
	Focused    bool                      `json:"focused"`
	Snapshot   *richtext.Selection       `json:"snapshot,omitempty"`
	Busy       bool                      `json:"busy"`
}

// History returns the document's mutation log since the last Load, oldest
// first.
func (e *Editor) History() []richtext.Operation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Ops()
}

// State returns the current view.
func (e *Editor) State() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	content, err := e.doc.Serialize()
	if err != nil {
		return State{}, err
	}
	st := State{
		DraftID:    e.cfg.ID,
		Collection: e.cfg.Collection,
		RecordID:   e.recordID,
		Content:    content,
		Assets:     e.doc.Assets(),
		AssetURLs:  e.doc.ImageURLs(),
		Empty:      e.doc.IsEmpty(),
		Selection:  e.doc.Selection(),
		Focused:    e.focused,
		Busy:       e.busy,
	}
	if st.Assets == nil {
		st.Assets = []richtext.AssetReference{}
	}
	if e.snapshot != nil {
		s := e.snapshot.Clone()
		st.Snapshot = &s
	}
	return st, nil
}

func (e *Editor) emit(ctx context.Context, typ string, success bool, details map[string]any) {
	if e.cfg.Events == nil {
		return
	}
	e.cfg.Events.LogEvent(ctx, observability.Event{
		Type:       typ,
		DraftID:    e.cfg.ID,
		Collection: e.cfg.Collection,
		Details:    details,
		Success:    success,
	})
}
