// CLAUDE:SUMMARY Submission: title/taxonomy/content validation, sanitized serialization, asset list and Record Store write.
package editor

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hazyhaar/yeoju/observability"
	"github.com/hazyhaar/yeoju/recordstore"
	"github.com/hazyhaar/yeoju/richtext"
)

// Taxonomy field names.
const (
	FieldBoardType = "board_type"
	FieldIsPinned  = "is_pinned"
	FieldViewCount = "view_count"
	FieldLikeCount = "like_count"
)

// PostCategories are the allowed board_type values for posts.
var PostCategories = []string{"자유게시판", "정보공유", "중고거래", "질문답변", "맛집후기"}

// SubmitRequest carries the form fields submitted next to the editor content.
type SubmitRequest struct {
	Title     string         `json:"title"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Submit validates the draft and writes it to the Record Store: an insert in
// the write flow, an update after Edit or a previous Submit. On failure the
// document is left as it was so the user can retry.
func (e *Editor) Submit(ctx context.Context, req SubmitRequest) (*recordstore.Record, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if e.busy {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	rec, err := e.recordLocked(req)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	gen, _ := e.beginLocked()
	id := e.recordID
	e.mu.Unlock()

	op := "insert"
	if e.cfg.Records == nil {
		err = fmt.Errorf("no record store")
	} else if id == "" {
		if e.cfg.Collection == recordstore.Posts {
			rec.Fields[FieldViewCount] = 0
			rec.Fields[FieldLikeCount] = 0
		}
		id, err = e.cfg.Records.Insert(ctx, e.cfg.Collection, rec)
	} else {
		op = "update"
		err = e.cfg.Records.Update(ctx, e.cfg.Collection, id, rec)
	}

	e.mu.Lock()
	current := e.resumeLocked(gen)
	if err == nil && current {
		e.recordID = id
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("editor: submit failed", "op", op, "error", err)
		e.emit(ctx, observability.EventSubmitFailed, false, map[string]any{"op": op, "error": err.Error()})
		return nil, &PersistenceError{Collection: e.cfg.Collection, Op: op, Err: err}
	}
	rec.ID = id
	rec.Collection = e.cfg.Collection
	e.emitRecord(ctx, id, op)
	return rec, nil
}

func (e *Editor) emitRecord(ctx context.Context, id, op string) {
	if e.cfg.Events == nil {
		return
	}
	e.cfg.Events.LogEvent(ctx, observability.Event{
		Type:       observability.EventSubmitted,
		DraftID:    e.cfg.ID,
		Collection: e.cfg.Collection,
		EntityID:   id,
		Details:    map[string]any{"op": op},
		Success:    true,
	})
}

// recordLocked runs submit validation in user-facing order (title, category,
// content) and builds the record.
func (e *Editor) recordLocked(req SubmitRequest) (*recordstore.Record, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	fields, err := e.fields(req.Fields)
	if err != nil {
		return nil, err
	}
	if e.doc.IsEmpty() {
		return nil, ErrEmptyContent
	}
	raw, err := e.doc.Serialize()
	if err != nil {
		return nil, fmt.Errorf("editor: serialize: %w", err)
	}
	content := richtext.Sanitize(raw)

	images := make([]string, 0, 4)
	if t := strings.TrimSpace(req.Thumbnail); t != "" {
		images = append(images, t)
	}
	images = append(images, richtext.ExtractAssetURLs(content)...)

	return &recordstore.Record{
		Title:   title,
		Content: content,
		Excerpt: richtext.Excerpt(content, richtext.ExcerptLimit),
		Images:  images,
		Fields:  fields,
	}, nil
}

func (e *Editor) fields(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in)+2)
	maps.Copy(out, in)
	switch e.cfg.Collection {
	case recordstore.Posts:
		v, _ := out[FieldBoardType].(string)
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, ErrMissingCategory
		}
		if !slices.Contains(PostCategories, v) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, v)
		}
		out[FieldBoardType] = v
	case recordstore.Notices:
		v, ok := out[FieldIsPinned]
		if !ok || v == nil {
			out[FieldIsPinned] = false
		} else if _, isBool := v.(bool); !isBool {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidField, FieldIsPinned)
		}
	}
	return out, nil
}
