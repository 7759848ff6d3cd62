// CLAUDE:SUMMARY Inline asset insertion: image upload and link-card embed spliced at the captured selection, with busy and staleness guards.
package editor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/yeoju/blobstore"
	"github.com/hazyhaar/yeoju/linkpreview"
	"github.com/hazyhaar/yeoju/observability"
	"github.com/hazyhaar/yeoju/richtext"
)

// File is one upload candidate.
type File struct {
	Name        string
	ContentType string // Sniffed from Data when empty.
	Data        []byte
	Folder      string // Overrides the editor folder when set.
}

// FileStatus is the per-file result of InsertImages.
type FileStatus string

const (
	FileInserted  FileStatus = "inserted"
	FileSkipped   FileStatus = "skipped"
	FileFailed    FileStatus = "failed"
	FileDiscarded FileStatus = "discarded"
)

// FileOutcome reports what happened to one file of a batch.
type FileOutcome struct {
	Name   string     `json:"name"`
	Status FileStatus `json:"status"`
	URL    string     `json:"url,omitempty"`
	Err    error      `json:"-"`
}

// Inserted describes an embed placed in the document.
type Inserted struct {
	Asset richtext.AssetReference `json:"asset"`
	Caret richtext.Position       `json:"caret"`
}

func (e *Editor) checkFile(f File) (folder, contentType string, err error) {
	if int64(len(f.Data)) > e.cfg.MaxFileBytes {
		return "", "", fmt.Errorf("%w: %s: exceeds %d bytes", ErrFileTooLarge, f.Name, e.cfg.MaxFileBytes)
	}
	if len(f.Data) == 0 {
		return "", "", fmt.Errorf("%w: %s", ErrEmptyFile, f.Name)
	}
	contentType = f.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(f.Data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", fmt.Errorf("%w: %s is %s", ErrUnsupportedType, f.Name, contentType)
	}
	folder = e.cfg.Folder
	if f.Folder != "" {
		if !blobstore.ValidFolder(f.Folder) {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidFolder, f.Folder)
		}
		folder = f.Folder
	}
	return folder, contentType, nil
}

func (e *Editor) upload(ctx context.Context, f File, folder, contentType string) (*blobstore.Object, error) {
	key := blobstore.Key(folder, f.Name, e.cfg.Now(), e.cfg.Nonce())
	if e.cfg.Blobs == nil {
		return nil, &UploadError{Name: f.Name, Key: key, Err: blobstore.ErrUnavailable}
	}
	obj, err := e.cfg.Blobs.Put(ctx, key, contentType, f.Data)
	if err != nil {
		return nil, &UploadError{Name: f.Name, Key: key, Err: err}
	}
	if obj == nil || obj.URL == "" {
		return nil, &UploadError{Name: f.Name, Key: key, Err: fmt.Errorf("%w: empty object url", blobstore.ErrUnavailable)}
	}
	if obj.Key == "" {
		obj.Key = key
	}
	return obj, nil
}

// orphan deletes an uploaded object whose embed was discarded.
func (e *Editor) orphan(ctx context.Context, obj *blobstore.Object) {
	if obj == nil {
		return
	}
	d, ok := e.cfg.Blobs.(BlobDeleter)
	if !ok {
		e.logger.Warn("editor: orphaned upload left in blob store", "key", obj.Key)
		return
	}
	if err := d.Delete(context.WithoutCancel(ctx), obj.Key); err != nil {
		e.logger.Warn("editor: orphan cleanup failed", "key", obj.Key, "error", err)
	}
}

// spliceLocked inserts nodes at the snapshot, or at the end of the document
// when none is usable, and leaves the caret right after them.
func (e *Editor) spliceLocked(nodes ...*html.Node) (richtext.Position, error) {
	sel, ok := e.consumeLocked()
	if !ok {
		sel = richtext.Caret(e.doc.End())
	}
	after, err := e.doc.InsertNodesAt(sel, nodes...)
	if err != nil {
		return richtext.Position{}, fmt.Errorf("editor: insert: %w", err)
	}
	_ = e.doc.SetSelection(richtext.Caret(after))
	e.focused = true
	e.revalidateLocked()
	return after, nil
}

// InsertImage uploads f and embeds it at the captured selection.
//
// Oversize and non-image files are rejected before any upload and leave the
// snapshot in place. An upload failure discards the snapshot and leaves the
// document unchanged.
func (e *Editor) InsertImage(ctx context.Context, f File) (*Inserted, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if e.busy {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	folder, contentType, err := e.checkFile(f)
	if err != nil {
		e.mu.Unlock()
		e.emit(ctx, observability.EventImageSkipped, false, map[string]any{"name": f.Name, "error": err.Error()})
		return nil, err
	}
	gen, _ := e.beginLocked()
	e.mu.Unlock()

	obj, uerr := e.upload(ctx, f, folder, contentType)

	e.mu.Lock()
	if !e.resumeLocked(gen) {
		e.mu.Unlock()
		e.orphan(ctx, obj)
		e.emit(ctx, observability.EventInsertStale, false, map[string]any{"name": f.Name})
		return nil, ErrStale
	}
	if uerr != nil {
		e.snapshot = nil
		e.mu.Unlock()
		e.logger.Warn("editor: image upload failed", "name", f.Name, "error", uerr)
		e.emit(ctx, observability.EventUploadFailed, false, map[string]any{"name": f.Name, "error": uerr.Error()})
		return nil, uerr
	}
	after, err := e.spliceLocked(richtext.ImageEmbed(obj.URL), richtext.LineBreak())
	e.mu.Unlock()
	if err != nil {
		e.orphan(ctx, obj)
		return nil, err
	}
	e.emit(ctx, observability.EventImageInserted, true, map[string]any{"name": f.Name, "url": obj.URL, "key": obj.Key})
	return &Inserted{
		Asset: richtext.AssetReference{URL: obj.URL, Kind: richtext.AssetImage},
		Caret: after,
	}, nil
}

// InsertImages uploads files in order. Each success lands right after the
// previous one, so the images stay adjacent and ordered. A failed or skipped
// file does not stop the batch. The returned error is non-nil only when the
// batch could not run or was cut short by Load or Close.
func (e *Editor) InsertImages(ctx context.Context, files []File) ([]FileOutcome, error) {
	e.mu.Lock()
	gen, err := e.beginLocked()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]FileOutcome, 0, len(files))
	for i, f := range files {
		e.mu.Lock()
		folder, contentType, cerr := e.checkFile(f)
		e.mu.Unlock()
		if cerr != nil {
			out = append(out, FileOutcome{Name: f.Name, Status: FileSkipped, Err: cerr})
			e.emit(ctx, observability.EventImageSkipped, false, map[string]any{"name": f.Name, "error": cerr.Error()})
			continue
		}
		if ctx.Err() != nil {
			out = append(out, FileOutcome{Name: f.Name, Status: FileFailed, Err: ctx.Err()})
			continue
		}

		obj, uerr := e.upload(ctx, f, folder, contentType)

		e.mu.Lock()
		if e.closed || e.generation != gen {
			e.mu.Unlock()
			e.orphan(ctx, obj)
			for _, rest := range files[i:] {
				out = append(out, FileOutcome{Name: rest.Name, Status: FileDiscarded, Err: ErrStale})
			}
			e.emit(ctx, observability.EventInsertStale, false, map[string]any{"name": f.Name})
			return out, ErrStale
		}
		if uerr != nil {
			e.mu.Unlock()
			e.logger.Warn("editor: image upload failed", "name", f.Name, "error", uerr)
			out = append(out, FileOutcome{Name: f.Name, Status: FileFailed, Err: uerr})
			e.emit(ctx, observability.EventUploadFailed, false, map[string]any{"name": f.Name, "error": uerr.Error()})
			continue
		}
		after, serr := e.spliceLocked(richtext.ImageEmbed(obj.URL), richtext.LineBreak())
		if serr == nil {
			next := richtext.Caret(after)
			e.snapshot = &next
		}
		e.mu.Unlock()
		if serr != nil {
			e.orphan(ctx, obj)
			out = append(out, FileOutcome{Name: f.Name, Status: FileFailed, Err: serr})
			continue
		}
		out = append(out, FileOutcome{Name: f.Name, Status: FileInserted, URL: obj.URL})
		e.emit(ctx, observability.EventImageInserted, true, map[string]any{"name": f.Name, "url": obj.URL, "key": obj.Key})
	}

	e.mu.Lock()
	if e.resumeLocked(gen) {
		// The batch owned the snapshot for its whole run.
		if inserted(out) {
			e.snapshot = nil
		}
	}
	e.mu.Unlock()
	return out, nil
}

func inserted(out []FileOutcome) bool {
	for _, o := range out {
		if o.Status == FileInserted {
			return true
		}
	}
	return false
}

// InsertLink resolves metadata for raw and embeds a preview card when the
// metadata has an image, otherwise a plain hyperlink. Resolver failures are
// never surfaced; they only downgrade the card to a plain link.
func (e *Editor) InsertLink(ctx context.Context, raw string) (*Inserted, error) {
	target, err := linkpreview.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyURL, err)
	}

	e.mu.Lock()
	gen, err := e.beginLocked()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	meta := e.resolve(ctx, target)

	e.mu.Lock()
	if !e.resumeLocked(gen) {
		e.mu.Unlock()
		e.emit(ctx, observability.EventInsertStale, false, map[string]any{"url": target})
		return nil, ErrStale
	}
	var (
		node *html.Node
		kind richtext.AssetKind
	)
	if meta.HasImage() {
		title := meta.Title
		if strings.TrimSpace(title) == "" {
			title = target
		}
		node = richtext.LinkCard(target, richtext.Card{Title: title, Description: meta.Description, Image: meta.Image})
		kind = richtext.AssetLinkPreview
	} else {
		var label string
		if meta != nil {
			label = meta.Title
		}
		node = richtext.PlainLink(target, label)
		kind = richtext.AssetLink
	}
	after, err := e.spliceLocked(node)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.emit(ctx, observability.EventLinkInserted, true, map[string]any{"url": target, "kind": string(kind)})
	return &Inserted{Asset: richtext.AssetReference{URL: target, Kind: kind}, Caret: after}, nil
}

func (e *Editor) resolve(ctx context.Context, target string) *linkpreview.Metadata {
	if e.cfg.Resolver == nil {
		return nil
	}
	meta, err := e.cfg.Resolver.Resolve(ctx, target)
	if err != nil {
		e.logger.Debug("editor: link metadata unavailable", "url", target, "error", err)
		return nil
	}
	return meta
}
