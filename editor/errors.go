// CLAUDE:SUMMARY Editor error taxonomy: validation sentinels, busy/stale guards, typed upload and persistence failures.
package editor

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every user-input rejection. Validation errors
// are reported before any network call and leave the editor unchanged.
var ErrValidation = errors.New("editor: validation failed")

var (
	ErrFileTooLarge     = fmt.Errorf("%w: file too large", ErrValidation)
	ErrEmptyFile        = fmt.Errorf("%w: file is empty", ErrValidation)
	ErrUnsupportedType  = fmt.Errorf("%w: not an image", ErrValidation)
	ErrInvalidFolder    = fmt.Errorf("%w: unknown upload folder", ErrValidation)
	ErrEmptyURL         = fmt.Errorf("%w: url is required", ErrValidation)
	ErrEmptyTitle       = fmt.Errorf("%w: title is required", ErrValidation)
	ErrEmptyContent     = fmt.Errorf("%w: content is required", ErrValidation)
	ErrMissingCategory  = fmt.Errorf("%w: category is required", ErrValidation)
	ErrInvalidCategory  = fmt.Errorf("%w: unknown category", ErrValidation)
	ErrInvalidField     = fmt.Errorf("%w: invalid field", ErrValidation)
	ErrInvalidSelection = fmt.Errorf("%w: selection outside the document", ErrValidation)
)

// ErrBusy is returned when an insertion or submit is already in flight.
var ErrBusy = errors.New("editor: another operation is in progress")

// ErrStale is returned when the editor was reloaded or closed while an
// operation was suspended. The result of that operation was discarded.
var ErrStale = errors.New("editor: editor changed while the operation was in flight")

// ErrClosed is returned by every mutation after Close.
var ErrClosed = errors.New("editor: closed")

// ErrRecordNotFound is returned by Edit for a missing record.
var ErrRecordNotFound = errors.New("editor: record not found")

// UploadError reports a Blob Store failure for one file.
type UploadError struct {
	Name string
	Key  string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("editor: upload %s (key %s): %v", e.Name, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistenceError reports a Record Store failure. The document is kept.
type PersistenceError struct {
	Collection string
	Op         string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("editor: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
