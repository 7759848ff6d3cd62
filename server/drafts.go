package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/yeoju/blobstore"
	"github.com/hazyhaar/yeoju/editor"
)

// ErrDraftNotFound is returned for an unknown or expired draft id.
var ErrDraftNotFound = errors.New("server: draft not found")

// Drafts is the registry of live editing sessions. A draft idle for longer
// than the TTL is closed as if the user had navigated away.
type Drafts struct {
	base editor.Config
	ttl  time.Duration
	now  func() time.Time

	mu     sync.Mutex
	drafts map[string]*draft
}

type draft struct {
	ed       *editor.Editor
	lastUsed time.Time
}

// NewDrafts creates a registry. base carries the collaborators shared by every
// draft; its ID and Collection are set per draft. ttl <= 0 disables expiry.
func NewDrafts(base editor.Config, ttl time.Duration) *Drafts {
	if base.MaxFileBytes <= 0 {
		base.MaxFileBytes = blobstore.MaxFileBytes
	}
	return &Drafts{base: base, ttl: ttl, now: time.Now, drafts: make(map[string]*draft)}
}

// Create opens a draft for collection. A non-empty recordID starts the edit
// flow by loading that record.
func (d *Drafts) Create(ctx context.Context, collection, recordID string) (*editor.Editor, error) {
	cfg := d.base
	cfg.ID = ""
	cfg.Collection = collection
	ed, err := editor.New(cfg)
	if err != nil {
		return nil, err
	}
	if recordID != "" {
		if err := ed.Edit(ctx, recordID); err != nil {
			ed.Close()
			return nil, err
		}
	}
	d.mu.Lock()
	d.drafts[ed.ID()] = &draft{ed: ed, lastUsed: d.now()}
	d.mu.Unlock()
	return ed, nil
}

// Get returns a live draft and refreshes its idle timer.
func (d *Drafts) Get(id string) (*editor.Editor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr, ok := d.drafts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	dr.lastUsed = d.now()
	return dr.ed, nil
}

// Close closes and forgets a draft.
func (d *Drafts) Close(id string) error {
	d.mu.Lock()
	dr, ok := d.drafts[id]
	delete(d.drafts, id)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	dr.ed.Close()
	return nil
}

// Len returns the number of live drafts.
func (d *Drafts) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.drafts)
}

// Sweep closes drafts idle for longer than the TTL and returns how many.
// Busy drafts are left alone until their operation completes.
func (d *Drafts) Sweep() int {
	if d.ttl <= 0 {
		return 0
	}
	cutoff := d.now().Add(-d.ttl)
	var expired []*editor.Editor
	d.mu.Lock()
	for id, dr := range d.drafts {
		if dr.lastUsed.Before(cutoff) && !dr.ed.Busy() {
			expired = append(expired, dr.ed)
			delete(d.drafts, id)
		}
	}
	d.mu.Unlock()
	for _, ed := range expired {
		ed.Close()
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (d *Drafts) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				if n := d.Sweep(); n > 0 {
					logger.Info("drafts: expired idle drafts", "count", n)
				}
			}
		}
	}()
}

// CloseAll closes every draft (shutdown).
func (d *Drafts) CloseAll() {
	d.mu.Lock()
	all := d.drafts
	d.drafts = make(map[string]*draft)
	d.mu.Unlock()
	for _, dr := range all {
		dr.ed.Close()
	}
}
