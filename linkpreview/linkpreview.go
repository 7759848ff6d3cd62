// CLAUDE:SUMMARY Link metadata contract: URL normalisation, Metadata value, Resolver interface and the resolver chain.
// Package linkpreview resolves a pasted URL into the metadata shown on a
// link-preview card. Resolvers fail soft from the editor's point of view: any
// error means "no metadata" and the editor falls back to a plain hyperlink.
package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrEmptyURL is returned by Normalize for blank input.
var ErrEmptyURL = errors.New("linkpreview: empty url")

// ErrNoMetadata is returned when a page was fetched but carried nothing usable.
var ErrNoMetadata = errors.New("linkpreview: no metadata")

// Metadata is what a card shows about a link.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	URL         string `json:"url"`
}

// HasImage reports whether a thumbnail is available. Cards need one.
func (m *Metadata) HasImage() bool {
	return m != nil && strings.TrimSpace(m.Image) != ""
}

// Resolver fetches metadata for a normalized URL. (nil, nil) means the
// lookup succeeded but found nothing.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*Metadata, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, url string) (*Metadata, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, url string) (*Metadata, error) {
	return f(ctx, url)
}

// Normalize trims raw and prepends https:// when it has no http(s) scheme.
func Normalize(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", ErrEmptyURL
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u, nil
}

// Chain tries each resolver in order and returns the first metadata found.
// Errors are logged and the next resolver is tried; the last error is
// returned when nothing succeeds.
type Chain struct {
	resolvers []Resolver
	logger    *slog.Logger
}

// NewChain builds a chain. Nil resolvers are skipped.
func NewChain(logger *slog.Logger, resolvers ...Resolver) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{logger: logger}
	for _, r := range resolvers {
		if r != nil {
			c.resolvers = append(c.resolvers, r)
		}
	}
	return c
}

// Resolve implements Resolver.
func (c *Chain) Resolve(ctx context.Context, url string) (*Metadata, error) {
	var lastErr error
	for i, r := range c.resolvers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta, err := r.Resolve(ctx, url)
		if err != nil {
			c.logger.Debug("linkpreview: resolver failed", "index", i, "url", url, "error", err)
			lastErr = err
			continue
		}
		if meta != nil {
			return meta, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("linkpreview: all resolvers failed: %w", lastErr)
	}
	return nil, nil
}
