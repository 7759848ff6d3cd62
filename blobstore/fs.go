// CLAUDE:SUMMARY Local-disk blob store for development: traversal-guarded writes under a root dir, public URL mapping, static file handler.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/yeoju/horosafe"
)

// FS stores objects as files under a root directory and serves them back
// under publicURL.
type FS struct {
	root      string
	publicURL string
}

// NewFS creates the root directory if needed.
func NewFS(root, publicURL string) (*FS, error) {
	if root == "" {
		return nil, errors.New("blobstore: fs root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	return &FS{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// BaseURL returns the prefix of every public URL this store hands out.
func (s *FS) BaseURL() string { return s.publicURL }

func (s *FS) path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	p, err := horosafe.SafePath(s.root, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return p, nil
}

// Put writes data to root/key atomically.
func (s *FS) Put(_ context.Context, key, contentType string, data []byte) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir: %v", ErrUnavailable, err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("%w: rename: %v", ErrUnavailable, err)
	}
	return &Object{Key: key, URL: s.publicURL + "/" + key, ContentType: contentType, Size: int64(len(data))}, nil
}

// Delete removes root/key. A missing file is not an error.
func (s *FS) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove: %v", ErrUnavailable, err)
	}
	return nil
}

// KeyFromURL recovers the key of an object this store wrote.
func (s *FS) KeyFromURL(publicURL string) (string, bool) {
	return KeyFromURL(s.publicURL, publicURL)
}

// Handler serves stored files. Mount it under the path of publicURL with the
// prefix stripped.
func (s *FS) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || strings.HasSuffix(r.URL.Path, ".tmp") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
