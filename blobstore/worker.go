// CLAUDE:SUMMARY HTTP client for the R2 upload worker: PUT/DELETE by key, JSON {url} response, public URL to key mapping.
package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/yeoju/horosafe"
)

// maxWorkerResponse caps the amount of response data read from the worker.
const maxWorkerResponse int64 = 64 << 10

// Worker stores objects through the upload worker: PUT {base}/{key} with the
// object's Content-Type, DELETE {base}/{key}.
type Worker struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) WorkerOption {
	return func(w *Worker) { w.client = c }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) { w.client.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

// NewWorker returns a client for the worker at baseURL.
func NewWorker(baseURL string, opts ...WorkerOption) (*Worker, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("blobstore: invalid worker url %q", baseURL)
	}
	w := &Worker{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: 60 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// BaseURL returns the worker prefix of every public URL it hands out.
func (w *Worker) BaseURL() string { return w.base }

func (w *Worker) objectURL(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return w.base + "/" + strings.Join(segs, "/")
}

type putResponse struct {
	URL string `json:"url"`
}

// Put uploads data under key.
func (w *Worker) Put(ctx context.Context, key, contentType string, data []byte) (*Object, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	target := w.objectURL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("blobstore: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: put %s: %v", ErrUnavailable, key, err)
	}
	defer resp.Body.Close()

	body, err := horosafe.LimitedReadAll(resp.Body, maxWorkerResponse)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: put %s: status %d: %s", ErrUnavailable, key, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out putResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
	}
	if out.URL == "" {
		out.URL = target
	}
	w.logger.Debug("blobstore: put", "key", key, "bytes", len(data), "duration_ms", time.Since(start).Milliseconds())
	return &Object{Key: key, URL: out.URL, ContentType: contentType, Size: int64(len(data))}, nil
}

// Delete removes the object under key. A missing object is not an error.
func (w *Worker) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, w.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("blobstore: create request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: delete %s: status %d", ErrUnavailable, key, resp.StatusCode)
	}
	return nil
}

// KeyFromURL recovers the object key from a public URL handed out by the
// store at base. It returns false for URLs under another prefix.
func KeyFromURL(base, publicURL string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(publicURL, prefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(rest)
	if err != nil || checkKey(key) != nil {
		return "", false
	}
	return key, true
}

// KeyFromURL recovers the key of an object this worker stored.
func (w *Worker) KeyFromURL(publicURL string) (string, bool) {
	return KeyFromURL(w.base, publicURL)
}
