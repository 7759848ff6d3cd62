package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/yeoju/blobstore"
	"github.com/hazyhaar/yeoju/editor"
	"github.com/hazyhaar/yeoju/linkpreview"
)

// BlobStore builds the configured store. The fs driver also returns the
// handler that serves stored files under the public URL.
func (c *Config) BlobStore(logger *slog.Logger) (editor.BlobStore, http.Handler, error) {
	switch c.Blob.Driver {
	case "worker":
		w, err := blobstore.NewWorker(c.Blob.WorkerURL,
			blobstore.WithTimeout(c.Blob.Timeout),
			blobstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return w, nil, nil
	case "fs":
		fs, err := blobstore.NewFS(c.Blob.Dir, c.Blob.PublicURL)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Handler(), nil
	}
	return nil, nil, fmt.Errorf("unsupported blob.driver %q", c.Blob.Driver)
}

// Resolver builds the link metadata chain behind a circuit breaker. The
// returned closer releases the remote browser, if any.
func (c *Config) Resolver(logger *slog.Logger) (editor.MetadataResolver, io.Closer) {
	p := c.Preview
	var resolvers []linkpreview.Resolver
	if p.MicrolinkURL != "" {
		resolvers = append(resolvers, linkpreview.NewMicrolink(p.MicrolinkURL, p.Timeout))
	}
	var closer io.Closer = nopCloser{}
	if p.OpenGraph {
		og := linkpreview.OpenGraphConfig{Timeout: p.Timeout, Logger: logger}
		if p.BrowserURL != "" {
			b := linkpreview.NewBrowser(p.BrowserURL, p.Timeout, logger)
			og.Renderer = b
			closer = b
		}
		resolvers = append(resolvers, linkpreview.NewOpenGraph(og))
	}
	if len(resolvers) == 0 {
		return nil, closer
	}
	chain := linkpreview.NewChain(logger, resolvers...)
	if p.BreakerThreshold == 0 {
		return chain, closer
	}
	breaker := linkpreview.NewBreaker(
		linkpreview.WithThreshold(p.BreakerThreshold),
		linkpreview.WithResetTimeout(p.BreakerReset))
	return linkpreview.Guard(chain, breaker), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
