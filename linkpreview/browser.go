// CLAUDE:SUMMARY Rendered-page fetch through a remote Chrome via go-rod with stealth, for metadata injected by JavaScript.
package linkpreview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Browser renders pages in a remote Chrome reached over its DevTools
// WebSocket URL. The connection is opened on first use and reopened after a
// failure.
type Browser struct {
	controlURL string
	timeout    time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowser returns a renderer for the Chrome at controlURL.
func NewBrowser(controlURL string, timeout time.Duration, logger *slog.Logger) *Browser {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{controlURL: controlURL, timeout: timeout, logger: logger}
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}
	br := rod.New().ControlURL(b.controlURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	b.logger.Info("linkpreview: connected to browser", "url", b.controlURL)
	b.browser = br
	return br, nil
}

func (b *Browser) drop(br *rod.Browser) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == br {
		b.browser = nil
	}
}

// Render implements Renderer.
func (b *Browser) Render(ctx context.Context, target string) ([]byte, error) {
	br, err := b.connect()
	if err != nil {
		return nil, err
	}
	page, err := stealth.Page(br)
	if err != nil {
		b.drop(br)
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(target); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", target, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.logger.Warn("linkpreview: wait load timeout", "url", target, "error", err)
	}
	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Close disconnects from Chrome.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
