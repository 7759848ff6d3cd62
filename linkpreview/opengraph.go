// CLAUDE:SUMMARY Self-hosted metadata resolver: SSRF-guarded page fetch, OpenGraph/Twitter/title parsing, optional rendered-browser escalation.
package linkpreview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/yeoju/horosafe"
)

// Renderer returns the rendered document of a page, for sites that build
// their head with JavaScript.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// OpenGraphConfig configures the OpenGraph resolver.
type OpenGraphConfig struct {
	Timeout   time.Duration // Default: 10s.
	MaxBytes  int64         // Default: horosafe.MaxResponseBody.
	UserAgent string
	// URLValidator guards the fetched URL and every redirect.
	// Default: horosafe.ValidateURL.
	URLValidator func(string) error
	// Renderer, when set, is used when the plain fetch has no metadata.
	Renderer Renderer
	Logger   *slog.Logger
}

func (c *OpenGraphConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = horosafe.MaxResponseBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "yeoju-linkpreview/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// OpenGraph fetches the page itself and reads its meta tags.
type OpenGraph struct {
	client *http.Client
	cfg    OpenGraphConfig
}

// NewOpenGraph creates the resolver with SSRF protection on redirects.
func NewOpenGraph(cfg OpenGraphConfig) *OpenGraph {
	cfg.defaults()
	validate := cfg.URLValidator
	return &OpenGraph{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
		cfg: cfg,
	}
}

// Resolve implements Resolver.
func (o *OpenGraph) Resolve(ctx context.Context, target string) (*Metadata, error) {
	if err := o.cfg.URLValidator(target); err != nil {
		return nil, fmt.Errorf("URL blocked (SSRF): %w", err)
	}
	body, final, err := o.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	meta := ParseMetadata(body, final)
	if (meta == nil || !meta.HasImage()) && o.cfg.Renderer != nil {
		o.cfg.Logger.Debug("linkpreview: escalating to rendered fetch", "url", target)
		rendered, rerr := o.cfg.Renderer.Render(ctx, target)
		if rerr != nil {
			o.cfg.Logger.Warn("linkpreview: rendered fetch failed", "url", target, "error", rerr)
		} else if rm := ParseMetadata(rendered, final); rm != nil {
			meta = rm
		}
	}
	if meta == nil {
		return nil, ErrNoMetadata
	}
	meta.URL = target
	if meta.Title == "" {
		meta.Title = target
	}
	return meta, nil
}

func (o *OpenGraph) fetch(ctx context.Context, target string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", o.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, nil, fmt.Errorf("%w: content type %s", ErrNoMetadata, ct)
	}
	// Metadata lives in <head>; a truncated body is still useful.
	body, err := io.ReadAll(io.LimitReader(resp.Body, o.cfg.MaxBytes))
	if err != nil && len(body) == 0 {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	return body, resp.Request.URL, nil
}

// ParseMetadata reads OpenGraph, Twitter card and plain HTML metadata from a
// page. Relative image URLs are resolved against base. It returns nil when the
// page has neither a title nor an image.
func ParseMetadata(page []byte, base *url.URL) *Metadata {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil
	}
	props := map[string]string{}
	var title, canonical string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Meta:
				key := attrValue(n, "property")
				if key == "" {
					key = attrValue(n, "name")
				}
				key = strings.ToLower(strings.TrimSpace(key))
				if v := strings.TrimSpace(attrValue(n, "content")); key != "" && v != "" {
					if _, seen := props[key]; !seen {
						props[key] = v
					}
				}
			case atom.Title:
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(textOf(n))
				}
			case atom.Link:
				if strings.EqualFold(attrValue(n, "rel"), "canonical") && canonical == "" {
					canonical = attrValue(n, "href")
				}
			case atom.Body:
				// Head metadata only.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	meta := &Metadata{
		Title:       first(props["og:title"], props["twitter:title"], title),
		Description: first(props["og:description"], props["twitter:description"], props["description"]),
		Image:       absolute(base, first(props["og:image"], props["og:image:url"], props["og:image:secure_url"], props["twitter:image"], props["twitter:image:src"])),
		URL:         absolute(base, first(props["og:url"], canonical)),
	}
	if meta.Title == "" && meta.Image == "" {
		return nil
	}
	return meta
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func absolute(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
