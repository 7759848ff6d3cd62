package linkpreview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hazyhaar/yeoju/horosafe"
)

// DefaultMicrolinkURL is the public metadata extraction API.
const DefaultMicrolinkURL = "https://api.microlink.io"

// Microlink resolves metadata through the microlink.io API.
type Microlink struct {
	endpoint string
	client   *http.Client
}

// NewMicrolink returns a resolver for endpoint; empty uses DefaultMicrolinkURL.
func NewMicrolink(endpoint string, timeout time.Duration) *Microlink {
	if endpoint == "" {
		endpoint = DefaultMicrolinkURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Microlink{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type microlinkResponse struct {
	Status string `json:"status"`
	Data   *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Image       *struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"data"`
}

// Resolve implements Resolver. A response without status "success" and a
// data object yields (nil, nil).
func (m *Microlink) Resolve(ctx context.Context, target string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"?url="+url.QueryEscape(target), nil)
	if err != nil {
		return nil, fmt.Errorf("microlink: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("microlink: http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("microlink: read body: %w", err)
	}
	var out microlinkResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("microlink: decode (status %d): %w", resp.StatusCode, err)
	}
	if out.Status != "success" || out.Data == nil {
		return nil, nil
	}
	meta := &Metadata{
		Title:       out.Data.Title,
		Description: out.Data.Description,
		URL:         target,
	}
	if meta.Title == "" {
		meta.Title = target
	}
	if out.Data.Image != nil {
		base, err := url.Parse(target)
		if err != nil {
			base = &url.URL{}
		}
		meta.Image = absolute(base, out.Data.Image.URL)
	}
	return meta, nil
}
