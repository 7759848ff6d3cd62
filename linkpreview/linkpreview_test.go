package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"example.com/article":  "https://example.com/article",
		"  http://a.test  ":    "http://a.test",
		"https://b.test/x?y=1": "https://b.test/x?y=1",
		"ftp.example.com/file": "https://ftp.example.com/file",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil || got != want {
			t.Errorf("Normalize(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, blank := range []string{"", "   ", "\t\n"} {
		if _, err := Normalize(blank); !errors.Is(err, ErrEmptyURL) {
			t.Errorf("Normalize(%q) err = %v, want ErrEmptyURL", blank, err)
		}
	}
}

func TestMicrolink_Success(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		io.WriteString(w, `{"status":"success","data":{"title":"Example Article","description":"desc","image":{"url":"https://cdn/thumb.jpg"}}}`)
	}))
	defer srv.Close()

	meta, err := NewMicrolink(srv.URL, time.Second).Resolve(context.Background(), "https://example.com/article?a=1&b=2")
	if err != nil {
		t.Fatal(err)
	}
	if gotURL != "https://example.com/article?a=1&b=2" {
		t.Errorf("forwarded url = %q", gotURL)
	}
	want := &Metadata{Title: "Example Article", Description: "desc", Image: "https://cdn/thumb.jpg", URL: "https://example.com/article?a=1&b=2"}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Errorf("metadata (-want +got):\n%s", diff)
	}
}

func TestMicrolink_TitleFallbackAndFailure(t *testing.T) {
	body := `{"status":"success","data":{"description":""}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()
	ml := NewMicrolink(srv.URL, time.Second)

	meta, err := ml.Resolve(context.Background(), "https://x.test")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Title != "https://x.test" || meta.HasImage() {
		t.Errorf("metadata = %+v", meta)
	}

	body = `{"status":"fail","message":"rate limited"}`
	if meta, err := ml.Resolve(context.Background(), "https://x.test"); meta != nil || err != nil {
		t.Errorf("fail status = %+v, %v; want nil, nil", meta, err)
	}

	body = `<html>not json`
	if _, err := ml.Resolve(context.Background(), "https://x.test"); err == nil {
		t.Error("expected decode error")
	}
}

func TestMicrolink_ImageSchemeFiltered(t *testing.T) {
	// WHAT: only http(s) preview images reach the card; relative ones resolve against the link.
	// WHY: the card is rendered live before the submit-time sanitizer runs.
	cases := []struct {
		image, want string
	}{
		{"javascript:alert(1)", ""},
		{"data:image/png;base64,AAAA", ""},
		{"/og.png", "https://example.com/og.png"},
		{"http://cdn.test/a.jpg", "http://cdn.test/a.jpg"},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"status":"success","data":{"title":"T","image":{"url":%q}}}`, c.image)
		}))
		meta, err := NewMicrolink(srv.URL, time.Second).Resolve(context.Background(), "https://example.com/post/1")
		srv.Close()
		if err != nil {
			t.Fatalf("%s: %v", c.image, err)
		}
		if meta.Image != c.want {
			t.Errorf("image %q: got %q, want %q", c.image, meta.Image, c.want)
		}
		if meta.HasImage() != (c.want != "") {
			t.Errorf("image %q: HasImage = %v", c.image, meta.HasImage())
		}
	}
}

const ogPage = `<!doctype html><html><head>
<title> Fallback Title </title>
<meta property="og:title" content="OG Title">
<meta name="description" content="plain description">
<meta property="og:image" content="/img/cover.png">
<link rel="canonical" href="https://site.test/canonical">
</head><body><meta property="og:title" content="ignored"></body></html>`

func TestParseMetadata(t *testing.T) {
	base, _ := url.Parse("https://site.test/articles/1")
	got := ParseMetadata([]byte(ogPage), base)
	want := &Metadata{
		Title:       "OG Title",
		Description: "plain description",
		Image:       "https://site.test/img/cover.png",
		URL:         "https://site.test/canonical",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metadata (-want +got):\n%s", diff)
	}
	if m := ParseMetadata([]byte("<html><body>nothing</body></html>"), base); m != nil {
		t.Errorf("empty page metadata = %+v, want nil", m)
	}
	js := `<head><meta property="og:image" content="javascript:alert(1)"><title>t</title></head>`
	if m := ParseMetadata([]byte(js), base); m == nil || m.Image != "" {
		t.Errorf("javascript image should be dropped: %+v", m)
	}
}

func allowAll(string) error { return nil }

func TestOpenGraph_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, ogPage)
	}))
	defer srv.Close()

	og := NewOpenGraph(OpenGraphConfig{URLValidator: allowAll})
	meta, err := og.Resolve(context.Background(), srv.URL+"/articles/1")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Title != "OG Title" || meta.Image != srv.URL+"/img/cover.png" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.URL != srv.URL+"/articles/1" {
		t.Errorf("url = %q, want the requested url", meta.URL)
	}
}

func TestOpenGraph_BlocksPrivate(t *testing.T) {
	// WHAT: the default validator refuses loopback targets.
	// WHY: the server must not become a proxy into its own network.
	og := NewOpenGraph(OpenGraphConfig{})
	if _, err := og.Resolve(context.Background(), "http://127.0.0.1:1/x"); err == nil || !strings.Contains(err.Error(), "SSRF") {
		t.Errorf("err = %v, want SSRF block", err)
	}
}

type fakeRenderer struct {
	page  string
	calls int
}

func (f *fakeRenderer) Render(context.Context, string) ([]byte, error) {
	f.calls++
	return []byte(f.page), nil
}

func TestOpenGraph_EscalatesToRenderer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><head><script src="app.js"></script></head></html>`)
	}))
	defer srv.Close()

	r := &fakeRenderer{page: `<head><meta property="og:title" content="Rendered"><meta property="og:image" content="https://cdn/r.png"></head>`}
	og := NewOpenGraph(OpenGraphConfig{URLValidator: allowAll, Renderer: r})
	meta, err := og.Resolve(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if r.calls != 1 || meta.Title != "Rendered" || meta.Image != "https://cdn/r.png" {
		t.Errorf("calls=%d metadata=%+v", r.calls, meta)
	}
}

func TestOpenGraph_NoMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>bare</body></html>`)
	}))
	defer srv.Close()

	og := NewOpenGraph(OpenGraphConfig{URLValidator: allowAll})
	if _, err := og.Resolve(context.Background(), srv.URL); !errors.Is(err, ErrNoMetadata) {
		t.Errorf("err = %v, want ErrNoMetadata", err)
	}
}

func TestChain(t *testing.T) {
	failing := ResolverFunc(func(context.Context, string) (*Metadata, error) { return nil, errors.New("down") })
	empty := ResolverFunc(func(context.Context, string) (*Metadata, error) { return nil, nil })
	good := ResolverFunc(func(_ context.Context, u string) (*Metadata, error) { return &Metadata{Title: "ok", URL: u}, nil })

	meta, err := NewChain(nil, failing, nil, empty, good).Resolve(context.Background(), "https://x.test")
	if err != nil || meta.Title != "ok" {
		t.Errorf("chain = %+v, %v", meta, err)
	}
	if _, err := NewChain(nil, failing).Resolve(context.Background(), "https://x.test"); err == nil {
		t.Error("expected error when every resolver fails")
	}
	if meta, err := NewChain(nil, empty).Resolve(context.Background(), "https://x.test"); meta != nil || err != nil {
		t.Errorf("empty chain = %+v, %v", meta, err)
	}
}

func TestGuarded_OpensAndRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	calls := 0
	fail := true
	backend := ResolverFunc(func(context.Context, string) (*Metadata, error) {
		calls++
		if fail {
			return nil, errors.New("timeout")
		}
		return &Metadata{Title: "ok"}, nil
	})
	g := Guard(backend, NewBreaker(WithThreshold(2), WithResetTimeout(time.Minute), WithClock(clock)))
	ctx := context.Background()

	g.Resolve(ctx, "u")
	g.Resolve(ctx, "u")
	if g.Breaker().State() != BreakerOpen {
		t.Fatalf("state = %v, want open", g.Breaker().State())
	}
	if _, err := g.Resolve(ctx, "u"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("backend calls = %d, want 2", calls)
	}

	now = now.Add(time.Minute)
	if g.Breaker().State() != BreakerHalfOpen {
		t.Fatalf("state = %v, want half-open", g.Breaker().State())
	}
	fail = false
	if meta, err := g.Resolve(ctx, "u"); err != nil || meta.Title != "ok" {
		t.Fatalf("probe = %+v, %v", meta, err)
	}
	if g.Breaker().State() != BreakerClosed {
		t.Errorf("state = %v, want closed", g.Breaker().State())
	}
}

func TestGuarded_NoMetadataIsHealthy(t *testing.T) {
	backend := ResolverFunc(func(context.Context, string) (*Metadata, error) { return nil, ErrNoMetadata })
	g := Guard(backend, NewBreaker(WithThreshold(1)))
	for i := 0; i < 3; i++ {
		g.Resolve(context.Background(), "u")
	}
	if g.Breaker().State() != BreakerClosed {
		t.Errorf("state = %v, want closed", g.Breaker().State())
	}
}
