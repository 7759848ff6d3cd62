package shield

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/yeoju/kit"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestSecurityHeaders(t *testing.T) {
	// WHAT: every configured header is set, empty ones are skipped.
	h := SecurityHeaders(HeaderConfig{XFrameOptions: "DENY", CacheControl: "no-store"})(http.HandlerFunc(ok))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("headers = %v", rec.Header())
	}
	if _, set := rec.Header()["Content-Security-Policy"]; set {
		t.Error("empty CSP should not be sent")
	}
}

func TestMaxBody(t *testing.T) {
	// WHAT: a body over the cap is refused up front or fails on read.
	// WHY: uploads are buffered in memory before reaching the blob store.
	var readErr error
	h := MaxBody(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 16)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("123456")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("announced length: code = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("123456"))
	req.ContentLength = -1
	h.ServeHTTP(httptest.NewRecorder(), req)
	if readErr == nil || !strings.Contains(readErr.Error(), "too large") {
		t.Fatalf("streamed body: err = %v", readErr)
	}
}

func TestTraceID(t *testing.T) {
	// WHAT: a valid client trace id is kept; a missing one is generated.
	var seen string
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = kit.GetTraceID(r.Context())
		if kit.GetTransport(r.Context()) != kit.TransportHTTP {
			t.Error("transport not set")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "deadbeefcafe")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "deadbeefcafe" || rec.Header().Get(TraceHeader) != "deadbeefcafe" {
		t.Errorf("trace = %q / %q", seen, rec.Header().Get(TraceHeader))
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "not hex\n")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if len(seen) != 16 || seen == "not hex\n" {
		t.Errorf("generated trace = %q", seen)
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { method = r.Method }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/", nil))
	if method != http.MethodGet {
		t.Errorf("method = %s", method)
	}
}

func TestRateLimiter(t *testing.T) {
	// WHAT: the window admits Max requests per client, then 429 until reset.
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(RateLimit{Max: 2, Window: time.Minute}, nil)
	rl.SetClock(func() time.Time { return now })
	h := rl.Middleware("links")(http.HandlerFunc(ok))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	for i, want := range []int{200, 200, 429} {
		if got := do("10.0.0.1"); got != want {
			t.Fatalf("request %d: code = %d, want %d", i, got, want)
		}
	}
	if got := do("10.0.0.2"); got != 200 {
		t.Errorf("other client: code = %d", got)
	}
	now = now.Add(61 * time.Second)
	if got := do("10.0.0.1"); got != 200 {
		t.Errorf("after window: code = %d", got)
	}
	rl.GC()
	rl.mu.Lock()
	n := len(rl.buckets)
	rl.mu.Unlock()
	if n != 1 {
		t.Errorf("buckets after GC = %d, want 1", n)
	}
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", " 1.2.3.4 , 5.6.7.8")
	if got := ExtractIP(req); got != "1.2.3.4" {
		t.Errorf("ip = %q", got)
	}
}
