package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}
	base := func(context.Context, any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil || resp != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}
	want := "a_before,b_before,endpoint,b_after,a_after"
	if got := strings.Join(order, ","); got != want {
		t.Fatalf("order: got %s, want %s", got, want)
	}
}

func TestLogging_RecordsFailure(t *testing.T) {
	// WHAT: Logging middleware emits a warn line carrying the draft id on error.
	// WHY: Failed insertions must be traceable to the draft they targeted.
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	errFail := errors.New("fail")
	ep := Logging(logger, "draft_insert_link")(func(context.Context, any) (any, error) {
		return nil, errFail
	})
	if _, err := ep(WithDraftID(context.Background(), "drf_1"), nil); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"draft_id":"drf_1"`) || !strings.Contains(out, `"endpoint failed"`) {
		t.Fatalf("log line missing fields: %s", out)
	}
}

func TestContext_Values(t *testing.T) {
	ctx := context.Background()
	if v := GetTransport(ctx); v != TransportHTTP {
		t.Fatalf("default transport: got %q", v)
	}
	if v := GetDraftID(ctx); v != "" {
		t.Fatalf("draft default: got %q", v)
	}
	ctx = WithDraftID(WithTraceID(WithTransport(ctx, TransportMCP), "a1b2c3d4"), "drf_9")
	if GetTransport(ctx) != TransportMCP || GetTraceID(ctx) != "a1b2c3d4" || GetDraftID(ctx) != "drf_9" {
		t.Fatal("context values not round-tripped")
	}
}

type echoArgs struct {
	DraftID string `json:"draft_id"`
	Text    string `json:"text"`
}

func (a echoArgs) DraftRef() string { return a.DraftID }

func callEcho(t *testing.T, args any) (string, bool, string) {
	t.Helper()
	var seenDraft, seenTransport string
	srv := mcp.NewServer(&mcp.Implementation{Name: "kit-test", Version: "0"}, nil)
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, a *echoArgs) (any, error) {
		seenDraft, seenTransport = GetDraftID(ctx), GetTransport(ctx)
		if a.Text == "" {
			return nil, errors.New("text required")
		}
		return map[string]string{"echo": a.Text}, nil
	})

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(&mcp.Implementation{Name: "kit-client", Version: "0"}, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: args})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if seenTransport != "" && seenTransport != TransportMCP {
		t.Fatalf("transport: got %q", seenTransport)
	}
	return res.Content[0].(*mcp.TextContent).Text, res.IsError, seenDraft
}

func TestRegisterMCPTool(t *testing.T) {
	// WHAT: typed tools decode arguments, tag the draft id and surface errors as tool errors.
	// WHY: agents read the error text; a protocol error would hide it.
	text, isErr, draft := callEcho(t, map[string]any{"draft_id": "drf_7", "text": "안녕"})
	if isErr || text != `{"echo":"안녕"}` || draft != "drf_7" {
		t.Fatalf("ok call: %q isErr=%v draft=%q", text, isErr, draft)
	}

	text, isErr, _ = callEcho(t, map[string]any{"draft_id": "drf_7"})
	if !isErr || !strings.Contains(text, "text required") {
		t.Fatalf("endpoint error: %q isErr=%v", text, isErr)
	}

	text, isErr, _ = callEcho(t, map[string]any{"text": "x", "colour": "red"})
	if !isErr || !strings.Contains(text, "invalid arguments") {
		t.Fatalf("unknown field: %q isErr=%v", text, isErr)
	}
}
