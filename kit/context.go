package kit

import "context"

type ctxKey int

const (
	transportKey ctxKey = iota
	traceKey
	draftKey
)

// Transports recorded by the HTTP and MCP surfaces.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
)

func with(ctx context.Context, k ctxKey, v string) context.Context {
	return context.WithValue(ctx, k, v)
}

func get(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithTransport records which surface a call arrived on.
func WithTransport(ctx context.Context, t string) context.Context { return with(ctx, transportKey, t) }

// GetTransport defaults to TransportHTTP.
func GetTransport(ctx context.Context) string {
	if t := get(ctx, transportKey); t != "" {
		return t
	}
	return TransportHTTP
}

// WithTraceID attaches the request trace id set by shield.TraceID.
func WithTraceID(ctx context.Context, id string) context.Context { return with(ctx, traceKey, id) }

// GetTraceID returns the trace id, or "" outside a traced request.
func GetTraceID(ctx context.Context) string { return get(ctx, traceKey) }

// WithDraftID tags ctx with the editor session a call targets.
func WithDraftID(ctx context.Context, id string) context.Context { return with(ctx, draftKey, id) }

// GetDraftID returns the targeted draft id, or "" for calls not scoped to a
// draft.
func GetDraftID(ctx context.Context) string { return get(ctx, draftKey) }
