package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DraftScoped is implemented by tool arguments that address one draft.
// The draft id is copied into the call context before the endpoint runs.
type DraftScoped interface {
	DraftRef() string
}

// RegisterMCPTool registers a typed endpoint as an MCP tool. Arguments are
// decoded into a fresh T, unknown fields rejected. Decode and endpoint
// failures come back as tool errors so the client sees the message; the
// JSON of a successful response is the single text content.
func RegisterMCPTool[T any](srv *mcp.Server, tool *mcp.Tool, fn func(context.Context, *T) (any, error), mws ...Middleware) {
	endpoint := Chain(mws...)(func(ctx context.Context, req any) (any, error) {
		return fn(ctx, req.(*T))
	})
	srv.AddTool(tool, func(ctx context.Context, call *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = WithTransport(ctx, TransportMCP)
		args := new(T)
		if raw := call.Params.Arguments; len(raw) > 0 {
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(args); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}
		if d, ok := any(args).(DraftScoped); ok && d.DraftRef() != "" {
			ctx = WithDraftID(ctx, d.DraftRef())
		}

		resp, err := endpoint(ctx, args)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
