package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/yeoju/editor"
	"github.com/hazyhaar/yeoju/recordstore"
	"github.com/hazyhaar/yeoju/richtext"
)

var testMCPImpl = &mcp.Implementation{Name: "yeoju-test", Version: "0.1.0"}

func mcpSession(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = s.MCP().Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func mcpOK(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	text, isErr := mcpCall(t, session, name, args)
	if isErr {
		t.Fatalf("CallTool(%s) tool error: %s", name, text)
	}
	return text
}

func TestMCP_DraftLifecycle(t *testing.T) {
	// WHAT: an agent drafts, formats, embeds and submits a post over MCP.
	ts := newTestServer(t, true)
	session := mcpSession(t, ts.srv)

	var st editor.State
	json.Unmarshal([]byte(mcpOK(t, session, "draft_create", map[string]any{"collection": "posts"})), &st)
	if st.DraftID == "" {
		t.Fatal("no draft id")
	}
	id := st.DraftID

	mcpOK(t, session, "draft_select", map[string]any{"draft_id": id, "selection": richtext.Caret(richtext.Position{})})
	mcpOK(t, session, "draft_format", map[string]any{"draft_id": id, "command": "insertText", "value": "맛있는 집"})
	mcpOK(t, session, "draft_insert_image", map[string]any{
		"draft_id": id,
		"name":     "food.png",
		"data":     base64.StdEncoding.EncodeToString(pngData),
	})
	mcpOK(t, session, "draft_insert_link", map[string]any{"draft_id": id, "url": "example.com/card"})

	var content struct {
		Content   string                    `json:"content"`
		Markdown  string                    `json:"markdown"`
		Assets    []richtext.AssetReference `json:"assets"`
		AssetURLs []string                  `json:"asset_urls"`
		Empty     bool                      `json:"empty"`
	}
	json.Unmarshal([]byte(mcpOK(t, session, "draft_content", map[string]any{"draft_id": id})), &content)
	if content.Empty || len(content.Assets) != 2 || len(content.AssetURLs) != 2 {
		t.Fatalf("content = %+v", content)
	}
	if content.Assets[0].Kind != richtext.AssetImage || content.Assets[1].Kind != richtext.AssetLinkPreview {
		t.Errorf("assets = %+v", content.Assets)
	}
	if !strings.Contains(content.Markdown, "맛있는 집") {
		t.Errorf("markdown = %q", content.Markdown)
	}

	var rec recordstore.Record
	json.Unmarshal([]byte(mcpOK(t, session, "draft_submit", map[string]any{
		"draft_id": id,
		"title":    "맛집",
		"fields":   map[string]any{"board_type": "맛집후기"},
	})), &rec)
	if rec.ID == "" || len(rec.Images) != 2 {
		t.Errorf("record = %+v", rec)
	}

	mcpOK(t, session, "draft_close", map[string]any{"draft_id": id})
	if text, isErr := mcpCall(t, session, "draft_content", map[string]any{"draft_id": id}); !isErr || !strings.Contains(text, "not found") {
		t.Errorf("closed draft: %q %v", text, isErr)
	}
}

func TestMCP_ValidationSurfacesAsToolError(t *testing.T) {
	ts := newTestServer(t, true)
	session := mcpSession(t, ts.srv)
	var st editor.State
	json.Unmarshal([]byte(mcpOK(t, session, "draft_create", map[string]any{"collection": "notices"})), &st)

	text, isErr := mcpCall(t, session, "draft_submit", map[string]any{"draft_id": st.DraftID, "title": " "})
	if !isErr || !strings.Contains(text, "title is required") {
		t.Errorf("submit: %q %v", text, isErr)
	}
	text, isErr = mcpCall(t, session, "draft_insert_image", map[string]any{"draft_id": st.DraftID, "name": "x", "data": "!!"})
	if !isErr || !strings.Contains(text, "base64") {
		t.Errorf("image: %q %v", text, isErr)
	}
}
