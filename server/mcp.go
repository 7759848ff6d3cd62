package server

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/yeoju/editor"
	"github.com/hazyhaar/yeoju/kit"
	"github.com/hazyhaar/yeoju/recordstore"
	"github.com/hazyhaar/yeoju/richtext"
)

// RegisterMCP registers the draft tools on srv.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerCreate(srv)
	s.registerSelect(srv)
	s.registerInsertImage(srv)
	s.registerInsertLink(srv)
	s.registerFormat(srv)
	s.registerContent(srv)
	s.registerSubmit(srv)
	s.registerClose(srv)
	if s.opts.Records != nil {
		s.registerRecordList(srv)
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var draftIDProp = map[string]any{"type": "string", "description": "Draft ID returned by draft_create"}

// draftRef is embedded by tool arguments that target an open draft.
type draftRef struct {
	DraftID string `json:"draft_id"`
}

func (d draftRef) DraftRef() string { return d.DraftID }

func register[T any](s *Server, srv *mcp.Server, tool *mcp.Tool, fn func(context.Context, *T) (any, error)) {
	kit.RegisterMCPTool(srv, tool, fn, kit.Logging(s.logger, tool.Name))
}

func (s *Server) registerCreate(srv *mcp.Server) {
	type req struct {
		Collection string `json:"collection"`
		RecordID   string `json:"record_id"`
	}
	tool := &mcp.Tool{
		Name:        "draft_create",
		Description: "Open an editor draft for a post or notice; pass record_id to edit an existing one",
		InputSchema: inputSchema(map[string]any{
			"collection": map[string]any{"type": "string", "enum": []string{"posts", "notices"}},
			"record_id":  map[string]any{"type": "string", "description": "Existing record to edit"},
		}, []string{"collection"}),
	}
	endpoint := func(ctx context.Context, p *req) (any, error) {
		ed, err := s.drafts.Create(ctx, p.Collection, p.RecordID)
		if err != nil {
			return nil, err
		}
		return ed.State()
	}
	register(s, srv, tool, endpoint)
}

func (s *Server) registerSelect(srv *mcp.Server) {
	type req struct {
		draftRef
		Selection richtext.Selection `json:"selection"`
	}
	tool := &mcp.Tool{
		Name:        "draft_select",
		Description: "Place the cursor or select a range; the position is remembered for the next insertion",
		InputSchema: inputSchema(map[string]any{
			"draft_id": draftIDProp,
			"selection": map[string]any{
				"type":        "object",
				"description": "{start:{path:[int],offset:int}, end:{path:[int],offset:int}}",
			},
		}, []string{"draft_id", "selection"}),
	}
	endpoint := func(ctx context.Context, p *req) (any, error) {
		ed, err := s.drafts.Get(p.DraftID)
		if err != nil {
			return nil, err
		}
		if err := ed.SetSelection(p.Selection); err != nil {
			return nil, err
		}
		return ed.State()
	}
	register(s, srv, tool, endpoint)
}

func (s *Server) registerInsertImage(srv *mcp.Server) {
	type req struct {
		draftRef
		Name        string `json:"name"`
		ContentType string `json:"content_type"`
		Data        string `json:"data"`
		Folder      string `json:"folder"`
	}
	tool := &mcp.Tool{
		Name:        "draft_insert_image",
		Description: "Upload an image and embed it at the remembered cursor position",
		InputSchema: inputSchema(map[string]any{
			"draft_id":     draftIDProp,
			"name":         map[string]any{"type": "string", "description": "Original file name"},
			"content_type": map[string]any{"type": "string", "description": "MIME type, sniffed when empty"},
			"data":         map[string]any{"type": "string", "description": "Base64-encoded file bytes"},
			"folder":       map[string]any{"type": "string", "description": "Upload folder override"},
		}, []string{"draft_id", "name", "data"}),
	}
	endpoint := func(ctx context.Context, p *req) (any, error) {
		ed, err := s.drafts.Get(p.DraftID)
		if err != nil {
			return nil, err
		}
		data, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: data is not base64: %v", editor.ErrValidation, err)
		}
		return ed.InsertImage(ctx, editor.File{Name: p.Name, ContentType: p.ContentType, Data: data, Folder: p.Folder})
	}
	register(s, srv, tool, endpoint)
}

func (s *Server) registerInsertLink(srv *mcp.Server) {
	type req struct {
		draftRef
		URL string `json:"url"`
	}
	tool := &mcp.Tool{
		Name:        "draft_insert_link",
		Description: "Insert a link preview card (or a plain link when no preview image exists) at the remembered cursor",
		InputSchema: inputSchema(map[string]any{
			"draft_id": draftIDProp,
			"url":      map[string]any{"type": "string", "description": "Link; https:// is added when no scheme is given"},
		}, []string{"draft_id", "url"}),
	}
	endpoint := func(ctx context.Context, p *req) (any, error) {
		ed, err := s.drafts.Get(p.DraftID)
		if err != nil {
			return nil, err
		}
		return ed.InsertLink(ctx, p.URL)
	}
	register(s, srv, tool, endpoint)
}

func (s *Server) registerFormat(srv *mcp.Server) {
	type req struct {
		draftRef
		Command string `json:"command"`
		Value   string `json:"value"`
	}
	tool := &mcp.Tool{
		Name:        "draft_format",
		Description: "Apply a toolbar command (bold, italic, foreColor, fontSize, justifyCenter, insertText...) to the current selection",
		InputSchema: inputSchema(map[string]any{
			"draft_id": draftIDProp,
			"command":  map[string]any{"type": "string", "description": "Command name"},
			"value":    map[string]any{"type": "string", "description": "Command argument (color, size 1-7, font, text)"},
		}, []string{"draft_id", "command"}),
	}
	endpoint := func(ctx context.Context, p *req) (any, error) {
		ed, err := s.drafts.Get(p.DraftID)
		if err != nil {
			return nil, err
		}
		if err := ed.ApplyFormatting(richtext.Command(p.Command), p.Value); err != nil {
			return nil, err
		}
		return ed.State()
	}
	register(s, srv, tool, endpoint)
}

func (s *Server) registerContent(srv *mcp.Server) {
	type req struct {
		draftRef
	}
	tool := &mcp.Tool{
		Name:        "draft_content",
		Description: "Return the draft markup, its embedded assets and whether it is empty",
		InputSchema: inputSchema(map[string]any{"draft_id": draftIDProp}, []string{"draft_id"}),
	}
	endpoint := func(ctx context.Context, p *req) (any, error) {
		ed, err := s.drafts.Get(p.DraftID)
		if err != nil {
			return nil, err
		}
		st, err := ed.State()
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"content":    st.Content,
			"markdown":   richtext.Markdown(st.Content),
			"assets":     st.Assets,
			"asset_urls": st.AssetURLs,
			"empty":      st.Empty,
		}, nil
	}
	register(s, srv, tool, endpoint)
}

func (s *Server) registerSubmit(srv *mcp.Server) {
	type req struct {
		draftRef
		editor.SubmitRequest
	}
	tool := &mcp.Tool{
		Name:        "draft_submit",
		Description: "Validate and save the draft to its collection",
		InputSchema: inputSchema(map[string]any{
			"draft_id":  draftIDProp,
			"title":     map[string]any{"type": "string"},
			"thumbnail": map[string]any{"type": "string", "description": "Thumbnail URL stored first in images"},
			"fields":    map[string]any{"type": "object", "description": "board_type for posts, is_pinned for notices"},
		}, []string{"draft_id", "title"}),
	}
	endpoint := func(ctx context.Context, p *req) (any, error) {
		ed, err := s.drafts.Get(p.DraftID)
		if err != nil {
			return nil, err
		}
		return ed.Submit(ctx, p.SubmitRequest)
	}
	register(s, srv, tool, endpoint)
}

func (s *Server) registerClose(srv *mcp.Server) {
	type req struct {
		draftRef
	}
	tool := &mcp.Tool{
		Name:        "draft_close",
		Description: "Discard a draft; in-flight uploads are dropped",
		InputSchema: inputSchema(map[string]any{"draft_id": draftIDProp}, []string{"draft_id"}),
	}
	endpoint := func(ctx context.Context, p *req) (any, error) {
		id := p.DraftID
		if err := s.drafts.Close(id); err != nil {
			return nil, err
		}
		return map[string]string{"status": "closed", "draft_id": id}, nil
	}
	register(s, srv, tool, endpoint)
}

func (s *Server) registerRecordList(srv *mcp.Server) {
	type req struct {
		Collection string `json:"collection"`
		Field      string `json:"field"`
		Value      any    `json:"value"`
		Limit      int    `json:"limit"`
	}
	tool := &mcp.Tool{
		Name:        "record_list",
		Description: "List submitted posts or notices, newest first; filter on a taxonomy field such as board_type or is_pinned",
		InputSchema: inputSchema(map[string]any{
			"collection": map[string]any{"type": "string", "enum": []string{"posts", "notices"}},
			"field":      map[string]any{"type": "string", "description": "Taxonomy field to match"},
			"value":      map[string]any{"description": "Value the field must equal"},
			"limit":      map[string]any{"type": "integer", "description": "Maximum records, default 50"},
		}, []string{"collection"}),
	}
	endpoint := func(ctx context.Context, p *req) (any, error) {
		recs, err := s.opts.Records.List(ctx, p.Collection, recordstore.Filter{Field: p.Field, Value: p.Value, Limit: p.Limit})
		if err != nil {
			return nil, err
		}
		if recs == nil {
			recs = []*recordstore.Record{}
		}
		return map[string]any{"records": recs}, nil
	}
	register(s, srv, tool, endpoint)
}
