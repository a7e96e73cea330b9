package layout

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lumaworks/slotline/kit"
	"github.com/lumaworks/slotline/registry"
	"github.com/lumaworks/slotline/render"
	"github.com/lumaworks/slotline/slot"
)

// RegisterMCP registers the layout tools on an MCP server. renderer may be
// nil, in which case layout_render is not registered.
func (s *Service) RegisterMCP(srv *mcp.Server, renderer *render.Renderer) {
	s.registerGetDraft(srv)
	s.registerPublish(srv)
	s.registerRevert(srv)
	s.registerReset(srv)
	s.registerVersions(srv)
	s.registerStatus(srv)
	if renderer != nil {
		s.registerRender(srv, renderer)
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

type pageReq struct {
	StoreID  string `json:"store_id"`
	PageType string `json:"page_type"`
}

func pageProps() map[string]any {
	return map[string]any{
		"store_id":  map[string]any{"type": "string", "description": "Store ID"},
		"page_type": map[string]any{"type": "string", "description": "Page type, e.g. category_layout"},
	}
}

func decodePage(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var p pageReq
	if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &p}, nil
}

func (s *Service) registerGetDraft(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "layout_get_draft",
		Description: "Get the working draft layout for a store page",
		InputSchema: inputSchema(pageProps(), []string{"store_id", "page_type"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*pageReq)
		return s.Draft(ctx, p.StoreID, p.PageType)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodePage)
}

func (s *Service) registerPublish(srv *mcp.Server) {
	type req struct {
		pageReq
		PublishedBy string `json:"published_by"`
	}
	props := pageProps()
	props["published_by"] = map[string]any{"type": "string", "description": "User publishing the layout"}
	tool := &mcp.Tool{
		Name:        "layout_publish",
		Description: "Publish the current draft as a new layout version",
		InputSchema: inputSchema(props, []string{"store_id", "page_type"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		version, err := s.Publish(ctx, p.StoreID, p.PageType, p.PublishedBy)
		if err != nil {
			return nil, err
		}
		return map[string]int{"version": version}, nil
	}
	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerRevert(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "layout_revert",
		Description: "Discard the draft, restoring the currently published layout",
		InputSchema: inputSchema(pageProps(), []string{"store_id", "page_type"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*pageReq)
		return s.Revert(ctx, p.StoreID, p.PageType)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodePage)
}

func (s *Service) registerReset(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "layout_reset",
		Description: "Replace the draft with the default template for the page type",
		InputSchema: inputSchema(pageProps(), []string{"store_id", "page_type"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*pageReq)
		return s.Reset(ctx, p.StoreID, p.PageType)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodePage)
}

func (s *Service) registerVersions(srv *mcp.Server) {
	type req struct {
		pageReq
		Limit int `json:"limit"`
	}
	props := pageProps()
	props["limit"] = map[string]any{"type": "integer", "description": "Max versions to return"}
	tool := &mcp.Tool{
		Name:        "layout_versions",
		Description: "List published layout versions for a page, newest first",
		InputSchema: inputSchema(props, []string{"store_id", "page_type"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Versions(ctx, p.StoreID, p.PageType, p.Limit)
	}
	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerStatus(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "layout_status",
		Description: "Report whether a page is unpublished, published, or has draft modifications",
		InputSchema: inputSchema(pageProps(), []string{"store_id", "page_type"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*pageReq)
		return s.Status(ctx, p.StoreID, p.PageType)
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decodePage)
}

func (s *Service) registerRender(srv *mcp.Server, renderer *render.Renderer) {
	type req struct {
		pageReq
		Source   string `json:"source"`
		ViewMode string `json:"view_mode"`
		Viewport string `json:"viewport"`
	}
	props := pageProps()
	props["source"] = map[string]any{"type": "string", "description": "draft or published (default published)"}
	props["view_mode"] = map[string]any{"type": "string", "description": "Component view mode, e.g. grid or list"}
	props["viewport"] = map[string]any{"type": "string", "description": "mobile, tablet or desktop"}
	tool := &mcp.Tool{
		Name:        "layout_render",
		Description: "Render a store page layout to HTML",
		InputSchema: inputSchema(props, []string{"store_id", "page_type"}),
	}
	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.renderTool(ctx, renderer, p.StoreID, p.PageType, p.Source, p.ViewMode, p.Viewport)
	}
	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) renderTool(ctx context.Context, renderer *render.Renderer, storeID, pageType, source, viewMode, viewport string) (any, error) {
	d, err := s.documentForRender(ctx, storeID, pageType, source)
	if err != nil {
		return nil, err
	}
	rc := registry.Context{
		StoreID:  storeID,
		PageType: pageType,
		ViewMode: viewMode,
		Viewport: parseViewport(viewport),
		Mode:     registry.ModeView,
	}
	html, err := renderer.RenderDocument(d, rc)
	if err != nil {
		return nil, err
	}
	return map[string]string{"html": string(html)}, nil
}

func (s *Service) documentForRender(ctx context.Context, storeID, pageType, source string) (*slot.Document, error) {
	if source == "draft" {
		return s.Draft(ctx, storeID, pageType)
	}
	doc, _, err := s.Storefront(ctx, storeID, pageType)
	return doc, err
}
