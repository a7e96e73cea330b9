package layout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumaworks/slotline/grid"
	"github.com/lumaworks/slotline/kit"
	"github.com/lumaworks/slotline/preview"
	"github.com/lumaworks/slotline/registry"
	"github.com/lumaworks/slotline/render"
	"github.com/lumaworks/slotline/slot"
)

// API exposes the layout service over HTTP.
type API struct {
	svc      *Service
	renderer *render.Renderer
	notifier *Notifier
	preview  *preview.Builder
	logger   *slog.Logger
}

// NewAPI wires the HTTP surface. notifier may be nil; the refresh endpoint
// then answers 204 immediately. pb may be nil; previews then use an empty
// shell.
func NewAPI(svc *Service, renderer *render.Renderer, notifier *Notifier, pb *preview.Builder, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if pb == nil {
		pb = preview.NewBuilder("")
	}
	return &API{svc: svc, renderer: renderer, notifier: notifier, preview: pb, logger: logger}
}

// RegisterHTTP mounts the admin API and the storefront render route on r.
func (a *API) RegisterHTTP(r chi.Router) {
	r.Route("/api/stores/{storeID}/layouts", func(r chi.Router) {
		r.Get("/", a.handleListPages)
		r.Get("/refresh", a.handleRefresh)
		r.Route("/{pageType}", func(r chi.Router) {
			r.Get("/draft", a.handleGetDraft)
			r.Put("/draft", a.handlePutDraft)
			r.Post("/slots", a.handleAddSlot)
			r.Patch("/slots/{slotID}", a.handleUpdateSlot)
			r.Delete("/slots/{slotID}", a.handleDeleteSlot)
			r.Post("/slots/{slotID}/move", a.handleMoveSlot)
			r.Post("/slots/{slotID}/resize", a.handleResizeSlot)
			r.Post("/publish", a.handlePublish)
			r.Post("/revert", a.handleRevert)
			r.Post("/restore/{version}", a.handleRestore)
			r.Post("/reset", a.handleReset)
			r.Get("/status", a.handleStatus)
			r.Get("/versions", a.handleVersions)
			r.Get("/history", a.handleHistory)
			r.Get("/render", a.handleEditorRender)
			r.Get("/preview", a.handlePreview)
			r.Get("/export/markdown", a.handleMarkdownExport)
		})
	})
	r.Get("/storefront/{storeID}/{pageType}", a.handleStorefront)
}

func (a *API) handleListPages(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	pages, err := a.svc.Pages(r.Context(), storeID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	statuses := make([]*Status, 0, len(pages))
	for _, pt := range pages {
		st, err := a.svc.Status(r.Context(), storeID, pt)
		if err != nil {
			a.writeError(w, err)
			return
		}
		statuses = append(statuses, st)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": statuses})
}

func (a *API) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	doc, err := a.svc.Draft(r.Context(), chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	var doc slot.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document: " + err.Error()})
		return
	}
	doc.StoreID = chi.URLParam(r, "storeID")
	doc.PageType = chi.URLParam(r, "pageType")
	if err := a.svc.SaveDraft(r.Context(), &doc); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (a *API) handleAddSlot(w http.ResponseWriter, r *http.Request) {
	var sl slot.Slot
	if err := json.NewDecoder(r.Body).Decode(&sl); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid slot: " + err.Error()})
		return
	}
	doc, err := a.svc.AddSlot(r.Context(), chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"), &sl)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	var sl slot.Slot
	if err := json.NewDecoder(r.Body).Decode(&sl); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid slot: " + err.Error()})
		return
	}
	sl.ID = chi.URLParam(r, "slotID")
	doc, err := a.svc.UpdateSlot(r.Context(), chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"), &sl)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	removed, err := a.svc.DeleteSlot(r.Context(),
		chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"), chi.URLParam(r, "slotID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (a *API) handleMoveSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetID string `json:"target_id"`
		Position string `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request: " + err.Error()})
		return
	}
	doc, err := a.svc.MoveSlot(r.Context(),
		chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"),
		chi.URLParam(r, "slotID"), req.TargetID, grid.DropPosition(req.Position))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleResizeSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ColSpan int `json:"col_span"`
		RowSpan int `json:"row_span"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request: " + err.Error()})
		return
	}
	doc, err := a.svc.ResizeSlot(r.Context(),
		chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"),
		chi.URLParam(r, "slotID"), req.ColSpan, req.RowSpan)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handlePublish(w http.ResponseWriter, r *http.Request) {
	version, err := a.svc.Publish(r.Context(),
		chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"), kit.GetUserID(r.Context()))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"version": version})
}

func (a *API) handleRevert(w http.ResponseWriter, r *http.Request) {
	doc, err := a.svc.Revert(r.Context(), chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleRestore(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version"})
		return
	}
	doc, err := a.svc.RestoreVersion(r.Context(),
		chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"), version)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	doc, err := a.svc.Reset(r.Context(), chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Status(r.Context(), chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleVersions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	versions, err := a.svc.Versions(r.Context(),
		chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := a.svc.History(r.Context(),
		chi.URLParam(r, "storeID"), chi.URLParam(r, "pageType"), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleEditorRender renders the current draft with editor instrumentation.
// Query params: view_mode, viewport, preview=1 for uninstrumented output.
func (a *API) handleEditorRender(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	pageType := chi.URLParam(r, "pageType")
	doc, err := a.svc.Draft(r.Context(), storeID, pageType)
	if err != nil {
		a.writeError(w, err)
		return
	}
	rc := registry.Context{
		StoreID:  storeID,
		PageType: pageType,
		ViewMode: r.URL.Query().Get("view_mode"),
		Viewport: parseViewport(r.URL.Query().Get("viewport")),
		Mode:     registry.ModeEditor,
		Preview:  r.URL.Query().Get("preview") == "1",
	}
	a.writeHTML(w, doc, rc)
}

// handlePreview renders the current draft as a standalone document for the
// editor's responsive preview iframe: storefront output, constrained to the
// requested viewport's width, with the shell's stylesheets.
func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	pageType := chi.URLParam(r, "pageType")
	doc, err := a.svc.Draft(r.Context(), storeID, pageType)
	if err != nil {
		a.writeError(w, err)
		return
	}
	vp := parseViewport(r.URL.Query().Get("viewport"))
	rc := registry.Context{
		StoreID:  storeID,
		PageType: pageType,
		ViewMode: r.URL.Query().Get("view_mode"),
		Viewport: vp,
		Mode:     registry.ModeEditor,
		Preview:  true,
	}
	body, err := a.renderer.RenderDocument(doc, rc)
	if err != nil {
		a.writeError(w, err)
		return
	}
	full, err := a.preview.BuildDocument(pageType, body, vp)
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(full))
}

// handleMarkdownExport renders the page (draft via ?source=draft, published
// otherwise) and converts it to markdown.
func (a *API) handleMarkdownExport(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	pageType := chi.URLParam(r, "pageType")
	doc, err := a.svc.documentForRender(r.Context(), storeID, pageType, r.URL.Query().Get("source"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	rc := registry.Context{
		StoreID:  storeID,
		PageType: pageType,
		ViewMode: r.URL.Query().Get("view_mode"),
		Viewport: slot.ViewportDesktop,
		Mode:     registry.ModeView,
	}
	html, err := a.renderer.RenderDocument(doc, rc)
	if err != nil {
		a.writeError(w, err)
		return
	}
	md, err := preview.Markdown(string(html))
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(md))
}

// handleStorefront renders the published layout (or the default template for
// an unpublished page) in view mode.
func (a *API) handleStorefront(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	pageType := chi.URLParam(r, "pageType")
	doc, _, err := a.svc.Storefront(r.Context(), storeID, pageType)
	if err != nil {
		a.writeError(w, err)
		return
	}
	rc := registry.Context{
		StoreID:  storeID,
		PageType: pageType,
		ViewMode: r.URL.Query().Get("view_mode"),
		Viewport: parseViewport(r.URL.Query().Get("viewport")),
		Mode:     registry.ModeView,
	}
	a.writeHTML(w, doc, rc)
}

// handleRefresh long-polls for a change signal, so editor sessions pick up
// concurrent edits. Answers 200 on signal, 204 on timeout.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if a.notifier == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ch, cancel := a.notifier.Subscribe()
	defer cancel()

	ctx, stop := context.WithTimeout(r.Context(), 25*time.Second)
	defer stop()
	select {
	case <-ch:
		writeJSON(w, http.StatusOK, map[string]bool{"changed": true})
	case <-ctx.Done():
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) writeHTML(w http.ResponseWriter, doc *slot.Document, rc registry.Context) {
	out, err := a.renderer.RenderDocument(doc, rc)
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, slot.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNoPublished):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrInvalidDocument), errors.Is(err, grid.ErrInvalidDrop):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		a.logger.Error("layout api error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseViewport(s string) slot.Viewport {
	switch s {
	case "mobile":
		return slot.ViewportMobile
	case "tablet":
		return slot.ViewportTablet
	default:
		return slot.ViewportDesktop
	}
}
