// Package api provides HTTP handlers for the resolver API.
package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"embed-resolver/pkg/appctx"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/types"
)

// maxBodySize caps the JSON body accepted by /update-url.
const maxBodySize = 64 << 10

var playerPage = template.Must(template.New("player").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Video Player</title>
</head>
<body>
    <iframe src="{{.}}" width="800" height="450" frameborder="0" allowfullscreen></iframe>
</body>
</html>
`))

// Handlers contains all API handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
	now func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("api"),
		now: time.Now,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /update-url", h.handleUpdateURL)
	mux.HandleFunc("GET /current-url", h.handleCurrentURL)

	mux.HandleFunc("GET /info", h.handleInfo)
	mux.HandleFunc("GET /cache", h.handleCache)
	mux.HandleFunc("GET /favicon.ico", h.handleFavicon)
}

// handleUpdateURL configures the source URL.
func (h *Handlers) handleUpdateURL(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateURLRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.NewURL == "" {
		h.writeError(w, http.StatusBadRequest, "newUrl is required")
		return
	}

	if err := h.ctx.Configs.SetConfiguredURL(r.Context(), req.NewURL); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.UpdateURLResponse{
		Message: "URL updated",
		URL:     req.NewURL,
	})
}

// handleCurrentURL resolves the configured source URL.
func (h *Handlers) handleCurrentURL(w http.ResponseWriter, r *http.Request) {
	iframeURL, err := h.ctx.Resolver.ResolveCurrent(r.Context(), h.now())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, types.CurrentURLResponse{IframeURL: iframeURL})
}

// handleIndex renders a page embedding the resolved player. Any failure
// sends the client to /current-url, which reports the error as JSON.
func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	iframeURL, err := h.ctx.Resolver.ResolveCurrent(r.Context(), h.now())
	if err != nil {
		logging.FromContextOr(r.Context(), h.log).Warn("landing page falling back to /current-url", "error", err)
		http.Redirect(w, r, "/current-url", http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := playerPage.Execute(w, iframeURL); err != nil {
		h.log.Error("rendering landing page", "error", err)
	}
}

// handleInfo reports service status.
func (h *Handlers) handleInfo(w http.ResponseWriter, r *http.Request) {
	configured, err := h.ctx.Configs.GetConfiguredURL(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.InfoResponse{
		Status:        "ok",
		Version:       h.ctx.Version,
		Backend:       h.ctx.Resolver.Backend(),
		ConfiguredURL: configured,
		SourcePrefix:  h.ctx.Configs.Prefix(),
	})
}

// handleCache returns the raw cache document, expired entries included.
func (h *Handlers) handleCache(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ctx.Cache.Entries(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handlers) handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotConfigured):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure logs err and writes it as a JSON error response.
func (h *Handlers) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logging.FromContextOr(r.Context(), h.log)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err, "status", status)
	} else {
		log.Info("request rejected", "error", err, "status", status)
	}
	h.writeError(w, status, err.Error())
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
