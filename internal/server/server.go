// Package server is the local backend proxy: it forwards browser-origin
// tool requests to the CRM API (through the shared request scheduler, so
// proxied traffic obeys the same pacing as CLI traffic) and to the
// completion model, keeping credentials off the client.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/dataquality-cli/internal/ai"
	"github.com/sells-group/dataquality-cli/internal/scheduler"
)

// Config wires the proxy's dependencies.
type Config struct {
	// Token authorizes proxied CRM requests.
	Token string

	// HubSpotBaseURL defaults to the public API.
	HubSpotBaseURL string

	// Scheduler paces proxied CRM requests. Required.
	Scheduler *scheduler.Scheduler

	// Completer serves /api/complete. Optional; the route returns 503
	// when absent.
	Completer ai.Completer

	// HTTPClient overrides the outbound client (for testing).
	HTTPClient *http.Client
}

// Handler holds proxy state shared by the routes.
type Handler struct {
	token     string
	baseURL   string
	sched     *scheduler.Scheduler
	completer ai.Completer
	http      *http.Client
}

// NewHandler creates a Handler from cfg.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		token:     cfg.Token,
		baseURL:   strings.TrimSuffix(cfg.HubSpotBaseURL, "/"),
		sched:     cfg.Scheduler,
		completer: cfg.Completer,
		http:      cfg.HTTPClient,
	}
	if h.baseURL == "" {
		h.baseURL = "https://api.hubapi.com"
	}
	if h.http == nil {
		h.http = &http.Client{Timeout: 30 * time.Second}
	}
	return h
}

// NewRouter creates a chi router with the proxy routes mounted.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.Health)
	r.Post("/api/hubspot", h.ProxyHubSpot)
	r.Post("/api/complete", h.Complete)

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allowedMethods limits what the proxy will forward.
var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// ProxyHubSpot forwards one CRM request described by the JSON body
// {path, method, body} and relays the upstream status and body verbatim.
func (h *Handler) ProxyHubSpot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path   string          `json:"path"`
		Method string          `json:"method"`
		Body   json.RawMessage `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !strings.HasPrefix(req.Path, "/crm/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path must start with /crm/"})
		return
	}
	method := strings.ToUpper(req.Method)
	if !allowedMethods[method] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported method"})
		return
	}

	resp, err := h.sched.Do(r.Context(), func(ctx context.Context) (*scheduler.Response, error) {
		var reader io.Reader
		if len(req.Body) > 0 {
			reader = bytes.NewReader(req.Body)
		}
		out, err := http.NewRequestWithContext(ctx, method, h.baseURL+req.Path, reader)
		if err != nil {
			return nil, err
		}
		out.Header.Set("Authorization", "Bearer "+h.token)
		if reader != nil {
			out.Header.Set("Content-Type", "application/json")
		}

		upstream, err := h.http.Do(out)
		if err != nil {
			return nil, err
		}
		defer upstream.Body.Close()

		raw, err := io.ReadAll(upstream.Body)
		if err != nil {
			return nil, err
		}
		return &scheduler.Response{
			StatusCode: upstream.StatusCode,
			Header:     upstream.Header,
			Body:       raw,
		}, nil
	})
	if err != nil {
		zap.L().Error("proxy request failed", zap.String("path", req.Path), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream request failed"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// Complete runs one prompt through the completion model.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	if h.completer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "completion model not configured"})
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
		return
	}

	reply, err := h.completer.Complete(r.Context(), req.Prompt)
	if err != nil {
		zap.L().Error("completion failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "completion request failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
