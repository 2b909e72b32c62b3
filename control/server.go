// Package control exposes the running defense engine and the settings
// service over a local HTTP API. Every endpoint forwards to a service
// registered in the connectivity router, so the same operations remain
// callable in-process, over HTTP, or through MCP.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mugenyume/mugenblock/connectivity"
	"github.com/mugenyume/mugenblock/shield"
)

// Config configures the control server.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:7311".
	Addr string `yaml:"addr"`
	// TokenHash is the bcrypt hash of the admin token. Empty disables auth,
	// which is only acceptable on a loopback address.
	TokenHash string `yaml:"token_hash"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:7311"
	}
}

// Server is the control API server.
type Server struct {
	cfg    Config
	router *connectivity.Router
	logger *slog.Logger
	http   *http.Server
}

// New builds a control server over the given connectivity router.
func New(cfg Config, router *connectivity.Router, logger *slog.Logger) *Server {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, router: router, logger: logger}
	s.http = &http.Server{Addr: cfg.Addr, Handler: s.routes()}
	return s
}

// ListenAndServe blocks serving the API.
func (s *Server) ListenAndServe() error {
	s.logger.Info("control: listening", "addr", s.cfg.Addr)
	return s.http.ListenAndServe()
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireToken(s.cfg.TokenHash))

		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/export", s.forward("settings_export", nil))
			r.Post("/import", s.forwardBody("settings_import"))
			r.Delete("/", s.forward("settings_clear", nil))

			r.Route("/{site}", func(r chi.Router) {
				r.Get("/", s.forwardSite("settings_get"))
				r.Put("/mode", s.forwardSiteBody("settings_set_mode"))
				r.Put("/toggle", s.forwardSiteBody("settings_toggle"))
				r.Post("/relax", s.forwardSiteBody("settings_relax"))
				r.Post("/breakage", s.forwardSite("settings_breakage"))
			})
		})

		r.Route("/api/engine", func(r chi.Router) {
			r.Get("/stats", s.forward("engine_stats", nil))
			r.Post("/sweep", s.forward("engine_sweep", nil))
		})
	})

	return r
}

// forward returns a handler that calls a connectivity service with a fixed
// payload.
func (s *Server) forward(service string, payload []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.call(w, r, service, payload)
	}
}

// forwardBody forwards the raw request body as the service payload.
func (s *Server) forwardBody(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.call(w, r, service, body)
	}
}

// forwardSite builds a {"site": ...} payload from the URL.
func (s *Server) forwardSite(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := json.Marshal(map[string]string{"site": chi.URLParam(r, "site")})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.call(w, r, service, payload)
	}
}

// forwardSiteBody merges the URL site into the request body object.
func (s *Server) forwardSiteBody(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		fields["site"] = chi.URLParam(r, "site")
		payload, err := json.Marshal(fields)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.call(w, r, service, payload)
	}
}

func (s *Server) call(w http.ResponseWriter, r *http.Request, service string, payload []byte) {
	resp, err := s.router.Call(r.Context(), service, payload)
	if err != nil {
		shield.GetLogger(r.Context()).Error("control: call failed",
			"service", service, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("%s: %w", service, err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
