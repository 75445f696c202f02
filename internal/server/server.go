// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/internsift/internal/classify"
	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/metrics"
	"github.com/FranksOps/internsift/internal/pipeline"
)

// StatusClientClosedRequest is logged when the caller goes away before the
// pipeline finishes. Nothing is written to the connection.
const StatusClientClosedRequest = 499

// Config wires a Handler.
type Config struct {
	Orchestrator *pipeline.Orchestrator
	// Policies resolves the policy parameter. Defaults to the built-ins.
	Policies classify.Policies
	// Policy is used when a request names none.
	Policy string
	Logger *slog.Logger
}

// Handler serves /jobs, /healthz and /metrics.
type Handler struct {
	cfg    Config
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler builds the route table.
func NewHandler(cfg Config) *Handler {
	if cfg.Policies == nil {
		cfg.Policies = classify.DefaultPolicies()
	}
	if cfg.Policy == "" {
		cfg.Policy = classify.PolicyLoose
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{cfg: cfg, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /jobs", h.jobs)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	h.mux.Handle("GET /metrics", metrics.Handler())
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type jobsResponse struct {
	Count    int               `json:"count"`
	Listings []listing.Listing `json:"listings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) jobs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params := r.URL.Query()

	q := listing.Query{
		Terms:    params.Get("q"),
		Location: params.Get("location"),
	}
	if raw := params.Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("max must be a positive integer, got %q", raw))
			return
		}
		q.MaxResults = n
	}

	spec, err := h.roleSpec(params.Get("policy"), params.Get("include"), params.Get("category"), params.Has("category"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sources := splitList(params["source"]...)
	var out []listing.Listing
	switch len(sources) {
	case 0:
		out, err = h.cfg.Orchestrator.Run(r.Context(), q, pipeline.WithRoleSpec(spec))
	case 1:
		q.Source = listing.ParseSource(sources[0])
		out, err = h.cfg.Orchestrator.Run(r.Context(), q, pipeline.WithRoleSpec(spec))
	default:
		srcs := make([]listing.Source, len(sources))
		for i, s := range sources {
			srcs[i] = listing.ParseSource(s)
		}
		out, err = h.cfg.Orchestrator.RunMany(r.Context(), q, srcs, pipeline.WithRoleSpec(spec))
	}

	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrInvalidSource), errors.Is(err, listing.ErrInvalidQuery):
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.Canceled) || r.Context().Err() != nil:
		h.logger.Info("client closed request",
			"status", StatusClientClosedRequest,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
		return
	default:
		h.logger.Error("jobs request failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if out == nil {
		out = []listing.Listing{}
	}
	h.writeJSON(w, http.StatusOK, jobsResponse{Count: len(out), Listings: out})
	h.logger.Debug("jobs served", "count", len(out), "duration", time.Since(start))
}

// roleSpec resolves the filter for one request. An explicit include list
// replaces the policy; categories replace the policy's categories whenever
// the parameter is present, even if empty.
func (h *Handler) roleSpec(policy, include, category string, hasCategory bool) (classify.RoleSpec, error) {
	name := policy
	if name == "" {
		name = h.cfg.Policy
	}
	spec, err := h.cfg.Policies.Lookup(name)
	if err != nil {
		return classify.RoleSpec{}, err
	}

	if inc := splitList(include); len(inc) > 0 {
		spec = classify.RoleSpec{Name: "custom", Include: inc}
		hasCategory = true
	}
	if hasCategory {
		spec.Categories = splitList(category)
	}
	return spec.Normalized(), nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("write response failed", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// splitList flattens repeated and comma separated values, dropping blanks.
func splitList(values ...string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Server is an http.Server bound to a Handler.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New creates a server listening on addr.
func New(addr string, h http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
