// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes recommendations over HTTP.
//
// The service is stateless: each POST /recommend carries a query and gets
// back the generated answer. The index is opened once by the caller and
// shared by every request.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/poiesic/advisor/search"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Recommender produces a recommendation for a free-text query.
type Recommender interface {
	Recommend(ctx context.Context, query string) (*search.Recommendation, error)
}

// RecommendRequest is the body of POST /recommend.
type RecommendRequest struct {
	Query string `json:"query"`
}

// RecommendResponse is the reply to a successful POST /recommend.
type RecommendResponse struct {
	Answer string `json:"answer"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Handler serves the recommendation API.
type Handler struct {
	recommender Recommender
	logger      *slog.Logger
	mux         *http.ServeMux

	// Queries are answered one at a time.
	mu sync.Mutex
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger == nil {
			logger = slog.Default()
		}
		h.logger = logger.With("component", "server")
	}
}

// NewHandler builds the API around recommender.
func NewHandler(recommender Recommender, opts ...Option) *Handler {
	h := &Handler{
		recommender: recommender,
		logger:      slog.Default().With("component", "server"),
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.mux.HandleFunc("POST /recommend", h.recommend)
	h.mux.HandleFunc("GET /health", h.health)
	return h
}

// Routes returns the API wrapped in the standard middleware chain.
func (h *Handler) Routes() http.Handler {
	return Chain(h.mux, Recover(h.logger), Logger(h.logger), OTel("advisor"))
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}

	rec, err := h.answer(r.Context(), req.Query)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, search.ErrEmptyQuery) {
			status = http.StatusBadRequest
		} else {
			h.logger.Error("recommendation failed", "err", err)
		}
		writeJSON(w, status, ErrorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, RecommendResponse{Answer: rec.Text})
}

func (h *Handler) answer(ctx context.Context, query string) (*search.Recommendation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recommender.Recommend(ctx, query)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve answers requests on ln until ctx is done, then shuts down
// gracefully. A clean shutdown returns nil.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
