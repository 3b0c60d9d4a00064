// Package server exposes the workflows over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/shopflow/graph"
	"github.com/dshills/shopflow/graph/store"
	"github.com/dshills/shopflow/internal/app"
)

// Workflows resolves a workflow by name. *app.App implements it.
type Workflows interface {
	Runner(name string) (app.Runner, error)
}

// Server handles the thread API.
type Server struct {
	workflows Workflows
	logger    *slog.Logger
}

type messageRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler returns the routes:
//
//	GET    /healthz
//	GET    /metrics
//	POST   /v1/{workflow}/threads
//	GET    /v1/{workflow}/threads
//	GET    /v1/{workflow}/threads/{id}
//	DELETE /v1/{workflow}/threads/{id}
//	POST   /v1/{workflow}/threads/{id}/messages
func NewHandler(workflows Workflows, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{workflows: workflows, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/{workflow}/threads", func(r chi.Router) {
		r.Post("/", s.createThread)
		r.Get("/", s.listThreads)
		r.Get("/{id}", s.getThread)
		r.Delete("/{id}", s.deleteThread)
		r.Post("/{id}/messages", s.postMessage)
	})
	return r
}

func (s *Server) runner(w http.ResponseWriter, r *http.Request) (app.Runner, bool) {
	run, err := s.workflows.Runner(chi.URLParam(r, "workflow"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return run, true
}

// createThread allocates a thread id. A body with text also sends the
// first message and answers with its turn.
func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
	}

	id := uuid.NewString()
	if req.Text == "" {
		writeJSON(w, http.StatusCreated, map[string]string{"thread_id": id})
		return
	}
	s.send(r.Context(), w, run, id, req.Text, http.StatusCreated)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}
	s.send(r.Context(), w, run, chi.URLParam(r, "id"), req.Text, http.StatusOK)
}

func (s *Server) send(ctx context.Context, w http.ResponseWriter, run app.Runner, threadID, text string, status int) {
	res, err := run.Send(ctx, threadID, text)
	if err != nil {
		s.logger.Warn("turn failed", "workflow", run.Name(), "thread", threadID, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, status, res.Turn)
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner(w, r)
	if !ok {
		return
	}
	cp, err := run.Inspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner(w, r)
	if !ok {
		return
	}
	if err := run.Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner(w, r)
	if !ok {
		return
	}
	ids, err := run.Threads(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"threads": ids})
}

func statusFor(err error) int {
	var ee *graph.EngineError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrListUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &ee) && ee.Code == graph.CodeLockFailed:
		return http.StatusConflict
	case errors.As(err, &ee) && ee.Code == graph.CodeInvalidGraph:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
