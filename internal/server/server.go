// Package server implements the HTTP server that exposes the
// question-answering pipeline as a REST/SSE API with Prometheus metrics,
// liveness and readiness probes, per-IP rate limiting and optional Bearer
// authentication. The server is started by the `policyrag serve` CLI
// command.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evidentia/policyrag/internal/logging"
	"github.com/evidentia/policyrag/internal/rag"
)

// New constructs a Server from the provided pipeline and config. Metrics
// are registered against reg; pass a fresh prometheus.NewRegistry in tests.
func New(p answerer, cfg *Config, reg *prometheus.Registry) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		pipeline: p,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("API authentication disabled: POLICYRAG_API_KEY is not set")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask",
		authMiddleware(cfg.APIKey, rl.middleware(http.HandlerFunc(s.handleAsk))))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. The default mode runs the pipeline and
// returns the full response as JSON. With ?stream=1 the answer is streamed
// as Server-Sent Events, followed by a meta event carrying sources and
// metrics and a done event.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, kindBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, kindBadRequest, "question is required")
		return
	}

	if r.URL.Query().Get("stream") == "1" {
		s.askStream(w, r, req.Question)
		return
	}

	start := time.Now()
	resp, err := s.pipeline.Answer(r.Context(), req.Question)
	if err != nil {
		s.metrics.observeAsk("error", time.Since(start))
		status, kind := classifyError(err)
		logging.FromContext(r.Context()).Error("ask failed", slog.Any("error", err))
		s.writeError(w, status, kind, err.Error())
		return
	}
	s.metrics.observeAsk("ok", time.Since(start))
	s.metrics.observeResponse(resp)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.FromContext(r.Context()).Error("ask encode error", slog.Any("error", err))
	}
}

// askStream answers the question over SSE: answer tokens arrive as data
// events, then one meta event with the full response envelope, then done.
func (s *Server) askStream(w http.ResponseWriter, r *http.Request, question string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, kindConfig, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.metrics.askActiveStreams.Inc()
	defer s.metrics.askActiveStreams.Dec()

	sw := &sseWriter{w: w, flusher: flusher}

	start := time.Now()
	resp, err := s.pipeline.AnswerStream(r.Context(), question, sw)
	if err != nil {
		s.metrics.observeAsk("error", time.Since(start))
		logging.FromContext(r.Context()).Error("ask stream failed", slog.Any("error", err))
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
		flusher.Flush()
		return
	}
	s.metrics.observeAsk("ok", time.Since(start))
	s.metrics.observeResponse(resp)

	// The meta event carries everything the client has not already seen
	// as tokens: citations, metrics and the optional insight.
	meta, err := json.Marshal(resp)
	if err == nil {
		fmt.Fprintf(w, "event: meta\ndata: %s\n\n", meta)
	}
	fmt.Fprintf(w, "event: done\ndata: [DONE]\n\n")
	flusher.Flush()
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeError sends the JSON error envelope with the given status and kind.
func (s *Server) writeError(w http.ResponseWriter, status int, kind errorKind, msg string) {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = msg

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// classifyError maps a pipeline failure to an HTTP status and error kind.
// Dimension mismatches are deployment mistakes; a missing or corrupt index
// needs operator intervention; anything else is assumed retryable.
func classifyError(err error) (int, errorKind) {
	switch {
	case errors.Is(err, rag.ErrDimensionMismatch):
		return http.StatusInternalServerError, kindConfig
	case errors.Is(err, rag.ErrIndexNotFound), errors.Is(err, rag.ErrIndexCorrupt):
		return http.StatusServiceUnavailable, kindDataIntegrity
	default:
		return http.StatusBadGateway, kindTransient
	}
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event data frames.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// Write formats p as one or more SSE data lines and flushes to the client.
// Each newline in p is prefixed with "data: " so multi-line chunks never
// break the SSE frame boundary.
func (s *sseWriter) Write(p []byte) (n int, err error) {
	chunk := strings.TrimRight(string(bytes.Clone(p)), "\n")
	lines := strings.Split(chunk, "\n")
	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err = fmt.Fprint(s.w, buf.String()); err != nil {
		return 0, err
	}
	s.flusher.Flush()
	return len(p), nil
}
