package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/evidentia/policyrag/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on /api/ask.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// answerer is the interface handleAsk calls to run a question through the
// pipeline. *pipeline.Pipeline satisfies it; tests inject a fake.
type answerer interface {
	// Answer runs the question and returns the complete response.
	Answer(ctx context.Context, question string) (*rag.Response, error)

	// AnswerStream runs the question, writing answer tokens to w as they
	// arrive, and returns the complete response.
	AnswerStream(ctx context.Context, question string, w io.Writer) (*rag.Response, error)
}

// Server is the HTTP server that exposes the question-answering pipeline.
type Server struct {
	// pipeline answers questions; set from the real pipeline in production,
	// overridden by a fake in tests.
	pipeline answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// errorKind classifies a request failure for the client.
type errorKind string

const (
	// kindBadRequest marks malformed client input.
	kindBadRequest errorKind = "bad_request"
	// kindConfig marks a broken deployment (wrong model, dimension mismatch).
	kindConfig errorKind = "config"
	// kindTransient marks a retryable backend failure.
	kindTransient errorKind = "transient"
	// kindDataIntegrity marks a corrupt or inconsistent index.
	kindDataIntegrity errorKind = "data_integrity"
)

// errorBody is the JSON error envelope for all non-2xx API responses.
type errorBody struct {
	Error struct {
		Kind    errorKind `json:"kind"`
		Message string    `json:"message"`
	} `json:"error"`
}
