// Package tracing attaches an optional Langfuse observer to the eino
// callback chain so every chat-model call in the answer, insight, and
// evaluation stages shows up as a trace.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is used when LANGFUSE_HOST is unset; it matches a local
// docker-compose Langfuse deployment.
const defaultHost = "http://localhost:3000"

// Setup reads LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY, and LANGFUSE_HOST
// and, when the key pair is present, returns a callback handler plus a flush
// function callers must run before exit so buffered traces are delivered.
// Without the key pair tracing stays off and the third return value is false.
func Setup() (callbacks.Handler, func(), bool) {
	cfg := langfuse.Config{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, nil, false
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}

	handler, flush := langfuse.NewLangfuseHandler(&cfg)
	return handler, flush, true
}
