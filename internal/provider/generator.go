package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatGenerator adapts an eino chat model to the rag.Generator interface.
// The prompt it receives is fully assembled by the caller; it is sent as a
// single user message.
type ChatGenerator struct {
	model model.BaseChatModel
}

// NewGenerator wraps a chat model as a ChatGenerator.
func NewGenerator(m model.BaseChatModel) (*ChatGenerator, error) {
	if m == nil {
		return nil, fmt.Errorf("provider: chat model must not be nil")
	}
	return &ChatGenerator{model: m}, nil
}

// Generate returns the complete answer text for the prompt.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("provider: generation failed: %w", err)
	}
	return msg.Content, nil
}

// Stream writes answer tokens to w as they arrive and returns the
// accumulated answer. Cancelling ctx stops consumption mid-stream; the
// partial answer written so far is returned alongside the context error.
func (g *ChatGenerator) Stream(ctx context.Context, prompt string, w io.Writer) (string, error) {
	sr, err := g.model.Stream(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("provider: stream failed: %w", err)
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return buf.String(), fmt.Errorf("provider: stream cancelled: %w", err)
		}

		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return buf.String(), fmt.Errorf("provider: stream receive failed: %w", err)
		}
		if msg.Content == "" {
			continue
		}

		buf.WriteString(msg.Content)
		if _, err := io.WriteString(w, msg.Content); err != nil {
			return buf.String(), fmt.Errorf("provider: stream write failed: %w", err)
		}
	}

	return buf.String(), nil
}
