// Package embedder turns text into dense vectors by calling embedding
// backends (OpenAI, Azure OpenAI, Ollama) over plain HTTP, keeping the
// dependency surface to the standard library. The factory wraps every
// embedder it builds so output vectors come back L2-normalized, which lets
// the vector index treat inner product as cosine similarity.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// postJSON sends in as a JSON POST body to url with the given extra headers,
// decodes the response body into out, and returns the HTTP status code. The
// body is decoded even on non-2xx statuses so callers can surface the
// backend's own error message.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) (int, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// statusOK reports whether status is a 2xx code.
func statusOK(status int) bool { return status >= 200 && status < 300 }
