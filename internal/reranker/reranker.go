// Package reranker rescores retrieval candidates with a cross-encoder
// relevance model served over HTTP. A cross-encoder reads the query and a
// document together, which separates genuinely relevant passages from ones
// that are merely close in embedding space. The wire format follows the
// Cohere-style rerank API (also served by TEI and local cross-encoder
// sidecars): POST a query plus documents, receive indexed relevance scores.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/evidentia/policyrag/internal/rag"
)

// DefaultModel is the cross-encoder model requested when none is configured.
const DefaultModel = "cross-encoder/ms-marco-MiniLM-L-6-v2"

// HTTPReranker implements rag.Reranker against a rerank HTTP endpoint.
// It is safe for concurrent use.
type HTTPReranker struct {
	// baseURL is the rerank service base URL (e.g. "http://localhost:8081").
	baseURL string
	// apiKey is the optional Bearer token for hosted rerank APIs.
	apiKey string
	// model is the cross-encoder model name sent with every request.
	model string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// Config holds the settings for constructing an HTTPReranker.
type Config struct {
	// BaseURL is the rerank service base URL.
	BaseURL string
	// APIKey is the optional Bearer token (empty for local sidecars).
	APIKey string
	// Model is the cross-encoder model name (default: DefaultModel).
	Model string
}

// New constructs an HTTPReranker from the given config.
func New(cfg *Config) *HTTPReranker {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &HTTPReranker{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// rerankRequest is the JSON body sent to the rerank endpoint.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

// rerankResponse is the JSON body returned from the rerank endpoint.
type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Rerank scores every (query, chunk) pair with the cross-encoder, attaches
// the relevance score to each candidate, orders the set by descending
// rerank score (retrieval order breaks ties) and truncates to topN.
// An empty candidate set is returned as-is without calling the service.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, chunks []rag.ScoredChunk, topN int) ([]rag.ScoredChunk, error) {
	if len(chunks) == 0 {
		return []rag.ScoredChunk{}, nil
	}

	docs := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = c.Text
	}

	scores, err := r.score(ctx, query, docs)
	if err != nil {
		return nil, err
	}

	out := make([]rag.ScoredChunk, len(chunks))
	copy(out, chunks)
	for i := range out {
		out[i].RerankScore = scores[i]
		out[i].Reranked = true
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})

	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	return out, nil
}

// score calls the rerank endpoint and returns one relevance score per
// document, in document order.
func (r *HTTPReranker) score(ctx context.Context, query string, docs []string) ([]float64, error) {
	payload, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docs,
	})
	if err != nil {
		return nil, fmt.Errorf("reranker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("reranker: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reranker: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("reranker: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("reranker: %s", msg)
	}

	scores := make([]float64, len(docs))
	seen := make([]bool, len(docs))
	for _, res := range result.Results {
		if res.Index < 0 || res.Index >= len(docs) {
			return nil, fmt.Errorf("reranker: index %d out of range [0, %d)", res.Index, len(docs))
		}
		scores[res.Index] = res.RelevanceScore
		seen[res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("reranker: no score returned for document %d", i)
		}
	}

	return scores, nil
}
