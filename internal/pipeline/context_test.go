package pipeline

import (
	"testing"

	"github.com/evidentia/policyrag/internal/rag"
)

func TestBuildContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks []rag.ScoredChunk
		want   string
	}{
		{
			name: "empty",
			want: "",
		},
		{
			name:   "single chunk",
			chunks: []rag.ScoredChunk{{Chunk: rag.Chunk{Text: "alpha"}}},
			want:   "- alpha",
		},
		{
			name: "bullets separated by blank lines",
			chunks: []rag.ScoredChunk{
				{Chunk: rag.Chunk{Text: "alpha"}},
				{Chunk: rag.Chunk{Text: "beta"}},
			},
			want: "- alpha\n\n- beta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := BuildContext(tt.chunks); got != tt.want {
				t.Errorf("BuildContext = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatSources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks []rag.ScoredChunk
		want   string
	}{
		{
			name: "empty",
			want: "",
		},
		{
			name: "retrieval score when not reranked",
			chunks: []rag.ScoredChunk{
				{Chunk: rag.Chunk{Meta: rag.Metadata{PageNumber: 4}}, Score: 0.8765},
			},
			want: "[1] Page 4 (score=0.877)",
		},
		{
			name: "rerank score supersedes retrieval score",
			chunks: []rag.ScoredChunk{
				{
					Chunk:       rag.Chunk{Meta: rag.Metadata{PageNumber: 2}},
					Score:       0.6,
					RerankScore: 0.912,
					Reranked:    true,
				},
			},
			want: "[1] Page 2 (score=0.912)",
		},
		{
			name: "missing page renders sentinel",
			chunks: []rag.ScoredChunk{
				{Chunk: rag.Chunk{}, Score: 0.5},
			},
			want: "[1] Page N/A (score=0.500)",
		},
		{
			name: "numbering is 1-based in chunk order",
			chunks: []rag.ScoredChunk{
				{Chunk: rag.Chunk{Meta: rag.Metadata{PageNumber: 9}}, Score: 0.3},
				{Chunk: rag.Chunk{Meta: rag.Metadata{PageNumber: 1}}, Score: 0.2},
			},
			want: "[1] Page 9 (score=0.300)\n[2] Page 1 (score=0.200)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatSources(tt.chunks); got != tt.want {
				t.Errorf("FormatSources = %q, want %q", got, tt.want)
			}
		})
	}
}
