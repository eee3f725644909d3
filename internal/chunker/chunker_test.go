package chunker

import (
	"strings"
	"testing"

	"github.com/evidentia/policyrag/internal/rag"
	"github.com/evidentia/policyrag/internal/token"
)

// words returns text that token.Estimate counts as exactly n tokens.
func words(n int) string {
	return strings.TrimSpace(strings.Repeat("a ", n))
}

func doc(tokens, page int) rag.Document {
	return rag.Document{
		Text: words(tokens),
		Meta: rag.Metadata{PageNumber: page, Category: "narrative"},
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	t.Parallel()

	ch := New(500, 150)
	if got := ch.Chunk(nil); len(got) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(got))
	}
	if got := ch.Chunk([]rag.Document{}); len(got) != 0 {
		t.Errorf("expected no chunks for empty slice, got %d", len(got))
	}
}

func TestChunk_SingleShortDocumentDropped(t *testing.T) {
	t.Parallel()

	ch := New(500, 150)
	got := ch.Chunk([]rag.Document{doc(40, 1)})
	if len(got) != 0 {
		t.Errorf("expected sub-floor fragment to be dropped, got %d chunks", len(got))
	}
}

func TestChunk_AdjacentDocumentsMerge(t *testing.T) {
	t.Parallel()

	// 160 + 50 tokens with max=500 must merge into one chunk of 210,
	// never split.
	ch := New(500, 150)
	got := ch.Chunk([]rag.Document{doc(160, 3), doc(50, 4)})

	if len(got) != 1 {
		t.Fatalf("expected 1 merged chunk, got %d", len(got))
	}
	if n := token.Estimate(got[0].Text); n != 160+50 {
		t.Errorf("merged chunk token length = %d, want 210", n)
	}
	// Metadata comes from the first contributing document.
	if got[0].Meta.PageNumber != 3 {
		t.Errorf("chunk metadata page = %d, want 3", got[0].Meta.PageNumber)
	}
}

func TestChunk_OverflowEmitsBuffer(t *testing.T) {
	t.Parallel()

	// 300 then 300: merging would hit 601 > 500, so the first buffer is
	// emitted and the second is flushed at end-of-stream.
	ch := New(500, 150)
	got := ch.Chunk([]rag.Document{doc(300, 1), doc(300, 2)})

	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].Meta.PageNumber != 1 || got[1].Meta.PageNumber != 2 {
		t.Errorf("chunk pages = %d,%d; want 1,2", got[0].Meta.PageNumber, got[1].Meta.PageNumber)
	}
}

func TestChunk_SubFloorBufferDroppedAtBoundary(t *testing.T) {
	t.Parallel()

	// A 100-token buffer that cannot absorb the incoming 450-token
	// document is dropped, not carried forward.
	ch := New(500, 150)
	got := ch.Chunk([]rag.Document{doc(100, 1), doc(450, 2)})

	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0].Meta.PageNumber != 2 {
		t.Errorf("surviving chunk page = %d, want 2", got[0].Meta.PageNumber)
	}
	if n := token.Estimate(got[0].Text); n != 450 {
		t.Errorf("surviving chunk tokens = %d, want 450", n)
	}
}

func TestChunk_FinalFlushEnforcesFloor(t *testing.T) {
	t.Parallel()

	// The final buffer (490 + overflow restart at 60) fails the floor and
	// is dropped even at end-of-stream.
	ch := New(500, 150)
	got := ch.Chunk([]rag.Document{doc(490, 1), doc(60, 2)})

	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0].Meta.PageNumber != 1 {
		t.Errorf("chunk page = %d, want 1", got[0].Meta.PageNumber)
	}
}

func TestChunk_EveryEmittedChunkMeetsFloor(t *testing.T) {
	t.Parallel()

	ch := New(120, 40)
	var docs []rag.Document
	for i, n := range []int{10, 35, 90, 5, 60, 200, 12, 44, 80, 3, 3, 3, 50} {
		docs = append(docs, doc(n, i+1))
	}

	for _, c := range ch.Chunk(docs) {
		if n := token.Estimate(c.Text); n < 40 {
			t.Errorf("emitted chunk of %d tokens violates the floor", n)
		}
	}
}

func TestChunk_MergeKeepsFirstMetadata(t *testing.T) {
	t.Parallel()

	ch := New(500, 10)
	docs := []rag.Document{
		{Text: words(20), Meta: rag.Metadata{PageNumber: 7, Category: "narrative"}},
		{Text: words(20), Meta: rag.Metadata{PageNumber: 8, Category: "list_item"}},
		{Text: words(20), Meta: rag.Metadata{PageNumber: 9, Category: "narrative"}},
	}

	got := ch.Chunk(docs)
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0].Meta.PageNumber != 7 || got[0].Meta.Category != "narrative" {
		t.Errorf("chunk metadata = %+v, want first document's", got[0].Meta)
	}
}

func TestChunk_InjectedCounter(t *testing.T) {
	t.Parallel()

	// A counter that bills every document one token forces everything
	// into a single merged chunk.
	ch := New(10, 1, WithCounter(func(string) int { return 1 }))
	got := ch.Chunk([]rag.Document{doc(400, 1), doc(400, 2), doc(400, 3)})

	if len(got) != 1 {
		t.Errorf("expected one chunk under constant counter, got %d", len(got))
	}
}

func TestNew_BoundClamping(t *testing.T) {
	t.Parallel()

	ch := New(0, 0)
	if ch.maxTokens != DefaultMaxTokens || ch.minTokens != DefaultMinTokens {
		t.Errorf("defaults not applied: max=%d min=%d", ch.maxTokens, ch.minTokens)
	}

	ch = New(100, 900)
	if ch.minTokens != 100 {
		t.Errorf("floor above ceiling should clamp to ceiling, got %d", ch.minTokens)
	}
}
