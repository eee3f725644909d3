package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/evidentia/policyrag/internal/rag"
)

func entry(text string, page int, vec ...float32) rag.EmbeddedChunk {
	return rag.EmbeddedChunk{
		Chunk: rag.Chunk{
			Text: text,
			Meta: rag.Metadata{PageNumber: page, Category: "narrative"},
		},
		Embedding: vec,
	}
}

func TestNewFlat_RejectsNonPositiveDimension(t *testing.T) {
	t.Parallel()

	for _, dim := range []int{0, -1} {
		if _, err := NewFlat(dim); err == nil {
			t.Errorf("NewFlat(%d) expected error, got nil", dim)
		}
	}
}

func TestFlatIndex_AddRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	ix, err := NewFlat(3)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}

	err = ix.Add(t.Context(), []rag.EmbeddedChunk{
		entry("ok", 1, 1, 0, 0),
		entry("short", 2, 1, 0),
	})
	if !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("failed batch must not insert partially, Len() = %d", ix.Len())
	}
}

func TestFlatIndex_SearchOrdering(t *testing.T) {
	t.Parallel()

	ix, err := NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}
	// Unit vectors at decreasing alignment with the query (1, 0).
	err = ix.Add(t.Context(), []rag.EmbeddedChunk{
		entry("orthogonal", 1, 0, 1),
		entry("aligned", 2, 1, 0),
		entry("diagonal", 3, 0.7071, 0.7071),
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := ix.Search(t.Context(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	wantTexts := []string{"aligned", "diagonal", "orthogonal"}
	if len(results) != len(wantTexts) {
		t.Fatalf("got %d results, want %d", len(results), len(wantTexts))
	}
	for i, want := range wantTexts {
		if results[i].Text != want {
			t.Errorf("result %d: got %q, want %q", i, results[i].Text, want)
		}
	}
	if results[0].Score <= results[1].Score || results[1].Score <= results[2].Score {
		t.Errorf("scores not descending: %v, %v, %v",
			results[0].Score, results[1].Score, results[2].Score)
	}
}

func TestFlatIndex_SearchTieBreaksByOffset(t *testing.T) {
	t.Parallel()

	ix, err := NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}
	// Two identical vectors score identically against any query.
	err = ix.Add(t.Context(), []rag.EmbeddedChunk{
		entry("first", 1, 1, 0),
		entry("second", 2, 1, 0),
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := ix.Search(t.Context(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if results[0].Offset != 0 || results[1].Offset != 1 {
		t.Errorf("tied scores must order by offset, got offsets %d, %d",
			results[0].Offset, results[1].Offset)
	}
}

func TestFlatIndex_SearchTopKExceedsSize(t *testing.T) {
	t.Parallel()

	ix, err := NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}
	err = ix.Add(t.Context(), []rag.EmbeddedChunk{
		entry("a", 1, 1, 0),
		entry("b", 2, 0, 1),
		entry("c", 3, 1, 0),
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := ix.Search(t.Context(), []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("topK beyond index size must return every entry, got %d", len(results))
	}
}

func TestFlatIndex_SearchEmptyIndex(t *testing.T) {
	t.Parallel()

	ix, err := NewFlat(4)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}

	results, err := ix.Search(t.Context(), []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("searching an empty index must not error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestFlatIndex_SearchRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	ix, err := NewFlat(3)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}

	_, err = ix.Search(t.Context(), []float32{1, 0}, 5)
	if !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFlatIndex_SaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	ix, err := NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}
	err = ix.Add(t.Context(), []rag.EmbeddedChunk{
		entry("refund policy", 4, 1, 0),
		entry("warranty terms", 7, 0, 1),
		entry("shipping rules", 2, 0.7071, 0.7071),
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "index")
	if err := ix.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Dim() != ix.Dim() || loaded.Len() != ix.Len() {
		t.Fatalf("loaded index shape dim=%d len=%d, want dim=%d len=%d",
			loaded.Dim(), loaded.Len(), ix.Dim(), ix.Len())
	}

	query := []float32{1, 0}
	want, err := ix.Search(t.Context(), query, 3)
	if err != nil {
		t.Fatalf("Search on original failed: %v", err)
	}
	got, err := loaded.Search(t.Context(), query, 3)
	if err != nil {
		t.Fatalf("Search on loaded failed: %v", err)
	}
	for i := range want {
		if got[i].Offset != want[i].Offset || got[i].Text != want[i].Text ||
			got[i].Score != want[i].Score || got[i].Meta != want[i].Meta {
			t.Errorf("result %d differs after reload:\n got %+v\nwant %+v", i, got[i], want[i])
		}
	}
}

func TestFlatIndex_SaveReplacesPreviousDump(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "index")

	first, err := NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}
	if err := first.Add(t.Context(), []rag.EmbeddedChunk{entry("old", 1, 1, 0)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := first.Save(dir); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	second, err := NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}
	err = second.Add(t.Context(), []rag.EmbeddedChunk{
		entry("new one", 1, 1, 0),
		entry("new two", 2, 0, 1),
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := second.Save(dir); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after overwrite failed: %v", err)
	}
	if loaded.Len() != 2 {
		t.Errorf("expected the replacement dump with 2 entries, got %d", loaded.Len())
	}
	if _, err := os.Stat(dir + ".old"); !os.IsNotExist(err) {
		t.Errorf("backup dir must be cleaned up after a successful save")
	}
}

func TestLoad_MissingIndex(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, rag.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestLoad_MissingChunkStore(t *testing.T) {
	t.Parallel()

	ix, err := NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat failed: %v", err)
	}
	if err := ix.Add(t.Context(), []rag.EmbeddedChunk{entry("a", 1, 1, 0)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	dir := filepath.Join(t.TempDir(), "index")
	if err := ix.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, chunksFile)); err != nil {
		t.Fatalf("remove chunk store: %v", err)
	}

	_, err = Load(dir)
	if !errors.Is(err, rag.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestLoad_CorruptCases(t *testing.T) {
	t.Parallel()

	// save builds a valid two-entry dump to corrupt.
	save := func(t *testing.T) string {
		t.Helper()
		ix, err := NewFlat(2)
		if err != nil {
			t.Fatalf("NewFlat failed: %v", err)
		}
		err = ix.Add(t.Context(), []rag.EmbeddedChunk{
			entry("a", 1, 1, 0),
			entry("b", 2, 0, 1),
		})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		dir := filepath.Join(t.TempDir(), "index")
		if err := ix.Save(dir); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		return dir
	}

	tests := []struct {
		name    string
		corrupt func(t *testing.T, dir string)
	}{
		{
			name: "bad magic",
			corrupt: func(t *testing.T, dir string) {
				path := filepath.Join(dir, vectorsFile)
				data, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("read vectors: %v", err)
				}
				data[0] ^= 0xff
				if err := os.WriteFile(path, data, 0o644); err != nil {
					t.Fatalf("write vectors: %v", err)
				}
			},
		},
		{
			name: "truncated vectors",
			corrupt: func(t *testing.T, dir string) {
				path := filepath.Join(dir, vectorsFile)
				data, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("read vectors: %v", err)
				}
				if err := os.WriteFile(path, data[:len(data)-5], 0o644); err != nil {
					t.Fatalf("write vectors: %v", err)
				}
			},
		},
		{
			name: "trailing bytes",
			corrupt: func(t *testing.T, dir string) {
				path := filepath.Join(dir, vectorsFile)
				f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					t.Fatalf("open vectors: %v", err)
				}
				defer f.Close()
				if _, err := f.Write([]byte{1, 2, 3, 4}); err != nil {
					t.Fatalf("append to vectors: %v", err)
				}
			},
		},
		{
			name: "garbage chunk store",
			corrupt: func(t *testing.T, dir string) {
				path := filepath.Join(dir, chunksFile)
				if err := os.WriteFile(path, []byte("not a database"), 0o644); err != nil {
					t.Fatalf("write chunk store: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := save(t)
			tt.corrupt(t, dir)

			_, err := Load(dir)
			if !errors.Is(err, rag.ErrIndexCorrupt) {
				t.Fatalf("expected ErrIndexCorrupt, got %v", err)
			}
		})
	}
}
