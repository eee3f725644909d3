package index

import (
	"bufio"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/evidentia/policyrag/internal/rag"
)

// On-disk layout: a directory containing the raw vector dump and a
// parallel chunk metadata store. Both must be present and agree on the
// entry count for Load to succeed.
const (
	// vectorsFile is the flat binary vector dump inside an index directory.
	vectorsFile = "vectors.bin"

	// chunksFile is the SQLite chunk store inside an index directory.
	chunksFile = "chunks.db"
)

// vectors.bin header constants.
const (
	// vectorsMagic identifies a policyrag vector dump.
	vectorsMagic = uint32(0x50524758) // "PRGX"

	// vectorsVersion is the current file format version.
	vectorsVersion = uint32(1)
)

// Save persists the index into dir: vectors.bin holds a versioned header
// followed by count×dim little-endian float32 values in offset order;
// chunks.db holds the parallel chunk texts and metadata keyed by offset.
// The write goes to a temporary sibling directory which then replaces dir,
// so a concurrent reader of a previously loaded index never observes a
// partial dump and a crash mid-save leaves the old index intact.
func (ix *FlatIndex) Save(dir string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("index: clear temp dir: %w", err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("index: create temp dir: %w", err)
	}

	if err := ix.writeVectors(filepath.Join(tmp, vectorsFile)); err != nil {
		return err
	}
	if err := ix.writeChunks(filepath.Join(tmp, chunksFile)); err != nil {
		return err
	}

	// Swap the finished dump into place. Rename over an existing
	// directory is not permitted, so the old dump is moved aside first
	// and removed once the new one is in place.
	old := dir + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("index: clear backup dir: %w", err)
	}
	if _, err := os.Stat(dir); err == nil {
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("index: move previous dump aside: %w", err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("index: install new dump: %w", err)
	}
	_ = os.RemoveAll(old)

	return nil
}

// writeVectors writes the binary vector dump.
func (ix *FlatIndex) writeVectors(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("index: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := []uint32{vectorsMagic, vectorsVersion, uint32(ix.dim), uint32(len(ix.vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("index: write header: %w", err)
		}
	}
	for _, vec := range ix.vectors {
		for _, x := range vec {
			if err := binary.Write(w, binary.LittleEndian, math.Float32bits(x)); err != nil {
				return fmt.Errorf("index: write vectors: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("index: flush vectors: %w", err)
	}
	return nil
}

// writeChunks writes the parallel chunk store.
func (ix *FlatIndex) writeChunks(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("index: open chunk store: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	const ddl = `
CREATE TABLE chunks (
    offset       INTEGER PRIMARY KEY,
    text         TEXT    NOT NULL,
    page_number  INTEGER NOT NULL,
    category     TEXT    NOT NULL
);`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("index: create chunk schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("index: begin chunk write: %w", err)
	}
	const q = `INSERT INTO chunks (offset, text, page_number, category) VALUES (?, ?, ?, ?)`
	for off, c := range ix.entries {
		if _, err := tx.Exec(q, off, c.Text, c.Meta.PageNumber, c.Meta.Category); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("index: write chunk %d: %w", off, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit chunk write: %w", err)
	}
	return nil
}

// Load restores a FlatIndex from dir. A missing directory or missing file
// reports rag.ErrIndexNotFound; a present but unreadable or mutually
// inconsistent dump (bad magic, truncated vectors, chunk count disagreeing
// with vector count) reports rag.ErrIndexCorrupt with enough detail to
// decide whether a rebuild is needed. The restored index returns the same
// search results as the one that was saved.
func Load(dir string) (*FlatIndex, error) {
	vecPath := filepath.Join(dir, vectorsFile)
	chunkPath := filepath.Join(dir, chunksFile)

	for _, p := range []string{vecPath, chunkPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("index: %s missing at %s: %w", filepath.Base(p), dir, rag.ErrIndexNotFound)
		}
	}

	ix, err := readVectors(vecPath)
	if err != nil {
		return nil, err
	}
	if err := readChunks(chunkPath, ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// readVectors parses the binary vector dump into a fresh FlatIndex.
func readVectors(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic, version, dim, count uint32
	for _, dst := range []*uint32{&magic, &version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("index: truncated header in %s: %w", path, rag.ErrIndexCorrupt)
		}
	}
	if magic != vectorsMagic {
		return nil, fmt.Errorf("index: %s is not a vector dump (bad magic 0x%08x): %w", path, magic, rag.ErrIndexCorrupt)
	}
	if version != vectorsVersion {
		return nil, fmt.Errorf("index: unsupported vector dump version %d in %s: %w", version, path, rag.ErrIndexCorrupt)
	}
	if dim == 0 {
		return nil, fmt.Errorf("index: zero dimension in %s: %w", path, rag.ErrIndexCorrupt)
	}

	ix := &FlatIndex{dim: int(dim)}
	ix.vectors = make([][]float32, 0, count)
	buf := make([]byte, 4)
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dim)
		for j := uint32(0); j < dim; j++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("index: truncated vector data at entry %d in %s: %w", i, path, rag.ErrIndexCorrupt)
			}
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
		}
		ix.vectors = append(ix.vectors, vec)
	}
	// Trailing bytes mean the header lied about the count.
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("index: trailing data after %d vectors in %s: %w", count, path, rag.ErrIndexCorrupt)
	}

	return ix, nil
}

// readChunks loads the parallel chunk store and verifies it is consistent
// with the vectors already read: same entry count, contiguous offsets.
func readChunks(path string, ix *FlatIndex) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("index: open chunk store %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT offset, text, page_number, category FROM chunks ORDER BY offset ASC`)
	if err != nil {
		return fmt.Errorf("index: chunk store %s unreadable: %w", path, rag.ErrIndexCorrupt)
	}
	defer rows.Close()

	ix.entries = make([]rag.Chunk, 0, len(ix.vectors))
	next := 0
	for rows.Next() {
		var off int
		var c rag.Chunk
		if err := rows.Scan(&off, &c.Text, &c.Meta.PageNumber, &c.Meta.Category); err != nil {
			return fmt.Errorf("index: chunk store %s scan: %w", path, rag.ErrIndexCorrupt)
		}
		if off != next {
			return fmt.Errorf("index: chunk store %s has non-contiguous offset %d (expected %d): %w",
				path, off, next, rag.ErrIndexCorrupt)
		}
		next++
		ix.entries = append(ix.entries, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("index: chunk store %s rows: %w", path, rag.ErrIndexCorrupt)
	}

	if len(ix.entries) != len(ix.vectors) {
		return fmt.Errorf("index: %d chunks but %d vectors, stores are out of sync: %w",
			len(ix.entries), len(ix.vectors), rag.ErrIndexCorrupt)
	}
	return nil
}
