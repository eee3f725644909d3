package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/evidentia/policyrag/internal/rag"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// resp builds a minimal response with the given answer and score.
func resp(answer string, score float64, answerable bool) *rag.Response {
	return &rag.Response{
		Answer:  answer,
		Sources: "[1] Page 3 (score=0.812)",
		Metrics: rag.QueryMetrics{
			FaithfulnessScore: score,
			Answerable:        answerable,
		},
	}
}

func Test_Store_RecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, "how many leave days?", resp("25 days. [1]", 0.82, true)); err != nil {
		t.Fatalf("record: %v", err)
	}

	recs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("want 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.Question != "how many leave days?" {
		t.Errorf("question: got %q", r.Question)
	}
	if r.Answer != "25 days. [1]" {
		t.Errorf("answer: got %q", r.Answer)
	}
	if r.Sources != "[1] Page 3 (score=0.812)" {
		t.Errorf("sources: got %q", r.Sources)
	}
	if r.FaithfulnessScore != 0.82 {
		t.Errorf("faithfulness: got %v", r.FaithfulnessScore)
	}
	if !r.Answerable {
		t.Error("expected answerable:true")
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		q := fmt.Sprintf("question %d", i)
		if err := s.Record(ctx, q, resp("answer", 0.5, true)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recs, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 4 {
		t.Errorf("want 4 records, got %d", len(recs))
	}
}

func Test_Store_NewestFirstOrdering(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	questions := []string{"first", "second", "third"}
	for _, q := range questions {
		if err := s.Record(ctx, q, resp("answer", 0.5, true)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3 records, got %d", len(recs))
	}
	// Same-second inserts fall back to id ordering, newest id first.
	if recs[0].Question != "third" || recs[2].Question != "first" {
		t.Errorf("ordering: got %q, %q, %q", recs[0].Question, recs[1].Question, recs[2].Question)
	}
}

func Test_Store_UnanswerableRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, "off-topic", resp("Not found in document", 0.12, false)); err != nil {
		t.Fatalf("record: %v", err)
	}

	recs, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if recs[0].Answerable {
		t.Error("expected answerable:false round-trip")
	}
}

func Test_Store_EmptyReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	recs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("want 0 records, got %d", len(recs))
	}
}
