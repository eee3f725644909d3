// Package pipeline orchestrates a single question through retrieval,
// reranking, context assembly, generation and faithfulness evaluation,
// measuring each stage as it goes. The pipeline holds no per-request
// state and is safe for concurrent use when its collaborators are.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/evidentia/policyrag/internal/eval"
	"github.com/evidentia/policyrag/internal/logging"
	"github.com/evidentia/policyrag/internal/rag"
)

// Default stage fan-in/fan-out sizes: retrieval over-fetches so the
// reranker has enough candidates to reorder meaningfully.
const (
	DefaultTopK = 15
	DefaultTopN = 5
)

// Pipeline answers questions against an indexed document corpus.
type Pipeline struct {
	retriever rag.Retriever
	reranker  rag.Reranker
	generator rag.Generator
	evaluator *eval.Faithfulness

	topK    int
	topN    int
	insight bool
}

// Config wires the pipeline's collaborators and stage sizes.
type Config struct {
	// Retriever fetches candidate chunks. Required.
	Retriever rag.Retriever

	// Reranker reorders candidates. Optional: when nil, retrieval order
	// stands and candidate sets are truncated to TopN directly.
	Reranker rag.Reranker

	// Generator produces the answer. Required.
	Generator rag.Generator

	// Evaluator scores answer faithfulness. Required.
	Evaluator *eval.Faithfulness

	// TopK is the retrieval fan-out (default: DefaultTopK).
	TopK int

	// TopN is the post-rerank context size (default: DefaultTopN).
	TopN int

	// Insight enables the metrics-insight generation pass.
	Insight bool
}

// New validates the config and constructs a Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("pipeline: retriever is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("pipeline: generator is required")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("pipeline: evaluator is required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	topN := cfg.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Pipeline{
		retriever: cfg.Retriever,
		reranker:  cfg.Reranker,
		generator: cfg.Generator,
		evaluator: cfg.Evaluator,
		topK:      topK,
		topN:      topN,
		insight:   cfg.Insight,
	}, nil
}

// Answer runs the full pipeline for a question and returns the response
// with its per-stage metrics.
func (p *Pipeline) Answer(ctx context.Context, question string) (*rag.Response, error) {
	return p.run(ctx, question, nil)
}

// AnswerStream behaves like Answer but writes answer tokens to w as they
// arrive from the generator. The returned response carries the complete
// accumulated answer.
func (p *Pipeline) AnswerStream(ctx context.Context, question string, w io.Writer) (*rag.Response, error) {
	return p.run(ctx, question, w)
}

func (p *Pipeline) run(ctx context.Context, question string, stream io.Writer) (*rag.Response, error) {
	log := logging.Component(ctx, "pipeline")
	var m rag.QueryMetrics

	// Retrieval.
	t0 := time.Now()
	retrieved, err := p.retriever.Retrieve(ctx, question, p.topK)
	m.RetrievalTimeMs = elapsedMs(t0)
	if err != nil {
		return nil, fmt.Errorf("pipeline: retrieval failed: %w", err)
	}

	// An empty corpus match is a negative answer, not a failure.
	if len(retrieved) == 0 {
		log.Info("no chunks retrieved", slog.String("question", question))
		resp := &rag.Response{Answer: NotFoundAnswer, Sources: "", Metrics: m}
		if stream != nil {
			if _, err := io.WriteString(stream, resp.Answer); err != nil {
				return nil, fmt.Errorf("pipeline: stream write failed: %w", err)
			}
		}
		return resp, nil
	}

	// Reranking. A rerank failure degrades to retrieval order rather
	// than failing the request; the candidate set is truncated to topN
	// either way.
	t1 := time.Now()
	chunks := retrieved
	if p.reranker != nil {
		reranked, err := p.reranker.Rerank(ctx, question, retrieved, p.topN)
		if err != nil {
			log.Warn("rerank failed, falling back to retrieval order", slog.Any("error", err))
		} else {
			chunks = reranked
		}
	}
	if len(chunks) > p.topN {
		chunks = chunks[:p.topN]
	}
	m.RerankTimeMs = elapsedMs(t1)

	// Context assembly and generation.
	contextText := BuildContext(chunks)
	prompt := buildPrompt(question, contextText)

	t2 := time.Now()
	var answer string
	if stream != nil {
		answer, err = p.generator.Stream(ctx, prompt, stream)
	} else {
		answer, err = p.generator.Generate(ctx, prompt)
	}
	m.GenerationTimeMs = elapsedMs(t2)
	if err != nil {
		return nil, fmt.Errorf("pipeline: generation failed: %w", err)
	}

	// Evaluation. A scoring failure keeps the answer usable; the metrics
	// just report unanswerable.
	verdict, err := p.evaluator.Evaluate(ctx, answer, contextText)
	if err != nil {
		log.Warn("faithfulness evaluation failed", slog.Any("error", err))
	}
	m.FaithfulnessScore = verdict.Score
	m.Answerable = verdict.Answerable

	resp := &rag.Response{
		Answer:  answer,
		Sources: FormatSources(chunks),
		Metrics: m,
	}

	if p.insight {
		insight, err := p.generator.Generate(ctx, buildInsightPrompt(m, resp.Sources))
		if err != nil {
			log.Warn("insight generation failed", slog.Any("error", err))
		} else {
			resp.Insight = insight
		}
	}

	log.Info("question answered",
		slog.Float64("retrieval_ms", m.RetrievalTimeMs),
		slog.Float64("rerank_ms", m.RerankTimeMs),
		slog.Float64("generation_ms", m.GenerationTimeMs),
		slog.Float64("faithfulness", m.FaithfulnessScore),
		slog.Bool("answerable", m.Answerable),
	)

	return resp, nil
}

// elapsedMs returns the wall-clock time since start in milliseconds,
// rounded to 2 decimals.
func elapsedMs(start time.Time) float64 {
	ms := float64(time.Since(start)) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
