package pipeline

import (
	"fmt"

	"github.com/evidentia/policyrag/internal/rag"
)

// NotFoundAnswer is the sentinel the model is instructed to emit when the
// context does not contain the answer. It is also returned directly when
// retrieval comes back empty, skipping generation entirely.
const NotFoundAnswer = "Not found in document"

// answerPromptFormat grounds the model strictly in the retrieved context.
const answerPromptFormat = `You are an enterprise policy assistant.
Answer ONLY from the context.
If unsure, say "%s".

Context:
%s

Question:
%s
Answer:
`

// buildPrompt assembles the grounded answer prompt for a question and its
// retrieval context.
func buildPrompt(question, contextText string) string {
	return fmt.Sprintf(answerPromptFormat, NotFoundAnswer, contextText, question)
}

// insightPromptFormat asks a second model pass to assess the quality of
// the just-produced response from its metrics and evidence.
const insightPromptFormat = `You are an AI system analyst evaluating the quality of a Retrieval-Augmented Generation (RAG) response.

Given the system metrics and retrieval evidence below, produce a concise, user-friendly insight.

System Metrics:
- Retrieval Time (ms): %v
- Re-rank Time (ms): %v
- Generation Time (ms): %v
- Faithfulness Score (0-1): %v
- Answerable: %v

Retrieved Evidence:
%s

Your task:
1. Assess overall answer confidence (High / Medium / Low).
2. Comment on system performance (latency).
3. Comment on answer reliability.
4. Provide a short recommendation to the user.

Rules:
- Do NOT invent facts.
- Base conclusions strictly on the metrics.
- Keep the response professional and concise.
- 4-6 bullet points max.
`

// buildInsightPrompt assembles the metrics-insight prompt from a finished
// response's metrics and citation list.
func buildInsightPrompt(m rag.QueryMetrics, sources string) string {
	return fmt.Sprintf(insightPromptFormat,
		m.RetrievalTimeMs, m.RerankTimeMs, m.GenerationTimeMs,
		m.FaithfulnessScore, m.Answerable, sources)
}
