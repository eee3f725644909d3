package ingestion

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/evidentia/policyrag/internal/rag"
)

// ExtractPDF reads a PDF file and returns its meaningful text blocks as
// Documents: per page, blank-line-separated blocks are cleaned, classified
// and length-filtered. An unreadable page is skipped rather than failing
// the whole file; an unreadable file is an error.
func ExtractPDF(path string) ([]rag.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open pdf %s: %w", path, err)
	}
	defer f.Close()

	var docs []rag.Document
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		docs = append(docs, extractBlocks(text, pageNum)...)
	}
	return docs, nil
}

// extractBlocks splits raw page text into paragraph blocks and keeps the
// ones that survive cleaning and the minimum-length filter.
func extractBlocks(pageText string, pageNum int) []rag.Document {
	var docs []rag.Document
	for _, block := range splitBlocks(pageText) {
		cleaned := CleanText(block)
		if len(cleaned) < MinFragmentLen {
			continue
		}
		docs = append(docs, rag.Document{
			Text: cleaned,
			Meta: rag.Metadata{
				PageNumber: pageNum,
				Category:   Classify(cleaned),
			},
		})
	}
	return docs
}

// splitBlocks groups consecutive non-blank lines into paragraph blocks.
func splitBlocks(text string) []string {
	var blocks []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return blocks
}
