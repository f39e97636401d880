package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lmoretti/aide/docstore"
	"github.com/lmoretti/aide/llm"
)

// Retrieval and prompt budgets for the single-document operations.
const (
	summarizeChunks  = 10
	summarizeCharCap = 3000
	summarizeTokens  = 500
	compareChunks    = 5
	compareCharCap   = 1000
	compareTokens    = 600
	analyzeChunks    = 8
	analyzeCharCap   = 3000
	analyzeTokens    = 600
	extractChunks    = 6
	extractCharCap   = 2500
	extractTokens    = 500
)

// Summarize retrieves the most representative chunks of a document and asks
// the model for a summary.
func (e *Engine) Summarize(ctx context.Context, docID string) (string, error) {
	record, ok := e.store.Get(docID)
	if !ok {
		return "", fmt.Errorf("summarize document %s: %w", docID, docstore.ErrDocumentNotFound)
	}

	results, err := e.store.Search(ctx, "main topics key points summary", []string{docID}, summarizeChunks)
	if err != nil {
		return "", fmt.Errorf("retrieve content for summary: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No content found in document '%s'.", record.DisplayName), nil
	}

	content := truncate(joinResults(results), summarizeCharCap)
	prompt := fmt.Sprintf("Summarize the following document content. Cover the main topics and "+
		"key points.\n\nDocument: %s\n\n%s", record.DisplayName, content)

	answer, _ := e.generator.Generate(ctx, promptMessages(prompt), summarizeTokens)
	return answer, nil
}

// Compare retrieves content from each document and asks the model to compare
// them on the given aspect. At least two document ids are required.
func (e *Engine) Compare(ctx context.Context, docIDs []string, aspect string) (string, error) {
	if len(docIDs) < 2 {
		return "", fmt.Errorf("compare documents: need at least 2 document ids, got %d", len(docIDs))
	}
	if strings.TrimSpace(aspect) == "" {
		aspect = "general"
	}

	var sb strings.Builder
	for _, docID := range docIDs {
		record, ok := e.store.Get(docID)
		if !ok {
			return "", fmt.Errorf("compare document %s: %w", docID, docstore.ErrDocumentNotFound)
		}

		results, err := e.store.Search(ctx, aspect+" main points key information", []string{docID}, compareChunks)
		if err != nil {
			return "", fmt.Errorf("retrieve content from %s: %w", docID, err)
		}

		sb.WriteString(fmt.Sprintf("=== %s ===\n", record.DisplayName))
		if len(results) == 0 {
			sb.WriteString("(no content retrieved)\n\n")
			continue
		}
		sb.WriteString(truncate(joinResults(results), compareCharCap))
		sb.WriteString("\n\n")
	}

	prompt := fmt.Sprintf("Compare the following documents with respect to: %s. Point out "+
		"similarities and differences.\n\n%s", aspect, sb.String())

	answer, _ := e.generator.Generate(ctx, promptMessages(prompt), compareTokens)
	return answer, nil
}

// Analyze runs a typed analysis (themes, sentiment, structure, ...) over a
// document's retrieved content.
func (e *Engine) Analyze(ctx context.Context, docID, analysisType string) (string, error) {
	record, ok := e.store.Get(docID)
	if !ok {
		return "", fmt.Errorf("analyze document %s: %w", docID, docstore.ErrDocumentNotFound)
	}
	if strings.TrimSpace(analysisType) == "" {
		analysisType = "general"
	}

	results, err := e.store.Search(ctx, analysisType+" analysis content structure", []string{docID}, analyzeChunks)
	if err != nil {
		return "", fmt.Errorf("retrieve content for analysis: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No content found in document '%s'.", record.DisplayName), nil
	}

	content := truncate(joinResults(results), analyzeCharCap)
	prompt := fmt.Sprintf("Perform a %s analysis of the following document content.\n\n"+
		"Document: %s\n\n%s", analysisType, record.DisplayName, content)

	answer, _ := e.generator.Generate(ctx, promptMessages(prompt), analyzeTokens)
	return answer, nil
}

// Extract pulls a specific kind of information (dates, names, figures, ...)
// out of a document.
func (e *Engine) Extract(ctx context.Context, docID, infoType string) (string, error) {
	record, ok := e.store.Get(docID)
	if !ok {
		return "", fmt.Errorf("extract from document %s: %w", docID, docstore.ErrDocumentNotFound)
	}
	if strings.TrimSpace(infoType) == "" {
		infoType = "key information"
	}

	results, err := e.store.Search(ctx, infoType, []string{docID}, extractChunks)
	if err != nil {
		return "", fmt.Errorf("retrieve content for extraction: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No content found in document '%s'.", record.DisplayName), nil
	}

	content := truncate(joinResults(results), extractCharCap)
	prompt := fmt.Sprintf("Extract all %s from the following document content. List each item "+
		"found; if none are present, say so.\n\nDocument: %s\n\n%s",
		infoType, record.DisplayName, content)

	answer, _ := e.generator.Generate(ctx, promptMessages(prompt), extractTokens)
	return answer, nil
}

func promptMessages(prompt string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: assistantSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}
}

func joinResults(results []docstore.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		parts = append(parts, result.Text)
	}
	return strings.Join(parts, "\n\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Walk back to a rune boundary so the cut never splits a multibyte rune.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
