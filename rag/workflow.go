// Package rag answers document-grounded questions through a small
// retrieve-grade-rewrite-generate state machine over the document store.
package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/lmoretti/aide/docstore"
	"github.com/lmoretti/aide/llm"
)

const (
	searchK          = 5
	rewriteMaxTokens = 100
	answerMaxTokens  = 400
	directMaxTokens  = 200
)

// DocumentStore is the slice of the document store the workflow needs.
type DocumentStore interface {
	Search(ctx context.Context, query string, docIDs []string, k int) ([]docstore.SearchResult, error)
	Get(docID string) (docstore.Record, bool)
	List() []docstore.Record
}

type stateKind int

const (
	stateRoute stateKind = iota
	stateListDocuments
	stateSearch
	stateGradeRelevance
	stateRewriteQuery
	stateGenerateAnswer
	stateDirectAnswer
	stateDone
)

type event int

const (
	eventListRequested event = iota
	eventSearchRequested
	eventDirectRequested
	eventResultsFound
	eventNoResults
	eventRelevant
	eventNotRelevant
	eventRewritten
	eventRewriteBudgetSpent
	eventAnswered
)

// transition is the pure state-transition function. Side effects live in the
// engine's run loop; this table is the whole control flow.
func transition(state stateKind, ev event) stateKind {
	switch state {
	case stateRoute:
		switch ev {
		case eventListRequested:
			return stateListDocuments
		case eventSearchRequested:
			return stateSearch
		default:
			return stateDirectAnswer
		}
	case stateSearch:
		if ev == eventResultsFound {
			return stateGradeRelevance
		}
		return stateRewriteQuery
	case stateGradeRelevance:
		if ev == eventRelevant {
			return stateGenerateAnswer
		}
		return stateRewriteQuery
	case stateRewriteQuery:
		if ev == eventRewritten {
			return stateSearch
		}
		return stateGenerateAnswer
	case stateListDocuments, stateGenerateAnswer, stateDirectAnswer:
		return stateDone
	default:
		return stateDone
	}
}

// Config tunes the workflow. RelevanceThreshold is a distance: a search hit
// scoring below it counts as relevant. MaxRewrites bounds the
// search-rewrite cycle so the workflow always terminates.
type Config struct {
	RelevanceThreshold float64
	MaxRewrites        int
}

// Engine runs the retrieval workflow and the other retrieve-then-generate
// document operations.
type Engine struct {
	store     DocumentStore
	generator llm.Client // fallback-wrapped: never returns an error
	rewriter  llm.Client // raw: rewrite failures abort rewriting, not the query
	cfg       Config
	logger    *log.Logger
}

func NewEngine(store DocumentStore, client llm.Client, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = 0.8
	}
	if cfg.MaxRewrites < 0 {
		cfg.MaxRewrites = 0
	}

	return &Engine{
		store:     store,
		generator: llm.NewFallback(client, logger),
		rewriter:  client,
		cfg:       cfg,
		logger:    logger,
	}
}

// workflowState is created fresh per query and discarded when the workflow
// terminates.
type workflowState struct {
	messages    []llm.Message
	query       string
	contextInfo string
	searchQuery string
	results     []docstore.SearchResult
	rewrites    int
	answer      string
}

// ProcessQuery runs the state machine to completion and returns the final
// answer text. It is synchronous; every external call happens before it
// returns.
func (e *Engine) ProcessQuery(ctx context.Context, query string) string {
	contextInfo, actual := stripContextAnnotation(query)

	ws := &workflowState{
		query:       actual,
		contextInfo: contextInfo,
		searchQuery: actual,
	}
	ws.messages = append(ws.messages, llm.Message{Role: llm.RoleUser, Content: actual})

	state := stateRoute
	// The transition table has no cycles other than search<->rewrite, which
	// MaxRewrites bounds; the guard is belt and braces.
	for steps := 0; state != stateDone && steps < 16; steps++ {
		ev := e.step(ctx, state, ws)
		state = transition(state, ev)
	}

	if strings.TrimSpace(ws.answer) == "" {
		return "I couldn't process your query. Please try again."
	}
	return ws.answer
}

// step executes the side effect of the current state and reports the outcome.
func (e *Engine) step(ctx context.Context, state stateKind, ws *workflowState) event {
	switch state {
	case stateRoute:
		return routeEvent(ws.query)

	case stateListDocuments:
		ws.answer = formatDocumentList(e.store.List())
		return eventAnswered

	case stateSearch:
		results, err := e.store.Search(ctx, ws.searchQuery, nil, searchK)
		if err != nil {
			e.logger.Printf("document search failed: %v", err)
			results = nil
		}
		ws.results = results
		if len(results) == 0 {
			return eventNoResults
		}
		return eventResultsFound

	case stateGradeRelevance:
		// Typed relevance signal: at least one hit under the distance
		// threshold counts as relevant.
		for _, result := range ws.results {
			if result.Score < e.cfg.RelevanceThreshold {
				return eventRelevant
			}
		}
		return eventNotRelevant

	case stateRewriteQuery:
		if ws.rewrites >= e.cfg.MaxRewrites {
			return eventRewriteBudgetSpent
		}
		improved, err := llm.Prompt(ctx, e.rewriter, rewritePrompt(ws.query), rewriteMaxTokens)
		if err != nil {
			e.logger.Printf("query rewrite failed: %v", err)
			return eventRewriteBudgetSpent
		}
		improved = strings.TrimSpace(improved)
		if improved == "" {
			return eventRewriteBudgetSpent
		}
		ws.searchQuery = improved
		ws.rewrites++
		return eventRewritten

	case stateGenerateAnswer:
		answer, _ := e.generator.Generate(ctx, answerMessages(ws), answerMaxTokens)
		ws.answer = answer
		ws.messages = append(ws.messages, llm.Message{Role: llm.RoleAssistant, Content: answer})
		return eventAnswered

	case stateDirectAnswer:
		answer, _ := e.generator.Generate(ctx, directMessages(ws), directMaxTokens)
		ws.answer = answer
		ws.messages = append(ws.messages, llm.Message{Role: llm.RoleAssistant, Content: answer})
		return eventAnswered

	default:
		return eventAnswered
	}
}

var (
	listKeywords   = []string{"list", "show", "documents"}
	searchKeywords = []string{"search", "find", "about", "what"}
)

// routeEvent picks the initial branch from keyword presence. Listing keywords
// deliberately win over search keywords when a query contains both (e.g.
// "list documents about taxes").
func routeEvent(query string) event {
	lowered := strings.ToLower(query)
	for _, kw := range listKeywords {
		if strings.Contains(lowered, kw) {
			return eventListRequested
		}
	}
	for _, kw := range searchKeywords {
		if strings.Contains(lowered, kw) {
			return eventSearchRequested
		}
	}
	return eventDirectRequested
}

// stripContextAnnotation splits off the bracketed context prefix injected by
// the conversation tracker, if present.
func stripContextAnnotation(query string) (contextInfo, actual string) {
	if !strings.HasPrefix(query, "[Context:") {
		return "", query
	}
	end := strings.Index(query, "]")
	if end < 0 {
		return "", query
	}
	return strings.TrimSpace(query[1:end]), strings.TrimSpace(query[end+1:])
}

func formatDocumentList(records []docstore.Record) string {
	if len(records) == 0 {
		return "No documents have been uploaded yet."
	}

	var sb strings.Builder
	sb.WriteString("Available documents:\n\n")
	for _, record := range records {
		sb.WriteString(fmt.Sprintf("- %s (ID: %s)\n", record.DisplayName, record.DocID))
		sb.WriteString(fmt.Sprintf("  file: %s, format: %s, %d chunks, %d bytes, uploaded %s\n",
			record.OriginalFilename, record.Format, record.ChunkCount, record.ByteSize,
			record.UploadedAt.Format("2006-01-02 15:04")))
	}
	return sb.String()
}
