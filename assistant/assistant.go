// Package assistant routes parsed queries to the service that can answer
// them and renders the results as plain text.
package assistant

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/lmoretti/aide/adapters"
	"github.com/lmoretti/aide/convo"
	"github.com/lmoretti/aide/docstore"
	"github.com/lmoretti/aide/intent"
	"github.com/lmoretti/aide/llm"
	"github.com/lmoretti/aide/rag"
)

// Deps carries the services the assistant dispatches to. The external
// adapters may be nil when their integration is not configured.
type Deps struct {
	Store          *docstore.Store
	Engine         *rag.Engine
	LLM            llm.Client
	Email          *adapters.Email
	SourceControl  *adapters.SourceControl
	Calendar       *adapters.Calendar
	FileStorage    *adapters.FileStorage
	Logger         *log.Logger
	RequestTimeout time.Duration
}

// Assistant owns the parser, the conversation tracker and the services,
// and turns a raw query into a text response.
type Assistant struct {
	parser  *intent.Parser
	tracker *convo.Tracker
	store   *docstore.Store
	engine  *rag.Engine
	llm     llm.Client
	email   *adapters.Email
	sources *adapters.SourceControl
	cal     *adapters.Calendar
	files   *adapters.FileStorage
	logger  *log.Logger
	timeout time.Duration
}

func New(deps Deps) *Assistant {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	resolveDoc := func(docID string) (string, bool) {
		if deps.Store == nil {
			return "", false
		}
		record, ok := deps.Store.Get(docID)
		if !ok {
			return "", false
		}
		return record.DisplayName, true
	}

	return &Assistant{
		parser:  intent.NewParser(),
		tracker: convo.NewTracker(resolveDoc),
		store:   deps.Store,
		engine:  deps.Engine,
		llm:     llm.NewFallback(deps.LLM, logger),
		email:   deps.Email,
		sources: deps.SourceControl,
		cal:     deps.Calendar,
		files:   deps.FileStorage,
		logger:  logger,
		timeout: deps.RequestTimeout,
	}
}

// ProcessQuery parses the query, applies conversation context, runs the
// matching handler and records the exchange. It never panics outward.
func (a *Assistant) ProcessQuery(ctx context.Context, query string) (response string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Printf("recovered from panic while handling query: %v", r)
			response = "Something went wrong while handling that request. Please try again."
		}
	}()

	if strings.TrimSpace(query) == "" {
		return "Please enter a question or command."
	}

	parsed := a.parser.Parse(query)

	if a.tracker.IsFollowUp(query, parsed) {
		disambiguated := a.tracker.Disambiguate(query)
		parsed.Domain = intent.DomainDocumentCorpus
		parsed.Action = "agentic_query"
		if parsed.Parameters == nil {
			parsed.Parameters = make(map[string]any)
		}
		parsed.Parameters["query"] = disambiguated
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	switch parsed.Domain {
	case intent.DomainEmail:
		response = a.handleEmail(ctx, parsed)
	case intent.DomainSourceControl:
		response = a.handleSourceControl(ctx, parsed)
	case intent.DomainCalendar:
		response = a.handleCalendar(ctx, parsed)
	case intent.DomainDocumentCorpus:
		response = a.handleDocuments(ctx, parsed)
	case intent.DomainFileStorage:
		response = a.handleFileStorage(ctx, parsed)
	default:
		response = a.handleGeneral(ctx, parsed)
	}

	a.tracker.Record(query, parsed.Domain, parsed.Action, response)
	return response
}

// ClearContext resets the conversation history.
func (a *Assistant) ClearContext() {
	a.tracker.Clear()
}

// serviceError renders an adapter failure as user-facing text.
func (a *Assistant) serviceError(err error) string {
	var apiErr *adapters.APIError
	if errors.As(err, &apiErr) {
		a.logger.Printf("%s adapter error: %v", apiErr.Service, apiErr.Err)
		return "The " + strings.ReplaceAll(apiErr.Service, "_", " ") +
			" service returned an error. Please try again later."
	}
	a.logger.Printf("handler error: %v", err)
	return "That request failed. Please try again later."
}

func stringParam(params map[string]any, key string) string {
	if value, ok := params[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func intParam(params map[string]any, key string, fallback int) int {
	if value, ok := params[key].(int); ok && value > 0 {
		return value
	}
	return fallback
}

func stringsParam(params map[string]any, key string) []string {
	if value, ok := params[key].([]string); ok {
		return value
	}
	return nil
}
