package rag

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lmoretti/aide/docstore"
	"github.com/lmoretti/aide/llm"
)

type stubStore struct {
	records     map[string]docstore.Record
	hits        []docstore.SearchResult
	searchErr   error
	searchCalls int
	lastDocIDs  []string
}

func (s *stubStore) Search(ctx context.Context, query string, docIDs []string, k int) ([]docstore.SearchResult, error) {
	s.searchCalls++
	s.lastDocIDs = docIDs
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.hits, nil
}

func (s *stubStore) Get(docID string) (docstore.Record, bool) {
	record, ok := s.records[docID]
	return record, ok
}

func (s *stubStore) List() []docstore.Record {
	var records []docstore.Record
	for _, record := range s.records {
		records = append(records, record)
	}
	return records
}

var _ DocumentStore = (*stubStore)(nil)

type stubLLM struct {
	answer string
	err    error
	calls  int
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

var _ llm.Client = (*stubLLM)(nil)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func record(id, name string) docstore.Record {
	return docstore.Record{DocID: id, DisplayName: name, Format: "txt", ChunkCount: 3}
}

func hit(score float64) docstore.SearchResult {
	return docstore.SearchResult{DocID: "doc_1", Text: "chunk text", Score: score, DocumentName: "Doc One"}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		state stateKind
		ev    event
		want  stateKind
	}{
		{stateRoute, eventListRequested, stateListDocuments},
		{stateRoute, eventSearchRequested, stateSearch},
		{stateRoute, eventDirectRequested, stateDirectAnswer},
		{stateSearch, eventResultsFound, stateGradeRelevance},
		{stateSearch, eventNoResults, stateRewriteQuery},
		{stateGradeRelevance, eventRelevant, stateGenerateAnswer},
		{stateGradeRelevance, eventNotRelevant, stateRewriteQuery},
		{stateRewriteQuery, eventRewritten, stateSearch},
		{stateRewriteQuery, eventRewriteBudgetSpent, stateGenerateAnswer},
		{stateListDocuments, eventAnswered, stateDone},
		{stateGenerateAnswer, eventAnswered, stateDone},
		{stateDirectAnswer, eventAnswered, stateDone},
	}

	for _, tc := range cases {
		if got := transition(tc.state, tc.ev); got != tc.want {
			t.Errorf("transition(%d, %d) = %d, want %d", tc.state, tc.ev, got, tc.want)
		}
	}
}

func TestRouteListKeywordsWinOverSearchKeywords(t *testing.T) {
	cases := []struct {
		query string
		want  event
	}{
		{"list my documents", eventListRequested},
		{"show everything", eventListRequested},
		{"list documents about taxes", eventListRequested},
		{"what is the report about", eventSearchRequested},
		{"find the revenue figures", eventSearchRequested},
		{"hello there", eventDirectRequested},
	}

	for _, tc := range cases {
		if got := routeEvent(tc.query); got != tc.want {
			t.Errorf("routeEvent(%q) = %d, want %d", tc.query, got, tc.want)
		}
	}
}

func TestStripContextAnnotation(t *testing.T) {
	contextInfo, actual := stripContextAnnotation(
		"[Context: User is likely referring to document 'Doc One' (ID: doc_1)] what about revenue?")
	if !strings.HasPrefix(contextInfo, "Context: User is likely referring") {
		t.Errorf("contextInfo = %q", contextInfo)
	}
	if actual != "what about revenue?" {
		t.Errorf("actual = %q", actual)
	}

	contextInfo, actual = stripContextAnnotation("plain query")
	if contextInfo != "" || actual != "plain query" {
		t.Errorf("plain query mangled: %q %q", contextInfo, actual)
	}
}

func TestProcessQueryAnswersFromRelevantResults(t *testing.T) {
	store := &stubStore{hits: []docstore.SearchResult{hit(0.2)}}
	client := &stubLLM{answer: "grounded answer"}
	engine := NewEngine(store, client, Config{RelevanceThreshold: 0.8, MaxRewrites: 2}, quietLogger())

	answer := engine.ProcessQuery(context.Background(), "what does the report say")
	if answer != "grounded answer" {
		t.Fatalf("answer = %q", answer)
	}
	if store.searchCalls != 1 {
		t.Errorf("searchCalls = %d, want 1 (no rewrites for relevant hits)", store.searchCalls)
	}
	if client.calls != 1 {
		t.Errorf("llm calls = %d, want 1", client.calls)
	}
}

func TestProcessQueryRewriteLoopIsBounded(t *testing.T) {
	store := &stubStore{hits: []docstore.SearchResult{hit(0.95)}} // always irrelevant
	client := &stubLLM{answer: "rewritten query"}
	engine := NewEngine(store, client, Config{RelevanceThreshold: 0.8, MaxRewrites: 2}, quietLogger())

	answer := engine.ProcessQuery(context.Background(), "what is mentioned about zebras")
	if answer == "" {
		t.Fatal("empty answer after exhausted rewrite budget")
	}
	// Initial search plus one per rewrite.
	if store.searchCalls != 3 {
		t.Errorf("searchCalls = %d, want 3", store.searchCalls)
	}
	// Two rewrites plus the final answer.
	if client.calls != 3 {
		t.Errorf("llm calls = %d, want 3", client.calls)
	}
}

func TestProcessQueryListsDocumentsWithoutGeneration(t *testing.T) {
	store := &stubStore{records: map[string]docstore.Record{
		"doc_1": record("doc_1", "Doc One"),
	}}
	client := &stubLLM{answer: "should not be called"}
	engine := NewEngine(store, client, Config{}, quietLogger())

	answer := engine.ProcessQuery(context.Background(), "list my documents")
	if !strings.Contains(answer, "Doc One") || !strings.Contains(answer, "doc_1") {
		t.Errorf("listing missing document info: %q", answer)
	}
	if client.calls != 0 {
		t.Errorf("llm calls = %d, want 0", client.calls)
	}
}

func TestProcessQueryDirectAnswerWithoutKeywords(t *testing.T) {
	store := &stubStore{}
	client := &stubLLM{answer: "direct reply"}
	engine := NewEngine(store, client, Config{}, quietLogger())

	answer := engine.ProcessQuery(context.Background(), "hello")
	if answer != "direct reply" {
		t.Fatalf("answer = %q", answer)
	}
	if store.searchCalls != 0 {
		t.Errorf("searchCalls = %d, want 0", store.searchCalls)
	}
}

func TestProcessQueryFallsBackWhenGenerationFails(t *testing.T) {
	store := &stubStore{hits: []docstore.SearchResult{hit(0.2)}}
	client := &stubLLM{err: errors.New("model offline")}
	engine := NewEngine(store, client, Config{}, quietLogger())

	answer := engine.ProcessQuery(context.Background(), "what does the report say")
	if answer != llm.FallbackAnswer {
		t.Fatalf("answer = %q, want fallback text", answer)
	}
}

func TestSummarizeUnknownDocument(t *testing.T) {
	engine := NewEngine(&stubStore{}, &stubLLM{answer: "x"}, Config{}, quietLogger())

	_, err := engine.Summarize(context.Background(), "missing_00000000")
	if !errors.Is(err, docstore.ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestSummarizeSearchesOnlyTheTarget(t *testing.T) {
	store := &stubStore{
		records: map[string]docstore.Record{"doc_1": record("doc_1", "Doc One")},
		hits:    []docstore.SearchResult{hit(0.3)},
	}
	engine := NewEngine(store, &stubLLM{answer: "summary text"}, Config{}, quietLogger())

	summary, err := engine.Summarize(context.Background(), "doc_1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != "summary text" {
		t.Errorf("summary = %q", summary)
	}
	if len(store.lastDocIDs) != 1 || store.lastDocIDs[0] != "doc_1" {
		t.Errorf("summarize searched %v, want [doc_1]", store.lastDocIDs)
	}
}

func TestCompareRequiresAtLeastTwoDocuments(t *testing.T) {
	engine := NewEngine(&stubStore{}, &stubLLM{answer: "x"}, Config{}, quietLogger())

	if _, err := engine.Compare(context.Background(), []string{"only_one"}, ""); err == nil {
		t.Fatal("Compare accepted a single document id")
	}
}

func TestCompareUnknownDocument(t *testing.T) {
	store := &stubStore{records: map[string]docstore.Record{"doc_1": record("doc_1", "Doc One")}}
	engine := NewEngine(store, &stubLLM{answer: "x"}, Config{}, quietLogger())

	_, err := engine.Compare(context.Background(), []string{"doc_1", "missing_0"}, "")
	if !errors.Is(err, docstore.ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestExtractAndAnalyzeUnknownDocument(t *testing.T) {
	engine := NewEngine(&stubStore{}, &stubLLM{answer: "x"}, Config{}, quietLogger())

	if _, err := engine.Analyze(context.Background(), "missing_0", "themes"); !errors.Is(err, docstore.ErrDocumentNotFound) {
		t.Errorf("Analyze err = %v", err)
	}
	if _, err := engine.Extract(context.Background(), "missing_0", "dates"); !errors.Is(err, docstore.ErrDocumentNotFound) {
		t.Errorf("Extract err = %v", err)
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	s := strings.Repeat("研", 10) // 3 bytes per rune

	got := truncate(s, 10)
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("研", 3) + "..."; got != want {
		t.Errorf("truncate = %q, want %q", got, want)
	}

	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate below cap = %q, want unchanged", got)
	}
}
