package assistant_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lmoretti/aide/assistant"
	"github.com/lmoretti/aide/docstore"
	"github.com/lmoretti/aide/llm"
	"github.com/lmoretti/aide/rag"
)

type memIndex struct {
	chunks []docstore.Chunk
}

func (m *memIndex) Add(ctx context.Context, chunks []docstore.Chunk) error {
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memIndex) Search(ctx context.Context, query string, k int) ([]docstore.Hit, error) {
	var hits []docstore.Hit
	for i, chunk := range m.chunks {
		hits = append(hits, docstore.Hit{
			Text:        chunk.Text,
			StartOffset: chunk.StartOffset,
			Score:       0.1 + float64(i)*0.01,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

var _ docstore.Index = (*memIndex)(nil)

type memProvider struct {
	indexes map[string]*memIndex
}

func (p *memProvider) Create(ctx context.Context, docID, path string) (docstore.Index, error) {
	index := &memIndex{}
	p.indexes[docID] = index
	return index, nil
}

func (p *memProvider) Open(ctx context.Context, docID, path string) (docstore.Index, error) {
	index, ok := p.indexes[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", docstore.ErrIndexUnavailable, docID)
	}
	return index, nil
}

func (p *memProvider) Remove(ctx context.Context, docID, path string) error {
	delete(p.indexes, docID)
	return nil
}

var _ docstore.IndexProvider = (*memProvider)(nil)

type scriptedLLM struct {
	answer string
	calls  int
}

func (s *scriptedLLM) Generate(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	s.calls++
	return s.answer, nil
}

var _ llm.Client = (*scriptedLLM)(nil)

func newTestAssistant(t *testing.T) (*assistant.Assistant, *docstore.Store, *scriptedLLM) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	store, err := docstore.New(docstore.Config{Dir: t.TempDir()},
		&memProvider{indexes: make(map[string]*memIndex)}, logger)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	client := &scriptedLLM{answer: "model answer"}
	engine := rag.NewEngine(store, client, rag.Config{RelevanceThreshold: 0.8, MaxRewrites: 2}, logger)

	a := assistant.New(assistant.Deps{
		Store:  store,
		Engine: engine,
		LLM:    client,
		Logger: logger,
	})
	return a, store, client
}

func uploadDoc(t *testing.T, store *docstore.Store, name, content string) docstore.Record {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write file: %v", err)
	}
	record, err := store.Upload(context.Background(), path, "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return record
}

func TestProcessQueryEmptyInput(t *testing.T) {
	a, _, _ := newTestAssistant(t)

	got := a.ProcessQuery(context.Background(), "   ")
	if !strings.Contains(got, "enter a question") {
		t.Errorf("empty input response = %q", got)
	}
}

func TestProcessQueryUnconfiguredServices(t *testing.T) {
	a, _, _ := newTestAssistant(t)
	ctx := context.Background()

	cases := []struct {
		query string
		want  string
	}{
		{"how many unread emails do I have", "Email access is not configured"},
		{"prs to review", "Source control access is not configured"},
		{"what's my schedule today", "Calendar access is not configured"},
		{"recent files", "File storage access is not configured"},
	}
	for _, tc := range cases {
		if got := a.ProcessQuery(ctx, tc.query); !strings.Contains(got, tc.want) {
			t.Errorf("ProcessQuery(%q) = %q, want substring %q", tc.query, got, tc.want)
		}
	}
}

func TestProcessQueryListsDocuments(t *testing.T) {
	a, store, _ := newTestAssistant(t)
	record := uploadDoc(t, store, "report.txt", "quarterly revenue grew ten percent")

	got := a.ProcessQuery(context.Background(), "list documents")
	if !strings.Contains(got, record.DocID) || !strings.Contains(got, "report") {
		t.Errorf("listing = %q", got)
	}
}

func TestProcessQueryDeleteDocument(t *testing.T) {
	a, store, _ := newTestAssistant(t)
	record := uploadDoc(t, store, "old.txt", "obsolete content")

	got := a.ProcessQuery(context.Background(), "delete document "+record.DocID)
	if !strings.Contains(got, "Deleted") {
		t.Fatalf("delete response = %q", got)
	}
	if _, ok := store.Get(record.DocID); ok {
		t.Error("document still present after delete")
	}

	got = a.ProcessQuery(context.Background(), "delete document nope_00000000")
	if !strings.Contains(got, "couldn't delete") {
		t.Errorf("unknown delete response = %q", got)
	}
}

func TestProcessQuerySummarizeUnknownDocument(t *testing.T) {
	a, _, _ := newTestAssistant(t)

	got := a.ProcessQuery(context.Background(), "summarize document missing_00000000")
	if !strings.Contains(got, "couldn't find a document") {
		t.Errorf("response = %q", got)
	}
}

func TestProcessQueryAgenticAnswer(t *testing.T) {
	a, store, client := newTestAssistant(t)
	uploadDoc(t, store, "report.txt", "quarterly revenue grew ten percent")

	got := a.ProcessQuery(context.Background(), "what does the document say about revenue")
	if got != "model answer" {
		t.Fatalf("answer = %q", got)
	}
	if client.calls == 0 {
		t.Error("generation never ran")
	}
}

func TestProcessQueryFollowUpRoutesToLastDocument(t *testing.T) {
	a, store, _ := newTestAssistant(t)
	record := uploadDoc(t, store, "report.txt", "quarterly revenue grew ten percent")

	first := a.ProcessQuery(context.Background(), "summarize document "+record.DocID)
	if strings.Contains(first, "couldn't find") {
		t.Fatalf("summarize failed: %q", first)
	}

	// The follow-up mentions no document; context must route it back to the
	// summarized one.
	got := a.ProcessQuery(context.Background(), "tell me more about it")
	if got != "model answer" {
		t.Errorf("follow-up answer = %q", got)
	}
}

func TestProcessQueryGeneralFallback(t *testing.T) {
	a, _, client := newTestAssistant(t)
	client.answer = "general knowledge answer"

	got := a.ProcessQuery(context.Background(), "tell me a joke")
	if got != "general knowledge answer" {
		t.Errorf("general answer = %q", got)
	}
}

func TestProcessQueryStatusReport(t *testing.T) {
	a, store, _ := newTestAssistant(t)
	uploadDoc(t, store, "a.txt", "some content")

	got := a.ProcessQuery(context.Background(), "status of everything")
	if !strings.Contains(got, "email: not configured") {
		t.Errorf("status = %q", got)
	}
	if !strings.Contains(got, "documents: 1 stored") {
		t.Errorf("status missing document count: %q", got)
	}
}

func TestProcessQueryHelp(t *testing.T) {
	a, _, _ := newTestAssistant(t)

	got := a.ProcessQuery(context.Background(), "help")
	if !strings.Contains(got, "Email:") || !strings.Contains(got, "Documents:") {
		t.Errorf("help text = %q", got)
	}
}
