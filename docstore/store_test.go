package docstore_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lmoretti/aide/docstore"
)

// fakeIndex matches chunks by substring and reports a fixed base distance
// plus the chunk position, so result ordering is deterministic.
type fakeIndex struct {
	chunks []docstore.Chunk
	base   float64
	addErr error
}

func (f *fakeIndex) Add(ctx context.Context, chunks []docstore.Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, query string, k int) ([]docstore.Hit, error) {
	var hits []docstore.Hit
	for i, chunk := range f.chunks {
		if !strings.Contains(strings.ToLower(chunk.Text), strings.ToLower(query)) {
			continue
		}
		hits = append(hits, docstore.Hit{
			Text:        chunk.Text,
			StartOffset: chunk.StartOffset,
			Score:       f.base + float64(i)*0.01,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

var _ docstore.Index = (*fakeIndex)(nil)

type fakeProvider struct {
	indexes     map[string]*fakeIndex
	nextBase    float64
	addErr      error
	createCalls int
	removeCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{indexes: make(map[string]*fakeIndex), nextBase: 0.1}
}

func (p *fakeProvider) Create(ctx context.Context, docID, path string) (docstore.Index, error) {
	p.createCalls++
	index := &fakeIndex{base: p.nextBase, addErr: p.addErr}
	p.nextBase += 0.1
	p.indexes[docID] = index
	return index, nil
}

func (p *fakeProvider) Open(ctx context.Context, docID, path string) (docstore.Index, error) {
	index, ok := p.indexes[docID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", docstore.ErrIndexUnavailable, docID)
	}
	return index, nil
}

func (p *fakeProvider) Remove(ctx context.Context, docID, path string) error {
	p.removeCalls++
	delete(p.indexes, docID)
	return nil
}

var _ docstore.IndexProvider = (*fakeProvider)(nil)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestStore(t *testing.T) (*docstore.Store, *fakeProvider, string) {
	t.Helper()
	dir := t.TempDir()
	provider := newFakeProvider()
	store, err := docstore.New(docstore.Config{Dir: dir}, provider, quietLogger())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store, provider, dir
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestUploadCreatesRecordAndIndex(t *testing.T) {
	store, provider, dir := newTestStore(t)
	path := writeTempFile(t, "notes.txt", "The quarterly revenue grew by ten percent.")

	record, err := store.Upload(context.Background(), path, "Quarterly Notes")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if !strings.HasPrefix(record.DocID, "notes_") {
		t.Errorf("DocID = %q, want notes_<hash> prefix", record.DocID)
	}
	if record.DisplayName != "Quarterly Notes" {
		t.Errorf("DisplayName = %q", record.DisplayName)
	}
	if record.Format != "txt" || record.ChunkCount == 0 || record.CharCount == 0 {
		t.Errorf("record = %+v", record)
	}
	if provider.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", provider.createCalls)
	}
	if _, err := os.Stat(record.StoredPath); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
	if !strings.HasPrefix(record.StoredPath, dir) {
		t.Errorf("stored path %q outside storage dir", record.StoredPath)
	}
}

func TestUploadIdenticalContentIsIdempotent(t *testing.T) {
	store, provider, _ := newTestStore(t)
	path := writeTempFile(t, "notes.txt", "Same content both times.")

	first, err := store.Upload(context.Background(), path, "")
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := store.Upload(context.Background(), path, "")
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	if first.DocID != second.DocID {
		t.Errorf("DocIDs differ: %s vs %s", first.DocID, second.DocID)
	}
	if provider.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1 (no re-index)", provider.createCalls)
	}
	if len(store.List()) != 1 {
		t.Errorf("record count = %d, want 1", len(store.List()))
	}
}

func TestUploadChangedContentYieldsNewDocument(t *testing.T) {
	store, _, _ := newTestStore(t)

	first, err := store.Upload(context.Background(), writeTempFile(t, "notes.txt", "version one"), "")
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := store.Upload(context.Background(), writeTempFile(t, "notes.txt", "version two"), "")
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	if first.DocID == second.DocID {
		t.Fatalf("changed content reused DocID %s", first.DocID)
	}
	if len(store.List()) != 2 {
		t.Errorf("record count = %d, want 2", len(store.List()))
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	store, _, _ := newTestStore(t)
	path := writeTempFile(t, "image.png", "not text")

	_, err := store.Upload(context.Background(), path, "")
	if !errors.Is(err, docstore.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if len(store.List()) != 0 {
		t.Errorf("failed upload left a record behind")
	}
}

func TestUploadRejectsEmptyDocument(t *testing.T) {
	store, _, _ := newTestStore(t)
	path := writeTempFile(t, "blank.txt", "   \n\t  ")

	_, err := store.Upload(context.Background(), path, "")
	if !errors.Is(err, docstore.ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := docstore.New(docstore.Config{Dir: dir, MaxFileSizeMB: 1}, newFakeProvider(), quietLogger())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	path := writeTempFile(t, "big.txt", strings.Repeat("a", 2*1024*1024))
	_, err = store.Upload(context.Background(), path, "")
	if !errors.Is(err, docstore.ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestUploadFailureLeavesNoOrphanedFiles(t *testing.T) {
	store, provider, dir := newTestStore(t)
	provider.addErr = errors.New("embedder offline")
	path := writeTempFile(t, "notes.txt", "Content that never gets indexed.")

	if _, err := store.Upload(context.Background(), path, ""); err == nil {
		t.Fatal("upload succeeded, want indexing error")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read storage dir: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != "documents.json" {
			t.Errorf("orphaned entry %q left after failed upload", entry.Name())
		}
	}
	if provider.removeCalls != 1 {
		t.Errorf("removeCalls = %d, want 1", provider.removeCalls)
	}
	if got := len(store.List()); got != 0 {
		t.Errorf("records after failed upload = %d, want 0", got)
	}

	// The same file uploads cleanly once indexing recovers.
	provider.addErr = nil
	if _, err := store.Upload(context.Background(), path, ""); err != nil {
		t.Fatalf("retry upload: %v", err)
	}
}

func TestDeleteRemovesDocumentAndIndex(t *testing.T) {
	store, provider, _ := newTestStore(t)
	record, err := store.Upload(context.Background(), writeTempFile(t, "notes.txt", "delete me"), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if !store.Delete(context.Background(), record.DocID) {
		t.Fatal("Delete returned false for a known document")
	}
	if _, ok := store.Get(record.DocID); ok {
		t.Error("record still present after delete")
	}
	if _, err := os.Stat(record.StoredPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stored file still present: %v", err)
	}
	if provider.removeCalls != 1 {
		t.Errorf("removeCalls = %d, want 1", provider.removeCalls)
	}
}

func TestDeleteUnknownDocumentReturnsFalse(t *testing.T) {
	store, _, _ := newTestStore(t)
	if store.Delete(context.Background(), "nope_00000000") {
		t.Fatal("Delete returned true for an unknown id")
	}
}

func TestSearchRestrictsToRequestedDocuments(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	alpha, err := store.Upload(ctx, writeTempFile(t, "alpha.txt", "the shared keyword appears here"), "")
	if err != nil {
		t.Fatalf("upload alpha: %v", err)
	}
	beta, err := store.Upload(ctx, writeTempFile(t, "beta.txt", "the shared keyword appears here too"), "")
	if err != nil {
		t.Fatalf("upload beta: %v", err)
	}

	results, err := store.Search(ctx, "shared keyword", []string{alpha.DocID}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results for restricted search")
	}
	for _, result := range results {
		if result.DocID != alpha.DocID {
			t.Errorf("result from %s leaked into restricted search", result.DocID)
		}
	}

	all, err := store.Search(ctx, "shared keyword", nil, 10)
	if err != nil {
		t.Fatalf("search all: %v", err)
	}
	seen := map[string]bool{}
	for _, result := range all {
		seen[result.DocID] = true
	}
	if !seen[alpha.DocID] || !seen[beta.DocID] {
		t.Errorf("corpus search missed a document: %v", seen)
	}
}

func TestSearchReturnsAscendingScores(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	// Two documents; the fake provider gives the second a larger base
	// distance, so merged results must interleave in score order.
	if _, err := store.Upload(ctx, writeTempFile(t, "a.txt", "finding one. finding two."), ""); err != nil {
		t.Fatalf("upload a: %v", err)
	}
	if _, err := store.Upload(ctx, writeTempFile(t, "b.txt", "finding three. finding four."), ""); err != nil {
		t.Fatalf("upload b: %v", err)
	}

	results, err := store.Search(ctx, "finding", nil, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("got %d results, want at least 2", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score < results[i-1].Score {
			t.Fatalf("results not ascending at %d: %.3f after %.3f",
				i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestSearchSkipsUnknownAndUnopenableDocuments(t *testing.T) {
	store, provider, _ := newTestStore(t)
	ctx := context.Background()

	record, err := store.Upload(ctx, writeTempFile(t, "a.txt", "content here"), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	// Unknown ids contribute nothing.
	results, err := store.Search(ctx, "content", []string{"missing_00000000", record.DocID}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("known document not searched")
	}

	// A document whose index cannot be opened is skipped, not fatal.
	delete(provider.indexes, record.DocID)
	results, err = store.Search(ctx, "content", nil, 5)
	if err != nil {
		t.Fatalf("search with broken index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from an unopenable index", len(results))
	}
}

func TestMetadataSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	provider := newFakeProvider()

	store, err := docstore.New(docstore.Config{Dir: dir}, provider, quietLogger())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	record, err := store.Upload(context.Background(), writeTempFile(t, "keep.txt", "persisted content"), "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	reopened, err := docstore.New(docstore.Config{Dir: dir}, provider, quietLogger())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	got, ok := reopened.Get(record.DocID)
	if !ok {
		t.Fatal("record lost across reopen")
	}
	if got.DisplayName != record.DisplayName || got.ChunkCount != record.ChunkCount {
		t.Errorf("reopened record = %+v, want %+v", got, record)
	}
}

func TestAggregateStats(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Upload(ctx, writeTempFile(t, "a.txt", "first document"), ""); err != nil {
		t.Fatalf("upload a: %v", err)
	}
	if _, err := store.Upload(ctx, writeTempFile(t, "b.md", "# second document"), ""); err != nil {
		t.Fatalf("upload b: %v", err)
	}

	stats := store.AggregateStats()
	if stats.TotalDocuments != 2 {
		t.Errorf("TotalDocuments = %d, want 2", stats.TotalDocuments)
	}
	if stats.FormatCounts["txt"] != 1 || stats.FormatCounts["md"] != 1 {
		t.Errorf("FormatCounts = %v", stats.FormatCounts)
	}
	if stats.TotalChunks == 0 || stats.AvgChunks == 0 {
		t.Errorf("chunk stats = %+v", stats)
	}
}
