package docstore

import (
	"context"
	"fmt"
	"os"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/lmoretti/aide/embeddings"
)

// Hit is a single nearest-neighbor result from one document's index. Score is
// a distance: lower means more similar.
type Hit struct {
	Text        string
	StartOffset int
	Score       float64
}

// Index is one document's similarity-searchable chunk index.
type Index interface {
	Add(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}

// IndexProvider creates, opens, and removes per-document indexes. Each index
// belongs to exactly one document record; its physical location is derived
// from the record's id.
type IndexProvider interface {
	// Create builds a fresh index, replacing any existing one.
	Create(ctx context.Context, docID, path string) (Index, error)
	// Open loads an existing index; it fails with ErrIndexUnavailable when
	// the index is missing or unreadable.
	Open(ctx context.Context, docID, path string) (Index, error)
	Remove(ctx context.Context, docID, path string) error
}

const chromemCollection = "chunks"

// ChromemProvider stores each document's index as an embedded chromem
// database persisted under the document's index path.
type ChromemProvider struct {
	embedFn chromem.EmbeddingFunc
}

func NewChromemProvider(embedder embeddings.Embedder) *ChromemProvider {
	return &ChromemProvider{
		embedFn: func(ctx context.Context, text string) ([]float32, error) {
			return embeddings.EmbedOne(ctx, embedder, text)
		},
	}
}

func (p *ChromemProvider) Create(_ context.Context, docID, path string) (Index, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("clear index dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("create index for %s: %w", docID, err)
	}
	col, err := db.CreateCollection(chromemCollection, nil, p.embedFn)
	if err != nil {
		return nil, fmt.Errorf("create index collection for %s: %w", docID, err)
	}
	return &chromemIndex{col: col}, nil
}

func (p *ChromemProvider) Open(_ context.Context, docID, path string) (Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, docID)
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexUnavailable, docID, err)
	}
	col := db.GetCollection(chromemCollection, p.embedFn)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, docID)
	}
	return &chromemIndex{col: col}, nil
}

func (p *ChromemProvider) Remove(_ context.Context, _, path string) error {
	return os.RemoveAll(path)
}

type chromemIndex struct {
	col *chromem.Collection
}

func (i *chromemIndex) Add(ctx context.Context, chunks []Chunk) error {
	docs := make([]chromem.Document, 0, len(chunks))
	for idx, chunk := range chunks {
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("chunk-%06d", idx),
			Content: chunk.Text,
			Metadata: map[string]string{
				"start_offset": strconv.Itoa(chunk.StartOffset),
			},
		})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := i.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add chunks: %w", err)
	}
	return nil
}

func (i *chromemIndex) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	count := i.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	// chromem occasionally rejects k == count after partial flushes; step k
	// down rather than failing the whole search.
	var (
		results []chromem.Result
		err     error
	)
	for attempt := k; attempt > 0; attempt-- {
		results, err = i.col.Query(ctx, query, attempt, nil, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		offset, _ := strconv.Atoi(r.Metadata["start_offset"])
		hits = append(hits, Hit{
			Text:        r.Content,
			StartOffset: offset,
			// chromem reports cosine similarity (higher is better); convert
			// to a distance so lower is more similar everywhere.
			Score: 1 - float64(r.Similarity),
		})
	}
	return hits, nil
}
