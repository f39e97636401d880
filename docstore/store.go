// Package docstore persists uploaded documents, splits them into overlapping
// chunks, and maintains one similarity-searchable index per document.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const metadataFile = "documents.json"

// Record is the durable description of one uploaded document. It is owned
// exclusively by the store; DocID is derived from the filename plus a
// truncated content hash, so re-uploading identical content is idempotent.
type Record struct {
	DocID            string    `json:"doc_id"`
	OriginalFilename string    `json:"original_filename"`
	DisplayName      string    `json:"display_name"`
	StoredPath       string    `json:"stored_path"`
	Format           string    `json:"format"`
	UploadedAt       time.Time `json:"uploaded_at"`
	ByteSize         int64     `json:"byte_size"`
	ChunkCount       int       `json:"chunk_count"`
	CharCount        int       `json:"char_count"`
	IndexPath        string    `json:"index_path"`
}

// SearchResult is one chunk-level hit across the corpus. Score is a distance;
// results are sorted ascending (lower = more similar).
type SearchResult struct {
	DocID        string
	Text         string
	Score        float64
	DocumentName string
	StartOffset  int
}

// Stats aggregates corpus-level totals.
type Stats struct {
	TotalDocuments int
	TotalBytes     int64
	TotalChunks    int
	FormatCounts   map[string]int
	AvgChunks      float64
}

type Config struct {
	Dir           string
	MaxFileSizeMB int
	ChunkSize     int
	ChunkOverlap  int
}

type Store struct {
	mu         sync.Mutex
	dir        string
	maxBytes   int64
	splitter   *Splitter
	provider   IndexProvider
	extractors map[string]Extractor
	logger     *log.Logger
	records    map[string]Record
}

func New(cfg Config, provider IndexProvider, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 50
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	s := &Store{
		dir:        cfg.Dir,
		maxBytes:   int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		splitter:   NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		provider:   provider,
		extractors: defaultExtractors(),
		logger:     logger,
		records:    make(map[string]Record),
	}

	if err := s.loadMetadata(); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterExtractor adds or replaces the text extractor for an extension
// (including the leading dot).
func (s *Store) RegisterExtractor(ext string, fn Extractor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extractors[strings.ToLower(ext)] = fn
}

// Upload copies the file into managed storage, chunks and embeds its text,
// and builds the document's index. Re-uploading byte-identical content under
// the same filename returns the existing record unchanged.
func (s *Store) Upload(ctx context.Context, filePath, customName string) (Record, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	s.mu.Lock()
	extractor, supported := s.extractors[ext]
	s.mu.Unlock()
	if !supported {
		return Record{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return Record{}, fmt.Errorf("stat document: %w", err)
	}
	if info.Size() > s.maxBytes {
		return Record{}, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), s.maxBytes)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return Record{}, fmt.Errorf("read document: %w", err)
	}

	text, err := extractor(data)
	if err != nil {
		return Record{}, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Record{}, ErrEmptyDocument
	}

	filename := filepath.Base(filePath)
	docID := generateDocID(filename, text)

	s.mu.Lock()
	if existing, ok := s.records[docID]; ok {
		s.mu.Unlock()
		s.logger.Printf("document %s already exists, returning existing record", docID)
		return existing, nil
	}
	s.mu.Unlock()

	storedPath := filepath.Join(s.dir, docID+ext)
	if err := os.WriteFile(storedPath, data, 0o640); err != nil {
		return Record{}, fmt.Errorf("copy document into storage: %w", err)
	}

	chunks := s.splitter.Split(text)
	for i := range chunks {
		chunks[i].SourceDocID = docID
	}

	// Nothing references the copied file or index until the record is
	// saved, so any failure past this point removes both again.
	indexPath := filepath.Join(s.dir, docID+"_index")
	index, err := s.provider.Create(ctx, docID, indexPath)
	if err != nil {
		s.discardPartialUpload(ctx, docID, storedPath, indexPath)
		return Record{}, fmt.Errorf("build index: %w", err)
	}
	if err := index.Add(ctx, chunks); err != nil {
		s.discardPartialUpload(ctx, docID, storedPath, indexPath)
		return Record{}, fmt.Errorf("index chunks: %w", err)
	}

	displayName := customName
	if displayName == "" {
		displayName = strings.TrimSuffix(filename, ext)
	}

	record := Record{
		DocID:            docID,
		OriginalFilename: filename,
		DisplayName:      displayName,
		StoredPath:       storedPath,
		Format:           strings.TrimPrefix(ext, "."),
		UploadedAt:       time.Now(),
		ByteSize:         info.Size(),
		ChunkCount:       len(chunks),
		CharCount:        len(text),
		IndexPath:        indexPath,
	}

	s.mu.Lock()
	s.records[docID] = record
	err = s.saveMetadataLocked()
	if err != nil {
		delete(s.records, docID)
	}
	s.mu.Unlock()
	if err != nil {
		s.discardPartialUpload(ctx, docID, storedPath, indexPath)
		return Record{}, err
	}

	s.logger.Printf("uploaded %s (%d chunks)", docID, len(chunks))
	return record, nil
}

// discardPartialUpload removes the copied file and index of an upload that
// failed before its record was saved. Cleanup is best effort.
func (s *Store) discardPartialUpload(ctx context.Context, docID, storedPath, indexPath string) {
	if err := os.Remove(storedPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Printf("discard stored file for %s: %v", docID, err)
	}
	if err := s.provider.Remove(ctx, docID, indexPath); err != nil {
		s.logger.Printf("discard index for %s: %v", docID, err)
	}
}

// Get returns the record for docID.
func (s *Store) Get(docID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[docID]
	return record, ok
}

// List returns every record. Order is unspecified; callers must not rely on
// insertion order.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	return records
}

// Delete removes the stored file, the index, and the record. Physical
// removals happen before the record is dropped so a failure cannot orphan an
// index behind a forgotten id. Returns false for unknown ids.
func (s *Store) Delete(ctx context.Context, docID string) bool {
	s.mu.Lock()
	record, ok := s.records[docID]
	s.mu.Unlock()
	if !ok {
		return false
	}

	if err := os.Remove(record.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Printf("delete stored file for %s: %v", docID, err)
		return false
	}
	if err := s.provider.Remove(ctx, docID, record.IndexPath); err != nil {
		s.logger.Printf("delete index for %s: %v", docID, err)
		return false
	}

	s.mu.Lock()
	delete(s.records, docID)
	if err := s.saveMetadataLocked(); err != nil {
		s.logger.Printf("save metadata after delete: %v", err)
	}
	s.mu.Unlock()

	s.logger.Printf("deleted document %s", docID)
	return true
}

// Search runs one similarity query per target document and merges the
// results, ascending by distance, truncated to k. A nil docIDs searches the
// whole corpus; cost scales linearly with corpus size. Documents whose index
// is missing or unreadable contribute no results.
func (s *Store) Search(ctx context.Context, query string, docIDs []string, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 5
	}

	targets := docIDs
	if len(targets) == 0 {
		for _, record := range s.List() {
			targets = append(targets, record.DocID)
		}
	}

	results := make([]SearchResult, 0, k)
	for _, docID := range targets {
		record, ok := s.Get(docID)
		if !ok {
			continue
		}

		index, err := s.provider.Open(ctx, docID, record.IndexPath)
		if err != nil {
			s.logger.Printf("skip %s: %v", docID, err)
			continue
		}

		hits, err := index.Search(ctx, query, k)
		if err != nil {
			s.logger.Printf("search failed for %s: %v", docID, err)
			continue
		}

		for _, hit := range hits {
			results = append(results, SearchResult{
				DocID:        docID,
				Text:         hit.Text,
				Score:        hit.Score,
				DocumentName: record.DisplayName,
				StartOffset:  hit.StartOffset,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// AggregateStats summarises the corpus for status displays.
func (s *Store) AggregateStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{FormatCounts: make(map[string]int)}
	for _, record := range s.records {
		stats.TotalDocuments++
		stats.TotalBytes += record.ByteSize
		stats.TotalChunks += record.ChunkCount
		stats.FormatCounts[record.Format]++
	}
	if stats.TotalDocuments > 0 {
		stats.AvgChunks = float64(stats.TotalChunks) / float64(stats.TotalDocuments)
	}
	return stats
}

func generateDocID(filename, text string) string {
	hash := sha256.Sum256([]byte(text))
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return fmt.Sprintf("%s_%s", stem, hex.EncodeToString(hash[:])[:8])
}

func (s *Store) loadMetadata() error {
	path := filepath.Join(s.dir, metadataFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		// A corrupt metadata file should not brick the store; start empty
		// and let uploads rebuild it.
		s.logger.Printf("metadata file unreadable, starting empty: %v", err)
		return nil
	}
	s.records = records
	return nil
}

func (s *Store) saveMetadataLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	path := filepath.Join(s.dir, metadataFile)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
