package docstore

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the target number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the number of characters repeated between
// consecutive chunks.
const DefaultChunkOverlap = 200

// Chunk is a bounded window of a document's extracted text. Chunks are
// derived data: they are embedded into the document's index and never
// persisted as entities. StartOffset is informational only; offsets are not
// stable across re-uploads or splitter changes.
type Chunk struct {
	Text        string
	SourceDocID string
	StartOffset int
}

// Splitter cuts text into overlapping windows, preferring paragraph and then
// sentence boundaries before falling back to hard character cuts.
type Splitter struct {
	size    int
	overlap int
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split returns the chunks of text in order. Whitespace-only windows are
// dropped.
func (s *Splitter) Split(text string) []Chunk {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	length := len(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunks := make([]Chunk, 0, length/(s.size-s.overlap)+1)
	start := 0

	for start < length {
		end := start + s.size
		if end >= length {
			end = length
		} else {
			end = runeStart(text, s.breakPoint(text, start, end))
			if end <= start {
				_, width := utf8.DecodeRuneInString(text[start:])
				end = start + width
			}
		}

		window := text[start:end]
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, Chunk{Text: window, StartOffset: start})
		}

		if end == length {
			break
		}

		next := runeStart(text, end-s.overlap)
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// breakPoint searches the second half of the window for a paragraph break,
// then a sentence break, before accepting a hard cut at end.
func (s *Splitter) breakPoint(text string, start, end int) int {
	floor := start + s.size/2

	if idx := strings.LastIndex(text[floor:end], "\n\n"); idx >= 0 {
		return floor + idx + 2
	}

	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if idx := strings.LastIndex(text[floor:end], sep); idx >= 0 {
			return floor + idx + len(sep)
		}
	}

	return end
}

// runeStart walks i back to the nearest UTF-8 rune boundary so slicing at i
// never splits a multibyte rune.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
