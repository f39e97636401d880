package docstore

import "errors"

var (
	// ErrUnsupportedFormat is returned when a file's extension has no
	// registered extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrFileTooLarge is returned when a file exceeds the configured size
	// ceiling.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
	// ErrEmptyDocument is returned when extraction yields no text.
	ErrEmptyDocument = errors.New("document is empty or text extraction failed")
	// ErrDocumentNotFound is returned for operations on unknown document ids.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrIndexUnavailable marks a missing or corrupt similarity index. Search
	// treats it as "no results from that document" rather than a hard failure.
	ErrIndexUnavailable = errors.New("search index unavailable")
)
