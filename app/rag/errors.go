package rag

import "errors"

var (
	// ErrIngestionInProgress is returned when a document is re-ingested while a
	// previous ingestion of the same document is still running.
	ErrIngestionInProgress = errors.New("ingestion already in progress for this document")

	// ErrParseUpstream is returned when a document yields no usable text.
	ErrParseUpstream = errors.New("document contains no extractable text")
)
