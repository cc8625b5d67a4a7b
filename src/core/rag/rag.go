package rag

import (
	"context"
	"errors"
)

var (
	// ErrServiceUnavailable signals that the embedding or generation model
	// cannot be reached. Recoverable by retrying later; never retried
	// automatically within one request.
	ErrServiceUnavailable = errors.New("model service unavailable")

	// ErrIndexUnavailable signals that the semantic index cannot accept or
	// serve fragments, either because the vector engine is down or because
	// the embedding model backing it is unreachable.
	ErrIndexUnavailable = errors.New("semantic index unavailable")

	// ErrNotFound signals a conversation that does not exist or is not
	// owned by the caller. Ownership violations are reported as not found,
	// never as an empty result.
	ErrNotFound = errors.New("not found")

	// ErrBadInput signals malformed caller input.
	ErrBadInput = errors.New("bad input")

	// ErrDimensionMismatch signals that a fragment vector does not match
	// the dimensionality the index was built with. The index refuses the
	// addition; it must be rebuilt before a different embedding model can
	// be used.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Fragment is the atomic retrieval unit: a contiguous slice of a document's
// extracted text, stamped with its provenance.
type Fragment struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Page     int    `json:"page"`
	// Offset is the start position of the fragment within the document's
	// extracted text, used for citations and overlap reconstruction.
	Offset int `json:"offset"`
}

// ScoredFragment is a fragment returned from similarity search together
// with its score and insertion sequence number.
type ScoredFragment struct {
	Fragment
	Score float64 `json:"score"`
	Seq   int64   `json:"-"`
}

// PageUnknown marks a citation whose source page could not be determined
// by the extractor.
const PageUnknown = "unknown"

// Citation is a structured pointer back to the source fragment backing an
// answer. Previews are for display only and are never fed back into the
// model.
type Citation struct {
	Source         string `json:"source"`
	Page           string `json:"page"`
	ContentPreview string `json:"content_preview"`
}

// Retriever returns the fragments most semantically similar to a query.
type Retriever interface {
	GetRelevantDocuments(ctx context.Context, query string, k int) ([]ScoredFragment, error)
}
