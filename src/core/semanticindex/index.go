package semanticindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bwmarrin/snowflake"

	"legisbot/src/core/rag"
	"legisbot/src/infrastructure/log"
)

// DefaultTopK is the number of fragments returned by Search when the
// caller does not override k.
const DefaultTopK = 5

// Embedder turns texts into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbedderSource hands out a ready embedder, or nil while the embedding
// service is unreachable.
type EmbedderSource interface {
	Embedder(ctx context.Context) Embedder
}

// StoredFragment is a fragment together with its embedding vector and
// insertion sequence number, as handed to the vector engine.
type StoredFragment struct {
	Fragment rag.Fragment
	Vector   []float32
	Seq      int64
}

// Hit is a raw similarity-search result from the vector engine.
type Hit struct {
	Fragment rag.Fragment
	Score    float64
	Seq      int64
}

// VectorStore is the contract the index requires from the external vector
// engine; its internal storage format is not part of this design.
type VectorStore interface {
	Ready(ctx context.Context) bool
	Insert(ctx context.Context, fragments []StoredFragment) error
	Query(ctx context.Context, vector []float32, limit int) ([]Hit, error)
}

// Index maps fragment vectors to fragment text and metadata and answers
// top-k similarity searches. It embeds fragments itself, so an Add is
// rejected as a whole when the embedding model is unreachable: a fragment
// must never exist in relational records without a corresponding vector.
type Index struct {
	store     VectorStore
	source    EmbedderSource
	snowflake *snowflake.Node

	mu  sync.Mutex
	dim int
}

func NewIndex(store VectorStore, source EmbedderSource) (*Index, error) {
	node, err := snowflake.NewNode(3) // Node number 3 for fragment sequencing
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &Index{
		store:     store,
		source:    source,
		snowflake: node,
	}, nil
}

// Ready reports whether the backing vector engine is reachable.
func (ix *Index) Ready(ctx context.Context) bool {
	return ix.store.Ready(ctx)
}

// Add embeds a batch of fragments and durably stores them. The batch is
// all-or-nothing: an embedding failure rejects every fragment, and a
// vector whose dimensionality differs from the one the index was built
// with is refused with ErrDimensionMismatch.
func (ix *Index) Add(ctx context.Context, fragments []rag.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	embedder := ix.source.Embedder(ctx)
	if embedder == nil {
		return fmt.Errorf("embedding model unreachable: %w", rag.ErrIndexUnavailable)
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed fragment batch: %w", rag.ErrIndexUnavailable)
	}

	ix.mu.Lock()
	if ix.dim == 0 {
		ix.dim = len(vectors[0])
	}
	dim := ix.dim
	ix.mu.Unlock()

	stored := make([]StoredFragment, len(fragments))
	for i, f := range fragments {
		if len(vectors[i]) != dim {
			return fmt.Errorf("vector has %d dimensions, index built with %d: %w",
				len(vectors[i]), dim, rag.ErrDimensionMismatch)
		}
		stored[i] = StoredFragment{
			Fragment: f,
			Vector:   vectors[i],
			Seq:      ix.snowflake.Generate().Int64(),
		}
	}

	if err := ix.store.Insert(ctx, stored); err != nil {
		return fmt.Errorf("failed to insert fragment batch: %w", rag.ErrIndexUnavailable)
	}

	return nil
}

// Search returns the k fragments most similar to the query under cosine
// similarity, ties broken by insertion order (earliest wins). An empty
// result is a valid, handled state: an unavailable index or embedding
// model degrades to "no context" rather than an error.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]rag.ScoredFragment, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	embedder := ix.source.Embedder(ctx)
	if embedder == nil {
		return []rag.ScoredFragment{}, nil
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Error(err, "failed to embed query, returning no context")
		return []rag.ScoredFragment{}, nil
	}

	hits, err := ix.store.Query(ctx, vector, k)
	if err != nil {
		log.Error(err, "vector search failed, returning no context")
		return []rag.ScoredFragment{}, nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Seq < hits[j].Seq
	})

	results := make([]rag.ScoredFragment, 0, len(hits))
	for _, hit := range hits {
		results = append(results, rag.ScoredFragment{
			Fragment: hit.Fragment,
			Score:    hit.Score,
			Seq:      hit.Seq,
		})
	}

	return results, nil
}

// GetRelevantDocuments implements rag.Retriever.
func (ix *Index) GetRelevantDocuments(ctx context.Context, query string, k int) ([]rag.ScoredFragment, error) {
	return ix.Search(ctx, query, k)
}
