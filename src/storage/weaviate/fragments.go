package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weaviate/weaviate/entities/models"

	"legisbot/src/core/semanticindex"
)

// DefaultFragmentClass is the single Weaviate class holding the corpus.
// One corpus per deployment; multi-corpus isolation is out of scope.
const DefaultFragmentClass = "LegislativeFragment"

// FragmentStore adapts the Weaviate SDK to the semantic index's
// VectorStore contract.
type FragmentStore struct {
	sdk       *SDK
	className string
}

func NewFragmentStore(sdk *SDK, className string) *FragmentStore {
	if className == "" {
		className = DefaultFragmentClass
	}
	return &FragmentStore{
		sdk:       sdk,
		className: className,
	}
}

// EnsureSchema creates the fragment class if it does not exist yet.
func (s *FragmentStore) EnsureSchema(ctx context.Context) error {
	properties := []*models.Property{
		{
			Name:        "content",
			DataType:    []string{"text"},
			Description: "The fragment text",
		},
		{
			Name:        "filename",
			DataType:    []string{"text"},
			Description: "Source document filename",
		},
		{
			Name:        "page",
			DataType:    []string{"int"},
			Description: "Source page number, 0 when unknown",
		},
		{
			Name:        "startOffset",
			DataType:    []string{"int"},
			Description: "Start offset within the extracted document text",
		},
		{
			Name:        "seq",
			DataType:    []string{"text"},
			Description: "Insertion sequence number, used to break score ties",
		},
	}

	return s.sdk.EnsureSchema(ctx, s.className, properties)
}

func (s *FragmentStore) Ready(ctx context.Context) bool {
	return s.sdk.Ready(ctx)
}

func (s *FragmentStore) Insert(ctx context.Context, fragments []semanticindex.StoredFragment) error {
	objects := make([]VectorObject, len(fragments))
	for i, f := range fragments {
		objects[i] = VectorObject{
			Vector: f.Vector,
			Properties: map[string]interface{}{
				"content":     f.Fragment.Text,
				"filename":    f.Fragment.Filename,
				"page":        f.Fragment.Page,
				"startOffset": f.Fragment.Offset,
				// Stored as text: Weaviate ints survive a GraphQL round
				// trip as float64 and would lose precision above 2^53.
				"seq": strconv.FormatInt(f.Seq, 10),
			},
		}
	}

	return s.sdk.BatchAddVectors(ctx, s.className, objects)
}

func (s *FragmentStore) Query(ctx context.Context, vector []float32, limit int) ([]semanticindex.Hit, error) {
	results, err := s.sdk.QueryVectors(ctx, s.className, vector, QueryConfig{
		Fields: []string{"content", "filename", "page", "startOffset", "seq"},
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments: %w", err)
	}

	hits := make([]semanticindex.Hit, 0, len(results))
	for _, result := range results {
		hit := semanticindex.Hit{Score: result.Certainty}

		if content, ok := result.Properties["content"].(string); ok {
			hit.Fragment.Text = content
		}
		if filename, ok := result.Properties["filename"].(string); ok {
			hit.Fragment.Filename = filename
		}
		if page, ok := result.Properties["page"].(float64); ok {
			hit.Fragment.Page = int(page)
		}
		if offset, ok := result.Properties["startOffset"].(float64); ok {
			hit.Fragment.Offset = int(offset)
		}
		if seq, ok := result.Properties["seq"].(string); ok {
			if parsed, err := strconv.ParseInt(seq, 10, 64); err == nil {
				hit.Seq = parsed
			}
		}

		hits = append(hits, hit)
	}

	return hits, nil
}

var _ semanticindex.VectorStore = (*FragmentStore)(nil)
