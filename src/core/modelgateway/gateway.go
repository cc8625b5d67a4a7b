package modelgateway

import (
	"context"
	"sync"

	"legisbot/src/core/rag"
	"legisbot/src/core/semanticindex"
	"legisbot/src/infrastructure/integrations/ollama"
	"legisbot/src/infrastructure/log"
)

// ModelClient is the network client the gateway dials models through.
// *ollama.Client satisfies it.
type ModelClient interface {
	Models(ctx context.Context) ([]ollama.ModelInfo, error)
	GetEmbedding(ctx context.Context, model string, text string) ([]float32, error)
	GetEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error)
	Generate(ctx context.Context, model, system, prompt string, options map[string]interface{}) (string, error)
}

// GenerationModel is a ready-to-use handle to the generation service.
type GenerationModel struct {
	client ModelClient
	model  string
}

func (m *GenerationModel) Generate(ctx context.Context, system, prompt string) (string, error) {
	return m.client.Generate(ctx, m.model, system, prompt, map[string]interface{}{
		"temperature": 0.1,
	})
}

// EmbeddingModel is a ready-to-use handle to the embedding service.
type EmbeddingModel struct {
	client ModelClient
	model  string
}

func (m *EmbeddingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return m.client.GetEmbeddings(ctx, m.model, texts)
}

func (m *EmbeddingModel) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return m.client.GetEmbedding(ctx, m.model, text)
}

// Gateway lazily establishes and memoizes handles to the generation and
// embedding models. Construction happens on first use, not at process
// start, so the system stays startable while the model services are
// offline; a failed attempt is logged and retried on the next call.
type Gateway struct {
	client          ModelClient
	generationModel string
	embeddingModel  string

	mu         sync.Mutex
	generation *GenerationModel
	embedding  *EmbeddingModel
	retriever  rag.Retriever
}

func NewGateway(client ModelClient, generationModel, embeddingModel string) *Gateway {
	return &Gateway{
		client:          client,
		generationModel: generationModel,
		embeddingModel:  embeddingModel,
	}
}

// BindRetriever attaches the semantic index the retriever handle composes
// with the embedding model. Called once during wiring, before requests.
func (g *Gateway) BindRetriever(r rag.Retriever) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retriever = r
}

// probe checks the backing service. Called with g.mu held, so concurrent
// first users never dial twice.
func (g *Gateway) probe(ctx context.Context) bool {
	if _, err := g.client.Models(ctx); err != nil {
		log.Error(err, "model service unreachable, handle stays unset")
		return false
	}
	return true
}

// GenerationModel returns a memoized handle to the generation model, or
// nil when the backing service cannot be reached.
func (g *Gateway) GenerationModel(ctx context.Context) *GenerationModel {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.generation != nil {
		return g.generation
	}
	if !g.probe(ctx) {
		return nil
	}

	g.generation = &GenerationModel{client: g.client, model: g.generationModel}
	return g.generation
}

// EmbeddingModel returns a memoized handle to the embedding model, or nil
// when the backing service cannot be reached.
func (g *Gateway) EmbeddingModel(ctx context.Context) *EmbeddingModel {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.embedding != nil {
		return g.embedding
	}
	if !g.probe(ctx) {
		return nil
	}

	g.embedding = &EmbeddingModel{client: g.client, model: g.embeddingModel}
	return g.embedding
}

// Embedder implements semanticindex.EmbedderSource.
func (g *Gateway) Embedder(ctx context.Context) semanticindex.Embedder {
	if m := g.EmbeddingModel(ctx); m != nil {
		return m
	}
	return nil
}

// Retriever composes the embedding model with the semantic index, or
// returns nil while the embedding model is unavailable.
func (g *Gateway) Retriever(ctx context.Context) rag.Retriever {
	if g.EmbeddingModel(ctx) == nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retriever
}
