package modelgateway_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"legisbot/src/core/modelgateway"
	"legisbot/src/core/rag"
	"legisbot/src/infrastructure/integrations/ollama"
)

type fakeModelClient struct {
	down   atomic.Bool
	probes atomic.Int64
}

func (c *fakeModelClient) Models(ctx context.Context) ([]ollama.ModelInfo, error) {
	c.probes.Add(1)
	if c.down.Load() {
		return nil, fmt.Errorf("connection refused")
	}
	return []ollama.ModelInfo{{Name: "llama3.1"}, {Name: "nomic-embed-text"}}, nil
}

func (c *fakeModelClient) GetEmbedding(ctx context.Context, model string, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (c *fakeModelClient) GetEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (c *fakeModelClient) Generate(ctx context.Context, model, system, prompt string, options map[string]interface{}) (string, error) {
	return "respuesta", nil
}

type fakeRetriever struct{}

func (fakeRetriever) GetRelevantDocuments(ctx context.Context, query string, k int) ([]rag.ScoredFragment, error) {
	return nil, nil
}

func TestGenerationModelRetriesAfterOutage(t *testing.T) {
	client := &fakeModelClient{}
	client.down.Store(true)
	gateway := modelgateway.NewGateway(client, "llama3.1", "nomic-embed-text")
	ctx := context.Background()

	if m := gateway.GenerationModel(ctx); m != nil {
		t.Fatal("GenerationModel() = non-nil while service is down")
	}

	// Each call while down re-dials instead of caching the failure.
	gateway.GenerationModel(ctx)
	if got := client.probes.Load(); got != 2 {
		t.Errorf("probe count = %d, want 2", got)
	}

	client.down.Store(false)
	if m := gateway.GenerationModel(ctx); m == nil {
		t.Fatal("GenerationModel() = nil after service recovered")
	}

	// The handle is memoized: further calls skip the probe.
	before := client.probes.Load()
	gateway.GenerationModel(ctx)
	gateway.GenerationModel(ctx)
	if got := client.probes.Load(); got != before {
		t.Errorf("probe count = %d after memoization, want %d", got, before)
	}
}

func TestConcurrentFirstUseCreatesOneHandle(t *testing.T) {
	client := &fakeModelClient{}
	gateway := modelgateway.NewGateway(client, "llama3.1", "nomic-embed-text")
	ctx := context.Background()

	const goroutines = 16
	handles := make([]*modelgateway.GenerationModel, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = gateway.GenerationModel(ctx)
		}(i)
	}
	wg.Wait()

	if got := client.probes.Load(); got != 1 {
		t.Errorf("probe count = %d, want 1", got)
	}
	for i := 1; i < goroutines; i++ {
		if handles[i] != handles[0] {
			t.Fatalf("goroutine %d got a different handle", i)
		}
	}
}

func TestRetrieverRequiresEmbeddingModel(t *testing.T) {
	client := &fakeModelClient{}
	client.down.Store(true)
	gateway := modelgateway.NewGateway(client, "llama3.1", "nomic-embed-text")
	gateway.BindRetriever(fakeRetriever{})
	ctx := context.Background()

	if r := gateway.Retriever(ctx); r != nil {
		t.Fatal("Retriever() = non-nil while embedding model is down")
	}
	if e := gateway.Embedder(ctx); e != nil {
		t.Fatal("Embedder() = non-nil while embedding model is down")
	}

	client.down.Store(false)
	if r := gateway.Retriever(ctx); r == nil {
		t.Fatal("Retriever() = nil after service recovered")
	}
	if e := gateway.Embedder(ctx); e == nil {
		t.Fatal("Embedder() = nil after service recovered")
	}
}
