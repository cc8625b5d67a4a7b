package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"

	"legisbot/src/core/ingest"
	"legisbot/src/core/modelgateway"
	"legisbot/src/core/semanticindex"
	"legisbot/src/infrastructure/integrations/ollama"
	"legisbot/src/infrastructure/integrations/unstructured"
	"legisbot/src/storage/postgres/documentctrl"
	"legisbot/src/storage/weaviate"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest local PDF files into the semantic index",
	Long: `The ingest command extracts, chunks, embeds and indexes local PDF
files directly, bypassing the upload API. Useful for bulk-loading a
corpus from the command line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().Int64("uploader", 0, "Admin user ID to record as uploader")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	uploaderID, _ := cmd.Flags().GetInt64("uploader")

	db, err := openDatabase()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	ollamaClient := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{})
	gateway := modelgateway.NewGateway(
		ollamaClient,
		viper.GetString("ollama.generation_model"),
		viper.GetString("ollama.embedding_model"),
	)

	wc := weaviateClient.New(weaviateClient.Config{
		Host:   viper.GetString("weaviate.url"),
		Scheme: "http",
	})
	fragmentStore := weaviate.NewFragmentStore(weaviate.NewSDK(wc), weaviate.DefaultFragmentClass)
	if err := fragmentStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure fragment schema: %v", err)
	}

	index, err := semanticindex.NewIndex(fragmentStore, gateway)
	if err != nil {
		return fmt.Errorf("failed to create semantic index: %v", err)
	}

	documentService, err := documentctrl.NewDocumentService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize document service: %v", err)
	}

	extractor := pageExtractor{
		service: unstructured.NewUnstructuredService(viper.GetString("unstructured.url"), &http.Client{
			Timeout: 5 * time.Minute,
		}),
	}
	splitter := ingest.NewSplitter(viper.GetInt("rag.chunk_size"), viper.GetInt("rag.chunk_overlap"))

	bar := progressbar.Default(int64(len(args)), "ingesting")

	var opts []ingest.Option
	if viper.GetBool("rag.document_on_empty") {
		opts = append(opts, ingest.WithDocumentOnEmpty())
	}
	opts = append(opts, ingest.WithProgress(func(filename string, err error) {
		if err != nil {
			fmt.Printf("Failed to process %s: %v\n", filename, err)
		}
		bar.Add(1)
	}))
	pipeline := ingest.NewPipeline(extractor, index, documentService, splitter, opts...)

	// The whole command line is one batch: a single bulk embed-and-insert
	// instead of one per file.
	files := make([]ingest.File, 0, len(args))
	var handles []*os.File
	defer func() {
		for _, f := range handles {
			f.Close()
		}
	}()
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %v", path, err)
		}
		handles = append(handles, f)
		files = append(files, ingest.File{
			Name:    filepath.Base(path),
			Content: f,
		})
	}

	processed, err := pipeline.Ingest(ctx, files, uploaderID)
	if err != nil {
		return fmt.Errorf("failed to ingest batch: %v", err)
	}

	fmt.Printf("Ingested %d of %d files\n", len(processed), len(args))
	return nil
}
