package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"

	"legisbot/src/core/ingest"
	"legisbot/src/core/modelgateway"
	"legisbot/src/core/semanticindex"
	"legisbot/src/infrastructure/integrations/ollama"
	"legisbot/src/infrastructure/integrations/unstructured"
	jobctrl "legisbot/src/infrastructure/job"
	"legisbot/src/infrastructure/log"
	"legisbot/src/storage/minioctrl"
	"legisbot/src/storage/postgres/documentctrl"
	"legisbot/src/storage/weaviate"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background ingestion worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// pageExtractor adapts the Unstructured API client to the pipeline's
// extractor interface.
type pageExtractor struct {
	service *unstructured.UnstructuredService
}

func (e pageExtractor) ExtractPages(ctx context.Context, filename string, content []byte) ([]ingest.Page, error) {
	extracted, err := e.service.ExtractPages(ctx, filename, content)
	if err != nil {
		return nil, err
	}

	pages := make([]ingest.Page, len(extracted))
	for i, p := range extracted {
		pages[i] = ingest.Page{Number: p.Number, Text: p.Text}
	}
	return pages, nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Initialize logger
	logger := watermill.NewStdLogger(false, false)

	// Initialize PostgreSQL connection
	db, err := openDatabase()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	// Get underlying *sql.DB for cleanup
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}
	defer sqlDB.Close()

	// Initialize AMQP publisher
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		logger,
	)
	if err != nil {
		return err
	}
	defer amqpPublisher.Close()

	// Initialize AMQP subscriber
	subscriberConfig := amqp.NewDurableQueueConfig(viper.GetString("amqp.url"))
	subscriberConfig.Consume.NoRequeueOnNack = true
	amqpSubscriber, err := amqp.NewSubscriber(subscriberConfig, logger)
	if err != nil {
		return err
	}
	defer amqpSubscriber.Close()

	// Initialize router
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return err
	}

	// Add middleware
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: time.Second,
			Logger:          logger,
		}.Middleware,
	)

	// Initialize MinioService
	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize minio service: %v", err)
	}

	// Initialize Ollama client and model gateway
	ollamaClient := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{})
	gateway := modelgateway.NewGateway(
		ollamaClient,
		viper.GetString("ollama.generation_model"),
		viper.GetString("ollama.embedding_model"),
	)

	// Initialize Weaviate fragment store and semantic index
	wc := weaviateClient.New(weaviateClient.Config{
		Host:   viper.GetString("weaviate.url"),
		Scheme: "http",
	})
	fragmentStore := weaviate.NewFragmentStore(weaviate.NewSDK(wc), weaviate.DefaultFragmentClass)
	if err := fragmentStore.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("failed to ensure fragment schema: %v", err)
	}

	index, err := semanticindex.NewIndex(fragmentStore, gateway)
	if err != nil {
		return fmt.Errorf("failed to create semantic index: %v", err)
	}

	// Initialize DocumentService
	documentService, err := documentctrl.NewDocumentService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize document service: %v", err)
	}

	// Initialize ingestion pipeline
	extractor := pageExtractor{
		service: unstructured.NewUnstructuredService(viper.GetString("unstructured.url"), &http.Client{
			Timeout: 5 * time.Minute,
		}),
	}
	splitter := ingest.NewSplitter(viper.GetInt("rag.chunk_size"), viper.GetInt("rag.chunk_overlap"))

	var opts []ingest.Option
	if viper.GetBool("rag.document_on_empty") {
		opts = append(opts, ingest.WithDocumentOnEmpty())
	}
	pipeline := ingest.NewPipeline(extractor, index, documentService, splitter, opts...)

	// Initialize ingestion task, job repository and service
	ingestionTask := jobctrl.NewIngestionTask(minioService, pipeline)
	jobRepo, err := jobctrl.NewPostgresJobRepository(db)
	if err != nil {
		return fmt.Errorf("failed to initialize job repository: %v", err)
	}
	jobService := jobctrl.NewJobService(amqpPublisher, jobRepo, logger, ingestionTask)

	// Add handler for processing jobs
	router.AddNoPublisherHandler(
		"job_processor",
		"jobs",
		amqpSubscriber,
		func(msg *message.Message) error {
			return jobService.ProcessJobMessage(msg)
		},
	)

	// Run the router
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := router.Run(ctx); err != nil {
			log.Error(err, "Router stopped with error")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info("Shutting down...")
	cancel()
	<-router.Running()
	log.Info("Router stopped")

	return nil
}
