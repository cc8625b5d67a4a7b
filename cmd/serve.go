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
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	handler "legisbot/handler/http"
	"legisbot/src/core/chat"
	"legisbot/src/core/conversation"
	"legisbot/src/core/modelgateway"
	"legisbot/src/core/rag"
	"legisbot/src/core/semanticindex"
	"legisbot/src/infrastructure/integrations/ollama"
	"legisbot/src/infrastructure/job"
	"legisbot/src/infrastructure/log"
	"legisbot/src/storage/minioctrl"
	"legisbot/src/storage/postgres/documentctrl"
	"legisbot/src/storage/postgres/historyctrl"
	"legisbot/src/storage/weaviate"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the question answering API server",
	Long:  `The serve command starts the HTTP server that answers questions over the ingested legislation`,
	Run:   RunServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// gatewayAdapter narrows the model gateway to the chat service's view.
// The concrete *GenerationModel pointer must not cross the interface
// boundary while nil, so the nil check happens here.
type gatewayAdapter struct {
	gateway *modelgateway.Gateway
}

func (a gatewayAdapter) Generation(ctx context.Context) chat.Generator {
	if m := a.gateway.GenerationModel(ctx); m != nil {
		return m
	}
	return nil
}

func (a gatewayAdapter) Retrieval(ctx context.Context) rag.Retriever {
	return a.gateway.Retriever(ctx)
}

func RunServer(cmd *cobra.Command, args []string) {
	// Initialize PostgreSQL connection
	db, err := openDatabase()
	if err != nil {
		log.Error(err, "Failed to connect to database")
		return
	}

	// Initialize Ollama client. Generation responses stream for as long
	// as the model produces tokens, so the request deadline comes from
	// the per-call context rather than a client-wide timeout.
	oc := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{})

	// Initialize Weaviate client and fragment store
	wc := weaviateClient.New(weaviateClient.Config{
		Host:   viper.GetString("weaviate.url"),
		Scheme: "http",
	})
	wsdk := weaviate.NewSDK(wc)

	fragmentStore := weaviate.NewFragmentStore(wsdk, weaviate.DefaultFragmentClass)
	if err := fragmentStore.EnsureSchema(context.Background()); err != nil {
		log.Error(err, "Failed to ensure fragment schema, continuing degraded")
	}

	// Initialize model gateway and semantic index
	gateway := modelgateway.NewGateway(
		oc,
		viper.GetString("ollama.generation_model"),
		viper.GetString("ollama.embedding_model"),
	)

	index, err := semanticindex.NewIndex(fragmentStore, gateway)
	if err != nil {
		log.Error(err, "Failed to create semantic index")
		return
	}
	gateway.BindRetriever(index)

	// Initialize conversation ledger
	historyService, err := historyctrl.NewHistoryService(db)
	if err != nil {
		log.Error(err, "Failed to create history service")
		return
	}
	ledger := conversation.NewLedger(historyService)

	// Initialize chat service
	chatService := chat.NewService(
		gatewayAdapter{gateway: gateway},
		ledger,
		viper.GetInt("rag.top_k"),
		viper.GetDuration("rag.generation_timeout"),
	)

	// Initialize document service
	documentService, err := documentctrl.NewDocumentService(db)
	if err != nil {
		log.Error(err, "Failed to create document service")
		return
	}

	// Initialize MinIO and the upload bucket
	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		log.Error(err, "Failed to create minio service")
		return
	}
	if err := minioService.EnsureBucketExists(context.Background(), minioctrl.UploadsBucket); err != nil {
		log.Error(err, "Failed to ensure upload bucket")
		return
	}

	// Initialize AMQP publisher and job service. The server only
	// enqueues; the worker command consumes.
	wmLogger := watermill.NewStdLogger(false, false)
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		wmLogger,
	)
	if err != nil {
		log.Error(err, "Failed to create AMQP publisher")
		return
	}
	defer amqpPublisher.Close()

	jobRepo, err := job.NewPostgresJobRepository(db)
	if err != nil {
		log.Error(err, "Failed to create job repository")
		return
	}
	jobService := job.NewJobService(amqpPublisher, jobRepo, wmLogger, nil)

	sqlDB, err := db.DB()
	if err != nil {
		log.Error(err, "Failed to get underlying *sql.DB")
		return
	}

	// Initialize HTTP handler
	h := handler.NewHandler(
		chatService,
		ledger,
		documentService,
		minioService,
		jobService,
		wsdk,
		oc,
		sqlDB,
		historyService,
	)

	// Setup gin router
	r := gin.Default()
	h.RegisterRoutes(r)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
			return
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Parse shutdown timeout
	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Error(err, "Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Close database connection
	if err := sqlDB.Close(); err != nil {
		log.Error(err, "Error closing database connection")
	}

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
}

func openDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Every entry point touches the same tables, so the schema is kept
	// current wherever the connection is opened.
	if err := db.AutoMigrate(
		&documentctrl.Document{},
		&historyctrl.ChatHistory{},
		&historyctrl.Message{},
		&job.Job{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %v", err)
	}

	return db, nil
}
