package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/mindcanvas/brainbase/internal/api/handlers"
	"github.com/mindcanvas/brainbase/internal/config"
	"github.com/mindcanvas/brainbase/internal/database"
	"github.com/mindcanvas/brainbase/internal/jobs"
	"github.com/mindcanvas/brainbase/internal/openai"
	"github.com/mindcanvas/brainbase/internal/repository"
	"github.com/mindcanvas/brainbase/internal/server"
	"github.com/mindcanvas/brainbase/internal/service"
	"github.com/mindcanvas/brainbase/internal/storage"
	"github.com/mindcanvas/brainbase/internal/telemetry"
	"github.com/mindcanvas/brainbase/internal/websearch"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the brainbase API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required: embeddings and completions have no fallback provider")
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	chatHistoryRepo := repository.NewChatHistoryRepository(pool)

	aiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
	})
	llm := &completionAdapter{client: aiClient}

	knowledgeSvc := service.NewKnowledgeService(docRepo, chunkRepo, aiClient).
		WithChunkConfig(service.ChunkConfig{
			TargetChars: cfg.ChunkTargetChars,
			MinChars:    service.DefaultChunkConfig().MinChars,
			Overlap:     cfg.ChunkOverlapChars,
		})

	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		knowledgeSvc = knowledgeSvc.WithArchive(s3Client)
	}

	var searcher websearch.Searcher
	if cfg.HasWebSearch() {
		searcher = websearch.NewGoogleClient(cfg.SearchAPIKey, cfg.SearchEngineID)
	} else {
		log.Println("web search not configured, WEB_SEARCH answers will degrade")
	}

	retriever := service.NewRetriever(chunkRepo, aiClient, service.RetrieverConfig{
		TopK:          cfg.RetrievalTopK,
		MinSimilarity: cfg.MinSimilarity,
	})
	decisions := service.NewDecisionEngine(llm)
	builder := service.NewContextBuilder(retriever, searcher, service.ContextBuilderConfig{
		MaxContextChars:  cfg.MaxContextChars,
		WebSearchResults: cfg.WebSearchResults,
	})
	synthesizer := service.NewSynthesizer(llm)
	chatSvc := service.NewChatService(retriever, decisions, builder, synthesizer, chatHistoryRepo, service.ChatConfig{
		TopK:         cfg.RetrievalTopK,
		HistoryTurns: cfg.HistoryTurns,
	})

	synchronizer := service.NewSynchronizer(knowledgeSvc)
	dispatcher := jobs.NewDispatcher(2 * time.Minute)
	syncWorker := jobs.NewSyncWorker(dispatcher, synchronizer)

	routerCfg := server.RouterConfig{
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		SyncHandler:      handlers.NewSyncHandler(syncWorker),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	dispatcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// completionAdapter bridges the OpenAI client to the service layer's
// prompt message type.
type completionAdapter struct {
	client *openai.Client
}

func (a *completionAdapter) Complete(ctx context.Context, messages []service.PromptMessage) (string, error) {
	return a.client.Complete(ctx, toClientMessages(messages))
}

func (a *completionAdapter) CompleteJSON(ctx context.Context, messages []service.PromptMessage) (string, error) {
	return a.client.CompleteJSON(ctx, toClientMessages(messages))
}

func toClientMessages(messages []service.PromptMessage) []openai.Message {
	out := make([]openai.Message, len(messages))
	for i, m := range messages {
		out[i] = openai.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
