package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/hongianguyen/IndochinaPro/internal/ai"
	"github.com/hongianguyen/IndochinaPro/internal/config"
	"github.com/hongianguyen/IndochinaPro/internal/db"
	"github.com/hongianguyen/IndochinaPro/internal/embedcache"
	"github.com/hongianguyen/IndochinaPro/internal/filestore"
	"github.com/hongianguyen/IndochinaPro/internal/handler"
	"github.com/hongianguyen/IndochinaPro/internal/ingest"
	"github.com/hongianguyen/IndochinaPro/internal/job"
	"github.com/hongianguyen/IndochinaPro/internal/knowledge"
	"github.com/hongianguyen/IndochinaPro/internal/middleware"
	"github.com/hongianguyen/IndochinaPro/internal/retrieve"
	"github.com/hongianguyen/IndochinaPro/internal/schedule"
	"github.com/hongianguyen/IndochinaPro/internal/service"
	"github.com/hongianguyen/IndochinaPro/internal/vectorstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "indochinapro",
		Short: "indochinapro itinerary backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run indochinapro server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func needsDatabase(cfg *config.Config) bool {
	return cfg.VectorStore.Type == "pgvector" || cfg.KnowledgeStore.Type == "pg" || cfg.AI.EmbedCache
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("knowledge_store", cfg.KnowledgeStore.Type),
	)

	var conn *sql.DB
	if needsDatabase(cfg) {
		var err error
		conn, err = db.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	store, err := vectorstore.New(cfg.VectorStore, conn)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	remoteStore, err := knowledge.NewStore(cfg.KnowledgeStore, conn)
	if err != nil {
		return fmt.Errorf("init knowledge store: %w", err)
	}
	var fallbackStore knowledge.StructuredStore
	if cfg.KnowledgeStore.FallbackDir != "" {
		fallbackStore = knowledge.NewLocalStore(cfg.KnowledgeStore.FallbackDir)
	}
	hub := knowledge.NewHub(remoteStore, fallbackStore, knowledge.NewCache())

	generator, err := buildGenerator(cfg.AI)
	if err != nil {
		return fmt.Errorf("init ai generators: %w", err)
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Embedder.Provider, cfg.AI.Embedder.Data)
	if err != nil {
		return fmt.Errorf("init ai embedder: %w", err)
	}
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.Embedder.Model)
	var cacheRepo *embedcache.CacheRepo
	if cfg.AI.EmbedCache {
		cacheRepo = embedcache.NewCacheRepo(conn)
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}

	archive, err := filestore.New(cfg.ArchiveStore)
	if err != nil {
		return fmt.Errorf("init archive store: %w", err)
	}

	pipeline := ingest.NewPipeline(store, embedder, ingest.Config{
		ChunkSize:   cfg.Ingest.ChunkSize,
		ChunkStride: cfg.Ingest.ChunkStride,
		MinDocChars: cfg.Ingest.MinDocChars,
		BatchSize:   cfg.Ingest.BatchSize,
		RetryBase:   2 * time.Second,
	})
	retriever := retrieve.New(store, embedder)
	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	itineraryService := service.NewItineraryService(generator, retriever, hub, timeout)
	ingestService := service.NewIngestService(pipeline, hub, store, archive)

	deps := handler.RouterDeps{
		Itineraries:       handler.NewItineraryHandler(itineraryService),
		Ingests:           handler.NewIngestHandler(ingestService),
		Knowledge:         handler.NewKnowledgeHandler(hub),
		GenerateRateLimit: time.Duration(cfg.GenerateRateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cacheRepo != nil && cfg.Schedule.EmbedCachePruneSpec != "" {
		pruneJob := job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Schedule.EmbedCacheKeepDays)
		if err := scheduler.AddJob(pruneJob, cfg.Schedule.EmbedCachePruneSpec); err != nil {
			return fmt.Errorf("schedule prune job: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

// buildGenerator chains the configured generators so a later entry serves as
// fallback when an earlier one fails.
func buildGenerator(cfg config.AIConfig) (ai.IGenerator, error) {
	items := make([]ai.GeneratorEntry, 0, len(cfg.Generators))
	for _, gen := range cfg.Generators {
		provider, err := ai.NewProvider(gen.Provider, gen.Data)
		if err != nil {
			return nil, err
		}
		items = append(items, ai.GeneratorEntry{
			Name:      gen.Provider,
			Generator: ai.NewGenerator(provider, gen.Model),
		})
	}
	return ai.NewGroupGenerator(items), nil
}
