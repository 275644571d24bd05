package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/masa061580/pubmed-search-assistant/internal/config"
	"github.com/masa061580/pubmed-search-assistant/internal/llm"
	"github.com/masa061580/pubmed-search-assistant/internal/pubmed"
	"github.com/masa061580/pubmed-search-assistant/internal/research"
	"github.com/masa061580/pubmed-search-assistant/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// ── Conversation store ───────────────────────────────────
	convs, closeConvs, err := openConversations(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeConvs()

	// ── MinIO transcript archive ─────────────────────────────
	var archive research.TranscriptArchive
	if cfg.ArchiveEnabled() {
		minioStore, err := store.NewMinioStore(
			ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio connect: %w", err)
		}
		archive = minioStore
		logger.Info("transcript archive enabled", "bucket", cfg.MinioBucket)
	}

	// ── PubMed client ────────────────────────────────────────
	searcher := pubmed.NewClient(pubmed.Options{
		BaseURL: cfg.NCBIBaseURL,
		WebURL:  cfg.PubMedWebURL,
		APIKey:  cfg.NCBIAPIKey,
		Delay:   cfg.NCBIRequestDelay,
		Timeout: cfg.NCBITimeout,
		Logger:  logger,
	})

	// ── Handlers ─────────────────────────────────────────────
	svc := research.NewService(newChatModel(cfg), searcher, convs, archive, logger)
	chatHandler := research.NewHandler(svc, logger)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Route("/api/chat", chatHandler.Mount)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLMTimeout*2 + 2*time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "llm_provider", cfg.LLMProvider, "store", cfg.ConversationStore)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newChatModel(cfg *config.Config) llm.ChatModel {
	if cfg.LLMProvider == "anthropic" {
		return llm.NewAnthropic(llm.AnthropicOptions{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.LLMTimeout,
		})
	}
	return llm.NewOpenAI(llm.OpenAIOptions{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.LLMTimeout,
	})
}

// openConversations connects the configured conversation backend and returns
// it with its close func.
func openConversations(ctx context.Context, cfg *config.Config, logger *slog.Logger) (research.ConversationStore, func(), error) {
	opts := store.Options{TTL: cfg.ConversationTTL, MaxMessages: cfg.ConversationMaxMessages}
	sweepEvery := sweepInterval(cfg.ConversationTTL)
	log := logger.With("component", "store")

	switch cfg.ConversationStore {
	case "redis":
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("redis connect: %w", err)
		}
		return store.NewRedisConversations(rdb, opts), func() { rdb.Close() }, nil

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		convs := store.NewMongoConversations(client.Database(cfg.MongoDB), opts)
		if err := convs.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return convs, func() { client.Disconnect(context.Background()) }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		convs := store.NewPostgresConversations(pool, opts)
		if err := convs.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		go store.RunSweeper(ctx, convs, sweepEvery, log)
		return convs, pool.Close, nil

	default:
		convs := store.NewMemoryConversations(opts)
		go store.RunSweeper(ctx, convs, sweepEvery, log)
		return convs, func() {}, nil
	}
}

// sweepInterval is a quarter of the TTL, clamped to [1m, 1h]. Zero disables sweeping.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	every := ttl / 4
	if every < time.Minute {
		every = time.Minute
	}
	if every > time.Hour {
		every = time.Hour
	}
	return every
}
