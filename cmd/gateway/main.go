package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/worktide/ai-gateway/internal/audit"
	"github.com/worktide/ai-gateway/internal/config"
	"github.com/worktide/ai-gateway/internal/dispatch"
	"github.com/worktide/ai-gateway/internal/gateway"
	"github.com/worktide/ai-gateway/internal/identity"
	"github.com/worktide/ai-gateway/internal/policy"
	"github.com/worktide/ai-gateway/internal/server"
	"github.com/worktide/ai-gateway/internal/storage"
	"github.com/worktide/ai-gateway/internal/storage/redisstore"
	"github.com/worktide/ai-gateway/internal/storage/sqlite"
	"github.com/worktide/ai-gateway/internal/telemetry"
	"github.com/worktide/ai-gateway/internal/upstream/anthropic"
	"github.com/worktide/ai-gateway/internal/upstream/openai"
	"github.com/worktide/ai-gateway/internal/usage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Optional .env for local development.
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init("ai-gateway", logger)
		if err != nil {
			logger.Error("failed to init telemetry", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	store, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	var usageStore storage.UsageStore = store
	if cfg.Storage.UsageBackend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		usageStore = redisstore.New(client)
		logger.Info("usage counters on redis", slog.String("addr", cfg.Redis.Addr))
	}

	var anthropicOpts []anthropic.ClientOption
	if cfg.Upstream.AnthropicBaseURL != "" {
		anthropicOpts = append(anthropicOpts, anthropic.WithBaseURL(cfg.Upstream.AnthropicBaseURL))
	}
	var openaiOpts []openai.ClientOption
	if cfg.Upstream.OpenAIBaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.Upstream.OpenAIBaseURL))
	}

	dispatcher := dispatch.NewDispatcher(
		anthropic.NewClient(anthropicOpts...),
		openai.NewClient(openaiOpts...),
		logger.With(slog.String("component", "dispatch")),
		dispatch.WithCallTimeout(cfg.Upstream.CallTimeout),
	)

	gw := gateway.New(
		identity.NewJWTResolver(cfg.Auth.JWTSecret),
		policy.NewStore(store, logger.With(slog.String("component", "policy"))),
		audit.NewTrail(store, logger.With(slog.String("component", "audit"))),
		dispatcher,
		usage.NewAccountant(store, usageStore, logger.With(slog.String("component", "usage"))),
		usageStore,
		cfg.Upstream.APIKey,
		logger.With(slog.String("component", "gateway")),
	)
	handler := gateway.NewHandler(gw)

	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		Telemetry:      cfg.Telemetry.Enabled,
	}, logger)

	srv.Router.Post("/v1/ai/assist", handler.HandleAssist)
	srv.Router.Get("/v1/ai/usage", handler.HandleUsage)
	srv.Router.Get("/healthz", handler.HandleHealth)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
