package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/acheng/runbox/internal/command"
	"github.com/acheng/runbox/internal/config"
	"github.com/acheng/runbox/internal/engine"
	"github.com/acheng/runbox/internal/executor"
	"github.com/acheng/runbox/internal/llm"
	"github.com/acheng/runbox/internal/llm/anthropic"
	"github.com/acheng/runbox/internal/llm/openai"
	"github.com/acheng/runbox/internal/observability"
	"github.com/acheng/runbox/internal/sandbox"
	"github.com/acheng/runbox/internal/storage"
	pgstore "github.com/acheng/runbox/internal/storage/postgres"
	sqlitestore "github.com/acheng/runbox/internal/storage/sqlite"
	"github.com/acheng/runbox/internal/workspace"
)

// SharedComponents holds all initialized subsystems that both gateway and
// one-shot modes require. Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config     *config.Config
	Logger     *slog.Logger
	Resolver   *workspace.Resolver
	Store      storage.Store // nil = history disabled.
	Obs        *observability.Observability
	Translator *llm.Translator // nil = natural language disabled.
	Engine     *engine.Engine

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared performs all common initialization shared between gateway and
// one-shot modes. Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger, needsStore bool) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Workspace resolver. Creating it establishes the project root.
	resolver, err := workspace.NewResolver(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("initializing workspace: %w", err)
	}
	sc.Resolver = resolver
	logger.Debug("workspace initialized", slog.String("root", resolver.Root()))

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	})

	// LLM translator, when credentials allow. Direct execution works without.
	provider, err := newProvider(cfg, logger)
	if err != nil {
		logger.Warn("translation disabled", slog.String("reason", err.Error()))
	} else {
		sc.Translator = llm.NewTranslator(provider, logger)
		logger.Debug("llm provider initialized", slog.String("provider", provider.Name()))
	}

	// History store.
	if needsStore {
		store, err := initStore(cfg, logger)
		if err != nil {
			sc.Cleanup()
			return nil, fmt.Errorf("initializing storage: %w", err)
		}
		sc.Store = store
		sc.addCleanup(func() {
			if err := store.Close(); err != nil {
				logger.Error("closing store", slog.String("error", err.Error()))
			}
		})
		obs.Health.AddCheck("storage", store.Ping)
	}

	obs.Health.AddCheck("workspace", func(ctx context.Context) error {
		st := resolver.Check(ctx)
		if !st.Reachable {
			return fmt.Errorf("workspace root: %s", st.Error)
		}
		return nil
	})

	// Sandbox and executor.
	sbx := sandbox.NewProcessSandbox(sandbox.ProcessConfig{
		DefaultTimeout: cfg.Sandbox.CommandTimeout(),
		DefaultLimits: sandbox.ResourceLimits{
			MaxCPUSeconds: cfg.Sandbox.MaxCPUSeconds,
			MaxMemoryMB:   cfg.Sandbox.MaxMemoryMB,
		},
	}, logger)
	exe := executor.New(sbx, executor.Config{
		CommandTimeout: cfg.Sandbox.CommandTimeout(),
	}, logger)

	sc.Engine = engine.New(engine.Deps{
		Translator: sc.Translator,
		Resolver:   resolver,
		Validator:  command.NewValidator(resolver.Root()),
		Executor:   exe,
		Store:      sc.Store,
		Metrics:    obs.Metrics,
		Tracer:     obs.TracerOrNil(),
		Logger:     logger,
	})

	return sc, nil
}

// initStore creates the history backend from config. SQLite is the default.
func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.Storage.StorageDriver() == "postgres" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		pgCfg := pgstore.Config{DSN: cfg.Storage.Postgres.DSN}
		if cfg.Storage.Postgres.MaxConns > 0 {
			pgCfg.MaxConns = int32(cfg.Storage.Postgres.MaxConns)
		}
		if cfg.Storage.Postgres.ConnMaxLifetimeS > 0 {
			pgCfg.MaxConnLifetime = time.Duration(cfg.Storage.Postgres.ConnMaxLifetimeS) * time.Second
		}
		return pgstore.New(ctx, pgCfg, logger)
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
	}
	sqCfg := sqlitestore.Config{Path: cfg.SQLitePath()}
	if cfg.Storage != nil && cfg.Storage.SQLite != nil {
		sqCfg.JournalMode = cfg.Storage.SQLite.JournalMode
	}
	return sqlitestore.New(sqCfg, logger)
}

// newProvider builds the configured LLM client.
func newProvider(cfg *config.Config, logger *slog.Logger) (llm.Provider, error) {
	switch cfg.Provider.Name {
	case "anthropic":
		if cfg.Provider.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		var opts []anthropic.Option
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.Provider.BaseURL))
		}
		return anthropic.NewClient(cfg.Provider.APIKey, cfg.Provider.Model, logger, opts...), nil
	case "openai":
		if cfg.Provider.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		var opts []openai.Option
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Provider.BaseURL))
		}
		return openai.NewClient(cfg.Provider.APIKey, cfg.Provider.Model, logger, opts...), nil
	case "ollama":
		baseURL := cfg.Provider.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return openai.NewClient("", cfg.Provider.Model, logger,
			openai.WithBaseURL(baseURL),
			openai.WithName("ollama"),
		), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.Provider.Name)
	}
}

// newLogger builds the process-wide JSON logger.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
