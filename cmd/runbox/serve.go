package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"github.com/spf13/cobra"

	"github.com/acheng/runbox/internal/config"
	"github.com/acheng/runbox/internal/gateway/httpapi"
	"github.com/acheng/runbox/internal/janitor"
	"github.com/acheng/runbox/internal/ratelimit"
)

var (
	serveConfigPath string
	serveAddr       string
	serveDebug      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API gateway",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `runbox --config path` and `runbox serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&serveAddr, "listen", "", "override HTTP listen address (e.g. :8080)")
		cmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
	}
}

// runServe starts runbox in gateway mode.
func runServe(_ *cobra.Command, _ []string) error {
	logger := newLogger(serveDebug)

	cfg, err := config.Load(goutils.Env("RUNBOX_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Gateway.ListenAddr = serveAddr
	}

	logger.Info("starting in gateway mode", slog.String("config", serveConfigPath))

	sc, err := initShared(cfg, logger, true)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Janitor (optional).
	if cfg.Janitor != nil && cfg.Janitor.Enabled {
		jan := janitor.New(janitor.Config{
			Schedule:    cfg.Janitor.Schedule,
			Retention:   time.Duration(cfg.Janitor.RetentionDays) * 24 * time.Hour,
			ProjectRoot: sc.Resolver.Root(),
		}, sc.Store, logger)
		if err := jan.Start(ctx); err != nil {
			return err
		}
		defer jan.Stop()
	}

	// Rate limiter (optional).
	var limiter *ratelimit.Limiter
	if cfg.Gateway.RequestsPerMinute > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
			BurstSize:         cfg.Gateway.BurstSize,
		})
	}

	gwCfg := httpapi.Config{
		ListenAddr:    cfg.Gateway.ListenAddr,
		EnableDocs:    cfg.Gateway.EnableDocs,
		APIKeys:       cfg.Gateway.APIKeys,
		HealthChecker: sc.Obs.Health,
	}
	if sc.Obs.Metrics != nil {
		gwCfg.MetricsRegistry = sc.Obs.Metrics.Registry
		gwCfg.Metrics = sc.Obs.Metrics
		if cfg.Observability != nil && cfg.Observability.Metrics != nil {
			gwCfg.MetricsPath = cfg.Observability.Metrics.Path
		}
	}
	if sc.Obs.Tracer != nil {
		gwCfg.Tracer = sc.Obs.TracerOrNil()
	}

	gw := httpapi.NewGateway(gwCfg, sc.Engine, limiter, logger)

	// Shut the server down when the context is signaled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gw.Stop(shutdownCtx); err != nil {
			logger.Error("gateway shutdown", slog.String("error", err.Error()))
		}
	}()

	return gw.Start(ctx)
}
