// cmd/homewise-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"homewise/internal/actions"
	"homewise/internal/common/config"
	"homewise/internal/common/logger"
	"homewise/internal/common/observability"
	"homewise/internal/dashboard"
	"homewise/internal/prompt"
	"homewise/internal/server"
	"homewise/internal/tools"
	"homewise/pkg/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting homewise",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
		zap.String("provider", cfg.GenAI.Provider),
		zap.String("repository", cfg.Repository.Backend),
	)

	obs := observability.New(cfg.Observability.ServiceName, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log, zapLog)
	if err != nil {
		zapLog.Fatal("repository init failed", zap.Error(err))
	}
	defer closeStore()

	renderer, err := prompt.NewRenderer(cfg.Prompts.Dir)
	if err != nil {
		zapLog.Fatal("prompt templates failed to load", zap.Error(err))
	}

	toolRegistry := tools.NewDefaultRegistry(tools.NewStaticGeocoder(log))
	model, err := newModel(ctx, cfg, toolRegistry, obs, log)
	if err != nil {
		zapLog.Fatal("model init failed", zap.Error(err))
	}

	flows, templates, err := newFlows(cfg, model, renderer, log)
	if err != nil {
		zapLog.Fatal("flow init failed", zap.Error(err))
	}
	service := actions.NewService(flows, store, store, obs, log)

	deps := server.Deps{
		Actions:        service,
		Dashboard:      dashboard.NewService(store, store, log),
		Catalog:        registry.Build(toolRegistry, templates, config.GetDuration(cfg.GenAI.Timeout)),
		Ready:          store.Ping,
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		Logger:         log,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = promhttp.Handler()
		deps.MetricsPath = cfg.Observability.MetricsPath
	}

	srv := server.New(server.Options{
		Address:      cfg.Server.Address,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}, server.NewMux(deps), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)

	if cfg.Notifications.Enabled {
		dispatcher, err := newDispatcher(ctx, cfg, store, renderer, log)
		if err != nil {
			zapLog.Fatal("notifications init failed", zap.Error(err))
		}
		g.Go(func() error {
			dispatcher.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("Homewise stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("Homewise stopped gracefully", zap.Duration("shutdownBudget", time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond))
}
