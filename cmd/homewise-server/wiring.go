// cmd/homewise-server/wiring.go
package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"homewise/internal/actions"
	"homewise/internal/common/aws"
	"homewise/internal/common/config"
	"homewise/internal/common/database"
	"homewise/internal/common/llm"
	"homewise/internal/common/logger"
	"homewise/internal/common/observability"
	"homewise/internal/flows/chat"
	maintenancerecommendations "homewise/internal/flows/maintenance-recommendations"
	predictivemaintenance "homewise/internal/flows/predictive-maintenance"
	"homewise/internal/notifications"
	"homewise/internal/prompt"
	"homewise/internal/repository"
	"homewise/internal/tools"
	"homewise/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// openStore builds the configured backend, optionally behind the Redis machine cache.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) (repository.Store, func(), error) {
	var (
		store   repository.Store
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Repository.Backend {
	case config.BackendPostgres:
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.Connect(ctx, cfg.Database.Postgres, 5*time.Second)
			return err
		}, 10, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = pg.Close() })

		pgStore := repository.NewPostgresStore(pg.DB, log)
		if cfg.Repository.Migrate {
			if err := pgStore.Migrate(ctx); err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		store = pgStore
		zapLog.Info("PostgreSQL connected successfully")

	default:
		mem := repository.NewMemoryStore()
		if cfg.Repository.SeedFile != "" {
			if err := mem.LoadSeed(cfg.Repository.SeedFile); err != nil {
				return nil, nil, fmt.Errorf("seed: %w", err)
			}
		}
		store = mem
	}

	if cfg.Repository.Cache {
		rc := database.NewRedis(cfg.Database.Redis)
		err := retryWithBackoff(func() error { return rc.Ping(ctx) }, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rc.Close() })
		store = repository.WithCache(store, rc.Client, config.GetDuration(cfg.Repository.CacheTTL), log)
		zapLog.Info("Redis cache enabled")
	}

	return store, closeAll, nil
}

func newModel(ctx context.Context, cfg *config.Config, toolRegistry *tools.Registry, obs *observability.Observability, log logger.Logger) (llm.Model, error) {
	model, err := llm.New(ctx, llm.Config{
		Provider:      cfg.GenAI.Provider,
		BaseURL:       cfg.GenAI.BaseURL,
		APIKey:        cfg.GenAI.APIKey,
		Model:         cfg.GenAI.Model,
		Timeout:       config.GetDuration(cfg.GenAI.Timeout),
		MaxToolRounds: cfg.GenAI.MaxToolRounds,
		Temperature:   cfg.GenAI.Temperature,
	}, toolRegistry, log)
	if err != nil {
		return nil, err
	}
	return llm.Instrument(model, cfg.GenAI.Provider, obs, log), nil
}

// newFlows applies per-flow template overrides and checks every chosen template exists.
func newFlows(cfg *config.Config, model llm.Model, renderer *prompt.Renderer, log logger.Logger) (actions.Flows, registry.Templates, error) {
	predictCfg := predictivemaintenance.LoadConfig()
	recommendCfg := maintenancerecommendations.LoadConfig()
	chatCfg := chat.LoadConfig()

	fc := config.GetFlowConfig(cfg, predictivemaintenance.TaskType)
	predictCfg.Template = orDefault(fc.Template, predictCfg.Template)
	predictCfg.Timeout = durationOr(fc.Timeout, predictCfg.Timeout)

	fc = config.GetFlowConfig(cfg, maintenancerecommendations.TaskType)
	recommendCfg.Template = orDefault(fc.Template, recommendCfg.Template)
	recommendCfg.Timeout = durationOr(fc.Timeout, recommendCfg.Timeout)

	fc = config.GetFlowConfig(cfg, chat.TaskType)
	chatCfg.Template = orDefault(fc.Template, chatCfg.Template)
	chatCfg.Timeout = durationOr(fc.Timeout, chatCfg.Timeout)
	chatCfg.Fallback = orDefault(fc.Fallback, chatCfg.Fallback)

	templates := registry.Templates{
		predictivemaintenance.TaskType:      predictCfg.Template,
		maintenancerecommendations.TaskType: recommendCfg.Template,
		chat.TaskType:                       chatCfg.Template,
	}
	for flow, name := range templates {
		if !renderer.Has(name) {
			return actions.Flows{}, nil, fmt.Errorf("flow %s: template %q not found", flow, name)
		}
	}

	return actions.Flows{
		Predict:   predictivemaintenance.NewHandler(predictCfg, model, renderer, log),
		Recommend: maintenancerecommendations.NewHandler(recommendCfg, model, renderer, log),
		Chat:      chat.NewHandler(chatCfg, model, renderer, log),
	}, templates, nil
}

func newDispatcher(ctx context.Context, cfg *config.Config, store repository.Store, renderer *prompt.Renderer, log logger.Logger) (*notifications.Dispatcher, error) {
	ncfg := notifications.LoadConfig()
	ncfg.EmailEnabled = cfg.Notifications.Email.Enabled
	ncfg.SMSEnabled = cfg.Notifications.SMS.Enabled
	ncfg.ToEmail = cfg.Notifications.Email.ToEmail
	ncfg.ToPhone = cfg.Notifications.SMS.PhoneNumber
	ncfg.LeadDays = cfg.Notifications.LeadDays
	ncfg.Interval = config.GetDuration(cfg.Notifications.Interval)

	var (
		email notifications.EmailSender
		sms   notifications.SMSSender
	)
	if ncfg.EmailEnabled {
		client, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.Email.FromEmail)
		if err != nil {
			return nil, err
		}
		email = client
	}
	if ncfg.SMSEnabled {
		client, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return nil, err
		}
		sms = client
	}
	return notifications.NewDispatcher(ncfg, store, store, renderer, email, sms, log), nil
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func durationOr(ms int, fallback time.Duration) time.Duration {
	if ms > 0 {
		return config.GetDuration(ms)
	}
	return fallback
}
