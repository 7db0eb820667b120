package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	_ "github.com/kirinyoku/tix-reserve/docs"
	"github.com/kirinyoku/tix-reserve/internal/app"
	"github.com/kirinyoku/tix-reserve/internal/config"
	"github.com/kirinyoku/tix-reserve/internal/observability"
)

// @title TixReserve API
// @version 1.0
// @description Ticket inventory and reservation service.
// @host localhost:8080
// @BasePath /
func main() {
	if err := run(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New()
	if err != nil {
		zap.NewExample().Error("failed to load config", zap.Error(err))
		return err
	}

	exportOTel := cfg.Otel.Endpoint != ""
	shutdown := func(context.Context) error { return nil }
	var otelErr error
	if exportOTel {
		shutdown, otelErr = observability.Setup(ctx, observability.Config{
			Endpoint:   cfg.Otel.Endpoint,
			AuthHeader: cfg.Otel.AuthHeader,
		})
	}

	logger := observability.NewLogger(cfg.Env, exportOTel)
	defer func() { _ = logger.Sync() }()

	if otelErr != nil {
		logger.Error("failed to set up OpenTelemetry export", zap.Error(otelErr))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("OpenTelemetry shutdown", zap.Error(err))
		}
	}()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create application", zap.Error(err))
		return err
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application finished with error", zap.Error(err))
		return err
	}

	return nil
}
