package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"QuestLoop/config"
	"QuestLoop/internal/queue"
	"QuestLoop/internal/schedule"
	"QuestLoop/internal/service"
	"QuestLoop/pkg/logger"
	"QuestLoop/pkg/metrics"
	"QuestLoop/pkg/otel"
	"QuestLoop/pkg/snowflake"
	"QuestLoop/storage"
	"QuestLoop/storage/database"
	"QuestLoop/storage/mq"
)

func main() {
	logger.Init()
	defer logger.Sync()

	if err := config.Cfg.Validate(false); err != nil {
		logger.Logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if config.Cfg.TracingEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
			ServiceName:    config.Cfg.ServiceName + "-scheduler",
			ServiceVersion: "1.0.0",
			Environment:    config.Cfg.Environment,
			OTLPEndpoint:   config.Cfg.OTLPEndpoint,
			SampleRatio:    config.Cfg.TracingSampler,
		})
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry for scheduler", zap.Error(err))
		} else {
			defer func() { _ = shutdown(context.Background()) }()
			if err := metrics.InitMetrics(); err != nil {
				logger.Logger.Warn("Failed to initialize metrics for scheduler", zap.Error(err))
			}
		}
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	// 与 server 使用不同的 machine ID 部署，避免事件 ID 冲突
	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scheduler", zap.Error(err))
	}

	service.Init(
		database.NewTransactor(database.DB()),
		service.WithNotifier(queue.NewPublisher(mq.EventsExchange())),
	)

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
		zap.Duration("interval", config.Cfg.QuestSweepInterval),
	)

	sweeper := schedule.NewQuestSweeper(database.DB(), service.Quest())
	sweeper.Run(ctx, config.Cfg.QuestSweepInterval)

	logger.Logger.Info("Scheduler service shutting down gracefully")
}
