package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"QuestLoop/pkg/logger"
	"QuestLoop/storage/database"
	"QuestLoop/storage/mq"
	"QuestLoop/storage/redis"
)

// Close 按 MQ -> Redis -> Database 的顺序关闭存储连接，
// 事件发布通道最先停止，数据库最后关闭
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Logger.Info("Closing storage connections...")

	if err := mq.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close message queue", zap.Error(err))
	} else {
		logger.Logger.Info("Message queue closed successfully")
	}

	if err := redis.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close Redis connection", zap.Error(err))
	} else {
		logger.Logger.Info("Redis connection closed successfully")
	}

	if err := database.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close database connection", zap.Error(err))
	} else {
		logger.Logger.Info("Database connection closed successfully")
	}

	logger.Logger.Info("All storage connections closed")
}
