package middleware

import (
	"go.uber.org/zap"

	"QuestLoop/config"
	"QuestLoop/pkg/logger"
)

// Init 初始化所有中间件
func Init() error {
	return InitWithSecret([]byte(config.Cfg.JWTSecret))
}

func InitWithSecret(secret []byte) error {
	mw, err := newAuthMiddleware(secret)
	if err != nil {
		logger.Logger.Error("Failed to initialize auth middleware", zap.Error(err))
		return err
	}
	authMiddleware = mw

	logger.Logger.Info("All middlewares initialized successfully")
	return nil
}
