package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"QuestLoop/internal/model"
	"QuestLoop/pkg/logger"
)

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Level{},
		&model.CatalogObject{},
		&model.QuestTemplate{},
		&model.QuestDetailTemplate{},
		&model.RewardDefinition{},
		&model.UserQuest{},
		&model.UserQuestDetailValue{},
		&model.RewardLog{},
	}
}

// Migrate 运行数据库迁移，创建所有表
func Migrate(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	if err := db.AutoMigrate(Models()...); err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
