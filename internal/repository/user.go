package repository

import (
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"

	"QuestLoop/internal/model"
	"QuestLoop/pkg/errors"
	"QuestLoop/storage/database"
)

// GetUser 读取用户档案
func GetUser(db *gorm.DB, userID int64) (*model.User, error) {
	var user model.User
	if err := db.Where("id = ?", userID).Take(&user).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.UserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// LockUser 加写锁读取用户，用于分配去重和经验更新
func LockUser(tx *gorm.DB, userID int64) (*model.User, error) {
	return GetUser(database.ForUpdate(tx), userID)
}

// UpdateUserProgress 写回等级与累计经验
func UpdateUserProgress(tx *gorm.DB, userID int64, level int, experience int64) error {
	err := tx.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"level":      level,
			"experience": experience,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update user progress: %w", err)
	}
	return nil
}

// ListLevels 按等级升序返回阈值表
func ListLevels(db *gorm.DB) ([]model.Level, error) {
	var levels []model.Level
	if err := db.Order("level ASC").Find(&levels).Error; err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}
	return levels, nil
}
