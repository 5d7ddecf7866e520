package repository

import (
	"fmt"

	"gorm.io/gorm"

	"QuestLoop/internal/model"
)

// CreateRewardLog 追加一条结算记录
func CreateRewardLog(tx *gorm.DB, log *model.RewardLog) error {
	if err := tx.Create(log).Error; err != nil {
		return fmt.Errorf("failed to create reward log: %w", err)
	}
	return nil
}

// ListRewardLogs 按时间倒序分页
func ListRewardLogs(db *gorm.DB, userID int64, limit, offset int) ([]model.RewardLog, int64, error) {
	var (
		logs  []model.RewardLog
		total int64
	)

	err := db.Model(&model.RewardLog{}).Where("user_id = ?", userID).Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reward logs: %w", err)
	}

	err = db.Where("user_id = ?", userID).
		Order("logged_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query reward logs: %w", err)
	}
	return logs, total, nil
}
