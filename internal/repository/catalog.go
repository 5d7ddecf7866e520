package repository

import (
	"fmt"

	"gorm.io/gorm"

	"QuestLoop/internal/model"
)

func orderedDetails(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

// ListAssignableTemplates 用户等级可领取的启用模板，附带子任务
func ListAssignableTemplates(db *gorm.DB, level int) ([]model.QuestTemplate, error) {
	var templates []model.QuestTemplate
	err := db.Preload("Details", orderedDetails).
		Where("active = ? AND level_required <= ?", true, level).
		Order("id ASC").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query assignable templates: %w", err)
	}
	return templates, nil
}

// ListRewardDefinitions 模板下某一极性的奖励定义，附带目录物品
func ListRewardDefinitions(db *gorm.DB, templateID int64, tag model.RewardTag) ([]model.RewardDefinition, error) {
	var defs []model.RewardDefinition
	err := db.Preload("Object").
		Where("template_id = ? AND tag = ?", templateID, tag).
		Order("id ASC").
		Find(&defs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query reward definitions: %w", err)
	}
	return defs, nil
}
