package repository

import (
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"QuestLoop/internal/model"
	"QuestLoop/pkg/errors"
	"QuestLoop/storage/database"
)

func withQuestGraph(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Template.Details", orderedDetails).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Details.DetailTemplate")
}

// QuestExists (user, template) 是否已有实例
func QuestExists(tx *gorm.DB, userID, templateID int64) (bool, error) {
	var count int64
	err := tx.Model(&model.UserQuest{}).
		Where("user_id = ? AND template_id = ?", userID, templateID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check quest existence: %w", err)
	}
	return count > 0, nil
}

// AssignedTemplateIDs 用户已有实例的模板集合
func AssignedTemplateIDs(db *gorm.DB, userID int64) (map[int64]struct{}, error) {
	var ids []int64
	err := db.Model(&model.UserQuest{}).
		Where("user_id = ?", userID).
		Pluck("template_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned templates: %w", err)
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// CreateQuest 连同子任务值一起创建实例
func CreateQuest(tx *gorm.DB, quest *model.UserQuest) error {
	if err := tx.Omit("Template").Create(quest).Error; err != nil {
		return fmt.Errorf("failed to create user quest: %w", err)
	}
	return nil
}

// LockQuest 加写锁读取用户自己的实例及其模板、子任务
func LockQuest(tx *gorm.DB, userID, questID int64) (*model.UserQuest, error) {
	var quest model.UserQuest
	err := withQuestGraph(database.ForUpdate(tx)).
		Where("id = ? AND user_id = ?", questID, userID).
		Take(&quest).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.QuestNotFound
		}
		return nil, fmt.Errorf("failed to lock user quest: %w", err)
	}
	return &quest, nil
}

// ListQuestIDs 用户的全部实例 ID，不加锁
func ListQuestIDs(db *gorm.DB, userID int64, states ...model.QuestState) ([]int64, error) {
	var ids []int64
	q := db.Model(&model.UserQuest{}).Where("user_id = ?", userID)
	if len(states) > 0 {
		q = q.Where("state IN ?", states)
	}
	if err := q.Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list user quests: %w", err)
	}
	return ids, nil
}

// ListQuests 用户任务列表视图
func ListQuests(db *gorm.DB, userID int64) ([]model.UserQuest, error) {
	var quests []model.UserQuest
	err := withQuestGraph(db).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&quests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user quests: %w", err)
	}
	return quests, nil
}

// SaveQuest 写回实例自身字段，不级联子任务
func SaveQuest(tx *gorm.DB, quest *model.UserQuest) error {
	if err := tx.Omit(clause.Associations).Save(quest).Error; err != nil {
		return fmt.Errorf("failed to save user quest: %w", err)
	}
	return nil
}

// QuestIDForDetailValue 根据子任务值 ID 找到所属实例，同时校验归属
func QuestIDForDetailValue(tx *gorm.DB, userID, valueID int64) (int64, error) {
	var questIDs []int64
	err := tx.Model(&model.UserQuestDetailValue{}).
		Joins("JOIN user_quests ON user_quests.id = user_quest_detail_values.user_quest_id").
		Where("user_quest_detail_values.id = ? AND user_quests.user_id = ?", valueID, userID).
		Limit(1).
		Pluck("user_quest_detail_values.user_quest_id", &questIDs).Error
	if err != nil {
		return 0, fmt.Errorf("failed to resolve detail value: %w", err)
	}
	if len(questIDs) == 0 {
		return 0, errors.DetailNotFound
	}
	return questIDs[0], nil
}

// SaveDetailValue 写回单个子任务值
func SaveDetailValue(tx *gorm.DB, value *model.UserQuestDetailValue) error {
	if err := tx.Omit(clause.Associations).Save(value).Error; err != nil {
		return fmt.Errorf("failed to save detail value: %w", err)
	}
	return nil
}

// ResetDetailValues 新周期开始时清空全部子任务值
func ResetDetailValues(tx *gorm.DB, questID int64) error {
	err := tx.Model(&model.UserQuestDetailValue{}).
		Where("user_quest_id = ?", questID).
		Updates(map[string]interface{}{
			"checked":       false,
			"numeric_value": nil,
			"text_value":    nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reset detail values: %w", err)
	}
	return nil
}

// DueUserIDs 存在到期或待结算实例的用户，供后台扫描使用
func DueUserIDs(db *gorm.DB, now time.Time, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := db.Model(&model.UserQuest{}).
		Distinct("user_id").
		Where("user_id > ?", afterID).
		Where(db.
			Where("state = ? AND date_expiration < ?", model.QuestStateLive, now).
			Or("state IN ? AND (reward_delivered = ? OR date_expiration <= ?)",
				[]model.QuestState{model.QuestStateCompleted, model.QuestStateExpired}, false, now),
		).
		Order("user_id ASC").
		Limit(limit).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due users: %w", err)
	}
	return ids, nil
}
