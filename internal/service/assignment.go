package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"QuestLoop/internal/model"
	"QuestLoop/internal/period"
	"QuestLoop/internal/repository"
	"QuestLoop/pkg/logger"
	"QuestLoop/pkg/metrics"
	"QuestLoop/storage/database"
)

// AssignEligible 为用户创建缺失的任务实例。
// 单个模板失败只记录日志，下一次轮询会重新尝试。
func (s *QuestService) AssignEligible(ctx context.Context, userID int64) ([]QuestView, error) {
	db := s.tx.DB().WithContext(ctx)

	user, err := repository.GetUser(db, userID)
	if err != nil {
		return nil, err
	}

	templates, err := repository.ListAssignableTemplates(db, user.Level)
	if err != nil {
		return nil, err
	}

	assigned, err := repository.AssignedTemplateIDs(db, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	created := make([]QuestView, 0)

	for i := range templates {
		tpl := &templates[i]
		if _, ok := assigned[tpl.ID]; ok {
			continue
		}

		cfg := tpl.Periodicity()
		if res := period.Validate(cfg); !res.Valid {
			logger.Logger.Warn("Template periodicity invalid, treating as daily",
				zap.Int64("template_id", tpl.ID),
				zap.Strings("errors", res.Errors),
			)
		}

		// WEEKDAYS/PATTERN 推迟到第一个可用日创建，FIXED 总是可用
		if !period.IsEligibleOn(cfg, now) {
			continue
		}

		quest, err := s.createInstance(ctx, userID, tpl, now)
		if err != nil {
			logger.Logger.Warn("Failed to assign quest, will retry on next poll",
				zap.Int64("user_id", userID),
				zap.Int64("template_id", tpl.ID),
				zap.Error(err),
			)
			continue
		}
		if quest == nil {
			continue
		}

		quest.Template = *tpl
		created = append(created, NewQuestView(quest))
	}

	return created, nil
}

func (s *QuestService) createInstance(ctx context.Context, userID int64, tpl *model.QuestTemplate, now time.Time) (*model.UserQuest, error) {
	var created *model.UserQuest

	err := s.tx.Run(ctx, "assign", func(tx *gorm.DB) error {
		created = nil

		// 锁住用户行，串行化同一用户的并发分配
		if _, err := repository.LockUser(tx, userID); err != nil {
			return err
		}

		exists, err := repository.QuestExists(tx, userID, tpl.ID)
		if err != nil || exists {
			return err
		}

		state := model.QuestStateNew
		if tpl.RequiresParams() {
			state = model.QuestStatePendingParams
		}

		quest := &model.UserQuest{
			UserID:     userID,
			TemplateID: tpl.ID,
			State:      state,
			Details:    make([]model.UserQuestDetailValue, 0, len(tpl.Details)),
		}
		for _, d := range tpl.Details {
			quest.Details = append(quest.Details, model.UserQuestDetailValue{DetailTemplateID: d.ID})
		}

		if err := repository.CreateQuest(tx, quest); err != nil {
			return err
		}
		created = quest
		return nil
	})

	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, nil
		}
		return nil, err
	}

	if created != nil {
		for i := range created.Details {
			created.Details[i].DetailTemplate = tpl.Details[i]
		}

		metrics.RecordAssigned(ctx, string(created.State))
		logger.Logger.Info("Quest assigned",
			zap.Int64("user_id", userID),
			zap.Int64("template_id", tpl.ID),
			zap.Int64("quest_id", created.ID),
			zap.String("state", string(created.State)),
			zap.Time("now", now),
		)
	}

	return created, nil
}
