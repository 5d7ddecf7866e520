package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"QuestLoop/internal/model"
	"QuestLoop/internal/repository"
	"QuestLoop/pkg/errors"
	"QuestLoop/pkg/logger"
	"QuestLoop/pkg/metrics"
)

// LevelFor 按阈值倒序查找累计经验对应的等级，没有命中时返回 0
func LevelFor(levels []model.Level, experience int64) int {
	best := 0
	var bestThreshold int64 = -1
	for _, l := range levels {
		if l.ExperienceRequired <= experience && l.ExperienceRequired > bestThreshold {
			best = l.Level
			bestThreshold = l.ExperienceRequired
		}
	}
	return best
}

// experienceDelta 奖励为正、惩罚为负，数量取绝对值四舍五入
func experienceDelta(tag model.RewardTag, quantity float64) int64 {
	d := int64(math.Round(math.Abs(quantity)))
	if tag == model.RewardTagPenalty {
		return -d
	}
	return d
}

// ApplyReward 对单个实例执行一次结算，已结算时返回空效果
func (s *QuestService) ApplyReward(ctx context.Context, userID, questID int64) ([]model.RewardEffect, error) {
	var effects []model.RewardEffect

	err := s.mutate(ctx, "apply_reward", func(tx *gorm.DB, box *outbox) error {
		q, err := repository.LockQuest(tx, userID, questID)
		if err != nil {
			return err
		}

		effects, err = s.applyReward(tx, q, s.clock.Now(), box)
		return err
	})
	if err != nil {
		return nil, err
	}
	return effects, nil
}

// applyReward 奖励账本，rewardDelivered 为幂等守卫，调用方必须已持有实例行锁
func (s *QuestService) applyReward(tx *gorm.DB, q *model.UserQuest, now time.Time, box *outbox) ([]model.RewardEffect, error) {
	if q.RewardDelivered {
		return nil, nil
	}

	outcome, ok := q.Outcome()
	if !ok {
		return nil, &errors.TransitionError{From: string(q.State), Action: "apply reward to"}
	}

	tag := model.RewardTagReward
	if outcome == model.OutcomeExpired {
		tag = model.RewardTagPenalty
	}

	defs, err := repository.ListRewardDefinitions(tx, q.TemplateID, tag)
	if err != nil {
		return nil, err
	}

	user, err := repository.LockUser(tx, q.UserID)
	if err != nil {
		return nil, err
	}

	ctx := tx.Statement.Context
	experience := user.Experience
	effects := make([]model.RewardEffect, 0, len(defs))

	for _, def := range defs {
		effect := model.RewardEffect{
			ObjectID:   def.ObjectID,
			ObjectName: def.Object.Name,
			ObjectType: def.Object.ObjectType,
			Tag:        def.Tag,
			Quantity:   def.Quantity,
		}

		if def.Object.ObjectType == model.ObjectTypeExperience {
			effect.Delta = experienceDelta(def.Tag, def.Quantity)
			effect.Applied = true

			experience += effect.Delta
			if experience < 0 {
				experience = 0
			}
		}

		metrics.RecordRewardEffect(ctx, string(effect.Tag), effect.Applied, effect.Delta)
		effects = append(effects, effect)
	}

	level := user.Level
	if experience != user.Experience {
		levels, err := repository.ListLevels(tx)
		if err != nil {
			return nil, err
		}
		if computed := LevelFor(levels, experience); computed > level {
			level = computed
		}

		if err := repository.UpdateUserProgress(tx, user.ID, level, experience); err != nil {
			return nil, err
		}
	}

	q.RewardDelivered = true
	if err := repository.SaveQuest(tx, q); err != nil {
		return nil, err
	}

	entry := &model.RewardLog{
		UserID:          q.UserID,
		UserQuestID:     q.ID,
		TemplateID:      q.TemplateID,
		Outcome:         outcome,
		Effects:         effects,
		ExperienceAfter: experience,
		LoggedAt:        now,
	}
	if err := repository.CreateRewardLog(tx, entry); err != nil {
		return nil, err
	}

	if level > user.Level {
		metrics.RecordLevelUp(ctx, level)
		box.levelUps = append(box.levelUps, model.LevelUpEvent{
			UserID:     user.ID,
			FromLevel:  user.Level,
			ToLevel:    level,
			Experience: experience,
		})
	}
	box.summaries = append(box.summaries, model.RewardSummaryEvent{
		UserID:      q.UserID,
		UserQuestID: q.ID,
		TemplateID:  q.TemplateID,
		Title:       q.Template.Title,
		Outcome:     outcome,
		Effects:     effects,
	})

	logger.Logger.Info("Reward applied",
		zap.Int64("user_id", q.UserID),
		zap.Int64("quest_id", q.ID),
		zap.String("outcome", string(outcome)),
		zap.Int("effects", len(effects)),
		zap.Int64("experience_before", user.Experience),
		zap.Int64("experience_after", experience),
		zap.Int("level", level),
	)

	return effects, nil
}
