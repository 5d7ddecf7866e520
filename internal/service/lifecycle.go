package service

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"QuestLoop/internal/model"
	"QuestLoop/internal/period"
	"QuestLoop/internal/repository"
	"QuestLoop/pkg/errors"
	"QuestLoop/pkg/logger"
	"QuestLoop/pkg/metrics"
)

// transition 修改内存中的状态并记录日志和指标，持久化由调用方负责
func transition(ctx context.Context, q *model.UserQuest, to model.QuestState) {
	from := q.State
	q.State = to

	metrics.RecordTransition(ctx, string(from), string(to))
	logger.Logger.Info("Quest state transition",
		zap.Int64("user_id", q.UserID),
		zap.Int64("quest_id", q.ID),
		zap.Int64("template_id", q.TemplateID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

// Activate New -> Live
func (s *QuestService) Activate(ctx context.Context, userID, questID int64) (*QuestView, error) {
	var view QuestView

	err := s.mutate(ctx, "activate", func(tx *gorm.DB, _ *outbox) error {
		q, err := repository.LockQuest(tx, userID, questID)
		if err != nil {
			return err
		}
		if err := s.activate(tx, q, s.clock.Now()); err != nil {
			return err
		}
		view = NewQuestView(q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *QuestService) activate(tx *gorm.DB, q *model.UserQuest, now time.Time) error {
	if q.State != model.QuestStateNew {
		return &errors.TransitionError{From: string(q.State), Action: "activate"}
	}

	expiration := period.FirstActivationExpiration(q.Template.Periodicity(), now)
	q.DateRead = &now
	q.DateExpiration = &expiration
	transition(tx.Statement.Context, q, model.QuestStateLive)

	return repository.SaveQuest(tx, q)
}

// SubmitParams 整批校验并写入参数，成功后 PendingParams -> New -> Live
func (s *QuestService) SubmitParams(ctx context.Context, userID, questID int64, values []ParamValue) (*QuestView, error) {
	var view QuestView

	err := s.mutate(ctx, "submit_params", func(tx *gorm.DB, _ *outbox) error {
		q, err := repository.LockQuest(tx, userID, questID)
		if err != nil {
			return err
		}
		if q.State != model.QuestStatePendingParams {
			return &errors.TransitionError{From: string(q.State), Action: "submit params for"}
		}

		resolved, err := resolveParams(q.Details, values)
		if err != nil {
			return err
		}

		for _, rp := range resolved {
			d := &q.Details[rp.index]
			d.NumericValue = rp.numeric
			d.TextValue = rp.text
			if err := repository.SaveDetailValue(tx, d); err != nil {
				return err
			}
		}

		transition(ctx, q, model.QuestStateNew)
		if err := s.activate(tx, q, s.clock.Now()); err != nil {
			return err
		}
		view = NewQuestView(q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ToggleDetail 通过子任务值 ID 勾选或取消
func (s *QuestService) ToggleDetail(ctx context.Context, userID, valueID int64, checked bool) (*QuestView, error) {
	var view QuestView

	err := s.mutate(ctx, "toggle_detail", func(tx *gorm.DB, box *outbox) error {
		questID, err := repository.QuestIDForDetailValue(tx, userID, valueID)
		if err != nil {
			return err
		}
		q, err := repository.LockQuest(tx, userID, questID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range q.Details {
			if q.Details[i].ID == valueID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.DetailNotFound
		}

		if err := s.toggle(tx, q, idx, checked, box); err != nil {
			return err
		}
		view = NewQuestView(q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ToggleDetailByTemplate 通过 (实例, 子任务模板) 勾选或取消
func (s *QuestService) ToggleDetailByTemplate(ctx context.Context, userID, questID, detailTemplateID int64, checked bool) (*QuestView, error) {
	var view QuestView

	err := s.mutate(ctx, "toggle_detail", func(tx *gorm.DB, box *outbox) error {
		q, err := repository.LockQuest(tx, userID, questID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range q.Details {
			if q.Details[i].DetailTemplateID == detailTemplateID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.DetailNotFound
		}

		if err := s.toggle(tx, q, idx, checked, box); err != nil {
			return err
		}
		view = NewQuestView(q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// toggle 全部勾选时在同一事务内完成并结算
func (s *QuestService) toggle(tx *gorm.DB, q *model.UserQuest, idx int, checked bool, box *outbox) error {
	if q.State != model.QuestStateLive {
		return &errors.TransitionError{From: string(q.State), Action: "toggle details of"}
	}

	d := &q.Details[idx]
	d.Checked = checked
	if err := repository.SaveDetailValue(tx, d); err != nil {
		return err
	}

	if !q.AllChecked() {
		return nil
	}
	return s.complete(tx, q, s.clock.Now(), box)
}

// complete Live -> Completed 并立即结算
func (s *QuestService) complete(tx *gorm.DB, q *model.UserQuest, now time.Time, box *outbox) error {
	return s.finishCycle(tx, q, model.QuestStateCompleted, now, box)
}

// expire Live -> Expired 并立即结算惩罚
func (s *QuestService) expire(tx *gorm.DB, q *model.UserQuest, now time.Time, box *outbox) error {
	return s.finishCycle(tx, q, model.QuestStateExpired, now, box)
}

func (s *QuestService) finishCycle(tx *gorm.DB, q *model.UserQuest, to model.QuestState, now time.Time, box *outbox) error {
	q.Finished = true
	q.DateFinished = &now
	transition(tx.Statement.Context, q, to)

	if err := repository.SaveQuest(tx, q); err != nil {
		return err
	}

	_, err := s.applyReward(tx, q, now, box)
	return err
}

// Reconcile 推进用户全部实例的时间相关状态并返回最新列表
func (s *QuestService) Reconcile(ctx context.Context, userID int64) ([]QuestView, error) {
	if err := s.reconcile(ctx, userID); err != nil {
		return nil, err
	}
	return s.listViews(ctx, userID)
}

// reconcile 每个实例一个事务，单个实例失败不影响其它实例，最后合并返回错误
func (s *QuestService) reconcile(ctx context.Context, userID int64) error {
	ids, err := repository.ListQuestIDs(s.tx.DB().WithContext(ctx), userID,
		model.QuestStateLive,
		model.QuestStateCompleted,
		model.QuestStateExpired,
	)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		err := s.mutate(ctx, "reconcile", func(tx *gorm.DB, box *outbox) error {
			q, err := repository.LockQuest(tx, userID, id)
			if err != nil {
				return err
			}
			return s.reconcileOne(tx, q, s.clock.Now(), box)
		})

		if err != nil && !stderrors.Is(err, errors.QuestNotFound) {
			logger.Logger.Error("Failed to reconcile quest",
				zap.Int64("user_id", userID),
				zap.Int64("quest_id", id),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}

func (s *QuestService) reconcileOne(tx *gorm.DB, q *model.UserQuest, now time.Time, box *outbox) error {
	switch q.State {
	case model.QuestStateCompleted, model.QuestStateExpired:
		if q.Finished {
			return s.reconcileFinished(tx, q, now, box)
		}
	case model.QuestStateLive:
		if q.AllChecked() {
			return s.complete(tx, q, now, box)
		}
		if q.DateExpiration != nil && q.DateExpiration.Before(now) {
			return s.expire(tx, q, now, box)
		}
	}
	return nil
}

// reconcileFinished 已结束周期：补结算，然后永久结束、跳过不可用日或开启新周期
func (s *QuestService) reconcileFinished(tx *gorm.DB, q *model.UserQuest, now time.Time, box *outbox) error {
	ctx := tx.Statement.Context

	if !q.RewardDelivered {
		if _, err := s.applyReward(tx, q, now, box); err != nil {
			return err
		}
	}

	cfg := q.Template.Periodicity()
	if !q.Template.Active || !period.IsRecurring(cfg) {
		transition(ctx, q, model.QuestStateFinished)
		return repository.SaveQuest(tx, q)
	}

	if q.DateExpiration != nil && q.DateExpiration.After(now) {
		return nil
	}

	next := period.NextExpiration(cfg, now)
	if !period.IsEligibleOn(cfg, now) {
		q.DateExpiration = &next
		logger.Logger.Debug("Quest expiration pushed to next eligible day",
			zap.Int64("quest_id", q.ID),
			zap.Time("date_expiration", next),
		)
		return repository.SaveQuest(tx, q)
	}

	if err := repository.ResetDetailValues(tx, q.ID); err != nil {
		return err
	}
	for i := range q.Details {
		q.Details[i].Checked = false
		q.Details[i].NumericValue = nil
		q.Details[i].TextValue = nil
	}

	q.RewardDelivered = false
	q.Finished = false
	q.DateFinished = nil
	q.DateRead = &now
	q.DateExpiration = &next
	transition(ctx, q, model.QuestStateLive)

	return repository.SaveQuest(tx, q)
}
