package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"QuestLoop/config"
	"QuestLoop/internal/model"
	"QuestLoop/internal/repository"
	"QuestLoop/pkg/logger"
	"QuestLoop/pkg/metrics"
	"QuestLoop/storage/database"
)

// Clock 当前时间来源，测试中替换为固定时间
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().In(config.Cfg.Location())
}

// Notifier 外部消息协作方，投递失败只记录日志
type Notifier interface {
	LevelUp(ctx context.Context, event model.LevelUpEvent) error
	RewardSummary(ctx context.Context, event model.RewardSummaryEvent) error
}

// QuestService 任务生命周期、分配和奖励结算
type QuestService struct {
	tx       *database.Transactor
	clock    Clock
	notifier Notifier
}

type Option func(*QuestService)

func WithClock(c Clock) Option {
	return func(s *QuestService) {
		s.clock = c
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *QuestService) {
		s.notifier = n
	}
}

var (
	questService *QuestService
	questOnce    sync.Once
)

// Init 绑定全局实例，由二进制入口在存储初始化后调用
func Init(tx *database.Transactor, opts ...Option) {
	questOnce.Do(func() {
		questService = NewQuestService(tx, opts...)
	})
}

func Quest() *QuestService {
	if questService == nil {
		panic("quest service not init")
	}
	return questService
}

func NewQuestService(tx *database.Transactor, opts ...Option) *QuestService {
	s := &QuestService{
		tx:    tx,
		clock: systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// outbox 单次事务尝试中产生的通知，提交成功后才投递
type outbox struct {
	levelUps  []model.LevelUpEvent
	summaries []model.RewardSummaryEvent
}

func (b *outbox) reset() {
	b.levelUps = b.levelUps[:0]
	b.summaries = b.summaries[:0]
}

func (s *QuestService) dispatch(ctx context.Context, box *outbox) {
	if s.notifier == nil {
		return
	}

	for _, e := range box.levelUps {
		if err := s.notifier.LevelUp(ctx, e); err != nil {
			logger.Logger.Warn("Failed to publish level up notification",
				zap.Int64("user_id", e.UserID),
				zap.Int("to_level", e.ToLevel),
				zap.Error(err),
			)
		}
	}

	for _, e := range box.summaries {
		if err := s.notifier.RewardSummary(ctx, e); err != nil {
			logger.Logger.Warn("Failed to publish reward summary",
				zap.Int64("user_id", e.UserID),
				zap.Int64("quest_id", e.UserQuestID),
				zap.Error(err),
			)
		}
	}
}

// LoadQuests 轮询入口：先推进时间相关状态，再补充新可领取的任务，最后返回列表
func (s *QuestService) LoadQuests(ctx context.Context, userID int64) ([]QuestView, error) {
	start := time.Now()

	if _, err := repository.GetUser(s.tx.DB().WithContext(ctx), userID); err != nil {
		return nil, err
	}

	if err := s.reconcile(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.AssignEligible(ctx, userID); err != nil {
		return nil, err
	}

	metrics.RecordReconcile(ctx, "poll", time.Since(start))
	return s.listViews(ctx, userID)
}

// RewardLogPage 结算记录分页
type RewardLogPage struct {
	Logs   []model.RewardLog `json:"logs"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

// ListRewardLogs 用户结算记录
func (s *QuestService) ListRewardLogs(ctx context.Context, userID int64, limit, offset int) (*RewardLogPage, error) {
	switch {
	case limit <= 0:
		limit = defaultLogLimit
	case limit > maxLogLimit:
		limit = maxLogLimit
	}
	if offset < 0 {
		offset = 0
	}

	logs, total, err := repository.ListRewardLogs(s.tx.DB().WithContext(ctx), userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &RewardLogPage{Logs: logs, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *QuestService) listViews(ctx context.Context, userID int64) ([]QuestView, error) {
	quests, err := repository.ListQuests(s.tx.DB().WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	views := make([]QuestView, 0, len(quests))
	for i := range quests {
		views = append(views, NewQuestView(&quests[i]))
	}
	return views, nil
}

// mutate 在事务中执行单实例变更，提交后投递通知
func (s *QuestService) mutate(ctx context.Context, op string, fn func(tx *gorm.DB, box *outbox) error) error {
	box := &outbox{}
	err := s.tx.Run(ctx, op, func(tx *gorm.DB) error {
		box.reset()
		return fn(tx, box)
	})
	if err != nil {
		return err
	}

	s.dispatch(ctx, box)
	return nil
}
