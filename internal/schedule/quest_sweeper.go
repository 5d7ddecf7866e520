package schedule

// 任务扫描器：周期性找出有到期实例的用户并执行 Reconcile，
// 让没有轮询的用户也能按时结算

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"QuestLoop/config"
	"QuestLoop/internal/cache"
	"QuestLoop/internal/repository"
	"QuestLoop/internal/service"
	"QuestLoop/pkg/logger"
	"QuestLoop/pkg/metrics"
)

const sweepLockKey = "quest_sweep"

// Reconciler 推进单个用户的实例状态
type Reconciler interface {
	Reconcile(ctx context.Context, userID int64) ([]service.QuestView, error)
}

// SweepResult 一轮扫描的统计
type SweepResult struct {
	BatchID string
	Users   int
	Failed  int
	Skipped bool
}

type QuestSweeper struct {
	db          *gorm.DB
	reconciler  Reconciler
	now         func() time.Time
	logger      *zap.Logger
	tryLock     func(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	unlock      func(ctx context.Context, key, token string) (bool, error)
	lockTTL     time.Duration
	concurrency int
	pageSize    int

	mu      sync.Mutex
	running bool
}

type SweeperOption func(*QuestSweeper)

func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *QuestSweeper) { s.now = now }
}

func WithConcurrency(n int) SweeperOption {
	return func(s *QuestSweeper) { s.concurrency = n }
}

func WithPageSize(n int) SweeperOption {
	return func(s *QuestSweeper) { s.pageSize = n }
}

func NewQuestSweeper(db *gorm.DB, reconciler Reconciler, opts ...SweeperOption) *QuestSweeper {
	s := &QuestSweeper{
		db:          db,
		reconciler:  reconciler,
		now:         func() time.Time { return time.Now().In(config.Cfg.Location()) },
		logger:      logger.Component("quest_sweeper"),
		tryLock:     cache.TryLock,
		unlock:      cache.Unlock,
		lockTTL:     10 * time.Minute,
		concurrency: config.Cfg.QuestSweepConcurrency,
		pageSize:    500,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	return s
}

// Sweep 执行一轮扫描。单个用户失败只计数，不影响其它用户
func (s *QuestSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{BatchID: uuid.NewString()}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Sweep already running, skipping")
		result.Skipped = true
		return result, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	locked, err := s.tryLock(ctx, sweepLockKey, result.BatchID, s.lockTTL)
	if err != nil {
		return result, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !locked {
		s.logger.Info("Another sweeper holds the lock, skipping", zap.String("batch_id", result.BatchID))
		metrics.RecordSweep(ctx, "skipped", 0)
		result.Skipped = true
		return result, nil
	}
	defer func() {
		if _, err := s.unlock(context.WithoutCancel(ctx), sweepLockKey, result.BatchID); err != nil {
			s.logger.Warn("Failed to release sweep lock", zap.String("batch_id", result.BatchID), zap.Error(err))
		}
	}()

	start := time.Now()
	now := s.now()
	var failed atomic.Int64
	var afterID int64

	s.logger.Info("Starting quest sweep",
		zap.String("batch_id", result.BatchID),
		zap.Time("now", now),
	)

	for {
		ids, err := repository.DueUserIDs(s.db.WithContext(ctx), now, afterID, s.pageSize)
		if err != nil {
			return result, err
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, userID := range ids {
			g.Go(func() error {
				if _, err := s.reconciler.Reconcile(gctx, userID); err != nil {
					failed.Add(1)
					s.logger.Error("Failed to reconcile user",
						zap.String("batch_id", result.BatchID),
						zap.Int64("user_id", userID),
						zap.Error(err),
					)
				}
				return nil
			})
		}
		_ = g.Wait()

		result.Users += len(ids)
		afterID = ids[len(ids)-1]

		if err := ctx.Err(); err != nil {
			return result, err
		}
		if len(ids) < s.pageSize {
			break
		}
	}

	result.Failed = int(failed.Load())
	metrics.RecordSweep(ctx, "ok", int64(result.Users-result.Failed))
	metrics.RecordSweep(ctx, "failed", int64(result.Failed))
	metrics.RecordReconcile(ctx, "sweep", time.Since(start))

	s.logger.Info("Quest sweep finished",
		zap.String("batch_id", result.BatchID),
		zap.Int("users", result.Users),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// Run 按固定间隔扫描直到 ctx 取消
func (s *QuestSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Quest sweeper started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, interval)
			if _, err := s.Sweep(runCtx); err != nil {
				s.logger.Error("Quest sweep run failed", zap.Error(err))
			}
			cancel()
		}
	}
}
