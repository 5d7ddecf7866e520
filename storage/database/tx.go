package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"QuestLoop/config"
	"QuestLoop/pkg/errors"
	"QuestLoop/pkg/logger"
	"QuestLoop/pkg/metrics"
	"QuestLoop/pkg/retry"
)

// Transactor 每次调用在独立的可串行化事务中执行，冲突时按策略整体重试
type Transactor struct {
	db        *gorm.DB
	policy    retry.Policy
	isolation sql.IsolationLevel
}

type TxOption func(*Transactor)

// WithIsolation 覆盖隔离级别，SQLite 测试库只支持默认级别
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(t *Transactor) {
		t.isolation = level
	}
}

// WithRetry 覆盖重试次数和基础间隔
func WithRetry(maxRetries int, baseDelay time.Duration) TxOption {
	return func(t *Transactor) {
		t.policy.MaxRetries = maxRetries
		t.policy.BaseDelay = baseDelay
	}
}

// WithRetryable 覆盖冲突判定
func WithRetryable(fn func(error) bool) TxOption {
	return func(t *Transactor) {
		t.policy.Retryable = fn
	}
}

func NewTransactor(db *gorm.DB, opts ...TxOption) *Transactor {
	t := &Transactor{
		db:        db,
		isolation: sql.LevelSerializable,
		policy: retry.Policy{
			MaxRetries: config.Cfg.QuestTxMaxRetries,
			BaseDelay:  config.Cfg.QuestTxBaseDelay,
			Retryable:  IsSerializationFailure,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DB 非事务读取使用
func (t *Transactor) DB() *gorm.DB {
	return t.db
}

// Run 执行 fn，fn 在每次重试时都会被重新调用，不能依赖上一次尝试留下的内存状态。
// 重试耗尽后返回包装了最后一次存储错误的 CONCURRENCY_CONFLICT。
func (t *Transactor) Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	policy := t.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		metrics.RecordTxRetry(ctx, op)
		logger.Logger.Warn("Serialization conflict, retrying transaction",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	err := policy.Do(ctx, func(int) error {
		return t.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: t.isolation})
	})
	if err == nil {
		return nil
	}

	if policy.Retryable != nil && policy.Retryable(err) {
		metrics.RecordTxExhausted(ctx, op)
		logger.Logger.Error("Transaction retries exhausted",
			zap.String("operation", op),
			zap.Int("attempts", policy.Attempts()),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w: %w", op, errors.ConcurrencyConflict, err)
	}
	return err
}

// ForUpdate 对查询加行级写锁，SQLite 方言会忽略该子句
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
