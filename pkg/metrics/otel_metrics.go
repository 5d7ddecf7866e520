package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// 任务生命周期
	QuestTransitionsTotal metric.Int64Counter
	QuestAssignedTotal    metric.Int64Counter
	ReconcileDuration     metric.Float64Histogram

	// 奖励账本
	RewardEffectsTotal  metric.Int64Counter
	ExperienceDeltaSum  metric.Int64Counter
	LevelUpsTotal       metric.Int64Counter

	// 事务冲突
	TxRetryTotal     metric.Int64Counter
	TxExhaustedTotal metric.Int64Counter

	// 后台扫描
	SweepUsersTotal metric.Int64Counter
}

var (
	// 全局指标实例，未初始化时所有 Record 方法为空操作
	metrics *OTelMetrics
	meter   = otel.Meter("questloop")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	var err error
	m := &OTelMetrics{}

	m.QuestTransitionsTotal, err = meter.Int64Counter(
		"quest_transitions_total",
		metric.WithDescription("Total number of quest state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	m.QuestAssignedTotal, err = meter.Int64Counter(
		"quest_assigned_total",
		metric.WithDescription("Total number of quest instances created by assignment"),
		metric.WithUnit("{quest}"),
	)
	if err != nil {
		return err
	}

	m.ReconcileDuration, err = meter.Float64Histogram(
		"quest_reconcile_duration_seconds",
		metric.WithDescription("Time spent reconciling one user's quests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.RewardEffectsTotal, err = meter.Int64Counter(
		"reward_effects_total",
		metric.WithDescription("Total number of reward effects recorded"),
		metric.WithUnit("{effect}"),
	)
	if err != nil {
		return err
	}

	m.ExperienceDeltaSum, err = meter.Int64Counter(
		"reward_experience_applied_total",
		metric.WithDescription("Absolute experience applied by the reward ledger"),
		metric.WithUnit("{xp}"),
	)
	if err != nil {
		return err
	}

	m.LevelUpsTotal, err = meter.Int64Counter(
		"user_level_ups_total",
		metric.WithDescription("Total number of level ups"),
		metric.WithUnit("{level_up}"),
	)
	if err != nil {
		return err
	}

	m.TxRetryTotal, err = meter.Int64Counter(
		"db_tx_retry_total",
		metric.WithDescription("Total number of transaction retries after serialization conflicts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return err
	}

	m.TxExhaustedTotal, err = meter.Int64Counter(
		"db_tx_retry_exhausted_total",
		metric.WithDescription("Total number of operations that gave up after retry exhaustion"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	m.SweepUsersTotal, err = meter.Int64Counter(
		"quest_sweep_users_total",
		metric.WithDescription("Total number of users reconciled by the background sweeper"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return err
	}

	metrics = m
	return nil
}

// RecordTransition 记录状态迁移
func RecordTransition(ctx context.Context, from, to string) {
	if metrics == nil {
		return
	}
	metrics.QuestTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordAssigned 记录新建实例
func RecordAssigned(ctx context.Context, state string) {
	if metrics == nil {
		return
	}
	metrics.QuestAssignedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordReconcile 记录单用户 reconcile 耗时
func RecordReconcile(ctx context.Context, source string, d time.Duration) {
	if metrics == nil {
		return
	}
	metrics.ReconcileDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("source", source)))
}

// RecordRewardEffect 记录一条奖励效果
func RecordRewardEffect(ctx context.Context, tag string, applied bool, delta int64) {
	if metrics == nil {
		return
	}
	metrics.RewardEffectsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tag", tag),
		attribute.Bool("applied", applied),
	))
	if delta < 0 {
		delta = -delta
	}
	if applied && delta > 0 {
		metrics.ExperienceDeltaSum.Add(ctx, delta, metric.WithAttributes(attribute.String("tag", tag)))
	}
}

// RecordLevelUp 记录等级提升
func RecordLevelUp(ctx context.Context, to int) {
	if metrics == nil {
		return
	}
	metrics.LevelUpsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("to_level", to)))
}

// RecordTxRetry 记录一次冲突重试
func RecordTxRetry(ctx context.Context, op string) {
	if metrics == nil {
		return
	}
	metrics.TxRetryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

// RecordTxExhausted 记录重试耗尽
func RecordTxExhausted(ctx context.Context, op string) {
	if metrics == nil {
		return
	}
	metrics.TxExhaustedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

// RecordSweep 记录后台扫描处理的用户
func RecordSweep(ctx context.Context, status string, users int64) {
	if metrics == nil {
		return
	}
	metrics.SweepUsersTotal.Add(ctx, users, metric.WithAttributes(attribute.String("status", status)))
}
