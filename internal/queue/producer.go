package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"QuestLoop/internal/model"
	"QuestLoop/pkg/logger"
	"QuestLoop/pkg/snowflake"
	"QuestLoop/storage/mq"
)

const (
	RoutingKeyLevelUp       = "quest.level_up"
	RoutingKeyRewardSummary = "quest.reward_summary"
)

// PublishFunc 发布一条消息，默认实现为 mq.PublishMessage
type PublishFunc func(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error

// Publisher 把任务引擎的通知投递到事件交换机
type Publisher struct {
	publish  PublishFunc
	breaker  *CircuitBreaker
	now      func() time.Time
	exchange string
}

type PublisherOption func(*Publisher)

// WithPublishFunc 替换底层发布实现
func WithPublishFunc(fn PublishFunc) PublisherOption {
	return func(p *Publisher) { p.publish = fn }
}

func WithBreaker(cb *CircuitBreaker) PublisherOption {
	return func(p *Publisher) { p.breaker = cb }
}

func NewPublisher(exchange string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		exchange: exchange,
		publish:  mq.PublishMessage,
		breaker:  NewCircuitBreaker("events_publisher", 5, 30*time.Second),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LevelUp 发布等级提升事件
func (p *Publisher) LevelUp(ctx context.Context, e model.LevelUpEvent) error {
	return p.publishEvent(ctx, RoutingKeyLevelUp, "level_up", e.UserID, e)
}

// RewardSummary 发布周期结算汇总事件
func (p *Publisher) RewardSummary(ctx context.Context, e model.RewardSummaryEvent) error {
	return p.publishEvent(ctx, RoutingKeyRewardSummary, "reward_summary", e.UserID, e)
}

func (p *Publisher) publishEvent(ctx context.Context, routingKey, eventType string, userID int64, payload interface{}) error {
	id, err := snowflake.NextID()
	if err != nil {
		logger.Logger.Error("Failed to generate message ID",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		return fmt.Errorf("failed to generate message ID: %w", err)
	}

	event := model.EventMessage{
		MessageID:  fmt.Sprintf("%s_%d", eventType, id),
		EventKey:   routingKey,
		EventType:  eventType,
		OccurredAt: p.now().Format(time.RFC3339),
		Payload:    payload,
	}

	err = p.breaker.Call(func() error {
		return p.publish(ctx, p.exchange, routingKey, event.MessageID, event)
	})
	if err != nil {
		logger.Logger.Error("Failed to publish quest event",
			zap.String("message_id", event.MessageID),
			zap.String("routing_key", routingKey),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published quest event",
		zap.String("message_id", event.MessageID),
		zap.String("routing_key", routingKey),
		zap.Int64("user_id", userID),
	)
	return nil
}
