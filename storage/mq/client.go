package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"QuestLoop/config"
	"QuestLoop/pkg/logger"
)

var (
	conn     *amqp.Connection
	connMu   sync.RWMutex
	exchange string
)

// Init 建立连接并声明事件交换机
func Init() error {
	c, err := amqp.Dial(config.Cfg.GetRabbitMQURL())
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	name := config.Cfg.EventsExchange
	if err := ch.ExchangeDeclare(
		name,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}

	connMu.Lock()
	conn = c
	exchange = name
	connMu.Unlock()

	logger.Logger.Info("RabbitMQ connected",
		zap.String("component", "rabbitmq"),
		zap.String("exchange", name),
	)
	return nil
}

func Connection() *amqp.Connection {
	connMu.RLock()
	defer connMu.RUnlock()
	return conn
}

// EventsExchange 已声明的事件交换机名
func EventsExchange() string {
	connMu.RLock()
	defer connMu.RUnlock()
	return exchange
}

func Close(ctx context.Context) error {
	pubMutex.Lock()
	if publisherCh != nil {
		_ = publisherCh.Close()
		publisherCh = nil
	}
	pubMutex.Unlock()

	connMu.Lock()
	defer connMu.Unlock()
	if conn == nil || conn.IsClosed() {
		return nil
	}
	err := conn.Close()
	conn = nil
	return err
}
