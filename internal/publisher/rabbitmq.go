// Package publisher forwards abandoned sync queue items to RabbitMQ so they
// stay visible after they leave the local queue.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"news_offline/internal/config"
	"news_offline/internal/domain"
)

const ActionDeadLetter = "dead-letter"

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

func NewRabbitMQ(cfg config.RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

func declare(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	err := ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

type DeadLetterMessage struct {
	Action    string               `json:"action"`
	ID        string               `json:"id"`
	Item      domain.SyncQueueItem `json:"item"`
	Reason    string               `json:"reason"`
	Kind      string               `json:"kind"`
	Timestamp time.Time            `json:"timestamp"`
}

// NewDeadLetterMessage describes why item was abandoned.
func NewDeadLetterMessage(item domain.SyncQueueItem, reason error, now time.Time) DeadLetterMessage {
	msg := DeadLetterMessage{
		Action:    ActionDeadLetter,
		ID:        uuid.NewString(),
		Item:      item,
		Kind:      reasonKind(reason),
		Timestamp: now.UTC(),
	}
	if reason != nil {
		msg.Reason = reason.Error()
	}
	return msg
}

func reasonKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrQueueCeilingExceeded):
		return "retry_ceiling"
	case errors.Is(err, domain.ErrApplication):
		return "rejected"
	default:
		return "unknown"
	}
}

func (r *RabbitMQ) PublishDeadLetter(ctx context.Context, item domain.SyncQueueItem, reason error) error {
	msg := NewDeadLetterMessage(item, reason, time.Now())

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    msg.ID,
			Body:         body,
			Timestamp:    msg.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published dead letter",
		"id", item.ID,
		"operation", item.Operation,
		"kind", msg.Kind,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
