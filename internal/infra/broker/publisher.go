// Package broker publishes lifecycle events to RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"textilemart/internal/lifecycle"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// *amqp.Channel が満たす送信側の操作
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPPublisher struct {
	ch       Channel
	exchange string
	timeout  time.Duration
}

// topic exchangeを宣言してからpublisherを返す
func NewAMQPPublisher(ch Channel, exchange string) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, timeout: 5 * time.Second}, nil
}

// routing key はイベント種別（order.created など）
func (p *AMQPPublisher) Publish(ctx context.Context, ev lifecycle.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// RABBITMQ_URL 未設定時はログに出すだけ
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, ev lifecycle.Event) error {
	p.log.InfoContext(ctx, "event",
		"type", ev.Type,
		"orderId", ev.OrderID,
		"deliveryId", ev.DeliveryID,
		"refundId", ev.RefundID,
		"status", ev.Status,
	)
	return nil
}
