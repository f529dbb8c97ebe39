// Package worker consumes lifecycle events and emails the buyer.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"textilemart/internal/domain/model"
	"textilemart/internal/lifecycle"
	repo "textilemart/internal/repository"
	"textilemart/internal/usecase"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

const idempotencyTTL = 24 * time.Hour

// 通知対象のrouting key
var notifyKeys = []string{
	lifecycle.EventOrderCreated,
	lifecycle.EventOrderStatusChanged,
	lifecycle.EventDeliveryStatusChanged,
	lifecycle.EventRefundStatusChanged,
}

// *amqp.Channel が満たす受信側の操作
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// 処理済みメッセージの記録（redis）
type Deduper interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type NotificationWorker struct {
	channel  Channel
	queue    string
	users    repo.UserRepository
	mailer   usecase.Mailer
	dedup    Deduper
	log      *slog.Logger
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

// dedup はnilでもよい（重複配送はそのまま送る）
func NewNotificationWorker(ch Channel, queue string, users repo.UserRepository, mailer usecase.Mailer, dedup Deduper, log *slog.Logger) *NotificationWorker {
	return &NotificationWorker{
		channel:  ch,
		queue:    queue,
		users:    users,
		mailer:   mailer,
		dedup:    dedup,
		log:      log,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// exchange/キュー/DLX/DLQを宣言してbindする
func Setup(ch Channel, exchange, queue string) error {
	dlx := queue + ".dlx"
	dlq := queue + ".dlq"

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlq, queue, dlx, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range notifyKeys {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(w.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		defer close(w.finished)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.handle(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("notification worker started", "queue", w.queue)
	return nil
}

// 処理中のメッセージが終わるまで待つ。2回目以降は何もしない
func (w *NotificationWorker) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	<-w.finished
}

func (w *NotificationWorker) handle(ctx context.Context, msg amqp.Delivery) {
	var ev lifecycle.Event
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		w.log.Error("unmarshal event", "error", err)
		_ = msg.Nack(false, false)
		return
	}
	log := w.log.With("type", ev.Type, "orderId", ev.OrderID, "messageId", msg.MessageId)

	key := "notified:" + msg.MessageId
	if w.dedup != nil && msg.MessageId != "" {
		n, err := w.dedup.Exists(ctx, key).Result()
		if err != nil {
			log.Error("check idempotency key", "error", err)
			_ = msg.Nack(false, true)
			return
		}
		if n > 0 {
			log.Info("event already notified, skipping")
			_ = msg.Ack(false)
			return
		}
	}

	if err := w.notify(ctx, ev); err != nil {
		log.Error("notify failed", "error", err)
		_ = msg.Nack(false, false) // → DLQ
		return
	}

	if w.dedup != nil && msg.MessageId != "" {
		if err := w.dedup.Set(ctx, key, "1", idempotencyTTL).Err(); err != nil {
			log.Error("set idempotency key", "error", err)
		}
	}
	_ = msg.Ack(false)
}

func (w *NotificationWorker) notify(ctx context.Context, ev lifecycle.Event) error {
	if ev.UserID <= 0 {
		return nil
	}
	subject, body, ok := compose(ev)
	if !ok {
		return nil
	}
	user, err := w.users.FindByID(ctx, ev.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		// 退会済み
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	return w.mailer.Send(ctx, user.Email, subject, greeting(user)+body)
}

func greeting(u *model.User) string {
	return "Hello " + u.Name + ",\n\n"
}

// イベントからメール件名と本文を作る。対象外は ok=false
func compose(ev lifecycle.Event) (subject string, body string, ok bool) {
	switch ev.Type {
	case lifecycle.EventOrderCreated:
		return fmt.Sprintf("Order #%d received", ev.OrderID),
			fmt.Sprintf("We received your order #%d. Tracking number: %s\n", ev.OrderID, ev.Tracking), true
	case lifecycle.EventOrderStatusChanged:
		return fmt.Sprintf("Order #%d is %s", ev.OrderID, ev.Status),
			fmt.Sprintf("Your order #%d is now %s.\n", ev.OrderID, ev.Status), true
	case lifecycle.EventDeliveryStatusChanged:
		if ev.Status == "Removed" {
			return "", "", false
		}
		return fmt.Sprintf("Delivery update for order #%d", ev.OrderID),
			fmt.Sprintf("The delivery for your order #%d is now %s.\n", ev.OrderID, ev.Status), true
	case lifecycle.EventRefundStatusChanged:
		return fmt.Sprintf("Refund for order #%d %s", ev.OrderID, ev.Status),
			fmt.Sprintf("Your refund request for order #%d was %s.\n", ev.OrderID, ev.Status), true
	}
	return "", "", false
}
