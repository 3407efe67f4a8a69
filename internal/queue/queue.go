package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/config"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

const (
	NotificationQueueName = "notifications"
	ExchangeName          = "watchswap"
)

// Handler processes one notification. A returned error schedules a retry.
type Handler func(ctx context.Context, n *models.Notification) error

// Queue is the notification outbox on RabbitMQ
type Queue struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	maxAttempts int
	logger      *logging.Logger
}

// New connects to RabbitMQ and declares the outbox topology
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &Queue{
		conn:        conn,
		channel:     channel,
		maxAttempts: cfg.MaxDeliveryAttempts,
		logger:      logger.WithComponent("queue"),
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = 5
	}

	if err := q.declare(); err != nil {
		q.Close()
		return nil, err
	}
	if err := q.SetupDeadLetterQueue(); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) declare() error {
	err := q.channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		NotificationQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = q.channel.QueueBind(
		NotificationQueueName,
		NotificationQueueName,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// Publish queues a notification for asynchronous delivery
func (q *Queue) Publish(ctx context.Context, n *models.Notification) error {
	return q.publish(ctx, ExchangeName, NotificationQueueName, n, amqp.Table{"x-attempt": 0}, "")
}

func (q *Queue) publish(ctx context.Context, exchange, key string, n *models.Notification, headers amqp.Table, expiration string) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    n.ID,
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      headers,
			Expiration:   expiration,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Consume delivers queued notifications to handler until ctx is done.
// Failed deliveries are retried with backoff and dead-lettered after the
// configured number of attempts.
func (q *Queue) Consume(ctx context.Context, prefetch int, handler Handler) error {
	if err := q.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		NotificationQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				q.handle(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (q *Queue) handle(ctx context.Context, msg amqp.Delivery, handler Handler) {
	var n models.Notification
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		q.logger.WithError(err).Warn("Dropping malformed notification")
		msg.Nack(false, false)
		return
	}

	err := handler(ctx, &n)
	if err == nil {
		msg.Ack(false)
		return
	}

	attempt := attemptCount(msg.Headers)
	if rerr := q.PublishToRetryQueue(ctx, &n, attempt, err.Error()); rerr != nil {
		q.logger.WithError(rerr).Error("Failed to reschedule notification")
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

// Depth returns the number of messages waiting in the outbox
func (q *Queue) Depth() (int, error) {
	info, err := q.channel.QueueInspect(NotificationQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}
	return info.Messages, nil
}

func attemptCount(headers amqp.Table) int {
	switch v := headers["x-attempt"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
