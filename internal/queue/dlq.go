package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

const (
	DeadLetterQueueName    = "notifications_dlq"
	DeadLetterExchangeName = "watchswap_dlq"
	RetryQueueName         = "notifications_retry"
)

// SetupDeadLetterQueue declares the retry and dead letter queues
func (q *Queue) SetupDeadLetterQueue() error {
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	err = q.channel.QueueBind(
		DeadLetterQueueName,
		DeadLetterQueueName,
		DeadLetterExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// Expired retry messages flow back into the outbox
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": NotificationQueueName,
	}

	_, err = q.channel.QueueDeclare(
		RetryQueueName,
		true,
		false,
		false,
		false,
		retryArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	return nil
}

// PublishToRetryQueue schedules another delivery attempt, or dead-letters
// the notification once the attempt budget is spent
func (q *Queue) PublishToRetryQueue(ctx context.Context, n *models.Notification, attempt int, reason string) error {
	if attempt+1 >= q.maxAttempts {
		return q.PublishToDeadLetterQueue(ctx, n, reason)
	}

	delay := calculateBackoffDelay(attempt)
	headers := amqp.Table{
		"x-attempt":      attempt + 1,
		"x-last-failure": reason,
	}

	if err := q.publish(ctx, "", RetryQueueName, n, headers, fmt.Sprintf("%d", delay.Milliseconds())); err != nil {
		return fmt.Errorf("failed to publish to retry queue: %w", err)
	}

	q.logger.WithUserID(n.UserID).WithFields(map[string]interface{}{
		"notification_id": n.ID,
		"kind":            n.Kind,
		"attempt":         attempt + 1,
		"delay":           delay.String(),
	}).Warn("Notification queued for retry")
	return nil
}

// PublishToDeadLetterQueue parks a notification that could not be delivered
func (q *Queue) PublishToDeadLetterQueue(ctx context.Context, n *models.Notification, reason string) error {
	headers := amqp.Table{
		"x-failure-reason": reason,
		"x-failed-at":      time.Now().Format(time.RFC3339),
	}

	if err := q.publish(ctx, DeadLetterExchangeName, DeadLetterQueueName, n, headers, ""); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	q.logger.WithUserID(n.UserID).WithField("notification_id", n.ID).
		WithField("reason", reason).Error("Notification moved to dead letter queue")
	return nil
}

// ConsumeDLQ hands dead-lettered notifications to handler for inspection
func (q *Queue) ConsumeDLQ(ctx context.Context, handler func(*models.Notification, string) error) error {
	msgs, err := q.channel.Consume(
		DeadLetterQueueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register DLQ consumer: %w", err)
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

				var n models.Notification
				if err := json.Unmarshal(msg.Body, &n); err != nil {
					msg.Nack(false, false)
					continue
				}

				reason, _ := msg.Headers["x-failure-reason"].(string)
				if err := handler(&n, reason); err != nil {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// RetryFromDLQ puts a dead-lettered notification back in the outbox
func (q *Queue) RetryFromDLQ(ctx context.Context, n *models.Notification) error {
	return q.Publish(ctx, n)
}

// calculateBackoffDelay doubles from 30 seconds, capped at 15 minutes
func calculateBackoffDelay(attempt int) time.Duration {
	if attempt > 10 {
		attempt = 10
	}
	delay := 30 * time.Second * (1 << attempt)
	if delay > 15*time.Minute {
		delay = 15 * time.Minute
	}
	return delay
}

// GetDLQDepth returns the number of messages in the dead letter queue
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}
	return info.Messages, nil
}
