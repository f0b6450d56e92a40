package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storyteller-bot/internal/metrics"
	"storyteller-bot/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventTypeStoryGenerated - значение заголовка event_type.
const EventTypeStoryGenerated = "story.generated"

// Notifier публикует события о выданных историях.
type Notifier interface {
	StoryGenerated(ctx context.Context, event models.StoryGeneratedEvent) error
}

// Channel - часть *amqp.Channel, которой пользуется notifier.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var (
	_ Notifier = (*rabbitMQNotifier)(nil)
	_ Notifier = NoopNotifier{}
	_ Channel  = (*amqp.Channel)(nil)
)

type rabbitMQNotifier struct {
	channel   Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQNotifier объявляет durable-очередь и возвращает notifier.
// Канал открывается и закрывается вызывающей стороной.
func NewRabbitMQNotifier(ch Channel, queueName string, logger *zap.Logger) (Notifier, error) {
	_, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось объявить очередь событий '%s': %w", queueName, err)
	}
	logger = logger.Named("RabbitMQNotifier")
	logger.Info("Events queue declared", zap.String("queue", queueName))
	return &rabbitMQNotifier{channel: ch, queueName: queueName, logger: logger}, nil
}

func (n *rabbitMQNotifier) StoryGenerated(ctx context.Context, event models.StoryGeneratedEvent) error {
	log := n.logger.With(zap.String("eventID", event.EventID), zap.Int64("userID", event.UserID))
	body, err := json.Marshal(event)
	if err != nil {
		log.Error("Failed to marshal event", zap.Error(err))
		return fmt.Errorf("ошибка сериализации события %s: %w", event.EventID, err)
	}

	err = n.channel.PublishWithContext(ctx,
		"",
		n.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        "storyteller-bot",
			MessageId:    event.EventID,
			Type:         EventTypeStoryGenerated,
			Headers:      amqp.Table{"event_type": EventTypeStoryGenerated},
		},
	)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		log.Error("Failed to publish event", zap.Error(err))
		return fmt.Errorf("ошибка публикации события %s: %w", event.EventID, err)
	}
	metrics.EventsPublished.WithLabelValues("success").Inc()
	log.Debug("Event published", zap.String("queue", n.queueName))
	return nil
}

// NoopNotifier используется, когда RABBITMQ_URL не задан.
type NoopNotifier struct{}

func (NoopNotifier) StoryGenerated(context.Context, models.StoryGeneratedEvent) error { return nil }

// Dial подключается к RabbitMQ с несколькими попытками.
func Dial(ctx context.Context, url string, attempts int, delay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logger.Warn("Не удалось подключиться к RabbitMQ",
			zap.Int("attempt", i),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("rabbitmq unavailable after %d attempts: %w", attempts, lastErr)
}
