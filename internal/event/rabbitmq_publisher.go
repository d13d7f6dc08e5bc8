package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingKeyScheduleGenerated      = "loan.schedule.generated"
	RoutingKeyBenchmarkRateRefreshed = "rate.benchmark.refreshed"
	publisherAppID                   = "amortization-engine"
)

type EventPublisher interface {
	PublishScheduleGenerated(ctx context.Context, event ScheduleGeneratedEvent) error
	PublishBenchmarkRateRefreshed(ctx context.Context, event BenchmarkRateRefreshedEvent) error
}

// RabbitMQEventPublisher publishes JSON events to a durable topic exchange
// over one channel, reopened after the broker closes it.
type RabbitMQEventPublisher struct {
	conn         *amqp.Connection
	exchangeName string
	logger       *slog.Logger

	mu      sync.Mutex
	channel *amqp.Channel
}

func NewRabbitMQEventPublisher(conn *amqp.Connection, exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection cannot be nil")
	}
	if exchangeName == "" {
		return nil, fmt.Errorf("RabbitMQ exchange name cannot be empty")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	p := &RabbitMQEventPublisher{
		conn:         conn,
		exchangeName: exchangeName,
		logger:       logger.With("component", "RabbitMQEventPublisher", "exchange", exchangeName),
	}

	ch, err := p.acquireChannel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	p.logger.Info("Ensured RabbitMQ exchange exists", "type", amqp.ExchangeTopic)

	return p, nil
}

func (p *RabbitMQEventPublisher) PublishScheduleGenerated(ctx context.Context, event ScheduleGeneratedEvent) error {
	return p.publish(ctx, RoutingKeyScheduleGenerated, event.CalculationID, event)
}

func (p *RabbitMQEventPublisher) PublishBenchmarkRateRefreshed(ctx context.Context, event BenchmarkRateRefreshedEvent) error {
	return p.publish(ctx, RoutingKeyBenchmarkRateRefreshed, event.MessageID(), event)
}

// Close releases the publishing channel. The connection is owned by the caller.
func (p *RabbitMQEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.channel.IsClosed() {
		p.channel = nil
		return nil
	}
	err := p.channel.Close()
	p.channel = nil
	return err
}

func (p *RabbitMQEventPublisher) acquireChannel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p.channel = ch
	return ch, nil
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, routingKey, messageID string, payload any) error {
	logCtx := p.logger.With(slog.String("routingKey", routingKey), slog.String("messageId", messageID))

	body, err := json.Marshal(payload)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to marshal event payload to JSON", slog.Any("error", err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ch, err := p.acquireChannel()
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to open RabbitMQ channel", slog.Any("error", err))
		return err
	}

	if err := ch.PublishWithContext(ctx, p.exchangeName, routingKey, false, false, newPublishing(routingKey, messageID, body, time.Now())); err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish message to RabbitMQ", slog.Any("error", err))
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	logCtx.DebugContext(ctx, "Published event", "bodySize", len(body))
	return nil
}

func newPublishing(routingKey, messageID string, body []byte, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Type:         routingKey,
		Timestamp:    now.UTC(),
		AppId:        publisherAppID,
		Body:         body,
	}
}

var _ EventPublisher = (*RabbitMQEventPublisher)(nil)
