package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"mecanica_billing/internal/domain/events"
	"mecanica_billing/internal/usecase/interfaces"
)

// messageWriter is the slice of kafka.Writer the publisher needs; tests
// substitute a fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherConfig tunes delivery resilience. Zero values fall back to the
// defaults below.
type PublisherConfig struct {
	Brokers         []string
	Topic           string
	MaxElapsedRetry time.Duration
	BreakerInterval time.Duration
	BreakerTimeout  time.Duration
}

const (
	defaultPublishMaxElapsed = 30 * time.Second
	defaultBreakerInterval   = 60 * time.Second
	defaultBreakerTimeout    = 15 * time.Second
)

// KafkaEventPublisher publishes billing events keyed by service-order id so
// all events for one order land on one partition, strictly ordered.
//
// Resilience, outermost first: a circuit breaker that opens on a failure
// ratio and short-circuits to a log-the-drop fallback, around exponential
// retry bounded by elapsed time. Serialization failures skip both and fail
// immediately.
type KafkaEventPublisher struct {
	writer     messageWriter
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	metrics    *Metrics
	maxElapsed time.Duration
}

var _ interfaces.IEventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(cfg PublisherConfig, logger *zap.Logger, metrics *Metrics) *KafkaEventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaEventPublisher(cfg, writer, logger, metrics)
}

func newKafkaEventPublisher(cfg PublisherConfig, writer messageWriter, logger *zap.Logger, metrics *Metrics) *KafkaEventPublisher {
	if cfg.MaxElapsedRetry <= 0 {
		cfg.MaxElapsedRetry = defaultPublishMaxElapsed
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = defaultBreakerInterval
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "billing-events-publisher",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("publisher circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &KafkaEventPublisher{
		writer:     writer,
		breaker:    breaker,
		logger:     logger,
		metrics:    metrics,
		maxElapsed: cfg.MaxElapsedRetry,
	}
}

// Publish is fire-and-forget: delivery happens in the background and its
// completion is logged. Only serialization failures are reported to the
// caller.
func (p *KafkaEventPublisher) Publish(ctx context.Context, event events.Event) error {
	msg, err := encode(event)
	if err != nil {
		p.metrics.IncPublishFailures()
		return &PublishError{EventType: event.Type, Err: err}
	}

	go func() {
		// Detached from the request context: the caller is not waiting.
		if err := p.send(context.Background(), event, msg); err != nil {
			p.logger.Error("async publish failed",
				zap.String("event_type", event.Type),
				zap.String("service_order_id", event.ServiceOrderID),
				zap.Error(err))
			return
		}
		p.logger.Info("event published",
			zap.String("event_type", event.Type),
			zap.String("service_order_id", event.ServiceOrderID))
	}()
	return nil
}

// PublishSync blocks until the broker acknowledged the event or the retry
// budget and breaker gave up.
func (p *KafkaEventPublisher) PublishSync(ctx context.Context, event events.Event) error {
	msg, err := encode(event)
	if err != nil {
		p.metrics.IncPublishFailures()
		return &PublishError{EventType: event.Type, Err: err}
	}

	if err := p.send(ctx, event, msg); err != nil {
		return err
	}
	p.logger.Info("critical event published",
		zap.String("event_type", event.Type),
		zap.String("service_order_id", event.ServiceOrderID))
	return nil
}

func (p *KafkaEventPublisher) send(ctx context.Context, event events.Event, msg kafka.Message) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = p.maxElapsed
		return nil, backoff.Retry(func() error {
			return p.writer.WriteMessages(ctx, msg)
		}, backoff.WithContext(bo, ctx))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Fallback: log the drop, no retry storm against a dead broker.
			p.metrics.IncPublisherDropped()
			p.logger.Error("circuit open, event dropped",
				zap.String("event_type", event.Type),
				zap.String("service_order_id", event.ServiceOrderID))
			return &PublishError{EventType: event.Type, Err: err}
		}
		p.metrics.IncPublishFailures()
		return &PublishError{EventType: event.Type, Err: err}
	}
	p.metrics.IncPublished()
	return nil
}

func (p *KafkaEventPublisher) Close() error { return p.writer.Close() }

func encode(event events.Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(event.Type)},
			{Key: "serviceOrderId", Value: []byte(event.ServiceOrderID)},
		},
	}, nil
}
