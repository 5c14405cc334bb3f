package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// InboundMessage is the envelope handed to saga handlers.
type InboundMessage struct {
	Type      string
	Key       string
	Payload   []byte
	Topic     string
	Partition int
	Offset    int64
}

// HandlerFunc processes one inbound event. Returning a permanent
// DeliveryError skips the retry budget and dead-letters immediately.
type HandlerFunc func(ctx context.Context, msg InboundMessage) error

// messageFetcher is the slice of kafka.Reader the consumer needs; tests
// substitute a fake.
type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig tunes one topic's consumer loop.
type ConsumerConfig struct {
	Brokers         []string
	Topic           string
	GroupID         string
	MaxElapsedRetry time.Duration
}

const defaultConsumeMaxElapsed = 30 * time.Second

// KafkaEventConsumer consumes one topic with manual commits: a message is
// acknowledged only after its handler succeeded or it was dead-lettered
// (at-least-once, never auto-ack-before-processing).
//
// The loop is strictly serial, so ordering within a partition — and
// therefore within one service-order key — is preserved. Concurrency comes
// from running one consumer per topic and from the group's partition
// assignment across instances.
type KafkaEventConsumer struct {
	reader     messageFetcher
	dlq        messageWriter
	handlers   map[string]HandlerFunc
	logger     *zap.Logger
	metrics    *Metrics
	topic      string
	maxElapsed time.Duration
}

func NewKafkaEventConsumer(cfg ConsumerConfig, handlers map[string]HandlerFunc, logger *zap.Logger, metrics *Metrics) *KafkaEventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic + ".dlq",
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaEventConsumer(cfg, reader, dlq, handlers, logger, metrics)
}

func newKafkaEventConsumer(cfg ConsumerConfig, reader messageFetcher, dlq messageWriter, handlers map[string]HandlerFunc, logger *zap.Logger, metrics *Metrics) *KafkaEventConsumer {
	if cfg.MaxElapsedRetry <= 0 {
		cfg.MaxElapsedRetry = defaultConsumeMaxElapsed
	}
	return &KafkaEventConsumer{
		reader:     reader,
		dlq:        dlq,
		handlers:   handlers,
		logger:     logger,
		metrics:    metrics,
		topic:      cfg.Topic,
		maxElapsed: cfg.MaxElapsedRetry,
	}
}

// Run blocks until ctx is cancelled or the reader fails fatally.
func (c *KafkaEventConsumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started", zap.String("topic", c.topic))
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		// Once processing starts it runs to success, exhaustion, or
		// dead-letter before the offset is committed.
		c.process(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("commit failed, message will be redelivered",
				zap.String("topic", m.Topic),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
	}
}

func (c *KafkaEventConsumer) process(ctx context.Context, m kafka.Message) {
	eventType := resolveEventType(m)
	c.metrics.IncConsumed()

	handler, ok := c.handlers[eventType]
	if !ok {
		// Unknown types are acknowledged and skipped; redelivering them
		// would never succeed.
		c.metrics.IncSkipped()
		c.logger.Warn("unknown event type skipped",
			zap.String("topic", m.Topic),
			zap.String("event_type", eventType),
			zap.Int64("offset", m.Offset))
		return
	}

	msg := InboundMessage{
		Type:      eventType,
		Key:       string(m.Key),
		Payload:   m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
	}

	operation := func() error {
		err := handler(ctx, msg)
		var de *DeliveryError
		if errors.As(err, &de) && de.Permanent {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		c.deadLetter(ctx, m, eventType, err)
	}
}

// deadLetter quarantines the original payload on <topic>.dlq together with
// its source coordinates and the final error.
func (c *KafkaEventConsumer) deadLetter(ctx context.Context, m kafka.Message, eventType string, cause error) {
	headers := append([]kafka.Header(nil), m.Headers...)
	headers = append(headers,
		kafka.Header{Key: "sourceTopic", Value: []byte(m.Topic)},
		kafka.Header{Key: "sourcePartition", Value: []byte(strconv.Itoa(m.Partition))},
		kafka.Header{Key: "sourceOffset", Value: []byte(strconv.FormatInt(m.Offset, 10))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)

	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
	})
	if err != nil {
		c.logger.Error("dead-letter write failed",
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}

	c.metrics.IncDeadLettered()
	c.logger.Error("message dead-lettered",
		zap.String("topic", m.Topic),
		zap.String("event_type", eventType),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.Error(cause))
}

func (c *KafkaEventConsumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return err
	}
	return c.dlq.Close()
}

// resolveEventType prefers the eventType header and falls back to the
// payload's event_type field.
func resolveEventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "eventType" && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	var probe struct {
		Type string `json:"event_type"`
	}
	if err := json.Unmarshal(m.Value, &probe); err == nil && probe.Type != "" {
		return probe.Type
	}
	return "unknown"
}
