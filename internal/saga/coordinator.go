package saga

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mecanica_billing/internal/domain/entities"
	"mecanica_billing/internal/domain/events"
	"mecanica_billing/internal/infrastructure/messaging"
	"mecanica_billing/internal/usecase"
)

// Topic names for the inbound saga channels.
const (
	TopicOrderEvents     = "order-events"
	TopicExecutionEvents = "execution-events"
)

// Coordinator maps inbound saga events to quote operations. Each handler
// mutates at most one aggregate; outbound events are emitted by the use
// cases themselves.
//
// Compensations are best-effort: a missing or already-terminal quote is
// logged and acknowledged, never retried — the trigger event's own delivery
// is the consumer layer's responsibility.
type Coordinator struct {
	quotes usecase.IQuoteUseCase
	logger *zap.Logger
}

func NewCoordinator(quotes usecase.IQuoteUseCase, logger *zap.Logger) *Coordinator {
	return &Coordinator{quotes: quotes, logger: logger}
}

// OrderEventHandlers returns the dispatch table for the order-events topic.
func (c *Coordinator) OrderEventHandlers() map[string]messaging.HandlerFunc {
	return map[string]messaging.HandlerFunc{
		events.TypeOrderCreated:   c.handleOrderCreated,
		events.TypeOrderCancelled: c.handleOrderCancelled,
	}
}

// ExecutionEventHandlers returns the dispatch table for the
// execution-events topic.
func (c *Coordinator) ExecutionEventHandlers() map[string]messaging.HandlerFunc {
	return map[string]messaging.HandlerFunc{
		events.TypeDiagnosisCompleted: c.handleDiagnosisCompleted,
		events.TypeExecutionFailed:    c.handleExecutionFailed,
	}
}

// handleOrderCreated starts the billing leg of the saga with an empty
// pending quote. Redelivery of order-created for an order that already has
// a live quote is a no-op.
func (c *Coordinator) handleOrderCreated(ctx context.Context, msg messaging.InboundMessage) error {
	var payload events.OrderCreated
	if err := decode(msg, &payload); err != nil {
		return err
	}

	_, err := c.quotes.CreateQuote(ctx, payload.ServiceOrderID, payload.Description, nil)
	if errors.Is(err, usecase.ErrQuoteAlreadyExists) {
		c.logger.Info("duplicate order-created ignored",
			zap.String("service_order_id", payload.ServiceOrderID))
		return nil
	}
	if err != nil {
		var ve *entities.ValidationError
		if errors.As(err, &ve) || errors.Is(err, usecase.ErrInvalidServiceOrderID) {
			return messaging.NewPermanentDeliveryError(msg.Type, err)
		}
		return err
	}

	c.logger.Info("quote created for order",
		zap.String("service_order_id", payload.ServiceOrderID))
	return nil
}

// handleOrderCancelled is the compensation for upstream cancellation.
func (c *Coordinator) handleOrderCancelled(ctx context.Context, msg messaging.InboundMessage) error {
	var payload events.OrderCancelled
	if err := decode(msg, &payload); err != nil {
		return err
	}

	reason := payload.Reason
	if reason == "" {
		reason = "service order cancelled"
	}
	c.compensateCancel(ctx, payload.ServiceOrderID, reason)
	return nil
}

// handleExecutionFailed cancels the quote unless the failure requires
// rework, in which case the order keeps its quote and will be retried
// upstream.
func (c *Coordinator) handleExecutionFailed(ctx context.Context, msg messaging.InboundMessage) error {
	var payload events.ExecutionFailed
	if err := decode(msg, &payload); err != nil {
		return err
	}

	if payload.ReworkRequired {
		c.logger.Info("execution failed with rework, quote kept",
			zap.String("service_order_id", payload.ServiceOrderID))
		return nil
	}

	reason := payload.Reason
	if reason == "" {
		reason = "execution failed"
	}
	c.compensateCancel(ctx, payload.ServiceOrderID, reason)
	return nil
}

// handleDiagnosisCompleted reprices the pending quote from the diagnosis.
func (c *Coordinator) handleDiagnosisCompleted(ctx context.Context, msg messaging.InboundMessage) error {
	var payload events.DiagnosisCompleted
	if err := decode(msg, &payload); err != nil {
		return err
	}

	value, err := decimal.NewFromString(payload.EstimatedValue)
	if err != nil {
		return messaging.NewPermanentDeliveryError(msg.Type, err)
	}

	_, err = c.quotes.ApplyDiagnosis(ctx, payload.ServiceOrderID, payload.Diagnosis, value)
	if errors.Is(err, usecase.ErrQuoteNotFound) {
		c.logger.Warn("diagnosis for unknown quote ignored",
			zap.String("service_order_id", payload.ServiceOrderID))
		return nil
	}
	return err
}

// compensateCancel cancels the quote for an order if one exists and is
// still cancellable. Anything else is logged as a warning: the saga may
// race with upstream cleanup or the quote may already be terminal.
func (c *Coordinator) compensateCancel(ctx context.Context, serviceOrderID, reason string) {
	_, err := c.quotes.CancelByServiceOrderID(ctx, serviceOrderID, "saga", reason)
	if err == nil {
		c.logger.Info("compensation applied, quote cancelled",
			zap.String("service_order_id", serviceOrderID),
			zap.String("reason", reason))
		return
	}

	var ite *entities.InvalidTransitionError
	switch {
	case errors.Is(err, usecase.ErrQuoteNotFound):
		c.logger.Warn("compensation target missing",
			zap.String("service_order_id", serviceOrderID))
	case errors.As(err, &ite):
		c.logger.Warn("compensation skipped, quote already terminal",
			zap.String("service_order_id", serviceOrderID),
			zap.String("status", ite.From))
	default:
		c.logger.Error("compensation failed",
			zap.String("service_order_id", serviceOrderID),
			zap.Error(err))
	}
}

func decode(msg messaging.InboundMessage, v interface{}) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return messaging.NewPermanentDeliveryError(msg.Type, err)
	}
	return nil
}
