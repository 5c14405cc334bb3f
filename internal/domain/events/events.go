package events

import (
	"time"

	"github.com/shopspring/decimal"

	"mecanica_billing/internal/domain/entities"
)

// Outbound saga event types published on the billing-events topic.
const (
	TypeQuoteReady       = "quote-ready"
	TypeQuoteApproved    = "quote-approved"
	TypeQuoteRejected    = "quote-rejected"
	TypePaymentFailed    = "payment-failed"
	TypePaymentConfirmed = "payment-confirmed"
	TypePaymentReversed  = "payment-reversed"
)

// Event is the outbound envelope. All billing events for one service order
// share the same ordering key (ServiceOrderID) so they are strictly ordered
// relative to each other on the output channel.
type Event struct {
	Type           string          `json:"event_type"`
	ServiceOrderID string          `json:"service_order_id"`
	QuoteID        string          `json:"quote_id,omitempty"`
	PaymentID      string          `json:"payment_id,omitempty"`
	Total          decimal.Decimal `json:"total,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Key returns the partition/ordering key.
func (e Event) Key() string { return e.ServiceOrderID }

// Critical reports whether publication must be acknowledged synchronously
// before the saga step is considered complete. Approval and compensation
// events are critical; quote-ready is routine.
func (e Event) Critical() bool {
	switch e.Type {
	case TypeQuoteApproved, TypeQuoteRejected, TypePaymentFailed, TypePaymentConfirmed, TypePaymentReversed:
		return true
	}
	return false
}

func NewQuoteReady(q entities.Quote) Event {
	return Event{
		Type:           TypeQuoteReady,
		ServiceOrderID: q.ServiceOrderID,
		QuoteID:        q.ID,
		Total:          q.Total,
		Timestamp:      time.Now().UTC(),
	}
}

func NewQuoteApproved(q entities.Quote) Event {
	return Event{
		Type:           TypeQuoteApproved,
		ServiceOrderID: q.ServiceOrderID,
		QuoteID:        q.ID,
		Total:          q.Total,
		Timestamp:      time.Now().UTC(),
	}
}

func NewQuoteRejected(q entities.Quote) Event {
	return Event{
		Type:           TypeQuoteRejected,
		ServiceOrderID: q.ServiceOrderID,
		QuoteID:        q.ID,
		Reason:         q.RejectionReason,
		Timestamp:      time.Now().UTC(),
	}
}

func NewPaymentConfirmed(p entities.Payment) Event {
	return Event{
		Type:           TypePaymentConfirmed,
		ServiceOrderID: p.ServiceOrderID,
		QuoteID:        p.QuoteID,
		PaymentID:      p.ID,
		Total:          p.Amount,
		Timestamp:      time.Now().UTC(),
	}
}

func NewPaymentReversed(p entities.Payment) Event {
	return Event{
		Type:           TypePaymentReversed,
		ServiceOrderID: p.ServiceOrderID,
		QuoteID:        p.QuoteID,
		PaymentID:      p.ID,
		Total:          p.Amount,
		Reason:         p.RefundReason,
		Timestamp:      time.Now().UTC(),
	}
}

func NewPaymentFailed(p entities.Payment, reason string) Event {
	return Event{
		Type:           TypePaymentFailed,
		ServiceOrderID: p.ServiceOrderID,
		QuoteID:        p.QuoteID,
		PaymentID:      p.ID,
		Reason:         reason,
		Timestamp:      time.Now().UTC(),
	}
}
