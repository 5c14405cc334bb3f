package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents one payment attempt's processing state.
//
// The gateway is the system of record for "did the customer actually pay";
// reconciliation drives these transitions from the gateway's view.

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusConfirmed  PaymentStatus = "confirmed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// CanTransitionTo is the full legality table for the payment state machine.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return target == PaymentStatusProcessing || target == PaymentStatusConfirmed || target == PaymentStatusCancelled
	case PaymentStatusProcessing:
		return target == PaymentStatusConfirmed || target == PaymentStatusCancelled || target == PaymentStatusRefunded
	case PaymentStatusConfirmed:
		return target == PaymentStatusRefunded
	default:
		return false
	}
}

// IsTerminal reports whether the payment can never change again. Confirmed
// is not terminal: a confirmed payment may still be refunded.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusRefunded || s == PaymentStatusCancelled
}

// PaymentMethod enumerates the accepted payment methods.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodPix          PaymentMethod = "pix"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodBoleto       PaymentMethod = "boleto"
)

// Payment is the aggregate root for one payment attempt against one quote.
//
// GatewayPaymentID stays empty until the gateway assigns one; exactly one
// checkout session exists per payment.
type Payment struct {
	ID                string          `json:"id"`
	QuoteID           string          `json:"quote_id"`
	ServiceOrderID    string          `json:"service_order_id"`
	Status            PaymentStatus   `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Method            PaymentMethod   `json:"method"`
	Receipt           string          `json:"receipt,omitempty"`
	CheckoutSessionID string          `json:"checkout_session_id,omitempty"`
	CheckoutLink      string          `json:"checkout_link,omitempty"`
	GatewayPaymentID  string          `json:"gateway_payment_id,omitempty"`
	ConfirmedAt       *time.Time      `json:"confirmed_at,omitempty"`
	RefundedAt        *time.Time      `json:"refunded_at,omitempty"`
	RefundReason      string          `json:"refund_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func NewPayment(quoteID, serviceOrderID string, amount decimal.Decimal, method PaymentMethod) (Payment, error) {
	quoteID = strings.TrimSpace(quoteID)
	serviceOrderID = strings.TrimSpace(serviceOrderID)
	if quoteID == "" {
		return Payment{}, newValidationError("quote_id", "is required")
	}
	if serviceOrderID == "" {
		return Payment{}, newValidationError("service_order_id", "is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return Payment{}, newValidationError("amount", "must be greater than zero")
	}
	if method == "" {
		return Payment{}, newValidationError("method", "is required")
	}

	now := time.Now().UTC()
	return Payment{
		ID:             uuid.NewString(),
		QuoteID:        quoteID,
		ServiceOrderID: serviceOrderID,
		Status:         PaymentStatusPending,
		Amount:         amount,
		Method:         method,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// MarkProcessing records the gateway-assigned payment id. Legal only while
// pending.
func (p *Payment) MarkProcessing(gatewayPaymentID string) error {
	if p.Status != PaymentStatusPending {
		return &InvalidTransitionError{Aggregate: "payment", From: string(p.Status), To: string(PaymentStatusProcessing)}
	}
	p.Status = PaymentStatusProcessing
	p.GatewayPaymentID = gatewayPaymentID
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Confirm is idempotent: confirming an already-confirmed payment is a no-op.
func (p *Payment) Confirm() error {
	if p.Status == PaymentStatusConfirmed {
		return nil
	}
	if err := p.validateTransition(PaymentStatusConfirmed); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.Status = PaymentStatusConfirmed
	p.ConfirmedAt = &now
	p.UpdatedAt = now
	return nil
}

// Refund is idempotent when already refunded.
func (p *Payment) Refund(reason string) error {
	if p.Status == PaymentStatusRefunded {
		return nil
	}
	if err := p.validateTransition(PaymentStatusRefunded); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.Status = PaymentStatusRefunded
	p.RefundedAt = &now
	p.RefundReason = reason
	p.UpdatedAt = now
	return nil
}

// Cancel is idempotent when already cancelled.
func (p *Payment) Cancel() error {
	if p.Status == PaymentStatusCancelled {
		return nil
	}
	if err := p.validateTransition(PaymentStatusCancelled); err != nil {
		return err
	}
	p.Status = PaymentStatusCancelled
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) IsConfirmed() bool { return p.Status == PaymentStatusConfirmed }

func (p *Payment) validateTransition(target PaymentStatus) error {
	if !p.Status.CanTransitionTo(target) {
		return &InvalidTransitionError{Aggregate: "payment", From: string(p.Status), To: string(target)}
	}
	return nil
}
