package response

import (
	"time"

	"mecanica_billing/internal/domain/entities"
)

type PaymentResponse struct {
	ID                string     `json:"id"`
	QuoteID           string     `json:"quote_id"`
	ServiceOrderID    string     `json:"service_order_id"`
	Status            string     `json:"status"`
	Amount            string     `json:"amount"`
	Method            string     `json:"method"`
	Receipt           string     `json:"receipt,omitempty"`
	CheckoutSessionID string     `json:"checkout_session_id,omitempty"`
	CheckoutLink      string     `json:"checkout_link,omitempty"`
	GatewayPaymentID  string     `json:"gateway_payment_id,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`
	RefundReason      string     `json:"refund_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func FromPayment(p entities.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		QuoteID:           p.QuoteID,
		ServiceOrderID:    p.ServiceOrderID,
		Status:            string(p.Status),
		Amount:            p.Amount.String(),
		Method:            string(p.Method),
		Receipt:           p.Receipt,
		CheckoutSessionID: p.CheckoutSessionID,
		CheckoutLink:      p.CheckoutLink,
		GatewayPaymentID:  p.GatewayPaymentID,
		ConfirmedAt:       p.ConfirmedAt,
		RefundedAt:        p.RefundedAt,
		RefundReason:      p.RefundReason,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func FromPayments(payments []entities.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, FromPayment(p))
	}
	return out
}
