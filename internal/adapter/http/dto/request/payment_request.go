package request

import "strings"

type PaymentRegisterRequest struct {
	QuoteID    string `json:"quote_id" binding:"required"`
	PayerEmail string `json:"payer_email"`
	Method     string `json:"method" binding:"required"`
}

type PaymentConfirmRequest struct {
	Receipt string `json:"receipt"`
}

type PaymentRefundRequest struct {
	Reason string `json:"reason"`
}

// WebhookNotification is the Mercado Pago webhook body. The gateway also
// sends the payment id as the data.id query parameter; ResolvePaymentID
// prefers the body and falls back to the query value.
type WebhookNotification struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (n WebhookNotification) ResolvePaymentID(queryDataID string) string {
	if v := strings.TrimSpace(n.Data.ID); v != "" {
		return v
	}
	return strings.TrimSpace(queryDataID)
}

// ResolveType prefers the body's type and falls back to the type query
// parameter used by the query-style notification flavor.
func (n WebhookNotification) ResolveType(queryType string) string {
	if v := strings.TrimSpace(n.Type); v != "" {
		return v
	}
	return strings.TrimSpace(queryType)
}
