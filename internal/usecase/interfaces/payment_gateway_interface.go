package interfaces

import (
	"context"

	"github.com/shopspring/decimal"
)

// CheckoutSession is the gateway-hosted checkout the customer pays through.
type CheckoutSession struct {
	SessionID    string
	CheckoutLink string
}

// GatewayPayment is the gateway's view of one payment.
type GatewayPayment struct {
	GatewayPaymentID string
	Status           string
	StatusDetail     string
}

// IPaymentGateway abstracts the external payment provider (Mercado Pago).
//
// GetPaymentByExternalRef returns found=false when the gateway has no
// payment for the reference; "customer hasn't paid yet" is an expected
// outcome, not an error.
type IPaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, description string, amount decimal.Decimal, payerEmail, externalRef string) (CheckoutSession, error)
	GetPaymentByExternalRef(ctx context.Context, externalRef string) (GatewayPayment, bool, error)
	GetPaymentByID(ctx context.Context, gatewayPaymentID string) (GatewayPayment, error)
}
