package interfaces

import (
	"context"

	"mecanica_billing/internal/domain/entities"
)

// IPaymentRepository abstracts DynamoDB persistence for Payment.

type IPaymentRepository interface {
	Create(ctx context.Context, p entities.Payment) (entities.Payment, error)
	Save(ctx context.Context, p entities.Payment) (entities.Payment, error)
	GetByID(ctx context.Context, id string) (entities.Payment, error)
	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (entities.Payment, error)
	ListByQuoteID(ctx context.Context, quoteID string) ([]entities.Payment, error)
}
