package interfaces

import (
	"context"

	"mecanica_billing/internal/domain/entities"
)

// IQuoteRepository abstracts DynamoDB persistence for Quote.
//
// Lookups that miss return a zero-value Quote (ID == "") and a nil error;
// the use case layer translates that into its not-found sentinel.

type IQuoteRepository interface {
	Create(ctx context.Context, q entities.Quote) (entities.Quote, error)
	Save(ctx context.Context, q entities.Quote) (entities.Quote, error)
	GetByID(ctx context.Context, id string) (entities.Quote, error)
	GetByServiceOrderID(ctx context.Context, serviceOrderID string) (entities.Quote, error)
	Delete(ctx context.Context, id string) error
}
