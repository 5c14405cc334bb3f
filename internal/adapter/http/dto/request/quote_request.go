package request

import (
	"strings"

	"mecanica_billing/internal/domain/entities"

	"github.com/shopspring/decimal"
)

type QuoteItemRequest struct {
	Kind        string          `json:"kind" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Quantity    int             `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
}

func (r QuoteItemRequest) ToItem() (entities.QuoteItem, error) {
	return entities.NewQuoteItem(entities.ItemKind(r.Kind), r.Description, r.Quantity, r.UnitPrice)
}

type QuoteCreateRequest struct {
	ServiceOrderID string             `json:"service_order_id" binding:"required"`
	Note           string             `json:"note"`
	Items          []QuoteItemRequest `json:"items"`
}

func (r QuoteCreateRequest) ResolveServiceOrderID() string {
	return strings.TrimSpace(r.ServiceOrderID)
}

func (r QuoteCreateRequest) ToItems() ([]entities.QuoteItem, error) {
	items := make([]entities.QuoteItem, 0, len(r.Items))
	for _, it := range r.Items {
		item, err := it.ToItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// QuoteDecisionRequest drives the approve/reject/cancel endpoints. Actor
// defaults to "customer" when absent; Note carries the rejection or
// cancellation reason.
type QuoteDecisionRequest struct {
	ServiceOrderID string `json:"service_order_id" binding:"required"`
	Actor          string `json:"actor"`
	Note           string `json:"note"`
}

func (r QuoteDecisionRequest) ResolveServiceOrderID() string {
	return strings.TrimSpace(r.ServiceOrderID)
}

func (r QuoteDecisionRequest) ResolveActor() string {
	if v := strings.TrimSpace(r.Actor); v != "" {
		return v
	}
	return "customer"
}
