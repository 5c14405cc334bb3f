package response

import (
	"time"

	"mecanica_billing/internal/domain/entities"
)

type QuoteItemResponse struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

type StatusChangeResponse struct {
	From  string    `json:"from,omitempty"`
	To    string    `json:"to"`
	Actor string    `json:"actor"`
	Note  string    `json:"note,omitempty"`
	At    time.Time `json:"at"`
}

type QuoteResponse struct {
	ID              string                 `json:"id"`
	ServiceOrderID  string                 `json:"service_order_id"`
	Status          string                 `json:"status"`
	Items           []QuoteItemResponse    `json:"items"`
	Total           string                 `json:"total"`
	Note            string                 `json:"note,omitempty"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
	ApprovedAt      *time.Time             `json:"approved_at,omitempty"`
	RejectedAt      *time.Time             `json:"rejected_at,omitempty"`
	History         []StatusChangeResponse `json:"history"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func FromQuote(q entities.Quote) QuoteResponse {
	items := make([]QuoteItemResponse, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, QuoteItemResponse{
			Kind:        string(it.Kind),
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.String(),
			Total:       it.Total.String(),
		})
	}

	history := make([]StatusChangeResponse, 0, len(q.History))
	for _, h := range q.History {
		history = append(history, StatusChangeResponse{
			From:  string(h.From),
			To:    string(h.To),
			Actor: h.Actor,
			Note:  h.Note,
			At:    h.At,
		})
	}

	return QuoteResponse{
		ID:              q.ID,
		ServiceOrderID:  q.ServiceOrderID,
		Status:          string(q.Status),
		Items:           items,
		Total:           q.Total.String(),
		Note:            q.Note,
		RejectionReason: q.RejectionReason,
		ApprovedAt:      q.ApprovedAt,
		RejectedAt:      q.RejectedAt,
		History:         history,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}
