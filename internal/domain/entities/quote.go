package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteStatus represents the lifecycle of a billing quote.
//
// Domain notes:
//   - The billing-service is the source of truth for quote/payment state.
//   - Approved, Rejected and Cancelled are terminal; every transition must
//     pass CanTransitionTo before the aggregate mutates.

type QuoteStatus string

const (
	QuoteStatusPending   QuoteStatus = "pending"
	QuoteStatusApproved  QuoteStatus = "approved"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusCancelled QuoteStatus = "cancelled"
)

// CanTransitionTo is the full legality table for the quote state machine.
// Anything not listed here is illegal.
func (s QuoteStatus) CanTransitionTo(target QuoteStatus) bool {
	switch s {
	case QuoteStatusPending:
		return target == QuoteStatusApproved || target == QuoteStatusRejected || target == QuoteStatusCancelled
	default:
		return false
	}
}

// IsFinal reports whether no further transition is legal.
func (s QuoteStatus) IsFinal() bool {
	return s == QuoteStatusApproved || s == QuoteStatusRejected || s == QuoteStatusCancelled
}

// ItemKind classifies a quote line item.
type ItemKind string

const (
	ItemKindService   ItemKind = "service"
	ItemKindPart      ItemKind = "part"
	ItemKindDiagnosis ItemKind = "diagnosis"
	ItemKindLabor     ItemKind = "labor"
)

// QuoteItem is an immutable line item. Total is always Quantity*UnitPrice,
// fixed at construction time.
type QuoteItem struct {
	Kind        ItemKind        `json:"kind"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

func NewQuoteItem(kind ItemKind, description string, quantity int, unitPrice decimal.Decimal) (QuoteItem, error) {
	if kind == "" {
		return QuoteItem{}, newValidationError("item.kind", "is required")
	}
	if strings.TrimSpace(description) == "" {
		return QuoteItem{}, newValidationError("item.description", "is required")
	}
	if quantity <= 0 {
		return QuoteItem{}, newValidationError("item.quantity", "must be greater than zero")
	}
	if unitPrice.LessThanOrEqual(decimal.Zero) {
		return QuoteItem{}, newValidationError("item.unit_price", "must be greater than zero")
	}
	return QuoteItem{
		Kind:        kind,
		Description: strings.TrimSpace(description),
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// StatusChange is one append-only history entry. From is empty on the
// creation entry.
type StatusChange struct {
	From  QuoteStatus `json:"from,omitempty"`
	To    QuoteStatus `json:"to"`
	Actor string      `json:"actor"`
	Note  string      `json:"note,omitempty"`
	At    time.Time   `json:"at"`
}

// Quote is the aggregate root for a priced proposal tied to one service
// order. Mutation goes through the state-machine operations only; callers
// must not invoke two operations on the same instance concurrently.
type Quote struct {
	ID              string          `json:"id"`
	ServiceOrderID  string          `json:"service_order_id"`
	Status          QuoteStatus     `json:"status"`
	Items           []QuoteItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Note            string          `json:"note,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	History         []StatusChange  `json:"history"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewQuote creates a pending quote for a service order. The first history
// entry always records creation.
func NewQuote(serviceOrderID, note string, items []QuoteItem) (Quote, error) {
	serviceOrderID = strings.TrimSpace(serviceOrderID)
	if serviceOrderID == "" {
		return Quote{}, newValidationError("service_order_id", "is required")
	}

	now := time.Now().UTC()
	q := Quote{
		ID:             uuid.NewString(),
		ServiceOrderID: serviceOrderID,
		Status:         QuoteStatusPending,
		Items:          append([]QuoteItem(nil), items...),
		Note:           note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	q.recomputeTotal()
	q.appendHistory("", QuoteStatusPending, "system", "quote created")
	return q, nil
}

// AddItem is legal only while the quote is pending; a final status freezes
// the item list.
func (q *Quote) AddItem(item QuoteItem) error {
	if q.Status.IsFinal() {
		return &InvalidTransitionError{Aggregate: "quote", From: string(q.Status), To: string(q.Status)}
	}
	q.Items = append(q.Items, item)
	q.recomputeTotal()
	q.UpdatedAt = time.Now().UTC()
	return nil
}

func (q *Quote) Approve(actor, note string) error {
	if err := q.validateTransition(QuoteStatusApproved); err != nil {
		return err
	}
	prior := q.Status
	now := time.Now().UTC()
	q.Status = QuoteStatusApproved
	q.ApprovedAt = &now
	if note != "" {
		q.Note = note
	}
	q.UpdatedAt = now
	q.appendHistory(prior, QuoteStatusApproved, actor, note)
	return nil
}

func (q *Quote) Reject(actor, reason string) error {
	if err := q.validateTransition(QuoteStatusRejected); err != nil {
		return err
	}
	prior := q.Status
	now := time.Now().UTC()
	q.Status = QuoteStatusRejected
	q.RejectedAt = &now
	q.RejectionReason = reason
	q.UpdatedAt = now
	q.appendHistory(prior, QuoteStatusRejected, actor, reason)
	return nil
}

func (q *Quote) Cancel(actor, reason string) error {
	if err := q.validateTransition(QuoteStatusCancelled); err != nil {
		return err
	}
	prior := q.Status
	q.Status = QuoteStatusCancelled
	q.UpdatedAt = time.Now().UTC()
	q.appendHistory(prior, QuoteStatusCancelled, actor, reason)
	return nil
}

func (q *Quote) IsPending() bool { return q.Status == QuoteStatusPending }

func (q *Quote) validateTransition(target QuoteStatus) error {
	if !q.Status.CanTransitionTo(target) {
		return &InvalidTransitionError{Aggregate: "quote", From: string(q.Status), To: string(target)}
	}
	return nil
}

func (q *Quote) recomputeTotal() {
	total := decimal.Zero
	for _, it := range q.Items {
		total = total.Add(it.Total)
	}
	q.Total = total
}

func (q *Quote) appendHistory(from, to QuoteStatus, actor, note string) {
	q.History = append(q.History, StatusChange{
		From:  from,
		To:    to,
		Actor: actor,
		Note:  note,
		At:    time.Now().UTC(),
	})
}
