package usecase

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"mecanica_billing/internal/domain/entities"
	"mecanica_billing/internal/domain/events"
	"mecanica_billing/internal/usecase/interfaces"
)

var (
	ErrQuoteNotFound         = errors.New("quote not found")
	ErrQuoteAlreadyExists    = errors.New("quote already exists for this service order")
	ErrInvalidServiceOrderID = errors.New("invalid service_order_id")
	ErrInvalidQuoteID        = errors.New("invalid quote id")
)

// IQuoteUseCase exposes the quote side of the billing saga.
//
// Approve/Reject are the customer's direct command path; their events are
// published synchronously so the caller knows the saga step was durably
// emitted. CancelByServiceOrderID is the compensation entry point used by
// the saga coordinator.

type IQuoteUseCase interface {
	CreateQuote(ctx context.Context, serviceOrderID, note string, items []entities.QuoteItem) (entities.Quote, error)
	ApproveByServiceOrderID(ctx context.Context, serviceOrderID, actor, note string) (entities.Quote, error)
	RejectByServiceOrderID(ctx context.Context, serviceOrderID, actor, reason string) (entities.Quote, error)
	CancelByServiceOrderID(ctx context.Context, serviceOrderID, actor, reason string) (entities.Quote, error)
	AddItem(ctx context.Context, quoteID string, item entities.QuoteItem) (entities.Quote, error)
	ApplyDiagnosis(ctx context.Context, serviceOrderID, diagnosis string, estimatedValue decimal.Decimal) (entities.Quote, error)
	GetByID(ctx context.Context, id string) (entities.Quote, error)
	GetByServiceOrderID(ctx context.Context, serviceOrderID string) (entities.Quote, error)
	Delete(ctx context.Context, id string) error
}

type QuoteUseCase struct {
	repo      interfaces.IQuoteRepository
	publisher interfaces.IEventPublisher
}

var _ IQuoteUseCase = (*QuoteUseCase)(nil)

func NewQuoteUseCase(repo interfaces.IQuoteRepository, publisher interfaces.IEventPublisher) *QuoteUseCase {
	return &QuoteUseCase{repo: repo, publisher: publisher}
}

// CreateQuote creates a pending quote for a service order. At most one
// non-cancelled quote may exist per service order; a duplicate request
// returns ErrQuoteAlreadyExists so event handlers can treat replays as
// no-ops.
func (u *QuoteUseCase) CreateQuote(ctx context.Context, serviceOrderID, note string, items []entities.QuoteItem) (entities.Quote, error) {
	serviceOrderID = strings.TrimSpace(serviceOrderID)
	if serviceOrderID == "" {
		return entities.Quote{}, ErrInvalidServiceOrderID
	}

	if existing, err := u.repo.GetByServiceOrderID(ctx, serviceOrderID); err != nil {
		return entities.Quote{}, err
	} else if existing.ID != "" {
		return entities.Quote{}, ErrQuoteAlreadyExists
	}

	q, err := entities.NewQuote(serviceOrderID, note, items)
	if err != nil {
		return entities.Quote{}, err
	}

	created, err := u.repo.Create(ctx, q)
	if err != nil {
		return entities.Quote{}, err
	}
	log.Printf("[quote][usecase] created quote_id=%s service_order_id=%s total=%s", created.ID, created.ServiceOrderID, created.Total)

	// quote-ready is routine, so this never blocks on the broker.
	if err := publishEvent(ctx, u.publisher, events.NewQuoteReady(created)); err != nil {
		log.Printf("[quote][usecase] quote-ready publish rejected quote_id=%s err=%v", created.ID, err)
	}
	return created, nil
}

func (u *QuoteUseCase) ApproveByServiceOrderID(ctx context.Context, serviceOrderID, actor, note string) (entities.Quote, error) {
	return u.transitionByServiceOrderID(ctx, serviceOrderID,
		func(q *entities.Quote) error { return q.Approve(actor, note) },
		func(q entities.Quote) events.Event { return events.NewQuoteApproved(q) },
	)
}

func (u *QuoteUseCase) RejectByServiceOrderID(ctx context.Context, serviceOrderID, actor, reason string) (entities.Quote, error) {
	return u.transitionByServiceOrderID(ctx, serviceOrderID,
		func(q *entities.Quote) error { return q.Reject(actor, reason) },
		func(q entities.Quote) events.Event { return events.NewQuoteRejected(q) },
	)
}

// CancelByServiceOrderID is the saga compensation. It publishes no outbound
// event: the cancellation's own trigger event already flowed through the
// saga.
func (u *QuoteUseCase) CancelByServiceOrderID(ctx context.Context, serviceOrderID, actor, reason string) (entities.Quote, error) {
	return u.transitionByServiceOrderID(ctx, serviceOrderID,
		func(q *entities.Quote) error { return q.Cancel(actor, reason) },
		nil,
	)
}

func (u *QuoteUseCase) transitionByServiceOrderID(
	ctx context.Context,
	serviceOrderID string,
	mutate func(q *entities.Quote) error,
	event func(q entities.Quote) events.Event,
) (entities.Quote, error) {
	serviceOrderID = strings.TrimSpace(serviceOrderID)
	if serviceOrderID == "" {
		return entities.Quote{}, ErrInvalidServiceOrderID
	}

	q, err := u.repo.GetByServiceOrderID(ctx, serviceOrderID)
	if err != nil {
		return entities.Quote{}, err
	}
	if q.ID == "" {
		return entities.Quote{}, ErrQuoteNotFound
	}

	if err := mutate(&q); err != nil {
		return entities.Quote{}, err
	}

	saved, err := u.repo.Save(ctx, q)
	if err != nil {
		return entities.Quote{}, err
	}
	log.Printf("[quote][usecase] transition applied quote_id=%s service_order_id=%s status=%s", saved.ID, saved.ServiceOrderID, saved.Status)

	if event != nil {
		// Approval and rejection are critical saga steps, so this blocks
		// until the broker acknowledged the event.
		if err := publishEvent(ctx, u.publisher, event(saved)); err != nil {
			return entities.Quote{}, err
		}
	}
	return saved, nil
}

func (u *QuoteUseCase) AddItem(ctx context.Context, quoteID string, item entities.QuoteItem) (entities.Quote, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return entities.Quote{}, ErrInvalidQuoteID
	}

	q, err := u.repo.GetByID(ctx, quoteID)
	if err != nil {
		return entities.Quote{}, err
	}
	if q.ID == "" {
		return entities.Quote{}, ErrQuoteNotFound
	}

	if err := q.AddItem(item); err != nil {
		return entities.Quote{}, err
	}
	return u.repo.Save(ctx, q)
}

// ApplyDiagnosis adds a diagnosis line item priced at the value reported by
// the execution service and recomputes the total. Quotes past Pending are
// left untouched; the diagnosis event raced with the customer decision.
func (u *QuoteUseCase) ApplyDiagnosis(ctx context.Context, serviceOrderID, diagnosis string, estimatedValue decimal.Decimal) (entities.Quote, error) {
	serviceOrderID = strings.TrimSpace(serviceOrderID)
	if serviceOrderID == "" {
		return entities.Quote{}, ErrInvalidServiceOrderID
	}

	q, err := u.repo.GetByServiceOrderID(ctx, serviceOrderID)
	if err != nil {
		return entities.Quote{}, err
	}
	if q.ID == "" {
		return entities.Quote{}, ErrQuoteNotFound
	}
	if !q.IsPending() {
		log.Printf("[quote][usecase] diagnosis ignored, quote not pending quote_id=%s status=%s", q.ID, q.Status)
		return q, nil
	}

	item, err := entities.NewQuoteItem(entities.ItemKindDiagnosis, diagnosis, 1, estimatedValue)
	if err != nil {
		return entities.Quote{}, err
	}
	if err := q.AddItem(item); err != nil {
		return entities.Quote{}, err
	}

	saved, err := u.repo.Save(ctx, q)
	if err != nil {
		return entities.Quote{}, err
	}
	log.Printf("[quote][usecase] diagnosis applied quote_id=%s total=%s", saved.ID, saved.Total)
	return saved, nil
}

func (u *QuoteUseCase) GetByID(ctx context.Context, id string) (entities.Quote, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return entities.Quote{}, ErrInvalidQuoteID
	}

	q, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return entities.Quote{}, err
	}
	if q.ID == "" {
		return entities.Quote{}, ErrQuoteNotFound
	}
	return q, nil
}

func (u *QuoteUseCase) GetByServiceOrderID(ctx context.Context, serviceOrderID string) (entities.Quote, error) {
	serviceOrderID = strings.TrimSpace(serviceOrderID)
	if serviceOrderID == "" {
		return entities.Quote{}, ErrInvalidServiceOrderID
	}

	q, err := u.repo.GetByServiceOrderID(ctx, serviceOrderID)
	if err != nil {
		return entities.Quote{}, err
	}
	if q.ID == "" {
		return entities.Quote{}, ErrQuoteNotFound
	}
	return q, nil
}

// Delete is the administrative hard delete. Regular lifecycle flows never
// remove quotes.
func (u *QuoteUseCase) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidQuoteID
	}
	return u.repo.Delete(ctx, id)
}
