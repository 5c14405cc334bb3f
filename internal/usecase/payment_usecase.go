package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"mecanica_billing/internal/domain/entities"
	"mecanica_billing/internal/domain/events"
	"mecanica_billing/internal/usecase/interfaces"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrInvalidPaymentID = errors.New("invalid payment id")
	ErrQuoteNotApproved = errors.New("quote not approved")
)

// IPaymentUseCase encapsulates payment registration and gateway
// reconciliation.
//
// CheckStatus (poll) and ProcessWebhook (push) both funnel into the same
// status-mapping function, so identical gateway status always produces
// identical local state no matter how the payment was found.

type IPaymentUseCase interface {
	Register(ctx context.Context, quoteID, payerEmail string, method entities.PaymentMethod) (entities.Payment, error)
	CheckStatus(ctx context.Context, paymentID string) (entities.Payment, error)
	ProcessWebhook(ctx context.Context, gatewayPaymentID string) error
	ConfirmManually(ctx context.Context, paymentID, receipt string) (entities.Payment, error)
	Refund(ctx context.Context, paymentID, reason string) (entities.Payment, error)
	Cancel(ctx context.Context, paymentID string) (entities.Payment, error)
	GetByID(ctx context.Context, id string) (entities.Payment, error)
	ListByQuoteID(ctx context.Context, quoteID string) ([]entities.Payment, error)
}

type PaymentUseCase struct {
	repo      interfaces.IPaymentRepository
	quoteRepo interfaces.IQuoteRepository
	gateway   interfaces.IPaymentGateway
	publisher interfaces.IEventPublisher
}

var _ IPaymentUseCase = (*PaymentUseCase)(nil)

func NewPaymentUseCase(
	repo interfaces.IPaymentRepository,
	quoteRepo interfaces.IQuoteRepository,
	gateway interfaces.IPaymentGateway,
	publisher interfaces.IEventPublisher,
) *PaymentUseCase {
	return &PaymentUseCase{repo: repo, quoteRepo: quoteRepo, gateway: gateway, publisher: publisher}
}

// Register creates a payment for an approved quote and requests a hosted
// checkout session from the gateway. The payment stays Pending: a checkout
// link is not itself a payment event.
func (u *PaymentUseCase) Register(ctx context.Context, quoteID, payerEmail string, method entities.PaymentMethod) (entities.Payment, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return entities.Payment{}, ErrInvalidQuoteID
	}

	quote, err := u.quoteRepo.GetByID(ctx, quoteID)
	if err != nil {
		return entities.Payment{}, err
	}
	if quote.ID == "" {
		return entities.Payment{}, ErrQuoteNotFound
	}
	if quote.Status != entities.QuoteStatusApproved {
		log.Printf("[payment][usecase] quote not approved quote_id=%s status=%s", quote.ID, quote.Status)
		return entities.Payment{}, ErrQuoteNotApproved
	}

	p, err := entities.NewPayment(quote.ID, quote.ServiceOrderID, quote.Total, method)
	if err != nil {
		return entities.Payment{}, err
	}

	description := fmt.Sprintf("Service order %s - quote %s", quote.ServiceOrderID, quote.ID)
	session, err := u.gateway.CreateCheckoutSession(ctx, description, p.Amount, payerEmail, p.ID)
	if err != nil {
		log.Printf("[payment][usecase] checkout session failed quote_id=%s err=%v", quote.ID, err)
		return entities.Payment{}, err
	}
	p.CheckoutSessionID = session.SessionID
	p.CheckoutLink = session.CheckoutLink

	created, err := u.repo.Create(ctx, p)
	if err != nil {
		return entities.Payment{}, err
	}
	log.Printf("[payment][usecase] registered payment_id=%s quote_id=%s amount=%s session_id=%s",
		created.ID, created.QuoteID, created.Amount, created.CheckoutSessionID)
	return created, nil
}

// CheckStatus is the pull reconciliation path. Terminal payments return
// immediately without a gateway call; a "not found" answer means the
// customer has not paid yet and changes nothing.
func (u *PaymentUseCase) CheckStatus(ctx context.Context, paymentID string) (entities.Payment, error) {
	p, err := u.GetByID(ctx, paymentID)
	if err != nil {
		return entities.Payment{}, err
	}
	if p.Status.IsTerminal() {
		log.Printf("[payment][usecase] check skipped, payment terminal payment_id=%s status=%s", p.ID, p.Status)
		return p, nil
	}

	gw, found, err := u.gateway.GetPaymentByExternalRef(ctx, p.ID)
	if err != nil {
		// Only a successful gateway response may drive a transition.
		return entities.Payment{}, err
	}
	if !found {
		log.Printf("[payment][usecase] no gateway payment yet payment_id=%s", p.ID)
		return p, nil
	}

	return u.applyGatewayStatus(ctx, p, gw)
}

// ProcessWebhook is the push reconciliation path. An unknown gateway payment
// id indicates a missed registration and is surfaced as ErrPaymentNotFound,
// never silently dropped.
func (u *PaymentUseCase) ProcessWebhook(ctx context.Context, gatewayPaymentID string) error {
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" {
		return ErrInvalidPaymentID
	}

	gw, err := u.gateway.GetPaymentByID(ctx, gatewayPaymentID)
	if err != nil {
		return err
	}

	p, err := u.repo.GetByGatewayPaymentID(ctx, gatewayPaymentID)
	if err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("webhook for unknown gateway payment id %s: %w", gatewayPaymentID, ErrPaymentNotFound)
	}

	_, err = u.applyGatewayStatus(ctx, p, gw)
	return err
}

// applyGatewayStatus maps a gateway status onto the local payment. Both
// reconciliation paths share it so they converge to the same state; every
// branch is a no-op when the payment is already there, which keeps replays
// and duplicate webhooks idempotent.
func (u *PaymentUseCase) applyGatewayStatus(ctx context.Context, p entities.Payment, gw interfaces.GatewayPayment) (entities.Payment, error) {
	switch strings.ToLower(gw.Status) {
	case "approved":
		if p.IsConfirmed() {
			return p, nil
		}
		if p.Status == entities.PaymentStatusPending {
			if err := p.MarkProcessing(gw.GatewayPaymentID); err != nil {
				return entities.Payment{}, err
			}
		}
		if err := p.Confirm(); err != nil {
			return entities.Payment{}, err
		}
		return u.saveAndPublish(ctx, p, events.NewPaymentConfirmed(p))

	case "pending", "in_process":
		if p.Status != entities.PaymentStatusPending || gw.GatewayPaymentID == "" {
			return p, nil
		}
		if err := p.MarkProcessing(gw.GatewayPaymentID); err != nil {
			return entities.Payment{}, err
		}
		saved, err := u.repo.Save(ctx, p)
		if err != nil {
			return entities.Payment{}, err
		}
		log.Printf("[payment][usecase] gateway processing payment_id=%s gateway_payment_id=%s", saved.ID, saved.GatewayPaymentID)
		return saved, nil

	case "rejected", "cancelled":
		if p.Status == entities.PaymentStatusCancelled {
			return p, nil
		}
		if err := p.Cancel(); err != nil {
			return entities.Payment{}, err
		}
		reason := fmt.Sprintf("gateway reported %s", strings.ToLower(gw.Status))
		return u.saveAndPublish(ctx, p, events.NewPaymentFailed(p, reason))

	case "refunded":
		if p.Status == entities.PaymentStatusRefunded {
			return p, nil
		}
		if err := p.Refund("refunded by gateway"); err != nil {
			return entities.Payment{}, err
		}
		return u.saveAndPublish(ctx, p, events.NewPaymentReversed(p))

	default:
		log.Printf("[payment][usecase] gateway status %q requires no action payment_id=%s", gw.Status, p.ID)
		return p, nil
	}
}

func (u *PaymentUseCase) saveAndPublish(ctx context.Context, p entities.Payment, event events.Event) (entities.Payment, error) {
	saved, err := u.repo.Save(ctx, p)
	if err != nil {
		return entities.Payment{}, err
	}
	log.Printf("[payment][usecase] status applied payment_id=%s status=%s event=%s", saved.ID, saved.Status, event.Type)
	// All payment outcomes are critical saga steps, so publishEvent takes
	// the acknowledged path here.
	if err := publishEvent(ctx, u.publisher, event); err != nil {
		return entities.Payment{}, err
	}
	return saved, nil
}

// ConfirmManually records an out-of-band payment (e.g. cash at the counter)
// with its receipt reference.
func (u *PaymentUseCase) ConfirmManually(ctx context.Context, paymentID, receipt string) (entities.Payment, error) {
	p, err := u.GetByID(ctx, paymentID)
	if err != nil {
		return entities.Payment{}, err
	}
	if err := p.Confirm(); err != nil {
		return entities.Payment{}, err
	}
	p.Receipt = receipt
	return u.saveAndPublish(ctx, p, events.NewPaymentConfirmed(p))
}

func (u *PaymentUseCase) Refund(ctx context.Context, paymentID, reason string) (entities.Payment, error) {
	p, err := u.GetByID(ctx, paymentID)
	if err != nil {
		return entities.Payment{}, err
	}
	if err := p.Refund(reason); err != nil {
		return entities.Payment{}, err
	}
	return u.saveAndPublish(ctx, p, events.NewPaymentReversed(p))
}

func (u *PaymentUseCase) Cancel(ctx context.Context, paymentID string) (entities.Payment, error) {
	p, err := u.GetByID(ctx, paymentID)
	if err != nil {
		return entities.Payment{}, err
	}
	if err := p.Cancel(); err != nil {
		return entities.Payment{}, err
	}
	return u.saveAndPublish(ctx, p, events.NewPaymentFailed(p, "payment cancelled"))
}

func (u *PaymentUseCase) GetByID(ctx context.Context, id string) (entities.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return entities.Payment{}, ErrInvalidPaymentID
	}

	p, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return entities.Payment{}, err
	}
	if p.ID == "" {
		return entities.Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (u *PaymentUseCase) ListByQuoteID(ctx context.Context, quoteID string) ([]entities.Payment, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return nil, ErrInvalidQuoteID
	}
	return u.repo.ListByQuoteID(ctx, quoteID)
}
