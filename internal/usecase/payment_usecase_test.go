package usecase

import (
	"context"
	"errors"
	"testing"

	"mecanica_billing/internal/domain/entities"
	"mecanica_billing/internal/domain/events"
	"mecanica_billing/internal/usecase/interfaces"
	mock_interfaces "mecanica_billing/internal/usecase/interfaces/mocks"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
)

func approvedQuote(t *testing.T) entities.Quote {
	t.Helper()
	q := pendingQuote(t, "os-1")
	if err := q.Approve("customer", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return q
}

func storedPayment(t *testing.T, status entities.PaymentStatus) entities.Payment {
	t.Helper()
	p, err := entities.NewPayment("quote-1", "os-1", decimal.RequireFromString("100"), entities.PaymentMethodPix)
	if err != nil {
		t.Fatalf("NewPayment: %v", err)
	}
	p.ID = "pay-1"
	switch status {
	case entities.PaymentStatusProcessing:
		if err := p.MarkProcessing("mp-1"); err != nil {
			t.Fatalf("MarkProcessing: %v", err)
		}
	case entities.PaymentStatusConfirmed:
		if err := p.Confirm(); err != nil {
			t.Fatalf("Confirm: %v", err)
		}
	case entities.PaymentStatusCancelled:
		if err := p.Cancel(); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
	case entities.PaymentStatusRefunded:
		if err := p.Confirm(); err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		if err := p.Refund("test"); err != nil {
			t.Fatalf("Refund: %v", err)
		}
	}
	return p
}

func TestPaymentUseCase_Register(t *testing.T) {
	t.Run("quote not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		quoteRepo := mock_interfaces.NewMockIQuoteRepository(ctrl)
		uc := NewPaymentUseCase(nil, quoteRepo, nil, nil)

		quoteRepo.EXPECT().GetByID(gomock.Any(), "quote-404").Return(entities.Quote{}, nil)

		_, err := uc.Register(context.Background(), "quote-404", "", entities.PaymentMethodPix)
		if !errors.Is(err, ErrQuoteNotFound) {
			t.Fatalf("expected ErrQuoteNotFound, got %v", err)
		}
	})

	t.Run("quote not approved", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		quoteRepo := mock_interfaces.NewMockIQuoteRepository(ctrl)
		uc := NewPaymentUseCase(nil, quoteRepo, nil, nil)

		quoteRepo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(pendingQuote(t, "os-1"), nil)

		_, err := uc.Register(context.Background(), "quote-1", "", entities.PaymentMethodPix)
		if !errors.Is(err, ErrQuoteNotApproved) {
			t.Fatalf("expected ErrQuoteNotApproved, got %v", err)
		}
	})

	t.Run("register stays pending with checkout session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		quoteRepo := mock_interfaces.NewMockIQuoteRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		uc := NewPaymentUseCase(repo, quoteRepo, gateway, nil)

		quote := approvedQuote(t)
		quoteRepo.EXPECT().GetByID(gomock.Any(), quote.ID).Return(quote, nil)
		gateway.EXPECT().CreateCheckoutSession(gomock.Any(), gomock.Any(), gomock.Any(), "payer@example.com", gomock.Any()).
			Return(interfaces.CheckoutSession{SessionID: "sess-1", CheckoutLink: "https://pay/sess-1"}, nil)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p entities.Payment) (entities.Payment, error) { return p, nil })

		created, err := uc.Register(context.Background(), quote.ID, "payer@example.com", entities.PaymentMethodPix)
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if created.Status != entities.PaymentStatusPending {
			t.Fatalf("expected pending, got %s", created.Status)
		}
		if created.CheckoutSessionID != "sess-1" || created.CheckoutLink != "https://pay/sess-1" {
			t.Fatalf("unexpected checkout session %+v", created)
		}
		if !created.Amount.Equal(quote.Total) {
			t.Fatalf("expected amount %s, got %s", quote.Total, created.Amount)
		}
	})

	t.Run("gateway failure creates nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		quoteRepo := mock_interfaces.NewMockIQuoteRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		uc := NewPaymentUseCase(repo, quoteRepo, gateway, nil)

		quote := approvedQuote(t)
		quoteRepo.EXPECT().GetByID(gomock.Any(), quote.ID).Return(quote, nil)
		gateway.EXPECT().CreateCheckoutSession(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(interfaces.CheckoutSession{}, errors.New("gateway down"))

		_, err := uc.Register(context.Background(), quote.ID, "", entities.PaymentMethodPix)
		if err == nil || err.Error() != "gateway down" {
			t.Fatalf("expected gateway error, got %v", err)
		}
	})
}

func TestPaymentUseCase_CheckStatus(t *testing.T) {
	t.Run("terminal payment short-circuits", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, nil)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusCancelled), nil)

		p, err := uc.CheckStatus(context.Background(), "pay-1")
		if err != nil {
			t.Fatalf("CheckStatus: %v", err)
		}
		if p.Status != entities.PaymentStatusCancelled {
			t.Fatalf("expected cancelled, got %s", p.Status)
		}
	})

	t.Run("gateway has no payment yet", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, nil)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusPending), nil)
		gateway.EXPECT().GetPaymentByExternalRef(gomock.Any(), "pay-1").Return(interfaces.GatewayPayment{}, false, nil)

		p, err := uc.CheckStatus(context.Background(), "pay-1")
		if err != nil {
			t.Fatalf("CheckStatus: %v", err)
		}
		if p.Status != entities.PaymentStatusPending {
			t.Fatalf("expected pending, got %s", p.Status)
		}
	})

	t.Run("gateway error mutates nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, nil)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusPending), nil)
		gateway.EXPECT().GetPaymentByExternalRef(gomock.Any(), "pay-1").
			Return(interfaces.GatewayPayment{}, false, errors.New("timeout"))

		_, err := uc.CheckStatus(context.Background(), "pay-1")
		if err == nil || err.Error() != "timeout" {
			t.Fatalf("expected timeout, got %v", err)
		}
	})

	t.Run("approved confirms pending payment and publishes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		publisher := mock_interfaces.NewMockIEventPublisher(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, publisher)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusPending), nil)
		gateway.EXPECT().GetPaymentByExternalRef(gomock.Any(), "pay-1").
			Return(interfaces.GatewayPayment{GatewayPaymentID: "mp-9", Status: "approved"}, true, nil)
		repo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p entities.Payment) (entities.Payment, error) { return p, nil })

		var published events.Event
		publisher.EXPECT().PublishSync(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e events.Event) error {
				published = e
				return nil
			})

		p, err := uc.CheckStatus(context.Background(), "pay-1")
		if err != nil {
			t.Fatalf("CheckStatus: %v", err)
		}
		if p.Status != entities.PaymentStatusConfirmed || p.GatewayPaymentID != "mp-9" {
			t.Fatalf("unexpected state %+v", p)
		}
		if published.Type != events.TypePaymentConfirmed {
			t.Fatalf("unexpected event %+v", published)
		}
	})

	t.Run("rejected cancels and publishes payment-failed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		publisher := mock_interfaces.NewMockIEventPublisher(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, publisher)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusProcessing), nil)
		gateway.EXPECT().GetPaymentByExternalRef(gomock.Any(), "pay-1").
			Return(interfaces.GatewayPayment{GatewayPaymentID: "mp-1", Status: "rejected"}, true, nil)
		repo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p entities.Payment) (entities.Payment, error) { return p, nil })

		var published events.Event
		publisher.EXPECT().PublishSync(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e events.Event) error {
				published = e
				return nil
			})

		p, err := uc.CheckStatus(context.Background(), "pay-1")
		if err != nil {
			t.Fatalf("CheckStatus: %v", err)
		}
		if p.Status != entities.PaymentStatusCancelled {
			t.Fatalf("expected cancelled, got %s", p.Status)
		}
		if published.Type != events.TypePaymentFailed || published.Reason != "gateway reported rejected" {
			t.Fatalf("unexpected event %+v", published)
		}
	})

	t.Run("refunded reverses confirmed payment", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		publisher := mock_interfaces.NewMockIEventPublisher(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, publisher)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusConfirmed), nil)
		gateway.EXPECT().GetPaymentByExternalRef(gomock.Any(), "pay-1").
			Return(interfaces.GatewayPayment{GatewayPaymentID: "mp-1", Status: "refunded"}, true, nil)
		repo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p entities.Payment) (entities.Payment, error) { return p, nil })

		var published events.Event
		publisher.EXPECT().PublishSync(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e events.Event) error {
				published = e
				return nil
			})

		p, err := uc.CheckStatus(context.Background(), "pay-1")
		if err != nil {
			t.Fatalf("CheckStatus: %v", err)
		}
		if p.Status != entities.PaymentStatusRefunded {
			t.Fatalf("expected refunded, got %s", p.Status)
		}
		if published.Type != events.TypePaymentReversed {
			t.Fatalf("unexpected event %+v", published)
		}
	})

	t.Run("replayed approved status is a no-op", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, nil)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusConfirmed), nil)
		gateway.EXPECT().GetPaymentByExternalRef(gomock.Any(), "pay-1").
			Return(interfaces.GatewayPayment{GatewayPaymentID: "mp-1", Status: "approved"}, true, nil)

		p, err := uc.CheckStatus(context.Background(), "pay-1")
		if err != nil {
			t.Fatalf("CheckStatus: %v", err)
		}
		if p.Status != entities.PaymentStatusConfirmed {
			t.Fatalf("expected confirmed, got %s", p.Status)
		}
	})

	t.Run("unknown gateway status changes nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, nil)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusProcessing), nil)
		gateway.EXPECT().GetPaymentByExternalRef(gomock.Any(), "pay-1").
			Return(interfaces.GatewayPayment{GatewayPaymentID: "mp-1", Status: "charged_back"}, true, nil)

		p, err := uc.CheckStatus(context.Background(), "pay-1")
		if err != nil {
			t.Fatalf("CheckStatus: %v", err)
		}
		if p.Status != entities.PaymentStatusProcessing {
			t.Fatalf("expected processing, got %s", p.Status)
		}
	})
}

func TestPaymentUseCase_ProcessWebhook(t *testing.T) {
	t.Run("empty id", func(t *testing.T) {
		uc := NewPaymentUseCase(nil, nil, nil, nil)
		err := uc.ProcessWebhook(context.Background(), "   ")
		if !errors.Is(err, ErrInvalidPaymentID) {
			t.Fatalf("expected ErrInvalidPaymentID, got %v", err)
		}
	})

	t.Run("unknown gateway payment id surfaces", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, nil)

		gateway.EXPECT().GetPaymentByID(gomock.Any(), "mp-77").
			Return(interfaces.GatewayPayment{GatewayPaymentID: "mp-77", Status: "approved"}, nil)
		repo.EXPECT().GetByGatewayPaymentID(gomock.Any(), "mp-77").Return(entities.Payment{}, nil)

		err := uc.ProcessWebhook(context.Background(), "mp-77")
		if !errors.Is(err, ErrPaymentNotFound) {
			t.Fatalf("expected ErrPaymentNotFound, got %v", err)
		}
	})

	t.Run("webhook and poll converge to the same state", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		gateway := mock_interfaces.NewMockIPaymentGateway(ctrl)
		publisher := mock_interfaces.NewMockIEventPublisher(ctrl)
		uc := NewPaymentUseCase(repo, nil, gateway, publisher)

		gateway.EXPECT().GetPaymentByID(gomock.Any(), "mp-1").
			Return(interfaces.GatewayPayment{GatewayPaymentID: "mp-1", Status: "approved"}, nil)
		repo.EXPECT().GetByGatewayPaymentID(gomock.Any(), "mp-1").
			Return(storedPayment(t, entities.PaymentStatusProcessing), nil)

		var saved entities.Payment
		repo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p entities.Payment) (entities.Payment, error) {
				saved = p
				return p, nil
			})
		publisher.EXPECT().PublishSync(gomock.Any(), gomock.Any()).Return(nil)

		if err := uc.ProcessWebhook(context.Background(), "mp-1"); err != nil {
			t.Fatalf("ProcessWebhook: %v", err)
		}
		if saved.Status != entities.PaymentStatusConfirmed {
			t.Fatalf("expected confirmed, got %s", saved.Status)
		}
	})
}

func TestPaymentUseCase_ManualTransitions(t *testing.T) {
	t.Run("confirm manually records receipt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		publisher := mock_interfaces.NewMockIEventPublisher(ctrl)
		uc := NewPaymentUseCase(repo, nil, nil, publisher)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusPending), nil)
		repo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p entities.Payment) (entities.Payment, error) { return p, nil })
		publisher.EXPECT().PublishSync(gomock.Any(), gomock.Any()).Return(nil)

		p, err := uc.ConfirmManually(context.Background(), "pay-1", "receipt-42")
		if err != nil {
			t.Fatalf("ConfirmManually: %v", err)
		}
		if p.Status != entities.PaymentStatusConfirmed || p.Receipt != "receipt-42" {
			t.Fatalf("unexpected state %+v", p)
		}
	})

	t.Run("refund invalid from pending", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		uc := NewPaymentUseCase(repo, nil, nil, nil)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusPending), nil)

		_, err := uc.Refund(context.Background(), "pay-1", "oops")
		var tErr *entities.InvalidTransitionError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("cancel publishes payment-failed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		publisher := mock_interfaces.NewMockIEventPublisher(ctrl)
		uc := NewPaymentUseCase(repo, nil, nil, publisher)

		repo.EXPECT().GetByID(gomock.Any(), "pay-1").Return(storedPayment(t, entities.PaymentStatusPending), nil)
		repo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p entities.Payment) (entities.Payment, error) { return p, nil })

		var published events.Event
		publisher.EXPECT().PublishSync(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e events.Event) error {
				published = e
				return nil
			})

		p, err := uc.Cancel(context.Background(), "pay-1")
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if p.Status != entities.PaymentStatusCancelled {
			t.Fatalf("expected cancelled, got %s", p.Status)
		}
		if published.Type != events.TypePaymentFailed {
			t.Fatalf("unexpected event %+v", published)
		}
	})

	t.Run("not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		repo := mock_interfaces.NewMockIPaymentRepository(ctrl)
		uc := NewPaymentUseCase(repo, nil, nil, nil)

		repo.EXPECT().GetByID(gomock.Any(), "pay-404").Return(entities.Payment{}, nil)

		_, err := uc.GetByID(context.Background(), "pay-404")
		if !errors.Is(err, ErrPaymentNotFound) {
			t.Fatalf("expected ErrPaymentNotFound, got %v", err)
		}
	})
}
