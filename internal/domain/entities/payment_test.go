package entities

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func newPendingPayment(t *testing.T) Payment {
	t.Helper()
	p, err := NewPayment("quote-1", "os-1", decimal.RequireFromString("250.00"), PaymentMethodPix)
	if err != nil {
		t.Fatalf("NewPayment: %v", err)
	}
	return p
}

func TestNewPayment(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p := newPendingPayment(t)
		if p.Status != PaymentStatusPending {
			t.Fatalf("expected pending, got %s", p.Status)
		}
		if p.ID == "" {
			t.Fatal("expected generated id")
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewPayment("quote-1", "os-1", decimal.Zero, PaymentMethodPix)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("rejects missing method", func(t *testing.T) {
		_, err := NewPayment("quote-1", "os-1", decimal.RequireFromString("10"), "")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestPaymentStatusTransitions(t *testing.T) {
	legal := map[PaymentStatus][]PaymentStatus{
		PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusConfirmed, PaymentStatusCancelled},
		PaymentStatusProcessing: {PaymentStatusConfirmed, PaymentStatusCancelled, PaymentStatusRefunded},
		PaymentStatusConfirmed:  {PaymentStatusRefunded},
		PaymentStatusRefunded:   {},
		PaymentStatusCancelled:  {},
	}
	all := []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing, PaymentStatusConfirmed, PaymentStatusRefunded, PaymentStatusCancelled}

	for from, targets := range legal {
		allowed := map[PaymentStatus]bool{}
		for _, to := range targets {
			allowed[to] = true
		}
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != allowed[to] {
				t.Fatalf("%s -> %s: expected %v, got %v", from, to, allowed[to], got)
			}
		}
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	// Confirmed is not terminal: a confirmed payment can still be refunded.
	terminal := map[PaymentStatus]bool{
		PaymentStatusPending:    false,
		PaymentStatusProcessing: false,
		PaymentStatusConfirmed:  false,
		PaymentStatusRefunded:   true,
		PaymentStatusCancelled:  true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s: expected IsTerminal=%v, got %v", status, want, got)
		}
	}
}

func TestPaymentLifecycle(t *testing.T) {
	t.Run("mark processing records gateway id", func(t *testing.T) {
		p := newPendingPayment(t)
		if err := p.MarkProcessing("mp-123"); err != nil {
			t.Fatalf("MarkProcessing: %v", err)
		}
		if p.Status != PaymentStatusProcessing || p.GatewayPaymentID != "mp-123" {
			t.Fatalf("unexpected state %+v", p)
		}
	})

	t.Run("mark processing twice fails", func(t *testing.T) {
		p := newPendingPayment(t)
		if err := p.MarkProcessing("mp-123"); err != nil {
			t.Fatalf("MarkProcessing: %v", err)
		}
		err := p.MarkProcessing("mp-456")
		var tErr *InvalidTransitionError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("confirm is idempotent", func(t *testing.T) {
		p := newPendingPayment(t)
		if err := p.Confirm(); err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		first := p.ConfirmedAt
		if err := p.Confirm(); err != nil {
			t.Fatalf("second Confirm: %v", err)
		}
		if p.ConfirmedAt != first {
			t.Fatal("expected ConfirmedAt unchanged on replay")
		}
	})

	t.Run("refund after confirm", func(t *testing.T) {
		p := newPendingPayment(t)
		if err := p.Confirm(); err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		if err := p.Refund("chargeback"); err != nil {
			t.Fatalf("Refund: %v", err)
		}
		if p.Status != PaymentStatusRefunded || p.RefundReason != "chargeback" || p.RefundedAt == nil {
			t.Fatalf("unexpected state %+v", p)
		}
		if err := p.Refund("chargeback"); err != nil {
			t.Fatalf("replayed Refund: %v", err)
		}
	})

	t.Run("refund from pending fails", func(t *testing.T) {
		p := newPendingPayment(t)
		err := p.Refund("nope")
		var tErr *InvalidTransitionError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		p := newPendingPayment(t)
		if err := p.Cancel(); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if err := p.Cancel(); err != nil {
			t.Fatalf("replayed Cancel: %v", err)
		}
		if p.Status != PaymentStatusCancelled {
			t.Fatalf("expected cancelled, got %s", p.Status)
		}
	})

	t.Run("confirm after cancel fails", func(t *testing.T) {
		p := newPendingPayment(t)
		if err := p.Cancel(); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		err := p.Confirm()
		var tErr *InvalidTransitionError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})
}
