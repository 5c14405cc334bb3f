package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"mecanica_billing/internal/usecase/interfaces"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"
)

var ErrMissingMercadoPagoAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")
var ErrMercadoPagoGatewayNotConfigured = errors.New("mercado pago gateway not configured")

// MercadoPagoGateway implements IPaymentGateway on the Mercado Pago SDK.
//
// Checkout sessions are Checkout Pro preferences; the payment's id is used
// as the preference's external reference so gateway payments can be matched
// back during reconciliation.
//
// Mock mode (PAYMENT_GATEWAY_MOCK / MERCADOPAGO_MOCK) keeps an in-memory
// map of sessions and reports every polled payment as approved, which is
// enough for local runs without gateway credentials.
type MercadoPagoGateway struct {
	preferences preference.Client
	payments    payment.Client
	mockMode    bool

	mu           sync.Mutex
	mockSessions map[string]string
}

var _ interfaces.IPaymentGateway = (*MercadoPagoGateway)(nil)

func NewMercadoPagoGateway(accessToken string) (*MercadoPagoGateway, error) {
	if isPaymentGatewayMockEnabled() {
		log.Printf("[payment][gateway] mock mode enabled")
		return &MercadoPagoGateway{mockMode: true, mockSessions: map[string]string{}}, nil
	}

	if accessToken == "" {
		log.Printf("[payment][gateway] missing MERCADOPAGO_ACCESS_TOKEN")
		return nil, ErrMissingMercadoPagoAccessToken
	}

	cfg, err := config.New(accessToken)
	if err != nil {
		log.Printf("[payment][gateway] failed creating sdk config err=%v", err)
		return nil, err
	}
	log.Printf("[payment][gateway] Mercado Pago client initialized")

	return &MercadoPagoGateway{
		preferences: preference.NewClient(cfg),
		payments:    payment.NewClient(cfg),
	}, nil
}

func (g *MercadoPagoGateway) CreateCheckoutSession(ctx context.Context, description string, amount decimal.Decimal, payerEmail, externalRef string) (interfaces.CheckoutSession, error) {
	if g != nil && g.mockMode {
		id := "mock-session-" + strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
		g.mu.Lock()
		g.mockSessions[externalRef] = strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
		g.mu.Unlock()

		log.Printf("[payment][gateway] mock checkout session created session_id=%s external_ref=%s", id, externalRef)
		return interfaces.CheckoutSession{
			SessionID:    id,
			CheckoutLink: "https://mock.mercadopago.local/checkout/" + id,
		}, nil
	}

	if g == nil || g.preferences == nil {
		log.Printf("[payment][gateway] gateway not configured")
		return interfaces.CheckoutSession{}, ErrMercadoPagoGatewayNotConfigured
	}
	log.Printf("[payment][gateway] checkout session create start external_ref=%s amount=%s", externalRef, amount.String())

	unitPrice, _ := amount.Float64()
	req := preference.Request{
		Items: []preference.ItemRequest{
			{
				Title:     description,
				Quantity:  1,
				UnitPrice: unitPrice,
			},
		},
		ExternalReference: externalRef,
	}
	if payerEmail != "" {
		req.Payer = &preference.PayerRequest{Email: payerEmail}
	}

	resp, err := g.preferences.Create(ctx, req)
	if err != nil {
		log.Printf("[payment][gateway] sdk preference create failed err=%v", err)
		return interfaces.CheckoutSession{}, err
	}

	link := resp.InitPoint
	if link == "" {
		link = resp.SandboxInitPoint
	}
	log.Printf("[payment][gateway] checkout session created session_id=%s external_ref=%s", resp.ID, externalRef)

	return interfaces.CheckoutSession{SessionID: resp.ID, CheckoutLink: link}, nil
}

func (g *MercadoPagoGateway) GetPaymentByExternalRef(ctx context.Context, externalRef string) (interfaces.GatewayPayment, bool, error) {
	if g != nil && g.mockMode {
		g.mu.Lock()
		id, ok := g.mockSessions[externalRef]
		g.mu.Unlock()
		if !ok {
			return interfaces.GatewayPayment{}, false, nil
		}
		log.Printf("[payment][gateway] mock search success external_ref=%s provider_status=approved", externalRef)
		return interfaces.GatewayPayment{GatewayPaymentID: id, Status: "approved", StatusDetail: "accredited"}, true, nil
	}

	if g == nil || g.payments == nil {
		log.Printf("[payment][gateway] gateway not configured")
		return interfaces.GatewayPayment{}, false, ErrMercadoPagoGatewayNotConfigured
	}

	resp, err := g.payments.Search(ctx, payment.SearchRequest{
		Filters: map[string]string{"external_reference": externalRef},
	})
	if err != nil {
		log.Printf("[payment][gateway] sdk search failed external_ref=%s err=%v", externalRef, err)
		return interfaces.GatewayPayment{}, false, err
	}
	if resp == nil || len(resp.Results) == 0 {
		return interfaces.GatewayPayment{}, false, nil
	}

	// Newest result wins when the gateway holds multiple attempts for the
	// same reference.
	newest := resp.Results[0]
	for _, r := range resp.Results[1:] {
		if r.DateCreated.After(newest.DateCreated) {
			newest = r
		}
	}
	log.Printf("[payment][gateway] search success external_ref=%s provider_payment_id=%d provider_status=%s", externalRef, newest.ID, newest.Status)

	return interfaces.GatewayPayment{
		GatewayPaymentID: fmt.Sprintf("%d", newest.ID),
		Status:           newest.Status,
		StatusDetail:     newest.StatusDetail,
	}, true, nil
}

func (g *MercadoPagoGateway) GetPaymentByID(ctx context.Context, gatewayPaymentID string) (interfaces.GatewayPayment, error) {
	if g != nil && g.mockMode {
		log.Printf("[payment][gateway] mock get success provider_payment_id=%s provider_status=approved", gatewayPaymentID)
		return interfaces.GatewayPayment{GatewayPaymentID: gatewayPaymentID, Status: "approved", StatusDetail: "accredited"}, nil
	}

	if g == nil || g.payments == nil {
		log.Printf("[payment][gateway] gateway not configured")
		return interfaces.GatewayPayment{}, ErrMercadoPagoGatewayNotConfigured
	}

	id, err := strconv.Atoi(gatewayPaymentID)
	if err != nil {
		return interfaces.GatewayPayment{}, fmt.Errorf("invalid gateway payment id %q: %w", gatewayPaymentID, err)
	}

	resp, err := g.payments.Get(ctx, id)
	if err != nil {
		log.Printf("[payment][gateway] sdk get failed provider_payment_id=%s err=%v", gatewayPaymentID, err)
		return interfaces.GatewayPayment{}, err
	}
	log.Printf("[payment][gateway] get success provider_payment_id=%d provider_status=%s", resp.ID, resp.Status)

	return interfaces.GatewayPayment{
		GatewayPaymentID: fmt.Sprintf("%d", resp.ID),
		Status:           resp.Status,
		StatusDetail:     resp.StatusDetail,
	}, nil
}

func isPaymentGatewayMockEnabled() bool {
	for _, key := range []string{"PAYMENT_GATEWAY_MOCK", "MERCADOPAGO_MOCK"} {
		v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
		switch v {
		case "1", "true", "yes", "on", "mock":
			return true
		}
	}
	return false
}
