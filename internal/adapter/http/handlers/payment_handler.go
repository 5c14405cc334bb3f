package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	request "mecanica_billing/internal/adapter/http/dto/request"
	response "mecanica_billing/internal/adapter/http/dto/response"
	"mecanica_billing/internal/domain/entities"
	"mecanica_billing/internal/infrastructure/messaging"
	"mecanica_billing/internal/usecase"
	"mecanica_billing/pkg"

	"github.com/gin-gonic/gin"
)

var (
	errInvalidPaymentPayload = pkg.NewDomainErrorSimple("INVALID_PAYMENT_INPUT", "Invalid payment payload", http.StatusBadRequest)
)

// PaymentHandler handles HTTP requests for billing payments, including the
// gateway webhook.

type PaymentHandler struct {
	usecase usecase.IPaymentUseCase
	metrics *messaging.Metrics
}

func NewPaymentHandler(uc usecase.IPaymentUseCase, metrics *messaging.Metrics) *PaymentHandler {
	return &PaymentHandler{usecase: uc, metrics: metrics}
}

func (h *PaymentHandler) RegisterPayment(c *gin.Context) {
	var payload request.PaymentRegisterRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(errInvalidPaymentPayload.HTTPStatus, errInvalidPaymentPayload.ToHTTPError())
		return
	}

	created, err := h.usecase.Register(c.Request.Context(), payload.QuoteID, payload.PayerEmail, entities.PaymentMethod(payload.Method))
	if err != nil {
		log.Printf("[payment][handler] register failed quote_id=%s err=%v", payload.QuoteID, err)
		appErr := mapPaymentError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}
	log.Printf("[payment][handler] register success quote_id=%s payment_id=%s", created.QuoteID, created.ID)

	c.JSON(http.StatusCreated, response.FromPayment(created))
}

// CheckPaymentStatus polls the gateway and applies whatever it reports.
// Terminal payments return unchanged without a gateway round-trip.
func (h *PaymentHandler) CheckPaymentStatus(c *gin.Context) {
	paymentID := c.Param("payment_id")

	p, err := h.usecase.CheckStatus(c.Request.Context(), paymentID)
	if err != nil {
		log.Printf("[payment][handler] check-status failed payment_id=%s err=%v", paymentID, err)
		appErr := mapPaymentError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromPayment(p))
}

// HandleWebhook receives gateway payment notifications. The gateway retries
// on non-2xx, so the response is 200 even when the notification cannot be
// matched; unmatched notifications are surfaced through logs and metrics
// instead.
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	// Some notification flavors carry the payment id only as a query
	// parameter, so a missing or malformed body is not fatal here.
	var payload request.WebhookNotification
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Printf("[payment][webhook] unparseable notification body err=%v", err)
	}

	// Mercado Pago also notifies merchant_order, plan and test topics; their
	// data ids are not payment ids, so anything but "payment" is dropped
	// before the gateway lookup.
	if notificationType := payload.ResolveType(c.Query("type")); notificationType != "" && !strings.EqualFold(notificationType, "payment") {
		log.Printf("[payment][webhook] non-payment notification ignored type=%s action=%s", notificationType, payload.Action)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	gatewayPaymentID := payload.ResolvePaymentID(c.Query("data.id"))
	if gatewayPaymentID == "" {
		log.Printf("[payment][webhook] notification without payment id action=%s", payload.Action)
		h.metrics.IncWebhookUnmatched()
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.usecase.ProcessWebhook(c.Request.Context(), gatewayPaymentID); err != nil {
		if errors.Is(err, usecase.ErrPaymentNotFound) {
			log.Printf("[payment][webhook] unmatched notification gateway_payment_id=%s", gatewayPaymentID)
			h.metrics.IncWebhookUnmatched()
		} else {
			log.Printf("[payment][webhook] processing failed gateway_payment_id=%s err=%v", gatewayPaymentID, err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	paymentID := c.Param("payment_id")

	var payload request.PaymentConfirmRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(errInvalidPaymentPayload.HTTPStatus, errInvalidPaymentPayload.ToHTTPError())
		return
	}

	p, err := h.usecase.ConfirmManually(c.Request.Context(), paymentID, payload.Receipt)
	if err != nil {
		log.Printf("[payment][handler] confirm failed payment_id=%s err=%v", paymentID, err)
		appErr := mapPaymentError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromPayment(p))
}

func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	paymentID := c.Param("payment_id")

	var payload request.PaymentRefundRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(errInvalidPaymentPayload.HTTPStatus, errInvalidPaymentPayload.ToHTTPError())
		return
	}

	p, err := h.usecase.Refund(c.Request.Context(), paymentID, payload.Reason)
	if err != nil {
		log.Printf("[payment][handler] refund failed payment_id=%s err=%v", paymentID, err)
		appErr := mapPaymentError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromPayment(p))
}

func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	paymentID := c.Param("payment_id")

	p, err := h.usecase.Cancel(c.Request.Context(), paymentID)
	if err != nil {
		log.Printf("[payment][handler] cancel failed payment_id=%s err=%v", paymentID, err)
		appErr := mapPaymentError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromPayment(p))
}

func (h *PaymentHandler) GetPaymentByID(c *gin.Context) {
	p, err := h.usecase.GetByID(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		appErr := mapPaymentError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromPayment(p))
}

func (h *PaymentHandler) ListPaymentsByQuoteID(c *gin.Context) {
	payments, err := h.usecase.ListByQuoteID(c.Request.Context(), c.Param("quote_id"))
	if err != nil {
		appErr := mapPaymentError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromPayments(payments))
}

func mapPaymentError(err error) *pkg.AppError {
	var validationErr *entities.ValidationError
	var transitionErr *entities.InvalidTransitionError

	switch {
	case errors.Is(err, usecase.ErrInvalidPaymentID), errors.Is(err, usecase.ErrInvalidQuoteID):
		return pkg.NewDomainErrorSimple("INVALID_REQUEST", "Invalid request", http.StatusBadRequest)
	case errors.As(err, &validationErr):
		return pkg.NewDomainErrorSimple("INVALID_PAYMENT_INPUT", validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, usecase.ErrQuoteNotFound):
		return pkg.NewDomainErrorSimple("QUOTE_NOT_FOUND", "Quote not found", http.StatusNotFound)
	case errors.Is(err, usecase.ErrQuoteNotApproved):
		return pkg.NewDomainErrorSimple("QUOTE_NOT_APPROVED", "Quote not approved", http.StatusConflict)
	case errors.Is(err, usecase.ErrPaymentNotFound):
		return pkg.NewDomainErrorSimple("PAYMENT_NOT_FOUND", "Payment not found", http.StatusNotFound)
	case errors.As(err, &transitionErr):
		return pkg.NewDomainErrorSimple("PAYMENT_INVALID_TRANSITION", transitionErr.Error(), http.StatusConflict)
	default:
		return pkg.NewDomainError("INTERNAL_ERROR", "An internal error occurred", err, http.StatusInternalServerError)
	}
}
