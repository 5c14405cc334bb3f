package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	request "mecanica_billing/internal/adapter/http/dto/request"
	response "mecanica_billing/internal/adapter/http/dto/response"
	"mecanica_billing/internal/domain/entities"
	"mecanica_billing/internal/usecase"
	"mecanica_billing/pkg"

	"github.com/gin-gonic/gin"
)

var (
	errInvalidQuotePayload = pkg.NewDomainErrorSimple("INVALID_QUOTE_INPUT", "Invalid quote payload", http.StatusBadRequest)
)

// QuoteHandler handles HTTP requests for billing quotes.

type QuoteHandler struct {
	usecase usecase.IQuoteUseCase
}

func NewQuoteHandler(uc usecase.IQuoteUseCase) *QuoteHandler {
	return &QuoteHandler{usecase: uc}
}

func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var payload request.QuoteCreateRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(errInvalidQuotePayload.HTTPStatus, errInvalidQuotePayload.ToHTTPError())
		return
	}

	items, err := payload.ToItems()
	if err != nil {
		appErr := mapQuoteError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	quote, err := h.usecase.CreateQuote(c.Request.Context(), payload.ResolveServiceOrderID(), payload.Note, items)
	if err != nil {
		log.Printf("[quote][handler] create failed service_order_id=%s err=%v", payload.ResolveServiceOrderID(), err)
		appErr := mapQuoteError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusCreated, response.FromQuote(quote))
}

func (h *QuoteHandler) ApproveQuote(c *gin.Context) {
	h.patchQuoteStatusByRequest(c, h.usecase.ApproveByServiceOrderID)
}

func (h *QuoteHandler) RejectQuote(c *gin.Context) {
	h.patchQuoteStatusByRequest(c, h.usecase.RejectByServiceOrderID)
}

func (h *QuoteHandler) CancelQuote(c *gin.Context) {
	h.patchQuoteStatusByRequest(c, h.usecase.CancelByServiceOrderID)
}

func (h *QuoteHandler) AddQuoteItem(c *gin.Context) {
	quoteID := c.Param("quote_id")

	var payload request.QuoteItemRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(errInvalidQuotePayload.HTTPStatus, errInvalidQuotePayload.ToHTTPError())
		return
	}

	item, err := payload.ToItem()
	if err != nil {
		appErr := mapQuoteError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	quote, err := h.usecase.AddItem(c.Request.Context(), quoteID, item)
	if err != nil {
		log.Printf("[quote][handler] add-item failed quote_id=%s err=%v", quoteID, err)
		appErr := mapQuoteError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromQuote(quote))
}

func (h *QuoteHandler) GetQuoteByID(c *gin.Context) {
	quote, err := h.usecase.GetByID(c.Request.Context(), c.Param("quote_id"))
	if err != nil {
		appErr := mapQuoteError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromQuote(quote))
}

func (h *QuoteHandler) GetQuoteByServiceOrderID(c *gin.Context) {
	quote, err := h.usecase.GetByServiceOrderID(c.Request.Context(), c.Param("service_order_id"))
	if err != nil {
		appErr := mapQuoteError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromQuote(quote))
}

func (h *QuoteHandler) patchQuoteStatusByRequest(
	c *gin.Context,
	updater func(ctx context.Context, serviceOrderID, actor, note string) (entities.Quote, error),
) {
	var payload request.QuoteDecisionRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(errInvalidQuotePayload.HTTPStatus, errInvalidQuotePayload.ToHTTPError())
		return
	}

	quote, err := updater(c.Request.Context(), payload.ResolveServiceOrderID(), payload.ResolveActor(), payload.Note)
	if err != nil {
		log.Printf("[quote][handler] status change failed service_order_id=%s err=%v", payload.ResolveServiceOrderID(), err)
		appErr := mapQuoteError(err)
		c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return
	}

	c.JSON(http.StatusOK, response.FromQuote(quote))
}

func mapQuoteError(err error) *pkg.AppError {
	var validationErr *entities.ValidationError
	var transitionErr *entities.InvalidTransitionError

	switch {
	case errors.Is(err, usecase.ErrInvalidServiceOrderID), errors.Is(err, usecase.ErrInvalidQuoteID):
		return pkg.NewDomainErrorSimple("INVALID_REQUEST", "Invalid request", http.StatusBadRequest)
	case errors.As(err, &validationErr):
		return pkg.NewDomainErrorSimple("INVALID_QUOTE_INPUT", validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, usecase.ErrQuoteAlreadyExists):
		return pkg.NewDomainErrorSimple("QUOTE_ALREADY_EXISTS", "Quote already exists for this service order", http.StatusConflict)
	case errors.Is(err, usecase.ErrQuoteNotFound):
		return pkg.NewDomainErrorSimple("QUOTE_NOT_FOUND", "Quote not found", http.StatusNotFound)
	case errors.As(err, &transitionErr):
		return pkg.NewDomainErrorSimple("QUOTE_INVALID_TRANSITION", transitionErr.Error(), http.StatusConflict)
	default:
		return pkg.NewDomainError("INTERNAL_ERROR", "An internal error occurred", err, http.StatusInternalServerError)
	}
}
