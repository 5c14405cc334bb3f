package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mecanica_billing/internal/adapter/http/handlers/mocks"
	"mecanica_billing/internal/domain/entities"
	"mecanica_billing/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
)

func newQuoteRouter(h *QuoteHandler) *gin.Engine {
	r := gin.New()
	r.POST("/v1/quotes", h.CreateQuote)
	r.PATCH("/v1/quotes/approve", h.ApproveQuote)
	r.PATCH("/v1/quotes/reject", h.RejectQuote)
	r.PATCH("/v1/quotes/cancel", h.CancelQuote)
	r.POST("/v1/quotes/:quote_id/items", h.AddQuoteItem)
	r.GET("/v1/quotes/:quote_id", h.GetQuoteByID)
	r.GET("/v1/quotes/service-order/:service_order_id", h.GetQuoteByServiceOrderID)
	return r
}

func TestQuoteHandler_CreateQuote(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("invalid payload", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		req := httptest.NewRequest(http.MethodPost, "/v1/quotes", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("duplicate quote", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		uc.EXPECT().CreateQuote(gomock.Any(), "os-1", gomock.Any(), gomock.Any()).
			Return(entities.Quote{}, usecase.ErrQuoteAlreadyExists)

		req := httptest.NewRequest(http.MethodPost, "/v1/quotes", bytes.NewBufferString(`{"service_order_id":"os-1"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
	})

	t.Run("success with items", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		uc.EXPECT().CreateQuote(gomock.Any(), "os-1", "first visit", gomock.Len(1)).
			DoAndReturn(func(_ context.Context, serviceOrderID, note string, items []entities.QuoteItem) (entities.Quote, error) {
				if items[0].Description != "Oil change" {
					t.Fatalf("unexpected item %+v", items[0])
				}
				return entities.NewQuote(serviceOrderID, note, items)
			})

		body := `{"service_order_id":"os-1","note":"first visit","items":[{"kind":"service","description":"Oil change","quantity":1,"unit_price":"120.00"}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/quotes", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
		}
		var resp map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if resp["service_order_id"] != "os-1" || resp["status"] != "pending" {
			t.Fatalf("unexpected response %v", resp)
		}
	})
}

func TestQuoteHandler_Decisions(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("approve success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		uc.EXPECT().ApproveByServiceOrderID(gomock.Any(), "os-1", "customer", "").
			Return(entities.Quote{ID: "q-1", ServiceOrderID: "os-1", Status: entities.QuoteStatusApproved}, nil)

		req := httptest.NewRequest(http.MethodPatch, "/v1/quotes/approve", bytes.NewBufferString(`{"service_order_id":"os-1"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("reject for unknown order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		uc.EXPECT().RejectByServiceOrderID(gomock.Any(), "os-404", gomock.Any(), gomock.Any()).
			Return(entities.Quote{}, usecase.ErrQuoteNotFound)

		req := httptest.NewRequest(http.MethodPatch, "/v1/quotes/reject", bytes.NewBufferString(`{"service_order_id":"os-404"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("cancel on terminal quote", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		uc.EXPECT().CancelByServiceOrderID(gomock.Any(), "os-1", gomock.Any(), gomock.Any()).
			Return(entities.Quote{}, &entities.InvalidTransitionError{Aggregate: "quote", From: "rejected", To: "cancelled"})

		req := httptest.NewRequest(http.MethodPatch, "/v1/quotes/cancel", bytes.NewBufferString(`{"service_order_id":"os-1"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if resp["code"] != "QUOTE_INVALID_TRANSITION" {
			t.Fatalf("unexpected error code %q", resp["code"])
		}
	})
}

func TestQuoteHandler_AddQuoteItem(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("invalid item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		body := `{"kind":"part","description":"","quantity":1,"unit_price":"10"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/quotes/q-1/items", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		uc.EXPECT().AddItem(gomock.Any(), "q-1", gomock.Any()).
			Return(entities.Quote{ID: "q-1", Status: entities.QuoteStatusPending, Total: decimal.NewFromInt(230)}, nil)

		body := `{"kind":"part","description":"Brake pads","quantity":2,"unit_price":"55.00"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/quotes/q-1/items", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
		}
	})
}

func TestQuoteHandler_Get(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("by id not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		uc.EXPECT().GetByID(gomock.Any(), "q-404").Return(entities.Quote{}, usecase.ErrQuoteNotFound)

		req := httptest.NewRequest(http.MethodGet, "/v1/quotes/q-404", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("by service order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		uc.EXPECT().GetByServiceOrderID(gomock.Any(), "os-1").
			Return(entities.Quote{ID: "q-1", ServiceOrderID: "os-1", Status: entities.QuoteStatusPending}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/quotes/service-order/os-1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("repository failure maps to 500", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		uc := mocks.NewMockIQuoteUseCase(ctrl)
		r := newQuoteRouter(NewQuoteHandler(uc))

		uc.EXPECT().GetByID(gomock.Any(), "q-1").Return(entities.Quote{}, errors.New("dynamodb unavailable"))

		req := httptest.NewRequest(http.MethodGet, "/v1/quotes/q-1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})
}
