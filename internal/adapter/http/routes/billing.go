package routes

import (
	"mecanica_billing/internal/adapter/http/handlers"

	"github.com/gin-gonic/gin"
)

const (
	PathQuotes     = "/quotes"
	PathPayments   = "/payments"
	PathMonitoring = "/monitoring"
)

func addBillingRoutes(rg *gin.RouterGroup, quoteHandler *handlers.QuoteHandler, paymentHandler *handlers.PaymentHandler, monitoringHandler *handlers.MonitoringHandler) {
	quotes := rg.Group(PathQuotes)
	{
		quotes.POST("", quoteHandler.CreateQuote)
		quotes.PATCH("/approve", quoteHandler.ApproveQuote)
		quotes.PATCH("/reject", quoteHandler.RejectQuote)
		quotes.PATCH("/cancel", quoteHandler.CancelQuote)
		quotes.POST("/:quote_id/items", quoteHandler.AddQuoteItem)
		quotes.GET("/:quote_id", quoteHandler.GetQuoteByID)
		quotes.GET("/service-order/:service_order_id", quoteHandler.GetQuoteByServiceOrderID)
	}

	payments := rg.Group(PathPayments)
	{
		payments.POST("", paymentHandler.RegisterPayment)
		payments.POST("/webhook", paymentHandler.HandleWebhook)
		payments.POST("/:payment_id/check", paymentHandler.CheckPaymentStatus)
		payments.PATCH("/:payment_id/confirm", paymentHandler.ConfirmPayment)
		payments.PATCH("/:payment_id/refund", paymentHandler.RefundPayment)
		payments.PATCH("/:payment_id/cancel", paymentHandler.CancelPayment)
		payments.GET("/:payment_id", paymentHandler.GetPaymentByID)
		payments.GET("/quote/:quote_id", paymentHandler.ListPaymentsByQuoteID)
	}

	monitoring := rg.Group(PathMonitoring)
	{
		monitoring.GET("/saga", monitoringHandler.GetSagaMetrics)
	}
}
