package handlers

import (
	"net/http"

	"mecanica_billing/internal/infrastructure/messaging"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler exposes saga messaging counters for operators.

type MonitoringHandler struct {
	metrics *messaging.Metrics
}

func NewMonitoringHandler(metrics *messaging.Metrics) *MonitoringHandler {
	return &MonitoringHandler{metrics: metrics}
}

func (h *MonitoringHandler) GetSagaMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
