package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ComponentStatus string

const (
	StatusUp   ComponentStatus = "up"
	StatusDown ComponentStatus = "down"
)

type HealthStatus struct {
	Status     string `json:"status"`
	Components struct {
		Postgres ComponentStatus `json:"postgres"`
		Weaviate ComponentStatus `json:"weaviate"`
		Ollama   ComponentStatus `json:"ollama"`
	} `json:"components"`
}

// CheckHealth godoc
// @Summary Check system health status
// @Tags system
// @Produce json
// @Success 200 {object} HealthStatus
// @Router /health [get]
func (h *Handler) CheckHealth(c *gin.Context) {
	ctx := c.Request.Context()

	status := &HealthStatus{Status: "healthy"}
	status.Components.Postgres = StatusDown
	status.Components.Weaviate = StatusDown
	status.Components.Ollama = StatusDown

	if err := h.pinger.Ping(); err == nil {
		status.Components.Postgres = StatusUp
	}

	if h.weaviateSDK.Ready(ctx) {
		status.Components.Weaviate = StatusUp
	}

	if _, err := h.ollamaClient.Models(ctx); err == nil {
		status.Components.Ollama = StatusUp
	}

	if status.Components.Postgres == StatusDown ||
		status.Components.Weaviate == StatusDown ||
		status.Components.Ollama == StatusDown {
		status.Status = "unhealthy"
	}

	sendJSON(c, http.StatusOK, status)
}
