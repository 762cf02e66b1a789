package handlers

import (
	"net/http"

	"branchqueue/internal/response"

	"github.com/gin-gonic/gin"
)

// ConnectionCounter reports live websocket connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

// Health reports liveness
// @Summary	Health check
// @Tags		system
// @Produce	json
// @Success	200	{object}	response.HealthResponse
// @Router		/healthz [get]
func Health(counter ConnectionCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.HealthResponse{
			Status:      "ok",
			Connections: counter.ConnectionCount(),
		})
	}
}
