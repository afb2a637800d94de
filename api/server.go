package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches the WebSocket endpoint and operational routes to a
// gin engine. metricsHandler is optional; without it no metrics route is
// exposed.
func RegisterRoutes(r *gin.Engine, hub *Hub, metricsHandler http.Handler) {
	r.GET("/ws", hub.HandleWS)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
}
