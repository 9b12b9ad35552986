package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weiawesome/wes-io-messenger/internal/hub"
	"github.com/weiawesome/wes-io-messenger/internal/metrics"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
)

// NewRouter wires middleware, health, metrics, the REST API and the
// websocket endpoint onto one engine.
func NewRouter(h *hub.Hub, api *Handler, ws *WSHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(log.L()))
	r.Use(metrics.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": h.ConnectionCount(),
			"online":      len(h.OnlineUserIDs()),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api.RegisterRoutes(r)
	ws.RegisterRoutes(r)
	return r
}
