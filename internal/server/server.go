// Package server assembles the HTTP surface: the authenticated REST entry
// points into the order lifecycle, the notification inbox, push
// registration, the websocket upgrade, and operational endpoints.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amanazads/flashbites-sub000/internal/auth"
	"github.com/amanazads/flashbites-sub000/internal/orders"
	"github.com/amanazads/flashbites-sub000/internal/realtime"
	"github.com/amanazads/flashbites-sub000/repository"
)

// Deps carries everything the router needs.
type Deps struct {
	JWTSecret     string
	Orders        *orders.Service
	Notifications repository.NotificationRepositoryI
	Subscriptions repository.SubscriptionRepositoryI
	Realtime      *realtime.Handler
}

// New builds the gin engine with all routes registered.
func New(d Deps) *gin.Engine {
	r := gin.Default()
	r.Use(PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The websocket handler does its own handshake auth: browser clients
	// cannot set headers on the upgrade request.
	r.GET("/ws", gin.WrapH(d.Realtime))

	h := &handlers{
		orders:        d.Orders,
		notifications: d.Notifications,
		subscriptions: d.Subscriptions,
	}

	api := r.Group("/api")
	api.Use(auth.Middleware(d.JWTSecret))
	{
		api.POST("/orders", h.placeOrder)
		api.GET("/orders", h.listOrders)
		api.GET("/orders/:id", h.getOrder)
		api.PUT("/orders/:id/status", h.updateStatus)
		api.POST("/orders/:id/cancel", h.cancelOrder)

		api.GET("/deliveries/available", h.listAvailable)
		api.POST("/orders/:id/claim", h.claimDelivery)
		api.POST("/orders/:id/deliver", h.markDelivered)
		api.POST("/orders/:id/release", h.releaseClaim)

		api.GET("/notifications", h.listNotifications)
		api.GET("/notifications/unread-count", h.unreadCount)
		api.PUT("/notifications/read-all", h.markAllNotificationsRead)
		api.PUT("/notifications/:id/read", h.markNotificationRead)
		api.DELETE("/notifications/:id", h.deleteNotification)

		api.POST("/push-subscriptions", h.registerPushSubscription)
		api.DELETE("/push-subscriptions", h.unregisterPushSubscription)
	}

	return r
}
