package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amanazads/flashbites-sub000/internal/auth"
	"github.com/amanazads/flashbites-sub000/internal/orders"
	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

type handlers struct {
	orders        *orders.Service
	notifications repository.NotificationRepositoryI
	subscriptions repository.SubscriptionRepositoryI
}

// writeOrderError maps the lifecycle error taxonomy onto HTTP statuses.
func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrAlreadyAssigned):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrNotAssignedToOrder):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrInvalidState),
		errors.Is(err, orders.ErrNotEligible),
		errors.Is(err, orders.ErrCancelNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return 0, false
	}
	return id, true
}

func (h *handlers) placeOrder(c *gin.Context) {
	ok := false
	defer func() { recordOrderOperation("place", ok) }()
	p, allowed := auth.RequireRole(c, models.RoleCustomer)
	if !allowed {
		return
	}

	var req struct {
		RestaurantID int64   `json:"restaurant_id" binding:"required"`
		Subtotal     float64 `json:"subtotal" binding:"required"`
		DeliveryFee  float64 `json:"delivery_fee"`
		Tax          float64 `json:"tax"`
		Discount     float64 `json:"discount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.orders.PlaceOrder(c.Request.Context(), orders.PlaceOrderInput{
		UserID:       p.UserID,
		RestaurantID: req.RestaurantID,
		Subtotal:     req.Subtotal,
		DeliveryFee:  req.DeliveryFee,
		Tax:          req.Tax,
		Discount:     req.Discount,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	ok = true
	c.JSON(http.StatusCreated, o)
}

func (h *handlers) listOrders(c *gin.Context) {
	p, found := auth.PrincipalFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	list, err := h.orders.ListForUser(c.Request.Context(), p.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) getOrder(c *gin.Context) {
	id, valid := orderIDParam(c)
	if !valid {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) updateStatus(c *gin.Context) {
	ok := false
	defer func() { recordOrderOperation("update_status", ok) }()
	p, allowed := auth.RequireRole(c, models.RoleRestaurantOwner, models.RoleAdmin)
	if !allowed {
		return
	}
	id, valid := orderIDParam(c)
	if !valid {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,oneof=pending confirmed preparing ready out_for_delivery delivered cancelled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), id, models.OrderStatus(req.Status), p.Role)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	ok = true
	c.JSON(http.StatusOK, o)
}

func (h *handlers) cancelOrder(c *gin.Context) {
	ok := false
	defer func() { recordOrderOperation("cancel", ok) }()
	p, found := auth.PrincipalFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	id, valid := orderIDParam(c)
	if !valid {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req) // body optional

	o, err := h.orders.Cancel(c.Request.Context(), id, p.Role, req.Reason)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	ok = true
	c.JSON(http.StatusOK, o)
}

func (h *handlers) listAvailable(c *gin.Context) {
	if _, allowed := auth.RequireRole(c, models.RoleDeliveryPartner); !allowed {
		return
	}
	list, err := h.orders.ListAvailable(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) claimDelivery(c *gin.Context) {
	ok := false
	defer func() { recordOrderOperation("claim", ok) }()
	p, allowed := auth.RequireRole(c, models.RoleDeliveryPartner)
	if !allowed {
		return
	}
	id, valid := orderIDParam(c)
	if !valid {
		return
	}
	o, err := h.orders.ClaimDelivery(c.Request.Context(), id, p.UserID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	ok = true
	c.JSON(http.StatusOK, o)
}

func (h *handlers) markDelivered(c *gin.Context) {
	ok := false
	defer func() { recordOrderOperation("deliver", ok) }()
	p, allowed := auth.RequireRole(c, models.RoleDeliveryPartner)
	if !allowed {
		return
	}
	id, valid := orderIDParam(c)
	if !valid {
		return
	}
	o, err := h.orders.MarkDelivered(c.Request.Context(), id, p.UserID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	ok = true
	c.JSON(http.StatusOK, o)
}

func (h *handlers) releaseClaim(c *gin.Context) {
	ok := false
	defer func() { recordOrderOperation("release", ok) }()
	p, allowed := auth.RequireRole(c, models.RoleDeliveryPartner)
	if !allowed {
		return
	}
	id, valid := orderIDParam(c)
	if !valid {
		return
	}
	o, err := h.orders.ReleaseClaim(c.Request.Context(), id, p.UserID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	ok = true
	c.JSON(http.StatusOK, o)
}

func (h *handlers) listNotifications(c *gin.Context) {
	p, found := auth.PrincipalFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.notifications.ListByRecipient(c.Request.Context(), p.UserID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) unreadCount(c *gin.Context) {
	p, found := auth.PrincipalFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	n, err := h.notifications.UnreadCount(c.Request.Context(), p.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *handlers) markNotificationRead(c *gin.Context) {
	p, found := auth.PrincipalFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), p.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}

func (h *handlers) markAllNotificationsRead(c *gin.Context) {
	p, found := auth.PrincipalFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	if err := h.notifications.MarkAllRead(c.Request.Context(), p.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked all read"})
}

func (h *handlers) deleteNotification(c *gin.Context) {
	p, found := auth.PrincipalFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), c.Param("id"), p.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *handlers) registerPushSubscription(c *gin.Context) {
	p, found := auth.PrincipalFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub := &models.PushSubscription{
		UserID:   p.UserID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.subscriptions.Save(c.Request.Context(), sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *handlers) unregisterPushSubscription(c *gin.Context) {
	p, found := auth.PrincipalFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.subscriptions.DeactivateByEndpoint(c.Request.Context(), p.UserID, req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unsubscribed"})
}
