package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderReader is the read surface the API needs from the store.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetLineItemsByOrderID(ctx context.Context, orderID int64) ([]models.LineItem, error)
	GetCartItemsByOrderID(ctx context.Context, orderID int64) ([]models.CartItem, error)
}

// deliveryKeys is the idempotency-key surface backing webhook delivery
// dedupe. *redisclient.Client satisfies it; nil disables the dedupe.
type deliveryKeys interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Handler contains HTTP handlers
type Handler struct {
	store        OrderReader
	ingestor     *service.Ingestor
	orchestrator *service.Orchestrator
	matcher      *service.Matcher
	webhooks     *service.WebhookService
	keys         deliveryKeys
}

// NewHandler creates a new HTTP handler
func NewHandler(store OrderReader, ingestor *service.Ingestor, orchestrator *service.Orchestrator, matcher *service.Matcher, webhooks *service.WebhookService, keys deliveryKeys) *Handler {
	return &Handler{
		store:        store,
		ingestor:     ingestor,
		orchestrator: orchestrator,
		matcher:      matcher,
		webhooks:     webhooks,
		keys:         keys,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/match", h.matchOrder)
		v1.POST("/orders/:id/cart", h.addMatchToCart)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/place", h.placeOrders)
		v1.POST("/purchases/:purchaseID/cancel", h.cancelPurchase)
		v1.POST("/matches", h.upsertMatch)
		v1.POST("/shops/:shopID/webhooks", h.createShopWebhook)
		v1.GET("/shops/:shopID/webhooks", h.getShopWebhooks)
		v1.DELETE("/shops/:shopID/webhooks/:webhookID", h.deleteShopWebhook)
		v1.POST("/channels/:channelID/webhooks", h.createChannelWebhook)
		v1.GET("/channels/:channelID/webhooks", h.getChannelWebhooks)
		v1.DELETE("/channels/:channelID/webhooks/:webhookID", h.deleteChannelWebhook)
	}

	registerWebhookRoutes(router, h)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type createOrderRequest struct {
	ShopID int64                `json:"shop_id" binding:"required"`
	Order  service.WebhookOrder `json:"order" binding:"required"`
}

// createOrder ingests an order through the API instead of a webhook.
func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.ingestor.IngestOrder(c.Request.Context(), req.ShopID, req.Order)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create order",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, order)
}

// listOrders returns a user's orders, newest first.
func (h *Handler) listOrders(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	orders, err := h.store.GetOrdersByUserID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	order, err := h.store.GetOrderByID(ctx, orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Order not found",
			"details": err.Error(),
		})
		return
	}
	lineItems, err := h.store.GetLineItemsByOrderID(ctx, orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	cartItems, err := h.store.GetCartItemsByOrderID(ctx, orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":      order,
		"line_items": lineItems,
		"cart_items": cartItems,
	})
}

// matchOrder resolves and, when flagged, places a single order.
func (h *Handler) matchOrder(c *gin.Context) {
	orderID, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	if err := h.orchestrator.MatchOrder(c.Request.Context(), orderID); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "matched"})
}

// addMatchToCart resolves an order into its cart without placing.
func (h *Handler) addMatchToCart(c *gin.Context) {
	orderID, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	if err := h.orchestrator.AddMatchToCart(c.Request.Context(), orderID); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cart updated"})
}

// cancelOrder cancels an order and its unplaced cart items.
func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	if err := h.orchestrator.CancelOrder(c.Request.Context(), orderID); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

type placeOrdersRequest struct {
	OrderIDs []int64 `json:"order_ids" binding:"required,min=1"`
}

// placeOrders forces placement of the given orders, reporting per-order
// outcomes.
func (h *Handler) placeOrders(c *gin.Context) {
	var req placeOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	results := h.orchestrator.PlaceOrders(c.Request.Context(), req.OrderIDs)
	out := make(map[string]string, len(results))
	failed := false
	for id, err := range results {
		key := strconv.FormatInt(id, 10)
		if err != nil {
			out[key] = err.Error()
			failed = true
		} else {
			out[key] = "ok"
		}
	}
	status := http.StatusOK
	if failed {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"results": out})
}

// cancelPurchase cancels every cart item tied to a purchase.
func (h *Handler) cancelPurchase(c *gin.Context) {
	purchaseID := c.Param("purchaseID")
	if purchaseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid purchase ID"})
		return
	}
	if err := h.orchestrator.CancelPurchase(c.Request.Context(), purchaseID); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

type upsertMatchRequest struct {
	UserID  int64              `json:"user_id" binding:"required"`
	Inputs  []service.ItemSpec `json:"inputs" binding:"required,min=1,dive"`
	Outputs []service.ItemSpec `json:"outputs" binding:"required,min=1,dive"`
}

// upsertMatch creates a match or replaces the outputs of the match with the
// same input set.
func (h *Handler) upsertMatch(c *gin.Context) {
	var req upsertMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	match, err := h.matcher.UpsertMatch(c.Request.Context(), req.UserID, req.Inputs, req.Outputs)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

type createWebhookRequest struct {
	Topic string `json:"topic" binding:"required"`
}

func (h *Handler) createShopWebhook(c *gin.Context) {
	shopID, ok := paramInt64(c, "shopID")
	if !ok {
		return
	}
	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	hook, err := h.webhooks.CreateShopWebhook(c.Request.Context(), shopID, req.Topic)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hook)
}

func (h *Handler) getShopWebhooks(c *gin.Context) {
	shopID, ok := paramInt64(c, "shopID")
	if !ok {
		return
	}
	hooks, err := h.webhooks.GetShopWebhooks(c.Request.Context(), shopID)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

func (h *Handler) deleteShopWebhook(c *gin.Context) {
	shopID, ok := paramInt64(c, "shopID")
	if !ok {
		return
	}
	if err := h.webhooks.DeleteShopWebhook(c.Request.Context(), shopID, c.Param("webhookID")); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) createChannelWebhook(c *gin.Context) {
	channelID, ok := paramInt64(c, "channelID")
	if !ok {
		return
	}
	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	hook, err := h.webhooks.CreateChannelWebhook(c.Request.Context(), channelID, req.Topic)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hook)
}

func (h *Handler) getChannelWebhooks(c *gin.Context) {
	channelID, ok := paramInt64(c, "channelID")
	if !ok {
		return
	}
	hooks, err := h.webhooks.GetChannelWebhooks(c.Request.Context(), channelID)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

func (h *Handler) deleteChannelWebhook(c *gin.Context) {
	channelID, ok := paramInt64(c, "channelID")
	if !ok {
		return
	}
	if err := h.webhooks.DeleteChannelWebhook(c.Request.Context(), channelID, c.Param("webhookID")); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// serviceError maps service errors to HTTP statuses.
func (h *Handler) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDuplicateMatch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOrderBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
