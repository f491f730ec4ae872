package api

import (
	"net/http"
	"time"

	"fulfillment-service/internal/service"

	"github.com/gin-gonic/gin"
)

// Platforms sign webhook deliveries with this header. Verification of the
// signature belongs to the platform app layer; here an absent header is
// rejected outright.
const hmacHeader = "X-Webhook-Hmac-Sha256"

// Platforms repeat a delivery until it is acknowledged and tag every attempt
// with the same delivery id.
const deliveryIDHeader = "X-Webhook-Id"

const deliveryKeyTTL = 24 * time.Hour

func registerWebhookRoutes(router *gin.Engine, h *Handler) {
	shop := router.Group("/webhooks/shop/:shopID", requireHmacHeader(), h.dedupeDelivery())
	{
		shop.POST("/orders/create", h.shopOrderCreated)
		shop.POST("/orders/cancelled", h.shopOrderCancelled)
	}
	channel := router.Group("/webhooks/channel/:channelID", requireHmacHeader(), h.dedupeDelivery())
	{
		channel.POST("/tracking/create", h.channelTrackingCreated)
		channel.POST("/purchases/cancel", h.channelPurchaseCancelled)
	}
}

func requireHmacHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(hmacHeader) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing webhook signature header",
			})
			return
		}
		c.Next()
	}
}

// dedupeDelivery drops repeated webhook deliveries by their delivery id.
// A redis failure lets the delivery through; the ingestion path stays
// idempotent on its own.
func (h *Handler) dedupeDelivery() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(deliveryIDHeader)
		if id == "" || h.keys == nil {
			c.Next()
			return
		}
		key := "webhook:" + id
		seen, err := h.keys.CheckIdempotencyKey(c.Request.Context(), key)
		if err == nil && seen {
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
		c.Next()
		if c.Writer.Status() < http.StatusBadRequest {
			_ = h.keys.SetIdempotencyKey(c.Request.Context(), key, 1, deliveryKeyTTL)
		}
	}
}

// shopOrderCreated ingests an order reported by a shop platform webhook.
func (h *Handler) shopOrderCreated(c *gin.Context) {
	shopID, ok := paramInt64(c, "shopID")
	if !ok {
		return
	}
	var payload service.WebhookOrder
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid webhook payload",
			"details": err.Error(),
		})
		return
	}

	order, err := h.ingestor.IngestOrder(c.Request.Context(), shopID, payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": order.ID})
}

type orderCancelledPayload struct {
	OrderID string `json:"order_id" binding:"required"`
	Reason  string `json:"reason"`
}

// shopOrderCancelled ingests an order cancellation reported by a shop.
func (h *Handler) shopOrderCancelled(c *gin.Context) {
	shopID, ok := paramInt64(c, "shopID")
	if !ok {
		return
	}
	var payload orderCancelledPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid webhook payload",
			"details": err.Error(),
		})
		return
	}

	if err := h.ingestor.IngestOrderCancellation(c.Request.Context(), shopID, payload.OrderID, payload.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// channelTrackingCreated ingests fulfillment tracking reported by a channel.
func (h *Handler) channelTrackingCreated(c *gin.Context) {
	channelID, ok := paramInt64(c, "channelID")
	if !ok {
		return
	}
	var payload service.WebhookTracking
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid webhook payload",
			"details": err.Error(),
		})
		return
	}

	td, err := h.ingestor.IngestTracking(c.Request.Context(), channelID, payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": td.ID})
}

type purchaseCancelledPayload struct {
	PurchaseID string `json:"purchase_id" binding:"required"`
	Reason     string `json:"reason"`
}

// channelPurchaseCancelled ingests a purchase cancellation reported by a
// channel.
func (h *Handler) channelPurchaseCancelled(c *gin.Context) {
	channelID, ok := paramInt64(c, "channelID")
	if !ok {
		return
	}
	var payload purchaseCancelledPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid webhook payload",
			"details": err.Error(),
		})
		return
	}

	if err := h.ingestor.IngestPurchaseCancellation(c.Request.Context(), channelID, payload.PurchaseID, payload.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
