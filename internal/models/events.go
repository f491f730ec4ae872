package models

import "time"

// Event types
const (
	EventTypeOrderReceived     = "ORDER_RECEIVED"
	EventTypeOrderCancelled    = "ORDER_CANCELLED"
	EventTypeOrderPlaced       = "ORDER_PLACED"
	EventTypeOrderCompleted    = "ORDER_COMPLETED"
	EventTypeTrackingCreated   = "TRACKING_CREATED"
	EventTypePurchaseCancelled = "PURCHASE_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderReceivedEvent published when an order is ingested from a shop webhook
// or created manually. The worker picks it up and runs the pipeline.
type OrderReceivedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
	ShopID  int64 `json:"shop_id"`
	UserID  int64 `json:"user_id"`
}

// OrderCancelledEvent published when the shop reports a cancellation.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

// OrderPlacedEvent published when every basket of an order has been settled
// and the order moved to AWAITING.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID  int64   `json:"order_id"`
	UserID   int64   `json:"user_id"`
	Channels []int64 `json:"channels"`
}

// OrderCompletedEvent published when the last tracked cart item closes out
// the order.
type OrderCompletedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

// TrackingCreatedEvent published when a channel reports fulfillment.
type TrackingCreatedEvent struct {
	BaseEvent
	TrackingID int64  `json:"tracking_id"`
	PurchaseID string `json:"purchase_id"`
	UserID     int64  `json:"user_id"`
}

// PurchaseCancelledEvent published when a channel cancels a purchase.
type PurchaseCancelledEvent struct {
	BaseEvent
	PurchaseID string `json:"purchase_id"`
	UserID     int64  `json:"user_id"`
	Reason     string `json:"reason,omitempty"`
}
