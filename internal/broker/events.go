package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderReceived publishes OrderReceived event
func (ep *EventPublisher) PublishOrderReceived(ctx context.Context, event *models.OrderReceivedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderCancelled publishes OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishTrackingCreated publishes TrackingCreated event
func (ep *EventPublisher) PublishTrackingCreated(ctx context.Context, event *models.TrackingCreatedEvent) error {
	key := fmt.Sprintf("purchase-%s", event.PurchaseID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPurchaseCancelled publishes PurchaseCancelled event
func (ep *EventPublisher) PublishPurchaseCancelled(ctx context.Context, event *models.PurchaseCancelledEvent) error {
	key := fmt.Sprintf("purchase-%s", event.PurchaseID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onOrderReceived     func(context.Context, *models.OrderReceivedEvent) error
	onOrderCancelled    func(context.Context, *models.OrderCancelledEvent) error
	onTrackingCreated   func(context.Context, *models.TrackingCreatedEvent) error
	onPurchaseCancelled func(context.Context, *models.PurchaseCancelledEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderReceived registers a handler for OrderReceived events
func (eh *EventHandler) OnOrderReceived(handler func(context.Context, *models.OrderReceivedEvent) error) {
	eh.onOrderReceived = handler
}

// OnOrderCancelled registers a handler for OrderCancelled events
func (eh *EventHandler) OnOrderCancelled(handler func(context.Context, *models.OrderCancelledEvent) error) {
	eh.onOrderCancelled = handler
}

// OnTrackingCreated registers a handler for TrackingCreated events
func (eh *EventHandler) OnTrackingCreated(handler func(context.Context, *models.TrackingCreatedEvent) error) {
	eh.onTrackingCreated = handler
}

// OnPurchaseCancelled registers a handler for PurchaseCancelled events
func (eh *EventHandler) OnPurchaseCancelled(handler func(context.Context, *models.PurchaseCancelledEvent) error) {
	eh.onPurchaseCancelled = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderReceived:
		if eh.onOrderReceived != nil {
			var event models.OrderReceivedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderReceived event: %w", err)
			}
			return eh.onOrderReceived(ctx, &event)
		}

	case models.EventTypeOrderCancelled:
		if eh.onOrderCancelled != nil {
			var event models.OrderCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCancelled event: %w", err)
			}
			return eh.onOrderCancelled(ctx, &event)
		}

	case models.EventTypeTrackingCreated:
		if eh.onTrackingCreated != nil {
			var event models.TrackingCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TrackingCreated event: %w", err)
			}
			return eh.onTrackingCreated(ctx, &event)
		}

	case models.EventTypePurchaseCancelled:
		if eh.onPurchaseCancelled != nil {
			var event models.PurchaseCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseCancelled event: %w", err)
			}
			return eh.onPurchaseCancelled(ctx, &event)
		}

	default:
		logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
