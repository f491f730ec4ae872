package worker

import (
	"context"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

type dedupeStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// OrderWorker consumes order and purchase events and drives the pipeline.
// Events are deduplicated through the processed_events table, so at-least-
// once delivery from the broker does not double-run an order.
type OrderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(consumer *broker.Consumer, store dedupeStore, orchestrator *service.Orchestrator) *OrderWorker {
	w := &OrderWorker{
		consumer: consumer,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderReceived(func(ctx context.Context, event *models.OrderReceivedEvent) error {
		return w.once(ctx, store, event.BaseEvent, func(ctx context.Context) error {
			return orchestrator.ProcessOrder(ctx, event.OrderID)
		})
	})
	eventHandler.OnOrderCancelled(func(ctx context.Context, event *models.OrderCancelledEvent) error {
		return w.once(ctx, store, event.BaseEvent, func(ctx context.Context) error {
			return orchestrator.CancelOrder(ctx, event.OrderID)
		})
	})
	eventHandler.OnTrackingCreated(func(ctx context.Context, event *models.TrackingCreatedEvent) error {
		return w.once(ctx, store, event.BaseEvent, func(ctx context.Context) error {
			return orchestrator.HandleTracking(ctx, event.TrackingID)
		})
	})
	eventHandler.OnPurchaseCancelled(func(ctx context.Context, event *models.PurchaseCancelledEvent) error {
		return w.once(ctx, store, event.BaseEvent, func(ctx context.Context) error {
			return orchestrator.CancelPurchase(ctx, event.PurchaseID)
		})
	})
	w.eventHandler = eventHandler
	return w
}

// Start starts the worker
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping order worker")
	return w.consumer.Close()
}

func (w *OrderWorker) once(ctx context.Context, store dedupeStore, base models.BaseEvent, fn func(context.Context) error) error {
	done, err := store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return err
	}
	if done {
		w.logger.Debug("Skipping already processed event",
			zap.String("event_id", base.EventID),
			zap.String("event_type", base.EventType))
		return nil
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return store.MarkEventProcessed(ctx, base.EventID, base.EventType)
}
