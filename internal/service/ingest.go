package service

import (
	"context"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ingestStore interface {
	GetShopByID(ctx context.Context, id int64) (*models.Shop, error)
	GetChannelByID(ctx context.Context, id int64) (*models.Channel, error)
	GetOrderByExternalID(ctx context.Context, shopID int64, orderID string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLineItem(ctx context.Context, item *models.LineItem) error
	CreateTrackingDetail(ctx context.Context, td *models.TrackingDetail) error
}

type ingestPublisher interface {
	PublishOrderReceived(ctx context.Context, event *models.OrderReceivedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishTrackingCreated(ctx context.Context, event *models.TrackingCreatedEvent) error
	PublishPurchaseCancelled(ctx context.Context, event *models.PurchaseCancelledEvent) error
}

// WebhookOrder is the normalized order payload delivered by shop platform
// webhooks or the manual create endpoint.
type WebhookOrder struct {
	OrderID     string            `json:"order_id" binding:"required"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Address1    string            `json:"address1"`
	Address2    string            `json:"address2"`
	City        string            `json:"city"`
	Province    string            `json:"province"`
	Zip         string            `json:"zip"`
	CountryCode string            `json:"country_code"`
	Phone       string            `json:"phone"`
	TotalPrice  decimal.Decimal   `json:"total_price"`
	Currency    string            `json:"currency"`
	LineItems   []WebhookLineItem `json:"line_items" binding:"required,min=1,dive"`
}

// WebhookLineItem is one purchased line of a webhook order.
type WebhookLineItem struct {
	ProductID string          `json:"product_id" binding:"required"`
	VariantID string          `json:"variant_id" binding:"required"`
	Title     string          `json:"title"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	Price     decimal.Decimal `json:"price"`
}

// WebhookTracking is the fulfillment payload delivered by channel webhooks.
type WebhookTracking struct {
	PurchaseID      string `json:"purchase_id" binding:"required"`
	TrackingNumber  string `json:"tracking_number" binding:"required"`
	TrackingCompany string `json:"tracking_company"`
}

// Ingestor turns external webhook payloads into rows and events.
type Ingestor struct {
	store     ingestStore
	publisher ingestPublisher
	logger    *zap.Logger
}

// NewIngestor creates a new ingestor
func NewIngestor(store ingestStore, publisher ingestPublisher) *Ingestor {
	return &Ingestor{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// IngestOrder records a shop order and publishes OrderReceived. Re-delivery
// of an already ingested order returns the existing row unchanged.
func (in *Ingestor) IngestOrder(ctx context.Context, shopID int64, payload WebhookOrder) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Ingestor.IngestOrder")
	defer span.End()

	shop, err := in.store.GetShopByID(ctx, shopID)
	if err != nil {
		return nil, err
	}

	existing, err := in.store.GetOrderByExternalID(ctx, shopID, payload.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		in.logger.Debug("Order already ingested",
			zap.Int64("shop_id", shopID),
			zap.String("order_id", payload.OrderID))
		return existing, nil
	}

	order := &models.Order{
		OrderID:      payload.OrderID,
		ShopID:       shop.ID,
		UserID:       shop.UserID,
		Email:        payload.Email,
		Name:         payload.Name,
		Address1:     payload.Address1,
		Address2:     payload.Address2,
		City:         payload.City,
		Province:     payload.Province,
		Zip:          payload.Zip,
		CountryCode:  payload.CountryCode,
		Phone:        payload.Phone,
		TotalPrice:   payload.TotalPrice,
		Currency:     payload.Currency,
		LinkOrder:    shop.AutoLink,
		MatchOrder:   shop.AutoMatch,
		ProcessOrder: shop.AutoProcess,
		Status:       models.OrderStatusPending,
	}
	if err := in.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	for _, li := range payload.LineItems {
		item := &models.LineItem{
			OrderID:   order.ID,
			ProductID: li.ProductID,
			VariantID: li.VariantID,
			Title:     li.Title,
			SKU:       li.SKU,
			Quantity:  li.Quantity,
			Price:     li.Price,
		}
		if err := in.store.CreateLineItem(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to create line item: %w", err)
		}
	}

	util.OrdersReceivedTotal.Inc()
	in.logger.Info("Order ingested",
		zap.Int64("id", order.ID),
		zap.Int64("shop_id", shopID),
		zap.String("order_id", order.OrderID))

	if in.publisher != nil {
		event := &models.OrderReceivedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderReceived),
			OrderID:   order.ID,
			ShopID:    shop.ID,
			UserID:    shop.UserID,
		}
		if err := in.publisher.PublishOrderReceived(ctx, event); err != nil {
			in.logger.Warn("Failed to publish order received event", zap.Error(err))
		}
	}
	return order, nil
}

// IngestOrderCancellation publishes the cancellation reported by the shop.
// Unknown orders are ignored.
func (in *Ingestor) IngestOrderCancellation(ctx context.Context, shopID int64, externalOrderID, reason string) error {
	ctx, span := util.StartSpan(ctx, "Ingestor.IngestOrderCancellation")
	defer span.End()

	order, err := in.store.GetOrderByExternalID(ctx, shopID, externalOrderID)
	if err != nil {
		return err
	}
	if order == nil {
		in.logger.Debug("Cancellation for unknown order ignored",
			zap.Int64("shop_id", shopID),
			zap.String("order_id", externalOrderID))
		return nil
	}
	if in.publisher == nil {
		return nil
	}
	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   order.ID,
		Reason:    reason,
	}
	return in.publisher.PublishOrderCancelled(ctx, event)
}

// IngestTracking records a channel's fulfillment report and publishes
// TrackingCreated.
func (in *Ingestor) IngestTracking(ctx context.Context, channelID int64, payload WebhookTracking) (*models.TrackingDetail, error) {
	ctx, span := util.StartSpan(ctx, "Ingestor.IngestTracking")
	defer span.End()

	channel, err := in.store.GetChannelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	td := &models.TrackingDetail{
		UserID:          channel.UserID,
		PurchaseID:      payload.PurchaseID,
		TrackingNumber:  payload.TrackingNumber,
		TrackingCompany: payload.TrackingCompany,
	}
	if err := in.store.CreateTrackingDetail(ctx, td); err != nil {
		return nil, fmt.Errorf("failed to create tracking detail: %w", err)
	}
	in.logger.Info("Tracking ingested",
		zap.Int64("channel_id", channelID),
		zap.String("purchase_id", td.PurchaseID),
		zap.String("tracking_number", td.TrackingNumber))

	if in.publisher != nil {
		event := &models.TrackingCreatedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeTrackingCreated),
			TrackingID: td.ID,
			PurchaseID: td.PurchaseID,
			UserID:     channel.UserID,
		}
		if err := in.publisher.PublishTrackingCreated(ctx, event); err != nil {
			in.logger.Warn("Failed to publish tracking created event", zap.Error(err))
		}
	}
	return td, nil
}

// IngestPurchaseCancellation publishes the purchase cancellation reported by
// a channel.
func (in *Ingestor) IngestPurchaseCancellation(ctx context.Context, channelID int64, purchaseID, reason string) error {
	ctx, span := util.StartSpan(ctx, "Ingestor.IngestPurchaseCancellation")
	defer span.End()

	channel, err := in.store.GetChannelByID(ctx, channelID)
	if err != nil {
		return err
	}
	if in.publisher == nil {
		return nil
	}
	event := &models.PurchaseCancelledEvent{
		BaseEvent:  newBaseEvent(models.EventTypePurchaseCancelled),
		PurchaseID: purchaseID,
		UserID:     channel.UserID,
		Reason:     reason,
	}
	return in.publisher.PublishPurchaseCancelled(ctx, event)
}
