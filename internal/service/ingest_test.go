package service

import (
	"context"
	"testing"

	"fulfillment-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestOrderCopiesShopFlags(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	ingestor := NewIngestor(store, pub)
	ctx := context.Background()

	shop := store.addShop(models.Shop{UserID: 10, AutoLink: true, AutoProcess: true})

	order, err := ingestor.IngestOrder(ctx, shop.ID, WebhookOrder{
		OrderID:    "S-100",
		Email:      "customer@example.com",
		TotalPrice: decimal.RequireFromString("30.00"),
		Currency:   "EUR",
		LineItems: []WebhookLineItem{
			{ProductID: "P1", VariantID: "V1", Quantity: 2, Price: decimal.RequireFromString("15.00")},
		},
	})
	require.NoError(t, err)

	assert.True(t, order.LinkOrder)
	assert.False(t, order.MatchOrder)
	assert.True(t, order.ProcessOrder)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, int64(10), order.UserID)

	lineItems, _ := store.GetLineItemsByOrderID(ctx, order.ID)
	require.Len(t, lineItems, 1)
	assert.Equal(t, 2, lineItems[0].Quantity)

	events := pub.byType(models.EventTypeOrderReceived)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].(*models.OrderReceivedEvent).OrderID)
}

func TestIngestOrderRedeliveryIsIdempotent(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	ingestor := NewIngestor(store, pub)
	ctx := context.Background()

	shop := store.addShop(models.Shop{UserID: 10})
	payload := WebhookOrder{
		OrderID:   "S-100",
		LineItems: []WebhookLineItem{{ProductID: "P1", VariantID: "V1", Quantity: 1}},
	}

	first, err := ingestor.IngestOrder(ctx, shop.ID, payload)
	require.NoError(t, err)
	second, err := ingestor.IngestOrder(ctx, shop.ID, payload)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, pub.byType(models.EventTypeOrderReceived), 1)
	lineItems, _ := store.GetLineItemsByOrderID(ctx, first.ID)
	assert.Len(t, lineItems, 1)
}

func TestIngestOrderCancellationUnknownOrderIgnored(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	ingestor := NewIngestor(store, pub)
	ctx := context.Background()

	shop := store.addShop(models.Shop{UserID: 10})

	require.NoError(t, ingestor.IngestOrderCancellation(ctx, shop.ID, "never-seen", "customer request"))
	assert.Empty(t, pub.byType(models.EventTypeOrderCancelled))
}

func TestIngestOrderCancellationPublishes(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	ingestor := NewIngestor(store, pub)
	ctx := context.Background()

	shop := store.addShop(models.Shop{UserID: 10})
	order, err := ingestor.IngestOrder(ctx, shop.ID, WebhookOrder{
		OrderID:   "S-100",
		LineItems: []WebhookLineItem{{ProductID: "P1", VariantID: "V1", Quantity: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, ingestor.IngestOrderCancellation(ctx, shop.ID, "S-100", "customer request"))

	events := pub.byType(models.EventTypeOrderCancelled)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].(*models.OrderCancelledEvent).OrderID)
}

func TestIngestTrackingPublishes(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	ingestor := NewIngestor(store, pub)
	ctx := context.Background()

	channel := store.addChannel(models.Channel{UserID: 10})

	td, err := ingestor.IngestTracking(ctx, channel.ID, WebhookTracking{
		PurchaseID:      "P-1",
		TrackingNumber:  "TRACK-1",
		TrackingCompany: "PostNL",
	})
	require.NoError(t, err)
	assert.NotZero(t, td.ID)
	assert.Equal(t, int64(10), td.UserID)

	events := pub.byType(models.EventTypeTrackingCreated)
	require.Len(t, events, 1)
	assert.Equal(t, td.ID, events[0].(*models.TrackingCreatedEvent).TrackingID)
}

func TestIngestPurchaseCancellationPublishes(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	ingestor := NewIngestor(store, pub)
	ctx := context.Background()

	channel := store.addChannel(models.Channel{UserID: 10})

	require.NoError(t, ingestor.IngestPurchaseCancellation(ctx, channel.ID, "P-1", "out of stock"))

	events := pub.byType(models.EventTypePurchaseCancelled)
	require.Len(t, events, 1)
	ev := events[0].(*models.PurchaseCancelledEvent)
	assert.Equal(t, "P-1", ev.PurchaseID)
	assert.Equal(t, "out of stock", ev.Reason)
}
