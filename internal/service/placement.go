package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fulfillment-service/internal/adapter"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type placementStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetShopByID(ctx context.Context, id int64) (*models.Shop, error)
	GetChannelByID(ctx context.Context, id int64) (*models.Channel, error)
	GetShopPlatform(ctx context.Context, id int64) (*models.Platform, error)
	GetChannelPlatform(ctx context.Context, id int64) (*models.Platform, error)
	GetLineItemsByOrderID(ctx context.Context, orderID int64) ([]models.LineItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	SetOrderError(ctx context.Context, orderID int64, errText string) error
	GetCartItemsByOrderID(ctx context.Context, orderID int64) ([]models.CartItem, error)
	GetPendingCartItemsByOrderID(ctx context.Context, orderID int64) ([]models.CartItem, error)
	CountPendingCartItems(ctx context.Context, orderID int64) (int, error)
	CountUntrackedCartItems(ctx context.Context, orderID int64) (int, error)
	SetCartItemsPurchase(ctx context.Context, ids []int64, purchaseID, url string) error
	SetCartItemsError(ctx context.Context, ids []int64, errText string) error
	CancelCartItemsByOrder(ctx context.Context, orderID int64) error
	CancelCartItemsByPurchase(ctx context.Context, purchaseID string) ([]int64, error)
	SetCartItemsTracking(ctx context.Context, purchaseID string, trackingID int64) ([]int64, error)
	CountLinksByShopID(ctx context.Context, shopID int64) (int, error)
	GetTrackingDetailByID(ctx context.Context, id int64) (*models.TrackingDetail, error)
}

// errResolutionHalted signals that a routing or matching failure was
// recorded on the order. The pipeline stops there; the order stays PENDING
// so the failure can be revisited.
var errResolutionHalted = errors.New("resolution failure recorded on order")

// orderEventPublisher is the slice of the event publisher the orchestrator
// needs. A nil publisher disables events, used in tests.
type orderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
}

// Orchestrator drives an order through the pipeline: routing or match
// resolution into cart items, placement of each channel's basket, and the
// tracking-driven transition to COMPLETE.
type Orchestrator struct {
	store     placementStore
	gateway   Gateway
	matcher   *Matcher
	router    *LinkRouter
	cart      *CartAggregator
	publisher orderEventPublisher
	locker    Locker
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewOrchestrator creates a new placement orchestrator
func NewOrchestrator(store placementStore, gateway Gateway, matcher *Matcher, router *LinkRouter, cart *CartAggregator, publisher orderEventPublisher, locker Locker, lockTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		store:     store,
		gateway:   gateway,
		matcher:   matcher,
		router:    router,
		cart:      cart,
		publisher: publisher,
		locker:    locker,
		lockTTL:   lockTTL,
		logger:    util.GetLogger(),
	}
}

// ProcessOrder runs the automatic pipeline for an order. Routing and
// matching honor the order's link/match flags; placement only happens when
// the order's process flag is set.
func (o *Orchestrator) ProcessOrder(ctx context.Context, orderID int64) error {
	return o.processOrder(ctx, orderID, false)
}

// PlaceOrders places the given orders regardless of their process flag.
// Each order fails or succeeds on its own.
func (o *Orchestrator) PlaceOrders(ctx context.Context, orderIDs []int64) map[int64]error {
	results := make(map[int64]error, len(orderIDs))
	for _, id := range orderIDs {
		results[id] = o.processOrder(ctx, id, true)
	}
	return results
}

func (o *Orchestrator) processOrder(ctx context.Context, orderID int64, force bool) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.processOrder")
	defer span.End()

	release, err := o.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer release()

	order, err := o.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusComplete {
		o.logger.Debug("Skipping terminal order",
			zap.Int64("order_id", orderID),
			zap.String("status", order.Status))
		return nil
	}

	shop, err := o.store.GetShopByID(ctx, order.ShopID)
	if err != nil {
		return err
	}

	linkCount, err := o.store.CountLinksByShopID(ctx, shop.ID)
	if err != nil {
		return err
	}

	var resolveErr error
	switch {
	case order.LinkOrder && linkCount > 0:
		resolveErr = o.routeLinks(ctx, order, shop)
	case order.MatchOrder:
		resolveErr = o.materializeFromMatches(ctx, order)
	}
	if errors.Is(resolveErr, errResolutionHalted) {
		return nil
	}
	if resolveErr != nil {
		return resolveErr
	}

	if !order.ProcessOrder && !force {
		o.logger.Debug("Order not flagged for placement", zap.Int64("order_id", orderID))
		return nil
	}
	return o.place(ctx, order)
}

// MatchOrder resolves the order through the match registry and, when the
// order is flagged for processing, places the resulting cart.
func (o *Orchestrator) MatchOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.MatchOrder")
	defer span.End()

	release, err := o.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer release()

	order, err := o.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusComplete {
		return fmt.Errorf("order %d is %s", orderID, order.Status)
	}
	if err := o.materializeFromMatches(ctx, order); err != nil {
		if errors.Is(err, errResolutionHalted) {
			return nil
		}
		return err
	}
	if !order.ProcessOrder {
		return nil
	}
	return o.place(ctx, order)
}

// AddMatchToCart resolves the order through the match registry without
// placing anything.
func (o *Orchestrator) AddMatchToCart(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.AddMatchToCart")
	defer span.End()

	release, err := o.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer release()

	order, err := o.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusComplete {
		return fmt.Errorf("order %d is %s", orderID, order.Status)
	}
	if err := o.materializeFromMatches(ctx, order); err != nil && !errors.Is(err, errResolutionHalted) {
		return err
	}
	return nil
}

// CancelOrder moves the order to CANCELLED and cancels every cart item that
// has not been purchased yet. Placed purchases are left for the channel side
// to cancel.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.CancelOrder")
	defer span.End()

	release, err := o.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer release()

	order, err := o.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusCancelled {
		return nil
	}
	if err := o.store.CancelCartItemsByOrder(ctx, orderID); err != nil {
		return err
	}
	if err := o.store.UpdateOrderStatus(ctx, orderID, models.OrderStatusCancelled); err != nil {
		return err
	}
	util.OrdersCancelledTotal.Inc()
	o.logger.Info("Order cancelled", zap.Int64("order_id", orderID))
	return nil
}

// CancelPurchase cancels every cart item tied to the purchase. Orders that
// were AWAITING drop back to PENDING so the remaining items can be placed
// again.
func (o *Orchestrator) CancelPurchase(ctx context.Context, purchaseID string) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.CancelPurchase")
	defer span.End()

	orderIDs, err := o.store.CancelCartItemsByPurchase(ctx, purchaseID)
	if err != nil {
		return err
	}
	for _, orderID := range orderIDs {
		order, err := o.store.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusAwaiting {
			continue
		}
		if err := o.store.UpdateOrderStatus(ctx, orderID, models.OrderStatusPending); err != nil {
			return err
		}
		o.logger.Info("Order reopened after purchase cancellation",
			zap.Int64("order_id", orderID),
			zap.String("purchase_id", purchaseID))
	}
	return nil
}

// HandleTracking stamps the tracking detail onto every cart item of its
// purchase, forwards the tracking to each affected shop, and completes
// orders whose cart is fully tracked.
func (o *Orchestrator) HandleTracking(ctx context.Context, trackingID int64) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.HandleTracking")
	defer span.End()

	tracking, err := o.store.GetTrackingDetailByID(ctx, trackingID)
	if err != nil {
		return err
	}
	orderIDs, err := o.store.SetCartItemsTracking(ctx, tracking.PurchaseID, trackingID)
	if err != nil {
		return err
	}

	for _, orderID := range orderIDs {
		order, err := o.store.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.forwardTracking(ctx, order, tracking); err != nil {
			util.TrackingForwardsFailed.Inc()
			o.logger.Warn("Failed to forward tracking to shop",
				zap.Int64("order_id", orderID),
				zap.Int64("tracking_id", trackingID),
				zap.Error(err))
		}
		untracked, err := o.store.CountUntrackedCartItems(ctx, orderID)
		if err != nil {
			return err
		}
		if untracked > 0 || order.Status != models.OrderStatusAwaiting {
			continue
		}
		if err := o.store.UpdateOrderStatus(ctx, orderID, models.OrderStatusComplete); err != nil {
			return err
		}
		util.OrdersCompletedTotal.Inc()
		o.logger.Info("Order completed", zap.Int64("order_id", orderID))
		if o.publisher != nil {
			event := &models.OrderCompletedEvent{
				BaseEvent: newBaseEvent(models.EventTypeOrderCompleted),
				OrderID:   orderID,
				UserID:    order.UserID,
			}
			if err := o.publisher.PublishOrderCompleted(ctx, event); err != nil {
				o.logger.Warn("Failed to publish order completed event", zap.Error(err))
			}
		}
	}
	return nil
}

// routeLinks fans the order's line items out to every channel its links
// select. A router miss is recorded on the order and halts the pipeline.
func (o *Orchestrator) routeLinks(ctx context.Context, order *models.Order, shop *models.Shop) error {
	channels, err := o.router.Route(ctx, order, shop)
	if errors.Is(err, ErrNoLinkMatched) {
		return o.haltResolution(ctx, order.ID, errNoLinkMatched)
	}
	if err != nil {
		return err
	}

	lineItems, err := o.store.GetLineItemsByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}
	for _, channelID := range channels {
		for _, li := range lineItems {
			src := CartSource{
				ProductID: li.ProductID,
				VariantID: li.VariantID,
				Title:     li.Title,
				SKU:       li.SKU,
				Quantity:  li.Quantity,
				Price:     li.Price,
			}
			if _, err := o.cart.AddOrIncrement(ctx, order, channelID, src); err != nil {
				return err
			}
		}
	}
	return nil
}

// materializeFromMatches resolves the order's line items through the match
// registry and aggregates the outputs into the cart. Resolution failures are
// recorded on the order and halt the pipeline.
func (o *Orchestrator) materializeFromMatches(ctx context.Context, order *models.Order) error {
	lineItems, err := o.store.GetLineItemsByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}

	outputs, err := o.matcher.ResolveOrder(ctx, lineItems, order.UserID)
	if errors.Is(err, ErrPartialMatch) {
		return o.haltResolution(ctx, order.ID, errMatchPartial)
	}
	if errors.Is(err, ErrNoMatchFound) {
		return o.haltResolution(ctx, order.ID, errMatchNone)
	}
	if err != nil {
		return err
	}

	for _, out := range outputs {
		src := CartSource{
			ProductID: out.ProductID,
			VariantID: out.VariantID,
			Title:     out.Title,
			Image:     out.Image,
			SKU:       out.SKU,
			Quantity:  out.Quantity,
			Price:     out.Price,
			Note:      o.priceDriftNote(ctx, out),
		}
		if _, err := o.cart.AddOrIncrement(ctx, order, out.ChannelID, src); err != nil {
			return err
		}
	}
	return nil
}

// haltResolution writes the failure to the order, returns it to PENDING and
// stops the pipeline. Leftover cart items from earlier runs must not be
// placed while the order carries a resolution error.
func (o *Orchestrator) haltResolution(ctx context.Context, orderID int64, errText string) error {
	if err := o.store.SetOrderError(ctx, orderID, errText); err != nil {
		return err
	}
	if err := o.store.UpdateOrderStatus(ctx, orderID, models.OrderStatusPending); err != nil {
		return err
	}
	return errResolutionHalted
}

// priceDriftNote compares the matched item's snapshot price with the live
// channel price. Lookup failures produce no note.
func (o *Orchestrator) priceDriftNote(ctx context.Context, item models.ChannelItem) string {
	channel, err := o.store.GetChannelByID(ctx, item.ChannelID)
	if err != nil {
		return ""
	}
	platform, err := o.store.GetChannelPlatform(ctx, item.ChannelID)
	if err != nil {
		return ""
	}
	product, err := o.gateway.GetProduct(ctx, mergeChannelConfig(platform, channel), item.ProductID)
	if err != nil {
		o.logger.Debug("Price check skipped",
			zap.Int64("channel_item_id", item.ID),
			zap.Error(err))
		return ""
	}
	variant := product.Variant(item.VariantID)
	if variant == nil || variant.Price.Equal(item.Price) {
		return ""
	}
	return fmt.Sprintf("%s%s -> %s", priceChangeTag, item.Price.String(), variant.Price.String())
}

// place groups the pending cart items by channel and submits one purchase
// per group. A failing group marks only its own items; the others still go
// through.
func (o *Orchestrator) place(ctx context.Context, order *models.Order) error {
	pending, err := o.store.GetPendingCartItemsByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	groups := make(map[int64][]models.CartItem)
	for _, item := range pending {
		groups[item.ChannelID] = append(groups[item.ChannelID], item)
	}
	channelIDs := make([]int64, 0, len(groups))
	for id := range groups {
		channelIDs = append(channelIDs, id)
	}
	sort.Slice(channelIDs, func(i, j int) bool { return channelIDs[i] < channelIDs[j] })

	for _, channelID := range channelIDs {
		if err := o.placeGroup(ctx, order, channelID, groups[channelID]); err != nil {
			return err
		}
	}

	left, err := o.store.CountPendingCartItems(ctx, order.ID)
	if err != nil {
		return err
	}
	if left > 0 {
		return o.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPending)
	}

	if err := o.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusAwaiting); err != nil {
		return err
	}
	util.OrdersPlacedTotal.Inc()
	o.logger.Info("Order placed", zap.Int64("order_id", order.ID), zap.Int64s("channels", channelIDs))

	if err := o.forwardCartToShop(ctx, order); err != nil {
		util.CartForwardsFailed.Inc()
		o.logger.Warn("Failed to forward cart to shop order",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
	if o.publisher != nil {
		event := &models.OrderPlacedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderPlaced),
			OrderID:   order.ID,
			UserID:    order.UserID,
			Channels:  channelIDs,
		}
		if err := o.publisher.PublishOrderPlaced(ctx, event); err != nil {
			o.logger.Warn("Failed to publish order placed event", zap.Error(err))
		}
	}
	return nil
}

// placeGroup submits one channel's basket. Failures are written to the
// group's cart items so the rest of the order is unaffected.
func (o *Orchestrator) placeGroup(ctx context.Context, order *models.Order, channelID int64, items []models.CartItem) error {
	ids := make([]int64, 0, len(items))
	purchaseItems := make([]adapter.PurchaseItem, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		purchaseItems = append(purchaseItems, adapter.PurchaseItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	channel, err := o.store.GetChannelByID(ctx, channelID)
	if err != nil {
		return err
	}
	platform, err := o.store.GetChannelPlatform(ctx, channelID)
	if err != nil {
		return err
	}

	email := channel.Email
	if email == "" {
		email = order.Email
	}
	req := adapter.PurchaseRequest{
		Items: purchaseItems,
		Address: adapter.ShippingAddress{
			Name:        order.Name,
			Address1:    order.Address1,
			Address2:    order.Address2,
			City:        order.City,
			Province:    order.Province,
			Zip:         order.Zip,
			CountryCode: order.CountryCode,
			Phone:       order.Phone,
		},
		Email: email,
	}

	result, err := o.gateway.CreatePurchase(ctx, mergeChannelConfig(platform, channel), req)
	if err != nil {
		util.PlacementFailuresTotal.WithLabelValues("adapter_error").Inc()
		o.logger.Warn("Channel placement failed",
			zap.Int64("order_id", order.ID),
			zap.Int64("channel_id", channelID),
			zap.Error(err))
		return o.store.SetCartItemsError(ctx, ids, placementErrTag+err.Error())
	}
	if result.Error != "" {
		util.PlacementFailuresTotal.WithLabelValues("platform_rejected").Inc()
		o.logger.Warn("Channel rejected placement",
			zap.Int64("order_id", order.ID),
			zap.Int64("channel_id", channelID),
			zap.String("error", result.Error))
		return o.store.SetCartItemsError(ctx, ids, placementErrTag+result.Error)
	}
	return o.store.SetCartItemsPurchase(ctx, ids, result.PurchaseID, result.URL)
}

// forwardCartToShop mirrors the placed cart back onto the shop order.
func (o *Orchestrator) forwardCartToShop(ctx context.Context, order *models.Order) error {
	shop, err := o.store.GetShopByID(ctx, order.ShopID)
	if err != nil {
		return err
	}
	platform, err := o.store.GetShopPlatform(ctx, order.ShopID)
	if err != nil {
		return err
	}
	items, err := o.store.GetCartItemsByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}

	forwarded := make([]adapter.PurchaseItem, 0, len(items))
	var url string
	for _, item := range items {
		if item.PurchaseID == "" && item.URL == "" {
			continue
		}
		if url == "" {
			url = item.URL
		}
		forwarded = append(forwarded, adapter.PurchaseItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	if len(forwarded) == 0 {
		return nil
	}
	req := adapter.CartForwardRequest{
		OrderID: order.OrderID,
		Items:   forwarded,
		URL:     url,
	}
	return o.gateway.AddCartToOrder(ctx, mergeShopConfig(platform, shop), req)
}

// forwardTracking pushes the tracking detail to the order's shop.
func (o *Orchestrator) forwardTracking(ctx context.Context, order *models.Order, tracking *models.TrackingDetail) error {
	shop, err := o.store.GetShopByID(ctx, order.ShopID)
	if err != nil {
		return err
	}
	platform, err := o.store.GetShopPlatform(ctx, order.ShopID)
	if err != nil {
		return err
	}
	req := adapter.TrackingRequest{
		OrderID:         order.OrderID,
		TrackingNumber:  tracking.TrackingNumber,
		TrackingCompany: tracking.TrackingCompany,
	}
	return o.gateway.AddTracking(ctx, mergeShopConfig(platform, shop), req)
}

func (o *Orchestrator) lockOrder(ctx context.Context, orderID int64) (func(), error) {
	key := fmt.Sprintf("order:%d", orderID)
	token, ok, err := o.locker.AcquireLock(ctx, key, o.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	if !ok {
		return nil, ErrOrderBusy
	}
	return func() {
		if err := o.locker.ReleaseLock(ctx, key, token); err != nil {
			o.logger.Warn("Failed to release order lock", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}, nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
