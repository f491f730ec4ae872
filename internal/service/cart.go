package service

import (
	"context"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cartStore interface {
	GetActiveCartItem(ctx context.Context, orderID, channelID int64, productID, variantID string, userID int64) (*models.CartItem, error)
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	IncrementCartItemQuantity(ctx context.Context, id int64, delta int) error
}

// CartSource is one resolved channel-side line destined for an order's cart.
type CartSource struct {
	ProductID string
	VariantID string
	Title     string
	Image     string
	SKU       string
	Quantity  int
	Price     decimal.Decimal
	Note      string
}

// CartAggregator merges resolved channel items into per-order carts. Adding
// a product that already sits active in the cart bumps its quantity instead
// of duplicating the row.
type CartAggregator struct {
	store  cartStore
	logger *zap.Logger
}

// NewCartAggregator creates a new cart aggregator
func NewCartAggregator(store cartStore) *CartAggregator {
	return &CartAggregator{
		store:  store,
		logger: util.GetLogger(),
	}
}

// AddOrIncrement merges src into the order's cart for the given channel.
// The price recorded at first insert is kept on merge.
func (a *CartAggregator) AddOrIncrement(ctx context.Context, order *models.Order, channelID int64, src CartSource) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartAggregator.AddOrIncrement")
	defer span.End()

	if src.Quantity <= 0 {
		return nil, fmt.Errorf("cart quantity must be positive, got %d", src.Quantity)
	}

	existing, err := a.store.GetActiveCartItem(ctx, order.ID, channelID, src.ProductID, src.VariantID, order.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up cart item: %w", err)
	}
	if existing != nil {
		if err := a.store.IncrementCartItemQuantity(ctx, existing.ID, src.Quantity); err != nil {
			return nil, fmt.Errorf("failed to increment cart item: %w", err)
		}
		existing.Quantity += src.Quantity
		util.CartItemsMergedTotal.Inc()
		a.logger.Debug("Cart item merged",
			zap.Int64("cart_item_id", existing.ID),
			zap.Int("quantity", existing.Quantity))
		return existing, nil
	}

	item := &models.CartItem{
		OrderID:   order.ID,
		ChannelID: channelID,
		UserID:    order.UserID,
		ProductID: src.ProductID,
		VariantID: src.VariantID,
		Title:     src.Title,
		Image:     src.Image,
		SKU:       src.SKU,
		Quantity:  src.Quantity,
		Price:     src.Price,
		Status:    models.CartItemStatusPending,
		Error:     src.Note,
	}
	if err := a.store.CreateCartItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create cart item: %w", err)
	}
	util.CartItemsCreatedTotal.Inc()
	a.logger.Debug("Cart item created",
		zap.Int64("cart_item_id", item.ID),
		zap.Int64("order_id", order.ID),
		zap.Int64("channel_id", channelID))
	return item, nil
}
