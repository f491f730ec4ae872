package service

import (
	"context"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type resolverStore interface {
	GetShopItemByKey(ctx context.Context, productID, variantID string, quantity int, shopID, userID int64) (*models.ShopItem, error)
	CreateShopItem(ctx context.Context, item *models.ShopItem) error
	GetChannelItemByKey(ctx context.Context, productID, variantID string, quantity int, channelID, userID int64) (*models.ChannelItem, error)
	CreateChannelItem(ctx context.Context, item *models.ChannelItem) error
}

// ItemSpec is a candidate item identity. ShopID is read on the input side,
// ChannelID on the output side; the rest are passthrough attributes.
type ItemSpec struct {
	ShopID     int64           `json:"shop_id,omitempty"`
	ChannelID  int64           `json:"channel_id,omitempty"`
	ProductID  string          `json:"product_id" binding:"required"`
	VariantID  string          `json:"variant_id" binding:"required"`
	Quantity   int             `json:"quantity" binding:"required,min=1"`
	SKU        string          `json:"sku,omitempty"`
	LineItemID string          `json:"line_item_id,omitempty"`
	Price      decimal.Decimal `json:"price,omitempty"`
	Title      string          `json:"title,omitempty"`
	Image      string          `json:"image,omitempty"`
}

// Resolver is the item identity resolver: it upserts shop-side and
// channel-side item identities by their composite natural key.
type Resolver struct {
	store  resolverStore
	logger *zap.Logger
}

// NewResolver creates a new item identity resolver
func NewResolver(store resolverStore) *Resolver {
	return &Resolver{store: store, logger: util.GetLogger()}
}

// EnsureShopItem returns the shop item for the spec's natural key, creating
// it when absent. Calling twice with the same key returns the same identity.
func (r *Resolver) EnsureShopItem(ctx context.Context, userID int64, spec ItemSpec) (*models.ShopItem, error) {
	ctx, span := util.StartSpan(ctx, "Resolver.EnsureShopItem")
	defer span.End()

	existing, err := r.store.GetShopItemByKey(ctx, spec.ProductID, spec.VariantID, spec.Quantity, spec.ShopID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up shop item: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	item := &models.ShopItem{
		ShopID:     spec.ShopID,
		UserID:     userID,
		ProductID:  spec.ProductID,
		VariantID:  spec.VariantID,
		Quantity:   spec.Quantity,
		SKU:        spec.SKU,
		LineItemID: spec.LineItemID,
	}
	if err := r.store.CreateShopItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create shop item: %w", err)
	}

	r.logger.Debug("Shop item created",
		zap.Int64("shop_item_id", item.ID),
		zap.String("product_id", item.ProductID),
		zap.String("variant_id", item.VariantID))
	return item, nil
}

// EnsureChannelItem is the channel-side counterpart of EnsureShopItem.
func (r *Resolver) EnsureChannelItem(ctx context.Context, userID int64, spec ItemSpec) (*models.ChannelItem, error) {
	ctx, span := util.StartSpan(ctx, "Resolver.EnsureChannelItem")
	defer span.End()

	existing, err := r.store.GetChannelItemByKey(ctx, spec.ProductID, spec.VariantID, spec.Quantity, spec.ChannelID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up channel item: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	item := &models.ChannelItem{
		ChannelID: spec.ChannelID,
		UserID:    userID,
		ProductID: spec.ProductID,
		VariantID: spec.VariantID,
		Quantity:  spec.Quantity,
		Price:     spec.Price,
		Title:     spec.Title,
		Image:     spec.Image,
		SKU:       spec.SKU,
	}
	if err := r.store.CreateChannelItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create channel item: %w", err)
	}

	r.logger.Debug("Channel item created",
		zap.Int64("channel_item_id", item.ID),
		zap.String("product_id", item.ProductID),
		zap.String("variant_id", item.VariantID))
	return item, nil
}
