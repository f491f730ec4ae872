package store

import (
	"context"
	"database/sql"

	"fulfillment-service/internal/models"
)

// GetShopItemByKey looks up a shop item by its composite natural key.
// Returns nil, nil when absent.
func (s *Store) GetShopItemByKey(ctx context.Context, productID, variantID string, quantity int, shopID, userID int64) (*models.ShopItem, error) {
	var item models.ShopItem
	err := s.db.GetContext(ctx, &item, `
		SELECT * FROM shop_items
		WHERE product_id = $1 AND variant_id = $2 AND quantity = $3 AND shop_id = $4 AND user_id = $5`,
		productID, variantID, quantity, shopID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateShopItem creates a new shop item
func (s *Store) CreateShopItem(ctx context.Context, item *models.ShopItem) error {
	query := `
		INSERT INTO shop_items (shop_id, user_id, product_id, variant_id, quantity, sku, line_item_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, item, query,
		item.ShopID, item.UserID, item.ProductID, item.VariantID, item.Quantity,
		item.SKU, item.LineItemID)
}

// GetChannelItemByKey looks up a channel item by its composite natural key.
// Returns nil, nil when absent.
func (s *Store) GetChannelItemByKey(ctx context.Context, productID, variantID string, quantity int, channelID, userID int64) (*models.ChannelItem, error) {
	var item models.ChannelItem
	err := s.db.GetContext(ctx, &item, `
		SELECT * FROM channel_items
		WHERE product_id = $1 AND variant_id = $2 AND quantity = $3 AND channel_id = $4 AND user_id = $5`,
		productID, variantID, quantity, channelID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateChannelItem creates a new channel item
func (s *Store) CreateChannelItem(ctx context.Context, item *models.ChannelItem) error {
	query := `
		INSERT INTO channel_items (channel_id, user_id, product_id, variant_id, quantity, price, title, image, sku)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, item, query,
		item.ChannelID, item.UserID, item.ProductID, item.VariantID, item.Quantity,
		item.Price, item.Title, item.Image, item.SKU)
}
