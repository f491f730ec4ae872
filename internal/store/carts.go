package store

import (
	"context"
	"database/sql"

	"fulfillment-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetActiveCartItem looks up the cart item that aggregation would merge
// into: same basket key, not cancelled, not yet purchased or fulfilled.
// Returns nil, nil when absent.
func (s *Store) GetActiveCartItem(ctx context.Context, orderID, channelID int64, productID, variantID string, userID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item, `
		SELECT * FROM cart_items
		WHERE order_id = $1 AND channel_id = $2 AND product_id = $3 AND variant_id = $4 AND user_id = $5
		  AND status <> $6 AND purchase_id = '' AND url = ''
		LIMIT 1`,
		orderID, channelID, productID, variantID, userID, models.CartItemStatusCancelled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateCartItem creates a new cart item
func (s *Store) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (order_id, channel_id, user_id, product_id, variant_id,
			title, image, sku, quantity, price, status, purchase_id, url, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, item, query,
		item.OrderID, item.ChannelID, item.UserID, item.ProductID, item.VariantID,
		item.Title, item.Image, item.SKU, item.Quantity, item.Price, item.Status,
		item.PurchaseID, item.URL, item.Error)
}

// IncrementCartItemQuantity adds to an existing basket line. The stored
// price is left untouched: first-seen price wins on merge.
func (s *Store) IncrementCartItemQuantity(ctx context.Context, id int64, delta int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2",
		delta, id)
	return err
}

// GetCartItemsByOrderID retrieves every cart item of an order
func (s *Store) GetCartItemsByOrderID(ctx context.Context, orderID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetPendingCartItemsByOrderID retrieves the unpurchased, unfulfilled,
// non-cancelled cart items of an order, the ones placement still owes.
func (s *Store) GetPendingCartItemsByOrderID(ctx context.Context, orderID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT * FROM cart_items
		WHERE order_id = $1 AND status <> $2 AND purchase_id = '' AND url = ''
		ORDER BY id`, orderID, models.CartItemStatusCancelled)
	return items, err
}

// CountPendingCartItems counts the still-pending cart items of an order
func (s *Store) CountPendingCartItems(ctx context.Context, orderID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM cart_items
		WHERE order_id = $1 AND status <> $2 AND purchase_id = '' AND url = ''`,
		orderID, models.CartItemStatusCancelled)
	return count, err
}

// CountUntrackedCartItems counts cart items that are neither tracked nor
// cancelled; zero means the order can complete.
func (s *Store) CountUntrackedCartItems(ctx context.Context, orderID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM cart_items
		WHERE order_id = $1 AND status <> $2 AND tracking_id IS NULL`,
		orderID, models.CartItemStatusCancelled)
	return count, err
}

// SetCartItemsPurchase stamps a purchase id and url on a group of cart items
func (s *Store) SetCartItemsPurchase(ctx context.Context, ids []int64, purchaseID, url string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		"UPDATE cart_items SET purchase_id = ?, url = ?, error = '', updated_at = NOW() WHERE id IN (?)",
		purchaseID, url, ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// SetCartItemsError records a placement error on a group of cart items
func (s *Store) SetCartItemsError(ctx context.Context, ids []int64, errText string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		"UPDATE cart_items SET error = ?, updated_at = NOW() WHERE id IN (?)", errText, ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// CancelCartItemsByOrder cascades an order cancellation to its cart items
func (s *Store) CancelCartItemsByOrder(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET status = $1, updated_at = NOW() WHERE order_id = $2",
		models.CartItemStatusCancelled, orderID)
	return err
}

// CancelCartItemsByPurchase cancels every cart item sharing a purchase id,
// across orders, and returns the distinct order ids touched.
func (s *Store) CancelCartItemsByPurchase(ctx context.Context, purchaseID string) ([]int64, error) {
	var orderIDs []int64
	err := s.db.SelectContext(ctx, &orderIDs, `
		UPDATE cart_items SET status = $1, updated_at = NOW()
		WHERE purchase_id = $2
		RETURNING order_id`,
		models.CartItemStatusCancelled, purchaseID)
	if err != nil {
		return nil, err
	}
	return dedupeIDs(orderIDs), nil
}

// SetCartItemsTracking stamps a tracking detail on every non-cancelled cart
// item sharing the purchase id and returns the distinct order ids touched.
func (s *Store) SetCartItemsTracking(ctx context.Context, purchaseID string, trackingID int64) ([]int64, error) {
	var orderIDs []int64
	err := s.db.SelectContext(ctx, &orderIDs, `
		UPDATE cart_items SET tracking_id = $1, updated_at = NOW()
		WHERE purchase_id = $2 AND status <> $3
		RETURNING order_id`,
		trackingID, purchaseID, models.CartItemStatusCancelled)
	if err != nil {
		return nil, err
	}
	return dedupeIDs(orderIDs), nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
