package store

import (
	"context"
	"database/sql"
	"fmt"

	"fulfillment-service/internal/models"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_id, shop_id, user_id, email, name, address1, address2,
			city, province, zip, country_code, phone, total_price, currency,
			link_order, match_order, process_order, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.OrderID, order.ShopID, order.UserID, order.Email, order.Name,
		order.Address1, order.Address2, order.City, order.Province, order.Zip,
		order.CountryCode, order.Phone, order.TotalPrice, order.Currency,
		order.LinkOrder, order.MatchOrder, order.ProcessOrder, order.Status, order.Error)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByExternalID retrieves an order by its shop-side identifier.
// Returns nil, nil when no order with that identifier exists.
func (s *Store) GetOrderByExternalID(ctx context.Context, shopID int64, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE shop_id = $1 AND order_id = $2", shopID, orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// SetOrderError records a processing error on the order
func (s *Store) SetOrderError(ctx context.Context, orderID int64, errText string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET error = $1, updated_at = NOW() WHERE id = $2",
		errText, orderID)
	return err
}

// CreateLineItem creates a new line item
func (s *Store) CreateLineItem(ctx context.Context, item *models.LineItem) error {
	query := `
		INSERT INTO line_items (order_id, product_id, variant_id, title, sku, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.VariantID, item.Title, item.SKU,
		item.Quantity, item.Price)
}

// GetLineItemsByOrderID retrieves all line items for an order
func (s *Store) GetLineItemsByOrderID(ctx context.Context, orderID int64) ([]models.LineItem, error) {
	var items []models.LineItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM line_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}
