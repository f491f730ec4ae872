package store

import (
	"context"
	"database/sql"
	"fmt"

	"fulfillment-service/internal/models"
)

// GetLinksByShopID retrieves a shop's links in rank order
func (s *Store) GetLinksByShopID(ctx context.Context, shopID int64) ([]models.Link, error) {
	var links []models.Link
	err := s.db.SelectContext(ctx, &links,
		"SELECT * FROM links WHERE shop_id = $1 ORDER BY rank", shopID)
	return links, err
}

// CountLinksByShopID counts a shop's links
func (s *Store) CountLinksByShopID(ctx context.Context, shopID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM links WHERE shop_id = $1", shopID)
	return count, err
}

// CreateLink creates a link at the end of the shop's rank order.
func (s *Store) CreateLink(ctx context.Context, link *models.Link) error {
	count, err := s.CountLinksByShopID(ctx, link.ShopID)
	if err != nil {
		return err
	}
	link.Rank = count + 1

	query := `
		INSERT INTO links (shop_id, channel_id, user_id, rank, filters, custom_where)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, link, query,
		link.ShopID, link.ChannelID, link.UserID, link.Rank, link.Filters, link.CustomWhere)
}

// OrderMatchesWhere evaluates a legacy custom where-clause against a single
// order row. The fragment comes from the owning user's link configuration.
func (s *Store) OrderMatchesWhere(ctx context.Context, orderID int64, where string) (bool, error) {
	var matches bool
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1 AND (%s))", where)
	err := s.db.GetContext(ctx, &matches, query, orderID)
	if err != nil {
		return false, fmt.Errorf("custom where evaluation failed: %w", err)
	}
	return matches, nil
}

// CreateTrackingDetail creates a fulfillment record
func (s *Store) CreateTrackingDetail(ctx context.Context, td *models.TrackingDetail) error {
	query := `
		INSERT INTO tracking_details (user_id, purchase_id, tracking_number, tracking_company)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, td, query,
		td.UserID, td.PurchaseID, td.TrackingNumber, td.TrackingCompany)
}

// GetTrackingDetailByID retrieves a tracking detail
func (s *Store) GetTrackingDetailByID(ctx context.Context, id int64) (*models.TrackingDetail, error) {
	var td models.TrackingDetail
	err := s.db.GetContext(ctx, &td, "SELECT * FROM tracking_details WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tracking detail not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &td, nil
}
