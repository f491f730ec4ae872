package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fulfillment-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection, used by tests.
func NewStoreWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetShopByID retrieves a shop by ID
func (s *Store) GetShopByID(ctx context.Context, id int64) (*models.Shop, error) {
	var shop models.Shop
	err := s.db.GetContext(ctx, &shop, "SELECT * FROM shops WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("shop not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// GetChannelByID retrieves a channel by ID
func (s *Store) GetChannelByID(ctx context.Context, id int64) (*models.Channel, error) {
	var channel models.Channel
	err := s.db.GetContext(ctx, &channel, "SELECT * FROM channels WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("channel not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// GetShopPlatform retrieves the platform definition of a shop
func (s *Store) GetShopPlatform(ctx context.Context, shopID int64) (*models.Platform, error) {
	var p models.Platform
	err := s.db.GetContext(ctx, &p, `
		SELECT p.* FROM shop_platforms p
		JOIN shops sh ON sh.platform_id = p.id
		WHERE sh.id = $1`, shopID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no platform for shop %d", shopID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetChannelPlatform retrieves the platform definition of a channel
func (s *Store) GetChannelPlatform(ctx context.Context, channelID int64) (*models.Platform, error) {
	var p models.Platform
	err := s.db.GetContext(ctx, &p, `
		SELECT p.* FROM channel_platforms p
		JOIN channels ch ON ch.platform_id = p.id
		WHERE ch.id = $1`, channelID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no platform for channel %d", channelID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
