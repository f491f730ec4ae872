package store

import (
	"context"
	"database/sql"
	"fmt"

	"fulfillment-service/internal/models"

	"github.com/lib/pq"
)

// GetMatchIDsByInputCount returns the ids of every match owned by the user
// whose input set has exactly the given size.
func (s *Store) GetMatchIDsByInputCount(ctx context.Context, userID int64, count int) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT m.id FROM matches m
		JOIN match_inputs mi ON mi.match_id = m.id
		WHERE m.user_id = $1
		GROUP BY m.id
		HAVING COUNT(*) = $2
		ORDER BY m.id`, userID, count)
	return ids, err
}

// FindMatchByInputSet returns the match whose input set is set-equal to the
// given shop item ids, or nil when none exists.
func (s *Store) FindMatchByInputSet(ctx context.Context, userID int64, shopItemIDs []int64) (*models.Match, error) {
	if len(shopItemIDs) == 0 {
		return nil, nil
	}

	var id int64
	err := s.db.GetContext(ctx, &id, `
		SELECT m.id FROM matches m
		JOIN match_inputs mi ON mi.match_id = m.id
		WHERE m.user_id = $1
		GROUP BY m.id
		HAVING COUNT(*) = $2
		   AND COUNT(*) FILTER (WHERE mi.shop_item_id = ANY($3)) = $2
		LIMIT 1`,
		userID, len(shopItemIDs), pq.Array(shopItemIDs))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetMatchByID(ctx, id)
}

// GetMatchByID retrieves a match without its input/output sets
func (s *Store) GetMatchByID(ctx context.Context, id int64) (*models.Match, error) {
	var m models.Match
	err := s.db.GetContext(ctx, &m, "SELECT * FROM matches WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("match not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMatchInputs retrieves the input shop items of a match
func (s *Store) GetMatchInputs(ctx context.Context, matchID int64) ([]models.ShopItem, error) {
	var items []models.ShopItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT si.* FROM shop_items si
		JOIN match_inputs mi ON mi.shop_item_id = si.id
		WHERE mi.match_id = $1
		ORDER BY si.id`, matchID)
	return items, err
}

// GetMatchOutputs retrieves the output channel items of a match
func (s *Store) GetMatchOutputs(ctx context.Context, matchID int64) ([]models.ChannelItem, error) {
	var items []models.ChannelItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT ci.* FROM channel_items ci
		JOIN match_outputs mo ON mo.channel_item_id = ci.id
		WHERE mo.match_id = $1
		ORDER BY ci.id`, matchID)
	return items, err
}

// CreateMatch creates a match with its input and output join rows in one
// transaction.
func (s *Store) CreateMatch(ctx context.Context, userID int64, inputIDs, outputIDs []int64) (*models.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var m models.Match
	if err := tx.GetContext(ctx, &m,
		"INSERT INTO matches (user_id) VALUES ($1) RETURNING id, user_id, created_at", userID); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	for _, id := range inputIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO match_inputs (match_id, shop_item_id) VALUES ($1, $2)", m.ID, id); err != nil {
			return nil, fmt.Errorf("failed to attach match input: %w", err)
		}
	}
	for _, id := range outputIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO match_outputs (match_id, channel_item_id) VALUES ($1, $2)", m.ID, id); err != nil {
			return nil, fmt.Errorf("failed to attach match output: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReplaceMatchOutputs disconnects the current output set and connects the
// new one.
func (s *Store) ReplaceMatchOutputs(ctx context.Context, matchID int64, outputIDs []int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM match_outputs WHERE match_id = $1", matchID); err != nil {
		return fmt.Errorf("failed to disconnect match outputs: %w", err)
	}
	for _, id := range outputIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO match_outputs (match_id, channel_item_id) VALUES ($1, $2)", matchID, id); err != nil {
			return fmt.Errorf("failed to connect match output: %w", err)
		}
	}

	return tx.Commit()
}
