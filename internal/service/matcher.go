package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

type matchStore interface {
	GetMatchIDsByInputCount(ctx context.Context, userID int64, count int) ([]int64, error)
	GetMatchInputs(ctx context.Context, matchID int64) ([]models.ShopItem, error)
	GetMatchOutputs(ctx context.Context, matchID int64) ([]models.ChannelItem, error)
	FindMatchByInputSet(ctx context.Context, userID int64, shopItemIDs []int64) (*models.Match, error)
	CreateMatch(ctx context.Context, userID int64, inputIDs, outputIDs []int64) (*models.Match, error)
	ReplaceMatchOutputs(ctx context.Context, matchID int64, outputIDs []int64) error
}

// Matcher is the match registry. It resolves orders against stored
// equivalences and maintains the no-duplicate-input-set invariant.
type Matcher struct {
	store    matchStore
	resolver *Resolver
	locker   Locker
	lockTTL  time.Duration
	logger   *zap.Logger
}

// NewMatcher creates a new match registry
func NewMatcher(store matchStore, resolver *Resolver, locker Locker, lockTTL time.Duration) *Matcher {
	return &Matcher{
		store:    store,
		resolver: resolver,
		locker:   locker,
		lockTTL:  lockTTL,
		logger:   util.GetLogger(),
	}
}

// FindExactMatch returns a match whose input set covers every line item:
// same input count, and for every line item some input shop item carries the
// same product, variant and quantity. Returns nil when no match covers all.
func (m *Matcher) FindExactMatch(ctx context.Context, lineItems []models.LineItem, userID int64) (*models.Match, error) {
	ctx, span := util.StartSpan(ctx, "Matcher.FindExactMatch")
	defer span.End()

	if len(lineItems) == 0 {
		return nil, nil
	}

	ids, err := m.store.GetMatchIDsByInputCount(ctx, userID, len(lineItems))
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate matches: %w", err)
	}

	for _, id := range ids {
		inputs, err := m.store.GetMatchInputs(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load match inputs: %w", err)
		}
		if !inputsCover(inputs, lineItems) {
			continue
		}
		outputs, err := m.store.GetMatchOutputs(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load match outputs: %w", err)
		}
		return &models.Match{ID: id, UserID: userID, Inputs: inputs, Outputs: outputs}, nil
	}
	return nil, nil
}

// ResolveOrder resolves the order's line items to channel items. A single
// covering match wins; otherwise each line item of a multi-item order is
// matched independently and the union is returned. Partial resolution is
// never accepted.
func (m *Matcher) ResolveOrder(ctx context.Context, lineItems []models.LineItem, userID int64) ([]models.ChannelItem, error) {
	ctx, span := util.StartSpan(ctx, "Matcher.ResolveOrder")
	defer span.End()

	if len(lineItems) == 0 {
		util.MatchResolutionsTotal.WithLabelValues("miss").Inc()
		return nil, ErrNoMatchFound
	}

	match, err := m.FindExactMatch(ctx, lineItems, userID)
	if err != nil {
		return nil, err
	}
	if match != nil {
		util.MatchResolutionsTotal.WithLabelValues("exact").Inc()
		return match.Outputs, nil
	}

	if len(lineItems) > 1 {
		var outputs []models.ChannelItem
		for _, li := range lineItems {
			single, err := m.FindExactMatch(ctx, []models.LineItem{li}, userID)
			if err != nil {
				return nil, err
			}
			if single == nil {
				util.MatchResolutionsTotal.WithLabelValues("partial").Inc()
				return nil, ErrPartialMatch
			}
			outputs = append(outputs, single.Outputs...)
		}
		util.MatchResolutionsTotal.WithLabelValues("per_line").Inc()
		return outputs, nil
	}

	util.MatchResolutionsTotal.WithLabelValues("miss").Inc()
	return nil, ErrNoMatchFound
}

// UpsertMatch resolves the item identities, then replaces the output set of
// the match whose input set is set-equal to the resolved inputs, or creates
// a new match.
func (m *Matcher) UpsertMatch(ctx context.Context, userID int64, inputs, outputs []ItemSpec) (*models.Match, error) {
	ctx, span := util.StartSpan(ctx, "Matcher.UpsertMatch")
	defer span.End()

	inputIDs, outputIDs, err := m.resolveSpecs(ctx, userID, inputs, outputs)
	if err != nil {
		return nil, err
	}

	release, err := m.lockInputSet(ctx, inputIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := m.store.FindMatchByInputSet(ctx, userID, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to search for set-equal match: %w", err)
	}
	if existing != nil {
		if err := m.store.ReplaceMatchOutputs(ctx, existing.ID, outputIDs); err != nil {
			return nil, fmt.Errorf("failed to replace match outputs: %w", err)
		}
		m.logger.Info("Match outputs replaced", zap.Int64("match_id", existing.ID))
		return m.hydrate(ctx, existing)
	}

	created, err := m.store.CreateMatch(ctx, userID, inputIDs, outputIDs)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Match created", zap.Int64("match_id", created.ID))
	return m.hydrate(ctx, created)
}

// CreateMatch creates a match, rejecting an input set that is set-equal to
// an existing match's.
func (m *Matcher) CreateMatch(ctx context.Context, userID int64, inputs, outputs []ItemSpec) (*models.Match, error) {
	ctx, span := util.StartSpan(ctx, "Matcher.CreateMatch")
	defer span.End()

	inputIDs, outputIDs, err := m.resolveSpecs(ctx, userID, inputs, outputs)
	if err != nil {
		return nil, err
	}

	release, err := m.lockInputSet(ctx, inputIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := m.store.FindMatchByInputSet(ctx, userID, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to search for set-equal match: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateMatch
	}

	created, err := m.store.CreateMatch(ctx, userID, inputIDs, outputIDs)
	if err != nil {
		return nil, err
	}
	return m.hydrate(ctx, created)
}

func (m *Matcher) resolveSpecs(ctx context.Context, userID int64, inputs, outputs []ItemSpec) ([]int64, []int64, error) {
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, nil, fmt.Errorf("a match needs at least one input and one output item")
	}

	inputIDs := make([]int64, 0, len(inputs))
	for _, spec := range inputs {
		item, err := m.resolver.EnsureShopItem(ctx, userID, spec)
		if err != nil {
			return nil, nil, err
		}
		inputIDs = append(inputIDs, item.ID)
	}

	outputIDs := make([]int64, 0, len(outputs))
	for _, spec := range outputs {
		item, err := m.resolver.EnsureChannelItem(ctx, userID, spec)
		if err != nil {
			return nil, nil, err
		}
		outputIDs = append(outputIDs, item.ID)
	}
	return inputIDs, outputIDs, nil
}

// lockInputSet serializes the duplicate check against concurrent writers of
// the same input set.
func (m *Matcher) lockInputSet(ctx context.Context, inputIDs []int64) (func(), error) {
	key := matchSetKey(inputIDs)
	token, ok, err := m.locker.AcquireLock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock match input set: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("match input set is being modified concurrently")
	}
	return func() {
		if err := m.locker.ReleaseLock(ctx, key, token); err != nil {
			m.logger.Warn("Failed to release match set lock", zap.Error(err))
		}
	}, nil
}

func (m *Matcher) hydrate(ctx context.Context, match *models.Match) (*models.Match, error) {
	inputs, err := m.store.GetMatchInputs(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	outputs, err := m.store.GetMatchOutputs(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	match.Inputs = inputs
	match.Outputs = outputs
	return match, nil
}

// matchSetKey derives the advisory-lock key from the order-independent
// input set.
func matchSetKey(inputIDs []int64) string {
	sorted := make([]int64, len(inputIDs))
	copy(sorted, inputIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	h := sha1.New()
	for _, id := range sorted {
		fmt.Fprintf(h, "%d,", id)
	}
	return "matchset:" + hex.EncodeToString(h.Sum(nil))
}

// inputsCover reports whether every line item is represented in the input
// set by product, variant and quantity.
func inputsCover(inputs []models.ShopItem, lineItems []models.LineItem) bool {
	for _, li := range lineItems {
		found := false
		for _, in := range inputs {
			if in.ProductID == li.ProductID && in.VariantID == li.VariantID && in.Quantity == li.Quantity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
