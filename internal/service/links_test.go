package service

import (
	"context"
	"testing"

	"fulfillment-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *models.Order {
	return &models.Order{
		ID:          1,
		UserID:      10,
		Email:       "buyer@example.com",
		City:        "Rotterdam",
		CountryCode: "NL",
		Currency:    "EUR",
		TotalPrice:  decimal.RequireFromString("42.50"),
	}
}

func TestRouteSequentialStopsAtFirstMatch(t *testing.T) {
	store := newMemStore()
	store.links = []models.Link{
		{ID: 1, ShopID: 1, ChannelID: 100, Rank: 1, Filters: models.FilterList{
			{Field: "country_code", Op: "eq", Value: "DE"},
		}},
		{ID: 2, ShopID: 1, ChannelID: 200, Rank: 2, Filters: models.FilterList{
			{Field: "country_code", Op: "eq", Value: "NL"},
		}},
		{ID: 3, ShopID: 1, ChannelID: 300, Rank: 3},
	}
	router := NewLinkRouter(store)

	shop := &models.Shop{ID: 1, LinkMode: models.LinkModeSequential}
	channels, err := router.Route(context.Background(), testOrder(), shop)
	require.NoError(t, err)
	assert.Equal(t, []int64{200}, channels)
}

func TestRouteSimultaneousCollectsAllMatches(t *testing.T) {
	store := newMemStore()
	store.links = []models.Link{
		{ID: 1, ShopID: 1, ChannelID: 100, Rank: 1, Filters: models.FilterList{
			{Field: "country_code", Op: "eq", Value: "DE"},
		}},
		{ID: 2, ShopID: 1, ChannelID: 200, Rank: 2},
		{ID: 3, ShopID: 1, ChannelID: 300, Rank: 3, Filters: models.FilterList{
			{Field: "total_price", Op: "gt", Value: "40"},
		}},
	}
	router := NewLinkRouter(store)

	shop := &models.Shop{ID: 1, LinkMode: models.LinkModeSimultaneous}
	channels, err := router.Route(context.Background(), testOrder(), shop)
	require.NoError(t, err)
	assert.Equal(t, []int64{200, 300}, channels)
}

func TestRouteNoLinkMatched(t *testing.T) {
	store := newMemStore()
	store.links = []models.Link{
		{ID: 1, ShopID: 1, ChannelID: 100, Rank: 1, Filters: models.FilterList{
			{Field: "currency", Op: "eq", Value: "USD"},
		}},
	}
	router := NewLinkRouter(store)

	_, err := router.Route(context.Background(), testOrder(), &models.Shop{ID: 1, LinkMode: models.LinkModeSequential})
	assert.ErrorIs(t, err, ErrNoLinkMatched)
}

func TestRouteDeduplicatesChannels(t *testing.T) {
	store := newMemStore()
	store.links = []models.Link{
		{ID: 1, ShopID: 1, ChannelID: 100, Rank: 1},
		{ID: 2, ShopID: 1, ChannelID: 100, Rank: 2},
	}
	router := NewLinkRouter(store)

	channels, err := router.Route(context.Background(), testOrder(), &models.Shop{ID: 1, LinkMode: models.LinkModeSimultaneous})
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, channels)
}

func TestRouteCustomWhereAndFiltersConjoin(t *testing.T) {
	store := newMemStore()
	store.links = []models.Link{
		{ID: 1, ShopID: 1, ChannelID: 100, Rank: 1,
			Filters:     models.FilterList{{Field: "country_code", Op: "eq", Value: "NL"}},
			CustomWhere: "total_price > 100"},
	}
	store.whereResults["total_price > 100"] = false
	router := NewLinkRouter(store)

	_, err := router.Route(context.Background(), testOrder(), &models.Shop{ID: 1, LinkMode: models.LinkModeSequential})
	assert.ErrorIs(t, err, ErrNoLinkMatched)

	store.whereResults["total_price > 100"] = true
	channels, err := router.Route(context.Background(), testOrder(), &models.Shop{ID: 1, LinkMode: models.LinkModeSequential})
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, channels)
}

func TestEvalFilterOperators(t *testing.T) {
	order := testOrder()

	cases := []struct {
		filter models.Filter
		want   bool
	}{
		{models.Filter{Field: "total_price", Op: "gte", Value: "42.50"}, true},
		{models.Filter{Field: "total_price", Op: "lt", Value: "42.50"}, false},
		{models.Filter{Field: "total_price", Op: "neq", Value: "10"}, true},
		{models.Filter{Field: "currency", Op: "eq", Value: "eur"}, true},
		{models.Filter{Field: "email", Op: "contains", Value: "@example.com"}, true},
		{models.Filter{Field: "city", Op: "neq", Value: "Rotterdam"}, false},
		{models.Filter{Field: "zip", Op: "eq", Value: ""}, true},
	}
	for _, tc := range cases {
		got, err := evalFilter(order, tc.filter)
		require.NoError(t, err, "filter %+v", tc.filter)
		assert.Equal(t, tc.want, got, "filter %+v", tc.filter)
	}
}

func TestEvalFilterRejectsUnknowns(t *testing.T) {
	order := testOrder()

	_, err := evalFilter(order, models.Filter{Field: "shoe_size", Op: "eq", Value: "42"})
	assert.Error(t, err)
	_, err = evalFilter(order, models.Filter{Field: "currency", Op: "gt", Value: "EUR"})
	assert.Error(t, err)
	_, err = evalFilter(order, models.Filter{Field: "total_price", Op: "eq", Value: "not-a-number"})
	assert.Error(t, err)
}
