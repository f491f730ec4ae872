package service

import (
	"context"
	"fmt"
	"strings"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type linkStore interface {
	GetLinksByShopID(ctx context.Context, shopID int64) ([]models.Link, error)
	OrderMatchesWhere(ctx context.Context, orderID int64, where string) (bool, error)
}

// LinkRouter walks a shop's rank-ordered links and decides which channels an
// order fans out to.
type LinkRouter struct {
	store  linkStore
	logger *zap.Logger
}

// NewLinkRouter creates a new link router
func NewLinkRouter(store linkStore) *LinkRouter {
	return &LinkRouter{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Route evaluates the shop's links against the order in rank order. In
// sequential mode the first matching link wins; in simultaneous mode every
// matching link contributes its channel. Returns ErrNoLinkMatched when no
// link accepts the order.
func (r *LinkRouter) Route(ctx context.Context, order *models.Order, shop *models.Shop) ([]int64, error) {
	ctx, span := util.StartSpan(ctx, "LinkRouter.Route")
	defer span.End()

	links, err := r.store.GetLinksByShopID(ctx, shop.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links for shop %d: %w", shop.ID, err)
	}

	var channels []int64
	seen := make(map[int64]bool)
	for _, link := range links {
		matched, err := r.linkMatches(ctx, order, link)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		if !seen[link.ChannelID] {
			seen[link.ChannelID] = true
			channels = append(channels, link.ChannelID)
		}
		if shop.LinkMode != models.LinkModeSimultaneous {
			break
		}
	}

	if len(channels) == 0 {
		return nil, ErrNoLinkMatched
	}
	r.logger.Debug("Order routed",
		zap.Int64("order_id", order.ID),
		zap.String("link_mode", shop.LinkMode),
		zap.Int64s("channels", channels))
	return channels, nil
}

// linkMatches is the conjunction of the link's typed filters and its raw
// custom_where clause. A link with neither predicate matches every order.
func (r *LinkRouter) linkMatches(ctx context.Context, order *models.Order, link models.Link) (bool, error) {
	for _, f := range link.Filters {
		ok, err := evalFilter(order, f)
		if err != nil {
			return false, fmt.Errorf("link %d filter: %w", link.ID, err)
		}
		if !ok {
			return false, nil
		}
	}
	if link.CustomWhere != "" {
		ok, err := r.store.OrderMatchesWhere(ctx, order.ID, link.CustomWhere)
		if err != nil {
			return false, fmt.Errorf("link %d custom where: %w", link.ID, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalFilter(order *models.Order, f models.Filter) (bool, error) {
	if f.Field == "total_price" {
		value, err := decimal.NewFromString(f.Value)
		if err != nil {
			return false, fmt.Errorf("invalid total_price value %q", f.Value)
		}
		return compareDecimal(order.TotalPrice, f.Op, value)
	}

	var actual string
	switch f.Field {
	case "currency":
		actual = order.Currency
	case "country_code":
		actual = order.CountryCode
	case "province":
		actual = order.Province
	case "city":
		actual = order.City
	case "zip":
		actual = order.Zip
	case "email":
		actual = order.Email
	default:
		return false, fmt.Errorf("unknown filter field %q", f.Field)
	}
	return compareString(actual, f.Op, f.Value)
}

func compareDecimal(actual decimal.Decimal, op string, value decimal.Decimal) (bool, error) {
	switch op {
	case "eq":
		return actual.Equal(value), nil
	case "neq":
		return !actual.Equal(value), nil
	case "gt":
		return actual.GreaterThan(value), nil
	case "gte":
		return actual.GreaterThanOrEqual(value), nil
	case "lt":
		return actual.LessThan(value), nil
	case "lte":
		return actual.LessThanOrEqual(value), nil
	default:
		return false, fmt.Errorf("unsupported operator %q for numeric field", op)
	}
}

func compareString(actual, op, value string) (bool, error) {
	switch op {
	case "eq":
		return strings.EqualFold(actual, value), nil
	case "neq":
		return !strings.EqualFold(actual, value), nil
	case "contains":
		return strings.Contains(strings.ToLower(actual), strings.ToLower(value)), nil
	default:
		return false, fmt.Errorf("unsupported operator %q for string field", op)
	}
}
