package service

import (
	"context"
	"errors"
	"time"

	"fulfillment-service/internal/adapter"
	"fulfillment-service/internal/models"
)

// Service-level errors. Per-unit failures (one channel group, one line item)
// are recorded on the order or cart item instead of being raised.
var (
	ErrDuplicateMatch = errors.New("a match with an identical input set already exists")
	ErrNoMatchFound   = errors.New("no match found for the order items")
	ErrPartialMatch   = errors.New("some line items not matched")
	ErrNoLinkMatched  = errors.New("no matching link found for this order")
	ErrOrderBusy      = errors.New("order is already being processed")
)

// Error annotations written to order/cart item rows.
const (
	errMatchPartial  = "MATCH_ERROR: Some lineItems not matched"
	errMatchNone     = "MATCH_ERROR: No match found for this order"
	errNoLinkMatched = "No matching link found for this order"
	placementErrTag  = "ORDER_PLACEMENT_ERROR: "
	priceChangeTag   = "PRICE_CHANGE: "
)

// Gateway is the adapter surface the services invoke. *adapter.Gateway
// satisfies it.
type Gateway interface {
	GetProduct(ctx context.Context, cfg models.PlatformConfig, productID string) (*adapter.Product, error)
	CreatePurchase(ctx context.Context, cfg models.PlatformConfig, req adapter.PurchaseRequest) (*adapter.PurchaseResult, error)
	AddTracking(ctx context.Context, cfg models.PlatformConfig, req adapter.TrackingRequest) error
	AddCartToOrder(ctx context.Context, cfg models.PlatformConfig, req adapter.CartForwardRequest) error
	CreateWebhook(ctx context.Context, cfg models.PlatformConfig, topic, address string) (*adapter.Webhook, error)
	DeleteWebhook(ctx context.Context, cfg models.PlatformConfig, webhookID string) error
	GetWebhooks(ctx context.Context, cfg models.PlatformConfig) ([]adapter.Webhook, error)
}

// Locker is the advisory-lock surface, satisfied by *redisclient.Client.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// mergeShopConfig overlays the shop's connection details on its platform's
// adapter configuration.
func mergeShopConfig(p *models.Platform, s *models.Shop) models.PlatformConfig {
	cfg := p.Config
	cfg.Domain = s.Domain
	cfg.AccessToken = s.AccessToken
	return cfg
}

// mergeChannelConfig overlays the channel's connection details on its
// platform's adapter configuration.
func mergeChannelConfig(p *models.Platform, c *models.Channel) models.PlatformConfig {
	cfg := p.Config
	cfg.Domain = c.Domain
	cfg.AccessToken = c.AccessToken
	return cfg
}
