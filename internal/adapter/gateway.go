package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"
)

// Gateway resolves a platform operation to a builtin or remote adapter and
// dispatches it. One attempt per call, no retries, no caching.
type Gateway struct {
	builtins map[string]PlatformAdapter
	client   *http.Client
}

// NewGateway creates a gateway with the builtin adapters registered.
func NewGateway(timeout time.Duration) *Gateway {
	client := &http.Client{Timeout: timeout}
	g := &Gateway{
		builtins: make(map[string]PlatformAdapter),
		client:   client,
	}
	g.Register("shopify", NewShopifyAdapter(client))
	return g
}

// Register adds a builtin adapter under a key.
func (g *Gateway) Register(key string, a PlatformAdapter) {
	g.builtins[key] = a
}

// resolve maps the config entry for an operation to an adapter. Values
// starting with "http" dispatch remotely; anything else is a builtin key.
func (g *Gateway) resolve(cfg models.PlatformConfig, op string) (PlatformAdapter, error) {
	target := cfg.Operations[op]
	if target == "" {
		return nil, fmt.Errorf("%s not configured for %s: %w", op, cfg.Platform, ErrAdapterNotFound)
	}
	if strings.HasPrefix(target, "http") {
		return &HTTPAdapter{client: g.client, endpoint: target}, nil
	}
	a, ok := g.builtins[target]
	if !ok {
		return nil, fmt.Errorf("no builtin adapter %q for %s: %w", target, op, ErrAdapterNotFound)
	}
	return a, nil
}

// invoke runs one adapter call with metrics and error wrapping.
func (g *Gateway) invoke(cfg models.PlatformConfig, op string, call func(PlatformAdapter) error) error {
	a, err := g.resolve(cfg, op)
	if err != nil {
		util.AdapterCallsTotal.WithLabelValues(op, "not_found").Inc()
		return err
	}

	start := time.Now()
	err = call(a)
	util.AdapterCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		util.AdapterCallsTotal.WithLabelValues(op, "error").Inc()
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			return err
		}
		return &ExecutionError{Op: op, Platform: cfg.Platform, Err: err}
	}

	util.AdapterCallsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

// SearchProducts dispatches searchProductsFunction
func (g *Gateway) SearchProducts(ctx context.Context, cfg models.PlatformConfig, req SearchProductsRequest) ([]Product, error) {
	var products []Product
	err := g.invoke(cfg, OpSearchProducts, func(a PlatformAdapter) error {
		var callErr error
		products, callErr = a.SearchProducts(ctx, cfg, req)
		return callErr
	})
	return products, err
}

// GetProduct dispatches getProductFunction
func (g *Gateway) GetProduct(ctx context.Context, cfg models.PlatformConfig, productID string) (*Product, error) {
	var product *Product
	err := g.invoke(cfg, OpGetProduct, func(a PlatformAdapter) error {
		var callErr error
		product, callErr = a.GetProduct(ctx, cfg, productID)
		return callErr
	})
	return product, err
}

// UpdateProduct dispatches updateProductFunction
func (g *Gateway) UpdateProduct(ctx context.Context, cfg models.PlatformConfig, update ProductUpdate) error {
	return g.invoke(cfg, OpUpdateProduct, func(a PlatformAdapter) error {
		return a.UpdateProduct(ctx, cfg, update)
	})
}

// SearchOrders dispatches searchOrdersFunction
func (g *Gateway) SearchOrders(ctx context.Context, cfg models.PlatformConfig, req SearchOrdersRequest) ([]OrderSummary, error) {
	var orders []OrderSummary
	err := g.invoke(cfg, OpSearchOrders, func(a PlatformAdapter) error {
		var callErr error
		orders, callErr = a.SearchOrders(ctx, cfg, req)
		return callErr
	})
	return orders, err
}

// CreatePurchase dispatches createPurchaseFunction
func (g *Gateway) CreatePurchase(ctx context.Context, cfg models.PlatformConfig, req PurchaseRequest) (*PurchaseResult, error) {
	var result *PurchaseResult
	err := g.invoke(cfg, OpCreatePurchase, func(a PlatformAdapter) error {
		var callErr error
		result, callErr = a.CreatePurchase(ctx, cfg, req)
		return callErr
	})
	return result, err
}

// CreateWebhook dispatches createWebhookFunction
func (g *Gateway) CreateWebhook(ctx context.Context, cfg models.PlatformConfig, topic, address string) (*Webhook, error) {
	var webhook *Webhook
	err := g.invoke(cfg, OpCreateWebhook, func(a PlatformAdapter) error {
		var callErr error
		webhook, callErr = a.CreateWebhook(ctx, cfg, topic, address)
		return callErr
	})
	return webhook, err
}

// DeleteWebhook dispatches deleteWebhookFunction
func (g *Gateway) DeleteWebhook(ctx context.Context, cfg models.PlatformConfig, webhookID string) error {
	return g.invoke(cfg, OpDeleteWebhook, func(a PlatformAdapter) error {
		return a.DeleteWebhook(ctx, cfg, webhookID)
	})
}

// GetWebhooks dispatches getWebhooksFunction
func (g *Gateway) GetWebhooks(ctx context.Context, cfg models.PlatformConfig) ([]Webhook, error) {
	var webhooks []Webhook
	err := g.invoke(cfg, OpGetWebhooks, func(a PlatformAdapter) error {
		var callErr error
		webhooks, callErr = a.GetWebhooks(ctx, cfg)
		return callErr
	})
	return webhooks, err
}

// OAuth dispatches oAuthFunction
func (g *Gateway) OAuth(ctx context.Context, cfg models.PlatformConfig, req OAuthRequest) (string, error) {
	var authorizeURL string
	err := g.invoke(cfg, OpOAuth, func(a PlatformAdapter) error {
		var callErr error
		authorizeURL, callErr = a.OAuth(ctx, cfg, req)
		return callErr
	})
	return authorizeURL, err
}

// OAuthCallback dispatches oAuthCallbackFunction
func (g *Gateway) OAuthCallback(ctx context.Context, cfg models.PlatformConfig, code string) (string, error) {
	var token string
	err := g.invoke(cfg, OpOAuthCallback, func(a PlatformAdapter) error {
		var callErr error
		token, callErr = a.OAuthCallback(ctx, cfg, code)
		return callErr
	})
	return token, err
}

// AddTracking dispatches addTrackingFunction
func (g *Gateway) AddTracking(ctx context.Context, cfg models.PlatformConfig, req TrackingRequest) error {
	return g.invoke(cfg, OpAddTracking, func(a PlatformAdapter) error {
		return a.AddTracking(ctx, cfg, req)
	})
}

// AddCartToOrder dispatches addCartToPlatformOrderFunction
func (g *Gateway) AddCartToOrder(ctx context.Context, cfg models.PlatformConfig, req CartForwardRequest) error {
	return g.invoke(cfg, OpAddCartToOrder, func(a PlatformAdapter) error {
		return a.AddCartToOrder(ctx, cfg, req)
	})
}
