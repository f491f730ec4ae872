package adapter

import (
	"context"
	"errors"
	"fmt"

	"fulfillment-service/internal/models"

	"github.com/shopspring/decimal"
)

// Platform operation names. A platform config maps each of these to either
// an absolute URL (remote adapter) or a builtin adapter key.
const (
	OpSearchProducts = "searchProductsFunction"
	OpGetProduct     = "getProductFunction"
	OpUpdateProduct  = "updateProductFunction"
	OpSearchOrders   = "searchOrdersFunction"
	OpCreatePurchase = "createPurchaseFunction"
	OpCreateWebhook  = "createWebhookFunction"
	OpDeleteWebhook  = "deleteWebhookFunction"
	OpGetWebhooks    = "getWebhooksFunction"
	OpOAuth          = "oAuthFunction"
	OpOAuthCallback  = "oAuthCallbackFunction"
	OpAddTracking    = "addTrackingFunction"
	OpAddCartToOrder = "addCartToPlatformOrderFunction"
)

// ErrAdapterNotFound reports a missing builtin key or an operation the
// platform config does not define.
var ErrAdapterNotFound = errors.New("adapter not found")

// ExecutionError wraps any error raised inside an adapter so callers can
// tell configuration errors from transient ones.
type ExecutionError struct {
	Op       string
	Platform string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("adapter %s failed on %s: %v", e.Op, e.Platform, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// HTTPError reports a non-2xx response from a remote adapter.
type HTTPError struct {
	Status     int
	StatusText string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote adapter returned %s", e.StatusText)
}

// Product is the normalized product shape returned by adapters.
type Product struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Image    string    `json:"image"`
	Variants []Variant `json:"variants"`
}

// Variant is one purchasable variation of a product.
type Variant struct {
	ID    string          `json:"id"`
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
}

// Variant returns the variant with the given id, or nil.
func (p *Product) Variant(id string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// SearchProductsRequest narrows a product search.
type SearchProductsRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchOrdersRequest narrows an order search on a shop platform.
type SearchOrdersRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// OrderSummary is the normalized order shape returned by searchOrders.
type OrderSummary struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency"`
}

// ProductUpdate carries the fields to change on a shop product.
type ProductUpdate struct {
	ProductID string                 `json:"product_id"`
	Fields    map[string]interface{} `json:"fields"`
}

// PurchaseItem is one basket line of a purchase request.
type PurchaseItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	SKU       string          `json:"sku,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// ShippingAddress is the buyer address forwarded with a purchase.
type ShippingAddress struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	Zip         string `json:"zip"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
}

// PurchaseRequest is the basket handed to a channel's purchase operation.
type PurchaseRequest struct {
	Items   []PurchaseItem  `json:"items"`
	Address ShippingAddress `json:"address"`
	Email   string          `json:"email"`
}

// PurchaseResult is the outcome of createPurchase. A populated Error field
// is a business failure reported by the platform, not a transport error.
type PurchaseResult struct {
	PurchaseID string `json:"purchase_id"`
	URL        string `json:"url"`
	Error      string `json:"error,omitempty"`
}

// Webhook is a registered platform webhook.
type Webhook struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
}

// OAuthRequest starts the install flow for a platform app.
type OAuthRequest struct {
	ShopDomain  string `json:"shop_domain"`
	RedirectURI string `json:"redirect_uri"`
	Scopes      string `json:"scopes,omitempty"`
}

// TrackingRequest forwards fulfillment tracking to a shop platform.
type TrackingRequest struct {
	OrderID         string `json:"order_id"`
	TrackingNumber  string `json:"tracking_number"`
	TrackingCompany string `json:"tracking_company"`
}

// CartForwardRequest mirrors the placed baskets back onto the platform
// order, best effort.
type CartForwardRequest struct {
	OrderID string         `json:"order_id"`
	Items   []PurchaseItem `json:"items"`
	URL     string         `json:"url,omitempty"`
}

// PlatformAdapter is the closed operation set every platform implementation
// provides. Builtin adapters register under a key; HTTPAdapter satisfies the
// same contract for externally hosted adapters.
type PlatformAdapter interface {
	SearchProducts(ctx context.Context, cfg models.PlatformConfig, req SearchProductsRequest) ([]Product, error)
	GetProduct(ctx context.Context, cfg models.PlatformConfig, productID string) (*Product, error)
	UpdateProduct(ctx context.Context, cfg models.PlatformConfig, update ProductUpdate) error
	SearchOrders(ctx context.Context, cfg models.PlatformConfig, req SearchOrdersRequest) ([]OrderSummary, error)
	CreatePurchase(ctx context.Context, cfg models.PlatformConfig, req PurchaseRequest) (*PurchaseResult, error)
	CreateWebhook(ctx context.Context, cfg models.PlatformConfig, topic, address string) (*Webhook, error)
	DeleteWebhook(ctx context.Context, cfg models.PlatformConfig, webhookID string) error
	GetWebhooks(ctx context.Context, cfg models.PlatformConfig) ([]Webhook, error)
	OAuth(ctx context.Context, cfg models.PlatformConfig, req OAuthRequest) (string, error)
	OAuthCallback(ctx context.Context, cfg models.PlatformConfig, code string) (string, error)
	AddTracking(ctx context.Context, cfg models.PlatformConfig, req TrackingRequest) error
	AddCartToOrder(ctx context.Context, cfg models.PlatformConfig, req CartForwardRequest) error
}
