package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlatformConfig holds the per-platform adapter configuration: app
// credentials plus the operation table. Each operation value is either an
// absolute URL (remote adapter) or the key of a builtin adapter.
type PlatformConfig struct {
	Platform    string            `json:"platform"`
	Domain      string            `json:"domain,omitempty"`
	APIKey      string            `json:"api_key,omitempty"`
	APISecret   string            `json:"api_secret,omitempty"`
	AccessToken string            `json:"access_token,omitempty"`
	Operations  map[string]string `json:"operations"`
}

// Value implements driver.Valuer so the config can live in a JSONB column.
func (c PlatformConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *PlatformConfig) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		*c = PlatformConfig{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into PlatformConfig", src)
	}
}

// Platform is a shop-side or channel-side platform definition. Many shops or
// channels reference one platform row.
type Platform struct {
	ID        int64          `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Config    PlatformConfig `db:"config" json:"config"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Shop is the originating sales channel where customers place orders.
type Shop struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Domain      string    `db:"domain" json:"domain"`
	PlatformID  int64     `db:"platform_id" json:"platform_id"`
	AccessToken string    `db:"access_token" json:"-"`
	LinkMode    string    `db:"link_mode" json:"link_mode"`
	AutoLink    bool      `db:"auto_link" json:"auto_link"`
	AutoMatch   bool      `db:"auto_match" json:"auto_match"`
	AutoProcess bool      `db:"auto_process" json:"auto_process"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Channel is an external channel orders can be fulfilled from.
type Channel struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Domain      string    `db:"domain" json:"domain"`
	PlatformID  int64     `db:"platform_id" json:"platform_id"`
	AccessToken string    `db:"access_token" json:"-"`
	Email       string    `db:"email" json:"email"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Order is an ingested shop order with its routing flags and pipeline state.
type Order struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      string          `db:"order_id" json:"order_id"`
	ShopID       int64           `db:"shop_id" json:"shop_id"`
	UserID       int64           `db:"user_id" json:"user_id"`
	Email        string          `db:"email" json:"email"`
	Name         string          `db:"name" json:"name"`
	Address1     string          `db:"address1" json:"address1"`
	Address2     string          `db:"address2" json:"address2"`
	City         string          `db:"city" json:"city"`
	Province     string          `db:"province" json:"province"`
	Zip          string          `db:"zip" json:"zip"`
	CountryCode  string          `db:"country_code" json:"country_code"`
	Phone        string          `db:"phone" json:"phone"`
	TotalPrice   decimal.Decimal `db:"total_price" json:"total_price"`
	Currency     string          `db:"currency" json:"currency"`
	LinkOrder    bool            `db:"link_order" json:"link_order"`
	MatchOrder   bool            `db:"match_order" json:"match_order"`
	ProcessOrder bool            `db:"process_order" json:"process_order"`
	Status       string          `db:"status" json:"status"`
	Error        string          `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// LineItem is the immutable snapshot of what the customer bought on the shop.
type LineItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	VariantID string          `db:"variant_id" json:"variant_id"`
	Title     string          `db:"title" json:"title"`
	SKU       string          `db:"sku" json:"sku"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// ShopItem is a resolved "what to source" identity, unique per
// (product, variant, quantity, shop, user).
type ShopItem struct {
	ID         int64     `db:"id" json:"id"`
	ShopID     int64     `db:"shop_id" json:"shop_id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	ProductID  string    `db:"product_id" json:"product_id"`
	VariantID  string    `db:"variant_id" json:"variant_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	SKU        string    `db:"sku" json:"sku"`
	LineItemID string    `db:"line_item_id" json:"line_item_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChannelItem is the symmetric "what to buy" identity. Its price is a
// snapshot used for price-change detection against live channel data.
type ChannelItem struct {
	ID        int64           `db:"id" json:"id"`
	ChannelID int64           `db:"channel_id" json:"channel_id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	VariantID string          `db:"variant_id" json:"variant_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Title     string          `db:"title" json:"title"`
	Image     string          `db:"image" json:"image"`
	SKU       string          `db:"sku" json:"sku"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Match joins a set of shop items (input) to a set of channel items (output).
// No two matches owned by the same user may share an identical input set.
type Match struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Inputs  []ShopItem    `db:"-" json:"inputs,omitempty"`
	Outputs []ChannelItem `db:"-" json:"outputs,omitempty"`
}

// CartItem is one purchase-basket line per (order, channel, product, variant).
type CartItem struct {
	ID         int64           `db:"id" json:"id"`
	OrderID    int64           `db:"order_id" json:"order_id"`
	ChannelID  int64           `db:"channel_id" json:"channel_id"`
	UserID     int64           `db:"user_id" json:"user_id"`
	ProductID  string          `db:"product_id" json:"product_id"`
	VariantID  string          `db:"variant_id" json:"variant_id"`
	Title      string          `db:"title" json:"title"`
	Image      string          `db:"image" json:"image"`
	SKU        string          `db:"sku" json:"sku"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Status     string          `db:"status" json:"status"`
	PurchaseID string          `db:"purchase_id" json:"purchase_id"`
	URL        string          `db:"url" json:"url"`
	Error      string          `db:"error" json:"error,omitempty"`
	TrackingID sql.NullInt64   `db:"tracking_id" json:"tracking_id,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Active reports whether the cart item still participates in dedupe and
// placement: not cancelled, not purchased, not fulfilled.
func (ci *CartItem) Active() bool {
	return ci.Status != CartItemStatusCancelled && ci.PurchaseID == "" && ci.URL == ""
}

// Filter is one typed predicate of a link, evaluated against the order
// snapshot. Op is one of eq, neq, gt, gte, lt, lte, contains.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// FilterList stores link filters as a JSONB column.
type FilterList []Filter

func (f FilterList) Value() (driver.Value, error) {
	if f == nil {
		return json.Marshal(FilterList{})
	}
	return json.Marshal(f)
}

func (f *FilterList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	case nil:
		*f = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into FilterList", src)
	}
}

// Link is an ordered routing rule from a shop to a channel.
type Link struct {
	ID          int64      `db:"id" json:"id"`
	ShopID      int64      `db:"shop_id" json:"shop_id"`
	ChannelID   int64      `db:"channel_id" json:"channel_id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	Rank        int        `db:"rank" json:"rank"`
	Filters     FilterList `db:"filters" json:"filters"`
	CustomWhere string     `db:"custom_where" json:"custom_where,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// TrackingDetail is a fulfillment record reported by a channel. It attaches
// to cart items through the shared purchase id.
type TrackingDetail struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	PurchaseID      string    `db:"purchase_id" json:"purchase_id"`
	TrackingNumber  string    `db:"tracking_number" json:"tracking_number"`
	TrackingCompany string    `db:"tracking_company" json:"tracking_company"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusAwaiting  = "AWAITING"
	OrderStatusComplete  = "COMPLETE"
	OrderStatusCancelled = "CANCELLED"
)

// Cart item statuses
const (
	CartItemStatusPending   = "PENDING"
	CartItemStatusCancelled = "CANCELLED"
)

// Link evaluation modes
const (
	LinkModeSequential   = "sequential"
	LinkModeSimultaneous = "simultaneous"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
