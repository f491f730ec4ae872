package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"fulfillment-service/internal/models"

	"github.com/shopspring/decimal"
)

const shopifyAPIVersion = "2024-01"

// ShopifyAdapter is the builtin adapter for Shopify-backed shops and
// channels, registered under the "shopify" key.
type ShopifyAdapter struct {
	client *http.Client
}

// NewShopifyAdapter creates a Shopify adapter sharing the gateway's client.
func NewShopifyAdapter(client *http.Client) *ShopifyAdapter {
	return &ShopifyAdapter{client: client}
}

func (sa *ShopifyAdapter) baseURL(cfg models.PlatformConfig) string {
	return fmt.Sprintf("https://%s/admin/api/%s", cfg.Domain, shopifyAPIVersion)
}

func (sa *ShopifyAdapter) doJSON(ctx context.Context, cfg models.PlatformConfig, method, endpoint string, in, out interface{}) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", cfg.AccessToken)

	resp, err := sa.client.Do(req)
	if err != nil {
		return fmt.Errorf("shopify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("shopify returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// shopifyProduct is the wire shape of a Shopify product.
type shopifyProduct struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
	Image struct {
		Src string `json:"src"`
	} `json:"image"`
	Variants []struct {
		ID    json.Number     `json:"id"`
		SKU   string          `json:"sku"`
		Price decimal.Decimal `json:"price"`
	} `json:"variants"`
}

func (p shopifyProduct) normalize() Product {
	out := Product{
		ID:    p.ID.String(),
		Title: p.Title,
		Image: p.Image.Src,
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, Variant{
			ID:    v.ID.String(),
			SKU:   v.SKU,
			Price: v.Price,
		})
	}
	return out
}

func (sa *ShopifyAdapter) SearchProducts(ctx context.Context, cfg models.PlatformConfig, req SearchProductsRequest) ([]Product, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	endpoint := fmt.Sprintf("%s/products.json?title=%s&limit=%d",
		sa.baseURL(cfg), url.QueryEscape(req.Query), limit)

	var out struct {
		Products []shopifyProduct `json:"products"`
	}
	if err := sa.doJSON(ctx, cfg, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(out.Products))
	for _, p := range out.Products {
		products = append(products, p.normalize())
	}
	return products, nil
}

func (sa *ShopifyAdapter) GetProduct(ctx context.Context, cfg models.PlatformConfig, productID string) (*Product, error) {
	endpoint := fmt.Sprintf("%s/products/%s.json", sa.baseURL(cfg), url.PathEscape(productID))

	var out struct {
		Product shopifyProduct `json:"product"`
	}
	if err := sa.doJSON(ctx, cfg, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	product := out.Product.normalize()
	return &product, nil
}

func (sa *ShopifyAdapter) UpdateProduct(ctx context.Context, cfg models.PlatformConfig, update ProductUpdate) error {
	endpoint := fmt.Sprintf("%s/products/%s.json", sa.baseURL(cfg), url.PathEscape(update.ProductID))

	fields := map[string]interface{}{"id": update.ProductID}
	for k, v := range update.Fields {
		fields[k] = v
	}
	return sa.doJSON(ctx, cfg, http.MethodPut, endpoint, map[string]interface{}{"product": fields}, nil)
}

func (sa *ShopifyAdapter) SearchOrders(ctx context.Context, cfg models.PlatformConfig, req SearchOrdersRequest) ([]OrderSummary, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	endpoint := fmt.Sprintf("%s/orders.json?status=any&name=%s&limit=%d",
		sa.baseURL(cfg), url.QueryEscape(req.Query), limit)

	var out struct {
		Orders []struct {
			ID         json.Number     `json:"id"`
			Name       string          `json:"name"`
			Email      string          `json:"email"`
			TotalPrice decimal.Decimal `json:"total_price"`
			Currency   string          `json:"currency"`
		} `json:"orders"`
	}
	if err := sa.doJSON(ctx, cfg, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}

	orders := make([]OrderSummary, 0, len(out.Orders))
	for _, o := range out.Orders {
		orders = append(orders, OrderSummary{
			ID:         o.ID.String(),
			Name:       o.Name,
			Email:      o.Email,
			TotalPrice: o.TotalPrice,
			Currency:   o.Currency,
		})
	}
	return orders, nil
}

// CreatePurchase creates a draft order on the channel shop and returns its
// id and invoice url as the purchase handle.
func (sa *ShopifyAdapter) CreatePurchase(ctx context.Context, cfg models.PlatformConfig, req PurchaseRequest) (*PurchaseResult, error) {
	endpoint := fmt.Sprintf("%s/draft_orders.json", sa.baseURL(cfg))

	lineItems := make([]map[string]interface{}, 0, len(req.Items))
	for _, item := range req.Items {
		lineItems = append(lineItems, map[string]interface{}{
			"variant_id": item.VariantID,
			"quantity":   item.Quantity,
		})
	}

	payload := map[string]interface{}{
		"draft_order": map[string]interface{}{
			"line_items": lineItems,
			"email":      req.Email,
			"shipping_address": map[string]interface{}{
				"name":         req.Address.Name,
				"address1":     req.Address.Address1,
				"address2":     req.Address.Address2,
				"city":         req.Address.City,
				"province":     req.Address.Province,
				"zip":          req.Address.Zip,
				"country_code": req.Address.CountryCode,
				"phone":        req.Address.Phone,
			},
		},
	}

	var out struct {
		DraftOrder struct {
			ID         json.Number `json:"id"`
			InvoiceURL string      `json:"invoice_url"`
		} `json:"draft_order"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := sa.doJSON(ctx, cfg, http.MethodPost, endpoint, payload, &out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		return &PurchaseResult{Error: string(out.Errors)}, nil
	}

	return &PurchaseResult{
		PurchaseID: out.DraftOrder.ID.String(),
		URL:        out.DraftOrder.InvoiceURL,
	}, nil
}

func (sa *ShopifyAdapter) CreateWebhook(ctx context.Context, cfg models.PlatformConfig, topic, address string) (*Webhook, error) {
	endpoint := fmt.Sprintf("%s/webhooks.json", sa.baseURL(cfg))

	payload := map[string]interface{}{
		"webhook": map[string]interface{}{
			"topic":   topic,
			"address": address,
			"format":  "json",
		},
	}

	var out struct {
		Webhook struct {
			ID      json.Number `json:"id"`
			Topic   string      `json:"topic"`
			Address string      `json:"address"`
		} `json:"webhook"`
	}
	if err := sa.doJSON(ctx, cfg, http.MethodPost, endpoint, payload, &out); err != nil {
		return nil, err
	}
	return &Webhook{
		ID:      out.Webhook.ID.String(),
		Topic:   out.Webhook.Topic,
		Address: out.Webhook.Address,
	}, nil
}

func (sa *ShopifyAdapter) DeleteWebhook(ctx context.Context, cfg models.PlatformConfig, webhookID string) error {
	endpoint := fmt.Sprintf("%s/webhooks/%s.json", sa.baseURL(cfg), url.PathEscape(webhookID))
	return sa.doJSON(ctx, cfg, http.MethodDelete, endpoint, nil, nil)
}

func (sa *ShopifyAdapter) GetWebhooks(ctx context.Context, cfg models.PlatformConfig) ([]Webhook, error) {
	endpoint := fmt.Sprintf("%s/webhooks.json", sa.baseURL(cfg))

	var out struct {
		Webhooks []struct {
			ID      json.Number `json:"id"`
			Topic   string      `json:"topic"`
			Address string      `json:"address"`
		} `json:"webhooks"`
	}
	if err := sa.doJSON(ctx, cfg, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}

	webhooks := make([]Webhook, 0, len(out.Webhooks))
	for _, w := range out.Webhooks {
		webhooks = append(webhooks, Webhook{ID: w.ID.String(), Topic: w.Topic, Address: w.Address})
	}
	return webhooks, nil
}

func (sa *ShopifyAdapter) OAuth(ctx context.Context, cfg models.PlatformConfig, req OAuthRequest) (string, error) {
	scopes := req.Scopes
	if scopes == "" {
		scopes = "read_products,write_orders"
	}
	authorize := fmt.Sprintf("https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s",
		req.ShopDomain, url.QueryEscape(cfg.APIKey), url.QueryEscape(scopes), url.QueryEscape(req.RedirectURI))
	return authorize, nil
}

func (sa *ShopifyAdapter) OAuthCallback(ctx context.Context, cfg models.PlatformConfig, code string) (string, error) {
	endpoint := fmt.Sprintf("https://%s/admin/oauth/access_token", cfg.Domain)

	payload := map[string]string{
		"client_id":     cfg.APIKey,
		"client_secret": cfg.APISecret,
		"code":          code,
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := sa.doJSON(ctx, cfg, http.MethodPost, endpoint, payload, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (sa *ShopifyAdapter) AddTracking(ctx context.Context, cfg models.PlatformConfig, req TrackingRequest) error {
	endpoint := fmt.Sprintf("%s/orders/%s/fulfillments.json", sa.baseURL(cfg), url.PathEscape(req.OrderID))

	payload := map[string]interface{}{
		"fulfillment": map[string]interface{}{
			"tracking_number":  req.TrackingNumber,
			"tracking_company": req.TrackingCompany,
			"notify_customer":  true,
		},
	}
	return sa.doJSON(ctx, cfg, http.MethodPost, endpoint, payload, nil)
}

// AddCartToOrder mirrors the placed baskets onto the platform order as note
// attributes.
func (sa *ShopifyAdapter) AddCartToOrder(ctx context.Context, cfg models.PlatformConfig, req CartForwardRequest) error {
	endpoint := fmt.Sprintf("%s/orders/%s.json", sa.baseURL(cfg), url.PathEscape(req.OrderID))

	notes := make([]map[string]string, 0, len(req.Items))
	for _, item := range req.Items {
		notes = append(notes, map[string]string{
			"name":  fmt.Sprintf("sourced_%s_%s", item.ProductID, item.VariantID),
			"value": fmt.Sprintf("qty %d @ %s", item.Quantity, item.Price.String()),
		})
	}

	payload := map[string]interface{}{
		"order": map[string]interface{}{
			"id":              req.OrderID,
			"note_attributes": notes,
		},
	}
	return sa.doJSON(ctx, cfg, http.MethodPut, endpoint, payload, nil)
}
