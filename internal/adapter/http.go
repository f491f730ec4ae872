package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"fulfillment-service/internal/models"
)

// HTTPAdapter satisfies PlatformAdapter for externally hosted adapters. Each
// call POSTs {platform_config, ...args} as JSON to the configured endpoint
// and decodes a JSON response; any non-2xx status is a hard failure.
type HTTPAdapter struct {
	client   *http.Client
	endpoint string
}

func (h *HTTPAdapter) post(ctx context.Context, cfg models.PlatformConfig, args map[string]interface{}, out interface{}) error {
	payload := map[string]interface{}{"platform_config": cfg}
	for k, v := range args {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal adapter request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote adapter call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Status: resp.StatusCode, StatusText: resp.Status}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode adapter response: %w", err)
	}
	return nil
}

func (h *HTTPAdapter) SearchProducts(ctx context.Context, cfg models.PlatformConfig, req SearchProductsRequest) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	err := h.post(ctx, cfg, map[string]interface{}{"query": req.Query, "limit": req.Limit}, &out)
	return out.Products, err
}

func (h *HTTPAdapter) GetProduct(ctx context.Context, cfg models.PlatformConfig, productID string) (*Product, error) {
	var out struct {
		Product Product `json:"product"`
	}
	if err := h.post(ctx, cfg, map[string]interface{}{"product_id": productID}, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}

func (h *HTTPAdapter) UpdateProduct(ctx context.Context, cfg models.PlatformConfig, update ProductUpdate) error {
	return h.post(ctx, cfg, map[string]interface{}{"product_id": update.ProductID, "fields": update.Fields}, nil)
}

func (h *HTTPAdapter) SearchOrders(ctx context.Context, cfg models.PlatformConfig, req SearchOrdersRequest) ([]OrderSummary, error) {
	var out struct {
		Orders []OrderSummary `json:"orders"`
	}
	err := h.post(ctx, cfg, map[string]interface{}{"query": req.Query, "limit": req.Limit}, &out)
	return out.Orders, err
}

func (h *HTTPAdapter) CreatePurchase(ctx context.Context, cfg models.PlatformConfig, req PurchaseRequest) (*PurchaseResult, error) {
	var out PurchaseResult
	if err := h.post(ctx, cfg, map[string]interface{}{
		"items":   req.Items,
		"address": req.Address,
		"email":   req.Email,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTPAdapter) CreateWebhook(ctx context.Context, cfg models.PlatformConfig, topic, address string) (*Webhook, error) {
	var out struct {
		Webhook Webhook `json:"webhook"`
	}
	if err := h.post(ctx, cfg, map[string]interface{}{"topic": topic, "address": address}, &out); err != nil {
		return nil, err
	}
	return &out.Webhook, nil
}

func (h *HTTPAdapter) DeleteWebhook(ctx context.Context, cfg models.PlatformConfig, webhookID string) error {
	return h.post(ctx, cfg, map[string]interface{}{"webhook_id": webhookID}, nil)
}

func (h *HTTPAdapter) GetWebhooks(ctx context.Context, cfg models.PlatformConfig) ([]Webhook, error) {
	var out struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	err := h.post(ctx, cfg, nil, &out)
	return out.Webhooks, err
}

func (h *HTTPAdapter) OAuth(ctx context.Context, cfg models.PlatformConfig, req OAuthRequest) (string, error) {
	var out struct {
		AuthorizeURL string `json:"authorize_url"`
	}
	err := h.post(ctx, cfg, map[string]interface{}{
		"shop_domain":  req.ShopDomain,
		"redirect_uri": req.RedirectURI,
		"scopes":       req.Scopes,
	}, &out)
	return out.AuthorizeURL, err
}

func (h *HTTPAdapter) OAuthCallback(ctx context.Context, cfg models.PlatformConfig, code string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := h.post(ctx, cfg, map[string]interface{}{"code": code}, &out)
	return out.AccessToken, err
}

func (h *HTTPAdapter) AddTracking(ctx context.Context, cfg models.PlatformConfig, req TrackingRequest) error {
	return h.post(ctx, cfg, map[string]interface{}{
		"order_id":         req.OrderID,
		"tracking_number":  req.TrackingNumber,
		"tracking_company": req.TrackingCompany,
	}, nil)
}

func (h *HTTPAdapter) AddCartToOrder(ctx context.Context, cfg models.PlatformConfig, req CartForwardRequest) error {
	return h.post(ctx, cfg, map[string]interface{}{
		"order_id": req.OrderID,
		"items":    req.Items,
		"url":      req.URL,
	}, nil)
}
