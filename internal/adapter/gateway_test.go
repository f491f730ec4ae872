package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(operations map[string]string) models.PlatformConfig {
	return models.PlatformConfig{
		Platform:   "test-platform",
		Domain:     "shop.example",
		Operations: operations,
	}
}

func TestResolveUnconfiguredOperation(t *testing.T) {
	g := NewGateway(time.Second)

	_, err := g.GetProduct(context.Background(), testConfig(map[string]string{}), "P1")
	assert.ErrorIs(t, err, ErrAdapterNotFound)
}

func TestResolveUnknownBuiltin(t *testing.T) {
	g := NewGateway(time.Second)

	cfg := testConfig(map[string]string{OpGetProduct: "no-such-builtin"})
	_, err := g.GetProduct(context.Background(), cfg, "P1")
	assert.ErrorIs(t, err, ErrAdapterNotFound)
}

func TestResolveBuiltinShopify(t *testing.T) {
	g := NewGateway(time.Second)

	a, err := g.resolve(testConfig(map[string]string{OpGetProduct: "shopify"}), OpGetProduct)
	require.NoError(t, err)
	_, ok := a.(*ShopifyAdapter)
	assert.True(t, ok)
}

func TestResolveURLDispatchesRemotely(t *testing.T) {
	g := NewGateway(time.Second)

	a, err := g.resolve(testConfig(map[string]string{OpCreatePurchase: "https://adapter.example/purchase"}), OpCreatePurchase)
	require.NoError(t, err)
	remote, ok := a.(*HTTPAdapter)
	require.True(t, ok)
	assert.Equal(t, "https://adapter.example/purchase", remote.endpoint)
}

func TestRemotePurchasePostsConfigAndArgs(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(PurchaseResult{PurchaseID: "R-1", URL: "https://channel.example/r1"})
	}))
	defer srv.Close()

	g := NewGateway(time.Second)
	cfg := testConfig(map[string]string{OpCreatePurchase: srv.URL})

	result, err := g.CreatePurchase(context.Background(), cfg, PurchaseRequest{
		Items: []PurchaseItem{{ProductID: "C1", VariantID: "CV1", Quantity: 2}},
		Email: "buyer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "R-1", result.PurchaseID)

	pc, ok := received["platform_config"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "test-platform", pc["platform"])
	assert.Contains(t, received, "items")
	assert.Contains(t, received, "address")
}

func TestRemoteNon2xxIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewGateway(time.Second)
	cfg := testConfig(map[string]string{OpAddTracking: srv.URL})

	err := g.AddTracking(context.Background(), cfg, TrackingRequest{OrderID: "S-1", TrackingNumber: "T1"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
}

func TestTransportFailureWrappedAsExecutionError(t *testing.T) {
	g := NewGateway(100 * time.Millisecond)
	// nothing listens here
	cfg := testConfig(map[string]string{OpAddCartToOrder: "http://127.0.0.1:1/adapter"})

	err := g.AddCartToOrder(context.Background(), cfg, CartForwardRequest{OrderID: "S-1"})
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, OpAddCartToOrder, execErr.Op)
	assert.Equal(t, "test-platform", execErr.Platform)
}

func TestRemotePurchaseBusinessErrorPassedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PurchaseResult{Error: "variant unavailable"})
	}))
	defer srv.Close()

	g := NewGateway(time.Second)
	cfg := testConfig(map[string]string{OpCreatePurchase: srv.URL})

	result, err := g.CreatePurchase(context.Background(), cfg, PurchaseRequest{})
	require.NoError(t, err)
	assert.Equal(t, "variant unavailable", result.Error)
}

func TestRemoteWebhookRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"webhook": Webhook{ID: "wh-9", Topic: payload["topic"].(string), Address: payload["address"].(string)},
		})
	}))
	defer srv.Close()

	g := NewGateway(time.Second)
	cfg := testConfig(map[string]string{OpCreateWebhook: srv.URL})

	hook, err := g.CreateWebhook(context.Background(), cfg, "orders/create", "https://svc.example/webhooks/shop/1/orders/create")
	require.NoError(t, err)
	assert.Equal(t, "wh-9", hook.ID)
	assert.Equal(t, "orders/create", hook.Topic)
}

func TestCustomBuiltinRegistration(t *testing.T) {
	g := NewGateway(time.Second)
	stub := &stubAdapter{}
	g.Register("stub", stub)

	cfg := testConfig(map[string]string{OpDeleteWebhook: "stub"})
	require.NoError(t, g.DeleteWebhook(context.Background(), cfg, "wh-1"))
	assert.Equal(t, "wh-1", stub.deletedWebhookID)
}

func TestBuiltinErrorWrappedAsExecutionError(t *testing.T) {
	g := NewGateway(time.Second)
	g.Register("stub", &stubAdapter{err: errors.New("boom")})

	cfg := testConfig(map[string]string{OpDeleteWebhook: "stub"})
	err := g.DeleteWebhook(context.Background(), cfg, "wh-1")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.EqualError(t, execErr.Err, "boom")
}

func TestProductVariantLookup(t *testing.T) {
	p := &Product{
		ID: "C1",
		Variants: []Variant{
			{ID: "CV1", SKU: "A"},
			{ID: "CV2", SKU: "B"},
		},
	}
	require.NotNil(t, p.Variant("CV2"))
	assert.Equal(t, "B", p.Variant("CV2").SKU)
	assert.Nil(t, p.Variant("CV9"))
}

// stubAdapter is a builtin test double; only the methods under test do
// anything.
type stubAdapter struct {
	err              error
	deletedWebhookID string
}

func (s *stubAdapter) SearchProducts(ctx context.Context, cfg models.PlatformConfig, req SearchProductsRequest) ([]Product, error) {
	return nil, s.err
}

func (s *stubAdapter) GetProduct(ctx context.Context, cfg models.PlatformConfig, productID string) (*Product, error) {
	return nil, s.err
}

func (s *stubAdapter) UpdateProduct(ctx context.Context, cfg models.PlatformConfig, update ProductUpdate) error {
	return s.err
}

func (s *stubAdapter) SearchOrders(ctx context.Context, cfg models.PlatformConfig, req SearchOrdersRequest) ([]OrderSummary, error) {
	return nil, s.err
}

func (s *stubAdapter) CreatePurchase(ctx context.Context, cfg models.PlatformConfig, req PurchaseRequest) (*PurchaseResult, error) {
	return nil, s.err
}

func (s *stubAdapter) CreateWebhook(ctx context.Context, cfg models.PlatformConfig, topic, address string) (*Webhook, error) {
	return nil, s.err
}

func (s *stubAdapter) DeleteWebhook(ctx context.Context, cfg models.PlatformConfig, webhookID string) error {
	if s.err == nil {
		s.deletedWebhookID = webhookID
	}
	return s.err
}

func (s *stubAdapter) GetWebhooks(ctx context.Context, cfg models.PlatformConfig) ([]Webhook, error) {
	return nil, s.err
}

func (s *stubAdapter) OAuth(ctx context.Context, cfg models.PlatformConfig, req OAuthRequest) (string, error) {
	return "", s.err
}

func (s *stubAdapter) OAuthCallback(ctx context.Context, cfg models.PlatformConfig, code string) (string, error) {
	return "", s.err
}

func (s *stubAdapter) AddTracking(ctx context.Context, cfg models.PlatformConfig, req TrackingRequest) error {
	return s.err
}

func (s *stubAdapter) AddCartToOrder(ctx context.Context, cfg models.PlatformConfig, req CartForwardRequest) error {
	return s.err
}
