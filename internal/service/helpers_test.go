package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fulfillment-service/internal/adapter"
	"fulfillment-service/internal/models"
)

// memStore is an in-memory stand-in for *store.Store covering the store
// interfaces the services consume.
type memStore struct {
	mu  sync.Mutex
	seq int64

	shops            map[int64]*models.Shop
	channels         map[int64]*models.Channel
	shopPlatforms    map[int64]*models.Platform
	channelPlatforms map[int64]*models.Platform

	orders    map[int64]*models.Order
	lineItems []*models.LineItem

	shopItems    []*models.ShopItem
	channelItems []*models.ChannelItem

	matches map[int64]*memMatch

	cartItems []*models.CartItem

	links        []models.Link
	whereResults map[string]bool

	trackingDetails map[int64]*models.TrackingDetail
	processed       map[string]string
}

type memMatch struct {
	userID  int64
	inputs  []int64
	outputs []int64
}

func newMemStore() *memStore {
	return &memStore{
		shops:            make(map[int64]*models.Shop),
		channels:         make(map[int64]*models.Channel),
		shopPlatforms:    make(map[int64]*models.Platform),
		channelPlatforms: make(map[int64]*models.Platform),
		orders:           make(map[int64]*models.Order),
		matches:          make(map[int64]*memMatch),
		whereResults:     make(map[string]bool),
		trackingDetails:  make(map[int64]*models.TrackingDetail),
		processed:        make(map[string]string),
	}
}

func (m *memStore) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *memStore) addShop(shop models.Shop) *models.Shop {
	m.mu.Lock()
	defer m.mu.Unlock()
	if shop.ID == 0 {
		shop.ID = m.nextID()
	}
	m.shops[shop.ID] = &shop
	m.shopPlatforms[shop.ID] = &models.Platform{
		ID:   shop.PlatformID,
		Name: "shop-platform",
		Config: models.PlatformConfig{
			Platform:   "test",
			Operations: map[string]string{},
		},
	}
	return &shop
}

func (m *memStore) addChannel(channel models.Channel) *models.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if channel.ID == 0 {
		channel.ID = m.nextID()
	}
	m.channels[channel.ID] = &channel
	m.channelPlatforms[channel.ID] = &models.Platform{
		ID:   channel.PlatformID,
		Name: "channel-platform",
		Config: models.PlatformConfig{
			Platform:   "test",
			Operations: map[string]string{},
		},
	}
	return &channel
}

func (m *memStore) addOrder(order models.Order, lineItems ...models.LineItem) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == 0 {
		order.ID = m.nextID()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	m.orders[order.ID] = &order
	for _, li := range lineItems {
		li.ID = m.nextID()
		li.OrderID = order.ID
		item := li
		m.lineItems = append(m.lineItems, &item)
	}
	return &order
}

// resolverStore

func (m *memStore) GetShopItemByKey(ctx context.Context, productID, variantID string, quantity int, shopID, userID int64) (*models.ShopItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.shopItems {
		if it.ProductID == productID && it.VariantID == variantID && it.Quantity == quantity && it.ShopID == shopID && it.UserID == userID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateShopItem(ctx context.Context, item *models.ShopItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextID()
	cp := *item
	m.shopItems = append(m.shopItems, &cp)
	return nil
}

func (m *memStore) GetChannelItemByKey(ctx context.Context, productID, variantID string, quantity int, channelID, userID int64) (*models.ChannelItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.channelItems {
		if it.ProductID == productID && it.VariantID == variantID && it.Quantity == quantity && it.ChannelID == channelID && it.UserID == userID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateChannelItem(ctx context.Context, item *models.ChannelItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextID()
	cp := *item
	m.channelItems = append(m.channelItems, &cp)
	return nil
}

// matchStore

func (m *memStore) GetMatchIDsByInputCount(ctx context.Context, userID int64, count int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, match := range m.matches {
		if match.userID == userID && len(match.inputs) == count {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) GetMatchInputs(ctx context.Context, matchID int64) ([]models.ShopItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("match not found: %d", matchID)
	}
	var items []models.ShopItem
	for _, id := range match.inputs {
		for _, it := range m.shopItems {
			if it.ID == id {
				items = append(items, *it)
			}
		}
	}
	return items, nil
}

func (m *memStore) GetMatchOutputs(ctx context.Context, matchID int64) ([]models.ChannelItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("match not found: %d", matchID)
	}
	var items []models.ChannelItem
	for _, id := range match.outputs {
		for _, it := range m.channelItems {
			if it.ID == id {
				items = append(items, *it)
			}
		}
	}
	return items, nil
}

func (m *memStore) FindMatchByInputSet(ctx context.Context, userID int64, shopItemIDs []int64) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[int64]bool, len(shopItemIDs))
	for _, id := range shopItemIDs {
		want[id] = true
	}
	for id, match := range m.matches {
		if match.userID != userID || len(match.inputs) != len(want) {
			continue
		}
		all := true
		for _, in := range match.inputs {
			if !want[in] {
				all = false
				break
			}
		}
		if all {
			return &models.Match{ID: id, UserID: userID}, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateMatch(ctx context.Context, userID int64, inputIDs, outputIDs []int64) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	m.matches[id] = &memMatch{
		userID:  userID,
		inputs:  append([]int64(nil), inputIDs...),
		outputs: append([]int64(nil), outputIDs...),
	}
	return &models.Match{ID: id, UserID: userID}, nil
}

func (m *memStore) ReplaceMatchOutputs(ctx context.Context, matchID int64, outputIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[matchID]
	if !ok {
		return fmt.Errorf("match not found: %d", matchID)
	}
	match.outputs = append([]int64(nil), outputIDs...)
	return nil
}

// linkStore

func (m *memStore) GetLinksByShopID(ctx context.Context, shopID int64) ([]models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var links []models.Link
	for _, l := range m.links {
		if l.ShopID == shopID {
			links = append(links, l)
		}
	}
	return links, nil
}

func (m *memStore) CountLinksByShopID(ctx context.Context, shopID int64) (int, error) {
	links, _ := m.GetLinksByShopID(ctx, shopID)
	return len(links), nil
}

func (m *memStore) OrderMatchesWhere(ctx context.Context, orderID int64, where string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.whereResults[where], nil
}

// cartStore

func (m *memStore) GetActiveCartItem(ctx context.Context, orderID, channelID int64, productID, variantID string, userID int64) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.cartItems {
		if it.OrderID == orderID && it.ChannelID == channelID && it.ProductID == productID && it.VariantID == variantID && it.UserID == userID && it.Active() {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextID()
	cp := *item
	m.cartItems = append(m.cartItems, &cp)
	return nil
}

func (m *memStore) IncrementCartItemQuantity(ctx context.Context, id int64, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.cartItems {
		if it.ID == id {
			it.Quantity += delta
			return nil
		}
	}
	return fmt.Errorf("cart item not found: %d", id)
}

func (m *memStore) GetCartItemsByOrderID(ctx context.Context, orderID int64) ([]models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.CartItem
	for _, it := range m.cartItems {
		if it.OrderID == orderID {
			items = append(items, *it)
		}
	}
	return items, nil
}

func (m *memStore) GetPendingCartItemsByOrderID(ctx context.Context, orderID int64) ([]models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.CartItem
	for _, it := range m.cartItems {
		if it.OrderID == orderID && it.Active() {
			items = append(items, *it)
		}
	}
	return items, nil
}

func (m *memStore) CountPendingCartItems(ctx context.Context, orderID int64) (int, error) {
	items, _ := m.GetPendingCartItemsByOrderID(ctx, orderID)
	return len(items), nil
}

func (m *memStore) CountUntrackedCartItems(ctx context.Context, orderID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, it := range m.cartItems {
		if it.OrderID == orderID && it.Status != models.CartItemStatusCancelled && !it.TrackingID.Valid {
			count++
		}
	}
	return count, nil
}

func (m *memStore) SetCartItemsPurchase(ctx context.Context, ids []int64, purchaseID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for _, it := range m.cartItems {
			if it.ID == id {
				it.PurchaseID = purchaseID
				it.URL = url
				it.Error = ""
			}
		}
	}
	return nil
}

func (m *memStore) SetCartItemsError(ctx context.Context, ids []int64, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for _, it := range m.cartItems {
			if it.ID == id {
				it.Error = errText
			}
		}
	}
	return nil
}

func (m *memStore) CancelCartItemsByOrder(ctx context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.cartItems {
		if it.OrderID == orderID && it.PurchaseID == "" && it.URL == "" {
			it.Status = models.CartItemStatusCancelled
		}
	}
	return nil
}

func (m *memStore) CancelCartItemsByPurchase(ctx context.Context, purchaseID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]bool)
	var orderIDs []int64
	for _, it := range m.cartItems {
		if it.PurchaseID == purchaseID {
			it.Status = models.CartItemStatusCancelled
			if !seen[it.OrderID] {
				seen[it.OrderID] = true
				orderIDs = append(orderIDs, it.OrderID)
			}
		}
	}
	return orderIDs, nil
}

func (m *memStore) SetCartItemsTracking(ctx context.Context, purchaseID string, trackingID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]bool)
	var orderIDs []int64
	for _, it := range m.cartItems {
		if it.PurchaseID == purchaseID && it.Status != models.CartItemStatusCancelled {
			it.TrackingID.Int64 = trackingID
			it.TrackingID.Valid = true
			if !seen[it.OrderID] {
				seen[it.OrderID] = true
				orderIDs = append(orderIDs, it.OrderID)
			}
		}
	}
	return orderIDs, nil
}

// order / reference reads

func (m *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	cp := *order
	return &cp, nil
}

func (m *memStore) GetOrderByExternalID(ctx context.Context, shopID int64, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.ShopID == shopID && order.OrderID == orderID {
			cp := *order
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.nextID()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *memStore) CreateLineItem(ctx context.Context, item *models.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextID()
	cp := *item
	m.lineItems = append(m.lineItems, &cp)
	return nil
}

func (m *memStore) GetLineItemsByOrderID(ctx context.Context, orderID int64) ([]models.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.LineItem
	for _, it := range m.lineItems {
		if it.OrderID == orderID {
			items = append(items, *it)
		}
	}
	return items, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %d", orderID)
	}
	order.Status = status
	return nil
}

func (m *memStore) SetOrderError(ctx context.Context, orderID int64, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %d", orderID)
	}
	order.Error = errText
	return nil
}

func (m *memStore) GetShopByID(ctx context.Context, id int64) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shop, ok := m.shops[id]
	if !ok {
		return nil, fmt.Errorf("shop not found: %d", id)
	}
	cp := *shop
	return &cp, nil
}

func (m *memStore) GetChannelByID(ctx context.Context, id int64) (*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[id]
	if !ok {
		return nil, fmt.Errorf("channel not found: %d", id)
	}
	cp := *channel
	return &cp, nil
}

func (m *memStore) GetShopPlatform(ctx context.Context, shopID int64) (*models.Platform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.shopPlatforms[shopID]
	if !ok {
		return nil, fmt.Errorf("no platform for shop %d", shopID)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetChannelPlatform(ctx context.Context, channelID int64) (*models.Platform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.channelPlatforms[channelID]
	if !ok {
		return nil, fmt.Errorf("no platform for channel %d", channelID)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateTrackingDetail(ctx context.Context, td *models.TrackingDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	td.ID = m.nextID()
	cp := *td
	m.trackingDetails[td.ID] = &cp
	return nil
}

func (m *memStore) GetTrackingDetailByID(ctx context.Context, id int64) (*models.TrackingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	td, ok := m.trackingDetails[id]
	if !ok {
		return nil, fmt.Errorf("tracking detail not found: %d", id)
	}
	cp := *td
	return &cp, nil
}

// fakeLocker always grants the lock and records held keys.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	busy map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool), busy: make(map[string]bool)}
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy[key] || l.held[key] {
		return "", false, nil
	}
	l.held[key] = true
	return "token-" + key, true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// fakeGateway records adapter calls and answers from canned data.
type fakeGateway struct {
	mu sync.Mutex

	products    map[string]*adapter.Product
	purchase    func(cfg models.PlatformConfig, req adapter.PurchaseRequest) (*adapter.PurchaseResult, error)
	trackingErr error
	cartErr     error

	purchaseCalls []adapter.PurchaseRequest
	trackingCalls []adapter.TrackingRequest
	cartForwards  []adapter.CartForwardRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{products: make(map[string]*adapter.Product)}
}

func (g *fakeGateway) GetProduct(ctx context.Context, cfg models.PlatformConfig, productID string) (*adapter.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.products[productID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("product not found: %s", productID)
}

func (g *fakeGateway) CreatePurchase(ctx context.Context, cfg models.PlatformConfig, req adapter.PurchaseRequest) (*adapter.PurchaseResult, error) {
	g.mu.Lock()
	g.purchaseCalls = append(g.purchaseCalls, req)
	fn := g.purchase
	g.mu.Unlock()
	if fn != nil {
		return fn(cfg, req)
	}
	return &adapter.PurchaseResult{PurchaseID: fmt.Sprintf("P%d", len(g.purchaseCalls)), URL: "https://channel.example/purchase"}, nil
}

func (g *fakeGateway) AddTracking(ctx context.Context, cfg models.PlatformConfig, req adapter.TrackingRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trackingCalls = append(g.trackingCalls, req)
	return g.trackingErr
}

func (g *fakeGateway) AddCartToOrder(ctx context.Context, cfg models.PlatformConfig, req adapter.CartForwardRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cartForwards = append(g.cartForwards, req)
	return g.cartErr
}

func (g *fakeGateway) CreateWebhook(ctx context.Context, cfg models.PlatformConfig, topic, address string) (*adapter.Webhook, error) {
	return &adapter.Webhook{ID: "wh-1", Topic: topic, Address: address}, nil
}

func (g *fakeGateway) DeleteWebhook(ctx context.Context, cfg models.PlatformConfig, webhookID string) error {
	return nil
}

func (g *fakeGateway) GetWebhooks(ctx context.Context, cfg models.PlatformConfig) ([]adapter.Webhook, error) {
	return nil, nil
}

// fakePublisher collects published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *fakePublisher) record(event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) PublishOrderReceived(ctx context.Context, event *models.OrderReceivedEvent) error {
	return p.record(event)
}

func (p *fakePublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return p.record(event)
}

func (p *fakePublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return p.record(event)
}

func (p *fakePublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return p.record(event)
}

func (p *fakePublisher) PublishTrackingCreated(ctx context.Context, event *models.TrackingCreatedEvent) error {
	return p.record(event)
}

func (p *fakePublisher) PublishPurchaseCancelled(ctx context.Context, event *models.PurchaseCancelledEvent) error {
	return p.record(event)
}

func (p *fakePublisher) byType(eventType string) []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []interface{}
	for _, e := range p.events {
		switch ev := e.(type) {
		case *models.OrderReceivedEvent:
			if ev.EventType == eventType {
				out = append(out, e)
			}
		case *models.OrderCancelledEvent:
			if ev.EventType == eventType {
				out = append(out, e)
			}
		case *models.OrderPlacedEvent:
			if ev.EventType == eventType {
				out = append(out, e)
			}
		case *models.OrderCompletedEvent:
			if ev.EventType == eventType {
				out = append(out, e)
			}
		case *models.TrackingCreatedEvent:
			if ev.EventType == eventType {
				out = append(out, e)
			}
		case *models.PurchaseCancelledEvent:
			if ev.EventType == eventType {
				out = append(out, e)
			}
		}
	}
	return out
}
