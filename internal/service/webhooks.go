package service

import (
	"context"
	"fmt"

	"fulfillment-service/internal/adapter"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

type webhookStore interface {
	GetShopByID(ctx context.Context, id int64) (*models.Shop, error)
	GetChannelByID(ctx context.Context, id int64) (*models.Channel, error)
	GetShopPlatform(ctx context.Context, id int64) (*models.Platform, error)
	GetChannelPlatform(ctx context.Context, id int64) (*models.Platform, error)
}

// WebhookService manages webhook registrations on shop and channel
// platforms through the adapter gateway.
type WebhookService struct {
	store   webhookStore
	gateway Gateway
	baseURL string
	logger  *zap.Logger
}

// NewWebhookService creates a new webhook service. baseURL is this
// service's externally reachable address; registered hooks point back at it.
func NewWebhookService(store webhookStore, gateway Gateway, baseURL string) *WebhookService {
	return &WebhookService{
		store:   store,
		gateway: gateway,
		baseURL: baseURL,
		logger:  util.GetLogger(),
	}
}

// CreateShopWebhook registers a webhook on the shop's platform pointing at
// this service's shop ingestion endpoint for the topic.
func (ws *WebhookService) CreateShopWebhook(ctx context.Context, shopID int64, topic string) (*adapter.Webhook, error) {
	ctx, span := util.StartSpan(ctx, "WebhookService.CreateShopWebhook")
	defer span.End()

	cfg, err := ws.shopConfig(ctx, shopID)
	if err != nil {
		return nil, err
	}
	address := fmt.Sprintf("%s/webhooks/shop/%d/%s", ws.baseURL, shopID, topic)
	hook, err := ws.gateway.CreateWebhook(ctx, cfg, topic, address)
	if err != nil {
		return nil, err
	}
	ws.logger.Info("Shop webhook registered",
		zap.Int64("shop_id", shopID),
		zap.String("topic", topic),
		zap.String("webhook_id", hook.ID))
	return hook, nil
}

// DeleteShopWebhook removes a webhook registration from the shop's platform.
func (ws *WebhookService) DeleteShopWebhook(ctx context.Context, shopID int64, webhookID string) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.DeleteShopWebhook")
	defer span.End()

	cfg, err := ws.shopConfig(ctx, shopID)
	if err != nil {
		return err
	}
	return ws.gateway.DeleteWebhook(ctx, cfg, webhookID)
}

// GetShopWebhooks lists the webhooks registered on the shop's platform.
func (ws *WebhookService) GetShopWebhooks(ctx context.Context, shopID int64) ([]adapter.Webhook, error) {
	cfg, err := ws.shopConfig(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return ws.gateway.GetWebhooks(ctx, cfg)
}

// CreateChannelWebhook registers a webhook on the channel's platform
// pointing at this service's channel ingestion endpoint for the topic.
func (ws *WebhookService) CreateChannelWebhook(ctx context.Context, channelID int64, topic string) (*adapter.Webhook, error) {
	ctx, span := util.StartSpan(ctx, "WebhookService.CreateChannelWebhook")
	defer span.End()

	cfg, err := ws.channelConfig(ctx, channelID)
	if err != nil {
		return nil, err
	}
	address := fmt.Sprintf("%s/webhooks/channel/%d/%s", ws.baseURL, channelID, topic)
	hook, err := ws.gateway.CreateWebhook(ctx, cfg, topic, address)
	if err != nil {
		return nil, err
	}
	ws.logger.Info("Channel webhook registered",
		zap.Int64("channel_id", channelID),
		zap.String("topic", topic),
		zap.String("webhook_id", hook.ID))
	return hook, nil
}

// DeleteChannelWebhook removes a webhook registration from the channel's
// platform.
func (ws *WebhookService) DeleteChannelWebhook(ctx context.Context, channelID int64, webhookID string) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.DeleteChannelWebhook")
	defer span.End()

	cfg, err := ws.channelConfig(ctx, channelID)
	if err != nil {
		return err
	}
	return ws.gateway.DeleteWebhook(ctx, cfg, webhookID)
}

// GetChannelWebhooks lists the webhooks registered on the channel's
// platform.
func (ws *WebhookService) GetChannelWebhooks(ctx context.Context, channelID int64) ([]adapter.Webhook, error) {
	cfg, err := ws.channelConfig(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return ws.gateway.GetWebhooks(ctx, cfg)
}

func (ws *WebhookService) shopConfig(ctx context.Context, shopID int64) (models.PlatformConfig, error) {
	shop, err := ws.store.GetShopByID(ctx, shopID)
	if err != nil {
		return models.PlatformConfig{}, err
	}
	platform, err := ws.store.GetShopPlatform(ctx, shopID)
	if err != nil {
		return models.PlatformConfig{}, err
	}
	return mergeShopConfig(platform, shop), nil
}

func (ws *WebhookService) channelConfig(ctx context.Context, channelID int64) (models.PlatformConfig, error) {
	channel, err := ws.store.GetChannelByID(ctx, channelID)
	if err != nil {
		return models.PlatformConfig{}, err
	}
	platform, err := ws.store.GetChannelPlatform(ctx, channelID)
	if err != nil {
		return models.PlatformConfig{}, err
	}
	return mergeChannelConfig(platform, channel), nil
}
