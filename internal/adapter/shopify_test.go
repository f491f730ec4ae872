package adapter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShopifyProductNormalize(t *testing.T) {
	raw := []byte(`{
		"id": 632910392,
		"title": "IPod Nano",
		"image": {"src": "https://cdn.example/ipod.png"},
		"variants": [
			{"id": 808950810, "sku": "IPOD2008PINK", "price": "199.00"},
			{"id": 49148385, "sku": "IPOD2008RED", "price": "199.99"}
		]
	}`)

	var wire shopifyProduct
	require.NoError(t, json.Unmarshal(raw, &wire))

	p := wire.normalize()
	assert.Equal(t, "632910392", p.ID)
	assert.Equal(t, "IPod Nano", p.Title)
	assert.Equal(t, "https://cdn.example/ipod.png", p.Image)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, "808950810", p.Variants[0].ID)
	assert.Equal(t, "199.00", p.Variants[0].Price.StringFixed(2))
}
