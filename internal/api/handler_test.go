package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fulfillment-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderReader struct {
	orders []models.Order
}

func (r *fakeOrderReader) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	for i := range r.orders {
		if r.orders[i].ID == id {
			return &r.orders[i], nil
		}
	}
	return nil, fmt.Errorf("order not found: %d", id)
}

func (r *fakeOrderReader) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeOrderReader) GetLineItemsByOrderID(ctx context.Context, orderID int64) ([]models.LineItem, error) {
	return nil, nil
}

func (r *fakeOrderReader) GetCartItemsByOrderID(ctx context.Context, orderID int64) ([]models.CartItem, error) {
	return nil, nil
}

func newOrdersRouter(reader *fakeOrderReader) *gin.Engine {
	h := NewHandler(reader, nil, nil, nil, nil, nil)
	router := gin.New()
	router.GET("/api/v1/orders", h.listOrders)
	return router
}

func TestListOrdersByUser(t *testing.T) {
	reader := &fakeOrderReader{orders: []models.Order{
		{ID: 7, UserID: 10, OrderID: "S-1001"},
		{ID: 8, UserID: 11, OrderID: "S-2001"},
	}}
	router := newOrdersRouter(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?user_id=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "S-1001")
	assert.NotContains(t, w.Body.String(), "S-2001")
}

func TestListOrdersRequiresUserID(t *testing.T) {
	router := newOrdersRouter(&fakeOrderReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
