package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/auth"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/internal/pricing"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	carts map[string]models.Cart
}

func (m *memStore) Get(_ context.Context, userID string) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return &models.Cart{UserID: userID, Items: []models.LineItem{}}, nil
	}
	c.Items = append([]models.LineItem(nil), c.Items...)
	return &c, nil
}

func (m *memStore) Save(_ context.Context, c *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *c
	stored.Items = append([]models.LineItem(nil), c.Items...)
	m.carts[c.UserID] = stored
	return nil
}

type catalog map[string]*models.Product

func (c catalog) ProductByID(_ context.Context, id string) (*models.Product, error) {
	if p, ok := c[id]; ok && p.Active {
		return p, nil
	}
	return nil, apperr.NotFound("product")
}

func testCatalog() catalog {
	return catalog{
		"helmet": {ID: "helmet", Name: "Hard Hat", Slug: "hard-hat", Price: 349.99, Images: []string{"/img/hat.png"}, Active: true},
		"boots":  {ID: "boots", Name: "Steel Toe Boots", Slug: "steel-toe-boots", Price: 1250, Active: true},
		"vest":   {ID: "vest", Name: "Hi-Vis Vest", Slug: "hi-vis-vest", Price: 0.1, Active: true},
		"gone":   {ID: "gone", Name: "Retired", Price: 10, Active: false},
	}
}

func newTestService() (*Service, *memStore) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := &memStore{carts: make(map[string]models.Cart)}
	return NewService(store, testCatalog(), logger), store
}

func assertConsistent(t *testing.T, c *models.Cart) {
	t.Helper()
	assert.True(t, pricing.Consistent(c.Totals), "grand != subtotal + tax + shipping: %+v", c.Totals)
	assert.Equal(t, pricing.Compute(c.Items), c.Totals, "totals must be recomputed from items")
	if c.Totals.Subtotal > 1000 {
		assert.Zero(t, c.Totals.Shipping)
	} else {
		assert.Equal(t, 50.0, c.Totals.Shipping)
	}
}

func TestTotalsHoldAfterEveryMutation(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	steps := []struct {
		name string
		run  func() (*models.Cart, error)
	}{
		{"add helmet", func() (*models.Cart, error) { return svc.Add(ctx, "u1", "helmet", 2) }},
		{"add vest x3", func() (*models.Cart, error) { return svc.Add(ctx, "u1", "vest", 3) }},
		{"add helmet again", func() (*models.Cart, error) { return svc.Add(ctx, "u1", "helmet", 0) }},
		{"add boots crosses free shipping", func() (*models.Cart, error) { return svc.Add(ctx, "u1", "boots", 1) }},
		{"update vest", func() (*models.Cart, error) { return svc.Update(ctx, "u1", "vest", 7) }},
		{"remove boots", func() (*models.Cart, error) { return svc.Remove(ctx, "u1", "boots") }},
		{"clear", func() (*models.Cart, error) { return svc.Clear(ctx, "u1") }},
	}

	for _, step := range steps {
		c, err := step.run()
		require.NoError(t, err, step.name)
		assertConsistent(t, c)

		stored := store.carts["u1"]
		assert.Equal(t, c.Totals, stored.Totals, step.name)
	}

	final := store.carts["u1"]
	assert.Empty(t, final.Items)
	assert.Equal(t, models.Totals{Shipping: 50, Grand: 50}, final.Totals)
}

func TestAddSnapshotsPriceAndAccumulates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "helmet", 1)
	require.NoError(t, err)
	c, err := svc.Add(ctx, "u1", "helmet", 2)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	item := c.Items[0]
	assert.Equal(t, 3, item.Qty)
	assert.Equal(t, 349.99, item.Price)
	assert.Equal(t, "hard-hat", item.Slug)
	assert.Equal(t, "/img/hat.png", item.Image)
	assert.Equal(t, 1049.97, c.Totals.Subtotal)
	assert.Zero(t, c.Totals.Shipping)
}

func TestCartErrors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "gone", 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = svc.Add(ctx, "u1", "helmet", -1)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.Update(ctx, "u1", "helmet", 2)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = svc.Update(ctx, "u1", "helmet", 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.Remove(ctx, "u1", "helmet")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMerge(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "helmet", 1)
	require.NoError(t, err)

	c, err := svc.Merge(ctx, "u1", []Line{
		{ProductID: "helmet", Qty: 2},
		{ProductID: "vest", Qty: 4},
		{ProductID: "gone", Qty: 1},
		{ProductID: "unknown", Qty: 1},
	})
	require.NoError(t, err)
	assertConsistent(t, c)

	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Qty)
	assert.Equal(t, "vest", c.Items[1].ProductID)
	assert.Equal(t, 4, c.Items[1].Qty)

	_, err = svc.Merge(ctx, "u1", []Line{{ProductID: "vest", Qty: 0}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRepeatedRecalculationDoesNotDrift(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Add(ctx, "u1", "vest", 1)
	require.NoError(t, err)
	first := c.Totals
	for i := 0; i < 50; i++ {
		c, err = svc.Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, first, c.Totals)
	}
}

func TestHandlers(t *testing.T) {
	svc, _ := newTestService()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	h := NewHandler(svc, httpapi.NewResponder(logger, true), logger)

	router := mux.NewRouter()
	router.HandleFunc("/api/cart", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/api/cart/add", h.Add).Methods(http.MethodPost)
	router.HandleFunc("/api/cart/{productId}", h.Update).Methods(http.MethodPut)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req = req.WithContext(auth.WithUser(req.Context(), &models.User{ID: "u1", Role: models.RoleCustomer}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/api/cart/add", `{"productId":"boots","qty":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodPut, "/api/cart/boots", `{"qty":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool        `json:"success"`
		Cart    models.Cart `json:"cart"`
	}
	require.NoError(t, json.Unmarshal(do(http.MethodGet, "/api/cart", "").Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2500.0, resp.Cart.Totals.Subtotal)
	assert.Equal(t, 450.0, resp.Cart.Totals.Tax)
	assert.Equal(t, 2950.0, resp.Cart.Totals.Grand)

	rec = do(http.MethodPost, "/api/cart/add", `{"productId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
