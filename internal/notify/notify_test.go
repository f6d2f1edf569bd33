package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jogardn/safety-storefront/internal/auth"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type memStore struct {
	mu      sync.Mutex
	items   []models.Notification
	failing error
}

func (m *memStore) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	m.items = append(m.items, *n)
	return nil
}

func (m *memStore) visible(n models.Notification, audience models.Audience, userID string) bool {
	return n.Audience == audience && (audience == models.AudienceAdmin || n.UserID == userID)
}

func (m *memStore) List(_ context.Context, audience models.Audience, userID string, _, _ int) ([]models.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.items {
		if m.visible(n, audience, userID) {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) MarkRead(_ context.Context, id string, audience models.Audience, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.items {
		if n.ID == id && m.visible(n, audience, userID) {
			m.items[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) MarkAllRead(_ context.Context, audience models.Audience, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for i, n := range m.items {
		if !n.Read && m.visible(n, audience, userID) {
			m.items[i].Read = true
			updated++
		}
	}
	return updated, nil
}

func (m *memStore) UnreadCount(_ context.Context, audience models.Audience, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.items {
		if !n.Read && m.visible(n, audience, userID) {
			count++
		}
	}
	return count, nil
}

type recordingDeliverer struct {
	mu        sync.Mutex
	delivered []*models.Notification
	err       error
}

func (d *recordingDeliverer) Deliver(_ context.Context, n *models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, n)
	return d.err
}

func TestBusPersistsThenDelivers(t *testing.T) {
	store := &memStore{}
	deliverer := &recordingDeliverer{}
	bus := NewBus(store, deliverer, quietLogger())

	err := bus.NotifyUser(context.Background(), "u1", models.NotifyOrderStatusChanged, "Order shipped", "SF-1 is on its way", map[string]string{"orderNo": "SF-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.items) != 1 {
		t.Fatalf("expected 1 persisted notification, got %d", len(store.items))
	}
	n := store.items[0]
	if n.ID == "" || n.CreatedAt.IsZero() {
		t.Errorf("id and created_at must be set: %+v", n)
	}
	if n.Room() != "user:u1" {
		t.Errorf("room = %q", n.Room())
	}
	if !strings.Contains(string(n.Data), "SF-1") {
		t.Errorf("data = %s", n.Data)
	}
	if len(deliverer.delivered) != 1 {
		t.Fatalf("expected one delivery, got %d", len(deliverer.delivered))
	}
}

func TestBusDeliveryFailureDoesNotFailPersist(t *testing.T) {
	store := &memStore{}
	bus := NewBus(store, &recordingDeliverer{err: errors.New("socket gone")}, quietLogger())

	if err := bus.NotifyAdmins(context.Background(), models.NotifyContactSubmitted, "New message", "hello", nil); err != nil {
		t.Fatalf("delivery failure must not surface: %v", err)
	}
	if len(store.items) != 1 {
		t.Fatal("notification should still be stored")
	}
	if store.items[0].Room() != models.AdminRoom {
		t.Errorf("room = %q", store.items[0].Room())
	}
}

func TestBusPersistFailureSkipsDelivery(t *testing.T) {
	deliverer := &recordingDeliverer{}
	bus := NewBus(&memStore{failing: errors.New("db down")}, deliverer, quietLogger())

	if err := bus.NotifyAdmins(context.Background(), "x", "t", "m", nil); err == nil {
		t.Fatal("expected persist error")
	}
	if len(deliverer.delivered) != 0 {
		t.Fatal("nothing should be delivered when persisting fails")
	}
}

type tokenResolver map[string]*models.User

func (r tokenResolver) Resolve(_ context.Context, token string) (*models.User, error) {
	if u, ok := r[token]; ok {
		return u, nil
	}
	return nil, errors.New("unknown token")
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestHubRoutesByRoom(t *testing.T) {
	resolver := tokenResolver{
		"admin-token":    {ID: "a1", Role: models.RoleAdmin},
		"customer-token": {ID: "c1", Role: models.RoleCustomer},
	}
	hub := NewHub(resolver, "*", "test", quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	admin := dial(t, server, "admin-token")
	defer admin.Close()
	customer := dial(t, server, "customer-token")
	defer customer.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("clients never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(models.UserRoom("someone-else"), "order.status_changed", "not for you")
	hub.Publish(models.UserRoom("c1"), "order.status_changed", "shipped")
	hub.Publish(models.AdminRoom, "order.placed", "SF-9")

	if msg := readMessage(t, customer); msg.Room != "user:c1" || msg.Data != "shipped" {
		t.Errorf("customer got %+v", msg)
	}
	if msg := readMessage(t, admin); msg.Room != models.AdminRoom || msg.Data != "SF-9" {
		t.Errorf("admin got %+v", msg)
	}
}

func TestHubRejectsUnknownToken(t *testing.T) {
	hub := NewHub(tokenResolver{}, "*", "test", quietLogger())
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestHubChecksOrigin(t *testing.T) {
	resolver := tokenResolver{"customer-token": {ID: "c1", Role: models.RoleCustomer}}

	tests := []struct {
		name    string
		allowed string
		origin  func(serverURL string) string
		ok      bool
	}{
		{"configured origin", "https://shop.example.com", func(string) string { return "https://shop.example.com" }, true},
		{"other origin", "https://shop.example.com", func(string) string { return "https://evil.example.net" }, false},
		{"wildcard same host", "*", func(u string) string { return u }, true},
		{"wildcard foreign host", "*", func(string) string { return "https://evil.example.net" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(resolver, tt.allowed, "test", quietLogger())
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go hub.Run(ctx)

			server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
			defer server.Close()

			header := http.Header{"Origin": []string{tt.origin(server.URL)}}
			url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=customer-token"
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("expected the handshake to be refused")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Fatalf("expected 403, got %+v", resp)
			}
		})
	}
}

func TestRoomsFor(t *testing.T) {
	rooms := RoomsFor(&models.User{ID: "u1", Role: models.RoleCustomer})
	if len(rooms) != 1 || !rooms["user:u1"] {
		t.Errorf("customer rooms = %v", rooms)
	}
	rooms = RoomsFor(&models.User{ID: "a1", Role: models.RoleAdmin})
	if !rooms[models.AdminRoom] || !rooms["user:a1"] {
		t.Errorf("admin rooms = %v", rooms)
	}
}

func TestHandlerScopesFeeds(t *testing.T) {
	store := &memStore{}
	bus := NewBus(store, nil, quietLogger())
	ctx := context.Background()
	bus.NotifyAdmins(ctx, models.NotifyOrderPlaced, "New order", "SF-1", nil)
	bus.NotifyUser(ctx, "c1", models.NotifyOrderStatusChanged, "Shipped", "SF-1", nil)
	bus.NotifyUser(ctx, "c2", models.NotifyOrderStatusChanged, "Shipped", "SF-2", nil)

	h := NewHandler(store, httpapi.NewResponder(quietLogger(), true), quietLogger())
	router := mux.NewRouter()
	router.HandleFunc("/api/notifications", h.UserList)
	router.HandleFunc("/api/notifications/{id}/read", h.UserMarkRead)
	router.HandleFunc("/api/admin/notifications/read-all", h.AdminMarkAllRead)

	asUser := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req = req.WithContext(auth.WithUser(req.Context(), &models.User{ID: "c1", Role: models.RoleCustomer}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := asUser(http.MethodGet, "/api/notifications")
	var feed struct {
		Items  []models.Notification `json:"items"`
		Unread int64                 `json:"unread"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &feed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(feed.Items) != 1 || feed.Items[0].UserID != "c1" || feed.Unread != 1 {
		t.Fatalf("customer feed = %+v", feed)
	}

	// Another customer's notification is invisible to c1.
	if rec := asUser(http.MethodPut, "/api/notifications/"+store.items[2].ID+"/read"); rec.Code != http.StatusNotFound {
		t.Errorf("foreign mark read = %d", rec.Code)
	}
	if rec := asUser(http.MethodPut, "/api/notifications/"+feed.Items[0].ID+"/read"); rec.Code != http.StatusOK {
		t.Errorf("mark read = %d", rec.Code)
	}
	if rec := asUser(http.MethodPut, "/api/notifications/not-an-id/read"); rec.Code != http.StatusNotFound {
		t.Errorf("bad id = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/admin/notifications/read-all", nil))
	if !strings.Contains(rec.Body.String(), `"updated":1`) {
		t.Errorf("read-all body = %s", rec.Body.String())
	}
}
