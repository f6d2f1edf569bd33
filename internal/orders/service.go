package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/database"
	"github.com/jogardn/safety-storefront/internal/pricing"
	"github.com/jogardn/safety-storefront/internal/validate"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

// Notifier is the part of the notification bus orders use.
type Notifier interface {
	NotifyAdmins(ctx context.Context, typ, title, message string, data interface{}) error
	NotifyUser(ctx context.Context, userID, typ, title, message string, data interface{}) error
}

// Catalog resolves the products being ordered. Unknown or inactive products
// come back as apperr NotFound.
type Catalog interface {
	ProductByID(ctx context.Context, id string) (*models.Product, error)
}

type PlaceRequest struct {
	OrderNo         string               `json:"orderNo"`
	Items           []models.LineItem    `json:"items"`
	Totals          *models.Totals       `json:"totals"`
	PaymentMethod   models.PaymentMethod `json:"paymentMethod"`
	ShippingAddress models.Address       `json:"shippingAddress"`
	BillingAddress  *models.Address      `json:"billingAddress"`
	GuestInfo       *models.GuestInfo    `json:"guestInfo"`
	Notes           string               `json:"notes"`
}

// Caller identifies who is asking. A zero Caller is an anonymous guest.
type Caller struct {
	UserID string
	Admin  bool
}

// Credentials are the guest's proof of ownership on lookup.
type Credentials struct {
	Email string
	Phone string
}

type Service struct {
	store    Store
	catalog  Catalog
	notifier Notifier
	logger   *logrus.Logger
	now      func() time.Time
}

func NewService(store Store, catalog Catalog, notifier Notifier, logger *logrus.Logger) *Service {
	return &Service{store: store, catalog: catalog, notifier: notifier, logger: logger, now: time.Now}
}

// Place validates the checkout request and stores the order in the placed
// state. Item prices and names come from the catalog and totals sent by the
// client must be present but are recomputed before storing.
func (s *Service) Place(ctx context.Context, caller Caller, req PlaceRequest) (*models.Order, error) {
	if err := validatePlace(caller, &req); err != nil {
		return nil, err
	}
	if err := s.priceItems(ctx, req.Items); err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		ID:              uuid.NewString(),
		OrderNo:         strings.TrimSpace(req.OrderNo),
		UserID:          caller.UserID,
		GuestInfo:       req.GuestInfo,
		Items:           req.Items,
		Totals:          pricing.Compute(req.Items),
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.ShippingAddress,
		Notes:           strings.TrimSpace(req.Notes),
	}
	if req.BillingAddress != nil {
		order.BillingAddress = *req.BillingAddress
	}
	if order.OrderNo == "" {
		order.OrderNo = NewOrderNo(now)
	}
	Start(order, now)

	if err := s.store.Create(ctx, order); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("orderNo", err)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"order_no":    order.OrderNo,
		"user_id":     order.UserID,
		"grand_total": order.Totals.Grand,
		"items_count": len(order.Items),
	}).Info("Order placed")

	if err := s.notifier.NotifyAdmins(ctx, models.NotifyOrderPlaced, "New order",
		fmt.Sprintf("Order %s placed for %.2f", order.OrderNo, order.Totals.Grand),
		map[string]string{"orderId": order.ID, "orderNo": order.OrderNo}); err != nil {
		s.logger.WithError(err).WithField("order_no", order.OrderNo).Warn("Failed to notify admins of new order")
	}

	return order, nil
}

// priceItems replaces the client's snapshot of every item with the current
// catalog data.
func (s *Service) priceItems(ctx context.Context, items []models.LineItem) error {
	fields := apperr.Fields{}
	for i := range items {
		p, err := s.catalog.ProductByID(ctx, items[i].ProductID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			fields.Add("items", fmt.Sprintf("item %d is no longer available", i+1))
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve product %s: %w", items[i].ProductID, err)
		}
		items[i].Name = p.Name
		items[i].Slug = p.Slug
		items[i].Image = p.PrimaryImage()
		items[i].Price = p.Price
	}
	return fields.Err()
}

func validatePlace(caller Caller, req *PlaceRequest) error {
	fields := apperr.Fields{}

	if len(req.Items) == 0 {
		fields.Add("items", "order must contain at least one item")
	}
	for i, item := range req.Items {
		switch {
		case strings.TrimSpace(item.ProductID) == "":
			fields.Add("items", fmt.Sprintf("item %d has no productId", i+1))
		case item.Qty <= 0:
			fields.Add("items", fmt.Sprintf("item %d must have a positive qty", i+1))
		case item.Price < 0:
			fields.Add("items", fmt.Sprintf("item %d has a negative price", i+1))
		}
	}
	if req.Totals == nil {
		fields.Add("totals", "totals are required")
	}
	if !req.PaymentMethod.Valid() {
		fields.Add("paymentMethod", "payment method must be one of cod, bank_transfer, card, upi")
	}
	if strings.TrimSpace(req.ShippingAddress.Line1) == "" || strings.TrimSpace(req.ShippingAddress.City) == "" {
		fields.Add("shippingAddress", "shipping address needs line1 and city")
	}

	if caller.UserID == "" {
		g := req.GuestInfo
		switch {
		case g == nil:
			fields.Add("guestInfo", "guestInfo is required when not logged in")
		default:
			g.Email = validate.NormalizeEmail(g.Email)
			g.Phone = validate.NormalizePhone(g.Phone)
			if strings.TrimSpace(g.Name) == "" {
				fields.Add("guestInfo.name", "name is required")
			}
			if err := validate.Email(g.Email); err != nil {
				fields.Add("guestInfo.email", err.Error())
			}
			if err := validate.Phone(g.Phone); err != nil {
				fields.Add("guestInfo.phone", err.Error())
			}
		}
	}

	return fields.Err()
}

// Lookup returns the order when the caller owns it. Guests prove ownership
// with the email or phone stored on the order.
func (s *Service) Lookup(ctx context.Context, caller Caller, orderNo string, creds Credentials) (*models.Order, error) {
	order, err := s.store.GetByOrderNo(ctx, orderNo)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, err
	}

	if caller.Admin || (caller.UserID != "" && order.UserID == caller.UserID) {
		return order, nil
	}
	if guestMatches(order.GuestInfo, creds) {
		return order, nil
	}
	return nil, apperr.Unauthorized("not authorized to view this order")
}

func guestMatches(g *models.GuestInfo, creds Credentials) bool {
	if g == nil {
		return false
	}
	email := validate.NormalizeEmail(creds.Email)
	phone := validate.NormalizePhone(creds.Phone)
	if email == "" && phone == "" {
		return false
	}
	if email != "" && email != validate.NormalizeEmail(g.Email) {
		return false
	}
	if phone != "" && phone != validate.NormalizePhone(g.Phone) {
		return false
	}
	return true
}

func (s *Service) Mine(ctx context.Context, userID string, limit, offset int) ([]models.Order, int64, error) {
	return s.store.List(ctx, Filter{UserID: userID}, limit, offset)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]models.Order, int64, error) {
	st := models.OrderStatus(status)
	if st != "" && !st.Valid() {
		return nil, 0, apperr.Invalid("status", "unknown order status")
	}
	return s.store.List(ctx, Filter{Status: st}, limit, offset)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("order")
	}
	order, err := s.store.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("order")
	}
	return order, err
}

// UpdateStatus appends a history entry under a row lock and tells the
// owning customer, if any.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, note string) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "unknown order status")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("order")
	}

	order, err := s.store.Update(ctx, id, func(o *models.Order) error {
		Transition(o, status, strings.TrimSpace(note), s.now())
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"order_no": order.OrderNo,
		"status":   order.Status,
	}).Info("Order status updated")

	if order.UserID != "" {
		if err := s.notifier.NotifyUser(ctx, order.UserID, models.NotifyOrderStatusChanged, "Order update",
			fmt.Sprintf("Order %s is now %s", order.OrderNo, order.Status),
			map[string]string{"orderId": order.ID, "orderNo": order.OrderNo, "status": string(order.Status)}); err != nil {
			s.logger.WithError(err).WithField("order_no", order.OrderNo).Warn("Failed to notify customer of status change")
		}
	}

	return order, nil
}

const orderNoAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOrderNo returns SF-YYYYMMDD-XXXXXX.
func NewOrderNo(at time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "SF-" + at.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:6])
	}
	for i, b := range buf {
		buf[i] = orderNoAlphabet[int(b)%len(orderNoAlphabet)]
	}
	return "SF-" + at.Format("20060102") + "-" + string(buf)
}
