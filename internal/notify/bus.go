// Package notify persists notifications and pushes them to connected
// admins and customers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

// Deliverer pushes a persisted notification towards its room.
type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

// Bus is created once per process and handed to every service that emits
// notifications.
type Bus struct {
	store     Store
	deliverer Deliverer
	logger    *logrus.Logger
	now       func() time.Time
}

func NewBus(store Store, deliverer Deliverer, logger *logrus.Logger) *Bus {
	return &Bus{store: store, deliverer: deliverer, logger: logger, now: time.Now}
}

// Notify persists n and then delivers it at most once. A delivery failure
// is logged and never turns into an error for the caller.
func (b *Bus) Notify(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = b.now()
	}

	if err := b.store.Create(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	if b.deliverer != nil {
		if err := b.deliverer.Deliver(ctx, n); err != nil {
			b.logger.WithError(err).WithFields(logrus.Fields{
				"notification_id": n.ID,
				"room":            n.Room(),
			}).Warn("Notification delivery failed")
		}
	}

	b.logger.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"type":            n.Type,
		"room":            n.Room(),
	}).Info("Notification sent")

	return nil
}

func (b *Bus) NotifyAdmins(ctx context.Context, typ, title, message string, data interface{}) error {
	n, err := build(models.AudienceAdmin, "", typ, title, message, data)
	if err != nil {
		return err
	}
	return b.Notify(ctx, n)
}

func (b *Bus) NotifyUser(ctx context.Context, userID, typ, title, message string, data interface{}) error {
	n, err := build(models.AudienceUser, userID, typ, title, message, data)
	if err != nil {
		return err
	}
	return b.Notify(ctx, n)
}

func build(audience models.Audience, userID, typ, title, message string, data interface{}) (*models.Notification, error) {
	n := &models.Notification{
		Audience: audience,
		UserID:   userID,
		Type:     typ,
		Title:    title,
		Message:  message,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode notification data: %w", err)
		}
		n.Data = raw
	}
	return n, nil
}
