package models

import (
	"encoding/json"
	"time"
)

type Audience string

const (
	AudienceAdmin Audience = "admin"
	AudienceUser  Audience = "user"
)

const (
	NotifyOrderPlaced        = "order.placed"
	NotifyOrderStatusChanged = "order.status_changed"
	NotifyContactSubmitted   = "contact.submitted"
)

type Notification struct {
	ID        string          `json:"id"`
	Audience  Audience        `json:"audience"`
	UserID    string          `json:"userId,omitempty"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Room is the delivery channel the notification is pushed to.
func (n *Notification) Room() string {
	if n.Audience == AudienceUser {
		return UserRoom(n.UserID)
	}
	return AdminRoom
}

const AdminRoom = "admins"

func UserRoom(userID string) string {
	return "user:" + userID
}
