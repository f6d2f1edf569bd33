package models

import (
	"encoding/json"
	"time"
)

type ContentKind string

const (
	KindTeam   ContentKind = "team"
	KindBranch ContentKind = "branches"
	KindPost   ContentKind = "posts"
	KindAlbum  ContentKind = "albums"
)

func (k ContentKind) Valid() bool {
	switch k {
	case KindTeam, KindBranch, KindPost, KindAlbum:
		return true
	}
	return false
}

// Slugged reports whether items of this kind are addressed by slug.
func (k ContentKind) Slugged() bool {
	return k == KindPost || k == KindAlbum
}

// ContentItem is a team member, branch, blog post or album. Kind-specific
// fields (bio, address, body, photos...) live in Data.
type ContentItem struct {
	ID        string          `json:"id"`
	Kind      ContentKind     `json:"kind"`
	Slug      string          `json:"slug,omitempty"`
	Title     string          `json:"title"`
	Position  int             `json:"position"`
	Published bool            `json:"published"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Settings struct {
	SiteName     string            `json:"siteName"`
	ContactEmail string            `json:"contactEmail,omitempty"`
	ContactPhone string            `json:"contactPhone,omitempty"`
	Address      string            `json:"address,omitempty"`
	Social       map[string]string `json:"social,omitempty"`
	Extra        json.RawMessage   `json:"extra,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}
