package models

import "time"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	SKU         string            `json:"sku,omitempty"`
	Description string            `json:"description,omitempty"`
	Price       float64           `json:"price"`
	MRP         float64           `json:"mrp,omitempty"`
	Stock       int               `json:"stock"`
	CategoryID  string            `json:"categoryId,omitempty"`
	Brand       string            `json:"brand,omitempty"`
	Images      []string          `json:"images"`
	Specs       map[string]string `json:"specs,omitempty"`
	Featured    bool              `json:"featured"`
	Active      bool              `json:"active"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// PrimaryImage returns the first image or an empty string.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
