package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is an authoritative catalog row.
type Product struct {
	ID                string          `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	Description       string          `db:"description" json:"description,omitempty"`
	Price             decimal.Decimal `db:"price" json:"price"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	InStock           bool            `db:"in_stock" json:"in_stock"`
	StockQuantity     *int            `db:"stock_quantity" json:"stock_quantity"`
	LowStockThreshold int             `db:"low_stock_threshold" json:"low_stock_threshold"`
	ImageMime         *string         `db:"image_mime" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt         *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`

	// ImageURL is derived, not stored.
	ImageURL string `db:"-" json:"image_url,omitempty"`
}

// Tracked reports whether the product has a finite stock counter.
// A nil stock quantity means unlimited.
func (p *Product) Tracked() bool {
	return p.StockQuantity != nil
}

// LowStock reports whether a tracked product is at or below its threshold.
func (p *Product) LowStock() bool {
	return p.StockQuantity != nil && *p.StockQuantity <= p.LowStockThreshold
}

// HasImage reports whether an image has been uploaded for the product.
func (p *Product) HasImage() bool {
	return p.ImageMime != nil && *p.ImageMime != ""
}

// ImagePath returns the public image path for a product id.
func ImagePath(productID string) string {
	return "/api/products/" + productID + "/image"
}
