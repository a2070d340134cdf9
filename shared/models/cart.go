package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem represents one line in a shopper's cart. Identity is either an
// authenticated customer id or an anonymous session id. VariantID uses
// uuid.Nil (not NULL) when no variant is selected so the composite unique
// index enforces one line per (tenant, identity, product, variant).
type CartItem struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_cart_line"`
	Identity  string    `json:"identity" gorm:"type:varchar(255);not null;uniqueIndex:idx_cart_line"`
	ProductID uuid.UUID `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:idx_cart_line"`
	VariantID uuid.UUID `json:"variant_id" gorm:"type:uuid;not null;uniqueIndex:idx_cart_line"`
	Quantity  int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for the CartItem model
func (CartItem) TableName() string {
	return "cart_items"
}

// CartViewItem is the read model for one cart line, priced from the
// current catalog rather than anything the client sent
type CartViewItem struct {
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductName    string     `json:"product_name"`
	VariantName    string     `json:"variant_name,omitempty"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Quantity       int        `json:"quantity"`
	LineTotalCents int64      `json:"line_total_cents"`
	AvailableStock int        `json:"available_stock"`
}

// CartView is the assembled cart returned to the storefront
type CartView struct {
	Items         []CartViewItem `json:"items"`
	ItemCount     int            `json:"item_count"`
	SubtotalCents int64          `json:"subtotal_cents"`
}
