package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a sellable item belonging to exactly one tenant.
// All prices are integer cents. StockQuantity is authoritative only while
// the product has no variants; once variants exist it is a denormalized
// sum of variant stocks maintained by the inventory service.
type Product struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index:idx_products_tenant"`
	Name           string    `json:"name" gorm:"type:varchar(255);not null"`
	SKU            string    `json:"sku" gorm:"type:varchar(100)"`
	Description    string    `json:"description" gorm:"type:text"`
	BasePriceCents int64     `json:"base_price_cents" gorm:"not null"`
	SalePriceCents *int64    `json:"sale_price_cents,omitempty"`
	StockQuantity  int       `json:"stock_quantity" gorm:"not null;default:0"`
	HasVariants    bool      `json:"has_variants" gorm:"not null;default:false"`
	IsActive       bool      `json:"is_active" gorm:"default:true"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// EffectivePriceCents returns the price a customer pays right now
func (p *Product) EffectivePriceCents() int64 {
	if p.SalePriceCents != nil {
		return *p.SalePriceCents
	}
	return p.BasePriceCents
}

// Variant represents a purchasable configuration of a product (size, color).
// TenantID is carried on the row so every variant query keeps the explicit
// tenant filter instead of relying on the join through products.
type Variant struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index:idx_variants_tenant"`
	ProductID     uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index:idx_variants_product"`
	Name          string    `json:"name" gorm:"type:varchar(255);not null"`
	SKU           string    `json:"sku" gorm:"type:varchar(100)"`
	PriceCents    *int64    `json:"price_cents,omitempty"` // overrides the product price when set
	StockQuantity int       `json:"stock_quantity" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the table name for the Variant model
func (Variant) TableName() string {
	return "variants"
}

// EffectivePriceCents returns the variant price, falling back to the product
func (v *Variant) EffectivePriceCents(p *Product) int64 {
	if v.PriceCents != nil {
		return *v.PriceCents
	}
	return p.EffectivePriceCents()
}
