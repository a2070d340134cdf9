package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponType represents how a coupon value is applied
type CouponType string

const (
	CouponTypePercent CouponType = "percent" // Value is 0-100
	CouponTypeFixed   CouponType = "fixed"   // Value is cents off the subtotal
)

// Coupon represents a tenant-scoped discount code
type Coupon struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID  `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_coupons_tenant_code"`
	Code      string     `json:"code" gorm:"type:varchar(50);not null;uniqueIndex:idx_coupons_tenant_code"`
	Type      CouponType `json:"type" gorm:"type:varchar(20);not null"`
	Value     int64      `json:"value" gorm:"not null"`
	IsActive  bool       `json:"is_active" gorm:"default:true"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the table name for the Coupon model
func (Coupon) TableName() string {
	return "coupons"
}

// IsRedeemable reports whether the coupon can currently be applied
func (c *Coupon) IsRedeemable() bool {
	if !c.IsActive {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(time.Now())
}

// DiscountCents computes the discount against a subtotal, never exceeding it
func (c *Coupon) DiscountCents(subtotalCents int64) int64 {
	var discount int64
	switch c.Type {
	case CouponTypePercent:
		discount = subtotalCents * c.Value / 100
	case CouponTypeFixed:
		discount = c.Value
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
