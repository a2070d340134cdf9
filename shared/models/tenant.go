package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus represents the lifecycle status of a tenant store
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusExpired   TenantStatus = "expired"
	TenantStatusDeleted   TenantStatus = "deleted"
)

// Tenant represents an isolated store in the multi-tenant platform.
// Deletion is soft only: the row stays and status becomes "deleted" so
// hostname resolution can still tell "gone" apart from "never existed".
type Tenant struct {
	ID                uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	Name              string       `json:"name" gorm:"not null"`
	Subdomain         string       `json:"subdomain" gorm:"type:varchar(63);uniqueIndex;not null"`
	CustomDomain      *string      `json:"custom_domain,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	Status            TenantStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	Plan              string       `json:"plan" gorm:"type:varchar(50);default:'free'"`
	LowStockThreshold int          `json:"low_stock_threshold" gorm:"default:5"`
	ExpiresAt         *time.Time   `json:"expires_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// IsActive reports whether the store may serve customer traffic
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive && !t.IsExpired()
}

// IsExpired reports whether the tenant's subscription has lapsed, either by
// explicit status or by a passed expiration timestamp
func (t *Tenant) IsExpired() bool {
	if t.Status == TenantStatusExpired {
		return true
	}
	return t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now())
}
