package models

import (
	"time"

	"github.com/google/uuid"
)

// AdjustmentType represents the semantics of a stock mutation
type AdjustmentType string

const (
	AdjustmentIncrease AdjustmentType = "increase"
	AdjustmentDecrease AdjustmentType = "decrease"
	AdjustmentSet      AdjustmentType = "set"
)

// InventoryHistory is the append-only ledger of stock mutations. Every
// change to a stock quantity writes exactly one row in the same database
// transaction; rows are never updated or deleted.
type InventoryHistory struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID      `json:"tenant_id" gorm:"type:uuid;not null;index:idx_inventory_history_tenant"`
	ProductID      uuid.UUID      `json:"product_id" gorm:"type:uuid;not null;index:idx_inventory_history_product"`
	VariantID      uuid.UUID      `json:"variant_id" gorm:"type:uuid;not null"` // uuid.Nil when the product itself was adjusted
	AdjustmentType AdjustmentType `json:"adjustment_type" gorm:"type:varchar(20);not null"`
	QuantityBefore int            `json:"quantity_before" gorm:"not null"`
	QuantityAfter  int            `json:"quantity_after" gorm:"not null"`
	Delta          int            `json:"delta" gorm:"not null"`
	Reason         string         `json:"reason" gorm:"type:varchar(100);not null"`
	Actor          string         `json:"actor" gorm:"type:varchar(255);not null"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TableName returns the table name for the InventoryHistory model
func (InventoryHistory) TableName() string {
	return "inventory_history"
}

// LowStockItem is one row of the restocking report
type LowStockItem struct {
	ProductID    uuid.UUID  `json:"product_id"`
	VariantID    *uuid.UUID `json:"variant_id,omitempty"`
	Name         string     `json:"name"`
	CurrentStock int        `json:"current_stock"`
}
