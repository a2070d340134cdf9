package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the fulfillment status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus represents the payment state of an order. Payment capture is
// asynchronous; checkout always creates orders with payment pending.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Address is snapshotted onto the order as jsonb at checkout time. Orders
// keep the address they were placed with even if the customer later edits
// a saved address.
type Address struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order represents a completed checkout. Rows are immutable after creation
// except status, payment status and tracking metadata.
type Order struct {
	ID              uuid.UUID     `json:"id" gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID     `json:"tenant_id" gorm:"type:uuid;not null;index:idx_orders_tenant"`
	OrderNumber     string        `json:"order_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	Identity        string        `json:"identity" gorm:"type:varchar(255);not null;index:idx_orders_identity"`
	CustomerEmail   string        `json:"customer_email" gorm:"type:varchar(255);not null"`
	Status          OrderStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	PaymentStatus   PaymentStatus `json:"payment_status" gorm:"type:varchar(20);not null;default:'pending'"`
	PaymentMethod   string        `json:"payment_method" gorm:"type:varchar(50);not null"`
	SubtotalCents   int64         `json:"subtotal_cents" gorm:"not null"`
	DiscountCents   int64         `json:"discount_cents" gorm:"not null;default:0"`
	TotalCents      int64         `json:"total_cents" gorm:"not null"`
	CouponCode      string        `json:"coupon_code,omitempty" gorm:"type:varchar(50)"`
	ShippingAddress Address       `json:"shipping_address" gorm:"type:jsonb;serializer:json"`
	BillingAddress  Address       `json:"billing_address" gorm:"type:jsonb;serializer:json"`
	TrackingNumber  *string       `json:"tracking_number,omitempty" gorm:"type:varchar(100)"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderItem freezes what was bought at the price it was bought for.
// Later catalog price changes must never affect persisted orders.
type OrderItem struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index:idx_order_items_tenant"`
	OrderID        uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index:idx_order_items_order"`
	ProductID      uuid.UUID `json:"product_id" gorm:"type:uuid;not null"`
	VariantID      uuid.UUID `json:"variant_id" gorm:"type:uuid;not null"` // uuid.Nil when no variant
	ProductName    string    `json:"product_name" gorm:"type:varchar(255);not null"`
	VariantName    string    `json:"variant_name" gorm:"type:varchar(255)"`
	UnitPriceCents int64     `json:"unit_price_cents" gorm:"not null"`
	Quantity       int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	LineTotalCents int64     `json:"line_total_cents" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// OrderStatusView is the unauthenticated tracking read model. It is only
// assembled after the order number and email pair have been verified.
type OrderStatusView struct {
	OrderNumber    string        `json:"order_number"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	TotalCents     int64         `json:"total_cents"`
	TrackingNumber *string       `json:"tracking_number,omitempty"`
	PlacedAt       time.Time     `json:"placed_at"`
	Items          []OrderItem   `json:"items"`
}
