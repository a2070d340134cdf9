package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
)

var (
	ErrCouponInvalid           = errors.New("coupon code is not valid")
	ErrOrderNumbersExhausted   = errors.New("could not allocate a unique order number")
	ErrOrderNotFound           = errors.New("order not found")
	ErrCheckoutItemUnavailable = errors.New("an item in the cart is no longer available")
)

// CheckoutRequest carries everything the customer submits at checkout
type CheckoutRequest struct {
	Email           string          `json:"email" binding:"required,email"`
	PaymentMethod   string          `json:"payment_method" binding:"required"`
	CouponCode      string          `json:"coupon_code"`
	ShippingAddress models.Address  `json:"shipping_address" binding:"required"`
	BillingAddress  *models.Address `json:"billing_address"`
}

// CheckoutService turns a cart into an order. The order rows, order items
// and every stock decrement commit in one database transaction: either the
// customer gets a complete order with reserved stock, or nothing changed.
// Cart clearing and event publishing happen only after the commit.
type CheckoutService struct {
	db        *gorm.DB
	carts     *CartService
	inventory *InventoryService
	producer  *KafkaProducer

	// newOrderNumber is swapped out in tests to force collisions
	newOrderNumber func(time.Time) (string, error)
}

// NewCheckoutService creates the checkout service
func NewCheckoutService(db *gorm.DB, carts *CartService, inventory *InventoryService, producer *KafkaProducer) *CheckoutService {
	return &CheckoutService{
		db:             db,
		carts:          carts,
		inventory:      inventory,
		producer:       producer,
		newOrderNumber: GenerateOrderNumber,
	}
}

// Checkout places an order from the identity's current cart.
//
// Order number collisions restart the whole transaction rather than retrying
// inside it, because Postgres refuses further statements in a transaction
// after a unique violation. The retry loop is bounded.
func (s *CheckoutService) Checkout(ctx context.Context, tenant *models.Tenant, identity string, req CheckoutRequest) (*models.Order, error) {
	if req.BillingAddress == nil {
		req.BillingAddress = &req.ShippingAddress
	}

	maxAttempts := orderNumberMaxAttempts()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		orderNumber, err := s.newOrderNumber(time.Now())
		if err != nil {
			return nil, err
		}

		order, ledger, err := s.attempt(ctx, tenant, identity, req, orderNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				logrus.Warnf("Order number %s collided, retrying (%d/%d)", orderNumber, attempt+1, maxAttempts)
				continue
			}
			return nil, err
		}

		s.afterCommit(ctx, tenant, identity, order, ledger)
		return order, nil
	}

	return nil, ErrOrderNumbersExhausted
}

// attempt runs one full checkout transaction
func (s *CheckoutService) attempt(ctx context.Context, tenant *models.Tenant, identity string, req CheckoutRequest, orderNumber string) (*models.Order, []models.InventoryHistory, error) {
	var (
		order  *models.Order
		ledger []models.InventoryHistory
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines, err := s.carts.Snapshot(tx, tenant.ID, identity)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrCartEmpty
		}

		items, subtotal, err := s.priceSnapshot(tx, tenant.ID, lines)
		if err != nil {
			return err
		}

		// Decrement in one global order so concurrent checkouts sharing
		// products never take row locks in opposite orders.
		sort.Slice(items, func(i, j int) bool {
			if items[i].ProductID != items[j].ProductID {
				return items[i].ProductID.String() < items[j].ProductID.String()
			}
			return items[i].VariantID.String() < items[j].VariantID.String()
		})

		discount := int64(0)
		couponCode := ""
		if req.CouponCode != "" {
			coupon, err := s.loadCoupon(tx, tenant.ID, req.CouponCode)
			if err != nil {
				return err
			}
			discount = coupon.DiscountCents(subtotal)
			couponCode = coupon.Code
		}

		order = &models.Order{
			ID:              uuid.New(),
			TenantID:        tenant.ID,
			OrderNumber:     orderNumber,
			Identity:        identity,
			CustomerEmail:   strings.ToLower(strings.TrimSpace(req.Email)),
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusPending,
			PaymentMethod:   req.PaymentMethod,
			SubtotalCents:   subtotal,
			DiscountCents:   discount,
			TotalCents:      subtotal - discount,
			CouponCode:      couponCode,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  *req.BillingAddress,
		}
		if err := tx.Omit("Items").Create(order).Error; err != nil {
			// Unique violations on order_number surface as ErrDuplicatedKey
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
			items[i].TenantID = tenant.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}
		order.Items = items

		// Reserve stock line by line. Any shortfall rolls back the whole
		// order, including lines already decremented.
		ledger = ledger[:0]
		for i := range items {
			entry, err := s.inventory.adjustTx(tx, tenant.ID, AdjustRequest{
				ProductID: items[i].ProductID,
				VariantID: items[i].VariantID,
				Type:      models.AdjustmentDecrease,
				Quantity:  items[i].Quantity,
				Reason:    "sale",
				Actor:     identity,
			})
			if err != nil {
				return err
			}
			ledger = append(ledger, *entry)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, ledger, nil
}

// priceSnapshot converts cart lines into priced order items using the
// catalog rows as they exist inside the transaction
func (s *CheckoutService) priceSnapshot(tx *gorm.DB, tenantID uuid.UUID, lines []models.CartItem) ([]models.OrderItem, int64, error) {
	items := make([]models.OrderItem, 0, len(lines))
	var subtotal int64

	for i := range lines {
		line := &lines[i]

		var product models.Product
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, line.ProductID).First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, 0, fmt.Errorf("%w: product %s", ErrCheckoutItemUnavailable, line.ProductID)
			}
			return nil, 0, fmt.Errorf("failed to load product: %w", err)
		}
		if !product.IsActive {
			return nil, 0, fmt.Errorf("%w: %s", ErrCheckoutItemUnavailable, product.Name)
		}

		item := models.OrderItem{
			ID:             uuid.New(),
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			ProductName:    product.Name,
			UnitPriceCents: product.EffectivePriceCents(),
			Quantity:       line.Quantity,
		}

		if line.VariantID != uuid.Nil {
			var variant models.Variant
			err := tx.Where("tenant_id = ? AND id = ?", tenantID, line.VariantID).First(&variant).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, 0, fmt.Errorf("%w: variant %s", ErrCheckoutItemUnavailable, line.VariantID)
				}
				return nil, 0, fmt.Errorf("failed to load variant: %w", err)
			}
			item.VariantName = variant.Name
			item.UnitPriceCents = variant.EffectivePriceCents(&product)
		}

		item.LineTotalCents = item.UnitPriceCents * int64(item.Quantity)
		subtotal += item.LineTotalCents
		items = append(items, item)
	}

	return items, subtotal, nil
}

func (s *CheckoutService) loadCoupon(tx *gorm.DB, tenantID uuid.UUID, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := tx.Where("tenant_id = ? AND code = ?", tenantID, strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponInvalid
		}
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	if !coupon.IsRedeemable() {
		return nil, ErrCouponInvalid
	}
	return &coupon, nil
}

// afterCommit performs the fire-and-forget steps of a successful checkout
func (s *CheckoutService) afterCommit(ctx context.Context, tenant *models.Tenant, identity string, order *models.Order, ledger []models.InventoryHistory) {
	if err := s.carts.ClearIdentity(ctx, tenant.ID, identity); err != nil {
		logrus.Warnf("Order %s committed but cart clear failed: %v", order.OrderNumber, err)
	}

	if err := s.producer.PublishOrderEvent(OrderEvent{
		EventType:   "order_placed",
		TenantID:    tenant.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Identity:    identity,
		Email:       order.CustomerEmail,
		TotalCents:  order.TotalCents,
		ItemCount:   len(order.Items),
		CreatedAt:   order.CreatedAt,
	}); err != nil {
		logrus.Warnf("Failed to publish order event for %s: %v", order.OrderNumber, err)
	}

	for i := range ledger {
		entry := &ledger[i]
		if err := s.producer.PublishInventoryEvent(InventoryEvent{
			EventType:      "stock_reserved",
			TenantID:       tenant.ID,
			ProductID:      entry.ProductID,
			VariantID:      entry.VariantID,
			QuantityBefore: entry.QuantityBefore,
			QuantityAfter:  entry.QuantityAfter,
			Delta:          entry.Delta,
			Reason:         entry.Reason,
			LowStock:       entry.QuantityAfter <= tenant.LowStockThreshold,
		}); err != nil {
			logrus.Warnf("Failed to publish inventory event for %s: %v", order.OrderNumber, err)
		}
	}
}

// TrackOrder returns order status for an (order number, email) pair. Email
// acts as a weak shared secret so order numbers alone leak nothing.
func (s *CheckoutService) TrackOrder(ctx context.Context, tenantID uuid.UUID, orderNumber, email string) (*models.OrderStatusView, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND order_number = ? AND customer_email = ?",
			tenantID, strings.TrimSpace(orderNumber), strings.ToLower(strings.TrimSpace(email))).
		Preload("Items").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	return &models.OrderStatusView{
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		TotalCents:     order.TotalCents,
		TrackingNumber: order.TrackingNumber,
		PlacedAt:       order.CreatedAt,
		Items:          order.Items,
	}, nil
}

// ListOrders returns the identity's order history, newest first
func (s *CheckoutService) ListOrders(ctx context.Context, tenantID uuid.UUID, identity string, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND identity = ?", tenantID, identity).
		Order("created_at DESC").
		Limit(limit).
		Preload("Items").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
