package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
)

type checkoutFixture struct {
	db       *gorm.DB
	carts    *CartService
	inv      *InventoryService
	checkout *CheckoutService
	tenant   *models.Tenant
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	db := newTestDB(t)
	carts := NewCartService(db)
	inv := NewInventoryService(db, nil)
	return &checkoutFixture{
		db:       db,
		carts:    carts,
		inv:      inv,
		checkout: NewCheckoutService(db, carts, inv, nil),
		tenant:   seedTenant(t, db, "acme"),
	}
}

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		Email:         "buyer@example.test",
		PaymentMethod: "card",
		ShippingAddress: models.Address{
			FullName:   "Pat Buyer",
			Line1:      "1 Main St",
			City:       "Springfield",
			PostalCode: "12345",
			Country:    "US",
		},
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 10)
	poster := seedProduct(t, f.db, f.tenant, "Poster", 800, 4)

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", mug.ID, uuid.Nil, 2))
	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", poster.ID, uuid.Nil, 1))

	order, err := f.checkout.Checkout(ctx, f.tenant, "session:abc", checkoutRequest())
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-\d{8}-[A-Z0-9]{6}$`, order.OrderNumber)
	assert.Equal(t, int64(3800), order.SubtotalCents)
	assert.Equal(t, int64(3800), order.TotalCents)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.Items, 2)

	// Stock reserved
	assert.Equal(t, 8, productStock(t, f.db, mug.ID))
	assert.Equal(t, 3, productStock(t, f.db, poster.ID))

	// One ledger row per line
	var entries []models.InventoryHistory
	require.NoError(t, f.db.Where("tenant_id = ?", f.tenant.ID).Find(&entries).Error)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, models.AdjustmentDecrease, entry.AdjustmentType)
		assert.Equal(t, "sale", entry.Reason)
		assert.Equal(t, "session:abc", entry.Actor)
	}

	// Cart cleared after commit
	view, err := f.carts.GetCart(ctx, f.tenant.ID, "session:abc")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCheckoutAppliesCoupon(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 10)
	require.NoError(t, f.db.Create(&models.Coupon{
		TenantID: f.tenant.ID,
		Code:     "SAVE10",
		Type:     models.CouponTypePercent,
		Value:    10,
		IsActive: true,
	}).Error)

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", mug.ID, uuid.Nil, 2))

	req := checkoutRequest()
	req.CouponCode = "save10"
	order, err := f.checkout.Checkout(ctx, f.tenant, "session:abc", req)
	require.NoError(t, err)

	assert.Equal(t, int64(3000), order.SubtotalCents)
	assert.Equal(t, int64(300), order.DiscountCents)
	assert.Equal(t, int64(2700), order.TotalCents)
	assert.Equal(t, "SAVE10", order.CouponCode)
}

func TestCheckoutInvalidCoupon(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 10)
	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", mug.ID, uuid.Nil, 1))

	expired := time.Now().Add(-time.Hour)
	require.NoError(t, f.db.Create(&models.Coupon{
		TenantID:  f.tenant.ID,
		Code:      "OLD",
		Type:      models.CouponTypeFixed,
		Value:     500,
		IsActive:  true,
		ExpiresAt: &expired,
	}).Error)

	req := checkoutRequest()
	req.CouponCode = "OLD"
	_, err := f.checkout.Checkout(ctx, f.tenant, "session:abc", req)
	assert.ErrorIs(t, err, ErrCouponInvalid)

	// Nothing committed
	assert.Equal(t, 10, productStock(t, f.db, mug.ID))
	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.checkout.Checkout(context.Background(), f.tenant, "session:abc", checkoutRequest())
	assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestCheckoutInsufficientStockRollsBackEverything(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 10)
	poster := seedProduct(t, f.db, f.tenant, "Poster", 800, 2)

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", mug.ID, uuid.Nil, 2))
	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", poster.ID, uuid.Nil, 3))

	_, err := f.checkout.Checkout(ctx, f.tenant, "session:abc", checkoutRequest())
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, insufficient.Requested)
	assert.Equal(t, 2, insufficient.Available)

	// The mug decrement from the same attempt rolled back too
	assert.Equal(t, 10, productStock(t, f.db, mug.ID))
	assert.Equal(t, 2, productStock(t, f.db, poster.ID))

	var orders, ledger int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&models.InventoryHistory{}).Count(&ledger).Error)
	assert.Zero(t, orders)
	assert.Zero(t, ledger)

	// Cart untouched so the customer can adjust and retry
	view, err := f.carts.GetCart(ctx, f.tenant.ID, "session:abc")
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
}

func TestCheckoutThenRetryAgainstDepletedStock(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 5)

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:one", mug.ID, uuid.Nil, 3))
	order, err := f.checkout.Checkout(ctx, f.tenant, "session:one", checkoutRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(3*1500), order.TotalCents)
	assert.Equal(t, 2, productStock(t, f.db, mug.ID))

	var entry models.InventoryHistory
	require.NoError(t, f.db.Where("tenant_id = ?", f.tenant.ID).First(&entry).Error)
	assert.Equal(t, 5, entry.QuantityBefore)
	assert.Equal(t, 2, entry.QuantityAfter)
	assert.Equal(t, -3, entry.Delta)
	assert.Equal(t, "sale", entry.Reason)

	// A second checkout for the same quantity hits the remaining stock
	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:two", mug.ID, uuid.Nil, 3))
	_, err = f.checkout.Checkout(ctx, f.tenant, "session:two", checkoutRequest())
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Available)

	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.EqualValues(t, 1, orders)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 1)

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:one", mug.ID, uuid.Nil, 1))
	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:two", mug.ID, uuid.Nil, 1))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for _, identity := range []string{"session:one", "session:two"} {
		wg.Add(1)
		go func(identity string) {
			defer wg.Done()
			_, err := f.checkout.Checkout(ctx, f.tenant, identity, checkoutRequest())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else {
				failures = append(failures, err)
			}
		}(identity)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	require.Len(t, failures, 1)
	var insufficient *InsufficientStockError
	assert.ErrorAs(t, failures[0], &insufficient)

	assert.Equal(t, 0, productStock(t, f.db, mug.ID))

	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.EqualValues(t, 1, orders)
}

func TestCheckoutRetriesOrderNumberCollision(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 10)

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:one", mug.ID, uuid.Nil, 1))
	first, err := f.checkout.Checkout(ctx, f.tenant, "session:one", checkoutRequest())
	require.NoError(t, err)

	// First draw collides with the existing order, second draw is fresh
	calls := 0
	f.checkout.newOrderNumber = func(now time.Time) (string, error) {
		calls++
		if calls == 1 {
			return first.OrderNumber, nil
		}
		return GenerateOrderNumber(now)
	}

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:two", mug.ID, uuid.Nil, 1))
	second, err := f.checkout.Checkout(ctx, f.tenant, "session:two", checkoutRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.NotEqual(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 8, productStock(t, f.db, mug.ID))
}

func TestCheckoutGivesUpWhenOrderNumbersKeepColliding(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 10)

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:one", mug.ID, uuid.Nil, 1))
	first, err := f.checkout.Checkout(ctx, f.tenant, "session:one", checkoutRequest())
	require.NoError(t, err)

	calls := 0
	f.checkout.newOrderNumber = func(time.Time) (string, error) {
		calls++
		return first.OrderNumber, nil
	}

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:two", mug.ID, uuid.Nil, 1))
	_, err = f.checkout.Checkout(ctx, f.tenant, "session:two", checkoutRequest())
	assert.ErrorIs(t, err, ErrOrderNumbersExhausted)
	assert.Equal(t, 5, calls)

	// Every collided attempt rolled back completely
	assert.Equal(t, 9, productStock(t, f.db, mug.ID))
	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.EqualValues(t, 1, orders)

	view, err := f.carts.GetCart(ctx, f.tenant.ID, "session:two")
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestCheckoutDecrementsInStableOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	a := seedProduct(t, f.db, f.tenant, "Alpha", 1000, 10)
	b := seedProduct(t, f.db, f.tenant, "Beta", 1000, 10)
	lower, higher := a, b
	if b.ID.String() < a.ID.String() {
		lower, higher = b, a
	}

	// Carted high-id first; the order must still process low-id first
	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", higher.ID, uuid.Nil, 1))
	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", lower.ID, uuid.Nil, 1))

	order, err := f.checkout.Checkout(ctx, f.tenant, "session:abc", checkoutRequest())
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, lower.ID, order.Items[0].ProductID)
	assert.Equal(t, higher.ID, order.Items[1].ProductID)
}

func TestCheckoutVariantLine(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	shirt := seedProduct(t, f.db, f.tenant, "Shirt", 2500, 0)
	override := int64(2900)
	small := seedVariant(t, f.db, shirt, "Small", &override, 4)
	seedVariant(t, f.db, shirt, "Large", nil, 6)

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", shirt.ID, small.ID, 2))

	order, err := f.checkout.Checkout(ctx, f.tenant, "session:abc", checkoutRequest())
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "Small", order.Items[0].VariantName)
	assert.Equal(t, int64(2900), order.Items[0].UnitPriceCents)
	assert.Equal(t, int64(5800), order.TotalCents)

	// Variant decremented and product aggregate refreshed in the same commit
	assert.Equal(t, 2, variantStock(t, f.db, small.ID))
	assert.Equal(t, 8, productStock(t, f.db, shirt.ID))
}

func TestOrderSnapshotImmuneToCatalogChanges(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 10)

	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", mug.ID, uuid.Nil, 2))
	order, err := f.checkout.Checkout(ctx, f.tenant, "session:abc", checkoutRequest())
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", mug.ID).
		Updates(map[string]interface{}{"base_price_cents": 9900, "name": "Deluxe Mug"}).Error)

	var persisted models.Order
	require.NoError(t, f.db.Preload("Items").First(&persisted, "id = ?", order.ID).Error)
	assert.Equal(t, int64(3000), persisted.TotalCents)
	assert.Equal(t, "Mug", persisted.Items[0].ProductName)
	assert.Equal(t, int64(1500), persisted.Items[0].UnitPriceCents)
}

func TestCheckoutScopedToTenant(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	tenantB := seedTenant(t, f.db, "globex")
	mugA := seedProduct(t, f.db, f.tenant, "Mug", 1500, 10)
	mugB := seedProduct(t, f.db, tenantB, "Mug", 900, 10)

	// Same session holds carts at both stores; checking out at A leaves B intact
	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", mugA.ID, uuid.Nil, 1))
	require.NoError(t, f.carts.AddToCart(ctx, tenantB.ID, "session:abc", mugB.ID, uuid.Nil, 2))

	_, err := f.checkout.Checkout(ctx, f.tenant, "session:abc", checkoutRequest())
	require.NoError(t, err)

	assert.Equal(t, 10, productStock(t, f.db, mugB.ID))
	viewB, err := f.carts.GetCart(ctx, tenantB.ID, "session:abc")
	require.NoError(t, err)
	assert.Equal(t, 2, viewB.ItemCount)
}

func TestTrackOrderRequiresMatchingEmail(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	mug := seedProduct(t, f.db, f.tenant, "Mug", 1500, 10)
	require.NoError(t, f.carts.AddToCart(ctx, f.tenant.ID, "session:abc", mug.ID, uuid.Nil, 1))

	order, err := f.checkout.Checkout(ctx, f.tenant, "session:abc", checkoutRequest())
	require.NoError(t, err)

	view, err := f.checkout.TrackOrder(ctx, f.tenant.ID, order.OrderNumber, "Buyer@Example.Test")
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, view.OrderNumber)

	_, err = f.checkout.TrackOrder(ctx, f.tenant.ID, order.OrderNumber, "other@example.test")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// Order numbers are not resolvable from another store
	tenantB := seedTenant(t, f.db, "globex")
	_, err = f.checkout.TrackOrder(ctx, tenantB.ID, order.OrderNumber, "buyer@example.test")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
