package main

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
)

func TestAddToCartMergesQuantities(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	tenant := seedTenant(t, db, "acme")
	product := seedProduct(t, db, tenant, "Mug", 1500, 20)
	ctx := context.Background()

	require.NoError(t, carts.AddToCart(ctx, tenant.ID, "session:abc", product.ID, uuid.Nil, 2))
	require.NoError(t, carts.AddToCart(ctx, tenant.ID, "session:abc", product.ID, uuid.Nil, 3))

	var items []models.CartItem
	require.NoError(t, db.Where("tenant_id = ?", tenant.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestAddToCartConcurrentMerge(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	tenant := seedTenant(t, db, "acme")
	product := seedProduct(t, db, tenant, "Mug", 1500, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = carts.AddToCart(ctx, tenant.ID, "session:abc", product.ID, uuid.Nil, 1)
		}()
	}
	wg.Wait()

	var items []models.CartItem
	require.NoError(t, db.Where("tenant_id = ?", tenant.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, 10, items[0].Quantity)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	tenant := seedTenant(t, db, "acme")

	err := carts.AddToCart(context.Background(), tenant.ID, "session:abc", uuid.New(), uuid.Nil, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAddToCartVariantRequired(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	tenant := seedTenant(t, db, "acme")
	product := seedProduct(t, db, tenant, "Shirt", 2500, 0)
	seedVariant(t, db, product, "Small", nil, 4)

	err := carts.AddToCart(context.Background(), tenant.ID, "session:abc", product.ID, uuid.Nil, 1)
	assert.Error(t, err)
}

func TestUpdateCartItemZeroRemovesLine(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	tenant := seedTenant(t, db, "acme")
	product := seedProduct(t, db, tenant, "Mug", 1500, 20)
	ctx := context.Background()

	require.NoError(t, carts.AddToCart(ctx, tenant.ID, "session:abc", product.ID, uuid.Nil, 2))
	require.NoError(t, carts.UpdateItem(ctx, tenant.ID, "session:abc", product.ID, uuid.Nil, 0))

	view, err := carts.GetCart(ctx, tenant.ID, "session:abc")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCartPricedFromCurrentCatalog(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	tenant := seedTenant(t, db, "acme")
	product := seedProduct(t, db, tenant, "Mug", 1500, 20)
	ctx := context.Background()

	require.NoError(t, carts.AddToCart(ctx, tenant.ID, "session:abc", product.ID, uuid.Nil, 2))

	sale := int64(1000)
	require.NoError(t, db.Model(product).Update("sale_price_cents", sale).Error)

	view, err := carts.GetCart(ctx, tenant.ID, "session:abc")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(1000), view.Items[0].UnitPriceCents)
	assert.Equal(t, int64(2000), view.SubtotalCents)
}

func TestCartIsolatedBetweenTenants(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	tenantA := seedTenant(t, db, "acme")
	tenantB := seedTenant(t, db, "globex")
	productA := seedProduct(t, db, tenantA, "Mug", 1500, 20)
	productB := seedProduct(t, db, tenantB, "Mug", 900, 20)
	ctx := context.Background()

	// Same anonymous session shops at both stores
	require.NoError(t, carts.AddToCart(ctx, tenantA.ID, "session:abc", productA.ID, uuid.Nil, 1))
	require.NoError(t, carts.AddToCart(ctx, tenantB.ID, "session:abc", productB.ID, uuid.Nil, 3))

	viewA, err := carts.GetCart(ctx, tenantA.ID, "session:abc")
	require.NoError(t, err)
	viewB, err := carts.GetCart(ctx, tenantB.ID, "session:abc")
	require.NoError(t, err)

	assert.Equal(t, 1, viewA.ItemCount)
	assert.Equal(t, int64(1500), viewA.SubtotalCents)
	assert.Equal(t, 3, viewB.ItemCount)
	assert.Equal(t, int64(2700), viewB.SubtotalCents)
}

func TestGetCartDropsDeletedCatalogItems(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	tenant := seedTenant(t, db, "acme")
	product := seedProduct(t, db, tenant, "Mug", 1500, 20)
	ctx := context.Background()

	require.NoError(t, carts.AddToCart(ctx, tenant.ID, "session:abc", product.ID, uuid.Nil, 2))
	require.NoError(t, db.Delete(product).Error)

	view, err := carts.GetCart(ctx, tenant.ID, "session:abc")
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error)
	assert.Zero(t, count)
}
