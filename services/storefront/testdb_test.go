package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
)

// newTestDB opens an in-memory database capped at one connection so the
// whole test, including concurrent goroutines, shares the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Tenant{},
		&models.Product{},
		&models.Variant{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.InventoryHistory{},
		&models.Coupon{},
	))

	return db
}

func seedTenant(t *testing.T, db *gorm.DB, subdomain string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Name:              subdomain,
		Subdomain:         subdomain,
		Status:            models.TenantStatusActive,
		Plan:              "starter",
		LowStockThreshold: 5,
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func seedProduct(t *testing.T, db *gorm.DB, tenant *models.Tenant, name string, priceCents int64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		TenantID:       tenant.ID,
		Name:           name,
		BasePriceCents: priceCents,
		StockQuantity:  stock,
		IsActive:       true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func seedVariant(t *testing.T, db *gorm.DB, product *models.Product, name string, priceCents *int64, stock int) *models.Variant {
	t.Helper()
	variant := &models.Variant{
		TenantID:      product.TenantID,
		ProductID:     product.ID,
		Name:          name,
		PriceCents:    priceCents,
		StockQuantity: stock,
	}
	require.NoError(t, db.Create(variant).Error)
	require.NoError(t, db.Model(product).Updates(map[string]interface{}{
		"has_variants":   true,
		"stock_quantity": gorm.Expr("(SELECT COALESCE(SUM(stock_quantity), 0) FROM variants WHERE product_id = ?)", product.ID),
	}).Error)
	require.NoError(t, db.First(product, "id = ?", product.ID).Error)
	return variant
}

func productStock(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var quantity int
	require.NoError(t, db.Table("products").Select("stock_quantity").Where("id = ?", productID).Scan(&quantity).Error)
	return quantity
}

func variantStock(t *testing.T, db *gorm.DB, variantID uuid.UUID) int {
	t.Helper()
	var quantity int
	require.NoError(t, db.Table("variants").Select("stock_quantity").Where("id = ?", variantID).Scan(&quantity).Error)
	return quantity
}
