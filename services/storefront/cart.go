package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
)

var (
	ErrCartEmpty        = errors.New("cart is empty")
	ErrProductNotActive = errors.New("product is not available")
)

// CartService manages cart lines. A line is keyed by (tenant, identity,
// product, variant); adding the same product twice merges quantities through
// a database-level upsert instead of read-modify-write.
type CartService struct {
	db *gorm.DB
}

// NewCartService creates the cart service
func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// AddToCart adds quantity to a cart line, creating it if absent
func (s *CartService) AddToCart(ctx context.Context, tenantID uuid.UUID, identity string, productID, variantID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	if err := s.validateLine(ctx, tenantID, productID, variantID); err != nil {
		return err
	}

	item := models.CartItem{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Identity:  identity,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
	}

	// Concurrent adds of the same line both land: the conflict target is the
	// composite unique index and the loser's quantity is merged in
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"}, {Name: "identity"}, {Name: "product_id"}, {Name: "variant_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", quantity),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("failed to add to cart: %w", err)
	}
	return nil
}

// UpdateItem sets a cart line's quantity. Zero or negative removes the line.
func (s *CartService) UpdateItem(ctx context.Context, tenantID uuid.UUID, identity string, productID, variantID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, tenantID, identity, productID, variantID)
	}

	result := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("tenant_id = ? AND identity = ? AND product_id = ? AND variant_id = ?",
			tenantID, identity, productID, variantID).
		Update("quantity", quantity)
	if result.Error != nil {
		return fmt.Errorf("failed to update cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// RemoveItem deletes a cart line
func (s *CartService) RemoveItem(ctx context.Context, tenantID uuid.UUID, identity string, productID, variantID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND identity = ? AND product_id = ? AND variant_id = ?",
			tenantID, identity, productID, variantID).
		Delete(&models.CartItem{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// GetCart assembles the cart view. Prices always come from the current
// catalog; the cart stores only product references and quantities.
func (s *CartService) GetCart(ctx context.Context, tenantID uuid.UUID, identity string) (*models.CartView, error) {
	items, err := s.loadItems(ctx, s.db, tenantID, identity)
	if err != nil {
		return nil, err
	}

	view := &models.CartView{Items: make([]models.CartViewItem, 0, len(items))}
	for i := range items {
		line, err := s.priceLine(ctx, tenantID, &items[i])
		if err != nil {
			if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrVariantNotFound) {
				// Catalog item deleted since it was added; drop the stale line
				_ = s.RemoveItem(ctx, tenantID, identity, items[i].ProductID, items[i].VariantID)
				continue
			}
			return nil, err
		}
		view.Items = append(view.Items, *line)
		view.ItemCount += line.Quantity
		view.SubtotalCents += line.LineTotalCents
	}
	return view, nil
}

// Snapshot loads the raw cart lines inside the given transaction. Checkout
// works from this snapshot so concurrent cart edits cannot change what is
// being purchased mid-flight.
func (s *CartService) Snapshot(tx *gorm.DB, tenantID uuid.UUID, identity string) ([]models.CartItem, error) {
	return s.loadItems(context.Background(), tx, tenantID, identity)
}

// ClearIdentity removes every cart line for an identity. Called after a
// checkout commits; a failure here leaves a stale cart, never a broken order.
func (s *CartService) ClearIdentity(ctx context.Context, tenantID uuid.UUID, identity string) error {
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND identity = ?", tenantID, identity).
		Delete(&models.CartItem{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *CartService) loadItems(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, identity string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND identity = ?", tenantID, identity).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return items, nil
}

func (s *CartService) validateLine(ctx context.Context, tenantID, productID, variantID uuid.UUID) error {
	var product models.Product
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to load product: %w", err)
	}
	if !product.IsActive {
		return ErrProductNotActive
	}

	if product.HasVariants && variantID == uuid.Nil {
		return fmt.Errorf("product requires a variant selection")
	}
	if variantID != uuid.Nil {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.Variant{}).
			Where("tenant_id = ? AND id = ? AND product_id = ?", tenantID, variantID, productID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to load variant: %w", err)
		}
		if count == 0 {
			return ErrVariantNotFound
		}
	}
	return nil
}

// priceLine prices one cart line from the catalog
func (s *CartService) priceLine(ctx context.Context, tenantID uuid.UUID, item *models.CartItem) (*models.CartViewItem, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, item.ProductID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	line := &models.CartViewItem{
		ProductID:      item.ProductID,
		ProductName:    product.Name,
		Quantity:       item.Quantity,
		UnitPriceCents: product.EffectivePriceCents(),
		AvailableStock: product.StockQuantity,
	}

	if item.VariantID != uuid.Nil {
		var variant models.Variant
		err := s.db.WithContext(ctx).
			Where("tenant_id = ? AND id = ?", tenantID, item.VariantID).
			First(&variant).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrVariantNotFound
			}
			return nil, fmt.Errorf("failed to load variant: %w", err)
		}
		variantID := variant.ID
		line.VariantID = &variantID
		line.VariantName = variant.Name
		line.UnitPriceCents = variant.EffectivePriceCents(&product)
		line.AvailableStock = variant.StockQuantity
	}

	line.LineTotalCents = line.UnitPriceCents * int64(item.Quantity)
	return line, nil
}
