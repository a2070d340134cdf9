package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
)

// Inventory errors surfaced to handlers
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrVariantNotFound    = errors.New("variant not found")
	ErrProductHasVariants = errors.New("product stock is derived from its variants; adjust the variants instead")
	ErrStockConflict      = errors.New("stock changed concurrently, retry the adjustment")
)

// InsufficientStockError reports a decrease that would drive stock negative.
// Available is the quantity at the moment the conditional update failed.
type InsufficientStockError struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

// AdjustRequest describes one stock mutation
type AdjustRequest struct {
	ProductID uuid.UUID
	VariantID uuid.UUID // uuid.Nil to adjust the product itself
	Type      models.AdjustmentType
	Quantity  int
	Reason    string
	Actor     string
}

// InventoryService owns every stock mutation on the platform. Each mutation
// is a conditional update paired with exactly one ledger row in the same
// transaction, so stock can never go negative and the ledger always explains
// the current quantity.
type InventoryService struct {
	db       *gorm.DB
	producer *KafkaProducer
}

// NewInventoryService creates the inventory service
func NewInventoryService(db *gorm.DB, producer *KafkaProducer) *InventoryService {
	return &InventoryService{db: db, producer: producer}
}

// Adjust applies a manual stock adjustment and returns the ledger entry
func (s *InventoryService) Adjust(ctx context.Context, tenant *models.Tenant, req AdjustRequest) (*models.InventoryHistory, error) {
	if req.Quantity < 0 {
		if req.Type != models.AdjustmentSet {
			return nil, fmt.Errorf("quantity must not be negative")
		}
		// A stocktake below zero clamps to an empty shelf
		req.Quantity = 0
	}

	var entry *models.InventoryHistory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.adjustTx(tx, tenant.ID, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.publishAdjustment(tenant, entry)
	return entry, nil
}

// adjustTx performs one stock mutation inside an existing transaction.
// Checkout reuses this for its decrements so every path shares the same
// no-negative guarantee and ledger write.
func (s *InventoryService) adjustTx(tx *gorm.DB, tenantID uuid.UUID, req AdjustRequest) (*models.InventoryHistory, error) {
	if req.VariantID != uuid.Nil {
		return s.adjustVariantTx(tx, tenantID, req)
	}
	return s.adjustProductTx(tx, tenantID, req)
}

func (s *InventoryService) adjustProductTx(tx *gorm.DB, tenantID uuid.UUID, req AdjustRequest) (*models.InventoryHistory, error) {
	var product models.Product
	err := tx.Where("tenant_id = ? AND id = ?", tenantID, req.ProductID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product.HasVariants {
		return nil, ErrProductHasVariants
	}

	before, after, err := s.mutateStock(tx, "products", tenantID, req.ProductID, req)
	if err != nil {
		if ins := (*InsufficientStockError)(nil); errors.As(err, &ins) {
			ins.ProductID = req.ProductID
		}
		return nil, err
	}

	return s.writeLedger(tx, tenantID, req, before, after)
}

func (s *InventoryService) adjustVariantTx(tx *gorm.DB, tenantID uuid.UUID, req AdjustRequest) (*models.InventoryHistory, error) {
	var variant models.Variant
	err := tx.Where("tenant_id = ? AND id = ? AND product_id = ?", tenantID, req.VariantID, req.ProductID).First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("failed to load variant: %w", err)
	}

	before, after, err := s.mutateStock(tx, "variants", tenantID, req.VariantID, req)
	if err != nil {
		if ins := (*InsufficientStockError)(nil); errors.As(err, &ins) {
			ins.ProductID = req.ProductID
			ins.VariantID = req.VariantID
		}
		return nil, err
	}

	// The product row carries the sum of its variant stocks so catalog
	// listings never need the join. Recomputed in the same transaction.
	if err := s.recomputeProductStockTx(tx, tenantID, req.ProductID); err != nil {
		return nil, err
	}

	return s.writeLedger(tx, tenantID, req, before, after)
}

// mutateStock applies the adjustment to one row and returns the quantity
// before and after. Decreases are conditional updates that fail instead of
// going negative; increases are unconditional atomic increments; set uses a
// bounded compare-and-swap loop, so the observed quantity it swapped out is
// the true before.
func (s *InventoryService) mutateStock(tx *gorm.DB, table string, tenantID, rowID uuid.UUID, req AdjustRequest) (before, after int, err error) {
	switch req.Type {
	case models.AdjustmentDecrease:
		result := tx.Table(table).
			Where("tenant_id = ? AND id = ? AND stock_quantity >= ?", tenantID, rowID, req.Quantity).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", req.Quantity))
		if result.Error != nil {
			return 0, 0, fmt.Errorf("failed to decrease stock: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			available, readErr := s.readStock(tx, table, tenantID, rowID)
			if readErr != nil {
				return 0, 0, readErr
			}
			return 0, 0, &InsufficientStockError{Requested: req.Quantity, Available: available}
		}
		after, err = s.readStock(tx, table, tenantID, rowID)
		if err != nil {
			return 0, 0, err
		}
		return after + req.Quantity, after, nil

	case models.AdjustmentIncrease:
		result := tx.Table(table).
			Where("tenant_id = ? AND id = ?", tenantID, rowID).
			Update("stock_quantity", gorm.Expr("stock_quantity + ?", req.Quantity))
		if result.Error != nil {
			return 0, 0, fmt.Errorf("failed to increase stock: %w", result.Error)
		}
		after, err = s.readStock(tx, table, tenantID, rowID)
		if err != nil {
			return 0, 0, err
		}
		return after - req.Quantity, after, nil

	case models.AdjustmentSet:
		for attempt := 0; attempt < 3; attempt++ {
			current, readErr := s.readStock(tx, table, tenantID, rowID)
			if readErr != nil {
				return 0, 0, readErr
			}
			if current == req.Quantity {
				return current, current, nil
			}
			result := tx.Table(table).
				Where("tenant_id = ? AND id = ? AND stock_quantity = ?", tenantID, rowID, current).
				Update("stock_quantity", req.Quantity)
			if result.Error != nil {
				return 0, 0, fmt.Errorf("failed to set stock: %w", result.Error)
			}
			if result.RowsAffected == 1 {
				return current, req.Quantity, nil
			}
		}
		return 0, 0, ErrStockConflict

	default:
		return 0, 0, fmt.Errorf("unknown adjustment type %q", req.Type)
	}
}

func (s *InventoryService) readStock(tx *gorm.DB, table string, tenantID, rowID uuid.UUID) (int, error) {
	var quantity int
	err := tx.Table(table).
		Select("stock_quantity").
		Where("tenant_id = ? AND id = ?", tenantID, rowID).
		Scan(&quantity).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read stock: %w", err)
	}
	return quantity, nil
}

// recomputeProductStockTx refreshes a product's denormalized stock sum
func (s *InventoryService) recomputeProductStockTx(tx *gorm.DB, tenantID, productID uuid.UUID) error {
	err := tx.Table("products").
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		Update("stock_quantity", gorm.Expr(
			"(SELECT COALESCE(SUM(stock_quantity), 0) FROM variants WHERE tenant_id = ? AND product_id = ?)",
			tenantID, productID,
		)).Error
	if err != nil {
		return fmt.Errorf("failed to recompute product stock: %w", err)
	}
	return nil
}

func (s *InventoryService) writeLedger(tx *gorm.DB, tenantID uuid.UUID, req AdjustRequest, before, after int) (*models.InventoryHistory, error) {
	entry := &models.InventoryHistory{
		ID:             uuid.New(),
		TenantID:       tenantID,
		ProductID:      req.ProductID,
		VariantID:      req.VariantID,
		AdjustmentType: req.Type,
		QuantityBefore: before,
		QuantityAfter:  after,
		Delta:          after - before,
		Reason:         req.Reason,
		Actor:          req.Actor,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to write inventory ledger: %w", err)
	}
	return entry, nil
}

// History returns the newest ledger entries for a product
func (s *InventoryService) History(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]models.InventoryHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.InventoryHistory
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory history: %w", err)
	}
	return entries, nil
}

// ListLowStock returns active items at or below the threshold, lowest stock
// first. A non-positive threshold falls back to the tenant's configured one.
// Products with variants report per variant.
func (s *InventoryService) ListLowStock(ctx context.Context, tenant *models.Tenant, threshold int) ([]models.LowStockItem, error) {
	if threshold <= 0 {
		threshold = tenant.LowStockThreshold
	}
	items := make([]models.LowStockItem, 0)

	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ? AND has_variants = ? AND stock_quantity <= ?",
			tenant.ID, true, false, threshold).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	for _, p := range products {
		items = append(items, models.LowStockItem{
			ProductID:    p.ID,
			Name:         p.Name,
			CurrentStock: p.StockQuantity,
		})
	}

	type variantRow struct {
		models.Variant
		ProductName string
	}
	var variants []variantRow
	err = s.db.WithContext(ctx).Table("variants").
		Select("variants.*, products.name AS product_name").
		Joins("JOIN products ON products.id = variants.product_id AND products.tenant_id = variants.tenant_id").
		Where("variants.tenant_id = ? AND products.is_active = ? AND variants.stock_quantity <= ?",
			tenant.ID, true, threshold).
		Find(&variants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock variants: %w", err)
	}
	for i := range variants {
		v := variants[i]
		variantID := v.ID
		items = append(items, models.LowStockItem{
			ProductID:    v.ProductID,
			VariantID:    &variantID,
			Name:         v.ProductName + " / " + v.Name,
			CurrentStock: v.StockQuantity,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CurrentStock < items[j].CurrentStock
	})
	return items, nil
}

func (s *InventoryService) publishAdjustment(tenant *models.Tenant, entry *models.InventoryHistory) {
	if err := s.producer.PublishInventoryEvent(InventoryEvent{
		EventType:      "inventory_adjusted",
		TenantID:       tenant.ID,
		ProductID:      entry.ProductID,
		VariantID:      entry.VariantID,
		QuantityBefore: entry.QuantityBefore,
		QuantityAfter:  entry.QuantityAfter,
		Delta:          entry.Delta,
		Reason:         entry.Reason,
		LowStock:       entry.QuantityAfter <= tenant.LowStockThreshold,
	}); err != nil {
		// Event loss is tolerated; the ledger row is the source of truth
		logrus.Warnf("Failed to publish inventory event: %v", err)
	}
}
