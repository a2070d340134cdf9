package main

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/middleware"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/utils"
)

// Handler wires HTTP requests to the storefront services
type Handler struct {
	db        *gorm.DB
	carts     *CartService
	inventory *InventoryService
	checkout  *CheckoutService
}

// NewHandler creates the storefront handler
func NewHandler(db *gorm.DB, carts *CartService, inventory *InventoryService, checkout *CheckoutService) *Handler {
	return &Handler{db: db, carts: carts, inventory: inventory, checkout: checkout}
}

type cartLineRequest struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity"`
}

func (r *cartLineRequest) variantID() uuid.UUID {
	if r.VariantID == nil {
		return uuid.Nil
	}
	return *r.VariantID
}

// ListCatalog returns the tenant's active products
func (h *Handler) ListCatalog(c *gin.Context) {
	tenant, ok := middleware.GetTenantFromContext(c)
	if !ok {
		utils.InternalServerErrorResponse(c, "Tenant not resolved")
		return
	}

	var products []models.Product
	err := h.db.WithContext(c.Request.Context()).
		Where("tenant_id = ? AND is_active = ?", tenant.ID, true).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		logrus.Errorf("Failed to list catalog for tenant %s: %v", tenant.ID, err)
		utils.InternalServerErrorResponse(c, "Failed to load catalog")
		return
	}

	utils.OKResponse(c, "Catalog retrieved", products)
}

// GetCart returns the current cart priced from the catalog
func (h *Handler) GetCart(c *gin.Context) {
	tenant, identity, ok := h.requestScope(c)
	if !ok {
		return
	}

	view, err := h.carts.GetCart(c.Request.Context(), tenant.ID, identity)
	if err != nil {
		logrus.Errorf("Failed to load cart for tenant %s: %v", tenant.ID, err)
		utils.InternalServerErrorResponse(c, "Failed to load cart")
		return
	}

	utils.OKResponse(c, "Cart retrieved", view)
}

// AddToCart merges quantity into a cart line
func (h *Handler) AddToCart(c *gin.Context) {
	tenant, identity, ok := h.requestScope(c)
	if !ok {
		return
	}

	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if req.Quantity <= 0 {
		utils.BadRequestResponse(c, "Quantity must be positive")
		return
	}

	err := h.carts.AddToCart(c.Request.Context(), tenant.ID, identity, req.ProductID, req.variantID(), req.Quantity)
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	view, err := h.carts.GetCart(c.Request.Context(), tenant.ID, identity)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load cart")
		return
	}
	utils.OKResponse(c, "Item added to cart", view)
}

// UpdateCartItem sets a line quantity; zero removes the line
func (h *Handler) UpdateCartItem(c *gin.Context) {
	tenant, identity, ok := h.requestScope(c)
	if !ok {
		return
	}

	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	err := h.carts.UpdateItem(c.Request.Context(), tenant.ID, identity, req.ProductID, req.variantID(), req.Quantity)
	if err != nil {
		h.respondCartError(c, err)
		return
	}

	view, err := h.carts.GetCart(c.Request.Context(), tenant.ID, identity)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load cart")
		return
	}
	utils.OKResponse(c, "Cart updated", view)
}

// RemoveCartItem deletes a cart line
func (h *Handler) RemoveCartItem(c *gin.Context) {
	tenant, identity, ok := h.requestScope(c)
	if !ok {
		return
	}

	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product_id")
		return
	}
	variantID := uuid.Nil
	if raw := c.Query("variant_id"); raw != "" {
		variantID, err = uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid variant_id")
			return
		}
	}

	if err := h.carts.RemoveItem(c.Request.Context(), tenant.ID, identity, productID, variantID); err != nil {
		utils.InternalServerErrorResponse(c, "Failed to remove item")
		return
	}

	utils.OKResponse(c, "Item removed", nil)
}

// Checkout places an order from the current cart
func (h *Handler) Checkout(c *gin.Context) {
	tenant, identity, ok := h.requestScope(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	order, err := h.checkout.Checkout(c.Request.Context(), tenant, identity, req)
	if err != nil {
		h.respondCheckoutError(c, tenant, err)
		return
	}

	utils.CreatedResponse(c, "Order placed", order)
}

// ListOrders returns the identity's order history
func (h *Handler) ListOrders(c *gin.Context) {
	tenant, identity, ok := h.requestScope(c)
	if !ok {
		return
	}

	orders, err := h.checkout.ListOrders(c.Request.Context(), tenant.ID, identity, 0)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load orders")
		return
	}

	utils.OKResponse(c, "Orders retrieved", orders)
}

// TrackOrder is the unauthenticated order lookup by number and email
func (h *Handler) TrackOrder(c *gin.Context) {
	tenant, ok := middleware.GetTenantFromContext(c)
	if !ok {
		utils.InternalServerErrorResponse(c, "Tenant not resolved")
		return
	}

	orderNumber := c.Query("order_number")
	email := c.Query("email")
	if orderNumber == "" || email == "" {
		utils.BadRequestResponse(c, "order_number and email are required")
		return
	}

	view, err := h.checkout.TrackOrder(c.Request.Context(), tenant.ID, orderNumber, email)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			utils.NotFoundResponse(c, "Order not found")
			return
		}
		utils.InternalServerErrorResponse(c, "Failed to load order")
		return
	}

	utils.OKResponse(c, "Order retrieved", view)
}

type adjustInventoryRequest struct {
	ProductID uuid.UUID             `json:"product_id" binding:"required"`
	VariantID *uuid.UUID            `json:"variant_id"`
	Type      models.AdjustmentType `json:"type" binding:"required"`
	Quantity  int                   `json:"quantity"`
	Reason    string                `json:"reason" binding:"required"`
}

// AdjustInventory applies a manual stock adjustment (staff only)
func (h *Handler) AdjustInventory(c *gin.Context) {
	tenant, ok := middleware.GetTenantFromContext(c)
	if !ok {
		utils.InternalServerErrorResponse(c, "Tenant not resolved")
		return
	}

	var req adjustInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	// A negative set clamps to zero in the service; other types reject it
	if req.Quantity < 0 && req.Type != models.AdjustmentSet {
		utils.BadRequestResponse(c, "Quantity must not be negative")
		return
	}

	variantID := uuid.Nil
	if req.VariantID != nil {
		variantID = *req.VariantID
	}

	entry, err := h.inventory.Adjust(c.Request.Context(), tenant, AdjustRequest{
		ProductID: req.ProductID,
		VariantID: variantID,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Actor:     c.GetString("email"),
	})
	if err != nil {
		h.respondInventoryError(c, err)
		return
	}

	utils.OKResponse(c, "Inventory adjusted", entry)
}

// ListLowStock returns the restocking report (staff only)
func (h *Handler) ListLowStock(c *gin.Context) {
	tenant, ok := middleware.GetTenantFromContext(c)
	if !ok {
		utils.InternalServerErrorResponse(c, "Tenant not resolved")
		return
	}

	threshold := 0
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.BadRequestResponse(c, "Invalid threshold")
			return
		}
		threshold = parsed
	}

	items, err := h.inventory.ListLowStock(c.Request.Context(), tenant, threshold)
	if err != nil {
		logrus.Errorf("Failed to build low stock report for tenant %s: %v", tenant.ID, err)
		utils.InternalServerErrorResponse(c, "Failed to load low stock report")
		return
	}

	utils.OKResponse(c, "Low stock report", items)
}

// InventoryHistory returns the ledger for one product (staff only)
func (h *Handler) InventoryHistory(c *gin.Context) {
	tenant, ok := middleware.GetTenantFromContext(c)
	if !ok {
		utils.InternalServerErrorResponse(c, "Tenant not resolved")
		return
	}

	productID, err := uuid.Parse(c.Param("product_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product_id")
		return
	}

	entries, err := h.inventory.History(c.Request.Context(), tenant.ID, productID, 0)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load inventory history")
		return
	}

	utils.OKResponse(c, "Inventory history", entries)
}

func (h *Handler) requestScope(c *gin.Context) (*models.Tenant, string, bool) {
	tenant, ok := middleware.GetTenantFromContext(c)
	if !ok {
		utils.InternalServerErrorResponse(c, "Tenant not resolved")
		return nil, "", false
	}
	identity, err := middleware.GetCartIdentity(c)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Request identity missing")
		return nil, "", false
	}
	return tenant, identity, true
}

func (h *Handler) respondCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrVariantNotFound):
		utils.NotFoundResponse(c, "Product not found")
	case errors.Is(err, ErrProductNotActive):
		utils.UnprocessableResponse(c, "Product is not available")
	default:
		logrus.Errorf("Cart operation failed: %v", err)
		utils.InternalServerErrorResponse(c, "Cart operation failed")
	}
}

func (h *Handler) respondCheckoutError(c *gin.Context, tenant *models.Tenant, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		utils.ErrorResponseWithData(c, 409, "Insufficient stock", gin.H{
			"product_id": insufficient.ProductID,
			"variant_id": insufficient.VariantID,
			"requested":  insufficient.Requested,
			"available":  insufficient.Available,
		})
	case errors.Is(err, ErrCartEmpty):
		utils.UnprocessableResponse(c, "Cart is empty")
	case errors.Is(err, ErrCouponInvalid):
		utils.UnprocessableResponse(c, "Coupon code is not valid")
	case errors.Is(err, ErrCheckoutItemUnavailable):
		utils.UnprocessableResponse(c, err.Error())
	case errors.Is(err, ErrOrderNumbersExhausted):
		logrus.Errorf("Checkout for tenant %s exhausted order number attempts", tenant.ID)
		utils.ServiceUnavailableResponse(c, "Checkout is temporarily unavailable, please retry")
	default:
		logrus.Errorf("Checkout failed for tenant %s: %v", tenant.ID, err)
		utils.InternalServerErrorResponse(c, "Checkout failed")
	}
}

func (h *Handler) respondInventoryError(c *gin.Context, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		utils.ErrorResponseWithData(c, 409, "Insufficient stock", gin.H{
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrVariantNotFound):
		utils.NotFoundResponse(c, "Product not found")
	case errors.Is(err, ErrProductHasVariants):
		utils.UnprocessableResponse(c, ErrProductHasVariants.Error())
	case errors.Is(err, ErrStockConflict):
		utils.ConflictResponse(c, "Stock changed concurrently, retry the adjustment")
	default:
		logrus.Errorf("Inventory adjustment failed: %v", err)
		utils.InternalServerErrorResponse(c, "Inventory adjustment failed")
	}
}
