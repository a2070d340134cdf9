package main

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/tenancy"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/utils"
)

// CreateTenantRequest represents the create store request
type CreateTenantRequest struct {
	Name              string  `json:"name" binding:"required"`
	Subdomain         string  `json:"subdomain" binding:"required"`
	CustomDomain      *string `json:"custom_domain"`
	Plan              string  `json:"plan"`
	LowStockThreshold *int    `json:"low_stock_threshold"`
}

// UpdateTenantRequest represents the update store request. The subdomain is
// deliberately absent: it is immutable after creation because it is baked
// into customer-facing URLs.
type UpdateTenantRequest struct {
	Name              *string `json:"name"`
	CustomDomain      *string `json:"custom_domain"`
	Plan              *string `json:"plan"`
	LowStockThreshold *int    `json:"low_stock_threshold"`
}

// handleCreateTenant handles store creation (platform admin only)
func handleCreateTenant(db *gorm.DB, resolver *tenancy.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		subdomain := strings.ToLower(strings.TrimSpace(req.Subdomain))
		if err := resolver.ValidateSubdomain(subdomain); err != nil {
			utils.BadRequestResponse(c, err.Error())
			return
		}

		plan := req.Plan
		if plan == "" {
			plan = "free"
		}
		threshold := 5
		if req.LowStockThreshold != nil && *req.LowStockThreshold >= 0 {
			threshold = *req.LowStockThreshold
		}

		tenant := models.Tenant{
			ID:                uuid.New(),
			Name:              req.Name,
			Subdomain:         subdomain,
			Status:            models.TenantStatusActive,
			Plan:              plan,
			LowStockThreshold: threshold,
		}
		if req.CustomDomain != nil {
			domain := tenancy.NormalizeHost(*req.CustomDomain)
			tenant.CustomDomain = &domain
		}

		if err := db.Create(&tenant).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				utils.ConflictResponse(c, "Subdomain or custom domain already in use")
				return
			}
			logrus.Errorf("Failed to create tenant: %v", err)
			utils.InternalServerErrorResponse(c, "Failed to create store")
			return
		}

		utils.CreatedResponse(c, "Store created successfully", tenant)
	}
}

// handleGetTenants handles listing all stores (platform admin only)
func handleGetTenants(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tenants []models.Tenant
		query := db.Order("created_at DESC")
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		if err := query.Find(&tenants).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch stores")
			return
		}

		utils.OKResponse(c, "Stores retrieved successfully", tenants)
	}
}

// handleGetTenant handles getting one store
func handleGetTenant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := loadTenant(c, db)
		if !ok {
			return
		}

		utils.OKResponse(c, "Store retrieved successfully", tenant)
	}
}

// handleUpdateTenant handles updating a store's mutable fields
func handleUpdateTenant(db *gorm.DB, resolver *tenancy.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := loadTenant(c, db)
		if !ok {
			return
		}

		var req UpdateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if req.Name != nil {
			tenant.Name = *req.Name
		}
		if req.Plan != nil {
			tenant.Plan = *req.Plan
		}
		if req.LowStockThreshold != nil && *req.LowStockThreshold >= 0 {
			tenant.LowStockThreshold = *req.LowStockThreshold
		}
		if req.CustomDomain != nil {
			if *req.CustomDomain == "" {
				tenant.CustomDomain = nil
			} else {
				domain := tenancy.NormalizeHost(*req.CustomDomain)
				if strings.HasSuffix(domain, "."+resolver.BaseDomain()) {
					utils.BadRequestResponse(c, "Custom domain must be outside the platform domain")
					return
				}
				tenant.CustomDomain = &domain
			}
		}

		if err := db.Save(tenant).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				utils.ConflictResponse(c, "Custom domain already in use")
				return
			}
			logrus.Errorf("Failed to update tenant %s: %v", tenant.ID, err)
			utils.InternalServerErrorResponse(c, "Failed to update store")
			return
		}

		resolver.InvalidateTenant(tenant)
		utils.OKResponse(c, "Store updated successfully", tenant)
	}
}

// handleSetTenantStatus suspends or reactivates a store (platform admin only)
func handleSetTenantStatus(db *gorm.DB, resolver *tenancy.Resolver, status models.TenantStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := loadTenant(c, db)
		if !ok {
			return
		}

		if tenant.Status == models.TenantStatusDeleted {
			utils.GoneResponse(c, "Store has been deleted")
			return
		}

		tenant.Status = status
		if err := db.Save(tenant).Error; err != nil {
			logrus.Errorf("Failed to set tenant %s status: %v", tenant.ID, err)
			utils.InternalServerErrorResponse(c, "Failed to update store status")
			return
		}

		// Drop cached resolutions so the new status is seen immediately
		resolver.InvalidateTenant(tenant)
		utils.OKResponse(c, "Store status updated", tenant)
	}
}

// handleDeleteTenant soft deletes a store. The row is kept with a deleted
// status so its hostnames keep answering 410 instead of 404.
func handleDeleteTenant(db *gorm.DB, resolver *tenancy.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := loadTenant(c, db)
		if !ok {
			return
		}

		tenant.Status = models.TenantStatusDeleted
		if err := db.Save(tenant).Error; err != nil {
			logrus.Errorf("Failed to delete tenant %s: %v", tenant.ID, err)
			utils.InternalServerErrorResponse(c, "Failed to delete store")
			return
		}

		resolver.InvalidateTenant(tenant)
		utils.OKResponse(c, "Store deleted", nil)
	}
}

func loadTenant(c *gin.Context, db *gorm.DB) (*models.Tenant, bool) {
	tenantID := c.Param("id")

	var tenant models.Tenant
	if err := db.Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Store not found")
		} else {
			utils.InternalServerErrorResponse(c, "Failed to fetch store")
		}
		return nil, false
	}
	return &tenant, true
}
