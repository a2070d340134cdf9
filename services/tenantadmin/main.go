package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/config"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/middleware"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/models"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/tenancy"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	if err := utils.InitRedis(); err != nil {
		logrus.Warnf("Redis unavailable, tenant cache invalidation disabled: %v", err)
	}
	defer utils.CloseRedis()

	// Initialize database
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.Tenant{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	resolver := tenancy.NewResolver(db)

	authMiddleware, err := middleware.NewAuthMiddleware()
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	// Initialize Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Tenant admin service is healthy", nil)
	})

	// Store management routes
	tenants := router.Group("/tenants")
	tenants.Use(authMiddleware.RequireAuth())
	{
		// Platform-wide routes
		tenants.POST("/", authMiddleware.RequireRole(middleware.RolePlatformAdmin), handleCreateTenant(db, resolver))
		tenants.GET("/", authMiddleware.RequireRole(middleware.RolePlatformAdmin), handleGetTenants(db))
		tenants.POST("/:id/suspend", authMiddleware.RequireRole(middleware.RolePlatformAdmin),
			handleSetTenantStatus(db, resolver, models.TenantStatusSuspended))
		tenants.POST("/:id/activate", authMiddleware.RequireRole(middleware.RolePlatformAdmin),
			handleSetTenantStatus(db, resolver, models.TenantStatusActive))
		tenants.DELETE("/:id", authMiddleware.RequireRole(middleware.RolePlatformAdmin), handleDeleteTenant(db, resolver))

		// Store owners may read and update their own store
		tenants.GET("/:id", authMiddleware.RequireStoreOwnerOrAdmin(), handleGetTenant(db))
		tenants.PUT("/:id", authMiddleware.RequireStoreOwnerOrAdmin(), handleUpdateTenant(db, resolver))
	}

	// Start server
	port := os.Getenv("TENANT_ADMIN_SERVICE_PORT")
	if port == "" {
		port = "8002"
	}

	logrus.Infof("Tenant admin service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start tenant admin service:", err)
	}
}
