package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/config"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/middleware"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/tenancy"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	// Initialize Redis for the tenant resolution cache
	if err := utils.InitRedis(); err != nil {
		logrus.Warnf("Failed to connect to Redis, caching disabled: %v", err)
	}
	defer utils.CloseRedis()

	// The gateway resolves tenants at the edge so unknown hostnames are
	// rejected before they reach any service
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	resolver := tenancy.NewResolver(db)

	authMiddleware, err := middleware.NewAuthMiddleware()
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	serviceClients := &ServiceClients{
		StorefrontService:   NewServiceClient(getEnv("STOREFRONT_SERVICE_URL", "http://localhost:8001")),
		TenantAdminService:  NewServiceClient(getEnv("TENANT_ADMIN_SERVICE_URL", "http://localhost:8002")),
		NotificationService: NewServiceClient(getEnv("NOTIFICATION_SERVICE_URL", "http://localhost:8003")),
	}

	// Initialize Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Session-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "API Gateway is healthy", nil)
	})

	// Aggregated service status
	router.GET("/status", func(c *gin.Context) {
		utils.OKResponse(c, "Service status", serviceClients.GetServiceStatus())
	})

	// Customer storefront routes, resolved from the request host at the edge
	storefront := router.Group("/storefront")
	storefront.Use(middleware.ResolveTenant(resolver))
	{
		storefront.GET("/catalog", serviceClients.StorefrontService.ProxyRequest)
		storefront.GET("/cart", serviceClients.StorefrontService.ProxyRequest)
		storefront.POST("/cart/items", serviceClients.StorefrontService.ProxyRequest)
		storefront.PUT("/cart/items", serviceClients.StorefrontService.ProxyRequest)
		storefront.DELETE("/cart/items", serviceClients.StorefrontService.ProxyRequest)
		storefront.POST("/checkout", serviceClients.StorefrontService.ProxyRequest)
		storefront.GET("/orders", serviceClients.StorefrontService.ProxyRequest)
		storefront.GET("/orders/track", serviceClients.StorefrontService.ProxyRequest)
	}

	// Store staff routes
	admin := router.Group("/admin")
	admin.Use(middleware.ResolveTenant(resolver), authMiddleware.RequireAuth())
	{
		admin.POST("/inventory/adjust", serviceClients.StorefrontService.ProxyRequest)
		admin.GET("/inventory/low-stock", serviceClients.StorefrontService.ProxyRequest)
		admin.GET("/inventory/history/:product_id", serviceClients.StorefrontService.ProxyRequest)
	}

	// Platform store management routes
	tenants := router.Group("/tenants")
	tenants.Use(authMiddleware.RequireAuth())
	{
		tenants.POST("/", authMiddleware.RequireRole(middleware.RolePlatformAdmin), serviceClients.TenantAdminService.ProxyRequest)
		tenants.GET("/", authMiddleware.RequireRole(middleware.RolePlatformAdmin), serviceClients.TenantAdminService.ProxyRequest)
		tenants.DELETE("/:id", authMiddleware.RequireRole(middleware.RolePlatformAdmin), serviceClients.TenantAdminService.ProxyRequest)
		tenants.POST("/:id/suspend", authMiddleware.RequireRole(middleware.RolePlatformAdmin), serviceClients.TenantAdminService.ProxyRequest)
		tenants.POST("/:id/activate", authMiddleware.RequireRole(middleware.RolePlatformAdmin), serviceClients.TenantAdminService.ProxyRequest)

		tenants.GET("/:id", authMiddleware.RequireStoreOwnerOrAdmin(), serviceClients.TenantAdminService.ProxyRequest)
		tenants.PUT("/:id", authMiddleware.RequireStoreOwnerOrAdmin(), serviceClients.TenantAdminService.ProxyRequest)
	}

	// Notification observability routes (read-only, for monitoring)
	notifications := router.Group("/notifications")
	notifications.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(middleware.RolePlatformAdmin))
	{
		notifications.GET("/stats", serviceClients.NotificationService.ProxyRequest)
	}

	// Start server
	port := os.Getenv("API_GATEWAY_PORT")
	if port == "" {
		port = "8080"
	}

	logrus.Infof("API Gateway starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start API Gateway:", err)
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
