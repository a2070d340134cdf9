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

	// Redis backs the tenant resolution cache; the service degrades to
	// database lookups if it is unavailable
	if err := utils.InitRedis(); err != nil {
		logrus.Warnf("Redis unavailable, tenant cache disabled: %v", err)
	}
	defer utils.CloseRedis()

	// Initialize database
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Product{},
		&models.Variant{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.InventoryHistory{},
		&models.Coupon{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Kafka producer for order and inventory events
	var producer *KafkaProducer
	if broker := os.Getenv("KAFKA_BROKER"); broker != "" {
		producer, err = NewKafkaProducer(broker)
		if err != nil {
			log.Fatal("Failed to initialize Kafka producer:", err)
		}
		defer producer.Close()
	} else {
		logrus.Warn("KAFKA_BROKER not set, event publishing disabled")
	}

	resolver := tenancy.NewResolver(db)
	carts := NewCartService(db)
	inventory := NewInventoryService(db, producer)
	checkout := NewCheckoutService(db, carts, inventory, producer)
	handler := NewHandler(db, carts, inventory, checkout)

	authMiddleware, err := middleware.NewAuthMiddleware()
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	// Initialize Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Storefront service is healthy", nil)
	})

	// Customer-facing routes, resolved from the request host
	storefront := router.Group("/storefront")
	storefront.Use(middleware.ResolveTenant(resolver), middleware.CustomerIdentity())
	{
		storefront.GET("/catalog", handler.ListCatalog)

		storefront.GET("/cart", handler.GetCart)
		storefront.POST("/cart/items", handler.AddToCart)
		storefront.PUT("/cart/items", handler.UpdateCartItem)
		storefront.DELETE("/cart/items", handler.RemoveCartItem)

		storefront.POST("/checkout", handler.Checkout)
		storefront.GET("/orders", handler.ListOrders)
		storefront.GET("/orders/track", handler.TrackOrder)
	}

	// Staff routes, scoped to the tenant the host resolved to
	admin := router.Group("/admin")
	admin.Use(middleware.ResolveTenant(resolver), authMiddleware.RequireAuth(), authMiddleware.RequireStaffAccess())
	{
		admin.POST("/inventory/adjust", handler.AdjustInventory)
		admin.GET("/inventory/low-stock", handler.ListLowStock)
		admin.GET("/inventory/history/:product_id", handler.InventoryHistory)
	}

	// Start server
	port := os.Getenv("STOREFRONT_SERVICE_PORT")
	if port == "" {
		port = "8001"
	}

	logrus.Infof("Storefront service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start storefront service:", err)
	}
}
