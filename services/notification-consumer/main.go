package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/config"
	"github.com/muragewanjohi/storeflow-website-sub003/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	// Initialize database for the retry queue
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := db.AutoMigrate(&FailedNotification{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	endpoint := os.Getenv("NOTIFICATION_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:9090"
	}
	webhook := NewWebhookClient(endpoint)

	broker := os.Getenv("KAFKA_BROKER")
	if broker == "" {
		broker = "localhost:9092"
	}
	consumer := NewKafkaConsumer(broker, db, webhook)
	defer consumer.Close()

	retryWorker := NewRetryWorker(db, webhook)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go consumer.ConsumeOrderEvents(ctx)
	go consumer.ConsumeInventoryEvents(ctx)
	go retryWorker.Run(ctx)

	// Stats endpoint for operators
	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Notification consumer is healthy", nil)
	})
	statsHandler := func(c *gin.Context) {
		pending, err := retryWorker.PendingCount()
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to read retry queue")
			return
		}
		utils.OKResponse(c, "Consumer stats", gin.H{
			"webhook":         webhook.Stats(),
			"pending_retries": pending,
		})
	}
	router.GET("/stats", statsHandler)
	// Path the gateway proxies under
	router.GET("/notifications/stats", statsHandler)

	port := os.Getenv("NOTIFICATION_SERVICE_PORT")
	if port == "" {
		port = "8003"
	}

	logrus.Infof("Notification consumer starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start notification consumer:", err)
	}
}
