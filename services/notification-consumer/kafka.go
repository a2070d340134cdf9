package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// KafkaConsumer reads order and inventory events and turns them into
// outbound notifications. Failed deliveries land in the retry table; the
// message is committed either way so a dead webhook endpoint cannot stall
// the consumer group.
type KafkaConsumer struct {
	orderReader     *kafka.Reader
	inventoryReader *kafka.Reader
	db              *gorm.DB
	webhook         *WebhookClient
}

// NewKafkaConsumer creates readers for both storefront topics
func NewKafkaConsumer(broker string, db *gorm.DB, webhook *WebhookClient) *KafkaConsumer {
	orderReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          "order-events",
		GroupID:        "notification-service",
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	inventoryReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          "inventory-events",
		GroupID:        "notification-service",
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})

	return &KafkaConsumer{
		orderReader:     orderReader,
		inventoryReader: inventoryReader,
		db:              db,
		webhook:         webhook,
	}
}

// ConsumeOrderEvents delivers order confirmations until ctx is cancelled
func (kc *KafkaConsumer) ConsumeOrderEvents(ctx context.Context) {
	logrus.Info("Starting order events consumer...")

	consumeLoop(ctx, kc.orderReader, func(msg kafka.Message) {
		var event OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logrus.Errorf("Error unmarshaling order event: %v", err)
			return
		}

		if err := kc.webhook.DeliverOrderNotification(event); err != nil {
			logrus.Errorf("Error delivering order notification for %s: %v", event.OrderNumber, err)
			kc.storeFailed(notificationKindOrder, event.TenantID, msg.Value, err)
			return
		}
		logrus.Infof("Delivered order notification for tenant %s, order %s", event.TenantID, event.OrderNumber)
	})
}

// ConsumeInventoryEvents delivers low stock alerts until ctx is cancelled.
// Only events that crossed the low stock threshold produce a notification.
func (kc *KafkaConsumer) ConsumeInventoryEvents(ctx context.Context) {
	logrus.Info("Starting inventory events consumer...")

	consumeLoop(ctx, kc.inventoryReader, func(msg kafka.Message) {
		var event InventoryEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logrus.Errorf("Error unmarshaling inventory event: %v", err)
			return
		}
		if !event.LowStock {
			return
		}

		if err := kc.webhook.DeliverInventoryNotification(event); err != nil {
			logrus.Errorf("Error delivering low stock alert for product %s: %v", event.ProductID, err)
			kc.storeFailed(notificationKindInventory, event.TenantID, msg.Value, err)
			return
		}
		logrus.Infof("Delivered low stock alert for tenant %s, product %s", event.TenantID, event.ProductID)
	})
}

func consumeLoop(ctx context.Context, reader *kafka.Reader, handle func(kafka.Message)) {
	for {
		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		msg, err := reader.ReadMessage(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Timeouts are expected when no messages are available
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logrus.Errorf("Error reading message from %s: %v", reader.Config().Topic, err)
			time.Sleep(1 * time.Second)
			continue
		}

		handle(msg)
	}
}

func (kc *KafkaConsumer) storeFailed(kind string, tenantID string, payload []byte, cause error) {
	if err := storeFailedNotification(kc.db, kind, tenantID, payload, cause); err != nil {
		logrus.Errorf("Failed to queue notification for retry: %v", err)
	}
}

// Close closes both readers
func (kc *KafkaConsumer) Close() error {
	if err := kc.orderReader.Close(); err != nil {
		return fmt.Errorf("failed to close order reader: %w", err)
	}
	if err := kc.inventoryReader.Close(); err != nil {
		return fmt.Errorf("failed to close inventory reader: %w", err)
	}
	return nil
}
