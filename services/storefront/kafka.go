package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// OrderEvent is published on order-events after a checkout commits
type OrderEvent struct {
	EventType   string    `json:"event_type"`
	TenantID    uuid.UUID `json:"tenant_id"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Identity    string    `json:"identity"`
	Email       string    `json:"email"`
	TotalCents  int64     `json:"total_cents"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// InventoryEvent is published on inventory-events after a stock mutation commits
type InventoryEvent struct {
	EventType      string    `json:"event_type"`
	TenantID       uuid.UUID `json:"tenant_id"`
	ProductID      uuid.UUID `json:"product_id"`
	VariantID      uuid.UUID `json:"variant_id,omitempty"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	Delta          int       `json:"delta"`
	Reason         string    `json:"reason"`
	LowStock       bool      `json:"low_stock"`
}

type queuedEvent struct {
	topic   string
	key     string
	payload interface{}
	headers []kafka.Header
}

// KafkaProducer publishes storefront events through a worker pool. All
// publishing happens after the database transaction commits; a full queue
// drops the event rather than blocking a checkout response.
type KafkaProducer struct {
	writer       *kafka.Writer
	eventChan    chan queuedEvent
	workerCount  int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
}

// NewKafkaProducer creates a producer with a worker pool
func NewKafkaProducer(broker string) (*KafkaProducer, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	kp := &KafkaProducer{
		writer:       writer,
		eventChan:    make(chan queuedEvent, 1000),
		workerCount:  10,
		shutdownChan: make(chan struct{}),
	}

	kp.startWorkers()

	return kp, nil
}

func (kp *KafkaProducer) startWorkers() {
	for i := 0; i < kp.workerCount; i++ {
		kp.wg.Add(1)
		go kp.eventWorker(i)
	}

	logrus.Infof("[Kafka] Started %d event workers", kp.workerCount)
}

func (kp *KafkaProducer) eventWorker(id int) {
	defer kp.wg.Done()

	for {
		select {
		case event := <-kp.eventChan:
			if err := kp.sendSync(event); err != nil {
				logrus.Errorf("[Kafka Worker %d] Failed to send event: %v", id, err)
			}
		case <-kp.shutdownChan:
			return
		}
	}
}

// PublishOrderEvent queues an order event. Safe to call on a nil producer.
func (kp *KafkaProducer) PublishOrderEvent(event OrderEvent) error {
	if kp == nil {
		return nil
	}
	return kp.enqueue(queuedEvent{
		topic:   "order-events",
		key:     event.TenantID.String(),
		payload: event,
		headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID.String())},
		},
	})
}

// PublishInventoryEvent queues an inventory event. Safe to call on a nil producer.
func (kp *KafkaProducer) PublishInventoryEvent(event InventoryEvent) error {
	if kp == nil {
		return nil
	}
	return kp.enqueue(queuedEvent{
		topic:   "inventory-events",
		key:     event.TenantID.String(),
		payload: event,
		headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID.String())},
		},
	})
}

func (kp *KafkaProducer) enqueue(event queuedEvent) error {
	select {
	case kp.eventChan <- event:
		return nil
	default:
		return fmt.Errorf("event queue full, event dropped")
	}
}

func (kp *KafkaProducer) sendSync(event queuedEvent) error {
	message, err := json.Marshal(event.payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic:   event.topic,
		Key:     []byte(event.key),
		Value:   message,
		Headers: event.headers,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}

	return nil
}

// Close gracefully shuts down the producer and its workers
func (kp *KafkaProducer) Close() error {
	if kp == nil {
		return nil
	}

	close(kp.shutdownChan)
	kp.wg.Wait()
	close(kp.eventChan)

	if err := kp.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}

	logrus.Info("[Kafka] Graceful shutdown complete")
	return nil
}
