package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/muragewanjohi/storeflow-website-sub003/shared/utils"
)

// OrderEvent mirrors the payload published by the storefront on order-events
type OrderEvent struct {
	EventType   string    `json:"event_type"`
	TenantID    string    `json:"tenant_id"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Identity    string    `json:"identity"`
	Email       string    `json:"email"`
	TotalCents  int64     `json:"total_cents"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// InventoryEvent mirrors the payload published on inventory-events
type InventoryEvent struct {
	EventType      string `json:"event_type"`
	TenantID       string `json:"tenant_id"`
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	QuantityBefore int    `json:"quantity_before"`
	QuantityAfter  int    `json:"quantity_after"`
	Delta          int    `json:"delta"`
	Reason         string `json:"reason"`
	LowStock       bool   `json:"low_stock"`
}

// WebhookClient delivers notifications to the external notification system.
// A circuit breaker sheds load when the endpoint is down so the consumer
// fails fast and queues retries instead of piling up blocked requests.
type WebhookClient struct {
	endpoint    string
	httpClient  *http.Client
	breaker     *utils.CircuitBreaker
	lastSuccess time.Time
	lastError   error
	mutex       sync.RWMutex
}

// NewWebhookClient creates a webhook client for the given endpoint
func NewWebhookClient(endpoint string) *WebhookClient {
	return &WebhookClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: utils.NewCircuitBreaker(5, 30*time.Second),
	}
}

// DeliverOrderNotification posts an order confirmation request
func (c *WebhookClient) DeliverOrderNotification(event OrderEvent) error {
	return c.deliver("/orders", event.TenantID, map[string]interface{}{
		"event_type": event.EventType,
		"data":       event,
		"timestamp":  time.Now(),
	})
}

// DeliverInventoryNotification posts a low stock alert request
func (c *WebhookClient) DeliverInventoryNotification(event InventoryEvent) error {
	return c.deliver("/inventory", event.TenantID, map[string]interface{}{
		"event_type": event.EventType,
		"data":       event,
		"timestamp":  time.Now(),
	})
}

func (c *WebhookClient) deliver(path, tenantID string, payload map[string]interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = c.breaker.Call(func() error {
		req, err := http.NewRequest(http.MethodPost, c.endpoint+path, bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", tenantID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send notification: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
		}
		return nil
	})

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err != nil {
		c.lastError = err
		return err
	}
	c.lastSuccess = time.Now()
	c.lastError = nil
	return nil
}

// Stats reports the client's delivery health
func (c *WebhookClient) Stats() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := map[string]interface{}{
		"endpoint":      c.endpoint,
		"breaker_state": string(c.breaker.State()),
		"failures":      c.breaker.Failures(),
	}
	if !c.lastSuccess.IsZero() {
		stats["last_success"] = c.lastSuccess
	}
	if c.lastError != nil {
		stats["last_error"] = c.lastError.Error()
	}
	return stats
}
