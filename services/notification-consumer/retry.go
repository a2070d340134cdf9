package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	notificationKindOrder     = "order"
	notificationKindInventory = "inventory"

	statusPending           = "pending"
	statusResolved          = "resolved"
	statusPermanentlyFailed = "permanently_failed"
)

// FailedNotification is a notification the webhook endpoint rejected,
// queued for retry with exponential backoff. The original event payload is
// kept verbatim so a retry sends exactly what the first attempt did.
type FailedNotification struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Kind         string     `gorm:"type:varchar(20);not null" json:"kind"`
	TenantID     string     `gorm:"type:varchar(36);not null" json:"tenant_id"`
	Payload      string     `gorm:"type:text;not null" json:"payload"`
	ErrorMessage string     `gorm:"not null" json:"error_message"`
	RetryCount   int        `gorm:"default:0" json:"retry_count"`
	Status       string     `gorm:"type:varchar(30);default:'pending';index" json:"status"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// TableName returns the table name for the FailedNotification model
func (FailedNotification) TableName() string {
	return "failed_notifications"
}

func (fn *FailedNotification) BeforeCreate(*gorm.DB) error {
	if fn.ID == uuid.Nil {
		fn.ID = uuid.New()
	}
	return nil
}

// storeFailedNotification queues a rejected delivery for retry in a minute
func storeFailedNotification(db *gorm.DB, kind, tenantID string, payload []byte, cause error) error {
	nextRetryAt := time.Now().Add(1 * time.Minute)
	return db.Create(&FailedNotification{
		Kind:         kind,
		TenantID:     tenantID,
		Payload:      string(payload),
		ErrorMessage: cause.Error(),
		Status:       statusPending,
		NextRetryAt:  &nextRetryAt,
	}).Error
}

// RetryWorker drains the failed notification queue with exponential backoff
type RetryWorker struct {
	db            *gorm.DB
	webhook       *WebhookClient
	maxRetries    int
	batchSize     int
	checkInterval time.Duration
}

// NewRetryWorker creates a retry worker
func NewRetryWorker(db *gorm.DB, webhook *WebhookClient) *RetryWorker {
	return &RetryWorker{
		db:            db,
		webhook:       webhook,
		maxRetries:    8,
		batchSize:     100,
		checkInterval: 30 * time.Second,
	}
}

// Run processes due retries until ctx is cancelled
func (rw *RetryWorker) Run(ctx context.Context) {
	logrus.Info("Starting notification retry worker...")

	ticker := time.NewTicker(rw.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rw.processBatch()
		}
	}
}

func (rw *RetryWorker) processBatch() {
	var due []FailedNotification
	err := rw.db.Where("status = ? AND next_retry_at <= ?", statusPending, time.Now()).
		Order("next_retry_at ASC").
		Limit(rw.batchSize).
		Find(&due).Error
	if err != nil {
		logrus.Errorf("Error fetching failed notifications: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	logrus.Infof("Retrying %d failed notifications", len(due))
	for i := range due {
		if err := rw.retryOne(&due[i]); err != nil {
			logrus.Errorf("Failed to retry notification %s: %v", due[i].ID, err)
		}
	}
}

func (rw *RetryWorker) retryOne(failed *FailedNotification) error {
	var deliverErr error
	switch failed.Kind {
	case notificationKindOrder:
		var event OrderEvent
		if err := json.Unmarshal([]byte(failed.Payload), &event); err != nil {
			return rw.markPermanentlyFailed(failed, fmt.Sprintf("unreadable payload: %v", err))
		}
		deliverErr = rw.webhook.DeliverOrderNotification(event)
	case notificationKindInventory:
		var event InventoryEvent
		if err := json.Unmarshal([]byte(failed.Payload), &event); err != nil {
			return rw.markPermanentlyFailed(failed, fmt.Sprintf("unreadable payload: %v", err))
		}
		deliverErr = rw.webhook.DeliverInventoryNotification(event)
	default:
		return rw.markPermanentlyFailed(failed, "unknown notification kind "+failed.Kind)
	}

	if deliverErr != nil {
		return rw.updateRetryStatus(failed, deliverErr)
	}
	return rw.markResolved(failed)
}

// updateRetryStatus bumps the retry count and schedules the next attempt
// with exponential backoff (1m, 2m, 4m, ...)
func (rw *RetryWorker) updateRetryStatus(failed *FailedNotification, cause error) error {
	failed.RetryCount++

	if failed.RetryCount >= rw.maxRetries {
		failed.Status = statusPermanentlyFailed
		now := time.Now()
		failed.ResolvedAt = &now
		failed.ErrorMessage = fmt.Sprintf("max retries reached: %s", cause.Error())
		failed.NextRetryAt = nil
	} else {
		delay := 1 * time.Minute * time.Duration(1<<(failed.RetryCount-1))
		nextRetryAt := time.Now().Add(delay)
		failed.NextRetryAt = &nextRetryAt
		failed.ErrorMessage = cause.Error()
	}

	return rw.db.Save(failed).Error
}

func (rw *RetryWorker) markResolved(failed *FailedNotification) error {
	now := time.Now()
	failed.Status = statusResolved
	failed.ResolvedAt = &now
	failed.NextRetryAt = nil
	return rw.db.Save(failed).Error
}

func (rw *RetryWorker) markPermanentlyFailed(failed *FailedNotification, reason string) error {
	now := time.Now()
	failed.Status = statusPermanentlyFailed
	failed.ErrorMessage = reason
	failed.ResolvedAt = &now
	failed.NextRetryAt = nil
	return rw.db.Save(failed).Error
}

// PendingCount reports how many notifications await retry
func (rw *RetryWorker) PendingCount() (int64, error) {
	var count int64
	err := rw.db.Model(&FailedNotification{}).Where("status = ?", statusPending).Count(&count).Error
	return count, err
}
