package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"time"
)

const orderNumberAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateOrderNumber produces a candidate order number of the form
// ORD-20250131-7GK2MX. The suffix is random rather than sequential so order
// numbers do not leak store volume. Uniqueness is enforced by the database;
// callers retry on a duplicate key.
func GenerateOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	suffix := make([]byte, len(buf))
	for i, b := range buf {
		suffix[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}

	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix), nil
}

// orderNumberMaxAttempts returns how many times a checkout retries the whole
// transaction when the generated order number collides
func orderNumberMaxAttempts() int {
	if raw := os.Getenv("ORDER_NUMBER_MAX_ATTEMPTS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 5
}
