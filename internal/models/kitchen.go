package models

import (
	"fmt"
	"strings"
	"time"
)

// KitchenStatus is the preparation state of a kitchen order
type KitchenStatus string

const (
	KitchenNew        KitchenStatus = "NEW"
	KitchenPreparing  KitchenStatus = "PREPARING"
	KitchenInProgress KitchenStatus = "IN_PROGRESS"
	KitchenReady      KitchenStatus = "READY"
	KitchenServed     KitchenStatus = "SERVED"
	KitchenCompleted  KitchenStatus = "COMPLETED"
	KitchenCancelled  KitchenStatus = "CANCELLED"
)

// AllKitchenStatuses lists every kitchen status in lifecycle order
var AllKitchenStatuses = []KitchenStatus{
	KitchenNew,
	KitchenPreparing,
	KitchenInProgress,
	KitchenReady,
	KitchenServed,
	KitchenCompleted,
	KitchenCancelled,
}

// ParseKitchenStatus parses a status case-insensitively. "CANCELED" is accepted.
func ParseKitchenStatus(raw string) (KitchenStatus, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "CANCELED" {
		return KitchenCancelled, nil
	}
	for _, status := range AllKitchenStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown kitchen status %q", raw)
}

// KitchenItem is one line of a kitchen order, snapshotted at creation
type KitchenItem struct {
	MenuItemID   string `json:"menuItemId,omitempty"`
	MenuItemName string `json:"menuItemName"`
	Quantity     int    `json:"quantity"`
}

// KitchenOrder is a kitchen-side preparation job for a source order
type KitchenOrder struct {
	ID            string        `json:"id"`
	SourceOrderID string        `json:"orderId"`
	Items         []KitchenItem `json:"items"`
	Status        KitchenStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// KitchenStatusLogEntry is one persisted status change
type KitchenStatusLogEntry struct {
	Status    KitchenStatus `json:"status"`
	ChangedBy string        `json:"changedBy"`
	ChangedAt time.Time     `json:"changedAt"`
	Notes     string        `json:"notes,omitempty"`
}
