package order

import (
	"strings"

	"kitchen-sync/internal/models"
)

func normalizeKitchenStatus(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "CANCELED":
		return string(models.KitchenCancelled)
	case "INPROGRESS":
		return string(models.KitchenInProgress)
	}
	return s
}

// ToItemStatus maps a raw kitchen status onto an order item status. The bool is
// false when the status carries no item change, including CANCELLED and unknown values.
func ToItemStatus(raw string) (models.ItemStatus, bool) {
	switch normalizeKitchenStatus(raw) {
	case "NEW", "PENDING":
		return models.ItemPending, true
	case string(models.KitchenPreparing), string(models.KitchenInProgress):
		return models.ItemPreparing, true
	case string(models.KitchenReady):
		return models.ItemReady, true
	case string(models.KitchenServed), string(models.KitchenCompleted):
		return models.ItemServed, true
	}
	return "", false
}

// IsTerminalKitchenStatus reports whether the kitchen will not change the status again
func IsTerminalKitchenStatus(raw string) bool {
	switch normalizeKitchenStatus(raw) {
	case string(models.KitchenCompleted), string(models.KitchenServed), string(models.KitchenCancelled):
		return true
	}
	return false
}

// ToOrderStatusOrDefault maps a kitchen status onto an order status, falling back to current
func ToOrderStatusOrDefault(raw string, current models.OrderStatus) models.OrderStatus {
	switch normalizeKitchenStatus(raw) {
	case string(models.KitchenNew):
		return models.OrderNew
	case string(models.KitchenPreparing), string(models.KitchenInProgress):
		return models.OrderProcessing
	case string(models.KitchenReady):
		return models.OrderReady
	case string(models.KitchenServed), string(models.KitchenCompleted):
		return models.OrderCompleted
	case string(models.KitchenCancelled):
		return models.OrderCancelled
	}
	return current
}

// kitchenProgress ranks the non-terminal kitchen statuses
var kitchenProgress = map[string]int{
	string(models.KitchenNew):        0,
	string(models.KitchenPreparing):  1,
	string(models.KitchenInProgress): 2,
	string(models.KitchenReady):      3,
}

// AdvancesKitchenStatus reports whether next may replace current as the recorded
// kitchen status of one kitchen order. Terminal statuses are final, and
// cancel_notify_failed only gives way to CANCELLED. Values outside the known
// progression are recorded as they come.
func AdvancesKitchenStatus(current, next string) bool {
	current, next = normalizeKitchenStatus(current), normalizeKitchenStatus(next)
	switch {
	case next == "" || current == next:
		return false
	case current == "" || current == strings.ToUpper(models.KitchenNotifyFailed):
		return true
	case current == strings.ToUpper(models.CancelNotifyFailed):
		return next == string(models.KitchenCancelled)
	case IsTerminalKitchenStatus(current):
		return false
	case IsTerminalKitchenStatus(next):
		return true
	}

	a, okA := kitchenProgress[current]
	b, okB := kitchenProgress[next]
	if !okA || !okB {
		return true
	}
	return a < b
}
