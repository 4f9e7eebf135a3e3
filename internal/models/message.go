package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// KitchenStatusMessage is published on every persisted kitchen status change
type KitchenStatusMessage struct {
	KitchenOrderID string    `json:"kitchen_order_id"`
	OrderID        string    `json:"order_id"`
	OldStatus      string    `json:"old_status"`
	NewStatus      string    `json:"new_status"`
	ChangedBy      string    `json:"changed_by"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewKitchenStatusMessage creates a status message for an order that moved away from old
func NewKitchenStatusMessage(order *KitchenOrder, old KitchenStatus, changedBy string) *KitchenStatusMessage {
	return &KitchenStatusMessage{
		KitchenOrderID: order.ID,
		OrderID:        order.SourceOrderID,
		OldStatus:      string(old),
		NewStatus:      string(order.Status),
		ChangedBy:      changedBy,
		Timestamp:      time.Now().UTC(),
	}
}

// CreateKitchenOrderRequest is the body of POST /api/kitchen/orders
type CreateKitchenOrderRequest struct {
	OrderID   string `json:"orderId"`
	ItemsJSON string `json:"itemsJson"`
}

// UpdateKitchenStatusRequest is the body of PUT /api/kitchen/orders/{id}/status
type UpdateKitchenStatusRequest struct {
	Status string `json:"status"`
}

// KitchenOrderResponse is the kitchen order as seen by the ordering service
type KitchenOrderResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	ItemsJSON string    `json:"itemsJson"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewKitchenOrderResponse converts a kitchen order to its wire form
func NewKitchenOrderResponse(order *KitchenOrder) (*KitchenOrderResponse, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal kitchen items: %w", err)
	}
	return &KitchenOrderResponse{
		ID:        order.ID,
		OrderID:   order.SourceOrderID,
		Status:    string(order.Status),
		ItemsJSON: string(items),
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}, nil
}

// KitchenItemsJSON encodes order lines as the items payload understood by the kitchen
func KitchenItemsJSON(items []OrderItem) (string, error) {
	lines := make([]KitchenItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, KitchenItem{
			MenuItemID:   item.MenuItemID,
			MenuItemName: item.MenuItemName,
			Quantity:     item.Quantity,
		})
	}
	body, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("failed to marshal kitchen items: %w", err)
	}
	return string(body), nil
}

// KitchenStatusUpdateResponse is the reply to a kitchen status update
type KitchenStatusUpdateResponse struct {
	Outcome string                `json:"outcome"`
	Order   *KitchenOrderResponse `json:"order,omitempty"`
}
