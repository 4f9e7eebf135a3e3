package models

import (
	"math"
	"time"
)

// OrderStatus is the customer-facing status of an order
type OrderStatus string

const (
	OrderNew        OrderStatus = "NEW"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderReady      OrderStatus = "READY"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderPaid       OrderStatus = "PAID"
)

// orderRank orders the forward progression of an order. CANCELLED and PAID sit outside it.
var orderRank = map[OrderStatus]int{
	OrderNew:        0,
	OrderProcessing: 1,
	OrderReady:      2,
	OrderCompleted:  3,
}

// Precedes reports whether s comes strictly before next in the order progression
func (s OrderStatus) Precedes(next OrderStatus) bool {
	a, okA := orderRank[s]
	b, okB := orderRank[next]
	return okA && okB && a < b
}

// ItemStatus is the preparation status of a single order line
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemPreparing ItemStatus = "PREPARING"
	ItemReady     ItemStatus = "READY"
	ItemServed    ItemStatus = "SERVED"
)

var itemRank = map[ItemStatus]int{
	ItemPending:   0,
	ItemPreparing: 1,
	ItemReady:     2,
	ItemServed:    3,
}

// Precedes reports whether s comes strictly before next
func (s ItemStatus) Precedes(next ItemStatus) bool {
	a, okA := itemRank[s]
	b, okB := itemRank[next]
	return okA && okB && a < b
}

// IsDone is true once the item is ready or served
func (s ItemStatus) IsDone() bool {
	return s == ItemReady || s == ItemServed
}

// Sentinel kitchen statuses recorded when a best-effort kitchen call fails
const (
	KitchenNotifyFailed = "kitchen_notify_failed"
	CancelNotifyFailed  = "cancel_notify_failed"
)

// MenuCategory says where a menu item is prepared
type MenuCategory string

const (
	CategoryKitchen MenuCategory = "KITCHEN"
	CategoryBar     MenuCategory = "BAR"
)

// MenuItem is the read-only menu data an order line is priced from
type MenuItem struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Price    float64      `json:"price"`
	Category MenuCategory `json:"category,omitempty"`
}

// IsKitchenItem is true for kitchen and uncategorised items
func (m MenuItem) IsKitchenItem() bool {
	return m.Category != CategoryBar
}

// OrderItem represents an item in an order. KitchenOrderID is the kitchen order
// the item was sent with; it stays empty for bar items and failed dispatches.
type OrderItem struct {
	ID             string     `json:"id"`
	MenuItemID     string     `json:"menuItemId"`
	MenuItemName   string     `json:"menuItemName"`
	Quantity       int        `json:"quantity"`
	Price          float64    `json:"price"`
	Status         ItemStatus `json:"status"`
	IsKitchenItem  bool       `json:"isKitchenItem"`
	KitchenOrderID string     `json:"kitchenOrderId,omitempty"`
}

// Order is the customer-facing order aggregate
type Order struct {
	ID             string      `json:"id"`
	CustomerID     string      `json:"customerId"`
	TableNumber    *int        `json:"tableNumber,omitempty"`
	Status         OrderStatus `json:"status"`
	TotalAmount    float64     `json:"totalAmount"`
	KitchenOrderID string      `json:"kitchenOrderId,omitempty"`
	KitchenStatus  string      `json:"kitchenStatus,omitempty"`
	Items          []OrderItem `json:"items"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// RecalculateTotal sums price times quantity over all items, rounded to cents
func (o *Order) RecalculateTotal() {
	var total float64
	for _, item := range o.Items {
		total += item.Price * float64(item.Quantity)
	}
	o.TotalAmount = math.Round(total*100) / 100
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.TableNumber != nil {
		n := *o.TableNumber
		c.TableNumber = &n
	}
	return &c
}

// PlaceOrderRequest is a request to add items to a customer's order
type PlaceOrderRequest struct {
	CustomerID  string           `json:"customerId"`
	TableNumber *int             `json:"tableNumber,omitempty"`
	Items       []PlaceOrderItem `json:"items"`
}

type PlaceOrderItem struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}
