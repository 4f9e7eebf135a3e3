package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/models"
	"kitchen-sync/internal/services/order/internal/validation"
)

// PlaceOrderResult is the order after placement. Merged is true when the items
// were appended to an order the customer already had open.
type PlaceOrderResult struct {
	Order  *models.Order
	Merged bool
}

// ForwardResult is the kitchen's answer to a forwarded status change and the
// order it was reconciled into, if one is known.
type ForwardResult struct {
	Outcome      string                       `json:"outcome"`
	KitchenOrder *models.KitchenOrderResponse `json:"kitchenOrder,omitempty"`
	Order        *models.Order                `json:"order,omitempty"`
}

// Coordinator keeps customer orders and kitchen orders in step
type Coordinator struct {
	repo    Repository
	menu    MenuCatalog
	kitchen KitchenClient
	logger  *logger.Logger

	// mu serialises read-modify-write of order aggregates and guards the
	// dispatch bookkeeping below. It is never held across a kitchen call.
	mu sync.Mutex
	// dispatching counts kitchen creations in flight per order
	dispatching map[string]int
	// parked holds reports for kitchen orders not yet recorded on an order
	// whose dispatch is in flight. They are replayed once it is recorded.
	parked map[string][]kitchenReport
}

// kitchenReport is one kitchen order's status as seen by the ordering side
type kitchenReport struct {
	kitchenOrderID string
	status         string
}

func NewCoordinator(repo Repository, menu MenuCatalog, kitchen KitchenClient, log *logger.Logger) *Coordinator {
	return &Coordinator{
		repo:        repo,
		menu:        menu,
		kitchen:     kitchen,
		logger:      log,
		dispatching: make(map[string]int),
		parked:      make(map[string][]kitchenReport),
	}
}

// PlaceOrder adds the requested items to the customer's open order, or opens a
// new one, then dispatches the new kitchen items. A failed dispatch is recorded
// on the order and never fails the placement.
func (c *Coordinator) PlaceOrder(ctx context.Context, req *models.PlaceOrderRequest) (*PlaceOrderResult, error) {
	requestID := logger.GenerateRequestID()

	if err := validation.ValidatePlaceOrderRequest(req); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	var kitchenItems []models.OrderItem
	for _, line := range req.Items {
		menuItem, err := c.menu.GetMenuItem(ctx, line.MenuItemID)
		if err != nil {
			return nil, err
		}
		item := models.OrderItem{
			ID:            uuid.NewString(),
			MenuItemID:    menuItem.ID,
			MenuItemName:  menuItem.Name,
			Quantity:      line.Quantity,
			Price:         menuItem.Price,
			Status:        models.ItemPending,
			IsKitchenItem: menuItem.IsKitchenItem(),
		}
		items = append(items, item)
		if item.IsKitchenItem {
			kitchenItems = append(kitchenItems, item)
		}
	}

	order, merged, err := c.mergeOrCreate(ctx, req, items, len(kitchenItems) > 0)
	if err != nil {
		return nil, err
	}

	c.logger.Info("order_placed", "Order placed", requestID, map[string]interface{}{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"merged":       merged,
		"item_count":   len(items),
		"total_amount": order.TotalAmount,
	})

	if len(kitchenItems) == 0 {
		return &PlaceOrderResult{Order: order, Merged: merged}, nil
	}

	kitchenOrderID, kitchenStatus := c.dispatch(ctx, order.ID, kitchenItems, requestID)

	order, err = c.recordDispatch(ctx, order.ID, kitchenItems, kitchenOrderID, kitchenStatus, requestID)
	if err != nil {
		return nil, err
	}

	// The order was cancelled while the kitchen was creating its part.
	if order.Status == models.OrderCancelled && kitchenOrderID != "" {
		order, err = c.cancelKitchenOrders(ctx, order.ID, []string{kitchenOrderID}, requestID)
		if err != nil {
			return nil, err
		}
	}
	return &PlaceOrderResult{Order: order, Merged: merged}, nil
}

func (c *Coordinator) mergeOrCreate(ctx context.Context, req *models.PlaceOrderRequest, items []models.OrderItem, dispatching bool) (*models.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	order, err := c.repo.FindActiveByCustomer(ctx, req.CustomerID)
	merged := err == nil
	switch {
	case merged:
		order.Items = append(order.Items, items...)
		order.Status = models.OrderProcessing
		if req.TableNumber != nil {
			order.TableNumber = req.TableNumber
		}
	case errors.Is(err, ErrOrderNotFound):
		order = &models.Order{
			ID:          uuid.NewString(),
			CustomerID:  req.CustomerID,
			TableNumber: req.TableNumber,
			Status:      models.OrderNew,
			Items:       items,
			CreatedAt:   now,
		}
	default:
		return nil, false, fmt.Errorf("failed to look up active order: %w", err)
	}

	order.RecalculateTotal()
	order.UpdatedAt = now
	if err := c.repo.Save(ctx, order); err != nil {
		return nil, false, fmt.Errorf("failed to save order: %w", err)
	}
	if dispatching {
		c.dispatching[order.ID]++
	}
	return order, merged, nil
}

// dispatch creates the kitchen order and returns its id and status, or the
// failure sentinel when the kitchen could not take it.
func (c *Coordinator) dispatch(ctx context.Context, orderID string, items []models.OrderItem, requestID string) (string, string) {
	fields := map[string]interface{}{
		"order_id":   orderID,
		"item_count": len(items),
	}

	itemsJSON, err := models.KitchenItemsJSON(items)
	if err != nil {
		c.logger.Error("kitchen_notify_failed", "Failed to encode kitchen items", requestID, err, fields)
		return "", models.KitchenNotifyFailed
	}

	resp, err := c.kitchen.CreateKitchenOrder(ctx, orderID, itemsJSON)
	if err == nil && (resp == nil || resp.ID == "") {
		err = fmt.Errorf("%w: empty kitchen order response", ErrKitchenUnavailable)
	}
	if err != nil {
		c.logger.Error("kitchen_notify_failed", "Kitchen order could not be created", requestID, err, fields)
		return "", models.KitchenNotifyFailed
	}

	fields["kitchen_order_id"] = resp.ID
	c.logger.Info("kitchen_order_dispatched", "Kitchen order created", requestID, fields)

	status := normalizeKitchenStatus(resp.Status)
	if status == "" {
		status = string(models.KitchenNew)
	}
	return resp.ID, status
}

// recordDispatch stores the outcome of a kitchen creation on the order, then
// replays the reports that arrived while it was in flight.
func (c *Coordinator) recordDispatch(ctx context.Context, orderID string, items []models.OrderItem, kitchenOrderID, kitchenStatus, requestID string) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dispatching[orderID]--; c.dispatching[orderID] <= 0 {
		delete(c.dispatching, orderID)
	}
	parked := c.parked[orderID]
	delete(c.parked, orderID)

	return c.updateLocked(ctx, orderID, func(o *models.Order) bool {
		if kitchenOrderID != "" {
			sent := make(map[string]bool, len(items))
			for _, item := range items {
				sent[item.ID] = true
			}
			for i := range o.Items {
				if sent[o.Items[i].ID] {
					o.Items[i].KitchenOrderID = kitchenOrderID
				}
			}
		}

		if o.Status != models.OrderCancelled {
			switch {
			case kitchenOrderID == "":
				o.KitchenStatus = models.KitchenNotifyFailed
			case o.KitchenOrderID != kitchenOrderID:
				o.KitchenOrderID = kitchenOrderID
				o.KitchenStatus = kitchenStatus
			case AdvancesKitchenStatus(o.KitchenStatus, kitchenStatus):
				o.KitchenStatus = kitchenStatus
			}
			if hasUndispatchedItems(o) {
				o.KitchenStatus = models.KitchenNotifyFailed
			}
		} else if kitchenOrderID != "" {
			o.KitchenOrderID = kitchenOrderID
		}

		for _, report := range parked {
			c.applyReport(o, report, requestID)
		}
		return true
	})
}

// HandleKitchenCallback applies a ready notification from the kitchen
func (c *Coordinator) HandleKitchenCallback(ctx context.Context, orderID, kitchenOrderID string) (*models.Order, error) {
	return c.ApplyKitchenStatus(ctx, orderID, string(models.KitchenReady), kitchenOrderID)
}

// ApplyKitchenStatus reconciles an order with a status reported by the kitchen.
// Applying the same status twice changes nothing. Only the items sent with the
// reporting kitchen order move, and never backwards. An empty kitchenOrderID
// means the kitchen order on record.
func (c *Coordinator) ApplyKitchenStatus(ctx context.Context, orderID, rawStatus, kitchenOrderID string) (*models.Order, error) {
	requestID := logger.GenerateRequestID()
	report := kitchenReport{kitchenOrderID: kitchenOrderID, status: normalizeKitchenStatus(rawStatus)}

	return c.update(ctx, orderID, func(o *models.Order) bool {
		return c.applyReport(o, report, requestID)
	})
}

// applyReport folds one kitchen report into o and reports whether o changed.
// A kitchen order unknown to o is parked while a dispatch is in flight, adopted
// by the items whose dispatch failed, and ignored otherwise. Callers hold c.mu.
func (c *Coordinator) applyReport(o *models.Order, report kitchenReport, requestID string) bool {
	status := report.status
	if status == "" {
		return false
	}
	kitchenOrderID := report.kitchenOrderID
	if kitchenOrderID == "" {
		kitchenOrderID = o.KitchenOrderID
	}

	fields := map[string]interface{}{
		"order_id":                  o.ID,
		"kitchen_order_id":          kitchenOrderID,
		"recorded_kitchen_order_id": o.KitchenOrderID,
		"status":                    status,
	}

	changed := false
	recorded := kitchenOrderID == o.KitchenOrderID
	pending := c.dispatching[o.ID] > 0
	unknown := !recorded && !sentWith(o, kitchenOrderID)
	if unknown || (pending && kitchenOrderID == "") {
		switch {
		case pending:
			c.parked[o.ID] = append(c.parked[o.ID], kitchenReport{kitchenOrderID: kitchenOrderID, status: status})
			c.logger.Debug("kitchen_status_parked", "Holding status until the kitchen order is recorded", requestID, fields)
			return false
		case kitchenOrderID != "" && hasUndispatchedItems(o):
			for i := range o.Items {
				if o.Items[i].IsKitchenItem && o.Items[i].KitchenOrderID == "" {
					o.Items[i].KitchenOrderID = kitchenOrderID
				}
			}
			o.KitchenOrderID = kitchenOrderID
			recorded, changed = true, true
			c.logger.Info("kitchen_order_adopted", "Undispatched items adopted by a reporting kitchen order", requestID, fields)
		default:
			c.logger.Warn("stale_kitchen_status", "Ignoring status for a kitchen order not on record", requestID, fields)
			return false
		}
	}

	if recorded && !hasUndispatchedItems(o) && AdvancesKitchenStatus(o.KitchenStatus, status) {
		o.KitchenStatus = status
		changed = true
	}

	if o.Status == models.OrderCancelled || o.Status == models.OrderPaid {
		return changed
	}

	itemStatus, mapped := ToItemStatus(status)
	kitchenItems, done, served := 0, 0, 0
	for i := range o.Items {
		item := &o.Items[i]
		if !item.IsKitchenItem {
			continue
		}
		kitchenItems++
		if mapped && kitchenOrderID != "" && item.KitchenOrderID == kitchenOrderID && item.Status.Precedes(itemStatus) {
			item.Status = itemStatus
			changed = true
		}
		if item.Status.IsDone() {
			done++
		}
		if item.Status == models.ItemServed {
			served++
		}
	}

	if mapped && itemStatus.IsDone() && kitchenItems > 0 && done == kitchenItems {
		target := models.OrderReady
		if served == kitchenItems && IsTerminalKitchenStatus(status) {
			target = ToOrderStatusOrDefault(status, o.Status)
		}
		if o.Status.Precedes(target) {
			c.logger.Info("order_status_changed", fmt.Sprintf("Order moved from %s to %s", o.Status, target), requestID, map[string]interface{}{
				"order_id":       o.ID,
				"kitchen_status": status,
			})
			o.Status = target
			changed = true
		}
	}
	return changed
}

// sentWith reports whether any item of o went out with the kitchen order
func sentWith(o *models.Order, kitchenOrderID string) bool {
	if kitchenOrderID == "" {
		return false
	}
	for _, item := range o.Items {
		if item.KitchenOrderID == kitchenOrderID {
			return true
		}
	}
	return false
}

func hasUndispatchedItems(o *models.Order) bool {
	for _, item := range o.Items {
		if item.IsKitchenItem && item.KitchenOrderID == "" {
			return true
		}
	}
	return false
}

// GetOrderDetails returns the order after a best-effort refresh from the kitchen.
// Kitchen failures leave the last known state in place.
func (c *Coordinator) GetOrderDetails(ctx context.Context, orderID string) (*models.Order, error) {
	requestID := logger.GenerateRequestID()

	order, err := c.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !hasKitchenItems(order) {
		return order, nil
	}

	kitchenOrders, err := c.kitchen.GetByOrder(ctx, orderID)
	if err != nil {
		c.logger.Warn("kitchen_sync_failed", "Serving last known kitchen state", requestID, map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return order, nil
	}
	if len(kitchenOrders) == 0 {
		return order, nil
	}

	refreshed, err := c.update(ctx, orderID, func(o *models.Order) bool {
		changed := false
		for _, report := range pullReports(o, kitchenOrders) {
			if c.applyReport(o, report, requestID) {
				changed = true
			}
		}
		return changed
	})
	if err != nil {
		c.logger.Error("kitchen_sync_failed", "Failed to apply kitchen status", requestID, err, map[string]interface{}{
			"order_id": orderID,
		})
		return order, nil
	}
	return refreshed, nil
}

// pullReports turns a kitchen listing into reports for o: every kitchen order o
// already knows, oldest first, then the newest one it does not know.
func pullReports(o *models.Order, list []models.KitchenOrderResponse) []kitchenReport {
	sorted := slices.Clone(list)
	slices.SortStableFunc(sorted, func(a, b models.KitchenOrderResponse) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	var (
		reports []kitchenReport
		newest  *models.KitchenOrderResponse
	)
	for i := range sorted {
		ko := &sorted[i]
		if ko.ID == o.KitchenOrderID || sentWith(o, ko.ID) {
			reports = append(reports, kitchenReport{kitchenOrderID: ko.ID, status: normalizeKitchenStatus(ko.Status)})
			continue
		}
		newest = ko
	}
	if newest != nil {
		reports = append(reports, kitchenReport{kitchenOrderID: newest.ID, status: normalizeKitchenStatus(newest.Status)})
	}
	return reports
}

func hasKitchenItems(order *models.Order) bool {
	for _, item := range order.Items {
		if item.IsKitchenItem {
			return true
		}
	}
	return false
}

// CancelOrder cancels the order and then every kitchen order its items went
// out with. A kitchen failure is recorded on the order and the cancellation stands.
func (c *Coordinator) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	requestID := logger.GenerateRequestID()

	var alreadyCancelled bool
	order, err := c.update(ctx, orderID, func(o *models.Order) bool {
		if o.Status == models.OrderCancelled {
			alreadyCancelled = true
			return false
		}
		o.Status = models.OrderCancelled
		return true
	}, func(o *models.Order) error {
		if o.Status == models.OrderPaid || o.Status == models.OrderCompleted {
			return fmt.Errorf("%w: order is %s", ErrOrderFinished, o.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyCancelled {
		return order, nil
	}

	c.logger.Info("order_cancelled", "Order cancelled", requestID, map[string]interface{}{
		"order_id":         order.ID,
		"kitchen_order_id": order.KitchenOrderID,
	})

	kitchenOrderIDs := kitchenOrdersOf(order)
	if len(kitchenOrderIDs) == 0 {
		return order, nil
	}
	return c.cancelKitchenOrders(ctx, orderID, kitchenOrderIDs, requestID)
}

// cancelKitchenOrders asks the kitchen to drop each kitchen order and records
// CANCELLED, or the failure sentinel if any call failed.
func (c *Coordinator) cancelKitchenOrders(ctx context.Context, orderID string, kitchenOrderIDs []string, requestID string) (*models.Order, error) {
	kitchenStatus := string(models.KitchenCancelled)
	for _, id := range kitchenOrderIDs {
		if err := c.kitchen.CancelKitchenOrder(ctx, id); err != nil {
			c.logger.Error("cancel_notify_failed", "Kitchen order could not be cancelled", requestID, err, map[string]interface{}{
				"order_id":         orderID,
				"kitchen_order_id": id,
			})
			kitchenStatus = models.CancelNotifyFailed
		}
	}

	return c.update(ctx, orderID, func(o *models.Order) bool {
		o.KitchenStatus = kitchenStatus
		return true
	})
}

// kitchenOrdersOf lists the distinct kitchen orders the order's items went out
// with, in item order, plus the recorded one.
func kitchenOrdersOf(o *models.Order) []string {
	var ids []string
	for _, item := range o.Items {
		if item.KitchenOrderID != "" && !slices.Contains(ids, item.KitchenOrderID) {
			ids = append(ids, item.KitchenOrderID)
		}
	}
	if o.KitchenOrderID != "" && !slices.Contains(ids, o.KitchenOrderID) {
		ids = append(ids, o.KitchenOrderID)
	}
	return ids
}

// ForwardKitchenStatus passes an administrative status change to the kitchen
// and reconciles the owning order with the kitchen's answer.
func (c *Coordinator) ForwardKitchenStatus(ctx context.Context, kitchenOrderID, status string) (*ForwardResult, error) {
	requestID := logger.GenerateRequestID()

	resp, err := c.kitchen.UpdateKitchenStatus(ctx, kitchenOrderID, status)
	if err != nil {
		return nil, err
	}
	if resp.Outcome == "not_found" {
		return nil, fmt.Errorf("%w: %s", ErrKitchenOrderNotFound, kitchenOrderID)
	}

	result := &ForwardResult{Outcome: resp.Outcome, KitchenOrder: resp.Order}
	if resp.Order == nil {
		return result, nil
	}

	order, err := c.repo.FindByKitchenOrder(ctx, kitchenOrderID)
	if errors.Is(err, ErrOrderNotFound) {
		c.logger.Warn("order_not_found", "No order references the kitchen order", requestID, map[string]interface{}{
			"kitchen_order_id": kitchenOrderID,
		})
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Order, err = c.ApplyKitchenStatus(ctx, order.ID, resp.Order.Status, kitchenOrderID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// update loads, mutates and saves an order under the write lock. mutate reports
// whether anything changed; checks run first and abort the update on error.
func (c *Coordinator) update(ctx context.Context, orderID string, mutate func(*models.Order) bool, checks ...func(*models.Order) error) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(ctx, orderID, mutate, checks...)
}

func (c *Coordinator) updateLocked(ctx context.Context, orderID string, mutate func(*models.Order) bool, checks ...func(*models.Order) error) (*models.Order, error) {
	order, err := c.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, check := range checks {
		if err := check(order); err != nil {
			return nil, err
		}
	}
	if !mutate(order) {
		return order, nil
	}

	order.UpdatedAt = time.Now().UTC()
	if err := c.repo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	return order, nil
}
