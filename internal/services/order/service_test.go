package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/models"
	"kitchen-sync/internal/services/order/internal/validation"
)

// fakeKitchen records calls and answers from canned values
type fakeKitchen struct {
	mu sync.Mutex

	created   []models.CreateKitchenOrderRequest
	cancelled []string
	nextID    int

	createErr    error
	createResp   *models.KitchenOrderResponse
	emptyCreate  bool
	listErr      error
	list         []models.KitchenOrderResponse
	cancelErr    error
	updateResp   *models.KitchenStatusUpdateResponse
	updateErr    error
	updateCalled []string

	// onCreate runs after a kitchen order is created and before the response
	// reaches the caller, like a kitchen that finishes before the reply lands.
	onCreate func(sourceOrderID, kitchenOrderID string)
}

func (f *fakeKitchen) CreateKitchenOrder(_ context.Context, sourceOrderID, itemsJSON string) (*models.KitchenOrderResponse, error) {
	resp, err := f.create(sourceOrderID, itemsJSON)
	if err == nil && resp != nil && f.onCreate != nil {
		f.onCreate(sourceOrderID, resp.ID)
	}
	return resp, err
}

func (f *fakeKitchen) create(sourceOrderID, itemsJSON string) (*models.KitchenOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created = append(f.created, models.CreateKitchenOrderRequest{OrderID: sourceOrderID, ItemsJSON: itemsJSON})
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.emptyCreate {
		return nil, nil
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	f.nextID++
	return &models.KitchenOrderResponse{ID: fmt.Sprintf("k-%d", f.nextID), OrderID: sourceOrderID, Status: "NEW"}, nil
}

func (f *fakeKitchen) GetByOrder(context.Context, string) ([]models.KitchenOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, f.listErr
}

func (f *fakeKitchen) CancelKitchenOrder(_ context.Context, kitchenOrderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, kitchenOrderID)
	return f.cancelErr
}

func (f *fakeKitchen) UpdateKitchenStatus(_ context.Context, kitchenOrderID, status string) (*models.KitchenStatusUpdateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalled = append(f.updateCalled, kitchenOrderID+"="+status)
	return f.updateResp, f.updateErr
}

var testMenu = NewMemoryMenu(
	models.MenuItem{ID: "pizza", Name: "Margherita", Price: 12.5, Category: models.CategoryKitchen},
	models.MenuItem{ID: "pasta", Name: "Carbonara", Price: 11},
	models.MenuItem{ID: "cola", Name: "Cola", Price: 2.25, Category: models.CategoryBar},
)

func newCoordinator() (*Coordinator, *MemoryRepository, *fakeKitchen) {
	repo := NewMemoryRepository()
	kitchen := &fakeKitchen{}
	return NewCoordinator(repo, testMenu, kitchen, logger.Discard()), repo, kitchen
}

func placeRequest(customer string, items ...string) *models.PlaceOrderRequest {
	req := &models.PlaceOrderRequest{CustomerID: customer}
	for _, id := range items {
		req.Items = append(req.Items, models.PlaceOrderItem{MenuItemID: id, Quantity: 1})
	}
	return req
}

func TestCoordinator_PlaceOrder_New(t *testing.T) {
	c, _, kitchen := newCoordinator()

	result, err := c.PlaceOrder(context.Background(), placeRequest("alice", "pizza", "cola"))
	require.NoError(t, err)

	order := result.Order
	assert.False(t, result.Merged)
	assert.Equal(t, models.OrderNew, order.Status)
	assert.Equal(t, 14.75, order.TotalAmount)
	assert.Equal(t, "k-1", order.KitchenOrderID)
	assert.Equal(t, "NEW", order.KitchenStatus)
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].IsKitchenItem)
	assert.False(t, order.Items[1].IsKitchenItem)

	require.Len(t, kitchen.created, 1)
	assert.Equal(t, order.ID, kitchen.created[0].OrderID)
	assert.Contains(t, kitchen.created[0].ItemsJSON, "Margherita")
	assert.NotContains(t, kitchen.created[0].ItemsJSON, "Cola")
}

func TestCoordinator_PlaceOrder_Merge(t *testing.T) {
	c, repo, kitchen := newCoordinator()
	ctx := context.Background()

	first, err := c.PlaceOrder(ctx, placeRequest("alice", "pizza"))
	require.NoError(t, err)
	second, err := c.PlaceOrder(ctx, placeRequest("alice", "pasta"))
	require.NoError(t, err)
	third, err := c.PlaceOrder(ctx, placeRequest("alice", "cola"))
	require.NoError(t, err)

	assert.True(t, second.Merged)
	assert.True(t, third.Merged)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Order.ID, third.Order.ID)

	stored, err := repo.Get(ctx, first.Order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 3)
	assert.Equal(t, models.OrderProcessing, stored.Status)
	assert.Equal(t, 25.75, stored.TotalAmount)
	assert.Equal(t, "k-2", stored.KitchenOrderID)

	require.Len(t, kitchen.created, 2, "bar-only order must not reach the kitchen")
	assert.Contains(t, kitchen.created[1].ItemsJSON, "Carbonara")
	assert.NotContains(t, kitchen.created[1].ItemsJSON, "Margherita")
}

func TestCoordinator_PlaceOrder_NoMergeAfterCancel(t *testing.T) {
	c, _, _ := newCoordinator()
	ctx := context.Background()

	first, err := c.PlaceOrder(ctx, placeRequest("alice", "pizza"))
	require.NoError(t, err)
	_, err = c.CancelOrder(ctx, first.Order.ID)
	require.NoError(t, err)

	second, err := c.PlaceOrder(ctx, placeRequest("alice", "pizza"))
	require.NoError(t, err)
	assert.False(t, second.Merged)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
}

func TestCoordinator_PlaceOrder_MergesIntoPaidOrder(t *testing.T) {
	c, repo, _ := newCoordinator()
	ctx := context.Background()

	first, err := c.PlaceOrder(ctx, placeRequest("alice", "pizza"))
	require.NoError(t, err)
	stored, err := repo.Get(ctx, first.Order.ID)
	require.NoError(t, err)
	stored.Status = models.OrderPaid
	require.NoError(t, repo.Save(ctx, stored))

	second, err := c.PlaceOrder(ctx, placeRequest("alice", "cola"))
	require.NoError(t, err)
	assert.True(t, second.Merged)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, models.OrderProcessing, second.Order.Status)
	assert.Len(t, second.Order.Items, 2)
}

func TestCoordinator_PlaceOrder_KitchenFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(k *fakeKitchen)
	}{
		{"kitchen unreachable", func(k *fakeKitchen) { k.createErr = fmt.Errorf("%w: connection refused", ErrKitchenUnavailable) }},
		{"kitchen rejects", func(k *fakeKitchen) { k.createErr = ErrKitchenRejected }},
		{"empty response", func(k *fakeKitchen) { k.emptyCreate = true }},
		{"response without id", func(k *fakeKitchen) { k.createResp = &models.KitchenOrderResponse{Status: "NEW"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, repo, kitchen := newCoordinator()
			tt.setup(kitchen)

			result, err := c.PlaceOrder(context.Background(), placeRequest("bob", "pizza"))
			require.NoError(t, err)
			assert.Equal(t, models.KitchenNotifyFailed, result.Order.KitchenStatus)
			assert.Empty(t, result.Order.KitchenOrderID)

			stored, err := repo.Get(context.Background(), result.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, models.KitchenNotifyFailed, stored.KitchenStatus)
			assert.Equal(t, models.OrderNew, stored.Status)
		})
	}
}

func TestCoordinator_PlaceOrder_BarOnly(t *testing.T) {
	c, _, kitchen := newCoordinator()

	result, err := c.PlaceOrder(context.Background(), placeRequest("carol", "cola"))
	require.NoError(t, err)
	assert.Empty(t, kitchen.created)
	assert.Empty(t, result.Order.KitchenStatus)
	assert.Empty(t, result.Order.KitchenOrderID)
}

func TestCoordinator_PlaceOrder_Rejected(t *testing.T) {
	c, _, kitchen := newCoordinator()

	_, err := c.PlaceOrder(context.Background(), placeRequest("carol", "unicorn"))
	assert.ErrorIs(t, err, ErrMenuItemNotFound)

	_, err = c.PlaceOrder(context.Background(), placeRequest("", "pizza"))
	var vErr validation.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "customerId", vErr.Field)

	assert.Empty(t, kitchen.created)
}

func TestCoordinator_ApplyKitchenStatus(t *testing.T) {
	tests := []struct {
		name          string
		items         []string
		statuses      []string
		wantOrder     models.OrderStatus
		wantKitchen   string
		wantItemState []models.ItemStatus
	}{
		{
			name:          "preparing",
			items:         []string{"pizza", "cola"},
			statuses:      []string{"PREPARING"},
			wantOrder:     models.OrderNew,
			wantKitchen:   "PREPARING",
			wantItemState: []models.ItemStatus{models.ItemPreparing, models.ItemPending},
		},
		{
			name:          "ready leaves bar items alone",
			items:         []string{"pizza", "pasta", "cola"},
			statuses:      []string{"ready"},
			wantOrder:     models.OrderReady,
			wantKitchen:   "READY",
			wantItemState: []models.ItemStatus{models.ItemReady, models.ItemReady, models.ItemPending},
		},
		{
			name:          "served completes the order",
			items:         []string{"pizza", "cola"},
			statuses:      []string{"READY", "SERVED"},
			wantOrder:     models.OrderCompleted,
			wantKitchen:   "SERVED",
			wantItemState: []models.ItemStatus{models.ItemServed, models.ItemPending},
		},
		{
			name:          "items and kitchen status never regress",
			items:         []string{"pizza"},
			statuses:      []string{"READY", "PREPARING"},
			wantOrder:     models.OrderReady,
			wantKitchen:   "READY",
			wantItemState: []models.ItemStatus{models.ItemReady},
		},
		{
			name:          "cancelled changes no items",
			items:         []string{"pizza"},
			statuses:      []string{"PREPARING", "CANCELED"},
			wantOrder:     models.OrderNew,
			wantKitchen:   "CANCELLED",
			wantItemState: []models.ItemStatus{models.ItemPreparing},
		},
		{
			name:          "unknown status only records kitchen status",
			items:         []string{"pizza"},
			statuses:      []string{"BAKING"},
			wantOrder:     models.OrderNew,
			wantKitchen:   "BAKING",
			wantItemState: []models.ItemStatus{models.ItemPending},
		},
		{
			name:          "bar only order never advances",
			items:         []string{"cola"},
			statuses:      []string{"SERVED"},
			wantOrder:     models.OrderNew,
			wantKitchen:   "SERVED",
			wantItemState: []models.ItemStatus{models.ItemPending},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newCoordinator()
			ctx := context.Background()
			placed, err := c.PlaceOrder(ctx, placeRequest("dave", tt.items...))
			require.NoError(t, err)

			var order *models.Order
			for _, status := range tt.statuses {
				order, err = c.ApplyKitchenStatus(ctx, placed.Order.ID, status, placed.Order.KitchenOrderID)
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantOrder, order.Status)
			assert.Equal(t, tt.wantKitchen, order.KitchenStatus)
			require.Len(t, order.Items, len(tt.wantItemState))
			for i, want := range tt.wantItemState {
				assert.Equal(t, want, order.Items[i].Status, "item %d", i)
			}
		})
	}
}

func TestCoordinator_ApplyKitchenStatus_Idempotent(t *testing.T) {
	c, repo, _ := newCoordinator()
	ctx := context.Background()
	placed, err := c.PlaceOrder(ctx, placeRequest("erin", "pizza"))
	require.NoError(t, err)

	first, err := c.HandleKitchenCallback(ctx, placed.Order.ID, placed.Order.KitchenOrderID)
	require.NoError(t, err)
	second, err := c.HandleKitchenCallback(ctx, placed.Order.ID, placed.Order.KitchenOrderID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderReady, first.Status)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt, "second callback must not write")

	stored, err := repo.Get(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, stored.UpdatedAt)
}

func TestCoordinator_StaleCallbackIgnored(t *testing.T) {
	c, _, _ := newCoordinator()
	ctx := context.Background()
	placed, err := c.PlaceOrder(ctx, placeRequest("frank", "pizza"))
	require.NoError(t, err)

	order, err := c.HandleKitchenCallback(ctx, placed.Order.ID, "some-other-kitchen-order")
	require.NoError(t, err)
	assert.Equal(t, models.OrderNew, order.Status)
	assert.Equal(t, "NEW", order.KitchenStatus)
	assert.Equal(t, models.ItemPending, order.Items[0].Status)
}

func TestCoordinator_CallbackAdoptsKitchenOrder(t *testing.T) {
	c, _, kitchen := newCoordinator()
	kitchen.createErr = ErrKitchenUnavailable
	ctx := context.Background()
	placed, err := c.PlaceOrder(ctx, placeRequest("gina", "pizza"))
	require.NoError(t, err)
	require.Empty(t, placed.Order.KitchenOrderID)

	order, err := c.HandleKitchenCallback(ctx, placed.Order.ID, "k-late")
	require.NoError(t, err)
	assert.Equal(t, "k-late", order.KitchenOrderID)
	assert.Equal(t, models.OrderReady, order.Status)
}

func TestCoordinator_MergeDispatchFailure(t *testing.T) {
	c, _, kitchen := newCoordinator()
	ctx := context.Background()

	first, err := c.PlaceOrder(ctx, placeRequest("olga", "pizza"))
	require.NoError(t, err)
	kitchen.createErr = ErrKitchenUnavailable
	merged, err := c.PlaceOrder(ctx, placeRequest("olga", "pasta"))
	require.NoError(t, err)
	assert.Equal(t, models.KitchenNotifyFailed, merged.Order.KitchenStatus)
	assert.Equal(t, "k-1", merged.Order.KitchenOrderID)
	assert.Equal(t, "k-1", merged.Order.Items[0].KitchenOrderID)
	assert.Empty(t, merged.Order.Items[1].KitchenOrderID)

	// k-1 only holds the pizza
	order, err := c.HandleKitchenCallback(ctx, first.Order.ID, "k-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, order.Status)
	assert.Equal(t, models.KitchenNotifyFailed, order.KitchenStatus)
	assert.Equal(t, models.ItemReady, order.Items[0].Status)
	assert.Equal(t, models.ItemPending, order.Items[1].Status)

	// a kitchen order created despite the failed reply picks up the pasta
	order, err = c.HandleKitchenCallback(ctx, first.Order.ID, "k-late")
	require.NoError(t, err)
	assert.Equal(t, "k-late", order.KitchenOrderID)
	assert.Equal(t, "k-late", order.Items[1].KitchenOrderID)
	assert.Equal(t, "READY", order.KitchenStatus)
	assert.Equal(t, models.ItemReady, order.Items[1].Status)
	assert.Equal(t, models.OrderReady, order.Status)
}

func TestCoordinator_CallbackBeforeDispatchRecorded(t *testing.T) {
	c, repo, kitchen := newCoordinator()
	ctx := context.Background()
	kitchen.onCreate = func(orderID, kitchenOrderID string) {
		_, err := c.HandleKitchenCallback(ctx, orderID, kitchenOrderID)
		require.NoError(t, err)
	}

	first, err := c.PlaceOrder(ctx, placeRequest("paul", "pizza"))
	require.NoError(t, err)
	assert.Equal(t, "k-1", first.Order.KitchenOrderID)
	assert.Equal(t, "READY", first.Order.KitchenStatus)
	assert.Equal(t, models.ItemReady, first.Order.Items[0].Status)
	assert.Equal(t, models.OrderReady, first.Order.Status)

	second, err := c.PlaceOrder(ctx, placeRequest("paul", "pasta"))
	require.NoError(t, err)
	require.True(t, second.Merged)

	stored, err := repo.Get(ctx, first.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "k-2", stored.KitchenOrderID)
	assert.Equal(t, "READY", stored.KitchenStatus)
	assert.Equal(t, models.ItemReady, stored.Items[0].Status)
	assert.Equal(t, models.ItemReady, stored.Items[1].Status)
	assert.Equal(t, models.OrderReady, stored.Status)
}

func TestCoordinator_CancelledWhileDispatching(t *testing.T) {
	c, _, kitchen := newCoordinator()
	ctx := context.Background()
	kitchen.onCreate = func(orderID, _ string) {
		_, err := c.CancelOrder(ctx, orderID)
		require.NoError(t, err)
	}

	result, err := c.PlaceOrder(ctx, placeRequest("quinn", "pizza"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, result.Order.Status)
	assert.Equal(t, "CANCELLED", result.Order.KitchenStatus)
	assert.Equal(t, []string{"k-1"}, kitchen.cancelled)
}

func TestCoordinator_HandleKitchenCallback_UnknownOrder(t *testing.T) {
	c, _, _ := newCoordinator()
	_, err := c.HandleKitchenCallback(context.Background(), "missing", "k-1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCoordinator_GetOrderDetails(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name        string
		list        []models.KitchenOrderResponse
		listErr     error
		wantKitchen string
		wantOrder   models.OrderStatus
	}{
		{
			name:        "kitchen unavailable falls back",
			listErr:     ErrKitchenUnavailable,
			wantKitchen: "NEW",
			wantOrder:   models.OrderNew,
		},
		{
			name:        "no kitchen orders",
			wantKitchen: "NEW",
			wantOrder:   models.OrderNew,
		},
		{
			name: "recorded kitchen order wins",
			list: []models.KitchenOrderResponse{
				{ID: "k-other", Status: "PREPARING", CreatedAt: now},
				{ID: "k-1", Status: "READY", CreatedAt: now.Add(-time.Minute)},
			},
			wantKitchen: "READY",
			wantOrder:   models.OrderReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, kitchen := newCoordinator()
			ctx := context.Background()
			placed, err := c.PlaceOrder(ctx, placeRequest("hank", "pizza"))
			require.NoError(t, err)

			kitchen.list = tt.list
			kitchen.listErr = tt.listErr

			order, err := c.GetOrderDetails(ctx, placed.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKitchen, order.KitchenStatus)
			assert.Equal(t, tt.wantOrder, order.Status)
		})
	}
}

func TestCoordinator_GetOrderDetails_NewestWhenNoneRecorded(t *testing.T) {
	c, _, kitchen := newCoordinator()
	kitchen.createErr = ErrKitchenUnavailable
	ctx := context.Background()
	placed, err := c.PlaceOrder(ctx, placeRequest("ivy", "pizza"))
	require.NoError(t, err)

	now := time.Now().UTC()
	kitchen.createErr = nil
	kitchen.list = []models.KitchenOrderResponse{
		{ID: "k-old", Status: "CANCELLED", CreatedAt: now.Add(-time.Hour)},
		{ID: "k-new", Status: "PREPARING", CreatedAt: now},
	}

	order, err := c.GetOrderDetails(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "k-new", order.KitchenOrderID)
	assert.Equal(t, "PREPARING", order.KitchenStatus)
	assert.Equal(t, models.ItemPreparing, order.Items[0].Status)
}

func TestCoordinator_GetOrderDetails_EachKitchenOrder(t *testing.T) {
	c, _, kitchen := newCoordinator()
	ctx := context.Background()
	first, err := c.PlaceOrder(ctx, placeRequest("rosa", "pizza", "cola"))
	require.NoError(t, err)
	_, err = c.PlaceOrder(ctx, placeRequest("rosa", "pasta"))
	require.NoError(t, err)

	now := time.Now().UTC()
	kitchen.list = []models.KitchenOrderResponse{
		{ID: "k-2", Status: "READY", CreatedAt: now},
		{ID: "k-1", Status: "SERVED", CreatedAt: now.Add(-time.Minute)},
	}

	order, err := c.GetOrderDetails(ctx, first.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "k-2", order.KitchenOrderID)
	assert.Equal(t, "READY", order.KitchenStatus)
	assert.Equal(t, models.ItemServed, order.Items[0].Status)
	assert.Equal(t, models.ItemPending, order.Items[1].Status, "bar item")
	assert.Equal(t, models.ItemReady, order.Items[2].Status)
	assert.Equal(t, models.OrderReady, order.Status)
}

func TestCoordinator_GetOrderDetails_NotFound(t *testing.T) {
	c, _, _ := newCoordinator()
	_, err := c.GetOrderDetails(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCoordinator_CancelOrder(t *testing.T) {
	c, _, kitchen := newCoordinator()
	ctx := context.Background()
	placed, err := c.PlaceOrder(ctx, placeRequest("jack", "pizza"))
	require.NoError(t, err)

	order, err := c.CancelOrder(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, order.Status)
	assert.Equal(t, "CANCELLED", order.KitchenStatus)
	assert.Equal(t, []string{"k-1"}, kitchen.cancelled)

	again, err := c.CancelOrder(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, again.Status)
	assert.Len(t, kitchen.cancelled, 1, "repeat cancel must not reach the kitchen")
}

func TestCoordinator_CancelOrder_EveryKitchenOrder(t *testing.T) {
	c, _, kitchen := newCoordinator()
	ctx := context.Background()
	first, err := c.PlaceOrder(ctx, placeRequest("sam", "pizza"))
	require.NoError(t, err)
	_, err = c.PlaceOrder(ctx, placeRequest("sam", "pasta"))
	require.NoError(t, err)

	order, err := c.CancelOrder(ctx, first.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", order.KitchenStatus)
	assert.Equal(t, []string{"k-1", "k-2"}, kitchen.cancelled)
}

func TestCoordinator_CancelOrder_KitchenFailure(t *testing.T) {
	c, repo, kitchen := newCoordinator()
	ctx := context.Background()
	placed, err := c.PlaceOrder(ctx, placeRequest("kate", "pizza"))
	require.NoError(t, err)

	kitchen.cancelErr = ErrKitchenUnavailable
	order, err := c.CancelOrder(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, order.Status)
	assert.Equal(t, models.CancelNotifyFailed, order.KitchenStatus)

	stored, err := repo.Get(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CancelNotifyFailed, stored.KitchenStatus)
}

func TestCoordinator_CancelOrder_Finished(t *testing.T) {
	c, _, kitchen := newCoordinator()
	ctx := context.Background()
	placed, err := c.PlaceOrder(ctx, placeRequest("liam", "pizza"))
	require.NoError(t, err)
	_, err = c.ApplyKitchenStatus(ctx, placed.Order.ID, "COMPLETED", "k-1")
	require.NoError(t, err)

	_, err = c.CancelOrder(ctx, placed.Order.ID)
	assert.ErrorIs(t, err, ErrOrderFinished)
	assert.Empty(t, kitchen.cancelled)

	_, err = c.CancelOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCoordinator_ForwardKitchenStatus(t *testing.T) {
	c, _, kitchen := newCoordinator()
	ctx := context.Background()
	placed, err := c.PlaceOrder(ctx, placeRequest("mia", "pizza"))
	require.NoError(t, err)

	kitchen.updateResp = &models.KitchenStatusUpdateResponse{
		Outcome: "updated",
		Order:   &models.KitchenOrderResponse{ID: "k-1", OrderID: placed.Order.ID, Status: "PREPARING"},
	}

	result, err := c.ForwardKitchenStatus(ctx, "k-1", "PREPARING")
	require.NoError(t, err)
	assert.Equal(t, "updated", result.Outcome)
	require.NotNil(t, result.Order)
	assert.Equal(t, "PREPARING", result.Order.KitchenStatus)
	assert.Equal(t, models.ItemPreparing, result.Order.Items[0].Status)
	assert.Equal(t, []string{"k-1=PREPARING"}, kitchen.updateCalled)
}

func TestCoordinator_ForwardKitchenStatus_EarlierKitchenOrder(t *testing.T) {
	c, _, kitchen := newCoordinator()
	ctx := context.Background()
	first, err := c.PlaceOrder(ctx, placeRequest("tara", "pizza"))
	require.NoError(t, err)
	_, err = c.PlaceOrder(ctx, placeRequest("tara", "pasta"))
	require.NoError(t, err)

	kitchen.updateResp = &models.KitchenStatusUpdateResponse{
		Outcome: "updated",
		Order:   &models.KitchenOrderResponse{ID: "k-1", OrderID: first.Order.ID, Status: "READY"},
	}
	result, err := c.ForwardKitchenStatus(ctx, "k-1", "READY")
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Equal(t, "k-2", result.Order.KitchenOrderID)
	assert.Equal(t, "NEW", result.Order.KitchenStatus)
	assert.Equal(t, models.ItemReady, result.Order.Items[0].Status)
	assert.Equal(t, models.ItemPending, result.Order.Items[1].Status)
	assert.Equal(t, models.OrderProcessing, result.Order.Status)
}

func TestCoordinator_ForwardKitchenStatus_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    *models.KitchenStatusUpdateResponse
		err     error
		wantErr error
	}{
		{"kitchen rejects", nil, ErrKitchenRejected, ErrKitchenRejected},
		{"kitchen down", nil, ErrKitchenUnavailable, ErrKitchenUnavailable},
		{"unknown kitchen order", &models.KitchenStatusUpdateResponse{Outcome: "not_found"}, nil, ErrKitchenOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, kitchen := newCoordinator()
			kitchen.updateResp = tt.resp
			kitchen.updateErr = tt.err

			_, err := c.ForwardKitchenStatus(context.Background(), "k-9", "READY")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCoordinator_ForwardKitchenStatus_UnknownOrder(t *testing.T) {
	c, _, kitchen := newCoordinator()
	kitchen.updateResp = &models.KitchenStatusUpdateResponse{
		Outcome: "updated",
		Order:   &models.KitchenOrderResponse{ID: "k-orphan", Status: "READY"},
	}

	result, err := c.ForwardKitchenStatus(context.Background(), "k-orphan", "READY")
	require.NoError(t, err)
	assert.Nil(t, result.Order)
	assert.Equal(t, "READY", result.KitchenOrder.Status)
}
