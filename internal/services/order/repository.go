package order

import (
	"context"
	"sync"

	"kitchen-sync/internal/models"
)

// Repository stores order aggregates
type Repository interface {
	// Save inserts or replaces the order together with its items.
	Save(ctx context.Context, order *models.Order) error
	// Get returns ErrOrderNotFound for an unknown id.
	Get(ctx context.Context, id string) (*models.Order, error)
	// FindActiveByCustomer returns the customer's newest order that is not cancelled.
	FindActiveByCustomer(ctx context.Context, customerID string) (*models.Order, error)
	// FindByKitchenOrder matches the recorded kitchen order or any item sent with it.
	FindByKitchenOrder(ctx context.Context, kitchenOrderID string) (*models.Order, error)
}

// MemoryRepository keeps orders in process memory
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]*models.Order)}
}

func (r *MemoryRepository) Save(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *MemoryRepository) FindActiveByCustomer(_ context.Context, customerID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.Order
	for _, order := range r.orders {
		if order.CustomerID != customerID || order.Status == models.OrderCancelled {
			continue
		}
		if found == nil || order.CreatedAt.After(found.CreatedAt) {
			found = order
		}
	}
	if found == nil {
		return nil, ErrOrderNotFound
	}
	return found.Clone(), nil
}

func (r *MemoryRepository) FindByKitchenOrder(_ context.Context, kitchenOrderID string) (*models.Order, error) {
	if kitchenOrderID == "" {
		return nil, ErrOrderNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if order.KitchenOrderID == kitchenOrderID {
			return order.Clone(), nil
		}
		for _, item := range order.Items {
			if item.KitchenOrderID == kitchenOrderID {
				return order.Clone(), nil
			}
		}
	}
	return nil, ErrOrderNotFound
}
