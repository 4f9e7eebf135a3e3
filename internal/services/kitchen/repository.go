package kitchen

import (
	"context"
	"sort"
	"sync"
	"time"

	"kitchen-sync/internal/models"
)

// Repository stores kitchen orders and their status history
type Repository interface {
	Create(ctx context.Context, order *models.KitchenOrder, changedBy string) error
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*models.KitchenOrder, error)
	// ListBySourceOrder returns the kitchen orders of a source order, newest first.
	ListBySourceOrder(ctx context.Context, sourceOrderID string) ([]*models.KitchenOrder, error)
	// UpdateStatus moves an order from one status to another. It fails with
	// ErrStatusConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to models.KitchenStatus, changedBy string) (*models.KitchenOrder, error)
	History(ctx context.Context, id string) ([]models.KitchenStatusLogEntry, error)
}

// MemoryRepository keeps kitchen orders in process memory
type MemoryRepository struct {
	mu      sync.RWMutex
	orders  map[string]*models.KitchenOrder
	seq     map[string]int
	next    int
	history map[string][]models.KitchenStatusLogEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:  make(map[string]*models.KitchenOrder),
		seq:     make(map[string]int),
		history: make(map[string][]models.KitchenStatusLogEntry),
	}
}

func cloneKitchenOrder(o *models.KitchenOrder) *models.KitchenOrder {
	c := *o
	c.Items = append([]models.KitchenItem(nil), o.Items...)
	return &c
}

func (r *MemoryRepository) Create(_ context.Context, order *models.KitchenOrder, changedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[order.ID] = cloneKitchenOrder(order)
	r.seq[order.ID] = r.next
	r.next++
	r.history[order.ID] = append(r.history[order.ID], models.KitchenStatusLogEntry{
		Status:    order.Status,
		ChangedBy: changedBy,
		ChangedAt: order.CreatedAt,
		Notes:     "Kitchen order created",
	})
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.KitchenOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneKitchenOrder(order), nil
}

func (r *MemoryRepository) ListBySourceOrder(_ context.Context, sourceOrderID string) ([]*models.KitchenOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.KitchenOrder
	for _, order := range r.orders {
		if order.SourceOrderID == sourceOrderID {
			result = append(result, cloneKitchenOrder(order))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return r.seq[result[i].ID] > r.seq[result[j].ID]
	})
	return result, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, from, to models.KitchenStatus, changedBy string) (*models.KitchenOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if order.Status != from {
		return nil, ErrStatusConflict
	}

	now := time.Now().UTC()
	order.Status = to
	order.UpdatedAt = now
	r.history[id] = append(r.history[id], models.KitchenStatusLogEntry{
		Status:    to,
		ChangedBy: changedBy,
		ChangedAt: now,
		Notes:     statusNote(from, to, changedBy),
	})
	return cloneKitchenOrder(order), nil
}

func (r *MemoryRepository) History(_ context.Context, id string) ([]models.KitchenStatusLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.orders[id]; !ok {
		return nil, ErrNotFound
	}
	return append([]models.KitchenStatusLogEntry(nil), r.history[id]...), nil
}
