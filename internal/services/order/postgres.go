package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kitchen-sync/internal/database"
	"kitchen-sync/internal/models"
)

// PostgresRepository stores orders and their items in PostgreSQL
type PostgresRepository struct {
	db *database.DB
}

func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, database.UpsertOrderSQL,
			order.ID, order.CustomerID, order.TableNumber, order.Status, order.TotalAmount,
			order.KitchenOrderID, order.KitchenStatus, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}

		for i, item := range order.Items {
			_, err := tx.Exec(ctx, database.UpsertOrderItemSQL,
				item.ID, order.ID, i, item.MenuItemID, item.MenuItemName, item.Quantity, item.Price,
				item.Status, item.IsKitchenItem, item.KitchenOrderID)
			if err != nil {
				return fmt.Errorf("failed to save order item %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.QueryRow(ctx, database.GetOrderSQL, id).Scan(
		&order.ID, &order.CustomerID, &order.TableNumber, &order.Status, &order.TotalAmount,
		&order.KitchenOrderID, &order.KitchenStatus, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	rows, err := r.db.Query(ctx, database.GetOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	order.Items = []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.MenuItemID, &item.MenuItemName, &item.Quantity,
			&item.Price, &item.Status, &item.IsKitchenItem, &item.KitchenOrderID); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order items: %w", err)
	}
	return &order, nil
}

func (r *PostgresRepository) FindActiveByCustomer(ctx context.Context, customerID string) (*models.Order, error) {
	return r.findOne(ctx, database.FindActiveOrderSQL, customerID)
}

func (r *PostgresRepository) FindByKitchenOrder(ctx context.Context, kitchenOrderID string) (*models.Order, error) {
	return r.findOne(ctx, database.FindOrderByKitchenOrderSQL, kitchenOrderID)
}

func (r *PostgresRepository) findOne(ctx context.Context, query, arg string) (*models.Order, error) {
	var id string
	err := r.db.QueryRow(ctx, query, arg).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return r.Get(ctx, id)
}

// PostgresMenu reads the menu_items table
type PostgresMenu struct {
	db *database.DB
}

func NewPostgresMenu(db *database.DB) *PostgresMenu {
	return &PostgresMenu{db: db}
}

func (m *PostgresMenu) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := m.db.QueryRow(ctx, database.GetMenuItemSQL, id).Scan(&item.ID, &item.Name, &item.Price, &item.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMenuItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}
	return &item, nil
}
