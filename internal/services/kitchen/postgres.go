package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kitchen-sync/internal/database"
	"kitchen-sync/internal/models"
)

// PostgresRepository stores kitchen orders in PostgreSQL
type PostgresRepository struct {
	db *database.DB
}

func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, order *models.KitchenOrder, changedBy string) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, database.InsertKitchenOrderSQL,
			order.ID, order.SourceOrderID, string(items), order.Status, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert kitchen order: %w", err)
		}

		_, err = tx.Exec(ctx, database.InsertKitchenStatusLogSQL, order.ID, order.Status, changedBy, "Kitchen order created")
		if err != nil {
			return fmt.Errorf("failed to insert status log: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.KitchenOrder, error) {
	order, err := scanKitchenOrder(r.db.QueryRow(ctx, database.GetKitchenOrderSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kitchen order: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) ListBySourceOrder(ctx context.Context, sourceOrderID string) ([]*models.KitchenOrder, error) {
	rows, err := r.db.Query(ctx, database.ListKitchenOrdersBySourceSQL, sourceOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list kitchen orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.KitchenOrder
	for rows.Next() {
		order, err := scanKitchenOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kitchen order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.KitchenStatus, changedBy string) (*models.KitchenOrder, error) {
	var updated *models.KitchenOrder

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, database.UpdateKitchenStatusSQL, to, id, from)
		if err != nil {
			return fmt.Errorf("failed to update kitchen order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, database.KitchenOrderExistsSQL, id).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check kitchen order: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrStatusConflict
		}

		_, err = tx.Exec(ctx, database.InsertKitchenStatusLogSQL, id, to, changedBy, statusNote(from, to, changedBy))
		if err != nil {
			return fmt.Errorf("failed to insert status log: %w", err)
		}

		updated, err = scanKitchenOrder(tx.QueryRow(ctx, database.GetKitchenOrderSQL, id))
		if err != nil {
			return fmt.Errorf("failed to reload kitchen order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PostgresRepository) History(ctx context.Context, id string) ([]models.KitchenStatusLogEntry, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, database.GetKitchenStatusHistorySQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var history []models.KitchenStatusLogEntry
	for rows.Next() {
		var entry models.KitchenStatusLogEntry
		if err := rows.Scan(&entry.Status, &entry.ChangedBy, &entry.ChangedAt, &entry.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

func scanKitchenOrder(row pgx.Row) (*models.KitchenOrder, error) {
	var (
		order models.KitchenOrder
		items []byte
	)
	if err := row.Scan(&order.ID, &order.SourceOrderID, &items, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return &order, nil
}

func statusNote(from, to models.KitchenStatus, changedBy string) string {
	return fmt.Sprintf("Status changed from %s to %s by %s", from, to, changedBy)
}
