package database

// Migration bookkeeping
const (
	CreateMigrationsTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			migration_name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`

	SelectAppliedMigrationsSQL = `SELECT migration_name FROM schema_migrations`

	InsertMigrationSQL = `INSERT INTO schema_migrations (migration_name) VALUES ($1)`
)

// Kitchen order queries
const (
	InsertKitchenOrderSQL = `
		INSERT INTO kitchen_orders (id, source_order_id, items, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	GetKitchenOrderSQL = `
		SELECT id, source_order_id, items, status, created_at, updated_at
		FROM kitchen_orders WHERE id = $1`

	ListKitchenOrdersBySourceSQL = `
		SELECT id, source_order_id, items, status, created_at, updated_at
		FROM kitchen_orders WHERE source_order_id = $1
		ORDER BY created_at DESC`

	// UpdateKitchenStatusSQL only matches while the row is still at the expected status.
	UpdateKitchenStatusSQL = `
		UPDATE kitchen_orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	KitchenOrderExistsSQL = `SELECT EXISTS (SELECT 1 FROM kitchen_orders WHERE id = $1)`

	InsertKitchenStatusLogSQL = `
		INSERT INTO kitchen_order_status_log (kitchen_order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)`

	GetKitchenStatusHistorySQL = `
		SELECT status, changed_by, changed_at, COALESCE(notes, '')
		FROM kitchen_order_status_log
		WHERE kitchen_order_id = $1
		ORDER BY changed_at ASC, id ASC`
)

// Order queries
const (
	UpsertOrderSQL = `
		INSERT INTO orders (id, customer_id, table_number, status, total_amount, kitchen_order_id, kitchen_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			table_number = EXCLUDED.table_number,
			status = EXCLUDED.status,
			total_amount = EXCLUDED.total_amount,
			kitchen_order_id = EXCLUDED.kitchen_order_id,
			kitchen_status = EXCLUDED.kitchen_status,
			updated_at = EXCLUDED.updated_at`

	UpsertOrderItemSQL = `
		INSERT INTO order_items (id, order_id, position, menu_item_id, menu_item_name, quantity, price, status, is_kitchen_item, kitchen_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		ON CONFLICT (id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			status = EXCLUDED.status,
			kitchen_order_id = EXCLUDED.kitchen_order_id`

	GetOrderSQL = `
		SELECT id, customer_id, table_number, status, total_amount,
			   COALESCE(kitchen_order_id, ''), COALESCE(kitchen_status, ''), created_at, updated_at
		FROM orders WHERE id = $1`

	GetOrderItemsSQL = `
		SELECT id, menu_item_id, menu_item_name, quantity, price, status, is_kitchen_item,
			   COALESCE(kitchen_order_id, '')
		FROM order_items WHERE order_id = $1
		ORDER BY position ASC`

	// FindActiveOrderSQL picks the customer's newest order that is not cancelled.
	FindActiveOrderSQL = `
		SELECT id FROM orders
		WHERE customer_id = $1 AND status <> 'CANCELLED'
		ORDER BY created_at DESC
		LIMIT 1`

	// FindOrderByKitchenOrderSQL matches the recorded kitchen order or any item sent with it.
	FindOrderByKitchenOrderSQL = `
		SELECT id FROM orders WHERE kitchen_order_id = $1
		UNION
		SELECT order_id FROM order_items WHERE kitchen_order_id = $1
		LIMIT 1`
)

// Menu queries
const (
	GetMenuItemSQL = `
		SELECT id, name, price, COALESCE(category, '')
		FROM menu_items WHERE id = $1`
)
