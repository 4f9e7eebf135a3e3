package order

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrMenuItemNotFound = errors.New("menu item not found")
	ErrOrderFinished    = errors.New("order can no longer be cancelled")

	// Kitchen client errors
	ErrKitchenUnavailable   = errors.New("kitchen service unavailable")
	ErrKitchenOrderNotFound = errors.New("kitchen order not found")
	ErrKitchenRejected      = errors.New("kitchen service rejected the request")
)
