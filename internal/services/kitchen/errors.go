package kitchen

import (
	"errors"
	"fmt"

	"kitchen-sync/internal/models"
)

var (
	ErrNotFound          = errors.New("kitchen order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyTerminal   = errors.New("kitchen order already finished")
	// ErrStatusConflict means the stored status changed between read and write.
	ErrStatusConflict = errors.New("kitchen order status changed concurrently")
	ErrInvalidRequest = errors.New("invalid kitchen order request")
)

// TransitionError describes a rejected status change. It matches ErrInvalidTransition.
type TransitionError struct {
	From models.KitchenStatus
	To   models.KitchenStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
