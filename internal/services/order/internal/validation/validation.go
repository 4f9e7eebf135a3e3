package validation

import (
	"fmt"

	"kitchen-sync/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidatePlaceOrderRequest checks the shape of a placement request. Menu lookups happen later.
func ValidatePlaceOrderRequest(req *models.PlaceOrderRequest) error {
	if req == nil {
		return ValidationError{Field: "body", Message: "request body is required"}
	}

	if err := validateCustomerID(req.CustomerID); err != nil {
		return err
	}

	if err := validateTableNumber(req.TableNumber); err != nil {
		return err
	}

	return validateItems(req.Items)
}

func validateCustomerID(id string) error {
	if id == "" {
		return ValidationError{
			Field:   "customerId",
			Message: "customer id is required",
		}
	}

	if len(id) > 100 {
		return ValidationError{
			Field:   "customerId",
			Message: "customer id must be less than 100 characters",
		}
	}
	return nil
}

func validateTableNumber(table *int) error {
	if table == nil {
		return nil
	}
	if *table < 1 || *table > 100 {
		return ValidationError{
			Field:   "tableNumber",
			Message: "table number must be between 1 and 100",
		}
	}
	return nil
}

func validateItems(items []models.PlaceOrderItem) error {
	if len(items) == 0 {
		return ValidationError{
			Field:   "items",
			Message: "items cannot be empty",
		}
	}

	if len(items) > 20 {
		return ValidationError{
			Field:   "items",
			Message: "a maximum of 20 items is allowed",
		}
	}

	for i, item := range items {
		if err := validateItem(item, i); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(item models.PlaceOrderItem, index int) error {
	if item.MenuItemID == "" {
		return ValidationError{
			Field:   fmt.Sprintf("items[%d].menuItemId", index),
			Message: "menu item id is required",
		}
	}

	if item.Quantity <= 0 {
		return ValidationError{
			Field:   fmt.Sprintf("items[%d].quantity", index),
			Message: "item quantity must be greater than 0",
		}
	}

	if item.Quantity > 10 {
		return ValidationError{
			Field:   fmt.Sprintf("items[%d].quantity", index),
			Message: "item quantity must be less than or equal to 10",
		}
	}
	return nil
}
