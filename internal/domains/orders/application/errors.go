package application

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

// ErrInvalidState signals a business-rule violation: inactive restaurant,
// unavailable menu item, or an order that is not payable.
var ErrInvalidState = errors.New("invalid state")

// ForbiddenError is an authorization denial from the policy gate.
type ForbiddenError struct {
	Action string
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("not authorized to %s: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("not authorized to %s", e.Action)
}

// PaymentDeclinedError carries the provider's decline verdict. Raw is the
// opaque provider payload, surfaced for logging only.
type PaymentDeclinedError struct {
	Message string
	Reason  string
	Raw     json.RawMessage
}

func (e *PaymentDeclinedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("payment declined: %s (%s)", e.Message, e.Reason)
	}
	return fmt.Sprintf("payment declined: %s", e.Message)
}

// IsNotFound reports whether err is any of the lookup misses the use cases
// produce, for order, customer, restaurant, or menu item.
func IsNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound) ||
		errors.Is(err, ports.ErrCustomerNotFound) ||
		errors.Is(err, ports.ErrRestaurantNotFound) ||
		errors.Is(err, ports.ErrMenuItemNotFound)
}
