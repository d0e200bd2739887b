package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/deliverly/order-api/internal/domains/orders/domain"
)

// Lookup errors for the external catalog collaborators.
var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrMenuItemNotFound   = errors.New("menu item not found")
)

// Customer is the slice of the customer record the ordering context needs.
type Customer struct {
	ID      string
	Name    string
	Email   string
	Address domain.Address
}

// Restaurant is the slice of the restaurant record the ordering context needs.
type Restaurant struct {
	ID     string
	Name   string
	Active bool
}

// MenuItem is a priced catalog entry; Price is the current menu price that
// gets snapshotted into line items at order time.
type MenuItem struct {
	ID           string
	RestaurantID string
	Name         string
	Price        decimal.Decimal
	Available    bool
}

// CustomerDirectory resolves customers; owned by the excluded CRUD layer.
type CustomerDirectory interface {
	FindByID(ctx context.Context, id string) (*Customer, error)
}

// RestaurantDirectory resolves restaurants; owned by the excluded CRUD layer.
type RestaurantDirectory interface {
	FindByID(ctx context.Context, id string) (*Restaurant, error)
}

// MenuCatalog resolves menu items; owned by the excluded CRUD layer.
type MenuCatalog interface {
	FindItemByID(ctx context.Context, id string) (*MenuItem, error)
}
