package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/deliverly/order-api/internal/domains/orders/domain"
	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var (
	_ ports.CustomerDirectory   = (*CustomerDirectory)(nil)
	_ ports.RestaurantDirectory = (*RestaurantDirectory)(nil)
	_ ports.MenuCatalog         = (*MenuCatalog)(nil)
)

// CustomerDirectory is an in-memory customer lookup for development and tests.
type CustomerDirectory struct {
	mu        sync.RWMutex
	customers map[string]ports.Customer
}

func NewCustomerDirectory() *CustomerDirectory {
	return &CustomerDirectory{customers: map[string]ports.Customer{}}
}

// Put registers or replaces a customer record.
func (d *CustomerDirectory) Put(customer ports.Customer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customers[customer.ID] = customer
}

func (d *CustomerDirectory) FindByID(_ context.Context, id string) (*ports.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	customer, ok := d.customers[id]
	if !ok {
		return nil, ports.ErrCustomerNotFound
	}
	copy := customer
	return &copy, nil
}

// RestaurantDirectory is an in-memory restaurant lookup.
type RestaurantDirectory struct {
	mu          sync.RWMutex
	restaurants map[string]ports.Restaurant
}

func NewRestaurantDirectory() *RestaurantDirectory {
	return &RestaurantDirectory{restaurants: map[string]ports.Restaurant{}}
}

func (d *RestaurantDirectory) Put(restaurant ports.Restaurant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restaurants[restaurant.ID] = restaurant
}

func (d *RestaurantDirectory) FindByID(_ context.Context, id string) (*ports.Restaurant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	restaurant, ok := d.restaurants[id]
	if !ok {
		return nil, ports.ErrRestaurantNotFound
	}
	copy := restaurant
	return &copy, nil
}

// MenuCatalog is an in-memory menu-item lookup.
type MenuCatalog struct {
	mu    sync.RWMutex
	items map[string]ports.MenuItem
}

func NewMenuCatalog() *MenuCatalog {
	return &MenuCatalog{items: map[string]ports.MenuItem{}}
}

func (c *MenuCatalog) Put(item ports.MenuItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
}

func (c *MenuCatalog) FindItemByID(_ context.Context, id string) (*ports.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok {
		return nil, ports.ErrMenuItemNotFound
	}
	copy := item
	return &copy, nil
}

// NewDemoCatalog builds directories pre-seeded with a fixed customer,
// restaurant, and menu so the order flow is exercisable without the
// catalog-owning services deployed.
func NewDemoCatalog() (*CustomerDirectory, *RestaurantDirectory, *MenuCatalog) {
	const (
		demoCustomerID   = "11111111-1111-1111-1111-111111111111"
		demoRestaurantID = "22222222-2222-2222-2222-222222222222"
	)
	customers := NewCustomerDirectory()
	restaurants := NewRestaurantDirectory()
	menu := NewMenuCatalog()

	customers.Put(ports.Customer{
		ID:    demoCustomerID,
		Name:  "Demo Customer",
		Email: "demo@example.com",
		Address: domain.Address{
			Street:     "Avenida Paulista",
			Number:     "1000",
			District:   "Bela Vista",
			City:       "São Paulo",
			State:      "SP",
			PostalCode: "01310-100",
		},
	})
	restaurants.Put(ports.Restaurant{
		ID:     demoRestaurantID,
		Name:   "Demo Restaurant",
		Active: true,
	})
	menu.Put(ports.MenuItem{
		ID:           "33333333-3333-3333-3333-333333333333",
		RestaurantID: demoRestaurantID,
		Name:         "Margherita Pizza",
		Price:        decimal.RequireFromString("45.90"),
		Available:    true,
	})
	menu.Put(ports.MenuItem{
		ID:           "44444444-4444-4444-4444-444444444444",
		RestaurantID: demoRestaurantID,
		Name:         "Garlic Bread",
		Price:        decimal.RequireFromString("12.50"),
		Available:    true,
	})
	return customers, restaurants, menu
}
