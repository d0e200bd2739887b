package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	orderstypes "github.com/deliverly/order-api/internal/domains/orders/application/types"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
	"github.com/deliverly/order-api/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists orders in PostgreSQL using GORM. Conditional writes are
// expressed as WHERE clauses on version/status so concurrent settlers never
// both win.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// orderRecord maps the order aggregate to a relational table. Line items live
// in a jsonb column; item_names is a denormalized text[] kept for dashboard
// search.
type orderRecord struct {
	ID              string           `gorm:"primaryKey;column:id;type:uuid"`
	Number          string           `gorm:"column:number;uniqueIndex"`
	CustomerID      string           `gorm:"column:customer_id;index"`
	RestaurantID    string           `gorm:"column:restaurant_id;index"`
	Items           []itemRecord     `gorm:"column:items;serializer:json;type:jsonb"`
	ItemNames       pq.StringArray   `gorm:"column:item_names;type:text[]"`
	Subtotal        decimal.Decimal  `gorm:"column:subtotal;type:numeric(12,2)"`
	DeliveryFee     decimal.Decimal  `gorm:"column:delivery_fee;type:numeric(12,2)"`
	GrandTotal      decimal.Decimal  `gorm:"column:grand_total;type:numeric(12,2)"`
	Status          string           `gorm:"column:status;type:varchar(32);index"`
	Street          string           `gorm:"column:street"`
	StreetNumber    string           `gorm:"column:street_number"`
	Complement      string           `gorm:"column:complement"`
	District        string           `gorm:"column:district"`
	City            string           `gorm:"column:city"`
	State           string           `gorm:"column:state"`
	PostalCode      string           `gorm:"column:postal_code"`
	Notes           string           `gorm:"column:notes"`
	PlacedAt        time.Time        `gorm:"column:placed_at;index"`
	ConfirmedAt     *time.Time       `gorm:"column:confirmed_at"`
	DeliveredAt     *time.Time       `gorm:"column:delivered_at"`
	TransactionID   *string          `gorm:"column:transaction_id;uniqueIndex"`
	PaymentMethod   string           `gorm:"column:payment_method"`
	PaymentProvider string           `gorm:"column:payment_provider"`
	PaidAt          *time.Time       `gorm:"column:paid_at"`
	RefundID        string           `gorm:"column:refund_id"`
	RefundedAt      *time.Time       `gorm:"column:refunded_at"`
	Version         int64            `gorm:"column:version"`
	CreatedAt       time.Time        `gorm:"column:created_at"`
	UpdatedAt       time.Time        `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

type itemRecord struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// Insert persists a new pending order, drawing its sequence number from the
// order_number_seq sequence so numbers are monotonic across instances.
func (r *Repository) Insert(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	record := toRecord(order)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Number == "" {
		var seq int64
		if err := r.db.WithContext(ctx).Raw("SELECT nextval('order_number_seq')").Scan(&seq).Error; err != nil {
			return nil, fmt.Errorf("allocate order number: %w", err)
		}
		record.Number = fmt.Sprintf("ORD%06d", seq)
	}
	record.Version = 1
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, record.ID)
}

// FindByID fetches an order by identifier.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// FindByTransactionID locates the order settled by the given provider
// transaction.
func (r *Repository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if transactionID == "" {
		return nil, ports.ErrNotFound
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// Update writes the full record iff the stored version still matches.
func (r *Repository) Update(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	record := toRecord(order)
	result := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"status":           record.Status,
			"notes":            record.Notes,
			"confirmed_at":     record.ConfirmedAt,
			"delivered_at":     record.DeliveredAt,
			"transaction_id":   record.TransactionID,
			"payment_method":   record.PaymentMethod,
			"payment_provider": record.PaymentProvider,
			"paid_at":          record.PaidAt,
			"refund_id":        record.RefundID,
			"refunded_at":      record.RefundedAt,
			"version":          order.Version + 1,
			"updated_at":       gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, r.classifyMiss(ctx, order.ID)
	}
	return r.FindByID(ctx, order.ID)
}

// UpdateStatus atomically moves an order from one status to another, stamping
// the timestamps the target requires.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	assignments := map[string]any{
		"status":     string(to),
		"version":    gorm.Expr("version + 1"),
		"updated_at": gorm.Expr("NOW()"),
	}
	switch to {
	case domain.StatusConfirmed:
		assignments["confirmed_at"] = gorm.Expr("NOW()")
	case domain.StatusDelivered:
		assignments["delivered_at"] = gorm.Expr("NOW()")
	}
	result := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(assignments)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, r.classifyMiss(ctx, id)
	}
	return r.FindByID(ctx, id)
}

// classifyMiss distinguishes a missing row from a lost conditional write.
func (r *Repository) classifyMiss(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&orderRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ports.ErrNotFound
	}
	return ports.ErrConflict
}

// List returns orders matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter orderstypes.ListOrdersFilter) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Model(&orderRecord{})
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.RestaurantID != "" {
		query = query.Where("restaurant_id = ?", filter.RestaurantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.PlacedFrom != nil {
		query = query.Where("placed_at >= ?", *filter.PlacedFrom)
	}
	if filter.PlacedTo != nil {
		query = query.Where("placed_at <= ?", *filter.PlacedTo)
	}
	var records []orderRecord
	if err := query.Order("placed_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(records))
	for i := range records {
		orders = append(orders, records[i].toDomain())
	}
	return orders, nil
}

// CountByStatus counts orders in the given status.
func (r *Repository) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	if err := r.ensureDB(); err != nil {
		return 0, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("status = ?", string(status)).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumTotalByStatus sums grand totals over orders in the given status.
func (r *Repository) SumTotalByStatus(ctx context.Context, status domain.Status) (decimal.Decimal, error) {
	if err := r.ensureDB(); err != nil {
		return decimal.Zero, err
	}
	var total decimal.NullDecimal
	if err := r.db.WithContext(ctx).Model(&orderRecord{}).
		Where("status = ?", string(status)).
		Select("SUM(grand_total)").Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres order repository not configured")
	}
	return nil
}

func toRecord(order *domain.Order) orderRecord {
	items := make([]itemRecord, 0, len(order.Items))
	names := make(pq.StringArray, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemRecord{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Subtotal:   item.Subtotal,
		})
		names = append(names, item.Name)
	}
	var transactionID *string
	if order.Payment.TransactionID != "" {
		tx := order.Payment.TransactionID
		transactionID = &tx
	}
	return orderRecord{
		ID:              order.ID,
		Number:          order.Number,
		CustomerID:      order.CustomerID,
		RestaurantID:    order.RestaurantID,
		Items:           items,
		ItemNames:       names,
		Subtotal:        order.Subtotal,
		DeliveryFee:     order.DeliveryFee,
		GrandTotal:      order.GrandTotal,
		Status:          string(order.Status),
		Street:          order.Address.Street,
		StreetNumber:    order.Address.Number,
		Complement:      order.Address.Complement,
		District:        order.Address.District,
		City:            order.Address.City,
		State:           order.Address.State,
		PostalCode:      order.Address.PostalCode,
		Notes:           order.Notes,
		PlacedAt:        order.PlacedAt,
		ConfirmedAt:     order.ConfirmedAt,
		DeliveredAt:     order.DeliveredAt,
		TransactionID:   transactionID,
		PaymentMethod:   order.Payment.Method,
		PaymentProvider: order.Payment.Provider,
		PaidAt:          order.Payment.PaidAt,
		RefundID:        order.Payment.RefundID,
		RefundedAt:      order.Payment.RefundedAt,
		Version:         order.Version,
	}
}

func (r orderRecord) toDomain() *domain.Order {
	items := make([]domain.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.LineItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Subtotal:   item.Subtotal,
		})
	}
	var transactionID string
	if r.TransactionID != nil {
		transactionID = *r.TransactionID
	}
	return &domain.Order{
		ID:           r.ID,
		Number:       r.Number,
		CustomerID:   r.CustomerID,
		RestaurantID: r.RestaurantID,
		Items:        items,
		Subtotal:     r.Subtotal,
		DeliveryFee:  r.DeliveryFee,
		GrandTotal:   r.GrandTotal,
		Status:       domain.Status(r.Status),
		Address: domain.Address{
			Street:     r.Street,
			Number:     r.StreetNumber,
			Complement: r.Complement,
			District:   r.District,
			City:       r.City,
			State:      r.State,
			PostalCode: r.PostalCode,
		},
		Notes:       r.Notes,
		PlacedAt:    r.PlacedAt,
		ConfirmedAt: r.ConfirmedAt,
		DeliveredAt: r.DeliveredAt,
		Payment: domain.Payment{
			TransactionID: transactionID,
			Method:        r.PaymentMethod,
			Provider:      r.PaymentProvider,
			PaidAt:        r.PaidAt,
			RefundedAt:    r.RefundedAt,
			RefundID:      r.RefundID,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Version:   r.Version,
	}
}
