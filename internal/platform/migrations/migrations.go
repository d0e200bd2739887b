package migrations

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run applies the ordering schema. Intended to replace adapter-level
// automigrate so tests and the worker share one source of truth.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if err := db.AutoMigrate(&orderRecord{}); err != nil {
		return err
	}
	// Sequence numbers stay monotonic across instances; the formatting into
	// ORD-prefixed numbers happens in the repository.
	return db.Exec("CREATE SEQUENCE IF NOT EXISTS order_number_seq START 1").Error
}

// Order schema mirrors the orders Postgres adapter.
type orderRecord struct {
	ID              string          `gorm:"primaryKey;column:id;type:uuid"`
	Number          string          `gorm:"column:number;uniqueIndex"`
	CustomerID      string          `gorm:"column:customer_id;index"`
	RestaurantID    string          `gorm:"column:restaurant_id;index"`
	Items           string          `gorm:"column:items;type:jsonb"`
	ItemNames       pq.StringArray  `gorm:"column:item_names;type:text[]"`
	Subtotal        decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2)"`
	DeliveryFee     decimal.Decimal `gorm:"column:delivery_fee;type:numeric(12,2)"`
	GrandTotal      decimal.Decimal `gorm:"column:grand_total;type:numeric(12,2)"`
	Status          string          `gorm:"column:status;type:varchar(32);index"`
	Street          string          `gorm:"column:street"`
	StreetNumber    string          `gorm:"column:street_number"`
	Complement      string          `gorm:"column:complement"`
	District        string          `gorm:"column:district"`
	City            string          `gorm:"column:city"`
	State           string          `gorm:"column:state"`
	PostalCode      string          `gorm:"column:postal_code"`
	Notes           string          `gorm:"column:notes"`
	PlacedAt        time.Time       `gorm:"column:placed_at;index"`
	ConfirmedAt     *time.Time      `gorm:"column:confirmed_at"`
	DeliveredAt     *time.Time      `gorm:"column:delivered_at"`
	TransactionID   *string         `gorm:"column:transaction_id;uniqueIndex"`
	PaymentMethod   string          `gorm:"column:payment_method"`
	PaymentProvider string          `gorm:"column:payment_provider"`
	PaidAt          *time.Time      `gorm:"column:paid_at"`
	RefundID        string          `gorm:"column:refund_id"`
	RefundedAt      *time.Time      `gorm:"column:refunded_at"`
	Version         int64           `gorm:"column:version"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }
