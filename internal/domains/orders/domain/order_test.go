package domain

import (
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustItem(t *testing.T, id, name string, qty int, price string) LineItem {
	t.Helper()
	item, err := NewLineItem(id, name, qty, decimal.RequireFromString(price))
	require.NoError(t, err)
	return item
}

func TestNewLineItem_SnapshotsSubtotal(t *testing.T) {
	item, err := NewLineItem("item-1", "Margherita Pizza", 2, decimal.RequireFromString("45.90"))
	require.NoError(t, err)
	require.Equal(t, "91.80", item.Subtotal.StringFixed(2))
	require.Equal(t, "45.90", item.UnitPrice.StringFixed(2))
}

func TestNewLineItem_RejectsBadInput(t *testing.T) {
	_, err := NewLineItem("item-1", "Pizza", 0, decimal.RequireFromString("45.90"))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewLineItem("item-1", "Pizza", 1, decimal.RequireFromString("-0.01"))
	require.ErrorIs(t, err, ErrNegativePrice)
}

func TestNewOrder_ComputesTotalsOnce(t *testing.T) {
	items := []LineItem{
		mustItem(t, "item-1", "Margherita Pizza", 2, "45.90"),
		mustItem(t, "item-2", "Garlic Bread", 1, "12.50"),
	}
	order, err := NewOrder("cust-1", "rest-1", items, decimal.RequireFromString("5.00"), Address{City: "São Paulo"}, "", time.Now())
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.Status)
	require.Equal(t, "104.30", order.Subtotal.StringFixed(2))
	require.Equal(t, "109.30", order.GrandTotal.StringFixed(2))
}

func TestNewOrder_RequiresItems(t *testing.T) {
	_, err := NewOrder("cust-1", "rest-1", nil, decimal.Zero, Address{}, "", time.Now())
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestTransitionTo_FollowsAdjacencyTable(t *testing.T) {
	statuses := []Status{
		StatusPending, StatusPaid, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCanceled, StatusPaymentFailed,
	}
	// Independent restatement of the lifecycle edges, checked against every
	// (from, to) pair including self-transitions.
	allowed := map[Status][]Status{
		StatusPending:        {StatusPaid, StatusConfirmed, StatusCanceled, StatusPaymentFailed},
		StatusPaid:           {StatusConfirmed, StatusCanceled},
		StatusConfirmed:      {StatusPreparing, StatusCanceled},
		StatusPreparing:      {StatusReady, StatusCanceled},
		StatusReady:          {StatusOutForDelivery},
		StatusOutForDelivery: {StatusDelivered},
		StatusDelivered:      {},
		StatusCanceled:       {},
		StatusPaymentFailed:  {StatusPending},
	}
	for _, from := range statuses {
		for _, to := range statuses {
			order := &Order{Status: from}
			canMove := order.CanTransitionTo(to)
			err := order.TransitionTo(to, time.Now())
			if slices.Contains(allowed[from], to) {
				require.Truef(t, canMove, "%s -> %s", from, to)
				require.NoErrorf(t, err, "%s -> %s", from, to)
				require.Equal(t, to, order.Status)
				continue
			}
			require.Falsef(t, canMove, "%s -> %s", from, to)
			var invalid *InvalidTransitionError
			require.ErrorAsf(t, err, &invalid, "%s -> %s", from, to)
			require.Equal(t, from, invalid.From)
			require.Equal(t, to, invalid.To)
			require.Equal(t, from, order.Status)
		}
	}
}

func TestTransitionTo_StampsTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	order := &Order{Status: StatusPending}
	require.NoError(t, order.TransitionTo(StatusConfirmed, now))
	require.NotNil(t, order.ConfirmedAt)
	require.Equal(t, now, *order.ConfirmedAt)
	require.Nil(t, order.DeliveredAt)

	order = &Order{Status: StatusOutForDelivery}
	require.NoError(t, order.TransitionTo(StatusDelivered, now))
	require.NotNil(t, order.DeliveredAt)
	require.Equal(t, now, *order.DeliveredAt)
}

func TestTransitionTo_UnknownStatus(t *testing.T) {
	order := &Order{Status: StatusPending}
	err := order.TransitionTo(Status("SHIPPED"), time.Now())
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestPayable(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusConfirmed, StatusPaymentFailed} {
		order := &Order{Status: status}
		require.Truef(t, order.Payable(), "status %s", status)
	}
	for _, status := range []Status{StatusPaid, StatusPreparing, StatusReady, StatusOutForDelivery, StatusDelivered, StatusCanceled} {
		order := &Order{Status: status}
		require.Falsef(t, order.Payable(), "status %s", status)
	}

	// A pending order that already holds a transaction id must not be
	// charged again.
	order := &Order{Status: StatusPending, Payment: Payment{TransactionID: "tx-1"}}
	require.False(t, order.Payable())
}

func TestCancelable(t *testing.T) {
	require.False(t, (&Order{Status: StatusDelivered}).Cancelable())
	require.False(t, (&Order{Status: StatusCanceled}).Cancelable())
	require.True(t, (&Order{Status: StatusOutForDelivery}).Cancelable())
	require.True(t, (&Order{Status: StatusPending}).Cancelable())
}

func TestMarkPaid(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	order := &Order{Status: StatusPending}

	require.NoError(t, order.MarkPaid("tx-1", "card", "stripe", now))
	require.Equal(t, StatusPaid, order.Status)
	require.Equal(t, "tx-1", order.Payment.TransactionID)
	require.Equal(t, "card", order.Payment.Method)
	require.Equal(t, "stripe", order.Payment.Provider)
	require.NotNil(t, order.Payment.PaidAt)

	// Paid orders refuse a second settlement.
	require.ErrorIs(t, order.MarkPaid("tx-2", "card", "stripe", now), ErrNotPayable)
	require.Equal(t, "tx-1", order.Payment.TransactionID)
}

func TestMarkPaymentFailed(t *testing.T) {
	order := &Order{Status: StatusPending}
	require.NoError(t, order.MarkPaymentFailed())
	require.Equal(t, StatusPaymentFailed, order.Status)

	order = &Order{Status: StatusPaid}
	require.ErrorIs(t, order.MarkPaymentFailed(), ErrNotPendingPayment)
}

func TestMarkRefunded_Idempotent(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	order := &Order{Status: StatusPaid, Payment: Payment{TransactionID: "tx-1"}}

	require.True(t, order.MarkRefunded("re-1", now))
	require.Equal(t, "re-1", order.Payment.RefundID)
	require.NotNil(t, order.Payment.RefundedAt)
	// Status is preserved; refunds only stamp metadata.
	require.Equal(t, StatusPaid, order.Status)

	require.False(t, order.MarkRefunded("re-2", now.Add(time.Hour)))
	require.Equal(t, "re-1", order.Payment.RefundID)
}

func TestValidStatus(t *testing.T) {
	require.True(t, ValidStatus(StatusOutForDelivery))
	require.False(t, ValidStatus(Status("SHIPPED")))
}
