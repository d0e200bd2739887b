package application

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/deliverly/order-api/internal/domains/orders/domain"
)

// derivedKeyHashLen is the truncated hex length of the fingerprint component.
const derivedKeyHashLen = 16

// DerivePaymentIdempotencyKey builds a deterministic provider-side idempotency
// key for orders paid without a caller-supplied key. It hashes only fields
// that are fixed once the order is placed, so a retried request for the same
// order always collapses to the same provider charge.
func DerivePaymentIdempotencyKey(order *domain.Order) string {
	fingerprint := fmt.Sprintf("%s|%s|%s", order.ID, order.Number, order.GrandTotal.StringFixed(2))
	sum := sha256.Sum256([]byte(fingerprint))
	return fmt.Sprintf("order-%s-%s", order.ID, hex.EncodeToString(sum[:])[:derivedKeyHashLen])
}
