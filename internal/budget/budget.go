package budget

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is returned when a transaction is requested from a budget
// with nothing left to spend.
var ErrExhausted = errors.New("transaction budget exhausted")

// Budget counts upstream transactions for a single aggregation request.
// It only ever decreases. All methods are safe for concurrent use.
type Budget struct {
	limit int64
	spent atomic.Int64
}

// New returns a Budget allowing at most limit transactions.
// A non-positive limit yields a budget that is already exhausted.
func New(limit int) *Budget {
	if limit < 0 {
		limit = 0
	}
	return &Budget{limit: int64(limit)}
}

// Reserve spends one transaction. It returns false without spending
// anything when the limit has been reached.
func (b *Budget) Reserve() bool {
	for {
		spent := b.spent.Load()
		if spent >= b.limit {
			return false
		}
		if b.spent.CompareAndSwap(spent, spent+1) {
			return true
		}
	}
}

// Spend is Reserve expressed as an error for call sites that must not
// issue a request without a transaction.
func (b *Budget) Spend() error {
	if !b.Reserve() {
		return ErrExhausted
	}
	return nil
}

// Remaining returns the number of transactions still available.
func (b *Budget) Remaining() int {
	return int(b.limit - b.spent.Load())
}

// Spent returns the number of transactions consumed so far.
func (b *Budget) Spent() int {
	return int(b.spent.Load())
}

// Limit returns the configured ceiling.
func (b *Budget) Limit() int {
	return int(b.limit)
}

// Exhausted reports whether no transactions remain.
func (b *Budget) Exhausted() bool {
	return b.Remaining() <= 0
}
