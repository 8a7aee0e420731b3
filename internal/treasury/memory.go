package treasury

import (
	"context"
	"sync"

	"github.com/escrowlabs/escrowd/internal/models"
)

// Ensure Bank implements Treasury
var _ Treasury = (*Bank)(nil)

// Bank is an in-memory Treasury backed by a balance map. It is used by the
// server in standalone mode and by tests; a production deployment swaps in an
// adapter for the real payment rail behind the same interface.
type Bank struct {
	mu       sync.Mutex
	balances map[models.Principal]uint64
}

// NewBank creates an empty in-memory bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[models.Principal]uint64)}
}

// Transfer applies every credit under one lock acquisition, so the batch is
// atomic with respect to concurrent Transfer and Balance calls.
func (b *Bank) Transfer(ctx context.Context, credits ...Credit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range credits {
		b.balances[c.To] += c.Amount
	}
	return nil
}

// Balance returns the credited balance of a principal.
func (b *Bank) Balance(p models.Principal) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[p]
}
