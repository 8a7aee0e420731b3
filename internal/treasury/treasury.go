// Package treasury defines the external value-transfer boundary.
//
// The escrow ledger never holds balances itself; it instructs a Treasury to
// credit principals when funds leave custody. The Treasury is the system's
// stand-in for whatever real ledger (bank core, chain, internal wallet
// service) actually moves value.
package treasury

import (
	"context"

	"github.com/escrowlabs/escrowd/internal/models"
)

// Credit is one leg of a payout: credit Amount to To.
type Credit struct {
	To     models.Principal
	Amount uint64
}

// Treasury moves value out of escrow custody.
//
// Transfer must be all-or-nothing across its credits: either every credit is
// applied or none is. The ledger relies on this to keep a fee-split payout
// (payee leg + operator leg) atomic. A returned error means no credit was
// applied and the enclosing ledger operation will roll back.
type Treasury interface {
	Transfer(ctx context.Context, credits ...Credit) error
}
