package escrow

import (
	"context"

	"github.com/escrowlabs/escrowd/internal/models"
)

// EventSink receives one Event per successful transition. Emission is
// best-effort: a sink must not block the ledger and cannot veto a transition
// that already happened. Sinks that can fail (storage) log their own errors.
type EventSink interface {
	Emit(ctx context.Context, ev models.Event)
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(ctx context.Context, ev models.Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// ProjectStore persists project snapshots after successful transitions.
// The in-memory ledger stays authoritative; the store exists for audit and
// warm restarts.
type ProjectStore interface {
	SaveProject(ctx context.Context, project models.Project) error
}
