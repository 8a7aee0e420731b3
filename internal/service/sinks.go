package service

import (
	"context"
	"log/slog"

	"github.com/escrowlabs/escrowd/internal/escrow"
	"github.com/escrowlabs/escrowd/internal/models"
)

// LogSink writes every ledger transition to the structured log.
type LogSink struct{}

// Ensure sinks implement escrow.EventSink
var (
	_ escrow.EventSink = LogSink{}
	_ escrow.EventSink = (*StoreSink)(nil)
)

func (LogSink) Emit(_ context.Context, ev models.Event) {
	attrs := []any{
		"project_id", ev.ProjectID,
		"op", ev.Op,
		"actor", ev.Actor,
		"from", ev.FromState,
		"to", ev.ToState,
		"amount", ev.Amount,
	}
	if ev.Recipient != "" {
		attrs = append(attrs, "recipient", ev.Recipient, "payout", ev.Payout, "fee", ev.Fee)
	}
	slog.Info("Ledger transition", attrs...)
}

// EventStore is the slice of the storage interface the sink needs.
type EventStore interface {
	AppendEvent(ctx context.Context, ev models.Event) error
}

// StoreSink appends every transition to the audit table. Failures are
// logged, not propagated; the in-memory ledger remains authoritative.
type StoreSink struct {
	store EventStore
}

// NewStoreSink creates a sink writing to the given event store.
func NewStoreSink(store EventStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Emit(ctx context.Context, ev models.Event) {
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		slog.Error("Failed to persist audit event", "project_id", ev.ProjectID, "op", ev.Op, "error", err)
	}
}
