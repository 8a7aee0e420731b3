package service

import (
	"context"
	"log/slog"

	"github.com/escrowlabs/escrowd/internal/escrow"
	"github.com/escrowlabs/escrowd/internal/models"
)

// AdminService exposes the owner-guarded administrative operations. The
// owner principal is fixed at ledger initialization; the ledger itself
// enforces the guard, this layer only logs.
type AdminService struct {
	ledger *escrow.Ledger
}

// NewAdminService creates an AdminService over the given ledger.
func NewAdminService(ledger *escrow.Ledger) *AdminService {
	return &AdminService{ledger: ledger}
}

// SetArbitrator replaces the dispute arbitrator.
func (s *AdminService) SetArbitrator(ctx context.Context, arbitrator models.Principal) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.SetArbitrator(p, arbitrator); err != nil {
		slog.Warn("SetArbitrator failed", "caller", p, "error", err)
		return err
	}
	slog.Info("Arbitrator updated", "arbitrator", arbitrator)
	return nil
}

// SetPlatformFee updates the payout fee percentage.
func (s *AdminService) SetPlatformFee(ctx context.Context, percent uint64) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.SetPlatformFee(p, percent); err != nil {
		slog.Warn("SetPlatformFee failed", "caller", p, "percent", percent, "error", err)
		return err
	}
	slog.Info("Platform fee updated", "percent", percent)
	return nil
}
