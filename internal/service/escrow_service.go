package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/escrowlabs/escrowd/internal/escrow"
	"github.com/escrowlabs/escrowd/internal/middleware"
	"github.com/escrowlabs/escrowd/internal/models"
)

// EscrowService sits between the transport and the ledger. It resolves the
// caller's principal from the request context, delegates to the state
// machine, and logs outcomes. It contains no transition logic of its own.
type EscrowService struct {
	ledger *escrow.Ledger
	events EventLog
}

// EventLog is the read side of the audit trail.
type EventLog interface {
	ListEventsByProject(ctx context.Context, projectID uint64) ([]models.Event, error)
}

// NewEscrowService creates an EscrowService. events may be nil when no audit
// store is configured; ListEvents then fails cleanly.
func NewEscrowService(ledger *escrow.Ledger, events EventLog) *EscrowService {
	return &EscrowService{ledger: ledger, events: events}
}

func caller(ctx context.Context) (models.Principal, error) {
	p := middleware.GetPrincipal(ctx)
	if p == "" {
		return "", fmt.Errorf("%w: authentication required", escrow.ErrUnauthorized)
	}
	return p, nil
}

// Create registers a new escrow project with the caller as payer.
func (s *EscrowService) Create(ctx context.Context, payee models.Principal, amount uint64, title, description string) (models.Project, error) {
	p, err := caller(ctx)
	if err != nil {
		return models.Project{}, err
	}
	project, err := s.ledger.Create(ctx, p, payee, amount, title, description)
	if err != nil {
		slog.Warn("Create failed", "payer", p, "payee", payee, "error", err)
		return models.Project{}, err
	}
	slog.Info("Project created", "project_id", project.ID, "payer", p, "payee", payee, "amount", amount)
	return project, nil
}

// UpdateAmount changes the agreed amount pre-funding.
func (s *EscrowService) UpdateAmount(ctx context.Context, id, newAmount uint64) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.UpdateAmount(ctx, p, id, newAmount); err != nil {
		slog.Warn("UpdateAmount failed", "project_id", id, "caller", p, "error", err)
		return err
	}
	return nil
}

// Fund moves the project into custody.
func (s *EscrowService) Fund(ctx context.Context, id, value uint64) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Fund(ctx, p, id, value); err != nil {
		slog.Warn("Fund failed", "project_id", id, "caller", p, "value", value, "error", err)
		return err
	}
	return nil
}

// Approve marks the work accepted by the payer.
func (s *EscrowService) Approve(ctx context.Context, id uint64) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Approve(ctx, p, id); err != nil {
		slog.Warn("Approve failed", "project_id", id, "caller", p, "error", err)
		return err
	}
	return nil
}

// Release pays out an approved project, triggered by the payer.
func (s *EscrowService) Release(ctx context.Context, id uint64) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Release(ctx, p, id); err != nil {
		slog.Warn("Release failed", "project_id", id, "caller", p, "error", err)
		return err
	}
	return nil
}

// Withdraw pays out an approved project, triggered by the payee.
func (s *EscrowService) Withdraw(ctx context.Context, id uint64) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Withdraw(ctx, p, id); err != nil {
		slog.Warn("Withdraw failed", "project_id", id, "caller", p, "error", err)
		return err
	}
	return nil
}

// TimeoutWithdraw pays out a funded project after the grace period.
func (s *EscrowService) TimeoutWithdraw(ctx context.Context, id uint64) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.TimeoutWithdraw(ctx, p, id); err != nil {
		slog.Warn("TimeoutWithdraw failed", "project_id", id, "caller", p, "error", err)
		return err
	}
	return nil
}

// Cancel aborts a project, refunding the payer if it was funded.
func (s *EscrowService) Cancel(ctx context.Context, id uint64) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.Cancel(ctx, p, id); err != nil {
		slog.Warn("Cancel failed", "project_id", id, "caller", p, "error", err)
		return err
	}
	return nil
}

// FlagDispute freezes a project for arbitration.
func (s *EscrowService) FlagDispute(ctx context.Context, id uint64) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.FlagDispute(ctx, p, id); err != nil {
		slog.Warn("FlagDispute failed", "project_id", id, "caller", p, "error", err)
		return err
	}
	return nil
}

// ResolveDispute awards the custodied amount to the chosen winner.
func (s *EscrowService) ResolveDispute(ctx context.Context, id uint64, awardToPayee bool) error {
	p, err := caller(ctx)
	if err != nil {
		return err
	}
	if err := s.ledger.ResolveDispute(ctx, p, id, awardToPayee); err != nil {
		slog.Warn("ResolveDispute failed", "project_id", id, "caller", p, "award_to_payee", awardToPayee, "error", err)
		return err
	}
	return nil
}

// GetProject returns a read-only snapshot of a project.
func (s *EscrowService) GetProject(ctx context.Context, id uint64) (models.Project, error) {
	if _, err := caller(ctx); err != nil {
		return models.Project{}, err
	}
	return s.ledger.GetProject(id)
}

// ListProjects returns snapshots of all projects ordered by id.
func (s *EscrowService) ListProjects(ctx context.Context) ([]models.Project, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	return s.ledger.ListProjects(), nil
}

// ListEvents returns a project's audit trail oldest first.
func (s *EscrowService) ListEvents(ctx context.Context, projectID uint64) ([]models.Event, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, fmt.Errorf("audit store not configured")
	}
	if _, err := s.ledger.GetProject(projectID); err != nil {
		return nil, err
	}
	return s.events.ListEventsByProject(ctx, projectID)
}
