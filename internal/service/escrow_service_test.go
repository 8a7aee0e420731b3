package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/escrowlabs/escrowd/internal/escrow"
	"github.com/escrowlabs/escrowd/internal/middleware"
	"github.com/escrowlabs/escrowd/internal/models"
	"github.com/escrowlabs/escrowd/internal/treasury"
)

// memoryEvents collects emitted events and serves them back, standing in for
// the sqlite audit table.
type memoryEvents struct {
	events []models.Event
}

func (m *memoryEvents) Emit(_ context.Context, ev models.Event) {
	m.events = append(m.events, ev)
}

func (m *memoryEvents) ListEventsByProject(_ context.Context, projectID uint64) ([]models.Event, error) {
	var out []models.Event
	for _, ev := range m.events {
		if ev.ProjectID == projectID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*EscrowService, *treasury.Bank) {
	t.Helper()
	bank := treasury.NewBank()
	events := &memoryEvents{}
	ledger, err := escrow.New(escrow.Config{
		Owner:      "owner",
		Arbitrator: "arbitrator",
		FeePercent: 2,
		Timeout:    30 * 24 * time.Hour,
	}, bank, nil, events)
	if err != nil {
		t.Fatalf("escrow.New failed: %v", err)
	}
	return NewEscrowService(ledger, events), bank
}

func as(p string) context.Context {
	return middleware.WithPrincipal(context.Background(), models.Principal(p))
}

func TestUnauthenticatedCallsRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "bob", 100, "t", "d"); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Errorf("Create error = %v, want ErrUnauthorized", err)
	}
	if err := svc.Fund(ctx, 1, 100); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Errorf("Fund error = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.ListProjects(ctx); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Errorf("ListProjects error = %v, want ErrUnauthorized", err)
	}
}

func TestCallerIsPayer(t *testing.T) {
	svc, bank := newTestService(t)

	project, err := svc.Create(as("alice"), "bob", 100, "logo", "three drafts")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if project.Payer != "alice" {
		t.Fatalf("payer = %s, want the authenticated caller", project.Payer)
	}

	if err := svc.Fund(as("alice"), project.ID, 100); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	if err := svc.Approve(as("alice"), project.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if err := svc.Withdraw(as("bob"), project.ID); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if got := bank.Balance("bob"); got != 98 {
		t.Errorf("payee balance = %d, want 98", got)
	}
}

func TestListEventsRequiresExistingProject(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ListEvents(as("alice"), 404); !errors.Is(err, escrow.ErrNotFound) {
		t.Errorf("ListEvents(404) error = %v, want ErrNotFound", err)
	}

	project, err := svc.Create(as("alice"), "bob", 100, "t", "d")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	events, err := svc.ListEvents(as("alice"), project.ID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Op != models.OpCreate {
		t.Errorf("events = %+v, want one create event", events)
	}
}
