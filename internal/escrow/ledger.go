// Package escrow implements the escrow lifecycle state machine.
//
// A Ledger is a process-wide table of independent project records. Every
// operation reads one record, validates the caller's role and the record's
// state, mutates the record, and (for payout paths) invokes the external
// treasury exactly once before returning. Distinct projects are fully
// independent and may be driven concurrently; operations on one project are
// serialized by a per-record mutex.
//
// Payout paths follow a strict check-then-zero-then-transfer discipline: the
// record is moved to its terminal state and its amount zeroed before the
// treasury is called, so a re-entrant call arriving during the transfer is
// rejected by the ordinary precondition checks. If the transfer fails the
// staged mutation is rolled back and the operation reports ErrTransferFailed.
package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/escrowlabs/escrowd/internal/models"
	"github.com/escrowlabs/escrowd/internal/treasury"
)

// MaxFeePercent caps the platform fee an owner can configure.
const MaxFeePercent = 10

// Config is the ledger's administrative state: who owns it, who arbitrates
// disputes, the platform fee, and the funding-to-timeout grace period.
// Owner is fixed at initialization; Arbitrator and FeePercent are mutable
// through the owner-guarded administrative operations.
type Config struct {
	Owner      models.Principal
	Arbitrator models.Principal
	FeePercent uint64
	Timeout    time.Duration
}

func (c Config) validate() error {
	if c.Owner == "" {
		return fmt.Errorf("%w: owner must be set", ErrInvalidParty)
	}
	if c.Arbitrator == "" {
		return fmt.Errorf("%w: arbitrator must be set", ErrInvalidParty)
	}
	if c.FeePercent > MaxFeePercent {
		return fmt.Errorf("%w: fee percent %d exceeds maximum %d", ErrInvalidAmount, c.FeePercent, MaxFeePercent)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidAmount)
	}
	return nil
}

// record pairs a project with the mutex that serializes its transitions.
type record struct {
	mu sync.Mutex
	p  models.Project
}

// Ledger holds the project table and the transition logic that mutates it.
type Ledger struct {
	treasury treasury.Treasury
	store    ProjectStore // optional; nil disables persistence
	sink     EventSink    // optional; nil disables event emission
	now      func() time.Time

	cfgMu sync.RWMutex
	cfg   Config

	mu       sync.RWMutex
	projects map[uint64]*record
	nextID   uint64
}

// New creates a ledger with the given administrative configuration and
// treasury. Store and sink may be nil for pure in-memory operation.
func New(cfg Config, t treasury.Treasury, store ProjectStore, sink EventSink) (*Ledger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("escrow: treasury is required")
	}
	return &Ledger{
		treasury: t,
		store:    store,
		sink:     sink,
		now:      time.Now,
		cfg:      cfg,
		projects: make(map[uint64]*record),
	}, nil
}

// Restore seeds the table from persisted snapshots and advances the id
// counter past the highest restored id. Call once, before serving.
func (l *Ledger) Restore(projects []models.Project) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range projects {
		l.projects[p.ID] = &record{p: p}
		if p.ID > l.nextID {
			l.nextID = p.ID
		}
	}
}

// ConfigSnapshot returns a copy of the current administrative configuration.
func (l *Ledger) ConfigSnapshot() Config {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.cfg
}

// SetArbitrator replaces the dispute arbitrator. Owner only.
func (l *Ledger) SetArbitrator(caller, arbitrator models.Principal) error {
	if arbitrator == "" {
		return fmt.Errorf("%w: arbitrator must be set", ErrInvalidParty)
	}
	l.cfgMu.Lock()
	defer l.cfgMu.Unlock()
	if caller != l.cfg.Owner {
		return fmt.Errorf("%w: only the owner may set the arbitrator", ErrUnauthorized)
	}
	l.cfg.Arbitrator = arbitrator
	return nil
}

// SetPlatformFee updates the payout fee percentage. Owner only, capped at
// MaxFeePercent.
func (l *Ledger) SetPlatformFee(caller models.Principal, percent uint64) error {
	if percent > MaxFeePercent {
		return fmt.Errorf("%w: fee percent %d exceeds maximum %d", ErrInvalidAmount, percent, MaxFeePercent)
	}
	l.cfgMu.Lock()
	defer l.cfgMu.Unlock()
	if caller != l.cfg.Owner {
		return fmt.Errorf("%w: only the owner may set the platform fee", ErrUnauthorized)
	}
	l.cfg.FeePercent = percent
	return nil
}

// Create registers a new project in state Created. No funds move.
func (l *Ledger) Create(ctx context.Context, caller, payee models.Principal, amount uint64, title, description string) (models.Project, error) {
	if caller == "" || payee == "" {
		return models.Project{}, fmt.Errorf("%w: payer and payee must be set", ErrInvalidParty)
	}
	if payee == caller {
		return models.Project{}, fmt.Errorf("%w: payer and payee must differ", ErrInvalidParty)
	}
	if amount == 0 {
		return models.Project{}, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	l.mu.Lock()
	l.nextID++
	p := models.Project{
		ID:          l.nextID,
		Payer:       caller,
		Payee:       payee,
		Amount:      amount,
		State:       models.StateCreated,
		Title:       title,
		Description: description,
		CreatedAt:   l.now().Unix(),
	}
	l.projects[p.ID] = &record{p: p}
	l.mu.Unlock()

	l.commit(ctx, p, models.Event{
		ProjectID: p.ID,
		Op:        models.OpCreate,
		Actor:     caller,
		FromState: models.StateCreated,
		ToState:   models.StateCreated,
		Amount:    amount,
	})
	return p, nil
}

// UpdateAmount changes the agreed amount pre-funding. Payer only.
func (l *Ledger) UpdateAmount(ctx context.Context, caller models.Principal, id, newAmount uint64) error {
	if newAmount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return l.mutate(ctx, id, models.OpUpdateAmount, caller, func(p *models.Project) error {
		if caller != p.Payer {
			return fmt.Errorf("%w: only the payer may update the amount", ErrUnauthorized)
		}
		if p.State != models.StateCreated {
			return fmt.Errorf("%w: amount is immutable once funded (state %s)", ErrInvalidState, p.State)
		}
		p.Amount = newAmount
		return nil
	})
}

// Fund moves the project to Funded. The supplied value must equal the agreed
// amount exactly; partial and over-funding are rejected.
func (l *Ledger) Fund(ctx context.Context, caller models.Principal, id, value uint64) error {
	return l.mutate(ctx, id, models.OpFund, caller, func(p *models.Project) error {
		if caller != p.Payer {
			return fmt.Errorf("%w: only the payer may fund", ErrUnauthorized)
		}
		if p.State != models.StateCreated {
			return fmt.Errorf("%w: cannot fund from state %s", ErrInvalidState, p.State)
		}
		if value != p.Amount {
			return fmt.Errorf("%w: got %d, want %d", ErrAmountMismatch, value, p.Amount)
		}
		p.State = models.StateFunded
		return nil
	})
}

// Approve signals the payer accepts the work. No funds move.
func (l *Ledger) Approve(ctx context.Context, caller models.Principal, id uint64) error {
	return l.mutate(ctx, id, models.OpApprove, caller, func(p *models.Project) error {
		if caller != p.Payer {
			return fmt.Errorf("%w: only the payer may approve", ErrUnauthorized)
		}
		if p.State != models.StateFunded {
			return fmt.Errorf("%w: cannot approve from state %s", ErrInvalidState, p.State)
		}
		p.State = models.StateApproved
		return nil
	})
}

// FlagDispute freezes the project in Disputed. Payer or payee, from Funded
// or Approved. Funds stay in custody untouched.
func (l *Ledger) FlagDispute(ctx context.Context, caller models.Principal, id uint64) error {
	return l.mutate(ctx, id, models.OpFlagDispute, caller, func(p *models.Project) error {
		if caller != p.Payer && caller != p.Payee {
			return fmt.Errorf("%w: only the payer or payee may flag a dispute", ErrUnauthorized)
		}
		if p.State != models.StateFunded && p.State != models.StateApproved {
			return fmt.Errorf("%w: cannot dispute from state %s", ErrInvalidState, p.State)
		}
		p.State = models.StateDisputed
		return nil
	})
}

// Release pays the payee from an approved project. Payer only.
func (l *Ledger) Release(ctx context.Context, caller models.Principal, id uint64) error {
	return l.payFromApproved(ctx, caller, id, models.OpRelease, func(p *models.Project) error {
		if caller != p.Payer {
			return fmt.Errorf("%w: only the payer may release", ErrUnauthorized)
		}
		return nil
	})
}

// Withdraw pays the payee from an approved project. Payee only.
func (l *Ledger) Withdraw(ctx context.Context, caller models.Principal, id uint64) error {
	return l.payFromApproved(ctx, caller, id, models.OpWithdraw, func(p *models.Project) error {
		if caller != p.Payee {
			return fmt.Errorf("%w: only the payee may withdraw", ErrUnauthorized)
		}
		return nil
	})
}

func (l *Ledger) payFromApproved(ctx context.Context, caller models.Principal, id uint64, op string, role func(*models.Project) error) error {
	cfg := l.ConfigSnapshot()
	return l.runPayout(ctx, id, caller, op, func(p *models.Project) (payoutPlan, error) {
		if err := role(p); err != nil {
			return payoutPlan{}, err
		}
		if p.State != models.StateApproved {
			return payoutPlan{}, fmt.Errorf("%w: cannot pay out from state %s", ErrInvalidState, p.State)
		}
		fee := p.Amount * cfg.FeePercent / 100
		return payoutPlan{
			endState:  models.StateCompleted,
			recipient: p.Payee,
			payout:    p.Amount - fee,
			fee:       fee,
			feeTo:     cfg.Owner,
		}, nil
	})
}

// TimeoutWithdraw pays the payee from a funded but never-approved project
// once the grace period has elapsed. Payee only.
func (l *Ledger) TimeoutWithdraw(ctx context.Context, caller models.Principal, id uint64) error {
	cfg := l.ConfigSnapshot()
	return l.runPayout(ctx, id, caller, models.OpTimeoutWithdraw, func(p *models.Project) (payoutPlan, error) {
		if caller != p.Payee {
			return payoutPlan{}, fmt.Errorf("%w: only the payee may withdraw on timeout", ErrUnauthorized)
		}
		if p.State != models.StateFunded {
			return payoutPlan{}, fmt.Errorf("%w: timeout withdraw requires state funded, have %s", ErrInvalidState, p.State)
		}
		deadline := time.Unix(p.CreatedAt, 0).Add(cfg.Timeout)
		if l.now().Before(deadline) {
			return payoutPlan{}, fmt.Errorf("%w: eligible at %s", ErrTimeoutNotReached, deadline.UTC().Format(time.RFC3339))
		}
		fee := p.Amount * cfg.FeePercent / 100
		return payoutPlan{
			endState:  models.StateCompleted,
			recipient: p.Payee,
			payout:    p.Amount - fee,
			fee:       fee,
			feeTo:     cfg.Owner,
		}, nil
	})
}

// Cancel aborts a project. Payer only, from Created or Funded. A funded
// cancellation refunds the full amount to the payer with no fee.
func (l *Ledger) Cancel(ctx context.Context, caller models.Principal, id uint64) error {
	rec, err := l.get(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	if caller != rec.p.Payer {
		rec.mu.Unlock()
		return fmt.Errorf("%w: only the payer may cancel", ErrUnauthorized)
	}
	switch rec.p.State {
	case models.StateCreated:
		// Nothing custodied yet; no refund leg.
		rec.p.State = models.StateCancelled
		snap := rec.p
		rec.mu.Unlock()
		l.commit(ctx, snap, models.Event{
			ProjectID: snap.ID,
			Op:        models.OpCancel,
			Actor:     caller,
			FromState: models.StateCreated,
			ToState:   models.StateCancelled,
			Amount:    snap.Amount,
		})
		return nil
	case models.StateFunded:
		rec.mu.Unlock()
		return l.runPayout(ctx, id, caller, models.OpCancel, func(p *models.Project) (payoutPlan, error) {
			if caller != p.Payer {
				return payoutPlan{}, fmt.Errorf("%w: only the payer may cancel", ErrUnauthorized)
			}
			if p.State != models.StateFunded {
				return payoutPlan{}, fmt.Errorf("%w: cannot cancel from state %s", ErrInvalidState, p.State)
			}
			return payoutPlan{
				endState:  models.StateCancelled,
				recipient: p.Payer,
				payout:    p.Amount,
			}, nil
		})
	default:
		state := rec.p.State
		rec.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel from state %s", ErrInvalidState, state)
	}
}

// ResolveDispute pays the full custodied amount to the chosen winner.
// Arbitrator only, from Disputed. Arbitrated payouts carry no fee.
func (l *Ledger) ResolveDispute(ctx context.Context, caller models.Principal, id uint64, awardToPayee bool) error {
	cfg := l.ConfigSnapshot()
	return l.runPayout(ctx, id, caller, models.OpResolveDispute, func(p *models.Project) (payoutPlan, error) {
		if caller != cfg.Arbitrator {
			return payoutPlan{}, fmt.Errorf("%w: only the arbitrator may resolve disputes", ErrUnauthorized)
		}
		if p.State != models.StateDisputed {
			return payoutPlan{}, fmt.Errorf("%w: cannot resolve from state %s", ErrInvalidState, p.State)
		}
		winner := p.Payer
		if awardToPayee {
			winner = p.Payee
		}
		return payoutPlan{
			endState:  models.StateCompleted,
			recipient: winner,
			payout:    p.Amount,
		}, nil
	})
}

// GetProject returns a read-only snapshot of a project.
func (l *Ledger) GetProject(id uint64) (models.Project, error) {
	rec, err := l.get(id)
	if err != nil {
		return models.Project{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.p, nil
}

// ListProjects returns snapshots of all projects ordered by id.
func (l *Ledger) ListProjects() []models.Project {
	l.mu.RLock()
	recs := make([]*record, 0, len(l.projects))
	for _, rec := range l.projects {
		recs = append(recs, rec)
	}
	l.mu.RUnlock()

	out := make([]models.Project, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.p)
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *Ledger) get(id uint64) (*record, error) {
	l.mu.RLock()
	rec, ok := l.projects[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: project %d", ErrNotFound, id)
	}
	return rec, nil
}

// mutate applies an in-place transition that moves no funds. The apply
// closure runs under the record lock; on success the new snapshot is
// persisted and an event emitted.
func (l *Ledger) mutate(ctx context.Context, id uint64, op string, actor models.Principal, apply func(*models.Project) error) error {
	rec, err := l.get(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	from := rec.p.State
	if err := apply(&rec.p); err != nil {
		rec.mu.Unlock()
		return err
	}
	snap := rec.p
	rec.mu.Unlock()

	l.commit(ctx, snap, models.Event{
		ProjectID: snap.ID,
		Op:        op,
		Actor:     actor,
		FromState: from,
		ToState:   snap.State,
		Amount:    snap.Amount,
	})
	return nil
}

// payoutPlan is the outcome a payout-path transition commits to before the
// treasury is invoked.
type payoutPlan struct {
	endState  models.State
	recipient models.Principal
	payout    uint64
	fee       uint64
	feeTo     models.Principal
}

// runPayout executes a fund-moving transition. The plan closure validates
// preconditions under the record lock and returns the terminal state and
// credit legs. The record is zeroed and moved to the terminal state before
// the treasury call; on transfer failure the staged mutation is rolled back.
func (l *Ledger) runPayout(ctx context.Context, id uint64, actor models.Principal, op string, plan func(*models.Project) (payoutPlan, error)) error {
	rec, err := l.get(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	pl, err := plan(&rec.p)
	if err != nil {
		rec.mu.Unlock()
		return err
	}
	prevState, prevAmount := rec.p.State, rec.p.Amount
	rec.p.Amount = 0
	rec.p.State = pl.endState
	snap := rec.p
	rec.mu.Unlock()

	credits := []treasury.Credit{{To: pl.recipient, Amount: pl.payout}}
	if pl.fee > 0 {
		credits = append(credits, treasury.Credit{To: pl.feeTo, Amount: pl.fee})
	}
	if err := l.treasury.Transfer(ctx, credits...); err != nil {
		rec.mu.Lock()
		rec.p.State = prevState
		rec.p.Amount = prevAmount
		rec.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	l.commit(ctx, snap, models.Event{
		ProjectID: snap.ID,
		Op:        op,
		Actor:     actor,
		FromState: prevState,
		ToState:   snap.State,
		Amount:    prevAmount,
		Recipient: pl.recipient,
		Payout:    pl.payout,
		Fee:       pl.fee,
	})
	return nil
}

// commit persists the snapshot and emits the event. Both are best-effort:
// the in-memory table is authoritative and a storage hiccup must not undo a
// transition whose funds already moved.
func (l *Ledger) commit(ctx context.Context, snap models.Project, ev models.Event) {
	if l.store != nil {
		if err := l.store.SaveProject(ctx, snap); err != nil {
			slog.Error("escrow: failed to persist project snapshot", "project_id", snap.ID, "error", err)
		}
	}
	if l.sink != nil {
		ev.ID = uuid.New().String()
		ev.CreatedAt = l.now().Unix()
		l.sink.Emit(ctx, ev)
	}
}
