package models

// Principal is an opaque, externally-authenticated identity.
// The escrow core treats it as an equality-comparable token and nothing more.
type Principal string

// State is the lifecycle state of a Project.
type State string

const (
	StateCreated   State = "created"
	StateFunded    State = "funded"
	StateApproved  State = "approved"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
	StateDisputed  State = "disputed"
)

// Terminal reports whether no further transitions are accepted from s.
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateCompleted
}

// Project is a single escrow agreement. Payer and Payee are fixed at
// creation; Amount is mutable only pre-funding and is zeroed exactly once
// when funds leave custody.
type Project struct {
	// ID is a monotonically increasing identifier, never reused.
	ID uint64

	// Payer funds the project and approves completed work.
	Payer Principal

	// Payee receives the payout.
	Payee Principal

	// Amount is the custodied sum in the smallest indivisible unit.
	// Invariant: Amount == 0 exactly when funds have left custody
	// (completed, or cancelled after funding with the refund issued).
	Amount uint64

	// State is the current lifecycle state.
	State State

	// Title and Description are opaque display-only text, set at creation.
	Title       string
	Description string

	// CreatedAt is the Unix timestamp when the project was created.
	// Used only to compute the timeout-withdraw deadline.
	CreatedAt int64
}
