package models

// Event operation names, one per ledger transition.
const (
	OpCreate          = "create"
	OpUpdateAmount    = "update_amount"
	OpFund            = "fund"
	OpApprove         = "approve"
	OpRelease         = "release"
	OpWithdraw        = "withdraw"
	OpTimeoutWithdraw = "timeout_withdraw"
	OpCancel          = "cancel"
	OpFlagDispute     = "flag_dispute"
	OpResolveDispute  = "resolve_dispute"
)

// Event is an append-only audit record of one successful state transition.
// Every transition emits exactly one event; failed operations emit none.
type Event struct {
	// ID is the unique identifier for the event (UUID format).
	ID string

	// ProjectID is the project the transition applied to.
	ProjectID uint64

	// Op is one of the Op* constants above.
	Op string

	// Actor is the principal that invoked the operation.
	Actor Principal

	// FromState and ToState bracket the transition.
	FromState State
	ToState   State

	// Amount is the custodied amount at the time of the transition.
	Amount uint64

	// Recipient is the principal paid out, if the transition moved funds.
	Recipient Principal

	// Payout and Fee record the fee split for payout transitions.
	// Payout + Fee == Amount when Recipient is set.
	Payout uint64
	Fee    uint64

	// CreatedAt is the Unix timestamp when the event was recorded.
	CreatedAt int64
}
