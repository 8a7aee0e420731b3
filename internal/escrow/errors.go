package escrow

import (
	"errors"
	"fmt"
)

// Sentinel errors for every precondition a ledger operation can fail on.
// Operations return these unwrapped (or wrapped with context via %w) so
// callers can branch with errors.Is; nothing in this package panics or
// returns partial results.
var (
	ErrInvalidParty      = errors.New("invalid party")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidState      = errors.New("operation not valid in current state")
	ErrUnauthorized      = errors.New("caller lacks the required role")
	ErrNotFound          = errors.New("project not found")
	ErrTransferFailed    = errors.New("value transfer failed")
	ErrTimeoutNotReached = errors.New("timeout not reached")
)

// ErrAmountMismatch rejects partial or over-funding. It wraps
// ErrInvalidAmount so generic invalid-amount handling still matches.
var ErrAmountMismatch = fmt.Errorf("%w: funding value must equal the custodied amount", ErrInvalidAmount)
