package rpc

import (
	"errors"

	"github.com/escrowlabs/escrowd/internal/auth"
	"github.com/escrowlabs/escrowd/internal/escrow"
)

// Service error codes, one per domain error kind. Protocol-level codes
// (-32700, -32600, -32601, -32602) follow the JSON-RPC 2.0 spec.
const (
	codeInternal          = -32000
	codeInvalidParty      = -32001
	codeInvalidAmount     = -32002
	codeInvalidState      = -32003
	codeUnauthorized      = -32004
	codeNotFound          = -32005
	codeTransferFailed    = -32006
	codeTimeoutNotReached = -32007
	codeAuthFailed        = -32010
	codeRateLimited       = -32011
)

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params"}
}

// mapServiceError translates a domain error into a JSON-RPC error object.
func mapServiceError(err error) *rpcError {
	switch {
	case errors.Is(err, escrow.ErrInvalidParty):
		return &rpcError{Code: codeInvalidParty, Message: err.Error()}
	case errors.Is(err, escrow.ErrInvalidAmount):
		return &rpcError{Code: codeInvalidAmount, Message: err.Error()}
	case errors.Is(err, escrow.ErrInvalidState):
		return &rpcError{Code: codeInvalidState, Message: err.Error()}
	case errors.Is(err, escrow.ErrUnauthorized):
		return &rpcError{Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, escrow.ErrNotFound):
		return &rpcError{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, escrow.ErrTransferFailed):
		return &rpcError{Code: codeTransferFailed, Message: err.Error()}
	case errors.Is(err, escrow.ErrTimeoutNotReached):
		return &rpcError{Code: codeTimeoutNotReached, Message: err.Error()}
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrEmailExists),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		return &rpcError{Code: codeAuthFailed, Message: err.Error()}
	default:
		return &rpcError{Code: codeInternal, Message: err.Error()}
	}
}
