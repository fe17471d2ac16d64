package app

import (
	"errors"

	"github.com/calehh/bridge-app/bridge"
	"github.com/calehh/bridge-app/state"
	"github.com/calehh/bridge-app/token"
	"github.com/calehh/bridge-app/tx"
)

const (
	CodeOK uint32 = iota
	CodeInvalidTx
	CodeUnauthorized
	CodeInvalidNonce
	CodeNotFound
	CodeNotOpen
	CodeAlreadyOpen
	CodeCapacityExceeded
	CodeOverflow
	CodeAlreadyVoted
	CodeActionMismatch
	CodeUnknownAction
	CodeInvalidAmount
	CodeExecutionFailed
	CodeInvalidQuery

	CodeInternal    uint32 = 100
	CodeUnknownPath uint32 = 404
)

var (
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrTxValidatorNoexists  = errors.New("validator noexists")
	ErrChainNotInitialized  = errors.New("chain not initialized")
	ErrInvalidQuery         = errors.New("invalid query data")
	ErrUnsupportedQueryPath = errors.New("unsupported query path")
)

// ResultCode maps an error from decoding, authenticating or applying a tx
// to its ABCI result code.
func ResultCode(err error) uint32 {
	var execErr *bridge.ExecutionError
	switch {
	case err == nil:
		return CodeOK
	case errors.As(err, &execErr):
		return CodeExecutionFailed
	case errors.Is(err, tx.ErrInvalidTx),
		errors.Is(err, tx.ErrUnsupportedTxType),
		errors.Is(err, tx.ErrUnsupportedTxVersion),
		errors.Is(err, tx.ErrUnmatchedTxType):
		return CodeInvalidTx
	case errors.Is(err, ErrTxSigInvalid),
		errors.Is(err, ErrTxValidatorNoexists),
		errors.Is(err, bridge.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrInvalidQuery):
		return CodeInvalidQuery
	case errors.Is(err, ErrUnsupportedQueryPath):
		return CodeUnknownPath
	case errors.Is(err, state.ErrTxNonceInvalid):
		return CodeInvalidNonce
	case errors.Is(err, bridge.ErrNotFound), errors.Is(err, state.ErrNoCommittedState):
		return CodeNotFound
	case errors.Is(err, bridge.ErrNotOpen):
		return CodeNotOpen
	case errors.Is(err, bridge.ErrAlreadyOpen):
		return CodeAlreadyOpen
	case errors.Is(err, bridge.ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, bridge.ErrOverflow):
		return CodeOverflow
	case errors.Is(err, bridge.ErrAlreadyVoted):
		return CodeAlreadyVoted
	case errors.Is(err, bridge.ErrActionMismatch):
		return CodeActionMismatch
	case errors.Is(err, bridge.ErrUnknownAction):
		return CodeUnknownAction
	case errors.Is(err, bridge.ErrInvalidAmount), errors.Is(err, token.ErrZeroAmount):
		return CodeInvalidAmount
	}
	return CodeInternal
}
