package bridge

import (
	"errors"
	"fmt"

	"github.com/calehh/bridge-app/types"
)

var (
	ErrNotFound         = errors.New("proposal not found")
	ErrNotOpen          = errors.New("proposal is not open")
	ErrAlreadyOpen      = errors.New("proposal already open")
	ErrCapacityExceeded = errors.New("maximum number of open proposals is reached for the target block, try later")
	ErrOverflow         = errors.New("overflow")
	ErrUnauthorized     = errors.New("caller is not a validator")
	ErrAlreadyVoted     = errors.New("validator already voted")
	ErrActionMismatch   = errors.New("attested action differs from the open proposal")
	ErrUnknownAction    = errors.New("unknown action")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrNoParams         = errors.New("bridge params not initialized")
)

// ExecutionError reports an accepted proposal whose action could not be
// applied. The proposal is closed regardless; the record keeps
// Executed=false so it can be reconciled out of band.
type ExecutionError struct {
	Proposal uint64
	Kind     types.ActionKind
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("proposal %d accepted but %s execution failed: %v", e.Proposal, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
