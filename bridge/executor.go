package bridge

import (
	"fmt"

	"github.com/calehh/bridge-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger is the token ledger that accepted proposals are applied to.
type Ledger interface {
	Mint(token uint64, account common.Address, amount *uint256.Int) error
	Burn(token uint64, account common.Address, amount *uint256.Int) error
}

// StoreLedger is a Ledger kept in a Store. The engine rebinds it to the
// write buffer of the running step, so its writes stand or fall with the
// proposal transition.
type StoreLedger interface {
	Ledger
	WithStore(s Store) Ledger
}

// Execute applies action to ledger. Every Action implementation has a case
// here; an unknown one is an error, never a silent success.
func Execute(ledger Ledger, action types.Action) error {
	switch a := action.(type) {
	case types.MintRequest:
		return ledger.Mint(a.Token, a.Account, a.Amount)
	case types.BurnRequest:
		return ledger.Burn(a.Token, a.Account, a.Amount)
	case types.EmptyAction:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}
