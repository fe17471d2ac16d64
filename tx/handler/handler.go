package handler

import (
	"context"

	"github.com/calehh/bridge-app/bridge"
	"github.com/calehh/bridge-app/tx"
	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

// Env is what a tx executes against: the block height and an engine over
// the tx's own write buffer.
type Env struct {
	Height uint64
	Engine *bridge.Engine
}

type TxHandler interface {
	// Validate checks the body without touching state.
	Validate(btx *tx.BridgeTx) error
	// Process applies an authenticated tx. The result carries the events
	// even when err is an *bridge.ExecutionError.
	Process(ctx context.Context, env *Env, signer types.Validator, btx *tx.BridgeTx) (res *abcitypes.ExecTxResult, err error)
}

func receiptResult(rcpt bridge.Receipt) *abcitypes.ExecTxResult {
	return &abcitypes.ExecTxResult{Events: rcpt.Events}
}
