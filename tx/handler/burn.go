package handler

import (
	"context"
	"fmt"

	"github.com/calehh/bridge-app/tx"
	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type BurnTxHandler struct {
	logger cmtlog.Logger
}

func NewBurnTxHandler(logger cmtlog.Logger) *BurnTxHandler {
	return &BurnTxHandler{logger: logger.With("module", "burnTx")}
}

func (h *BurnTxHandler) body(btx *tx.BridgeTx) (*tx.BurnTx, error) {
	btxBody, ok := btx.Tx.(*tx.BurnTx)
	if !ok {
		return nil, fmt.Errorf("%w: %T", tx.ErrUnmatchedTxType, btx.Tx)
	}
	return btxBody, nil
}

func (h *BurnTxHandler) Validate(btx *tx.BridgeTx) error {
	body, err := h.body(btx)
	if err != nil {
		return err
	}
	if len(body.EventID) == 0 {
		return fmt.Errorf("%w: empty event id", tx.ErrInvalidTx)
	}
	if len(body.Destination) == 0 {
		return fmt.Errorf("%w: empty destination", tx.ErrInvalidTx)
	}
	_, err = tx.ParseAmount(body.Amount)
	return err
}

func (h *BurnTxHandler) Process(ctx context.Context, env *Env, signer types.Validator, btx *tx.BridgeTx) (*abcitypes.ExecTxResult, error) {
	body, err := h.body(btx)
	if err != nil {
		return nil, err
	}
	amount, err := tx.ParseAmount(body.Amount)
	if err != nil {
		return nil, err
	}
	rcpt, err := env.Engine.RequestBurn(env.Height, signer.Account, body.EventID, body.Destination, body.Holder, amount)
	if err != nil {
		h.logger.Debug("burn attestation fail", "validator", signer.ID, "err", err)
	}
	return receiptResult(rcpt), err
}
