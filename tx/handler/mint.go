package handler

import (
	"context"
	"fmt"

	"github.com/calehh/bridge-app/tx"
	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type MintTxHandler struct {
	logger cmtlog.Logger
}

func NewMintTxHandler(logger cmtlog.Logger) *MintTxHandler {
	return &MintTxHandler{logger: logger.With("module", "mintTx")}
}

func (h *MintTxHandler) body(btx *tx.BridgeTx) (*tx.MintTx, error) {
	mtx, ok := btx.Tx.(*tx.MintTx)
	if !ok {
		return nil, fmt.Errorf("%w: %T", tx.ErrUnmatchedTxType, btx.Tx)
	}
	return mtx, nil
}

func (h *MintTxHandler) Validate(btx *tx.BridgeTx) error {
	mtx, err := h.body(btx)
	if err != nil {
		return err
	}
	if len(mtx.EventID) == 0 {
		return fmt.Errorf("%w: empty event id", tx.ErrInvalidTx)
	}
	_, err = tx.ParseAmount(mtx.Amount)
	return err
}

func (h *MintTxHandler) Process(ctx context.Context, env *Env, signer types.Validator, btx *tx.BridgeTx) (*abcitypes.ExecTxResult, error) {
	mtx, err := h.body(btx)
	if err != nil {
		return nil, err
	}
	amount, err := tx.ParseAmount(mtx.Amount)
	if err != nil {
		return nil, err
	}
	rcpt, err := env.Engine.RequestMint(env.Height, signer.Account, mtx.EventID, mtx.Origin, mtx.Recipient, amount)
	if err != nil {
		h.logger.Debug("mint attestation fail", "validator", signer.ID, "err", err)
	}
	return receiptResult(rcpt), err
}
