package handler

import (
	"context"
	"fmt"

	"github.com/calehh/bridge-app/tx"
	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type VoteTxHandler struct {
	logger cmtlog.Logger
}

func NewVoteTxHandler(logger cmtlog.Logger) *VoteTxHandler {
	return &VoteTxHandler{logger: logger.With("module", "voteTx")}
}

func (h *VoteTxHandler) Validate(btx *tx.BridgeTx) error {
	vtx, ok := btx.Tx.(*tx.VoteTx)
	if !ok {
		return fmt.Errorf("%w: %T", tx.ErrUnmatchedTxType, btx.Tx)
	}
	if vtx.Proposal == 0 {
		return fmt.Errorf("%w: proposal ids start at 1", tx.ErrInvalidTx)
	}
	return nil
}

func (h *VoteTxHandler) Process(ctx context.Context, env *Env, signer types.Validator, btx *tx.BridgeTx) (*abcitypes.ExecTxResult, error) {
	if err := h.Validate(btx); err != nil {
		return nil, err
	}
	vtx := btx.Tx.(*tx.VoteTx)
	rcpt, err := env.Engine.CastVote(env.Height, signer.Account, vtx.Proposal, vtx.Assent)
	if err != nil {
		h.logger.Debug("vote fail", "validator", signer.ID, "proposal", vtx.Proposal, "err", err)
	}
	return receiptResult(rcpt), err
}
