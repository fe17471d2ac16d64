package app

import (
	"context"

	"github.com/calehh/bridge-app/bridge"
	"github.com/calehh/bridge-app/state"
	"github.com/calehh/bridge-app/tx/handler"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

func (app *BridgeApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{}
	btx, h, err := app.parseTx(check.Tx)
	if err != nil {
		app.logger.Debug("parse tx fail", "err", err)
		res.Code, res.Log = ResultCode(err), err.Error()
		return res, nil
	}
	snap, height, err := app.db.Snapshot(0)
	if err != nil {
		res.Code, res.Log = ResultCode(err), err.Error()
		return res, nil
	}
	// dry run against the committed state; nothing written here survives
	cache := bridge.NewCacheStore(snap)
	// txs queued behind others of the same validator carry later nonces
	signer, err := app.authenticate(cache, btx, true)
	if err != nil {
		app.logger.Debug("check tx auth fail", "type", btx.Type, "validator", btx.Validator, "err", err)
		res.Code, res.Log = ResultCode(err), err.Error()
		return res, nil
	}
	_, err = h.Process(ctx, &handler.Env{Height: height + 1, Engine: app.engine(cache)}, signer, btx)
	if err != nil && !isExecutionError(err) {
		app.logger.Debug("check tx fail", "type", btx.Type, "validator", btx.Validator, "err", err)
		res.Code, res.Log = ResultCode(err), err.Error()
	}
	return res, nil
}

// PrepareProposal drops txs that do not decode or are not signed by a
// registered validator, keeping within the byte limit.
func (app *BridgeApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, raw := range proposal.Txs {
		if err := app.verifyTx(raw); err != nil {
			app.logger.Info("PrepareProposal drop tx", "err", err)
			continue
		}
		if size+int64(len(raw)) > proposal.MaxTxBytes {
			break
		}
		size += int64(len(raw))
		txs = append(txs, raw)
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

// ProcessProposal rejects blocks carrying a tx a correct proposer would
// have dropped. State dependent failures are tx results, not grounds to
// reject the block.
func (app *BridgeApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	for _, raw := range proposal.Txs {
		if err := app.verifyTx(raw); err != nil {
			app.logger.Error("ProcessProposal reject", "height", proposal.Height, "err", err)
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

func (app *BridgeApp) verifyTx(raw []byte) error {
	btx, _, err := app.parseTx(raw)
	if err != nil {
		return err
	}
	if app.registry == nil {
		return ErrChainNotInitialized
	}
	v, ok := app.registry.Get(btx.Validator)
	if !ok {
		return ErrTxValidatorNoexists
	}
	if !btx.VerifySig(v.PubKey, app.chainID) {
		return ErrTxSigInvalid
	}
	return nil
}

// deliverTx applies one tx of a block on its own write buffer. The buffer
// is flushed once the signer is authenticated, so a failing tx still burns
// its nonce while the engine keeps its own writes all or nothing.
func (app *BridgeApp) deliverTx(ctx context.Context, height uint64, raw []byte) *abcitypes.ExecTxResult {
	btx, h, err := app.parseTx(raw)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: ResultCode(err), Log: err.Error()}
	}
	cache := bridge.NewCacheStore(app.db.Store())
	signer, err := app.authenticate(cache, btx, false)
	if err != nil {
		app.logger.Info("deliver tx auth fail", "type", btx.Type, "validator", btx.Validator, "err", err)
		app.metrics.txs.WithLabelValues(btx.Type.String(), codeLabel(ResultCode(err))).Inc()
		return &abcitypes.ExecTxResult{Code: ResultCode(err), Log: err.Error()}
	}
	res, err := h.Process(ctx, &handler.Env{Height: height, Engine: app.engine(cache)}, signer, btx)
	if res == nil {
		res = &abcitypes.ExecTxResult{}
	}
	if err != nil {
		res.Code, res.Log = ResultCode(err), err.Error()
		if !isExecutionError(err) {
			res.Events = nil
		}
	}
	if werr := cache.Write(); werr != nil {
		app.logger.Error("write tx state fail", "err", werr)
		return &abcitypes.ExecTxResult{Code: CodeInternal, Log: werr.Error()}
	}
	app.metrics.txs.WithLabelValues(btx.Type.String(), codeLabel(res.Code)).Inc()
	app.metrics.observeEvents(res.Events)
	return res
}

func (app *BridgeApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	if app.registry == nil {
		return nil, ErrChainNotInitialized
	}
	height := uint64(req.Height)
	app.logger.Info("FinalizeBlock", "height", height, "txs", len(req.Txs))
	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, raw := range req.Txs {
		results[i] = app.deliverTx(ctx, height, raw)
	}

	events, err := app.engine(app.db.Store()).OnBlockFinalize(height)
	if err != nil {
		app.logger.Error("expire proposals fail", "height", height, "err", err)
		app.db.Rollback()
		return nil, err
	}
	app.metrics.observeEvents(events)

	if err = app.db.SetHeader(state.Header{Height: height, ChainID: app.chainID}); err != nil {
		app.db.Rollback()
		return nil, err
	}
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: results,
		AppHash:   app.db.WorkingHash().Bytes(),
		Events:    events,
	}, nil
}

func (app *BridgeApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	hash, err := app.db.Commit()
	if err != nil {
		app.logger.Error("commit fail", "err", err)
		return nil, err
	}
	header := app.db.Header()
	app.metrics.height.Set(float64(header.Height))
	app.logger.Info("Commit", "height", header.Height, "hash", hash.Hex())
	return &abcitypes.ResponseCommit{}, nil
}

func codeLabel(code uint32) string {
	switch code {
	case CodeOK:
		return "ok"
	case CodeExecutionFailed:
		return "execution_failed"
	case CodeInternal:
		return "internal"
	}
	return "rejected"
}
