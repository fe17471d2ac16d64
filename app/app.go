package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/calehh/bridge-app/bridge"
	"github.com/calehh/bridge-app/config"
	"github.com/calehh/bridge-app/state"
	"github.com/calehh/bridge-app/token"
	"github.com/calehh/bridge-app/tx"
	"github.com/calehh/bridge-app/tx/handler"
	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

const AppVersion uint64 = 1

var _ abcitypes.Application = &BridgeApp{}

// BridgeApp is the ABCI application. All consensus calls are serialized by
// CometBFT; the registry and params are fixed once InitChain ran.
type BridgeApp struct {
	logger cmtlog.Logger

	db       *state.StateDB
	registry *bridge.Registry
	params   types.Params
	chainID  string

	txHdlrs  map[tx.BridgeTxType]handler.TxHandler
	queriers map[string]Querier
	metrics  *Metrics
}

func NewBridgeApp(cfg *config.AppConfig, logger cmtlog.Logger, reg prometheus.Registerer) (*BridgeApp, error) {
	db, err := state.NewStateDB(cfg.DataDir(), logger)
	if err != nil {
		return nil, err
	}
	return NewBridgeAppWithDB(db, logger, NewMetrics(reg))
}

func NewBridgeAppWithDB(db *state.StateDB, logger cmtlog.Logger, metrics *Metrics) (app *BridgeApp, err error) {
	logger = logger.With("module", "app")
	app = &BridgeApp{
		logger:   logger,
		db:       db,
		metrics:  metrics,
		txHdlrs:  make(map[tx.BridgeTxType]handler.TxHandler),
		queriers: make(map[string]Querier),
	}
	app.registerTxHandler()
	app.registerQuerier()

	header := db.Header()
	if header.Height > 0 {
		if err = app.loadBridge(db.Store()); err != nil {
			logger.Error("load bridge state fail", "err", err)
			return nil, err
		}
		app.chainID = header.ChainID
		metrics.height.Set(float64(header.Height))
	}
	return app, nil
}

func (app *BridgeApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("bridge app stopped")
}

func (app *BridgeApp) registerTxHandler() {
	app.txHdlrs = map[tx.BridgeTxType]handler.TxHandler{
		tx.BridgeTxTypeMint: handler.NewMintTxHandler(app.logger),
		tx.BridgeTxTypeBurn: handler.NewBurnTxHandler(app.logger),
		tx.BridgeTxTypeVote: handler.NewVoteTxHandler(app.logger),
	}
}

func (app *BridgeApp) registerQuerier() {
	app.queriers = map[string]Querier{
		"/proposals/":  &ProposalQuerier{},
		"/validators/": &ValidatorQuerier{},
		"/params/":     &ParamsQuerier{},
		"/dedup/":      &DedupQuerier{},
		"/deadlines/":  &DeadlineQuerier{},
		"/balances/":   &BalanceQuerier{app: app},
		"/supply/":     &SupplyQuerier{app: app},
		"/nonces/":     &NonceQuerier{},
	}
}

func (app *BridgeApp) loadBridge(s bridge.Store) (err error) {
	app.registry, err = bridge.LoadRegistry(s)
	if err != nil {
		return err
	}
	app.params, err = bridge.LoadParams(s)
	return err
}

// engine builds an engine whose every write, ledger included, goes to s.
func (app *BridgeApp) engine(s bridge.Store) *bridge.Engine {
	return bridge.NewEngine(s, app.registry, app.params, token.NewLedger(s), app.logger)
}

// genesisValidators resolves the bridge validator set: the explicit list
// of app_state when present, the consensus validators otherwise.
func genesisValidators(gen types.BridgeGenesis, updates []abcitypes.ValidatorUpdate) ([]types.Validator, error) {
	var vals []types.Validator
	if len(gen.Validators) > 0 {
		for i, v := range gen.Validators {
			if len(v.PubKey) != ed25519.PubKeySize {
				return nil, fmt.Errorf("genesis validator %d: bad ed25519 key length %d", i, len(v.PubKey))
			}
			pk := ed25519.PubKey(v.PubKey)
			vals = append(vals, types.Validator{Account: common.BytesToAddress(pk.Address()), PubKey: pk, Name: v.Name})
		}
		return vals, nil
	}
	for i, u := range updates {
		raw := u.PubKey.GetEd25519()
		if len(raw) != ed25519.PubKeySize {
			return nil, fmt.Errorf("consensus validator %d: only ed25519 keys are supported", i)
		}
		pk := ed25519.PubKey(raw)
		vals = append(vals, types.Validator{Account: common.BytesToAddress(pk.Address()), PubKey: pk})
	}
	return vals, nil
}

func (app *BridgeApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	gen, err := types.ParseBridgeGenesis(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app state fail", "err", err)
		return nil, err
	}
	vals, err := genesisValidators(gen, chain.Validators)
	if err != nil {
		return nil, err
	}
	params := gen.Params
	if params.ValidatorCount == 0 {
		params.ValidatorCount = uint64(len(vals))
	}
	s := app.db.Store()
	registry, err := bridge.InitRegistry(s, params.ValidatorCount, vals)
	if err != nil {
		app.logger.Error("InitChain init registry fail", "err", err)
		return nil, err
	}
	if err = bridge.InitParams(s, params); err != nil {
		app.logger.Error("InitChain init params fail", "err", err)
		return nil, err
	}
	var height uint64
	if chain.InitialHeight > 1 {
		height = uint64(chain.InitialHeight - 1)
	}
	if err = app.db.SetHeader(state.Header{Height: height, ChainID: chain.ChainId}); err != nil {
		return nil, err
	}
	app.registry, app.params, app.chainID = registry, params, chain.ChainId
	app.logger.Info("InitChain", "chain", chain.ChainId, "validators", registry.Count(), "votingPeriod", params.VotingPeriod)
	return &abcitypes.ResponseInitChain{
		AppHash: app.db.WorkingHash().Bytes(),
	}, nil
}

func (app *BridgeApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	res := &abcitypes.ResponseInfo{
		Data:            "bridge",
		AppVersion:      AppVersion,
		LastBlockHeight: int64(header.Height),
	}
	if header.Height > 0 {
		res.LastBlockAppHash = header.Hash.Bytes()
	}
	return res, nil
}

// authenticate resolves the signer of btx and consumes its nonce in s.
func (app *BridgeApp) authenticate(s bridge.Store, btx *tx.BridgeTx, allowNonceGap bool) (types.Validator, error) {
	if app.registry == nil {
		return types.Validator{}, ErrChainNotInitialized
	}
	v, ok := app.registry.Get(btx.Validator)
	if !ok {
		return v, fmt.Errorf("%w: %d", ErrTxValidatorNoexists, btx.Validator)
	}
	if !btx.VerifySig(v.PubKey, app.chainID) {
		return v, ErrTxSigInvalid
	}
	if err := state.UseNonce(s, v.ID, btx.Nonce, allowNonceGap); err != nil {
		return v, err
	}
	return v, nil
}

// parseTx decodes and statically checks raw, returning its handler.
func (app *BridgeApp) parseTx(raw []byte) (*tx.BridgeTx, handler.TxHandler, error) {
	btx, err := tx.UnmarshalBridgeTx(raw)
	if err != nil {
		return nil, nil, err
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", tx.ErrUnsupportedTxType, btx.Type)
	}
	if err = h.Validate(btx); err != nil {
		return nil, nil, err
	}
	return btx, h, nil
}

func isExecutionError(err error) bool {
	var execErr *bridge.ExecutionError
	return errors.As(err, &execErr)
}

func (app *BridgeApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *BridgeApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *BridgeApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *BridgeApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *BridgeApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *BridgeApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
