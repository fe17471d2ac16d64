package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/calehh/bridge-app/bridge"
	"github.com/calehh/bridge-app/state"
	"github.com/calehh/bridge-app/token"
	"github.com/calehh/bridge-app/tx"
	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const testChainID = "bridge-test"

var holder = common.HexToAddress("0x3333333333333333333333333333333333333333")

type testChain struct {
	t      *testing.T
	app    *BridgeApp
	keys   []ed25519.PrivKey
	nonces []uint64
	height int64
}

func newTestChain(t *testing.T, n int, modify ...func(p *types.Params)) *testChain {
	t.Helper()
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	app, err := NewBridgeAppWithDB(db, cmtlog.NewNopLogger(), NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	c := &testChain{t: t, app: app, nonces: make([]uint64, n)}
	c.initChain(n, modify...)
	return c
}

func (c *testChain) initChain(n int, modify ...func(p *types.Params)) {
	updates := make([]abcitypes.ValidatorUpdate, n)
	for i := 0; i < n; i++ {
		key := ed25519.GenPrivKey()
		c.keys = append(c.keys, key)
		updates[i] = abcitypes.Ed25519ValidatorUpdate(key.PubKey().Bytes(), types.DefaultPower)
	}
	gen := types.DefaultBridgeGenesis()
	gen.Params.ValidatorCount = uint64(n)
	for _, m := range modify {
		m(&gen.Params)
	}
	appState, err := json.Marshal(gen)
	require.NoError(c.t, err)
	res, err := c.app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		ChainId:       testChainID,
		Validators:    updates,
		AppStateBytes: appState,
		InitialHeight: 1,
	})
	require.NoError(c.t, err)
	require.Len(c.t, res.AppHash, common.HashLength)
}

func (c *testChain) signedTx(validator int, body any) []byte {
	c.t.Helper()
	btx, err := tx.NewBridgeTx(uint64(validator), c.nonces[validator], body)
	require.NoError(c.t, err)
	require.NoError(c.t, btx.Sign(c.keys[validator], testChainID))
	c.nonces[validator]++
	raw, err := tx.MarshalBridgeTx(btx)
	require.NoError(c.t, err)
	return raw
}

func (c *testChain) block(txs ...[]byte) *abcitypes.ResponseFinalizeBlock {
	c.t.Helper()
	c.height++
	res, err := c.app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{Height: c.height, Txs: txs})
	require.NoError(c.t, err)
	_, err = c.app.Commit(context.Background(), &abcitypes.RequestCommit{})
	require.NoError(c.t, err)
	return res
}

func (c *testChain) query(path, data string, out any) uint32 {
	c.t.Helper()
	res, err := c.app.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: []byte(data)})
	require.NoError(c.t, err)
	if res.Code == CodeOK && out != nil {
		require.NoError(c.t, json.Unmarshal(res.Value, out))
	}
	return res.Code
}

func mintBody(event string, amount string) *tx.MintTx {
	return &tx.MintTx{EventID: []byte(event), Origin: []byte("foreign-origin"), Recipient: holder, Amount: amount}
}

func burnBody(event string, amount string) *tx.BurnTx {
	return &tx.BurnTx{EventID: []byte(event), Destination: []byte("foreign-dest"), Holder: holder, Amount: amount}
}

func codes(res *abcitypes.ResponseFinalizeBlock) []uint32 {
	out := make([]uint32, len(res.TxResults))
	for i, r := range res.TxResults {
		out[i] = r.Code
	}
	return out
}

func hasEvent(events []abcitypes.Event, tp string) bool {
	for _, ev := range events {
		if ev.Type == tp {
			return true
		}
	}
	return false
}

func TestMintFlow(t *testing.T) {
	c := newTestChain(t, 3)
	c.block()

	res := c.block(
		c.signedTx(0, mintBody("evt-1", "500")),
		c.signedTx(1, mintBody("evt-1", "500")),
	)
	require.Equal(t, []uint32{CodeOK, CodeOK}, codes(res))
	require.True(t, hasEvent(res.TxResults[0].Events, types.EventMintProposedType))
	require.True(t, hasEvent(res.TxResults[1].Events, types.EventProposalAcceptedType))

	var bal Balance
	require.Equal(t, CodeOK, c.query("/balances/", holder.Hex(), &bal))
	require.Equal(t, "500", bal.Balance)

	var supply Supply
	require.Equal(t, CodeOK, c.query("/supply", "", &supply))
	require.Equal(t, "500", supply.Supply)
	require.Equal(t, "BRG", supply.Symbol)

	var p types.Proposal
	require.Equal(t, CodeOK, c.query("/proposals/", "1", &p))
	require.Equal(t, types.ProposalStatusAccepted, p.Status)
	require.True(t, p.Executed)
	require.Equal(t, []byte("foreign-origin"), p.Foreign)

	var count ProposalCount
	require.Equal(t, CodeOK, c.query("/proposals/", "", &count))
	require.Equal(t, uint64(1), count.Count)

	var entry DedupEntry
	require.Equal(t, CodeOK, c.query("/dedup/", "mint/0x"+common.Bytes2Hex([]byte("evt-1")), &entry))
	require.False(t, entry.Open)

	// the proposal closed with the second attestation
	res = c.block(c.signedTx(2, &tx.VoteTx{Proposal: 1, Assent: true}))
	require.Equal(t, []uint32{CodeNotOpen}, codes(res))

	require.Equal(t, float64(1), testutil.ToFloat64(c.app.metrics.proposals.WithLabelValues("accepted")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.app.metrics.proposals.WithLabelValues("created")))
}

func TestRejectedByDissent(t *testing.T) {
	c := newTestChain(t, 3)
	c.block()
	res := c.block(
		c.signedTx(0, mintBody("evt", "9")),
		c.signedTx(1, &tx.VoteTx{Proposal: 1, Assent: false}),
		c.signedTx(2, &tx.VoteTx{Proposal: 1, Assent: false}),
	)
	require.Equal(t, []uint32{CodeOK, CodeOK, CodeOK}, codes(res))
	require.True(t, hasEvent(res.TxResults[2].Events, types.EventProposalRejectedType))

	var p types.Proposal
	require.Equal(t, CodeOK, c.query("/proposals/", "1", &p))
	require.Equal(t, types.ProposalStatusRejected, p.Status)

	var bal Balance
	require.Equal(t, CodeOK, c.query("/balances/", holder.Hex(), &bal))
	require.Equal(t, "0", bal.Balance)
}

func TestTxFailures(t *testing.T) {
	c := newTestChain(t, 3)
	c.block()

	forged, err := tx.NewBridgeTx(1, c.nonces[1], mintBody("evt", "1"))
	require.NoError(t, err)
	require.NoError(t, forged.Sign(c.keys[0], testChainID))
	forgedRaw, err := tx.MarshalBridgeTx(forged)
	require.NoError(t, err)

	stranger, err := tx.NewBridgeTx(9, 0, mintBody("evt", "1"))
	require.NoError(t, err)
	require.NoError(t, stranger.Sign(ed25519.GenPrivKey(), testChainID))
	strangerRaw, err := tx.MarshalBridgeTx(stranger)
	require.NoError(t, err)

	first := c.signedTx(0, mintBody("evt", "1"))
	dup := c.signedTx(0, mintBody("evt", "1"))
	c.nonces[0] = 0
	replayed := c.signedTx(0, mintBody("evt", "1"))

	res := c.block(
		[]byte("garbage"),
		forgedRaw,
		strangerRaw,
		first,
		dup,
		replayed,
		c.signedTx(1, mintBody("evt", "2")),
		c.signedTx(2, mintBody("other", "0")),
	)
	require.Equal(t, []uint32{
		CodeInvalidTx,
		CodeUnauthorized,
		CodeUnauthorized,
		CodeOK,
		CodeAlreadyVoted,
		CodeInvalidNonce,
		CodeActionMismatch,
		CodeInvalidAmount,
	}, codes(res))

	var nonce uint64
	require.Equal(t, CodeOK, c.query("/nonces/", "0", &nonce))
	require.Equal(t, uint64(2), nonce)
	require.Equal(t, CodeOK, c.query("/nonces/", "1", &nonce))
	require.Equal(t, uint64(1), nonce)

	var p types.Proposal
	require.Equal(t, CodeOK, c.query("/proposals/", "1", &p))
	require.Equal(t, uint64(1), p.Votes)
	require.True(t, p.Open)
}

func TestExpiry(t *testing.T) {
	c := newTestChain(t, 3, func(p *types.Params) { p.VotingPeriod = 2 })
	c.block()
	c.block(c.signedTx(0, mintBody("evt", "5")))

	var ids []uint64
	require.Equal(t, CodeOK, c.query("/deadlines/", "4", &ids))
	require.Equal(t, []uint64{1}, ids)

	res := c.block()
	require.Empty(t, res.Events)
	res = c.block()
	require.True(t, hasEvent(res.Events, types.EventProposalExpiredType))

	var p types.Proposal
	require.Equal(t, CodeOK, c.query("/proposals/", "1", &p))
	require.Equal(t, types.ProposalStatusExpired, p.Status)
	require.Equal(t, CodeOK, c.query("/deadlines/", "4", &ids))
	require.Empty(t, ids)

	res = c.block(c.signedTx(1, &tx.VoteTx{Proposal: 1, Assent: true}))
	require.Equal(t, []uint32{CodeNotOpen}, codes(res))
	require.Equal(t, float64(1), testutil.ToFloat64(c.app.metrics.proposals.WithLabelValues("expired")))
}

func TestBurnExecutionFailure(t *testing.T) {
	c := newTestChain(t, 3)
	c.block()
	res := c.block(
		c.signedTx(0, burnBody("evt", "10")),
		c.signedTx(1, burnBody("evt", "10")),
	)
	require.Equal(t, []uint32{CodeOK, CodeExecutionFailed}, codes(res))
	require.True(t, hasEvent(res.TxResults[1].Events, types.EventExecutionFailedType))

	var p types.Proposal
	require.Equal(t, CodeOK, c.query("/proposals/", "1", &p))
	require.Equal(t, types.ProposalStatusAccepted, p.Status)
	require.False(t, p.Open)
	require.False(t, p.Executed)
	require.NotEmpty(t, p.ExecError)
	require.Equal(t, float64(1), testutil.ToFloat64(c.app.metrics.executionFailures))

	// with a balance the same event can be attested again and burn
	res = c.block(c.signedTx(0, mintBody("m", "15")), c.signedTx(1, mintBody("m", "15")))
	require.Equal(t, []uint32{CodeOK, CodeOK}, codes(res))
	res = c.block(c.signedTx(0, burnBody("evt", "10")), c.signedTx(2, burnBody("evt", "10")))
	require.Equal(t, []uint32{CodeOK, CodeOK}, codes(res))

	var bal Balance
	require.Equal(t, CodeOK, c.query("/balances/", holder.Hex(), &bal))
	require.Equal(t, "5", bal.Balance)
}

func TestCheckTx(t *testing.T) {
	c := newTestChain(t, 3)
	raw := c.signedTx(0, mintBody("evt", "1"))

	res, err := c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: raw})
	require.NoError(t, err)
	require.Equal(t, CodeNotFound, res.Code)

	c.block()
	res, err = c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: raw})
	require.NoError(t, err)
	require.Equal(t, CodeOK, res.Code)

	// a later nonce waits in the mempool
	ahead := c.signedTx(0, mintBody("evt2", "1"))
	res, err = c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: ahead})
	require.NoError(t, err)
	require.Equal(t, CodeOK, res.Code)

	res, err = c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: []byte(`{"type":3}`)})
	require.NoError(t, err)
	require.Equal(t, CodeInvalidTx, res.Code)

	c.block(raw)
	res, err = c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: raw, Type: abcitypes.CheckTxType_Recheck})
	require.NoError(t, err)
	require.Equal(t, CodeInvalidNonce, res.Code)

	res, err = c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: c.signedTx(0, mintBody("evt", "1"))})
	require.NoError(t, err)
	require.Equal(t, CodeAlreadyVoted, res.Code)
	res, err = c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: c.signedTx(1, &tx.VoteTx{Proposal: 1, Assent: true})})
	require.NoError(t, err)
	require.Equal(t, CodeOK, res.Code)
}

func TestPrepareAndProcessProposal(t *testing.T) {
	c := newTestChain(t, 3)
	good := c.signedTx(0, mintBody("evt", "1"))
	bad := []byte("garbage")

	prep, err := c.app.PrepareProposal(context.Background(), &abcitypes.RequestPrepareProposal{
		Txs:        [][]byte{bad, good},
		MaxTxBytes: 1 << 20,
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{good}, prep.Txs)

	prep, err = c.app.PrepareProposal(context.Background(), &abcitypes.RequestPrepareProposal{
		Txs:        [][]byte{good},
		MaxTxBytes: int64(len(good) - 1),
	})
	require.NoError(t, err)
	require.Empty(t, prep.Txs)

	proc, err := c.app.ProcessProposal(context.Background(), &abcitypes.RequestProcessProposal{Txs: [][]byte{good}})
	require.NoError(t, err)
	require.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, proc.Status)
	proc, err = c.app.ProcessProposal(context.Background(), &abcitypes.RequestProcessProposal{Txs: [][]byte{good, bad}})
	require.NoError(t, err)
	require.Equal(t, abcitypes.ResponseProcessProposal_REJECT, proc.Status)
}

func TestQueryErrors(t *testing.T) {
	c := newTestChain(t, 3)
	require.Equal(t, CodeNotFound, c.query("/proposals/", "1", nil))

	c.block()
	require.Equal(t, CodeUnknownPath, c.query("/nothing/", "", nil))
	require.Equal(t, CodeNotFound, c.query("/proposals/", "1", nil))
	require.Equal(t, CodeInvalidQuery, c.query("/proposals/", "one", nil))
	require.Equal(t, CodeInvalidQuery, c.query("/balances/", "nope", nil))
	require.Equal(t, CodeInvalidQuery, c.query("/dedup/", "swap/0x01", nil))
	require.Equal(t, CodeNotFound, c.query("/validators/", "7", nil))

	var vals []types.Validator
	require.Equal(t, CodeOK, c.query("/validators/", "", &vals))
	require.Len(t, vals, 3)
	require.Equal(t, common.BytesToAddress(c.keys[1].PubKey().Address()), vals[1].Account)

	var params types.Params
	require.Equal(t, CodeOK, c.query("/params/", "", &params))
	require.Equal(t, uint64(3), params.ValidatorCount)
	require.Equal(t, uint64(types.DefaultVotingPeriod), params.VotingPeriod)
}

func TestInitChainErrors(t *testing.T) {
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	app, err := NewBridgeAppWithDB(db, cmtlog.NewNopLogger(), NewMetrics(nil))
	require.NoError(t, err)

	_, err = app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{Height: 1})
	require.ErrorIs(t, err, ErrChainNotInitialized)

	// default genesis expects three validators
	key := ed25519.GenPrivKey()
	_, err = app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		ChainId:    testChainID,
		Validators: []abcitypes.ValidatorUpdate{abcitypes.Ed25519ValidatorUpdate(key.PubKey().Bytes(), 1)},
	})
	require.ErrorIs(t, err, bridge.ErrValidatorCountMismatch)
}

func TestGenesisValidatorList(t *testing.T) {
	keys := []ed25519.PrivKey{ed25519.GenPrivKey(), ed25519.GenPrivKey()}
	gen := types.DefaultBridgeGenesis()
	gen.Params.ValidatorCount = 0
	for i, k := range keys {
		gen.Validators = append(gen.Validators, types.GenesisBridgeValidator{PubKey: k.PubKey().Bytes(), Name: string(rune('a' + i))})
	}
	vals, err := genesisValidators(gen, nil)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	require.Equal(t, "b", vals[1].Name)

	gen.Validators[0].PubKey = []byte{1, 2, 3}
	_, err = genesisValidators(gen, nil)
	require.Error(t, err)
}

func TestRestart(t *testing.T) {
	dir := t.TempDir()
	db, err := state.NewStateDB(dir, cmtlog.NewNopLogger())
	require.NoError(t, err)
	app, err := NewBridgeAppWithDB(db, cmtlog.NewNopLogger(), NewMetrics(nil))
	require.NoError(t, err)
	c := &testChain{t: t, app: app, nonces: make([]uint64, 3)}
	c.initChain(3)
	c.block()
	c.block(c.signedTx(0, mintBody("evt", "3")))
	info, err := app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	app.Stop()

	db, err = state.NewStateDB(dir, cmtlog.NewNopLogger())
	require.NoError(t, err)
	restarted, err := NewBridgeAppWithDB(db, cmtlog.NewNopLogger(), NewMetrics(nil))
	require.NoError(t, err)
	t.Cleanup(restarted.Stop)

	again, err := restarted.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	require.Equal(t, int64(2), again.LastBlockHeight)
	require.Equal(t, info.LastBlockAppHash, again.LastBlockAppHash)

	c.app = restarted
	res := c.block(c.signedTx(1, mintBody("evt", "3")))
	require.Equal(t, []uint32{CodeOK}, codes(res))
	var bal Balance
	require.Equal(t, CodeOK, c.query("/balances/", holder.Hex(), &bal))
	require.Equal(t, "3", bal.Balance)
}

func TestResultCode(t *testing.T) {
	require.Equal(t, CodeOK, ResultCode(nil))
	require.Equal(t, CodeExecutionFailed, ResultCode(&bridge.ExecutionError{Err: token.ErrInsufficientBalance}))
	require.Equal(t, CodeCapacityExceeded, ResultCode(bridge.ErrCapacityExceeded))
	require.Equal(t, CodeOverflow, ResultCode(bridge.ErrOverflow))
	require.Equal(t, CodeAlreadyOpen, ResultCode(bridge.ErrAlreadyOpen))
	require.Equal(t, CodeUnknownAction, ResultCode(bridge.ErrUnknownAction))
	require.Equal(t, CodeInternal, ResultCode(errors.New("disk on fire")))
}
