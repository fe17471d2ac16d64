package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/calehh/bridge-app/bridge"
	"github.com/calehh/bridge-app/state"
	"github.com/calehh/bridge-app/token"
	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Querier answers one query path from a committed snapshot. The result is
// returned JSON encoded.
type Querier interface {
	Query(ctx context.Context, s bridge.Store, data []byte) (any, error)
}

func (app *BridgeApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	res := &abcitypes.ResponseQuery{}
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res.Code, res.Log = CodeUnknownPath, fmt.Sprintf("%v: %s", ErrUnsupportedQueryPath, req.Path)
		return res, nil
	}
	snap, height, err := app.db.Snapshot(uint64(req.Height))
	if err != nil {
		res.Code, res.Log = ResultCode(err), err.Error()
		return res, nil
	}
	res.Height = int64(height)
	out, err := q.Query(ctx, snap, req.Data)
	if err != nil {
		res.Code, res.Log = ResultCode(err), err.Error()
		return res, nil
	}
	res.Value, err = json.Marshal(out)
	if err != nil {
		res.Code, res.Log = CodeInternal, err.Error()
	}
	return res, nil
}

func parseUint(data []byte) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuery, data)
	}
	return v, nil
}

func parseAddress(data []byte) (common.Address, error) {
	s := strings.TrimSpace(string(data))
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: address %q", ErrInvalidQuery, s)
	}
	return common.HexToAddress(s), nil
}

type ProposalCount struct {
	Count uint64 `json:"count"`
}

// ProposalQuerier returns the proposal whose decimal id is the query data,
// or the proposal count for empty data.
type ProposalQuerier struct{}

func (q *ProposalQuerier) Query(_ context.Context, s bridge.Store, data []byte) (any, error) {
	r := bridge.NewReader(s)
	if len(data) == 0 {
		count, err := r.ProposalCount()
		return ProposalCount{Count: count}, err
	}
	id, err := parseUint(data)
	if err != nil {
		return nil, err
	}
	return r.Proposal(id)
}

type ValidatorQuerier struct{}

func (q *ValidatorQuerier) Query(_ context.Context, s bridge.Store, data []byte) (any, error) {
	vals, err := bridge.NewReader(s).Validators()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return vals, nil
	}
	id, err := parseUint(data)
	if err != nil {
		return nil, err
	}
	if id >= uint64(len(vals)) {
		return nil, fmt.Errorf("validator %d: %w", id, bridge.ErrNotFound)
	}
	return vals[id], nil
}

type ParamsQuerier struct{}

func (q *ParamsQuerier) Query(_ context.Context, s bridge.Store, _ []byte) (any, error) {
	return bridge.NewReader(s).Params()
}

type DedupEntry struct {
	Fingerprint common.Hash `json:"fingerprint"`
	Proposal    uint64      `json:"proposal"`
	Open        bool        `json:"open"`
}

// DedupQuerier resolves "mint/<hex event id>" or "burn/<hex event id>" to
// the open proposal of that event, if any.
type DedupQuerier struct{}

func (q *DedupQuerier) Query(_ context.Context, s bridge.Store, data []byte) (any, error) {
	kindStr, eventStr, ok := strings.Cut(strings.TrimSpace(string(data)), "/")
	if !ok {
		return nil, fmt.Errorf("%w: want <mint|burn>/<event id>", ErrInvalidQuery)
	}
	var kind types.ActionKind
	switch kindStr {
	case "mint":
		kind = types.ActionKindMint
	case "burn":
		kind = types.ActionKindBurn
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidQuery, kindStr)
	}
	eventID, err := hexutil.Decode(eventStr)
	if err != nil {
		return nil, fmt.Errorf("%w: event id: %v", ErrInvalidQuery, err)
	}
	fp := bridge.Fingerprint(kind, eventID)
	id, open, err := bridge.NewReader(s).OpenProposalByFingerprint(fp)
	if err != nil {
		return nil, err
	}
	return DedupEntry{Fingerprint: fp, Proposal: id, Open: open}, nil
}

// DeadlineQuerier lists the open proposal ids due at the decimal height.
type DeadlineQuerier struct{}

func (q *DeadlineQuerier) Query(_ context.Context, s bridge.Store, data []byte) (any, error) {
	height, err := parseUint(data)
	if err != nil {
		return nil, err
	}
	ids, err := bridge.NewReader(s).Deadline(height)
	if ids == nil {
		ids = []uint64{}
	}
	return ids, err
}

type Balance struct {
	Token   uint64         `json:"token"`
	Account common.Address `json:"account"`
	Balance string         `json:"balance"`
}

// BalanceQuerier returns the bridged token balance of the hex address.
type BalanceQuerier struct {
	app *BridgeApp
}

func (q *BalanceQuerier) Query(_ context.Context, s bridge.Store, data []byte) (any, error) {
	account, err := parseAddress(data)
	if err != nil {
		return nil, err
	}
	tokenID := q.app.params.TokenID
	bal, err := token.NewLedger(s).BalanceOf(tokenID, account)
	if err != nil {
		return nil, err
	}
	return Balance{Token: tokenID, Account: account, Balance: bal.Dec()}, nil
}

type Supply struct {
	Token  uint64 `json:"token"`
	Symbol string `json:"symbol"`
	Supply string `json:"supply"`
}

type SupplyQuerier struct {
	app *BridgeApp
}

func (q *SupplyQuerier) Query(_ context.Context, s bridge.Store, _ []byte) (any, error) {
	params := q.app.params
	supply, err := token.NewLedger(s).TotalSupply(params.TokenID)
	if err != nil {
		return nil, err
	}
	return Supply{Token: params.TokenID, Symbol: params.TokenSymbol, Supply: supply.Dec()}, nil
}

type NonceQuerier struct{}

func (q *NonceQuerier) Query(_ context.Context, s bridge.Store, data []byte) (any, error) {
	validator, err := parseUint(data)
	if err != nil {
		return nil, err
	}
	return state.Nonce(s, validator)
}
