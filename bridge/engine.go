package bridge

import (
	"errors"
	"fmt"

	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeAccepted
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Receipt describes the effect of one attestation or vote.
type Receipt struct {
	Proposal uint64
	Created  bool
	Outcome  Outcome
	Events   []abcitypes.Event
}

// Engine is the proposal lifecycle state machine. Every exported mutating
// method is one atomic step: it either commits all of its writes to the
// store or none of them. An Engine is not safe for concurrent use; callers
// serialize steps in block order.
type Engine struct {
	logger   cmtlog.Logger
	store    Store
	registry *Registry
	params   types.Params
	ledger   Ledger
}

func NewEngine(store Store, registry *Registry, params types.Params, ledger Ledger, logger cmtlog.Logger) *Engine {
	return &Engine{
		logger:   logger.With("module", "bridge"),
		store:    store,
		registry: registry,
		params:   params,
		ledger:   ledger,
	}
}

func (e *Engine) Params() types.Params {
	return e.params
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// step runs fn against a write buffer and flushes it when fn succeeds
// or fails only with an ExecutionError.
func (e *Engine) step(fn func(s Store) error) error {
	c := NewCacheStore(e.store)
	err := fn(c)
	if err != nil && !isExecutionError(err) {
		return err
	}
	if werr := c.Write(); werr != nil {
		return werr
	}
	return err
}

func isExecutionError(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}

func (e *Engine) authorize(caller common.Address) (types.Validator, error) {
	v, ok := e.registry.ByAccount(caller)
	if !ok {
		return types.Validator{}, fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	return v, nil
}

// RequestMint attests that amount was locked on the foreign chain at
// origin for dest, and casts the caller's assenting vote.
func (e *Engine) RequestMint(height uint64, caller common.Address, eventID, origin []byte, dest common.Address, amount *uint256.Int) (Receipt, error) {
	action := types.MintRequest{Token: e.params.TokenID, Account: dest, Amount: amount}
	return e.request(height, caller, eventID, origin, action)
}

// RequestBurn attests that source wants amount released to dest on the
// foreign chain, and casts the caller's assenting vote.
func (e *Engine) RequestBurn(height uint64, caller common.Address, eventID, dest []byte, source common.Address, amount *uint256.Int) (Receipt, error) {
	action := types.BurnRequest{Token: e.params.TokenID, Account: source, Amount: amount}
	return e.request(height, caller, eventID, dest, action)
}

func (e *Engine) request(height uint64, caller common.Address, eventID, foreign []byte, action types.Action) (rcpt Receipt, err error) {
	voter, err := e.authorize(caller)
	if err != nil {
		return rcpt, err
	}
	if err = validateAction(action); err != nil {
		return rcpt, err
	}
	fp := Fingerprint(action.Kind(), eventID)
	err = e.step(func(s Store) error {
		p, created, err := e.submit(s, height, fp, action, foreign)
		if err != nil {
			return err
		}
		rcpt.Proposal = p.ID
		rcpt.Created = created
		if created {
			rcpt.Events = append(rcpt.Events, proposedEvent(p))
		}
		outcome, events, err := e.vote(s, height, p, voter, true)
		rcpt.Outcome = outcome
		rcpt.Events = append(rcpt.Events, events...)
		return err
	})
	if err != nil && !isExecutionError(err) {
		return Receipt{}, err
	}
	return rcpt, err
}

// CastVote records a vote from caller on an open proposal.
func (e *Engine) CastVote(height uint64, caller common.Address, id uint64, assent bool) (rcpt Receipt, err error) {
	voter, err := e.authorize(caller)
	if err != nil {
		return rcpt, err
	}
	rcpt.Proposal = id
	err = e.step(func(s Store) error {
		p, err := e.getProposal(s, id)
		if err != nil {
			return err
		}
		outcome, events, err := e.vote(s, height, p, voter, assent)
		rcpt.Outcome = outcome
		rcpt.Events = events
		return err
	})
	if err != nil && !isExecutionError(err) {
		return Receipt{Proposal: id}, err
	}
	return rcpt, err
}

// Submit resolves fingerprint to its open proposal or opens a new one. It
// casts no vote.
func (e *Engine) Submit(height uint64, fp common.Hash, action types.Action, foreign []byte) (id uint64, created bool, err error) {
	if err = validateAction(action); err != nil {
		return 0, false, err
	}
	err = e.step(func(s Store) error {
		p, c, err := e.submit(s, height, fp, action, foreign)
		if err != nil {
			return err
		}
		id, created = p.ID, c
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return
}

// OnBlockFinalize expires every proposal whose deadline is height.
func (e *Engine) OnBlockFinalize(height uint64) (events []abcitypes.Event, err error) {
	err = e.step(func(s Store) error {
		events, err = e.sweep(s, height)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func validateAction(action types.Action) error {
	switch a := action.(type) {
	case types.MintRequest:
		if a.Amount == nil || a.Amount.IsZero() {
			return ErrInvalidAmount
		}
	case types.BurnRequest:
		if a.Amount == nil || a.Amount.IsZero() {
			return ErrInvalidAmount
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
	return nil
}

func proposedEvent(p *types.Proposal) abcitypes.Event {
	ev := &types.EventProposed{
		Proposal: p.ID,
		Foreign:  p.Foreign,
		Deadline: p.Deadline,
	}
	switch a := p.Action.(type) {
	case types.MintRequest:
		ev.Token, ev.Account, ev.Amount = a.Token, a.Account, a.Amount
		return types.EncodeEventMintProposed(ev)
	case types.BurnRequest:
		ev.Token, ev.Account, ev.Amount = a.Token, a.Account, a.Amount
		return types.EncodeEventBurnProposed(ev)
	}
	panic(fmt.Sprintf("proposed event for %T", p.Action))
}
