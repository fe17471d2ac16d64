package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type ActionKind uint8

const (
	ActionKindEmpty ActionKind = 0
	ActionKindMint  ActionKind = 1
	ActionKindBurn  ActionKind = 2
)

func (k ActionKind) String() string {
	switch k {
	case ActionKindEmpty:
		return "empty"
	case ActionKindMint:
		return "mint"
	case ActionKindBurn:
		return "burn"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

var (
	ErrUnknownActionKind = errors.New("unknown action kind")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Action is the effect a proposal applies once accepted. The set of
// implementations is closed: EmptyAction, MintRequest and BurnRequest.
type Action interface {
	Kind() ActionKind
	Equal(o Action) bool
	isAction()
}

type EmptyAction struct{}

func (EmptyAction) Kind() ActionKind { return ActionKindEmpty }

func (EmptyAction) Equal(o Action) bool {
	_, ok := o.(EmptyAction)
	return ok
}

func (EmptyAction) isAction() {}

// MintRequest credits Amount of Token to Account. Produced by attestations
// of funds locked on the foreign chain.
type MintRequest struct {
	Token   uint64
	Account common.Address
	Amount  *uint256.Int
}

func (MintRequest) Kind() ActionKind { return ActionKindMint }

func (m MintRequest) Equal(o Action) bool {
	x, ok := o.(MintRequest)
	return ok && m.Token == x.Token && m.Account == x.Account && amountEqual(m.Amount, x.Amount)
}

func (MintRequest) isAction() {}

// BurnRequest debits Amount of Token from Account so it can be released on
// the foreign chain.
type BurnRequest struct {
	Token   uint64
	Account common.Address
	Amount  *uint256.Int
}

func (BurnRequest) Kind() ActionKind { return ActionKindBurn }

func (b BurnRequest) Equal(o Action) bool {
	x, ok := o.(BurnRequest)
	return ok && b.Token == x.Token && b.Account == x.Account && amountEqual(b.Amount, x.Amount)
}

func (BurnRequest) isAction() {}

func amountEqual(a, b *uint256.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Eq(b)
}

type actionSt struct {
	Kind    ActionKind     `json:"kind"`
	Token   uint64         `json:"token,omitempty"`
	Account common.Address `json:"account,omitempty"`
	Amount  string         `json:"amount,omitempty"`
}

func MarshalAction(a Action) ([]byte, error) {
	var o actionSt
	switch x := a.(type) {
	case nil, EmptyAction:
		o.Kind = ActionKindEmpty
	case MintRequest:
		o = actionSt{Kind: ActionKindMint, Token: x.Token, Account: x.Account, Amount: amountString(x.Amount)}
	case BurnRequest:
		o = actionSt{Kind: ActionKindBurn, Token: x.Token, Account: x.Account, Amount: amountString(x.Amount)}
	default:
		return nil, fmt.Errorf("marshal action %T: %w", a, ErrUnknownActionKind)
	}
	return json.Marshal(o)
}

func UnmarshalAction(dat []byte) (Action, error) {
	var o actionSt
	if err := json.Unmarshal(dat, &o); err != nil {
		return nil, err
	}
	switch o.Kind {
	case ActionKindEmpty:
		return EmptyAction{}, nil
	case ActionKindMint, ActionKindBurn:
		amount, err := uint256.FromDecimal(o.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, o.Amount)
		}
		if o.Kind == ActionKindMint {
			return MintRequest{Token: o.Token, Account: o.Account, Amount: amount}, nil
		}
		return BurnRequest{Token: o.Token, Account: o.Account, Amount: amount}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownActionKind, o.Kind)
}

func amountString(a *uint256.Int) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}
