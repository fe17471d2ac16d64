package token

import (
	"errors"
	"fmt"

	"github.com/calehh/bridge-app/bridge"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	KeyBalance     = "b%d/%x"
	KeyTotalSupply = "ts%d"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSupplyOverflow      = errors.New("total supply overflow")
	ErrZeroAmount          = errors.New("zero amount")
)

// Ledger keeps balances and total supply per token id in a bridge.Store.
type Ledger struct {
	s bridge.Store
}

var _ bridge.Ledger = (*Ledger)(nil)

func NewLedger(s bridge.Store) *Ledger {
	return &Ledger{s: s}
}

// WithStore returns a ledger over s, which usually buffers on top of the
// store l was built on.
func (l *Ledger) WithStore(s bridge.Store) bridge.Ledger {
	return NewLedger(s)
}

var _ bridge.StoreLedger = (*Ledger)(nil)

func balanceKey(token uint64, account common.Address) []byte {
	return []byte(fmt.Sprintf(KeyBalance, token, account[:]))
}

func supplyKey(token uint64) []byte {
	return []byte(fmt.Sprintf(KeyTotalSupply, token))
}

func (l *Ledger) get(key []byte) (*uint256.Int, error) {
	val, err := l.s.Get(key)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(val), nil
}

func (l *Ledger) put(key []byte, v *uint256.Int) error {
	if v.IsZero() {
		return l.s.Delete(key)
	}
	return l.s.Set(key, v.Bytes())
}

func (l *Ledger) BalanceOf(token uint64, account common.Address) (*uint256.Int, error) {
	return l.get(balanceKey(token, account))
}

func (l *Ledger) TotalSupply(token uint64) (*uint256.Int, error) {
	return l.get(supplyKey(token))
}

// Mint credits amount to account and grows the total supply. Nothing is
// written when either sum overflows.
func (l *Ledger) Mint(token uint64, account common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	supply, err := l.TotalSupply(token)
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return fmt.Errorf("%w: token %d", ErrSupplyOverflow, token)
	}
	balance, err := l.BalanceOf(token, account)
	if err != nil {
		return err
	}
	// balance <= supply, so this sum cannot overflow once the supply did not
	newBalance := new(uint256.Int).Add(balance, amount)
	if err = l.put(balanceKey(token, account), newBalance); err != nil {
		return err
	}
	return l.put(supplyKey(token), newSupply)
}

// Burn debits amount from account and shrinks the total supply.
func (l *Ledger) Burn(token uint64, account common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	balance, err := l.BalanceOf(token, account)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, burning %s", ErrInsufficientBalance, account.Hex(), balance.Dec(), amount.Dec())
	}
	supply, err := l.TotalSupply(token)
	if err != nil {
		return err
	}
	if err = l.put(balanceKey(token, account), new(uint256.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return l.put(supplyKey(token), new(uint256.Int).Sub(supply, amount))
}
