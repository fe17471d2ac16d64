package bridge

import (
	"errors"
	"fmt"

	"github.com/calehh/bridge-app/types"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrEmptyValidatorSet      = errors.New("empty validator set")
	ErrDuplicateValidator     = errors.New("duplicate validator account")
	ErrValidatorCountMismatch = errors.New("validator count does not match registered validators")
	ErrRegistryInitialized    = errors.New("validator registry already initialized")
	ErrRegistryUninitialized  = errors.New("validator registry not initialized")
)

// Registry is the fixed validator set. It is written once at genesis and
// only read afterwards.
type Registry struct {
	count      uint64
	validators []types.Validator
	byAccount  map[common.Address]uint64
}

func newRegistry(count uint64, vals []types.Validator) (*Registry, error) {
	if len(vals) == 0 {
		return nil, ErrEmptyValidatorSet
	}
	if count != uint64(len(vals)) {
		return nil, fmt.Errorf("%w: count %d, validators %d", ErrValidatorCountMismatch, count, len(vals))
	}
	r := &Registry{
		count:      count,
		validators: make([]types.Validator, len(vals)),
		byAccount:  make(map[common.Address]uint64, len(vals)),
	}
	for i, v := range vals {
		if _, ok := r.byAccount[v.Account]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateValidator, v.Account.Hex())
		}
		v.ID = uint64(i)
		r.validators[i] = v
		r.byAccount[v.Account] = v.ID
	}
	return r, nil
}

// InitRegistry assigns ids by position and persists the set. count is the
// configured validator count that the voting threshold is computed from;
// zero means the number of validators given.
func InitRegistry(s Store, count uint64, vals []types.Validator) (*Registry, error) {
	if _, ok, err := getUint64(s, KeyValidatorCount); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrRegistryInitialized
	}
	if count == 0 {
		count = uint64(len(vals))
	}
	r, err := newRegistry(count, vals)
	if err != nil {
		return nil, err
	}
	for _, v := range r.validators {
		if err := setJSON(s, validatorKey(v.ID), v); err != nil {
			return nil, err
		}
		if err := setUint64(s, validatorAccountKey(v.Account), v.ID); err != nil {
			return nil, err
		}
	}
	if err := setUint64(s, KeyValidatorCount, r.count); err != nil {
		return nil, err
	}
	return r, nil
}

func LoadRegistry(s Store) (*Registry, error) {
	count, ok, err := getUint64(s, KeyValidatorCount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRegistryUninitialized
	}
	var vals []types.Validator
	for id := uint64(0); ; id++ {
		var v types.Validator
		found, err := getJSON(s, validatorKey(id), &v)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		vals = append(vals, v)
	}
	return newRegistry(count, vals)
}

func (r *Registry) Get(id uint64) (types.Validator, bool) {
	if id >= uint64(len(r.validators)) {
		return types.Validator{}, false
	}
	return r.validators[id], true
}

func (r *Registry) ByAccount(account common.Address) (types.Validator, bool) {
	id, ok := r.byAccount[account]
	if !ok {
		return types.Validator{}, false
	}
	return r.validators[id], true
}

// Count is the configured validator count.
func (r *Registry) Count() uint64 {
	return r.count
}

func (r *Registry) Validators() []types.Validator {
	out := make([]types.Validator, len(r.validators))
	copy(out, r.validators)
	return out
}
