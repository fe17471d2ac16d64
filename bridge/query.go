package bridge

import (
	"fmt"

	"github.com/calehh/bridge-app/types"
	"github.com/ethereum/go-ethereum/common"
)

func InitParams(s Store, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return setJSON(s, KeyParams, params)
}

func LoadParams(s Store) (params types.Params, err error) {
	ok, err := getJSON(s, KeyParams, &params)
	if err != nil {
		return params, err
	}
	if !ok {
		return params, ErrNoParams
	}
	return params, nil
}

// Reader answers lookups over any Store, including read-only snapshots.
type Reader struct {
	s Store
}

func NewReader(s Store) *Reader {
	return &Reader{s: s}
}

func (r *Reader) Proposal(id uint64) (*types.Proposal, error) {
	p := new(types.Proposal)
	ok, err := getJSON(r.s, proposalKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return p, nil
}

func (r *Reader) ProposalCount() (uint64, error) {
	count, _, err := getUint64(r.s, KeyProposalCount)
	return count, err
}

// OpenProposalByFingerprint returns the id of the open proposal for fp.
func (r *Reader) OpenProposalByFingerprint(fp common.Hash) (id uint64, ok bool, err error) {
	return getUint64(r.s, dedupHashKey(fp))
}

func (r *Reader) FingerprintOf(id uint64) (fp common.Hash, ok bool, err error) {
	val, err := r.s.Get(dedupIDKey(id))
	if err != nil || val == nil {
		return fp, false, err
	}
	return common.BytesToHash(val), true, nil
}

// Deadline lists the open proposals due at height.
func (r *Reader) Deadline(height uint64) ([]uint64, error) {
	return getIDs(r.s, deadlineKey(height))
}

func (r *Reader) Params() (types.Params, error) {
	return LoadParams(r.s)
}

func (r *Reader) Validators() ([]types.Validator, error) {
	reg, err := LoadRegistry(r.s)
	if err != nil {
		return nil, err
	}
	return reg.Validators(), nil
}

func (r *Reader) ValidatorByAccount(account common.Address) (v types.Validator, ok bool, err error) {
	id, ok, err := getUint64(r.s, validatorAccountKey(account))
	if err != nil || !ok {
		return v, false, err
	}
	ok, err = getJSON(r.s, validatorKey(id), &v)
	return v, ok, err
}
