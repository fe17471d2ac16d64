package bridge

import (
	"bytes"
	"fmt"
	"math"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/calehh/bridge-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Fingerprint identifies a foreign event. Mint and burn attestations of the
// same event id never share a proposal.
func Fingerprint(kind types.ActionKind, eventID []byte) common.Hash {
	return crypto.Keccak256Hash([]byte{byte(kind)}, eventID)
}

func (e *Engine) submit(s Store, height uint64, fp common.Hash, action types.Action, foreign []byte) (p *types.Proposal, created bool, err error) {
	id, ok, err := getUint64(s, dedupHashKey(fp))
	if err != nil {
		return nil, false, err
	}
	if ok {
		p, err = e.getProposal(s, id)
		if err != nil {
			return nil, false, err
		}
		if !p.Action.Equal(action) || !bytes.Equal(p.Foreign, foreign) {
			return nil, false, fmt.Errorf("%w: proposal %d", ErrActionMismatch, id)
		}
		return p, false, nil
	}
	p, err = e.createProposal(s, height, fp, action, foreign)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (e *Engine) createProposal(s Store, height uint64, fp common.Hash, action types.Action, foreign []byte) (*types.Proposal, error) {
	deadline, carry := bits.Add64(height, e.params.VotingPeriod, 0)
	if carry != 0 {
		return nil, fmt.Errorf("%w: deadline of height %d", ErrOverflow, height)
	}
	bucket, err := getIDs(s, deadlineKey(deadline))
	if err != nil {
		return nil, err
	}
	if uint64(len(bucket)) >= e.params.MaxOpenPerDeadline {
		return nil, fmt.Errorf("%w: deadline %d", ErrCapacityExceeded, deadline)
	}
	if _, ok, err := getUint64(s, dedupHashKey(fp)); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, fp.Hex())
	}
	count, _, err := getUint64(s, KeyProposalCount)
	if err != nil {
		return nil, err
	}
	if count == math.MaxUint64 {
		return nil, fmt.Errorf("%w: proposal count", ErrOverflow)
	}
	p := &types.Proposal{
		ID:       count + 1,
		Action:   action,
		Open:     true,
		Status:   types.ProposalStatusOpen,
		Deadline: deadline,
		Voters:   bitset.New(uint(e.registry.Count())),
		Foreign:  foreign,
		Created:  height,
	}
	if err := e.putProposal(s, p); err != nil {
		return nil, err
	}
	if err := setUint64(s, KeyProposalCount, p.ID); err != nil {
		return nil, err
	}
	if err := setIDs(s, deadlineKey(deadline), append(bucket, p.ID)); err != nil {
		return nil, err
	}
	if err := setUint64(s, dedupHashKey(fp), p.ID); err != nil {
		return nil, err
	}
	if err := s.Set(dedupIDKey(p.ID), fp.Bytes()); err != nil {
		return nil, err
	}
	e.logger.Debug("proposal created", "proposal", p.ID, "kind", action.Kind(), "deadline", deadline, "fingerprint", fp.Hex())
	return p, nil
}

func (e *Engine) getProposal(s Store, id uint64) (*types.Proposal, error) {
	p := new(types.Proposal)
	ok, err := getJSON(s, proposalKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return p, nil
}

func (e *Engine) putProposal(s Store, p *types.Proposal) error {
	return setJSON(s, proposalKey(p.ID), p)
}

// closeProposal marks p closed with status and drops its dedup entries and
// deadline bucket slot.
func (e *Engine) closeProposal(s Store, p *types.Proposal, status types.ProposalStatus, height uint64, unbucket bool) error {
	p.Open = false
	p.Status = status
	p.Closed = height
	if err := e.putProposal(s, p); err != nil {
		return err
	}
	fp, err := s.Get(dedupIDKey(p.ID))
	if err != nil {
		return err
	}
	if fp != nil {
		if err := s.Delete(dedupHashKey(common.BytesToHash(fp))); err != nil {
			return err
		}
		if err := s.Delete(dedupIDKey(p.ID)); err != nil {
			return err
		}
	}
	if !unbucket {
		return nil
	}
	bucket, err := getIDs(s, deadlineKey(p.Deadline))
	if err != nil {
		return err
	}
	kept := bucket[:0]
	for _, id := range bucket {
		if id != p.ID {
			kept = append(kept, id)
		}
	}
	return setIDs(s, deadlineKey(p.Deadline), kept)
}
