package bridge

import (
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

const (
	thresholdNumerator   = 51
	thresholdDenominator = 100
)

// VotesAreEnough reports votes/count >= 0.51 in exact integer arithmetic.
func VotesAreEnough(votes, count uint64) bool {
	hiV, loV := bits.Mul64(votes, thresholdDenominator)
	hiC, loC := bits.Mul64(count, thresholdNumerator)
	if hiV != hiC {
		return hiV > hiC
	}
	return loV >= loC
}

func (e *Engine) vote(s Store, height uint64, p *types.Proposal, voter types.Validator, assent bool) (outcome Outcome, events []abcitypes.Event, err error) {
	if !p.Open {
		return OutcomePending, nil, fmt.Errorf("%w: %d", ErrNotOpen, p.ID)
	}
	if p.HasVoted(voter.ID) {
		return OutcomePending, nil, fmt.Errorf("%w: validator %d on proposal %d", ErrAlreadyVoted, voter.ID, p.ID)
	}
	if p.Voters == nil {
		p.Voters = bitset.New(uint(e.registry.Count()))
	}
	p.Voters.Set(uint(voter.ID))
	p.Turnout++
	if assent {
		p.Votes++
	}
	events = append(events, types.EncodeEventVote(&types.EventVote{
		Proposal:  p.ID,
		Validator: voter.ID,
		Voter:     voter.Account,
		Assent:    assent,
	}))

	count := e.registry.Count()
	accepted := VotesAreEnough(p.Votes, count)
	allVoted := p.Turnout >= count
	closed := &types.EventProposalClosed{Proposal: p.ID, Votes: p.Votes, Turnout: p.Turnout, Height: height}

	switch {
	case accepted:
		execErr := e.execute(s, p)
		if err = e.closeProposal(s, p, types.ProposalStatusAccepted, height, true); err != nil {
			return OutcomePending, nil, err
		}
		events = append(events, types.EncodeEventProposalAccepted(closed))
		e.logger.Info("proposal accepted", "proposal", p.ID, "votes", p.Votes, "turnout", p.Turnout)
		if execErr != nil {
			events = append(events, types.EncodeEventExecutionFailed(&types.EventExecutionFailed{
				Proposal: p.ID,
				Kind:     p.Action.Kind().String(),
				Reason:   execErr.Err.Error(),
			}))
			e.logger.Error("accepted proposal not executed", "proposal", p.ID, "kind", p.Action.Kind(), "err", execErr.Err)
			return OutcomeAccepted, events, execErr
		}
		return OutcomeAccepted, events, nil
	case allVoted:
		if err = e.closeProposal(s, p, types.ProposalStatusRejected, height, true); err != nil {
			return OutcomePending, nil, err
		}
		events = append(events, types.EncodeEventProposalRejected(closed))
		e.logger.Info("proposal rejected", "proposal", p.ID, "votes", p.Votes, "turnout", p.Turnout)
		return OutcomeRejected, events, nil
	}
	if err = e.putProposal(s, p); err != nil {
		return OutcomePending, nil, err
	}
	return OutcomePending, events, nil
}

// execute applies p's action and records the result on p. It is only
// reached on the transition to accepted, which happens once per proposal.
func (e *Engine) execute(s Store, p *types.Proposal) *ExecutionError {
	ledger := e.ledger
	if sl, ok := ledger.(StoreLedger); ok {
		ledger = sl.WithStore(s)
	}
	if err := Execute(ledger, p.Action); err != nil {
		p.Executed = false
		p.ExecError = err.Error()
		return &ExecutionError{Proposal: p.ID, Kind: p.Action.Kind(), Err: err}
	}
	p.Executed = true
	return nil
}
