package bridge

import (
	"errors"

	"github.com/calehh/bridge-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

// sweep closes the proposals still open in the bucket of height as
// expired and deletes the bucket. Closed entries are skipped.
func (e *Engine) sweep(s Store, height uint64) (events []abcitypes.Event, err error) {
	key := deadlineKey(height)
	ids, err := getIDs(s, key)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		p, err := e.getProposal(s, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.Open {
			continue
		}
		if err = e.closeProposal(s, p, types.ProposalStatusExpired, height, false); err != nil {
			return nil, err
		}
		events = append(events, types.EncodeEventProposalExpired(&types.EventProposalClosed{
			Proposal: p.ID,
			Votes:    p.Votes,
			Turnout:  p.Turnout,
			Height:   height,
		}))
		e.logger.Info("proposal expired", "proposal", p.ID, "votes", p.Votes, "height", height)
	}
	if len(ids) > 0 {
		if err = s.Delete(key); err != nil {
			return nil, err
		}
	}
	return events, nil
}
