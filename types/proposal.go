package types

import (
	"encoding/json"

	"github.com/bits-and-blooms/bitset"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/common"
)

type ProposalStatus uint64

const (
	ProposalStatusOpen     ProposalStatus = 1
	ProposalStatusAccepted ProposalStatus = 2
	ProposalStatusRejected ProposalStatus = 3
	ProposalStatusExpired  ProposalStatus = 4
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusOpen:
		return "open"
	case ProposalStatusAccepted:
		return "accepted"
	case ProposalStatusRejected:
		return "rejected"
	case ProposalStatusExpired:
		return "expired"
	}
	return "unknown"
}

type Validator struct {
	ID      uint64         `json:"id"`
	Account common.Address `json:"account"`
	PubKey  ed25519.PubKey `json:"pub_key"`
	Name    string         `json:"name,omitempty"`
}

// Proposal is the record of one bridge action under vote. Votes counts
// assenting voters, Turnout counts every distinct voter.
type Proposal struct {
	ID       uint64
	Action   Action
	Open     bool
	Status   ProposalStatus
	Deadline uint64
	Votes    uint64
	Turnout  uint64
	Voters   *bitset.BitSet
	Foreign  []byte
	Created  uint64
	Closed   uint64

	// Executed is set once the action has been applied to the ledger.
	// An accepted proposal with Executed false carries ExecError.
	Executed  bool
	ExecError string
}

type proposalSt struct {
	ID        uint64          `json:"id"`
	Action    json.RawMessage `json:"action"`
	Open      bool            `json:"open"`
	Status    ProposalStatus  `json:"status"`
	Deadline  uint64          `json:"deadline"`
	Votes     uint64          `json:"votes"`
	Turnout   uint64          `json:"turnout"`
	Voters    *bitset.BitSet  `json:"voters"`
	Foreign   []byte          `json:"foreign,omitempty"`
	Created   uint64          `json:"created"`
	Closed    uint64          `json:"closed,omitempty"`
	Executed  bool            `json:"executed"`
	ExecError string          `json:"exec_error,omitempty"`
}

func (p *Proposal) MarshalJSON() ([]byte, error) {
	act, err := MarshalAction(p.Action)
	if err != nil {
		return nil, err
	}
	voters := p.Voters
	if voters == nil {
		voters = bitset.New(0)
	}
	return json.Marshal(proposalSt{
		ID:        p.ID,
		Action:    act,
		Open:      p.Open,
		Status:    p.Status,
		Deadline:  p.Deadline,
		Votes:     p.Votes,
		Turnout:   p.Turnout,
		Voters:    voters,
		Foreign:   p.Foreign,
		Created:   p.Created,
		Closed:    p.Closed,
		Executed:  p.Executed,
		ExecError: p.ExecError,
	})
}

func (p *Proposal) UnmarshalJSON(dat []byte) error {
	var o proposalSt
	if err := json.Unmarshal(dat, &o); err != nil {
		return err
	}
	act, err := UnmarshalAction(o.Action)
	if err != nil {
		return err
	}
	if o.Voters == nil {
		o.Voters = bitset.New(0)
	}
	*p = Proposal{
		ID:        o.ID,
		Action:    act,
		Open:      o.Open,
		Status:    o.Status,
		Deadline:  o.Deadline,
		Votes:     o.Votes,
		Turnout:   o.Turnout,
		Voters:    o.Voters,
		Foreign:   o.Foreign,
		Created:   o.Created,
		Closed:    o.Closed,
		Executed:  o.Executed,
		ExecError: o.ExecError,
	}
	return nil
}

// HasVoted reports whether the validator with the given id already voted.
func (p *Proposal) HasVoted(validator uint64) bool {
	return p.Voters != nil && p.Voters.Test(uint(validator))
}

func (p *Proposal) Clone() *Proposal {
	n := *p
	if p.Voters != nil {
		n.Voters = p.Voters.Clone()
	}
	if p.Foreign != nil {
		n.Foreign = append([]byte(nil), p.Foreign...)
	}
	return &n
}
