package types

import (
	"encoding/hex"
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	EventVoteType             = "vote"
	EventMintProposedType     = "mint_proposed"
	EventBurnProposedType     = "burn_proposed"
	EventProposalAcceptedType = "proposal_accepted"
	EventProposalRejectedType = "proposal_rejected"
	EventProposalExpiredType  = "proposal_expired"
	EventExecutionFailedType  = "execution_failed"
)

type EventVote struct {
	Proposal  uint64         `json:"proposal"`
	Validator uint64         `json:"validator"`
	Voter     common.Address `json:"voter"`
	Assent    bool           `json:"assent"`
}

func EncodeEventVote(event *EventVote) abci.Event {
	return abci.Event{
		Type: EventVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "validator", Value: fmt.Sprintf("%v", event.Validator), Index: true},
			{Key: "voter", Value: event.Voter.Hex(), Index: false},
			{Key: "assent", Value: fmt.Sprintf("%v", event.Assent), Index: false},
		},
	}
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "validator":
			validator, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Validator = validator
		case "voter":
			event.Voter = common.HexToAddress(v.Value)
		case "assent":
			assent, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Assent = assent
		}
	}
	return event
}

// EventProposed is emitted when an attestation opens a new proposal. The
// event type tells mint from burn.
type EventProposed struct {
	Proposal uint64         `json:"proposal"`
	Token    uint64         `json:"token"`
	Account  common.Address `json:"account"`
	Amount   *uint256.Int   `json:"amount"`
	Foreign  []byte         `json:"foreign"`
	Deadline uint64         `json:"deadline"`
}

func EncodeEventMintProposed(event *EventProposed) abci.Event {
	return encodeEventProposed(EventMintProposedType, event)
}

func EncodeEventBurnProposed(event *EventProposed) abci.Event {
	return encodeEventProposed(EventBurnProposedType, event)
}

func encodeEventProposed(tp string, event *EventProposed) abci.Event {
	return abci.Event{
		Type: tp,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "token", Value: fmt.Sprintf("%v", event.Token), Index: false},
			{Key: "account", Value: event.Account.Hex(), Index: true},
			{Key: "amount", Value: amountString(event.Amount), Index: false},
			{Key: "foreign", Value: hex.EncodeToString(event.Foreign), Index: false},
			{Key: "deadline", Value: fmt.Sprintf("%v", event.Deadline), Index: false},
		},
	}
}

func DecodeEventProposed(originEvent abci.Event) *EventProposed {
	event := &EventProposed{Amount: new(uint256.Int)}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "token":
			token, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Token = token
		case "account":
			event.Account = common.HexToAddress(v.Value)
		case "amount":
			amount, err := uint256.FromDecimal(v.Value)
			if err != nil {
				return nil
			}
			event.Amount = amount
		case "foreign":
			foreign, err := hex.DecodeString(v.Value)
			if err != nil {
				return nil
			}
			event.Foreign = foreign
		case "deadline":
			deadline, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Deadline = deadline
		}
	}
	return event
}

// EventProposalClosed covers the accepted, rejected and expired outcomes.
type EventProposalClosed struct {
	Proposal uint64 `json:"proposal"`
	Votes    uint64 `json:"votes"`
	Turnout  uint64 `json:"turnout"`
	Height   uint64 `json:"height"`
}

func EncodeEventProposalAccepted(event *EventProposalClosed) abci.Event {
	return encodeEventProposalClosed(EventProposalAcceptedType, event)
}

func EncodeEventProposalRejected(event *EventProposalClosed) abci.Event {
	return encodeEventProposalClosed(EventProposalRejectedType, event)
}

func EncodeEventProposalExpired(event *EventProposalClosed) abci.Event {
	return encodeEventProposalClosed(EventProposalExpiredType, event)
}

func encodeEventProposalClosed(tp string, event *EventProposalClosed) abci.Event {
	return abci.Event{
		Type: tp,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "votes", Value: fmt.Sprintf("%v", event.Votes), Index: false},
			{Key: "turnout", Value: fmt.Sprintf("%v", event.Turnout), Index: false},
			{Key: "height", Value: fmt.Sprintf("%v", event.Height), Index: false},
		},
	}
}

func DecodeEventProposalClosed(originEvent abci.Event) *EventProposalClosed {
	event := &EventProposalClosed{}
	for _, v := range originEvent.Attributes {
		var field *uint64
		switch v.Key {
		case "proposal":
			field = &event.Proposal
		case "votes":
			field = &event.Votes
		case "turnout":
			field = &event.Turnout
		case "height":
			field = &event.Height
		default:
			continue
		}
		n, err := strconv.ParseUint(v.Value, 10, 64)
		if err != nil {
			return nil
		}
		*field = n
	}
	return event
}

type EventExecutionFailed struct {
	Proposal uint64 `json:"proposal"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

func EncodeEventExecutionFailed(event *EventExecutionFailed) abci.Event {
	return abci.Event{
		Type: EventExecutionFailedType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.Proposal), Index: true},
			{Key: "kind", Value: event.Kind, Index: false},
			{Key: "reason", Value: event.Reason, Index: false},
		},
	}
}

func DecodeEventExecutionFailed(originEvent abci.Event) *EventExecutionFailed {
	event := &EventExecutionFailed{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Proposal = proposal
		case "kind":
			event.Kind = v.Value
		case "reason":
			event.Reason = v.Value
		}
	}
	return event
}
