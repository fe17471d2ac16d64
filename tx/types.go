package tx

import (
	"errors"
)

type BridgeTxType uint8

const (
	BridgeTxTypeUnknown BridgeTxType = 0
	BridgeTxTypeMint    BridgeTxType = 1
	BridgeTxTypeBurn    BridgeTxType = 2
	BridgeTxTypeVote    BridgeTxType = 3
)

func (t BridgeTxType) String() string {
	switch t {
	case BridgeTxTypeMint:
		return "mint"
	case BridgeTxTypeBurn:
		return "burn"
	case BridgeTxTypeVote:
		return "vote"
	}
	return "unknown"
}

const (
	BridgeTxVersion0 uint8 = 0
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnmatchedTxType      = errors.New("unmatched tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
)
