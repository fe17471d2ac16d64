package tx

import (
	"encoding/json"
	"fmt"

	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// BridgeTx is the signed envelope every validator transaction travels in.
// Validator is the registry id of the signer.
type BridgeTx struct {
	Version   uint8        `json:"version"`
	Type      BridgeTxType `json:"type"`
	Nonce     uint64       `json:"nonce"`
	Validator uint64       `json:"validator"`
	Tx        any          `json:"tx"`
	Sig       [][]byte     `json:"sig"`
}

// MintTx attests that Amount was locked on the foreign chain by Origin
// for Recipient.
type MintTx struct {
	EventID   hexutil.Bytes  `json:"eventId"`
	Origin    hexutil.Bytes  `json:"origin"`
	Recipient common.Address `json:"recipient"`
	Amount    string         `json:"amount"`
}

// BurnTx attests that Holder asked for Amount to be released to
// Destination on the foreign chain.
type BurnTx struct {
	EventID     hexutil.Bytes  `json:"eventId"`
	Destination hexutil.Bytes  `json:"destination"`
	Holder      common.Address `json:"holder"`
	Amount      string         `json:"amount"`
}

type VoteTx struct {
	Proposal uint64 `json:"proposal"`
	Assent   bool   `json:"assent"`
}

// ParseAmount decodes a decimal amount field.
func ParseAmount(s string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", ErrInvalidTx, s)
	}
	return amount, nil
}

type bridgeTxTmpl[Tx any] struct {
	Version   uint8        `json:"version"`
	Type      BridgeTxType `json:"type"`
	Nonce     uint64       `json:"nonce"`
	Validator uint64       `json:"validator"`
	Tx        Tx           `json:"tx"`
	Sig       [][]byte     `json:"sig"`
}

// SigData is the byte string a validator signs: the envelope with its
// signatures replaced by ext, normally the chain id.
func (tx *BridgeTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

// Sign replaces the signatures of tx with one made by key over chainID.
func (tx *BridgeTx) Sign(key ed25519.PrivKey, chainID string) error {
	dat, err := tx.SigData([]byte(chainID))
	if err != nil {
		return err
	}
	sig, err := key.Sign(dat)
	if err != nil {
		return err
	}
	tx.Sig = [][]byte{sig}
	return nil
}

// VerifySig checks the single signature of tx against pub.
func (tx *BridgeTx) VerifySig(pub ed25519.PubKey, chainID string) bool {
	if len(tx.Sig) != 1 {
		return false
	}
	dat, err := tx.SigData([]byte(chainID))
	if err != nil {
		return false
	}
	return pub.VerifySignature(dat, tx.Sig[0])
}

func parseBridgeTxType(dat []byte) BridgeTxType {
	var tx struct {
		Type BridgeTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return BridgeTxTypeUnknown
	}
	return tx.Type
}

func unmarshalBridgeTx[Tx any](dat []byte) (btx *BridgeTx, err error) {
	var txt bridgeTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version != BridgeTxVersion0 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTxVersion, txt.Version)
	}
	btx = new(BridgeTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.Validator = txt.Validator
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalBridgeTx(dat []byte) (btx *BridgeTx, err error) {
	tp := parseBridgeTxType(dat)
	switch tp {
	case BridgeTxTypeMint:
		return unmarshalBridgeTx[MintTx](dat)
	case BridgeTxTypeBurn:
		return unmarshalBridgeTx[BurnTx](dat)
	case BridgeTxTypeVote:
		return unmarshalBridgeTx[VoteTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalBridgeTx(btx *BridgeTx) (dat []byte, err error) {
	return json.Marshal(btx)
}

// NewBridgeTx builds an unsigned envelope, inferring the type from body.
func NewBridgeTx(validator, nonce uint64, body any) (*BridgeTx, error) {
	btx := &BridgeTx{Version: BridgeTxVersion0, Nonce: nonce, Validator: validator, Tx: body}
	switch body.(type) {
	case *MintTx, MintTx:
		btx.Type = BridgeTxTypeMint
	case *BurnTx, BurnTx:
		btx.Type = BridgeTxTypeBurn
	case *VoteTx, VoteTx:
		btx.Type = BridgeTxTypeVote
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedTxType, body)
	}
	return btx, nil
}
