package crypto

import (
	"fmt"
	"os"

	"github.com/calehh/bridge-app/tx"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
	"github.com/ethereum/go-ethereum/common"
)

// PV is a validator key loaded from a priv_validator_key.json file, used
// to sign bridge txs outside the node.
type PV struct {
	privateKey ed25519.PrivKey
	publicKey  ed25519.PubKey
}

func LoadFilePV(keyFilePath string) (*PV, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	err = cmtjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		return nil, fmt.Errorf("reading PrivValidator key from %v: %w", keyFilePath, err)
	}
	return NewPV(pvKey.PrivKey)
}

func NewPV(key any) (*PV, error) {
	priv, ok := key.(ed25519.PrivKey)
	if !ok {
		return nil, fmt.Errorf("unsupported validator key type %T", key)
	}
	return &PV{
		privateKey: priv,
		publicKey:  priv.PubKey().(ed25519.PubKey),
	}, nil
}

func (k *PV) PublicKey() ed25519.PubKey {
	return k.publicKey
}

// Account is the bridge account of the key, the 20 byte cometbft address.
func (k *PV) Account() common.Address {
	return common.BytesToAddress(k.publicKey.Address())
}

func (k *PV) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}

func (k *PV) SignTx(btx *tx.BridgeTx, chainID string) error {
	return btx.Sign(k.privateKey, chainID)
}
