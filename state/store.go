package state

import (
	"errors"
	"fmt"

	"github.com/calehh/bridge-app/bridge"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

var KeyNonce = "n%d"

var ErrTxNonceInvalid = errors.New("nonce invalid")

// Store adapts the working iavl tree to bridge.Store.
type Store struct {
	tree *iavl.MutableTree
}

var _ bridge.Store = (*Store)(nil)

func (s *Store) Get(key []byte) ([]byte, error) {
	val, err := s.tree.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return val, err
}

func (s *Store) Set(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.tree.Set(key, value)
	return err
}

func (s *Store) Delete(key []byte) error {
	_, _, err := s.tree.Remove(key)
	return err
}

// ReadOnlyStore serves one committed version.
type ReadOnlyStore struct {
	tree *iavl.ImmutableTree
}

var _ bridge.Store = (*ReadOnlyStore)(nil)

func (s *ReadOnlyStore) Get(key []byte) ([]byte, error) {
	val, err := s.tree.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return val, err
}

func (s *ReadOnlyStore) Set(_, _ []byte) error {
	return bridge.ErrReadOnlyStore
}

func (s *ReadOnlyStore) Delete(_ []byte) error {
	return bridge.ErrReadOnlyStore
}

func nonceKey(validator uint64) []byte {
	return []byte(fmt.Sprintf(KeyNonce, validator))
}

// Nonce is the nonce the next tx of validator must carry.
func Nonce(s bridge.Store, validator uint64) (nonce uint64, err error) {
	val, err := s.Get(nonceKey(validator))
	if err != nil || val == nil {
		return 0, err
	}
	err = rlp.DecodeBytes(val, &nonce)
	return
}

// UseNonce consumes nonce for validator. With allowGap a nonce ahead of
// the stored one is accepted without being consumed, as CheckTx does for
// txs queued behind others in the mempool.
func UseNonce(s bridge.Store, validator, nonce uint64, allowGap bool) error {
	expected, err := Nonce(s, validator)
	if err != nil {
		return err
	}
	if allowGap && nonce > expected {
		return nil
	}
	if nonce != expected {
		return fmt.Errorf("%w: validator %d expected %d, got %d", ErrTxNonceInvalid, validator, expected, nonce)
	}
	val, err := rlp.EncodeToBytes(nonce + 1)
	if err != nil {
		return err
	}
	return s.Set(nonceKey(validator), val)
}
