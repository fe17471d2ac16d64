package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	KeyParams          = []byte("bp")
	KeyProposalCount   = []byte("pc")
	KeyValidatorCount  = []byte("vc")
	KeyProposalBody    = "p%d"
	KeyDedupByHash     = "dh%x"
	KeyDedupByID       = "di%d"
	KeyDeadline        = "dl%d"
	KeyValidatorBody   = "v%d"
	KeyValidatorByAcct = "va%x"
)

func proposalKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyProposalBody, id))
}

func dedupHashKey(fp common.Hash) []byte {
	return []byte(fmt.Sprintf(KeyDedupByHash, fp[:]))
}

func dedupIDKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyDedupByID, id))
}

func deadlineKey(height uint64) []byte {
	return []byte(fmt.Sprintf(KeyDeadline, height))
}

func validatorKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyValidatorBody, id))
}

func validatorAccountKey(account common.Address) []byte {
	return []byte(fmt.Sprintf(KeyValidatorByAcct, account[:]))
}

func getUint64(s Store, key []byte) (v uint64, ok bool, err error) {
	val, err := s.Get(key)
	if err != nil || val == nil {
		return 0, false, err
	}
	if err = rlp.DecodeBytes(val, &v); err != nil {
		return 0, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return v, true, nil
}

func setUint64(s Store, key []byte, v uint64) error {
	val, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	return s.Set(key, val)
}

func getIDs(s Store, key []byte) (ids []uint64, err error) {
	val, err := s.Get(key)
	if err != nil || val == nil {
		return nil, err
	}
	if err = rlp.DecodeBytes(val, &ids); err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return ids, nil
}

func setIDs(s Store, key []byte, ids []uint64) error {
	if len(ids) == 0 {
		return s.Delete(key)
	}
	val, err := rlp.EncodeToBytes(ids)
	if err != nil {
		return err
	}
	return s.Set(key, val)
}

func getJSON(s Store, key []byte, v any) (ok bool, err error) {
	val, err := s.Get(key)
	if err != nil || val == nil {
		return false, err
	}
	if err = json.Unmarshal(val, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func setJSON(s Store, key []byte, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(key, val)
}
