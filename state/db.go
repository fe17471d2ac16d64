package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/calehh/bridge-app/bridge"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const treeCacheSize = 128

var (
	KeyHeader = []byte("s")

	ErrNoCommittedState = errors.New("no committed state")
)

type Header struct {
	Height  uint64      `json:"height"`
	ChainID string      `json:"chain_id"`
	Hash    common.Hash `json:"-"`
}

// StateDB owns the iavl tree holding the whole application state. The
// working tree is written by the consensus connection only; committed
// versions are read through snapshots.
type StateDB struct {
	mtx sync.RWMutex

	logger cmtlog.Logger
	ldb    dbm.DB
	tree   *iavl.MutableTree
	store  *Store

	// header of the last committed version
	header Header
}

func NewStateDB(dir string, logger cmtlog.Logger) (*StateDB, error) {
	ldb, err := dbm.NewDB("bridge", "goleveldb", dir)
	if err != nil {
		return nil, err
	}
	return newStateDB(ldb, logger)
}

// NewMemStateDB keeps the tree in memory only.
func NewMemStateDB(logger cmtlog.Logger) (*StateDB, error) {
	return newStateDB(dbm.NewMemDB(), logger)
}

func newStateDB(ldb dbm.DB, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "statedb")
	tree := iavl.NewMutableTree(ldb, treeCacheSize, true, newTreeLogger(logger))
	version, err := tree.Load()
	if err != nil {
		return nil, err
	}
	db = &StateDB{
		logger: logger,
		ldb:    ldb,
		tree:   tree,
		store:  &Store{tree: tree},
	}
	if version > 0 {
		ok, err := getHeader(db.store, &db.header)
		if err != nil {
			logger.Error("load state header fail", "err", err)
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state version %d has no header", version)
		}
		db.header.Hash = appHash(tree.Hash())
	}
	logger.Info("load db success", "version", version, "height", db.header.Height)
	return db, nil
}

// Close releases the tree and then the database under it, which iavl
// leaves open.
func (db *StateDB) Close() error {
	if err := db.tree.Close(); err != nil {
		return err
	}
	return db.ldb.Close()
}

// Header returns the header of the last committed version.
func (db *StateDB) Header() Header {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.header
}

// Store is the working state. Writes land in the next version.
func (db *StateDB) Store() *Store {
	return db.store
}

// WorkingHash is the app hash the working state would commit to.
func (db *StateDB) WorkingHash() common.Hash {
	return appHash(db.tree.WorkingHash())
}

// SetHeader writes the header of the version being built.
func (db *StateDB) SetHeader(header Header) error {
	return setHeader(db.store, header)
}

// WorkingHeader reads the header of the version being built.
func (db *StateDB) WorkingHeader() (header Header, err error) {
	_, err = getHeader(db.store, &header)
	return
}

// Commit saves the working tree as a new version.
func (db *StateDB) Commit() (hash common.Hash, err error) {
	var header Header
	ok, err := getHeader(db.store, &header)
	if err != nil {
		return hash, err
	}
	if !ok {
		return hash, errors.New("commit without header")
	}
	root, version, err := db.tree.SaveVersion()
	if err != nil {
		return hash, err
	}
	hash = appHash(root)
	header.Hash = hash

	db.mtx.Lock()
	db.header = header
	db.mtx.Unlock()
	db.logger.Debug("state committed", "version", version, "height", header.Height, "hash", hash.Hex())
	return hash, nil
}

// Rollback drops every uncommitted write.
func (db *StateDB) Rollback() {
	db.tree.Rollback()
}

// Snapshot opens the committed version at height for reading. Zero means
// the latest one.
func (db *StateDB) Snapshot(height uint64) (*ReadOnlyStore, uint64, error) {
	db.mtx.RLock()
	latest := db.header.Height
	db.mtx.RUnlock()
	if height == 0 {
		height = latest
	}
	version, err := db.versionOf(height)
	if err != nil {
		return nil, 0, err
	}
	tree, err := db.tree.GetImmutable(version)
	if err != nil {
		return nil, 0, err
	}
	return &ReadOnlyStore{tree: tree}, height, nil
}

// versionOf maps a block height to the tree version committed for it.
// Genesis is written together with the first block, so the versions are
// one to one with heights starting at the first committed one.
func (db *StateDB) versionOf(height uint64) (int64, error) {
	latestVersion := db.tree.Version()
	if latestVersion == 0 {
		return 0, ErrNoCommittedState
	}
	db.mtx.RLock()
	latest := db.header.Height
	db.mtx.RUnlock()
	if height > latest {
		return 0, fmt.Errorf("height %d is above the committed height %d", height, latest)
	}
	version := latestVersion - int64(latest-height)
	if version < 1 || !db.tree.VersionExists(version) {
		return 0, fmt.Errorf("height %d: %w", height, ErrNoCommittedState)
	}
	return version, nil
}

func appHash(root []byte) common.Hash {
	return crypto.Keccak256Hash(root)
}

func getHeader(s bridge.Store, header *Header) (bool, error) {
	val, err := s.Get(KeyHeader)
	if err != nil || val == nil {
		return false, err
	}
	return true, json.Unmarshal(val, header)
}

func setHeader(s bridge.Store, header Header) error {
	val, err := json.Marshal(header)
	if err != nil {
		return err
	}
	return s.Set(KeyHeader, val)
}
