package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
)

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

const BridgeModuleName = "bridge"
const DefaultPower = 1000

const (
	DefaultVotingPeriod       = 30
	DefaultMaxOpenPerDeadline = 2
	DefaultValidatorCount     = 3
)

// Params are fixed at genesis and never change at runtime.
type Params struct {
	VotingPeriod       uint64 `json:"voting_period"`
	MaxOpenPerDeadline uint64 `json:"max_open_per_deadline"`
	ValidatorCount     uint64 `json:"validator_count"`
	TokenID            uint64 `json:"token_id"`
	TokenSymbol        string `json:"token_symbol"`
}

func DefaultParams() Params {
	return Params{
		VotingPeriod:       DefaultVotingPeriod,
		MaxOpenPerDeadline: DefaultMaxOpenPerDeadline,
		ValidatorCount:     DefaultValidatorCount,
		TokenID:            0,
		TokenSymbol:        "BRG",
	}
}

func (p Params) Validate() error {
	if p.VotingPeriod == 0 {
		return errors.New("voting_period must be positive")
	}
	if p.MaxOpenPerDeadline == 0 {
		return errors.New("max_open_per_deadline must be positive")
	}
	if p.ValidatorCount == 0 {
		return errors.New("validator_count must be positive")
	}
	return nil
}

type GenesisBridgeValidator struct {
	PubKey []byte `json:"pub_key"`
	Name   string `json:"name"`
}

// BridgeGenesis is the app_state of the genesis document. When Validators
// is empty the consensus validator set of InitChain becomes the bridge
// validator set.
type BridgeGenesis struct {
	Params     Params                   `json:"params"`
	Validators []GenesisBridgeValidator `json:"validators,omitempty"`
}

func DefaultBridgeGenesis() BridgeGenesis {
	return BridgeGenesis{Params: DefaultParams()}
}

// ParseBridgeGenesis decodes app_state. Empty input yields the defaults;
// a zero validator_count is filled from the validator set by the caller.
func ParseBridgeGenesis(dat []byte) (gen BridgeGenesis, err error) {
	gen = DefaultBridgeGenesis()
	if len(dat) == 0 {
		return
	}
	err = json.Unmarshal(dat, &gen)
	return
}
