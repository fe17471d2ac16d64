package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/calehh/bridge-app/config"
	"github.com/calehh/bridge-app/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"
)

type printInfo struct {
	Moniker    string          `json:"moniker" yaml:"moniker"`
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long:  `Initialize validators's and node's configuration files.`,
	Args:  cobra.NoArgs,
	RunE:  initRun,
}

func init() {
	initCmd.Flags().BoolP(FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(FlagHome, "", "home directory")
	initCmd.Flags().Uint64("voting-period", types.DefaultVotingPeriod, "blocks a proposal stays open")
	initCmd.Flags().Uint64("max-open", types.DefaultMaxOpenPerDeadline, "open proposals allowed per deadline height")
	initCmd.Flags().String("token-symbol", types.DefaultParams().TokenSymbol, "symbol of the bridged token")
	initCmd.Flags().Bool("indexer", false, "enable the chain indexer")
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(FlagHome)
	chainID, _ := cmd.Flags().GetString(FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(FlagOverwrite)
	if chainID == "" {
		chainID = fmt.Sprintf("bridge-chain-%v", rand.Uint64())
	}
	cfg := config.DefaultConfig(home)
	cfg.App.IndexerEnable, _ = cmd.Flags().GetBool("indexer")

	genFile := cfg.GenesisFile()
	if !overwrite && cmtos.FileExists(genFile) {
		return fmt.Errorf("genesis file %s already exists, use --%s", genFile, FlagOverwrite)
	}

	for _, dir := range []string{filepath.Join(cfg.RootDir, "config"), cfg.App.DataDir()} {
		if err := cmtos.EnsureDir(dir, config.DefaultDirPerm); err != nil {
			return err
		}
	}
	nodeID, pk, err := config.InitializeNodeValidatorFiles(cfg, nil)
	if err != nil {
		return err
	}
	vals := []types.GenesisValidator{{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower}}

	gen := types.DefaultBridgeGenesis()
	gen.Params.VotingPeriod, _ = cmd.Flags().GetUint64("voting-period")
	gen.Params.MaxOpenPerDeadline, _ = cmd.Flags().GetUint64("max-open")
	gen.Params.TokenSymbol, _ = cmd.Flags().GetString("token-symbol")
	gen.Params.ValidatorCount = uint64(len(vals))
	if err = gen.Params.Validate(); err != nil {
		return err
	}
	appState, err := json.Marshal(gen)
	if err != nil {
		return err
	}

	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators:      vals,
		AppState:        appState,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	if err = config.WriteConfigFile(config.ConfigFilePath(cfg.RootDir), cfg); err != nil {
		return err
	}
	return displayInfo(printInfo{Moniker: cfg.Moniker, ChainID: chainID, NodeID: nodeID, AppMessage: appState})
}
