package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/bridge-app/app"
	"github.com/calehh/bridge-app/config"
	"github.com/calehh/bridge-app/indexer"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "bridged",
	Short: "bridged runs a validator of the token bridge chain",
	Long: `bridged runs a CometBFT node whose validators attest foreign chain
events and vote mints and burns of the bridged token.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

func run(cmd *cobra.Command, args []string) error {
	if homeDir == "" {
		homeDir = os.ExpandEnv(config.DefaultHomeDir)
	}
	cfg, err := config.LoadConfig(homeDir)
	if err != nil {
		return err
	}

	pv := privval.LoadFilePV(
		cfg.PrivValidatorKeyFile(),
		cfg.PrivValidatorStateFile(),
	)
	nodeKey, err := p2p.LoadNodeKey(cfg.NodeKeyFile())
	if err != nil {
		return fmt.Errorf("failed to load node's key: %w", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(cfg.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	bridgeApp, err := app.NewBridgeApp(cfg.App, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("new app: %w", err)
	}

	node, err := nm.NewNode(
		cfg.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(bridgeApp),
		nm.DefaultGenesisDocProviderFunc(cfg.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(cfg.Instrumentation),
		logger,
	)
	if err != nil {
		bridgeApp.Stop()
		return fmt.Errorf("creating node: %w", err)
	}
	if err = node.Start(); err != nil {
		bridgeApp.Stop()
		return fmt.Errorf("start comet node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.App.IndexerEnable {
		if err = startIndexer(ctx, cfg, logger); err != nil {
			logger.Error("indexer not started", "err", err)
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down")
	cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := node.Stop(); err != nil {
			logger.Error("stop comet node fail", "err", err)
		}
		node.Wait()
		bridgeApp.Stop()
	}()
	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return fmt.Errorf("shutdown timed out after %v", shutdownTimeout)
	case <-done:
		return nil
	}
}

// startIndexer follows the local node over its rpc endpoint and serves the
// indexed proposals.
func startIndexer(ctx context.Context, cfg *config.Config, logger cmtlog.Logger) error {
	rpcURL, err := url.Parse(cfg.RPC.ListenAddress)
	if err != nil {
		return err
	}
	rpcURL.Scheme = "http"
	cli, err := comethttp.New(rpcURL.String(), "/websocket")
	if err != nil {
		return err
	}
	db, err := indexer.OpenDB(cfg.App.IndexerDBPath())
	if err != nil {
		return err
	}
	idx, err := indexer.NewChainIndexer(logger, db, cli)
	if err != nil {
		db.Close()
		return err
	}
	go func() {
		idx.Start(ctx)
		if err := idx.Close(); err != nil {
			logger.Error("close indexer fail", "err", err)
		}
	}()
	svc := indexer.NewService(cfg.App.IndexerListenAddr, idx)
	go func() {
		if err := svc.Start(ctx); err != nil {
			logger.Error("indexer service stopped", "err", err)
		}
	}()
	return nil
}
