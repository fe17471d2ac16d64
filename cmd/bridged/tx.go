package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/calehh/bridge-app/crypto"
	"github.com/calehh/bridge-app/tx"
	"github.com/calehh/bridge-app/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var errUnknownValidator = errors.New("key is not a bridge validator")

type txArguments struct {
	Url    string
	Skey   string
	Nonce  int64
	NoSend bool
}

func txFlags(cmd *cobra.Command, args *txArguments) {
	urlFlag(cmd, &args.Url)
	skeyFlag(cmd, &args.Skey)
	cmd.Flags().Int64VarP(&args.Nonce, "nonce", "n", -1, "validator nonce, queried from the node when negative")
	cmd.Flags().BoolVarP(&args.NoSend, "nosend", "", false, "print the signed transaction instead of broadcasting it")
}

type mintArguments struct {
	txArguments
	Event     string
	Origin    string
	Recipient string
	Amount    string
}

var mintArgs mintArguments

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Attest a foreign lock and vote to mint the bridged token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(mintArgs.Recipient) {
			return fmt.Errorf("invalid recipient %q", mintArgs.Recipient)
		}
		event, err := hexutil.Decode(mintArgs.Event)
		if err != nil {
			return fmt.Errorf("event id: %w", err)
		}
		origin, err := decodeOptional(mintArgs.Origin)
		if err != nil {
			return fmt.Errorf("origin: %w", err)
		}
		return sendTx(cmd.Context(), &mintArgs.txArguments, &tx.MintTx{
			EventID:   event,
			Origin:    origin,
			Recipient: common.HexToAddress(mintArgs.Recipient),
			Amount:    mintArgs.Amount,
		})
	},
}

type burnArguments struct {
	txArguments
	Event       string
	Destination string
	Holder      string
	Amount      string
}

var burnArgs burnArguments

var burnCmd = &cobra.Command{
	Use:   "burn",
	Short: "Attest a burn request and vote to release it on the foreign chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(burnArgs.Holder) {
			return fmt.Errorf("invalid holder %q", burnArgs.Holder)
		}
		event, err := hexutil.Decode(burnArgs.Event)
		if err != nil {
			return fmt.Errorf("event id: %w", err)
		}
		dest, err := decodeOptional(burnArgs.Destination)
		if err != nil {
			return fmt.Errorf("destination: %w", err)
		}
		return sendTx(cmd.Context(), &burnArgs.txArguments, &tx.BurnTx{
			EventID:     event,
			Destination: dest,
			Holder:      common.HexToAddress(burnArgs.Holder),
			Amount:      burnArgs.Amount,
		})
	},
}

type voteArguments struct {
	txArguments
	Reject bool
}

var voteArgs voteArguments

var voteCmd = &cobra.Command{
	Use:   "vote <proposal>",
	Short: "Vote on an open proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("proposal id: %w", err)
		}
		return sendTx(cmd.Context(), &voteArgs.txArguments, &tx.VoteTx{Proposal: id, Assent: !voteArgs.Reject})
	},
}

func init() {
	txFlags(mintCmd, &mintArgs.txArguments)
	mintCmd.Flags().StringVarP(&mintArgs.Event, "event", "e", "", "foreign event id, 0x hex")
	mintCmd.Flags().StringVarP(&mintArgs.Origin, "origin", "o", "", "foreign origin address, 0x hex")
	mintCmd.Flags().StringVarP(&mintArgs.Recipient, "recipient", "r", "", "recipient account")
	mintCmd.Flags().StringVarP(&mintArgs.Amount, "amount", "a", "", "decimal amount")
	_ = mintCmd.MarkFlagRequired("event")
	_ = mintCmd.MarkFlagRequired("recipient")
	_ = mintCmd.MarkFlagRequired("amount")

	txFlags(burnCmd, &burnArgs.txArguments)
	burnCmd.Flags().StringVarP(&burnArgs.Event, "event", "e", "", "burn request id, 0x hex")
	burnCmd.Flags().StringVarP(&burnArgs.Destination, "destination", "t", "", "foreign destination address, 0x hex")
	burnCmd.Flags().StringVarP(&burnArgs.Holder, "holder", "", "", "account the tokens are burnt from")
	burnCmd.Flags().StringVarP(&burnArgs.Amount, "amount", "a", "", "decimal amount")
	_ = burnCmd.MarkFlagRequired("event")
	_ = burnCmd.MarkFlagRequired("holder")
	_ = burnCmd.MarkFlagRequired("amount")

	txFlags(voteCmd, &voteArgs.txArguments)
	voteCmd.Flags().BoolVarP(&voteArgs.Reject, "reject", "", false, "vote against the proposal")
}

func decodeOptional(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hexutil.Decode(s)
}

// sendTx signs body with the validator key and broadcasts it, filling the
// validator id and nonce from the node.
func sendTx(ctx context.Context, args *txArguments, body any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	pv, err := crypto.LoadFilePV(args.Skey)
	if err != nil {
		return err
	}
	cli, err := http.New(args.Url, "/websocket")
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return fmt.Errorf("get chain genesis: %w", err)
	}
	chainID := gres.Genesis.ChainID

	var vals []types.Validator
	if err = abciQuery(ctx, cli, "/validators/", nil, &vals); err != nil {
		return err
	}
	validator, ok := findValidator(vals, pv.Account())
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownValidator, pv.Account().Hex())
	}

	var nonce uint64
	if args.Nonce >= 0 {
		nonce = uint64(args.Nonce)
	} else if err = abciQuery(ctx, cli, "/nonces/", []byte(strconv.FormatUint(validator.ID, 10)), &nonce); err != nil {
		return err
	}

	btx, err := tx.NewBridgeTx(validator.ID, nonce, body)
	if err != nil {
		return err
	}
	if err = pv.SignTx(btx, chainID); err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	dat, err := tx.MarshalBridgeTx(btx)
	if err != nil {
		return err
	}
	if args.NoSend {
		fmt.Println(string(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	out, _ := json.Marshal(res)
	fmt.Println(string(out))
	if res.Code != 0 {
		return fmt.Errorf("tx rejected with code %d: %s", res.Code, res.Log)
	}
	return nil
}

func findValidator(vals []types.Validator, account common.Address) (types.Validator, bool) {
	for _, v := range vals {
		if v.Account == account {
			return v, true
		}
	}
	return types.Validator{}, false
}

func abciQuery(ctx context.Context, cli *http.HTTP, path string, data []byte, out any) error {
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	if res.Response.Code != 0 {
		return fmt.Errorf("query %s: code %d: %s", path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, out)
}
