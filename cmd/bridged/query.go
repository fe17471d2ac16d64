package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/calehh/bridge-app/app"
	"github.com/calehh/bridge-app/types"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type queryArguments struct {
	Url    string
	Height int64
}

func queryFlags(cmd *cobra.Command, args *queryArguments) {
	urlFlag(cmd, &args.Url)
	cmd.Flags().Int64VarP(&args.Height, "height", "", 0, "query state at this height, latest when 0")
}

var proposalArgs queryArguments

var proposalCmd = &cobra.Command{
	Use:   "proposal [id]",
	Short: "Show a proposal, or the proposal count without an id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		if len(args) == 1 {
			if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
				return fmt.Errorf("proposal id: %w", err)
			}
			data = []byte(args[0])
		}
		var out json.RawMessage
		if err := query(cmd, &proposalArgs, "/proposals/", data, &out); err != nil {
			return err
		}
		if len(args) == 0 {
			return printJSON(out)
		}
		var p types.Proposal
		if err := json.Unmarshal(out, &p); err != nil {
			return err
		}
		fmt.Printf("proposal:%d kind:%v status:%v votes:%d turnout:%d deadline:%d executed:%v\n",
			p.ID, p.Action.Kind(), p.Status, p.Votes, p.Turnout, p.Deadline, p.Executed)
		if p.ExecError != "" {
			fmt.Println("execution error:", p.ExecError)
		}
		return printJSON(out)
	},
}

var balanceArgs queryArguments

var balanceCmd = &cobra.Command{
	Use:   "balance <account>",
	Short: "Show the bridged token balance of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid account %q", args[0])
		}
		var bal app.Balance
		if err := query(cmd, &balanceArgs, "/balances/", []byte(args[0]), &bal); err != nil {
			return err
		}
		fmt.Printf("account:%s token:%d balance:%s\n", bal.Account.Hex(), bal.Token, bal.Balance)
		return nil
	},
}

func init() {
	queryFlags(proposalCmd, &proposalArgs)
	queryFlags(balanceCmd, &balanceArgs)
}

func query(cmd *cobra.Command, args *queryArguments, path string, data []byte, out any) error {
	cli, err := http.New(args.Url, "/websocket")
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	res, err := cli.ABCIQueryWithOptions(cmd.Context(), path, data, rpcclient.ABCIQueryOptions{Height: args.Height})
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	if res.Response.Code != 0 {
		return fmt.Errorf("query %s: code %d: %s", path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, out)
}

func printJSON(dat []byte) error {
	var v any
	if err := json.Unmarshal(dat, &v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
