package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(burnCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(proposalCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(pubkeyCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
