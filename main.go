package main

import (
	"fmt"
	"os"

	_ "branchqueue/docs"
	"branchqueue/internal/cli"

	"github.com/spf13/cobra"
)

// @Title		Branch queue API
// @Version	1.0
// @Description	Ticket queue mutations and the real-time queue broadcast.
func main() {
	rootCmd := &cobra.Command{
		Use:   "branchqueue",
		Short: "Branch queuing platform: ticket queues and live queue broadcast",
		Long: `branchqueue issues queue tickets per division, lets terminals call them
and pushes the live state of every division to displays over a websocket.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.SweepCmd())
	rootCmd.AddCommand(cli.WatchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
