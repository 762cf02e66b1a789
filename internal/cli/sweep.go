package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// SweepCmd expires yesterday's waiting tickets once and exits.
func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire tickets still waiting from previous days",
		Long: `Runs the nightly expiry sweep once.

Every ticket still waiting from a day before today (in QUEUE_LOCATION) is
marked expired. The server runs the same sweep on QUEUE_EXPIRY_SCHEDULE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			n, err := a.service.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgGreen).Sprint("✓"), "no stale tickets")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgYellow).Sprint("!"), fmt.Sprintf("expired %d ticket(s)", n))
			return nil
		},
	}
}
