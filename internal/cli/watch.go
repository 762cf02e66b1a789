package cli

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"branchqueue/internal/config"
	"branchqueue/internal/protocol"
	"branchqueue/internal/snapshot"
	"branchqueue/internal/wsclient"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// WatchCmd is a terminal display that follows one division over the
// broadcast websocket.
func WatchCmd() *cobra.Command {
	var (
		url        string
		divisionID uint
		terminalID uint
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a division's queue in the terminal",
		Long: `Connects to the broadcast server and prints every queue update.

Examples:
  branchqueue watch --division 1
  branchqueue watch --division 1 --terminal 3
  branchqueue watch --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if divisionID == 0 && !all {
				return fmt.Errorf("either --division or --all is required")
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if url != "" {
				cfg.Client.URL = url
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m := wsclient.New(clientConfig(cfg.Client), log.Named("wsclient"))
			d := &display{out: cmd.OutOrStdout()}

			var target *wsclient.Target
			if divisionID != 0 {
				target = &wsclient.Target{DivisionID: divisionID}
				if terminalID != 0 {
					target.TerminalID = &terminalID
				}
			}

			m.SubscribeStatus(func(s wsclient.State) {
				d.status(s)
				if s == wsclient.StateConnected && all {
					var req protocol.GetAllWaitingQueues
					if divisionID != 0 {
						req.DivisionID = &divisionID
					}
					go func() { _ = m.Send(req) }()
				}
			})
			m.Subscribe(d.handle)

			m.Connect(target)
			<-ctx.Done()
			m.Disconnect()
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "broadcast websocket URL (default CLIENT_URL)")
	cmd.Flags().UintVar(&divisionID, "division", 0, "division to follow")
	cmd.Flags().UintVar(&terminalID, "terminal", 0, "show this terminal's current ticket")
	cmd.Flags().BoolVar(&all, "all", false, "list waiting tickets of every division once connected")
	return cmd
}

func clientConfig(c config.ClientConfig) wsclient.Config {
	return wsclient.Config{
		URL:            c.URL,
		ConnectTimeout: c.ConnectTimeout,
		Backoff: wsclient.Backoff{
			BaseDelay:   c.BaseDelay,
			Multiplier:  c.Multiplier,
			MaxDelay:    c.MaxDelay,
			MaxAttempts: c.MaxAttempts,
		},
	}
}

// display renders the QueueState whenever it changes.
type display struct {
	mu    sync.Mutex
	out   io.Writer
	state wsclient.QueueState
}

func (d *display) status(s wsclient.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch s {
	case wsclient.StateConnected:
		fmt.Fprintln(d.out, color.New(color.FgGreen).Sprint("● connected"))
	case wsclient.StateFailed:
		fmt.Fprintln(d.out, color.New(color.FgRed).Sprint("✗ disconnected, giving up"))
	default:
		fmt.Fprintln(d.out, color.New(color.FgYellow).Sprintf("○ %s", s))
	}
}

func (d *display) handle(msg protocol.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if a, ok := msg.(protocol.TransactionAnnounced); ok {
		fmt.Fprintln(d.out, color.New(color.FgMagenta, color.Bold).Sprintf("▶ announcement for ticket %d", a.QueueID))
		return
	}
	if !d.state.Apply(msg) {
		return
	}

	v := d.state.View()
	if _, ok := msg.(protocol.WaitingQueuesUpdate); ok {
		fmt.Fprintln(d.out, color.New(color.Bold).Sprintf("Waiting in all divisions (%d)", len(v.AllWaiting)))
		for _, t := range v.AllWaiting {
			fmt.Fprintf(d.out, "  %-10s %-20s ~%d min\n", t.QueueNumber, t.DivisionName, t.EstimatedWait)
		}
		return
	}

	fmt.Fprintln(d.out, color.New(color.Bold).Sprintf("Division %d  %s", v.DivisionID, v.UpdatedAt.Format("15:04:05")))
	if v.Current != nil {
		fmt.Fprintf(d.out, "  now serving: %s\n", color.New(color.FgCyan, color.Bold).Sprint(ticketLabel(*v.Current)))
	}
	if v.Terminal != nil {
		fmt.Fprintf(d.out, "  this terminal: %s\n", color.New(color.FgGreen).Sprint(v.Terminal.QueueNumber))
	}
	fmt.Fprintf(d.out, "  waiting: %s\n", numbers(v.Waiting))
	if len(v.Skipped) > 0 {
		fmt.Fprintf(d.out, "  skipped: %s\n", color.New(color.FgYellow).Sprint(numbers(v.Skipped)))
	}
}

func ticketLabel(t snapshot.TicketView) string {
	if t.TerminalNumber != nil {
		return fmt.Sprintf("%s → %d", t.QueueNumber, *t.TerminalNumber)
	}
	return t.QueueNumber
}

func numbers(ts []snapshot.TicketView) string {
	if len(ts) == 0 {
		return "-"
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.QueueNumber
	}
	return strings.Join(parts, " ")
}
