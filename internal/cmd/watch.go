package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/937bb/937cms-sub001/internal/logging"
	synchub "github.com/937bb/937cms-sub001/internal/sync"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		addr string
		raw  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the progress feed of a running vodsync serve",
		Long: `Connect to the TCP progress feed and print run events as they arrive.
Reconnects automatically until interrupted.

Examples:
  vodsync watch --addr 127.0.0.1:7070
  vodsync watch --raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := root.logFormat
			if format == "" {
				format = "text"
			}
			log := logging.New(cmd.ErrOrStderr(), "vodsync-watch", "info", format)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return synchub.Follow(ctx, addr, cmd.OutOrStdout(), raw, time.Second, log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "TCP feed address")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the JSON lines unformatted")
	return cmd
}
