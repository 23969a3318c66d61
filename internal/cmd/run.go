package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/937bb/937cms-sub001/internal/episode"
	"github.com/937bb/937cms-sub001/internal/player"
	"github.com/937bb/937cms-sub001/internal/resync"
	"github.com/937bb/937cms-sub001/internal/telemetry"
	"github.com/937bb/937cms-sub001/internal/vod"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		pageSize        int
		pagination      string
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Truncate and rebuild the normalized source and episode tables",
		Long: `Run one full resync:
  1. apply pending migrations
  2. load the player registry and count bb_vod
  3. truncate bb_vod_episode and bb_vod_source
  4. page through bb_vod and write sources and episodes page by page

A failed run leaves the tables partially rebuilt; run again from the start.

Examples:
  vodsync run
  vodsync run --page-size 500 --pagination keyset`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.open()
			if err != nil {
				return err
			}
			defer e.Close()

			if cmd.Flags().Changed("page-size") {
				e.cfg.Sync.PageSize = pageSize
			}
			if cmd.Flags().Changed("pagination") {
				e.cfg.Sync.Pagination = pagination
			}
			if cmd.Flags().Changed("continue-on-error") {
				e.cfg.Sync.ContinueOnRecordError = continueOnError
			}

			observers := []resync.Observer{resync.NewLogObserver(e.log)}
			enabled, err := telemetry.InitSentry(e.cfg.Telemetry, "vodsync")
			if err != nil {
				e.log.WithError(err).Warn("sentry disabled")
			}
			if enabled {
				defer telemetry.Flush()
				observers = append(observers, telemetry.NewObserver(nil))
			}

			orch, err := newOrchestrator(e, observers...)
			if err != nil {
				return err
			}

			rep, err := orch.Run(context.Background())
			printReport(cmd.OutOrStdout(), rep)
			return err
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 0, "legacy rows per page (overrides sync.page_size)")
	cmd.Flags().StringVar(&pagination, "pagination", "", "offset or keyset (overrides sync.pagination)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "skip records that fail to write instead of aborting")
	return cmd
}

func newOrchestrator(e *env, observers ...resync.Observer) (*resync.Orchestrator, error) {
	d := e.dialect()
	return resync.New(e.cfg.Sync, resync.Deps{
		Videos:  vod.NewRepo(e.db, d),
		Players: player.NewRepo(e.db),
		Store:   episode.NewRepo(e.db, d),
		Log:     e.log,
	}, observers...)
}

func printReport(w io.Writer, r resync.Report) {
	if r.RunID == "" {
		return
	}
	fmt.Fprintf(w, "run %s: %s\n", r.RunID, r.State)
	fmt.Fprintf(w, "  videos:   %d/%d processed", r.ProcessedRecords, r.TotalRecords)
	if r.SkippedRecords > 0 {
		fmt.Fprintf(w, ", %d skipped", r.SkippedRecords)
	}
	fmt.Fprintf(w, " in %d pages\n", r.Pages)
	if r.State == resync.Completed {
		fmt.Fprintf(w, "  sources:  %d (%d orphan)\n", r.Final.Sources, r.Final.OrphanSources)
		fmt.Fprintf(w, "  episodes: %d\n", r.Final.Episodes)
	}
	fmt.Fprintf(w, "  took:     %s\n", r.Duration().Round(time.Millisecond))
}
