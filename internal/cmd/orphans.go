package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/937bb/937cms-sub001/internal/episode"
	"github.com/937bb/937cms-sub001/pkg/models"
)

func newOrphansCmd(root *rootOptions) *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List player keys that have sources but no registry entry",
		Long: `List the player_name values written with player_id 0, i.e. keys found in
vod_play_from that bb_player does not know.

Examples:
  vodsync orphans
  vodsync orphans --csv data/orphans.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.open()
			if err != nil {
				return err
			}
			defer e.Close()

			items, err := episode.NewRepo(e.db, e.dialect()).Orphans(context.Background())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if csvPath != "" {
				if err := exportOrphans(csvPath, items); err != nil {
					return fmt.Errorf("export orphans: %w", err)
				}
				fmt.Fprintf(out, "exported %d orphan player(s) to %s\n", len(items), csvPath)
				return nil
			}

			if len(items) == 0 {
				fmt.Fprintln(out, "no orphan sources")
				return nil
			}
			fmt.Fprintf(out, "%-24s %8s %8s\n", "PLAYER", "SOURCES", "VIDEOS")
			for _, o := range items {
				fmt.Fprintf(out, "%-24s %8d %8d\n", o.PlayerName, o.Sources, o.Videos)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "write the audit to this CSV file instead of stdout")
	return cmd
}

func exportOrphans(outPath string, items []models.Orphan) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"player_name", "sources", "videos"}); err != nil {
		return err
	}
	for _, o := range items {
		if err := w.Write([]string{o.PlayerName, strconv.Itoa(o.Sources), strconv.Itoa(o.Videos)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
