package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/937bb/937cms-sub001/internal/episode"
)

var errInvariants = errors.New("normalized tables violate invariants")

func newVerifyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Print table counts and check the normalized-table invariants",
		Long: `Checks that every episode belongs to an existing source of the same video,
that episode_num is sort+1, and that each source's sort values run 0..n-1.
Exits non-zero when anything is off.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.open()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := context.Background()
			repo := episode.NewRepo(e.db, e.dialect())
			counts, err := repo.Counts(ctx)
			if err != nil {
				return err
			}
			v, err := repo.CheckInvariants(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sources:  %d (%d orphan)\n", counts.Sources, counts.OrphanSources)
			fmt.Fprintf(out, "episodes: %d\n", counts.Episodes)
			if v.OK() {
				fmt.Fprintln(out, "invariants: ok")
				return nil
			}
			fmt.Fprintf(out, "dangling episodes:       %d\n", v.DanglingEpisodes)
			fmt.Fprintf(out, "video mismatches:        %d\n", v.VideoMismatches)
			fmt.Fprintf(out, "episode_num mismatches:  %d\n", v.NumberMismatches)
			fmt.Fprintf(out, "non-contiguous sources:  %d\n", v.NonContiguousSources)
			return errInvariants
		},
	}
}
