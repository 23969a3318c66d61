package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/937bb/937cms-sub001/internal/episode"
	"github.com/937bb/937cms-sub001/internal/playurl"
	"github.com/937bb/937cms-sub001/internal/vod"
)

func newSourcesCmd(root *rootOptions) *cobra.Command {
	var legacy bool

	cmd := &cobra.Command{
		Use:   "sources <video-id>",
		Short: "Print the normalized playlist of one video",
		Long: `Print the sources and episodes written for a video.

With --legacy the playlist is re-encoded into the vod_play_from and
vod_play_url format instead, followed by every segment of the legacy row
that the sync drops and why.

Examples:
  vodsync sources 42
  vodsync sources 42 --legacy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid video id %q", args[0])
			}

			e, err := root.open()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := context.Background()
			lists, err := episode.NewRepo(e.db, e.dialect()).ListByVideo(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if legacy {
				from, url := playurl.Encode(episode.Groups(lists))
				fmt.Fprintf(out, "vod_play_from: %s\n", from)
				fmt.Fprintf(out, "vod_play_url:  %s\n", url)

				v, err := vod.NewRepo(e.db, e.dialect()).GetByID(ctx, id)
				if err != nil {
					return err
				}
				if v == nil {
					fmt.Fprintf(out, "video %d is not in bb_vod\n", id)
					return nil
				}
				skipped := playurl.Explain(v.PlayFrom, v.PlayURL)
				fmt.Fprintf(out, "skipped segments: %d\n", len(skipped))
				for _, sk := range skipped {
					fmt.Fprintf(out, "   %s #%d %q: %s\n", sk.PlayerKey, sk.Index+1, sk.Raw, sk.Reason)
				}
				return nil
			}

			if len(lists) == 0 {
				fmt.Fprintf(out, "video %d has no sources\n", id)
				return nil
			}
			for _, l := range lists {
				player := "orphan"
				if l.Source.PlayerID != 0 {
					player = "player " + strconv.FormatInt(l.Source.PlayerID, 10)
				}
				fmt.Fprintf(out, "%d. %s (%s, %d episodes)\n", l.Source.Sort+1, l.Source.PlayerName, player, len(l.Episodes))
				for _, ep := range l.Episodes {
					fmt.Fprintf(out, "   %3d  %s  %s\n", ep.EpisodeNum, ep.Title, ep.URL)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&legacy, "legacy", false, "print the legacy vod_play_from/vod_play_url encoding")
	return cmd
}
