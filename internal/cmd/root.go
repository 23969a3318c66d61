// Package cmd implements the vodsync command line.
package cmd

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logFormat  string
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "vodsync",
		Short: "Rebuild normalized playback sources from legacy vod_play_url data",
		Long: `vodsync - legacy playback-URL normalization for the VOD CMS
  - run       truncate and rebuild bb_vod_source / bb_vod_episode
  - verify    check counts and table invariants
  - serve     operator API, progress feed and gRPC health`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $CMS_DATA_DIR/vodsync.yaml)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: json or text (overrides config)")

	root.AddCommand(
		newRunCmd(opts),
		newMigrateCmd(opts),
		newVerifyCmd(opts),
		newSourcesCmd(opts),
		newOrphansCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newHashPasswordCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
