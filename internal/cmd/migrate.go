package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/937bb/937cms-sub001/pkg/database"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations for the normalized tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.open()
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := database.Migrate(context.Background(), e.db, e.dialect())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}
