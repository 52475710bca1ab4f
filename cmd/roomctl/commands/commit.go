package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// commit: replace a room's data if it is still at the given version.
func commitCmd() *cobra.Command {
	var version uint64
	cmd := &cobra.Command{
		Use:   "commit <room> <data>",
		Short: "Replace a room's data, expecting --version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := rc.Commit(cmd.Context(), args[0], version, data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version+1)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&version, "version", 0, "version the commit is based on")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
