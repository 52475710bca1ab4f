package commands

import (
	"roomsync/core"

	"github.com/spf13/cobra"
)

// watch: long-poll a room and print every new version.
func watchCmd() *cobra.Command {
	var from uint64
	cmd := &cobra.Command{
		Use:   "watch <room>",
		Short: "Print each new version of a room as it is committed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return rc.Watch(cmd.Context(), args[0], from, func(room core.Room) error {
				printRoom(out, room.Version, room.Data)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 0, "print versions after this one (0 prints the current version first)")
	return cmd
}
