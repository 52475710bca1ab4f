package commands

import (
	"github.com/spf13/cobra"
)

// get: print the room's current version and data.
func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <room>",
		Short: "Print a room's version and data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := rc.List(cmd.Context(), args[0], 0)
			if err != nil {
				return err
			}
			printRoom(cmd.OutOrStdout(), room.Version, room.Data)
			return nil
		},
	}
}
