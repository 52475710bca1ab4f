package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// make: create a room and print its name.
func makeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "make [data]",
		Short: "Create a room holding data (JSON, or - for stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := json.RawMessage("null")
			if len(args) == 1 {
				var err error
				if data, err = readData(args[0], cmd.InOrStdin()); err != nil {
					return err
				}
			}

			id, err := rc.MakeRoom(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
