// Package commands implements the roomctl command line.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"roomsync/client"
)

var (
	serverURL string
	rc        *client.Client
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRoot().ExecuteContext(ctx)
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "roomctl",
		Short:        "Create, read and update shared rooms",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				serverURL = os.Getenv("ROOMSYNC_SERVER")
			}
			if serverURL == "" {
				serverURL = "http://127.0.0.1:3002"
			}
			rc = client.New(serverURL)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default $ROOMSYNC_SERVER or http://127.0.0.1:3002)")

	root.AddCommand(makeCmd(), getCmd(), watchCmd(), commitCmd())
	return root
}

// readData parses a JSON argument, or stdin when the argument is "-".
func readData(arg string, stdin io.Reader) (json.RawMessage, error) {
	raw := []byte(arg)
	if arg == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("data is not valid JSON: %q", raw)
	}
	return json.RawMessage(raw), nil
}

func printRoom(w io.Writer, version uint64, data json.RawMessage) {
	fmt.Fprintf(w, "%d\t%s\n", version, data)
}
