package main

import (
	"os"

	"roomsync/cmd/roomctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
