package main

import (
	"os"

	"github.com/rustyeddy/intrabot/cmd/intrabot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
