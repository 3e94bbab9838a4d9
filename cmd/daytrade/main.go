package main

import (
	"os"

	"github.com/rustyeddy/daytrader/cmd/daytrade/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
