package main

import (
	"os"

	"github.com/monorkin/flow-index-monitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
