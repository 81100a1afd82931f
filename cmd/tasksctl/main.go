package main

import (
	"os"

	"github.com/s1natex/lightly-tasks/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
