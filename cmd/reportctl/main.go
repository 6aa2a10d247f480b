package main

import (
	"os"

	"github.com/arturoeanton/go-commit-reporter/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
