package main

import (
	"os"

	"github.com/ctavolazzi/bot-memory/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
