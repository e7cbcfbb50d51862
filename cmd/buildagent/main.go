package main

import (
	"os"

	"github.com/buildagent/buildagent/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
