package main

import (
	"os"

	"github.com/bitmage/claude-habitat-sub001/cmd"
	"github.com/bitmage/claude-habitat-sub001/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
