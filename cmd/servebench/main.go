package main

import (
	"os"

	"github.com/servebench/servebench/cmd/servebench/cmd"
	"github.com/servebench/servebench/internal/common"
	"github.com/servebench/servebench/internal/common/bencherrors"
)

// Config is handled by cmd/params.go
func main() {
	common.ConfigureLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(bencherrors.ExitCodeFromError(err))
	}
}
