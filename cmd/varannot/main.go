// Package main provides the entry point for the varannot CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/varannot/cmd/varannot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
