// Package main provides the entry point for the codenavd CLI.
package main

import (
	"os"

	"github.com/codenav/codenavd/cmd/codenavd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
