// Package main is the entry point for the mqleval CLI binary.
package main

import (
	"os"

	cli "mqleval/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
