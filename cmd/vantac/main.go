// Command vantac is the coordinator's standalone binary: a thin wrapper
// around internal/cli.
package main

import (
	"fmt"
	"os"

	"github.com/vantalang/coordinator/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "vantac: fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := cli.BuildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
