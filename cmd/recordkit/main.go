// Command recordkit compiles, validates and versions record schemas.
package main

import (
	"os"

	"github.com/roach88/recordkit/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
