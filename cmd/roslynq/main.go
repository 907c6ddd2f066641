// Command roslynq is the client binary: a thin urfave/cli/v3 front end
// over internal/cli's command tree, responsible only for translating a
// returned *cli.ExitError into the matching process exit code from
// spec.md §6.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roslynq/roslynq/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := cli.BuildRootCommand()

	err := cmd.Run(context.Background(), os.Args)
	if err == nil {
		return cli.ExitSuccess
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "roslynq: %v\n", exitErr.Err)
		return exitErr.Code
	}

	fmt.Fprintf(os.Stderr, "roslynq: %v\n", err)
	return cli.ExitArgumentError
}
