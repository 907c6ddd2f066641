package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/roslynq/roslynq/internal/debug"
	"github.com/roslynq/roslynq/internal/version"
	"github.com/roslynq/roslynq/internal/workspace"
	cli3 "github.com/urfave/cli/v3"
)

// BuildRootCommand builds the roslynq client's full command tree.
func BuildRootCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "roslynq",
		Usage: "Query a resident C# workspace daemon for navigation and diagnostics",
		Flags: []cli3.Flag{
			&cli3.StringFlag{
				Name:  "workspace",
				Usage: "Path to the workspace root (default: current directory)",
			},
			&cli3.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug tracing to stderr",
			},
		},
		Before: func(ctx context.Context, cmd *cli3.Command) (context.Context, error) {
			debug.Enabled = cmd.Bool("debug")
			return ctx, nil
		},
		Commands: append(
			buildQueryCommands(),
			buildVersionCommand(),
			buildDaemonCommand(),
			buildListCommand(),
			buildGCCommand(),
			buildConfigCommand(),
			buildWatchCommand(),
		),
	}
}

func buildVersionCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			fmt.Printf("roslynq version %s\n", version.GetVersion())
			return nil
		},
	}
}

// resolveWorkspace extracts --workspace from the root command, falling
// back to the current directory, and canonicalizes it. An unresolvable
// path is an argument error per spec.md §6.
func resolveWorkspace(cmd *cli3.Command) (string, error) {
	root := cmd.Root()
	ws := root.String("workspace")
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", exitf(ExitArgumentError, "resolving current directory: %v", err)
		}
		ws = cwd
	}
	canonical, err := workspace.Canonicalize(ws)
	if err != nil {
		return "", exitf(ExitArgumentError, "resolving workspace path %q: %v", ws, err)
	}
	return canonical, nil
}
