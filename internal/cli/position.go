package cli

import (
	"context"

	cli3 "github.com/urfave/cli/v3"
)

// positionFlags are shared by every method whose params are a bare
// Position (spec.md §4.6): file, line, column.
func positionFlags() []cli3.Flag {
	return []cli3.Flag{
		&cli3.StringFlag{Name: "file", Usage: "Source file (absolute or workspace-relative)", Required: true},
		&cli3.IntFlag{Name: "line", Usage: "1-based line number", Required: true},
		&cli3.IntFlag{Name: "column", Usage: "1-based column number", Required: true},
	}
}

// buildPositionCommand builds one of the plain position-in/envelope-out
// subcommands: definition, base-definition, implementations, callers,
// callees, symbol.
func buildPositionCommand(name, method, usage string) *cli3.Command {
	return &cli3.Command{
		Name:  name,
		Usage: usage,
		Flags: positionFlags(),
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			workspace, err := resolveWorkspace(cmd)
			if err != nil {
				return err
			}
			params := positionRequest(cmd.String("file"), cmd.Int("line"), cmd.Int("column"))
			raw, err := query(ctx, workspace, method, params)
			if err != nil {
				return err
			}
			return resultOrExit(raw)
		},
	}
}

func buildReferencesCommand() *cli3.Command {
	flags := positionFlags()
	flags = append(flags, &cli3.BoolFlag{Name: "include-definition", Usage: "Prepend the symbol's own definition(s) to the results"})
	return &cli3.Command{
		Name:  "references",
		Usage: "Find every reference to the symbol at a position",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			workspace, err := resolveWorkspace(cmd)
			if err != nil {
				return err
			}
			params := positionRequest(cmd.String("file"), cmd.Int("line"), cmd.Int("column"))
			params["include_definition"] = cmd.Bool("include-definition")
			raw, err := query(ctx, workspace, "references", params)
			if err != nil {
				return err
			}
			return resultOrExit(raw)
		},
	}
}

func buildDiagnosticsCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "diagnostics",
		Usage: "Fetch compiler diagnostics for the workspace or one file",
		Flags: []cli3.Flag{
			&cli3.StringFlag{Name: "file", Usage: "Limit to one file (default: whole workspace)"},
			&cli3.BoolFlag{Name: "include-warnings", Usage: "Include warnings", Value: true},
			&cli3.BoolFlag{Name: "include-info", Usage: "Include informational diagnostics"},
		},
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			workspace, err := resolveWorkspace(cmd)
			if err != nil {
				return err
			}
			params := map[string]interface{}{
				"file":             cmd.String("file"),
				"include_warnings": cmd.Bool("include-warnings"),
				"include_info":     cmd.Bool("include-info"),
			}
			raw, err := query(ctx, workspace, "diagnostics", params)
			if err != nil {
				return err
			}
			return resultOrExit(raw)
		},
	}
}

func buildPingCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "ping",
		Usage: "Check that the daemon for this workspace is alive and report idle state",
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			workspace, err := resolveWorkspace(cmd)
			if err != nil {
				return err
			}
			raw, err := query(ctx, workspace, "ping", struct{}{})
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func buildShutdownCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "shutdown",
		Usage: "Ask the daemon for this workspace to shut down gracefully",
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			workspace, err := resolveWorkspace(cmd)
			if err != nil {
				return err
			}
			raw, err := query(ctx, workspace, "shutdown", struct{}{})
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func buildQueryCommands() []*cli3.Command {
	return []*cli3.Command{
		buildPositionCommand("definition", "definition", "Jump to the definition of the symbol at a position"),
		buildPositionCommand("base-definition", "base-definition", "Jump to the overridden or interface-declared base of a symbol"),
		buildPositionCommand("implementations", "implementations", "List implementations of the symbol at a position"),
		buildReferencesCommand(),
		buildPositionCommand("callers", "callers", "List methods that call the symbol at a position"),
		buildPositionCommand("callees", "callees", "List methods called by the symbol at a position"),
		buildPositionCommand("symbol", "symbol", "Describe the symbol at a position"),
		buildDiagnosticsCommand(),
		buildPingCommand(),
		buildShutdownCommand(),
	}
}
