// Command roslynqd is the per-workspace daemon process. It is never run
// directly by a user; internal/launcher spawns it detached the first time
// a client needs a daemon for a workspace that doesn't have one yet.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/roslynq/roslynq/internal/analyzer"
	"github.com/roslynq/roslynq/internal/analyzer/memory"
	"github.com/roslynq/roslynq/internal/config"
	"github.com/roslynq/roslynq/internal/debug"
	rqerrors "github.com/roslynq/roslynq/internal/errors"
	"github.com/roslynq/roslynq/internal/registry"
	"github.com/roslynq/roslynq/internal/supervisor"
	"github.com/roslynq/roslynq/internal/workspace"
	rqxdg "github.com/roslynq/roslynq/internal/xdg"
)

// Exit codes for the spawned-process contract (spec.md §6).
const (
	exitClean         = 0
	exitFatal         = 1
	exitWorkspaceLoad = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("roslynqd", flag.ContinueOnError)
	idleTimeout := fs.Int("idle-timeout", 0, "idle shutdown timeout in minutes (0 uses the configured default)")
	debugFlag := fs.Bool("debug", false, "enable debug tracing to stderr")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return exitFatal
	}
	debug.Enabled = *debugFlag

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: roslynqd <workspace-path> [--idle-timeout minutes]")
		return exitFatal
	}

	root, err := workspace.Canonicalize(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "roslynqd: canonicalizing workspace path: %v\n", err)
		return exitWorkspaceLoad
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "roslynqd: loading config: %v\n", err)
		return exitFatal
	}

	idleMinutes := cfg.IdleTimeoutMinutes
	if *idleTimeout > 0 {
		idleMinutes = *idleTimeout
	}

	var reg *registry.Registry
	if path, pathErr := rqxdg.RegistryFilePath(); pathErr == nil {
		if r, openErr := registry.Open(path); openErr == nil {
			reg = r
			defer reg.Close()
		} else {
			debug.LogError(openErr, "roslynqd: opening registry")
		}
	}

	sup, err := supervisor.New(supervisor.Options{
		Root: root,
		NewAnalyzer: func() analyzer.Analyzer {
			return memory.New()
		},
		IdleTimeoutMinutes: idleMinutes,
		DebounceMillis:     cfg.DebounceMillis,
		Registry:           reg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "roslynqd: constructing supervisor: %v\n", err)
		return exitFatal
	}

	if err := sup.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "roslynqd: %v\n", err)
		if errors.Is(err, rqerrors.ErrWorkspaceLoadFailed) {
			return exitWorkspaceLoad
		}
		return exitFatal
	}
	return exitClean
}
