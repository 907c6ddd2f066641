package cli

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/roslynq/roslynq/internal/registry"
	rqxdg "github.com/roslynq/roslynq/internal/xdg"
	cli3 "github.com/urfave/cli/v3"
)

func openRegistry() (*registry.Registry, error) {
	path, err := rqxdg.RegistryFilePath()
	if err != nil {
		return nil, exitf(ExitArgumentError, "resolving registry path: %v", err)
	}
	r, err := registry.Open(path)
	if err != nil {
		return nil, exitf(ExitDaemonConnectFail, "opening daemon registry: %v", err)
	}
	return r, nil
}

// buildListCommand lists every workspace this host has started a daemon
// for (spec.md's SPEC_FULL §4.10), live or stale.
func buildListCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "list",
		Usage: "List workspaces this host has started a daemon for",
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			r, err := openRegistry()
			if err != nil {
				return err
			}
			defer r.Close()

			recs, err := r.List()
			if err != nil {
				return exitf(ExitDaemonConnectFail, "listing daemons: %v", err)
			}
			if len(recs) == 0 {
				fmt.Println("no daemons recorded")
				return nil
			}
			for _, rec := range recs {
				state := "stale"
				if rec.SocketPath != "" {
					state = "unknown"
				}
				fmt.Printf("%s  %s  socket=%s  started=%s  (%s)\n",
					rec.WorkspaceKey, rec.Root, rec.SocketPath,
					rec.StartedAt.Format("2006-01-02 15:04:05"), state)
			}
			return nil
		},
	}
}

// buildGCCommand probes every recorded daemon's PID and deletes rows whose
// process is gone, along with any stale socket/PID files left behind.
func buildGCCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "gc",
		Usage: "Remove bookkeeping and stale files for daemons that are no longer running",
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			r, err := openRegistry()
			if err != nil {
				return err
			}
			defer r.Close()

			recs, err := r.List()
			if err != nil {
				return exitf(ExitDaemonConnectFail, "listing daemons: %v", err)
			}

			removed := 0
			for _, rec := range recs {
				if processAliveFromPIDFile(rec.PIDPath) {
					continue
				}
				_ = os.Remove(rec.SocketPath)
				_ = os.Remove(rec.PIDPath)
				if err := r.Delete(rec.WorkspaceKey); err != nil {
					fmt.Fprintf(os.Stderr, "warning: deleting record for %s: %v\n", rec.WorkspaceKey, err)
					continue
				}
				removed++
			}
			fmt.Printf("removed %d stale daemon record(s)\n", removed)
			return nil
		},
	}
}

func processAliveFromPIDFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
