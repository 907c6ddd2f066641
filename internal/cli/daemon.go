package cli

import (
	"context"
	"fmt"

	"github.com/roslynq/roslynq/internal/ipcclient"
	"github.com/roslynq/roslynq/internal/launcher"
	"github.com/roslynq/roslynq/internal/workspace"
	cli3 "github.com/urfave/cli/v3"
)

// buildDaemonCommand builds start/stop/status, the client-visible half of
// the daemon lifecycle described in spec.md §4.7/§4.8. The daemon process
// itself is the roslynqd binary; this only launches, pings, or signals it.
func buildDaemonCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "daemon",
		Usage: "Manage the per-workspace daemon process",
		Commands: []*cli3.Command{
			{
				Name:  "start",
				Usage: "Start the daemon for this workspace if one is not already running",
				Flags: []cli3.Flag{
					&cli3.IntFlag{Name: "idle-timeout", Usage: "Idle shutdown timeout in minutes (0 uses the daemon's configured default)"},
				},
				Action: func(ctx context.Context, cmd *cli3.Command) error {
					ws, err := resolveWorkspace(cmd)
					if err != nil {
						return err
					}
					c, err := launcher.Ensure(launcher.Options{
						WorkspacePath:      ws,
						IdleTimeoutMinutes: cmd.Int("idle-timeout"),
					})
					if err != nil {
						return err
					}
					c.Close()
					fmt.Println("daemon is running")
					return nil
				},
			},
			{
				Name:  "stop",
				Usage: "Ask the daemon for this workspace to shut down",
				Action: func(ctx context.Context, cmd *cli3.Command) error {
					ws, err := resolveWorkspace(cmd)
					if err != nil {
						return err
					}
					socketPath, err := workspace.SocketPath(ws)
					if err != nil {
						return exitf(ExitArgumentError, "deriving socket path: %v", err)
					}
					c, err := ipcclient.Connect(socketPath, connectProbeDeadline)
					if err != nil {
						fmt.Println("daemon is not running")
						return nil
					}
					defer c.Close()
					if _, err := c.Request("shutdown", struct{}{}); err != nil {
						return exitf(ExitDaemonConnectFail, "sending shutdown: %v", err)
					}
					fmt.Println("shutdown requested")
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Report whether the daemon for this workspace is running",
				Action: func(ctx context.Context, cmd *cli3.Command) error {
					ws, err := resolveWorkspace(cmd)
					if err != nil {
						return err
					}
					socketPath, err := workspace.SocketPath(ws)
					if err != nil {
						return exitf(ExitArgumentError, "deriving socket path: %v", err)
					}
					c, err := ipcclient.Connect(socketPath, connectProbeDeadline)
					if err != nil {
						fmt.Println("daemon is not running")
						return &ExitError{Code: ExitNoResult, Err: fmt.Errorf("daemon not running")}
					}
					defer c.Close()
					raw, err := c.Request("ping", struct{}{})
					if err != nil || raw.Err != nil {
						fmt.Println("daemon is not responsive")
						return &ExitError{Code: ExitNoResult, Err: fmt.Errorf("daemon not responsive")}
					}
					return printJSON(raw.Result)
				},
			},
		},
	}
}
