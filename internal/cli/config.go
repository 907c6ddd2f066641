package cli

import (
	"context"
	"fmt"

	"github.com/roslynq/roslynq/internal/config"
	rqxdg "github.com/roslynq/roslynq/internal/xdg"
	cli3 "github.com/urfave/cli/v3"
)

// buildConfigCommand builds `config init` and `config show`, covering the
// configuration layer described in spec.md's SPEC_FULL §4.11.
func buildConfigCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "config",
		Usage: "Inspect or initialize roslynq's configuration file",
		Commands: []*cli3.Command{
			{
				Name:  "init",
				Usage: "Write the default config file if one does not already exist",
				Action: func(ctx context.Context, cmd *cli3.Command) error {
					cfg, err := config.LoadOrCreateDefault()
					if err != nil {
						return exitf(ExitArgumentError, "initializing config: %v", err)
					}
					path, _ := rqxdg.ConfigFilePath()
					fmt.Printf("config at %s\n", path)
					return printConfig(cfg)
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(ctx context.Context, cmd *cli3.Command) error {
					cfg, err := config.Load()
					if err != nil {
						return exitf(ExitArgumentError, "loading config: %v", err)
					}
					return printConfig(cfg)
				},
			},
		},
	}
}

func printConfig(cfg config.Config) error {
	fmt.Printf("idle_timeout_minutes: %d\n", cfg.IdleTimeoutMinutes)
	fmt.Printf("debounce_millis: %d\n", cfg.DebounceMillis)
	fmt.Printf("max_frame_bytes: %d\n", cfg.MaxFrameBytes)
	fmt.Printf("log_level: %s\n", cfg.LogLevel)
	fmt.Printf("connect_backoff_attempts: %d\n", cfg.ConnectBackoffAttempts)
	return nil
}
