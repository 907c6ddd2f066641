// Package cli builds the roslynq client binary's command tree with
// urfave/cli/v3: one subcommand per dispatcher method (spec §4.6), plus
// daemon management, registry listing, configuration, and a bubbletea
// status dashboard. The wire contract (methods, envelopes) is pinned by
// spec.md; everything here — flags, output formatting, help text — is
// explicitly not wire-contractual (spec.md §1), only the exit-code
// taxonomy in spec.md §6 is.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roslynq/roslynq/internal/ipcclient"
	"github.com/roslynq/roslynq/internal/launcher"
)

// connectProbeDeadline bounds a probe connection used to check whether a
// daemon is already listening, without triggering a spawn.
const connectProbeDeadline = 300 * time.Millisecond

// ExitError carries the precise exit code spec.md §6 assigns a client
// outcome. main translates it to os.Exit; every other error maps to
// ExitArgumentError (3).
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// Exit codes from spec.md §6.
const (
	ExitSuccess           = 0
	ExitNoResult          = 1
	ExitWorkspaceLoad     = 2
	ExitArgumentError     = 3
	ExitDaemonConnectFail = 4
)

func exitf(code int, format string, args ...interface{}) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

// dial resolves workspace, ensures a daemon is running for it (spawning one
// if necessary), and returns a connected client. Connection failures map to
// ExitDaemonConnectFail per spec.md §6.
func dial(workspace string) (*ipcclient.Client, error) {
	c, err := launcher.Ensure(launcher.Options{WorkspacePath: workspace})
	if err != nil {
		return nil, exitf(ExitDaemonConnectFail, "connecting to daemon: %v", err)
	}
	return c, nil
}

// query issues method/params against the daemon for workspace and returns
// the response's raw result payload. JSON-RPC protocol errors (as opposed
// to query outcomes like symbol_not_found, which ride inside the result
// envelope) map to ExitDaemonConnectFail.
func query(_ context.Context, workspace, method string, params interface{}) (json.RawMessage, error) {
	c, err := dial(workspace)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	resp, err := c.Request(method, params)
	if err != nil {
		return nil, exitf(ExitDaemonConnectFail, "request failed: %v", err)
	}
	if resp.Err != nil {
		return nil, exitf(ExitDaemonConnectFail, "daemon error: %s", resp.Err.Message)
	}
	return resp.Result, nil
}

// envelope is the common success/error_code shape every query method's
// result carries (spec.md §4.6).
type envelope struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code,omitempty"`
}

// resultOrExit prints raw as pretty JSON whether or not the query succeeded,
// and maps a success:false envelope to ExitNoResult, matching spec.md §6's "no
// result" exit code for document_not_found/symbol_not_found outcomes.
func resultOrExit(raw json.RawMessage) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return exitf(ExitDaemonConnectFail, "decoding result: %v", err)
	}

	pretty, err := json.MarshalIndent(json.RawMessage(raw), "", "  ")
	if err != nil {
		pretty = raw
	}
	fmt.Println(string(pretty))

	if !env.Success {
		return &ExitError{Code: ExitNoResult, Err: fmt.Errorf("%s", env.ErrorCode)}
	}
	return nil
}

func positionRequest(file string, line, column int) map[string]interface{} {
	return map[string]interface{}{"file": file, "line": line, "column": column}
}

// printJSON pretty-prints raw unconditionally, for methods like ping and
// shutdown whose result has no success/error_code envelope to branch on.
func printJSON(raw json.RawMessage) error {
	pretty, err := json.MarshalIndent(json.RawMessage(raw), "", "  ")
	if err != nil {
		pretty = raw
	}
	fmt.Println(string(pretty))
	return nil
}
