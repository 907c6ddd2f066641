package errors

import (
	"errors"
	"testing"
)

func TestErrorTypes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "ErrPlatformUnsupported",
			err:  ErrPlatformUnsupported,
			want: "unsupported platform: roslynq requires a POSIX-style runtime or temp directory",
		},
		{
			name: "ErrConfigNotFound",
			err:  ErrConfigNotFound,
			want: "config file not found",
		},
		{
			name: "ErrConfigInvalid",
			err:  ErrConfigInvalid,
			want: "failed to parse config",
		},
		{
			name: "ErrConfigReadFailed",
			err:  ErrConfigReadFailed,
			want: "failed to read config file",
		},
		{
			name: "ErrConfigWriteFailed",
			err:  ErrConfigWriteFailed,
			want: "failed to write config file",
		},
		{
			name: "ErrWorkspaceNotFound",
			err:  ErrWorkspaceNotFound,
			want: "workspace path not found",
		},
		{
			name: "ErrWorkspaceLoadFailed",
			err:  ErrWorkspaceLoadFailed,
			want: "failed to load workspace",
		},
		{
			name: "ErrDaemonNotRunning",
			err:  ErrDaemonNotRunning,
			want: "daemon not running",
		},
		{
			name: "ErrDaemonAlreadyRunning",
			err:  ErrDaemonAlreadyRunning,
			want: "daemon already running",
		},
		{
			name: "ErrDaemonSpawnFailed",
			err:  ErrDaemonSpawnFailed,
			want: "failed to spawn daemon",
		},
		{
			name: "ErrDaemonConnectFailed",
			err:  ErrDaemonConnectFailed,
			want: "failed to connect to daemon",
		},
		{
			name: "ErrPIDFileStale",
			err:  ErrPIDFileStale,
			want: "stale pid file",
		},
		{
			name: "ErrSocketBindFailed",
			err:  ErrSocketBindFailed,
			want: "failed to bind socket",
		},
		{
			name: "ErrRegistryUnavailable",
			err:  ErrRegistryUnavailable,
			want: "daemon registry unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error message = %q, want %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	baseErr := ErrConfigNotFound
	wrapped := WrapError(baseErr, "failed to load config")

	if wrapped == nil {
		t.Fatal("WrapError() returned nil")
	}
	if !errors.Is(wrapped, baseErr) {
		t.Error("WrapError() should wrap the base error")
	}

	expectedMsg := "failed to load config: config file not found"
	if wrapped.Error() != expectedMsg {
		t.Errorf("WrapError() message = %q, want %q", wrapped.Error(), expectedMsg)
	}
}

func TestWrapError_Nil(t *testing.T) {
	wrapped := WrapError(nil, "context")
	if wrapped != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestWrapErrorf(t *testing.T) {
	baseErr := ErrDaemonSpawnFailed
	wrapped := WrapErrorf(baseErr, "workspace %q", "/tmp/ws")

	if wrapped == nil {
		t.Fatal("WrapErrorf() returned nil")
	}
	if !errors.Is(wrapped, baseErr) {
		t.Error("WrapErrorf() should wrap the base error")
	}

	expectedMsg := "workspace \"/tmp/ws\": failed to spawn daemon"
	if wrapped.Error() != expectedMsg {
		t.Errorf("WrapErrorf() message = %q, want %q", wrapped.Error(), expectedMsg)
	}
}

func TestWrapErrorf_Nil(t *testing.T) {
	wrapped := WrapErrorf(nil, "workspace %q", "/tmp/ws")
	if wrapped != nil {
		t.Error("WrapErrorf(nil) should return nil")
	}
}

func TestErrorIs(t *testing.T) {
	baseErr := ErrConfigInvalid
	wrapped := WrapError(baseErr, "failed to parse config file")

	if !errors.Is(wrapped, baseErr) {
		t.Error("errors.Is() should return true for wrapped error")
	}
	if !errors.Is(wrapped, ErrConfigInvalid) {
		t.Error("errors.Is() should return true for error type")
	}
}
