package ipcserver

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roslynq/roslynq/internal/analyzer/memory"
	"github.com/roslynq/roslynq/internal/dispatcher"
	"github.com/roslynq/roslynq/internal/ipcclient"
	"github.com/roslynq/roslynq/internal/snapshot"
	"github.com/roslynq/roslynq/internal/wire"
)

type fakeActivity struct{}

func (fakeActivity) IdleTimeoutMinutes() int { return 30 }
func (fakeActivity) IdleSeconds() int64      { return 0 }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	workspaceDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspaceDir, "T.cs"), []byte("namespace N { class C { public void M() {} } }\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	an := memory.New()
	sm := snapshot.NewManager(an, workspaceDir)
	if err := sm.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	d := dispatcher.New(an, sm, fakeActivity{})

	socketPath := filepath.Join(t.TempDir(), "roslyn-query-test.sock")
	s := New(socketPath, d)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(time.Second) })
	return s, socketPath
}

func TestPingRoundTrip(t *testing.T) {
	_, socketPath := newTestServer(t)

	c, err := ipcclient.Connect(socketPath, time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	resp, err := c.Request("ping", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Err != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Err)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Status != "ok" {
		t.Fatalf("unexpected ping status: %q", out.Status)
	}
}

func TestOrderingPerConnection(t *testing.T) {
	_, socketPath := newTestServer(t)

	c, err := ipcclient.Connect(socketPath, time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	for i := 0; i < 5; i++ {
		resp, err := c.Request("ping", map[string]interface{}{})
		if err != nil {
			t.Fatalf("Request %d: %v", i, err)
		}
		if resp.Err != nil {
			t.Fatalf("Request %d rpc error: %+v", i, resp.Err)
		}
	}
}

func TestActivityUpdatesAfterRequest(t *testing.T) {
	s, socketPath := newTestServer(t)
	before := s.LastActivity()

	time.Sleep(5 * time.Millisecond)
	c, err := ipcclient.Connect(socketPath, time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()
	if _, err := c.Request("ping", map[string]interface{}{}); err != nil {
		t.Fatalf("Request: %v", err)
	}

	if !s.LastActivity().After(before) {
		t.Fatal("expected last activity to advance after a successful request")
	}
}

func TestOversizeFrameClosesConnectionNotDaemon(t *testing.T) {
	_, socketPath := newTestServer(t)

	raw, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	header := make([]byte, 4)
	big := uint32(wire.MaxFrameBytes + (10 << 20))
	header[0] = byte(big)
	header[1] = byte(big >> 8)
	header[2] = byte(big >> 16)
	header[3] = byte(big >> 24)
	if _, err := raw.Write(header); err != nil {
		t.Fatalf("writing oversize header: %v", err)
	}
	buf := make([]byte, 1)
	raw.SetReadDeadline(time.Now().Add(time.Second))
	_, err = raw.Read(buf)
	if err == nil {
		t.Fatal("expected connection to be closed by the server for an oversize frame")
	}
	raw.Close()

	// Daemon must still accept subsequent fresh connections (spec S6).
	c, err := ipcclient.Connect(socketPath, time.Second)
	if err != nil {
		t.Fatalf("expected daemon still accepting connections: %v", err)
	}
	defer c.Close()
	if _, err := c.Request("ping", map[string]interface{}{}); err != nil {
		t.Fatalf("expected a working connection after the oversize frame: %v", err)
	}
}

func TestShutdownRemovesSocketFile(t *testing.T) {
	s, socketPath := newTestServer(t)
	if err := s.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatalf("expected socket file removed after shutdown, stat err: %v", err)
	}
}

func TestUnknownMethodReturnsJSONRPCError(t *testing.T) {
	_, socketPath := newTestServer(t)

	c, err := ipcclient.Connect(socketPath, time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	resp, err := c.Request("not-a-real-method", map[string]interface{}{})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Err == nil {
		t.Fatal("expected a JSON-RPC error for an unknown method")
	}
	if resp.Err.Code != wire.CodeMethodNotFound {
		t.Fatalf("expected method_not_found code, got %d", resp.Err.Code)
	}
}
