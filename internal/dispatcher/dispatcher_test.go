package dispatcher

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/roslynq/roslynq/internal/analyzer/memory"
	"github.com/roslynq/roslynq/internal/snapshot"
)

type fakeActivity struct {
	timeoutMinutes int
	idleSeconds    int64
}

func (f fakeActivity) IdleTimeoutMinutes() int { return f.timeoutMinutes }
func (f fakeActivity) IdleSeconds() int64      { return f.idleSeconds }

func newTestDispatcher(t *testing.T, src string) (*Dispatcher, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "T.cs")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	an := memory.New()
	sm := snapshot.NewManager(an, dir)
	if err := sm.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	return New(an, sm, fakeActivity{timeoutMinutes: 30, idleSeconds: 5}), path
}

func mustParams(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return raw
}

func TestDefinitionJump(t *testing.T) {
	src := "namespace N {\nclass C {\npublic void M() {}\npublic void X() { M(); }\n}\n}\n"
	d, path := newTestDispatcher(t, src)

	// M( occurs on line 4 inside "public void X() { M(); }"
	line := "public void X() { M(); }"
	col := indexOf(line, "M(") + 1

	res := d.Dispatch(context.Background(), "definition", mustParams(t, map[string]interface{}{
		"file": path, "line": 4, "column": col,
	}))
	if res.Err != nil {
		t.Fatalf("unexpected protocol error: %v", res.Err)
	}

	var out struct {
		Success    bool   `json:"success"`
		SymbolName string `json:"symbol_name"`
		Location   struct {
			Line int `json:"line"`
		} `json:"location"`
	}
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Success || out.SymbolName != "M" || out.Location.Line != 3 {
		t.Fatalf("unexpected definition result: %+v", out)
	}
}

func TestNoSymbolAtPosition(t *testing.T) {
	src := "namespace N {\nclass C {\npublic void M() {}\n}\n}\n"
	d, path := newTestDispatcher(t, src)

	res := d.Dispatch(context.Background(), "definition", mustParams(t, map[string]interface{}{
		"file": path, "line": 1, "column": 1,
	}))
	if res.Err != nil {
		t.Fatalf("expected a JSON-RPC success envelope, not a protocol error: %v", res.Err)
	}

	var out struct {
		Success   bool   `json:"success"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Success || out.ErrorCode != "symbol_not_found" {
		t.Fatalf("expected symbol_not_found, got %+v", out)
	}
}

func TestReferencesFindsMultipleCalls(t *testing.T) {
	src := "namespace N {\nclass C {\npublic void M() {}\npublic void X() { M(); M(); }\n}\n}\n"
	d, path := newTestDispatcher(t, src)

	res := d.Dispatch(context.Background(), "references", mustParams(t, map[string]interface{}{
		"file": path, "line": 3, "column": 13, "include_definition": false,
	}))
	if res.Err != nil {
		t.Fatalf("unexpected protocol error: %v", res.Err)
	}

	var out struct {
		Success   bool `json:"success"`
		Locations []struct {
			Line int `json:"line"`
		} `json:"locations"`
	}
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Success || len(out.Locations) < 2 {
		t.Fatalf("expected at least 2 references, got %+v", out)
	}
}

func TestDocumentNotFound(t *testing.T) {
	src := "namespace N {\nclass C {\npublic void M() {}\n}\n}\n"
	d, _ := newTestDispatcher(t, src)

	res := d.Dispatch(context.Background(), "definition", mustParams(t, map[string]interface{}{
		"file": "/nowhere/Ghost.cs", "line": 1, "column": 1,
	}))
	if res.Err != nil {
		t.Fatalf("unexpected protocol error: %v", res.Err)
	}
	var out struct {
		Success   bool   `json:"success"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Success || out.ErrorCode != "document_not_found" {
		t.Fatalf("expected document_not_found, got %+v", out)
	}
}

func TestUnknownMethodIsProtocolError(t *testing.T) {
	src := "namespace N { class C { public void M() {} } }\n"
	d, _ := newTestDispatcher(t, src)

	res := d.Dispatch(context.Background(), "bogus-method", mustParams(t, map[string]interface{}{}))
	if res.Err == nil {
		t.Fatal("expected a protocol error for an unknown method")
	}
	if res.Err.Code != -32601 {
		t.Fatalf("expected method_not_found code, got %d", res.Err.Code)
	}
}

func TestInvalidParamsIsProtocolError(t *testing.T) {
	src := "namespace N { class C { public void M() {} } }\n"
	d, _ := newTestDispatcher(t, src)

	res := d.Dispatch(context.Background(), "definition", json.RawMessage(`{"line": "not-a-number"}`))
	if res.Err == nil {
		t.Fatal("expected a protocol error for malformed params")
	}
	if res.Err.Code != -32602 {
		t.Fatalf("expected invalid_params code, got %d", res.Err.Code)
	}
}

func TestPingReportsActivity(t *testing.T) {
	src := "namespace N { class C { public void M() {} } }\n"
	d, _ := newTestDispatcher(t, src)

	res := d.Dispatch(context.Background(), "ping", nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	var out struct {
		Status             string `json:"status"`
		DaemonVersion      string `json:"daemon_version"`
		IdleTimeoutMinutes int    `json:"idle_timeout_minutes"`
		IdleSeconds        int64  `json:"idle_seconds"`
	}
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Status != "ok" || out.IdleTimeoutMinutes != 30 || out.IdleSeconds != 5 {
		t.Fatalf("unexpected ping result: %+v", out)
	}
	if out.DaemonVersion == "" {
		t.Fatal("expected ping to report a non-empty daemon version")
	}
}

func TestShutdownTriggersFlag(t *testing.T) {
	src := "namespace N { class C { public void M() {} } }\n"
	d, _ := newTestDispatcher(t, src)

	res := d.Dispatch(context.Background(), "shutdown", nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !res.TriggerShutdown {
		t.Fatal("expected shutdown to set TriggerShutdown")
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Status != "shutting_down" {
		t.Fatalf("unexpected shutdown status: %q", out.Status)
	}
}

func TestCalleesDeduplicatesPreservingOrder(t *testing.T) {
	src := "namespace N {\nclass C {\npublic void M() {}\npublic void K() {}\npublic void X() { M(); K(); M(); }\n}\n}\n"
	d, path := newTestDispatcher(t, src)

	line := "public void X() { M(); K(); M(); }"
	col := indexOf(line, "X(") + 1

	res := d.Dispatch(context.Background(), "callees", mustParams(t, map[string]interface{}{
		"file": path, "line": 5, "column": col,
	}))
	if res.Err != nil {
		t.Fatalf("unexpected protocol error: %v", res.Err)
	}
	var out struct {
		Locations []struct {
			Line int `json:"line"`
		} `json:"locations"`
	}
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Locations) != 2 {
		t.Fatalf("expected deduplicated callees (M, K), got %d: %+v", len(out.Locations), out.Locations)
	}
	if out.Locations[0].Line != 3 || out.Locations[1].Line != 4 {
		t.Fatalf("expected callees in first-occurrence order (M line 3, K line 4), got %+v", out.Locations)
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
