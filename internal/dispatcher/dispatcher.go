// Package dispatcher implements the method table from spec §4.6: each
// supported RPC method decodes its params, resolves a position against the
// current snapshot, invokes the corresponding analyzer primitive, and
// shapes the result into that method's envelope. Application outcomes
// (symbol not found, document not found) ride inside a successful envelope
// — only decode/internal failures become wire.RPCError.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roslynq/roslynq/internal/analyzer"
	"github.com/roslynq/roslynq/internal/snapshot"
	"github.com/roslynq/roslynq/internal/version"
	"github.com/roslynq/roslynq/internal/wire"
)

// Activity reports idle-timer state for the ping method.
type Activity interface {
	IdleTimeoutMinutes() int
	IdleSeconds() int64
}

// Dispatcher routes decoded requests to analyzer-backed handlers.
type Dispatcher struct {
	an       analyzer.Analyzer
	sm       *snapshot.Manager
	activity Activity
}

// New builds a Dispatcher over an analyzer, a snapshot manager, and an
// activity reporter for ping.
func New(an analyzer.Analyzer, sm *snapshot.Manager, activity Activity) *Dispatcher {
	return &Dispatcher{an: an, sm: sm, activity: activity}
}

// Result is what Dispatch hands back to the IPC server: either a JSON
// payload to place in a successful response's result field, or a protocol
// error. TriggerShutdown tells the caller to initiate graceful shutdown
// after flushing this response (spec §4.6 shutdown method, §4.7(a)).
type Result struct {
	Payload         json.RawMessage
	Err             *wire.RPCError
	TriggerShutdown bool
}

// Dispatch decodes params for method and executes it. Unknown methods
// produce a method_not_found protocol error.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage) Result {
	switch method {
	case "definition":
		return d.positionMethod(ctx, params, d.definition)
	case "base-definition":
		return d.positionMethod(ctx, params, d.baseDefinition)
	case "implementations":
		return d.positionMethod(ctx, params, d.implementations)
	case "references":
		return d.references(ctx, params)
	case "callers":
		return d.positionMethod(ctx, params, d.callers)
	case "callees":
		return d.positionMethod(ctx, params, d.callees)
	case "symbol":
		return d.positionMethod(ctx, params, d.symbol)
	case "diagnostics":
		return d.diagnostics(ctx, params)
	case "ping":
		return d.ping()
	case "shutdown":
		return d.shutdown()
	default:
		return Result{Err: wire.NewError(wire.CodeMethodNotFound, fmt.Sprintf("unknown method %q", method))}
	}
}

// --- params / envelope shapes -------------------------------------------------

type positionParams struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type referencesParams struct {
	positionParams
	IncludeDefinition bool `json:"include_definition"`
}

type diagnosticsParams struct {
	File            string `json:"file"`
	IncludeWarnings *bool  `json:"include_warnings"`
	IncludeInfo     *bool  `json:"include_info"`
}

type locationJSON struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line,omitempty"`
	EndColumn int    `json:"end_column,omitempty"`
}

type definitionResult struct {
	Success    bool          `json:"success"`
	Location   *locationJSON `json:"location,omitempty"`
	SymbolName string        `json:"symbol_name,omitempty"`
	SymbolKind string        `json:"symbol_kind,omitempty"`
	ErrorCode  string        `json:"error_code,omitempty"`
}

type locationsResult struct {
	Success    bool           `json:"success"`
	SymbolName string         `json:"symbol_name,omitempty"`
	Locations  []locationJSON `json:"locations,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
}

type symbolResult struct {
	Success             bool          `json:"success"`
	Name                string        `json:"name,omitempty"`
	Kind                string        `json:"kind,omitempty"`
	FullName            string        `json:"full_name,omitempty"`
	Signature           string        `json:"signature,omitempty"`
	Documentation       string        `json:"documentation,omitempty"`
	ContainingType      string        `json:"containing_type,omitempty"`
	ContainingNamespace string        `json:"containing_namespace,omitempty"`
	ReturnType          string        `json:"return_type,omitempty"`
	Accessibility       string        `json:"accessibility,omitempty"`
	Modifiers           []string      `json:"modifiers,omitempty"`
	Location            *locationJSON `json:"location,omitempty"`
	ErrorCode           string        `json:"error_code,omitempty"`
}

type diagnosticJSON struct {
	ID       string        `json:"id"`
	Severity string        `json:"severity"`
	Message  string        `json:"message"`
	Location *locationJSON `json:"location,omitempty"`
}

type diagnosticsResult struct {
	Success      bool             `json:"success"`
	Diagnostics  []diagnosticJSON `json:"diagnostics"`
	ErrorCount   int              `json:"error_count"`
	WarningCount int              `json:"warning_count"`
	InfoCount    int              `json:"info_count"`
}

type pingResult struct {
	Status             string `json:"status"`
	DaemonVersion      string `json:"daemon_version"`
	IdleTimeoutMinutes int    `json:"idle_timeout_minutes"`
	IdleSeconds        int64  `json:"idle_seconds"`
}

type shutdownResult struct {
	Status string `json:"status"`
}

// --- shared resolution --------------------------------------------------------

func toLocation(root string, l analyzer.Location) locationJSON {
	out := locationJSON{File: snapshot.RelativeToRoot(root, l.File), Line: l.Line, Column: l.Column}
	if l.HasSpan {
		out.EndLine = l.EndLine
		out.EndColumn = l.EndColumn
	}
	return out
}

// resolved bundles the snapshot handle and analyzer symbol handle a
// position method operates on; callers must call Release.
type resolved struct {
	handle snapshot.Handle
	sym    analyzer.SymbolHandle
}

// resolve decodes position params, acquires a snapshot handle, canonicalizes
// the file, and resolves the position to a symbol. On an application
// failure it returns the error_code string and ok=false, from which the
// caller builds the success:false envelope without touching the analyzer
// further; malformed params come back as an *wire.RPCError instead.
func (d *Dispatcher) resolve(ctx context.Context, params json.RawMessage) (resolved, string, bool, *wire.RPCError) {
	var p positionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return resolved{}, "", false, wire.NewError(wire.CodeInvalidParams, "invalid params: "+err.Error())
	}

	h := d.sm.Current()
	root := h.Snapshot().Root
	path := snapshot.CanonicalDocumentPath(root, p.File)

	known := false
	for _, doc := range h.Snapshot().Documents {
		if doc == path {
			known = true
			break
		}
	}
	if !known {
		h.Release()
		return resolved{}, "document_not_found", false, nil
	}

	sym, ok, err := d.an.Resolve(ctx, h.Snapshot().AnalyzerState, analyzer.Position{File: path, Line: p.Line, Column: p.Column})
	if err != nil {
		h.Release()
		return resolved{}, "", false, wire.NewError(wire.CodeInternalError, "resolving position: "+err.Error())
	}
	if !ok {
		h.Release()
		return resolved{}, "symbol_not_found", false, nil
	}
	return resolved{handle: h, sym: sym}, "", true, nil
}

func encode(v interface{}) Result {
	raw, err := json.Marshal(v)
	if err != nil {
		return Result{Err: wire.NewError(wire.CodeInternalError, "encoding result: "+err.Error())}
	}
	return Result{Payload: raw}
}

func failureEnvelope(code string) interface{} {
	return map[string]interface{}{"success": false, "error_code": code}
}

// positionMethod runs fn against a resolved symbol and always releases the
// snapshot handle before returning.
func (d *Dispatcher) positionMethod(ctx context.Context, params json.RawMessage, fn func(context.Context, resolved) (interface{}, error)) Result {
	r, code, ok, rpcErr := d.resolve(ctx, params)
	if rpcErr != nil {
		return Result{Err: rpcErr}
	}
	if !ok {
		return encode(failureEnvelope(code))
	}
	defer r.handle.Release()

	out, err := fn(ctx, r)
	if err != nil {
		return Result{Err: wire.NewError(wire.CodeInternalError, err.Error())}
	}
	return encode(out)
}

// --- methods -------------------------------------------------------------

func (d *Dispatcher) definition(ctx context.Context, r resolved) (interface{}, error) {
	sym, ok, err := d.an.Definition(ctx, r.handle.Snapshot().AnalyzerState, r.sym)
	if err != nil {
		return nil, err
	}
	if !ok {
		return failureEnvelope("symbol_not_found"), nil
	}
	res := definitionResult{Success: true, SymbolName: sym.Name, SymbolKind: sym.Kind}
	if sym.HasLocation {
		loc := toLocation(r.handle.Snapshot().Root, *sym.Location)
		res.Location = &loc
	}
	return res, nil
}

func (d *Dispatcher) baseDefinition(ctx context.Context, r resolved) (interface{}, error) {
	sym, ok, err := d.an.BaseDefinition(ctx, r.handle.Snapshot().AnalyzerState, r.sym)
	if err != nil {
		return nil, err
	}
	if !ok {
		return failureEnvelope("symbol_not_found"), nil
	}
	res := definitionResult{Success: true, SymbolName: sym.Name, SymbolKind: sym.Kind}
	if sym.HasLocation {
		loc := toLocation(r.handle.Snapshot().Root, *sym.Location)
		res.Location = &loc
	}
	return res, nil
}

func (d *Dispatcher) implementations(ctx context.Context, r resolved) (interface{}, error) {
	syms, err := d.an.Implementations(ctx, r.handle.Snapshot().AnalyzerState, r.sym)
	if err != nil {
		return nil, err
	}
	root := r.handle.Snapshot().Root
	res := locationsResult{Success: true}
	if len(syms) > 0 {
		res.SymbolName = syms[0].Name
	}
	for _, s := range syms {
		if s.HasLocation {
			res.Locations = append(res.Locations, toLocation(root, *s.Location))
		}
	}
	return res, nil
}

func (d *Dispatcher) callers(ctx context.Context, r resolved) (interface{}, error) {
	locs, err := d.an.Callers(ctx, r.handle.Snapshot().AnalyzerState, r.sym)
	if err != nil {
		return nil, err
	}
	root := r.handle.Snapshot().Root
	res := locationsResult{Success: true}
	for _, l := range locs {
		res.Locations = append(res.Locations, toLocation(root, l))
	}
	return res, nil
}

// callees deduplicates result locations, preserving first-occurrence order
// (spec §4.6).
func (d *Dispatcher) callees(ctx context.Context, r resolved) (interface{}, error) {
	locs, err := d.an.Callees(ctx, r.handle.Snapshot().AnalyzerState, r.sym)
	if err != nil {
		return nil, err
	}
	root := r.handle.Snapshot().Root
	res := locationsResult{Success: true}
	seen := make(map[string]bool)
	for _, l := range locs {
		key := fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Locations = append(res.Locations, toLocation(root, l))
	}
	return res, nil
}

func (d *Dispatcher) symbol(ctx context.Context, r resolved) (interface{}, error) {
	sym, err := d.an.Describe(ctx, r.handle.Snapshot().AnalyzerState, r.sym)
	if err != nil {
		return failureEnvelope("symbol_not_found"), nil
	}
	res := symbolResult{
		Success:             true,
		Name:                sym.Name,
		Kind:                sym.Kind,
		FullName:            sym.FullName,
		Signature:           sym.Signature,
		Documentation:       sym.Documentation,
		ContainingType:      sym.ContainingType,
		ContainingNamespace: sym.ContainingNamespace,
		ReturnType:          sym.ReturnType,
		Accessibility:       sym.Accessibility,
		Modifiers:           sym.Modifiers,
	}
	if sym.HasLocation {
		loc := toLocation(r.handle.Snapshot().Root, *sym.Location)
		res.Location = &loc
	}
	return res, nil
}

// references resolves the position itself (rather than going through
// positionMethod) because it additionally needs definition-prepend
// behavior driven by a params field beyond the bare position.
func (d *Dispatcher) references(ctx context.Context, params json.RawMessage) Result {
	var p referencesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return Result{Err: wire.NewError(wire.CodeInvalidParams, "invalid params: "+err.Error())}
	}
	posParams, _ := json.Marshal(p.positionParams)

	r, code, ok, rpcErr := d.resolve(ctx, posParams)
	if rpcErr != nil {
		return Result{Err: rpcErr}
	}
	if !ok {
		return encode(failureEnvelope(code))
	}
	defer r.handle.Release()

	root := r.handle.Snapshot().Root
	st := r.handle.Snapshot().AnalyzerState

	res := locationsResult{Success: true}

	if p.IncludeDefinition {
		if defSym, ok, err := d.an.Definition(ctx, st, r.sym); err == nil && ok && defSym.HasLocation {
			res.SymbolName = defSym.Name
			res.Locations = append(res.Locations, toLocation(root, *defSym.Location))
		}
	}

	locs, err := d.an.References(ctx, st, r.sym)
	if err != nil {
		return Result{Err: wire.NewError(wire.CodeInternalError, err.Error())}
	}
	if res.SymbolName == "" {
		if sym, err := d.an.Describe(ctx, st, r.sym); err == nil {
			res.SymbolName = sym.Name
		}
	}
	for _, l := range locs {
		res.Locations = append(res.Locations, toLocation(root, l))
	}
	return encode(res)
}

func (d *Dispatcher) diagnostics(ctx context.Context, params json.RawMessage) Result {
	var p diagnosticsParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return Result{Err: wire.NewError(wire.CodeInvalidParams, "invalid params: "+err.Error())}
		}
	}
	includeWarnings := true
	if p.IncludeWarnings != nil {
		includeWarnings = *p.IncludeWarnings
	}
	includeInfo := false
	if p.IncludeInfo != nil {
		includeInfo = *p.IncludeInfo
	}

	h := d.sm.Current()
	defer h.Release()
	root := h.Snapshot().Root

	file := ""
	if p.File != "" {
		file = snapshot.CanonicalDocumentPath(root, p.File)
	}

	diags, err := d.an.Diagnostics(ctx, h.Snapshot().AnalyzerState, analyzer.DiagnosticsFilter{
		File: file, IncludeWarnings: includeWarnings, IncludeInfo: includeInfo,
	})
	if err != nil {
		return Result{Err: wire.NewError(wire.CodeInternalError, err.Error())}
	}

	sort.Slice(diags, func(i, j int) bool {
		li, lj := diags[i].Location, diags[j].Location
		if li == nil || lj == nil {
			return li != nil
		}
		if li.File != lj.File {
			return li.File < lj.File
		}
		return li.Line < lj.Line
	})

	res := diagnosticsResult{Success: true, Diagnostics: []diagnosticJSON{}}
	for _, dg := range diags {
		entry := diagnosticJSON{ID: dg.ID, Severity: string(dg.Severity), Message: dg.Message}
		if dg.Location != nil {
			loc := toLocation(root, *dg.Location)
			entry.Location = &loc
		}
		res.Diagnostics = append(res.Diagnostics, entry)
		switch dg.Severity {
		case analyzer.SeverityError:
			res.ErrorCount++
		case analyzer.SeverityWarning:
			res.WarningCount++
		case analyzer.SeverityInfo:
			res.InfoCount++
		}
	}
	return encode(res)
}

func (d *Dispatcher) ping() Result {
	res := pingResult{Status: "ok", DaemonVersion: version.GetVersion()}
	if d.activity != nil {
		res.IdleTimeoutMinutes = d.activity.IdleTimeoutMinutes()
		res.IdleSeconds = d.activity.IdleSeconds()
	}
	return encode(res)
}

func (d *Dispatcher) shutdown() Result {
	r := encode(shutdownResult{Status: "shutting_down"})
	r.TriggerShutdown = true
	return r
}
