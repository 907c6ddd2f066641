// Package analyzer defines the boundary between roslynq and the semantic
// analyzer that actually understands C#: given a loaded workspace state and
// a position, return a symbol handle and its related symbol sets. Nothing in
// this package re-implements C# semantics; memory.Analyzer (see the memory
// subpackage) is a small reference implementation used by roslynq's own
// tests and wired into the roslynqd binary, not a compiler.
package analyzer

import "context"

// State is the opaque, analyzer-owned handle a snapshot carries as its
// analyzer_state field (see spec.md §3). It must never be mutated after a
// snapshot publishes it — Load, Reload, and ApplyEdit each return a fresh
// State rather than mutating the one they were given.
type State any

// SymbolHandle is an opaque handle identifying a declared entity (type,
// method, field, ...). Analyzer implementations may wrap any value here;
// roslynq never inspects it except by passing it back into the Analyzer.
type SymbolHandle any

// Position is a 1-based (file, line, column) triple.
type Position struct {
	File   string
	Line   int
	Column int
}

// Span optionally extends a Location with an end position.
type Span struct {
	EndLine   int
	EndColumn int
}

// Location is a position (optionally a span) ready to render to a client.
type Location struct {
	File      string
	Line      int
	Column    int
	HasSpan   bool
	EndLine   int
	EndColumn int
}

// Symbol is the descriptor shape from spec.md §3.
type Symbol struct {
	Name                string
	Kind                string
	FullName            string
	Signature           string
	Documentation       string
	ContainingType      string
	ContainingNamespace string
	ReturnType          string
	Accessibility       string
	Modifiers           []string
	Location            *Location
	HasLocation         bool
}

// Severity is one of error, warning, info.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a single compiler diagnostic.
type Diagnostic struct {
	ID       string
	Severity Severity
	Message  string
	Location *Location
}

// DiagnosticsFilter narrows a diagnostics query to one file and a set of
// severities.
type DiagnosticsFilter struct {
	File           string // empty means "all documents"
	IncludeWarnings bool
	IncludeInfo     bool
}

// Analyzer is the external collaborator described in spec.md §1: a
// semantic-analysis library operating over a loaded workspace. Every method
// takes a context so long-running document-wide searches (references,
// callers) can be cancelled when a connection drops or the server shuts
// down.
type Analyzer interface {
	// Load parses the workspace rooted at root from disk and returns its
	// initial analyzer state together with the paths of the documents it
	// loaded. Returns an error if the manifest is malformed
	// or cannot be read.
	Load(ctx context.Context, root string) (State, []string, error)

	// Reload builds a fresh State from disk, independent of prev. The
	// caller (the snapshot manager) is responsible for retiring prev only
	// once no reader holds it.
	Reload(ctx context.Context, root string, prev State) (State, []string, error)

	// ApplyEdit returns a new State reflecting path's content replaced by
	// text, built incrementally from prev. If path is not a known document,
	// implementations should return prev unchanged (see DESIGN.md open
	// item: new-file creation is not handled here).
	ApplyEdit(ctx context.Context, prev State, path, text string) (State, error)

	// Resolve finds the symbol at pos, if any.
	Resolve(ctx context.Context, st State, pos Position) (SymbolHandle, bool, error)

	Definition(ctx context.Context, st State, sym SymbolHandle) (Symbol, bool, error)
	BaseDefinition(ctx context.Context, st State, sym SymbolHandle) (Symbol, bool, error)
	Implementations(ctx context.Context, st State, sym SymbolHandle) ([]Symbol, error)
	References(ctx context.Context, st State, sym SymbolHandle) ([]Location, error)
	Callers(ctx context.Context, st State, sym SymbolHandle) ([]Location, error)
	Callees(ctx context.Context, st State, sym SymbolHandle) ([]Location, error)
	Describe(ctx context.Context, st State, sym SymbolHandle) (Symbol, error)
	Diagnostics(ctx context.Context, st State, filter DiagnosticsFilter) ([]Diagnostic, error)

	// Documents lists the canonical document paths known to st.
	Documents(st State) []string
}
