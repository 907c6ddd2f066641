// Package memory is a reference Analyzer (see internal/analyzer) backed by a
// small regex-based scanner over *.cs-suffixed text. It recognizes enough of
// namespace/class/interface/method declarations and call sites to drive
// roslynq's own tests and the roslynqd binary, which uses it as its analyzer;
// it is not a C# compiler.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roslynq/roslynq/internal/analyzer"
)

const sourceExt = ".cs"

// workspace is the opaque analyzer.State this package hands back: the set
// of parsed documents known to one loaded workspace.
type workspace struct {
	root string
	docs map[string]*document // keyed by canonical absolute path
}

// handle is the opaque analyzer.SymbolHandle this package produces.
type handle struct {
	docPath string
	d       *decl // set when the handle denotes a declaration occurrence
	c       *call // set when the handle denotes a call-site occurrence
}

// Analyzer implements analyzer.Analyzer.
type Analyzer struct{}

// New returns a ready-to-use reference Analyzer.
func New() *Analyzer { return &Analyzer{} }

func (a *Analyzer) Load(_ context.Context, root string) (analyzer.State, []string, error) {
	return loadWorkspace(root)
}

func (a *Analyzer) Reload(_ context.Context, root string, _ analyzer.State) (analyzer.State, []string, error) {
	return loadWorkspace(root)
}

func loadWorkspace(root string) (*workspace, []string, error) {
	ws := &workspace{root: root, docs: make(map[string]*document)}
	var paths []string

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(p) != sourceExt {
			return nil
		}
		text, err := readFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		ws.docs[p] = parseDocument(p, text)
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading workspace at %s: %w", root, err)
	}
	sort.Strings(paths)
	return ws, paths, nil
}

func (a *Analyzer) ApplyEdit(_ context.Context, prev analyzer.State, path, text string) (analyzer.State, error) {
	old := prev.(*workspace)
	if _, ok := old.docs[path]; !ok {
		// Unknown document: no-op, per spec.md §4.5's open item on new-file
		// creation.
		return old, nil
	}
	next := &workspace{root: old.root, docs: make(map[string]*document, len(old.docs))}
	for p, d := range old.docs {
		next.docs[p] = d
	}
	next.docs[path] = parseDocument(path, text)
	return next, nil
}

func (a *Analyzer) Documents(st analyzer.State) []string {
	ws := st.(*workspace)
	paths := make([]string, 0, len(ws.docs))
	for p := range ws.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (a *Analyzer) Resolve(_ context.Context, st analyzer.State, pos analyzer.Position) (analyzer.SymbolHandle, bool, error) {
	ws := st.(*workspace)
	doc, ok := ws.docs[pos.File]
	if !ok {
		return nil, false, nil
	}

	for _, d := range doc.decls {
		if within(pos, d.line, d.col, len(d.name)) {
			return handle{docPath: pos.File, d: d}, true, nil
		}
	}
	for _, c := range doc.calls {
		if within(pos, c.line, c.col, len(c.name)) {
			return handle{docPath: pos.File, c: c}, true, nil
		}
	}
	return nil, false, nil
}

func within(pos analyzer.Position, line, col, length int) bool {
	return pos.Line == line && pos.Column >= col && pos.Column < col+length
}

func (a *Analyzer) Definition(_ context.Context, st analyzer.State, sym analyzer.SymbolHandle) (analyzer.Symbol, bool, error) {
	ws := st.(*workspace)
	h := sym.(handle)
	targetPath, target := resolveTarget(ws, h)
	if target == nil {
		return analyzer.Symbol{}, false, nil
	}
	return declSymbol(targetPath, target), true, nil
}

func (a *Analyzer) BaseDefinition(_ context.Context, st analyzer.State, sym analyzer.SymbolHandle) (analyzer.Symbol, bool, error) {
	ws := st.(*workspace)
	h := sym.(handle)
	d := h.d
	if d == nil {
		_, d = resolveTarget(ws, h)
	}
	if d == nil || d.kind != "method" {
		return analyzer.Symbol{}, false, nil
	}

	isOverride := false
	for _, m := range d.modifiers {
		if m == "override" {
			isOverride = true
		}
	}

	doc := ws.docs[h.docPath]
	containingDecl := findDecl(doc, d.containingType, "")

	// Interface-declared base: the containing type implements an interface
	// that declares a same-named abstract method.
	if containingDecl != nil {
		for _, base := range containingDecl.bases {
			for _, otherDoc := range ws.docs {
				iface := findDecl(otherDoc, base, "")
				if iface == nil || iface.kind != "interface" {
					continue
				}
				if baseMethod := findMethodInType(otherDoc, base, d.name); baseMethod != nil {
					return declSymbol(otherDoc.path, baseMethod), true, nil
				}
			}
		}
	}

	// Override-declared base: same method name declared in a type this
	// type's namespace lists as a base that is a class, not an interface.
	if isOverride && containingDecl != nil {
		for _, base := range containingDecl.bases {
			for _, otherDoc := range ws.docs {
				if baseMethod := findMethodInType(otherDoc, base, d.name); baseMethod != nil {
					return declSymbol(otherDoc.path, baseMethod), true, nil
				}
			}
		}
	}

	return analyzer.Symbol{}, false, nil
}

func (a *Analyzer) Implementations(_ context.Context, st analyzer.State, sym analyzer.SymbolHandle) ([]analyzer.Symbol, error) {
	ws := st.(*workspace)
	h := sym.(handle)
	d := h.d
	if d == nil {
		_, d = resolveTarget(ws, h)
	}
	if d == nil || d.kind != "method" {
		return nil, nil
	}

	var out []analyzer.Symbol
	for _, doc := range ws.docs {
		for _, cls := range doc.decls {
			if cls.kind != "class" {
				continue
			}
			if !hasBase(cls, d.containingType) {
				continue
			}
			if impl := findMethodInType(doc, cls.name, d.name); impl != nil {
				out = append(out, declSymbol(doc.path, impl))
			}
		}
	}
	return out, nil
}

func (a *Analyzer) References(ctx context.Context, st analyzer.State, sym analyzer.SymbolHandle) ([]analyzer.Location, error) {
	ws := st.(*workspace)
	h := sym.(handle)
	targetPath, target := resolveTarget(ws, h)
	if target == nil {
		return nil, nil
	}

	var out []analyzer.Location
	for _, doc := range ws.docs {
		for _, c := range doc.calls {
			cTargetPath, cTarget := resolveTarget(ws, handle{docPath: doc.path, c: c})
			if cTarget == target && cTargetPath == targetPath {
				out = append(out, analyzer.Location{File: doc.path, Line: c.line, Column: c.col})
			}
		}
	}
	return out, nil
}

func (a *Analyzer) Callers(_ context.Context, st analyzer.State, sym analyzer.SymbolHandle) ([]analyzer.Location, error) {
	ws := st.(*workspace)
	h := sym.(handle)
	targetPath, target := resolveTarget(ws, h)
	if target == nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []analyzer.Location
	for _, doc := range ws.docs {
		for _, c := range doc.calls {
			cTargetPath, cTarget := resolveTarget(ws, handle{docPath: doc.path, c: c})
			if cTarget != target || cTargetPath != targetPath || c.enclosingMethod == nil {
				continue
			}
			key := fmt.Sprintf("%s:%d:%d", doc.path, c.enclosingMethod.line, c.enclosingMethod.col)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, analyzer.Location{File: doc.path, Line: c.enclosingMethod.line, Column: c.enclosingMethod.col})
		}
	}
	return out, nil
}

func (a *Analyzer) Callees(_ context.Context, st analyzer.State, sym analyzer.SymbolHandle) ([]analyzer.Location, error) {
	ws := st.(*workspace)
	h := sym.(handle)
	d := h.d
	if d == nil {
		_, d = resolveTarget(ws, h)
	}
	if d == nil || d.kind != "method" {
		return nil, nil
	}
	doc := ws.docs[h.docPath]

	seen := make(map[string]bool)
	var out []analyzer.Location
	for _, c := range doc.calls {
		if c.enclosingMethod != d {
			continue
		}
		targetPath, target := resolveTarget(ws, handle{docPath: doc.path, c: c})
		if target == nil {
			continue
		}
		key := fmt.Sprintf("%s:%d:%d", targetPath, target.line, target.col)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, analyzer.Location{File: targetPath, Line: target.line, Column: target.col})
	}
	return out, nil
}

func (a *Analyzer) Describe(_ context.Context, st analyzer.State, sym analyzer.SymbolHandle) (analyzer.Symbol, error) {
	ws := st.(*workspace)
	h := sym.(handle)
	targetPath, target := resolveTarget(ws, h)
	if target == nil {
		return analyzer.Symbol{}, fmt.Errorf("symbol not found")
	}
	return declSymbol(targetPath, target), nil
}

func (a *Analyzer) Diagnostics(_ context.Context, st analyzer.State, filter analyzer.DiagnosticsFilter) ([]analyzer.Diagnostic, error) {
	ws := st.(*workspace)
	var out []analyzer.Diagnostic
	for path, doc := range ws.docs {
		if filter.File != "" && filter.File != path {
			continue
		}
		for _, c := range doc.calls {
			_, target := resolveTarget(ws, handle{docPath: path, c: c})
			if target != nil {
				continue
			}
			if !filter.IncludeWarnings {
				continue
			}
			out = append(out, analyzer.Diagnostic{
				ID:       "RQ0001",
				Severity: analyzer.SeverityWarning,
				Message:  fmt.Sprintf("call to unresolved method %q", c.name),
				Location: &analyzer.Location{File: path, Line: c.line, Column: c.col},
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location.File != out[j].Location.File {
			return out[i].Location.File < out[j].Location.File
		}
		return out[i].Location.Line < out[j].Location.Line
	})
	return out, nil
}

// resolveTarget follows a call-site handle to the declaration it most
// plausibly refers to: same containing type first, then any method of that
// name anywhere in the workspace.
func resolveTarget(ws *workspace, h handle) (string, *decl) {
	if h.d != nil {
		return h.docPath, h.d
	}
	if h.c == nil {
		return "", nil
	}
	c := h.c
	doc := ws.docs[h.docPath]

	if c.enclosingMethod != nil && c.enclosingMethod.containingType != "" {
		if d := findMethodInType(doc, c.enclosingMethod.containingType, c.name); d != nil {
			return doc.path, d
		}
	}
	for _, d := range doc.decls {
		if d.kind == "method" && d.name == c.name && !d.abstractSig {
			return doc.path, d
		}
	}
	for path, other := range ws.docs {
		for _, d := range other.decls {
			if d.kind == "method" && d.name == c.name && !d.abstractSig {
				return path, d
			}
		}
	}
	return "", nil
}

func findDecl(doc *document, name, kind string) *decl {
	if doc == nil || name == "" {
		return nil
	}
	for _, d := range doc.decls {
		if d.name == name && (kind == "" || d.kind == kind) {
			return d
		}
	}
	return nil
}

func findMethodInType(doc *document, typeName, methodName string) *decl {
	if doc == nil {
		return nil
	}
	for _, d := range doc.decls {
		if d.kind == "method" && d.containingType == typeName && d.name == methodName {
			return d
		}
	}
	return nil
}

func hasBase(cls *decl, baseName string) bool {
	for _, b := range cls.bases {
		if strings.TrimSpace(b) == baseName {
			return true
		}
	}
	return false
}

func declSymbol(path string, d *decl) analyzer.Symbol {
	kind := d.kind
	if d.kind == "method" && d.abstractSig {
		kind = "interface-method"
	}
	return analyzer.Symbol{
		Name:                d.name,
		Kind:                kind,
		FullName:            fullName(d),
		Signature:           signature(d),
		ContainingType:      d.containingType,
		ContainingNamespace: d.containingNamespace,
		ReturnType:          d.returnType,
		Accessibility:       accessibility(d.modifiers),
		Modifiers:           d.modifiers,
		Location:            &analyzer.Location{File: path, Line: d.line, Column: d.col},
		HasLocation:         true,
	}
}

func fullName(d *decl) string {
	parts := []string{}
	if d.containingNamespace != "" {
		parts = append(parts, d.containingNamespace)
	}
	if d.containingType != "" {
		parts = append(parts, d.containingType)
	}
	parts = append(parts, d.name)
	return strings.Join(parts, ".")
}

func signature(d *decl) string {
	if d.kind != "method" {
		return ""
	}
	return fmt.Sprintf("%s %s(%s)", d.returnType, d.name, d.params)
}

func accessibility(modifiers []string) string {
	for _, m := range modifiers {
		switch m {
		case "public", "private", "protected", "internal":
			return m
		}
	}
	return ""
}
