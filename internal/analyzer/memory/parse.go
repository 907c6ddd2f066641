package memory

import (
	"os"
	"regexp"
	"sort"
	"strings"
)

// decl is a declared entity: a namespace, class, interface, or method.
type decl struct {
	name                string
	kind                string // "namespace", "class", "interface", "method"
	line, col           int
	endLine, endCol     int
	containingType      string
	containingNamespace string
	modifiers           []string
	returnType          string
	params              string
	bases               []string // only set for class/interface decls
	abstractSig         bool     // method decl with no body (interface member)
}

// call is an occurrence of an identifier immediately followed by "(" inside
// a method body.
type call struct {
	name            string
	line, col       int
	enclosingMethod *decl
}

// document is one parsed source file.
type document struct {
	path  string
	text  string
	decls []*decl
	calls []*call
}

var (
	modifierWords = map[string]bool{
		"public": true, "private": true, "protected": true, "internal": true,
		"static": true, "override": true, "virtual": true, "abstract": true,
		"sealed": true, "readonly": true, "async": true, "partial": true,
	}
	skipCallNames = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "catch": true,
		"using": true, "foreach": true, "lock": true, "fixed": true,
		"return": true, "new": true,
	}

	namespaceRe = regexp.MustCompile(`\bnamespace\s+([A-Za-z_]\w*)`)
	classRe     = regexp.MustCompile(`\b(class|interface)\s+([A-Za-z_]\w*)\s*(:\s*([A-Za-z_][\w,\s.]*))?\s*\{`)
	methodRe    = regexp.MustCompile(`\b([A-Za-z_][\w<>\[\],. ]*?)\s+([A-Za-z_]\w*)\s*\(([^)]*)\)\s*\{`)
	abstractRe  = regexp.MustCompile(`\b([A-Za-z_][\w<>\[\],. ]*?)\s+([A-Za-z_]\w*)\s*\(([^)]*)\)\s*;`)
	identCallRe = regexp.MustCompile(`\b([A-Za-z_]\w*)\s*\(`)
)

// parseDocument extracts declarations and call sites from a .cs-style text.
// It is a small fixture scanner, not a C# parser: it tracks brace depth to
// keep namespace/class/method context and a line/column pointer, but it does
// not understand strings, comments, or generics beyond what the regular
// expressions above tolerate.
func parseDocument(path, text string) *document {
	doc := &document{path: path, text: text}

	lines := strings.Split(text, "\n")

	type frame struct {
		depth int
		kind  string // "namespace", "class", "method"
		d     *decl
	}
	var stack []frame
	depth := 0

	currentNamespace := func() string {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].kind == "namespace" {
				return stack[i].d.name
			}
		}
		return ""
	}
	currentType := func() string {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].kind == "class" {
				return stack[i].d.name
			}
		}
		return ""
	}
	currentMethod := func() *decl {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].kind == "method" {
				return stack[i].d
			}
		}
		return nil
	}

	declSpans := make(map[int][][2]int) // line -> byte spans already claimed by a decl match

	for lineIdx, line := range lines {
		lineNo := lineIdx + 1
		var spans [][2]int

		if m := namespaceRe.FindStringSubmatchIndex(line); m != nil {
			name := line[m[2]:m[3]]
			d := &decl{name: name, kind: "namespace", line: lineNo, col: m[2] + 1, containingNamespace: currentNamespace()}
			doc.decls = append(doc.decls, d)
			spans = append(spans, [2]int{m[2], m[3]})
			stack = append(stack, frame{depth: depth, kind: "namespace", d: d})
		}

		if m := classRe.FindStringSubmatchIndex(line); m != nil {
			kind := line[m[2]:m[3]]
			name := line[m[4]:m[5]]
			var bases []string
			if m[8] != -1 {
				for _, b := range strings.Split(line[m[8]:m[9]], ",") {
					b = strings.TrimSpace(b)
					if b != "" {
						bases = append(bases, b)
					}
				}
			}
			d := &decl{
				name: name, kind: kind, line: lineNo, col: m[4] + 1,
				containingNamespace: currentNamespace(), bases: bases,
			}
			doc.decls = append(doc.decls, d)
			spans = append(spans, [2]int{m[4], m[5]})
			stack = append(stack, frame{depth: depth, kind: "class", d: d})
		}

		if m := methodRe.FindStringSubmatchIndex(line); m != nil {
			returnType := strings.TrimSpace(line[m[2]:m[3]])
			name := line[m[4]:m[5]]
			params := line[m[6]:m[7]]
			mods := extractModifiers(line[:m[2]])
			d := &decl{
				name: name, kind: "method", line: lineNo, col: m[4] + 1,
				containingType: currentType(), containingNamespace: currentNamespace(),
				returnType: returnType, params: params, modifiers: mods,
			}
			doc.decls = append(doc.decls, d)
			spans = append(spans, [2]int{m[4], m[5]})
			stack = append(stack, frame{depth: depth, kind: "method", d: d})
		} else if m := abstractRe.FindStringSubmatchIndex(line); m != nil {
			returnType := strings.TrimSpace(line[m[2]:m[3]])
			name := line[m[4]:m[5]]
			params := line[m[6]:m[7]]
			mods := extractModifiers(line[:m[2]])
			d := &decl{
				name: name, kind: "method", line: lineNo, col: m[4] + 1,
				containingType: currentType(), containingNamespace: currentNamespace(),
				returnType: returnType, params: params, modifiers: mods, abstractSig: true,
			}
			doc.decls = append(doc.decls, d)
			spans = append(spans, [2]int{m[4], m[5]})
		}

		declSpans[lineNo] = spans

		// Call sites: any identifier-paren occurrence not already claimed by a
		// declaration match and not a control-flow keyword.
		for _, m := range identCallRe.FindAllStringSubmatchIndex(line, -1) {
			name := line[m[2]:m[3]]
			if skipCallNames[name] {
				continue
			}
			claimed := false
			for _, s := range declSpans[lineNo] {
				if m[2] >= s[0] && m[3] <= s[1] {
					claimed = true
					break
				}
			}
			if claimed {
				continue
			}
			doc.calls = append(doc.calls, &call{
				name: name, line: lineNo, col: m[2] + 1, enclosingMethod: currentMethod(),
			})
		}

		// Update brace depth and pop frames whose body has closed.
		for _, ch := range line {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
				for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
					top := stack[len(stack)-1]
					top.d.endLine = lineNo
					stack = stack[:len(stack)-1]
				}
			}
		}
	}

	sort.SliceStable(doc.decls, func(i, j int) bool {
		if doc.decls[i].line != doc.decls[j].line {
			return doc.decls[i].line < doc.decls[j].line
		}
		return doc.decls[i].col < doc.decls[j].col
	})

	return doc
}

func extractModifiers(prefix string) []string {
	var mods []string
	for _, w := range strings.Fields(prefix) {
		if modifierWords[w] {
			mods = append(mods, w)
		}
	}
	return mods
}

// readFile loads a document's text from disk.
func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
