package asmscan

import (
	"bufio"
	"fmt"
	"sort"
	"strings"
)

// Line is one preprocessed statement line and the source line it came from.
type Line struct {
	No   int
	Text string
}

type macro struct {
	body   string
	params []string
}

type condFrame struct {
	outerActive bool
	cond        bool
	inElse      bool
}

// preprocessor is the small subset of the Go assembler's cpp that shuffle
// sites in real .s files depend on: comments, #include (ignored), #define
// with '\' continuations, and #ifdef/#ifndef/#else/#endif.
type preprocessor struct {
	macros map[string]macro
	names  []string // cached by sortedNames
	active bool
	conds  []condFrame

	// pending multi-line #define
	defName   string
	defParams []string
	defBody   strings.Builder
	defOpen   bool
	defActive bool
}

// Preprocess strips comments and directives from src and expands macros.
// Macros expand as they are defined at the point of use, and expanded
// statements keep the line number of that use.
func Preprocess(src string) ([]Line, error) {
	p := &preprocessor{macros: map[string]macro{}, active: true}

	var out []Line
	sc := bufio.NewScanner(strings.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	inBlock := false
	no := 0
	for sc.Scan() {
		no++
		var line string
		line, inBlock = stripComments(sc.Text(), inBlock)
		line = strings.TrimSpace(line)

		if p.defOpen {
			p.continueDefine(line)
			continue
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if err := p.directive(line); err != nil {
				return nil, fmt.Errorf("line %d: %w", no, err)
			}
			continue
		}
		if !p.active {
			continue
		}
		for _, text := range p.expand(line, 0) {
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, Line{No: no, Text: text})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if p.defOpen {
		p.closeDefine()
	}
	if len(p.conds) != 0 {
		return nil, fmt.Errorf("unterminated #if block")
	}
	return out, nil
}

// sortedNames returns the macro names, longest first so that a name is
// never expanded inside a longer one.
func (p *preprocessor) sortedNames() []string {
	if p.names != nil {
		return p.names
	}
	p.names = make([]string, 0, len(p.macros))
	for name := range p.macros {
		p.names = append(p.names, name)
	}
	sort.Slice(p.names, func(i, j int) bool {
		if len(p.names[i]) != len(p.names[j]) {
			return len(p.names[i]) > len(p.names[j])
		}
		return p.names[i] < p.names[j]
	})
	return p.names
}

// stripComments removes // and /* */ comments; inBlock carries an open block
// comment across lines.
func stripComments(line string, inBlock bool) (string, bool) {
	var b strings.Builder
	for line != "" {
		if inBlock {
			end := strings.Index(line, "*/")
			if end < 0 {
				return b.String(), true
			}
			line = line[end+2:]
			inBlock = false
			continue
		}
		lc := strings.Index(line, "//")
		bc := strings.Index(line, "/*")
		switch {
		case lc >= 0 && (bc < 0 || lc < bc):
			b.WriteString(line[:lc])
			return b.String(), false
		case bc >= 0:
			b.WriteString(line[:bc])
			line = line[bc+2:]
			inBlock = true
		default:
			b.WriteString(line)
			line = ""
		}
	}
	return b.String(), inBlock
}

func (p *preprocessor) directive(line string) error {
	word, rest, _ := strings.Cut(line[1:], " ")
	if i := strings.IndexByte(word, '\t'); i >= 0 {
		word, rest = word[:i], word[i+1:]+" "+rest
	}
	rest = strings.TrimSpace(rest)
	switch word {
	case "include", "undef":
		if word == "undef" && p.active {
			delete(p.macros, rest)
			p.names = nil
		}
		return nil
	case "ifdef", "ifndef":
		if rest == "" {
			return fmt.Errorf("invalid #%s: %q", word, line)
		}
		_, defined := p.macros[rest]
		f := condFrame{outerActive: p.active, cond: defined == (word == "ifdef")}
		p.conds = append(p.conds, f)
		p.active = p.active && f.cond
		return nil
	case "else":
		if len(p.conds) == 0 {
			return fmt.Errorf("stray #else")
		}
		top := &p.conds[len(p.conds)-1]
		if top.inElse {
			return fmt.Errorf("duplicate #else")
		}
		top.inElse = true
		p.active = top.outerActive && !top.cond
		return nil
	case "endif":
		if len(p.conds) == 0 {
			return fmt.Errorf("stray #endif")
		}
		p.active = p.conds[len(p.conds)-1].outerActive
		p.conds = p.conds[:len(p.conds)-1]
		return nil
	case "define":
		name, params, body, err := parseDefine(rest)
		if err != nil {
			return fmt.Errorf("invalid #define: %q", line)
		}
		p.defName, p.defParams, p.defOpen, p.defActive = name, params, true, p.active
		p.defBody.Reset()
		p.continueDefine(body)
		return nil
	default:
		// Other directives do not affect shuffle operands.
		return nil
	}
}

// continueDefine appends one body line to the open #define and closes it
// unless the line ends with '\'.
func (p *preprocessor) continueDefine(line string) {
	cont := strings.HasSuffix(line, "\\")
	line = strings.TrimSpace(strings.TrimSuffix(line, "\\"))
	if line != "" {
		if p.defBody.Len() > 0 {
			p.defBody.WriteString("\n")
		}
		p.defBody.WriteString(line)
	}
	if !cont {
		p.closeDefine()
	}
}

func (p *preprocessor) closeDefine() {
	if p.defActive {
		p.macros[p.defName] = macro{body: strings.TrimSpace(p.defBody.String()), params: p.defParams}
		p.names = nil
	}
	p.defName, p.defParams, p.defOpen = "", nil, false
	p.defBody.Reset()
}

func (p *preprocessor) expand(line string, depth int) []string {
	if depth >= 16 {
		return []string{line}
	}
	line = strings.TrimSpace(line)

	// A statement that is exactly a macro use expands to its body lines.
	for _, name := range p.sortedNames() {
		m := p.macros[name]
		var body string
		if len(m.params) == 0 {
			if line != name {
				continue
			}
			body = m.body
		} else {
			args, ok := parseCall(line, name, len(m.params))
			if !ok {
				continue
			}
			body = substitute(m.body, m.params, args)
		}
		var out []string
		for _, stmt := range strings.Split(body, "\n") {
			out = append(out, p.expand(stmt, depth+1)...)
		}
		return out
	}

	changed := false
	for _, name := range p.sortedNames() {
		if m := p.macros[name]; len(m.params) != 0 {
			var ok bool
			if line, ok = expandInlineCalls(line, name, m); ok {
				changed = true
			}
		}
	}
	if changed {
		return p.expand(line, depth+1)
	}

	// $NAME and identifiers inside $(...) immediates.
	for _, name := range p.sortedNames() {
		if m := p.macros[name]; len(m.params) == 0 && m.body != "" {
			line = replaceIdent(line, "$"+name, "$"+m.body)
		}
	}
	return []string{p.expandImmExprs(line)}
}

// replaceIdent replaces old in s when it is not followed by an identifier
// character.
func replaceIdent(s, old, repl string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, old)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := i + len(old)
		if end < len(s) && isIdentPart(s[end]) {
			b.WriteString(s[:end])
		} else {
			b.WriteString(s[:i])
			b.WriteString(repl)
		}
		s = s[end:]
	}
}

func (p *preprocessor) expandImmExprs(line string) string {
	var out strings.Builder
	for {
		i := strings.Index(line, "$(")
		if i < 0 {
			out.WriteString(line)
			return out.String()
		}
		j := matchParen(line, i+1)
		if j < 0 {
			out.WriteString(line)
			return out.String()
		}
		out.WriteString(line[:i])
		out.WriteString("$(")
		out.WriteString(p.replaceIdents(line[i+2 : j]))
		out.WriteByte(')')
		line = line[j+1:]
	}
}

func (p *preprocessor) replaceIdents(expr string) string {
	return mapIdents(expr, func(name string) string {
		if m, ok := p.macros[name]; ok && len(m.params) == 0 && m.body != "" {
			return m.body
		}
		return name
	})
}

func mapIdents(s string, f func(string) string) string {
	var out strings.Builder
	for i := 0; i < len(s); {
		if !isIdentStart(s[i]) {
			out.WriteByte(s[i])
			i++
			continue
		}
		j := i + 1
		for j < len(s) && isIdentPart(s[j]) {
			j++
		}
		out.WriteString(f(s[i:j]))
		i = j
	}
	return out.String()
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

// matchParen returns the index of the ')' closing the '(' at open, or -1.
func matchParen(s string, open int) int {
	depth := 0
	for k := open; k < len(s); k++ {
		switch s[k] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

func parseDefine(rest string) (name string, params []string, body string, err error) {
	i := 0
	for i < len(rest) && isIdentPart(rest[i]) {
		i++
	}
	if i == 0 || !isIdentStart(rest[0]) {
		return "", nil, "", fmt.Errorf("invalid define name")
	}
	name = rest[:i]
	if i == len(rest) || rest[i] != '(' {
		return name, nil, strings.TrimSpace(rest[i:]), nil
	}
	j := matchParen(rest, i)
	if j < 0 {
		return "", nil, "", fmt.Errorf("unterminated macro params")
	}
	if text := strings.TrimSpace(rest[i+1 : j]); text != "" {
		for _, param := range strings.Split(text, ",") {
			param = strings.TrimSpace(param)
			if param == "" {
				return "", nil, "", fmt.Errorf("empty macro param")
			}
			params = append(params, param)
		}
	}
	return name, params, strings.TrimSpace(rest[j+1:]), nil
}

// parseCall matches a whole statement "NAME(a, b)" with want arguments.
func parseCall(line, name string, want int) ([]string, bool) {
	if !strings.HasPrefix(line, name+"(") {
		return nil, false
	}
	j := matchParen(line, len(name))
	if j < 0 {
		return nil, false
	}
	if tail := strings.TrimSpace(line[j+1:]); tail != "" && tail != ";" {
		return nil, false
	}
	args := splitArgs(line[len(name)+1 : j])
	if len(args) != want {
		return nil, false
	}
	return args, true
}

// expandInlineCalls expands NAME(args) occurrences inside a longer statement,
// e.g. "...; ROL16(X12, X15); ...".
func expandInlineCalls(line, name string, m macro) (string, bool) {
	var out strings.Builder
	changed := false
	for {
		j := strings.Index(line, name+"(")
		if j < 0 {
			out.WriteString(line)
			return out.String(), changed
		}
		open := j + len(name)
		k := matchParen(line, open)
		if k < 0 || (j > 0 && isIdentPart(line[j-1])) {
			out.WriteString(line[:open])
			line = line[open:]
			continue
		}
		args := splitArgs(line[open+1 : k])
		if len(args) != len(m.params) {
			out.WriteString(line[:open])
			line = line[open:]
			continue
		}
		out.WriteString(line[:j])
		out.WriteString(strings.ReplaceAll(substitute(m.body, m.params, args), "\n", "; "))
		line = line[k+1:]
		changed = true
	}
}

func substitute(body string, params, args []string) string {
	if len(params) == 0 || len(params) != len(args) {
		return body
	}
	repl := make(map[string]string, len(params))
	for i, param := range params {
		repl[param] = args[i]
	}
	return mapIdents(body, func(name string) string {
		if r, ok := repl[name]; ok {
			return r
		}
		return name
	})
}

// splitArgs splits s at commas that are not nested in parentheses.
func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
