package asmscan

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/xgo-dev/x86shuf"
)

// Site is one shuffle instruction found in assembly source.
type Site struct {
	Line   int
	Op     string
	Source string
	VT     x86shuf.VT
	Imm    uint
	HasImm bool
	// Src1 and Src2 name the operands that the mask's logical sources
	// refer to. Src2 is empty for single-source shuffles.
	Src1 string
	Src2 string
	Mask x86shuf.Mask
	Err  error
}

// Report lists the shuffle sites of one file in line order.
type Report struct {
	Sites []Site
}

// OpCount is the number of decoded sites for one mnemonic.
type OpCount struct {
	Op    string `json:"op"`
	Count int    `json:"count"`
}

// Decoded returns the sites whose mask was decoded.
func (r *Report) Decoded() []Site {
	return lo.Filter(r.Sites, func(s Site, _ int) bool { return s.Err == nil })
}

// Failed returns the sites that could not be decoded.
func (r *Report) Failed() []Site {
	return lo.Filter(r.Sites, func(s Site, _ int) bool { return s.Err != nil })
}

// OpCounts aggregates decoded sites by mnemonic, most frequent first.
func (r *Report) OpCounts() []OpCount {
	counts := lo.CountValuesBy(r.Decoded(), func(s Site) string { return s.Op })
	out := lo.MapToSlice(counts, func(op string, n int) OpCount { return OpCount{Op: op, Count: n} })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Op < out[j].Op
	})
	return out
}

// ScanFile reads and scans one .s file.
func ScanFile(path string) (*Report, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rep, err := Scan(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rep, nil
}

type stmt struct {
	line int
	text string
}

// Scan finds and decodes the shuffle instructions in Go amd64 assembly.
// Sites that cannot be decoded are reported with Err set rather than failing
// the scan.
func Scan(src string) (*Report, error) {
	lines, err := Preprocess(src)
	if err != nil {
		return nil, err
	}
	stmts := splitStatements(lines)

	data := newDataTables()
	for _, st := range stmts {
		op, args := splitInstr(st.text)
		if op == "DATA" {
			// Malformed DATA only matters if a pshufb reads it; lookup
			// reports the kept error then.
			_ = data.add(args)
		}
	}

	rep := &Report{}
	for _, st := range stmts {
		op, args := splitInstr(st.text)
		info, ok := ops[op]
		if !ok {
			continue
		}
		rep.Sites = append(rep.Sites, decodeSite(st, op, info, args, data))
	}
	return rep, nil
}

func splitStatements(lines []Line) []stmt {
	var out []stmt
	for _, ln := range lines {
		for _, s := range strings.Split(ln.Text, ";") {
			s = strings.TrimSpace(s)
			if s == "" || strings.HasSuffix(s, ":") {
				continue
			}
			// "label: INSTR ..." on one line.
			if c := strings.IndexByte(s, ':'); c >= 0 {
				left := strings.TrimSpace(s[:c])
				right := strings.TrimSpace(s[c+1:])
				if left != "" && right != "" && !strings.ContainsAny(left, " \t") {
					s = right
				}
			}
			out = append(out, stmt{line: ln.No, text: s})
		}
	}
	return out
}

func splitInstr(s string) (op string, args []string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", nil
	}
	op = normalizeOp(fields[0])
	rest := strings.TrimSpace(s[strings.Index(s, fields[0])+len(fields[0]):])
	return op, splitArgs(rest)
}

func decodeSite(st stmt, op string, info OpInfo, args []string, data *dataTables) Site {
	site := Site{Line: st.line, Op: op, Source: st.text}
	fail := func(err error) Site {
		site.Err = err
		return site
	}

	regs := args
	if len(args) > 0 && strings.HasPrefix(args[0], "$") {
		imm, err := evalImm(args[0])
		if err != nil {
			return fail(fmt.Errorf("amd64 %s immediate %q: %w", op, args[0], err))
		}
		// Shuffle immediates are imm8; the assembler keeps the low byte.
		site.Imm, site.HasImm = uint(imm&0xff), true
		regs = args[1:]
	}
	if info.Kind.HasImm() && !site.HasImm {
		return fail(fmt.Errorf("%w: %q", ErrNoImmediate, st.text))
	}

	want := 2
	if info.VEX && !info.Kind.unary() {
		want = 3
	}
	if len(regs) != want {
		return fail(fmt.Errorf("amd64 %s expects %d register operands: %q", op, want, st.text))
	}

	bits := 128
	if b, ok := regBits(regs[len(regs)-1]); ok {
		bits = b
	}
	if bits > 256 {
		return fail(fmt.Errorf("amd64 %s: %d-bit shuffles are unsupported: %q", op, bits, st.text))
	}
	site.VT = info.Shape(bits)
	if site.VT.NumElts < 2 {
		return fail(fmt.Errorf("amd64 %s: %s has a single element: %q", op, site.VT, st.text))
	}
	site.Src1, site.Src2 = sources(info, regs)

	var table []uint64
	if info.Kind == KindPSHUFB {
		t, err := data.lookup(regs[0], bits/8)
		if err != nil {
			return fail(fmt.Errorf("amd64 %s table %s: %w", op, regs[0], err))
		}
		table = t
	}

	m, err := decodeKind(info.Kind, site.VT, site.Imm, table)
	if err != nil {
		return fail(err)
	}
	site.Mask = m
	return site
}

// sources maps Plan 9 operands (reverse of Intel order) to the mask's
// logical sources.
func sources(info OpInfo, regs []string) (src1, src2 string) {
	n := len(regs)
	if info.Kind.unary() {
		return regs[n-2], ""
	}
	switch info.Kind {
	case KindPSHUFB:
		if info.VEX {
			return regs[n-2], ""
		}
		return regs[n-1], ""
	case KindPALIGNR:
		// The low bytes of the concatenation come from the r/m operand.
		if info.VEX {
			return regs[n-3], regs[n-2]
		}
		return regs[n-2], regs[n-1]
	}
	if info.VEX {
		return regs[n-2], regs[n-3]
	}
	return regs[n-1], regs[n-2]
}

func regBits(arg string) (int, bool) {
	if len(arg) < 2 {
		return 0, false
	}
	if _, err := strconv.Atoi(arg[1:]); err != nil {
		return 0, false
	}
	switch arg[0] {
	case 'M':
		return 64, true
	case 'X':
		return 128, true
	case 'Y':
		return 256, true
	case 'Z':
		return 512, true
	}
	return 0, false
}

// evalImm evaluates "$expr" as a Go constant expression.
func evalImm(s string) (uint64, error) {
	expr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if expr == "" {
		return 0, fmt.Errorf("empty immediate")
	}
	tv, err := types.Eval(token.NewFileSet(), nil, token.NoPos, expr)
	if err != nil {
		return 0, err
	}
	if tv.Value == nil {
		return 0, fmt.Errorf("not a constant")
	}
	v := constant.ToInt(tv.Value)
	if v.Kind() != constant.Int {
		return 0, fmt.Errorf("not an integer constant")
	}
	if u, exact := constant.Uint64Val(v); exact {
		return u, nil
	}
	if i, exact := constant.Int64Val(v); exact {
		return uint64(i), nil
	}
	return 0, fmt.Errorf("immediate overflows 64 bits")
}
