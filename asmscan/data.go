package asmscan

import (
	"fmt"
	"strconv"
	"strings"
)

// dataTables collects DATA statements so pshufb operands naming a symbol
// can be resolved to their bytes.
type dataTables struct {
	bytes  map[string][]byte
	filled map[string][]bool
	// errs holds the first malformed DATA statement of each symbol.
	errs map[string]error
}

func newDataTables() *dataTables {
	return &dataTables{bytes: map[string][]byte{}, filled: map[string][]bool{}, errs: map[string]error{}}
}

// add records "DATA sym+off(SB)/width, $value". An error is also kept
// against the symbol, when one can be parsed, for lookup to report.
func (d *dataTables) add(args []string) error {
	sym, err := d.store(args)
	if err != nil && sym != "" {
		if _, seen := d.errs[sym]; !seen {
			d.errs[sym] = err
		}
	}
	return err
}

func (d *dataTables) store(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("DATA expects 2 operands")
	}
	addr, widthText, hasWidth := strings.Cut(args[0], "/")
	sym, off, err := parseSymAddr(addr)
	if err != nil {
		return "", err
	}
	if len(args) != 2 {
		return sym, fmt.Errorf("DATA %s expects 2 operands", args[0])
	}
	if !hasWidth {
		return sym, fmt.Errorf("DATA %q has no width", args[0])
	}
	width, err := strconv.Atoi(strings.TrimSpace(widthText))
	if err != nil || width < 1 || width > 8 {
		return sym, fmt.Errorf("DATA %s: bad width %q", args[0], widthText)
	}
	if !strings.HasPrefix(args[1], "$") || strings.HasPrefix(args[1], "$\"") {
		return sym, fmt.Errorf("DATA %s: value %q is not an integer", args[0], args[1])
	}
	v, err := evalImm(args[1])
	if err != nil {
		return sym, fmt.Errorf("DATA %s: value %q: %w", args[0], args[1], err)
	}

	end := off + width
	for len(d.bytes[sym]) < end {
		d.bytes[sym] = append(d.bytes[sym], 0)
		d.filled[sym] = append(d.filled[sym], false)
	}
	for i := 0; i < width; i++ {
		d.bytes[sym][off+i] = byte(v >> (8 * i))
		d.filled[sym][off+i] = true
	}
	return sym, nil
}

// lookup returns size bytes at the memory operand "sym+off(SB)".
func (d *dataTables) lookup(operand string, size int) ([]uint64, error) {
	if !strings.HasSuffix(operand, "(SB)") {
		return nil, fmt.Errorf("%w: mask operand %q is not a static symbol", ErrNoTable, operand)
	}
	sym, off, err := parseSymAddr(operand)
	if err != nil {
		return nil, err
	}
	if err := d.errs[sym]; err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, err)
	}
	b, filled := d.bytes[sym], d.filled[sym]
	if len(b) < off+size {
		return nil, fmt.Errorf("%w: %s has %d bytes, need %d at offset %d", ErrNoTable, sym, len(b), size, off)
	}
	out := make([]uint64, size)
	for i := range out {
		if !filled[off+i] {
			return nil, fmt.Errorf("%w: %s byte %d is not initialised", ErrNoTable, sym, off+i)
		}
		out[i] = uint64(b[off+i])
	}
	return out, nil
}

// parseSymAddr splits "sym<>+16(SB)" into ("sym<>", 16).
func parseSymAddr(s string) (string, int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "(SB)")
	sym, offText := s, ""
	if i := strings.LastIndexByte(s, '+'); i > 0 {
		sym, offText = s[:i], s[i+1:]
	}
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return "", 0, fmt.Errorf("empty symbol in %q", s)
	}
	off := 0
	if offText != "" {
		v, err := strconv.ParseInt(strings.TrimSpace(offText), 0, 32)
		if err != nil || v < 0 {
			return "", 0, fmt.Errorf("bad offset in %q", s)
		}
		off = int(v)
	}
	return sym, off, nil
}
