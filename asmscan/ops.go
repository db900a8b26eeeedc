// Package asmscan finds x86 shuffle instructions in Go assembly and decodes
// their masks with package x86shuf.
package asmscan

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xgo-dev/x86shuf"
)

var (
	// ErrUnknownOp is returned for mnemonics that are not shuffles.
	ErrUnknownOp = errors.New("not a shuffle instruction")
	// ErrNoImmediate is returned when an immediate-driven shuffle has none.
	ErrNoImmediate = errors.New("missing immediate")
	// ErrNotShuffle is returned for vperm2x128 immediates that zero a half.
	ErrNotShuffle = errors.New("not a pure shuffle")
	// ErrNoTable is returned when a pshufb control table cannot be read
	// from DATA statements.
	ErrNoTable = errors.New("missing pshufb table")
)

// Kind identifies the decoder family of an instruction.
type Kind int

const (
	KindINSERTPS Kind = iota
	KindMOVHLPS
	KindMOVLHPS
	KindPALIGNR
	KindPSHUF
	KindPSHUFHW
	KindPSHUFLW
	KindSHUFP
	KindUNPCKH
	KindUNPCKL
	KindVPERM2X128
	KindBLEND
	KindVPERM
	KindPSHUFB
)

var kindNames = [...]string{
	KindINSERTPS:   "insertps",
	KindMOVHLPS:    "movhlps",
	KindMOVLHPS:    "movlhps",
	KindPALIGNR:    "palignr",
	KindPSHUF:      "pshuf",
	KindPSHUFHW:    "pshufhw",
	KindPSHUFLW:    "pshuflw",
	KindSHUFP:      "shufp",
	KindUNPCKH:     "unpckh",
	KindUNPCKL:     "unpckl",
	KindVPERM2X128: "vperm2x128",
	KindBLEND:      "blend",
	KindVPERM:      "vperm",
	KindPSHUFB:     "pshufb",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// HasImm reports whether instructions of kind k carry an immediate.
func (k Kind) HasImm() bool {
	switch k {
	case KindMOVHLPS, KindMOVLHPS, KindUNPCKH, KindUNPCKL, KindPSHUFB:
		return false
	}
	return true
}

// unary kinds read one register source even in their VEX forms.
func (k Kind) unary() bool {
	switch k {
	case KindPSHUF, KindPSHUFHW, KindPSHUFLW, KindVPERM:
		return true
	}
	return false
}

// OpInfo describes one shuffle mnemonic.
type OpInfo struct {
	Kind    Kind
	EltBits int
	Float   bool
	// VEX is set for three-operand AVX forms.
	VEX bool
	// Fixed is the shape for instructions that only exist in one width.
	Fixed x86shuf.VT
}

// Shape returns the vector type for a register of regBits bits.
func (o OpInfo) Shape(regBits int) x86shuf.VT {
	if o.Fixed.NumElts != 0 {
		return o.Fixed
	}
	return x86shuf.VT{EltBits: o.EltBits, NumElts: regBits / o.EltBits, Float: o.Float}
}

var ops = map[string]OpInfo{}

func def(k Kind, eltBits int, float bool, names ...string) {
	for _, name := range names {
		ops[name] = OpInfo{Kind: k, EltBits: eltBits, Float: float}
		ops["V"+name] = OpInfo{Kind: k, EltBits: eltBits, Float: float, VEX: true}
	}
}

func fixed(k Kind, vt x86shuf.VT, vex bool, names ...string) {
	for _, name := range names {
		ops[name] = OpInfo{Kind: k, EltBits: vt.EltBits, Float: vt.Float, VEX: vex, Fixed: vt}
	}
}

func init() {
	fixed(KindINSERTPS, x86shuf.V4F32, false, "INSERTPS")
	fixed(KindINSERTPS, x86shuf.V4F32, true, "VINSERTPS")
	fixed(KindMOVHLPS, x86shuf.V4F32, false, "MOVHLPS")
	fixed(KindMOVHLPS, x86shuf.V4F32, true, "VMOVHLPS")
	fixed(KindMOVLHPS, x86shuf.V4F32, false, "MOVLHPS")
	fixed(KindMOVLHPS, x86shuf.V4F32, true, "VMOVLHPS")

	def(KindPALIGNR, 8, false, "PALIGNR")

	// PSHUFL is the Go assembler's spelling of PSHUFD.
	def(KindPSHUF, 32, false, "PSHUFD", "PSHUFL")
	fixed(KindPSHUF, x86shuf.V4I16, false, "PSHUFW")
	ops["VPERMILPS"] = OpInfo{Kind: KindPSHUF, EltBits: 32, Float: true, VEX: true}
	ops["VPERMILPD"] = OpInfo{Kind: KindPSHUF, EltBits: 64, Float: true, VEX: true}
	def(KindPSHUFHW, 16, false, "PSHUFHW")
	def(KindPSHUFLW, 16, false, "PSHUFLW")

	def(KindSHUFP, 32, true, "SHUFPS")
	def(KindSHUFP, 64, true, "SHUFPD")

	def(KindUNPCKL, 32, true, "UNPCKLPS")
	def(KindUNPCKL, 64, true, "UNPCKLPD")
	def(KindUNPCKH, 32, true, "UNPCKHPS")
	def(KindUNPCKH, 64, true, "UNPCKHPD")
	def(KindUNPCKL, 8, false, "PUNPCKLBW")
	def(KindUNPCKL, 16, false, "PUNPCKLWL", "PUNPCKLWD")
	def(KindUNPCKL, 32, false, "PUNPCKLLQ", "PUNPCKLDQ")
	def(KindUNPCKL, 64, false, "PUNPCKLQDQ")
	def(KindUNPCKH, 8, false, "PUNPCKHBW")
	def(KindUNPCKH, 16, false, "PUNPCKHWL", "PUNPCKHWD")
	def(KindUNPCKH, 32, false, "PUNPCKHLQ", "PUNPCKHDQ")
	def(KindUNPCKH, 64, false, "PUNPCKHQDQ")

	fixed(KindVPERM2X128, x86shuf.V4I64, true, "VPERM2I128")
	fixed(KindVPERM2X128, x86shuf.V4F64, true, "VPERM2F128")

	def(KindBLEND, 32, true, "BLENDPS")
	def(KindBLEND, 64, true, "BLENDPD")
	def(KindBLEND, 16, false, "PBLENDW")
	ops["VPBLENDD"] = OpInfo{Kind: KindBLEND, EltBits: 32, VEX: true}

	fixed(KindVPERM, x86shuf.V4I64, true, "VPERMQ")
	fixed(KindVPERM, x86shuf.V4F64, true, "VPERMPD")

	def(KindPSHUFB, 8, false, "PSHUFB")
}

// Lookup returns the description of op, accepting Go assembler and Intel
// spellings in any case.
func Lookup(op string) (OpInfo, bool) {
	info, ok := ops[normalizeOp(op)]
	return info, ok
}

// Ops returns every recognised mnemonic, sorted.
func Ops() []string {
	out := make([]string, 0, len(ops))
	for name := range ops {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalizeOp(op string) string {
	op = strings.ToUpper(strings.TrimSpace(op))
	if i := strings.IndexByte(op, '.'); i >= 0 {
		op = op[:i]
	}
	return op
}

// Decode runs the decoder for op on shape vt. imm is ignored by kinds without
// an immediate; table is only read by pshufb.
func Decode(op string, vt x86shuf.VT, imm uint, table []uint64) (x86shuf.Mask, error) {
	info, ok := Lookup(op)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	return decodeKind(info.Kind, vt, imm, table)
}

func decodeKind(k Kind, vt x86shuf.VT, imm uint, table []uint64) (x86shuf.Mask, error) {
	switch k {
	case KindINSERTPS:
		return x86shuf.DecodeINSERTPSMask(imm), nil
	case KindMOVHLPS:
		return x86shuf.DecodeMOVHLPSMask(vt.NumElts), nil
	case KindMOVLHPS:
		return x86shuf.DecodeMOVLHPSMask(vt.NumElts), nil
	case KindPALIGNR:
		return x86shuf.DecodePALIGNRMask(vt, imm), nil
	case KindPSHUF:
		return x86shuf.DecodePSHUFMask(vt, imm), nil
	case KindPSHUFHW, KindPSHUFLW:
		if vt.EltBits != 16 || vt.NumElts%8 != 0 {
			return nil, fmt.Errorf("%s needs 8 or 16 words, got %s", k, vt)
		}
		if k == KindPSHUFHW {
			return x86shuf.DecodePSHUFHWMask(vt, imm), nil
		}
		return x86shuf.DecodePSHUFLWMask(vt, imm), nil
	case KindSHUFP:
		return x86shuf.DecodeSHUFPMask(vt, imm), nil
	case KindUNPCKH:
		return x86shuf.DecodeUNPCKHMask(vt), nil
	case KindUNPCKL:
		return x86shuf.DecodeUNPCKLMask(vt), nil
	case KindVPERM2X128:
		m, ok := x86shuf.DecodeVPERM2X128Mask(vt, imm)
		if !ok {
			return nil, fmt.Errorf("%w: vperm2x128 immediate %#x zeroes a half", ErrNotShuffle, imm)
		}
		return m, nil
	case KindBLEND:
		if vt.EltBits == 16 && vt.NumElts == 16 {
			// vpblendw reuses its 8-bit immediate for both 128-bit lanes.
			imm = imm&0xff | (imm&0xff)<<8
		}
		return x86shuf.DecodeBLENDMask(vt, imm), nil
	case KindVPERM:
		return x86shuf.DecodeVPERMMask(imm), nil
	case KindPSHUFB:
		if table == nil {
			return nil, ErrNoTable
		}
		if err := x86shuf.ValidPSHUFBTable(table); err != nil {
			return nil, err
		}
		return x86shuf.DecodePSHUFBRawMask(table), nil
	}
	return nil, fmt.Errorf("%w: kind %s", ErrUnknownOp, k)
}
