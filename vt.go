package x86shuf

import (
	"fmt"
	"strconv"
	"strings"
)

// VT describes the shape of a vector operand: how many elements it holds and
// how wide each element is. Decoders expect at least two elements.
type VT struct {
	EltBits int
	NumElts int
	Float   bool
}

var (
	V8I8  = VT{EltBits: 8, NumElts: 8}
	V4I16 = VT{EltBits: 16, NumElts: 4}
	V2I32 = VT{EltBits: 32, NumElts: 2}

	V16I8 = VT{EltBits: 8, NumElts: 16}
	V8I16 = VT{EltBits: 16, NumElts: 8}
	V4I32 = VT{EltBits: 32, NumElts: 4}
	V2I64 = VT{EltBits: 64, NumElts: 2}
	V4F32 = VT{EltBits: 32, NumElts: 4, Float: true}
	V2F64 = VT{EltBits: 64, NumElts: 2, Float: true}

	V32I8  = VT{EltBits: 8, NumElts: 32}
	V16I16 = VT{EltBits: 16, NumElts: 16}
	V8I32  = VT{EltBits: 32, NumElts: 8}
	V4I64  = VT{EltBits: 64, NumElts: 4}
	V8F32  = VT{EltBits: 32, NumElts: 8, Float: true}
	V4F64  = VT{EltBits: 64, NumElts: 4, Float: true}
)

// SizeInBits returns the total width of the vector.
func (vt VT) SizeInBits() int { return vt.EltBits * vt.NumElts }

// EltBytes returns the element width in bytes.
func (vt VT) EltBytes() int { return vt.EltBits / 8 }

func (vt VT) String() string {
	kind := "i"
	if vt.Float {
		kind = "f"
	}
	return fmt.Sprintf("v%d%s%d", vt.NumElts, kind, vt.EltBits)
}

// ParseVT parses names such as "v8i32" or "v2f64". Single-element vectors
// have nothing to shuffle and are rejected.
func ParseVT(s string) (VT, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "v") {
		return VT{}, fmt.Errorf("invalid vector type %q", s)
	}
	rest := s[1:]
	k := strings.IndexAny(rest, "if")
	if k <= 0 || k == len(rest)-1 {
		return VT{}, fmt.Errorf("invalid vector type %q", s)
	}
	n, err := strconv.Atoi(rest[:k])
	if err != nil || n <= 0 {
		return VT{}, fmt.Errorf("invalid element count in %q", s)
	}
	if n < 2 {
		return VT{}, fmt.Errorf("single-element vector %q cannot be shuffled", s)
	}
	bits, err := strconv.Atoi(rest[k+1:])
	if err != nil {
		return VT{}, fmt.Errorf("invalid element width in %q", s)
	}
	float := rest[k] == 'f'
	switch bits {
	case 8, 16:
		if float {
			return VT{}, fmt.Errorf("unsupported float width in %q", s)
		}
	case 32, 64:
	default:
		return VT{}, fmt.Errorf("unsupported element width in %q", s)
	}
	vt := VT{EltBits: bits, NumElts: n, Float: float}
	switch vt.SizeInBits() {
	case 64, 128, 256:
	default:
		return VT{}, fmt.Errorf("unsupported vector width %d in %q", vt.SizeInBits(), s)
	}
	return vt, nil
}

// laneGeometry splits vt into 128-bit lanes. Vectors narrower than 128 bits
// (MMX) are a single lane.
func laneGeometry(vt VT) (numElts, numLanes, laneElts int) {
	numElts = vt.NumElts
	numLanes = vt.SizeInBits() / 128
	if numLanes == 0 {
		numLanes = 1
	}
	return numElts, numLanes, numElts / numLanes
}
