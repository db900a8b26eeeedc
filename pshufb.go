package x86shuf

import "fmt"

// ConstantData is a constant aggregate holding a PSHUFB control table.
type ConstantData interface {
	// IsVector reports whether the constant has vector type.
	IsVector() bool
	// ElementBits is the width of one element.
	ElementBits() int
	// Len is the element count declared by the constant's type.
	Len() int
	// NumElements is the number of elements actually stored.
	NumElements() int
	// ElementAsInteger returns element i zero-extended to 64 bits.
	ElementAsInteger(i int) uint64
}

// ConstVector is a ConstantData backed by a slice.
type ConstVector struct {
	EltBits int
	Elems   []uint64
}

// ConstBytes returns an i8 vector constant holding b.
func ConstBytes(b []byte) ConstVector {
	elems := make([]uint64, len(b))
	for i, v := range b {
		elems[i] = uint64(v)
	}
	return ConstVector{EltBits: 8, Elems: elems}
}

func (c ConstVector) IsVector() bool   { return true }
func (c ConstVector) ElementBits() int { return c.EltBits }
func (c ConstVector) Len() int         { return len(c.Elems) }
func (c ConstVector) NumElements() int { return len(c.Elems) }

func (c ConstVector) ElementAsInteger(i int) uint64 {
	v := c.Elems[i]
	if c.EltBits < 64 {
		v &= 1<<uint(c.EltBits) - 1
	}
	return v
}

// DecodePSHUFBMask decodes a pshufb control table held in a constant. The
// constant must be a 16 or 32 element i8 vector; anything else panics.
func DecodePSHUFBMask(c ConstantData) Mask {
	if !c.IsVector() {
		panic("x86shuf: expected a vector constant mask")
	}
	if c.ElementBits() != 8 {
		panic(fmt.Sprintf("x86shuf: expected i8 constant mask elements, got i%d", c.ElementBits()))
	}
	numElements := c.Len()
	// TODO: support 512-bit tables once a 64-element layout is decoded.
	if numElements != 16 && numElements != 32 {
		panic(fmt.Sprintf("x86shuf: only 128-bit and 256-bit pshufb masks are supported, got %d elements", numElements))
	}
	if numElements != c.NumElements() {
		panic(fmt.Sprintf("x86shuf: constant mask declares %d elements but holds %d", numElements, c.NumElements()))
	}

	raw := make([]uint64, numElements)
	for i := range raw {
		raw[i] = c.ElementAsInteger(i)
	}
	return DecodePSHUFBRawMask(raw)
}

// DecodePSHUFBRawMask decodes a pshufb control table given as raw byte
// values. Each 16-byte half of a 32-byte table indexes only within its own
// half. An index that falls outside the table panics.
func DecodePSHUFBRawMask(raw []uint64) Mask {
	mask := make([]int, 0, len(raw))
	for i, m := range raw {
		base := 0
		if i >= 16 {
			base = 16
		}
		// Bit 7 zeroes the element.
		if m&(1<<7) != 0 {
			mask = append(mask, SentinelZero)
			continue
		}
		index := base + int(m)
		if index < 0 || index >= len(raw) {
			panic(fmt.Sprintf("x86shuf: out of bounds pshufb index %d at byte %d of a %d byte table", index, i, len(raw)))
		}
		mask = append(mask, index)
	}
	return fromInts(mask)
}

// ValidPSHUFBTable reports whether raw can be decoded without panicking.
func ValidPSHUFBTable(raw []uint64) error {
	if len(raw) != 16 && len(raw) != 32 {
		return fmt.Errorf("pshufb table must have 16 or 32 entries, got %d", len(raw))
	}
	for i, m := range raw {
		if m > 0xff {
			return fmt.Errorf("pshufb table entry %d (%#x) is wider than a byte", i, m)
		}
		if m&(1<<7) != 0 {
			continue
		}
		base := 0
		if i >= 16 {
			base = 16
		}
		if base+int(m) >= len(raw) {
			return fmt.Errorf("pshufb table entry %d (%#x) indexes past %d bytes", i, m, len(raw))
		}
	}
	return nil
}
