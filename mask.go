package x86shuf

import (
	"errors"
	"fmt"
	"strings"
)

// SentinelZero is the flat-encoding value of a lane forced to zero.
const SentinelZero = -1

// Source names where a mask lane takes its value from.
type Source uint8

const (
	Zero Source = iota
	Src1
	Src2
)

func (s Source) String() string {
	switch s {
	case Zero:
		return "zero"
	case Src1:
		return "src1"
	case Src2:
		return "src2"
	default:
		return fmt.Sprintf("Source(%d)", uint8(s))
	}
}

// Lane is one output lane of a shuffle. Index is relative to Source and is
// meaningless for Zero lanes.
type Lane struct {
	Source Source
	Index  int
}

// IsZero reports whether the lane is forced to zero.
func (l Lane) IsZero() bool { return l.Source == Zero }

// Mask is a decoded shuffle: one Lane per destination element, lane 0 first.
// Both logical sources have len(m) elements.
type Mask []Lane

// ErrMaskRange is returned by Validate for out-of-range lanes.
var ErrMaskRange = errors.New("shuffle index out of range")

// MaskFromInts converts the flat encoding: i < n reads source 1, n <= i < 2n
// reads source 2 and SentinelZero zeroes the lane.
func MaskFromInts(ints []int) (Mask, error) {
	n := len(ints)
	m := make(Mask, n)
	for i, v := range ints {
		switch {
		case v == SentinelZero:
			m[i] = Lane{Source: Zero}
		case v >= 0 && v < n:
			m[i] = Lane{Source: Src1, Index: v}
		case v >= n && v < 2*n:
			m[i] = Lane{Source: Src2, Index: v - n}
		default:
			return nil, fmt.Errorf("lane %d: %w: %d not in [0, %d)", i, ErrMaskRange, v, 2*n)
		}
	}
	return m, nil
}

// fromInts is MaskFromInts for indices the decoders produced themselves.
func fromInts(ints []int) Mask {
	m, err := MaskFromInts(ints)
	if err != nil {
		panic("x86shuf: " + err.Error())
	}
	return m
}

// Ints returns the flat encoding of m.
func (m Mask) Ints() []int {
	out := make([]int, len(m))
	for i, l := range m {
		switch l.Source {
		case Src1:
			out[i] = l.Index
		case Src2:
			out[i] = len(m) + l.Index
		default:
			out[i] = SentinelZero
		}
	}
	return out
}

// HasZero reports whether any lane is forced to zero.
func (m Mask) HasZero() bool {
	for _, l := range m {
		if l.IsZero() {
			return true
		}
	}
	return false
}

// Validate checks that every non-zero lane indexes inside its source.
func (m Mask) Validate() error {
	for i, l := range m {
		switch l.Source {
		case Zero:
		case Src1, Src2:
			if l.Index < 0 || l.Index >= len(m) {
				return fmt.Errorf("lane %d: %w: %s[%d] with %d lanes", i, ErrMaskRange, l.Source, l.Index, len(m))
			}
		default:
			return fmt.Errorf("lane %d: invalid source %s", i, l.Source)
		}
	}
	return nil
}

// String renders m in flat form, e.g. "<6,7,2,3>", with Z for zero lanes.
func (m Mask) String() string {
	var b strings.Builder
	b.WriteString("<")
	for i, v := range m.Ints() {
		if i > 0 {
			b.WriteString(",")
		}
		if v == SentinelZero {
			b.WriteString("Z")
			continue
		}
		fmt.Fprintf(&b, "%d", v)
	}
	b.WriteString(">")
	return b.String()
}
