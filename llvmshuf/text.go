// Package llvmshuf lowers decoded x86 shuffle masks to LLVM shufflevector
// instructions.
package llvmshuf

import (
	"fmt"
	"strings"

	"github.com/xgo-dev/x86shuf"
)

// ElemType returns the LLVM scalar type name for vt's elements.
func ElemType(vt x86shuf.VT) string {
	if vt.Float {
		switch vt.EltBits {
		case 32:
			return "float"
		case 64:
			return "double"
		}
	}
	return fmt.Sprintf("i%d", vt.EltBits)
}

// VecType returns the LLVM vector type for vt, e.g. "<4 x i32>".
func VecType(vt x86shuf.VT) string {
	return fmt.Sprintf("<%d x %s>", vt.NumElts, ElemType(vt))
}

// Text renders the shufflevector mask operand for m. Zero lanes are undef
// here; Emit clears them with a second shuffle.
func Text(m x86shuf.Mask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%d x i32> <", len(m))
	for i, v := range m.Ints() {
		if i > 0 {
			b.WriteString(", ")
		}
		if v == x86shuf.SentinelZero {
			b.WriteString("i32 undef")
			continue
		}
		fmt.Fprintf(&b, "i32 %d", v)
	}
	b.WriteString(">")
	return b.String()
}

// zeroText renders the mask that keeps every lane of the first operand
// except zero lanes, which read element 0 of a zeroinitializer operand.
func zeroText(m x86shuf.Mask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%d x i32> <", len(m))
	for i, l := range m {
		if i > 0 {
			b.WriteString(", ")
		}
		if l.IsZero() {
			fmt.Fprintf(&b, "i32 %d", len(m))
		} else {
			fmt.Fprintf(&b, "i32 %d", i)
		}
	}
	b.WriteString(">")
	return b.String()
}

// Emit writes the instructions applying m to v1 and v2 (both of type vecTy)
// and returns the SSA name holding the result.
func Emit(b *strings.Builder, newTmp func() string, vecTy, v1, v2 string, m x86shuf.Mask) string {
	sh := newTmp()
	fmt.Fprintf(b, "  %%%s = shufflevector %s %s, %s %s, %s\n", sh, vecTy, v1, vecTy, v2, Text(m))
	if !m.HasZero() {
		return "%" + sh
	}
	z := newTmp()
	fmt.Fprintf(b, "  %%%s = shufflevector %s %%%s, %s zeroinitializer, %s\n", z, vecTy, sh, vecTy, zeroText(m))
	return "%" + z
}

// Function returns a complete IR module text defining
// @name(<N x T> %a, <N x T> %b) that applies m.
func Function(name string, vt x86shuf.VT, m x86shuf.Mask) (string, error) {
	if len(m) != vt.NumElts {
		return "", fmt.Errorf("mask has %d lanes, %s has %d", len(m), vt, vt.NumElts)
	}
	if err := m.Validate(); err != nil {
		return "", err
	}
	ty := VecType(vt)
	n := 0
	newTmp := func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "define %s @%s(%s %%a, %s %%b) {\n", ty, name, ty, ty)
	b.WriteString("entry:\n")
	out := Emit(&b, newTmp, ty, "%a", "%b", m)
	fmt.Fprintf(&b, "  ret %s %s\n", ty, out)
	b.WriteString("}\n")
	return b.String(), nil
}
