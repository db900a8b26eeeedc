package asmscan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xgo-dev/x86shuf"
)

const sampleAsm = `#include "textflag.h"

#define REV 0x1b
#define ROTATE(x, y) PALIGNR $4, x, y

DATA swap32<>+0x00(SB)/8, $0x0405060700010203
DATA swap32<>+0x08(SB)/8, $0x0c0d0e0f08090a0b
GLOBL swap32<>(SB), RODATA, $16

// func f()
TEXT ·f(SB), NOSPLIT, $0
	PSHUFD $REV, X1, X2
	PSHUFB swap32<>(SB), X3
	SHUFPS $0x44, X4, X5
	ROTATE(X6, X7)
	VPERM2I128 $0x08, Y1, Y2, Y3
	VPBLENDD $0x0f, Y1, Y2, Y3
loop: PUNPCKLBW X0, X1
	/* block
	   comment */ MOVHLPS X1, X2
	PSHUFB X9, X8
	RET
`

func lineOf(t *testing.T, src, substr string) int {
	t.Helper()
	for i, ln := range strings.Split(src, "\n") {
		if strings.Contains(ln, substr) {
			return i + 1
		}
	}
	t.Fatalf("%q not found", substr)
	return 0
}

func TestScan(t *testing.T) {
	rep, err := Scan(sampleAsm)
	require.NoError(t, err)
	require.Len(t, rep.Sites, 9)

	type want struct {
		op   string
		at   string
		vt   x86shuf.VT
		mask string
		src1 string
		src2 string
	}
	wants := []want{
		{"PSHUFD", "PSHUFD $REV", x86shuf.V4I32, "<3,2,1,0>", "X1", ""},
		{"PSHUFB", "PSHUFB swap32", x86shuf.V16I8, "<3,2,1,0,7,6,5,4,11,10,9,8,15,14,13,12>", "X3", ""},
		{"SHUFPS", "SHUFPS", x86shuf.V4F32, "<0,1,4,5>", "X5", "X4"},
		{"PALIGNR", "ROTATE(X6", x86shuf.V16I8, "<4,5,6,7,8,9,10,11,12,13,14,15,16,17,18,19>", "X6", "X7"},
	}
	for i, w := range wants {
		s := rep.Sites[i]
		require.NoError(t, s.Err, "site %d", i)
		assert.Equal(t, w.op, s.Op)
		assert.Equal(t, lineOf(t, sampleAsm, w.at), s.Line, w.op)
		assert.Equal(t, w.vt, s.VT, w.op)
		assert.Equal(t, w.mask, s.Mask.String(), w.op)
		assert.Equal(t, w.src1, s.Src1, w.op)
		assert.Equal(t, w.src2, s.Src2, w.op)
	}

	perm := rep.Sites[4]
	assert.Equal(t, "VPERM2I128", perm.Op)
	assert.ErrorIs(t, perm.Err, ErrNotShuffle)
	assert.Empty(t, perm.Mask)

	blend := rep.Sites[5]
	require.NoError(t, blend.Err)
	assert.Equal(t, x86shuf.V8I32, blend.VT)
	assert.Equal(t, "<8,9,10,11,4,5,6,7>", blend.Mask.String())
	assert.Equal(t, "Y2", blend.Src1)
	assert.Equal(t, "Y1", blend.Src2)

	unpck := rep.Sites[6]
	require.NoError(t, unpck.Err)
	assert.Equal(t, lineOf(t, sampleAsm, "loop:"), unpck.Line)
	assert.Equal(t, "<0,16,1,17,2,18,3,19,4,20,5,21,6,22,7,23>", unpck.Mask.String())

	movhl := rep.Sites[7]
	require.NoError(t, movhl.Err)
	assert.Equal(t, lineOf(t, sampleAsm, "MOVHLPS"), movhl.Line)
	assert.Equal(t, "<6,7,2,3>", movhl.Mask.String())

	assert.ErrorIs(t, rep.Sites[8].Err, ErrNoTable)

	assert.Len(t, rep.Decoded(), 7)
	assert.Len(t, rep.Failed(), 2)
	counts := rep.OpCounts()
	require.Len(t, counts, 7)
	assert.Equal(t, OpCount{Op: "MOVHLPS", Count: 1}, counts[0])
}

func TestScanOperandErrors(t *testing.T) {
	src := strings.Join([]string{
		"PSHUFD X1, X2",
		"SHUFPS $1, X1",
		"VPSHUFD $0x1b, Z1, Z2",
		"PSHUFB missing<>(SB), X0",
		"VPSHUFHW $0x1b, Y1, Y2",
		"MOVQ $1, AX",
	}, "\n")
	rep, err := Scan(src)
	require.NoError(t, err)
	require.Len(t, rep.Sites, 5)
	assert.ErrorIs(t, rep.Sites[0].Err, ErrNoImmediate)
	assert.ErrorContains(t, rep.Sites[1].Err, "expects 2 register operands")
	assert.ErrorContains(t, rep.Sites[2].Err, "512-bit")
	assert.ErrorIs(t, rep.Sites[3].Err, ErrNoTable)
	require.NoError(t, rep.Sites[4].Err)
	assert.Equal(t, x86shuf.V16I16, rep.Sites[4].VT)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 6, 5, 4, 8, 9, 10, 11, 15, 14, 13, 12}, rep.Sites[4].Mask.Ints())
}

func TestScanPSHUFB256FromData(t *testing.T) {
	var b strings.Builder
	for off := 0; off < 32; off += 8 {
		fmt.Fprintf(&b, "DATA tbl<>+%d(SB)/8, $0x8000000000000000\n", off)
	}
	b.WriteString("VPSHUFB tbl<>(SB), Y1, Y2\n")
	rep, err := Scan(b.String())
	require.NoError(t, err)
	require.Len(t, rep.Sites, 1)
	s := rep.Sites[0]
	require.NoError(t, s.Err)
	assert.Equal(t, x86shuf.V32I8, s.VT)
	assert.Equal(t, "Y1", s.Src1)
	ints := s.Mask.Ints()
	for i, v := range ints {
		if i%8 == 7 {
			assert.Equal(t, x86shuf.SentinelZero, v, "byte %d", i)
		} else {
			assert.Equal(t, i/16*16, v, "byte %d", i)
		}
	}
}

func TestScanRejectsOutOfRangeTable(t *testing.T) {
	src := "DATA bad<>+0(SB)/8, $0x10\nDATA bad<>+8(SB)/8, $0\nPSHUFB bad<>(SB), X0\n"
	rep, err := Scan(src)
	require.NoError(t, err)
	require.Len(t, rep.Sites, 1)
	assert.ErrorContains(t, rep.Sites[0].Err, "indexes past 16 bytes")
}

func TestEvalImm(t *testing.T) {
	for in, want := range map[string]uint64{
		"$0x1b":       0x1b,
		"$27":         27,
		"$(1<<4 | 2)": 18,
		"$-1":         ^uint64(0),
	} {
		got, err := evalImm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := evalImm("$foo")
	assert.Error(t, err)
	_, err = evalImm("$1.5")
	assert.Error(t, err)
}

func TestScanTruncatesImmediates(t *testing.T) {
	rep, err := Scan("PALIGNR $-1, X1, X2\nPSHUFD $0x11b, X1, X2\n")
	require.NoError(t, err)
	require.Len(t, rep.Sites, 2)

	align := rep.Sites[0]
	require.NoError(t, align.Err)
	assert.Equal(t, uint(0xff), align.Imm)
	assert.Equal(t, strings.Repeat("Z,", 15)+"Z", strings.Trim(align.Mask.String(), "<>"))

	shuf := rep.Sites[1]
	require.NoError(t, shuf.Err)
	assert.Equal(t, uint(0x1b), shuf.Imm)
	assert.Equal(t, "<3,2,1,0>", shuf.Mask.String())
}

func TestScanRejectsSingleElementShapes(t *testing.T) {
	rep, err := Scan("PUNPCKLQDQ M0, M1\nPUNPCKLLQ M0, M1\n")
	require.NoError(t, err)
	require.Len(t, rep.Sites, 2)
	assert.ErrorContains(t, rep.Sites[0].Err, "single element")
	require.NoError(t, rep.Sites[1].Err)
	assert.Equal(t, x86shuf.V2I32, rep.Sites[1].VT)
	assert.Equal(t, []int{0, 2}, rep.Sites[1].Mask.Ints())
}

func TestScanReportsMalformedData(t *testing.T) {
	src := "DATA tbl<>+0(SB)/8, $0\nDATA tbl<>+8(SB)/8, $(1<<)\nPSHUFB tbl<>(SB), X0\n"
	rep, err := Scan(src)
	require.NoError(t, err)
	require.Len(t, rep.Sites, 1)
	assert.ErrorIs(t, rep.Sites[0].Err, ErrNoTable)
	assert.ErrorContains(t, rep.Sites[0].Err, "DATA tbl<>+8(SB)/8")
	assert.NotContains(t, rep.Sites[0].Err.Error(), "not initialised")
}
