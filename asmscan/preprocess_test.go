package asmscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, ln := range lines {
		out[i] = ln.Text
	}
	return out
}

func TestPreprocessComments(t *testing.T) {
	src := "PSHUFD $1, X0, X1 // trailing\n" +
		"/* one line */ MOVHLPS X1, X2\n" +
		"/* open\n" +
		"   still open */ UNPCKLPS X3, X4 /* and\n" +
		"closed */\n"
	lines, err := Preprocess(src)
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{No: 1, Text: "PSHUFD $1, X0, X1"},
		{No: 2, Text: "MOVHLPS X1, X2"},
		{No: 4, Text: "UNPCKLPS X3, X4"},
	}, lines)
}

func TestPreprocessDefines(t *testing.T) {
	src := `#define IMM 0x1b
#define HI 2
#define SHUF(a, b) \
	PSHUFD $IMM, a, b \
	PSHUFHW $(HI<<2), b, b
SHUF(X0, X1)
SHUFPS $IMM, X2, X3; SHUF(X4, X5)
#undef IMM
PSHUFD $IMM, X6, X7
`
	lines, err := Preprocess(src)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"PSHUFD $0x1b, X0, X1",
		"PSHUFHW $(2<<2), X1, X1",
		"SHUFPS $0x1b, X2, X3; PSHUFD $0x1b, X4, X5; PSHUFHW $(2<<2), X5, X5",
		"PSHUFD $IMM, X6, X7",
	}, texts(lines))
	assert.Equal(t, 6, lines[0].No)
	assert.Equal(t, 6, lines[1].No)
	assert.Equal(t, 7, lines[2].No)
	assert.Equal(t, 9, lines[3].No)
}

func TestPreprocessConditionals(t *testing.T) {
	src := `#define HAVE_AVX2
#ifdef HAVE_AVX2
VPSHUFD $1, Y0, Y1
#else
PSHUFD $1, X0, X1
#endif
#ifndef HAVE_AVX2
#ifdef HAVE_AVX2
MOVHLPS X0, X1
#endif
#else
VPERMQ $0x4e, Y2, Y3
#endif
`
	lines, err := Preprocess(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"VPSHUFD $1, Y0, Y1", "VPERMQ $0x4e, Y2, Y3"}, texts(lines))
}

func TestPreprocessErrors(t *testing.T) {
	for _, src := range []string{
		"#ifdef X\nRET\n",
		"#endif\n",
		"#else\n",
		"#ifdef X\n#else\n#else\n#endif\n",
		"#ifdef\n",
		"#define 1X 2\n",
	} {
		_, err := Preprocess(src)
		assert.Error(t, err, "%q", src)
	}
}

func TestSplitArgs(t *testing.T) {
	assert.Nil(t, splitArgs("  "))
	assert.Equal(t, []string{"$(1, 2)", "tbl<>+16(SB)", "X0"}, splitArgs("$(1, 2), tbl<>+16(SB), X0"))
}
