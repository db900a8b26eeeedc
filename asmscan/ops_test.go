package asmscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xgo-dev/x86shuf"
)

func TestLookup(t *testing.T) {
	info, ok := Lookup("pshufl")
	require.True(t, ok)
	assert.Equal(t, KindPSHUF, info.Kind)
	assert.Equal(t, x86shuf.V4I32, info.Shape(128))
	assert.Equal(t, x86shuf.V8I32, info.Shape(256))

	info, ok = Lookup("vshufpd")
	require.True(t, ok)
	assert.True(t, info.VEX)
	assert.Equal(t, x86shuf.V4F64, info.Shape(256))

	info, ok = Lookup("PSHUFW")
	require.True(t, ok)
	assert.Equal(t, x86shuf.V4I16, info.Shape(64))

	info, ok = Lookup("VPERM2F128")
	require.True(t, ok)
	assert.Equal(t, x86shuf.V4F64, info.Shape(128))

	_, ok = Lookup("MOVQ")
	assert.False(t, ok)
}

func TestOpsSorted(t *testing.T) {
	names := Ops()
	require.NotEmpty(t, names)
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "VPBLENDD")
	assert.Contains(t, names, "VPSHUFB")
	assert.NotContains(t, names, "VVPBLENDD")
}

func TestKind(t *testing.T) {
	assert.Equal(t, "vperm2x128", KindVPERM2X128.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
	assert.False(t, KindUNPCKL.HasImm())
	assert.False(t, KindPSHUFB.HasImm())
	assert.True(t, KindINSERTPS.HasImm())
}

func TestDecode(t *testing.T) {
	m, err := Decode("shufpd", x86shuf.V2F64, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, m.Ints())

	m, err = Decode("VPERMQ", x86shuf.V4I64, 0x1b, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1, 0}, m.Ints())

	m, err = Decode("INSERTPS", x86shuf.V4F32, 0x01, nil)
	require.NoError(t, err)
	assert.Equal(t, "<Z,1,2,3>", m.String())

	_, err = Decode("VPERM2I128", x86shuf.V4I64, 0x80, nil)
	assert.ErrorIs(t, err, ErrNotShuffle)

	_, err = Decode("MOVQ", x86shuf.V2I64, 0, nil)
	assert.ErrorIs(t, err, ErrUnknownOp)

	_, err = Decode("PSHUFB", x86shuf.V16I8, 0, nil)
	assert.ErrorIs(t, err, ErrNoTable)

	_, err = Decode("PSHUFHW", x86shuf.V4I32, 0, nil)
	assert.ErrorContains(t, err, "needs 8 or 16 words")
}

func TestDecodePBLENDWOnYMM(t *testing.T) {
	m, err := Decode("VPBLENDW", x86shuf.V16I16, 0x01, nil)
	require.NoError(t, err)
	want := []int{16, 1, 2, 3, 4, 5, 6, 7, 24, 9, 10, 11, 12, 13, 14, 15}
	assert.Equal(t, want, m.Ints())

	m, err = Decode("PBLENDW", x86shuf.V8I16, 0x80, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 15}, m.Ints())
}

func TestDecodePSHUFBTable(t *testing.T) {
	table := make([]uint64, 16)
	for i := range table {
		table[i] = uint64(15 - i)
	}
	table[3] = 0x80
	m, err := Decode("pshufb", x86shuf.V16I8, 0, table)
	require.NoError(t, err)
	assert.Equal(t, []int{15, 14, 13, -1, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, m.Ints())

	table[0] = 0x1ff
	_, err = Decode("pshufb", x86shuf.V16I8, 0, table)
	assert.ErrorContains(t, err, "wider than a byte")
}
