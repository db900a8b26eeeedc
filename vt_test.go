package x86shuf

import "testing"

func TestParseVT(t *testing.T) {
	tests := []struct {
		in   string
		want VT
	}{
		{"v16i8", V16I8},
		{"V8I32", V8I32},
		{"v4f64", V4F64},
		{" v4i16 ", V4I16},
		{"v2f64", V2F64},
		{"v2i32", V2I32},
	}
	for _, tt := range tests {
		got, err := ParseVT(tt.in)
		if err != nil {
			t.Fatalf("ParseVT(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseVT(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if got.String() != tt.want.String() {
			t.Fatalf("String() = %q", got.String())
		}
	}
}

func TestParseVTErrors(t *testing.T) {
	for _, in := range []string{"", "x4i32", "v4", "vi32", "v4i", "v3i32", "v4f16", "v4i12", "v16i32", "v1i64", "v1f64"} {
		if _, err := ParseVT(in); err == nil {
			t.Fatalf("ParseVT(%q) succeeded", in)
		}
	}
}

func TestLaneGeometry(t *testing.T) {
	tests := []struct {
		vt                          VT
		numElts, numLanes, laneElts int
	}{
		{V8I8, 8, 1, 8},
		{V4I16, 4, 1, 4},
		{V16I8, 16, 1, 16},
		{V4I32, 4, 1, 4},
		{V32I8, 32, 2, 16},
		{V8F32, 8, 2, 4},
		{V4I64, 4, 2, 2},
	}
	for _, tt := range tests {
		n, l, e := laneGeometry(tt.vt)
		if n != tt.numElts || l != tt.numLanes || e != tt.laneElts {
			t.Fatalf("%s: got (%d, %d, %d), want (%d, %d, %d)", tt.vt, n, l, e, tt.numElts, tt.numLanes, tt.laneElts)
		}
	}
}
