// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package passes

import (
	"math"
	"testing"

	"github.com/nyxforge/framegraph/linear"
)

func TestAlign256(t *testing.T) {
	cases := []struct {
		n    int64
		want int64
	}{
		{0, 0},
		{1, 256},
		{256, 256},
		{257, 512},
		{128 + 16, 256},
	}
	for _, c := range cases {
		if got := align256(c.n); got != c.want {
			t.Errorf("align256(%d):\nhave %d\nwant %d", c.n, got, c.want)
		}
	}
}

func TestFullViewport(t *testing.T) {
	vp, sc := fullViewport(1920, 1080)
	if len(vp) != 1 || vp[0].Width != 1920 || vp[0].Height != 1080 || vp[0].Zfar != 1 {
		t.Fatalf("fullViewport: viewport:\nhave %+v\nwant {Width:1920 Height:1080 Zfar:1}", vp)
	}
	if len(sc) != 1 || sc[0].Width != 1920 || sc[0].Height != 1080 {
		t.Fatalf("fullViewport: scissor:\nhave %+v\nwant {Width:1920 Height:1080}", sc)
	}
}

func TestWriteFloats(t *testing.T) {
	dst := make([]byte, 12)
	writeFloats(dst, 1.5, -2.25, 0)
	for i, want := range []float32{1.5, -2.25, 0} {
		got := math.Float32frombits(uint32(dst[i*4]) | uint32(dst[i*4+1])<<8 | uint32(dst[i*4+2])<<16 | uint32(dst[i*4+3])<<24)
		if got != want {
			t.Errorf("writeFloats: value %d:\nhave %v\nwant %v", i, got, want)
		}
	}
}

func TestWriteMatrix(t *testing.T) {
	m := linear.M4{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
		{13, 14, 15, 16},
	}
	dst := make([]byte, 64)
	writeMatrix(dst, m)
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			off := c*16 + r*4
			got := math.Float32frombits(uint32(dst[off]) | uint32(dst[off+1])<<8 | uint32(dst[off+2])<<16 | uint32(dst[off+3])<<24)
			if got != m[c][r] {
				t.Errorf("writeMatrix: column %d row %d:\nhave %v\nwant %v", c, r, got, m[c][r])
			}
		}
	}
}
