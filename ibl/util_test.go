// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package ibl

import (
	"math"
	"testing"

	"github.com/nyxforge/framegraph/linear"
)

func TestAlign256(t *testing.T) {
	cases := []struct{ n, want int64 }{
		{0, 0},
		{1, 256},
		{255, 256},
		{256, 256},
		{128 + 16, 256},
	}
	for _, c := range cases {
		if got := align256(c.n); got != c.want {
			t.Errorf("align256(%d):\nhave %d\nwant %d", c.n, got, c.want)
		}
	}
}

func TestWriteFloat(t *testing.T) {
	dst := make([]byte, 4)
	writeFloat(dst, -3.5)
	got := math.Float32frombits(uint32(dst[0]) | uint32(dst[1])<<8 | uint32(dst[2])<<16 | uint32(dst[3])<<24)
	if got != -3.5 {
		t.Fatalf("writeFloat:\nhave %v\nwant -3.5", got)
	}
}

func TestFloatsToBytes(t *testing.T) {
	vs := []float32{1, 0.5, -2}
	b := floatsToBytes(vs)
	if len(b) != 12 {
		t.Fatalf("floatsToBytes: length:\nhave %d\nwant 12", len(b))
	}
	for i, want := range vs {
		got := math.Float32frombits(uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24)
		if got != want {
			t.Errorf("floatsToBytes: value %d:\nhave %v\nwant %v", i, got, want)
		}
	}
}

func TestWriteMatrixColumnMajor(t *testing.T) {
	m := linear.M4{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
		{13, 14, 15, 16},
	}
	dst := make([]byte, 64)
	writeMatrix(dst, m)
	off := 1*16 + 2*4 // column 1, row 2
	got := math.Float32frombits(uint32(dst[off]) | uint32(dst[off+1])<<8 | uint32(dst[off+2])<<16 | uint32(dst[off+3])<<24)
	if got != m[1][2] {
		t.Fatalf("writeMatrix: column 1 row 2:\nhave %v\nwant %v", got, m[1][2])
	}
}
