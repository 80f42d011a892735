// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package ibl

import (
	"math"

	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/linear"
)

// bilinearClamp is the sampler state for every IBL texture: linear
// filtering, clamped addressing (cube faces and the equirectangular
// source both have hard edges, not a wrapping tile), no mipmapping
// since every IBL texture used as a sampling source here has a single
// relevant mip at a time.
var bilinearClamp = driver.Sampling{
	Min:    driver.FLinear,
	Mag:    driver.FLinear,
	Mipmap: driver.FNoMipmap,
	AddrU:  driver.AClamp,
	AddrV:  driver.AClamp,
	AddrW:  driver.AClamp,
}

// align256 rounds up to the 256-byte alignment the driver requires
// for constant/buffer descriptor ranges.
func align256(n int64) int64 {
	const a = 256
	return (n + a - 1) / a * a
}

// writeFloat packs v as a little-endian float32 into dst.
func writeFloat(dst []byte, v float32) {
	bits := math.Float32bits(v)
	dst[0] = byte(bits)
	dst[1] = byte(bits >> 8)
	dst[2] = byte(bits >> 16)
	dst[3] = byte(bits >> 24)
}

// writeMatrix packs a column-major 4x4 matrix into dst as raw
// little-endian float32 bytes, matching the std140 layout shaders
// expect for a mat4 uniform.
func writeMatrix(dst []byte, m linear.M4) {
	for c := 0; c < 4; c++ {
		writeFloat(dst[c*16:], m[c][0])
		writeFloat(dst[c*16+4:], m[c][1])
		writeFloat(dst[c*16+8:], m[c][2])
		writeFloat(dst[c*16+12:], m[c][3])
	}
}

// floatsToBytes packs vs as tightly-packed little-endian float32
// values, for uploading raw texture/buffer data.
func floatsToBytes(vs []float32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		writeFloat(out[i*4:], v)
	}
	return out
}
