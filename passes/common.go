// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package passes implements the concrete render passes that compose a
// full deferred renderer on top of the frame graph core: shadow-map
// cascades, G-buffer, SSAO, skybox, lighting, grid, tone-mapping and
// UI.
package passes

import (
	"math"

	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/linear"
)

// opaqueRaster is the rasterization state shared by every opaque pass:
// back-face culling, clockwise front face, solid fill.
var opaqueRaster = driver.RasterState{
	Clockwise: true,
	Cull:      driver.CBack,
	Fill:      driver.FFill,
}

// depthLessWrite is the depth/stencil state for passes that test and write
// depth with the standard less-than convention.
var depthLessWrite = driver.DSState{
	DepthTest:  true,
	DepthWrite: true,
	DepthCmp:   driver.CLess,
}

// depthLessNoWrite is for passes that test against an existing depth
// buffer without modifying it (grid, lighting load-store passes).
var depthLessNoWrite = driver.DSState{
	DepthTest:  true,
	DepthWrite: false,
	DepthCmp:   driver.CLessEqual,
}

// noBlend is the default, single-target opaque blend state.
var noBlend = driver.BlendState{
	Color: []driver.ColorBlend{{WriteMask: driver.CAll}},
}

// alphaBlend is a standard source-over blend state, used by the grid
// pass's transparent draw.
var alphaBlend = driver.BlendState{
	Color: []driver.ColorBlend{{
		Blend:     true,
		WriteMask: driver.CAll,
		Op:        [2]driver.BlendOp{driver.BAdd, driver.BAdd},
		SrcFac:    [2]driver.BlendFac{driver.BSrcAlpha, driver.BOne},
		DstFac:    [2]driver.BlendFac{driver.BInvSrcAlpha, driver.BZero},
	}},
}

// linearClampSampling is the sampler state shared by every pass that
// samples a full-screen render target (G-buffer, SSAO, shadow map
// aside, which uses its own compare-enabled sampler).
var linearClampSampling = driver.Sampling{
	Min:    driver.FLinear,
	Mag:    driver.FLinear,
	Mipmap: driver.FNoMipmap,
	AddrU:  driver.AClamp,
	AddrV:  driver.AClamp,
	AddrW:  driver.AClamp,
	MaxLOD: 0,
}

// shadowSampling is the shadow-map sampler: compare-enabled for
// hardware PCF, clamped so cascade edges sample the border rather than
// wrapping.
var shadowSampling = driver.Sampling{
	Min:    driver.FLinear,
	Mag:    driver.FLinear,
	Mipmap: driver.FNoMipmap,
	AddrU:  driver.AClamp,
	AddrV:  driver.AClamp,
	AddrW:  driver.AClamp,
	Cmp:    driver.CLess,
}

// fullViewport returns the single viewport/scissor pair covering a
// width×height target, set once per pass before BeginPass.
func fullViewport(width, height int) ([]driver.Viewport, []driver.Scissor) {
	return []driver.Viewport{{Width: float32(width), Height: float32(height), Zfar: 1}},
		[]driver.Scissor{{Width: width, Height: height}}
}

// align256 rounds up to the 256-byte alignment the driver requires
// for constant/buffer descriptor ranges.
func align256(n int64) int64 {
	const a = 256
	return (n + a - 1) / a * a
}

// writeFloats packs vs as little-endian float32 values into dst.
func writeFloats(dst []byte, vs ...float32) {
	for i, v := range vs {
		bits := math.Float32bits(v)
		o := i * 4
		dst[o] = byte(bits)
		dst[o+1] = byte(bits >> 8)
		dst[o+2] = byte(bits >> 16)
		dst[o+3] = byte(bits >> 24)
	}
}

// writeMatrix packs a column-major 4x4 matrix into dst as raw
// little-endian float32 bytes, matching the std140 layout shaders
// expect for a mat4 uniform.
func writeMatrix(dst []byte, m linear.M4) {
	for c := 0; c < 4; c++ {
		writeFloats(dst[c*16:], m[c][0], m[c][1], m[c][2], m[c][3])
	}
}
