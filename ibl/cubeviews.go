// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package ibl

import "github.com/nyxforge/framegraph/linear"

// CubeFace indexes the six faces of a cube map, in the fixed
// +X/-X/+Y/-Y/+Z/-Z order every precompute pass iterates in.
type CubeFace int

const (
	FacePosX CubeFace = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

// cubeViews holds, for each face, the rotation-only view matrix that
// looks from the cube's center toward that face; translation is
// always zero since every precompute pass captures radiance arriving
// at a single point. Columns are right/up/forward/origin, matching
// linear.M4's column-major layout.
var cubeViews = [6]linear.M4{
	FacePosX: {{0, 0, -1, 0}, {0, -1, 0, 0}, {-1, 0, 0, 0}, {0, 0, 0, 1}},
	FaceNegX: {{0, 0, 1, 0}, {0, -1, 0, 0}, {1, 0, 0, 0}, {0, 0, 0, 1}},
	FacePosY: {{1, 0, 0, 0}, {0, 0, 1, 0}, {0, -1, 0, 0}, {0, 0, 0, 1}},
	FaceNegY: {{1, 0, 0, 0}, {0, 0, -1, 0}, {0, 1, 0, 0}, {0, 0, 0, 1}},
	FacePosZ: {{1, 0, 0, 0}, {0, -1, 0, 0}, {0, 0, -1, 0}, {0, 0, 0, 1}},
	FaceNegZ: {{-1, 0, 0, 0}, {0, -1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
}

// View returns the fixed view matrix for f.
func View(f CubeFace) linear.M4 { return cubeViews[f] }

// Ortho returns the symmetric orthographic projection every precompute
// pass pairs with a cube face's view matrix. The fragment shaders
// reconstruct a sample direction from NDC position rather than relying
// on perspective depth, so a unit-cube ortho volume is sufficient.
func Ortho() linear.M4 {
	return linear.M4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, -1, 0},
		{0, 0, 0, 1},
	}
}
