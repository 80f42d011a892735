// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package ibl

import (
	"testing"

	"github.com/nyxforge/framegraph/linear"
)

func TestViewCoversAllSixFaces(t *testing.T) {
	seen := make(map[linear4]bool)
	for f := FacePosX; f <= FaceNegZ; f++ {
		m := View(f)
		seen[toKey(m)] = true
	}
	if len(seen) != 6 {
		t.Fatalf("View: distinct matrices across the six faces:\nhave %d\nwant 6", len(seen))
	}
}

func TestViewIsRotationOnly(t *testing.T) {
	for f := FacePosX; f <= FaceNegZ; f++ {
		m := View(f)
		if m[3][0] != 0 || m[3][1] != 0 || m[3][2] != 0 || m[3][3] != 1 {
			t.Fatalf("View(%d): translation column:\nhave %v\nwant [0 0 0 1]", f, m[3])
		}
	}
}

func TestOrthoIsSymmetric(t *testing.T) {
	m := Ortho()
	if m[0][0] != 1 || m[1][1] != 1 {
		t.Fatalf("Ortho: diagonal scale:\nhave %v, %v\nwant 1, 1", m[0][0], m[1][1])
	}
}

// linear4 and toKey give the 4x4 matrix a comparable key for use as a
// map key in the distinctness check above.
type linear4 [16]float32

func toKey(m linear.M4) linear4 {
	var k linear4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			k[c*4+r] = m[c][r]
		}
	}
	return k
}
