// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package external defines the interfaces through which the frame
// graph consumes collaborators it deliberately does not own:
// windowing/presentation, the scene being rendered, materials and
// reflection data. The core never imports a concrete windowing or
// asset-loading package; it only imports this package's interfaces.
package external

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/linear"
)

// Extent2D is a window/swapchain extent in pixels.
type Extent2D struct {
	Width, Height int
}

// Swapchain is the presentation surface the frame graph's final pass
// (tone-mapping/UI) targets. A concrete implementation (e.g.
// external/glfwswap) owns the window and the Vulkan swapchain; the core
// only ever sees this interface.
type Swapchain interface {
	// Acquire returns the image view to render into for the next
	// frame, its index (for Present), and the swapchain's current
	// extent. err is non-nil only for unrecoverable acquisition
	// failures (e.g. device lost); an out-of-date swapchain is the
	// caller's cue to call Resize and retry.
	Acquire() (view driver.ImageView, index int, extent Extent2D, err error)

	// Present submits the image at index for display.
	Present(index int) error

	// Recreate rebuilds the presentation surface at its current size,
	// following an Acquire/Present failure that signals the surface
	// went out of date (window resize, compositor change). Subsequent
	// Acquire calls return views of the new surface.
	Recreate() error
}

// DrawItem is one mesh draw: vertex/index buffers, index count, a
// model matrix, and a material index into the scene's MaterialTable.
type DrawItem struct {
	VertexBuf  driver.Buffer
	IndexBuf   driver.Buffer
	IndexCount int
	IndexFmt   driver.IndexFmt
	Model      linear.M4
	MaterialID int
	AlphaTest  bool
}

// DirectionalLight is the single directional light the shadow-map and
// lighting passes consume.
type DirectionalLight struct {
	Direction linear.V3
	Color     linear.V3
	Intensity float32
}

// MaterialTable is the bindless, push-constant-indexed material
// descriptor the G-buffer and lighting passes bind alongside their
// per-frame data, per the original renderer's bindless texture array.
type MaterialTable interface {
	// DescHeap returns the descriptor heap backing the bindless
	// texture array, suitable for appending to a pass's descriptor
	// table via Pass.LoadPipeline.
	DescHeap() driver.DescHeap
}

// ReflectionProbe is the optional extra descriptor set the lighting
// pass appends to its bindings when present. A nil *ReflectionProbe on
// Scene means no probe is active for the current frame.
type ReflectionProbe struct {
	DescHeap driver.DescHeap
}

// Scene is the host-owned description of what to draw this frame.
type Scene struct {
	meshes          []DrawItem
	light           DirectionalLight
	materials       MaterialTable
	reflectionProbe *ReflectionProbe
}

// NewScene builds a Scene snapshot for one frame.
func NewScene(meshes []DrawItem, light DirectionalLight, materials MaterialTable, probe *ReflectionProbe) Scene {
	return Scene{meshes: meshes, light: light, materials: materials, reflectionProbe: probe}
}

// Meshes returns the meshes to draw this frame.
func (s Scene) Meshes() []DrawItem { return s.meshes }

// Light returns the frame's directional light.
func (s Scene) Light() DirectionalLight { return s.light }

// Materials returns the bindless material table, or nil if none is bound.
func (s Scene) Materials() MaterialTable { return s.materials }

// ReflectionProbe returns the active reflection probe, or nil.
func (s Scene) ReflectionProbe() *ReflectionProbe { return s.reflectionProbe }
