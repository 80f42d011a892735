// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package graph implements the frame graph: pass registration, the
// three-phase Compile (Setup/Edge/Materialize), per-frame Execute, and
// Resize.
package graph

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/registry"
)

// LogicalResource is a frame-graph-level view of a named resource: its
// registry entry plus the graph-topology bookkeeping Compile needs.
type LogicalResource struct {
	Name    string
	Kind    registry.Kind
	Desc    any // *gpu.TextureDesc or *gpu.BufferDesc, as created

	// producer is the node whose Setup first wrote this resource.
	producer *FrameGraphNode
	// lastWriter is the most recent node to write this resource,
	// consulted by the edge phase in preference to producer.
	lastWriter *FrameGraphNode
	// refCount counts ReadResource calls; a resource with refCount 0
	// after Setup is declared but never consumed; Compile logs it at
	// debug level rather than treating it as an error. It is not
	// elided: its physical texture is still created and its producer
	// still runs.
	refCount int

	// external marks a resource declared via AddExternalResource: its
	// physical backing is owned by the caller (camera/lights UBOs, the
	// IBL environment textures, the swapchain back buffer), not by any
	// pass's Setup, so the edge phase must not demand a producer for it.
	external bool
}

// PassOutputBinding records one resource a pass writes, along with the
// load/store behavior Init should bake into the derived render pass.
type PassOutputBinding struct {
	Resource *LogicalResource
	Load     driver.LoadOp
	Store    driver.StoreOp
}

// PassInputBinding records one resource a pass reads.
type PassInputBinding struct {
	Resource *LogicalResource
}
