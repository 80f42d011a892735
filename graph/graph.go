// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/internal/obslog"
	"github.com/nyxforge/framegraph/registry"
)

// FrameGraph owns pass registration, resource bookkeeping and the
// compiled execution order. Registration order is taken to already be
// a valid topological order: a pass must be added after every pass
// that produces a resource it reads. Compile verifies this rather than
// reordering around it.
type FrameGraph struct {
	device   *gpu.Device
	registry *registry.Registry

	nodes     []*FrameGraphNode
	byName    map[string]*FrameGraphNode
	resources map[string]*LogicalResource

	// externals holds resources declared through AddExternalResource.
	// Unlike resources, this map survives Compile (and the recompile a
	// Resize triggers): it is the one persistent record of a resource
	// whose physical backing outlives any single compilation, and
	// Compile reseeds resources from it before running Setup.
	externals map[string]*LogicalResource

	// setupNode is the node currently inside its Setup call; the
	// Create/Write/Read Resource helpers attribute their effects to it.
	setupNode *FrameGraphNode

	compiled bool
	order    []*FrameGraphNode
}

// New returns an empty frame graph backed by d, creating its own
// resource registry.
func New(d *gpu.Device) *FrameGraph {
	return &FrameGraph{
		device:    d,
		registry:  registry.New(d),
		byName:    make(map[string]*FrameGraphNode),
		resources: make(map[string]*LogicalResource),
		externals: make(map[string]*LogicalResource),
	}
}

// Registry exposes the graph's resource registry to callers that need
// to seed external resources (e.g. the swapchain's back buffer) before
// Compile.
func (g *FrameGraph) Registry() *registry.Registry { return g.registry }

// Device returns the device wrapper this graph was built on.
func (g *FrameGraph) Device() *gpu.Device { return g.device }

// AddPass registers p under name, in call order. Registration order
// must place every pass after the passes that produce what it reads;
// Compile fails with a CompileError if that invariant is violated.
func (g *FrameGraph) AddPass(name string, p Pass) *FrameGraphNode {
	n := &FrameGraphNode{Name: name, Pass: p, Enabled: true, index: len(g.nodes)}
	g.nodes = append(g.nodes, n)
	g.byName[name] = n
	if nb, ok := p.(nodeBinder); ok {
		nb.bindNode(n)
	}
	return n
}

// CreateResource declares a new physical texture resource and a new
// logical resource for it. If name is already bound in the registry
// (re-declaring the same output across a Recompile), the registry
// destroys the old physical texture and binds the new one. Must be
// called only from within a pass's Setup.
func (g *FrameGraph) CreateResource(name string, kind registry.Kind, desc gpu.TextureDesc) (*LogicalResource, error) {
	if _, err := g.registry.CreateTexture(name, kind, desc); err != nil {
		return nil, err
	}
	lr := &LogicalResource{Name: name, Kind: kind, Desc: desc}
	g.resources[name] = lr
	return lr, nil
}

// AddExternalResource declares a graph-level logical resource for a
// name whose physical backing is caller-owned: it must already be
// registered with Registry().AddExternalResource before Compile runs
// (camera_buffer, lights_buffer, the IBL environment textures, the
// swapchain back buffer). Unlike CreateResource, the declaration is
// kept in a side table and survives every Compile,
// including the recompile Resize triggers, so the resource's identity
// is stable across resizes and its producer's Setup can run before or
// after the passes that read it: the edge phase never demands a
// producer for an external resource.
func (g *FrameGraph) AddExternalResource(name string, kind registry.Kind) *LogicalResource {
	lr := &LogicalResource{Name: name, Kind: kind, external: true}
	g.externals[name] = lr
	g.resources[name] = lr
	return lr
}

// WriteResource records that the pass currently in Setup writes lr,
// with the given load/store behavior, and becomes lr's most recent
// writer for edge derivation.
func (g *FrameGraph) WriteResource(lr *LogicalResource, load driver.LoadOp, store driver.StoreOp) {
	n := g.setupNode
	if lr.producer == nil {
		lr.producer = n
	}
	lr.lastWriter = n
	n.Outputs = append(n.Outputs, PassOutputBinding{Resource: lr, Load: load, Store: store})
}

// ReadResource records that the pass currently in Setup reads lr.
func (g *FrameGraph) ReadResource(lr *LogicalResource) {
	n := g.setupNode
	lr.refCount++
	n.Inputs = append(n.Inputs, PassInputBinding{Resource: lr})
}

// GetResource looks up an already-declared logical resource by name,
// for passes that read a resource another pass produced earlier.
func (g *FrameGraph) GetResource(name string) (*LogicalResource, bool) {
	lr, ok := g.resources[name]
	return lr, ok
}

// Compile runs the three phases: Setup (invoke every enabled pass's
// Setup, in registration order, recording resource reads/writes),
// Edge (derive each node's predecessor set from its inputs' producers,
// failing on forward references), and Materialize (invoke Init on
// every enabled node, in registration order).
func (g *FrameGraph) Compile() error {
	g.resources = make(map[string]*LogicalResource, len(g.externals))
	for name, lr := range g.externals {
		lr.refCount = 0
		g.resources[name] = lr
	}

	// Setup phase.
	for _, n := range g.nodes {
		if !n.Enabled {
			continue
		}
		n.Inputs = nil
		n.Outputs = nil
		g.setupNode = n
		n.Pass.Setup(g)
	}
	g.setupNode = nil

	// Edge phase.
	for _, n := range g.nodes {
		if !n.Enabled {
			continue
		}
		n.edges = make(map[string]*FrameGraphNode)
		for _, in := range n.Inputs {
			lr := in.Resource
			if lr.external {
				// Caller-owned; no node produces it, so there is no
				// registration-order requirement to check either.
				continue
			}
			writer := lr.lastWriter
			if writer == nil {
				writer = lr.producer
			}
			if writer == nil {
				return &CompileError{Pass: n.Name, Resource: lr.Name, Reason: "no producer"}
			}
			if writer.index >= n.index {
				return &CompileError{Pass: n.Name, Resource: lr.Name, Reason: "producer registered after reader"}
			}
			n.edges[writer.Name] = writer
		}
	}

	for name, lr := range g.resources {
		if lr.refCount == 0 {
			obslog.L.Debug("resource declared but never read", "resource", name)
		}
	}

	// Materialize phase.
	for _, n := range g.nodes {
		if !n.Enabled {
			continue
		}
		if err := n.Pass.Init(); err != nil {
			return err
		}
	}

	g.order = g.nodes
	g.compiled = true
	return nil
}

// Execute records every enabled pass's commands, in compiled order.
func (g *FrameGraph) Execute(cb driver.CmdBuffer, scene external.Scene) {
	for _, n := range g.order {
		if !n.Enabled {
			continue
		}
		n.Pass.Record(cb, scene)
	}
}

// Resize tears down every pass and the registry's physical resources,
// then recompiles against the new extent. Callers must have waited
// for the device to go idle before calling this (ImmediateSubmit's
// QueueWaitIdle is not a substitute for draining in-flight frames on
// the presentation queue).
func (g *FrameGraph) Resize(width, height int) error {
	for _, n := range g.nodes {
		n.Pass.Reset()
		n.Pass.Resize(width, height)
	}
	g.registry.Cleanup()
	return g.Compile()
}

// PreRender is a reserved hook point for one-time-per-frame host work
// that must happen before Execute records any pass. No pass in this
// tree uses it: per-frame uploads a pass owns (e.g. ShadowPass's
// cascade matrices) are instead written directly in that pass's own
// Record, immediately before the draws that consume them. The frame
// graph core never calls PreRender itself; it exists for callers that
// need a single early hook shared across every pass rather than one
// pass's own Record, and is a no-op until one does.
func (g *FrameGraph) PreRender(cb driver.CmdBuffer, scene external.Scene) {}
