// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package graph

// FrameGraphNode wraps one registered pass with the bookkeeping Compile
// needs: its declared inputs/outputs and the edges derived from them.
type FrameGraphNode struct {
	Name    string
	Pass    Pass
	Inputs  []PassInputBinding
	Outputs []PassOutputBinding
	Enabled bool

	// edges maps a predecessor node's name to the node itself, built by
	// the edge phase of Compile from each input's lastWriter/producer.
	edges map[string]*FrameGraphNode

	// index is this node's position in registration order, used by the
	// edge phase to detect forward references (a node reading a
	// resource whose producer was registered later).
	index int
}
