// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/registry"
)

// Pass is the polymorphic contract every concrete pass implements,
// replacing the inheritance hierarchy a direct port would otherwise
// need: a single interface, with PassBase supplying the derivation
// logic shared by every implementation.
type Pass interface {
	// Setup is the only place a pass may call g.CreateResource,
	// g.WriteResource or g.ReadResource. It must not issue GPU
	// commands.
	Setup(g *FrameGraph)

	// Init derives the pass's render pass, descriptor-set layout,
	// descriptor set, framebuffer(s) and pipeline from the bindings
	// Setup declared.
	Init() error

	// Record is pure command recording.
	Record(cb driver.CmdBuffer, scene external.Scene)

	// Reset destroys every GPU object Init created. It must be
	// idempotent.
	Reset()

	// Resize stores the new extent. It does not touch framebuffers:
	// FrameGraph.Resize calls Reset before it, and the Compile that
	// follows rebuilds the framebuffers in Init at the stored extent.
	Resize(width, height int)
}

// PassBase implements the render-pass/pipeline derivation rules shared
// by every concrete pass. Concrete passes embed it and call its
// Derive* helpers from their own Init, after declaring LoadPipeline's
// shader paths and fixed state.
type PassBase struct {
	Name     string
	Device   *gpu.Device
	Registry *registry.Registry
	Node     *FrameGraphNode
	Width    int
	Height   int

	RenderPassHandle gpu.RenderPassHandle
	RenderPass       driver.RenderPass
	FramebufHandles  []gpu.FramebufferHandle
	Framebufs        []driver.Framebuf
	DescHeap         driver.DescHeap
	DescTable        driver.DescTable
	PipelineHandle   gpu.PipelineHandle
	Pipeline         driver.Pipeline
}

// NewPassBase constructs the shared state every concrete pass embeds.
func NewPassBase(name string, d *gpu.Device, r *registry.Registry, width, height int) PassBase {
	return PassBase{Name: name, Device: d, Registry: r, Width: width, Height: height}
}

// nodeBinder is implemented by *PassBase through embedding. AddPass uses
// it to hand every concrete pass a back-reference to its own node, since
// PassBase itself never sees the FrameGraphNode that wraps it.
type nodeBinder interface {
	bindNode(n *FrameGraphNode)
}

// bindNode implements nodeBinder.
func (b *PassBase) bindNode(n *FrameGraphNode) { b.Node = n }

// CreateRenderPass creates the pass's render pass from desc, caching
// both the handle (for Destroy) and the resolved driver.RenderPass
// (for BeginPass).
func (b *PassBase) CreateRenderPass(desc gpu.RenderPassDesc) error {
	h, err := b.Device.CreateRenderPass(desc)
	if err != nil {
		return err
	}
	rp, err := b.Device.GetRenderPass(h)
	if err != nil {
		return err
	}
	b.RenderPassHandle = h
	b.RenderPass = rp.Handle
	return nil
}

// CreateFramebuffer creates one framebuffer against the pass's render
// pass and appends it to Framebufs/FramebufHandles.
func (b *PassBase) CreateFramebuffer(attachments []driver.ImageView) error {
	h, err := b.Device.CreateFramebuffer(gpu.FramebufferDesc{
		Pass: b.RenderPassHandle, Width: b.Width, Height: b.Height, Attachments: attachments,
	})
	if err != nil {
		return err
	}
	fb, err := b.Device.GetFramebuffer(h)
	if err != nil {
		return err
	}
	b.FramebufHandles = append(b.FramebufHandles, h)
	b.Framebufs = append(b.Framebufs, fb.Handle)
	return nil
}

// CreatePipeline creates the pass's pipeline from desc (with Pass set
// to b.RenderPassHandle by the caller), caching the resolved
// driver.Pipeline alongside the handle.
func (b *PassBase) CreatePipeline(desc gpu.PipelineDesc) error {
	h, err := b.Device.CreatePipeline(desc)
	if err != nil {
		return err
	}
	pl, err := b.Device.GetPipeline(h)
	if err != nil {
		return err
	}
	b.PipelineHandle = h
	b.Pipeline = pl.Handle
	return nil
}

// Texture resolves a logical resource's physical texture via the
// registry, for use building framebuffer attachments.
func (b *PassBase) Texture(lr *LogicalResource) (*gpu.Texture, error) {
	res, err := b.Registry.GetResource(lr.Name)
	if err != nil {
		return nil, err
	}
	return b.Device.GetTexture(res.Texture)
}

// Buffer resolves a logical resource's physical buffer via the
// registry.
func (b *PassBase) Buffer(lr *LogicalResource) (*gpu.Buffer, error) {
	res, err := b.Registry.GetResource(lr.Name)
	if err != nil {
		return nil, err
	}
	return b.Device.GetBuffer(res.Buffer)
}

// DeriveRenderPass builds a gpu.RenderPassDesc from outs following the
// render-pass derivation rule: depth-format outputs become the depth
// attachment (Clear if the pass only writes it, Load if it also reads
// it back), everything else becomes a color attachment using the
// declared load/store ops.
func DeriveRenderPass(outs []PassOutputBinding, readNames map[string]bool, colorFmt func(name string) driver.PixelFmt, depthFmt func(name string) (driver.PixelFmt, bool)) gpu.RenderPassDesc {
	var desc gpu.RenderPassDesc
	for _, o := range outs {
		if df, ok := depthFmt(o.Resource.Name); ok {
			load := driver.LClear
			if readNames[o.Resource.Name] {
				load = driver.LLoad
			}
			desc.HasDepth = true
			desc.Depth = gpu.DepthAttachment{Format: df, Load: load}
			continue
		}
		desc.Color = append(desc.Color, gpu.ColorAttachment{
			Format: colorFmt(o.Resource.Name),
			Load:   o.Load,
			Store:  o.Store,
		})
	}
	return desc
}

// Destroy is the common teardown PassBase's owner calls from its own
// Reset. Every field is guarded by a zero/invalid check so repeated
// calls are no-ops, matching the idempotent-Reset requirement.
func (b *PassBase) Destroy() {
	if b.PipelineHandle != gpu.PipelineHandle(gpu.Invalid) {
		b.Device.DestroyPipeline(b.PipelineHandle)
		b.PipelineHandle, b.Pipeline = gpu.PipelineHandle(gpu.Invalid), nil
	}
	b.DestroyFramebufs()
	if b.DescTable != nil {
		b.DescTable.Destroy()
		b.DescTable = nil
	}
	if b.DescHeap != nil {
		b.DescHeap.Destroy()
		b.DescHeap = nil
	}
	if b.RenderPassHandle != gpu.RenderPassHandle(gpu.Invalid) {
		b.Device.DestroyRenderPass(b.RenderPassHandle)
		b.RenderPassHandle, b.RenderPass = gpu.RenderPassHandle(gpu.Invalid), nil
	}
}

// DestroyFramebufs tears down only the framebuffers, for Resize.
func (b *PassBase) DestroyFramebufs() {
	for _, fb := range b.FramebufHandles {
		b.Device.DestroyFramebuffer(fb)
	}
	b.FramebufHandles = nil
	b.Framebufs = nil
}
