// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package passes

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/graph"
	"github.com/nyxforge/framegraph/shadercache"
)

// GridPass draws an infinite procedural ground grid, alpha-blended
// over the lit scene, reading but not clearing the HDR color/depth
// targets.
type GridPass struct {
	graph.PassBase

	shaders          *shadercache.Cache
	vertSrc, fragSrc string
	cameraName       string

	hdr, depth, camera *graph.LogicalResource
}

// NewGridPass returns an unconfigured grid pass.
func NewGridPass(base graph.PassBase, shaders *shadercache.Cache, vertSrc, fragSrc, cameraName string) *GridPass {
	return &GridPass{PassBase: base, shaders: shaders, vertSrc: vertSrc, fragSrc: fragSrc, cameraName: cameraName}
}

func (p *GridPass) Setup(g *graph.FrameGraph) {
	hdr, ok := g.GetResource("hdr_image")
	if !ok {
		panic("passes: grid: hdr_image not registered before this pass")
	}
	depth, ok := g.GetResource("hdr_depth")
	if !ok {
		panic("passes: grid: hdr_depth not registered before this pass")
	}
	camera, ok := g.GetResource(p.cameraName)
	if !ok {
		panic("passes: grid: " + p.cameraName + " not registered before this pass")
	}
	p.hdr, p.depth, p.camera = hdr, depth, camera
	g.WriteResource(hdr, driver.LLoad, driver.SStore)
	g.WriteResource(depth, driver.LLoad, driver.SStore)
	g.ReadResource(camera)
}

func (p *GridPass) Init() error {
	rpDesc := gpu.RenderPassDesc{
		Color:    []gpu.ColorAttachment{{Format: driver.RGBA16f, Load: driver.LLoad, Store: driver.SStore}},
		HasDepth: true, Depth: gpu.DepthAttachment{Format: driver.D24unS8ui, Load: driver.LLoad},
	}
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}

	heap, err := p.Device.Driver().NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Stages: driver.SVertex | driver.SFragment, Nr: 0, Len: 1},
	})
	if err != nil {
		return err
	}
	if err := heap.New(1); err != nil {
		return err
	}
	p.DescHeap = heap

	table, err := p.Device.Driver().NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		return err
	}
	p.DescTable = table

	cameraBuf, err := p.Buffer(p.camera)
	if err != nil {
		return err
	}
	heap.SetBuffer(0, 0, 0, []driver.Buffer{cameraBuf.Handle}, []int64{0}, []int64{cameraBuf.Desc.Size})

	vert, err := p.shaders.Load(p.vertSrc)
	if err != nil {
		return err
	}
	frag, err := p.shaders.Load(p.fragSrc)
	if err != nil {
		return err
	}

	state := &driver.GraphState{
		VertFunc: driver.ShaderFunc{Code: vert, Name: "main"},
		FragFunc: driver.ShaderFunc{Code: frag, Name: "main"},
		Desc:     table,
		Topology: driver.TTriangle,
		Raster:   driver.RasterState{Cull: driver.CNone, Fill: driver.FFill},
		Samples:  1,
		DS:       depthLessNoWrite,
		Blend:    alphaBlend,
		Pass:     p.RenderPass,
		Subpass:  0,
	}
	if err := p.CreatePipeline(gpu.PipelineDesc{
		Graph: state, Pass: p.RenderPassHandle,
		ColorFormats: []driver.PixelFmt{driver.RGBA16f},
		HasDepth:     true, DepthFormat: driver.D24unS8ui,
	}); err != nil {
		return err
	}

	return p.buildFramebuffer()
}

func (p *GridPass) buildFramebuffer() error {
	p.DestroyFramebufs()
	hdrTex, err := p.Texture(p.hdr)
	if err != nil {
		return err
	}
	depthTex, err := p.Texture(p.depth)
	if err != nil {
		return err
	}
	return p.CreateFramebuffer([]driver.ImageView{hdrTex.AggregateView, depthTex.AggregateView})
}

func (p *GridPass) Record(cb driver.CmdBuffer, scene external.Scene) {
	vp, sc := fullViewport(p.Width, p.Height)
	cb.SetViewport(vp)
	cb.SetScissor(sc)
	cb.BeginPass(p.RenderPass, p.Framebufs[0], []driver.ClearValue{
		{Color: [4]float32{0, 0, 0, 0}},
		{Depth: 1},
	})
	cb.SetPipeline(p.Pipeline)
	cb.SetDescTableGraph(p.DescTable, 0, []int{0})
	// The grid is generated entirely in the vertex shader from
	// gl_VertexIndex; no vertex/index buffers are bound.
	cb.Draw(6, 1, 0, 0)
	cb.EndPass()
}

func (p *GridPass) Reset() { p.Destroy() }

func (p *GridPass) Resize(width, height int) {
	p.Width, p.Height = width, height
}
