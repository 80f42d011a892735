// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package passes

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/graph"
	"github.com/nyxforge/framegraph/registry"
	"github.com/nyxforge/framegraph/shadercache"
)

// TonemapPass resolves the HDR image into the swapchain's 8-bit
// presentable color target. It is the final pass a frame needs unless
// a UI pass is layered on top.
type TonemapPass struct {
	graph.PassBase

	shaders          *shadercache.Cache
	vertSrc, fragSrc string

	Exposure float32

	hdr, frame *graph.LogicalResource
	paramsBuf  driver.Buffer
}

// NewTonemapPass returns an unconfigured tone-mapping pass.
func NewTonemapPass(base graph.PassBase, shaders *shadercache.Cache, vertSrc, fragSrc string) *TonemapPass {
	return &TonemapPass{PassBase: base, shaders: shaders, vertSrc: vertSrc, fragSrc: fragSrc, Exposure: 1}
}

func (p *TonemapPass) Setup(g *graph.FrameGraph) {
	hdr, ok := g.GetResource("hdr_image")
	if !ok {
		panic("passes: tonemap: hdr_image not registered before this pass")
	}
	frame, err := g.CreateResource("frame_color", registry.KindTexture, gpu.TextureDesc{
		Width: p.Width, Height: p.Height, Format: driver.RGBA8un,
		Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	p.hdr, p.frame = hdr, frame
	g.ReadResource(hdr)
	g.WriteResource(frame, driver.LClear, driver.SStore)
}

func (p *TonemapPass) Init() error {
	rpDesc := gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.RGBA8un, Load: driver.LClear, Store: driver.SStore}}}
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}

	heap, err := p.Device.Driver().NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Stages: driver.SFragment, Nr: 0, Len: 1},
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 1, Len: 1},
		{Type: driver.DSampler, Stages: driver.SFragment, Nr: 2, Len: 1},
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

	paramsBuf, err := p.Device.Driver().NewBuffer(align256(4), true, driver.UShaderConst)
	if err != nil {
		return err
	}
	writeFloats(paramsBuf.Bytes(), p.Exposure)
	heap.SetBuffer(0, 0, 0, []driver.Buffer{paramsBuf}, []int64{0}, []int64{4})
	p.paramsBuf = paramsBuf

	hdrTex, err := p.Texture(p.hdr)
	if err != nil {
		return err
	}
	heap.SetImage(0, 1, 0, []driver.ImageView{hdrTex.AggregateView})
	heap.SetSampler(0, 2, 0, []driver.Sampler{hdrTex.Sampler})

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
		Blend:    noBlend,
		Pass:     p.RenderPass,
		Subpass:  0,
	}
	if err := p.CreatePipeline(gpu.PipelineDesc{
		Graph: state, Pass: p.RenderPassHandle,
		ColorFormats: []driver.PixelFmt{driver.RGBA8un},
	}); err != nil {
		return err
	}

	return p.buildFramebuffer()
}

func (p *TonemapPass) buildFramebuffer() error {
	p.DestroyFramebufs()
	frameTex, err := p.Texture(p.frame)
	if err != nil {
		return err
	}
	return p.CreateFramebuffer([]driver.ImageView{frameTex.AggregateView})
}

func (p *TonemapPass) Record(cb driver.CmdBuffer, scene external.Scene) {
	vp, sc := fullViewport(p.Width, p.Height)
	cb.SetViewport(vp)
	cb.SetScissor(sc)
	cb.BeginPass(p.RenderPass, p.Framebufs[0], []driver.ClearValue{{Color: [4]float32{0, 0, 0, 1}}})
	cb.SetPipeline(p.Pipeline)
	cb.SetDescTableGraph(p.DescTable, 0, []int{0})
	cb.Draw(3, 1, 0, 0)
	cb.EndPass()
}

func (p *TonemapPass) Reset() {
	if p.paramsBuf != nil {
		p.paramsBuf.Destroy()
		p.paramsBuf = nil
	}
	p.Destroy()
}

func (p *TonemapPass) Resize(width, height int) {
	p.Width, p.Height = width, height
}
