// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package passes

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/graph"
	"github.com/nyxforge/framegraph/shadercache"
)

// UIDrawItem is one alpha-blended, screen-space UI draw: a quad list
// sourced from a single bound texture (glyph atlas or icon sheet).
type UIDrawItem struct {
	VertexBuf  driver.Buffer
	IndexBuf   driver.Buffer
	IndexCount int
	IndexFmt   driver.IndexFmt
	Texture    driver.ImageView
	Sampler    driver.Sampler
}

// UIPass draws 2D overlay geometry on top of the tone-mapped frame,
// load+store so it composites over whatever tone-mapping produced.
type UIPass struct {
	graph.PassBase

	shaders          *shadercache.Cache
	vertSrc, fragSrc string

	// Items is filled by the caller before Execute with this frame's
	// UI draws, in back-to-front order.
	Items []UIDrawItem

	frame *graph.LogicalResource
}

// NewUIPass returns an unconfigured UI pass.
func NewUIPass(base graph.PassBase, shaders *shadercache.Cache, vertSrc, fragSrc string) *UIPass {
	return &UIPass{PassBase: base, shaders: shaders, vertSrc: vertSrc, fragSrc: fragSrc}
}

func (p *UIPass) Setup(g *graph.FrameGraph) {
	frame, ok := g.GetResource("frame_color")
	if !ok {
		panic("passes: ui: frame_color not registered before this pass")
	}
	p.frame = frame
	g.WriteResource(frame, driver.LLoad, driver.SStore)
}

func (p *UIPass) Init() error {
	rpDesc := gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.RGBA8un, Load: driver.LLoad, Store: driver.SStore}}}
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}

	heap, err := p.Device.Driver().NewDescHeap([]driver.Descriptor{
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 0, Len: 1},
		{Type: driver.DSampler, Stages: driver.SFragment, Nr: 1, Len: 1},
	})
	if err != nil {
		return err
	}
	// One heap copy per draw item bound this frame; Record sizes it
	// with DescHeap.New, since the item count is only known then.
	p.DescHeap = heap

	table, err := p.Device.Driver().NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		return err
	}
	p.DescTable = table

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
		Input: []driver.VertexIn{
			{Format: driver.Float32x2, Stride: 16, Nr: 0, Name: "position"},
			{Format: driver.Float32x2, Stride: 16, Nr: 1, Name: "uv"},
		},
		Topology: driver.TTriangle,
		Raster:   driver.RasterState{Cull: driver.CNone, Fill: driver.FFill},
		Samples:  1,
		Blend:    alphaBlend,
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

func (p *UIPass) buildFramebuffer() error {
	p.DestroyFramebufs()
	frameTex, err := p.Texture(p.frame)
	if err != nil {
		return err
	}
	return p.CreateFramebuffer([]driver.ImageView{frameTex.AggregateView})
}

func (p *UIPass) Record(cb driver.CmdBuffer, scene external.Scene) {
	vp, sc := fullViewport(p.Width, p.Height)
	cb.SetViewport(vp)
	cb.SetScissor(sc)
	cb.BeginPass(p.RenderPass, p.Framebufs[0], nil)
	cb.SetPipeline(p.Pipeline)
	if len(p.Items) > 0 {
		if err := p.DescHeap.New(len(p.Items)); err == nil {
			for i, item := range p.Items {
				p.DescHeap.SetImage(i, 0, 0, []driver.ImageView{item.Texture})
				p.DescHeap.SetSampler(i, 1, 0, []driver.Sampler{item.Sampler})
			}
			for i, item := range p.Items {
				cb.SetDescTableGraph(p.DescTable, 0, []int{i})
				cb.SetVertexBuf(0, []driver.Buffer{item.VertexBuf}, []int64{0})
				cb.SetIndexBuf(item.IndexFmt, item.IndexBuf, 0)
				cb.DrawIndexed(item.IndexCount, 1, 0, 0, 0)
			}
		}
	}
	cb.EndPass()
}

func (p *UIPass) Reset() { p.Destroy() }

func (p *UIPass) Resize(width, height int) {
	p.Width, p.Height = width, height
}
