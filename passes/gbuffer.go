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

// GBufferPass fills the view-space normal and position buffers used by
// SSAO and the lighting pass, skipping any alpha-tested material.
type GBufferPass struct {
	graph.PassBase

	shaders          *shadercache.Cache
	vertSrc, fragSrc string
	cameraName       string

	// Materials is the bindless material table; when set, each draw
	// selects the mesh's material via the heap copy at MaterialID.
	Materials external.MaterialTable

	normal, position, depth, camera *graph.LogicalResource
	materialTableStart              int
}

// NewGBufferPass returns an unconfigured G-buffer pass. vertSrc/fragSrc
// are SPIR-V file paths loaded through shaders; cameraName is the
// registered name of the camera uniform buffer (external resource).
func NewGBufferPass(base graph.PassBase, shaders *shadercache.Cache, vertSrc, fragSrc, cameraName string) *GBufferPass {
	return &GBufferPass{PassBase: base, shaders: shaders, vertSrc: vertSrc, fragSrc: fragSrc, cameraName: cameraName}
}

func (p *GBufferPass) Setup(g *graph.FrameGraph) {
	normal, err := g.CreateResource("gbuffer_normal", registry.KindTexture, gpu.TextureDesc{
		Width: p.Width, Height: p.Height, Format: driver.RGBA32f,
		Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	position, err := g.CreateResource("gbuffer_position", registry.KindTexture, gpu.TextureDesc{
		Width: p.Width, Height: p.Height, Format: driver.RGBA32f,
		Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	depth, err := g.CreateResource("gbuffer_depth", registry.KindTexture, gpu.TextureDesc{
		Width: p.Width, Height: p.Height, Format: driver.D24unS8ui,
		Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	camera, ok := g.GetResource(p.cameraName)
	if !ok {
		panic("passes: gbuffer: " + p.cameraName + " not registered before this pass")
	}
	p.normal, p.position, p.depth, p.camera = normal, position, depth, camera
	g.WriteResource(normal, driver.LClear, driver.SStore)
	g.WriteResource(position, driver.LClear, driver.SStore)
	g.WriteResource(depth, driver.LClear, driver.SStore)
	g.ReadResource(camera)
}

func (p *GBufferPass) Init() error {
	rpDesc := graph.DeriveRenderPass(p.Node.Outputs, map[string]bool{},
		func(string) driver.PixelFmt { return driver.RGBA32f },
		func(name string) (driver.PixelFmt, bool) {
			if name == p.depth.Name {
				return driver.D24unS8ui, true
			}
			return 0, false
		})
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}

	heap, err := p.Device.Driver().NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Stages: driver.SVertex, Nr: 0, Len: 1},
	})
	if err != nil {
		return err
	}
	if err := heap.New(1); err != nil {
		return err
	}
	p.DescHeap = heap

	heaps := []driver.DescHeap{heap}
	p.materialTableStart = len(heaps)
	if p.Materials != nil {
		heaps = append(heaps, p.Materials.DescHeap())
	}
	table, err := p.Device.Driver().NewDescTable(heaps)
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
		Input: []driver.VertexIn{
			{Format: driver.Float32x3, Stride: 12, Nr: 0, Name: "position"},
			{Format: driver.Float32x3, Stride: 12, Nr: 1, Name: "normal"},
		},
		Topology: driver.TTriangle,
		Raster:   opaqueRaster,
		Samples:  1,
		DS:       depthLessWrite,
		Blend:    driver.BlendState{IndependentBlend: true, Color: []driver.ColorBlend{{WriteMask: driver.CAll}, {WriteMask: driver.CAll}}},
		Pass:     p.RenderPass,
		Subpass:  0,
	}
	if err := p.CreatePipeline(gpu.PipelineDesc{
		Graph: state, Pass: p.RenderPassHandle,
		ColorFormats: []driver.PixelFmt{driver.RGBA32f, driver.RGBA32f},
		HasDepth:     true, DepthFormat: driver.D24unS8ui,
	}); err != nil {
		return err
	}

	return p.buildFramebuffer()
}

func (p *GBufferPass) buildFramebuffer() error {
	p.DestroyFramebufs()
	normalTex, err := p.Texture(p.normal)
	if err != nil {
		return err
	}
	positionTex, err := p.Texture(p.position)
	if err != nil {
		return err
	}
	depthTex, err := p.Texture(p.depth)
	if err != nil {
		return err
	}
	return p.CreateFramebuffer([]driver.ImageView{normalTex.AggregateView, positionTex.AggregateView, depthTex.AggregateView})
}

func (p *GBufferPass) Record(cb driver.CmdBuffer, scene external.Scene) {
	vp, sc := fullViewport(p.Width, p.Height)
	cb.SetViewport(vp)
	cb.SetScissor(sc)
	cb.BeginPass(p.RenderPass, p.Framebufs[0], []driver.ClearValue{
		{Color: [4]float32{0, 0, 0, 0}},
		{Color: [4]float32{0, 0, 0, 0}},
		{Depth: 1},
	})
	cb.SetPipeline(p.Pipeline)
	cb.SetDescTableGraph(p.DescTable, 0, []int{0})
	for _, m := range scene.Meshes() {
		if m.AlphaTest {
			continue
		}
		if p.Materials != nil {
			cb.SetDescTableGraph(p.DescTable, p.materialTableStart, []int{m.MaterialID})
		}
		cb.SetVertexBuf(0, []driver.Buffer{m.VertexBuf}, []int64{0})
		cb.SetIndexBuf(m.IndexFmt, m.IndexBuf, 0)
		cb.DrawIndexed(m.IndexCount, 1, 0, 0, 0)
	}
	cb.EndPass()
}

func (p *GBufferPass) Reset() { p.Destroy() }

func (p *GBufferPass) Resize(width, height int) {
	p.Width, p.Height = width, height
}
