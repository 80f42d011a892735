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

// SkyboxPass draws a unit cube with inverted culling against the
// environment cube map, establishing the HDR color and depth targets
// that the lighting and grid passes load and store into afterwards.
type SkyboxPass struct {
	graph.PassBase

	shaders             *shadercache.Cache
	vertSrc, fragSrc    string
	cameraName, envName string

	// CubeVertexBuf/CubeIndexBuf/CubeIndexCount describe the unit cube
	// mesh drawn by this pass; the caller owns and uploads it.
	CubeVertexBuf  driver.Buffer
	CubeIndexBuf   driver.Buffer
	CubeIndexCount int
	CubeIndexFmt   driver.IndexFmt

	hdr, depth, camera, env *graph.LogicalResource
}

// NewSkyboxPass returns an unconfigured skybox pass. envName is the
// name of the externally-registered environment cube map resource.
func NewSkyboxPass(base graph.PassBase, shaders *shadercache.Cache, vertSrc, fragSrc, cameraName, envName string) *SkyboxPass {
	return &SkyboxPass{PassBase: base, shaders: shaders, vertSrc: vertSrc, fragSrc: fragSrc,
		cameraName: cameraName, envName: envName}
}

func (p *SkyboxPass) Setup(g *graph.FrameGraph) {
	hdr, err := g.CreateResource("hdr_image", registry.KindTexture, gpu.TextureDesc{
		Width: p.Width, Height: p.Height, Format: driver.RGBA16f,
		Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	depth, err := g.CreateResource("hdr_depth", registry.KindTexture, gpu.TextureDesc{
		Width: p.Width, Height: p.Height, Format: driver.D24unS8ui,
		Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	camera, ok := g.GetResource(p.cameraName)
	if !ok {
		panic("passes: skybox: " + p.cameraName + " not registered before this pass")
	}
	env, ok := g.GetResource(p.envName)
	if !ok {
		panic("passes: skybox: " + p.envName + " not registered before this pass")
	}
	p.hdr, p.depth, p.camera, p.env = hdr, depth, camera, env
	g.WriteResource(hdr, driver.LClear, driver.SStore)
	g.WriteResource(depth, driver.LClear, driver.SStore)
	g.ReadResource(camera)
	g.ReadResource(env)
}

func (p *SkyboxPass) Init() error {
	rpDesc := gpu.RenderPassDesc{
		Color:    []gpu.ColorAttachment{{Format: driver.RGBA16f, Load: driver.LClear, Store: driver.SStore}},
		HasDepth: true, Depth: gpu.DepthAttachment{Format: driver.D24unS8ui, Load: driver.LClear},
	}
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}

	heap, err := p.Device.Driver().NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Stages: driver.SVertex, Nr: 0, Len: 1},
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

	cameraBuf, err := p.Buffer(p.camera)
	if err != nil {
		return err
	}
	heap.SetBuffer(0, 0, 0, []driver.Buffer{cameraBuf.Handle}, []int64{0}, []int64{cameraBuf.Desc.Size})

	envTex, err := p.Texture(p.env)
	if err != nil {
		return err
	}
	heap.SetImage(0, 1, 0, []driver.ImageView{envTex.AggregateView})
	heap.SetSampler(0, 2, 0, []driver.Sampler{envTex.Sampler})

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
		},
		Topology: driver.TTriangle,
		// Drawing from inside the cube: front faces are wound the
		// opposite way, so culling is inverted relative to the
		// opaque-pass convention.
		Raster:  driver.RasterState{Clockwise: true, Cull: driver.CFront, Fill: driver.FFill},
		Samples: 1,
		DS:      driver.DSState{DepthTest: true, DepthWrite: true, DepthCmp: driver.CLessEqual},
		Blend:   noBlend,
		Pass:    p.RenderPass,
		Subpass: 0,
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

func (p *SkyboxPass) buildFramebuffer() error {
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

func (p *SkyboxPass) Record(cb driver.CmdBuffer, scene external.Scene) {
	vp, sc := fullViewport(p.Width, p.Height)
	cb.SetViewport(vp)
	cb.SetScissor(sc)
	cb.BeginPass(p.RenderPass, p.Framebufs[0], []driver.ClearValue{
		{Color: [4]float32{0, 0, 0, 0}},
		{Depth: 1},
	})
	cb.SetPipeline(p.Pipeline)
	cb.SetDescTableGraph(p.DescTable, 0, []int{0})
	if p.CubeVertexBuf != nil {
		cb.SetVertexBuf(0, []driver.Buffer{p.CubeVertexBuf}, []int64{0})
		cb.SetIndexBuf(p.CubeIndexFmt, p.CubeIndexBuf, 0)
		cb.DrawIndexed(p.CubeIndexCount, 1, 0, 0, 0)
	}
	cb.EndPass()
}

func (p *SkyboxPass) Reset() { p.Destroy() }

func (p *SkyboxPass) Resize(width, height int) {
	p.Width, p.Height = width, height
}
