// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package passes

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/graph"
	"github.com/nyxforge/framegraph/shadercache"
)

// LightingPass shades the G-buffer against the directional light,
// shadow cascades and the precomputed IBL textures, writing into the
// HDR target the skybox pass cleared.
type LightingPass struct {
	graph.PassBase

	shaders          *shadercache.Cache
	vertSrc, fragSrc string

	cameraName, lightsName string
	shadowName             string
	irradianceName         string
	prefilterName          string
	brdfLUTName            string

	// ReflectionProbe is the optional extra descriptor set appended to
	// the lighting pass's bindings when non-nil, supplementing the
	// material table with screen-space-independent reflection data.
	ReflectionProbe *external.ReflectionProbe

	// Materials is the bindless material table; its descriptor heap is
	// wired into the pass's descriptor table at Init, and each draw
	// selects its heap copy via the mesh's MaterialID.
	Materials external.MaterialTable

	hdr, depth, camera, lights, shadow, irradiance, prefilter, brdfLUT *graph.LogicalResource
	materialTableStart                                                int
}

// NewLightingPass returns an unconfigured lighting pass reading the
// named external/IBL resources.
func NewLightingPass(base graph.PassBase, shaders *shadercache.Cache, vertSrc, fragSrc string,
	cameraName, lightsName, shadowName, irradianceName, prefilterName, brdfLUTName string) *LightingPass {
	return &LightingPass{
		PassBase: base, shaders: shaders, vertSrc: vertSrc, fragSrc: fragSrc,
		cameraName: cameraName, lightsName: lightsName, shadowName: shadowName,
		irradianceName: irradianceName, prefilterName: prefilterName, brdfLUTName: brdfLUTName,
	}
}

func (p *LightingPass) Setup(g *graph.FrameGraph) {
	hdr, ok := g.GetResource("hdr_image")
	if !ok {
		panic("passes: lighting: hdr_image not registered before this pass")
	}
	depth, ok := g.GetResource("hdr_depth")
	if !ok {
		panic("passes: lighting: hdr_depth not registered before this pass")
	}
	camera, ok := g.GetResource(p.cameraName)
	if !ok {
		panic("passes: lighting: " + p.cameraName + " not registered before this pass")
	}
	lights, ok := g.GetResource(p.lightsName)
	if !ok {
		panic("passes: lighting: " + p.lightsName + " not registered before this pass")
	}
	shadow, ok := g.GetResource(p.shadowName)
	if !ok {
		panic("passes: lighting: " + p.shadowName + " not registered before this pass")
	}
	ssao, ok := g.GetResource("ssao_texture")
	if !ok {
		panic("passes: lighting: ssao_texture not registered before this pass")
	}
	irradiance, ok := g.GetResource(p.irradianceName)
	if !ok {
		panic("passes: lighting: " + p.irradianceName + " not registered before this pass")
	}
	prefilter, ok := g.GetResource(p.prefilterName)
	if !ok {
		panic("passes: lighting: " + p.prefilterName + " not registered before this pass")
	}
	brdfLUT, ok := g.GetResource(p.brdfLUTName)
	if !ok {
		panic("passes: lighting: " + p.brdfLUTName + " not registered before this pass")
	}
	normal, _ := g.GetResource("gbuffer_normal")
	position, _ := g.GetResource("gbuffer_position")

	p.hdr, p.depth, p.camera, p.lights = hdr, depth, camera, lights
	p.shadow, p.irradiance, p.prefilter, p.brdfLUT = shadow, irradiance, prefilter, brdfLUT

	g.WriteResource(hdr, driver.LLoad, driver.SStore)
	g.WriteResource(depth, driver.LLoad, driver.SStore)
	g.ReadResource(camera)
	g.ReadResource(lights)
	g.ReadResource(shadow)
	g.ReadResource(ssao)
	g.ReadResource(irradiance)
	g.ReadResource(prefilter)
	g.ReadResource(brdfLUT)
	g.ReadResource(normal)
	g.ReadResource(position)
}

func (p *LightingPass) Init() error {
	rpDesc := gpu.RenderPassDesc{
		Color:    []gpu.ColorAttachment{{Format: driver.RGBA16f, Load: driver.LLoad, Store: driver.SStore}},
		HasDepth: true, Depth: gpu.DepthAttachment{Format: driver.D24unS8ui, Load: driver.LLoad},
	}
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}

	descs := []driver.Descriptor{
		{Type: driver.DConstant, Stages: driver.SVertex | driver.SFragment, Nr: 0, Len: 1}, // camera
		{Type: driver.DConstant, Stages: driver.SFragment, Nr: 1, Len: 1},                  // lights
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 2, Len: 1},                   // shadow map
		{Type: driver.DSampler, Stages: driver.SFragment, Nr: 3, Len: 1},
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 4, Len: 1}, // ssao
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 5, Len: 1}, // irradiance
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 6, Len: 1}, // prefiltered env
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 7, Len: 1}, // BRDF LUT
		{Type: driver.DSampler, Stages: driver.SFragment, Nr: 8, Len: 1},
	}
	heap, err := p.Device.Driver().NewDescHeap(descs)
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
	if p.ReflectionProbe != nil {
		heaps = append(heaps, p.ReflectionProbe.DescHeap)
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
	lightsBuf, err := p.Buffer(p.lights)
	if err != nil {
		return err
	}
	heap.SetBuffer(0, 1, 0, []driver.Buffer{lightsBuf.Handle}, []int64{0}, []int64{lightsBuf.Desc.Size})

	shadowTex, err := p.Texture(p.shadow)
	if err != nil {
		return err
	}
	heap.SetImage(0, 2, 0, []driver.ImageView{shadowTex.AggregateView})
	heap.SetSampler(0, 3, 0, []driver.Sampler{shadowTex.Sampler})

	ssaoRes, _ := p.namedTexture("ssao_texture")
	heap.SetImage(0, 4, 0, []driver.ImageView{ssaoRes.AggregateView})

	irradianceTex, err := p.Texture(p.irradiance)
	if err != nil {
		return err
	}
	heap.SetImage(0, 5, 0, []driver.ImageView{irradianceTex.AggregateView})
	prefilterTex, err := p.Texture(p.prefilter)
	if err != nil {
		return err
	}
	heap.SetImage(0, 6, 0, []driver.ImageView{prefilterTex.AggregateView})
	brdfLUTTex, err := p.Texture(p.brdfLUT)
	if err != nil {
		return err
	}
	heap.SetImage(0, 7, 0, []driver.ImageView{brdfLUTTex.AggregateView})
	heap.SetSampler(0, 8, 0, []driver.Sampler{brdfLUTTex.Sampler})

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
		Raster:   opaqueRaster,
		Samples:  1,
		DS:       depthLessNoWrite,
		Blend:    noBlend,
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

func (p *LightingPass) namedTexture(name string) (*gpu.Texture, error) {
	res, err := p.Registry.GetResource(name)
	if err != nil {
		return nil, err
	}
	return p.Device.GetTexture(res.Texture)
}

func (p *LightingPass) buildFramebuffer() error {
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

func (p *LightingPass) Record(cb driver.CmdBuffer, scene external.Scene) {
	vp, sc := fullViewport(p.Width, p.Height)
	cb.SetViewport(vp)
	cb.SetScissor(sc)
	cb.BeginPass(p.RenderPass, p.Framebufs[0], []driver.ClearValue{
		{Color: [4]float32{0, 0, 0, 0}},
		{Depth: 1},
	})
	cb.SetPipeline(p.Pipeline)
	cb.SetDescTableGraph(p.DescTable, 0, []int{0})
	if p.ReflectionProbe != nil {
		start := p.materialTableStart
		if p.Materials != nil {
			start++
		}
		cb.SetDescTableGraph(p.DescTable, start, []int{0})
	}
	for _, m := range scene.Meshes() {
		if p.Materials != nil {
			cb.SetDescTableGraph(p.DescTable, p.materialTableStart, []int{m.MaterialID})
		}
		cb.SetVertexBuf(0, []driver.Buffer{m.VertexBuf}, []int64{0})
		cb.SetIndexBuf(m.IndexFmt, m.IndexBuf, 0)
		cb.DrawIndexed(m.IndexCount, 1, 0, 0, 0)
	}
	cb.EndPass()
}

func (p *LightingPass) Reset() { p.Destroy() }

func (p *LightingPass) Resize(width, height int) {
	p.Width, p.Height = width, height
}
