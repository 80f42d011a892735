// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package passes

import (
	"math/rand"

	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/graph"
	"github.com/nyxforge/framegraph/registry"
	"github.com/nyxforge/framegraph/shadercache"
)

const (
	ssaoKernelSize = 64
	ssaoNoiseDim   = 4
)

// SSAOPass derives per-pixel ambient occlusion from the G-buffer's
// normal and position targets at half the G-buffer's resolution.
type SSAOPass struct {
	graph.PassBase

	shaders          *shadercache.Cache
	vertSrc, fragSrc string
	cameraName       string

	Radius, Bias, Strength float32

	normal, position, camera *graph.LogicalResource
	output                   *graph.LogicalResource

	kernelBuf driver.Buffer
}

// NewSSAOPass returns an unconfigured SSAO pass. normal/position are
// read from the G-buffer pass's declared outputs.
func NewSSAOPass(base graph.PassBase, shaders *shadercache.Cache, vertSrc, fragSrc, cameraName string) *SSAOPass {
	return &SSAOPass{PassBase: base, shaders: shaders, vertSrc: vertSrc, fragSrc: fragSrc, cameraName: cameraName,
		Radius: 0.5, Bias: 0.025, Strength: 1}
}

func (p *SSAOPass) Setup(g *graph.FrameGraph) {
	normal, ok := g.GetResource("gbuffer_normal")
	if !ok {
		panic("passes: ssao: gbuffer_normal not registered before this pass")
	}
	position, ok := g.GetResource("gbuffer_position")
	if !ok {
		panic("passes: ssao: gbuffer_position not registered before this pass")
	}
	camera, ok := g.GetResource(p.cameraName)
	if !ok {
		panic("passes: ssao: " + p.cameraName + " not registered before this pass")
	}
	out, err := g.CreateResource("ssao_texture", registry.KindTexture, gpu.TextureDesc{
		Width: p.Width / 2, Height: p.Height / 2, Format: driver.R8un,
		Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	p.normal, p.position, p.camera, p.output = normal, position, camera, out
	g.ReadResource(normal)
	g.ReadResource(position)
	g.ReadResource(camera)
	g.WriteResource(out, driver.LClear, driver.SStore)
}

func (p *SSAOPass) Init() error {
	rpDesc := gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.R8un, Load: driver.LClear, Store: driver.SStore}}}
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}

	heap, err := p.Device.Driver().NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Stages: driver.SFragment, Nr: 0, Len: 1}, // camera
		{Type: driver.DConstant, Stages: driver.SFragment, Nr: 1, Len: 1}, // kernel + params
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 2, Len: 1},  // normal
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 3, Len: 1},  // position
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 4, Len: 1},  // noise
		{Type: driver.DSampler, Stages: driver.SFragment, Nr: 5, Len: 1},
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

	kernelSize := align256(int64(ssaoKernelSize)*16 + 32)
	kernelBuf, err := p.Device.Driver().NewBuffer(kernelSize, true, driver.UShaderConst)
	if err != nil {
		return err
	}
	p.kernelBuf = kernelBuf
	fillHemisphereKernel(kernelBuf.Bytes(), p.Radius, p.Bias, p.Strength, p.Width/2, p.Height/2)
	heap.SetBuffer(0, 1, 0, []driver.Buffer{kernelBuf}, []int64{0}, []int64{kernelSize})

	noiseHandle, err := p.Device.CreateTexture(gpu.TextureDesc{
		Width: ssaoNoiseDim, Height: ssaoNoiseDim, Format: driver.RGBA32f,
		Usage: driver.UShaderSample, Data: randomNoiseData(ssaoNoiseDim),
	})
	if err != nil {
		return err
	}
	noiseTex, err := p.Device.GetTexture(noiseHandle)
	if err != nil {
		return err
	}

	normalTex, err := p.Texture(p.normal)
	if err != nil {
		return err
	}
	positionTex, err := p.Texture(p.position)
	if err != nil {
		return err
	}
	heap.SetImage(0, 2, 0, []driver.ImageView{normalTex.AggregateView})
	heap.SetImage(0, 3, 0, []driver.ImageView{positionTex.AggregateView})
	heap.SetImage(0, 4, 0, []driver.ImageView{noiseTex.AggregateView})
	heap.SetSampler(0, 5, 0, []driver.Sampler{noiseTex.Sampler})

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
		ColorFormats: []driver.PixelFmt{driver.R8un},
	}); err != nil {
		return err
	}

	return p.buildFramebuffer()
}

func (p *SSAOPass) buildFramebuffer() error {
	p.DestroyFramebufs()
	tex, err := p.Texture(p.output)
	if err != nil {
		return err
	}
	return p.CreateFramebuffer([]driver.ImageView{tex.AggregateView})
}

func (p *SSAOPass) Record(cb driver.CmdBuffer, scene external.Scene) {
	w, h := p.Width/2, p.Height/2
	vp, sc := fullViewport(w, h)
	cb.SetViewport(vp)
	cb.SetScissor(sc)
	cb.BeginPass(p.RenderPass, p.Framebufs[0], []driver.ClearValue{{Color: [4]float32{1, 1, 1, 1}}})
	cb.SetPipeline(p.Pipeline)
	cb.SetDescTableGraph(p.DescTable, 0, []int{0})
	cb.Draw(3, 1, 0, 0)
	cb.EndPass()
}

func (p *SSAOPass) Reset() {
	if p.kernelBuf != nil {
		p.kernelBuf.Destroy()
		p.kernelBuf = nil
	}
	p.Destroy()
}

func (p *SSAOPass) Resize(width, height int) {
	p.Width, p.Height = width, height
}

// fillHemisphereKernel writes ssaoKernelSize tangent-space sample
// vectors (std140 vec4-padded) followed by the {resolution, kernelSize,
// radius, bias, strength} parameter block.
func fillHemisphereKernel(dst []byte, radius, bias, strength float32, w, h int) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < ssaoKernelSize; i++ {
		x := r.Float32()*2 - 1
		y := r.Float32()*2 - 1
		z := r.Float32()
		scale := float32(i) / float32(ssaoKernelSize)
		scale = 0.1 + 0.9*scale*scale
		writeFloats(dst[i*16:], x*scale, y*scale, z*scale, 0)
	}
	off := ssaoKernelSize * 16
	writeFloats(dst[off:], float32(w), float32(h))
	writeFloats(dst[off+8:], float32(ssaoKernelSize), radius, bias, strength)
}

// randomNoiseData returns dim×dim RGBA32F texel data of random
// tangent-space rotation vectors used to break up the kernel's
// banding pattern.
func randomNoiseData(dim int) []byte {
	r := rand.New(rand.NewSource(2))
	data := make([]byte, dim*dim*16)
	for i := 0; i < dim*dim; i++ {
		x := r.Float32()*2 - 1
		y := r.Float32()*2 - 1
		writeFloats(data[i*16:], x, y, 0, 0)
	}
	return data
}
