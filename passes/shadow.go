// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package passes

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/graph"
	"github.com/nyxforge/framegraph/linear"
	"github.com/nyxforge/framegraph/registry"
	"github.com/nyxforge/framegraph/shadercache"
)

const shadowRes = 4096

// ShadowPass renders N cascaded shadow maps into a single depth
// texture array, one framebuffer per cascade layer, using each
// cascade's view-projection matrix as the sole per-draw constant.
type ShadowPass struct {
	graph.PassBase

	shaders  *shadercache.Cache
	vertSrc  string
	cascades int

	shadowMap *graph.LogicalResource

	// cascadeVP is the host-visible constant buffer holding one
	// view-projection matrix per cascade, one 256-byte-aligned slot
	// each so a single DescHeap copy per cascade can bind its slice.
	cascadeVP driver.Buffer

	// CascadeViewProj is filled by the caller before Execute with one
	// view-projection matrix per cascade.
	CascadeViewProj []linear.M4
}

// NewShadowPass returns an unconfigured shadow-map pass rendering
// cascades cascades.
func NewShadowPass(base graph.PassBase, shaders *shadercache.Cache, vertSrc string, cascades int) *ShadowPass {
	return &ShadowPass{PassBase: base, shaders: shaders, vertSrc: vertSrc, cascades: cascades,
		CascadeViewProj: make([]linear.M4, cascades)}
}

func (p *ShadowPass) Setup(g *graph.FrameGraph) {
	sm, err := g.CreateResource("shadow_map", registry.KindTexture, gpu.TextureDesc{
		Width: shadowRes, Height: shadowRes, ArrayLayers: p.cascades, Format: driver.D32f,
		Usage:    driver.URenderTarget | driver.UShaderSample,
		Sampling: shadowSampling,
	})
	if err != nil {
		panic(err)
	}
	p.shadowMap = sm
	g.WriteResource(sm, driver.LClear, driver.SStore)
}

func (p *ShadowPass) Init() error {
	rpDesc := gpu.RenderPassDesc{HasDepth: true, Depth: gpu.DepthAttachment{Format: driver.D32f, Load: driver.LClear}}
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}

	heap, err := p.Device.Driver().NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Stages: driver.SVertex, Nr: 0, Len: 1},
	})
	if err != nil {
		return err
	}
	if err := heap.New(p.cascades); err != nil {
		return err
	}
	p.DescHeap = heap

	table, err := p.Device.Driver().NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		return err
	}
	p.DescTable = table

	slot := align256(64) // one float32x4x4 matrix
	buf, err := p.Device.Driver().NewBuffer(slot*int64(p.cascades), true, driver.UShaderConst)
	if err != nil {
		return err
	}
	p.cascadeVP = buf
	for i := 0; i < p.cascades; i++ {
		heap.SetBuffer(i, 0, 0, []driver.Buffer{buf}, []int64{int64(i) * slot}, []int64{64})
	}

	vert, err := p.shaders.Load(p.vertSrc)
	if err != nil {
		return err
	}

	state := &driver.GraphState{
		VertFunc: driver.ShaderFunc{Code: vert, Name: "main"},
		Desc:     table,
		Input: []driver.VertexIn{
			{Format: driver.Float32x3, Stride: 12, Nr: 0, Name: "position"},
		},
		Topology: driver.TTriangle,
		Raster:   driver.RasterState{Clockwise: true, Cull: driver.CNone, Fill: driver.FFill},
		Samples:  1,
		DS:       depthLessWrite,
		Blend:    driver.BlendState{},
		Pass:     p.RenderPass,
		Subpass:  0,
	}
	if err := p.CreatePipeline(gpu.PipelineDesc{
		Graph: state, Pass: p.RenderPassHandle,
		HasDepth: true, DepthFormat: driver.D32f,
	}); err != nil {
		return err
	}

	return p.buildFramebuffers()
}

func (p *ShadowPass) buildFramebuffers() error {
	p.DestroyFramebufs()
	tex, err := p.Texture(p.shadowMap)
	if err != nil {
		return err
	}
	for i := 0; i < p.cascades; i++ {
		if err := p.CreateFramebuffer([]driver.ImageView{tex.LayerViews[i]}); err != nil {
			return err
		}
	}
	return nil
}

func (p *ShadowPass) Record(cb driver.CmdBuffer, scene external.Scene) {
	vp, sc := fullViewport(shadowRes, shadowRes)
	for i := 0; i < p.cascades; i++ {
		m := p.CascadeViewProj[i]
		writeMatrix(p.cascadeVP.Bytes()[int64(i)*align256(64):], m)

		cb.SetViewport(vp)
		cb.SetScissor(sc)
		cb.BeginPass(p.RenderPass, p.Framebufs[i], []driver.ClearValue{{Depth: 1}})
		cb.SetPipeline(p.Pipeline)
		cb.SetDescTableGraph(p.DescTable, 0, []int{i})
		for _, mesh := range scene.Meshes() {
			cb.SetVertexBuf(0, []driver.Buffer{mesh.VertexBuf}, []int64{0})
			cb.SetIndexBuf(mesh.IndexFmt, mesh.IndexBuf, 0)
			cb.DrawIndexed(mesh.IndexCount, 1, 0, 0, 0)
		}
		cb.EndPass()
	}
}

func (p *ShadowPass) Reset() {
	if p.cascadeVP != nil {
		p.cascadeVP.Destroy()
		p.cascadeVP = nil
	}
	p.Destroy()
}

func (p *ShadowPass) Resize(width, height int) {
	// The shadow map resolution is fixed regardless of the swapchain
	// extent, so there is nothing to resize here.
}

