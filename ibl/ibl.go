// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package ibl precomputes the image-based lighting textures a scene's
// skybox and lighting passes read at runtime: a cube environment map
// uploaded from an equirectangular HDR source, its irradiance
// convolution, a roughness-prefiltered specular cube, and the
// split-sum BRDF integration LUT. Unlike the per-frame passes in
// package passes, these run once, outside any graph.FrameGraph, and
// register their outputs into a registry.Registry as external
// resources for the main graph to read by name.
//
// Grounded on the original engine's irradiance_map_pass,
// prefilter_map_pass and brdf_lut_pass: per-face one-shot render
// passes driven by fixed capture view matrices, plus a descriptor-
// less fullscreen pass for the LUT.
package ibl

import (
	"fmt"

	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/registry"
	"github.com/nyxforge/framegraph/shadercache"
)

const (
	envSize        = 512
	irradianceSize = 32
	prefilterSize  = 128
	prefilterMips  = 6
	lutSize        = 512
)

// Names of the external resources Precompute registers. Passes that
// need IBL data (skybox, lighting) look these up via
// registry.Registry.GetResource.
const (
	EnvMapName        = "ibl_env_cube"
	IrradianceMapName = "ibl_irradiance_cube"
	PrefilterMapName  = "ibl_prefilter_cube"
	BRDFLUTName       = "ibl_brdf_lut"
)

// Precompute owns the one-shot device objects used to derive the IBL
// textures. Call Run once at startup (or whenever the source
// environment changes) and Destroy when the derivation objects are no
// longer needed; the output textures it registers outlive Precompute
// itself.
type Precompute struct {
	device   *gpu.Device
	registry *registry.Registry
	shaders  *shadercache.Cache

	cubeVerts driver.Buffer
	cubeIdx   driver.Buffer
	idxCount  int

	rectVerts driver.Buffer
}

// New returns a Precompute bound to d and reg, loading shaders through
// shaders. cubeVerts/cubeIdx/idxCount describe a unit cube mesh
// (position-only, matching the skybox pass's layout) the caller owns;
// rectVerts describes a fullscreen triangle or quad for the BRDF LUT
// pass.
func New(d *gpu.Device, reg *registry.Registry, shaders *shadercache.Cache,
	cubeVerts, cubeIdx driver.Buffer, idxCount int, rectVerts driver.Buffer) *Precompute {
	return &Precompute{
		device: d, registry: reg, shaders: shaders,
		cubeVerts: cubeVerts, cubeIdx: cubeIdx, idxCount: idxCount,
		rectVerts: rectVerts,
	}
}

// Run derives the environment cube map from env (an already-decoded
// equirectangular source, see LoadHDR) and then the irradiance,
// prefiltered-specular and BRDF LUT textures from it, registering all
// four as external resources in the registry.
func (p *Precompute) Run(env *EquirectEnv) error {
	envCube, err := p.buildEnvCube(env)
	if err != nil {
		return fmt.Errorf("ibl: Run: env cube: %w", err)
	}
	if err := p.convolveIrradiance(envCube); err != nil {
		return fmt.Errorf("ibl: Run: irradiance: %w", err)
	}
	if err := p.prefilterSpecular(envCube); err != nil {
		return fmt.Errorf("ibl: Run: prefilter: %w", err)
	}
	if err := p.integrateBRDF(); err != nil {
		return fmt.Errorf("ibl: Run: brdf lut: %w", err)
	}
	return nil
}

// buildEnvCube projects env onto a cube map by rendering each face
// with the equirectangular source bound as a 2D texture, registering
// the result as EnvMapName.
func (p *Precompute) buildEnvCube(env *EquirectEnv) (*gpu.Texture, error) {
	srcName := "ibl_equirect_src"
	src, err := p.registry.CreateTexture(srcName, registry.KindTexture, gpu.TextureDesc{
		Width: env.Width, Height: env.Height, Format: driver.RGBA32f,
		Usage: driver.UShaderSample, Data: floatsToBytes(env.Pixels), DebugName: srcName,
		Sampling: bilinearClamp,
	})
	if err != nil {
		return nil, err
	}
	srcTex, err := p.device.GetTexture(src.Texture)
	if err != nil {
		return nil, err
	}

	cube, err := p.renderCubeFaces(renderCubeFacesArgs{
		name:     EnvMapName,
		size:     envSize,
		mips:     1,
		vertSrc:  "ibl/cubemap.vert",
		fragSrc:  "ibl/equirect_to_cube.frag",
		srcView:  srcTex.AggregateView,
		srcSplr:  srcTex.Sampler,
		drawCube: true,
	})
	if err != nil {
		return nil, err
	}
	return cube, nil
}

// convolveIrradiance renders the diffuse irradiance convolution of
// envCube into a low-resolution cube map, registered as
// IrradianceMapName.
func (p *Precompute) convolveIrradiance(envCube *gpu.Texture) error {
	_, err := p.renderCubeFaces(renderCubeFacesArgs{
		name:     IrradianceMapName,
		size:     irradianceSize,
		mips:     1,
		vertSrc:  "ibl/cubemap.vert",
		fragSrc:  "ibl/irradiance_convolution.frag",
		srcView:  envCube.AggregateView,
		srcSplr:  envCube.Sampler,
		drawCube: true,
	})
	return err
}

// prefilterSpecular renders the Cook-Torrance GGX roughness prefilter
// of envCube into a mipped cube map (mip N encodes roughness N/(mips-1)),
// registered as PrefilterMapName.
func (p *Precompute) prefilterSpecular(envCube *gpu.Texture) error {
	texDesc := gpu.TextureDesc{
		Width: prefilterSize, Height: prefilterSize, MipLevels: prefilterMips,
		ArrayLayers: 6, Format: driver.RGBA16f,
		Usage: driver.URenderTarget | driver.UShaderSample, DebugName: PrefilterMapName,
		Sampling: bilinearClamp,
	}
	res, err := p.registry.CreateTexture(PrefilterMapName, registry.KindTextureCube, texDesc)
	if err != nil {
		return err
	}
	tex, err := p.device.GetTexture(res.Texture)
	if err != nil {
		return err
	}

	vert, err := p.shaders.Load("ibl/cubemap.vert")
	if err != nil {
		return err
	}
	frag, err := p.shaders.Load("ibl/prefilter_convolution.frag")
	if err != nil {
		return err
	}

	for mip := 0; mip < prefilterMips; mip++ {
		mipSize := prefilterSize >> mip
		roughness := float32(mip) / float32(prefilterMips-1)
		for face := 0; face < 6; face++ {
			if err := p.renderCubeFace(cubeFaceArgs{
				image: tex.Image, face: face, mip: mip, size: mipSize,
				vertCode: vert, fragCode: frag,
				srcView: envCube.AggregateView, srcSplr: envCube.Sampler,
				pushRoughness: true, roughness: roughness,
				drawCube: true,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// integrateBRDF renders the split-sum BRDF integration LUT: a
// descriptor-less fullscreen pass, per the original engine's
// brdf_lut_pass (no textures bound, Cull Front, no depth test).
func (p *Precompute) integrateBRDF() error {
	texDesc := gpu.TextureDesc{
		Width: lutSize, Height: lutSize, Format: driver.RGBA16f,
		Usage: driver.URenderTarget | driver.UShaderSample, DebugName: BRDFLUTName,
		Sampling: bilinearClamp,
	}
	res, err := p.registry.CreateTexture(BRDFLUTName, registry.KindTexture, texDesc)
	if err != nil {
		return err
	}
	tex, err := p.device.GetTexture(res.Texture)
	if err != nil {
		return err
	}

	rpDesc := gpu.RenderPassDesc{
		Color: []gpu.ColorAttachment{{Format: driver.RGBA16f, Load: driver.LClear, Store: driver.SStore}},
	}
	rpHandle, err := p.device.CreateRenderPass(rpDesc)
	if err != nil {
		return err
	}
	rp, err := p.device.GetRenderPass(rpHandle)
	if err != nil {
		return err
	}

	fbHandle, err := p.device.CreateFramebuffer(gpu.FramebufferDesc{
		Pass: rpHandle, Width: lutSize, Height: lutSize,
		Attachments: []driver.ImageView{tex.LayerViews[0]},
	})
	if err != nil {
		return err
	}
	fb, err := p.device.GetFramebuffer(fbHandle)
	if err != nil {
		return err
	}

	vert, err := p.shaders.Load("ibl/brdf.vert")
	if err != nil {
		return err
	}
	frag, err := p.shaders.Load("ibl/brdf.frag")
	if err != nil {
		return err
	}

	state := &driver.GraphState{
		VertFunc: driver.ShaderFunc{Code: vert, Name: "main"},
		FragFunc: driver.ShaderFunc{Code: frag, Name: "main"},
		Input: []driver.VertexIn{
			{Format: driver.Float32x3, Stride: 12, Nr: 0, Name: "position"},
		},
		Topology: driver.TTriangle,
		// No depth test, and culling is inverted relative to the
		// opaque convention: the fullscreen rect is wound the same
		// way the cube-pass geometry is, seen from outside.
		Raster:  driver.RasterState{Clockwise: true, Cull: driver.CFront, Fill: driver.FFill},
		Samples: 1,
		Blend:   driver.BlendState{Color: []driver.ColorBlend{{WriteMask: driver.CAll}}},
		Pass:    rp.Handle,
	}
	plHandle, err := p.device.CreatePipeline(gpu.PipelineDesc{
		Graph: state, Pass: rpHandle, ColorFormats: []driver.PixelFmt{driver.RGBA16f},
	})
	if err != nil {
		return err
	}
	pl, err := p.device.GetPipeline(plHandle)
	if err != nil {
		return err
	}

	return p.device.ImmediateSubmit(func(cb driver.CmdBuffer) {
		cb.SetViewport([]driver.Viewport{{Width: lutSize, Height: lutSize, Zfar: 1}})
		cb.SetScissor([]driver.Scissor{{Width: lutSize, Height: lutSize}})
		cb.BeginPass(rp.Handle, fb.Handle, []driver.ClearValue{{Color: [4]float32{0, 0, 0, 0}}})
		cb.SetPipeline(pl.Handle)
		if p.rectVerts != nil {
			cb.SetVertexBuf(0, []driver.Buffer{p.rectVerts}, []int64{0})
			cb.Draw(3, 1, 0, 0)
		}
		cb.EndPass()
	})
}

// renderCubeFacesArgs configures a renderCubeFaces call: a fresh
// single-mip cube texture rendered from a common source view/sampler
// and shader pair, one face at a time.
type renderCubeFacesArgs struct {
	name     string
	size     int
	mips     int
	vertSrc  string
	fragSrc  string
	srcView  driver.ImageView
	srcSplr  driver.Sampler
	drawCube bool
}

func (p *Precompute) renderCubeFaces(a renderCubeFacesArgs) (*gpu.Texture, error) {
	res, err := p.registry.CreateTexture(a.name, registry.KindTextureCube, gpu.TextureDesc{
		Width: a.size, Height: a.size, MipLevels: a.mips, ArrayLayers: 6,
		Format: driver.RGBA16f, Usage: driver.URenderTarget | driver.UShaderSample, DebugName: a.name,
		Sampling: bilinearClamp,
	})
	if err != nil {
		return nil, err
	}
	tex, err := p.device.GetTexture(res.Texture)
	if err != nil {
		return nil, err
	}

	vert, err := p.shaders.Load(a.vertSrc)
	if err != nil {
		return nil, err
	}
	frag, err := p.shaders.Load(a.fragSrc)
	if err != nil {
		return nil, err
	}

	for face := 0; face < 6; face++ {
		if err := p.renderCubeFace(cubeFaceArgs{
			image: tex.Image, face: face, mip: 0, size: a.size,
			vertCode: vert, fragCode: frag,
			srcView: a.srcView, srcSplr: a.srcSplr, drawCube: a.drawCube,
		}); err != nil {
			return nil, err
		}
	}
	return tex, nil
}

// cubeFaceArgs configures a single renderCubeFace call: one render
// pass targeting one face/mip of image, sampling a single bound
// source texture under the fixed view/projection for that face.
type cubeFaceArgs struct {
	image    driver.Image
	face     int
	mip      int
	size     int
	vertCode driver.ShaderCode
	fragCode driver.ShaderCode

	srcView driver.ImageView
	srcSplr driver.Sampler

	pushRoughness bool
	roughness     float32

	drawCube bool
}

// renderCubeFace is the workhorse every IBL cube pass (env projection,
// irradiance convolution, specular prefilter) reduces to: build a
// render pass/framebuffer/pipeline targeting a single face/mip view,
// bind the source environment texture plus a small per-face uniform
// buffer holding the view/projection matrices (and roughness, for the
// prefilter pass), and draw the unit cube once.
func (p *Precompute) renderCubeFace(a cubeFaceArgs) error {
	view, err := a.image.NewView(driver.IView2D, a.face, 1, a.mip, 1)
	if err != nil {
		return err
	}
	defer view.Destroy()

	rpDesc := gpu.RenderPassDesc{
		Color: []gpu.ColorAttachment{{Format: driver.RGBA16f, Load: driver.LClear, Store: driver.SStore}},
	}
	rpHandle, err := p.device.CreateRenderPass(rpDesc)
	if err != nil {
		return err
	}
	defer p.device.DestroyRenderPass(rpHandle)
	rp, err := p.device.GetRenderPass(rpHandle)
	if err != nil {
		return err
	}

	fbHandle, err := p.device.CreateFramebuffer(gpu.FramebufferDesc{
		Pass: rpHandle, Width: a.size, Height: a.size, Attachments: []driver.ImageView{view},
	})
	if err != nil {
		return err
	}
	defer p.device.DestroyFramebuffer(fbHandle)
	fb, err := p.device.GetFramebuffer(fbHandle)
	if err != nil {
		return err
	}

	uboSize := align256(128 + 16)
	uboHandle, err := p.device.CreateBuffer(gpu.BufferDesc{
		Size: uboSize, Visible: true, Usage: driver.UShaderConst, DebugName: "ibl_face_ubo",
	})
	if err != nil {
		return err
	}
	defer p.device.DestroyBuffer(uboHandle)
	ubo, err := p.device.GetBuffer(uboHandle)
	if err != nil {
		return err
	}
	data := ubo.Handle.Bytes()
	writeMatrix(data[0:64], View(CubeFace(a.face)))
	writeMatrix(data[64:128], Ortho())
	if a.pushRoughness {
		writeFloat(data[128:132], a.roughness)
	}

	heap, err := p.device.Driver().NewDescHeap([]driver.Descriptor{
		{Type: driver.DConstant, Stages: driver.SVertex | driver.SFragment, Nr: 0, Len: 1},
		{Type: driver.DTexture, Stages: driver.SFragment, Nr: 1, Len: 1},
		{Type: driver.DSampler, Stages: driver.SFragment, Nr: 2, Len: 1},
	})
	if err != nil {
		return err
	}
	defer heap.Destroy()
	if err := heap.New(1); err != nil {
		return err
	}
	heap.SetBuffer(0, 0, 0, []driver.Buffer{ubo.Handle}, []int64{0}, []int64{uboSize})
	if a.srcView != nil {
		heap.SetImage(0, 1, 0, []driver.ImageView{a.srcView})
		heap.SetSampler(0, 2, 0, []driver.Sampler{a.srcSplr})
	}

	table, err := p.device.Driver().NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		return err
	}
	defer table.Destroy()

	state := &driver.GraphState{
		VertFunc: driver.ShaderFunc{Code: a.vertCode, Name: "main"},
		FragFunc: driver.ShaderFunc{Code: a.fragCode, Name: "main"},
		Desc:     table,
		Input: []driver.VertexIn{
			{Format: driver.Float32x3, Stride: 12, Nr: 0, Name: "position"},
		},
		Topology: driver.TTriangle,
		Raster:   driver.RasterState{Clockwise: true, Cull: driver.CFront, Fill: driver.FFill},
		Samples:  1,
		Blend:    driver.BlendState{Color: []driver.ColorBlend{{WriteMask: driver.CAll}}},
		Pass:     rp.Handle,
	}
	plHandle, err := p.device.CreatePipeline(gpu.PipelineDesc{
		Graph: state, Pass: rpHandle, ColorFormats: []driver.PixelFmt{driver.RGBA16f},
	})
	if err != nil {
		return err
	}
	defer p.device.DestroyPipeline(plHandle)
	pl, err := p.device.GetPipeline(plHandle)
	if err != nil {
		return err
	}

	return p.device.ImmediateSubmit(func(cb driver.CmdBuffer) {
		cb.SetViewport([]driver.Viewport{{Width: float32(a.size), Height: float32(a.size), Zfar: 1}})
		cb.SetScissor([]driver.Scissor{{Width: a.size, Height: a.size}})
		cb.BeginPass(rp.Handle, fb.Handle, []driver.ClearValue{{Color: [4]float32{0, 0, 0, 0}}})
		cb.SetPipeline(pl.Handle)
		cb.SetDescTableGraph(table, 0, []int{0})
		if a.drawCube && p.cubeVerts != nil {
			cb.SetVertexBuf(0, []driver.Buffer{p.cubeVerts}, []int64{0})
			cb.SetIndexBuf(driver.Index16, p.cubeIdx, 0)
			cb.DrawIndexed(p.idxCount, 1, 0, 0, 0)
		}
		cb.EndPass()
	})
}

// Destroy releases the source equirectangular texture registered
// during Run; the final IBL outputs remain registered for the
// renderer to consume.
func (p *Precompute) Destroy() {
	if res, err := p.registry.GetResource("ibl_equirect_src"); err == nil {
		p.device.DestroyTexture(res.Texture)
	}
}
