// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package gpu

import (
	"fmt"

	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/internal/handle"
	"github.com/nyxforge/framegraph/internal/obslog"
)

// reserve is the default pool reserve capacity for every resource kind.
const reserve = 128

// Device is the GPU device wrapper. It owns the driver.GPU connection
// and a typed pool per resource kind, and is the single object threaded
// through the frame graph and every pass instead of a package-level
// singleton.
type Device struct {
	gpu driver.GPU

	textures    handle.Pool[Texture]
	buffers     handle.Pool[Buffer]
	renderPasses handle.Pool[RenderPass]
	framebuffers handle.Pool[Framebuffer]
	pipelines   handle.Pool[Pipeline]

	passCache map[renderPassKey]RenderPassHandle
}

// NewDevice wraps an already-open driver.GPU connection.
func NewDevice(g driver.GPU) *Device {
	return &Device{
		gpu:          g,
		textures:     handle.NewPool[Texture](reserve),
		buffers:      handle.NewPool[Buffer](reserve),
		renderPasses: handle.NewPool[RenderPass](reserve),
		framebuffers: handle.NewPool[Framebuffer](reserve),
		pipelines:    handle.NewPool[Pipeline](reserve),
		passCache:    make(map[renderPassKey]RenderPassHandle),
	}
}

// Driver returns the underlying driver.GPU, for callers (e.g. the
// external.Swapchain adapter) that need the raw connection.
func (d *Device) Driver() driver.GPU { return d.gpu }

// CreateTexture allocates a device image with one view per array layer
// plus an aggregate (cube or array) view, and a sampler. If desc.Data is
// non-empty it is uploaded via a staging buffer and the texture is left
// in a shader-readable layout.
func (d *Device) CreateTexture(desc TextureDesc) (TextureHandle, error) {
	if desc.MipLevels < 1 {
		desc.MipLevels = 1
	}
	if desc.ArrayLayers < 1 {
		desc.ArrayLayers = 1
	}
	img, err := d.gpu.NewImage(desc.Format, driver.Dim3D{Width: desc.Width, Height: desc.Height, Depth: 1},
		desc.ArrayLayers, desc.MipLevels, 1, desc.Usage|driver.UShaderSample)
	if err != nil {
		return TextureHandle(handle.Invalid), newGpuError("CreateTexture.NewImage", err)
	}

	layerViews := make([]driver.ImageView, desc.ArrayLayers)
	for i := range layerViews {
		v, err := img.NewView(driver.IView2D, i, 1, 0, desc.MipLevels)
		if err != nil {
			img.Destroy()
			return TextureHandle(handle.Invalid), newGpuError("CreateTexture.NewView", err)
		}
		layerViews[i] = v
	}

	aggType := driver.IView2D
	switch {
	case desc.ArrayLayers == 6:
		aggType = driver.IViewCube
	case desc.ArrayLayers > 1:
		aggType = driver.IView2DArray
	}
	agg, err := img.NewView(aggType, 0, desc.ArrayLayers, 0, desc.MipLevels)
	if err != nil {
		img.Destroy()
		return TextureHandle(handle.Invalid), newGpuError("CreateTexture.NewAggregateView", err)
	}

	splr, err := d.gpu.NewSampler(&desc.Sampling)
	if err != nil {
		img.Destroy()
		return TextureHandle(handle.Invalid), newGpuError("CreateTexture.NewSampler", err)
	}

	if len(desc.Data) > 0 {
		if err := d.uploadTexture(img, desc); err != nil {
			img.Destroy()
			return TextureHandle(handle.Invalid), err
		}
	}

	slot, h := d.textures.Obtain()
	*slot = Texture{Image: img, LayerViews: layerViews, AggregateView: agg, Sampler: splr, Desc: desc}
	return TextureHandle(h), nil
}

// uploadTexture stages desc.Data into img's first mip level of every
// layer and transitions the image to a shader-readable layout.
//
// Mip levels beyond 0 are left uninitialized: no mipmaps are
// generated.
func (d *Device) uploadTexture(img driver.Image, desc TextureDesc) error {
	staging, err := d.gpu.NewBuffer(int64(len(desc.Data)), true, driver.UGeneric)
	if err != nil {
		return newGpuError("CreateTexture.staging", err)
	}
	defer staging.Destroy()
	copy(staging.Bytes(), desc.Data)

	return d.immediateSubmit("CreateTexture.upload", func(cb driver.CmdBuffer) {
		cb.BeginBlit(true)
		cb.Transition([]driver.Transition{{
			Barrier:      driver.Barrier{SyncBefore: driver.SNone, SyncAfter: driver.SCopy, AccessBefore: 0, AccessAfter: driver.ACopyWrite},
			LayoutBefore: driver.LUndefined,
			LayoutAfter:  driver.LCopyDst,
			IView:        firstView(img, desc),
		}})
		perLayer := int64(len(desc.Data)) / int64(desc.ArrayLayers)
		for layer := 0; layer < desc.ArrayLayers; layer++ {
			cb.CopyBufToImg(&driver.BufImgCopy{
				Buf:    staging,
				BufOff: int64(layer) * perLayer,
				Img:    img,
				Layer:  layer,
				Level:  0,
				Size:   driver.Dim3D{Width: desc.Width, Height: desc.Height, Depth: 1},
			})
		}
		cb.Transition([]driver.Transition{{
			Barrier:      driver.Barrier{SyncBefore: driver.SCopy, SyncAfter: driver.SFragmentShading, AccessBefore: driver.ACopyWrite, AccessAfter: driver.AShaderRead},
			LayoutBefore: driver.LCopyDst,
			LayoutAfter:  driver.LShaderRead,
			IView:        firstView(img, desc),
		}})
		cb.EndBlit()
	})
}

// firstView is a transition helper: Transition keys off an ImageView's
// underlying image, so any view of the image being uploaded works.
func firstView(img driver.Image, desc TextureDesc) driver.ImageView {
	v, _ := img.NewView(driver.IView2D, 0, 1, 0, desc.MipLevels)
	return v
}

// immediateSubmit runs fn in a one-shot command buffer and blocks until
// the submission completes, reporting the originating operation name on
// failure.
func (d *Device) immediateSubmit(op string, fn func(driver.CmdBuffer)) error {
	cb, err := d.gpu.NewCmdBuffer()
	if err != nil {
		return newGpuError(op, err)
	}
	defer cb.Destroy()
	if err := cb.Begin(); err != nil {
		return newGpuError(op, err)
	}
	fn(cb)
	if err := cb.End(); err != nil {
		return newGpuError(op, err)
	}
	ch := make(chan error, 1)
	d.gpu.Commit([]driver.CmdBuffer{cb}, ch)
	if err := <-ch; err != nil {
		return newGpuError(op, err)
	}
	return nil
}

// ImmediateSubmit executes a one-shot transfer/compute command buffer
// synchronously. It is used only during resource creation and IBL
// precompute, and is the sole blocking call allowed outside Compile.
func (d *Device) ImmediateSubmit(fn func(driver.CmdBuffer)) error {
	return d.immediateSubmit("ImmediateSubmit", fn)
}

// GetTexture returns the pooled texture for h, or ErrInvalidHandle.
func (d *Device) GetTexture(h TextureHandle) (*Texture, error) {
	t := d.textures.Get(handle.Handle(h))
	if t == nil {
		return nil, ErrInvalidHandle
	}
	return t, nil
}

// DestroyTexture releases h's pool slot and destroys its GPU objects.
func (d *Device) DestroyTexture(h TextureHandle) {
	t := d.textures.Get(handle.Handle(h))
	if t == nil {
		return
	}
	t.Sampler.Destroy()
	t.AggregateView.Destroy()
	for _, v := range t.LayerViews {
		v.Destroy()
	}
	t.Image.Destroy()
	d.textures.Release(handle.Handle(h))
}

// CreateBuffer allocates a device or host-visible buffer.
func (d *Device) CreateBuffer(desc BufferDesc) (BufferHandle, error) {
	b, err := d.gpu.NewBuffer(desc.Size, desc.Visible, desc.Usage)
	if err != nil {
		return BufferHandle(handle.Invalid), newGpuError("CreateBuffer", err)
	}
	slot, h := d.buffers.Obtain()
	*slot = Buffer{Handle: b, Desc: desc}
	return BufferHandle(h), nil
}

// GetBuffer returns the pooled buffer for h, or ErrInvalidHandle.
func (d *Device) GetBuffer(h BufferHandle) (*Buffer, error) {
	b := d.buffers.Get(handle.Handle(h))
	if b == nil {
		return nil, ErrInvalidHandle
	}
	return b, nil
}

// DestroyBuffer releases h's pool slot and destroys its GPU buffer.
func (d *Device) DestroyBuffer(h BufferHandle) {
	b := d.buffers.Get(handle.Handle(h))
	if b == nil {
		return
	}
	b.Handle.Destroy()
	d.buffers.Release(handle.Handle(h))
}

// renderPassKey is the hash key used to deduplicate structurally
// identical render passes, per spec's "hashes config; may return an
// existing identical render pass" requirement.
type renderPassKey struct {
	colors    string
	hasDepth  bool
	depth     driver.PixelFmt
	depthLoad driver.LoadOp
}

func keyOf(desc RenderPassDesc) renderPassKey {
	k := renderPassKey{hasDepth: desc.HasDepth, depth: desc.Depth.Format, depthLoad: desc.Depth.Load}
	for _, c := range desc.Color {
		k.colors += fmt.Sprintf("%d/%d/%d;", c.Format, c.Load, c.Store)
	}
	return k
}

// CreateRenderPass creates a render pass, or returns the handle of an
// existing structurally identical one.
func (d *Device) CreateRenderPass(desc RenderPassDesc) (RenderPassHandle, error) {
	key := keyOf(desc)
	if h, ok := d.passCache[key]; ok {
		return h, nil
	}

	att := make([]driver.Attachment, 0, len(desc.Color)+1)
	for _, c := range desc.Color {
		att = append(att, driver.Attachment{Format: c.Format, Samples: 1, Load: [2]driver.LoadOp{c.Load, driver.LDontCare}, Store: [2]driver.StoreOp{c.Store, driver.SDontCare}})
	}
	ds := -1
	if desc.HasDepth {
		ds = len(att)
		att = append(att, driver.Attachment{Format: desc.Depth.Format, Samples: 1, Load: [2]driver.LoadOp{desc.Depth.Load, driver.LDontCare}, Store: [2]driver.StoreOp{driver.SStore, driver.SDontCare}})
	}
	colorIdx := make([]int, len(desc.Color))
	for i := range colorIdx {
		colorIdx[i] = i
	}
	sub := []driver.Subpass{{Color: colorIdx, DS: ds, Wait: true}}

	rp, err := d.gpu.NewRenderPass(att, sub)
	if err != nil {
		return RenderPassHandle(handle.Invalid), newGpuError("CreateRenderPass", err)
	}
	slot, h := d.renderPasses.Obtain()
	*slot = RenderPass{Handle: rp, Desc: desc}
	rh := RenderPassHandle(h)
	d.passCache[key] = rh
	return rh, nil
}

// GetRenderPass returns the pooled render pass for h, or ErrInvalidHandle.
func (d *Device) GetRenderPass(h RenderPassHandle) (*RenderPass, error) {
	rp := d.renderPasses.Get(handle.Handle(h))
	if rp == nil {
		return nil, ErrInvalidHandle
	}
	return rp, nil
}

// DestroyRenderPass releases h's pool slot and destroys its GPU render
// pass, removing it from the dedup cache.
func (d *Device) DestroyRenderPass(h RenderPassHandle) {
	rp := d.renderPasses.Get(handle.Handle(h))
	if rp == nil {
		return
	}
	for k, v := range d.passCache {
		if v == h {
			delete(d.passCache, k)
		}
	}
	rp.Handle.Destroy()
	d.renderPasses.Release(handle.Handle(h))
}

// CreateFramebuffer binds a set of attachments to a render pass at a
// fixed extent. It rejects an attachment count that differs from the
// render pass's and a non-positive extent; the attachments' own
// extents are not checked against desc's.
func (d *Device) CreateFramebuffer(desc FramebufferDesc) (FramebufferHandle, error) {
	rp, err := d.GetRenderPass(desc.Pass)
	if err != nil {
		return FramebufferHandle(handle.Invalid), err
	}
	wantAtt := len(rp.Desc.Color)
	if rp.Desc.HasDepth {
		wantAtt++
	}
	if len(desc.Attachments) != wantAtt {
		return FramebufferHandle(handle.Invalid), &InvalidConfig{Reason: fmt.Sprintf(
			"framebuffer %q: got %d attachments, render pass wants %d", desc.DebugName, len(desc.Attachments), wantAtt)}
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return FramebufferHandle(handle.Invalid), &InvalidConfig{Reason: fmt.Sprintf(
			"framebuffer %q: invalid extent %dx%d", desc.DebugName, desc.Width, desc.Height)}
	}
	fb, err := rp.Handle.NewFB(desc.Attachments, desc.Width, desc.Height, 1)
	if err != nil {
		return FramebufferHandle(handle.Invalid), newGpuError("CreateFramebuffer", err)
	}
	slot, h := d.framebuffers.Obtain()
	*slot = Framebuffer{Handle: fb, Desc: desc}
	obslog.L.Debug("framebuffer created", "name", desc.DebugName, "width", desc.Width, "height", desc.Height)
	return FramebufferHandle(h), nil
}

// GetFramebuffer returns the pooled framebuffer for h, or ErrInvalidHandle.
func (d *Device) GetFramebuffer(h FramebufferHandle) (*Framebuffer, error) {
	fb := d.framebuffers.Get(handle.Handle(h))
	if fb == nil {
		return nil, ErrInvalidHandle
	}
	return fb, nil
}

// DestroyFramebuffer releases h's pool slot and destroys its GPU
// framebuffer.
func (d *Device) DestroyFramebuffer(h FramebufferHandle) {
	fb := d.framebuffers.Get(handle.Handle(h))
	if fb == nil {
		return
	}
	fb.Handle.Destroy()
	d.framebuffers.Release(handle.Handle(h))
}

// CreatePipeline validates that the pipeline's color/depth formats
// agree with its target render pass, then compiles it.
func (d *Device) CreatePipeline(desc PipelineDesc) (PipelineHandle, error) {
	if desc.Graph != nil {
		rp, err := d.GetRenderPass(desc.Pass)
		if err != nil {
			return PipelineHandle(handle.Invalid), err
		}
		if err := validateFormats(desc, rp.Desc); err != nil {
			return PipelineHandle(handle.Invalid), err
		}
	}
	if desc.Graph == nil {
		return PipelineHandle(handle.Invalid), &InvalidConfig{Reason: "pipeline desc has no Graph state"}
	}
	pl, err := d.gpu.NewPipeline(any(desc.Graph))
	if err != nil {
		return PipelineHandle(handle.Invalid), newGpuError("CreatePipeline", err)
	}
	slot, h := d.pipelines.Obtain()
	*slot = Pipeline{Handle: pl, Desc: desc}
	return PipelineHandle(h), nil
}

func validateFormats(desc PipelineDesc, rpDesc RenderPassDesc) error {
	if len(desc.ColorFormats) != len(rpDesc.Color) {
		return &InvalidConfig{Reason: fmt.Sprintf(
			"pipeline %q: %d color formats, render pass has %d", desc.DebugName, len(desc.ColorFormats), len(rpDesc.Color))}
	}
	for i, f := range desc.ColorFormats {
		if f != rpDesc.Color[i].Format {
			return &InvalidConfig{Reason: fmt.Sprintf(
				"pipeline %q: color[%d] format %d does not match render pass format %d", desc.DebugName, i, f, rpDesc.Color[i].Format)}
		}
	}
	if desc.HasDepth != rpDesc.HasDepth || (desc.HasDepth && desc.DepthFormat != rpDesc.Depth.Format) {
		return &InvalidConfig{Reason: fmt.Sprintf("pipeline %q: depth format mismatch", desc.DebugName)}
	}
	return nil
}

// GetPipeline returns the pooled pipeline for h, or ErrInvalidHandle.
func (d *Device) GetPipeline(h PipelineHandle) (*Pipeline, error) {
	p := d.pipelines.Get(handle.Handle(h))
	if p == nil {
		return nil, ErrInvalidHandle
	}
	return p, nil
}

// DestroyPipeline releases h's pool slot and destroys its GPU pipeline.
func (d *Device) DestroyPipeline(h PipelineHandle) {
	p := d.pipelines.Get(handle.Handle(h))
	if p == nil {
		return
	}
	p.Handle.Destroy()
	d.pipelines.Release(handle.Handle(h))
}
