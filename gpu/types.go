// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package gpu

import (
	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/internal/handle"
)

// TextureHandle, BufferHandle, RenderPassHandle, FramebufferHandle and
// PipelineHandle are distinct handle kinds, each indexing its own pool,
// so that a Texture handle can never be mistaken for a Buffer handle at
// the type level.
type (
	TextureHandle     handle.Handle
	BufferHandle      handle.Handle
	RenderPassHandle  handle.Handle
	FramebufferHandle handle.Handle
	PipelineHandle    handle.Handle
)

// Invalid is the shared sentinel value for every handle kind above.
const Invalid = handle.Invalid

// TextureDesc describes a texture to be created by Device.CreateTexture.
type TextureDesc struct {
	Width, Height int
	MipLevels     int
	ArrayLayers   int
	Format        driver.PixelFmt
	Usage         driver.Usage
	Sampling      driver.Sampling
	// Data, if non-empty, is uploaded via a staging buffer and the
	// texture is transitioned to a shader-readable layout. Only mip
	// level 0 of each layer is filled; mipmaps are not generated, and
	// levels beyond 0 are left uninitialized when MipLevels > 1.
	Data []byte

	DebugName string
}

// Texture is a created GPU texture: the device image, one view per
// array layer, an aggregate view (cube or array, depending on
// ArrayLayers), and a sampler.
type Texture struct {
	Image         driver.Image
	LayerViews    []driver.ImageView
	AggregateView driver.ImageView
	Sampler       driver.Sampler
	Desc          TextureDesc
}

// BufferDesc describes a buffer to be created by Device.CreateBuffer.
type BufferDesc struct {
	Size    int64
	Usage   driver.Usage
	Visible bool

	DebugName string
}

// Buffer is a created GPU buffer.
type Buffer struct {
	Handle driver.Buffer
	Desc   BufferDesc
}

// ColorAttachment describes one color attachment of a render pass.
type ColorAttachment struct {
	Format        driver.PixelFmt
	Load          driver.LoadOp
	Store         driver.StoreOp
	ClearColor    [4]float32
}

// DepthAttachment describes the optional depth attachment of a render
// pass.
type DepthAttachment struct {
	Format     driver.PixelFmt
	Load       driver.LoadOp
	ClearDepth float32
}

// RenderPassDesc describes a render pass to be created by
// Device.CreateRenderPass. It is hashable via keyOf so that
// structurally identical descriptors can share a single driver.RenderPass.
type RenderPassDesc struct {
	Color    []ColorAttachment
	HasDepth bool
	Depth    DepthAttachment

	DebugName string
}

// RenderPass is a created render pass.
type RenderPass struct {
	Handle driver.RenderPass
	Desc   RenderPassDesc
}

// FramebufferDesc describes a framebuffer to be created by
// Device.CreateFramebuffer.
type FramebufferDesc struct {
	Pass            RenderPassHandle
	Width, Height   int
	Attachments     []driver.ImageView

	DebugName string
}

// Framebuffer is a created framebuffer.
type Framebuffer struct {
	Handle driver.Framebuf
	Desc   FramebufferDesc
}

// PipelineDesc describes a pipeline to be created by
// Device.CreatePipeline. Graph must be set.
type PipelineDesc struct {
	Graph *driver.GraphState

	// Pass names the render pass Graph.Pass was derived from, so
	// CreatePipeline can look up its RenderPassDesc and validate
	// ColorFormats/DepthFormat against it before handing the state to
	// the driver.
	Pass RenderPassHandle

	// ColorFormats/DepthFormat restate the formats the pipeline's
	// fragment output is configured for.
	ColorFormats []driver.PixelFmt
	HasDepth     bool
	DepthFormat  driver.PixelFmt

	DebugName string
}

// Pipeline is a created pipeline.
type Pipeline struct {
	Handle driver.Pipeline
	Desc   PipelineDesc
}
