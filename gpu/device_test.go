// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package gpu_test

import (
	"testing"

	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/gpu"
)

// fakeGPU is a minimal in-memory driver.GPU, just enough surface for
// Device's bookkeeping (handle pooling, render-pass dedup, format
// validation) to be exercised without a real connection.
type fakeGPU struct{}

type fakeDriverHandle struct{}

func (fakeDriverHandle) Name() string             { return "fake" }
func (fakeDriverHandle) Open() (driver.GPU, error) { return fakeGPU{}, nil }
func (fakeDriverHandle) Close()                    {}

type fakeDestroyer struct{}

func (fakeDestroyer) Destroy() {}

func (fakeGPU) Driver() driver.Driver                              { return fakeDriverHandle{} }
func (fakeGPU) Commit(cb []driver.CmdBuffer, ch chan<- error)      { ch <- nil }
func (fakeGPU) NewCmdBuffer() (driver.CmdBuffer, error)            { return &fakeCmdBuffer{}, nil }
func (fakeGPU) NewShaderCode(data []byte) (driver.ShaderCode, error) { return fakeDestroyer{}, nil }
func (fakeGPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &fakeDescHeap{}, nil
}
func (fakeGPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) { return fakeDestroyer{}, nil }
func (fakeGPU) NewPipeline(state any) (driver.Pipeline, error)             { return fakeDestroyer{}, nil }
func (fakeGPU) NewSampler(s *driver.Sampling) (driver.Sampler, error)      { return fakeDestroyer{}, nil }

func (fakeGPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	return &fakeBuffer{data: make([]byte, size), visible: visible}, nil
}

func (fakeGPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	return &fakeImage{}, nil
}

func (fakeGPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	return &fakeRenderPass{}, nil
}

func (fakeGPU) Limits() driver.Limits {
	return driver.Limits{MaxImage2D: 16384, MaxImageCube: 16384, MaxLayers: 2048, MaxColorTargets: 8}
}

type fakeImage struct{}

func (*fakeImage) Destroy() {}
func (*fakeImage) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	return fakeDestroyer{}, nil
}

type fakeRenderPass struct{}

func (*fakeRenderPass) Destroy() {}
func (*fakeRenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	return &fakeFramebuf{width: width, height: height}, nil
}

type fakeFramebuf struct{ width, height int }

func (*fakeFramebuf) Destroy() {}

type fakeBuffer struct {
	data    []byte
	visible bool
}

func (b *fakeBuffer) Destroy()      {}
func (b *fakeBuffer) Visible() bool { return b.visible }
func (b *fakeBuffer) Cap() int64    { return int64(len(b.data)) }
func (b *fakeBuffer) Bytes() []byte {
	if !b.visible {
		return nil
	}
	return b.data
}

type fakeDescHeap struct{ n int }

func (h *fakeDescHeap) Destroy()                                                         {}
func (h *fakeDescHeap) New(n int) error                                                  { h.n = n; return nil }
func (h *fakeDescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {}
func (h *fakeDescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView)                {}
func (h *fakeDescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler)              {}
func (h *fakeDescHeap) Count() int                                                        { return h.n }

type fakeCmdBuffer struct{}

func (*fakeCmdBuffer) Destroy()                                                                {}
func (*fakeCmdBuffer) Begin() error                                                            { return nil }
func (*fakeCmdBuffer) BeginPass(driver.RenderPass, driver.Framebuf, []driver.ClearValue)       {}
func (*fakeCmdBuffer) NextSubpass()                                                            {}
func (*fakeCmdBuffer) EndPass()                                                                {}
func (*fakeCmdBuffer) BeginBlit(bool)                                                          {}
func (*fakeCmdBuffer) EndBlit()                                                                {}
func (*fakeCmdBuffer) SetPipeline(driver.Pipeline)                                             {}
func (*fakeCmdBuffer) SetViewport([]driver.Viewport)                                           {}
func (*fakeCmdBuffer) SetScissor([]driver.Scissor)                                             {}
func (*fakeCmdBuffer) SetBlendColor(float32, float32, float32, float32)                        {}
func (*fakeCmdBuffer) SetStencilRef(uint32)                                                    {}
func (*fakeCmdBuffer) SetVertexBuf(int, []driver.Buffer, []int64)                              {}
func (*fakeCmdBuffer) SetIndexBuf(driver.IndexFmt, driver.Buffer, int64)                        {}
func (*fakeCmdBuffer) SetDescTableGraph(driver.DescTable, int, []int)                          {}
func (*fakeCmdBuffer) Draw(int, int, int, int)                                                 {}
func (*fakeCmdBuffer) DrawIndexed(int, int, int, int, int)                                     {}
func (*fakeCmdBuffer) CopyBuffer(*driver.BufferCopy)                                           {}
func (*fakeCmdBuffer) CopyImage(*driver.ImageCopy)                                             {}
func (*fakeCmdBuffer) CopyBufToImg(*driver.BufImgCopy)                                         {}
func (*fakeCmdBuffer) CopyImgToBuf(*driver.BufImgCopy)                                         {}
func (*fakeCmdBuffer) Fill(driver.Buffer, int64, byte, int64)                                  {}
func (*fakeCmdBuffer) Barrier([]driver.Barrier)                                                {}
func (*fakeCmdBuffer) Transition([]driver.Transition)                                          {}
func (*fakeCmdBuffer) End() error                                                              { return nil }
func (*fakeCmdBuffer) Reset() error                                                            { return nil }

func newDevice() *gpu.Device { return gpu.NewDevice(fakeGPU{}) }

func TestCreateTextureDefaultsMipsAndLayers(t *testing.T) {
	d := newDevice()
	h, err := d.CreateTexture(gpu.TextureDesc{Width: 4, Height: 4, Format: driver.RGBA8un})
	if err != nil {
		t.Fatalf("CreateTexture:\nhave %v\nwant nil", err)
	}
	tex, err := d.GetTexture(h)
	if err != nil {
		t.Fatalf("GetTexture:\nhave %v\nwant nil", err)
	}
	if tex.Desc.MipLevels != 1 || tex.Desc.ArrayLayers != 1 {
		t.Fatalf("CreateTexture: MipLevels/ArrayLayers:\nhave %d/%d\nwant 1/1", tex.Desc.MipLevels, tex.Desc.ArrayLayers)
	}
}

func TestDestroyTextureInvalidatesHandle(t *testing.T) {
	d := newDevice()
	h, err := d.CreateTexture(gpu.TextureDesc{Width: 4, Height: 4, Format: driver.RGBA8un})
	if err != nil {
		t.Fatalf("CreateTexture:\nhave %v\nwant nil", err)
	}
	d.DestroyTexture(h)
	if _, err := d.GetTexture(h); err != gpu.ErrInvalidHandle {
		t.Fatalf("GetTexture after destroy:\nhave %v\nwant %v", err, gpu.ErrInvalidHandle)
	}
}

func TestCreateRenderPassDeduplicatesIdenticalDescs(t *testing.T) {
	d := newDevice()
	desc := gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.RGBA8un, Load: driver.LClear, Store: driver.SStore}}}
	h1, err := d.CreateRenderPass(desc)
	if err != nil {
		t.Fatalf("CreateRenderPass:\nhave %v\nwant nil", err)
	}
	h2, err := d.CreateRenderPass(desc)
	if err != nil {
		t.Fatalf("CreateRenderPass (repeat):\nhave %v\nwant nil", err)
	}
	if h1 != h2 {
		t.Fatalf("CreateRenderPass: dedup handles:\nhave %v, %v\nwant identical", h1, h2)
	}
}

func TestCreateRenderPassDistinguishesDescs(t *testing.T) {
	d := newDevice()
	h1, err := d.CreateRenderPass(gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.RGBA8un, Load: driver.LClear, Store: driver.SStore}}})
	if err != nil {
		t.Fatalf("CreateRenderPass:\nhave %v\nwant nil", err)
	}
	h2, err := d.CreateRenderPass(gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.RGBA16f, Load: driver.LClear, Store: driver.SStore}}})
	if err != nil {
		t.Fatalf("CreateRenderPass:\nhave %v\nwant nil", err)
	}
	if h1 == h2 {
		t.Fatal("CreateRenderPass: expected distinct handles for distinct formats, got the same one")
	}
}

func TestCreateFramebufferRejectsAttachmentCountMismatch(t *testing.T) {
	d := newDevice()
	rp, err := d.CreateRenderPass(gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.RGBA8un, Load: driver.LClear, Store: driver.SStore}}})
	if err != nil {
		t.Fatalf("CreateRenderPass:\nhave %v\nwant nil", err)
	}
	_, err = d.CreateFramebuffer(gpu.FramebufferDesc{Pass: rp, Width: 8, Height: 8})
	var ic *gpu.InvalidConfig
	if err == nil {
		t.Fatal("CreateFramebuffer:\nhave nil\nwant InvalidConfig")
	}
	if !asInvalidConfig(err, &ic) {
		t.Fatalf("CreateFramebuffer: error type:\nhave %T\nwant *gpu.InvalidConfig", err)
	}
}

func TestCreateFramebufferRejectsZeroExtent(t *testing.T) {
	d := newDevice()
	rp, err := d.CreateRenderPass(gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.RGBA8un, Load: driver.LClear, Store: driver.SStore}}})
	if err != nil {
		t.Fatalf("CreateRenderPass:\nhave %v\nwant nil", err)
	}
	_, err = d.CreateFramebuffer(gpu.FramebufferDesc{Pass: rp, Width: 0, Height: 8, Attachments: []driver.ImageView{fakeDestroyer{}}})
	var ic *gpu.InvalidConfig
	if err == nil || !asInvalidConfig(err, &ic) {
		t.Fatalf("CreateFramebuffer: zero extent:\nhave %v\nwant *gpu.InvalidConfig", err)
	}
}

func TestCreatePipelineRejectsColorFormatMismatch(t *testing.T) {
	d := newDevice()
	rp, err := d.CreateRenderPass(gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.RGBA8un, Load: driver.LClear, Store: driver.SStore}}})
	if err != nil {
		t.Fatalf("CreateRenderPass:\nhave %v\nwant nil", err)
	}
	_, err = d.CreatePipeline(gpu.PipelineDesc{
		Graph:        &driver.GraphState{Pass: nil},
		Pass:         rp,
		ColorFormats: []driver.PixelFmt{driver.RGBA16f},
	})
	var ic *gpu.InvalidConfig
	if err == nil || !asInvalidConfig(err, &ic) {
		t.Fatalf("CreatePipeline: format mismatch:\nhave %v\nwant *gpu.InvalidConfig", err)
	}
}

func asInvalidConfig(err error, target **gpu.InvalidConfig) bool {
	ic, ok := err.(*gpu.InvalidConfig)
	if !ok {
		return false
	}
	*target = ic
	return true
}
