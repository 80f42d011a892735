// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package graph_test

import (
	"github.com/nyxforge/framegraph/driver"
)

// fakeGPU is an in-memory, no-op driver.GPU used to exercise the frame
// graph's compile/execute bookkeeping without a real device, the same
// way the teacher's wsi_dummy.go stands in for a real window when no
// display is available.
type fakeGPU struct {
	drv fakeDriverHandle
}

type fakeDriverHandle struct{}

func (fakeDriverHandle) Name() string                  { return "fake" }
func (fakeDriverHandle) Open() (driver.GPU, error)      { return &fakeGPU{}, nil }
func (fakeDriverHandle) Close()                         {}

func newFakeGPU() *fakeGPU { return &fakeGPU{} }

func (g *fakeGPU) Driver() driver.Driver { return g.drv }

func (g *fakeGPU) Commit(cb []driver.CmdBuffer, ch chan<- error) { ch <- nil }

func (g *fakeGPU) NewCmdBuffer() (driver.CmdBuffer, error) { return &fakeCmdBuffer{}, nil }

func (g *fakeGPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	return &fakeRenderPass{attCount: len(att)}, nil
}

func (g *fakeGPU) NewShaderCode(data []byte) (driver.ShaderCode, error) { return fakeDestroyer{}, nil }

func (g *fakeGPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &fakeDescHeap{}, nil
}

func (g *fakeGPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	return fakeDestroyer{}, nil
}

func (g *fakeGPU) NewPipeline(state any) (driver.Pipeline, error) { return fakeDestroyer{}, nil }

func (g *fakeGPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	return &fakeBuffer{data: make([]byte, size), visible: visible}, nil
}

func (g *fakeGPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	return &fakeImage{pf: pf, size: size, layers: layers, levels: levels}, nil
}

func (g *fakeGPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) { return fakeDestroyer{}, nil }

func (g *fakeGPU) Limits() driver.Limits {
	return driver.Limits{MaxImage2D: 16384, MaxImageCube: 16384, MaxLayers: 2048, MaxColorTargets: 8}
}

// fakeDestroyer satisfies every driver interface whose only method is
// Destroy (ShaderCode, DescTable, Pipeline, Sampler).
type fakeDestroyer struct{}

func (fakeDestroyer) Destroy() {}

type fakeImage struct {
	pf             driver.PixelFmt
	size           driver.Dim3D
	layers, levels int
}

func (i *fakeImage) Destroy() {}

func (i *fakeImage) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	return &fakeImageView{img: i, layer: layer, layers: layers, level: level, levels: levels}, nil
}

type fakeImageView struct {
	img                    *fakeImage
	layer, layers          int
	level, levels          int
}

func (v *fakeImageView) Destroy() {}

type fakeRenderPass struct {
	attCount int
}

func (r *fakeRenderPass) Destroy() {}

func (r *fakeRenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	return &fakeFramebuf{views: iv, width: width, height: height, layers: layers}, nil
}

type fakeFramebuf struct {
	views               []driver.ImageView
	width, height, layers int
}

func (f *fakeFramebuf) Destroy() {}

type fakeBuffer struct {
	data    []byte
	visible bool
}

func (b *fakeBuffer) Destroy()       {}
func (b *fakeBuffer) Visible() bool  { return b.visible }
func (b *fakeBuffer) Cap() int64     { return int64(len(b.data)) }
func (b *fakeBuffer) Bytes() []byte {
	if !b.visible {
		return nil
	}
	return b.data
}

type fakeDescHeap struct{ n int }

func (h *fakeDescHeap) Destroy()                                                        {}
func (h *fakeDescHeap) New(n int) error                                                 { h.n = n; return nil }
func (h *fakeDescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {}
func (h *fakeDescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView)               {}
func (h *fakeDescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler)             {}
func (h *fakeDescHeap) Count() int                                                       { return h.n }

// fakeCmdBuffer records the sequence of BeginPass calls (render pass +
// framebuffer) so tests can assert on what Execute actually recorded,
// and no-ops everything else.
type fakeCmdBuffer struct {
	passes []fakeRecordedPass
}

type fakeRecordedPass struct {
	pass driver.RenderPass
	fb   driver.Framebuf
}

func (c *fakeCmdBuffer) Destroy() {}
func (c *fakeCmdBuffer) Begin() error { return nil }
func (c *fakeCmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	c.passes = append(c.passes, fakeRecordedPass{pass: pass, fb: fb})
}
func (c *fakeCmdBuffer) NextSubpass()                                       {}
func (c *fakeCmdBuffer) EndPass()                                           {}
func (c *fakeCmdBuffer) BeginBlit(wait bool)                                {}
func (c *fakeCmdBuffer) EndBlit()                                           {}
func (c *fakeCmdBuffer) SetPipeline(pl driver.Pipeline)                     {}
func (c *fakeCmdBuffer) SetViewport(vp []driver.Viewport)                  {}
func (c *fakeCmdBuffer) SetScissor(sciss []driver.Scissor)                 {}
func (c *fakeCmdBuffer) SetBlendColor(r, g, b, a float32)                  {}
func (c *fakeCmdBuffer) SetStencilRef(value uint32)                        {}
func (c *fakeCmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {}
func (c *fakeCmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {}
func (c *fakeCmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {}
func (c *fakeCmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int)                   {}
func (c *fakeCmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)     {}
func (c *fakeCmdBuffer) CopyBuffer(param *driver.BufferCopy)                                 {}
func (c *fakeCmdBuffer) CopyImage(param *driver.ImageCopy)                                   {}
func (c *fakeCmdBuffer) CopyBufToImg(param *driver.BufImgCopy)                               {}
func (c *fakeCmdBuffer) CopyImgToBuf(param *driver.BufImgCopy)                               {}
func (c *fakeCmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64)           {}
func (c *fakeCmdBuffer) Barrier(b []driver.Barrier)                                          {}
func (c *fakeCmdBuffer) Transition(t []driver.Transition)                                    {}
func (c *fakeCmdBuffer) End() error                                                          { return nil }
func (c *fakeCmdBuffer) Reset() error                                                        { c.passes = nil; return nil }
