// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package registry_test

import (
	"errors"
	"testing"

	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/registry"
)

type fakeGPU struct{ destroyed int }

type fakeDriverHandle struct{}

func (fakeDriverHandle) Name() string             { return "fake" }
func (fakeDriverHandle) Open() (driver.GPU, error) { return &fakeGPU{}, nil }
func (fakeDriverHandle) Close()                    {}

type fakeDestroyer struct{ g *fakeGPU }

func (d fakeDestroyer) Destroy() { d.g.destroyed++ }

func (g *fakeGPU) Driver() driver.Driver                            { return fakeDriverHandle{} }
func (g *fakeGPU) Commit(cb []driver.CmdBuffer, ch chan<- error)    { ch <- nil }
func (g *fakeGPU) NewCmdBuffer() (driver.CmdBuffer, error)          { return nil, errors.New("unused") }
func (g *fakeGPU) NewShaderCode([]byte) (driver.ShaderCode, error)  { return fakeDestroyer{g}, nil }
func (g *fakeGPU) NewDescHeap([]driver.Descriptor) (driver.DescHeap, error) {
	return nil, errors.New("unused")
}
func (g *fakeGPU) NewDescTable([]driver.DescHeap) (driver.DescTable, error) {
	return fakeDestroyer{g}, nil
}
func (g *fakeGPU) NewPipeline(any) (driver.Pipeline, error)        { return fakeDestroyer{g}, nil }
func (g *fakeGPU) NewSampler(*driver.Sampling) (driver.Sampler, error) { return fakeDestroyer{g}, nil }

func (g *fakeGPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	return &fakeBuffer{g: g, data: make([]byte, size), visible: visible}, nil
}

func (g *fakeGPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	return &fakeImage{g: g}, nil
}

func (g *fakeGPU) NewRenderPass([]driver.Attachment, []driver.Subpass) (driver.RenderPass, error) {
	return nil, errors.New("unused")
}

func (g *fakeGPU) Limits() driver.Limits { return driver.Limits{} }

type fakeImage struct{ g *fakeGPU }

func (i *fakeImage) Destroy() { i.g.destroyed++ }
func (i *fakeImage) NewView(driver.ViewType, int, int, int, int) (driver.ImageView, error) {
	return fakeDestroyer{i.g}, nil
}

type fakeBuffer struct {
	g       *fakeGPU
	data    []byte
	visible bool
}

func (b *fakeBuffer) Destroy()      { b.g.destroyed++ }
func (b *fakeBuffer) Visible() bool { return b.visible }
func (b *fakeBuffer) Cap() int64    { return int64(len(b.data)) }
func (b *fakeBuffer) Bytes() []byte { return b.data }

func newRegistry() (*registry.Registry, *fakeGPU) {
	g := &fakeGPU{}
	d := gpu.NewDevice(g)
	return registry.New(d), g
}

func TestCreateTextureRegistersByName(t *testing.T) {
	r, _ := newRegistry()
	res, err := r.CreateTexture("albedo", registry.KindTexture, gpu.TextureDesc{Width: 4, Height: 4, Format: driver.RGBA8un})
	if err != nil {
		t.Fatalf("CreateTexture:\nhave %v\nwant nil", err)
	}
	got, err := r.GetResource("albedo")
	if err != nil {
		t.Fatalf("GetResource:\nhave %v\nwant nil", err)
	}
	if got != res {
		t.Fatalf("GetResource: identity:\nhave %p\nwant %p", got, res)
	}
}

func TestGetResourceNotFound(t *testing.T) {
	r, _ := newRegistry()
	_, err := r.GetResource("missing")
	if !errors.Is(err, gpu.ErrResourceNotFound) {
		t.Fatalf("GetResource:\nhave %v\nwant %v", err, gpu.ErrResourceNotFound)
	}
}

func TestCreateTextureReplaceDestroysOldBinding(t *testing.T) {
	r, g := newRegistry()
	if _, err := r.CreateTexture("albedo", registry.KindTexture, gpu.TextureDesc{Width: 4, Height: 4, Format: driver.RGBA8un}); err != nil {
		t.Fatalf("CreateTexture:\nhave %v\nwant nil", err)
	}
	before := g.destroyed
	if _, err := r.CreateTexture("albedo", registry.KindTexture, gpu.TextureDesc{Width: 8, Height: 8, Format: driver.RGBA8un}); err != nil {
		t.Fatalf("CreateTexture (replace):\nhave %v\nwant nil", err)
	}
	if g.destroyed <= before {
		t.Fatalf("CreateTexture: replace destroy count:\nhave %d\nwant > %d", g.destroyed, before)
	}
}

func TestAddExternalResourceSurvivesCleanup(t *testing.T) {
	r, g := newRegistry()
	h, err := gpuCreateBuffer(r, g)
	if err != nil {
		t.Fatalf("setup: CreateTexture:\nhave %v\nwant nil", err)
	}
	r.AddExternalResource("camera_ubo", registry.Resource{Kind: registry.KindBuffer, Buffer: h})
	r.Cleanup()
	if _, err := r.GetResource("camera_ubo"); err != nil {
		t.Fatalf("GetResource after Cleanup:\nhave %v\nwant nil (external resources survive)", err)
	}
}

// gpuCreateBuffer is a helper that creates a throwaway buffer via the
// registry's underlying device, for the external-resource test above.
func gpuCreateBuffer(r *registry.Registry, g *fakeGPU) (gpu.BufferHandle, error) {
	d := gpu.NewDevice(g)
	return d.CreateBuffer(gpu.BufferDesc{Size: 256, Visible: true})
}

func TestCleanupDestroysNonExternalResources(t *testing.T) {
	r, g := newRegistry()
	if _, err := r.CreateTexture("albedo", registry.KindTexture, gpu.TextureDesc{Width: 4, Height: 4, Format: driver.RGBA8un}); err != nil {
		t.Fatalf("CreateTexture:\nhave %v\nwant nil", err)
	}
	before := g.destroyed
	r.Cleanup()
	if g.destroyed <= before {
		t.Fatalf("Cleanup: destroy count:\nhave %d\nwant > %d", g.destroyed, before)
	}
	if _, err := r.GetResource("albedo"); !errors.Is(err, gpu.ErrResourceNotFound) {
		t.Fatalf("GetResource after Cleanup:\nhave %v\nwant %v", err, gpu.ErrResourceNotFound)
	}
}
