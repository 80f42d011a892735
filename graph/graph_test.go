// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package graph_test

import (
	"errors"
	"testing"

	"github.com/nyxforge/framegraph/driver"
	"github.com/nyxforge/framegraph/external"
	"github.com/nyxforge/framegraph/gpu"
	"github.com/nyxforge/framegraph/graph"
	"github.com/nyxforge/framegraph/registry"
)

func newTestGraph() (*graph.FrameGraph, *gpu.Device) {
	d := gpu.NewDevice(newFakeGPU())
	return graph.New(d), d
}

// minimalPass writes a single color output of the given format/extent
// and reads nothing, mirroring S1's "minimal graph" scenario.
type minimalPass struct {
	graph.PassBase
	format driver.PixelFmt
	out    *graph.LogicalResource
}

func (p *minimalPass) Setup(g *graph.FrameGraph) {
	out, err := g.CreateResource("out", registry.KindTexture, gpu.TextureDesc{
		Width: p.Width, Height: p.Height, Format: p.format,
		Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	p.out = out
	g.WriteResource(out, driver.LClear, driver.SStore)
}

func (p *minimalPass) Init() error {
	rpDesc := gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: p.format, Load: driver.LClear, Store: driver.SStore}}}
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}
	table, err := p.Device.Driver().NewDescTable(nil)
	if err != nil {
		return err
	}
	p.DescTable = table
	state := &driver.GraphState{
		Topology: driver.TTriangle,
		Desc:     table,
		Pass:     p.RenderPass,
	}
	if err := p.CreatePipeline(gpu.PipelineDesc{
		Graph: state, Pass: p.RenderPassHandle, ColorFormats: []driver.PixelFmt{p.format},
	}); err != nil {
		return err
	}
	tex, err := p.Texture(p.out)
	if err != nil {
		return err
	}
	return p.CreateFramebuffer([]driver.ImageView{tex.AggregateView})
}

func (p *minimalPass) Record(cb driver.CmdBuffer, scene external.Scene) {
	cb.SetViewport([]driver.Viewport{{Width: float32(p.Width), Height: float32(p.Height), Zfar: 1}})
	cb.SetScissor([]driver.Scissor{{Width: p.Width, Height: p.Height}})
	cb.BeginPass(p.RenderPass, p.Framebufs[0], []driver.ClearValue{{Color: [4]float32{0, 0, 0, 0}}})
	cb.SetPipeline(p.Pipeline)
	cb.EndPass()
}

func (p *minimalPass) Reset()                       { p.Destroy() }
func (p *minimalPass) Resize(width, height int) { p.Width, p.Height = width, height }

// TestMinimalGraph covers S1: a single pass writing a 64x64 RGBA8
// texture compiles and executes, producing exactly one framebuffer of
// the declared extent.
func TestMinimalGraph(t *testing.T) {
	g, d := newTestGraph()
	pass := &minimalPass{PassBase: graph.NewPassBase("minimal", d, g.Registry(), 64, 64), format: driver.RGBA8un}
	g.AddPass("minimal", pass)

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile:\nhave %v\nwant nil", err)
	}
	if len(pass.Framebufs) != 1 {
		t.Fatalf("Init: framebuffer count:\nhave %d\nwant 1", len(pass.Framebufs))
	}
	fb, ok := pass.Framebufs[0].(*fakeFramebuf)
	if !ok {
		t.Fatalf("Init: framebuffer type:\nhave %T\nwant *fakeFramebuf", pass.Framebufs[0])
	}
	if fb.width != 64 || fb.height != 64 {
		t.Fatalf("Init: framebuffer extent:\nhave %dx%d\nwant 64x64", fb.width, fb.height)
	}

	cb := &fakeCmdBuffer{}
	g.Execute(cb, external.Scene{})
	if len(cb.passes) != 1 {
		t.Fatalf("Execute: recorded passes:\nhave %d\nwant 1", len(cb.passes))
	}
}

// orphanPass declares a resource it never writes, then reads it —
// simulating a Setup that references a producer which does not exist
// (S3, invariant #2's negative case).
type orphanPass struct {
	graph.PassBase
}

func (p *orphanPass) Setup(g *graph.FrameGraph) {
	lr, err := g.CreateResource("does_not_exist", registry.KindTexture, gpu.TextureDesc{
		Width: 1, Height: 1, Format: driver.RGBA8un, Usage: driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	g.ReadResource(lr)
}

func (p *orphanPass) Init() error                          { return nil }
func (p *orphanPass) Record(driver.CmdBuffer, external.Scene) {}
func (p *orphanPass) Reset()                                {}
func (p *orphanPass) Resize(int, int)                       {}

// TestMissingProducer covers S3 and invariant #2: a pass that reads a
// resource no pass produced must fail Compile with a CompileError.
func TestMissingProducer(t *testing.T) {
	g, d := newTestGraph()
	g.AddPass("orphan", &orphanPass{PassBase: graph.NewPassBase("orphan", d, g.Registry(), 1, 1)})

	err := g.Compile()
	if err == nil {
		t.Fatal("Compile:\nhave nil\nwant a CompileError")
	}
	var ce *graph.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Compile: error type:\nhave %T\nwant *graph.CompileError", err)
	}
	if ce.Resource != "does_not_exist" {
		t.Fatalf("Compile: CompileError.Resource:\nhave %q\nwant %q", ce.Resource, "does_not_exist")
	}
}

// mismatchPass declares an RGBA8 output but configures its pipeline
// with an RGBA16f color format, which CreatePipeline must reject.
type mismatchPass struct {
	graph.PassBase
	out *graph.LogicalResource
}

func (p *mismatchPass) Setup(g *graph.FrameGraph) {
	out, err := g.CreateResource("mismatched", registry.KindTexture, gpu.TextureDesc{
		Width: 8, Height: 8, Format: driver.RGBA8un, Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	p.out = out
	g.WriteResource(out, driver.LClear, driver.SStore)
}

func (p *mismatchPass) Init() error {
	rpDesc := gpu.RenderPassDesc{Color: []gpu.ColorAttachment{{Format: driver.RGBA8un, Load: driver.LClear, Store: driver.SStore}}}
	if err := p.CreateRenderPass(rpDesc); err != nil {
		return err
	}
	state := &driver.GraphState{Topology: driver.TTriangle, Pass: p.RenderPass}
	// Deliberately declares RGBA16f while the render pass (and the
	// texture it targets) is RGBA8un.
	return p.CreatePipeline(gpu.PipelineDesc{
		Graph: state, Pass: p.RenderPassHandle, ColorFormats: []driver.PixelFmt{driver.RGBA16f},
	})
}

func (p *mismatchPass) Record(driver.CmdBuffer, external.Scene) {}
func (p *mismatchPass) Reset()                                  { p.Destroy() }
func (p *mismatchPass) Resize(int, int)                         {}

// TestPipelineFormatMismatch covers S6: a pipeline whose color formats
// disagree with its render pass's attachment formats must fail Init
// with an InvalidConfig, not succeed silently.
func TestPipelineFormatMismatch(t *testing.T) {
	g, d := newTestGraph()
	g.AddPass("mismatch", &mismatchPass{PassBase: graph.NewPassBase("mismatch", d, g.Registry(), 8, 8)})

	err := g.Compile()
	if err == nil {
		t.Fatal("Compile:\nhave nil\nwant an InvalidConfig error")
	}
	var ic *gpu.InvalidConfig
	if !errors.As(err, &ic) {
		t.Fatalf("Compile: error type:\nhave %T (%v)\nwant *gpu.InvalidConfig", err, err)
	}
}

// TestResetIsIdempotent covers invariant #6: calling Reset twice on a
// pass must not panic or double-free.
func TestResetIsIdempotent(t *testing.T) {
	g, d := newTestGraph()
	pass := &minimalPass{PassBase: graph.NewPassBase("minimal", d, g.Registry(), 32, 32), format: driver.RGBA8un}
	g.AddPass("minimal", pass)
	if err := g.Compile(); err != nil {
		t.Fatalf("Compile:\nhave %v\nwant nil", err)
	}
	pass.Reset()
	pass.Reset() // must not panic
}

// externalReaderPass reads a caller-owned resource it never produces,
// the way gbuffer/skybox/ssao/grid/lighting read camera_buffer and the
// IBL textures. Its Init exercises DeriveRenderPass(p.Node.Outputs, ...)
// the same way those real passes do, so a nil PassBase.Node panics here
// exactly as it would there.
type externalReaderPass struct {
	graph.PassBase
	resourceName string
	out          *graph.LogicalResource
}

func (p *externalReaderPass) Setup(g *graph.FrameGraph) {
	ext, ok := g.GetResource(p.resourceName)
	if !ok {
		panic("externalReaderPass: " + p.resourceName + " not registered before this pass")
	}
	g.ReadResource(ext)

	out, err := g.CreateResource("out", registry.KindTexture, gpu.TextureDesc{
		Width: p.Width, Height: p.Height, Format: driver.RGBA8un,
		Usage: driver.URenderTarget | driver.UShaderSample,
	})
	if err != nil {
		panic(err)
	}
	p.out = out
	g.WriteResource(out, driver.LClear, driver.SStore)
}

func (p *externalReaderPass) Init() error {
	rpDesc := graph.DeriveRenderPass(p.Node.Outputs, nil,
		func(string) driver.PixelFmt { return driver.RGBA8un },
		func(string) (driver.PixelFmt, bool) { return 0, false })
	return p.CreateRenderPass(rpDesc)
}

func (p *externalReaderPass) Record(driver.CmdBuffer, external.Scene) {}
func (p *externalReaderPass) Reset()                                  { p.Destroy() }
func (p *externalReaderPass) Resize(width, height int)                { p.Width, p.Height = width, height }

// TestExternalResourceSatisfiesReader covers invariant #1 and S4: a
// resource declared through AddExternalResource, with no pass producing
// it, must satisfy a reading pass's Setup and let Compile succeed.
func TestExternalResourceSatisfiesReader(t *testing.T) {
	g, d := newTestGraph()
	g.Registry().AddExternalResource("camera_buffer", registry.Resource{Kind: registry.KindBuffer})
	g.AddExternalResource("camera_buffer", registry.KindBuffer)

	pass := &externalReaderPass{
		PassBase:     graph.NewPassBase("reader", d, g.Registry(), 16, 16),
		resourceName: "camera_buffer",
	}
	g.AddPass("reader", pass)

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile:\nhave %v\nwant nil", err)
	}
}

// TestExternalResourceOrderIndependent covers S4 directly: whether
// AddExternalResource is called before or after the consuming pass is
// registered must not matter, since externals carry no node index.
func TestExternalResourceOrderIndependent(t *testing.T) {
	for _, declareFirst := range []bool{true, false} {
		g, d := newTestGraph()
		declare := func() {
			g.Registry().AddExternalResource("camera_buffer", registry.Resource{Kind: registry.KindBuffer})
			g.AddExternalResource("camera_buffer", registry.KindBuffer)
		}
		if declareFirst {
			declare()
		}
		pass := &externalReaderPass{
			PassBase:     graph.NewPassBase("reader", d, g.Registry(), 16, 16),
			resourceName: "camera_buffer",
		}
		g.AddPass("reader", pass)
		if !declareFirst {
			declare()
		}

		if err := g.Compile(); err != nil {
			t.Fatalf("Compile (declareFirst=%v):\nhave %v\nwant nil", declareFirst, err)
		}
	}
}

// TestExternalResourceSurvivesResize covers S2: an external resource's
// identity must remain valid across the recompile Resize triggers,
// since Resize wipes everything CreateResource produced but must not
// wipe externals.
func TestExternalResourceSurvivesResize(t *testing.T) {
	g, d := newTestGraph()
	g.Registry().AddExternalResource("camera_buffer", registry.Resource{Kind: registry.KindBuffer})
	lr := g.AddExternalResource("camera_buffer", registry.KindBuffer)

	pass := &externalReaderPass{
		PassBase:     graph.NewPassBase("reader", d, g.Registry(), 16, 16),
		resourceName: "camera_buffer",
	}
	g.AddPass("reader", pass)

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile:\nhave %v\nwant nil", err)
	}
	if err := g.Resize(32, 32); err != nil {
		t.Fatalf("Resize:\nhave %v\nwant nil", err)
	}
	got, ok := g.GetResource("camera_buffer")
	if !ok {
		t.Fatal("GetResource(camera_buffer) after Resize:\nhave not found\nwant found")
	}
	if got != lr {
		t.Fatalf("GetResource(camera_buffer) after Resize:\nhave a different *LogicalResource\nwant the same instance AddExternalResource returned")
	}
}

// TestPassBaseNodeBound covers the PassBase.Node wiring AddPass performs:
// a pass whose Init dereferences p.Node (as every real pass's Init does
// through DeriveRenderPass) must not panic.
func TestPassBaseNodeBound(t *testing.T) {
	g, d := newTestGraph()
	g.Registry().AddExternalResource("camera_buffer", registry.Resource{Kind: registry.KindBuffer})
	g.AddExternalResource("camera_buffer", registry.KindBuffer)

	pass := &externalReaderPass{
		PassBase:     graph.NewPassBase("reader", d, g.Registry(), 16, 16),
		resourceName: "camera_buffer",
	}
	node := g.AddPass("reader", pass)
	if pass.Node != node {
		t.Fatalf("AddPass: PassBase.Node:\nhave %p\nwant %p (the node AddPass returned)", pass.Node, node)
	}

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile:\nhave %v\nwant nil", err)
	}
}
