// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// RenderPass implements driver.RenderPass.
type RenderPass struct {
	gpu  *GPU
	pass vk.RenderPass
	natt int
}

// NewRenderPass implements driver.GPU.
func (g *GPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	descs := make([]vk.AttachmentDescription, len(att))
	for i, a := range att {
		finalLayout := vk.ImageLayoutColorAttachmentOptimal
		if isDepth(a.Format) {
			finalLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
		}
		descs[i] = vk.AttachmentDescription{
			Format:         vkFormat(a.Format),
			Samples:        sampleCountFlag(a.Samples),
			LoadOp:         vkLoadOp(a.Load[0]),
			StoreOp:        vkStoreOp(a.Store[0]),
			StencilLoadOp:  vkLoadOp(a.Load[1]),
			StencilStoreOp: vkStoreOp(a.Store[1]),
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    finalLayout,
		}
	}

	subDescs := make([]vk.SubpassDescription, len(sub))
	// Keep the per-subpass attachment-reference slices alive for the
	// CreateRenderPass call; goki/vulkan does not copy nested slices.
	refsColor := make([][]vk.AttachmentReference, len(sub))
	refsDS := make([]vk.AttachmentReference, len(sub))
	refsMSR := make([][]vk.AttachmentReference, len(sub))
	for i, s := range sub {
		refsColor[i] = make([]vk.AttachmentReference, len(s.Color))
		for j, idx := range s.Color {
			refsColor[i][j] = vk.AttachmentReference{
				Attachment: uint32(idx),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			}
		}
		subDescs[i] = vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(refsColor[i])),
			PColorAttachments:    refsColor[i],
		}
		if s.DS >= 0 {
			refsDS[i] = vk.AttachmentReference{
				Attachment: uint32(s.DS),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
			subDescs[i].PDepthStencilAttachment = &refsDS[i]
		}
		if len(s.MSR) > 0 {
			refsMSR[i] = make([]vk.AttachmentReference, len(s.MSR))
			for j, idx := range s.MSR {
				refsMSR[i][j] = vk.AttachmentReference{
					Attachment: uint32(idx),
					Layout:     vk.ImageLayoutColorAttachmentOptimal,
				}
			}
			subDescs[i].PResolveAttachments = refsMSR[i]
		}
	}

	var deps []vk.SubpassDependency
	for i, s := range sub {
		if !s.Wait {
			continue
		}
		src := uint32(vk.SubpassExternal)
		if i > 0 {
			src = uint32(i - 1)
		}
		deps = append(deps, vk.SubpassDependency{
			SrcSubpass:    src,
			DstSubpass:    uint32(i),
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
			SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
		})
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descs)),
		PAttachments:    descs,
		SubpassCount:    uint32(len(subDescs)),
		PSubpasses:      subDescs,
		DependencyCount: uint32(len(deps)),
		PDependencies:   deps,
	}
	var pass vk.RenderPass
	if ret := vk.CreateRenderPass(g.dev, &info, nil, &pass); ret != vk.Success {
		return nil, newError(ret, "CreateRenderPass")
	}
	return &RenderPass{gpu: g, pass: pass, natt: len(att)}, nil
}

// NewFB implements driver.RenderPass.
func (r *RenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	views := make([]vk.ImageView, len(iv))
	for i, v := range iv {
		views[i] = v.(*ImageView).view
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      r.pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           uint32(width),
		Height:          uint32(height),
		Layers:          uint32(layers),
	}
	var fb vk.Framebuffer
	if ret := vk.CreateFramebuffer(r.gpu.dev, &info, nil, &fb); ret != vk.Success {
		return nil, newError(ret, "CreateFramebuffer")
	}
	return &Framebuf{gpu: r.gpu, fb: fb}, nil
}

// Destroy implements driver.Destroyer.
func (r *RenderPass) Destroy() {
	if r == nil || r.pass == vk.NullRenderPass {
		return
	}
	vk.DestroyRenderPass(r.gpu.dev, r.pass, nil)
	r.pass = vk.NullRenderPass
}

// Framebuf implements driver.Framebuf.
type Framebuf struct {
	gpu *GPU
	fb  vk.Framebuffer
}

// Destroy implements driver.Destroyer.
func (f *Framebuf) Destroy() {
	if f == nil || f.fb == vk.NullFramebuffer {
		return
	}
	vk.DestroyFramebuffer(f.gpu.dev, f.fb, nil)
	f.fb = vk.NullFramebuffer
}
