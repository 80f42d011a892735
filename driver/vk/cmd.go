// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// CmdBuffer implements driver.CmdBuffer.
// A single vk.CommandBuffer allocated from the GPU's shared pool
// backs every instance; recording state (bound pipeline, subpass)
// is tracked so that descriptor-table binds can pick the right
// bind point and pipeline layout.
type CmdBuffer struct {
	gpu *GPU
	cb  vk.CommandBuffer

	passRef     *RenderPass
	graphLayout vk.PipelineLayout
}

// NewCmdBuffer implements driver.GPU.
func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        g.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cbs := make([]vk.CommandBuffer, 1)
	if ret := vk.AllocateCommandBuffers(g.dev, &info, cbs); ret != vk.Success {
		return nil, newError(ret, "AllocateCommandBuffers")
	}
	return &CmdBuffer{gpu: g, cb: cbs[0]}, nil
}

// Commit implements driver.GPU.
// It submits cb to the single graphics/compute/transfer queue and
// reports the outcome on ch, matching the asynchronous contract of
// driver.GPU.Commit.
func (g *GPU) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	bufs := make([]vk.CommandBuffer, len(cb))
	for i, c := range cb {
		bufs[i] = c.(*CmdBuffer).cb
	}
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(bufs)),
		PCommandBuffers:    bufs,
	}
	g.mu.Lock()
	ret := vk.QueueSubmit(g.queue, 1, []vk.SubmitInfo{info}, vk.NullFence)
	var err error
	if ret != vk.Success {
		err = newError(ret, "QueueSubmit")
	} else {
		ret = vk.QueueWaitIdle(g.queue)
		if ret != vk.Success {
			err = newError(ret, "QueueWaitIdle")
		}
	}
	g.mu.Unlock()
	if ch != nil {
		ch <- err
	}
}

// Begin implements driver.CmdBuffer.
func (c *CmdBuffer) Begin() error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if ret := vk.BeginCommandBuffer(c.cb, &info); ret != vk.Success {
		return newError(ret, "BeginCommandBuffer")
	}
	return nil
}

// BeginPass implements driver.CmdBuffer.
func (c *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	r := pass.(*RenderPass)
	c.passRef = r
	values := make([]vk.ClearValue, len(clear))
	for i, cv := range clear {
		values[i].SetColor([]float32{cv.Color[0], cv.Color[1], cv.Color[2], cv.Color[3]})
		values[i].SetDepthStencil(cv.Depth, cv.Stencil)
	}
	info := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      r.pass,
		Framebuffer:     fb.(*Framebuf).fb,
		ClearValueCount: uint32(len(values)),
		PClearValues:    values,
	}
	vk.CmdBeginRenderPass(c.cb, &info, vk.SubpassContentsInline)
}

// NextSubpass implements driver.CmdBuffer.
func (c *CmdBuffer) NextSubpass() { vk.CmdNextSubpass(c.cb, vk.SubpassContentsInline) }

// EndPass implements driver.CmdBuffer.
func (c *CmdBuffer) EndPass() {
	vk.CmdEndRenderPass(c.cb)
	c.passRef = nil
}

// BeginBlit implements driver.CmdBuffer.
func (c *CmdBuffer) BeginBlit(wait bool) {}

// EndBlit implements driver.CmdBuffer.
func (c *CmdBuffer) EndBlit() {}

// SetPipeline implements driver.CmdBuffer.
func (c *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	p := pl.(*Pipeline)
	vk.CmdBindPipeline(c.cb, p.bindPoint, p.pipeline)
	c.graphLayout = p.layout
}

// SetViewport implements driver.CmdBuffer.
func (c *CmdBuffer) SetViewport(vp []driver.Viewport) {
	vps := make([]vk.Viewport, len(vp))
	for i, v := range vp {
		vps[i] = vk.Viewport{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MinDepth: v.Znear, MaxDepth: v.Zfar}
	}
	vk.CmdSetViewport(c.cb, 0, uint32(len(vps)), vps)
}

// SetScissor implements driver.CmdBuffer.
func (c *CmdBuffer) SetScissor(sciss []driver.Scissor) {
	scs := make([]vk.Rect2D, len(sciss))
	for i, s := range sciss {
		scs[i] = vk.Rect2D{
			Offset: vk.Offset2D{X: int32(s.X), Y: int32(s.Y)},
			Extent: vk.Extent2D{Width: uint32(s.Width), Height: uint32(s.Height)},
		}
	}
	vk.CmdSetScissor(c.cb, 0, uint32(len(scs)), scs)
}

// SetBlendColor implements driver.CmdBuffer.
func (c *CmdBuffer) SetBlendColor(r, g, b, a float32) {
	vk.CmdSetBlendConstants(c.cb, [4]float32{r, g, b, a})
}

// SetStencilRef implements driver.CmdBuffer.
func (c *CmdBuffer) SetStencilRef(value uint32) {
	vk.CmdSetStencilReference(c.cb, vk.StencilFaceFlags(vk.StencilFrontAndBack), value)
}

// SetVertexBuf implements driver.CmdBuffer.
func (c *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	bufs := make([]vk.Buffer, len(buf))
	offs := make([]vk.DeviceSize, len(buf))
	for i, b := range buf {
		bufs[i] = b.(*Buffer).buf
		offs[i] = vk.DeviceSize(off[i])
	}
	vk.CmdBindVertexBuffers(c.cb, uint32(start), uint32(len(bufs)), bufs, offs)
}

// SetIndexBuf implements driver.CmdBuffer.
func (c *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	idxType := vk.IndexTypeUint16
	if format == driver.Index32 {
		idxType = vk.IndexTypeUint32
	}
	vk.CmdBindIndexBuffer(c.cb, buf.(*Buffer).buf, vk.DeviceSize(off), idxType)
}

// SetDescTableGraph implements driver.CmdBuffer.
func (c *CmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	c.bindDescTable(vk.PipelineBindPointGraphics, c.graphLayout, table, start, heapCopy)
}

func (c *CmdBuffer) bindDescTable(bp vk.PipelineBindPoint, layout vk.PipelineLayout, table driver.DescTable, start int, heapCopy []int) {
	t := table.(*DescTable)
	sets := make([]vk.DescriptorSet, len(heapCopy))
	for i, cpy := range heapCopy {
		h := t.heaps[start+i]
		sets[i] = h.sets[cpy]
	}
	vk.CmdBindDescriptorSets(c.cb, bp, layout, uint32(start), uint32(len(sets)), sets, 0, nil)
}

// Draw implements driver.CmdBuffer.
func (c *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	vk.CmdDraw(c.cb, uint32(vertCount), uint32(instCount), uint32(baseVert), uint32(baseInst))
}

// DrawIndexed implements driver.CmdBuffer.
func (c *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	vk.CmdDrawIndexed(c.cb, uint32(idxCount), uint32(instCount), uint32(baseIdx), int32(vertOff), uint32(baseInst))
}

// CopyBuffer implements driver.CmdBuffer.
func (c *CmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	region := vk.BufferCopy{
		SrcOffset: vk.DeviceSize(param.FromOff),
		DstOffset: vk.DeviceSize(param.ToOff),
		Size:      vk.DeviceSize(param.Size),
	}
	vk.CmdCopyBuffer(c.cb, param.From.(*Buffer).buf, param.To.(*Buffer).buf, 1, []vk.BufferCopy{region})
}

// CopyImage implements driver.CmdBuffer.
func (c *CmdBuffer) CopyImage(param *driver.ImageCopy) {
	region := vk.ImageCopy{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       uint32(param.FromLevel),
			BaseArrayLayer: uint32(param.FromLayer),
			LayerCount:     uint32(param.Layers),
		},
		SrcOffset: vk.Offset3D{X: int32(param.FromOff.X), Y: int32(param.FromOff.Y), Z: int32(param.FromOff.Z)},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       uint32(param.ToLevel),
			BaseArrayLayer: uint32(param.ToLayer),
			LayerCount:     uint32(param.Layers),
		},
		DstOffset: vk.Offset3D{X: int32(param.ToOff.X), Y: int32(param.ToOff.Y), Z: int32(param.ToOff.Z)},
		Extent: vk.Extent3D{
			Width:  uint32(param.Size.Width),
			Height: uint32(param.Size.Height),
			Depth:  uint32(param.Size.Depth),
		},
	}
	vk.CmdCopyImage(c.cb, param.From.(*Image).img, vk.ImageLayoutTransferSrcOptimal,
		param.To.(*Image).img, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{region})
}

// CopyBufToImg implements driver.CmdBuffer.
func (c *CmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	region := bufImgRegion(param)
	vk.CmdCopyBufferToImage(c.cb, param.Buf.(*Buffer).buf, param.Img.(*Image).img, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// CopyImgToBuf implements driver.CmdBuffer.
func (c *CmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) {
	region := bufImgRegion(param)
	vk.CmdCopyImageToBuffer(c.cb, param.Img.(*Image).img, vk.ImageLayoutTransferSrcOptimal, param.Buf.(*Buffer).buf, 1, []vk.BufferImageCopy{region})
}

func bufImgRegion(param *driver.BufImgCopy) vk.BufferImageCopy {
	aspect := vk.ImageAspectColorBit
	if isDepth(param.Img.(*Image).format) {
		if param.DepthCopy {
			aspect = vk.ImageAspectStencilBit
		} else {
			aspect = vk.ImageAspectDepthBit
		}
	}
	return vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(param.BufOff),
		BufferRowLength:   uint32(param.Stride[0]),
		BufferImageHeight: uint32(param.Stride[1]),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(aspect),
			MipLevel:       uint32(param.Level),
			BaseArrayLayer: uint32(param.Layer),
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(param.ImgOff.X), Y: int32(param.ImgOff.Y), Z: int32(param.ImgOff.Z)},
		ImageExtent: vk.Extent3D{
			Width:  uint32(param.Size.Width),
			Height: uint32(param.Size.Height),
			Depth:  uint32(param.Size.Depth),
		},
	}
}

// Fill implements driver.CmdBuffer.
func (c *CmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	pattern := uint32(value) | uint32(value)<<8 | uint32(value)<<16 | uint32(value)<<24
	vk.CmdFillBuffer(c.cb, buf.(*Buffer).buf, vk.DeviceSize(off), vk.DeviceSize(size), pattern)
}

// Barrier implements driver.CmdBuffer.
func (c *CmdBuffer) Barrier(b []driver.Barrier) {
	for _, bb := range b {
		mb := vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: vk.AccessFlags(vkAccess(bb.AccessBefore)),
			DstAccessMask: vk.AccessFlags(vkAccess(bb.AccessAfter)),
		}
		vk.CmdPipelineBarrier(c.cb, vk.PipelineStageFlags(vkSync(bb.SyncBefore)), vk.PipelineStageFlags(vkSync(bb.SyncAfter)),
			0, 1, []vk.MemoryBarrier{mb}, 0, nil, 0, nil)
	}
}

// Transition implements driver.CmdBuffer.
func (c *CmdBuffer) Transition(t []driver.Transition) {
	for _, tt := range t {
		iv := tt.IView.(*ImageView)
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vkAccess(tt.AccessBefore)),
			DstAccessMask:       vk.AccessFlags(vkAccess(tt.AccessAfter)),
			OldLayout:           vkLayout(tt.LayoutBefore),
			NewLayout:           vkLayout(tt.LayoutAfter),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               iv.img,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: vk.RemainingMipLevels,
				LayerCount: vk.RemainingArrayLayers,
			},
		}
		vk.CmdPipelineBarrier(c.cb, vk.PipelineStageFlags(vkSync(tt.SyncBefore)), vk.PipelineStageFlags(vkSync(tt.SyncAfter)),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	}
}

func vkSync(s driver.Sync) vk.PipelineStageFlagBits {
	var f vk.PipelineStageFlagBits
	if s&driver.SVertexInput != 0 {
		f |= vk.PipelineStageVertexInputBit
	}
	if s&driver.SVertexShading != 0 {
		f |= vk.PipelineStageVertexShaderBit
	}
	if s&driver.SFragmentShading != 0 {
		f |= vk.PipelineStageFragmentShaderBit
	}
	if s&driver.SComputeShading != 0 {
		f |= vk.PipelineStageComputeShaderBit
	}
	if s&driver.SColorOutput != 0 {
		f |= vk.PipelineStageColorAttachmentOutputBit
	}
	if s&driver.SDSOutput != 0 {
		f |= vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
	}
	if s&driver.SCopy != 0 {
		f |= vk.PipelineStageTransferBit
	}
	if s == driver.SAll {
		f = vk.PipelineStageAllCommandsBit
	}
	if f == 0 {
		f = vk.PipelineStageTopOfPipeBit
	}
	return f
}

func vkAccess(a driver.Access) vk.AccessFlagBits {
	var f vk.AccessFlagBits
	if a&driver.AVertexBufRead != 0 {
		f |= vk.AccessVertexAttributeReadBit
	}
	if a&driver.AIndexBufRead != 0 {
		f |= vk.AccessIndexReadBit
	}
	if a&driver.AColorRead != 0 {
		f |= vk.AccessColorAttachmentReadBit
	}
	if a&driver.AColorWrite != 0 {
		f |= vk.AccessColorAttachmentWriteBit
	}
	if a&driver.ADSRead != 0 {
		f |= vk.AccessDepthStencilAttachmentReadBit
	}
	if a&driver.ADSWrite != 0 {
		f |= vk.AccessDepthStencilAttachmentWriteBit
	}
	if a&driver.ACopyRead != 0 {
		f |= vk.AccessTransferReadBit
	}
	if a&driver.ACopyWrite != 0 {
		f |= vk.AccessTransferWriteBit
	}
	if a&driver.AShaderRead != 0 {
		f |= vk.AccessShaderReadBit
	}
	if a&driver.AShaderWrite != 0 {
		f |= vk.AccessShaderWriteBit
	}
	return f
}

func vkLayout(l driver.Layout) vk.ImageLayout {
	switch l {
	case driver.LColorTarget:
		return vk.ImageLayoutColorAttachmentOptimal
	case driver.LDSTarget:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case driver.LDSRead:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case driver.LResolveSrc, driver.LCopySrc:
		return vk.ImageLayoutTransferSrcOptimal
	case driver.LResolveDst, driver.LCopyDst:
		return vk.ImageLayoutTransferDstOptimal
	case driver.LShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case driver.LPresent:
		return vk.ImageLayoutPresentSrcKhr
	case driver.LCommon:
		return vk.ImageLayoutGeneral
	default:
		return vk.ImageLayoutUndefined
	}
}

// End implements driver.CmdBuffer.
func (c *CmdBuffer) End() error {
	if ret := vk.EndCommandBuffer(c.cb); ret != vk.Success {
		vk.ResetCommandBuffer(c.cb, 0)
		return newError(ret, "EndCommandBuffer")
	}
	return nil
}

// Reset implements driver.CmdBuffer.
func (c *CmdBuffer) Reset() error {
	if ret := vk.ResetCommandBuffer(c.cb, 0); ret != vk.Success {
		return newError(ret, "ResetCommandBuffer")
	}
	return nil
}

// Destroy implements driver.Destroyer.
func (c *CmdBuffer) Destroy() {
	if c == nil || c.cb == nil {
		return
	}
	vk.FreeCommandBuffers(c.gpu.dev, c.gpu.cmdPool, 1, []vk.CommandBuffer{c.cb})
	c.cb = nil
}
