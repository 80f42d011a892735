// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

var pixelFmts = map[driver.PixelFmt]vk.Format{
	driver.RGBA8un:    vk.FormatR8g8b8a8Unorm,
	driver.RGBA8n:     vk.FormatR8g8b8a8Snorm,
	driver.RGBA8sRGB:  vk.FormatR8g8b8a8Srgb,
	driver.BGRA8un:    vk.FormatB8g8r8a8Unorm,
	driver.BGRA8sRGB:  vk.FormatB8g8r8a8Srgb,
	driver.RG8un:      vk.FormatR8g8Unorm,
	driver.RG8n:       vk.FormatR8g8Snorm,
	driver.R8un:       vk.FormatR8Unorm,
	driver.R8n:        vk.FormatR8Snorm,
	driver.RGBA16f:    vk.FormatR16g16b16a16Sfloat,
	driver.RG16f:      vk.FormatR16g16Sfloat,
	driver.R16f:       vk.FormatR16Sfloat,
	driver.RGBA32f:    vk.FormatR32g32b32a32Sfloat,
	driver.RG32f:      vk.FormatR32g32Sfloat,
	driver.R32f:       vk.FormatR32Sfloat,
	driver.D16un:      vk.FormatD16Unorm,
	driver.D32f:       vk.FormatD32Sfloat,
	driver.S8ui:       vk.FormatS8Uint,
	driver.D24unS8ui:  vk.FormatD24UnormS8Uint,
	driver.D32fS8ui:   vk.FormatD32SfloatS8Uint,
}

func vkFormat(f driver.PixelFmt) vk.Format {
	if vf, ok := pixelFmts[f]; ok {
		return vf
	}
	return vk.FormatUndefined
}

// isDepth reports whether f carries a depth and/or stencil aspect.
func isDepth(f driver.PixelFmt) bool {
	switch f {
	case driver.D16un, driver.D32f, driver.S8ui, driver.D24unS8ui, driver.D32fS8ui:
		return true
	}
	return false
}

func vkUsageImage(u driver.Usage) vk.ImageUsageFlagBits {
	var f vk.ImageUsageFlagBits
	if u&driver.UShaderSample != 0 || u&driver.UShaderRead != 0 {
		f |= vk.ImageUsageSampledBit
	}
	if u&driver.UShaderWrite != 0 {
		f |= vk.ImageUsageStorageBit
	}
	if u&driver.URenderTarget != 0 {
		f |= vk.ImageUsageColorAttachmentBit | vk.ImageUsageDepthStencilAttachmentBit
	}
	f |= vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit
	return f
}

func vkUsageBuffer(u driver.Usage) vk.BufferUsageFlagBits {
	var f vk.BufferUsageFlagBits
	if u&driver.UShaderRead != 0 || u&driver.UShaderWrite != 0 {
		f |= vk.BufferUsageStorageBufferBit
	}
	if u&driver.UShaderConst != 0 {
		f |= vk.BufferUsageUniformBufferBit
	}
	if u&driver.UVertexData != 0 {
		f |= vk.BufferUsageVertexBufferBit
	}
	if u&driver.UIndexData != 0 {
		f |= vk.BufferUsageIndexBufferBit
	}
	f |= vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
	return f
}

func vkFilter(f driver.Filter) vk.Filter {
	if f == driver.FLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func vkMipmapMode(f driver.Filter) vk.SamplerMipmapMode {
	if f == driver.FLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

func vkAddrMode(a driver.AddrMode) vk.SamplerAddressMode {
	switch a {
	case driver.AMirror:
		return vk.SamplerAddressModeMirroredRepeat
	case driver.AClamp:
		return vk.SamplerAddressModeClampToBorder
	default:
		return vk.SamplerAddressModeRepeat
	}
}

func vkCmpOp(c driver.CmpFunc) vk.CompareOp {
	switch c {
	case driver.CNever:
		return vk.CompareOpNever
	case driver.CLess:
		return vk.CompareOpLess
	case driver.CEqual:
		return vk.CompareOpEqual
	case driver.CLessEqual:
		return vk.CompareOpLessOrEqual
	case driver.CGreater:
		return vk.CompareOpGreater
	case driver.CNotEqual:
		return vk.CompareOpNotEqual
	case driver.CGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	default:
		return vk.CompareOpAlways
	}
}

func vkCullMode(c driver.CullMode) vk.CullModeFlagBits {
	switch c {
	case driver.CBack:
		return vk.CullModeBackBit
	case driver.CFront:
		return vk.CullModeFrontBit
	default:
		return vk.CullModeNone
	}
}

func vkPolygonMode(f driver.FillMode) vk.PolygonMode {
	if f == driver.FLines {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

func vkLoadOp(l driver.LoadOp) vk.AttachmentLoadOp {
	switch l {
	case driver.LClear:
		return vk.AttachmentLoadOpClear
	case driver.LLoad:
		return vk.AttachmentLoadOpLoad
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func vkStoreOp(s driver.StoreOp) vk.AttachmentStoreOp {
	if s == driver.SStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}
