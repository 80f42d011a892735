// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// Image implements driver.Image.
type Image struct {
	gpu    *GPU
	img    vk.Image
	mem    vk.DeviceMemory
	format driver.PixelFmt
	dim    driver.Dim3D
	layers int
	levels int
	array  bool
}

// NewImage implements driver.GPU.
func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	imgType := vk.ImageType2d
	if size.Depth > 1 {
		imgType = vk.ImageType3d
	}
	flags := vk.ImageCreateFlags(0)
	if layers == 6 {
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     flags,
		ImageType: imgType,
		Format:    vkFormat(pf),
		Extent: vk.Extent3D{
			Width:  uint32(size.Width),
			Height: uint32(size.Height),
			Depth:  uint32(max(size.Depth, 1)),
		},
		MipLevels:     uint32(levels),
		ArrayLayers:   uint32(layers),
		Samples:       sampleCountFlag(samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vkUsageImage(usg)),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if ret := vk.CreateImage(g.dev, &info, nil, &img); ret != vk.Success {
		return nil, newError(ret, "CreateImage")
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(g.dev, img, &req)
	req.Deref()
	idx, err := g.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(g.dev, img, nil)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}
	var mem vk.DeviceMemory
	if ret := vk.AllocateMemory(g.dev, &allocInfo, nil, &mem); ret != vk.Success {
		vk.DestroyImage(g.dev, img, nil)
		return nil, newError(ret, "AllocateMemory")
	}
	vk.BindImageMemory(g.dev, img, mem, 0)
	return &Image{gpu: g, img: img, mem: mem, format: pf, dim: size, layers: layers, levels: levels, array: layers > 1}, nil
}

func sampleCountFlag(samples int) vk.SampleCountFlagBits {
	switch samples {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	default:
		return vk.SampleCount1Bit
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// NewView implements driver.Image.
func (i *Image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	aspect := vk.ImageAspectColorBit
	if isDepth(i.format) {
		aspect = vk.ImageAspectDepthBit
		if i.format == driver.S8ui || i.format == driver.D24unS8ui || i.format == driver.D32fS8ui {
			aspect |= vk.ImageAspectStencilBit
		}
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    i.img,
		ViewType: vkViewType(typ),
		Format:   vkFormat(i.format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   uint32(level),
			LevelCount:     uint32(levels),
			BaseArrayLayer: uint32(layer),
			LayerCount:     uint32(layers),
		},
	}
	var view vk.ImageView
	if ret := vk.CreateImageView(i.gpu.dev, &info, nil, &view); ret != vk.Success {
		return nil, newError(ret, "CreateImageView")
	}
	return &ImageView{gpu: i.gpu, view: view, img: i.img}, nil
}

func vkViewType(t driver.ViewType) vk.ImageViewType {
	switch t {
	case driver.IView1D:
		return vk.ImageViewType1d
	case driver.IView3D:
		return vk.ImageViewType3d
	case driver.IViewCube:
		return vk.ImageViewTypeCube
	case driver.IView1DArray:
		return vk.ImageViewType1dArray
	case driver.IView2DArray:
		return vk.ImageViewType2dArray
	case driver.IViewCubeArray:
		return vk.ImageViewTypeCubeArray
	default:
		return vk.ImageViewType2d
	}
}

// Destroy implements driver.Destroyer.
func (i *Image) Destroy() {
	if i == nil || i.img == vk.NullImage {
		return
	}
	vk.DestroyImage(i.gpu.dev, i.img, nil)
	vk.FreeMemory(i.gpu.dev, i.mem, nil)
	i.img = vk.NullImage
}

// ImageView implements driver.ImageView.
type ImageView struct {
	gpu  *GPU
	view vk.ImageView
	img  vk.Image
}

// Destroy implements driver.Destroyer.
func (v *ImageView) Destroy() {
	if v == nil || v.view == vk.NullImageView {
		return
	}
	vk.DestroyImageView(v.gpu.dev, v.view, nil)
	v.view = vk.NullImageView
}
