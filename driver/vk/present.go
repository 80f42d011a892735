// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// Swapchain implements driver.Swapchain.
//
// The GPU only ever opens a single graphics queue (see createDevice),
// so unlike engines that juggle separate graphics/present queues this
// implementation either finds presentation support on that one queue
// or refuses the swapchain outright with driver.ErrCannotPresent; no
// queue-ownership-transfer command buffers are needed.
type Swapchain struct {
	gpu  *GPU
	win  driver.SurfaceProvider
	surf vk.Surface
	sc   vk.Swapchain
	pf   driver.PixelFmt

	views []driver.ImageView

	// acquireSems/presentSems are sized 1:1 with views; index by the
	// image index returned from AcquireNextImage.
	acquireSems []vk.Semaphore
	presentSems []vk.Semaphore

	broken bool
}

// NewSwapchain implements driver.Presenter.
func (g *GPU) NewSwapchain(win driver.SurfaceProvider, imageCount int) (driver.Swapchain, error) {
	if len(g.instExts) == 0 {
		return nil, driver.ErrCannotPresent
	}
	surfh, err := win.CreateSurface(uintptr(unsafe.Pointer(g.inst)))
	if err != nil {
		return nil, err
	}
	surf := vk.SurfaceFromPointer(surfh)

	var supported vk.Bool32
	if ret := vk.GetPhysicalDeviceSurfaceSupport(g.pdev, g.qFamily, surf, &supported); ret != vk.Success {
		vk.DestroySurface(g.inst, surf, nil)
		return nil, newError(ret, "GetPhysicalDeviceSurfaceSupport")
	}
	if supported == vk.False {
		vk.DestroySurface(g.inst, surf, nil)
		return nil, driver.ErrCannotPresent
	}

	s := &Swapchain{gpu: g, win: win, surf: surf}
	if err := s.initSwapchain(imageCount, vk.NullSwapchain); err != nil {
		vk.DestroySurface(g.inst, surf, nil)
		return nil, err
	}
	if err := s.newViews(); err != nil {
		s.Destroy()
		return nil, err
	}
	if err := s.initSync(); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

// initSwapchain (re)creates s.sc from s.surf, setting s.pf.
func (s *Swapchain) initSwapchain(imageCount int, old vk.Swapchain) error {
	var capab vk.SurfaceCapabilities
	if ret := vk.GetPhysicalDeviceSurfaceCapabilities(s.gpu.pdev, s.surf, &capab); ret != vk.Success {
		return newError(ret, "GetPhysicalDeviceSurfaceCapabilities")
	}
	capab.Deref()

	nimg := uint32(imageCount)
	if capab.MinImageCount > nimg {
		nimg = capab.MinImageCount
	} else if capab.MaxImageCount != 0 && capab.MaxImageCount < nimg {
		nimg = capab.MaxImageCount
	}

	extent := capab.CurrentExtent
	if extent.Width == ^uint32(0) {
		extent.Width = uint32(s.win.Width())
		extent.Height = uint32(s.win.Height())
	}
	if extent.Width == 0 || extent.Height == 0 {
		return driver.ErrWindow
	}

	var calpha vk.CompositeAlphaFlagBits
	switch {
	case capab.SupportedCompositeAlpha&vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit) != 0:
		calpha = vk.CompositeAlphaOpaqueBit
	case capab.SupportedCompositeAlpha&vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit) != 0:
		calpha = vk.CompositeAlphaInheritBit
	default:
		return driver.ErrCompositor
	}

	var nfmt uint32
	if ret := vk.GetPhysicalDeviceSurfaceFormats(s.gpu.pdev, s.surf, &nfmt, nil); ret != vk.Success {
		return newError(ret, "GetPhysicalDeviceSurfaceFormats")
	}
	fmts := make([]vk.SurfaceFormat, nfmt)
	if ret := vk.GetPhysicalDeviceSurfaceFormats(s.gpu.pdev, s.surf, &nfmt, fmts); ret != vk.Success {
		return newError(ret, "GetPhysicalDeviceSurfaceFormats")
	}
	preferred := []struct {
		pf  driver.PixelFmt
		vkf vk.Format
	}{
		{driver.RGBA8sRGB, vk.FormatR8g8b8a8Srgb},
		{driver.BGRA8sRGB, vk.FormatB8g8r8a8Srgb},
		{driver.RGBA8un, vk.FormatR8g8b8a8Unorm},
		{driver.BGRA8un, vk.FormatB8g8r8a8Unorm},
		{driver.RGBA16f, vk.FormatR16g16b16a16Sfloat},
	}
	ifmt := -1
picked:
	for i := range preferred {
		for j := range fmts {
			fmts[j].Deref()
			if fmts[j].Format == preferred[i].vkf {
				s.pf = preferred[i].pf
				ifmt = j
				break picked
			}
		}
	}
	if ifmt == -1 {
		return driver.ErrCannotPresent
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surf,
		MinImageCount:    nimg,
		ImageFormat:      fmts[ifmt].Format,
		ImageColorSpace:  fmts[ifmt].ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capab.CurrentTransform,
		CompositeAlpha:   calpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	var sc vk.Swapchain
	if ret := vk.CreateSwapchain(s.gpu.dev, &info, nil, &sc); ret != vk.Success {
		return newError(ret, "CreateSwapchain")
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(s.gpu.dev, old, nil)
	}
	s.sc = sc
	return nil
}

// newViews creates image views for every image in s.sc, replacing any
// that already exist.
func (s *Swapchain) newViews() error {
	for _, v := range s.views {
		v.Destroy()
	}
	s.views = nil

	var nimg uint32
	if ret := vk.GetSwapchainImages(s.gpu.dev, s.sc, &nimg, nil); ret != vk.Success {
		return newError(ret, "GetSwapchainImages")
	}
	imgs := make([]vk.Image, nimg)
	if ret := vk.GetSwapchainImages(s.gpu.dev, s.sc, &nimg, imgs); ret != vk.Success {
		return newError(ret, "GetSwapchainImages")
	}

	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		ViewType: vk.ImageViewType2d,
		Format:   vkFormat(s.pf),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	views := make([]driver.ImageView, nimg)
	for i := range imgs {
		info.Image = imgs[i]
		var view vk.ImageView
		if ret := vk.CreateImageView(s.gpu.dev, &info, nil, &view); ret != vk.Success {
			for j := 0; j < i; j++ {
				views[j].Destroy()
			}
			return newError(ret, "CreateImageView")
		}
		views[i] = &ImageView{gpu: s.gpu, view: view, img: imgs[i]}
	}
	s.views = views
	return nil
}

// initSync (re)creates one acquire/present semaphore pair per image.
func (s *Swapchain) initSync() error {
	for _, sem := range s.acquireSems {
		vk.DestroySemaphore(s.gpu.dev, sem, nil)
	}
	for _, sem := range s.presentSems {
		vk.DestroySemaphore(s.gpu.dev, sem, nil)
	}
	n := len(s.views)
	s.acquireSems = make([]vk.Semaphore, n)
	s.presentSems = make([]vk.Semaphore, n)
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	for i := 0; i < n; i++ {
		if ret := vk.CreateSemaphore(s.gpu.dev, &info, nil, &s.acquireSems[i]); ret != vk.Success {
			return newError(ret, "CreateSemaphore")
		}
		if ret := vk.CreateSemaphore(s.gpu.dev, &info, nil, &s.presentSems[i]); ret != vk.Success {
			return newError(ret, "CreateSemaphore")
		}
	}
	return nil
}

// Views implements driver.Swapchain.
func (s *Swapchain) Views() []driver.ImageView {
	return append([]driver.ImageView(nil), s.views...)
}

// Next implements driver.Swapchain.
func (s *Swapchain) Next(cb driver.CmdBuffer) (int, error) {
	if s.broken {
		return -1, driver.ErrSwapchain
	}
	var idx uint32
	res := vk.AcquireNextImage(s.gpu.dev, s.sc, ^uint64(0), s.acquireSems[0], vk.NullFence, &idx)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		s.broken = true
		return -1, driver.ErrSwapchain
	default:
		return -1, newError(res, "AcquireNextImage")
	}
	return int(idx), nil
}

// Present implements driver.Swapchain.
func (s *Swapchain) Present(index int, cb driver.CmdBuffer) error {
	if s.broken {
		return driver.ErrSwapchain
	}
	idx := uint32(index)
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.sc},
		PImageIndices:      []uint32{idx},
	}
	res := vk.QueuePresent(s.gpu.queue, &info)
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		s.broken = true
		return driver.ErrSwapchain
	default:
		return newError(res, "QueuePresent")
	}
}

// Recreate implements driver.Swapchain.
func (s *Swapchain) Recreate() error {
	vk.QueueWaitIdle(s.gpu.queue)
	old := s.sc
	if err := s.initSwapchain(len(s.views), old); err != nil {
		return err
	}
	if err := s.newViews(); err != nil {
		return err
	}
	if err := s.initSync(); err != nil {
		return err
	}
	s.broken = false
	return nil
}

// Format implements driver.Swapchain.
func (s *Swapchain) Format() driver.PixelFmt { return s.pf }

// Destroy implements driver.Destroyer.
func (s *Swapchain) Destroy() {
	if s == nil || s.gpu == nil {
		return
	}
	vk.QueueWaitIdle(s.gpu.queue)
	for _, sem := range s.acquireSems {
		vk.DestroySemaphore(s.gpu.dev, sem, nil)
	}
	for _, sem := range s.presentSems {
		vk.DestroySemaphore(s.gpu.dev, sem, nil)
	}
	for _, v := range s.views {
		v.Destroy()
	}
	if s.sc != vk.NullSwapchain {
		vk.DestroySwapchain(s.gpu.dev, s.sc, nil)
	}
	if s.surf != vk.NullSurface {
		vk.DestroySurface(s.gpu.inst, s.surf, nil)
	}
	*s = Swapchain{}
}
