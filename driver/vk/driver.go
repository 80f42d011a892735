// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package vk implements driver interfaces using the goki/vulkan
// bindings for the Vulkan API.
package vk

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

const driverName = "vulkan"

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver; the GPU it opens implements
// driver.GPU.
type Driver struct {
	once sync.Once
	gpu  *GPU
	err  error
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return driverName }

// Open implements driver.Driver.
// It loads the Vulkan library, creates an instance, selects a
// physical device and creates a logical device with a single
// graphics/compute/transfer queue. Subsequent calls return the
// same GPU, matching driver.Driver's contract.
func (d *Driver) Open() (driver.GPU, error) {
	d.once.Do(func() {
		d.gpu, d.err = newGPU(d)
	})
	if d.err != nil {
		return nil, d.err
	}
	return d.gpu, nil
}

// Close implements driver.Driver.
func (d *Driver) Close() {
	if d.gpu != nil {
		d.gpu.destroy()
		d.gpu = nil
		d.once = sync.Once{}
	}
}

// GPU implements driver.GPU against a single Vulkan physical device.
type GPU struct {
	drv     *Driver
	inst     vk.Instance
	instExts []string
	pdev     vk.PhysicalDevice
	dev      vk.Device
	queue    vk.Queue
	qFamily  uint32

	descPool vk.DescriptorPool

	limits driver.Limits

	cmdPool vk.CommandPool

	mu sync.Mutex
}

func newGPU(drv *Driver) (*GPU, error) {
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vk: library load failed: %w", driver.ErrNotInstalled)
	}
	g := &GPU{drv: drv}
	if err := g.createInstance(); err != nil {
		return nil, err
	}
	if err := g.choosePhysicalDevice(); err != nil {
		return nil, err
	}
	if err := g.createDevice(); err != nil {
		return nil, err
	}
	if err := g.createDescriptorPool(); err != nil {
		return nil, err
	}
	if err := g.createCommandPool(); err != nil {
		return nil, err
	}
	g.queryLimits()
	return g, nil
}

func (g *GPU) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:         vk.StructureTypeApplicationInfo,
		PApplicationName: cstr("framegraph"),
		ApiVersion:    vk.MakeVersion(1, 3, 0),
	}
	exts := g.presentExtensions()
	instInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}
	var inst vk.Instance
	if ret := vk.CreateInstance(&instInfo, nil, &inst); ret != vk.Success {
		return newError(ret, "CreateInstance")
	}
	g.inst = inst
	g.instExts = exts
	vk.InitInstance(inst)
	return nil
}

// presentExtensions returns every reported instance extension whose
// name advertises surface support (VK_KHR_surface plus whichever
// platform surface extension the running system implements). Enabling
// them unconditionally means a later Presenter.NewSwapchain call works
// without having had to know the windowing toolkit's requirements at
// Open time; GPUs with no display (headless CI, compute-only hosts)
// simply report none and presentation stays unavailable.
func (g *GPU) presentExtensions() []string {
	var count uint32
	if ret := vk.EnumerateInstanceExtensionProperties("", &count, nil); ret != vk.Success || count == 0 {
		return nil
	}
	props := make([]vk.ExtensionProperties, count)
	if ret := vk.EnumerateInstanceExtensionProperties("", &count, props); ret != vk.Success {
		return nil
	}
	var exts []string
	for i := range props {
		props[i].Deref()
		name := vk.ToString(props[i].ExtensionName[:])
		if strings.Contains(name, "surface") || strings.Contains(name, "Surface") {
			exts = append(exts, name+"\x00")
		}
	}
	return exts
}

func (g *GPU) choosePhysicalDevice() error {
	var count uint32
	if ret := vk.EnumeratePhysicalDevices(g.inst, &count, nil); ret != vk.Success || count == 0 {
		return driver.ErrNoDevice
	}
	pdevs := make([]vk.PhysicalDevice, count)
	if ret := vk.EnumeratePhysicalDevices(g.inst, &count, pdevs); ret != vk.Success {
		return newError(ret, "EnumeratePhysicalDevices")
	}
	// Prefer a discrete GPU; fall back to the first reported device.
	g.pdev = pdevs[0]
	for _, pd := range pdevs {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			g.pdev = pd
			break
		}
	}
	return nil
}

func (g *GPU) createDevice() error {
	var famCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(g.pdev, &famCount, nil)
	fams := make([]vk.QueueFamilyProperties, famCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(g.pdev, &famCount, fams)
	found := false
	for i, f := range fams {
		f.Deref()
		if f.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			g.qFamily = uint32(i)
			found = true
			break
		}
	}
	if !found {
		return errors.New("vk: no graphics-capable queue family")
	}
	prio := []float32{1.0}
	qInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: g.qFamily,
		QueueCount:       1,
		PQueuePriorities: prio,
	}
	feats := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}
	// Enable VK_KHR_swapchain whenever the instance was able to enable
	// surface support; a headless GPU simply skips it and Presenter
	// support stays unavailable (NewSwapchain reports ErrCannotPresent).
	var devExts []string
	if len(g.instExts) > 0 {
		devExts = []string{"VK_KHR_swapchain\x00"}
	}
	devInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{qInfo},
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{feats},
		EnabledExtensionCount:   uint32(len(devExts)),
		PpEnabledExtensionNames: devExts,
	}
	var dev vk.Device
	if ret := vk.CreateDevice(g.pdev, &devInfo, nil, &dev); ret != vk.Success {
		return newError(ret, "CreateDevice")
	}
	g.dev = dev
	var q vk.Queue
	vk.GetDeviceQueue(g.dev, g.qFamily, 0, &q)
	g.queue = q
	return nil
}

// descriptorPoolReserve is the number of descriptors of each type the
// shared pool is sized for; it bounds the number of descriptor sets a
// single frame's pass graph can allocate.
const descriptorPoolReserve = 256

func (g *GPU) createDescriptorPool() error {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: descriptorPoolReserve},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: descriptorPoolReserve},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: descriptorPoolReserve},
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       descriptorPoolReserve,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if ret := vk.CreateDescriptorPool(g.dev, &info, nil, &pool); ret != vk.Success {
		return newError(ret, "CreateDescriptorPool")
	}
	g.descPool = pool
	return nil
}

func (g *GPU) createCommandPool() error {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: g.qFamily,
	}
	var pool vk.CommandPool
	if ret := vk.CreateCommandPool(g.dev, &info, nil, &pool); ret != vk.Success {
		return newError(ret, "CreateCommandPool")
	}
	g.cmdPool = pool
	return nil
}

func (g *GPU) queryLimits() {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(g.pdev, &props)
	props.Deref()
	l := props.Limits
	l.Deref()
	g.limits = driver.Limits{
		MaxImage1D:   int(l.MaxImageDimension1D),
		MaxImage2D:   int(l.MaxImageDimension2D),
		MaxImageCube: int(l.MaxImageDimensionCube),
		MaxImage3D:   int(l.MaxImageDimension3D),
		MaxLayers:    int(l.MaxImageArrayLayers),

		MaxDescHeaps: 4,
		MaxDBuffer:   int(l.MaxDescriptorSetUniformBuffers),
		MaxDImage:    int(l.MaxDescriptorSetSampledImages),
		MaxDConstant: int(l.MaxDescriptorSetUniformBuffers),
		MaxDTexture:  int(l.MaxDescriptorSetSampledImages),
		MaxDSampler:  int(l.MaxDescriptorSetSamplers),

		MaxColorTargets: int(l.MaxColorAttachments),
		MaxFBSize:       [2]int{int(l.MaxFramebufferWidth), int(l.MaxFramebufferHeight)},
		MaxFBLayers:     int(l.MaxFramebufferLayers),
		MaxPointSize:    l.PointSizeRange[1],
		MaxViewports:    int(l.MaxViewports),

		MaxVertexIn:   int(l.MaxVertexInputAttributes),
		MaxFragmentIn: int(l.MaxFragmentInputComponents),
	}
}

func (g *GPU) destroy() {
	if g.dev != nil {
		vk.DeviceWaitIdle(g.dev)
		if g.cmdPool != vk.NullCommandPool {
			vk.DestroyCommandPool(g.dev, g.cmdPool, nil)
		}
		if g.descPool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(g.dev, g.descPool, nil)
		}
		vk.DestroyDevice(g.dev, nil)
	}
	if g.inst != nil {
		vk.DestroyInstance(g.inst, nil)
	}
}

// Driver implements driver.GPU.
func (g *GPU) Driver() driver.Driver { return g.drv }

// Limits implements driver.GPU.
func (g *GPU) Limits() driver.Limits { return g.limits }

func cstr(s string) string { return s + "\x00" }
