// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// Buffer implements driver.Buffer.
type Buffer struct {
	gpu     *GPU
	buf     vk.Buffer
	mem     vk.DeviceMemory
	size    int64
	visible bool
	mapped  []byte
}

// NewBuffer implements driver.GPU.
func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(vkUsageBuffer(usg)),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if ret := vk.CreateBuffer(g.dev, &info, nil, &buf); ret != vk.Success {
		return nil, newError(ret, "CreateBuffer")
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(g.dev, buf, &req)
	req.Deref()

	props := vk.MemoryPropertyDeviceLocalBit
	if visible {
		props = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	idx, err := g.findMemoryType(req.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(g.dev, buf, nil)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}
	var mem vk.DeviceMemory
	if ret := vk.AllocateMemory(g.dev, &allocInfo, nil, &mem); ret != vk.Success {
		vk.DestroyBuffer(g.dev, buf, nil)
		return nil, newError(ret, "AllocateMemory")
	}
	vk.BindBufferMemory(g.dev, buf, mem, 0)

	b := &Buffer{gpu: g, buf: buf, mem: mem, size: int64(req.Size), visible: visible}
	if visible {
		var p unsafe.Pointer
		if ret := vk.MapMemory(g.dev, mem, 0, vk.DeviceSize(vk.WholeSize), 0, &p); ret == vk.Success {
			b.mapped = unsafe.Slice((*byte)(p), int(b.size))
		}
	}
	return b, nil
}

func (g *GPU) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(g.pdev, &memProps)
	memProps.Deref()
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		if typeBits&(1<<i) == 0 {
			continue
		}
		if memProps.MemoryTypes[i].PropertyFlags&vk.MemoryPropertyFlags(props) == vk.MemoryPropertyFlags(props) {
			return i, nil
		}
	}
	return 0, driver.ErrNoDeviceMemory
}

// Visible implements driver.Buffer.
func (b *Buffer) Visible() bool { return b.visible }

// Bytes implements driver.Buffer.
func (b *Buffer) Bytes() []byte { return b.mapped }

// Cap implements driver.Buffer.
func (b *Buffer) Cap() int64 { return b.size }

// Destroy implements driver.Destroyer.
func (b *Buffer) Destroy() {
	if b == nil || b.buf == vk.NullBuffer {
		return
	}
	if b.mapped != nil {
		vk.UnmapMemory(b.gpu.dev, b.mem)
	}
	vk.DestroyBuffer(b.gpu.dev, b.buf, nil)
	vk.FreeMemory(b.gpu.dev, b.mem, nil)
	b.buf = vk.NullBuffer
}
