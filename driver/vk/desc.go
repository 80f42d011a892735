// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// DescHeap implements driver.DescHeap.
// It owns a single vk.DescriptorSetLayout and, after New, a number of
// vk.DescriptorSet copies allocated from the GPU's shared pool.
type DescHeap struct {
	gpu    *GPU
	layout vk.DescriptorSetLayout
	descs  []driver.Descriptor
	sets   []vk.DescriptorSet
}

// NewDescHeap implements driver.GPU.
func (g *GPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(ds))
	for i, d := range ds {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(d.Nr),
			DescriptorType:  vkDescType(d.Type),
			DescriptorCount: uint32(max(d.Len, 1)),
			StageFlags:      vk.ShaderStageFlags(vkStageFlags(d.Stages)),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if ret := vk.CreateDescriptorSetLayout(g.dev, &info, nil, &layout); ret != vk.Success {
		return nil, newError(ret, "CreateDescriptorSetLayout")
	}
	return &DescHeap{gpu: g, layout: layout, descs: append([]driver.Descriptor(nil), ds...)}, nil
}

func vkDescType(t driver.DescType) vk.DescriptorType {
	switch t {
	case driver.DConstant:
		return vk.DescriptorTypeUniformBuffer
	case driver.DImage:
		return vk.DescriptorTypeStorageImage
	case driver.DTexture:
		return vk.DescriptorTypeSampledImage
	case driver.DSampler:
		return vk.DescriptorTypeSampler
	default:
		return vk.DescriptorTypeStorageBuffer
	}
}

func vkStageFlags(s driver.Stage) vk.ShaderStageFlagBits {
	var f vk.ShaderStageFlagBits
	if s&driver.SVertex != 0 {
		f |= vk.ShaderStageVertexBit
	}
	if s&driver.SFragment != 0 {
		f |= vk.ShaderStageFragmentBit
	}
	if s&driver.SCompute != 0 {
		f |= vk.ShaderStageComputeBit
	}
	return f
}

// New implements driver.DescHeap.
func (h *DescHeap) New(n int) error {
	if n == len(h.sets) {
		return nil
	}
	if len(h.sets) > 0 {
		vk.FreeDescriptorSets(h.gpu.dev, h.gpu.descPool, uint32(len(h.sets)), h.sets)
		h.sets = nil
	}
	if n == 0 {
		return nil
	}
	layouts := make([]vk.DescriptorSetLayout, n)
	for i := range layouts {
		layouts[i] = h.layout
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     h.gpu.descPool,
		DescriptorSetCount: uint32(n),
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, n)
	if ret := vk.AllocateDescriptorSets(h.gpu.dev, &info, &sets[0]); ret != vk.Success {
		return newError(ret, "AllocateDescriptorSets")
	}
	h.sets = sets
	return nil
}

func (h *DescHeap) descFor(nr int) (driver.Descriptor, bool) {
	for _, d := range h.descs {
		if d.Nr == nr {
			return d, true
		}
	}
	return driver.Descriptor{}, false
}

// SetBuffer implements driver.DescHeap.
func (h *DescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	d, ok := h.descFor(nr)
	if !ok || cpy >= len(h.sets) {
		return
	}
	infos := make([]vk.DescriptorBufferInfo, len(buf))
	for i, b := range buf {
		infos[i] = vk.DescriptorBufferInfo{
			Buffer: b.(*Buffer).buf,
			Offset: vk.DeviceSize(off[i]),
			Range:  vk.DeviceSize(size[i]),
		}
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          h.sets[cpy],
		DstBinding:      uint32(nr),
		DstArrayElement: uint32(start),
		DescriptorCount: uint32(len(infos)),
		DescriptorType:  vkDescType(d.Type),
		PBufferInfo:     infos,
	}
	vk.UpdateDescriptorSets(h.gpu.dev, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// SetImage implements driver.DescHeap.
func (h *DescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	d, ok := h.descFor(nr)
	if !ok || cpy >= len(h.sets) {
		return
	}
	layout := vk.ImageLayoutShaderReadOnlyOptimal
	if d.Type == driver.DImage {
		layout = vk.ImageLayoutGeneral
	}
	infos := make([]vk.DescriptorImageInfo, len(iv))
	for i, v := range iv {
		infos[i] = vk.DescriptorImageInfo{
			ImageView:   v.(*ImageView).view,
			ImageLayout: layout,
		}
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          h.sets[cpy],
		DstBinding:      uint32(nr),
		DstArrayElement: uint32(start),
		DescriptorCount: uint32(len(infos)),
		DescriptorType:  vkDescType(d.Type),
		PImageInfo:      infos,
	}
	vk.UpdateDescriptorSets(h.gpu.dev, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// SetSampler implements driver.DescHeap.
func (h *DescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {
	if cpy >= len(h.sets) {
		return
	}
	infos := make([]vk.DescriptorImageInfo, len(splr))
	for i, s := range splr {
		infos[i] = vk.DescriptorImageInfo{Sampler: s.(*Sampler).sampler}
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          h.sets[cpy],
		DstBinding:      uint32(nr),
		DstArrayElement: uint32(start),
		DescriptorCount: uint32(len(infos)),
		DescriptorType:  vk.DescriptorTypeSampler,
		PImageInfo:      infos,
	}
	vk.UpdateDescriptorSets(h.gpu.dev, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// Count implements driver.DescHeap.
func (h *DescHeap) Count() int { return len(h.sets) }

// Destroy implements driver.Destroyer.
func (h *DescHeap) Destroy() {
	if h == nil || h.layout == vk.NullDescriptorSetLayout {
		return
	}
	if len(h.sets) > 0 {
		vk.FreeDescriptorSets(h.gpu.dev, h.gpu.descPool, uint32(len(h.sets)), h.sets)
		h.sets = nil
	}
	vk.DestroyDescriptorSetLayout(h.gpu.dev, h.layout, nil)
	h.layout = vk.NullDescriptorSetLayout
}

// DescTable implements driver.DescTable.
// It binds a sequence of DescHeap layouts into a single
// vk.PipelineLayout shared by every pipeline that uses the table.
type DescTable struct {
	gpu    *GPU
	heaps  []*DescHeap
	layout vk.PipelineLayout
}

// NewDescTable implements driver.GPU.
func (g *GPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	heaps := make([]*DescHeap, len(dh))
	layouts := make([]vk.DescriptorSetLayout, len(dh))
	for i, h := range dh {
		heaps[i] = h.(*DescHeap)
		layouts[i] = heaps[i].layout
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(layouts)),
		PSetLayouts:    layouts,
	}
	var layout vk.PipelineLayout
	if ret := vk.CreatePipelineLayout(g.dev, &info, nil, &layout); ret != vk.Success {
		return nil, newError(ret, "CreatePipelineLayout")
	}
	return &DescTable{gpu: g, heaps: heaps, layout: layout}, nil
}

// Destroy implements driver.Destroyer.
func (t *DescTable) Destroy() {
	if t == nil || t.layout == vk.NullPipelineLayout {
		return
	}
	vk.DestroyPipelineLayout(t.gpu.dev, t.layout, nil)
	t.layout = vk.NullPipelineLayout
}
