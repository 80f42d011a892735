// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// Sampler implements driver.Sampler.
type Sampler struct {
	gpu     *GPU
	sampler vk.Sampler
}

// NewSampler implements driver.GPU.
func (g *GPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	anisoEnable := vk.False
	maxAniso := float32(1)
	if spln.MaxAniso > 1 {
		anisoEnable = vk.True
		maxAniso = float32(spln.MaxAniso)
	}
	cmpEnable := vk.False
	if spln.Cmp != driver.CNever {
		cmpEnable = vk.True
	}
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vkFilter(spln.Mag),
		MinFilter:               vkFilter(spln.Min),
		MipmapMode:              vkMipmapMode(spln.Mipmap),
		AddressModeU:            vkAddrMode(spln.AddrU),
		AddressModeV:            vkAddrMode(spln.AddrV),
		AddressModeW:            vkAddrMode(spln.AddrW),
		AnisotropyEnable:        anisoEnable,
		MaxAnisotropy:           maxAniso,
		CompareEnable:           cmpEnable,
		CompareOp:               vkCmpOp(spln.Cmp),
		MinLod:                  spln.MinLOD,
		MaxLod:                  spln.MaxLOD,
		BorderColor:             vk.BorderColorFloatTransparentBlack,
		UnnormalizedCoordinates: vk.False,
	}
	var s vk.Sampler
	if ret := vk.CreateSampler(g.dev, &info, nil, &s); ret != vk.Success {
		return nil, newError(ret, "CreateSampler")
	}
	return &Sampler{gpu: g, sampler: s}, nil
}

// Destroy implements driver.Destroyer.
func (s *Sampler) Destroy() {
	if s == nil || s.sampler == vk.NullSampler {
		return
	}
	vk.DestroySampler(s.gpu.dev, s.sampler, nil)
	s.sampler = vk.NullSampler
}
