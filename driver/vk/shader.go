// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// ShaderCode implements driver.ShaderCode.
type ShaderCode struct {
	gpu    *GPU
	module vk.ShaderModule
}

// NewShaderCode implements driver.GPU.
// data must hold a SPIR-V binary with a length that is a multiple of 4.
func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}
	var mod vk.ShaderModule
	if ret := vk.CreateShaderModule(g.dev, &info, nil, &mod); ret != vk.Success {
		return nil, newError(ret, "CreateShaderModule")
	}
	return &ShaderCode{gpu: g, module: mod}, nil
}

func sliceUint32(b []byte) []uint32 {
	n := len(b) / 4
	u := make([]uint32, n)
	for i := 0; i < n; i++ {
		u[i] = uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
	}
	return u
}

// Destroy implements driver.Destroyer.
func (s *ShaderCode) Destroy() {
	if s == nil || s.module == vk.NullShaderModule {
		return
	}
	vk.DestroyShaderModule(s.gpu.dev, s.module, nil)
	s.module = vk.NullShaderModule
}
