// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

// Pipeline implements driver.Pipeline.
type Pipeline struct {
	gpu        *GPU
	pipeline   vk.Pipeline
	layout     vk.PipelineLayout
	bindPoint  vk.PipelineBindPoint
}

// NewPipeline implements driver.GPU.
// state must be a *driver.GraphState.
func (g *GPU) NewPipeline(state any) (driver.Pipeline, error) {
	switch s := state.(type) {
	case *driver.GraphState:
		return g.newGraphPipeline(s)
	default:
		return nil, fmt.Errorf("vk: NewPipeline: unsupported state type %T", state)
	}
}

func (g *GPU) newGraphPipeline(s *driver.GraphState) (driver.Pipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: s.VertFunc.Code.(*ShaderCode).module,
			PName:  cstr(s.VertFunc.Name),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: s.FragFunc.Code.(*ShaderCode).module,
			PName:  cstr(s.FragFunc.Name),
		},
	}

	bindings := make([]vk.VertexInputBindingDescription, len(s.Input))
	attrs := make([]vk.VertexInputAttributeDescription, len(s.Input))
	for i, in := range s.Input {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   uint32(i),
			Stride:    uint32(in.Stride),
			InputRate: vk.VertexInputRateVertex,
		}
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: uint32(in.Nr),
			Binding:  uint32(i),
			Format:   vkVertexFmt(in.Format),
		}
	}
	vertInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}

	asm := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vkTopology(s.Topology),
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	frontFace := vk.FrontFaceCounterClockwise
	if s.Raster.Clockwise {
		frontFace = vk.FrontFaceClockwise
	}
	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode:             vkPolygonMode(s.Raster.Fill),
		CullMode:                vk.CullModeFlags(vkCullMode(s.Raster.Cull)),
		FrontFace:               frontFace,
		DepthBiasEnable:         boolToVk(s.Raster.DepthBias),
		DepthBiasConstantFactor: s.Raster.BiasValue,
		DepthBiasSlopeFactor:    s.Raster.BiasSlope,
		DepthBiasClamp:          s.Raster.BiasClamp,
		LineWidth:               1,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleCountFlag(s.Samples),
	}

	ds := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       boolToVk(s.DS.DepthTest),
		DepthWriteEnable:      boolToVk(s.DS.DepthWrite),
		DepthCompareOp:        vkCmpOp(s.DS.DepthCmp),
		StencilTestEnable:     boolToVk(s.DS.StencilTest),
		Front:                 vkStencilOp(s.DS.Front),
		Back:                  vkStencilOp(s.DS.Back),
	}

	attCount := len(s.Blend.Color)
	if attCount == 0 {
		attCount = 1
	}
	colorAtt := make([]vk.PipelineColorBlendAttachmentState, attCount)
	for i := range colorAtt {
		cb := driver.ColorBlend{WriteMask: driver.CAll}
		if i < len(s.Blend.Color) && (s.Blend.IndependentBlend || i == 0) {
			cb = s.Blend.Color[i]
		} else if len(s.Blend.Color) > 0 {
			cb = s.Blend.Color[0]
		}
		colorAtt[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         boolToVk(cb.Blend),
			SrcColorBlendFactor: vkBlendFac(cb.SrcFac[0]),
			DstColorBlendFactor: vkBlendFac(cb.DstFac[0]),
			ColorBlendOp:        vkBlendOp(cb.Op[0]),
			SrcAlphaBlendFactor: vkBlendFac(cb.SrcFac[1]),
			DstAlphaBlendFactor: vkBlendFac(cb.DstFac[1]),
			AlphaBlendOp:        vkBlendOp(cb.Op[1]),
			ColorWriteMask:      vk.ColorComponentFlags(vkColorMask(cb.WriteMask)),
		}
	}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(colorAtt)),
		PAttachments:    colorAtt,
	}

	dynStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dyn := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynStates)),
		PDynamicStates:    dynStates,
	}

	layout := s.Desc.(*DescTable).layout
	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:           uint32(len(stages)),
		PStages:              stages,
		PVertexInputState:    &vertInput,
		PInputAssemblyState:  &asm,
		PViewportState:       &viewportState,
		PRasterizationState:  &raster,
		PMultisampleState:    &multisample,
		PDepthStencilState:   &ds,
		PColorBlendState:     &blend,
		PDynamicState:        &dyn,
		Layout:               layout,
		RenderPass:           s.Pass.(*RenderPass).pass,
		Subpass:              uint32(s.Subpass),
	}
	pipelines := make([]vk.Pipeline, 1)
	if ret := vk.CreateGraphicsPipelines(g.dev, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines); ret != vk.Success {
		return nil, newError(ret, "CreateGraphicsPipelines")
	}
	return &Pipeline{gpu: g, pipeline: pipelines[0], layout: layout, bindPoint: vk.PipelineBindPointGraphics}, nil
}

func vkVertexFmt(f driver.VertexFmt) vk.Format {
	switch f {
	case driver.Int8:
		return vk.FormatR8Sint
	case driver.Int8x2:
		return vk.FormatR8g8Sint
	case driver.Int8x3:
		return vk.FormatR8g8b8Sint
	case driver.Int8x4:
		return vk.FormatR8g8b8a8Sint
	case driver.Int16:
		return vk.FormatR16Sint
	case driver.Int16x2:
		return vk.FormatR16g16Sint
	case driver.Int16x3:
		return vk.FormatR16g16b16Sint
	case driver.Int16x4:
		return vk.FormatR16g16b16a16Sint
	case driver.Int32:
		return vk.FormatR32Sint
	case driver.Int32x2:
		return vk.FormatR32g32Sint
	case driver.Int32x3:
		return vk.FormatR32g32b32Sint
	case driver.Int32x4:
		return vk.FormatR32g32b32a32Sint
	case driver.UInt8:
		return vk.FormatR8Uint
	case driver.UInt8x2:
		return vk.FormatR8g8Uint
	case driver.UInt8x3:
		return vk.FormatR8g8b8Uint
	case driver.UInt8x4:
		return vk.FormatR8g8b8a8Uint
	case driver.UInt16:
		return vk.FormatR16Uint
	case driver.UInt16x2:
		return vk.FormatR16g16Uint
	case driver.UInt16x3:
		return vk.FormatR16g16b16Uint
	case driver.UInt16x4:
		return vk.FormatR16g16b16a16Uint
	case driver.UInt32:
		return vk.FormatR32Uint
	case driver.UInt32x2:
		return vk.FormatR32g32Uint
	case driver.UInt32x3:
		return vk.FormatR32g32b32Uint
	case driver.UInt32x4:
		return vk.FormatR32g32b32a32Uint
	case driver.Float32x2:
		return vk.FormatR32g32Sfloat
	case driver.Float32x3:
		return vk.FormatR32g32b32Sfloat
	case driver.Float32x4:
		return vk.FormatR32g32b32a32Sfloat
	default:
		return vk.FormatR32Sfloat
	}
}

func vkTopology(t driver.Topology) vk.PrimitiveTopology {
	switch t {
	case driver.TLine:
		return vk.PrimitiveTopologyLineList
	case driver.TLnStrip:
		return vk.PrimitiveTopologyLineStrip
	case driver.TTriStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case driver.TPoint:
		return vk.PrimitiveTopologyPointList
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func vkStencilOpState(op driver.StencilOp) vk.StencilOp {
	switch op {
	case driver.SZero:
		return vk.StencilOpZero
	case driver.SReplace:
		return vk.StencilOpReplace
	case driver.SIncClamp:
		return vk.StencilOpIncrementAndClamp
	case driver.SDecClamp:
		return vk.StencilOpDecrementAndClamp
	case driver.SInvert:
		return vk.StencilOpInvert
	case driver.SIncWrap:
		return vk.StencilOpIncrementAndWrap
	case driver.SDecWrap:
		return vk.StencilOpDecrementAndWrap
	default:
		return vk.StencilOpKeep
	}
}

func vkStencilOp(st driver.StencilT) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:    vkStencilOpState(st.DSFail[0]),
		DepthFailOp: vkStencilOpState(st.DSFail[1]),
		PassOp:    vkStencilOpState(st.Pass),
		CompareOp: vkCmpOp(st.Cmp),
		CompareMask: st.ReadMask,
		WriteMask:   st.WriteMask,
	}
}

func vkBlendOp(op driver.BlendOp) vk.BlendOp {
	switch op {
	case driver.BSubtract:
		return vk.BlendOpSubtract
	case driver.BRevSubtract:
		return vk.BlendOpReverseSubtract
	case driver.BMin:
		return vk.BlendOpMin
	case driver.BMax:
		return vk.BlendOpMax
	default:
		return vk.BlendOpAdd
	}
}

func vkBlendFac(f driver.BlendFac) vk.BlendFactor {
	switch f {
	case driver.BOne:
		return vk.BlendFactorOne
	case driver.BSrcColor:
		return vk.BlendFactorSrcColor
	case driver.BInvSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case driver.BSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case driver.BInvSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case driver.BDstColor:
		return vk.BlendFactorDstColor
	case driver.BInvDstColor:
		return vk.BlendFactorOneMinusDstColor
	case driver.BDstAlpha:
		return vk.BlendFactorDstAlpha
	case driver.BInvDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	case driver.BSrcAlphaSaturated:
		return vk.BlendFactorSrcAlphaSaturate
	case driver.BBlendColor:
		return vk.BlendFactorConstantColor
	case driver.BInvBlendColor:
		return vk.BlendFactorOneMinusConstantColor
	default:
		return vk.BlendFactorZero
	}
}

func vkColorMask(m driver.ColorMask) vk.ColorComponentFlagBits {
	var f vk.ColorComponentFlagBits
	if m&driver.CRed != 0 {
		f |= vk.ColorComponentRBit
	}
	if m&driver.CGreen != 0 {
		f |= vk.ColorComponentGBit
	}
	if m&driver.CBlue != 0 {
		f |= vk.ColorComponentBBit
	}
	if m&driver.CAlpha != 0 {
		f |= vk.ColorComponentABit
	}
	return f
}

// Destroy implements driver.Destroyer.
func (p *Pipeline) Destroy() {
	if p == nil || p.pipeline == vk.NullPipeline {
		return
	}
	vk.DestroyPipeline(p.gpu.dev, p.pipeline, nil)
	p.pipeline = vk.NullPipeline
}
