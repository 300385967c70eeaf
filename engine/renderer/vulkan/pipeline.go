package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
)

/**
 * @brief Holds a Vulkan pipeline and the layout it was built with. The layout is owned by
 * whoever created it and may be shared between pipelines.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
}

func (pipeline *VulkanPipeline) Destroy(device Device) {
	if pipeline.Handle != vk.NullPipeline {
		device.DestroyPipeline(pipeline.Handle)
		pipeline.Handle = vk.NullPipeline
	}
}

func (pipeline *VulkanPipeline) Bind(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(cmd, bindPoint, pipeline.Handle)
}

// NewPipelineLayout creates a layout from descriptor set layouts and push constant ranges.
func NewPipelineLayout(device Device, setLayouts []vk.DescriptorSetLayout, pushConstants []vk.PushConstantRange) (vk.PipelineLayout, error) {
	// NOTE: 32 is the max number of ranges we can ever have, since the API only guarantees 128 bytes with 4-byte alignment.
	if len(pushConstants) > 32 {
		return vk.NullPipelineLayout, fmt.Errorf("cannot have more than 32 push constant ranges. Passed count: %d", len(pushConstants))
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pushConstants)),
		PPushConstantRanges:    pushConstants,
	}
	layout, err := device.CreatePipelineLayout(&info)
	if err != nil {
		core.LogError("failed to create pipeline layout: %s", err)
		return vk.NullPipelineLayout, err
	}
	return layout, nil
}

/**
 * @brief Accumulates graphics pipeline sub-state for dynamic rendering. Every sub-state the
 * pipeline needs must be set before Build; nothing is defaulted except the single dynamic
 * viewport and scissor, the single blend attachment and the empty vertex input.
 */
type PipelineBuilder struct {
	ShaderStages         []vk.PipelineShaderStageCreateInfo
	InputAssembly        vk.PipelineInputAssemblyStateCreateInfo
	Rasterizer           vk.PipelineRasterizationStateCreateInfo
	ColorBlendAttachment vk.PipelineColorBlendAttachmentState
	Multisampling        vk.PipelineMultisampleStateCreateInfo
	PipelineLayout       vk.PipelineLayout
	DepthStencil         vk.PipelineDepthStencilStateCreateInfo
	RenderInfo           vk.PipelineRenderingCreateInfo

	colorAttachmentFormat vk.Format
}

// NewPipelineBuilder returns a builder in the cleared state.
func NewPipelineBuilder() *PipelineBuilder {
	b := &PipelineBuilder{}
	b.Clear()
	return b
}

// Clear zeroes every sub-state and restores its structure type.
func (b *PipelineBuilder) Clear() {
	b.InputAssembly = vk.PipelineInputAssemblyStateCreateInfo{SType: vk.StructureTypePipelineInputAssemblyStateCreateInfo}
	b.Rasterizer = vk.PipelineRasterizationStateCreateInfo{SType: vk.StructureTypePipelineRasterizationStateCreateInfo}
	b.ColorBlendAttachment = vk.PipelineColorBlendAttachmentState{}
	b.Multisampling = vk.PipelineMultisampleStateCreateInfo{SType: vk.StructureTypePipelineMultisampleStateCreateInfo}
	b.PipelineLayout = vk.NullPipelineLayout
	b.DepthStencil = vk.PipelineDepthStencilStateCreateInfo{SType: vk.StructureTypePipelineDepthStencilStateCreateInfo}
	b.RenderInfo = vk.PipelineRenderingCreateInfo{SType: vk.StructureTypePipelineRenderingCreateInfo}
	b.ShaderStages = nil
	b.colorAttachmentFormat = vk.FormatUndefined
}

func shaderStage(stage vk.ShaderStageFlagBits, module vk.ShaderModule) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: module,
		PName:  VulkanSafeString("main"),
	}
}

func (b *PipelineBuilder) SetShaders(vertexShader, fragmentShader vk.ShaderModule) {
	b.ShaderStages = []vk.PipelineShaderStageCreateInfo{
		shaderStage(vk.ShaderStageVertexBit, vertexShader),
		shaderStage(vk.ShaderStageFragmentBit, fragmentShader),
	}
}

func (b *PipelineBuilder) SetInputTopology(topology vk.PrimitiveTopology) {
	b.InputAssembly.Topology = topology
	// Only used for strips and fans.
	b.InputAssembly.PrimitiveRestartEnable = vk.False
}

func (b *PipelineBuilder) SetPolygonMode(mode vk.PolygonMode) {
	b.Rasterizer.PolygonMode = mode
	b.Rasterizer.LineWidth = 1.0
}

func (b *PipelineBuilder) SetCullMode(cullMode vk.CullModeFlags, frontFace vk.FrontFace) {
	b.Rasterizer.CullMode = cullMode
	b.Rasterizer.FrontFace = frontFace
}

func (b *PipelineBuilder) SetMultisamplingNone() {
	b.Multisampling.SampleShadingEnable = vk.False
	b.Multisampling.RasterizationSamples = vk.SampleCount1Bit
	b.Multisampling.MinSampleShading = 1.0
	b.Multisampling.PSampleMask = nil
	b.Multisampling.AlphaToCoverageEnable = vk.False
	b.Multisampling.AlphaToOneEnable = vk.False
}

var colorWriteAll = vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
	vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit)

func (b *PipelineBuilder) DisableBlending() {
	b.ColorBlendAttachment.ColorWriteMask = colorWriteAll
	b.ColorBlendAttachment.BlendEnable = vk.False
}

// EnableBlendingAdditive: out = src.rgb * src.a + dst.rgb
func (b *PipelineBuilder) EnableBlendingAdditive() {
	b.ColorBlendAttachment = vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOne,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      colorWriteAll,
	}
}

// EnableBlendingAlphaBlend: out = src.rgb * src.a + dst.rgb * (1 - src.a)
func (b *PipelineBuilder) EnableBlendingAlphaBlend() {
	b.ColorBlendAttachment = vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      colorWriteAll,
	}
}

func (b *PipelineBuilder) SetColorAttachmentFormat(format vk.Format) {
	b.colorAttachmentFormat = format
	b.RenderInfo.ColorAttachmentCount = 1
	b.RenderInfo.PColorAttachmentFormats = []vk.Format{format}
}

func (b *PipelineBuilder) SetDepthFormat(format vk.Format) {
	b.RenderInfo.DepthAttachmentFormat = format
}

func (b *PipelineBuilder) DisableDepthTest() {
	b.DepthStencil.DepthTestEnable = vk.False
	b.DepthStencil.DepthWriteEnable = vk.False
	b.DepthStencil.DepthCompareOp = vk.CompareOpNever
	b.DepthStencil.DepthBoundsTestEnable = vk.False
	b.DepthStencil.StencilTestEnable = vk.False
	b.DepthStencil.Front = vk.StencilOpState{}
	b.DepthStencil.Back = vk.StencilOpState{}
	b.DepthStencil.MinDepthBounds = 0.0
	b.DepthStencil.MaxDepthBounds = 1.0
}

func (b *PipelineBuilder) EnableDepthTest(depthWriteEnable bool, op vk.CompareOp) {
	b.DepthStencil.DepthTestEnable = vk.True
	b.DepthStencil.DepthWriteEnable = vk.False
	if depthWriteEnable {
		b.DepthStencil.DepthWriteEnable = vk.True
	}
	b.DepthStencil.DepthCompareOp = op
	b.DepthStencil.DepthBoundsTestEnable = vk.False
	b.DepthStencil.StencilTestEnable = vk.False
	b.DepthStencil.Front = vk.StencilOpState{}
	b.DepthStencil.Back = vk.StencilOpState{}
	b.DepthStencil.MinDepthBounds = 0.0
	b.DepthStencil.MaxDepthBounds = 1.0
}

func (b *PipelineBuilder) SetLayout(layout vk.PipelineLayout) {
	b.PipelineLayout = layout
}

// Validate reports sub-state a usable pipeline cannot do without. Build does not call it.
func (b *PipelineBuilder) Validate() error {
	switch {
	case len(b.ShaderStages) == 0:
		return fmt.Errorf("no shader stages set: %w", core.ErrBuilderIncomplete)
	case b.PipelineLayout == vk.NullPipelineLayout:
		return fmt.Errorf("no pipeline layout set: %w", core.ErrBuilderIncomplete)
	case b.colorAttachmentFormat == vk.FormatUndefined && b.RenderInfo.DepthAttachmentFormat == vk.FormatUndefined:
		return fmt.Errorf("no attachment formats set: %w", core.ErrBuilderIncomplete)
	}
	return nil
}

// pipelineState is the create info and every structure it points at.
type pipelineState struct {
	viewport      vk.PipelineViewportStateCreateInfo
	colorBlending vk.PipelineColorBlendStateCreateInfo
	vertexInput   vk.PipelineVertexInputStateCreateInfo
	dynamic       vk.PipelineDynamicStateCreateInfo
	inputAssembly vk.PipelineInputAssemblyStateCreateInfo
	rasterizer    vk.PipelineRasterizationStateCreateInfo
	multisampling vk.PipelineMultisampleStateCreateInfo
	depthStencil  vk.PipelineDepthStencilStateCreateInfo
	renderInfo    vk.PipelineRenderingCreateInfo

	info vk.GraphicsPipelineCreateInfo
}

func (b *PipelineBuilder) assemble() *pipelineState {
	s := &pipelineState{
		inputAssembly: b.InputAssembly,
		rasterizer:    b.Rasterizer,
		multisampling: b.Multisampling,
		depthStencil:  b.DepthStencil,
		renderInfo:    b.RenderInfo,
	}

	// Viewport and scissor are dynamic; only one of each.
	s.viewport = vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	s.colorBlending = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{b.ColorBlendAttachment},
	}

	// Vertices are pulled from a buffer device address by the shader.
	s.vertexInput = vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	s.dynamic = vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(b.ShaderStages))
	copy(stages, b.ShaderStages)

	s.info = vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &s.vertexInput,
		PInputAssemblyState: &s.inputAssembly,
		PViewportState:      &s.viewport,
		PRasterizationState: &s.rasterizer,
		PMultisampleState:   &s.multisampling,
		PDepthStencilState:  &s.depthStencil,
		PColorBlendState:    &s.colorBlending,
		PDynamicState:       &s.dynamic,
		Layout:              b.PipelineLayout,
		RenderPass:          vk.NullRenderPass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	return s
}

// Build creates the pipeline from the accumulated state. The builder is left untouched; call
// Clear before configuring an unrelated pipeline.
func (b *PipelineBuilder) Build(device Device) (*VulkanPipeline, error) {
	s := b.assemble()

	// Attachment formats reach the driver through the pNext chain. The chain lives in C memory
	// until the pipeline is created.
	renderRef, renderAllocs := s.renderInfo.PassRef()
	if renderAllocs != nil {
		defer freeCAllocs(renderAllocs)
	}
	s.info.PNext = unsafe.Pointer(renderRef)

	handle, err := device.CreateGraphicsPipeline(&s.info)
	if err != nil {
		core.LogError("failed to create graphics pipeline: %s", err)
		return nil, err
	}

	core.LogDebug("Graphics pipeline created!")
	return &VulkanPipeline{
		Handle:         handle,
		PipelineLayout: b.PipelineLayout,
	}, nil
}

// NewComputePipeline creates a compute pipeline running the main entry point of module.
func NewComputePipeline(device Device, layout vk.PipelineLayout, module vk.ShaderModule) (*VulkanPipeline, error) {
	info := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              shaderStage(vk.ShaderStageComputeBit, module),
		Layout:             layout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	handle, err := device.CreateComputePipeline(&info)
	if err != nil {
		core.LogError("failed to create compute pipeline: %s", err)
		return nil, err
	}
	return &VulkanPipeline{
		Handle:         handle,
		PipelineLayout: layout,
	}, nil
}
