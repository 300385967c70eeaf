package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// QueueSubmission describes a single command buffer submission to the graphics queue.
// Null semaphores are skipped.
type QueueSubmission struct {
	CommandBuffer   vk.CommandBuffer
	WaitSemaphore   vk.Semaphore
	WaitStage       vk.PipelineStageFlags
	SignalSemaphore vk.Semaphore
	Fence           vk.Fence
}

// Device is the set of API entry points the frame, upload and builder code drives.
// VulkanDevice implements it on top of a logical device.
type Device interface {
	// Synchronization
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result
	ResetFence(fence vk.Fence) error
	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)

	// Commands
	CreateCommandPool(queueFamily uint32, flags vk.CommandPoolCreateFlags) (vk.CommandPool, error)
	DestroyCommandPool(pool vk.CommandPool)
	AllocateCommandBuffer(pool vk.CommandPool) (vk.CommandBuffer, error)
	ResetCommandBuffer(cmd vk.CommandBuffer) error
	BeginCommandBuffer(cmd vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error
	EndCommandBuffer(cmd vk.CommandBuffer) error
	QueueSubmit(submit QueueSubmission) error
	WaitIdle() error

	// Descriptors
	CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error)
	ResetDescriptorPool(pool vk.DescriptorPool) error
	DestroyDescriptorPool(pool vk.DescriptorPool)
	AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error)
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)

	// Pipelines
	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)
	CreateComputePipeline(info *vk.ComputePipelineCreateInfo) (vk.Pipeline, error)
	DestroyPipeline(pipeline vk.Pipeline)
	CreateShaderModule(code []uint32) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)

	// Memory and resources
	MemoryProperties() vk.PhysicalDeviceMemoryProperties
	CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error)
	DestroyBuffer(buffer vk.Buffer)
	BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements
	CreateImage(info *vk.ImageCreateInfo) (vk.Image, error)
	DestroyImage(image vk.Image)
	ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	AllocateMemory(size vk.DeviceSize, memoryTypeIndex uint32, deviceAddress bool) (vk.DeviceMemory, error)
	FreeMemory(memory vk.DeviceMemory)
	BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory) error
	BindImageMemory(image vk.Image, memory vk.DeviceMemory) error
	MapMemory(memory vk.DeviceMemory, size vk.DeviceSize) ([]byte, error)
	UnmapMemory(memory vk.DeviceMemory)
	BufferDeviceAddress(buffer vk.Buffer) vk.DeviceAddress

	// Transfer commands
	CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy)
	CmdCopyImageToBuffer(cmd vk.CommandBuffer, src vk.Image, layout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy)
	CmdBlitImage(cmd vk.CommandBuffer, src vk.Image, dst vk.Image, srcSize, dstSize vk.Extent2D)
	CmdImageBarrier(cmd vk.CommandBuffer, barrier vk.ImageMemoryBarrier, srcStage, dstStage vk.PipelineStageFlags)
}

func (d *VulkanDevice) CreateFence(signaled bool) (vk.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := ResultError("vkCreateFence", vk.CreateFence(d.LogicalDevice, &info, d.Allocator, &fence)); err != nil {
		return vk.NullFence, err
	}
	return fence, nil
}

func (d *VulkanDevice) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(d.LogicalDevice, fence, d.Allocator)
}

func (d *VulkanDevice) WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result {
	return vk.WaitForFences(d.LogicalDevice, 1, []vk.Fence{fence}, vk.True, timeoutNs)
}

func (d *VulkanDevice) ResetFence(fence vk.Fence) error {
	return ResultError("vkResetFences", vk.ResetFences(d.LogicalDevice, 1, []vk.Fence{fence}))
}

func (d *VulkanDevice) CreateSemaphore() (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := ResultError("vkCreateSemaphore", vk.CreateSemaphore(d.LogicalDevice, &info, d.Allocator, &semaphore)); err != nil {
		return vk.NullSemaphore, err
	}
	return semaphore, nil
}

func (d *VulkanDevice) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(d.LogicalDevice, semaphore, d.Allocator)
}

func (d *VulkanDevice) CreateCommandPool(queueFamily uint32, flags vk.CommandPoolCreateFlags) (vk.CommandPool, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            flags,
	}
	var pool vk.CommandPool
	if err := ResultError("vkCreateCommandPool", vk.CreateCommandPool(d.LogicalDevice, &info, d.Allocator, &pool)); err != nil {
		return vk.NullCommandPool, err
	}
	return pool, nil
}

func (d *VulkanDevice) DestroyCommandPool(pool vk.CommandPool) {
	vk.DestroyCommandPool(d.LogicalDevice, pool, d.Allocator)
}

func (d *VulkanDevice) AllocateCommandBuffer(pool vk.CommandPool) (vk.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := ResultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(d.LogicalDevice, &info, buffers)); err != nil {
		return nil, err
	}
	return buffers[0], nil
}

func (d *VulkanDevice) ResetCommandBuffer(cmd vk.CommandBuffer) error {
	return ResultError("vkResetCommandBuffer", vk.ResetCommandBuffer(cmd, 0))
}

func (d *VulkanDevice) BeginCommandBuffer(cmd vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	return ResultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(cmd, &info))
}

func (d *VulkanDevice) EndCommandBuffer(cmd vk.CommandBuffer) error {
	return ResultError("vkEndCommandBuffer", vk.EndCommandBuffer(cmd))
}

func (d *VulkanDevice) QueueSubmit(submit QueueSubmission) error {
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{submit.CommandBuffer},
	}
	if submit.WaitSemaphore != vk.NullSemaphore {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{submit.WaitSemaphore}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{submit.WaitStage}
	}
	if submit.SignalSemaphore != vk.NullSemaphore {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{submit.SignalSemaphore}
	}
	return ResultError("vkQueueSubmit", vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{info}, submit.Fence))
}

func (d *VulkanDevice) WaitIdle() error {
	return ResultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.LogicalDevice))
}

func (d *VulkanDevice) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	if err := ResultError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.LogicalDevice, info, d.Allocator, &layout)); err != nil {
		return vk.NullDescriptorSetLayout, err
	}
	return layout, nil
}

func (d *VulkanDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(d.LogicalDevice, layout, d.Allocator)
}

func (d *VulkanDevice) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	var pool vk.DescriptorPool
	if err := ResultError("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.LogicalDevice, info, d.Allocator, &pool)); err != nil {
		return vk.NullDescriptorPool, err
	}
	return pool, nil
}

func (d *VulkanDevice) ResetDescriptorPool(pool vk.DescriptorPool) error {
	return ResultError("vkResetDescriptorPool", vk.ResetDescriptorPool(d.LogicalDevice, pool, 0))
}

func (d *VulkanDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(d.LogicalDevice, pool, d.Allocator)
}

func (d *VulkanDevice) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if err := ResultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(d.LogicalDevice, &info, &set)); err != nil {
		return nil, err
	}
	return set, nil
}

func (d *VulkanDevice) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(writes)), writes, 0, nil)
}

func (d *VulkanDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	if err := ResultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(d.LogicalDevice, info, d.Allocator, &layout)); err != nil {
		return vk.NullPipelineLayout, err
	}
	return layout, nil
}

func (d *VulkanDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(d.LogicalDevice, layout, d.Allocator)
}

func (d *VulkanDevice) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{*info}, d.Allocator, pipelines)
	if err := ResultError("vkCreateGraphicsPipelines", res); err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

func (d *VulkanDevice) CreateComputePipeline(info *vk.ComputePipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateComputePipelines(d.LogicalDevice, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{*info}, d.Allocator, pipelines)
	if err := ResultError("vkCreateComputePipelines", res); err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

func (d *VulkanDevice) DestroyPipeline(pipeline vk.Pipeline) {
	vk.DestroyPipeline(d.LogicalDevice, pipeline, d.Allocator)
}

func (d *VulkanDevice) CreateShaderModule(code []uint32) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := ResultError("vkCreateShaderModule", vk.CreateShaderModule(d.LogicalDevice, &info, d.Allocator, &module)); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

func (d *VulkanDevice) DestroyShaderModule(module vk.ShaderModule) {
	vk.DestroyShaderModule(d.LogicalDevice, module, d.Allocator)
}

func (d *VulkanDevice) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return d.Memory
}

func (d *VulkanDevice) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	var buffer vk.Buffer
	if err := ResultError("vkCreateBuffer", vk.CreateBuffer(d.LogicalDevice, info, d.Allocator, &buffer)); err != nil {
		return vk.NullBuffer, err
	}
	return buffer, nil
}

func (d *VulkanDevice) DestroyBuffer(buffer vk.Buffer) {
	vk.DestroyBuffer(d.LogicalDevice, buffer, d.Allocator)
}

func (d *VulkanDevice) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, buffer, &req)
	req.Deref()
	return req
}

func (d *VulkanDevice) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	var image vk.Image
	if err := ResultError("vkCreateImage", vk.CreateImage(d.LogicalDevice, info, d.Allocator, &image)); err != nil {
		return vk.NullImage, err
	}
	return image, nil
}

func (d *VulkanDevice) DestroyImage(image vk.Image) {
	vk.DestroyImage(d.LogicalDevice, image, d.Allocator)
}

func (d *VulkanDevice) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, image, &req)
	req.Deref()
	return req
}

func (d *VulkanDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	if err := ResultError("vkCreateImageView", vk.CreateImageView(d.LogicalDevice, info, d.Allocator, &view)); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

func (d *VulkanDevice) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.LogicalDevice, view, d.Allocator)
}

func (d *VulkanDevice) AllocateMemory(size vk.DeviceSize, memoryTypeIndex uint32, deviceAddress bool) (vk.DeviceMemory, error) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: memoryTypeIndex,
	}
	if deviceAddress {
		flagsInfo := vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureTypeMemoryAllocateFlagsInfo,
			Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
		}
		ref, allocs := flagsInfo.PassRef()
		if allocs != nil {
			defer freeCAllocs(allocs)
		}
		info.PNext = unsafe.Pointer(ref)
	}
	var memory vk.DeviceMemory
	if err := ResultError("vkAllocateMemory", vk.AllocateMemory(d.LogicalDevice, &info, d.Allocator, &memory)); err != nil {
		return vk.NullDeviceMemory, err
	}
	return memory, nil
}

func (d *VulkanDevice) FreeMemory(memory vk.DeviceMemory) {
	vk.FreeMemory(d.LogicalDevice, memory, d.Allocator)
}

func (d *VulkanDevice) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory) error {
	return ResultError("vkBindBufferMemory", vk.BindBufferMemory(d.LogicalDevice, buffer, memory, 0))
}

func (d *VulkanDevice) BindImageMemory(image vk.Image, memory vk.DeviceMemory) error {
	return ResultError("vkBindImageMemory", vk.BindImageMemory(d.LogicalDevice, image, memory, 0))
}

func (d *VulkanDevice) MapMemory(memory vk.DeviceMemory, size vk.DeviceSize) ([]byte, error) {
	var ptr unsafe.Pointer
	if err := ResultError("vkMapMemory", vk.MapMemory(d.LogicalDevice, memory, 0, size, 0, &ptr)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(ptr), int(size)), nil
}

func (d *VulkanDevice) UnmapMemory(memory vk.DeviceMemory) {
	vk.UnmapMemory(d.LogicalDevice, memory)
}

func (d *VulkanDevice) BufferDeviceAddress(buffer vk.Buffer) vk.DeviceAddress {
	if d.procs == nil {
		return 0
	}
	info := vk.BufferDeviceAddressInfo{
		SType:  vk.StructureTypeBufferDeviceAddressInfo,
		Buffer: buffer,
	}
	return d.procs.bufferDeviceAddress(d.LogicalDevice, &info)
}

// CmdBeginRendering opens a dynamic rendering pass on cmd.
func (d *VulkanDevice) CmdBeginRendering(cmd vk.CommandBuffer, info *vk.RenderingInfo) {
	if d.procs != nil {
		d.procs.beginRendering(cmd, info)
	}
}

func (d *VulkanDevice) CmdEndRendering(cmd vk.CommandBuffer) {
	if d.procs != nil {
		d.procs.endRendering(cmd)
	}
}

func (d *VulkanDevice) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	vk.CmdCopyBuffer(cmd, src, dst, uint32(len(regions)), regions)
}

func (d *VulkanDevice) CmdCopyImageToBuffer(cmd vk.CommandBuffer, src vk.Image, layout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy) {
	vk.CmdCopyImageToBuffer(cmd, src, layout, dst, uint32(len(regions)), regions)
}

func (d *VulkanDevice) CmdBlitImage(cmd vk.CommandBuffer, src vk.Image, dst vk.Image, srcSize, dstSize vk.Extent2D) {
	region := vk.ImageBlit{
		SrcSubresource: colorSubresourceLayers(),
		DstSubresource: colorSubresourceLayers(),
	}
	region.SrcOffsets[1] = vk.Offset3D{X: int32(srcSize.Width), Y: int32(srcSize.Height), Z: 1}
	region.DstOffsets[1] = vk.Offset3D{X: int32(dstSize.Width), Y: int32(dstSize.Height), Z: 1}
	vk.CmdBlitImage(cmd,
		src, vk.ImageLayoutTransferSrcOptimal,
		dst, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{region}, vk.FilterLinear)
}

func (d *VulkanDevice) CmdImageBarrier(cmd vk.CommandBuffer, barrier vk.ImageMemoryBarrier, srcStage, dstStage vk.PipelineStageFlags) {
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
