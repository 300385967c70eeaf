package vulkan

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

var errInjected = errors.New("injected failure")

// fakeDevice stands in for a logical device. GPU work recorded into a command buffer runs
// when the CPU waits on the fence it was submitted with.
type fakeDevice struct {
	mu sync.Mutex

	nextID uint64
	keep   []*uint64
	calls  []string

	// failures keyed by method name
	fail map[string]error
	// every fence wait times out
	hang bool

	memoryTypeBits uint32

	fences       map[vk.Fence]bool
	fenceWork    map[vk.Fence]pendingSubmit
	recorded     map[vk.CommandBuffer][]func()
	submits      []QueueSubmission
	completed    map[int]bool
	memory       map[vk.DeviceMemory][]byte
	deviceAddr   map[vk.DeviceMemory]bool
	buffers      map[vk.Buffer]vk.DeviceSize
	bufferMemory map[vk.Buffer][]byte
	images       map[vk.Image]vk.ImageCreateInfo
	imageMemory  map[vk.Image][]byte

	setLayouts      []vk.DescriptorSetLayoutCreateInfo
	descriptorPools []vk.DescriptorPoolCreateInfo
	descriptorWrite []vk.WriteDescriptorSet
	graphics        []capturedPipeline
	compute         []vk.ComputePipelineCreateInfo
	pipelineLayouts []vk.PipelineLayoutCreateInfo
	shaderModules   [][]uint32

	live map[unsafe.Pointer]string
}

type pendingSubmit struct {
	index int
	work  []func()
}

// capturedPipeline dereferences the sub-states a graphics pipeline create info points at.
type capturedPipeline struct {
	info          vk.GraphicsPipelineCreateInfo
	viewport      vk.PipelineViewportStateCreateInfo
	colorBlend    vk.PipelineColorBlendStateCreateInfo
	vertexInput   vk.PipelineVertexInputStateCreateInfo
	dynamic       vk.PipelineDynamicStateCreateInfo
	inputAssembly vk.PipelineInputAssemblyStateCreateInfo
	rasterizer    vk.PipelineRasterizationStateCreateInfo
	depthStencil  vk.PipelineDepthStencilStateCreateInfo
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		fail:           make(map[string]error),
		memoryTypeBits: 0b11,
		fences:         make(map[vk.Fence]bool),
		fenceWork:      make(map[vk.Fence]pendingSubmit),
		recorded:       make(map[vk.CommandBuffer][]func()),
		completed:      make(map[int]bool),
		memory:         make(map[vk.DeviceMemory][]byte),
		deviceAddr:     make(map[vk.DeviceMemory]bool),
		buffers:        make(map[vk.Buffer]vk.DeviceSize),
		bufferMemory:   make(map[vk.Buffer][]byte),
		images:         make(map[vk.Image]vk.ImageCreateInfo),
		imageMemory:    make(map[vk.Image][]byte),
		live:           make(map[unsafe.Pointer]string),
	}
}

func handleID(p unsafe.Pointer) uint64 {
	if p == nil {
		return 0
	}
	return *(*uint64)(p)
}

// newHandle must be called with mu held.
func (f *fakeDevice) newHandle(kind string) unsafe.Pointer {
	f.nextID++
	id := new(uint64)
	*id = f.nextID
	f.keep = append(f.keep, id)
	p := unsafe.Pointer(id)
	f.live[p] = kind
	return p
}

// logf must be called with mu held.
func (f *fakeDevice) logf(op string, p unsafe.Pointer) {
	f.calls = append(f.calls, fmt.Sprintf("%s:%d", op, handleID(p)))
}

func (f *fakeDevice) release(p unsafe.Pointer) {
	delete(f.live, p)
}

func (f *fakeDevice) failure(op string) error {
	if err, ok := f.fail[op]; ok {
		delete(f.fail, op)
		return err
	}
	return nil
}

// note appends a marker to the call log.
func (f *fakeDevice) note(marker string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, marker)
}

func (f *fakeDevice) failNext(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = errInjected
}

func (f *fakeDevice) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeDevice) resetLog() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeDevice) submissions() []QueueSubmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]QueueSubmission, len(f.submits))
	copy(out, f.submits)
	return out
}

func (f *fakeDevice) isCompleted(submission int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed[submission]
}

func (f *fakeDevice) pendingWork() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fenceWork)
}

func (f *fakeDevice) liveHandles(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (f *fakeDevice) imageBytes(image vk.Image) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imageMemory[image]
}

// Synchronization

func (f *fakeDevice) CreateFence(signaled bool) (vk.Fence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateFence"); err != nil {
		return vk.NullFence, err
	}
	p := f.newHandle("fence")
	fence := vk.Fence(p)
	f.fences[fence] = signaled
	f.logf("CreateFence", p)
	return fence, nil
}

func (f *fakeDevice) DestroyFence(fence vk.Fence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyFence", unsafe.Pointer(fence))
	delete(f.fences, fence)
	f.release(unsafe.Pointer(fence))
}

func (f *fakeDevice) WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("WaitForFence", unsafe.Pointer(fence))
	if f.hang {
		return vk.Timeout
	}
	if pending, ok := f.fenceWork[fence]; ok {
		for _, op := range pending.work {
			op()
		}
		delete(f.fenceWork, fence)
		f.completed[pending.index] = true
		f.fences[fence] = true
	}
	if !f.fences[fence] {
		return vk.Timeout
	}
	return vk.Success
}

func (f *fakeDevice) ResetFence(fence vk.Fence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("ResetFence", unsafe.Pointer(fence))
	if err := f.failure("ResetFence"); err != nil {
		return err
	}
	f.fences[fence] = false
	return nil
}

func (f *fakeDevice) CreateSemaphore() (vk.Semaphore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateSemaphore"); err != nil {
		return vk.NullSemaphore, err
	}
	p := f.newHandle("semaphore")
	f.logf("CreateSemaphore", p)
	return vk.Semaphore(p), nil
}

func (f *fakeDevice) DestroySemaphore(semaphore vk.Semaphore) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroySemaphore", unsafe.Pointer(semaphore))
	f.release(unsafe.Pointer(semaphore))
}

// Command recording

func (f *fakeDevice) CreateCommandPool(queueFamily uint32, flags vk.CommandPoolCreateFlags) (vk.CommandPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateCommandPool"); err != nil {
		return vk.NullCommandPool, err
	}
	p := f.newHandle("command_pool")
	f.logf("CreateCommandPool", p)
	return vk.CommandPool(p), nil
}

func (f *fakeDevice) DestroyCommandPool(pool vk.CommandPool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyCommandPool", unsafe.Pointer(pool))
	f.release(unsafe.Pointer(pool))
}

func (f *fakeDevice) AllocateCommandBuffer(pool vk.CommandPool) (vk.CommandBuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("AllocateCommandBuffer"); err != nil {
		return nil, err
	}
	// Freed with the pool.
	f.nextID++
	id := new(uint64)
	*id = f.nextID
	f.keep = append(f.keep, id)
	f.logf("AllocateCommandBuffer", unsafe.Pointer(id))
	return vk.CommandBuffer(unsafe.Pointer(id)), nil
}

func (f *fakeDevice) ResetCommandBuffer(cmd vk.CommandBuffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("ResetCommandBuffer", unsafe.Pointer(cmd))
	if err := f.failure("ResetCommandBuffer"); err != nil {
		return err
	}
	delete(f.recorded, cmd)
	return nil
}

func (f *fakeDevice) BeginCommandBuffer(cmd vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("BeginCommandBuffer", unsafe.Pointer(cmd))
	if err := f.failure("BeginCommandBuffer"); err != nil {
		return err
	}
	f.recorded[cmd] = nil
	return nil
}

func (f *fakeDevice) EndCommandBuffer(cmd vk.CommandBuffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("EndCommandBuffer", unsafe.Pointer(cmd))
	return f.failure("EndCommandBuffer")
}

func (f *fakeDevice) QueueSubmit(submit QueueSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("QueueSubmit", unsafe.Pointer(submit.CommandBuffer))
	if err := f.failure("QueueSubmit"); err != nil {
		return err
	}
	index := len(f.submits)
	f.submits = append(f.submits, submit)
	work := f.recorded[submit.CommandBuffer]
	delete(f.recorded, submit.CommandBuffer)
	if submit.Fence != vk.NullFence {
		f.fenceWork[submit.Fence] = pendingSubmit{index: index, work: work}
	}
	return nil
}

func (f *fakeDevice) WaitIdle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "WaitIdle")
	for fence, pending := range f.fenceWork {
		for _, op := range pending.work {
			op()
		}
		f.completed[pending.index] = true
		f.fences[fence] = true
	}
	f.fenceWork = make(map[vk.Fence]pendingSubmit)
	return nil
}

// Descriptors

func (f *fakeDevice) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateDescriptorSetLayout"); err != nil {
		return vk.NullDescriptorSetLayout, err
	}
	captured := *info
	captured.PBindings = append([]vk.DescriptorSetLayoutBinding(nil), info.PBindings...)
	f.setLayouts = append(f.setLayouts, captured)
	p := f.newHandle("descriptor_set_layout")
	f.logf("CreateDescriptorSetLayout", p)
	return vk.DescriptorSetLayout(p), nil
}

func (f *fakeDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyDescriptorSetLayout", unsafe.Pointer(layout))
	f.release(unsafe.Pointer(layout))
}

func (f *fakeDevice) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateDescriptorPool"); err != nil {
		return vk.NullDescriptorPool, err
	}
	captured := *info
	captured.PPoolSizes = append([]vk.DescriptorPoolSize(nil), info.PPoolSizes...)
	f.descriptorPools = append(f.descriptorPools, captured)
	p := f.newHandle("descriptor_pool")
	f.logf("CreateDescriptorPool", p)
	return vk.DescriptorPool(p), nil
}

func (f *fakeDevice) ResetDescriptorPool(pool vk.DescriptorPool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("ResetDescriptorPool", unsafe.Pointer(pool))
	return f.failure("ResetDescriptorPool")
}

func (f *fakeDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyDescriptorPool", unsafe.Pointer(pool))
	f.release(unsafe.Pointer(pool))
}

func (f *fakeDevice) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("AllocateDescriptorSet"); err != nil {
		return nil, err
	}
	// Freed with the pool.
	f.nextID++
	id := new(uint64)
	*id = f.nextID
	f.keep = append(f.keep, id)
	f.logf("AllocateDescriptorSet", unsafe.Pointer(id))
	return vk.DescriptorSet(unsafe.Pointer(id)), nil
}

func (f *fakeDevice) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UpdateDescriptorSets")
	f.descriptorWrite = append(f.descriptorWrite, writes...)
}

// Pipelines

func (f *fakeDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreatePipelineLayout"); err != nil {
		return vk.NullPipelineLayout, err
	}
	f.pipelineLayouts = append(f.pipelineLayouts, *info)
	p := f.newHandle("pipeline_layout")
	f.logf("CreatePipelineLayout", p)
	return vk.PipelineLayout(p), nil
}

func (f *fakeDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyPipelineLayout", unsafe.Pointer(layout))
	f.release(unsafe.Pointer(layout))
}

func (f *fakeDevice) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateGraphicsPipeline"); err != nil {
		return vk.NullPipeline, err
	}
	// A driver rejects a graphics pipeline without a vertex stage.
	if info.StageCount == 0 {
		return vk.NullPipeline, &ResultErr{Op: "vkCreateGraphicsPipelines", Result: vk.ErrorInitializationFailed}
	}
	captured := capturedPipeline{info: *info}
	if info.PViewportState != nil {
		captured.viewport = *info.PViewportState
	}
	if info.PColorBlendState != nil {
		captured.colorBlend = *info.PColorBlendState
	}
	if info.PVertexInputState != nil {
		captured.vertexInput = *info.PVertexInputState
	}
	if info.PDynamicState != nil {
		captured.dynamic = *info.PDynamicState
	}
	if info.PInputAssemblyState != nil {
		captured.inputAssembly = *info.PInputAssemblyState
	}
	if info.PRasterizationState != nil {
		captured.rasterizer = *info.PRasterizationState
	}
	if info.PDepthStencilState != nil {
		captured.depthStencil = *info.PDepthStencilState
	}
	f.graphics = append(f.graphics, captured)
	p := f.newHandle("pipeline")
	f.logf("CreateGraphicsPipeline", p)
	return vk.Pipeline(p), nil
}

func (f *fakeDevice) CreateComputePipeline(info *vk.ComputePipelineCreateInfo) (vk.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateComputePipeline"); err != nil {
		return vk.NullPipeline, err
	}
	f.compute = append(f.compute, *info)
	p := f.newHandle("pipeline")
	f.logf("CreateComputePipeline", p)
	return vk.Pipeline(p), nil
}

func (f *fakeDevice) DestroyPipeline(pipeline vk.Pipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyPipeline", unsafe.Pointer(pipeline))
	f.release(unsafe.Pointer(pipeline))
}

func (f *fakeDevice) CreateShaderModule(code []uint32) (vk.ShaderModule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateShaderModule"); err != nil {
		return vk.NullShaderModule, err
	}
	f.shaderModules = append(f.shaderModules, append([]uint32(nil), code...))
	p := f.newHandle("shader_module")
	f.logf("CreateShaderModule", p)
	return vk.ShaderModule(p), nil
}

func (f *fakeDevice) DestroyShaderModule(module vk.ShaderModule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyShaderModule", unsafe.Pointer(module))
	f.release(unsafe.Pointer(module))
}

// Memory and resources

// MemoryProperties exposes a device-local type 0 and a host-visible, coherent, cached type 1.
func (f *fakeDevice) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 2
	props.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	props.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit |
		vk.MemoryPropertyHostCoherentBit | vk.MemoryPropertyHostCachedBit)
	return props
}

func (f *fakeDevice) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateBuffer"); err != nil {
		return vk.NullBuffer, err
	}
	p := f.newHandle("buffer")
	buffer := vk.Buffer(p)
	f.buffers[buffer] = info.Size
	f.logf("CreateBuffer", p)
	return buffer, nil
}

func (f *fakeDevice) DestroyBuffer(buffer vk.Buffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyBuffer", unsafe.Pointer(buffer))
	delete(f.buffers, buffer)
	delete(f.bufferMemory, buffer)
	f.release(unsafe.Pointer(buffer))
}

func (f *fakeDevice) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	f.mu.Lock()
	defer f.mu.Unlock()
	return vk.MemoryRequirements{
		Size:           f.buffers[buffer],
		Alignment:      16,
		MemoryTypeBits: f.memoryTypeBits,
	}
}

func (f *fakeDevice) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateImage"); err != nil {
		return vk.NullImage, err
	}
	p := f.newHandle("image")
	image := vk.Image(p)
	f.images[image] = *info
	f.logf("CreateImage", p)
	return image, nil
}

func (f *fakeDevice) DestroyImage(image vk.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyImage", unsafe.Pointer(image))
	delete(f.images, image)
	delete(f.imageMemory, image)
	f.release(unsafe.Pointer(image))
}

func (f *fakeDevice) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := f.images[image]
	texel, err := formatTexelSize(info.Format)
	if err != nil {
		texel = 4
	}
	return vk.MemoryRequirements{
		Size:           vk.DeviceSize(int(info.Extent.Width) * int(info.Extent.Height) * texel),
		Alignment:      256,
		MemoryTypeBits: f.memoryTypeBits,
	}
}

func (f *fakeDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateImageView"); err != nil {
		return vk.NullImageView, err
	}
	p := f.newHandle("image_view")
	f.logf("CreateImageView", p)
	return vk.ImageView(p), nil
}

func (f *fakeDevice) DestroyImageView(view vk.ImageView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("DestroyImageView", unsafe.Pointer(view))
	f.release(unsafe.Pointer(view))
}

func (f *fakeDevice) AllocateMemory(size vk.DeviceSize, memoryTypeIndex uint32, deviceAddress bool) (vk.DeviceMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("AllocateMemory"); err != nil {
		return vk.NullDeviceMemory, err
	}
	p := f.newHandle("memory")
	memory := vk.DeviceMemory(p)
	f.memory[memory] = make([]byte, size)
	f.deviceAddr[memory] = deviceAddress
	f.calls = append(f.calls, fmt.Sprintf("AllocateMemory:%d:type%d", handleID(p), memoryTypeIndex))
	return memory, nil
}

func (f *fakeDevice) FreeMemory(memory vk.DeviceMemory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("FreeMemory", unsafe.Pointer(memory))
	delete(f.memory, memory)
	delete(f.deviceAddr, memory)
	f.release(unsafe.Pointer(memory))
}

func (f *fakeDevice) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("BindBufferMemory"); err != nil {
		return err
	}
	f.bufferMemory[buffer] = f.memory[memory][:f.buffers[buffer]]
	return nil
}

func (f *fakeDevice) BindImageMemory(image vk.Image, memory vk.DeviceMemory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("BindImageMemory"); err != nil {
		return err
	}
	f.imageMemory[image] = f.memory[memory]
	return nil
}

func (f *fakeDevice) MapMemory(memory vk.DeviceMemory, size vk.DeviceSize) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("MapMemory"); err != nil {
		return nil, err
	}
	return f.memory[memory][:size], nil
}

func (f *fakeDevice) UnmapMemory(memory vk.DeviceMemory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("UnmapMemory", unsafe.Pointer(memory))
}

func (f *fakeDevice) BufferDeviceAddress(buffer vk.Buffer) vk.DeviceAddress {
	return vk.DeviceAddress(handleID(unsafe.Pointer(buffer)) * 0x1000)
}

// Commands. Recorded operations run when the submission's fence is waited on.

func (f *fakeDevice) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("CmdCopyBuffer", unsafe.Pointer(cmd))
	regions = append([]vk.BufferCopy(nil), regions...)
	f.recorded[cmd] = append(f.recorded[cmd], func() {
		for _, r := range regions {
			copy(f.bufferMemory[dst][r.DstOffset:r.DstOffset+r.Size], f.bufferMemory[src][r.SrcOffset:r.SrcOffset+r.Size])
		}
	})
}

func (f *fakeDevice) CmdCopyImageToBuffer(cmd vk.CommandBuffer, src vk.Image, layout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("CmdCopyImageToBuffer:%d:layout%d", handleID(unsafe.Pointer(cmd)), layout))
	regions = append([]vk.BufferImageCopy(nil), regions...)
	f.recorded[cmd] = append(f.recorded[cmd], func() {
		for _, r := range regions {
			copy(f.bufferMemory[dst][r.BufferOffset:], f.imageMemory[src])
		}
	})
}

func (f *fakeDevice) CmdBlitImage(cmd vk.CommandBuffer, src vk.Image, dst vk.Image, srcSize, dstSize vk.Extent2D) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logf("CmdBlitImage", unsafe.Pointer(cmd))
}

func (f *fakeDevice) CmdImageBarrier(cmd vk.CommandBuffer, barrier vk.ImageMemoryBarrier, srcStage, dstStage vk.PipelineStageFlags) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("CmdImageBarrier:%d:%d->%d", handleID(unsafe.Pointer(barrier.Image)), barrier.OldLayout, barrier.NewLayout))
}

var _ Device = (*fakeDevice)(nil)
