package vulkan

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/containers"
	"github.com/spaghettifunk/framecore/engine/core"
	"github.com/spaghettifunk/framecore/engine/math"
	"github.com/spaghettifunk/framecore/engine/platform"
	"github.com/spaghettifunk/framecore/engine/systems"
)

// ComputePushConstants are the four free vectors handed to every background effect.
type ComputePushConstants struct {
	Data1 math.Vec4
	Data2 math.Vec4
	Data3 math.Vec4
	Data4 math.Vec4
}

// GPUDrawPushConstants carry the object transform and the address the vertex shader pulls
// vertices from.
type GPUDrawPushConstants struct {
	WorldMatrix  math.Mat4
	VertexBuffer vk.DeviceAddress
}

/**
 * @brief A full screen compute pass writing into the draw image.
 */
type ComputeEffect struct {
	/** @brief The effect name, also the shader file stem. */
	Name     string
	Pipeline *VulkanPipeline
	Data     ComputePushConstants
}

type VulkanRenderer struct {
	platform *platform.Platform
	config   *core.Config
	context  *VulkanContext

	frames            *FrameRing
	immediate         *ImmediateSubmitter
	allocator         *Allocator
	mainDeletionQueue *containers.DeletionQueue
	jobs              *systems.JobSystem

	drawImage  *AllocatedImage
	depthImage *AllocatedImage
	drawExtent vk.Extent2D
	// Layout of the draw image once the last submitted frame completes.
	drawImageLayout vk.ImageLayout

	globalDescriptors         DescriptorAllocator
	drawImageDescriptors      vk.DescriptorSet
	drawImageDescriptorLayout vk.DescriptorSetLayout

	backgroundLayout  vk.PipelineLayout
	BackgroundEffects []*ComputeEffect
	CurrentEffect     int

	meshLayout   vk.PipelineLayout
	MeshPipeline *VulkanPipeline

	swapchainImageIndex uint32
	resizeRequested     bool
	reloadRequested     bool
}

func New(p *platform.Platform, cfg *core.Config) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		config:   cfg,
		context: &VulkanContext{
			Allocator: nil,
			LockPool:  NewVulkanLockPool(),
		},
		mainDeletionQueue: &containers.DeletionQueue{},
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := vr.platform.InstanceProcAddr()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	vr.context.GetInstanceProcAddr = procAddr

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateSurface(vr.context.Instance)
	if err != nil {
		core.LogError("Failed to create platform surface: %s", err)
		return err
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	// Device creation
	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("Failed to create device: %s", err)
		return err
	}
	device := vr.context.Device
	graphicsFamily := uint32(device.GraphicsQueueIndex)
	vr.context.LockPool.SetQueueFamily(graphicsFamily)

	// Swapchain
	sc, err := SwapchainCreate(vr.context, appWidth, appHeight, vr.config.Renderer.VSync)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	vr.allocator = NewAllocator(device, vr.context.LockPool)

	if vr.frames, err = NewFrameRing(device, vr.context.LockPool, graphicsFamily); err != nil {
		return err
	}
	if vr.immediate, err = NewImmediateSubmitter(device, vr.context.LockPool, graphicsFamily); err != nil {
		return err
	}
	vr.mainDeletionQueue.Push(func() {
		vr.immediate.Destroy()
	})

	// Shader modules are read and created on the workers.
	if vr.jobs, err = systems.NewJobSystem(max(2, runtime.NumCPU()/2), 8); err != nil {
		return err
	}

	if err := vr.initDrawImages(sc.Extent); err != nil {
		return err
	}
	if err := vr.initDescriptors(); err != nil {
		return err
	}
	if err := vr.initPipelines(); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 3, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Framecore"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	requiredExtensions = append(requiredExtensions, vr.platform.RequiredExtensions()...)

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	validation := vr.config.Renderer.Validation
	if validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogInfo("Required extensions:")
		for i := 0; i < len(requiredExtensions); i++ {
			core.LogInfo(requiredExtensions[i])
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers should only be enabled on non-release builds.
	requiredLayers := []string{}
	if validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}

		var availableLayerCount uint32
		if err := ResultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil)); err != nil {
			return err
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if err := ResultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers)); err != nil {
			return err
		}

		// Verify all required layers are available.
		for i := range requiredLayers {
			core.LogInfo("Searching for layer: %s...", requiredLayers[i])
			found := false
			for j := range availableLayers {
				availableLayers[j].Deref()
				end := FindFirstZeroInByteArray(availableLayers[j].LayerName[:])
				if requiredLayers[i] == string(availableLayers[j].LayerName[:end]) {
					found = true
					core.LogInfo("Found.")
					break
				}
			}
			if !found {
				err := fmt.Errorf("required validation layer is missing: %s", requiredLayers[i])
				core.LogError(err.Error())
				return err
			}
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	// Debugger
	if validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

// initDrawImages creates the off-screen colour and depth targets at the initial window size.
// The swapchain image only receives a blit of the draw image.
func (vr *VulkanRenderer) initDrawImages(extent vk.Extent2D) error {
	imageExtent := vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1}

	drawUsage := vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit |
		vk.ImageUsageStorageBit | vk.ImageUsageColorAttachmentBit)
	draw, err := vr.allocator.CreateImage(imageExtent, DrawImageFormat, drawUsage, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return err
	}
	vr.drawImage = draw
	vr.drawImageLayout = vk.ImageLayoutUndefined
	vr.mainDeletionQueue.Push(func() {
		draw.Destroy()
	})

	depth, err := vr.allocator.CreateImage(imageExtent, DepthImageFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit), vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return err
	}
	vr.depthImage = depth
	vr.mainDeletionQueue.Push(func() {
		depth.Destroy()
	})
	return nil
}

func (vr *VulkanRenderer) initDescriptors() error {
	device := vr.context.Device

	ratios := []PoolSizeRatio{{Type: vk.DescriptorTypeStorageImage, Ratio: 1}}
	if err := vr.globalDescriptors.InitPool(device, MaxDescriptorSets, ratios); err != nil {
		return err
	}
	vr.mainDeletionQueue.Push(func() {
		vr.globalDescriptors.DestroyPool(device)
	})

	var builder DescriptorLayoutBuilder
	builder.AddBinding(0, vk.DescriptorTypeStorageImage)
	layout, err := builder.Build(device, vk.ShaderStageFlags(vk.ShaderStageComputeBit), nil, 0)
	if err != nil {
		return err
	}
	vr.drawImageDescriptorLayout = layout
	vr.mainDeletionQueue.Push(func() {
		device.DestroyDescriptorSetLayout(layout)
	})

	set, err := vr.globalDescriptors.Allocate(device, layout)
	if err != nil {
		return err
	}
	vr.drawImageDescriptors = set
	WriteStorageImage(device, set, 0, vr.drawImage.View)
	return nil
}

func (vr *VulkanRenderer) shaderPath(name string) string {
	return filepath.Join(vr.config.Renderer.ShaderDir, name)
}

func (vr *VulkanRenderer) initPipelines() error {
	device := vr.context.Device

	backgroundLayout, err := NewPipelineLayout(device,
		[]vk.DescriptorSetLayout{vr.drawImageDescriptorLayout},
		[]vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Offset:     0,
			Size:       uint32(unsafe.Sizeof(ComputePushConstants{})),
		}})
	if err != nil {
		return err
	}
	vr.backgroundLayout = backgroundLayout
	vr.mainDeletionQueue.Push(func() {
		device.DestroyPipelineLayout(backgroundLayout)
	})

	meshLayout, err := NewPipelineLayout(device, nil, []vk.PushConstantRange{{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(GPUDrawPushConstants{})),
	}})
	if err != nil {
		return err
	}
	vr.meshLayout = meshLayout
	vr.mainDeletionQueue.Push(func() {
		device.DestroyPipelineLayout(meshLayout)
	})

	effects, mesh, err := vr.buildPipelines()
	if err != nil {
		return err
	}
	vr.BackgroundEffects = effects
	vr.MeshPipeline = mesh

	// Reads the fields at flush time so reloaded pipelines are the ones released.
	vr.mainDeletionQueue.Push(func() {
		for _, effect := range vr.BackgroundEffects {
			effect.Pipeline.Destroy(device)
		}
		vr.MeshPipeline.Destroy(device)
	})
	return nil
}

func defaultBackgroundEffects() []ComputeEffect {
	return []ComputeEffect{
		{
			Name: "gradient",
			Data: ComputePushConstants{
				Data1: math.NewVec4(1, 0, 0, 1),
				Data2: math.NewVec4(0, 0, 1, 1),
			},
		},
		{
			Name: "sky",
			Data: ComputePushConstants{
				Data1: math.NewVec4(0.1, 0.2, 0.4, 0.97),
			},
		},
	}
}

const (
	meshVertexShader   = "colored_triangle_mesh.vert.spv"
	meshFragmentShader = "colored_triangle.frag.spv"
)

// buildPipelines creates the background effects and the mesh pipeline from the shader
// directory. Either everything is built or nothing is.
func (vr *VulkanRenderer) buildPipelines() ([]*ComputeEffect, *VulkanPipeline, error) {
	device := vr.context.Device
	defaults := defaultBackgroundEffects()

	paths := []string{vr.shaderPath(meshVertexShader), vr.shaderPath(meshFragmentShader)}
	for _, effect := range defaults {
		paths = append(paths, vr.shaderPath(effect.Name+".comp.spv"))
	}
	modules, err := LoadShaderModules(device, vr.jobs, paths...)
	if err != nil {
		return nil, nil, err
	}
	// Pipelines keep what they need from their modules.
	defer func() {
		for _, module := range modules {
			device.DestroyShaderModule(module)
		}
	}()

	effects := make([]*ComputeEffect, 0, len(defaults))
	destroyEffects := func() {
		for _, built := range effects {
			built.Pipeline.Destroy(device)
		}
	}
	for i := range defaults {
		effect := defaults[i]
		pipeline, err := NewComputePipeline(device, vr.backgroundLayout, modules[vr.shaderPath(effect.Name+".comp.spv")])
		if err != nil {
			destroyEffects()
			return nil, nil, err
		}
		effect.Pipeline = pipeline
		effects = append(effects, &effect)
	}

	builder := NewPipelineBuilder()
	builder.SetLayout(vr.meshLayout)
	builder.SetShaders(modules[vr.shaderPath(meshVertexShader)], modules[vr.shaderPath(meshFragmentShader)])
	builder.SetInputTopology(vk.PrimitiveTopologyTriangleList)
	builder.SetPolygonMode(vk.PolygonModeFill)
	builder.SetCullMode(vk.CullModeFlags(vk.CullModeNone), vk.FrontFaceClockwise)
	builder.SetMultisamplingNone()
	builder.DisableBlending()
	builder.EnableDepthTest(true, vk.CompareOpGreaterOrEqual)
	builder.SetColorAttachmentFormat(vr.drawImage.Format)
	builder.SetDepthFormat(vr.depthImage.Format)
	if err := builder.Validate(); err != nil {
		destroyEffects()
		return nil, nil, err
	}
	mesh, err := builder.Build(device)
	if err != nil {
		destroyEffects()
		return nil, nil, err
	}
	return effects, mesh, nil
}

// RequestPipelineReload rebuilds every pipeline at the start of the next frame.
func (vr *VulkanRenderer) RequestPipelineReload() {
	vr.reloadRequested = true
}

// reloadPipelines swaps in freshly built pipelines. The replaced ones were last used by frames
// still in flight, so they are queued on frame and released when its slot comes round again.
// When a shader fails to load the old pipelines stay in use.
func (vr *VulkanRenderer) reloadPipelines(frame *FrameData) {
	vr.reloadRequested = false
	device := vr.context.Device

	effects, mesh, err := vr.buildPipelines()
	if err != nil {
		core.LogWarn("pipelines not reloaded: %s", err)
		return
	}

	// Keep the tweaked push constants of effects that survived the reload.
	for _, effect := range effects {
		for _, previous := range vr.BackgroundEffects {
			if previous.Name == effect.Name {
				effect.Data = previous.Data
			}
		}
	}

	oldEffects, oldMesh := vr.BackgroundEffects, vr.MeshPipeline
	vr.BackgroundEffects, vr.MeshPipeline = effects, mesh
	frame.DeletionQueue.Push(func() {
		for _, effect := range oldEffects {
			effect.Pipeline.Destroy(device)
		}
		oldMesh.Destroy(device)
	})
	core.LogInfo("pipelines reloaded")
}

func (vr *VulkanRenderer) Shutdown() error {
	if vr.context.Device != nil && vr.context.Device.LogicalDevice != nil {
		if err := vr.context.Device.WaitIdle(); err != nil {
			core.LogWarn("device wait idle failed: %s", err)
		}

		// Destroy in the opposite order of creation.
		if vr.frames != nil {
			vr.frames.Destroy()
			vr.frames = nil
		}
		vr.mainDeletionQueue.Flush()

		if vr.allocator != nil {
			if leaked := vr.allocator.Destroy(); leaked > 0 {
				core.LogWarn("%d allocations were still alive at shutdown", leaked)
			}
		}

		if vr.context.Swapchain != nil {
			vr.context.Swapchain.Destroy(vr.context)
			vr.context.Swapchain = nil
		}

		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(vr.context)
		vr.context.Device = nil
	}

	if vr.jobs != nil {
		_ = vr.jobs.Shutdown()
		vr.jobs = nil
	}

	if vr.context.Instance == nil {
		return nil
	}

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	vr.context.Instance = nil
	return nil
}

func (vr *VulkanRenderer) Resized(width, height uint32) error {
	// Update the "framebuffer size generation", a counter which indicates when the
	// framebuffer size has been updated.
	vr.context.FramebufferWidth = width
	vr.context.FramebufferHeight = height
	vr.context.FramebufferSizeGeneration++
	vr.resizeRequested = true

	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
	return nil
}

func (vr *VulkanRenderer) recreateSwapchain() error {
	// If already being recreated, do not try again.
	if vr.context.RecreatingSwapchain {
		core.LogDebug("recreate_swapchain called when already recreating. Booting.")
		return core.ErrSwapchainBooting
	}
	// Detect if the window is too small to be drawn to
	if vr.context.FramebufferWidth == 0 || vr.context.FramebufferHeight == 0 {
		core.LogDebug("recreate_swapchain called when window is < 1 in a dimension. Booting.")
		return core.ErrSwapchainBooting
	}

	vr.context.RecreatingSwapchain = true
	defer func() { vr.context.RecreatingSwapchain = false }()

	sc, err := vr.context.Swapchain.Recreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight, vr.config.Renderer.VSync)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration
	vr.resizeRequested = false
	return nil
}

// BeginFrame waits for the current slot, acquires a swapchain image and records the background
// pass. On return the draw image is ready for colour attachment and the depth image for depth.
func (vr *VulkanRenderer) BeginFrame(deltaTime float64) (*FrameData, error) {
	if vr.resizeRequested {
		if err := vr.recreateSwapchain(); err != nil {
			return nil, err
		}
	}

	frame, err := vr.frames.Begin(vr.config.FenceTimeoutNS())
	if err != nil {
		return nil, err
	}

	index, err := vr.context.Swapchain.AcquireNextImage(vr.context, NoTimeout, frame.SwapchainSemaphore)
	if err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			vr.resizeRequested = true
		}
		if rerr := vr.frames.Retire(); rerr != nil {
			return nil, rerr
		}
		return nil, err
	}
	vr.swapchainImageIndex = index

	if vr.reloadRequested {
		vr.reloadPipelines(frame)
	}

	swapExtent := vr.context.Swapchain.Extent
	drawExtent := vr.drawImage.Extent2D()
	vr.drawExtent = vk.Extent2D{
		Width:  min(swapExtent.Width, drawExtent.Width),
		Height: min(swapExtent.Height, drawExtent.Height),
	}

	device := vr.context.Device
	cmd := frame.CommandBuffer.Handle
	TransitionImage(device, cmd, vr.drawImage.Image, vk.ImageLayoutUndefined, vk.ImageLayoutGeneral)
	vr.drawBackground(cmd)
	TransitionImage(device, cmd, vr.drawImage.Image, vk.ImageLayoutGeneral, vk.ImageLayoutColorAttachmentOptimal)
	TransitionImage(device, cmd, vr.depthImage.Image, vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal)
	return frame, nil
}

func (vr *VulkanRenderer) drawBackground(cmd vk.CommandBuffer) {
	if len(vr.BackgroundEffects) == 0 {
		return
	}
	effect := vr.BackgroundEffects[vr.CurrentEffect%len(vr.BackgroundEffects)]

	effect.Pipeline.Bind(cmd, vk.PipelineBindPointCompute)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, vr.backgroundLayout, 0, 1,
		[]vk.DescriptorSet{vr.drawImageDescriptors}, 0, nil)
	vk.CmdPushConstants(cmd, vr.backgroundLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0,
		uint32(unsafe.Sizeof(effect.Data)), unsafe.Pointer(&effect.Data))

	// The compute shaders run 16x16 workgroups.
	vk.CmdDispatch(cmd, (vr.drawExtent.Width+15)/16, (vr.drawExtent.Height+15)/16, 1)
}

// BeginRendering opens a dynamic rendering pass over the draw and depth images. Depth is
// cleared to 0 for the reversed depth test.
func (vr *VulkanRenderer) BeginRendering(cmd vk.CommandBuffer) {
	colorAttachment := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   vr.drawImage.View,
		ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
		LoadOp:      vk.AttachmentLoadOpLoad,
		StoreOp:     vk.AttachmentStoreOpStore,
	}
	depthAttachment := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   vr.depthImage.View,
		ImageLayout: vk.ImageLayoutDepthStencilAttachmentOptimal,
		LoadOp:      vk.AttachmentLoadOpClear,
		StoreOp:     vk.AttachmentStoreOpStore,
		ClearValue:  vk.NewClearDepthStencil(0, 0),
	}
	info := vk.RenderingInfo{
		SType:                vk.StructureTypeRenderingInfo,
		RenderArea:           vk.Rect2D{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: vr.drawExtent},
		LayerCount:           1,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.RenderingAttachmentInfo{colorAttachment},
		PDepthAttachment:     []vk.RenderingAttachmentInfo{depthAttachment},
	}
	vr.context.Device.CmdBeginRendering(cmd, &info)

	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(vr.drawExtent.Width),
		Height:   float32(vr.drawExtent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vr.drawExtent,
	}})
}

func (vr *VulkanRenderer) EndRendering(cmd vk.CommandBuffer) {
	vr.context.Device.CmdEndRendering(cmd)
}

// DrawMesh records an indexed draw of mesh with pipeline. Must be called between BeginRendering
// and EndRendering.
func (vr *VulkanRenderer) DrawMesh(cmd vk.CommandBuffer, pipeline *VulkanPipeline, mesh *GPUMeshBuffers, world math.Mat4) {
	pipeline.Bind(cmd, vk.PipelineBindPointGraphics)

	push := GPUDrawPushConstants{
		WorldMatrix:  world,
		VertexBuffer: mesh.VertexBufferAddress,
	}
	vk.CmdPushConstants(cmd, pipeline.PipelineLayout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0,
		uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))
	vk.CmdBindIndexBuffer(cmd, mesh.IndexBuffer.Buffer, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(cmd, mesh.IndexCount, 1, 0, 0, 0)
}

// EndFrame blits the draw image into the acquired swapchain image, submits the slot and
// presents.
func (vr *VulkanRenderer) EndFrame(deltaTime float64) error {
	device := vr.context.Device
	frame := vr.frames.Current()
	cmd := frame.CommandBuffer.Handle
	swapImage := vr.context.Swapchain.Images[vr.swapchainImageIndex]

	TransitionImage(device, cmd, vr.drawImage.Image, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal)
	TransitionImage(device, cmd, swapImage, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	CopyImageToImage(device, cmd, vr.drawImage.Image, swapImage, vr.drawExtent, vr.context.Swapchain.Extent)
	TransitionImage(device, cmd, swapImage, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc)

	if err := vr.frames.Submit(vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)); err != nil {
		return err
	}
	vr.drawImageLayout = vk.ImageLayoutTransferSrcOptimal

	recreate, err := vr.context.Swapchain.Present(vr.context, device.PresentQueue, frame.RenderSemaphore, vr.swapchainImageIndex)
	if err != nil {
		return err
	}
	if recreate || vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		vr.resizeRequested = true
	}
	return nil
}

// AdvanceFrame retires the current draw attempt, successful or not.
func (vr *VulkanRenderer) AdvanceFrame() {
	vr.frames.Advance()
}

func (vr *VulkanRenderer) FrameNumber() uint64 {
	return vr.frames.FrameNumber()
}

// UploadMesh copies the mesh into device-local buffers. The buffers are released with the
// renderer unless the caller destroys them first.
func (vr *VulkanRenderer) UploadMesh(indices []uint32, vertices []Vertex) (*GPUMeshBuffers, error) {
	mesh, err := UploadMesh(vr.allocator, vr.immediate, indices, vertices)
	if err != nil {
		return nil, err
	}
	vr.mainDeletionQueue.Push(func() {
		mesh.Destroy()
	})
	return mesh, nil
}

// CaptureDrawImage writes the last rendered draw image to path as BMP. It fails with
// ErrImageUndefined until a frame has been submitted.
func (vr *VulkanRenderer) CaptureDrawImage(path string) error {
	return CaptureImage(vr.allocator, vr.immediate, vr.drawImage, vr.drawImageLayout, path)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
