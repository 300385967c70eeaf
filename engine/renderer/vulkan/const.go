package vulkan

import vk "github.com/goki/vulkan"

// FrameOverlap is the number of frames recorded on the CPU while the GPU still works on
// earlier ones. Resources queued for deletion in a slot are released FrameOverlap frames later.
const FrameOverlap = 2

/** @brief Fence wait used when no timeout is requested. */
const NoTimeout = ^uint64(0)

/** @brief Descriptor sets the global pool can hand out before it must be reset. */
const MaxDescriptorSets uint32 = 10

const (
	DrawImageFormat  = vk.FormatR16g16b16a16Sfloat
	DepthImageFormat = vk.FormatD32Sfloat
)
