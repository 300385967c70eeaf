package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

func (s VulkanCommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_READY:
		return "ready"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_RECORDING_ENDED:
		return "recording-ended"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	default:
		return "not-allocated"
	}
}

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

// NewVulkanCommandBuffer allocates one primary command buffer from pool.
func NewVulkanCommandBuffer(device Device, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	handle, err := device.AllocateCommandBuffer(pool)
	if err != nil {
		core.LogError("failed to allocate command buffer: %s", err)
		return nil, err
	}
	return &VulkanCommandBuffer{
		Handle: handle,
		State:  COMMAND_BUFFER_STATE_READY,
	}, nil
}

func (v *VulkanCommandBuffer) Begin(device Device, isSingleUse, isSimultaneousUse bool) error {
	var flags vk.CommandBufferUsageFlags
	if isSingleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isSimultaneousUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := device.BeginCommandBuffer(v.Handle, flags); err != nil {
		core.LogError("failed to begin command buffer: %s", err)
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING

	return nil
}

func (v *VulkanCommandBuffer) End(device Device) error {
	if err := device.EndCommandBuffer(v.Handle); err != nil {
		core.LogError("failed to end command buffer: %s", err)
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

// Reset returns the buffer to the initial state. The owning pool must have been created with
// the reset-command-buffer flag.
func (v *VulkanCommandBuffer) Reset(device Device) error {
	if err := device.ResetCommandBuffer(v.Handle); err != nil {
		core.LogError("failed to reset command buffer: %s", err)
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}
