package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(device Device, createSignaled bool) (*VulkanFence, error) {
	handle, err := device.CreateFence(createSignaled)
	if err != nil {
		core.LogError("failed to create fence: %s", err)
		return nil, err
	}
	return &VulkanFence{
		Handle:     handle,
		IsSignaled: createSignaled,
	}, nil
}

func (vf *VulkanFence) Destroy(device Device) {
	if vf.Handle != vk.NullFence {
		device.DestroyFence(vf.Handle)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence is signaled. A timeout or a lost device is reported as
// core.ErrDeviceLost: there is no recovery from either.
func (vf *VulkanFence) Wait(device Device, timeoutNs uint64) error {
	result := device.WaitForFence(vf.Handle, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		err := fmt.Errorf("fence wait timed out after %dns: %w", timeoutNs, core.ErrDeviceLost)
		core.LogError(err.Error())
		return err
	case vk.ErrorDeviceLost:
		err := fmt.Errorf("%w: %w", core.ErrDeviceLost, &ResultErr{Op: "vkWaitForFences", Result: result})
		core.LogError(err.Error())
		return err
	default:
		err := ResultError("vkWaitForFences", result)
		if err == nil {
			err = fmt.Errorf("vkWaitForFences returned %s: %w", VulkanResultString(result, false), core.ErrUnknown)
		}
		core.LogError(err.Error())
		return err
	}
}

func (vf *VulkanFence) Reset(device Device) error {
	if err := device.ResetFence(vf.Handle); err != nil {
		core.LogError("failed to reset fence: %s", err)
		return err
	}
	vf.IsSignaled = false
	return nil
}
