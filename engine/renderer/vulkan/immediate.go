package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
)

// ImmediateSubmitter records and runs one-off command buffers outside the frame rotation,
// blocking until the GPU has finished them. It has its own pool, buffer and fence.
type ImmediateSubmitter struct {
	device      Device
	lockPool    *VulkanLockPool
	queueFamily uint32

	pool  vk.CommandPool
	cmd   *VulkanCommandBuffer
	fence *VulkanFence
}

func NewImmediateSubmitter(device Device, lockPool *VulkanLockPool, queueFamily uint32) (*ImmediateSubmitter, error) {
	is := &ImmediateSubmitter{
		device:      device,
		lockPool:    lockPool,
		queueFamily: queueFamily,
	}

	pool, err := device.CreateCommandPool(queueFamily, vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit))
	if err != nil {
		return nil, err
	}
	is.pool = pool

	if is.cmd, err = NewVulkanCommandBuffer(device, pool); err != nil {
		is.Destroy()
		return nil, err
	}
	if is.fence, err = NewFence(device, true); err != nil {
		is.Destroy()
		return nil, err
	}
	return is, nil
}

// Submit runs record against a fresh one-time command buffer, submits it and waits for the
// fence with no timeout. Concurrent callers are serialized on the queue lock; record must not
// call Submit itself.
func (is *ImmediateSubmitter) Submit(record func(cmd vk.CommandBuffer)) error {
	return is.lockPool.SafeQueueCall(is.queueFamily, func() error {
		if is.fence.IsSignaled || is.cmd.State == COMMAND_BUFFER_STATE_SUBMITTED {
			if err := is.fence.Wait(is.device, NoTimeout); err != nil {
				return err
			}
		}
		if err := is.fence.Reset(is.device); err != nil {
			return err
		}
		if err := is.cmd.Reset(is.device); err != nil {
			return err
		}
		if err := is.cmd.Begin(is.device, true, false); err != nil {
			return err
		}

		record(is.cmd.Handle)

		if err := is.cmd.End(is.device); err != nil {
			return err
		}
		if err := is.device.QueueSubmit(QueueSubmission{
			CommandBuffer: is.cmd.Handle,
			Fence:         is.fence.Handle,
		}); err != nil {
			core.LogError("immediate submission failed: %s", err)
			return err
		}
		is.cmd.UpdateSubmitted()

		return is.fence.Wait(is.device, NoTimeout)
	})
}

func (is *ImmediateSubmitter) Destroy() {
	if is.fence != nil {
		is.fence.Destroy(is.device)
		is.fence = nil
	}
	if is.pool != vk.NullCommandPool {
		is.device.DestroyCommandPool(is.pool)
		is.pool = vk.NullCommandPool
		is.cmd = nil
	}
}
