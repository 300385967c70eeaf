package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/containers"
	"github.com/spaghettifunk/framecore/engine/core"
)

// FrameData is one slot of the frame rotation.
type FrameData struct {
	CommandPool   vk.CommandPool
	CommandBuffer *VulkanCommandBuffer

	// Signaled by swapchain image acquisition, waited on by the frame submission.
	SwapchainSemaphore vk.Semaphore
	// Signaled by the frame submission, waited on by presentation.
	RenderSemaphore vk.Semaphore
	RenderFence     *VulkanFence

	// Released the next time this slot is begun, once RenderFence has signaled.
	DeletionQueue *containers.DeletionQueue
}

// FrameRing owns FrameOverlap slots and picks the current one by frame number parity.
type FrameRing struct {
	device      Device
	lockPool    *VulkanLockPool
	queueFamily uint32

	frames      [FrameOverlap]*FrameData
	frameNumber uint64
}

func NewFrameRing(device Device, lockPool *VulkanLockPool, queueFamily uint32) (*FrameRing, error) {
	fr := &FrameRing{
		device:      device,
		lockPool:    lockPool,
		queueFamily: queueFamily,
	}
	for i := range fr.frames {
		frame, err := newFrameData(device, queueFamily)
		if err != nil {
			fr.Destroy()
			return nil, fmt.Errorf("failed to create frame %d: %w", i, err)
		}
		fr.frames[i] = frame
	}
	core.LogDebug("Created %d frame slots.", FrameOverlap)
	return fr, nil
}

func newFrameData(device Device, queueFamily uint32) (*FrameData, error) {
	frame := &FrameData{
		DeletionQueue: containers.NewDeletionQueue(),
	}

	pool, err := device.CreateCommandPool(queueFamily, vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit))
	if err != nil {
		return nil, err
	}
	frame.CommandPool = pool

	cb, err := NewVulkanCommandBuffer(device, pool)
	if err != nil {
		frame.destroy(device)
		return nil, err
	}
	frame.CommandBuffer = cb

	if frame.SwapchainSemaphore, err = device.CreateSemaphore(); err != nil {
		frame.destroy(device)
		return nil, err
	}
	if frame.RenderSemaphore, err = device.CreateSemaphore(); err != nil {
		frame.destroy(device)
		return nil, err
	}
	// Signaled so the first wait on each slot returns immediately.
	if frame.RenderFence, err = NewFence(device, true); err != nil {
		frame.destroy(device)
		return nil, err
	}
	return frame, nil
}

func (f *FrameData) destroy(device Device) {
	f.DeletionQueue.Flush()
	if f.CommandPool != vk.NullCommandPool {
		// Frees the command buffer as well.
		device.DestroyCommandPool(f.CommandPool)
		f.CommandPool = vk.NullCommandPool
		f.CommandBuffer = nil
	}
	if f.RenderFence != nil {
		f.RenderFence.Destroy(device)
		f.RenderFence = nil
	}
	if f.RenderSemaphore != vk.NullSemaphore {
		device.DestroySemaphore(f.RenderSemaphore)
		f.RenderSemaphore = vk.NullSemaphore
	}
	if f.SwapchainSemaphore != vk.NullSemaphore {
		device.DestroySemaphore(f.SwapchainSemaphore)
		f.SwapchainSemaphore = vk.NullSemaphore
	}
}

func (fr *FrameRing) FrameNumber() uint64 {
	return fr.frameNumber
}

func (fr *FrameRing) Current() *FrameData {
	return fr.frames[fr.frameNumber%FrameOverlap]
}

// Begin waits until the GPU is done with the current slot's previous use, releases what that
// use queued for deletion and starts recording the slot's command buffer.
func (fr *FrameRing) Begin(timeoutNs uint64) (*FrameData, error) {
	frame := fr.Current()

	// A slot whose submission never reached the queue has nothing to wait for.
	if frame.RenderFence.IsSignaled || frame.CommandBuffer.State == COMMAND_BUFFER_STATE_SUBMITTED {
		if err := frame.RenderFence.Wait(fr.device, timeoutNs); err != nil {
			return nil, err
		}
	}
	if err := frame.RenderFence.Reset(fr.device); err != nil {
		return nil, err
	}
	frame.DeletionQueue.Flush()

	if err := frame.CommandBuffer.Reset(fr.device); err != nil {
		return nil, err
	}
	if err := frame.CommandBuffer.Begin(fr.device, true, false); err != nil {
		return nil, err
	}
	return frame, nil
}

// Submit ends recording of the current slot and submits it. The queue signals RenderFence
// and RenderSemaphore on completion.
func (fr *FrameRing) Submit(waitStage vk.PipelineStageFlags) error {
	frame := fr.Current()
	if frame.CommandBuffer.State != COMMAND_BUFFER_STATE_RECORDING {
		return fmt.Errorf("frame %d submitted while command buffer is %s", fr.frameNumber, frame.CommandBuffer.State)
	}
	if err := frame.CommandBuffer.End(fr.device); err != nil {
		return err
	}

	submit := QueueSubmission{
		CommandBuffer:   frame.CommandBuffer.Handle,
		WaitSemaphore:   frame.SwapchainSemaphore,
		WaitStage:       waitStage,
		SignalSemaphore: frame.RenderSemaphore,
		Fence:           frame.RenderFence.Handle,
	}
	err := fr.lockPool.SafeQueueCall(fr.queueFamily, func() error {
		return fr.device.QueueSubmit(submit)
	})
	if err != nil {
		core.LogError("frame submission failed: %s", err)
		return err
	}
	frame.CommandBuffer.UpdateSubmitted()
	return nil
}

// Retire closes a slot that was begun but cannot be presented. The empty submission carries no
// semaphores and only signals RenderFence, so the slot's next Begin does not block forever.
func (fr *FrameRing) Retire() error {
	frame := fr.Current()
	if frame.CommandBuffer.State != COMMAND_BUFFER_STATE_RECORDING {
		return nil
	}
	if err := frame.CommandBuffer.End(fr.device); err != nil {
		return err
	}
	err := fr.lockPool.SafeQueueCall(fr.queueFamily, func() error {
		return fr.device.QueueSubmit(QueueSubmission{
			CommandBuffer: frame.CommandBuffer.Handle,
			Fence:         frame.RenderFence.Handle,
		})
	})
	if err != nil {
		core.LogError("frame retirement failed: %s", err)
		return err
	}
	frame.CommandBuffer.UpdateSubmitted()
	return nil
}

// Advance moves to the next slot. It is called once per draw attempt, including failed ones.
func (fr *FrameRing) Advance() {
	fr.frameNumber++
}

// Destroy waits for the device to go idle and releases every slot, flushing their deletion queues.
func (fr *FrameRing) Destroy() {
	if err := fr.device.WaitIdle(); err != nil {
		core.LogWarn("device wait idle before frame teardown failed: %s", err)
	}
	for i, frame := range fr.frames {
		if frame == nil {
			continue
		}
		frame.destroy(fr.device)
		fr.frames[i] = nil
	}
}
