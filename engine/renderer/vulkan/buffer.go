package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
)

// AllocatedBuffer owns a buffer handle and the memory bound to it. Destroy releases both.
type AllocatedBuffer struct {
	Buffer     vk.Buffer
	Allocation *Allocation
	Size       vk.DeviceSize
	Usage      vk.BufferUsageFlags

	allocator *Allocator
}

// Mapped is the host view of the buffer memory. Nil for GPU-only buffers.
func (b *AllocatedBuffer) Mapped() []byte {
	if b.Allocation == nil {
		return nil
	}
	return b.Allocation.mapped
}

func (b *AllocatedBuffer) Destroy() {
	if b.allocator != nil {
		b.allocator.DestroyBuffer(b)
	}
}

// CreateBuffer creates a buffer of size bytes backed by memory chosen from memoryUsage.
// Host-visible buffers are mapped for their whole lifetime.
func (a *Allocator) CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, memoryUsage MemoryUsage) (*AllocatedBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("cannot create a zero sized buffer")
	}

	var out *AllocatedBuffer
	err := a.lockPool.SafeCall(BufferManagement, func() error {
		info := vk.BufferCreateInfo{
			SType:       vk.StructureTypeBufferCreateInfo,
			Size:        size,
			Usage:       usage,
			SharingMode: vk.SharingModeExclusive,
		}
		buffer, err := a.device.CreateBuffer(&info)
		if err != nil {
			return err
		}

		req := a.device.BufferMemoryRequirements(buffer)
		deviceAddress := usage&vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit) != 0
		alloc, err := a.allocate("buffer", req, memoryUsage, deviceAddress)
		if err != nil {
			a.device.DestroyBuffer(buffer)
			return err
		}

		if err := a.device.BindBufferMemory(buffer, alloc.memory); err != nil {
			a.device.DestroyBuffer(buffer)
			a.free(alloc)
			return err
		}

		if memoryUsage.hostVisible() {
			mapped, err := a.device.MapMemory(alloc.memory, req.Size)
			if err != nil {
				a.device.DestroyBuffer(buffer)
				a.free(alloc)
				return err
			}
			alloc.mapped = mapped[:size]
		}

		out = &AllocatedBuffer{
			Buffer:     buffer,
			Allocation: alloc,
			Size:       size,
			Usage:      usage,
			allocator:  a,
		}
		return nil
	})
	if err != nil {
		core.LogError("failed to create %d byte %s buffer: %s", size, memoryUsage, err)
		return nil, err
	}
	return out, nil
}

// DestroyBuffer releases the buffer handle and its memory. Destroying twice is a no-op.
func (a *Allocator) DestroyBuffer(buffer *AllocatedBuffer) {
	a.lockPool.SafeDo(BufferManagement, func() {
		if buffer.Buffer == vk.NullBuffer {
			return
		}
		a.device.DestroyBuffer(buffer.Buffer)
		a.free(buffer.Allocation)
		buffer.Buffer = vk.NullBuffer
		buffer.Allocation = nil
	})
}

// ReadBuffer copies size bytes starting at offset out of src through a host-visible staging
// buffer. src must have been created with the transfer-source usage.
func ReadBuffer(allocator *Allocator, immediate *ImmediateSubmitter, src *AllocatedBuffer, offset, size vk.DeviceSize) ([]byte, error) {
	if offset+size > src.Size {
		return nil, fmt.Errorf("read of %d bytes at %d overruns %d byte buffer", size, offset, src.Size)
	}
	readback, err := allocator.CreateBuffer(size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), MemoryUsageGPUToCPU)
	if err != nil {
		return nil, err
	}
	defer readback.Destroy()

	device := allocator.Device()
	err = immediate.Submit(func(cmd vk.CommandBuffer) {
		device.CmdCopyBuffer(cmd, src.Buffer, readback.Buffer, []vk.BufferCopy{{
			SrcOffset: offset,
			DstOffset: 0,
			Size:      size,
		}})
	})
	if err != nil {
		return nil, err
	}

	out := make([]byte, size)
	copy(out, readback.Mapped())
	return out, nil
}
