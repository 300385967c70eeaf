package vulkan

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
)

// MemoryUsage is the residency hint a buffer or image is created with.
type MemoryUsage int

const (
	// Device-local memory the host never touches.
	MemoryUsageGPUOnly MemoryUsage = iota
	// Host-visible memory written by the CPU and read by the GPU. Persistently mapped.
	MemoryUsageCPUToGPU
	// Host-visible memory written by the GPU and read back by the CPU. Persistently mapped.
	MemoryUsageGPUToCPU
	// Host-visible staging memory. Persistently mapped.
	MemoryUsageCPUOnly
)

func (mu MemoryUsage) String() string {
	switch mu {
	case MemoryUsageGPUOnly:
		return "gpu-only"
	case MemoryUsageCPUToGPU:
		return "cpu-to-gpu"
	case MemoryUsageGPUToCPU:
		return "gpu-to-cpu"
	case MemoryUsageCPUOnly:
		return "cpu-only"
	default:
		return "unknown"
	}
}

func (mu MemoryUsage) hostVisible() bool {
	return mu != MemoryUsageGPUOnly
}

// memoryCandidates lists property sets to try, most preferred first.
func (mu MemoryUsage) memoryCandidates() []vk.MemoryPropertyFlags {
	deviceLocal := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	hostVisible := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	hostCoherent := vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	hostCached := vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit)

	switch mu {
	case MemoryUsageGPUOnly:
		return []vk.MemoryPropertyFlags{deviceLocal, 0}
	case MemoryUsageGPUToCPU:
		return []vk.MemoryPropertyFlags{hostVisible | hostCoherent | hostCached, hostVisible | hostCoherent}
	default:
		return []vk.MemoryPropertyFlags{hostVisible | hostCoherent}
	}
}

// Allocation is a block of device memory bound to exactly one buffer or image.
type Allocation struct {
	ID         core.AllocationID
	Size       vk.DeviceSize
	MemoryType uint32
	Usage      MemoryUsage

	memory vk.DeviceMemory
	mapped []byte
}

type liveAllocation struct {
	kind  string
	size  vk.DeviceSize
	usage MemoryUsage
}

// Allocator creates buffers and images together with their memory and releases both together.
type Allocator struct {
	device   Device
	lockPool *VulkanLockPool
	memory   vk.PhysicalDeviceMemoryProperties

	live map[core.AllocationID]liveAllocation
}

func NewAllocator(device Device, lockPool *VulkanLockPool) *Allocator {
	return &Allocator{
		device:   device,
		lockPool: lockPool,
		memory:   device.MemoryProperties(),
		live:     make(map[core.AllocationID]liveAllocation),
	}
}

func (a *Allocator) Device() Device {
	return a.device
}

func (a *Allocator) findMemoryType(typeBits uint32, usage MemoryUsage) (uint32, error) {
	for _, flags := range usage.memoryCandidates() {
		if index := FindMemoryIndex(a.memory, typeBits, flags); index >= 0 {
			return uint32(index), nil
		}
	}
	return 0, fmt.Errorf("memory usage %s with type bits %#b: %w", usage, typeBits, core.ErrNoMemoryType)
}

func (a *Allocator) allocate(kind string, req vk.MemoryRequirements, usage MemoryUsage, deviceAddress bool) (*Allocation, error) {
	typeIndex, err := a.findMemoryType(req.MemoryTypeBits, usage)
	if err != nil {
		return nil, err
	}
	memory, err := a.device.AllocateMemory(req.Size, typeIndex, deviceAddress)
	if err != nil {
		return nil, err
	}
	alloc := &Allocation{
		ID:         core.NewAllocationID(),
		Size:       req.Size,
		MemoryType: typeIndex,
		Usage:      usage,
		memory:     memory,
	}
	a.lockPool.SafeDo(MemoryManagement, func() {
		a.live[alloc.ID] = liveAllocation{kind: kind, size: req.Size, usage: usage}
	})
	return alloc, nil
}

func (a *Allocator) free(alloc *Allocation) {
	if alloc.mapped != nil {
		a.device.UnmapMemory(alloc.memory)
		alloc.mapped = nil
	}
	a.device.FreeMemory(alloc.memory)
	alloc.memory = vk.NullDeviceMemory
	a.lockPool.SafeDo(MemoryManagement, func() {
		delete(a.live, alloc.ID)
	})
}

// LiveAllocations is the number of allocations not yet released.
func (a *Allocator) LiveAllocations() int {
	n := 0
	a.lockPool.SafeDo(MemoryManagement, func() {
		n = len(a.live)
	})
	return n
}

// Destroy reports every allocation still alive. It does not free them: their owners may still
// hold handles.
func (a *Allocator) Destroy() int {
	leaks := 0
	a.lockPool.SafeDo(MemoryManagement, func() {
		ids := make([]core.AllocationID, 0, len(a.live))
		for id := range a.live {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		for _, id := range ids {
			l := a.live[id]
			core.LogWarn("leaked %s allocation %s: %d bytes (%s)", l.kind, id, l.size, l.usage)
		}
		leaks = len(ids)
	})
	return leaks
}
