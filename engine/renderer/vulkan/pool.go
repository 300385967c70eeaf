package vulkan

import "sync"

type LockGroup string

const (
	BufferManagement LockGroup = "buffer_management"
	ImageManagement  LockGroup = "image_management"
	MemoryManagement LockGroup = "memory_management"
)

// Mutex pool
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks maps

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

// Get or create a mutex for a specific group
func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	l, exists := vs.locks[group]
	if !exists {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	vs.mu.Unlock()
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

// SafeDo is SafeCall for work that cannot fail.
func (vs *VulkanLockPool) SafeDo(group LockGroup, fn func()) {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()

	fn()
}

func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
}

func (vs *VulkanLockPool) queueLock(queueFamilyIndex uint32) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	l, exists := vs.queueMutexes[queueFamilyIndex]
	if !exists {
		l = &sync.Mutex{}
		vs.queueMutexes[queueFamilyIndex] = l
	}
	return l
}

// SafeQueueCall runs fn while holding the lock of the given queue family. Only one goroutine
// may submit to a queue at a time.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	l := vs.queueLock(queueFamilyIndex)
	l.Lock()
	defer l.Unlock()

	return fn()
}

// SafeQueueDo is SafeQueueCall for calls that report through their own result.
func (vs *VulkanLockPool) SafeQueueDo(queueFamilyIndex uint32, fn func()) {
	l := vs.queueLock(queueFamilyIndex)
	l.Lock()
	defer l.Unlock()

	fn()
}
