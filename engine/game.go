package engine

import (
	"github.com/spaghettifunk/framecore/engine/renderer/vulkan"
)

// Game is the set of hooks the engine drives. Any hook may be nil.
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize runs once the renderer is up. Meshes and pipelines are created here.
type Initialize func(renderer *vulkan.VulkanRenderer) error
type Update func(deltaTime float64) error

// Render records draws into frame. It runs between BeginFrame and EndFrame.
type Render func(frame *vulkan.FrameData, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
