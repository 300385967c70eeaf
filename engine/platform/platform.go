package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/framecore/engine/core"
)

var startTime float64 = 0

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window

	resized          bool
	width            uint32
	height           uint32
	minified         bool
	captureRequested bool
}

func New() (*Platform, error) {
	return &Platform{
		Window: nil,
	}, nil
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("glfw reports no Vulkan loader on this system")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetIconifyCallback(p.iconifyCallback)
	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	fw, fh := p.Window.GetFramebufferSize()
	p.width, p.height = uint32(fw), uint32(fh)

	startTime = glfw.GetTime()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages polls window events. It returns false once the window has been asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// RequestClose marks the window for closing; the next PumpMessages returns false.
func (p *Platform) RequestClose() {
	if p.Window != nil {
		p.Window.SetShouldClose(true)
	}
}

func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - startTime
}

// RequiredExtensions returns the instance extensions GLFW needs to present to this window.
func (p *Platform) RequiredExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// InstanceProcAddr is the loader entry point handed to the Vulkan bindings.
func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// CreateSurface creates a VkSurfaceKHR for the window. instance is the raw VkInstance.
func (p *Platform) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create window surface: %w", err)
	}
	return surface, nil
}

// FramebufferSize returns the last known framebuffer extent in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	return p.width, p.height
}

// ConsumeResize reports whether the framebuffer changed size since the last call.
func (p *Platform) ConsumeResize() bool {
	r := p.resized
	p.resized = false
	return r
}

// Minimized is true while the window is iconified or has a zero-sized framebuffer.
func (p *Platform) Minimized() bool {
	return p.minified || p.width == 0 || p.height == 0
}

// ConsumeCaptureRequest reports whether the capture key was pressed since the last call.
func (p *Platform) ConsumeCaptureRequest() bool {
	r := p.captureRequested
	p.captureRequested = false
	return r
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyEscape:
		p.RequestClose()
	case glfw.KeyF12:
		p.captureRequested = true
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.width, p.height = uint32(width), uint32(height)
	p.resized = true
}

func (p *Platform) iconifyCallback(w *glfw.Window, iconified bool) {
	p.minified = iconified
}
