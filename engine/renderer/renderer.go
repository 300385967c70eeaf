package renderer

import (
	"errors"

	"github.com/spaghettifunk/framecore/engine/core"
	"github.com/spaghettifunk/framecore/engine/renderer/vulkan"
)

type Backend interface {
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	Resized(width, height uint32) error
	BeginFrame(deltaTime float64) (*vulkan.FrameData, error)
	EndFrame(deltaTime float64) error
	// AdvanceFrame moves to the next frame slot. Called once per draw attempt.
	AdvanceFrame()
}

// DrawFunc records the frame's draws into frame.CommandBuffer.
type DrawFunc func(frame *vulkan.FrameData) error

type Renderer struct {
	backend   Backend
	drawCount uint64
}

func New(backend Backend) *Renderer {
	return &Renderer{
		backend: backend,
	}
}

func (r *Renderer) Initialize(appName string, appWidth, appHeight uint32) error {
	return r.backend.Initialize(appName, appWidth, appHeight)
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

func (r *Renderer) OnResize(width, height uint32) error {
	return r.backend.Resized(width, height)
}

// DrawAttempts is the number of DrawFrame calls so far, failed ones included.
func (r *Renderer) DrawAttempts() uint64 {
	return r.drawCount
}

/**
 * @brief Begins a frame, records draw into it and ends it.
 *
 * The frame slot advances whatever the outcome. A frame skipped because the
 * swapchain was being recreated is not reported as an error.
 */
func (r *Renderer) DrawFrame(deltaTime float64, draw DrawFunc) error {
	defer func() {
		r.backend.AdvanceFrame()
		r.drawCount++
	}()

	frame, err := r.backend.BeginFrame(deltaTime)
	if err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			core.LogDebug("frame skipped: %s", err)
			return nil
		}
		core.LogError("failed to begin frame: %s", err)
		return err
	}

	var drawErr error
	if draw != nil {
		drawErr = draw(frame)
		if drawErr != nil {
			core.LogError("frame draw failed: %s", drawErr)
		}
	}

	// The acquired image and the slot fence are only released by a submission, so the frame is
	// ended even when drawing failed.
	if err := r.backend.EndFrame(deltaTime); err != nil {
		core.LogError("failed to end frame: %s", err)
		return errors.Join(drawErr, err)
	}
	return drawErr
}
