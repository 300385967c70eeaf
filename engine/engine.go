package engine

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/framecore/engine/assets"
	"github.com/spaghettifunk/framecore/engine/core"
	"github.com/spaghettifunk/framecore/engine/platform"
	"github.com/spaghettifunk/framecore/engine/renderer"
	"github.com/spaghettifunk/framecore/engine/renderer/vulkan"
)

// Engine owns the window, the renderer and the game loop. There is one per process but nothing
// in it is global: everything reaches the engine through the value returned by New.
type Engine struct {
	currentStage Stage
	config       *core.Config
	gameInstance *Game
	isRunning    atomic.Bool
	isSuspended  bool
	platform     *platform.Platform
	backend      *vulkan.VulkanRenderer
	renderer     *renderer.Renderer
	watcher      *assets.ShaderWatcher
	clock        *core.Clock
	metrics      *core.Metrics
	width        uint32
	height       uint32
	lastTime     float64
}

func New(g *Game, cfg *core.Config) (*Engine, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Apply(); err != nil {
		return nil, err
	}

	p, err := platform.New()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	backend := vulkan.New(p, cfg)

	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		gameInstance: g,
		platform:     p,
		backend:      backend,
		renderer:     renderer.New(backend),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        cfg.Application.Width,
		height:       cfg.Application.Height,
	}, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine cannot be initialized while %s", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	app := e.config.Application
	if err := e.platform.Startup(app.Name, app.PosX, app.PosY, app.Width, app.Height); err != nil {
		return err
	}
	// The framebuffer can differ from the requested window size on high density displays.
	e.width, e.height = e.platform.FramebufferSize()

	if err := e.renderer.Initialize(app.Name, e.width, e.height); err != nil {
		core.LogError("failed to initialize the renderer: %s", err)
		return err
	}

	if e.config.Assets.WatchShaders {
		watcher, err := assets.NewShaderWatcher(e.config.Renderer.ShaderDir, assets.DefaultDebounce)
		if err != nil {
			// Hot reload is a development aid; the engine runs without it.
			core.LogWarn("shader hot reload disabled: %s", err)
		} else {
			e.watcher = watcher
			core.LogInfo("watching %s for shader changes", e.config.Renderer.ShaderDir)
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.backend); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.isRunning.Store(true)
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run while %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}

		if err := e.handleResize(); err != nil {
			return err
		}

		if e.isSuspended {
			// Nothing to present to; don't spin.
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.GetAbsoluteTime()

		e.reloadShaders()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err)
				return err
			}
		}

		err := e.renderer.DrawFrame(delta, func(frame *vulkan.FrameData) error {
			if e.gameInstance.FnRender == nil {
				return nil
			}
			return e.gameInstance.FnRender(frame, delta)
		})
		if err != nil {
			core.LogError("Frame %d failed, shutting down: %s", e.backend.FrameNumber(), err)
			return err
		}

		if e.platform.ConsumeCaptureRequest() {
			e.capture()
		}

		e.metrics.Update(e.platform.GetAbsoluteTime() - frameStartTime)
		if int(currentTime) != int(e.lastTime) {
			core.LogDebug("%.0f fps, %.3fms/frame", e.metrics.FPS(), e.metrics.FrameTime())
		}

		e.lastTime = currentTime
	}

	return nil
}

// Stop asks the run loop to return after the frame in flight. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown || e.currentStage == EngineStageUninitialized {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown failed: %s", err)
		}
	}
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			core.LogWarn(err.Error())
		}
		e.watcher = nil
	}
	if err := e.renderer.Shutdown(); err != nil {
		return err
	}
	if err := e.platform.Shutdown(); err != nil {
		return err
	}
	e.currentStage = EngineStageShutdown
	return nil
}

func (e *Engine) handleResize() error {
	if !e.platform.ConsumeResize() && e.isSuspended == e.platform.Minimized() {
		return nil
	}

	if e.platform.Minimized() {
		if !e.isSuspended {
			core.LogInfo("Window minimized, suspending application.")
			e.isSuspended = true
		}
		return nil
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}

	width, height := e.platform.FramebufferSize()
	if width == e.width && height == e.height {
		return nil
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	if err := e.renderer.OnResize(width, height); err != nil {
		core.LogError(err.Error())
		return err
	}
	if e.gameInstance.FnOnResize != nil {
		return e.gameInstance.FnOnResize(width, height)
	}
	return nil
}

// reloadShaders turns pending shader blob changes into a pipeline rebuild at the next frame.
func (e *Engine) reloadShaders() {
	if e.watcher == nil {
		return
	}
	changed := e.watcher.Drain()
	if len(changed) == 0 {
		return
	}
	for _, path := range changed {
		core.LogInfo("shader changed: %s", path)
	}
	e.backend.RequestPipelineReload()
}

func (e *Engine) capture() {
	path := capturePath(e.config.Renderer.CaptureDir, e.backend.FrameNumber(), time.Now())
	if err := e.backend.CaptureDrawImage(path); err != nil {
		core.LogError("capture failed: %s", err)
	}
}

func capturePath(dir string, frame uint64, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%s_%06d.bmp", now.Format("20060102_150405"), frame))
}
