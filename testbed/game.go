package testbed

import (
	"fmt"

	"github.com/spaghettifunk/framecore/engine"
	"github.com/spaghettifunk/framecore/engine/core"
	"github.com/spaghettifunk/framecore/engine/math"
	"github.com/spaghettifunk/framecore/engine/renderer/vulkan"
)

// Seconds each background effect stays on screen.
const effectPeriod = 5.0

type TestGame struct {
	*engine.Game
}

type gameState struct {
	renderer  *vulkan.VulkanRenderer
	rectangle *vulkan.GPUMeshBuffers

	width      uint32
	height     uint32
	elapsed    float64
	projection math.Mat4
	view       math.Mat4
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{
				view: math.NewMat4Translation(math.NewVec3(0, 0, -2)),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(renderer *vulkan.VulkanRenderer) error {
	core.LogDebug("TestGame Initialize fn....")

	state := g.state()
	state.renderer = renderer

	vertices := []vulkan.Vertex{
		{Position: math.NewVec3(0.5, -0.5, 0), Color: math.NewVec4(0, 0, 0, 1)},
		{Position: math.NewVec3(0.5, 0.5, 0), Color: math.NewVec4(0.5, 0.5, 0.5, 1)},
		{Position: math.NewVec3(-0.5, -0.5, 0), Color: math.NewVec4(1, 0, 0, 1)},
		{Position: math.NewVec3(-0.5, 0.5, 0), Color: math.NewVec4(0, 1, 0, 1)},
	}
	indices := []uint32{0, 1, 2, 2, 1, 3}

	mesh, err := renderer.UploadMesh(indices, vertices)
	if err != nil {
		return fmt.Errorf("failed to upload the rectangle: %w", err)
	}
	state.rectangle = mesh
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	state.elapsed += deltaTime

	effects := len(state.renderer.BackgroundEffects)
	if effects == 0 {
		return nil
	}
	next := int(state.elapsed/effectPeriod) % effects
	if next != state.renderer.CurrentEffect {
		state.renderer.CurrentEffect = next
		core.LogDebug("background effect: %s", state.renderer.BackgroundEffects[next].Name)
	}
	return nil
}

func (g *TestGame) Render(frame *vulkan.FrameData, deltaTime float64) error {
	state := g.state()
	cmd := frame.CommandBuffer.Handle

	state.renderer.BeginRendering(cmd)
	state.renderer.DrawMesh(cmd, state.renderer.MeshPipeline, state.rectangle, state.view.Mul(state.projection))
	state.renderer.EndRendering(cmd)
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	if width == 0 || height == 0 {
		return nil
	}
	// Near and far are swapped for the reversed depth test.
	state.projection = math.NewMat4Perspective(math.DegToRad(70), float32(width)/float32(height), 10000, 0.1)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	// The rectangle is owned by the renderer's deletion queue.
	g.state().rectangle = nil
	return nil
}
