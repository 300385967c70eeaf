package renderer

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/spaghettifunk/framecore/engine/core"
	"github.com/spaghettifunk/framecore/engine/renderer/vulkan"
)

type fakeBackend struct {
	calls    []string
	beginErr error
	endErr   error
}

func (f *fakeBackend) Initialize(appName string, appWidth, appHeight uint32) error {
	f.calls = append(f.calls, fmt.Sprintf("Initialize:%s:%dx%d", appName, appWidth, appHeight))
	return nil
}

func (f *fakeBackend) Shutdown() error {
	f.calls = append(f.calls, "Shutdown")
	return nil
}

func (f *fakeBackend) Resized(width, height uint32) error {
	f.calls = append(f.calls, fmt.Sprintf("Resized:%dx%d", width, height))
	return nil
}

func (f *fakeBackend) BeginFrame(deltaTime float64) (*vulkan.FrameData, error) {
	f.calls = append(f.calls, "BeginFrame")
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &vulkan.FrameData{}, nil
}

func (f *fakeBackend) EndFrame(deltaTime float64) error {
	f.calls = append(f.calls, "EndFrame")
	return f.endErr
}

func (f *fakeBackend) AdvanceFrame() {
	f.calls = append(f.calls, "AdvanceFrame")
}

func TestDrawFrameOrder(t *testing.T) {
	backend := &fakeBackend{}
	r := New(backend)

	var drawn *vulkan.FrameData
	err := r.DrawFrame(0.016, func(frame *vulkan.FrameData) error {
		backend.calls = append(backend.calls, "draw")
		drawn = frame
		return nil
	})
	if err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	if drawn == nil {
		t.Error("draw received no frame")
	}
	want := []string{"BeginFrame", "draw", "EndFrame", "AdvanceFrame"}
	if !reflect.DeepEqual(backend.calls, want) {
		t.Errorf("calls = %v, want %v", backend.calls, want)
	}
	if r.DrawAttempts() != 1 {
		t.Errorf("DrawAttempts = %d, want 1", r.DrawAttempts())
	}
}

func TestDrawFrameAdvancesOnFailure(t *testing.T) {
	failure := errors.New("queue submit failed")
	tests := []struct {
		name     string
		backend  *fakeBackend
		draw     DrawFunc
		wantErr  error
		wantCall []string
	}{
		{
			name:     "swapchain booting",
			backend:  &fakeBackend{beginErr: fmt.Errorf("acquire: %w", core.ErrSwapchainBooting)},
			wantCall: []string{"BeginFrame", "AdvanceFrame"},
		},
		{
			name:     "device lost",
			backend:  &fakeBackend{beginErr: core.ErrDeviceLost},
			wantErr:  core.ErrDeviceLost,
			wantCall: []string{"BeginFrame", "AdvanceFrame"},
		},
		{
			name:     "draw fails",
			backend:  &fakeBackend{},
			draw:     func(*vulkan.FrameData) error { return failure },
			wantErr:  failure,
			wantCall: []string{"BeginFrame", "EndFrame", "AdvanceFrame"},
		},
		{
			name:     "end fails",
			backend:  &fakeBackend{endErr: failure},
			wantErr:  failure,
			wantCall: []string{"BeginFrame", "EndFrame", "AdvanceFrame"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.backend)
			err := r.DrawFrame(0, tt.draw)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("DrawFrame = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("DrawFrame = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(tt.backend.calls, tt.wantCall) {
				t.Errorf("calls = %v, want %v", tt.backend.calls, tt.wantCall)
			}
			if r.DrawAttempts() != 1 {
				t.Errorf("DrawAttempts = %d, want 1", r.DrawAttempts())
			}
		})
	}
}

func TestRendererForwardsLifecycle(t *testing.T) {
	backend := &fakeBackend{}
	r := New(backend)

	if err := r.Initialize("testbed", 800, 600); err != nil {
		t.Fatal(err)
	}
	if err := r.OnResize(1024, 768); err != nil {
		t.Fatal(err)
	}
	if err := r.Shutdown(); err != nil {
		t.Fatal(err)
	}
	want := []string{"Initialize:testbed:800x600", "Resized:1024x768", "Shutdown"}
	if !reflect.DeepEqual(backend.calls, want) {
		t.Errorf("calls = %v, want %v", backend.calls, want)
	}
}

var _ Backend = (*vulkan.VulkanRenderer)(nil)
