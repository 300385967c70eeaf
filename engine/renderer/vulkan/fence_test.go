package vulkan

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/framecore/engine/core"
)

func TestFenceTracksSignalState(t *testing.T) {
	dev := newFakeDevice()
	fence, err := NewFence(dev, true)
	if err != nil {
		t.Fatal(err)
	}
	defer fence.Destroy(dev)

	if !fence.IsSignaled {
		t.Fatal("fence created signaled is not marked signaled")
	}
	if err := fence.Reset(dev); err != nil {
		t.Fatal(err)
	}
	if fence.IsSignaled {
		t.Fatal("fence still marked signaled after Reset")
	}
}

func TestFenceWaitTimeoutIsDeviceLost(t *testing.T) {
	dev := newFakeDevice()
	fence, err := NewFence(dev, false)
	if err != nil {
		t.Fatal(err)
	}
	defer fence.Destroy(dev)

	// Nothing was submitted with the fence, so it never signals.
	err = fence.Wait(dev, 1000)
	if !errors.Is(err, core.ErrDeviceLost) {
		t.Fatalf("Wait = %v, want ErrDeviceLost", err)
	}
	if fence.IsSignaled {
		t.Error("timed out fence marked signaled")
	}
}

func TestFenceDestroyTwice(t *testing.T) {
	dev := newFakeDevice()
	fence, err := NewFence(dev, false)
	if err != nil {
		t.Fatal(err)
	}
	fence.Destroy(dev)
	fence.Destroy(dev)

	if n := dev.liveHandles("fence"); n != 0 {
		t.Errorf("%d fences alive", n)
	}
	if got := len(dev.log()); got != 2 {
		t.Errorf("call log = %v, want one create and one destroy", dev.log())
	}
}
