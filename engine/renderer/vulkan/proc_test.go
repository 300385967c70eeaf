package vulkan

import (
	"errors"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// The real device must keep up with every entry point the frame and upload code drives.
var _ Device = (*VulkanDevice)(nil)

var procSentinels [4]byte

func procTable(names map[string]int) func(string) unsafe.Pointer {
	return func(name string) unsafe.Pointer {
		i, ok := names[name]
		if !ok {
			return nil
		}
		return unsafe.Pointer(&procSentinels[i])
	}
}

func TestResolveDeviceProcsPrefersCoreNames(t *testing.T) {
	procs, err := resolveDeviceProcs(procTable(map[string]int{
		"vkGetBufferDeviceAddress":    0,
		"vkGetBufferDeviceAddressKHR": 3,
		"vkCmdBeginRendering":         1,
		"vkCmdEndRendering":           2,
	}))
	if err != nil {
		t.Fatalf("resolveDeviceProcs: %v", err)
	}
	if procs.getBufferDeviceAddress != unsafe.Pointer(&procSentinels[0]) {
		t.Error("vkGetBufferDeviceAddress not taken from the core name")
	}
	if procs.cmdBeginRendering != unsafe.Pointer(&procSentinels[1]) {
		t.Error("vkCmdBeginRendering not resolved")
	}
	if procs.cmdEndRendering != unsafe.Pointer(&procSentinels[2]) {
		t.Error("vkCmdEndRendering not resolved")
	}
}

func TestResolveDeviceProcsFallsBackToExtensionNames(t *testing.T) {
	procs, err := resolveDeviceProcs(procTable(map[string]int{
		"vkGetBufferDeviceAddressKHR": 0,
		"vkCmdBeginRenderingKHR":      1,
		"vkCmdEndRenderingKHR":        2,
	}))
	if err != nil {
		t.Fatalf("resolveDeviceProcs: %v", err)
	}
	if procs.getBufferDeviceAddress == nil || procs.cmdBeginRendering == nil || procs.cmdEndRendering == nil {
		t.Fatalf("extension entry points not used: %+v", procs)
	}
}

func TestResolveDeviceProcsReportsMissingEntryPoint(t *testing.T) {
	procs, err := resolveDeviceProcs(procTable(map[string]int{
		"vkGetBufferDeviceAddress": 0,
		"vkCmdEndRendering":        2,
	}))
	if !errors.Is(err, ErrMissingDeviceProc) {
		t.Fatalf("error = %v, want ErrMissingDeviceProc", err)
	}
	if procs != nil {
		t.Fatal("partial entry point table returned with an error")
	}
}

func TestLoadDeviceProcsNeedsInstanceProcAddr(t *testing.T) {
	if _, err := loadDeviceProcs(nil, nil, nil); !errors.Is(err, ErrMissingDeviceProc) {
		t.Fatalf("error = %v, want ErrMissingDeviceProc", err)
	}
}

func TestVulkanDeviceWithoutProcsSkipsRecording(t *testing.T) {
	var d VulkanDevice
	if addr := d.BufferDeviceAddress(vk.NullBuffer); addr != 0 {
		t.Fatalf("address = %#x without a loaded device", addr)
	}
	d.CmdBeginRendering(nil, &vk.RenderingInfo{SType: vk.StructureTypeRenderingInfo})
	d.CmdEndRendering(nil)
}
