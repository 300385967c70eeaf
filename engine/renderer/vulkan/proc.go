package vulkan

/*
#include <stdint.h>
#include <stdlib.h>

typedef void (*fcVoidFunction)(void);
typedef fcVoidFunction (*fcGetProcAddr)(void* handle, const char* name);
typedef uint64_t (*fcGetBufferDeviceAddress)(void* device, const void* info);
typedef void (*fcCmdBeginRendering)(void* cmd, const void* info);
typedef void (*fcCmdEndRendering)(void* cmd);

static void* fcGetProc(void* getProcAddr, void* handle, const char* name) {
	return (void*)((fcGetProcAddr)getProcAddr)(handle, name);
}

static uint64_t fcGetBufferDeviceAddressCall(void* fn, void* device, const void* info) {
	return ((fcGetBufferDeviceAddress)fn)(device, info);
}

static void fcCmdBeginRenderingCall(void* fn, void* cmd, const void* info) {
	((fcCmdBeginRendering)fn)(cmd, info);
}

static void fcCmdEndRenderingCall(void* fn, void* cmd) {
	((fcCmdEndRendering)fn)(cmd);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// ErrMissingDeviceProc is returned when the driver does not expose an entry point the renderer
// records with.
var ErrMissingDeviceProc = errors.New("device entry point not found")

// deviceProcs holds the device-level entry points the bindings do not wrap: buffer device
// addresses and dynamic rendering.
type deviceProcs struct {
	getBufferDeviceAddress unsafe.Pointer
	cmdBeginRendering      unsafe.Pointer
	cmdEndRendering        unsafe.Pointer
}

// cAllocs is the C memory handed back by the bindings' PassRef.
type cAllocs interface {
	Free()
}

var freeCAllocs = func(allocs cAllocs) {
	allocs.Free()
}

func procAddr(getProcAddr, handle unsafe.Pointer, name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.fcGetProc(getProcAddr, handle, cname)
}

// loadDeviceProcs resolves vkGetDeviceProcAddr through getInstanceProcAddr, then the device
// entry points through it.
func loadDeviceProcs(getInstanceProcAddr unsafe.Pointer, instance vk.Instance, device vk.Device) (*deviceProcs, error) {
	if getInstanceProcAddr == nil {
		return nil, fmt.Errorf("%w: vkGetInstanceProcAddr is nil", ErrMissingDeviceProc)
	}
	getDeviceProcAddr := procAddr(getInstanceProcAddr, unsafe.Pointer(instance), "vkGetDeviceProcAddr")
	if getDeviceProcAddr == nil {
		return nil, fmt.Errorf("%w: vkGetDeviceProcAddr", ErrMissingDeviceProc)
	}
	return resolveDeviceProcs(func(name string) unsafe.Pointer {
		return procAddr(getDeviceProcAddr, unsafe.Pointer(device), name)
	})
}

// resolveDeviceProcs looks every entry point up by its core name first, then by the name of the
// extension it was promoted from.
func resolveDeviceProcs(lookup func(name string) unsafe.Pointer) (*deviceProcs, error) {
	find := func(names ...string) (unsafe.Pointer, error) {
		for _, name := range names {
			if fn := lookup(name); fn != nil {
				return fn, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrMissingDeviceProc, names[0])
	}

	var procs deviceProcs
	var err error
	if procs.getBufferDeviceAddress, err = find("vkGetBufferDeviceAddress", "vkGetBufferDeviceAddressKHR"); err != nil {
		return nil, err
	}
	if procs.cmdBeginRendering, err = find("vkCmdBeginRendering", "vkCmdBeginRenderingKHR"); err != nil {
		return nil, err
	}
	if procs.cmdEndRendering, err = find("vkCmdEndRendering", "vkCmdEndRenderingKHR"); err != nil {
		return nil, err
	}
	return &procs, nil
}

func (p *deviceProcs) bufferDeviceAddress(device vk.Device, info *vk.BufferDeviceAddressInfo) vk.DeviceAddress {
	ref, allocs := info.PassRef()
	if allocs != nil {
		defer freeCAllocs(allocs)
	}
	return vk.DeviceAddress(C.fcGetBufferDeviceAddressCall(p.getBufferDeviceAddress, unsafe.Pointer(device), unsafe.Pointer(ref)))
}

func (p *deviceProcs) beginRendering(cmd vk.CommandBuffer, info *vk.RenderingInfo) {
	ref, allocs := info.PassRef()
	if allocs != nil {
		defer freeCAllocs(allocs)
	}
	C.fcCmdBeginRenderingCall(p.cmdBeginRendering, unsafe.Pointer(cmd), unsafe.Pointer(ref))
}

func (p *deviceProcs) endRendering(cmd vk.CommandBuffer) {
	C.fcCmdEndRenderingCall(p.cmdEndRendering, unsafe.Pointer(cmd))
}
