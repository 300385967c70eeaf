package core

import (
	"errors"
)

var (
	ErrSwapchainBooting  = errors.New("swapchain resized or recreated, booting")
	ErrDeviceLost        = errors.New("device lost while waiting on the GPU")
	ErrShaderBlobSize    = errors.New("shader blob size is not a multiple of 4")
	ErrNoMemoryType      = errors.New("no memory type satisfies the requested properties")
	ErrBuilderIncomplete = errors.New("builder is missing required state")
	ErrUnknown           = errors.New("unknown")
)
