package vulkan

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
	vmath "github.com/spaghettifunk/framecore/engine/math"
	"golang.org/x/image/bmp"
)

// ErrImageUndefined is returned when reading back an image no submitted work has written yet.
var ErrImageUndefined = errors.New("image has no defined contents")

// ReadImage copies the texels of img into host memory through the immediate channel. The image
// is moved to transfer-src for the copy and returned to layout afterwards. layout is the layout
// the last submitted work left the image in.
func ReadImage(allocator *Allocator, immediate *ImmediateSubmitter, img *AllocatedImage, layout vk.ImageLayout) ([]byte, error) {
	if layout == vk.ImageLayoutUndefined {
		return nil, ErrImageUndefined
	}
	texel, err := formatTexelSize(img.Format)
	if err != nil {
		return nil, err
	}
	size := vk.DeviceSize(int(img.Extent.Width) * int(img.Extent.Height) * texel)

	readback, err := allocator.CreateBuffer(size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), MemoryUsageGPUToCPU)
	if err != nil {
		return nil, err
	}
	defer readback.Destroy()

	device := allocator.Device()
	err = immediate.Submit(func(cmd vk.CommandBuffer) {
		TransitionImage(device, cmd, img.Image, layout, vk.ImageLayoutTransferSrcOptimal)
		device.CmdCopyImageToBuffer(cmd, img.Image, vk.ImageLayoutTransferSrcOptimal, readback.Buffer, []vk.BufferImageCopy{{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,
			ImageSubresource:  colorSubresourceLayers(),
			ImageOffset:       vk.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent:       img.Extent,
		}})
		TransitionImage(device, cmd, img.Image, vk.ImageLayoutTransferSrcOptimal, layout)
	})
	if err != nil {
		return nil, err
	}

	out := make([]byte, size)
	copy(out, readback.Mapped())
	return out, nil
}

// DecodeTexels converts tightly packed texels into an 8-bit RGBA image. Half float channels are
// clamped to [0, 1].
func DecodeTexels(data []byte, width, height int, format vk.Format) (*image.RGBA, error) {
	texel, err := formatTexelSize(format)
	if err != nil {
		return nil, err
	}
	if len(data) < width*height*texel {
		return nil, fmt.Errorf("%d bytes cannot hold %dx%d texels of %d bytes", len(data), width, height, texel)
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := data[(y*width+x)*texel:]
			var c color.RGBA
			switch format {
			case vk.FormatR16g16b16a16Sfloat:
				c = color.RGBA{
					R: unorm8(halfToFloat32(uint16(p[0]) | uint16(p[1])<<8)),
					G: unorm8(halfToFloat32(uint16(p[2]) | uint16(p[3])<<8)),
					B: unorm8(halfToFloat32(uint16(p[4]) | uint16(p[5])<<8)),
					A: unorm8(halfToFloat32(uint16(p[6]) | uint16(p[7])<<8)),
				}
			case vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb:
				c = color.RGBA{R: p[2], G: p[1], B: p[0], A: p[3]}
			default:
				c = color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
			}
			out.SetRGBA(x, y, c)
		}
	}
	return out, nil
}

// CaptureImage reads img back and writes it to path as a BMP file.
func CaptureImage(allocator *Allocator, immediate *ImmediateSubmitter, img *AllocatedImage, layout vk.ImageLayout, path string) error {
	data, err := ReadImage(allocator, immediate, img, layout)
	if err != nil {
		return err
	}
	rgba, err := DecodeTexels(data, int(img.Extent.Width), int(img.Extent.Height), img.Format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, rgba); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	core.LogInfo("captured %dx%d image to %s", img.Extent.Width, img.Extent.Height, path)
	return nil
}

func unorm8(v float32) uint8 {
	return uint8(vmath.Clamp(v, 0, 1)*255 + 0.5)
}

// halfToFloat32 widens an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := int32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff

	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// Subnormal: renormalise.
		exp = 1
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		mant &= 0x3ff
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | mant<<13)
	}
	return math.Float32frombits(sign | uint32(exp+127-15)<<23 | mant<<13)
}
