package vulkan

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"golang.org/x/image/bmp"
)

func TestHalfToFloat32(t *testing.T) {
	tests := []struct {
		half uint16
		want float32
	}{
		{0x0000, 0},
		{0x3c00, 1},
		{0x3800, 0.5},
		{0xc000, -2},
		{0x7bff, 65504},
		{0x0001, float32(math.Ldexp(1, -24))},
		{0x0200, float32(math.Ldexp(1, -15))},
		{0x7c00, float32(math.Inf(1))},
		{0xfc00, float32(math.Inf(-1))},
	}
	for _, tt := range tests {
		if got := halfToFloat32(tt.half); got != tt.want {
			t.Errorf("halfToFloat32(%#04x) = %g, want %g", tt.half, got, tt.want)
		}
	}
	if got := halfToFloat32(0x7e00); !math.IsNaN(float64(got)) {
		t.Errorf("halfToFloat32(0x7e00) = %g, want NaN", got)
	}
}

func TestDecodeTexels(t *testing.T) {
	tests := []struct {
		format vk.Format
		texel  []byte
		want   color.RGBA
	}{
		{vk.FormatR8g8b8a8Unorm, []byte{10, 20, 30, 40}, color.RGBA{10, 20, 30, 40}},
		{vk.FormatB8g8r8a8Unorm, []byte{10, 20, 30, 40}, color.RGBA{30, 20, 10, 40}},
		// 1.0, 0.5, -1.0 (clamped), 2.0 (clamped)
		{vk.FormatR16g16b16a16Sfloat, []byte{0x00, 0x3c, 0x00, 0x38, 0x00, 0xbc, 0x00, 0x40}, color.RGBA{255, 128, 0, 255}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.format), func(t *testing.T) {
			img, err := DecodeTexels(tt.texel, 1, 1, tt.format)
			if err != nil {
				t.Fatal(err)
			}
			if got := img.RGBAAt(0, 0); got != tt.want {
				t.Errorf("texel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeTexelsRejectsShortData(t *testing.T) {
	if _, err := DecodeTexels(make([]byte, 7), 2, 1, vk.FormatR8g8b8a8Unorm); err == nil {
		t.Error("7 bytes decoded as two RGBA8 texels")
	}
	if _, err := DecodeTexels(make([]byte, 4), 1, 1, vk.FormatD32Sfloat); err == nil {
		t.Error("depth format decoded")
	}
}

func newCaptureImage(t *testing.T, fx *uploadFixture, texels []byte) *AllocatedImage {
	t.Helper()
	img, err := fx.allocator.CreateImage(vk.Extent3D{Width: 2, Height: 1, Depth: 1}, vk.FormatR8g8b8a8Unorm,
		vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit|vk.ImageUsageColorAttachmentBit), vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(img.Destroy)
	copy(fx.dev.imageBytes(img.Image), texels)
	return img
}

func TestReadImage(t *testing.T) {
	fx := newUploadFixture(t)
	texels := []byte{1, 2, 3, 255, 4, 5, 6, 255}
	img := newCaptureImage(t, fx, texels)
	fx.dev.resetLog()

	data, err := ReadImage(fx.allocator, fx.immediate, img, vk.ImageLayoutColorAttachmentOptimal)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	if string(data) != string(texels) {
		t.Errorf("data = %v, want %v", data, texels)
	}

	id := handleID(unsafe.Pointer(img.Image))
	toSrc := fmt.Sprintf("CmdImageBarrier:%d:%d->%d", id, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal)
	back := fmt.Sprintf("CmdImageBarrier:%d:%d->%d", id, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutColorAttachmentOptimal)
	var order []string
	for _, call := range fx.dev.log() {
		if call == toSrc || call == back {
			order = append(order, call)
		}
	}
	if len(order) != 2 || order[0] != toSrc || order[1] != back {
		t.Errorf("barriers = %v, want [%s %s]", order, toSrc, back)
	}
	if n := fx.dev.liveHandles("buffer"); n != 0 {
		t.Errorf("%d readback buffers alive", n)
	}
}

func TestCaptureImageRefusesUndefinedImage(t *testing.T) {
	fx := newUploadFixture(t)
	img := newCaptureImage(t, fx, []byte{1, 2, 3, 255, 4, 5, 6, 255})
	fx.dev.resetLog()

	path := filepath.Join(t.TempDir(), "frame.bmp")
	err := CaptureImage(fx.allocator, fx.immediate, img, vk.ImageLayoutUndefined, path)
	if !errors.Is(err, ErrImageUndefined) {
		t.Fatalf("CaptureImage error = %v, want ErrImageUndefined", err)
	}
	for _, call := range fx.dev.log() {
		if strings.HasPrefix(call, "QueueSubmit:") {
			t.Fatal("an undefined image was submitted for readback")
		}
	}
	if n := fx.dev.liveHandles("buffer"); n != 0 {
		t.Errorf("%d readback buffers alive", n)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("capture file written for an undefined image: %v", err)
	}
}

func TestCaptureImageWritesBMP(t *testing.T) {
	fx := newUploadFixture(t)
	img := newCaptureImage(t, fx, []byte{200, 100, 50, 255, 0, 128, 255, 255})

	path := filepath.Join(t.TempDir(), "captures", "frame.bmp")
	if err := CaptureImage(fx.allocator, fx.immediate, img, vk.ImageLayoutTransferSrcOptimal, path); err != nil {
		t.Fatalf("CaptureImage: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := bmp.Decode(f)
	if err != nil {
		t.Fatalf("bmp.Decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 2 || b.Dy() != 1 {
		t.Fatalf("bounds = %v", b)
	}
	want := []color.RGBA{{200, 100, 50, 255}, {0, 128, 255, 255}}
	for x, w := range want {
		got := color.RGBAModel.Convert(decoded.At(x, 0)).(color.RGBA)
		if got != w {
			t.Errorf("pixel %d = %v, want %v", x, got, w)
		}
	}
}
