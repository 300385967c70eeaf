package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
)

// AllocatedImage owns an image, its default view and the memory bound to it.
type AllocatedImage struct {
	Image      vk.Image
	View       vk.ImageView
	Allocation *Allocation
	Extent     vk.Extent3D
	Format     vk.Format

	allocator *Allocator
}

func (img *AllocatedImage) Extent2D() vk.Extent2D {
	return vk.Extent2D{Width: img.Extent.Width, Height: img.Extent.Height}
}

func (img *AllocatedImage) Destroy() {
	if img.allocator != nil {
		img.allocator.DestroyImage(img)
	}
}

// CreateImage creates a single-mip, optimally tiled, device-local 2D image and a view over it.
func (a *Allocator) CreateImage(extent vk.Extent3D, format vk.Format, usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags) (*AllocatedImage, error) {
	var out *AllocatedImage
	err := a.lockPool.SafeCall(ImageManagement, func() error {
		info := vk.ImageCreateInfo{
			SType:         vk.StructureTypeImageCreateInfo,
			ImageType:     vk.ImageType2d,
			Format:        format,
			Extent:        extent,
			MipLevels:     1,
			ArrayLayers:   1,
			Samples:       vk.SampleCount1Bit,
			Tiling:        vk.ImageTilingOptimal,
			Usage:         usage,
			SharingMode:   vk.SharingModeExclusive,
			InitialLayout: vk.ImageLayoutUndefined,
		}
		image, err := a.device.CreateImage(&info)
		if err != nil {
			return err
		}

		req := a.device.ImageMemoryRequirements(image)
		alloc, err := a.allocate("image", req, MemoryUsageGPUOnly, false)
		if err != nil {
			a.device.DestroyImage(image)
			return err
		}
		if err := a.device.BindImageMemory(image, alloc.memory); err != nil {
			a.device.DestroyImage(image)
			a.free(alloc)
			return err
		}

		viewInfo := vk.ImageViewCreateInfo{
			SType:            vk.StructureTypeImageViewCreateInfo,
			Image:            image,
			ViewType:         vk.ImageViewType2d,
			Format:           format,
			SubresourceRange: subresourceRange(aspect),
		}
		view, err := a.device.CreateImageView(&viewInfo)
		if err != nil {
			a.device.DestroyImage(image)
			a.free(alloc)
			return err
		}

		out = &AllocatedImage{
			Image:      image,
			View:       view,
			Allocation: alloc,
			Extent:     extent,
			Format:     format,
			allocator:  a,
		}
		return nil
	})
	if err != nil {
		core.LogError("failed to create %dx%d image: %s", extent.Width, extent.Height, err)
		return nil, err
	}
	return out, nil
}

// DestroyImage releases the view, the image and its memory. Destroying twice is a no-op.
func (a *Allocator) DestroyImage(img *AllocatedImage) {
	a.lockPool.SafeDo(ImageManagement, func() {
		if img.Image == vk.NullImage {
			return
		}
		a.device.DestroyImageView(img.View)
		a.device.DestroyImage(img.Image)
		a.free(img.Allocation)
		img.View = vk.NullImageView
		img.Image = vk.NullImage
		img.Allocation = nil
	})
}

func subresourceRange(aspect vk.ImageAspectFlags) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     aspect,
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func colorSubresourceLayers() vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:       0,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

// TransitionImage records a full-subresource layout transition. The barrier is deliberately
// coarse: every stage and every memory access on both sides.
func TransitionImage(device Device, cmd vk.CommandBuffer, image vk.Image, currentLayout, newLayout vk.ImageLayout) {
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if newLayout == vk.ImageLayoutDepthStencilAttachmentOptimal {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit | vk.AccessMemoryReadBit),
		OldLayout:           currentLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    subresourceRange(aspect),
	}
	allCommands := vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	device.CmdImageBarrier(cmd, barrier, allCommands, allCommands)
}

// CopyImageToImage blits the whole of source onto the whole of destination. Source must be in
// transfer-src layout and destination in transfer-dst layout.
func CopyImageToImage(device Device, cmd vk.CommandBuffer, source, destination vk.Image, srcSize, dstSize vk.Extent2D) {
	device.CmdBlitImage(cmd, source, destination, srcSize, dstSize)
}

// formatTexelSize is the byte size of one texel for the formats the renderer reads back.
func formatTexelSize(format vk.Format) (int, error) {
	switch format {
	case vk.FormatR16g16b16a16Sfloat:
		return 8, nil
	case vk.FormatR8g8b8a8Unorm, vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Srgb, vk.FormatB8g8r8a8Srgb:
		return 4, nil
	default:
		return 0, fmt.Errorf("unsupported readback format %d", format)
	}
}
