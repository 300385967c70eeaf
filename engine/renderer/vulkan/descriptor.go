package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
)

/**
 * @brief Accumulates descriptor bindings and builds a descriptor set layout from them.
 * Binding indices must be unique; Build does not check (see Validate).
 */
type DescriptorLayoutBuilder struct {
	Bindings []vk.DescriptorSetLayoutBinding
}

// AddBinding appends one binding with a descriptor count of 1. Stage flags are applied by Build.
func (b *DescriptorLayoutBuilder) AddBinding(binding uint32, descriptorType vk.DescriptorType) {
	b.Bindings = append(b.Bindings, vk.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorType:  descriptorType,
		DescriptorCount: 1,
	})
}

func (b *DescriptorLayoutBuilder) Clear() {
	b.Bindings = nil
}

// Validate reports duplicate binding indices.
func (b *DescriptorLayoutBuilder) Validate() error {
	seen := make(map[uint32]bool, len(b.Bindings))
	for _, binding := range b.Bindings {
		if seen[binding.Binding] {
			return fmt.Errorf("binding %d declared twice: %w", binding.Binding, core.ErrBuilderIncomplete)
		}
		seen[binding.Binding] = true
	}
	return nil
}

// createInfo applies shaderStages to a copy of the accumulated bindings. The builder itself is
// not modified, so building again with other stages starts from the same bindings.
func (b *DescriptorLayoutBuilder) createInfo(shaderStages vk.ShaderStageFlags, pNext unsafe.Pointer, flags vk.DescriptorSetLayoutCreateFlags) vk.DescriptorSetLayoutCreateInfo {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(b.Bindings))
	copy(bindings, b.Bindings)
	for i := range bindings {
		bindings[i].StageFlags = shaderStages
	}

	return vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        pNext,
		Flags:        flags,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
}

func (b *DescriptorLayoutBuilder) Build(device Device, shaderStages vk.ShaderStageFlags, pNext unsafe.Pointer, flags vk.DescriptorSetLayoutCreateFlags) (vk.DescriptorSetLayout, error) {
	info := b.createInfo(shaderStages, pNext, flags)
	layout, err := device.CreateDescriptorSetLayout(&info)
	if err != nil {
		core.LogError("failed to create descriptor set layout: %s", err)
		return vk.NullDescriptorSetLayout, err
	}
	return layout, nil
}

// PoolSizeRatio sizes one descriptor type as a multiple of the pool's max set count.
type PoolSizeRatio struct {
	Type  vk.DescriptorType
	Ratio float32
}

// DescriptorAllocator hands out descriptor sets from a single pool. Sets are freed all at
// once by ClearDescriptors.
type DescriptorAllocator struct {
	Pool vk.DescriptorPool
}

func poolSizes(maxSets uint32, ratios []PoolSizeRatio) []vk.DescriptorPoolSize {
	sizes := make([]vk.DescriptorPoolSize, 0, len(ratios))
	for _, r := range ratios {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            r.Type,
			DescriptorCount: uint32(r.Ratio * float32(maxSets)),
		})
	}
	return sizes
}

func (da *DescriptorAllocator) InitPool(device Device, maxSets uint32, ratios []PoolSizeRatio) error {
	sizes := poolSizes(maxSets, ratios)
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	pool, err := device.CreateDescriptorPool(&info)
	if err != nil {
		core.LogError("failed to create descriptor pool: %s", err)
		return err
	}
	da.Pool = pool
	return nil
}

func (da *DescriptorAllocator) ClearDescriptors(device Device) error {
	return device.ResetDescriptorPool(da.Pool)
}

func (da *DescriptorAllocator) DestroyPool(device Device) {
	if da.Pool != vk.NullDescriptorPool {
		device.DestroyDescriptorPool(da.Pool)
		da.Pool = vk.NullDescriptorPool
	}
}

func (da *DescriptorAllocator) Allocate(device Device, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	set, err := device.AllocateDescriptorSet(da.Pool, layout)
	if err != nil {
		core.LogError("failed to allocate descriptor set: %s", err)
		return nil, err
	}
	return set, nil
}

// WriteStorageImage points binding of set at view, which must be in the general layout.
func WriteStorageImage(device Device, set vk.DescriptorSet, binding uint32, view vk.ImageView) {
	device.UpdateDescriptorSets([]vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: vk.ImageLayoutGeneral,
		}},
	}})
}
