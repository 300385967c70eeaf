package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/core"
	"github.com/spaghettifunk/framecore/engine/math"
)

// Vertex matches the std430 layout the mesh shaders read through the vertex buffer address.
// The UV is split across the padding slots of the two vec3s.
type Vertex struct {
	Position math.Vec3
	UVX      float32
	Normal   math.Vec3
	UVY      float32
	Color    math.Vec4
}

const vertexSize = int(unsafe.Sizeof(Vertex{}))

// GPUMeshBuffers holds the index and vertex buffers of one uploaded mesh.
type GPUMeshBuffers struct {
	IndexBuffer         *AllocatedBuffer
	VertexBuffer        *AllocatedBuffer
	VertexBufferAddress vk.DeviceAddress
	IndexCount          uint32
}

func (m *GPUMeshBuffers) Destroy() {
	if m.IndexBuffer != nil {
		m.IndexBuffer.Destroy()
		m.IndexBuffer = nil
	}
	if m.VertexBuffer != nil {
		m.VertexBuffer.Destroy()
		m.VertexBuffer = nil
	}
	m.VertexBufferAddress = 0
}

func vertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*vertexSize)
}

func indexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
}

// stageMesh writes vertices followed by indices into dst and returns the index offset.
func stageMesh(dst []byte, indices []uint32, vertices []Vertex) vk.DeviceSize {
	vb := vertexBytes(vertices)
	copy(dst, vb)
	copy(dst[len(vb):], indexBytes(indices))
	return vk.DeviceSize(len(vb))
}

// UploadMesh creates device-local index and vertex buffers and fills them through a staging
// buffer. It blocks until the copy has finished on the GPU.
func UploadMesh(allocator *Allocator, immediate *ImmediateSubmitter, indices []uint32, vertices []Vertex) (*GPUMeshBuffers, error) {
	if len(indices) == 0 || len(vertices) == 0 {
		return nil, fmt.Errorf("cannot upload a mesh with %d indices and %d vertices", len(indices), len(vertices))
	}
	vertexBufferSize := vk.DeviceSize(len(vertices) * vertexSize)
	indexBufferSize := vk.DeviceSize(len(indices) * 4)

	mesh := &GPUMeshBuffers{IndexCount: uint32(len(indices))}

	var err error
	mesh.VertexBuffer, err = allocator.CreateBuffer(vertexBufferSize,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferDstBit|vk.BufferUsageTransferSrcBit|vk.BufferUsageShaderDeviceAddressBit),
		MemoryUsageGPUOnly)
	if err != nil {
		return nil, err
	}
	mesh.VertexBufferAddress = allocator.Device().BufferDeviceAddress(mesh.VertexBuffer.Buffer)

	mesh.IndexBuffer, err = allocator.CreateBuffer(indexBufferSize,
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit|vk.BufferUsageTransferSrcBit),
		MemoryUsageGPUOnly)
	if err != nil {
		mesh.Destroy()
		return nil, err
	}

	staging, err := allocator.CreateBuffer(vertexBufferSize+indexBufferSize,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), MemoryUsageCPUOnly)
	if err != nil {
		mesh.Destroy()
		return nil, err
	}
	defer staging.Destroy()

	indexOffset := stageMesh(staging.Mapped(), indices, vertices)

	device := allocator.Device()
	err = immediate.Submit(func(cmd vk.CommandBuffer) {
		device.CmdCopyBuffer(cmd, staging.Buffer, mesh.VertexBuffer.Buffer, []vk.BufferCopy{{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      vertexBufferSize,
		}})
		device.CmdCopyBuffer(cmd, staging.Buffer, mesh.IndexBuffer.Buffer, []vk.BufferCopy{{
			SrcOffset: indexOffset,
			DstOffset: 0,
			Size:      indexBufferSize,
		}})
	})
	if err != nil {
		mesh.Destroy()
		return nil, err
	}

	core.LogDebug("Uploaded mesh: %d vertices, %d indices.", len(vertices), len(indices))
	return mesh, nil
}
