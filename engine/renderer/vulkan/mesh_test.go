package vulkan

import (
	"bytes"
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/math"
)

type uploadFixture struct {
	dev       *fakeDevice
	allocator *Allocator
	immediate *ImmediateSubmitter
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	dev := newFakeDevice()
	lockPool := NewVulkanLockPool()
	immediate, err := NewImmediateSubmitter(dev, lockPool, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(immediate.Destroy)
	return &uploadFixture{
		dev:       dev,
		allocator: NewAllocator(dev, lockPool),
		immediate: immediate,
	}
}

func rectangle() ([]uint32, []Vertex) {
	vertices := []Vertex{
		{Position: math.NewVec3(0.5, -0.5, 0), Color: math.NewVec4(0, 0, 0, 1)},
		{Position: math.NewVec3(0.5, 0.5, 0), Color: math.NewVec4(0.5, 0.5, 0.5, 1)},
		{Position: math.NewVec3(-0.5, -0.5, 0), Color: math.NewVec4(1, 0, 0, 1), UVX: 1},
		{Position: math.NewVec3(-0.5, 0.5, 0), Color: math.NewVec4(0, 1, 0, 1), UVY: 1},
	}
	indices := []uint32{0, 1, 2, 2, 1, 3}
	return indices, vertices
}

func TestVertexLayout(t *testing.T) {
	if vertexSize != 48 {
		t.Fatalf("vertex size = %d, want 48", vertexSize)
	}
}

func TestStageMeshLayout(t *testing.T) {
	indices, vertices := rectangle()
	vb := vertexBytes(vertices)
	ib := indexBytes(indices)

	staging := make([]byte, len(vb)+len(ib))
	offset := stageMesh(staging, indices, vertices)

	if int(offset) != len(vb) {
		t.Fatalf("index offset = %d, want %d", offset, len(vb))
	}
	if !bytes.Equal(staging[:len(vb)], vb) {
		t.Error("vertex bytes are not at the start of the staging buffer")
	}
	if !bytes.Equal(staging[offset:], ib) {
		t.Error("index bytes do not follow the vertex bytes")
	}
}

func TestUploadMeshRoundTrip(t *testing.T) {
	fx := newUploadFixture(t)
	indices, vertices := rectangle()

	mesh, err := UploadMesh(fx.allocator, fx.immediate, indices, vertices)
	if err != nil {
		t.Fatalf("UploadMesh: %v", err)
	}

	if mesh.IndexCount != uint32(len(indices)) {
		t.Errorf("index count = %d, want %d", mesh.IndexCount, len(indices))
	}
	if want := fx.dev.BufferDeviceAddress(mesh.VertexBuffer.Buffer); mesh.VertexBufferAddress != want || want == 0 {
		t.Errorf("vertex buffer address = %#x, want %#x", mesh.VertexBufferAddress, want)
	}
	if mesh.VertexBuffer.Mapped() != nil || mesh.IndexBuffer.Mapped() != nil {
		t.Error("mesh buffers must live in device-local memory")
	}
	// Only the vertex and index allocations survive the upload.
	if n := fx.allocator.LiveAllocations(); n != 2 {
		t.Fatalf("live allocations after upload = %d, want 2", n)
	}

	gotVertices, err := ReadBuffer(fx.allocator, fx.immediate, mesh.VertexBuffer, 0, mesh.VertexBuffer.Size)
	if err != nil {
		t.Fatalf("ReadBuffer vertices: %v", err)
	}
	if !bytes.Equal(gotVertices, vertexBytes(vertices)) {
		t.Error("vertex buffer contents differ from the uploaded vertices")
	}
	gotIndices, err := ReadBuffer(fx.allocator, fx.immediate, mesh.IndexBuffer, 0, mesh.IndexBuffer.Size)
	if err != nil {
		t.Fatalf("ReadBuffer indices: %v", err)
	}
	if !bytes.Equal(gotIndices, indexBytes(indices)) {
		t.Error("index buffer contents differ from the uploaded indices")
	}

	mesh.Destroy()
	if n := fx.allocator.LiveAllocations(); n != 0 {
		t.Fatalf("live allocations after Destroy = %d, want 0", n)
	}
	if n := fx.dev.liveHandles("buffer"); n != 0 {
		t.Fatalf("%d buffers alive after Destroy", n)
	}
}

func TestUploadMeshCopiesThroughStaging(t *testing.T) {
	fx := newUploadFixture(t)
	indices, vertices := rectangle()

	mesh, err := UploadMesh(fx.allocator, fx.immediate, indices, vertices)
	if err != nil {
		t.Fatalf("UploadMesh: %v", err)
	}
	defer mesh.Destroy()

	copies := 0
	for _, call := range fx.dev.log() {
		if len(call) > len("CmdCopyBuffer") && call[:len("CmdCopyBuffer")] == "CmdCopyBuffer" {
			copies++
		}
	}
	if copies != 2 {
		t.Fatalf("buffer copies = %d, want 2", copies)
	}
	if n := len(fx.dev.submissions()); n != 1 {
		t.Fatalf("submissions = %d, want one immediate submission", n)
	}
}

func TestUploadMeshRejectsEmptyInput(t *testing.T) {
	fx := newUploadFixture(t)
	indices, vertices := rectangle()

	if _, err := UploadMesh(fx.allocator, fx.immediate, nil, vertices); err == nil {
		t.Error("upload without indices succeeded")
	}
	if _, err := UploadMesh(fx.allocator, fx.immediate, indices, nil); err == nil {
		t.Error("upload without vertices succeeded")
	}
	if n := fx.allocator.LiveAllocations(); n != 0 {
		t.Errorf("%d allocations leaked", n)
	}
}

func TestUploadMeshFailureReleasesBuffers(t *testing.T) {
	fx := newUploadFixture(t)
	indices, vertices := rectangle()

	fx.dev.failNext("QueueSubmit")
	if _, err := UploadMesh(fx.allocator, fx.immediate, indices, vertices); !errors.Is(err, errInjected) {
		t.Fatalf("UploadMesh error = %v, want injected failure", err)
	}
	if n := fx.allocator.LiveAllocations(); n != 0 {
		t.Fatalf("%d allocations leaked by a failed upload", n)
	}
	if n := fx.dev.liveHandles("buffer"); n != 0 {
		t.Fatalf("%d buffers leaked by a failed upload", n)
	}
}

func TestReadBufferRejectsOverrun(t *testing.T) {
	fx := newUploadFixture(t)
	buf, err := fx.allocator.CreateBuffer(16, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), MemoryUsageGPUOnly)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	if _, err := ReadBuffer(fx.allocator, fx.immediate, buf, 8, 16); err == nil {
		t.Fatal("read past the end of the buffer succeeded")
	}
}
