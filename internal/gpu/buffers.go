package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Initial per-slot capacities, in elements. Matches a typical first GUI
// frame so most applications never grow.
const (
	initialVertexCapacity = 4096
	initialIndexCapacity  = 8192

	indexStride = 4 // uint32 indices
)

// slotGeometry is one frame slot's vertex and index storage. Capacities
// are in elements and never shrink: shrinking would invalidate writes a
// previous submission on the slot may still be reading.
type slotGeometry struct {
	vertexBuf hal.Buffer
	vertexCap int
	indexBuf  hal.Buffer
	indexCap  int
}

// geometryPool owns the per-slot geometry buffers. Growth is amortized:
// an insufficient buffer is replaced by one sized to the larger of twice
// its capacity and the request, and the old buffer goes through the
// recycler rather than being destroyed in place.
type geometryPool struct {
	device hal.Device
	queue  hal.Queue
	slots  []slotGeometry

	// scratch is the CPU-side packing buffer, reused across frames.
	scratch []byte
}

func newGeometryPool(device hal.Device, queue hal.Queue, slots int) *geometryPool {
	return &geometryPool{
		device: device,
		queue:  queue,
		slots:  make([]slotGeometry, slots),
	}
}

// acquire ensures the slot's buffers hold at least vertexCount vertices
// and indexCount indices. The caller must have waited on the slot's fence
// before acquiring: the slot's previous submission owns the buffers until
// then.
func (p *geometryPool) acquire(slot, vertexCount, indexCount int, rec *recycler) (*slotGeometry, error) {
	g := &p.slots[slot]

	if vertexCount > g.vertexCap {
		newCap := grow(g.vertexCap, vertexCount, initialVertexCapacity)
		buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("uigpu_vertex_slot%d", slot),
			Size:  uint64(newCap) * vertexStride,
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: grow vertex buffer to %d: %v", ErrOutOfMemory, newCap, err)
		}
		if g.vertexBuf != nil {
			rec.queueFree(recycledBuffer{buf: g.vertexBuf}, slot)
		}
		slogger().Debug("vertex buffer grown", "slot", slot, "from", g.vertexCap, "to", newCap)
		g.vertexBuf = buf
		g.vertexCap = newCap
	}

	if indexCount > g.indexCap {
		newCap := grow(g.indexCap, indexCount, initialIndexCapacity)
		buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("uigpu_index_slot%d", slot),
			Size:  uint64(newCap) * indexStride,
			Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: grow index buffer to %d: %v", ErrOutOfMemory, newCap, err)
		}
		if g.indexBuf != nil {
			rec.queueFree(recycledBuffer{buf: g.indexBuf}, slot)
		}
		slogger().Debug("index buffer grown", "slot", slot, "from", g.indexCap, "to", newCap)
		g.indexBuf = buf
		g.indexCap = newCap
	}

	return g, nil
}

// grow doubles from the current capacity, but never below the request or
// the initial capacity.
func grow(current, want, initial int) int {
	next := max(current*2, initial)
	return max(next, want)
}

// upload packs every mesh's geometry at monotonically advancing offsets
// and writes both buffers through the queue. Write order matches mesh
// order, so the draw loop can advance vertex and index bases the same
// way.
func (p *geometryPool) upload(g *slotGeometry, meshes []Mesh) {
	var totalV, totalI int
	for i := range meshes {
		totalV += len(meshes[i].Vertices)
		totalI += len(meshes[i].Indices)
	}
	if totalV == 0 || totalI == 0 {
		return
	}

	vertexBytes := totalV * vertexStride
	need := vertexBytes + totalI*indexStride
	if cap(p.scratch) < need {
		p.scratch = make([]byte, need)
	}
	p.scratch = p.scratch[:need]

	vb := p.scratch[:vertexBytes]
	ib := p.scratch[vertexBytes:]
	vo, off := 0, 0
	for i := range meshes {
		for _, v := range meshes[i].Vertices {
			binary.LittleEndian.PutUint32(vb[vo:], math.Float32bits(v.Pos[0]))
			binary.LittleEndian.PutUint32(vb[vo+4:], math.Float32bits(v.Pos[1]))
			binary.LittleEndian.PutUint32(vb[vo+8:], math.Float32bits(v.UV[0]))
			binary.LittleEndian.PutUint32(vb[vo+12:], math.Float32bits(v.UV[1]))
			copy(vb[vo+16:vo+20], v.Color[:])
			vo += vertexStride
		}
		for _, idx := range meshes[i].Indices {
			binary.LittleEndian.PutUint32(ib[off:], idx)
			off += indexStride
		}
	}

	p.queue.WriteBuffer(g.vertexBuf, 0, vb)
	p.queue.WriteBuffer(g.indexBuf, 0, ib)
}

// destroyAll destroys every slot's buffers. Teardown only.
func (p *geometryPool) destroyAll() {
	for i := range p.slots {
		g := &p.slots[i]
		if g.vertexBuf != nil {
			p.device.DestroyBuffer(g.vertexBuf)
			g.vertexBuf = nil
		}
		if g.indexBuf != nil {
			p.device.DestroyBuffer(g.indexBuf)
			g.indexBuf = nil
		}
		g.vertexCap = 0
		g.indexCap = 0
	}
}
