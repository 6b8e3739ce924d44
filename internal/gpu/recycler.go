package gpu

import "github.com/gogpu/wgpu/hal"

// resource is anything whose destruction must wait until a frame slot's
// fence has signaled.
type resource interface {
	destroy(device hal.Device)
}

// recycledTexture defers destruction of a texture and its view.
type recycledTexture struct {
	tex  hal.Texture
	view hal.TextureView
}

func (r recycledTexture) destroy(device hal.Device) {
	if r.view != nil {
		device.DestroyTextureView(r.view)
	}
	if r.tex != nil {
		device.DestroyTexture(r.tex)
	}
}

// recycledBuffer defers destruction of a geometry buffer replaced during
// growth.
type recycledBuffer struct {
	buf hal.Buffer
}

func (r recycledBuffer) destroy(device hal.Device) {
	if r.buf != nil {
		device.DestroyBuffer(r.buf)
	}
}

// recycledBindGroup defers destruction of an evicted texture bind group
// and returns its pool slot to the allocator.
type recycledBindGroup struct {
	group hal.BindGroup
	owner *bindingAllocator
	pool  int
}

func (r recycledBindGroup) destroy(device hal.Device) {
	if r.group != nil {
		device.DestroyBindGroup(r.group)
	}
	if r.owner != nil {
		r.owner.release(r.pool)
	}
}

// recycledCommandBuffer frees a submitted command buffer once the GPU is
// done with it.
type recycledCommandBuffer struct {
	buf hal.CommandBuffer
}

func (r recycledCommandBuffer) destroy(device hal.Device) {
	if r.buf != nil {
		device.FreeCommandBuffer(r.buf)
	}
}

// recycler holds resources freed during a frame until the owning slot's
// fence has been observed signaled. It is the only path through which the
// backend destroys GPU handles between init and teardown; destroying a
// resource directly could invalidate work still referenced by an
// in-flight command buffer.
type recycler struct {
	device  hal.Device
	pending [][]resource // indexed by frame slot
}

func newRecycler(device hal.Device, slots int) *recycler {
	return &recycler{
		device:  device,
		pending: make([][]resource, slots),
	}
}

// queueFree records a resource against a frame slot. The resource is
// destroyed by the collect call that follows the slot's next fence wait.
func (r *recycler) queueFree(res resource, slot int) {
	r.pending[slot] = append(r.pending[slot], res)
}

// collect destroys every resource queued against the slot. The caller
// must have waited on the slot's fence first: collect itself performs no
// synchronization.
func (r *recycler) collect(slot int) {
	queued := r.pending[slot]
	if len(queued) == 0 {
		return
	}
	for _, res := range queued {
		res.destroy(r.device)
	}
	r.pending[slot] = r.pending[slot][:0]
	slogger().Debug("recycler collected slot", "slot", slot, "resources", len(queued))
}

// drainAll destroys everything in every slot. Teardown only, after all
// fences have been waited.
func (r *recycler) drainAll() {
	for slot := range r.pending {
		r.collect(slot)
	}
}

// pendingCount returns the number of resources queued against a slot.
func (r *recycler) pendingCount(slot int) int {
	return len(r.pending[slot])
}
