package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// bindingPoolCapacity is the number of texture bind groups accounted
// against one pool before the allocator grows a new one. Matches the
// descriptor pool size of the Vulkan backends this design descends from.
const bindingPoolCapacity = 1024

// bindingKey identifies a cached bind group. Keying on the generation as
// well as the id guarantees a bind group created for an earlier
// incarnation of the id is never handed to a draw call after the texture
// was recreated.
type bindingKey struct {
	id         TextureID
	generation uint64
}

// binding is one cached texture bind group and the pool it was accounted
// against.
type binding struct {
	group hal.BindGroup
	pool  int
}

// bindingPool tracks how many live bind groups were issued from one
// accounting pool.
type bindingPool struct {
	used int
}

// bindingAllocator caches one bind group (texture view + shared sampler)
// per live (id, generation) pair. Pool exhaustion is handled internally
// by growing the pool list; issued bind groups stay valid regardless of
// which pool they came from.
type bindingAllocator struct {
	device  hal.Device
	layout  hal.BindGroupLayout
	sampler hal.Sampler
	cache   map[bindingKey]*binding
	pools   []bindingPool
}

func newBindingAllocator(device hal.Device, layout hal.BindGroupLayout, sampler hal.Sampler) *bindingAllocator {
	return &bindingAllocator{
		device:  device,
		layout:  layout,
		sampler: sampler,
		cache:   make(map[bindingKey]*binding),
	}
}

// bind returns the bind group for a texture, creating and caching it on
// first use. A cache hit performs no GPU calls.
func (b *bindingAllocator) bind(id TextureID, tex *texture) (hal.BindGroup, error) {
	key := bindingKey{id: id, generation: tex.generation}
	if cached, ok := b.cache[key]; ok {
		return cached.group, nil
	}

	pool := b.acquirePool()
	group, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  fmt.Sprintf("uigpu_bind_%d_gen_%d", id, tex.generation),
		Layout: b.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{
				TextureView: tex.view.NativeHandle(),
			}},
			{Binding: 1, Resource: gputypes.SamplerBinding{
				Sampler: b.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create bind group: %v", ErrOutOfMemory, err)
	}

	b.pools[pool].used++
	b.cache[key] = &binding{group: group, pool: pool}
	return group, nil
}

// acquirePool returns the index of a pool with free capacity, growing the
// pool list when the newest one is full. Exhaustion never surfaces to the
// caller.
func (b *bindingAllocator) acquirePool() int {
	last := len(b.pools) - 1
	if last < 0 || b.pools[last].used >= bindingPoolCapacity {
		b.pools = append(b.pools, bindingPool{})
		last = len(b.pools) - 1
		if last > 0 {
			slogger().Debug("bind group pool exhausted, grew pool list", "pools", len(b.pools))
		}
	}
	return last
}

// release returns one slot to a pool. Called by the recycler when an
// evicted bind group is finally destroyed.
func (b *bindingAllocator) release(pool int) {
	if pool >= 0 && pool < len(b.pools) && b.pools[pool].used > 0 {
		b.pools[pool].used--
	}
}

// evict removes the cache entry for (id, generation), if any, and queues
// its bind group for deferred destruction. Called when a texture is freed
// or recreated; the old bind group may still be referenced by an
// in-flight frame, so it follows the same recycling path as textures.
func (b *bindingAllocator) evict(id TextureID, generation uint64, rec *recycler, slot int) {
	key := bindingKey{id: id, generation: generation}
	cached, ok := b.cache[key]
	if !ok {
		return
	}
	delete(b.cache, key)
	rec.queueFree(recycledBindGroup{group: cached.group, owner: b, pool: cached.pool}, slot)
}

// destroyAll destroys every cached bind group. Teardown only.
func (b *bindingAllocator) destroyAll() {
	for key, cached := range b.cache {
		b.device.DestroyBindGroup(cached.group)
		delete(b.cache, key)
	}
	b.pools = nil
}
