// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrRendererClosed is returned when operating on a renderer after
// Teardown.
var ErrRendererClosed = errors.New("uigpu: renderer is closed")

// Renderer drives one GUI frame from delta to submission. It owns the
// texture table, geometry pool, binding allocator, recycler and frame
// slots, and is driven by a single thread: UpdateTextures and Paint must
// never run concurrently.
type Renderer struct {
	device hal.Device
	queue  hal.Queue

	textures *textureTable
	geometry *geometryPool
	bindings *bindingAllocator
	recycler *recycler
	frames   *frameSet
	pipeline *meshPipeline

	width  uint32
	height uint32

	// currentSlot tags deferred frees from UpdateTextures with the slot
	// whose frame is being prepared.
	currentSlot int

	lost   bool
	closed bool
}

// NewRenderer builds the full GPU side: pipeline, fences, and empty
// resource tables. framesInFlight is the number of frame slots; width
// and height are the render target extent in physical pixels.
func NewRenderer(device hal.Device, queue hal.Queue, format gputypes.TextureFormat, framesInFlight int, width, height uint32) (*Renderer, error) {
	pipeline, err := newMeshPipeline(device, format, framesInFlight)
	if err != nil {
		return nil, fmt.Errorf("uigpu: %w", err)
	}
	frames, err := newFrameSet(device, framesInFlight)
	if err != nil {
		pipeline.destroy(device)
		return nil, fmt.Errorf("uigpu: %w", err)
	}

	r := &Renderer{
		device:   device,
		queue:    queue,
		textures: newTextureTable(device, queue),
		geometry: newGeometryPool(device, queue, framesInFlight),
		recycler: newRecycler(device, framesInFlight),
		frames:   frames,
		pipeline: pipeline,
		width:    width,
		height:   height,
	}
	r.bindings = newBindingAllocator(device, pipeline.textureLayout, pipeline.sampler)

	slogger().Info("renderer created",
		"frames_in_flight", framesInFlight,
		"target", fmt.Sprintf("%dx%d", width, height))
	return r, nil
}

// UpdateTextures applies one frame's texture delta. Failures are
// per-texture: the returned error joins them, and every unaffected entry
// still applies. Freed textures are queued against the slot currently
// being prepared and destroyed only after that slot's fence next
// signals.
func (r *Renderer) UpdateTextures(delta TextureDelta) error {
	if r.closed {
		return ErrRendererClosed
	}
	if r.lost {
		return ErrDeviceLost
	}
	if delta.IsEmpty() {
		return nil
	}
	return r.textures.apply(delta, r.recycler, r.currentSlot, r.bindings)
}

// Paint renders one frame's meshes into target and submits the work on
// the given frame slot. Per-mesh failures (unknown texture id, bind
// group allocation failure) skip only that mesh; the frame still
// renders. A fence wait timeout or submission failure is fatal and
// leaves the renderer unusable until Teardown.
func (r *Renderer) Paint(slot int, target hal.TextureView, meshes []Mesh, pixelsPerPoint float32) error {
	if r.closed {
		return ErrRendererClosed
	}
	if r.lost {
		return ErrDeviceLost
	}
	if target == nil {
		return errors.New("uigpu: nil render target")
	}
	if pixelsPerPoint <= 0 {
		pixelsPerPoint = 1
	}

	if err := r.frames.acquire(slot, r.recycler); err != nil {
		if errors.Is(err, ErrDeviceLost) {
			r.lost = true
		}
		return err
	}
	r.currentSlot = slot

	var totalV, totalI int
	for i := range meshes {
		totalV += len(meshes[i].Vertices)
		totalI += len(meshes[i].Indices)
	}

	var geo *slotGeometry
	if totalV > 0 && totalI > 0 {
		var err error
		geo, err = r.geometry.acquire(slot, totalV, totalI, r.recycler)
		if err != nil {
			// Allocation failure is recoverable: drop this frame, keep
			// the backend alive for the next one.
			r.frames.abandon(slot)
			return err
		}
		r.geometry.upload(geo, meshes)
	}
	ppWidth := float32(r.width)
	ppHeight := float32(r.height)
	r.pipeline.writeScreenSize(r.queue, slot, ppWidth/pixelsPerPoint, ppHeight/pixelsPerPoint)

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "uigpu_frame_encoder",
	})
	if err != nil {
		r.frames.abandon(slot)
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("uigpu_frame"); err != nil {
		r.frames.abandon(slot)
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "uigpu_gui_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})

	if geo != nil {
		rp.SetPipeline(r.pipeline.pipeline)
		rp.SetViewport(0, 0, ppWidth, ppHeight, 0, 1)
		rp.SetBindGroup(0, r.pipeline.uniformGroups[slot], nil)
		rp.SetVertexBuffer(0, geo.vertexBuf, 0)
		rp.SetIndexBuffer(geo.indexBuf, gputypes.IndexFormatUint32, 0)
		r.recordMeshes(rp, meshes, pixelsPerPoint)
	}

	rp.End()
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		r.frames.abandon(slot)
		return fmt.Errorf("end encoding: %w", err)
	}

	fence, value := r.frames.fence(slot)
	if err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, value); err != nil {
		r.device.FreeCommandBuffer(cmdBuf)
		r.frames.abandon(slot)
		r.lost = true
		return fmt.Errorf("%w: submit: %v", ErrDeviceLost, err)
	}
	r.frames.markSubmitted(slot)
	// The command buffer stays alive until the GPU retires this
	// submission; free it with the slot's next collect.
	r.recycler.queueFree(recycledCommandBuffer{buf: cmdBuf}, slot)
	return nil
}

// recordMeshes records scissor, bind and draw commands in mesh order.
// Vertex and index bases advance for every mesh, drawn or skipped, so
// offsets stay aligned with the packed buffers.
func (r *Renderer) recordMeshes(rp hal.RenderPassEncoder, meshes []Mesh, pixelsPerPoint float32) {
	vertexBase := int32(0)
	indexBase := uint32(0)
	for i := range meshes {
		mesh := &meshes[i]
		nv := int32(len(mesh.Vertices))
		ni := uint32(len(mesh.Indices))
		if ni == 0 || nv == 0 {
			continue
		}

		x, y, w, h, visible := physicalScissor(mesh.Clip, pixelsPerPoint, r.width, r.height)
		if !visible {
			vertexBase += nv
			indexBase += ni
			continue
		}

		tex, err := r.textures.lookup(mesh.Texture)
		if err != nil {
			slogger().Warn("mesh skipped", "texture", mesh.Texture, "err", err)
			vertexBase += nv
			indexBase += ni
			continue
		}
		group, err := r.bindings.bind(mesh.Texture, tex)
		if err != nil {
			slogger().Warn("mesh skipped", "texture", mesh.Texture, "err", err)
			vertexBase += nv
			indexBase += ni
			continue
		}

		rp.SetScissorRect(x, y, w, h)
		rp.SetBindGroup(1, group, nil)
		rp.DrawIndexed(ni, 1, indexBase, vertexBase, 0)

		vertexBase += nv
		indexBase += ni
	}
}

// physicalScissor converts a clip rectangle from logical points to
// physical pixels, rounding each edge to the nearest pixel, and clamps
// it to the render target. visible is false when the clamped region is
// empty.
func physicalScissor(clip Rect, pixelsPerPoint float32, targetW, targetH uint32) (x, y, w, h uint32, visible bool) {
	minX := clamp(round(clip.MinX*pixelsPerPoint), 0, float32(targetW))
	minY := clamp(round(clip.MinY*pixelsPerPoint), 0, float32(targetH))
	maxX := clamp(round(clip.MaxX*pixelsPerPoint), minX, float32(targetW))
	maxY := clamp(round(clip.MaxY*pixelsPerPoint), minY, float32(targetH))

	x = uint32(minX)
	y = uint32(minY)
	w = uint32(maxX) - x
	h = uint32(maxY) - y
	return x, y, w, h, w > 0 && h > 0
}

func round(v float32) float32 {
	return float32(math.Round(float64(v)))
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Resize records the new render target extent. Cached per-target state
// (the screen-size uniform) is refreshed per slot on the next Paint;
// textures are unaffected.
func (r *Renderer) Resize(width, height uint32) {
	r.width = width
	r.height = height
	slogger().Debug("renderer resized", "target", fmt.Sprintf("%dx%d", width, height))
}

// Teardown waits on every frame slot's fence, then destroys every
// tracked GPU resource. It must be the last call; the renderer is
// unusable afterwards even if the fence wait failed.
func (r *Renderer) Teardown() error {
	if r.closed {
		return nil
	}
	r.closed = true

	waitErr := r.frames.waitAll()
	if waitErr != nil {
		slogger().Warn("teardown fence wait failed, destroying anyway", "err", waitErr)
	}

	r.recycler.drainAll()
	r.bindings.destroyAll()
	r.textures.destroyAll()
	r.geometry.destroyAll()
	r.pipeline.destroy(r.device)
	r.frames.destroy()

	slogger().Info("renderer torn down")
	return waitErr
}
