// Package uigpu renders the per-frame output of an immediate-mode GUI
// library on the GPU through gogpu/wgpu.
//
// # Overview
//
// An immediate-mode GUI produces, every frame, an ordered list of clipped
// triangle meshes plus a delta describing texture creations, updates and
// frees. uigpu consumes both and turns them into GPU work: it owns the
// texture table, per-frame geometry buffers, texture bind groups and the
// deferred destruction of resources the GPU may still be reading.
//
// # Quick Start
//
//	backend, err := uigpu.New(uigpu.Config{
//	    Device:         device, // hal.Device from the host application
//	    Queue:          queue,
//	    TargetFormat:   gputypes.TextureFormatBGRA8Unorm,
//	    FramesInFlight: 2,
//	    Width:          1280,
//	    Height:         720,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Teardown()
//
//	// Each frame:
//	backend.UpdateTextures(delta)
//	backend.Paint(slotIndex, targetView, meshes, pixelsPerPoint)
//
// # Synchronization model
//
// One thread drives the backend. Overlap with GPU execution comes from N
// frame slots (Config.FramesInFlight): painting into a slot first waits on
// that slot's fence, then destroys resources queued against the slot, then
// records and submits the new frame. A resource freed during frame k is
// never destroyed before slot k's fence has signaled.
//
// uigpu does not create windows, swapchains or devices; those arrive from
// the host application (see NewFromProvider for gpucontext integration).
package uigpu
