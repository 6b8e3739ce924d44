// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package uigpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/uigpu/internal/gpu"
)

// Config holds everything the backend needs from the host application.
// uigpu RECEIVES the device and queue from the host, it does not create
// them; this keeps GPU resources shared across the stack.
type Config struct {
	// Device is the HAL device all resources are created on.
	Device hal.Device

	// Queue is the submission queue for uploads and frame commands.
	Queue hal.Queue

	// TargetFormat is the color format of the render target views passed
	// to Paint (typically the swapchain format).
	TargetFormat gputypes.TextureFormat

	// FramesInFlight is the number of frame slots, commonly 2 or 3.
	FramesInFlight int

	// Width and Height are the render target extent in physical pixels.
	Width  uint32
	Height uint32
}

// Backend renders an immediate-mode GUI's frame output on the GPU.
//
// Backend is NOT safe for concurrent use: one thread drives the whole
// frame cycle, matching the single-threaded submission model of the GUI
// libraries it serves.
type Backend struct {
	renderer *gpu.Renderer
	closed   bool
}

// New creates a Backend from an explicit device and queue.
func New(cfg Config) (*Backend, error) {
	if cfg.Device == nil || cfg.Queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrInvalidConfig)
	}
	if cfg.FramesInFlight < 1 {
		return nil, fmt.Errorf("%w: frames in flight = %d", ErrInvalidConfig, cfg.FramesInFlight)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: target extent %dx%d", ErrInvalidConfig, cfg.Width, cfg.Height)
	}

	renderer, err := gpu.NewRenderer(cfg.Device, cfg.Queue, cfg.TargetFormat, cfg.FramesInFlight, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	return &Backend{renderer: renderer}, nil
}

// NewFromProvider creates a Backend from a gpucontext device provider,
// e.g. gogpu.App's GPUContextProvider. The provider must also expose the
// underlying HAL handles via HalDevice() any and HalQueue() any.
func NewFromProvider(provider gpucontext.DeviceProvider, cfg Config) (*Backend, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrInvalidConfig)
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", ErrInvalidConfig)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", ErrInvalidConfig)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", ErrInvalidConfig)
	}
	cfg.Device = device
	cfg.Queue = queue
	return New(cfg)
}

// UpdateTextures applies one frame's texture delta before Paint.
// Failures are per-texture: the returned error joins them and the rest
// of the delta still applies. Freed textures are destroyed only after
// the GPU provably stopped using them.
func (b *Backend) UpdateTextures(delta TextureDelta) error {
	if b.closed {
		return ErrBackendClosed
	}
	return b.renderer.UpdateTextures(delta)
}

// Paint renders one frame's meshes into target on the given frame slot
// and submits the GPU work. slot is the caller's frame index modulo
// FramesInFlight (typically the swapchain image index). pixelsPerPoint
// converts the meshes' logical coordinates to physical pixels.
//
// Per-mesh failures skip only that mesh. ErrDeviceLost is fatal: tear
// the backend down and recreate it.
func (b *Backend) Paint(slot uint32, target hal.TextureView, meshes []Mesh, pixelsPerPoint float32) error {
	if b.closed {
		return ErrBackendClosed
	}
	return b.renderer.Paint(int(slot), target, meshes, pixelsPerPoint)
}

// Resize records a new render target extent after a swapchain resize.
// Textures and buffered geometry are unaffected.
func (b *Backend) Resize(width, height uint32) {
	if b.closed {
		return
	}
	b.renderer.Resize(width, height)
}

// Teardown waits for all in-flight frames and destroys every tracked GPU
// resource. It must be the last call. Teardown is idempotent.
func (b *Backend) Teardown() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.renderer.Teardown()
}
