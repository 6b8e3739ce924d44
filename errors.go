package uigpu

import (
	"errors"

	"github.com/gogpu/uigpu/internal/gpu"
)

// Errors returned by Backend operations. Resource-level failures
// (ErrOutOfMemory, ErrTextureNotFound) are isolated to the affected texture
// or primitive and never abort the rest of a frame; ErrDeviceLost is fatal
// and the backend must be torn down and recreated.
var (
	// ErrOutOfMemory is returned when a GPU allocation fails during texture
	// upload or buffer growth. The affected operation is skipped and may be
	// retried on a later frame.
	ErrOutOfMemory = gpu.ErrOutOfMemory

	// ErrTextureNotFound is returned when a primitive or texture update
	// references an id with no live texture.
	ErrTextureNotFound = gpu.ErrTextureNotFound

	// ErrDeviceLost is returned when a frame-slot fence wait exceeds its
	// bound or the device reports loss. No further operations are valid.
	ErrDeviceLost = gpu.ErrDeviceLost

	// ErrInvalidSlot is returned by Paint when the slot index is outside
	// the configured frames-in-flight range.
	ErrInvalidSlot = gpu.ErrInvalidSlot

	// ErrBackendClosed is returned when operating on a backend after
	// Teardown.
	ErrBackendClosed = errors.New("uigpu: backend is closed")

	// ErrInvalidConfig is returned by New when the configuration is
	// incomplete or inconsistent.
	ErrInvalidConfig = errors.New("uigpu: invalid config")
)
