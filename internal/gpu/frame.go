package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// Frame slot errors.
var (
	// ErrDeviceLost is returned when a fence wait exceeds its bound or
	// the device reports an error during the wait. Fatal: the backend
	// must be torn down and recreated.
	ErrDeviceLost = errors.New("uigpu: device lost")

	// ErrInvalidSlot is returned when a slot index is outside the
	// configured frames-in-flight range.
	ErrInvalidSlot = errors.New("uigpu: frame slot out of range")
)

// fenceTimeout bounds every fence wait. A device that cannot retire a
// frame in this window is treated as lost, not retried.
const fenceTimeout = 5 * time.Second

// slotState tracks where a frame slot is in its lifecycle.
//
// Idle → Recording → Submitted → (fence signaled) → Idle
//
// Buffer reuse and recycler collection for a slot happen only on the
// Submitted→Idle edge, after the fence wait.
type slotState int

const (
	slotIdle slotState = iota
	slotRecording
	slotSubmitted
)

// String returns the string representation of slotState.
func (s slotState) String() string {
	switch s {
	case slotIdle:
		return "Idle"
	case slotRecording:
		return "Recording"
	case slotSubmitted:
		return "Submitted"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// frameSlot is one frame-in-flight: a fence with a monotonically
// increasing timeline value, and the slot's lifecycle state.
type frameSlot struct {
	fence      hal.Fence
	fenceValue uint64
	state      slotState
}

// frameSet owns the N frame slots. The driving thread cycles through
// them with its running frame counter modulo N.
type frameSet struct {
	device hal.Device
	slots  []frameSlot
}

func newFrameSet(device hal.Device, n int) (*frameSet, error) {
	f := &frameSet{
		device: device,
		slots:  make([]frameSlot, n),
	}
	for i := range f.slots {
		fence, err := device.CreateFence()
		if err != nil {
			f.destroy()
			return nil, fmt.Errorf("create fence for slot %d: %w", i, err)
		}
		f.slots[i].fence = fence
	}
	return f, nil
}

// acquire transitions a slot to Recording, first waiting out any prior
// submission and collecting the slot's deferred frees. After acquire
// returns nil, no GPU work references the slot's buffers or its pending
// resources.
func (f *frameSet) acquire(slot int, rec *recycler) error {
	if slot < 0 || slot >= len(f.slots) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidSlot, slot, len(f.slots))
	}
	s := &f.slots[slot]
	if s.state == slotSubmitted {
		ok, err := f.device.Wait(s.fence, s.fenceValue, fenceTimeout)
		if err != nil {
			return fmt.Errorf("%w: slot %d fence wait: %v", ErrDeviceLost, slot, err)
		}
		if !ok {
			return fmt.Errorf("%w: slot %d fence wait timed out after %v", ErrDeviceLost, slot, fenceTimeout)
		}
		s.state = slotIdle
	}
	rec.collect(slot)
	s.state = slotRecording
	return nil
}

// fence returns the slot's fence and the timeline value the next
// submission must signal.
func (f *frameSet) fence(slot int) (hal.Fence, uint64) {
	s := &f.slots[slot]
	return s.fence, s.fenceValue + 1
}

// markSubmitted records a successful submission on the slot.
func (f *frameSet) markSubmitted(slot int) {
	s := &f.slots[slot]
	s.fenceValue++
	s.state = slotSubmitted
}

// abandon returns a Recording slot to Idle after a failed frame. Nothing
// was submitted, so no fence wait is owed.
func (f *frameSet) abandon(slot int) {
	if slot >= 0 && slot < len(f.slots) && f.slots[slot].state == slotRecording {
		f.slots[slot].state = slotIdle
	}
}

// waitAll blocks until every submitted slot's fence has signaled.
// Teardown gate: after waitAll returns nil, no GPU work references any
// backend resource.
func (f *frameSet) waitAll() error {
	for i := range f.slots {
		s := &f.slots[i]
		if s.state != slotSubmitted {
			continue
		}
		ok, err := f.device.Wait(s.fence, s.fenceValue, fenceTimeout)
		if err != nil {
			return fmt.Errorf("%w: slot %d fence wait: %v", ErrDeviceLost, i, err)
		}
		if !ok {
			return fmt.Errorf("%w: slot %d fence wait timed out after %v", ErrDeviceLost, i, fenceTimeout)
		}
		s.state = slotIdle
	}
	return nil
}

// destroy releases every slot's fence.
func (f *frameSet) destroy() {
	for i := range f.slots {
		if f.slots[i].fence != nil {
			f.device.DestroyFence(f.slots[i].fence)
			f.slots[i].fence = nil
		}
	}
}

// count returns the number of frame slots.
func (f *frameSet) count() int { return len(f.slots) }
