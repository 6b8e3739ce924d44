package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Texture errors.
var (
	// ErrOutOfMemory is returned when a GPU allocation fails. The failed
	// operation is skipped; a later delta may retry it.
	ErrOutOfMemory = errors.New("uigpu: GPU allocation failed")

	// ErrTextureNotFound is returned when an update or primitive
	// references an id with no live texture.
	ErrTextureNotFound = errors.New("uigpu: no live texture for id")

	// errBadImageData is returned when pixel data does not match the
	// declared dimensions.
	errBadImageData = errors.New("uigpu: image data size does not match dimensions")

	// errUpdateOutOfBounds is returned when a partial update region does
	// not fit inside the live texture.
	errUpdateOutOfBounds = errors.New("uigpu: partial update exceeds texture bounds")
)

// textureFormat is the only format the GUI collaborator produces.
const textureFormat = gputypes.TextureFormatRGBA8Unorm

// texture is one live GPU texture. There is at most one per id at any
// instant; recreation under the same id produces a new texture with a
// strictly larger generation, never an in-place mutation.
type texture struct {
	tex        hal.Texture
	view       hal.TextureView
	width      uint32
	height     uint32
	generation uint64
}

// textureTable owns every live texture, keyed by the GUI's texture id.
// Freed textures are handed to the recycler tagged with the current frame
// slot; they are never destroyed synchronously because a descriptor from
// a previous frame may still reference them.
type textureTable struct {
	device hal.Device
	queue  hal.Queue
	live   map[TextureID]*texture

	// generations survives free: re-registering a freed id continues the
	// id's generation sequence instead of restarting it, so stale cache
	// keys from before the free can never collide with the new texture.
	generations map[TextureID]uint64
}

func newTextureTable(device hal.Device, queue hal.Queue) *textureTable {
	return &textureTable{
		device:      device,
		queue:       queue,
		live:        make(map[TextureID]*texture),
		generations: make(map[TextureID]uint64),
	}
}

// apply applies one frame's delta in order: Set entries first, then Free
// entries. Per-texture failures are joined and reported together; the
// rest of the delta still applies.
func (t *textureTable) apply(delta TextureDelta, rec *recycler, slot int, bindings *bindingAllocator) error {
	var errs []error
	for _, up := range delta.Set {
		if err := t.set(up, rec, slot, bindings); err != nil {
			slogger().Warn("texture update skipped", "id", up.ID, "err", err)
			errs = append(errs, fmt.Errorf("texture %d: %w", up.ID, err))
		}
	}
	for _, id := range delta.Free {
		if err := t.free(id, rec, slot, bindings); err != nil {
			slogger().Warn("texture free skipped", "id", id, "err", err)
			errs = append(errs, fmt.Errorf("texture %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (t *textureTable) set(up TextureUpdate, rec *recycler, slot int, bindings *bindingAllocator) error {
	img := up.Image
	if img.Width <= 0 || img.Height <= 0 || len(img.Pixels) != 4*img.Width*img.Height {
		return fmt.Errorf("%w: %dx%d with %d bytes", errBadImageData, img.Width, img.Height, len(img.Pixels))
	}

	if up.Pos != nil {
		return t.update(up)
	}

	// Whole-image set. An existing texture is always recreated, even on a
	// size match: the old image may be mid-read by an in-flight frame, so
	// the new data goes into a fresh texture and the old one is recycled.
	if old, ok := t.live[up.ID]; ok {
		bindings.evict(up.ID, old.generation, rec, slot)
		rec.queueFree(recycledTexture{tex: old.tex, view: old.view}, slot)
		delete(t.live, up.ID)
	}

	tex, err := t.create(up.ID, uint32(img.Width), uint32(img.Height))
	if err != nil {
		return err
	}
	t.upload(tex, img, 0, 0)
	t.live[up.ID] = tex
	return nil
}

// update writes a subregion of an existing texture. The generation does
// not change: the image is never resized or reformatted here, so cached
// bind groups remain valid.
func (t *textureTable) update(up TextureUpdate) error {
	tex, ok := t.live[up.ID]
	if !ok {
		return ErrTextureNotFound
	}
	img := up.Image
	x, y := up.Pos.X, up.Pos.Y
	if x < 0 || y < 0 ||
		uint32(x+img.Width) > tex.width || uint32(y+img.Height) > tex.height {
		return fmt.Errorf("%w: region (%d,%d)+%dx%d in %dx%d",
			errUpdateOutOfBounds, x, y, img.Width, img.Height, tex.width, tex.height)
	}
	t.upload(tex, img, uint32(x), uint32(y))
	return nil
}

func (t *textureTable) free(id TextureID, rec *recycler, slot int, bindings *bindingAllocator) error {
	tex, ok := t.live[id]
	if !ok {
		return ErrTextureNotFound
	}
	bindings.evict(id, tex.generation, rec, slot)
	rec.queueFree(recycledTexture{tex: tex.tex, view: tex.view}, slot)
	delete(t.live, id)
	return nil
}

// lookup returns the live texture for an id. Failure is a programming
// error on the collaborator's side (it referenced an id it never
// registered, or one it already freed).
func (t *textureTable) lookup(id TextureID) (*texture, error) {
	tex, ok := t.live[id]
	if !ok {
		return nil, ErrTextureNotFound
	}
	return tex, nil
}

func (t *textureTable) create(id TextureID, width, height uint32) (*texture, error) {
	gen := t.generations[id] + 1

	htex, err := t.device.CreateTexture(&hal.TextureDescriptor{
		Label:         fmt.Sprintf("uigpu_tex_%d_gen_%d", id, gen),
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create %dx%d texture: %v", ErrOutOfMemory, width, height, err)
	}

	view, err := t.device.CreateTextureView(htex, &hal.TextureViewDescriptor{
		Label:         fmt.Sprintf("uigpu_view_%d_gen_%d", id, gen),
		Format:        textureFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		t.device.DestroyTexture(htex)
		return nil, fmt.Errorf("%w: create texture view: %v", ErrOutOfMemory, err)
	}

	t.generations[id] = gen
	return &texture{
		tex:        htex,
		view:       view,
		width:      width,
		height:     height,
		generation: gen,
	}, nil
}

func (t *textureTable) upload(tex *texture, img ImageData, x, y uint32) {
	t.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  tex.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: x, Y: y, Z: 0},
		},
		img.Pixels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Width) * 4,
			RowsPerImage: uint32(img.Height),
		},
		&hal.Extent3D{
			Width:              uint32(img.Width),
			Height:             uint32(img.Height),
			DepthOrArrayLayers: 1,
		},
	)
}

// destroyAll destroys every live texture. Teardown only, after all fences
// have been waited.
func (t *textureTable) destroyAll() {
	for id, tex := range t.live {
		t.device.DestroyTextureView(tex.view)
		t.device.DestroyTexture(tex.tex)
		delete(t.live, id)
	}
}
