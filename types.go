package uigpu

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/uigpu/internal/gpu"
)

// Core data types. These are aliases for the internal definitions so the
// GPU side and the public API share one vocabulary, the same way the
// surrounding ecosystem aliases gpucontext types.
type (
	// TextureID is the stable handle under which the GUI collaborator
	// registers a texture.
	TextureID = gpu.TextureID

	// ImageData is a tightly packed premultiplied RGBA8 pixel block.
	ImageData = gpu.ImageData

	// TextureUpdate creates, replaces, or partially updates one texture.
	TextureUpdate = gpu.TextureUpdate

	// TextureDelta is one frame's texture changes: Set entries applied
	// first, then Free entries, in order.
	TextureDelta = gpu.TextureDelta

	// Vertex is one mesh vertex: position and UV in logical points,
	// premultiplied sRGB color.
	Vertex = gpu.Vertex

	// Rect is an axis-aligned rectangle in logical points.
	Rect = gpu.Rect

	// Mesh is one clipped draw primitive. Meshes render in list order.
	Mesh = gpu.Mesh
)

// ImageFromGo converts any Go image into ImageData suitable for a
// TextureUpdate. Non-RGBA images (font coverage masks, paletted images)
// are converted through the standard draw path. The pixel storage is
// shared only when the image is a tightly packed RGBA covering exactly
// its own bounds; a SubImage keeps the parent's larger Pix slice even
// when its stride happens to match, so it is repacked.
func ImageFromGo(img image.Image) ImageData {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || len(rgba.Pix) != 4*b.Dx()*b.Dy() {
		converted := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(converted, converted.Bounds(), img, b.Min, xdraw.Src)
		rgba = converted
	}
	return ImageData{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: rgba.Pix,
	}
}
