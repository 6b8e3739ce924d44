// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu implements the GPU side of the uigpu backend: the live
// texture table, per-slot geometry buffers, texture bind group cache,
// deferred resource recycling, and per-frame command recording over
// gogpu/wgpu's HAL.
package gpu

import "image"

// TextureID is the stable handle under which the GUI collaborator
// registers a texture. The id alone does not identify a GPU resource:
// a texture may be freed and re-registered under the same id, so all
// caches key on (id, generation) pairs.
type TextureID uint64

// ImageData is a tightly packed RGBA8 pixel block (premultiplied alpha,
// 4*Width*Height bytes).
type ImageData struct {
	Width  int
	Height int
	Pixels []byte
}

// TextureUpdate creates, replaces, or partially updates one texture.
type TextureUpdate struct {
	ID    TextureID
	Image ImageData

	// Pos, when non-nil, is the top-left corner of a partial update into
	// an existing texture. The texture must already be live and the
	// region must fit inside it. When nil the update replaces the whole
	// texture (recreating it if the dimensions differ).
	Pos *image.Point
}

// TextureDelta is one frame's worth of texture changes, applied in order:
// all Set entries first, then all Free entries.
type TextureDelta struct {
	Set  []TextureUpdate
	Free []TextureID
}

// IsEmpty reports whether the delta contains no operations.
func (d TextureDelta) IsEmpty() bool {
	return len(d.Set) == 0 && len(d.Free) == 0
}

// Vertex matches the mesh shader's VertexInput: position and UV in
// logical points, color as premultiplied sRGB bytes.
type Vertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]uint8
}

// vertexStride is the packed size of one Vertex.
const vertexStride = 20

// Rect is an axis-aligned rectangle in logical points.
type Rect struct {
	MinX, MinY float32
	MaxX, MaxY float32
}

// Mesh is one clipped draw primitive. Meshes are painted in list order
// (painter's algorithm): later meshes draw over earlier ones wherever
// their clip rectangles overlap.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	Clip     Rect
	Texture  TextureID
}
