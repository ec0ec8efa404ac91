// Package lightmap packs per-surface lightmap and deluxemap samples into
// layered atlas textures and caches the packing on disk.
package lightmap

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultLuxelSize is the world units per luxel when the map does not say.
const DefaultLuxelSize = 16

// Unplaced is the placement of a block that has not been packed.
const Unplaced = -1

// Block is one surface's lightmap samples and their atlas placement.
type Block struct {
	// Index is the load order, the final tie break of the pack order.
	Index  int
	Width  int
	Height int
	// Samples are RGB luxels, interleaved with RGB directions when the
	// source is directional. Nil yields a neutral block.
	Samples []byte
	// Projection maps world positions to luxel coordinates of the block.
	Projection mgl32.Mat4

	S, T  int
	Atlas *Atlas
}

// NewBlock returns an unplaced block of the given size.
func NewBlock(index, width, height int, samples []byte, projection mgl32.Mat4) *Block {
	return &Block{
		Index:      index,
		Width:      width,
		Height:     height,
		Samples:    samples,
		Projection: projection,
		S:          Unplaced,
		T:          Unplaced,
	}
}

// Placed reports whether the block has an atlas position.
func (b *Block) Placed() bool { return b.S != Unplaced && b.T != Unplaced }

// Dimensions returns the luxel size of a surface with the given texture
// space extents.
func Dimensions(extents mgl32.Vec2, luxel float32) (int, int) {
	if luxel <= 0 {
		luxel = DefaultLuxelSize
	}
	return int(extents[0]/luxel) + 1, int(extents[1]/luxel) + 1
}

// STBounds snaps texture space bounds outward to whole luxels.
func STBounds(mins, maxs mgl32.Vec2, luxel float32) (mgl32.Vec2, mgl32.Vec2) {
	if luxel <= 0 {
		luxel = DefaultLuxelSize
	}
	var lo, hi mgl32.Vec2
	for i := 0; i < 2; i++ {
		lo[i] = float32(math.Floor(float64(mins[i]/luxel))) * luxel
		hi[i] = float32(math.Ceil(float64(maxs[i]/luxel))) * luxel
	}
	return lo, hi
}

// Projection builds the world to luxel matrix of a surface from its texture
// axes (xyz) and offsets (w), its snapped texture space mins and the luxel
// size. Luxel coordinates address texel centers.
func Projection(sAxis, tAxis mgl32.Vec4, stMins mgl32.Vec2, luxel float32) mgl32.Mat4 {
	if luxel <= 0 {
		luxel = DefaultLuxelSize
	}
	inv := 1 / luxel
	return mgl32.Mat4FromRows(
		mgl32.Vec4{sAxis[0] * inv, sAxis[1] * inv, sAxis[2] * inv, (sAxis[3]-stMins[0])*inv + 0.5},
		mgl32.Vec4{tAxis[0] * inv, tAxis[1] * inv, tAxis[2] * inv, (tAxis[3]-stMins[1])*inv + 0.5},
		mgl32.Vec4{},
		mgl32.Vec4{0, 0, 0, 1},
	)
}

// TexCoord returns the normalized atlas coordinate of a world position on
// the block. The block must be placed.
func (b *Block) TexCoord(pos mgl32.Vec3) mgl32.Vec2 {
	st := b.Projection.Mul4x1(pos.Vec4(1))
	w, h := float32(1), float32(1)
	if b.Atlas != nil {
		w, h = float32(b.Atlas.Width), float32(b.Atlas.Height)
	}
	return mgl32.Vec2{(st[0] + float32(b.S)) / w, (st[1] + float32(b.T)) / h}
}

// Luxel returns the block-local luxel coordinate of a world position.
func (b *Block) Luxel(pos mgl32.Vec3) mgl32.Vec2 {
	st := b.Projection.Mul4x1(pos.Vec4(1))
	return mgl32.Vec2{st[0] - 0.5, st[1] - 0.5}
}

// sampleStride is the bytes per luxel of raw samples.
func sampleStride(directional bool) int {
	if directional {
		return 6
	}
	return 3
}
