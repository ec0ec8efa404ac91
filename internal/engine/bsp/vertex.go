package bsp

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/buffer"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

// Vertex is one interleaved world vertex. It is comparable, so identical
// vertices collapse to one map key.
type Vertex struct {
	Position  mgl32.Vec3
	Normal    mgl32.Vec3
	Tangent   mgl32.Vec3
	Bitangent mgl32.Vec3
	Diffuse   mgl32.Vec2
	Lightmap  mgl32.Vec2
}

// VertexSize is the byte stride of Vertex.
const VertexSize = int(unsafe.Sizeof(Vertex{}))

// VertexLayout is the interleave table of Vertex.
var VertexLayout = []buffer.LayoutEntry{
	{Attribute: gpu.AttribPosition, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribNormal, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribTangent, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribBitangent, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribDiffuseUV, Type: gpu.Float, Count: 2},
	{Attribute: gpu.AttribLightmapUV, Type: gpu.Float, Count: 2},
	{Attribute: gpu.AttribNone},
}

// dedup assigns canonical indices to vertices by full value equality.
type dedup struct {
	index    map[Vertex]uint32
	vertexes []Vertex
	seen     int
}

func newDedup(capacity int) *dedup {
	return &dedup{
		index:    make(map[Vertex]uint32, capacity),
		vertexes: make([]Vertex, 0, capacity),
	}
}

// add returns the canonical index of v.
func (d *dedup) add(v Vertex) uint32 {
	d.seen++
	if i, ok := d.index[v]; ok {
		return i
	}
	i := uint32(len(d.vertexes))
	d.index[v] = i
	d.vertexes = append(d.vertexes, v)
	return i
}

// shrink returns the unique vertexes, trimmed to their exact count.
func (d *dedup) shrink() []Vertex {
	out := make([]Vertex, len(d.vertexes))
	copy(out, d.vertexes)
	return out
}
