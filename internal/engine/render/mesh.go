package render

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/attrib"
	"github.com/Faultbox/quetoo-render/internal/engine/buffer"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/program"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
)

var (
	// ErrEmptyMesh is returned for a mesh without frames, vertexes or elements.
	ErrEmptyMesh = errors.New("render: empty mesh")
	// ErrFrameMismatch is returned when mesh frames differ in vertex count.
	ErrFrameMismatch = errors.New("render: mesh frames differ in vertex count")
	// ErrElementRange is returned for an element outside the frame's vertexes.
	ErrElementRange = errors.New("render: mesh element out of range")
)

// MeshVertex is one interleaved mesh vertex of one frame.
type MeshVertex struct {
	Position  mgl32.Vec3
	Normal    mgl32.Vec3
	Tangent   mgl32.Vec3
	Bitangent mgl32.Vec3
	Diffuse   mgl32.Vec2
}

// MeshVertexSize is the byte stride of MeshVertex.
const MeshVertexSize = int(unsafe.Sizeof(MeshVertex{}))

// MeshLayout is the interleave table of MeshVertex.
var MeshLayout = []buffer.LayoutEntry{
	{Attribute: gpu.AttribPosition, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribNormal, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribTangent, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribBitangent, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribDiffuseUV, Type: gpu.Float, Count: 2},
	{Attribute: gpu.AttribNone},
}

// Mesh is an animated model. Frames are stored back to back in one vertex
// buffer, so a frame is selected by byte offset alone.
type Mesh struct {
	Name     string
	Frames   int
	Vertexes int
	Elements int
	Skin     *texture.Texture

	Mins, Maxs mgl32.Vec3

	VertexBuffer  buffer.Buffer
	ElementBuffer buffer.Buffer
	// ShellBuffer holds the same frames with normals welded across
	// coincident positions, so shells do not crack at UV seams. It shares
	// the vertex layout and so the frame offsets.
	ShellBuffer buffer.Buffer
}

// FrameBytes is the byte size of one frame.
func (m *Mesh) FrameBytes() int { return m.Vertexes * MeshVertexSize }

// frameOffset clamps frame into range and returns its byte offset.
func (m *Mesh) frameOffset(frame int) int {
	frame = min(max(frame, 0), m.Frames-1)
	return frame * m.FrameBytes()
}

// NewMesh uploads frames and elements. A nil skin draws with the null texture.
func (c *Context) NewMesh(name string, frames [][]MeshVertex, elements []uint32, skin *texture.Texture) (*Mesh, error) {
	if len(frames) == 0 || len(frames[0]) == 0 || len(elements) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyMesh, name)
	}
	n := len(frames[0])
	for i, f := range frames {
		if len(f) != n {
			return nil, fmt.Errorf("%w: %s frame %d has %d, want %d", ErrFrameMismatch, name, i, len(f), n)
		}
	}
	for _, e := range elements {
		if int(e) >= n {
			return nil, fmt.Errorf("%w: %s element %d of %d vertexes", ErrElementRange, name, e, n)
		}
	}

	m := &Mesh{Name: name, Frames: len(frames), Vertexes: n, Elements: len(elements), Skin: skin}
	all := make([]MeshVertex, 0, n*len(frames))
	shell := make([]MeshVertex, 0, n*len(frames))
	m.Mins, m.Maxs = frames[0][0].Position, frames[0][0].Position
	for _, f := range frames {
		all = append(all, f...)
		shell = append(shell, weldNormals(f)...)
		for _, v := range f {
			for i := 0; i < 3; i++ {
				m.Mins[i] = min(m.Mins[i], v.Position[i])
				m.Maxs[i] = max(m.Maxs[i], v.Position[i])
			}
		}
	}

	upload := func(b *buffer.Buffer, verts []MeshVertex) {
		data := gpu.Bytes(verts)
		c.Buffers.CreateData(b, buffer.Config{
			Interleave: true,
			Layout:     MeshLayout,
			StructSize: MeshVertexSize,
			Hint:       gpu.StaticDraw,
			Size:       len(data),
			Data:       data,
		})
	}
	upload(&m.VertexBuffer, all)
	upload(&m.ShellBuffer, shell)

	if n <= 0xffff {
		idx := make([]uint16, len(elements))
		for i, e := range elements {
			idx[i] = uint16(e)
		}
		data := gpu.Bytes(idx)
		c.Buffers.CreateElement(&m.ElementBuffer, gpu.UnsignedShort, gpu.StaticDraw, len(data), data)
	} else {
		data := gpu.Bytes(elements)
		c.Buffers.CreateElement(&m.ElementBuffer, gpu.UnsignedInt, gpu.StaticDraw, len(data), data)
	}
	return m, nil
}

// weldNormals returns f with every normal replaced by the normalized sum
// of the normals sharing its position.
func weldNormals(f []MeshVertex) []MeshVertex {
	sum := make(map[mgl32.Vec3]mgl32.Vec3, len(f))
	for _, v := range f {
		sum[v.Position] = sum[v.Position].Add(v.Normal)
	}
	out := make([]MeshVertex, len(f))
	for i, v := range f {
		n := sum[v.Position]
		if l := n.Len(); l > 0 {
			v.Normal = n.Mul(1 / l)
		}
		out[i] = v
	}
	return out
}

// FreeMesh releases the buffers of m.
func (c *Context) FreeMesh(m *Mesh) {
	if m == nil {
		return
	}
	c.Buffers.Destroy(&m.VertexBuffer)
	c.Buffers.Destroy(&m.ShellBuffer)
	c.Buffers.Destroy(&m.ElementBuffer)
}

func (c *Context) drawEntities(v *View) {
	for i := range v.Entities {
		e := &v.Entities[i]
		if e.Mesh != nil {
			c.drawMesh(e, v)
		} else {
			c.drawInline(e, v)
		}
	}
	c.Programs.SetMatrix(program.ModelMatrix, mgl32.Ident4())
}

// drawMesh draws e interpolated from OldFrame to Frame, then its shell.
func (c *Context) drawMesh(e *Entity, v *View) {
	m := e.Mesh
	if m.Frames == 0 || m.VertexBuffer.Empty() {
		return
	}
	rc := &c.cfg.Renderer
	arrays := attrib.Arrays{
		Vertex:     &m.VertexBuffer,
		Element:    &m.ElementBuffer,
		Shell:      &m.ShellBuffer,
		Offset:     m.frameOffset(e.OldFrame),
		NextOffset: m.frameOffset(e.Frame),
	}
	lerp := e.Lerp
	if e.Frame == e.OldFrame {
		lerp = 0
	}
	tint := e.Tint
	if tint == (mgl32.Vec4{}) {
		tint = white
	}
	blend := e.Has(EffectBlend) && tint[3] < 1

	c.Programs.SetMatrix(program.ModelMatrix, EntityMatrix(e.Origin, e.Angles, e.Scale))
	c.Units.Enable(texture.UnitLightmap, false)

	if blend {
		c.state.enable(gpu.Blend, true)
		c.state.blend(gpu.SrcAlpha, gpu.OneMinusSrcAlpha)
		c.state.depthWrite(false)
	}

	c.use(c.progs.world)
	c.Attribs.Reconcile(m, arrays, attrib.Flags{
		Lighting:    rc.Lighting && !e.Has(EffectFullbright),
		Bumpmap:     rc.Bumpmap,
		Interpolate: true,
		Diffuse:     true,
	})
	skin := e.Skin
	if skin == nil {
		skin = m.Skin
	}
	if skin == nil {
		skin = c.Textures.Null()
	}
	c.Units.Bind(texture.UnitDiffuse, skin)
	c.Programs.UseMaterial(program.Material{Bump: 1, Specular: 1})
	c.Programs.UseTint(tint)
	c.Programs.UseInterpolation(lerp)
	c.Draw.Draw(gpu.Triangles, 0, m.Elements)

	if rc.Shell && e.Has(EffectShell) {
		c.state.enable(gpu.Blend, true)
		c.state.blend(gpu.SrcAlpha, gpu.One)
		c.state.depthWrite(false)

		c.use(c.progs.shell)
		c.Attribs.Reconcile(m, arrays, attrib.Flags{Shell: true, Interpolate: true, Diffuse: true})
		c.Programs.UseTint(e.Shell)
		c.Programs.UseTime(v.Time)
		c.Programs.UseInterpolation(lerp)
		c.Draw.Draw(gpu.Triangles, 0, m.Elements)
		blend = true
	}

	if blend {
		c.state.depthWrite(true)
		c.state.enable(gpu.Blend, false)
	}
}
