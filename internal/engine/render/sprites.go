package render

import (
	"image/color"
	"sort"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/attrib"
	"github.com/Faultbox/quetoo-render/internal/engine/buffer"
	"github.com/Faultbox/quetoo-render/internal/engine/draw"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/program"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
)

// ParticleKind selects how the particle shader expands a sprite.
type ParticleKind int32

const (
	// ParticleSprite is a billboard centered on Origin.
	ParticleSprite ParticleKind = iota
	// ParticleBeam is a billboard stretched from Origin to End.
	ParticleBeam
)

// Particle is one camera facing sprite.
type Particle struct {
	Kind    ParticleKind
	Origin  mgl32.Vec3
	End     mgl32.Vec3
	Color   color.RGBA
	Scale   float32
	Roll    float32
	Texture *texture.Texture
}

// Corona is an additive glow around a light source.
type Corona struct {
	Origin mgl32.Vec3
	Radius float32
	Color  color.RGBA
}

type particleVertex struct {
	Position mgl32.Vec3
	Color    [4]uint8
	Diffuse  mgl32.Vec2
	Scale    float32
	Roll     float32
	End      mgl32.Vec3
	Kind     int32
}

const particleVertexSize = int(unsafe.Sizeof(particleVertex{}))

var particleLayout = []buffer.LayoutEntry{
	{Attribute: gpu.AttribPosition, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribColor, Type: gpu.UnsignedByte, Count: 4, Normalized: true},
	{Attribute: gpu.AttribDiffuseUV, Type: gpu.Float, Count: 2},
	{Attribute: gpu.AttribParticleScale, Type: gpu.Float, Count: 1},
	{Attribute: gpu.AttribParticleRoll, Type: gpu.Float, Count: 1},
	{Attribute: gpu.AttribParticleEnd, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribParticleType, Type: gpu.Int, Count: 1, Integer: true},
	{Attribute: gpu.AttribNone},
}

type coronaVertex struct {
	Position mgl32.Vec3
	Color    [4]uint8
	Diffuse  mgl32.Vec2
}

const coronaVertexSize = int(unsafe.Sizeof(coronaVertex{}))

var coronaLayout = []buffer.LayoutEntry{
	{Attribute: gpu.AttribPosition, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribColor, Type: gpu.UnsignedByte, Count: 4, Normalized: true},
	{Attribute: gpu.AttribDiffuseUV, Type: gpu.Float, Count: 2},
	{Attribute: gpu.AttribNone},
}

// quadCorners are the diffuse coordinates of one sprite, in element order base.
var quadCorners = [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// sprites streams particle and corona quads through dynamic buffers.
type sprites struct {
	particles buffer.Buffer
	coronas   buffer.Buffer
	// quads indexes 4 vertex quads as 2 triangles, shared by both passes.
	quads     buffer.Buffer
	quadCount int

	pverts []particleVertex
	cverts []coronaVertex
	order  []int
}

// ensureQuads grows the shared quad index buffer to hold n quads.
func (s *sprites) ensureQuads(b *buffer.Manager, n int) {
	if n <= s.quadCount {
		return
	}
	count := max(64, s.quadCount)
	for count < n {
		count *= 2
	}
	idx := make([]uint32, 0, count*6)
	for q := 0; q < count; q++ {
		v := uint32(q * 4)
		idx = append(idx, v, v+1, v+2, v, v+2, v+3)
	}
	data := gpu.Bytes(idx)
	if s.quads.Empty() {
		b.CreateElement(&s.quads, gpu.UnsignedInt, gpu.StaticDraw, len(data), data)
	} else {
		b.Upload(&s.quads, len(data), data)
	}
	s.quadCount = count
}

// stream uploads data into b, creating it on first use.
func stream(m *buffer.Manager, b *buffer.Buffer, layout []buffer.LayoutEntry, size int, data []byte) {
	if b.Empty() {
		m.CreateData(b, buffer.Config{
			Interleave: true,
			Layout:     layout,
			StructSize: size,
			Hint:       gpu.StreamDraw,
			Size:       len(data),
			Data:       data,
		})
		return
	}
	m.Upload(b, len(data), data)
}

func (s *sprites) destroy(b *buffer.Manager) {
	b.Destroy(&s.particles)
	b.Destroy(&s.coronas)
	b.Destroy(&s.quads)
	s.quadCount = 0
}

func rgba(c color.RGBA) [4]uint8 { return [4]uint8{c.R, c.G, c.B, c.A} }

func (c *Context) drawSprites(v *View) {
	if len(v.Particles) == 0 && len(v.Coronas) == 0 {
		return
	}
	c.Programs.SetMatrix(program.ModelMatrix, mgl32.Ident4())
	c.state.enable(gpu.Blend, true)
	c.state.enable(gpu.CullFace, false)
	c.state.depthWrite(false)

	c.drawParticles(v.Particles)
	c.drawCoronas(v)

	c.state.depthWrite(true)
	c.state.enable(gpu.CullFace, true)
	c.state.enable(gpu.Blend, false)
}

// drawParticles draws particles grouped by texture, one draw per run.
func (c *Context) drawParticles(parts []Particle) {
	if len(parts) == 0 {
		return
	}
	s := &c.sprites

	s.order = s.order[:0]
	for i := range parts {
		s.order = append(s.order, i)
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		return textureHandle(parts[s.order[i]].Texture) < textureHandle(parts[s.order[j]].Texture)
	})

	s.pverts = s.pverts[:0]
	for _, i := range s.order {
		p := &parts[i]
		for _, uv := range quadCorners {
			s.pverts = append(s.pverts, particleVertex{
				Position: p.Origin,
				Color:    rgba(p.Color),
				Diffuse:  uv,
				Scale:    p.Scale,
				Roll:     p.Roll,
				End:      p.End,
				Kind:     int32(p.Kind),
			})
		}
	}
	s.ensureQuads(c.Buffers, len(parts))
	stream(c.Buffers, &s.particles, particleLayout, particleVertexSize, gpu.Bytes(s.pverts))

	c.state.blend(gpu.SrcAlpha, gpu.OneMinusSrcAlpha)
	c.use(c.progs.particle)
	c.Attribs.Reconcile(&s.particles, attrib.Arrays{Vertex: &s.particles, Element: &s.quads},
		attrib.Flags{Color: true, Diffuse: true, Geometry: gpu.MaskParticle})

	batch := draw.Batch{Mode: gpu.Triangles}
	var cur *texture.Texture
	for q, i := range s.order {
		tex := parts[i].Texture
		if tex == nil {
			tex = c.Textures.Null()
		}
		if q == 0 || tex != cur {
			batch.Flush(c.Draw)
			c.Units.Bind(texture.UnitDiffuse, tex)
			cur = tex
		}
		batch.Add(q*6, 6)
	}
	batch.Flush(c.Draw)
}

func textureHandle(t *texture.Texture) gpu.Handle {
	if t == nil {
		return 0
	}
	return t.Handle
}

// drawCoronas expands coronas into view aligned quads and draws them
// additively in one call.
func (c *Context) drawCoronas(v *View) {
	if len(v.Coronas) == 0 {
		return
	}
	s := &c.sprites
	view := c.Programs.Matrices().Get(program.ViewMatrix)
	right, up := view.Row(0).Vec3(), view.Row(1).Vec3()

	s.cverts = s.cverts[:0]
	for _, cr := range v.Coronas {
		for _, uv := range quadCorners {
			corner := uv.Mul(2).Sub(mgl32.Vec2{1, 1})
			pos := cr.Origin.Add(right.Mul(corner[0] * cr.Radius)).Add(up.Mul(corner[1] * cr.Radius))
			s.cverts = append(s.cverts, coronaVertex{Position: pos, Color: rgba(cr.Color), Diffuse: uv})
		}
	}
	s.ensureQuads(c.Buffers, len(v.Coronas))
	stream(c.Buffers, &s.coronas, coronaLayout, coronaVertexSize, gpu.Bytes(s.cverts))

	c.state.blend(gpu.One, gpu.One)
	c.use(c.progs.corona)
	c.Attribs.Reconcile(&s.coronas, attrib.Arrays{Vertex: &s.coronas, Element: &s.quads},
		attrib.Flags{Color: true, Diffuse: true})
	c.Draw.Draw(gpu.Triangles, 0, len(v.Coronas)*6)
}
