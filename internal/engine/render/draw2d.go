package render

import (
	"image"
	"image/color"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/engine/attrib"
	"github.com/Faultbox/quetoo-render/internal/engine/buffer"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/program"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
)

type vertex2D struct {
	Position mgl32.Vec2
	Diffuse  mgl32.Vec2
	Color    [4]uint8
}

const vertex2DSize = int(unsafe.Sizeof(vertex2D{}))

var layout2D = []buffer.LayoutEntry{
	{Attribute: gpu.AttribPosition, Type: gpu.Float, Count: 2},
	{Attribute: gpu.AttribDiffuseUV, Type: gpu.Float, Count: 2},
	{Attribute: gpu.AttribColor, Type: gpu.UnsignedByte, Count: 4, Normalized: true},
	{Attribute: gpu.AttribNone},
}

// cmd2D is one pending 2D draw.
type cmd2D struct {
	mode  gpu.Primitive
	tex   *texture.Texture
	clip  image.Rectangle
	first int
	count int
}

// surface2D accumulates one frame of UI primitives into a single stream.
type surface2D struct {
	buf   buffer.Buffer
	verts []vertex2D
	cmds  []cmd2D
	clip  image.Rectangle
	size  image.Point
}

func (s *surface2D) reset() {
	s.verts = s.verts[:0]
	s.cmds = s.cmds[:0]
	s.clip = image.Rectangle{}
}

func (s *surface2D) destroy(b *buffer.Manager) { b.Destroy(&s.buf) }

// add appends verts as one command, extending the previous triangle
// command when it shares texture and clip. Line loops are never merged.
func (s *surface2D) add(mode gpu.Primitive, tex *texture.Texture, verts ...vertex2D) {
	first := len(s.verts)
	s.verts = append(s.verts, verts...)
	if n := len(s.cmds); n > 0 && mode == gpu.Triangles {
		last := &s.cmds[n-1]
		if last.mode == gpu.Triangles && last.tex == tex && last.clip == s.clip && last.first+last.count == first {
			last.count += len(verts)
			return
		}
	}
	s.cmds = append(s.cmds, cmd2D{mode: mode, tex: tex, clip: s.clip, first: first, count: len(verts)})
}

func (s *surface2D) quad(tex *texture.Texture, r image.Rectangle, st mgl32.Vec4, c color.RGBA) {
	x0, y0, x1, y1 := float32(r.Min.X), float32(r.Min.Y), float32(r.Max.X), float32(r.Max.Y)
	col := rgba(c)
	a := vertex2D{mgl32.Vec2{x0, y0}, mgl32.Vec2{st[0], st[1]}, col}
	b := vertex2D{mgl32.Vec2{x1, y0}, mgl32.Vec2{st[2], st[1]}, col}
	cc := vertex2D{mgl32.Vec2{x1, y1}, mgl32.Vec2{st[2], st[3]}, col}
	d := vertex2D{mgl32.Vec2{x0, y1}, mgl32.Vec2{st[0], st[3]}, col}
	s.add(gpu.Triangles, tex, a, b, cc, a, cc, d)
}

// fullST addresses a whole texture.
var fullST = mgl32.Vec4{0, 0, 1, 1}

// Begin2D starts collecting UI primitives for a width by height surface
// in pixel coordinates with the origin at the top left.
func (c *Context) Begin2D(width, height int) {
	c.ui.reset()
	c.ui.size = image.Pt(width, height)
}

// SetClip restricts subsequent primitives to r. An empty r clears the clip.
func (c *Context) SetClip(r image.Rectangle) { c.ui.clip = r.Canon() }

// DrawLineLoop draws a closed outline through points.
func (c *Context) DrawLineLoop(points []image.Point, col color.RGBA) {
	if len(points) < 2 {
		return
	}
	verts := make([]vertex2D, len(points))
	for i, p := range points {
		verts[i] = vertex2D{Position: mgl32.Vec2{float32(p.X) + 0.5, float32(p.Y) + 0.5}, Color: rgba(col)}
	}
	c.ui.add(gpu.LineLoop, c.Textures.Null(), verts...)
}

// DrawRect outlines r.
func (c *Context) DrawRect(r image.Rectangle, col color.RGBA) {
	r = r.Canon()
	c.DrawLineLoop([]image.Point{r.Min, {r.Max.X - 1, r.Min.Y}, r.Max.Sub(image.Pt(1, 1)), {r.Min.X, r.Max.Y - 1}}, col)
}

// DrawFill fills r with col.
func (c *Context) DrawFill(r image.Rectangle, col color.RGBA) {
	if r = r.Canon(); r.Empty() {
		return
	}
	c.ui.quad(c.Textures.Null(), r, fullST, col)
}

// DrawImage draws the st region (s0, t0, s1, t1) of tex into r, modulated by col.
func (c *Context) DrawImage(tex *texture.Texture, r image.Rectangle, st mgl32.Vec4, col color.RGBA) {
	if r = r.Canon(); r.Empty() {
		return
	}
	if tex == nil {
		tex = c.Textures.Null()
	}
	c.ui.quad(tex, r, st, col)
}

// RegisterPic adds a UI image to the pics atlas. CompilePics must run
// before it can be drawn.
func (c *Context) RegisterPic(name string, img image.Image) {
	c.pics.Add(name, img)
}

// CompilePics packs every registered pic into the pics atlas texture.
func (c *Context) CompilePics() error {
	return c.pics.Compile(c.Textures, texture.LightmapOptions())
}

// DrawPic draws the named atlas pic at x, y scaled by scale. It reports
// whether the pic exists.
func (c *Context) DrawPic(name string, x, y int, scale float32) bool {
	img := c.pics.Lookup(name)
	if img == nil || img.Texture == nil {
		return false
	}
	if scale <= 0 {
		scale = 1
	}
	w, h := int(float32(img.Width)*scale), int(float32(img.Height)*scale)
	c.ui.quad(img.Texture, image.Rect(x, y, x+w, y+h), img.TexCoords, color.RGBA{255, 255, 255, 255})
	return true
}

// End2D uploads the collected primitives once and draws them in
// submission order. Attribute state is reset on both sides of the pass.
func (c *Context) End2D() {
	s := &c.ui
	if len(s.cmds) == 0 {
		return
	}
	data := gpu.Bytes(s.verts)
	if s.buf.Empty() {
		c.Buffers.CreateData(&s.buf, buffer.Config{
			Interleave: true,
			Layout:     layout2D,
			StructSize: vertex2DSize,
			Hint:       gpu.DynamicDraw,
			Size:       len(data),
			Data:       data,
		})
	} else {
		c.Buffers.Upload(&s.buf, len(data), data)
	}

	c.Attribs.Reset()
	c.state.setViewport(image.Rectangle{Max: s.size})
	c.state.enable(gpu.DepthTest, false)
	c.state.enable(gpu.CullFace, false)
	c.state.enable(gpu.Blend, true)
	c.state.blend(gpu.SrcAlpha, gpu.OneMinusSrcAlpha)

	c.Programs.SetMatrix(program.ProjectionMatrix, mgl32.Ortho(0, float32(s.size.X), float32(s.size.Y), 0, -1, 1))
	c.Programs.SetMatrix(program.ViewMatrix, mgl32.Ident4())
	c.Programs.SetMatrix(program.ModelMatrix, mgl32.Ident4())
	c.use(c.progs.null)
	c.Attribs.Reconcile(s, attrib.Arrays{Vertex: &s.buf}, attrib.Flags{Color: true, Diffuse: true})
	c.Programs.UseTint(white)

	for _, cmd := range s.cmds {
		c.state.clip(c.scissorRect(cmd.clip))
		c.Units.Bind(texture.UnitDiffuse, cmd.tex)
		c.Draw.Draw(cmd.mode, cmd.first, cmd.count)
	}

	c.state.clip(image.Rectangle{})
	c.state.enable(gpu.Blend, false)
	c.state.enable(gpu.CullFace, true)
	c.state.enable(gpu.DepthTest, true)
	c.Attribs.Reset()
	c.log.Debug("2d pass", zap.Int("commands", len(s.cmds)), zap.Int("vertexes", len(s.verts)))
	s.reset()
}

// scissorRect flips a top left origin clip into the bottom left origin
// native scissor space.
func (c *Context) scissorRect(r image.Rectangle) image.Rectangle {
	if r.Empty() {
		return r
	}
	h := c.ui.size.Y
	return image.Rect(r.Min.X, h-r.Max.Y, r.Max.X, h-r.Min.Y)
}
