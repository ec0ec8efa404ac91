package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/config"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu/gputest"
	"github.com/Faultbox/quetoo-render/internal/engine/lightmap"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
	"github.com/Faultbox/quetoo-render/pkg/formats"
)

func newTestContext(t *testing.T) (*Context, *gputest.Recorder) {
	t.Helper()
	dev := gputest.New(4096)
	cfg := config.Default()
	cfg.Data.BasePath = t.TempDir()
	cfg.Renderer.CacheDir = ""
	cfg.Screenshot.Dir = t.TempDir()

	c, err := New(dev, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, dev
}

// testMap assembles axial floor quads on z=0.
type testMap struct {
	b     *formats.BSP
	world int
}

func newTestMap() *testMap {
	return &testMap{b: &formats.BSP{
		Version: formats.BSPVersionQuake2,
		Planes:  []formats.BSPPlane{{Normal: mgl32.Vec3{0, 0, 1}}},
		Edges:   []formats.BSPEdge{{}},
		Leafs:   []formats.BSPLeaf{{Contents: 1}, {}},
		Nodes:   []formats.BSPNode{{Children: [2]int32{-1, -2}}},
	}}
}

func (tm *testMap) texinfo(name string, flags int32) int16 {
	var tex formats.BSPTexinfo
	copy(tex.Texture[:], name)
	tex.Vecs = [2]mgl32.Vec4{{1, 0, 0, 0}, {0, 1, 0, 0}}
	tex.Flags = flags
	tm.b.Texinfos = append(tm.b.Texinfos, tex)
	return int16(len(tm.b.Texinfos) - 1)
}

func (tm *testMap) quad(x0, y0, x1, y1 float32, texinfo int16) int {
	b := tm.b
	base := uint16(len(b.Vertexes))
	b.Vertexes = append(b.Vertexes, mgl32.Vec3{x0, y0, 0}, mgl32.Vec3{x1, y0, 0}, mgl32.Vec3{x1, y1, 0}, mgl32.Vec3{x0, y1, 0})
	firstEdge := int32(len(b.FaceEdges))
	for i := uint16(0); i < 4; i++ {
		b.Edges = append(b.Edges, formats.BSPEdge{V: [2]uint16{base + i, base + (i+1)%4}})
		b.FaceEdges = append(b.FaceEdges, int32(len(b.Edges)-1))
	}
	b.Faces = append(b.Faces, formats.BSPFace{FirstEdge: firstEdge, NumEdges: 4, Texinfo: texinfo, LightOffset: -1})
	return len(b.Faces) - 1
}

// finish puts every face so far in the world model and its open leaf.
// Faces added by submodel follow.
func (tm *testMap) finish() *formats.BSP {
	b := tm.b
	tm.world = len(b.Faces)
	leaf := &b.Leafs[1]
	leaf.NumLeafFaces = uint16(tm.world)
	for i := 0; i < tm.world; i++ {
		b.LeafFaces = append(b.LeafFaces, uint16(i))
	}
	b.Models = append([]formats.BSPModel{{Maxs: mgl32.Vec3{256, 256, 0}, NumFaces: int32(tm.world)}}, b.Models...)
	return b
}

// submodel adds an inline model of one quad. Call after finish.
func (tm *testMap) submodel(texinfo int16) {
	f := tm.quad(0, 0, 32, 32, texinfo)
	tm.b.Models = append(tm.b.Models, formats.BSPModel{Maxs: mgl32.Vec3{32, 32, 0}, FirstFace: int32(f), NumFaces: 1})
}

func loadTestWorld(t *testing.T, c *Context, data *formats.BSP) {
	t.Helper()
	if err := c.LoadWorld(lightmap.Source{Name: "test"}, data); err != nil {
		t.Fatalf("LoadWorld failed: %v", err)
	}
}

func testView() *View {
	return &View{
		Origin:   mgl32.Vec3{32, 32, 64},
		Angles:   mgl32.Vec3{90, 0, 0},
		Viewport: image.Rect(0, 0, 640, 480),
	}
}

func TestNewLoadsPrograms(t *testing.T) {
	c, dev := newTestContext(t)
	if n := len(c.Programs.Programs()); n != 7 {
		t.Errorf("expected 7 programs, got %d", n)
	}
	if len(dev.Programs) != 7 {
		t.Errorf("expected 7 native programs, got %d", len(dev.Programs))
	}
	if !dev.Caps[gpu.DepthTest] || !dev.Caps[gpu.CullFace] {
		t.Error("expected depth test and culling enabled")
	}
}

func TestNewFailsOnCompile(t *testing.T) {
	dev := gputest.New(4096)
	dev.CompileErr = errors.New("link failed")
	if _, err := New(dev, config.Default(), zap.NewNop()); err == nil {
		t.Fatal("expected error for a failed compile")
	}
	if len(dev.Programs) != 0 {
		t.Errorf("expected loaded programs to be released, got %d", len(dev.Programs))
	}
}

func TestNewAppliesTextureLimit(t *testing.T) {
	dev := gputest.New(4096)
	cfg := config.Default()
	cfg.Data.BasePath = t.TempDir()
	cfg.Renderer.MaxTextureSize = 1024
	c, err := New(dev, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.Textures.MaxSize() != 1024 {
		t.Errorf("expected max texture size 1024, got %d", c.Textures.MaxSize())
	}
}

func TestDrawWorldBatchesSurfaces(t *testing.T) {
	c, dev := newTestContext(t)
	tm := newTestMap()
	ti := tm.texinfo("floor", 0)
	tm.quad(0, 0, 64, 64, ti)
	tm.quad(64, 0, 128, 64, ti)
	loadTestWorld(t, c, tm.finish())

	dev.Reset()
	c.BeginFrame()
	c.DrawView(testView())

	if len(dev.Draws) != 1 {
		t.Fatalf("expected 1 draw, got %d", len(dev.Draws))
	}
	d := dev.Draws[0]
	if !d.Indexed || d.Count != 12 || d.Offset != 0 || d.Type != gpu.UnsignedInt {
		t.Errorf("expected one indexed draw of 12 elements, got %+v", d)
	}
	if c.Stats.Surfaces != 2 {
		t.Errorf("expected 2 surfaces, got %d", c.Stats.Surfaces)
	}
	if c.Stats.DrawElements != 1 || c.Stats.Primitives != 4 {
		t.Errorf("expected 1 draw of 4 triangles, got %d draws, %d primitives", c.Stats.DrawElements, c.Stats.Primitives)
	}
	if c.Attribs.Model() != nil {
		t.Error("expected attribute state reset after the view")
	}
}

func TestDrawWorldSplitsByMaterial(t *testing.T) {
	c, dev := newTestContext(t)
	tm := newTestMap()
	a := tm.texinfo("floor", 0)
	b := tm.texinfo("wall", 0)
	tm.quad(0, 0, 64, 64, a)
	tm.quad(64, 0, 128, 64, b)
	tm.quad(128, 0, 192, 64, a)
	loadTestWorld(t, c, tm.finish())

	dev.Reset()
	c.DrawView(testView())

	if len(dev.Draws) != 3 {
		t.Fatalf("expected 3 draws, got %d", len(dev.Draws))
	}
	// surfaces are sorted by material: floor, floor, wall
	want := []struct{ offset, count int }{{0, 6}, {48, 6}, {24, 6}}
	for i, w := range want {
		if dev.Draws[i].Offset != w.offset || dev.Draws[i].Count != w.count {
			t.Errorf("draw %d: expected offset %d count %d, got %+v", i, w.offset, w.count, dev.Draws[i])
		}
	}
}

func TestDrawWorldBucketOrder(t *testing.T) {
	c, dev := newTestContext(t)
	tm := newTestMap()
	opaque := tm.texinfo("floor", 0)
	warp := tm.texinfo("water", formats.SurfWarp)
	glass := tm.texinfo("glass", formats.SurfBlend33)
	sky := tm.texinfo("sky", formats.SurfSky)
	tm.quad(0, 0, 64, 64, glass)
	tm.quad(64, 0, 128, 64, warp)
	tm.quad(128, 0, 192, 64, opaque)
	tm.quad(192, 0, 256, 64, sky)
	loadTestWorld(t, c, tm.finish())

	dev.Reset()
	c.DrawView(testView())

	if len(dev.Draws) != 3 {
		t.Fatalf("expected 3 draws without sky, got %d", len(dev.Draws))
	}
	order := []int{2, 1, 0}
	for i, s := range order {
		surf := &c.World.Surfaces[s]
		if dev.Draws[i].Offset != surf.FirstElement*4 {
			t.Errorf("draw %d: expected surface %d at offset %d, got %d", i, s, surf.FirstElement*4, dev.Draws[i].Offset)
		}
	}
	if dev.Caps[gpu.Blend] {
		t.Error("expected blending disabled after the translucent pass")
	}
	if c.Stats.Buckets != 3 {
		t.Errorf("expected 3 buckets, got %d", c.Stats.Buckets)
	}
}

func TestSecondFrameReusesState(t *testing.T) {
	c, dev := newTestContext(t)
	tm := newTestMap()
	ti := tm.texinfo("floor", 0)
	tm.quad(0, 0, 64, 64, ti)
	loadTestWorld(t, c, tm.finish())

	c.BeginFrame()
	c.DrawView(testView())
	dev.Reset()

	c.BeginFrame()
	c.DrawView(testView())

	for _, call := range []string{"UseProgram", "BindTexture", "UniformMatrix4", "SetCapability", "Viewport"} {
		if n := dev.Count(call); n != 0 {
			t.Errorf("expected no %s on an identical frame, got %d", call, n)
		}
	}
	if n := c.Stats.StateChanges[gpu.StateProgram]; n != 0 {
		t.Errorf("expected no program changes, got %d", n)
	}
	if len(dev.Draws) != 1 {
		t.Errorf("expected 1 draw, got %d", len(dev.Draws))
	}
}

func TestDrawInlineModel(t *testing.T) {
	c, dev := newTestContext(t)
	tm := newTestMap()
	ti := tm.texinfo("floor", 0)
	tm.quad(0, 0, 64, 64, ti)
	tm.finish()
	door := tm.texinfo("door", 0)
	tm.submodel(door)
	loadTestWorld(t, c, tm.b)

	v := testView()
	v.Entities = []Entity{{Submodel: 1, Origin: mgl32.Vec3{0, 0, 16}}, {Submodel: 9}}
	dev.Reset()
	c.DrawView(v)

	if len(dev.Draws) != 2 {
		t.Fatalf("expected world and door draws, got %d", len(dev.Draws))
	}
	door0 := &c.World.Surfaces[1]
	if dev.Draws[1].Offset != door0.FirstElement*4 || dev.Draws[1].Count != 6 {
		t.Errorf("expected the door surface, got %+v", dev.Draws[1])
	}
}

func TestStainsMarkAndDraw(t *testing.T) {
	c, dev := newTestContext(t)
	tm := newTestMap()
	ti := tm.texinfo("floor", 0)
	tm.quad(0, 0, 64, 64, ti)
	loadTestWorld(t, c, tm.finish())

	if len(c.stains) != 1 {
		t.Fatalf("expected one stainmap, got %d", len(c.stains))
	}
	stain := c.stains[0].Texture.Handle

	v := testView()
	v.Stains = []Stain{{Origin: mgl32.Vec3{32, 32, 0}, Radius: 32, Color: color.RGBA{R: 128, A: 255}}}
	dev.Reset()
	c.DrawView(v)

	if !c.stained {
		t.Fatal("expected the stain to land")
	}
	if dev.Textures[stain].SubUploads != 1 {
		t.Errorf("expected one stainmap upload, got %d", dev.Textures[stain].SubUploads)
	}
	if len(dev.Draws) != 2 {
		t.Errorf("expected world and stain draws, got %d", len(dev.Draws))
	}

	c.ClearStains()
	if c.stained {
		t.Error("expected stains cleared")
	}
}

func TestStainOutOfReach(t *testing.T) {
	c, _ := newTestContext(t)
	tm := newTestMap()
	tm.quad(0, 0, 64, 64, tm.texinfo("floor", 0))
	loadTestWorld(t, c, tm.finish())

	c.applyStains([]Stain{{Origin: mgl32.Vec3{500, 500, 0}, Radius: 16, Color: color.RGBA{A: 255}}})
	if c.stained {
		t.Error("expected a distant stain to change nothing")
	}
}

func TestViewMatrix(t *testing.T) {
	tests := []struct {
		name   string
		origin mgl32.Vec3
		angles mgl32.Vec3
		point  mgl32.Vec3
		want   mgl32.Vec3
	}{
		{"forward", mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{"left", mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{-1, 0, 0}},
		{"up", mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{"yaw", mgl32.Vec3{}, mgl32.Vec3{0, 90, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, -1}},
		{"origin", mgl32.Vec3{10, 0, 0}, mgl32.Vec3{}, mgl32.Vec3{20, 0, 0}, mgl32.Vec3{0, 0, -10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ViewMatrix(tt.origin, tt.angles).Mul4x1(tt.point.Vec4(1)).Vec3()
			if !got.ApproxEqualThreshold(tt.want, 1e-5) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEntityMatrix(t *testing.T) {
	m := EntityMatrix(mgl32.Vec3{0, 0, 8}, mgl32.Vec3{0, 90, 0}, 2)
	got := m.Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	if want := (mgl32.Vec3{0, 2, 8}); !got.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestProjectionAspect(t *testing.T) {
	v := &View{FOV: 90, Viewport: image.Rect(0, 0, 800, 400)}
	want := mgl32.Perspective(mgl32.DegToRad(90), 2, NearZ, FarZ)
	if !v.ProjectionMatrix().ApproxEqual(want) {
		t.Errorf("expected %v, got %v", want, v.ProjectionMatrix())
	}
}

func testFrames(frames int) [][]MeshVertex {
	out := make([][]MeshVertex, frames)
	for f := range out {
		z := float32(f)
		out[f] = []MeshVertex{
			{Position: mgl32.Vec3{0, 0, z}, Normal: mgl32.Vec3{0, 0, 1}},
			{Position: mgl32.Vec3{8, 0, z}, Normal: mgl32.Vec3{0, 0, 1}},
			{Position: mgl32.Vec3{0, 8, z}, Normal: mgl32.Vec3{0, 0, 1}},
		}
	}
	return out
}

func TestMeshInterpolation(t *testing.T) {
	c, dev := newTestContext(t)
	m, err := c.NewMesh("tri", testFrames(3), []uint32{0, 1, 2}, nil)
	if err != nil {
		t.Fatalf("NewMesh failed: %v", err)
	}
	if MeshVertexSize != 56 {
		t.Errorf("expected 56 byte mesh vertex, got %d", MeshVertexSize)
	}

	v := testView()
	v.Entities = []Entity{{Mesh: m, OldFrame: 1, Frame: 2, Lerp: 0.25}}
	dev.Reset()
	c.DrawView(v)

	if got := dev.Pointers[uint32(gpu.AttribPosition)].Offset; got != m.FrameBytes() {
		t.Errorf("expected position at frame 1 offset %d, got %d", m.FrameBytes(), got)
	}
	if got := dev.Pointers[uint32(gpu.AttribNextPosition)].Offset; got != 2*m.FrameBytes() {
		t.Errorf("expected next position at frame 2 offset %d, got %d", 2*m.FrameBytes(), got)
	}
	if len(dev.Draws) != 1 || dev.Draws[0].Count != 3 || dev.Draws[0].Type != gpu.UnsignedShort {
		t.Errorf("expected one 3 element ushort draw, got %+v", dev.Draws)
	}

	c.FreeMesh(m)
	if c.Buffers.Live() != 0 {
		t.Errorf("expected no live buffers, got %d", c.Buffers.Live())
	}
}

func TestMeshFrameClamp(t *testing.T) {
	m := &Mesh{Frames: 2, Vertexes: 3}
	tests := []struct{ frame, want int }{
		{-1, 0},
		{0, 0},
		{1, 3 * MeshVertexSize},
		{7, 3 * MeshVertexSize},
	}
	for _, tt := range tests {
		if got := m.frameOffset(tt.frame); got != tt.want {
			t.Errorf("frame %d: expected %d, got %d", tt.frame, tt.want, got)
		}
	}
}

func TestMeshShell(t *testing.T) {
	c, dev := newTestContext(t)
	m, err := c.NewMesh("tri", testFrames(1), []uint32{0, 1, 2}, nil)
	if err != nil {
		t.Fatalf("NewMesh failed: %v", err)
	}

	v := testView()
	v.Entities = []Entity{{Mesh: m, Effects: EffectShell, Shell: mgl32.Vec4{1, 0, 0, 0.5}}}
	dev.Reset()
	c.DrawView(v)

	if len(dev.Draws) != 2 {
		t.Fatalf("expected mesh and shell draws, got %d", len(dev.Draws))
	}
	if got := dev.Pointers[uint32(gpu.AttribPosition)].Buffer; got != m.ShellBuffer.Handle {
		t.Errorf("expected shell positions from the shell buffer, got buffer %d", got)
	}
	if got := dev.Pointers[uint32(gpu.AttribDiffuseUV)].Buffer; got != m.VertexBuffer.Handle {
		t.Errorf("expected shell uvs from the mesh buffer, got buffer %d", got)
	}
	if dev.Caps[gpu.Blend] {
		t.Error("expected blending disabled after the shell")
	}
}

func TestNewMeshErrors(t *testing.T) {
	c, _ := newTestContext(t)
	short := testFrames(2)
	short[1] = short[1][:2]

	tests := []struct {
		name     string
		frames   [][]MeshVertex
		elements []uint32
		want     error
	}{
		{"no frames", nil, []uint32{0}, ErrEmptyMesh},
		{"no elements", testFrames(1), nil, ErrEmptyMesh},
		{"frame mismatch", short, []uint32{0, 1, 2}, ErrFrameMismatch},
		{"element range", testFrames(1), []uint32{0, 1, 3}, ErrElementRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.NewMesh(tt.name, tt.frames, tt.elements, nil); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if c.Buffers.Live() != 0 {
		t.Errorf("expected failed meshes to allocate nothing, got %d buffers", c.Buffers.Live())
	}
}

func TestWeldNormals(t *testing.T) {
	f := []MeshVertex{
		{Position: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec3{1, 0, 0}, Normal: mgl32.Vec3{0, 0, 1}},
	}
	out := weldNormals(f)
	if !out[0].Normal.ApproxEqual(out[1].Normal) {
		t.Errorf("expected coincident normals welded, got %v and %v", out[0].Normal, out[1].Normal)
	}
	if l := out[0].Normal.Len(); l < 0.999 || l > 1.001 {
		t.Errorf("expected unit normal, got length %v", l)
	}
	if out[2].Normal != f[2].Normal {
		t.Errorf("expected lone normal unchanged, got %v", out[2].Normal)
	}
}

func TestParticlesGroupedByTexture(t *testing.T) {
	c, dev := newTestContext(t)
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	a, _ := c.Textures.Upload2D("a", img, texture.DefaultOptions())
	b, _ := c.Textures.Upload2D("b", img, texture.DefaultOptions())

	v := testView()
	v.Particles = []Particle{
		{Origin: mgl32.Vec3{0, 0, 0}, Scale: 1, Texture: a},
		{Origin: mgl32.Vec3{1, 0, 0}, Scale: 1, Texture: b},
		{Origin: mgl32.Vec3{2, 0, 0}, Scale: 1, Texture: a, Kind: ParticleBeam},
	}
	dev.Reset()
	c.DrawView(v)

	if len(dev.Draws) != 2 {
		t.Fatalf("expected 2 draws, got %d", len(dev.Draws))
	}
	if dev.Draws[0].Count != 12 || dev.Draws[0].Offset != 0 {
		t.Errorf("expected two particles first, got %+v", dev.Draws[0])
	}
	if dev.Draws[1].Count != 6 || dev.Draws[1].Offset != 48 {
		t.Errorf("expected one particle at offset 48, got %+v", dev.Draws[1])
	}
	if p := dev.Pointers[uint32(gpu.AttribParticleType)]; !p.Integer || p.Offset != 44 {
		t.Errorf("expected integer type attribute at 44, got %+v", p)
	}
	if particleVertexSize != 48 {
		t.Errorf("expected 48 byte particle vertex, got %d", particleVertexSize)
	}
}

func TestCoronas(t *testing.T) {
	c, dev := newTestContext(t)
	v := testView()
	v.Coronas = []Corona{
		{Origin: mgl32.Vec3{0, 0, 32}, Radius: 8, Color: color.RGBA{255, 255, 255, 255}},
		{Origin: mgl32.Vec3{0, 0, 64}, Radius: 8, Color: color.RGBA{255, 0, 0, 255}},
	}
	dev.Reset()
	c.DrawView(v)

	if len(dev.Draws) != 1 || dev.Draws[0].Count != 12 {
		t.Fatalf("expected one 12 element draw, got %+v", dev.Draws)
	}
	if n := len(c.sprites.cverts); n != 8 {
		t.Errorf("expected 8 corona vertexes, got %d", n)
	}
}

func TestDraw2DBatching(t *testing.T) {
	c, dev := newTestContext(t)
	dev.Reset()

	c.Begin2D(640, 480)
	c.DrawFill(image.Rect(0, 0, 10, 10), color.RGBA{255, 0, 0, 255})
	c.DrawFill(image.Rect(10, 0, 20, 10), color.RGBA{0, 255, 0, 255})
	c.DrawRect(image.Rect(0, 0, 20, 20), color.RGBA{255, 255, 255, 255})
	c.DrawRect(image.Rect(0, 0, 30, 30), color.RGBA{255, 255, 255, 255})
	c.SetClip(image.Rect(0, 0, 100, 100))
	c.DrawFill(image.Rect(20, 0, 30, 10), color.RGBA{0, 0, 255, 255})
	c.DrawFill(image.Rect(5, 5, 5, 20), color.RGBA{0, 0, 255, 255})
	c.End2D()

	want := []struct {
		mode  gpu.Primitive
		first int
		count int
	}{
		{gpu.Triangles, 0, 12},
		{gpu.LineLoop, 12, 4},
		{gpu.LineLoop, 16, 4},
		{gpu.Triangles, 20, 6},
	}
	if len(dev.Draws) != len(want) {
		t.Fatalf("expected %d draws, got %d", len(want), len(dev.Draws))
	}
	for i, w := range want {
		d := dev.Draws[i]
		if d.Indexed || d.Mode != w.mode || d.First != w.first || d.Count != w.count {
			t.Errorf("draw %d: expected %+v, got %+v", i, w, d)
		}
	}
	if n := dev.Count("Scissor"); n != 1 {
		t.Errorf("expected one scissor rect, got %d", n)
	}
	if dev.Caps[gpu.ScissorTest] {
		t.Error("expected scissoring disabled after the 2D pass")
	}
	if c.Attribs.Model() != nil {
		t.Error("expected attribute state reset after the 2D pass")
	}
	if len(c.ui.cmds) != 0 {
		t.Error("expected pending 2D commands cleared")
	}
	if vertex2DSize != 20 {
		t.Errorf("expected 20 byte 2D vertex, got %d", vertex2DSize)
	}
}

func TestEnd2DWithoutPrimitives(t *testing.T) {
	c, dev := newTestContext(t)
	dev.Reset()
	c.Begin2D(640, 480)
	c.End2D()
	if dev.Total() != 0 {
		t.Errorf("expected no native calls, got %v", dev.Calls)
	}
}

func TestScissorRect(t *testing.T) {
	c, _ := newTestContext(t)
	c.Begin2D(640, 480)
	got := c.scissorRect(image.Rect(10, 20, 110, 70))
	if want := image.Rect(10, 410, 110, 460); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDrawPic(t *testing.T) {
	c, dev := newTestContext(t)
	c.RegisterPic("cursor", image.NewRGBA(image.Rect(0, 0, 16, 16)))
	c.RegisterPic("logo", image.NewRGBA(image.Rect(0, 0, 64, 32)))
	if err := c.CompilePics(); err != nil {
		t.Fatalf("CompilePics failed: %v", err)
	}

	c.Begin2D(640, 480)
	if !c.DrawPic("cursor", 100, 100, 2) {
		t.Error("expected cursor to draw")
	}
	if c.DrawPic("missing", 0, 0, 1) {
		t.Error("expected unknown pic to report false")
	}
	dev.Reset()
	c.End2D()
	if len(dev.Draws) != 1 || dev.Draws[0].Count != 6 {
		t.Errorf("expected one quad, got %+v", dev.Draws)
	}
}

func TestStateCache(t *testing.T) {
	dev := gputest.New(4096)
	stats := &gpu.Stats{}
	s := newGLState(dev, stats)

	s.enable(gpu.Blend, true)
	s.enable(gpu.Blend, true)
	s.blend(gpu.SrcAlpha, gpu.OneMinusSrcAlpha)
	s.blend(gpu.SrcAlpha, gpu.OneMinusSrcAlpha)
	s.depthWrite(true)
	s.clip(image.Rect(0, 0, 8, 8))
	s.clip(image.Rect(0, 0, 8, 8))

	if n := dev.Count("SetCapability"); n != 2 {
		t.Errorf("expected blend and scissor toggles only, got %d", n)
	}
	if n := dev.Count("BlendFunc"); n != 1 {
		t.Errorf("expected 1 BlendFunc, got %d", n)
	}
	if n := dev.Count("DepthMask"); n != 0 {
		t.Errorf("expected depth mask already on, got %d calls", n)
	}
	if n := dev.Count("Scissor"); n != 1 {
		t.Errorf("expected 1 Scissor, got %d", n)
	}
	if n := stats.StateChanges[gpu.StateBlend]; n != 1 {
		t.Errorf("expected 1 blend state change, got %d", n)
	}
}

func TestScreenshotImage(t *testing.T) {
	// two rows, bottom row red, top row blue
	px := []byte{255, 0, 0, 255, 0, 0, 0, 0, 255, 0, 0, 255}
	img, err := ScreenshotImage(px, 2, 2)
	if err != nil {
		t.Fatalf("ScreenshotImage failed: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("expected blue top row, got %v", got)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("expected red bottom row, got %v", got)
	}
	if _, err := ScreenshotImage(px[:5], 2, 2); err == nil {
		t.Error("expected error for short pixel data")
	}
}

func TestEncodeScreenshot(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	tests := []struct {
		format  string
		decode  func(*bytes.Reader) error
		wantErr bool
	}{
		{"png", func(r *bytes.Reader) error { _, err := png.Decode(r); return err }, false},
		{"jpeg", func(r *bytes.Reader) error { _, err := jpeg.Decode(r); return err }, false},
		{"bmp", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := EncodeScreenshot(&buf, img, tt.format, 90)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeScreenshot failed: %v", err)
			}
			if err := tt.decode(bytes.NewReader(buf.Bytes())); err != nil {
				t.Errorf("expected decodable %s, got %v", tt.format, err)
			}
		})
	}
}

func TestScreenshotName(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if got, want := ScreenshotName("", "jpeg", at), "quetoo_2026-03-04_05-06-07.000.jpg"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestScreenshotWrites(t *testing.T) {
	c, dev := newTestContext(t)
	file := c.Screenshot(image.Rect(0, 0, 8, 6))
	c.WaitScreenshots()

	if dev.Count("ReadPixels") != 1 {
		t.Errorf("expected one pixel read, got %d", dev.Count("ReadPixels"))
	}
	f, err := os.Open(file)
	if err != nil {
		t.Fatalf("expected screenshot file: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("expected png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("expected 8x6, got %v", b)
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	c, dev := newTestContext(t)
	tm := newTestMap()
	tm.quad(0, 0, 64, 64, tm.texinfo("floor", 0))
	loadTestWorld(t, c, tm.finish())

	v := testView()
	v.Particles = []Particle{{Scale: 1}}
	c.DrawView(v)
	c.Begin2D(640, 480)
	c.DrawFill(image.Rect(0, 0, 4, 4), color.RGBA{A: 255})
	c.End2D()

	if leaks := c.Shutdown(); leaks != 0 {
		t.Errorf("expected no leaked buffers, got %d", leaks)
	}
	if len(dev.Buffers) != 0 {
		t.Errorf("expected every native buffer deleted, got %d", len(dev.Buffers))
	}
	if len(dev.Textures) != 0 {
		t.Errorf("expected every texture deleted, got %d", len(dev.Textures))
	}
	if len(dev.Programs) != 0 {
		t.Errorf("expected every program deleted, got %d", len(dev.Programs))
	}
}

func TestUnloadMap(t *testing.T) {
	c, _ := newTestContext(t)
	tm := newTestMap()
	tm.quad(0, 0, 64, 64, tm.texinfo("floor", 0))
	loadTestWorld(t, c, tm.finish())

	c.UnloadMap()
	if c.World != nil || len(c.stains) != 0 {
		t.Error("expected world and stainmaps released")
	}
	if c.Buffers.Live() != 0 {
		t.Errorf("expected no live buffers, got %d", c.Buffers.Live())
	}
	// drawing without a world is a no-op
	c.DrawView(testView())
}
