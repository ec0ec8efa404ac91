// Package bsp turns decoded BSP maps into GPU-ready world models: deduplicated
// interleaved vertexes, one element buffer, lightmap placement, and surfaces
// bucketed by render style.
package bsp

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/engine/buffer"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/lightmap"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
	"github.com/Faultbox/quetoo-render/internal/logger"
	"github.com/Faultbox/quetoo-render/pkg/formats"
)

// ErrCorruptBSP is returned when map indices point outside their lumps.
var ErrCorruptBSP = errors.New("bsp: corrupt map")

// NoParent is the parent of the root node.
const NoParent = -1

// Node is an interior node. Children >= 0 are nodes, negative children
// are -(leaf+1).
type Node struct {
	Plane        int
	Children     [2]int32
	Mins, Maxs   mgl32.Vec3
	FirstSurface int
	NumSurfaces  int
	Parent       int
}

// Leaf is a convex region. Its surfaces are LeafSurfaces[First:First+Num].
type Leaf struct {
	Contents     int32
	Cluster      int
	Area         int
	Mins, Maxs   mgl32.Vec3
	FirstSurface int
	NumSurfaces  int
	Parent       int
}

// Submodel is an inline brush model. HeadNode is -1 when it has no tree.
type Submodel struct {
	Name         string
	Mins, Maxs   mgl32.Vec3
	Origin       mgl32.Vec3
	Radius       float32
	HeadNode     int
	FirstSurface int
	NumSurfaces  int
	Buckets      Buckets
}

// Model is a loaded world. Every slice is owned by the model and released
// together by Unload.
type Model struct {
	Name      string
	Version   int32
	LuxelSize int
	Entities  []formats.Entity

	Planes       []formats.BSPPlane
	Surfaces     []Surface
	Nodes        []Node
	Leafs        []Leaf
	LeafSurfaces []int
	Submodels    []Submodel

	Vertexes []Vertex
	Elements []uint32
	// RawVertexes is the count of winding vertexes before deduplication.
	RawVertexes int

	VertexBuffer  buffer.Buffer
	ElementBuffer buffer.Buffer
	Lightmaps     *lightmap.Result

	Buckets Buckets
}

// Loader builds models.
type Loader struct {
	// LuxelSize is used for maps whose worldspawn declares none.
	LuxelSize int

	buffers   *buffer.Manager
	textures  *texture.Manager
	materials Resolver
	lightmaps *lightmap.Builder
	log       *zap.Logger
}

// NewLoader returns a loader. A nil lightmap builder loads maps unlit.
func NewLoader(buffers *buffer.Manager, textures *texture.Manager, materials Resolver, lightmaps *lightmap.Builder, log *zap.Logger) *Loader {
	return &Loader{
		buffers:   buffers,
		textures:  textures,
		materials: materials,
		lightmaps: lightmaps,
		log:       logger.Or(log, "bsp"),
	}
}

// LoadFile reads the map at path and loads it under name.
func (l *Loader) LoadFile(path, name string) (*Model, error) {
	data, err := formats.LoadBSP(path)
	if err != nil {
		return nil, err
	}
	src, err := lightmap.StatSource(path, name, data.Directional())
	if err != nil {
		return nil, err
	}
	return l.Load(src, data)
}

// Load builds a model from decoded map data. src identifies the map for
// lightmap caching.
func (l *Loader) Load(src lightmap.Source, data *formats.BSP) (*Model, error) {
	src.Directional = data.Directional()
	m := &Model{
		Name:      src.Name,
		Version:   data.Version,
		Planes:    data.Planes,
	}

	ents, err := formats.ParseEntities(data.Entities)
	if err != nil {
		l.log.Warn("entity string not parsed", zap.String("map", m.Name), zap.Error(err))
	}
	m.Entities = ents
	luxel := l.LuxelSize
	if luxel <= 0 {
		luxel = lightmap.DefaultLuxelSize
	}
	m.LuxelSize = formats.LuxelSize(formats.Worldspawn(ents), luxel)

	if err := l.loadSurfaces(m, data); err != nil {
		return nil, err
	}
	if err := l.loadLightmaps(m, src); err != nil {
		return nil, err
	}
	if err := l.loadTree(m, data); err != nil {
		l.freeLightmaps(m)
		return nil, err
	}
	if err := l.loadSubmodels(m, data); err != nil {
		l.freeLightmaps(m)
		return nil, err
	}

	l.loadVertexArrays(m, data)
	l.uploadBuffers(m)

	m.Buckets = SortSurfaces(m.Surfaces, 0, len(m.Surfaces))
	for i := range m.Submodels {
		sm := &m.Submodels[i]
		sm.Buckets = SortSurfaces(m.Surfaces, sm.FirstSurface, sm.NumSurfaces)
	}

	l.log.Info("bsp loaded",
		zap.String("map", m.Name),
		zap.Int32("version", m.Version),
		zap.Int("surfaces", len(m.Surfaces)),
		zap.Int("vertexes", m.RawVertexes),
		zap.Int("unique_vertexes", len(m.Vertexes)),
		zap.Int("elements", len(m.Elements)),
		zap.Int("submodels", len(m.Submodels)))
	return m, nil
}

// Unload releases the model's GPU buffers and lightmaps.
func (l *Loader) Unload(m *Model) {
	l.buffers.Destroy(&m.VertexBuffer)
	l.buffers.Destroy(&m.ElementBuffer)
	l.freeLightmaps(m)
	*m = Model{Name: m.Name}
}

func (l *Loader) freeLightmaps(m *Model) {
	if m.Lightmaps != nil && l.textures != nil {
		m.Lightmaps.Free(l.textures)
	}
	m.Lightmaps = nil
}

func (l *Loader) loadSurfaces(m *Model, data *formats.BSP) error {
	m.Surfaces = make([]Surface, len(data.Faces))
	luxel := float32(m.LuxelSize)
	stride := 3
	if data.Directional() {
		stride = 6
	}

	points := make([]mgl32.Vec3, 0, 64)
	for i := range data.Faces {
		f := &data.Faces[i]
		if f.Texinfo < 0 || int(f.Texinfo) >= len(data.Texinfos) {
			return fmt.Errorf("%w: face %d has texinfo %d of %d", ErrCorruptBSP, i, f.Texinfo, len(data.Texinfos))
		}
		if int(f.PlaneNum) >= len(data.Planes) {
			return fmt.Errorf("%w: face %d has plane %d of %d", ErrCorruptBSP, i, f.PlaneNum, len(data.Planes))
		}
		tex := &data.Texinfos[f.Texinfo]
		s := surfaceFromFace(data, i, f, tex)
		if l.materials != nil {
			s.Material = l.materials.Resolve(tex.Name())
		}

		points = points[:0]
		for j := 0; j < s.NumEdges; j++ {
			v, err := data.FaceVertex(f, j)
			if err != nil {
				return fmt.Errorf("%w: face %d: %v", ErrCorruptBSP, i, err)
			}
			points = append(points, data.Vertexes[v])
		}
		s.setupExtents(points, luxel)
		if s.Has(formats.SurfLight) {
			s.Area = PolygonArea(points)
		}

		if s.Flags&SurfLightmap != 0 {
			w, h := lightmap.Dimensions(s.STExtents, luxel)
			var samples []byte
			if f.LightOffset >= 0 {
				end := int(f.LightOffset) + w*h*stride
				if end <= len(data.Lighting) {
					samples = data.Lighting[f.LightOffset:end]
				} else {
					l.log.Warn("lightmap samples out of range",
						zap.String("map", m.Name), zap.Int("face", i), zap.Int32("offset", f.LightOffset))
				}
			}
			proj := lightmap.Projection(s.Axes[0], s.Axes[1], s.STMins, luxel)
			s.Lightmap = lightmap.NewBlock(i, w, h, samples, proj)
		}
		m.Surfaces[i] = s
	}
	return nil
}

func (l *Loader) loadLightmaps(m *Model, src lightmap.Source) error {
	if l.lightmaps == nil {
		for i := range m.Surfaces {
			m.Surfaces[i].Lightmap = nil
			m.Surfaces[i].Flags &^= SurfLightmap
		}
		return nil
	}

	var blocks []*lightmap.Block
	for i := range m.Surfaces {
		if b := m.Surfaces[i].Lightmap; b != nil {
			blocks = append(blocks, b)
		}
	}
	res, err := l.lightmaps.Build(src, blocks)
	if err != nil {
		return fmt.Errorf("building lightmaps for %s: %w", m.Name, err)
	}
	m.Lightmaps = res
	return nil
}

func (l *Loader) loadTree(m *Model, data *formats.BSP) error {
	m.LeafSurfaces = make([]int, len(data.LeafFaces))
	for i, f := range data.LeafFaces {
		if int(f) >= len(m.Surfaces) {
			return fmt.Errorf("%w: leaf surface %d references surface %d of %d", ErrCorruptBSP, i, f, len(m.Surfaces))
		}
		m.LeafSurfaces[i] = int(f)
	}

	m.Leafs = make([]Leaf, len(data.Leafs))
	for i, in := range data.Leafs {
		first, num := int(in.FirstLeafFace), int(in.NumLeafFaces)
		if first+num > len(m.LeafSurfaces) {
			return fmt.Errorf("%w: leaf %d surfaces %d+%d of %d", ErrCorruptBSP, i, first, num, len(m.LeafSurfaces))
		}
		m.Leafs[i] = Leaf{
			Contents:     in.Contents,
			Cluster:      int(in.Cluster),
			Area:         int(in.Area),
			Mins:         shortVec(in.Mins),
			Maxs:         shortVec(in.Maxs),
			FirstSurface: first,
			NumSurfaces:  num,
			Parent:       NoParent,
		}
	}

	m.Nodes = make([]Node, len(data.Nodes))
	for i, in := range data.Nodes {
		first, num := int(in.FirstFace), int(in.NumFaces)
		if first+num > len(m.Surfaces) {
			return fmt.Errorf("%w: node %d surfaces %d+%d of %d", ErrCorruptBSP, i, first, num, len(m.Surfaces))
		}
		if in.PlaneNum < 0 || int(in.PlaneNum) >= len(m.Planes) {
			return fmt.Errorf("%w: node %d has plane %d of %d", ErrCorruptBSP, i, in.PlaneNum, len(m.Planes))
		}
		for _, c := range in.Children {
			if (c >= 0 && int(c) >= len(data.Nodes)) || (c < 0 && int(-1-c) >= len(data.Leafs)) {
				return fmt.Errorf("%w: node %d has child %d", ErrCorruptBSP, i, c)
			}
		}
		m.Nodes[i] = Node{
			Plane:        int(in.PlaneNum),
			Children:     in.Children,
			Mins:         shortVec(in.Mins),
			Maxs:         shortVec(in.Maxs),
			FirstSurface: first,
			NumSurfaces:  num,
			Parent:       NoParent,
		}
	}
	if len(m.Nodes) > 0 {
		m.linkParents(0)
	}
	return nil
}

// linkParents records parent indices below root without recursion. Each
// node is linked at most once, so a malformed graph cannot loop.
func (m *Model) linkParents(root int) {
	linked := make([]bool, len(m.Nodes))
	linked[root] = true
	stack := []int{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range m.Nodes[n].Children {
			if c < 0 {
				m.Leafs[-1-c].Parent = n
				continue
			}
			if !linked[c] {
				linked[c] = true
				m.Nodes[c].Parent = n
				stack = append(stack, int(c))
			}
		}
	}
}

func (l *Loader) loadSubmodels(m *Model, data *formats.BSP) error {
	m.Submodels = make([]Submodel, len(data.Models))
	for i, in := range data.Models {
		first, num := int(in.FirstFace), int(in.NumFaces)
		if first < 0 || num < 0 || first+num > len(m.Surfaces) {
			return fmt.Errorf("%w: submodel %d surfaces %d+%d of %d", ErrCorruptBSP, i, first, num, len(m.Surfaces))
		}

		one := mgl32.Vec3{1, 1, 1}
		sm := Submodel{
			Name:         fmt.Sprintf("*%d", i),
			Mins:         in.Mins.Sub(one),
			Maxs:         in.Maxs.Add(one),
			Origin:       in.Origin,
			HeadNode:     int(in.HeadNode),
			FirstSurface: first,
			NumSurfaces:  num,
		}
		var corner mgl32.Vec3
		for j := 0; j < 3; j++ {
			corner[j] = max(abs(sm.Mins[j]), abs(sm.Maxs[j]))
		}
		sm.Radius = corner.Len()

		if sm.HeadNode < 0 || sm.HeadNode >= len(m.Nodes) {
			l.log.Warn("submodel has invalid head node",
				zap.String("map", m.Name), zap.String("submodel", sm.Name), zap.Int("head_node", sm.HeadNode))
			sm.HeadNode = -1
			sm.NumSurfaces = 0
		}
		m.Submodels[i] = sm
	}
	return nil
}

// loadVertexArrays walks surfaces leaf by leaf, then any surface no leaf
// references, emitting a triangle fan of canonical vertex indices per
// surface.
func (l *Loader) loadVertexArrays(m *Model, data *formats.BSP) {
	d := newDedup(len(data.FaceEdges))
	m.Elements = make([]uint32, 0, len(data.FaceEdges)*3)
	done := make([]bool, len(m.Surfaces))

	emit := func(i int) {
		if done[i] {
			return
		}
		done[i] = true
		l.emitSurface(m, data, d, &m.Surfaces[i])
	}
	for _, leaf := range m.Leafs {
		for _, s := range m.LeafSurfaces[leaf.FirstSurface : leaf.FirstSurface+leaf.NumSurfaces] {
			emit(s)
		}
	}
	for i := range m.Surfaces {
		emit(i)
	}

	m.Vertexes = d.shrink()
	m.RawVertexes = d.seen
}

func (l *Loader) emitSurface(m *Model, data *formats.BSP, d *dedup, s *Surface) {
	s.FirstElement = len(m.Elements)
	if s.NumEdges < 3 {
		return
	}

	f := &data.Faces[s.Index]
	sdir, tdir := s.Axes[0].Vec3(), s.Axes[1].Vec3()
	w, h := float32(1), float32(1)
	if s.Material != nil && s.Material.Width > 0 && s.Material.Height > 0 {
		w, h = float32(s.Material.Width), float32(s.Material.Height)
	}
	phong := s.Has(formats.SurfPhong)

	var first, prev uint32
	for j := 0; j < s.NumEdges; j++ {
		vi, _ := data.FaceVertex(f, j) // validated by loadSurfaces
		pos := data.Vertexes[vi]

		v := Vertex{
			Position: pos,
			Normal:   s.Normal,
			Diffuse:  mgl32.Vec2{project(pos, s.Axes[0]) / w, project(pos, s.Axes[1]) / h},
		}
		if phong && vi < len(data.Normals) && data.Normals[vi] != (mgl32.Vec3{}) {
			v.Normal = data.Normals[vi]
		}
		if s.Lightmap != nil && s.Lightmap.Placed() {
			v.Lightmap = s.Lightmap.TexCoord(pos)
		}
		v.Tangent, v.Bitangent = TangentVectors(v.Normal, sdir, tdir)

		idx := d.add(v)
		switch j {
		case 0:
			first = idx
		case 1:
		default:
			m.Elements = append(m.Elements, first, prev, idx)
		}
		prev = idx
	}
	s.NumElements = len(m.Elements) - s.FirstElement
}

func (l *Loader) uploadBuffers(m *Model) {
	if len(m.Vertexes) == 0 {
		return
	}
	vdata := gpu.Bytes(m.Vertexes)
	l.buffers.CreateData(&m.VertexBuffer, buffer.Config{
		Interleave: true,
		Layout:     VertexLayout,
		StructSize: VertexSize,
		Hint:       gpu.StaticDraw,
		Size:       len(vdata),
		Data:       vdata,
	})

	edata := gpu.Bytes(m.Elements)
	l.buffers.CreateElement(&m.ElementBuffer, gpu.UnsignedInt, gpu.StaticDraw, len(edata), edata)
}

func shortVec(v [3]int16) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
