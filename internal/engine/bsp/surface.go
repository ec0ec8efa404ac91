package bsp

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/lightmap"
	"github.com/Faultbox/quetoo-render/pkg/formats"
)

// SurfaceFlags are renderer-derived surface properties.
type SurfaceFlags uint32

const (
	// SurfBack marks a face on the back side of its plane.
	SurfBack SurfaceFlags = 1 << iota
	// SurfLightmap marks a face that samples a lightmap.
	SurfLightmap
)

// collinearEpsilon bounds how close to parallel two polygon edges may be
// before the shared point is skipped for area.
const collinearEpsilon = 1e-4

// Surface is one renderable face.
type Surface struct {
	Index    int
	Texinfo  int
	Axes     [2]mgl32.Vec4
	TexFlags int32
	Value    int32
	Material *Material
	Plane    int
	Normal   mgl32.Vec3
	Flags    SurfaceFlags

	FirstEdge int
	NumEdges  int

	Mins, Maxs mgl32.Vec3
	Center     mgl32.Vec3

	STMins, STMaxs mgl32.Vec2
	STCenter       mgl32.Vec2
	STExtents      mgl32.Vec2

	// Area is set for light emitting surfaces.
	Area float32

	Lightmap *lightmap.Block

	FirstElement int
	NumElements  int
}

// Has reports whether any of the texinfo flags are set.
func (s *Surface) Has(flags int32) bool { return s.TexFlags&flags != 0 }

// setupExtents computes world bounds and luxel-snapped texture bounds.
func (s *Surface) setupExtents(points []mgl32.Vec3, luxel float32) {
	s.Mins = mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	s.Maxs = mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	stMins := mgl32.Vec2{math.MaxFloat32, math.MaxFloat32}
	stMaxs := mgl32.Vec2{-math.MaxFloat32, -math.MaxFloat32}

	for _, p := range points {
		for j := 0; j < 3; j++ {
			s.Mins[j] = min(s.Mins[j], p[j])
			s.Maxs[j] = max(s.Maxs[j], p[j])
		}
		for j := 0; j < 2; j++ {
			v := project(p, s.Axes[j])
			stMins[j] = min(stMins[j], v)
			stMaxs[j] = max(stMaxs[j], v)
		}
	}

	s.Center = s.Mins.Add(s.Maxs).Mul(0.5)
	s.STMins, s.STMaxs = lightmap.STBounds(stMins, stMaxs, luxel)
	s.STCenter = s.STMins.Add(s.STMaxs).Mul(0.5)
	s.STExtents = s.STMaxs.Sub(s.STMins)
}

// project returns the texture space coordinate of p along axis.
func project(p mgl32.Vec3, axis mgl32.Vec4) float32 {
	return p.Dot(axis.Vec3()) + axis[3]
}

// PolygonArea sums a triangle fan over points, skipping points where the
// outline does not turn.
func PolygonArea(points []mgl32.Vec3) float32 {
	if len(points) < 3 {
		return 0
	}
	kept := make([]mgl32.Vec3, 0, len(points))
	for i, p := range points {
		prev := points[(i+len(points)-1)%len(points)]
		next := points[(i+1)%len(points)]
		a, b := p.Sub(prev), next.Sub(p)
		if a.Len() == 0 || b.Len() == 0 {
			continue
		}
		if a.Normalize().Dot(b.Normalize()) > 1-collinearEpsilon {
			continue
		}
		kept = append(kept, p)
	}

	var area float32
	for i := 2; i < len(kept); i++ {
		e1 := kept[i-1].Sub(kept[0])
		e2 := kept[i].Sub(kept[0])
		area += e1.Cross(e2).Len() * 0.5
	}
	return area
}

// TangentVectors projects the s direction onto the plane of normal and
// derives a bitangent facing the t direction.
func TangentVectors(normal, sdir, tdir mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	s := safeNormalize(sdir)
	t := safeNormalize(tdir)

	tangent := safeNormalize(s.Sub(normal.Mul(s.Dot(normal))))
	bitangent := normal.Cross(tangent)
	if t.Dot(bitangent) < 0 {
		bitangent = bitangent.Mul(-1)
	}
	return tangent, bitangent
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}

// surfaceFromFace builds the surface of face i, leaving geometry for later.
func surfaceFromFace(b *formats.BSP, i int, f *formats.BSPFace, tex *formats.BSPTexinfo) Surface {
	s := Surface{
		Index:     i,
		Texinfo:   int(f.Texinfo),
		Axes:      tex.Vecs,
		TexFlags:  tex.Flags,
		Value:     tex.Value,
		Plane:     int(f.PlaneNum),
		Normal:    b.Planes[f.PlaneNum].Normal,
		FirstEdge: int(f.FirstEdge),
		NumEdges:  int(f.NumEdges),
	}
	if f.Side != 0 {
		s.Flags |= SurfBack
		s.Normal = s.Normal.Mul(-1)
	}
	if !s.Has(formats.SurfSky | formats.SurfWarp) {
		s.Flags |= SurfLightmap
	}
	return s
}
