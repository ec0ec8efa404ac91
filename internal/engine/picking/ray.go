// Package picking provides ray casting against world surfaces.
package picking

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/bsp"
)

// Ray represents a ray in world space with origin and direction.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3 // Normalized direction
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewAABB creates an AABB from two corners in any order.
func NewAABB(a, b mgl32.Vec3) AABB {
	var box AABB
	for i := 0; i < 3; i++ {
		box.Min[i] = min(a[i], b[i])
		box.Max[i] = max(a[i], b[i])
	}
	return box
}

// ScreenToRay converts pixel coordinates to a world-space ray.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj mgl32.Mat4) Ray {
	ndcX := 2*screenX/viewportW - 1
	ndcY := 1 - 2*screenY/viewportH // Flip Y

	near := invViewProj.Mul4x1(mgl32.Vec4{ndcX, ndcY, -1, 1})
	far := invViewProj.Mul4x1(mgl32.Vec4{ndcX, ndcY, 1, 1})
	if near[3] != 0 {
		near = near.Mul(1 / near[3])
	}
	if far[3] != 0 {
		far = far.Mul(1 / far[3])
	}

	dir := far.Vec3().Sub(near.Vec3())
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	return Ray{Origin: near.Vec3(), Direction: dir}
}

// ViewRay returns the ray through the center of a view at origin with
// Euler angles (pitch, yaw, roll) in degrees.
func ViewRay(origin, angles mgl32.Vec3) Ray {
	pitch := float64(mgl32.DegToRad(angles[0]))
	yaw := float64(mgl32.DegToRad(angles[1]))
	dir := mgl32.Vec3{
		float32(math.Cos(pitch) * math.Cos(yaw)),
		float32(math.Cos(pitch) * math.Sin(yaw)),
		float32(-math.Sin(pitch)),
	}
	return Ray{Origin: origin, Direction: dir}
}

// At returns the point t units along the ray.
func (r Ray) At(t float32) mgl32.Vec3 { return r.Origin.Add(r.Direction.Mul(t)) }

// IntersectAABB tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectAABB(box AABB) (t float32, hit bool) {
	tmin := float32(-math.MaxFloat32)
	tmax := float32(math.MaxFloat32)

	for i := 0; i < 3; i++ {
		if r.Direction[i] == 0 {
			if r.Origin[i] < box.Min[i] || r.Origin[i] > box.Max[i] {
				return 0, false
			}
			continue
		}
		t1 := (box.Min[i] - r.Origin[i]) / r.Direction[i]
		t2 := (box.Max[i] - r.Origin[i]) / r.Direction[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

const epsilon = 1e-6

// IntersectTriangle returns the distance along r to triangle a, b, c.
// Both windings hit.
func (r Ray) IntersectTriangle(a, b, c mgl32.Vec3) (float32, bool) {
	e1, e2 := b.Sub(a), c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if det > -epsilon && det < epsilon {
		return 0, false // Parallel to the triangle
	}
	inv := 1 / det
	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Hit is the nearest surface a ray struck.
type Hit struct {
	Surface  int
	Point    mgl32.Vec3
	Distance float32
}

// boundsSlop widens surface bounds so rays grazing axial faces are tested.
const boundsSlop = 0.01

// PickSurface returns the nearest surface of m within maxDist along r.
// Surfaces are tested against their bounds, then their triangles.
func PickSurface(m *bsp.Model, r Ray, maxDist float32) (Hit, bool) {
	best := Hit{Surface: -1, Distance: maxDist}
	slop := mgl32.Vec3{boundsSlop, boundsSlop, boundsSlop}
	for i := range m.Surfaces {
		s := &m.Surfaces[i]
		if s.NumElements == 0 {
			continue
		}
		t, ok := r.IntersectAABB(AABB{Min: s.Mins.Sub(slop), Max: s.Maxs.Add(slop)})
		if !ok || t > best.Distance {
			continue
		}
		for e := s.FirstElement; e+2 < s.FirstElement+s.NumElements; e += 3 {
			a := m.Vertexes[m.Elements[e]].Position
			b := m.Vertexes[m.Elements[e+1]].Position
			c := m.Vertexes[m.Elements[e+2]].Position
			if t, ok := r.IntersectTriangle(a, b, c); ok && t < best.Distance {
				best = Hit{Surface: i, Point: r.At(t), Distance: t}
			}
		}
	}
	return best, best.Surface >= 0
}
