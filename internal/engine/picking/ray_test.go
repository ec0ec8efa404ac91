package picking

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/bsp"
)

func TestIntersectAABB(t *testing.T) {
	box := NewAABB(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{-1, -1, -1})
	tests := []struct {
		name    string
		ray     Ray
		wantT   float32
		wantHit bool
	}{
		{"front", Ray{mgl32.Vec3{-5, 0, 0}, mgl32.Vec3{1, 0, 0}}, 4, true},
		{"inside", Ray{mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1}}, 1, true},
		{"behind", Ray{mgl32.Vec3{5, 0, 0}, mgl32.Vec3{1, 0, 0}}, 0, false},
		{"miss parallel", Ray{mgl32.Vec3{-5, 3, 0}, mgl32.Vec3{1, 0, 0}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectAABB(box)
			if hit != tt.wantHit {
				t.Fatalf("expected hit %v, got %v", tt.wantHit, hit)
			}
			if hit && got != tt.wantT {
				t.Errorf("expected t %v, got %v", tt.wantT, got)
			}
		})
	}
}

func TestIntersectTriangle(t *testing.T) {
	a, b, c := mgl32.Vec3{0, 0, 0}, mgl32.Vec3{4, 0, 0}, mgl32.Vec3{0, 4, 0}
	down := mgl32.Vec3{0, 0, -1}

	if d, ok := (Ray{mgl32.Vec3{1, 1, 10}, down}).IntersectTriangle(a, b, c); !ok || d != 10 {
		t.Errorf("expected hit at 10, got %v %v", d, ok)
	}
	// reversed winding still hits
	if _, ok := (Ray{mgl32.Vec3{1, 1, 10}, down}).IntersectTriangle(a, c, b); !ok {
		t.Error("expected hit on reversed winding")
	}
	if _, ok := (Ray{mgl32.Vec3{3, 3, 10}, down}).IntersectTriangle(a, b, c); ok {
		t.Error("expected miss outside the triangle")
	}
	if _, ok := (Ray{mgl32.Vec3{1, 1, 10}, mgl32.Vec3{1, 0, 0}}).IntersectTriangle(a, b, c); ok {
		t.Error("expected miss for a parallel ray")
	}
}

func TestViewRay(t *testing.T) {
	tests := []struct {
		angles mgl32.Vec3
		want   mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, 90, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{90, 0, 0}, mgl32.Vec3{0, 0, -1}},
	}
	for _, tt := range tests {
		got := ViewRay(mgl32.Vec3{}, tt.angles).Direction
		if !got.ApproxEqualThreshold(tt.want, 1e-5) {
			t.Errorf("angles %v: expected %v, got %v", tt.angles, tt.want, got)
		}
	}
}

func TestScreenToRayCenter(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 100)
	r := ScreenToRay(50, 50, 100, 100, proj.Inv())
	if !r.Direction.ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-4) {
		t.Errorf("expected ray down -z, got %v", r.Direction)
	}
	if d := r.Origin[2]; d > -0.99 || d < -1.01 {
		t.Errorf("expected origin on the near plane, got %v", r.Origin)
	}
}

// floorModel has two unit quads on z=0 and z=-8 stacked over the origin.
func floorModel() *bsp.Model {
	m := &bsp.Model{}
	for i, z := range []float32{0, -8} {
		base := uint32(len(m.Vertexes))
		for _, p := range []mgl32.Vec3{{-1, -1, z}, {1, -1, z}, {1, 1, z}, {-1, 1, z}} {
			m.Vertexes = append(m.Vertexes, bsp.Vertex{Position: p})
		}
		first := len(m.Elements)
		m.Elements = append(m.Elements, base, base+1, base+2, base, base+2, base+3)
		m.Surfaces = append(m.Surfaces, bsp.Surface{
			Index:        i,
			Mins:         mgl32.Vec3{-1, -1, z},
			Maxs:         mgl32.Vec3{1, 1, z},
			FirstElement: first,
			NumElements:  6,
		})
	}
	return m
}

func TestPickSurface(t *testing.T) {
	m := floorModel()
	down := mgl32.Vec3{0, 0, -1}

	hit, ok := PickSurface(m, Ray{mgl32.Vec3{0.5, 0.5, 4}, down}, 100)
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Surface != 0 || hit.Distance != 4 {
		t.Errorf("expected nearest surface 0 at 4, got %+v", hit)
	}
	if !hit.Point.ApproxEqual(mgl32.Vec3{0.5, 0.5, 0}) {
		t.Errorf("expected point on the floor, got %v", hit.Point)
	}

	// from between the quads only the lower one is ahead
	if hit, ok := PickSurface(m, Ray{mgl32.Vec3{0, 0, -4}, down}, 100); !ok || hit.Surface != 1 {
		t.Errorf("expected surface 1, got %+v %v", hit, ok)
	}
	if _, ok := PickSurface(m, Ray{mgl32.Vec3{0, 0, 4}, down}, 2); ok {
		t.Error("expected no hit beyond max distance")
	}
	if _, ok := PickSurface(m, Ray{mgl32.Vec3{5, 5, 4}, down}, 100); ok {
		t.Error("expected miss beside the quads")
	}
}
