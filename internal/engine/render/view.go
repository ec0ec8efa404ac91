package render

import (
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/program"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
)

// Depth range of the view frustum in world units.
const (
	NearZ = 4
	FarZ  = 8192
)

// Effect is an entity effect flag.
type Effect uint32

const (
	// EffectShell draws a tinted shell around the mesh.
	EffectShell Effect = 1 << iota
	// EffectBlend draws the entity translucent with the alpha of its tint.
	EffectBlend
	// EffectFullbright skips lighting.
	EffectFullbright
)

// Entity is one model instance submitted for a frame.
type Entity struct {
	// Mesh is drawn when set. Otherwise Submodel names an inline model of
	// the world, 1 or greater.
	Mesh     *Mesh
	Submodel int

	Origin mgl32.Vec3
	// Angles are pitch, yaw and roll in degrees.
	Angles mgl32.Vec3
	Scale  float32

	Frame    int
	OldFrame int
	// Lerp is the fraction from OldFrame to Frame.
	Lerp float32

	Effects Effect
	Skin    *texture.Texture
	Tint    mgl32.Vec4
	Shell   mgl32.Vec4
}

// Has reports whether any of the effects are set on e.
func (e *Entity) Has(fx Effect) bool { return e.Effects&fx != 0 }

// Stain is a request to mark the world around a point.
type Stain struct {
	Origin mgl32.Vec3
	Radius float32
	Color  color.RGBA
}

// View is everything drawn in one 3D pass.
type View struct {
	Origin mgl32.Vec3
	// Angles are pitch, yaw and roll in degrees.
	Angles mgl32.Vec3
	// FOV is the vertical field of view in degrees.
	FOV      float32
	Viewport image.Rectangle
	// Time is the renderer time in seconds, driving warps and shells.
	Time float32

	Entities  []Entity
	Particles []Particle
	Coronas   []Corona
	Stains    []Stain
}

// ViewMatrix returns the world to eye transform of a Quake style camera:
// x forward, y left, z up.
func ViewMatrix(origin, angles mgl32.Vec3) mgl32.Mat4 {
	m := mgl32.HomogRotate3DX(mgl32.DegToRad(-90))
	m = m.Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(90)))
	m = m.Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(-angles[2])))
	m = m.Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(-angles[0])))
	m = m.Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(-angles[1])))
	return m.Mul4(mgl32.Translate3D(-origin[0], -origin[1], -origin[2]))
}

// EntityMatrix returns the model transform of an entity.
func EntityMatrix(origin, angles mgl32.Vec3, scale float32) mgl32.Mat4 {
	m := mgl32.Translate3D(origin[0], origin[1], origin[2])
	m = m.Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(angles[1])))
	m = m.Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(-angles[0])))
	m = m.Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(-angles[2])))
	if scale != 0 && scale != 1 {
		m = m.Mul4(mgl32.Scale3D(scale, scale, scale))
	}
	return m
}

// ProjectionMatrix returns the perspective projection of v.
func (v *View) ProjectionMatrix() mgl32.Mat4 {
	fov := v.FOV
	if fov <= 0 {
		fov = 90
	}
	aspect := float32(1)
	if dy := v.Viewport.Dy(); dy > 0 {
		aspect = float32(v.Viewport.Dx()) / float32(dy)
	}
	return mgl32.Perspective(mgl32.DegToRad(fov), aspect, NearZ, FarZ)
}

// BeginFrame clears the frame and resets the per-frame counters.
func (c *Context) BeginFrame() {
	c.Stats.ResetFrame()
	c.state.depthWrite(true)
	c.state.clip(image.Rectangle{})
	c.dev.ClearColor(0, 0, 0, 1)
	c.dev.Clear(gpu.ClearColorBit | gpu.ClearDepthBit | gpu.ClearStencilBit)
}

// DrawView draws the world, entities and sprites of v.
func (c *Context) DrawView(v *View) {
	c.state.setViewport(v.Viewport)
	c.state.enable(gpu.DepthTest, true)
	c.state.enable(gpu.CullFace, true)
	c.state.enable(gpu.Blend, false)
	c.state.depthWrite(true)

	c.Programs.SetMatrix(program.ProjectionMatrix, v.ProjectionMatrix())
	c.Programs.SetMatrix(program.ViewMatrix, ViewMatrix(v.Origin, v.Angles))
	c.Programs.SetMatrix(program.ModelMatrix, mgl32.Ident4())

	c.applyStains(v.Stains)
	c.drawWorld(v)
	c.drawEntities(v)
	c.drawSprites(v)

	c.Programs.SetMatrix(program.ModelMatrix, mgl32.Ident4())
	c.Attribs.Reset()
	c.Errors.Check("view")
}

// EndFrame checks for native errors raised by the frame.
func (c *Context) EndFrame() {
	c.Errors.Check("frame")
}
