package program

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
)

func samplers(p *Program, units ...texture.Unit) {
	for _, u := range units {
		p.Sampler(u.Sampler(), int(u))
	}
}

// Default shades world and mesh surfaces.
type Default struct {
	units *texture.Units

	lightmap  *Uniform1i
	deluxemap *Uniform1i
	bump      *Uniform1f
	specular  *Uniform1f
	alpha     *Uniform1f
	lerp      *Uniform1f
	tint      *Uniform4f
	normal    *UniformMat4

	// ViewProjection is recomputed whenever the program's matrices change.
	ViewProjection mgl32.Mat4
}

// NewDefault returns the default variant. units decides whether the
// lightmap is sampled on activation.
func NewDefault(units *texture.Units) *Default { return &Default{units: units} }

func (d *Default) Name() string { return "default" }

func (d *Default) Arrays() gpu.AttribMask {
	return gpu.MaskPosition | gpu.MaskNextPosition | gpu.MaskNormal | gpu.MaskNextNormal |
		gpu.MaskTangent | gpu.MaskBitangent | gpu.MaskDiffuseUV | gpu.MaskLightmapUV
}

func (d *Default) Init(p *Program) {
	samplers(p, texture.UnitDiffuse, texture.UnitLightmap, texture.UnitNormalmap)

	d.lightmap = p.Uniform1i("lightmap")
	d.deluxemap = p.Uniform1i("deluxemap")
	d.bump = p.Uniform1f("bump")
	d.specular = p.Uniform1f("specular")
	d.alpha = p.Uniform1f("alpha_threshold")
	d.lerp = p.Uniform1f("lerp")
	d.tint = p.Uniform4f("tint")
	d.normal = p.UniformMat4("normal_mat")

	d.lightmap.Set(0)
	d.deluxemap.Set(0)
	d.bump.Set(1)
	d.specular.Set(1)
	d.alpha.Set(0)
	d.lerp.Set(0)
	d.tint.Set(mgl32.Vec4{1, 1, 1, 1})
	d.normal.Set(mgl32.Ident4())
}

func (d *Default) Activate(p *Program) {
	if d.units != nil {
		d.lightmap.SetBool(d.units.Enabled(texture.UnitLightmap))
	}
}

func (d *Default) UseMaterial(p *Program, m Material) {
	d.lightmap.SetBool(m.Lightmap)
	d.deluxemap.SetBool(m.Lightmap && m.Deluxemap)
	d.bump.Set(m.Bump)
	d.specular.Set(m.Specular)
}

func (d *Default) MatricesChanged(p *Program, m *Matrices) {
	d.normal.Set(m.ModelView().Inv().Transpose())
	d.ViewProjection = m.ViewProjection()
}

func (d *Default) UseAlphaTest(p *Program, threshold float32) { d.alpha.Set(threshold) }

func (d *Default) UseTint(p *Program, color mgl32.Vec4) { d.tint.Set(color) }

func (d *Default) UseInterpolation(p *Program, lerp float32) { d.lerp.Set(lerp) }

// Warp scrolls liquid surfaces.
type Warp struct {
	time *Uniform1f
	tint *Uniform4f
}

func (w *Warp) Name() string { return "warp" }

func (w *Warp) Arrays() gpu.AttribMask { return gpu.MaskPosition | gpu.MaskDiffuseUV }

func (w *Warp) Init(p *Program) {
	samplers(p, texture.UnitDiffuse)
	w.time = p.Uniform1f("time")
	w.tint = p.Uniform4f("tint")
	w.tint.Set(mgl32.Vec4{1, 1, 1, 1})
}

func (w *Warp) UseTime(p *Program, seconds float32) { w.time.Set(seconds) }

func (w *Warp) UseTint(p *Program, color mgl32.Vec4) { w.tint.Set(color) }

// Shell draws the translucent shell around powered-up meshes.
type Shell struct {
	color  *Uniform4f
	offset *Uniform1f
	time   *Uniform1f
	lerp   *Uniform1f
}

// ShellOffset is how far shells are pushed along vertex normals.
const ShellOffset = 1.5

func (s *Shell) Name() string { return "shell" }

func (s *Shell) Arrays() gpu.AttribMask {
	return gpu.MaskPosition | gpu.MaskNextPosition | gpu.MaskNormal | gpu.MaskNextNormal | gpu.MaskDiffuseUV
}

func (s *Shell) Init(p *Program) {
	samplers(p, texture.UnitDiffuse)
	s.color = p.Uniform4f("shell_color")
	s.offset = p.Uniform1f("offset")
	s.time = p.Uniform1f("time")
	s.lerp = p.Uniform1f("lerp")
	s.offset.Set(ShellOffset)
}

func (s *Shell) UseTint(p *Program, color mgl32.Vec4) { s.color.Set(color) }

func (s *Shell) UseTime(p *Program, seconds float32) { s.time.Set(seconds) }

func (s *Shell) UseInterpolation(p *Program, lerp float32) { s.lerp.Set(lerp) }

// Stain multiplies the stain layer over lightmapped surfaces.
type Stain struct{}

func (Stain) Name() string { return "stain" }

func (Stain) Arrays() gpu.AttribMask { return gpu.MaskPosition | gpu.MaskLightmapUV }

func (Stain) Init(p *Program) { samplers(p, texture.UnitStainmap) }

// Particle draws billboarded point sprites.
type Particle struct {
	right *Uniform3f
	up    *Uniform3f
}

func (pa *Particle) Name() string { return "particle" }

func (pa *Particle) Arrays() gpu.AttribMask {
	return gpu.MaskPosition | gpu.MaskColor | gpu.MaskDiffuseUV | gpu.MaskParticle
}

func (pa *Particle) Init(p *Program) {
	samplers(p, texture.UnitDiffuse)
	pa.right = p.Uniform3f("view_right")
	pa.up = p.Uniform3f("view_up")
}

// MatricesChanged extracts the billboard axes from the view matrix rows.
func (pa *Particle) MatricesChanged(p *Program, m *Matrices) {
	view := m.Get(ViewMatrix)
	pa.right.Set(view.Row(0).Vec3())
	pa.up.Set(view.Row(1).Vec3())
}

// Corona draws additive light halos.
type Corona struct{}

func (Corona) Name() string { return "corona" }

func (Corona) Arrays() gpu.AttribMask { return gpu.MaskPosition | gpu.MaskColor | gpu.MaskDiffuseUV }

func (Corona) Init(p *Program) {}

// Null draws unlit 2D primitives.
type Null struct {
	color *Uniform4f
}

func (n *Null) Name() string { return "null" }

func (n *Null) Arrays() gpu.AttribMask { return gpu.MaskPosition | gpu.MaskColor | gpu.MaskDiffuseUV }

func (n *Null) Init(p *Program) {
	samplers(p, texture.UnitDiffuse)
	n.color = p.Uniform4f("color")
	n.color.Set(mgl32.Vec4{1, 1, 1, 1})
}

func (n *Null) UseTint(p *Program, color mgl32.Vec4) { n.color.Set(color) }
