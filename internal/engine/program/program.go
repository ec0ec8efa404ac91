// Package program tracks the active shader program, its cached uniforms
// and the matrices it was last given.
package program

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

// Variant is one kind of shader program. Variants may also implement any
// of the hook interfaces below; a missing hook is a no-op.
type Variant interface {
	// Name selects the shader sources, <name>_vs.glsl and <name>_fs.glsl.
	Name() string
	// Arrays is the set of vertex attributes the program reads.
	Arrays() gpu.AttribMask
	// Init resolves uniforms and sets their constant values. The program
	// is active while Init runs.
	Init(p *Program)
}

// Activator runs each time its program becomes active.
type Activator interface {
	Activate(p *Program)
}

// MatricesUser runs after matrices were uploaded to its program.
type MatricesUser interface {
	MatricesChanged(p *Program, m *Matrices)
}

// MaterialUser configures its program for the next surface's material.
type MaterialUser interface {
	UseMaterial(p *Program, m Material)
}

// AlphaTester sets the alpha discard threshold, 0 to disable.
type AlphaTester interface {
	UseAlphaTest(p *Program, threshold float32)
}

// Tinter sets a constant color multiplied into the output.
type Tinter interface {
	UseTint(p *Program, color mgl32.Vec4)
}

// Interpolator sets the blend fraction between current and next frame
// attributes.
type Interpolator interface {
	UseInterpolation(p *Program, lerp float32)
}

// Timer receives the renderer time in seconds.
type Timer interface {
	UseTime(p *Program, seconds float32)
}

// Material is the per-surface shading input of UseMaterial.
type Material struct {
	Lightmap  bool
	Deluxemap bool
	Bump      float32
	Specular  float32
}

// Program is a linked shader program.
type Program struct {
	Name    string
	Handle  gpu.Handle
	Arrays  gpu.AttribMask
	Variant Variant

	dev   gpu.Device
	stats *gpu.Stats
	log   *zap.Logger

	// matrices[i] is the generation of matrix i last uploaded.
	matrices [NumMatrices]uint64
	mvp      [NumMatrices]UniformMat4
}

// Uniform1i resolves an integer uniform of p.
func (p *Program) Uniform1i(name string) *Uniform1i {
	u := &Uniform1i{}
	u.resolve(p, name)
	return u
}

// Uniform1f resolves a float uniform of p.
func (p *Program) Uniform1f(name string) *Uniform1f {
	u := &Uniform1f{}
	u.resolve(p, name)
	return u
}

// Uniform3f resolves a vec3 uniform of p.
func (p *Program) Uniform3f(name string) *Uniform3f {
	u := &Uniform3f{}
	u.resolve(p, name)
	return u
}

// Uniform4f resolves a vec4 uniform of p.
func (p *Program) Uniform4f(name string) *Uniform4f {
	u := &Uniform4f{}
	u.resolve(p, name)
	return u
}

// UniformMat4 resolves a mat4 uniform of p.
func (p *Program) UniformMat4(name string) *UniformMat4 {
	u := &UniformMat4{}
	u.resolve(p, name)
	return u
}

// Sampler resolves a sampler uniform of p and points it at unit.
func (p *Program) Sampler(name string, unit int) *Uniform1i {
	u := p.Uniform1i(name)
	u.Set(int32(unit))
	return u
}

// attributes names every location p reads, bound before linking.
func (p *Program) attributes() map[gpu.Attribute]string {
	out := make(map[gpu.Attribute]string)
	p.Arrays.Each(func(a gpu.Attribute) {
		if a.Valid() {
			out[a] = a.Name()
		}
	})
	return out
}
