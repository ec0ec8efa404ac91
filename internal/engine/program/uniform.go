package program

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

// uniform is the location and cache state shared by every uniform kind.
// Setters must be called while the owning program is active.
type uniform struct {
	prog  *Program
	name  string
	loc   int32
	valid bool // the cached value matches the native one
}

func (u *uniform) resolve(p *Program, name string) {
	u.prog, u.name = p, name
	u.loc = p.dev.UniformLocation(p.Handle, name)
	if u.loc < 0 {
		p.log.Warn("uniform not resolved", zap.String("program", p.Name), zap.String("uniform", name))
	}
}

// skip reports whether a set must not reach the device. Callers check
// for a nil receiver first.
func (u *uniform) skip() bool { return u.prog == nil || u.loc < 0 }

func (u *uniform) changed() {
	u.valid = true
	u.prog.stats.StateChange(gpu.StateUniform)
}

// Location returns the native location, -1 when unresolved.
func (u *uniform) Location() int32 { return u.loc }

// Uniform1i is a cached integer or sampler uniform.
type Uniform1i struct {
	uniform
	value int32
}

// Set uploads v unless it is already the program's value.
func (u *Uniform1i) Set(v int32) {
	if u == nil || u.skip() || (u.valid && u.value == v) {
		return
	}
	u.prog.dev.Uniform1i(u.loc, v)
	u.value = v
	u.changed()
}

// SetBool uploads b as 0 or 1.
func (u *Uniform1i) SetBool(b bool) {
	if b {
		u.Set(1)
	} else {
		u.Set(0)
	}
}

// Uniform1f is a cached float uniform.
type Uniform1f struct {
	uniform
	value float32
}

// Set uploads v unless it is already the program's value.
func (u *Uniform1f) Set(v float32) {
	if u == nil || u.skip() || (u.valid && u.value == v) {
		return
	}
	u.prog.dev.Uniform1f(u.loc, v)
	u.value = v
	u.changed()
}

// Uniform3f is a cached vec3 uniform.
type Uniform3f struct {
	uniform
	value mgl32.Vec3
}

// Set uploads v unless it is already the program's value.
func (u *Uniform3f) Set(v mgl32.Vec3) {
	if u == nil || u.skip() || (u.valid && u.value == v) {
		return
	}
	u.prog.dev.Uniform3f(u.loc, v[0], v[1], v[2])
	u.value = v
	u.changed()
}

// Uniform4f is a cached vec4 uniform.
type Uniform4f struct {
	uniform
	value mgl32.Vec4
}

// Set uploads v unless it is already the program's value.
func (u *Uniform4f) Set(v mgl32.Vec4) {
	if u == nil || u.skip() || (u.valid && u.value == v) {
		return
	}
	u.prog.dev.Uniform4f(u.loc, v[0], v[1], v[2], v[3])
	u.value = v
	u.changed()
}

// UniformMat4 is a cached column-major mat4 uniform.
type UniformMat4 struct {
	uniform
	value mgl32.Mat4
}

// Set uploads m unless it is already the program's value.
func (u *UniformMat4) Set(m mgl32.Mat4) {
	if u == nil || u.skip() || (u.valid && u.value == m) {
		return
	}
	arr := [16]float32(m)
	u.prog.dev.UniformMatrix4(u.loc, &arr)
	u.value = m
	u.changed()
}
