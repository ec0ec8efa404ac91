// Package texture manages texture objects, texture unit state, uploads and
// mipmap generation.
package texture

import (
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

// Unit is a fixed texture unit.
type Unit int

const (
	UnitDiffuse Unit = iota
	UnitLightmap
	UnitStainmap
	UnitNormalmap
	UnitGlossmap
	NumUnits
)

var unitNames = [...]string{"texture_diffuse", "texture_lightmap", "texture_stainmap", "texture_normalmap", "texture_glossmap"}

// Sampler returns the shader sampler uniform bound to u.
func (u Unit) Sampler() string {
	if u >= 0 && u < NumUnits {
		return unitNames[u]
	}
	return ""
}

// Units caches the active unit and the texture bound to each unit.
type Units struct {
	dev     gpu.Device
	stats   *gpu.Stats
	active  Unit
	bound   [NumUnits]gpu.Handle
	enabled [NumUnits]bool
}

// NewUnits returns unit state with the diffuse unit active and enabled.
func NewUnits(dev gpu.Device, stats *gpu.Stats) *Units {
	u := &Units{dev: dev, stats: stats}
	u.enabled[UnitDiffuse] = true
	return u
}

// Select makes unit active.
func (u *Units) Select(unit Unit) {
	if u.active == unit {
		return
	}
	u.dev.ActiveTexture(int(unit))
	u.active = unit
	u.stats.StateChange(gpu.StateTextureUnit)
}

// Bind binds tex to unit, skipping the call if it is already bound.
func (u *Units) Bind(unit Unit, tex *Texture) {
	h := gpu.Handle(0)
	target := gpu.Texture2D
	if tex != nil {
		h, target = tex.Handle, tex.Target
	}
	if u.bound[unit] == h {
		return
	}
	u.Select(unit)
	u.dev.BindTexture(target, h)
	u.bound[unit] = h
	u.stats.StateChange(gpu.StateTextureBind)
}

// Bound returns the handle bound to unit.
func (u *Units) Bound(unit Unit) gpu.Handle { return u.bound[unit] }

// Enable toggles whether draws sample unit. Disabled units keep their binding.
func (u *Units) Enable(unit Unit, enabled bool) { u.enabled[unit] = enabled }

// Enabled reports whether unit is sampled.
func (u *Units) Enabled(unit Unit) bool { return u.enabled[unit] }

// Forget drops cached bindings of h, used when a texture is deleted.
func (u *Units) Forget(h gpu.Handle) {
	for i := range u.bound {
		if u.bound[i] == h {
			u.bound[i] = 0
		}
	}
}
