// Package attrib reconciles vertex attribute bindings against the active
// program and model, issuing only the native calls that changed.
package attrib

import "github.com/Faultbox/quetoo-render/internal/engine/gpu"

// Flags is the render state the desired attribute set depends on.
type Flags struct {
	Color       bool // per-vertex color arrays
	Lighting    bool
	Shell       bool
	Bumpmap     bool
	Interpolate bool // frame interpolation through next-* attributes
	Diffuse     bool // diffuse texture unit enabled
	Lightmap    bool // lightmap texture unit enabled

	// Geometry is always included, e.g. particle instance fields.
	Geometry gpu.AttribMask
}

// ArraysMask returns the attributes f asks for.
func ArraysMask(f Flags) gpu.AttribMask {
	mask := gpu.MaskPosition
	if f.Interpolate {
		mask |= gpu.MaskNextPosition
	}
	if f.Color {
		mask |= gpu.MaskColor
	}
	if f.Lighting || f.Shell {
		mask |= gpu.MaskNormal
		if f.Interpolate {
			mask |= gpu.MaskNextNormal
		}
	}
	if f.Lighting && f.Bumpmap {
		mask |= gpu.MaskTangent | gpu.MaskBitangent
		if f.Interpolate {
			mask |= gpu.MaskNextTangent | gpu.MaskNextBitangent
		}
	}
	if f.Diffuse {
		mask |= gpu.MaskDiffuseUV
	}
	if f.Lightmap {
		mask |= gpu.MaskLightmapUV
	}
	return mask | f.Geometry
}

// shellMask is rebound from a shell buffer whenever shells are drawn.
const shellMask = gpu.MaskPosition | gpu.MaskNextPosition | gpu.MaskNormal | gpu.MaskNextNormal
