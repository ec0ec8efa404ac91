package gpu

// Attribute identifies a fixed vertex attribute location.
type Attribute int8

const (
	AttribPosition Attribute = iota
	AttribNextPosition
	AttribNormal
	AttribNextNormal
	AttribTangent
	AttribNextTangent
	AttribBitangent
	AttribNextBitangent
	AttribColor
	AttribDiffuseUV
	AttribLightmapUV
	AttribParticleScale
	AttribParticleRoll
	AttribParticleEnd
	AttribParticleType

	// NumAttributes is the count of per-vertex attribute locations.
	NumAttributes

	// AttribElement is the element index slot. It has no shader location.
	AttribElement Attribute = NumAttributes
	// AttribAll addresses every per-vertex slot plus the element slot.
	AttribAll Attribute = NumAttributes + 1

	// AttribNone terminates interleave layout tables.
	AttribNone Attribute = -1
)

var attributeNames = [...]string{
	AttribPosition:      "in_position",
	AttribNextPosition:  "in_next_position",
	AttribNormal:        "in_normal",
	AttribNextNormal:    "in_next_normal",
	AttribTangent:       "in_tangent",
	AttribNextTangent:   "in_next_tangent",
	AttribBitangent:     "in_bitangent",
	AttribNextBitangent: "in_next_bitangent",
	AttribColor:         "in_color",
	AttribDiffuseUV:     "in_diffuse",
	AttribLightmapUV:    "in_lightmap",
	AttribParticleScale: "in_scale",
	AttribParticleRoll:  "in_roll",
	AttribParticleEnd:   "in_end",
	AttribParticleType:  "in_type",
}

// Name returns the shader input variable bound to the attribute's location.
func (a Attribute) Name() string {
	if a >= 0 && a < NumAttributes {
		return attributeNames[a]
	}
	switch a {
	case AttribElement:
		return "element"
	case AttribAll:
		return "all"
	}
	return "none"
}

func (a Attribute) String() string { return a.Name() }

// Valid reports whether a is a per-vertex attribute location.
func (a Attribute) Valid() bool { return a >= 0 && a < NumAttributes }

// IsNext reports whether a is a frame interpolation target.
func (a Attribute) IsNext() bool {
	switch a {
	case AttribNextPosition, AttribNextNormal, AttribNextTangent, AttribNextBitangent:
		return true
	}
	return false
}

// Base returns the current-frame attribute an interpolation target reads its
// layout from. Other attributes return themselves.
func (a Attribute) Base() Attribute {
	if a.IsNext() {
		return a - 1
	}
	return a
}

// Bit returns the mask bit of a.
func (a Attribute) Bit() AttribMask {
	if a < 0 || a > AttribElement {
		return 0
	}
	return 1 << uint(a)
}

// AttribMask is a set of attributes.
type AttribMask uint32

const (
	MaskPosition      = AttribMask(1 << AttribPosition)
	MaskNextPosition  = AttribMask(1 << AttribNextPosition)
	MaskNormal        = AttribMask(1 << AttribNormal)
	MaskNextNormal    = AttribMask(1 << AttribNextNormal)
	MaskTangent       = AttribMask(1 << AttribTangent)
	MaskNextTangent   = AttribMask(1 << AttribNextTangent)
	MaskBitangent     = AttribMask(1 << AttribBitangent)
	MaskNextBitangent = AttribMask(1 << AttribNextBitangent)
	MaskColor         = AttribMask(1 << AttribColor)
	MaskDiffuseUV     = AttribMask(1 << AttribDiffuseUV)
	MaskLightmapUV    = AttribMask(1 << AttribLightmapUV)
	MaskParticleScale = AttribMask(1 << AttribParticleScale)
	MaskParticleRoll  = AttribMask(1 << AttribParticleRoll)
	MaskParticleEnd   = AttribMask(1 << AttribParticleEnd)
	MaskParticleType  = AttribMask(1 << AttribParticleType)
	MaskElement       = AttribMask(1 << AttribElement)

	// MaskVertex covers every per-vertex attribute.
	MaskVertex = AttribMask(1<<NumAttributes) - 1
	// MaskAll covers every per-vertex attribute and the element slot.
	MaskAll = MaskVertex | MaskElement

	MaskParticle = MaskParticleScale | MaskParticleRoll | MaskParticleEnd | MaskParticleType
)

// Has reports whether a is in m.
func (m AttribMask) Has(a Attribute) bool { return m&a.Bit() != 0 }

// Each calls fn for every per-vertex attribute in m in location order.
func (m AttribMask) Each(fn func(Attribute)) {
	for a := AttribPosition; a < NumAttributes; a++ {
		if m&a.Bit() != 0 {
			fn(a)
		}
	}
}
