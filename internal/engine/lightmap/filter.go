package lightmap

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Filter adjusts raw lightmap color before atlasing.
type Filter struct {
	Brightness float32
	Contrast   float32
	Saturation float32
	Modulate   float32
}

// DefaultFilter leaves samples unchanged.
func DefaultFilter() Filter {
	return Filter{Brightness: 1, Contrast: 1, Saturation: 1, Modulate: 1}
}

// Identity reports whether f would not change any sample.
func (f Filter) Identity() bool { return f == DefaultFilter() || f == Filter{} }

var luminance = mgl32.Vec3{0.2125, 0.7154, 0.0721}

// Apply filters tightly packed RGB luxels in place.
func (f Filter) Apply(rgb []byte) {
	if f.Identity() {
		return
	}
	scale := f.Brightness * f.Modulate
	for i := 0; i+2 < len(rgb); i += 3 {
		c := mgl32.Vec3{float32(rgb[i]), float32(rgb[i+1]), float32(rgb[i+2])}.Mul(scale / 255)

		// rescale overbright luxels so hue survives the clamp
		if m := max(c[0], c[1], c[2]); m > 1 {
			c = c.Mul(1 / m)
		}

		l := c.Dot(luminance)
		gray := mgl32.Vec3{l, l, l}
		c = gray.Add(c.Sub(gray).Mul(f.Saturation))

		half := mgl32.Vec3{0.5, 0.5, 0.5}
		c = half.Add(c.Sub(half).Mul(f.Contrast))

		for j := 0; j < 3; j++ {
			rgb[i+j] = uint8(mgl32.Clamp(c[j], 0, 1)*255 + 0.5)
		}
	}
}
