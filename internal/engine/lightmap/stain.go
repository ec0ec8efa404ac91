package lightmap

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/texture"
)

// Stainmap is a modulation layer over one lightmap atlas. Unstained luxels
// are white.
type Stainmap struct {
	Atlas   *Atlas
	Texture *texture.Texture
	Image   *image.RGBA

	dirty image.Rectangle
}

// NewStainmap uploads a clean stainmap sized to a.
func NewStainmap(tm *texture.Manager, a *Atlas) (*Stainmap, error) {
	img := image.NewRGBA(image.Rect(0, 0, a.Width, a.Height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	tex, err := tm.Upload2D("stainmap", img, texture.LightmapOptions())
	if err != nil {
		return nil, err
	}
	return &Stainmap{Atlas: a, Texture: tex, Image: img}, nil
}

// Stain darkens the luxels of blk within radius luxels of the world
// position pos toward c, weighted by distance and by the alpha of c. It
// reports whether any luxel changed.
func (s *Stainmap) Stain(blk *Block, pos mgl32.Vec3, radius float32, c color.RGBA) bool {
	if blk.Atlas != s.Atlas || radius <= 0 || c.A == 0 {
		return false
	}
	center := blk.Luxel(pos)
	tint := mgl32.Vec3{float32(c.R), float32(c.G), float32(c.B)}.Mul(1.0 / 255)
	alpha := float32(c.A) / 255

	x0 := max(0, int(math.Floor(float64(center[0]-radius))))
	y0 := max(0, int(math.Floor(float64(center[1]-radius))))
	x1 := min(blk.Width-1, int(math.Ceil(float64(center[0]+radius))))
	y1 := min(blk.Height-1, int(math.Ceil(float64(center[1]+radius))))

	var changed image.Rectangle
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			d := mgl32.Vec2{float32(x), float32(y)}.Sub(center).Len()
			if d >= radius {
				continue
			}
			k := (1 - d/radius) * alpha
			px, py := blk.S+x, blk.T+y
			off := s.Image.PixOffset(px, py)
			for i := 0; i < 3; i++ {
				v := float32(s.Image.Pix[off+i]) / 255
				v *= 1 - k + k*tint[i]
				s.Image.Pix[off+i] = uint8(v*255 + 0.5)
			}
			changed = changed.Union(image.Rect(px, py, px+1, py+1))
		}
	}
	if changed.Empty() {
		return false
	}
	s.dirty = s.dirty.Union(changed)
	return true
}

// Dirty returns the region changed since the last Flush.
func (s *Stainmap) Dirty() image.Rectangle { return s.dirty }

// Clear removes every stain.
func (s *Stainmap) Clear() {
	for i := range s.Image.Pix {
		s.Image.Pix[i] = 255
	}
	s.dirty = s.Image.Bounds()
}

// Flush uploads the dirty region.
func (s *Stainmap) Flush(tm *texture.Manager) {
	if s.dirty.Empty() {
		return
	}
	r := s.dirty
	row := r.Dx() * 4
	pixels := make([]byte, 0, row*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := s.Image.PixOffset(r.Min.X, y)
		pixels = append(pixels, s.Image.Pix[off:off+row]...)
	}
	tm.UpdateRegion(s.Texture, texture.UnitStainmap, 0, r, pixels)
	s.dirty = image.Rectangle{}
}
