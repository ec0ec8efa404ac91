package texture

import (
	"fmt"
	"image"
	"image/color"

	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/logger"
)

// Texture is an uploaded texture object.
type Texture struct {
	Name    string
	Handle  gpu.Handle
	Target  gpu.TextureTarget
	Format  gpu.PixelFormat
	Width   int
	Height  int
	Layers  int
	Mipmaps bool
}

// MipMode selects how mipmap chains are produced.
type MipMode uint8

const (
	MipNone MipMode = iota
	MipHardware
	MipSoftware
)

// Options control one upload.
type Options struct {
	Mip    MipMode
	Params gpu.TextureParams
}

// DefaultOptions filter linearly with mipmaps and repeat.
func DefaultOptions() Options {
	return Options{
		Mip: MipHardware,
		Params: gpu.TextureParams{
			MinFilter: gpu.LinearMipmapLinear,
			MagFilter: gpu.Linear,
			WrapS:     gpu.Repeat,
			WrapT:     gpu.Repeat,
		},
	}
}

// LightmapOptions clamp and filter without mipmaps.
func LightmapOptions() Options {
	return Options{
		Mip: MipNone,
		Params: gpu.TextureParams{
			MinFilter: gpu.Linear,
			MagFilter: gpu.Linear,
			WrapS:     gpu.ClampToEdge,
			WrapT:     gpu.ClampToEdge,
		},
	}
}

// Manager uploads and deletes textures.
type Manager struct {
	dev   gpu.Device
	units *Units
	log   *zap.Logger

	maxSize int
	live    map[gpu.Handle]*Texture
	null    *Texture
}

// NewManager returns a texture manager sharing unit state with the renderer.
func NewManager(dev gpu.Device, units *Units, log *zap.Logger) *Manager {
	return &Manager{
		dev:     dev,
		units:   units,
		log:     logger.Or(log, "texture"),
		maxSize: dev.Info().MaxTextureSize,
		live:    make(map[gpu.Handle]*Texture),
	}
}

// MaxSize returns the device's maximum texture dimension.
func (m *Manager) MaxSize() int { return m.maxSize }

// Limit lowers the maximum texture dimension to n. Zero or larger values
// keep the device limit.
func (m *Manager) Limit(n int) {
	if n > 0 && (m.maxSize <= 0 || n < m.maxSize) {
		m.maxSize = n
	}
}

// Units returns the shared unit state.
func (m *Manager) Units() *Units { return m.units }

// Live returns the number of live textures.
func (m *Manager) Live() int { return len(m.live) }

// Upload2D uploads img to a new 2D texture.
func (m *Manager) Upload2D(name string, img image.Image, opts Options) (*Texture, error) {
	rgba := ToRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	if w > m.maxSize || h > m.maxSize {
		return nil, fmt.Errorf("texture %s: %dx%d exceeds max texture size %d", name, w, h, m.maxSize)
	}

	tex := m.alloc(name, gpu.Texture2D, gpu.RGBA, w, h, 1)
	m.units.Bind(UnitDiffuse, tex)
	m.dev.SetTextureParams(gpu.Texture2D, opts.Params)
	m.dev.TexImage2D(0, w, h, gpu.RGBA, rgba.Pix)

	switch opts.Mip {
	case MipHardware:
		m.dev.GenerateMipmap(gpu.Texture2D)
		tex.Mipmaps = true
	case MipSoftware:
		for level, mip := range MipChain(rgba)[1:] {
			m.dev.TexImage2D(level+1, mip.Rect.Dx(), mip.Rect.Dy(), gpu.RGBA, mip.Pix)
		}
		tex.Mipmaps = true
	}
	return tex, nil
}

// UploadLayered uploads layers of tightly packed pixels, each width by
// height in format, to a new array texture.
func (m *Manager) UploadLayered(name string, width, height, layers int, format gpu.PixelFormat, pixels []byte, opts Options) (*Texture, error) {
	if width > m.maxSize || height > m.maxSize {
		return nil, fmt.Errorf("texture %s: %dx%d exceeds max texture size %d", name, width, height, m.maxSize)
	}
	if want := width * height * layers * format.Channels(); len(pixels) != want {
		return nil, fmt.Errorf("texture %s: %d bytes of pixels, want %d", name, len(pixels), want)
	}

	tex := m.alloc(name, gpu.Texture2DArray, format, width, height, layers)
	m.units.Bind(UnitLightmap, tex)
	m.dev.SetTextureParams(gpu.Texture2DArray, opts.Params)
	m.dev.TexImage3D(0, width, height, layers, format, pixels)
	if opts.Mip != MipNone {
		m.dev.GenerateMipmap(gpu.Texture2DArray)
		tex.Mipmaps = true
	}
	return tex, nil
}

// UpdateRegion replaces the rect of one layer of tex with pixels.
func (m *Manager) UpdateRegion(tex *Texture, unit Unit, layer int, r image.Rectangle, pixels []byte) {
	m.units.Bind(unit, tex)
	m.units.Select(unit)
	if tex.Target == gpu.Texture2DArray {
		m.dev.TexSubImage3D(0, r.Min.X, r.Min.Y, layer, r.Dx(), r.Dy(), 1, tex.Format, pixels)
	} else {
		m.dev.TexSubImage2D(0, r.Min.X, r.Min.Y, r.Dx(), r.Dy(), tex.Format, pixels)
	}
}

// Null returns the shared 1x1 white placeholder used for failed loads.
func (m *Manager) Null() *Texture {
	if m.null == nil {
		img := image.NewRGBA(image.Rect(0, 0, 1, 1))
		img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		tex, err := m.Upload2D("null", img, Options{Params: gpu.TextureParams{MinFilter: gpu.Nearest, MagFilter: gpu.Nearest}})
		if err != nil {
			panic(err)
		}
		m.null = tex
	}
	return m.null
}

// Delete releases tex.
func (m *Manager) Delete(tex *Texture) {
	if tex == nil || tex.Handle == 0 {
		return
	}
	m.units.Forget(tex.Handle)
	m.dev.DeleteTexture(tex.Handle)
	delete(m.live, tex.Handle)
	if tex == m.null {
		m.null = nil
	}
	tex.Handle = 0
}

// Shutdown deletes every live texture.
func (m *Manager) Shutdown() {
	for _, tex := range m.live {
		m.Delete(tex)
	}
}

func (m *Manager) alloc(name string, target gpu.TextureTarget, format gpu.PixelFormat, w, h, layers int) *Texture {
	tex := &Texture{
		Name:   name,
		Handle: m.dev.GenTexture(),
		Target: target,
		Format: format,
		Width:  w,
		Height: h,
		Layers: layers,
	}
	m.live[tex.Handle] = tex
	m.log.Debug("texture allocated", zap.String("name", name), zap.Int("width", w), zap.Int("height", h), zap.Int("layers", layers))
	return tex
}
