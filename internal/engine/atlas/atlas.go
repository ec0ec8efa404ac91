package atlas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/quetoo-render/internal/engine/texture"
	"github.com/Faultbox/quetoo-render/internal/logger"
)

// ErrAtlasTooLarge is returned when an atlas cannot fit within the device's
// maximum texture size.
var ErrAtlasTooLarge = errors.New("atlas: exceeds max texture size")

// Image is one source image placed in an atlas.
type Image struct {
	Name   string
	Layers []image.Image
	Width  int
	Height int

	// valid after Compile
	X, Y      int
	TexCoords mgl32.Vec4 // s0, t0, s1, t1
	Texture   *texture.Texture
}

// Atlas packs images into one texture per layer.
type Atlas struct {
	Name   string
	layers int
	log    *zap.Logger

	images   []*Image
	byName   map[string]*Image
	bySource map[image.Image]*Image

	Width    int
	Height   int
	Textures []*texture.Texture
}

// New returns an empty atlas with the given layer count.
func New(name string, layers int, log *zap.Logger) *Atlas {
	return &Atlas{
		Name:     name,
		layers:   max(layers, 1),
		log:      logger.Or(log, "atlas"),
		byName:   make(map[string]*Image),
		bySource: make(map[image.Image]*Image),
	}
}

// Len returns the number of distinct images.
func (a *Atlas) Len() int { return len(a.images) }

// Find returns the image inserted for src, or nil.
func (a *Atlas) Find(src image.Image) *Image { return a.bySource[src] }

// Lookup returns the image inserted under name, or nil.
func (a *Atlas) Lookup(name string) *Image { return a.byName[name] }

// Add inserts an image by name. Re-adding a name or a source image already
// present returns the existing entry. A nil first layer is replaced by an
// opaque red texel so misses stay visible. Added images are placed on the
// next Compile.
func (a *Atlas) Add(name string, layers ...image.Image) *Image {
	if img := a.byName[name]; img != nil {
		return img
	}
	if len(layers) > 0 && layers[0] != nil {
		if img := a.bySource[layers[0]]; img != nil {
			a.byName[name] = img
			return img
		}
	}

	if len(layers) == 0 || layers[0] == nil {
		a.log.Warn("failed to load atlas image", zap.String("atlas", a.Name), zap.String("image", name))
		miss := image.NewRGBA(image.Rect(0, 0, 1, 1))
		miss.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
		layers = []image.Image{miss}
	}
	for len(layers) < a.layers {
		layers = append(layers, nil)
	}

	b := layers[0].Bounds()
	img := &Image{Name: name, Layers: layers[:a.layers], Width: b.Dx(), Height: b.Dy()}
	a.images = append(a.images, img)
	a.byName[name] = img
	a.bySource[layers[0]] = img
	return img
}

// Compile packs every image largest first, composes each layer and uploads
// it. Previously compiled textures are replaced.
func (a *Atlas) Compile(tm *texture.Manager, opts texture.Options) error {
	if len(a.images) == 0 {
		return nil
	}

	order := make([]*Image, len(a.images))
	copy(order, a.images)
	sort.SliceStable(order, func(i, j int) bool {
		ai, aj := order[i], order[j]
		if ai.Width*ai.Height != aj.Width*aj.Height {
			return ai.Width*ai.Height > aj.Width*aj.Height
		}
		if ai.Height != aj.Height {
			return ai.Height > aj.Height
		}
		return ai.Width > aj.Width
	})

	limit := uint32(tm.MaxSize())
	p := NewPacker(limit, limit, uint32(order[0].Width), uint32(order[0].Height), len(order)*2+1)
	for _, img := range order {
		n, ok := p.Insert(uint32(img.Width), uint32(img.Height))
		if !ok {
			return fmt.Errorf("%w: %s with %d images, limit %d", ErrAtlasTooLarge, a.Name, len(order), limit)
		}
		img.X, img.Y = int(n.X), int(n.Y)
	}

	w, h := int(p.Width()), int(p.Height())
	canvases := make([]*image.RGBA, a.layers)
	for layer := range canvases {
		canvases[layer] = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	for _, img := range order {
		for layer, src := range img.Layers {
			if src == nil {
				continue
			}
			dst := image.Rect(img.X, img.Y, img.X+img.Width, img.Y+img.Height)
			draw.NearestNeighbor.Scale(canvases[layer], dst, src, src.Bounds(), draw.Src, nil)
		}
	}

	for _, tex := range a.Textures {
		tm.Delete(tex)
	}
	a.Textures = a.Textures[:0]
	for layer, canvas := range canvases {
		tex, err := tm.Upload2D(fmt.Sprintf("%s layer %d", a.Name, layer), canvas, opts)
		if err != nil {
			return fmt.Errorf("atlas %s: %w", a.Name, err)
		}
		a.Textures = append(a.Textures, tex)
	}

	a.Width, a.Height = w, h
	fw, fh := float32(w), float32(h)
	for _, img := range a.images {
		img.Texture = a.Textures[0]
		img.TexCoords = mgl32.Vec4{
			float32(img.X) / fw,
			float32(img.Y) / fh,
			float32(img.X+img.Width) / fw,
			float32(img.Y+img.Height) / fh,
		}
	}

	a.log.Debug("atlas compiled", zap.String("atlas", a.Name), zap.Int("images", len(a.images)),
		zap.Int("width", w), zap.Int("height", h))
	return nil
}

// Free deletes the atlas textures.
func (a *Atlas) Free(tm *texture.Manager) {
	for _, tex := range a.Textures {
		tm.Delete(tex)
	}
	a.Textures = nil
}
