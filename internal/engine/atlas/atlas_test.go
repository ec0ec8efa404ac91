package atlas

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu/gputest"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func newTextures(maxSize int) (*texture.Manager, *gputest.Recorder) {
	dev := gputest.New(maxSize)
	return texture.NewManager(dev, texture.NewUnits(dev, nil), nil), dev
}

func TestAtlasDedup(t *testing.T) {
	a := New("pics", 1, nil)
	src := solid(4, 4, color.RGBA{G: 255, A: 255})

	first := a.Add("pics/a", src)
	if a.Add("pics/a", solid(2, 2, color.RGBA{})) != first {
		t.Error("expected dedup by name")
	}
	if a.Add("pics/alias", src) != first {
		t.Error("expected dedup by source image")
	}
	if a.Find(src) != first || a.Lookup("pics/alias") != first {
		t.Error("expected lookups to resolve to the first entry")
	}
	if a.Len() != 1 {
		t.Errorf("expected 1 image, got %d", a.Len())
	}
}

func TestAtlasCompile(t *testing.T) {
	tm, dev := newTextures(1024)
	a := New("pics", 1, nil)

	red := a.Add("red", solid(8, 8, color.RGBA{R: 255, A: 255}))
	blue := a.Add("blue", solid(16, 4, color.RGBA{B: 255, A: 255}))
	miss := a.Add("missing", nil)

	if err := a.Compile(tm, texture.Options{}); err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(a.Textures) != 1 {
		t.Fatalf("expected 1 texture, got %d", len(a.Textures))
	}

	rec := dev.Textures[a.Textures[0].Handle]
	if rec.Width != a.Width || rec.Height != a.Height {
		t.Errorf("uploaded %dx%d, atlas is %dx%d", rec.Width, rec.Height, a.Width, a.Height)
	}

	for _, img := range []*Image{red, blue, miss} {
		tc := img.TexCoords
		wantS := float32(img.X+img.Width) / float32(a.Width)
		if tc[0] < 0 || tc[2] > 1 || tc[2] != wantS {
			t.Errorf("%s: bad texcoords %v", img.Name, tc)
		}
		off := (img.Y*a.Width + img.X) * 4
		if img.Name == "red" && rec.Pixels[off] != 255 {
			t.Errorf("red image not composed at %d,%d", img.X, img.Y)
		}
		if img.Name == "blue" && rec.Pixels[off+2] != 255 {
			t.Errorf("blue image not composed at %d,%d", img.X, img.Y)
		}
	}
	if miss.Width != 1 || miss.Height != 1 {
		t.Error("expected 1x1 placeholder for a missing image")
	}

	old := a.Textures[0].Handle
	if err := a.Compile(tm, texture.Options{}); err != nil {
		t.Fatalf("recompile failed: %v", err)
	}
	if _, ok := dev.Textures[old]; ok {
		t.Error("expected recompile to replace the old texture")
	}
}

func TestAtlasTooLarge(t *testing.T) {
	tm, _ := newTextures(32)
	a := New("big", 1, nil)
	a.Add("a", solid(32, 32, color.RGBA{}))
	a.Add("b", solid(32, 32, color.RGBA{}))

	if err := a.Compile(tm, texture.Options{}); !errors.Is(err, ErrAtlasTooLarge) {
		t.Errorf("expected ErrAtlasTooLarge, got %v", err)
	}
}

func TestAtlasLayers(t *testing.T) {
	tm, _ := newTextures(256)
	a := New("materials", 2, nil)
	a.Add("wall", solid(4, 4, color.RGBA{R: 1, A: 255}), solid(4, 4, color.RGBA{B: 255, A: 255}))
	a.Add("floor", solid(4, 4, color.RGBA{R: 2, A: 255}))

	if err := a.Compile(tm, texture.Options{Params: gpu.TextureParams{MinFilter: gpu.Nearest}}); err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(a.Textures) != 2 {
		t.Errorf("expected one texture per layer, got %d", len(a.Textures))
	}
	a.Free(tm)
	if tm.Live() != 0 {
		t.Errorf("expected textures freed, %d live", tm.Live())
	}
}
