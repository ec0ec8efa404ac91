package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
)

func tgaHeader(kind byte, w, h int, bpp int, descriptor byte) []byte {
	hdr := make([]byte, tgaHeaderSize)
	hdr[2] = kind
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = byte(bpp)
	hdr[17] = descriptor
	return hdr
}

func TestDecodeTGA(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want map[image.Point]color.RGBA
	}{
		{
			name: "uncompressed bottom origin",
			data: append(tgaHeader(tgaTrueColor, 1, 2, 24, 0), 0, 0, 255, 0, 255, 0),
			want: map[image.Point]color.RGBA{
				{0, 1}: {R: 255, A: 255},
				{0, 0}: {G: 255, A: 255},
			},
		},
		{
			name: "rle top origin with alpha",
			data: append(tgaHeader(tgaTrueColorRLE, 3, 1, 32, tgaTopOrigin), 0x81, 255, 0, 0, 128, 0x00, 1, 2, 3, 4),
			want: map[image.Point]color.RGBA{
				{0, 0}: {B: 255, A: 128},
				{1, 0}: {B: 255, A: 128},
				{2, 0}: {R: 3, G: 2, B: 1, A: 4},
			},
		},
		{
			name: "grayscale",
			data: append(tgaHeader(tgaGray, 2, 1, 8, tgaTopOrigin), 10, 200),
			want: map[image.Point]color.RGBA{
				{0, 0}: {R: 10, G: 10, B: 10, A: 255},
				{1, 0}: {R: 200, G: 200, B: 200, A: 255},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeTGA(tt.data)
			if err != nil {
				t.Fatalf("DecodeTGA failed: %v", err)
			}
			for p, want := range tt.want {
				if got := img.RGBAAt(p.X, p.Y); got != want {
					t.Errorf("pixel %v: expected %v, got %v", p, want, got)
				}
			}
		})
	}
}

func TestDecodeTGA_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte{0, 0, 2}},
		{"color mapped", func() []byte { h := tgaHeader(1, 1, 1, 8, 0); h[1] = 1; return h }()},
		{"bad depth", append(tgaHeader(tgaTrueColor, 1, 1, 16, 0), 0, 0)},
		{"truncated pixels", append(tgaHeader(tgaTrueColor, 2, 2, 24, 0), 1, 2, 3)},
		{"truncated run", append(tgaHeader(tgaTrueColorRLE, 4, 1, 24, 0), 0x83)},
		{"empty", tgaHeader(tgaTrueColor, 0, 0, 24, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTGA(tt.data); !errors.Is(err, ErrBadTGA) {
				t.Errorf("expected ErrBadTGA, got %v", err)
			}
		})
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "textures"), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, "textures", "floor.png"))
	if err != nil {
		t.Fatal(err)
	}
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img, path, err := LoadImage(dir, "textures/floor")
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if !strings.HasSuffix(path, "floor.png") {
		t.Errorf("expected png path, got %s", path)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Errorf("expected 4x2 image, got %v", img.Bounds())
	}

	if _, _, err := LoadImage(dir, "textures/missing"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("expected ErrImageNotFound, got %v", err)
	}
}

func TestLoadImageBMP(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 3, 5))
	src.SetRGBA(1, 2, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "conchars.bmp"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	img, path, err := LoadImage(dir, "conchars")
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if !strings.HasSuffix(path, "conchars.bmp") {
		t.Errorf("expected bmp path, got %s", path)
	}
	r, g, b, _ := img.At(1, 2).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Errorf("expected (200, 100, 50), got (%d, %d, %d)", r>>8, g>>8, b>>8)
	}
}
