package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // registers the JPEG decoder
	_ "image/png"  // registers the PNG decoder
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp" // registers the BMP decoder
)

// ErrImageNotFound is returned when no file exists for an image name.
var ErrImageNotFound = errors.New("texture: image not found")

// ImageExtensions are tried in order when an image name has no extension.
var ImageExtensions = []string{".tga", ".png", ".jpg", ".bmp"}

// LoadImage reads the image name relative to base, trying each of
// ImageExtensions. It returns the path that was decoded.
func LoadImage(base, name string) (image.Image, string, error) {
	stem := filepath.Join(base, filepath.FromSlash(name))
	candidates := []string{stem}
	if filepath.Ext(stem) == "" {
		candidates = candidates[:0]
		for _, ext := range ImageExtensions {
			candidates = append(candidates, stem+ext)
		}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, path, err
		}
		img, err := DecodeImage(path, data)
		return img, path, err
	}
	return nil, "", fmt.Errorf("%w: %s", ErrImageNotFound, name)
}

// DecodeImage decodes data, choosing TGA by the extension of path and the
// registered decoders otherwise.
func DecodeImage(path string, data []byte) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		img, err := DecodeTGA(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}
