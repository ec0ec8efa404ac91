package render

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ScreenshotImage converts bottom-up RGB rows into a top-down image.
func ScreenshotImage(pixels []byte, width, height int) (*image.RGBA, error) {
	if len(pixels) != width*height*3 {
		return nil, fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*3, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 3
	for y := 0; y < height; y++ {
		src := pixels[(height-1-y)*row:][:row]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img, nil
}

// EncodeScreenshot writes img as png, or as jpeg at quality.
func EncodeScreenshot(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png", "":
		return png.Encode(w, img)
	}
	return fmt.Errorf("unsupported screenshot format %q", format)
}

// ScreenshotName returns the file a screenshot taken at t is written to.
func ScreenshotName(dir, format string, t time.Time) string {
	ext := "png"
	if format == "jpeg" || format == "jpg" {
		ext = "jpg"
	}
	name := fmt.Sprintf("quetoo_%s.%s", t.Format("2006-01-02_15-04-05.000"), ext)
	if dir != "" {
		name = filepath.Join(dir, name)
	}
	return name
}

// Screenshot copies the pixels of r and writes them in the background. It
// returns the target file name; encode failures are logged.
func (c *Context) Screenshot(r image.Rectangle) string {
	sc := c.cfg.Screenshot
	pixels := c.dev.ReadPixels(r)
	file := ScreenshotName(sc.Dir, sc.Format, time.Now())
	width, height := r.Dx(), r.Dy()

	c.shots.Add(1)
	go func() {
		defer c.shots.Done()
		if err := writeScreenshot(file, pixels, width, height, sc.Format, sc.Quality); err != nil {
			c.log.Error("screenshot failed", zap.String("file", file), zap.Error(err))
			return
		}
		c.log.Info("screenshot saved", zap.String("file", file))
	}()
	return file
}

// WaitScreenshots blocks until every pending screenshot is written.
func (c *Context) WaitScreenshots() { c.shots.Wait() }

func writeScreenshot(file string, pixels []byte, width, height int, format string, quality int) error {
	img, err := ScreenshotImage(pixels, width, height)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := EncodeScreenshot(w, img, format, quality); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
