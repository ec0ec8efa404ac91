package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned for settings the renderer cannot use.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks settings that have no safe fallback and normalizes the
// screenshot format.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}

	r := &c.Renderer
	if r.LightmapMaxSize <= 0 {
		return fmt.Errorf("%w: lightmap_max_size %d", ErrInvalidConfig, r.LightmapMaxSize)
	}
	if r.LuxelSize <= 0 {
		return fmt.Errorf("%w: luxel_size %d", ErrInvalidConfig, r.LuxelSize)
	}
	if r.MaxTextureSize < 0 || r.MaxErrors < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidConfig)
	}

	switch f := strings.ToLower(c.Screenshot.Format); f {
	case "png", "jpeg":
		c.Screenshot.Format = f
	case "jpg":
		c.Screenshot.Format = "jpeg"
	default:
		return fmt.Errorf("%w: screenshot format %q", ErrInvalidConfig, c.Screenshot.Format)
	}
	if c.Screenshot.Quality < 1 || c.Screenshot.Quality > 100 {
		return fmt.Errorf("%w: screenshot quality %d", ErrInvalidConfig, c.Screenshot.Quality)
	}
	return nil
}
