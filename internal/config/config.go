// Package config handles renderer configuration loading and management.
package config

// Config holds all renderer settings.
type Config struct {
	Window     WindowConfig     `yaml:"window"`
	Renderer   RendererConfig   `yaml:"renderer"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Data       DataConfig       `yaml:"data"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// RendererConfig holds GPU core settings.
type RendererConfig struct {
	ShaderDir string `yaml:"shader_dir"` // Overrides built-in shaders when set
	CacheDir  string `yaml:"cache_dir"`  // Lightmap cache location

	MaxTextureSize  int `yaml:"max_texture_size"`  // 0 uses the device limit
	LightmapMaxSize int `yaml:"lightmap_max_size"` // Largest lightmap atlas edge
	LuxelSize       int `yaml:"luxel_size"`        // Used when the map sets none

	Lighting bool `yaml:"lighting"`
	Bumpmap  bool `yaml:"bumpmap"`
	Shell    bool `yaml:"shell"`
	Stains   bool `yaml:"stains"`

	CheckErrors bool `yaml:"check_errors"`
	MaxErrors   int  `yaml:"max_errors"`

	Lightmap LightmapConfig `yaml:"lightmap"`
}

// LightmapConfig is the filter applied to raw lightmap samples.
type LightmapConfig struct {
	Brightness float32 `yaml:"brightness"`
	Contrast   float32 `yaml:"contrast"`
	Saturation float32 `yaml:"saturation"`
	Modulate   float32 `yaml:"modulate"`
}

// ScreenshotConfig holds screenshot output settings.
type ScreenshotConfig struct {
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"`  // png or jpeg
	Quality int    `yaml:"quality"` // jpeg quality 1-100
}

// DataConfig holds game data paths.
type DataConfig struct {
	BasePath string `yaml:"base_path"` // Root holding maps/ and textures/
	Map      string `yaml:"map"`       // Map loaded at startup, e.g. edge
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Renderer: RendererConfig{
			CacheDir:        "cache",
			LightmapMaxSize: 4096,
			LuxelSize:       16,
			Lighting:        true,
			Bumpmap:         true,
			Shell:           true,
			Stains:          true,
			CheckErrors:     false,
			MaxErrors:       32,
			Lightmap: LightmapConfig{
				Brightness: 1,
				Contrast:   1,
				Saturation: 1,
				Modulate:   1,
			},
		},
		Screenshot: ScreenshotConfig{
			Dir:     "screenshots",
			Format:  "png",
			Quality: 90,
		},
		Data: DataConfig{
			BasePath: "default",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
