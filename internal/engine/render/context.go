// Package render ties the GPU core together: it owns every subsystem for
// one native context and drives the per-frame world, entity, sprite and 2D
// passes.
package render

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/config"
	"github.com/Faultbox/quetoo-render/internal/engine/atlas"
	"github.com/Faultbox/quetoo-render/internal/engine/attrib"
	"github.com/Faultbox/quetoo-render/internal/engine/bsp"
	"github.com/Faultbox/quetoo-render/internal/engine/buffer"
	"github.com/Faultbox/quetoo-render/internal/engine/draw"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/lightmap"
	"github.com/Faultbox/quetoo-render/internal/engine/program"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
	"github.com/Faultbox/quetoo-render/internal/logger"
	"github.com/Faultbox/quetoo-render/pkg/formats"
)

// programs are the loaded shader variants.
type programs struct {
	world    *program.Program
	def      *program.Default
	warp     *program.Program
	shell    *program.Program
	stain    *program.Program
	particle *program.Program
	corona   *program.Program
	null     *program.Program
}

// Context is the renderer of one native context. It must be used from the
// thread owning that context.
type Context struct {
	cfg *config.Config
	dev gpu.Device
	log *zap.Logger

	Stats     *gpu.Stats
	Errors    *gpu.ErrorCheck
	Buffers   *buffer.Manager
	Attribs   *attrib.State
	Units     *texture.Units
	Textures  *texture.Manager
	Programs  *program.State
	Draw      *draw.Dispatcher
	Materials *bsp.Materials
	Lightmaps *lightmap.Builder
	Loader    *bsp.Loader

	// World is the loaded map, nil between maps.
	World   *bsp.Model
	stains  []*lightmap.Stainmap
	stained bool

	pics    *atlas.Atlas
	sprites sprites
	ui      surface2D

	state *glState
	progs programs
	info  gpu.DeviceInfo

	shots sync.WaitGroup
}

// New builds every subsystem over dev and loads the shader programs.
func New(dev gpu.Device, cfg *config.Config, log *zap.Logger) (*Context, error) {
	log = logger.Or(log, "render")
	rc := &cfg.Renderer

	c := &Context{cfg: cfg, dev: dev, log: log, Stats: &gpu.Stats{}, info: dev.Info()}
	c.Errors = gpu.NewErrorCheck(dev, log.Named("gl"), rc.CheckErrors, rc.MaxErrors)
	c.Buffers = buffer.NewManager(dev, c.Stats, log.Named("buffer"))
	c.Attribs = attrib.New(dev, c.Buffers, c.Stats, log.Named("attrib"))
	c.Units = texture.NewUnits(dev, c.Stats)
	c.Textures = texture.NewManager(dev, c.Units, log.Named("texture"))
	c.Textures.Limit(rc.MaxTextureSize)
	c.Programs = program.NewState(dev, c.Attribs, c.Stats, rc.ShaderDir, log.Named("program"))
	c.Draw = draw.NewDispatcher(dev, c.Attribs, c.Stats)
	c.state = newGLState(dev, c.Stats)

	if err := c.loadPrograms(); err != nil {
		c.Programs.Shutdown()
		return nil, err
	}

	defs, err := bsp.LoadMaterialDefs(filepath.Join(cfg.Data.BasePath, "materials.yaml"))
	if err != nil {
		log.Warn("material definitions not loaded", zap.Error(err))
		defs = nil
	}
	c.Materials = bsp.NewMaterials(cfg.Data.BasePath, c.Textures, defs, log.Named("bsp"))

	if rc.Lighting {
		c.Lightmaps = lightmap.NewBuilder(c.Textures, lightmap.Config{
			CacheDir: rc.CacheDir,
			MaxSize:  rc.LightmapMaxSize,
			Filter: lightmap.Filter{
				Brightness: rc.Lightmap.Brightness,
				Contrast:   rc.Lightmap.Contrast,
				Saturation: rc.Lightmap.Saturation,
				Modulate:   rc.Lightmap.Modulate,
			},
		}, log.Named("lightmap"))
	}
	c.Loader = bsp.NewLoader(c.Buffers, c.Textures, c.Materials, c.Lightmaps, log.Named("bsp"))
	c.Loader.LuxelSize = rc.LuxelSize

	c.pics = atlas.New("pics", 1, log.Named("atlas"))

	c.state.enable(gpu.DepthTest, true)
	c.state.enable(gpu.CullFace, true)
	c.Errors.Check("init")

	log.Info("renderer initialized",
		zap.String("vendor", c.info.Vendor),
		zap.String("renderer", c.info.Renderer),
		zap.String("version", c.info.Version),
		zap.Int("max_texture_size", c.Textures.MaxSize()),
		zap.Int("programs", len(c.Programs.Programs())))
	return c, nil
}

func (c *Context) loadPrograms() error {
	c.progs.def = program.NewDefault(c.Units)
	load := []struct {
		dst **program.Program
		v   program.Variant
	}{
		{&c.progs.world, c.progs.def},
		{&c.progs.warp, &program.Warp{}},
		{&c.progs.shell, &program.Shell{}},
		{&c.progs.stain, program.Stain{}},
		{&c.progs.particle, &program.Particle{}},
		{&c.progs.corona, program.Corona{}},
		{&c.progs.null, &program.Null{}},
	}
	for _, l := range load {
		p, err := c.Programs.Load(l.v)
		if err != nil {
			return fmt.Errorf("loading program %s: %w", l.v.Name(), err)
		}
		*l.dst = p
	}
	return nil
}

// Config returns the configuration the context was built with.
func (c *Context) Config() *config.Config { return c.cfg }

// MapPath returns the file of the named map under the data base path.
func (c *Context) MapPath(name string) string {
	return filepath.Join(c.cfg.Data.BasePath, "maps", name+".bsp")
}

// LoadMap replaces the world with the named map.
func (c *Context) LoadMap(name string) error {
	path := c.MapPath(name)
	data, err := formats.LoadBSP(path)
	if err != nil {
		return fmt.Errorf("loading map %s: %w", name, err)
	}
	src, err := lightmap.StatSource(path, name, data.Directional())
	if err != nil {
		return fmt.Errorf("loading map %s: %w", name, err)
	}
	return c.LoadWorld(src, data)
}

// LoadWorld replaces the world with decoded map data.
func (c *Context) LoadWorld(src lightmap.Source, data *formats.BSP) error {
	c.UnloadMap()

	m, err := c.Loader.Load(src, data)
	if err != nil {
		return err
	}
	c.World = m

	if c.cfg.Renderer.Stains && m.Lightmaps != nil {
		for _, a := range m.Lightmaps.Atlases {
			s, err := lightmap.NewStainmap(c.Textures, a)
			if err != nil {
				c.log.Warn("stainmap not created", zap.String("map", m.Name), zap.Error(err))
				continue
			}
			c.stains = append(c.stains, s)
		}
	}
	c.Errors.Check("load map")
	return nil
}

// UnloadMap releases the world, its stainmaps and its materials.
func (c *Context) UnloadMap() {
	for _, s := range c.stains {
		c.Textures.Delete(s.Texture)
	}
	c.stains = nil
	c.stained = false

	if c.World != nil {
		c.Loader.Unload(c.World)
		c.World = nil
	}
	c.Materials.Free()
	c.Attribs.Reset()
}

// stainmap returns the stainmap of a lightmap atlas, or nil.
func (c *Context) stainmap(a *lightmap.Atlas) *lightmap.Stainmap {
	for _, s := range c.stains {
		if s.Atlas == a {
			return s
		}
	}
	return nil
}

// Shutdown waits for pending screenshots and releases every native object.
// It returns the number of buffers that were still live.
func (c *Context) Shutdown() int {
	c.shots.Wait()
	c.UnloadMap()

	c.pics.Free(c.Textures)
	c.sprites.destroy(c.Buffers)
	c.ui.destroy(c.Buffers)

	c.Programs.Shutdown()
	c.Textures.Shutdown()
	c.Errors.Check("shutdown")
	return c.Buffers.Shutdown()
}
