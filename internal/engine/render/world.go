package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/quetoo-render/internal/engine/attrib"
	"github.com/Faultbox/quetoo-render/internal/engine/bsp"
	"github.com/Faultbox/quetoo-render/internal/engine/draw"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/lightmap"
	"github.com/Faultbox/quetoo-render/internal/engine/program"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
	"github.com/Faultbox/quetoo-render/pkg/formats"
)

// AlphaTestThreshold is the diffuse alpha below which alpha tested
// surfaces are discarded.
const AlphaTestThreshold = 0.5

var white = mgl32.Vec4{1, 1, 1, 1}

// surfaceState is what a run of surfaces drawn together shares.
type surfaceState struct {
	material *bsp.Material
	lightmap *lightmap.Atlas
	alpha    float32
}

func (c *Context) use(p *program.Program) {
	c.Programs.Use(p)
	c.Programs.UseMatrices()
}

func (c *Context) worldArrays() attrib.Arrays {
	return attrib.Arrays{Vertex: &c.World.VertexBuffer, Element: &c.World.ElementBuffer}
}

func (c *Context) worldFlags() attrib.Flags {
	rc := &c.cfg.Renderer
	return attrib.Flags{
		Lighting: rc.Lighting,
		Bumpmap:  rc.Bumpmap,
		Diffuse:  true,
		Lightmap: c.World.Lightmaps != nil,
	}
}

func (c *Context) drawWorld(v *View) {
	if c.World == nil {
		return
	}
	c.drawBuckets(&c.World.Buckets, mgl32.Ident4(), v.Time)
}

// drawInline draws submodel n of the world with the transform of e.
func (c *Context) drawInline(e *Entity, v *View) {
	if c.World == nil || e.Submodel <= 0 || e.Submodel >= len(c.World.Submodels) {
		return
	}
	sm := &c.World.Submodels[e.Submodel]
	if sm.NumSurfaces == 0 {
		return
	}
	c.drawBuckets(&sm.Buckets, EntityMatrix(e.Origin, e.Angles, e.Scale), v.Time)
}

// drawBuckets draws one model's surfaces: opaque, alpha tested, stains,
// opaque warps, then the translucent buckets without depth writes. Sky
// surfaces are left to the sky box.
func (c *Context) drawBuckets(b *bsp.Buckets, model mgl32.Mat4, time float32) {
	m := c.World
	arrays := c.worldArrays()
	flags := c.worldFlags()
	c.Programs.SetMatrix(program.ModelMatrix, model)
	c.Units.Enable(texture.UnitLightmap, flags.Lightmap)

	if len(b[bsp.BucketOpaque])+len(b[bsp.BucketAlphaTest]) > 0 {
		c.use(c.progs.world)
		c.Attribs.Reconcile(m, arrays, flags)
		c.Programs.UseTint(white)
		c.Programs.UseInterpolation(0)

		c.Programs.UseAlphaTest(0)
		c.drawSurfaces(b[bsp.BucketOpaque], true)
		c.Programs.UseAlphaTest(AlphaTestThreshold)
		c.drawSurfaces(b[bsp.BucketAlphaTest], true)
		c.Programs.UseAlphaTest(0)

		c.drawStains(b, arrays)
	}

	if warps := b[bsp.BucketOpaqueWarp]; len(warps) > 0 {
		c.use(c.progs.warp)
		c.Attribs.Reconcile(m, arrays, attrib.Flags{Diffuse: true})
		c.Programs.UseTime(time)
		c.Programs.UseTint(white)
		c.drawSurfaces(warps, false)
	}

	blend, blendWarp := b[bsp.BucketBlend], b[bsp.BucketBlendWarp]
	if len(blend)+len(blendWarp) == 0 {
		return
	}
	c.state.enable(gpu.Blend, true)
	c.state.blend(gpu.SrcAlpha, gpu.OneMinusSrcAlpha)
	c.state.depthWrite(false)

	if len(blend) > 0 {
		c.use(c.progs.world)
		c.Attribs.Reconcile(m, arrays, flags)
		c.Programs.UseInterpolation(0)
		c.drawSurfaces(blend, true)
		c.Programs.UseTint(white)
	}
	if len(blendWarp) > 0 {
		c.use(c.progs.warp)
		c.Attribs.Reconcile(m, arrays, attrib.Flags{Diffuse: true})
		c.Programs.UseTime(time)
		c.drawSurfaces(blendWarp, false)
		c.Programs.UseTint(white)
	}

	c.state.depthWrite(true)
	c.state.enable(gpu.Blend, false)
}

// surfaceAlpha is the translucency declared by the texinfo flags of s.
func surfaceAlpha(s *bsp.Surface) float32 {
	switch {
	case s.Has(formats.SurfBlend33):
		return 0.33
	case s.Has(formats.SurfBlend66):
		return 0.66
	}
	return 1
}

// drawSurfaces draws the listed world surfaces, batching contiguous
// element ranges of runs sharing material, lightmap atlas and alpha.
func (c *Context) drawSurfaces(list []int, lit bool) {
	if len(list) == 0 {
		return
	}
	c.Stats.Buckets++

	batch := draw.Batch{Mode: gpu.Triangles}
	var cur surfaceState
	first := true
	for _, i := range list {
		s := &c.World.Surfaces[i]
		next := surfaceState{material: s.Material, alpha: surfaceAlpha(s)}
		if lit && s.Lightmap != nil {
			next.lightmap = s.Lightmap.Atlas
		}
		if first || next != cur {
			batch.Flush(c.Draw)
			c.bindSurface(next, lit)
			cur, first = next, false
		}
		batch.Add(s.FirstElement, s.NumElements)
		c.Stats.Surfaces++
	}
	batch.Flush(c.Draw)
}

func (c *Context) bindSurface(st surfaceState, lit bool) {
	diffuse := c.Textures.Null()
	if st.material != nil && st.material.Diffuse != nil {
		diffuse = st.material.Diffuse
	}
	c.Units.Bind(texture.UnitDiffuse, diffuse)
	c.Programs.UseTint(mgl32.Vec4{1, 1, 1, st.alpha})
	if !lit {
		return
	}

	mat := program.Material{Bump: 1, Specular: 1}
	if st.lightmap != nil {
		c.Units.Bind(texture.UnitLightmap, st.lightmap.Texture)
		mat.Lightmap = true
		mat.Deluxemap = c.cfg.Renderer.Bumpmap && st.lightmap.Texture.Layers > 1
	}
	c.Programs.UseMaterial(mat)
}

// drawStains multiplies each stainmap over the lightmapped opaque surfaces
// of its atlas.
func (c *Context) drawStains(b *bsp.Buckets, arrays attrib.Arrays) {
	if !c.stained {
		return
	}
	c.use(c.progs.stain)
	c.Attribs.Reconcile(c.World, arrays, attrib.Flags{Lightmap: true})

	c.state.enable(gpu.Blend, true)
	c.state.blend(gpu.DstColor, gpu.Zero)
	c.state.enable(gpu.PolygonOffsetFill, true)
	c.state.depthWrite(false)

	for _, sm := range c.stains {
		c.Units.Bind(texture.UnitStainmap, sm.Texture)
		batch := draw.Batch{Mode: gpu.Triangles}
		for _, bucket := range [...]bsp.Bucket{bsp.BucketOpaque, bsp.BucketAlphaTest} {
			for _, i := range b[bucket] {
				s := &c.World.Surfaces[i]
				if s.Lightmap != nil && s.Lightmap.Atlas == sm.Atlas {
					batch.Add(s.FirstElement, s.NumElements)
				}
			}
		}
		batch.Flush(c.Draw)
	}

	c.state.depthWrite(true)
	c.state.enable(gpu.PolygonOffsetFill, false)
	c.state.enable(gpu.Blend, false)
}

// applyStains marks every lightmapped world surface within reach of each
// stain and uploads the changed stainmap regions.
func (c *Context) applyStains(stains []Stain) {
	if c.World == nil || len(c.stains) == 0 {
		return
	}
	luxel := float32(c.World.LuxelSize)
	if luxel <= 0 {
		luxel = lightmap.DefaultLuxelSize
	}
	for _, st := range stains {
		if st.Radius <= 0 {
			continue
		}
		for i := range c.World.Surfaces {
			s := &c.World.Surfaces[i]
			if s.Lightmap == nil || !s.Lightmap.Placed() || !touches(s, st.Origin, st.Radius) {
				continue
			}
			sm := c.stainmap(s.Lightmap.Atlas)
			if sm != nil && sm.Stain(s.Lightmap, st.Origin, st.Radius/luxel, st.Color) {
				c.stained = true
			}
		}
	}
	for _, sm := range c.stains {
		sm.Flush(c.Textures)
	}
}

// ClearStains removes every stain from the world.
func (c *Context) ClearStains() {
	for _, sm := range c.stains {
		sm.Clear()
		sm.Flush(c.Textures)
	}
	c.stained = false
}

// touches reports whether the sphere at p reaches the bounds of s.
func touches(s *bsp.Surface, p mgl32.Vec3, radius float32) bool {
	for i := 0; i < 3; i++ {
		if p[i]+radius < s.Mins[i] || p[i]-radius > s.Maxs[i] {
			return false
		}
	}
	return true
}
