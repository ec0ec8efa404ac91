package render

import (
	"image"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

// glState caches fixed-function state so redundant native calls are skipped.
type glState struct {
	dev   gpu.Device
	stats *gpu.Stats

	caps      map[gpu.Capability]bool
	blendSrc  gpu.BlendFactor
	blendDst  gpu.BlendFactor
	blendSet  bool
	depthMask bool
	scissor   image.Rectangle
	viewport  image.Rectangle
}

func newGLState(dev gpu.Device, stats *gpu.Stats) *glState {
	return &glState{dev: dev, stats: stats, caps: make(map[gpu.Capability]bool), depthMask: true}
}

func (s *glState) enable(c gpu.Capability, on bool) {
	if cur, ok := s.caps[c]; ok && cur == on {
		return
	}
	s.dev.SetCapability(c, on)
	s.caps[c] = on
	s.stats.StateChange(gpu.StateCapability)
}

func (s *glState) blend(src, dst gpu.BlendFactor) {
	if s.blendSet && s.blendSrc == src && s.blendDst == dst {
		return
	}
	s.dev.BlendFunc(src, dst)
	s.blendSrc, s.blendDst, s.blendSet = src, dst, true
	s.stats.StateChange(gpu.StateBlend)
}

func (s *glState) depthWrite(on bool) {
	if s.depthMask == on {
		return
	}
	s.dev.DepthMask(on)
	s.depthMask = on
	s.stats.StateChange(gpu.StateCapability)
}

// clip enables scissoring to r, or disables it for an empty r.
func (s *glState) clip(r image.Rectangle) {
	if r.Empty() {
		s.enable(gpu.ScissorTest, false)
		s.scissor = image.Rectangle{}
		return
	}
	s.enable(gpu.ScissorTest, true)
	if s.scissor == r {
		return
	}
	s.dev.Scissor(r)
	s.scissor = r
	s.stats.StateChange(gpu.StateScissor)
}

func (s *glState) setViewport(r image.Rectangle) {
	if s.viewport == r {
		return
	}
	s.dev.Viewport(r)
	s.viewport = r
}
