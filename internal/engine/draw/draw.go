// Package draw issues native draw calls against the bound attribute state.
package draw

import (
	"github.com/Faultbox/quetoo-render/internal/engine/attrib"
	"github.com/Faultbox/quetoo-render/internal/engine/buffer"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

// Dispatcher draws from whatever the attribute state has bound.
type Dispatcher struct {
	dev     gpu.Device
	attribs *attrib.State
	stats   *gpu.Stats
}

// NewDispatcher returns a dispatcher drawing through dev.
func NewDispatcher(dev gpu.Device, attribs *attrib.State, stats *gpu.Stats) *Dispatcher {
	return &Dispatcher{dev: dev, attribs: attribs, stats: stats}
}

// Draw issues count vertices from start. With an element buffer bound the
// draw is indexed and start counts elements.
func (d *Dispatcher) Draw(mode gpu.Primitive, start, count int) {
	if count <= 0 {
		return
	}

	if el := d.attribs.Element(); el != nil {
		d.drawElements(mode, el, start, count)
	} else {
		d.dev.DrawArrays(mode, start, count)
		if d.stats != nil {
			d.stats.DrawArrays++
		}
	}
	if d.stats != nil {
		d.stats.Primitives += mode.Primitives(count)
	}
}

func (d *Dispatcher) drawElements(mode gpu.Primitive, el *buffer.Buffer, start, count int) {
	d.dev.DrawElements(mode, count, el.Element.Type, start*el.Element.Stride())
	if d.stats != nil {
		d.stats.DrawElements++
	}
}

// DrawRanges coalesces ranges and draws each merged run.
func (d *Dispatcher) DrawRanges(mode gpu.Primitive, ranges []Range) {
	for _, r := range Coalesce(ranges) {
		d.Draw(mode, r.Start, r.Count)
	}
}
