package attrib

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/engine/buffer"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/logger"
)

// ErrKindMismatch is raised when a buffer is bound to a slot of the other kind.
var ErrKindMismatch = errors.New("attrib: buffer kind does not match slot")

// Slot is the resolved binding of one attribute location.
type Slot struct {
	Buffer  *buffer.Buffer
	Offset  int
	Type    buffer.ElementType
	Stride  int
	Enabled bool
}

// Arrays are the buffers a model draws from.
type Arrays struct {
	Vertex  *buffer.Buffer
	Element *buffer.Buffer
	// Shell replaces position and normal sources when shells are drawn.
	Shell *buffer.Buffer

	// Offset is added to current-frame attributes and NextOffset to the
	// next-* interpolation targets, both in bytes.
	Offset     int
	NextOffset int
}

// State owns the attribute slots. Its zero state is NoModelBound.
type State struct {
	dev     gpu.Device
	buffers *buffer.Manager
	stats   *gpu.Stats
	log     *zap.Logger

	slots   [gpu.NumAttributes]Slot
	element *buffer.Buffer

	model   any
	arrays  gpu.AttribMask
	program gpu.AttribMask
	dirty   gpu.AttribMask
	shell   bool
	offset  [2]int
}

// New returns attribute state bound to buffers; it subscribes to buffer
// destruction so stale slots are cleared.
func New(dev gpu.Device, buffers *buffer.Manager, stats *gpu.Stats, log *zap.Logger) *State {
	s := &State{
		dev:     dev,
		buffers: buffers,
		stats:   stats,
		log:     logger.Or(log, "attrib"),
		program: gpu.MaskAll,
	}
	buffers.OnDestroy(s)
	return s
}

// Slot returns the binding of attr.
func (s *State) Slot(attr gpu.Attribute) Slot { return s.slots[attr] }

// Element returns the bound element buffer.
func (s *State) Element() *buffer.Buffer { return s.element }

// Model returns the key of the bound model, nil when NoModelBound.
func (s *State) Model() any { return s.model }

// Arrays returns the attribute mask of the last reconciliation.
func (s *State) Arrays() gpu.AttribMask { return s.arrays }

// Bind points attr at b plus offset bytes. gpu.AttribAll binds every
// attribute of an interleaved buffer; gpu.AttribElement binds the index slot.
func (s *State) Bind(attr gpu.Attribute, b *buffer.Buffer, offset int) {
	switch {
	case attr == gpu.AttribElement:
		if b.Kind != buffer.Element {
			panic(fmt.Errorf("%w: %v buffer on element slot", ErrKindMismatch, b.Kind))
		}
		s.buffers.Bind(b)
		s.element = b
	case attr == gpu.AttribAll:
		s.BindInterleave(b, gpu.MaskVertex, offset)
	case attr.Valid():
		if b.Kind != buffer.Data {
			panic(fmt.Errorf("%w: %v buffer on %v", ErrKindMismatch, b.Kind, attr))
		}
		s.point(attr, b, offset)
	default:
		panic(fmt.Errorf("attrib: bind of invalid attribute %d", attr))
	}
}

// BindInterleave binds every attribute in mask that b's layout provides.
// Interpolation targets resolve to their base attribute's layout.
func (s *State) BindInterleave(b *buffer.Buffer, mask gpu.AttribMask, offset int) {
	if mask&gpu.MaskVertex == 0 {
		return
	}
	if b.Kind != buffer.Data {
		panic(fmt.Errorf("%w: interleaved bind of %v buffer", ErrKindMismatch, b.Kind))
	}
	mask.Each(func(attr gpu.Attribute) {
		if b.Attribs.Has(attr.Base()) {
			s.point(attr, b, offset)
		}
	})
}

func (s *State) point(attr gpu.Attribute, b *buffer.Buffer, offset int) {
	var typ buffer.ElementType
	if l, ok := b.AttribLayout(attr); ok {
		typ = l.ElementType
		offset += l.Offset
	} else {
		typ = b.Element
	}

	slot := &s.slots[attr]
	if slot.Buffer != b || slot.Offset != offset || slot.Type != typ || slot.Stride != b.Stride {
		s.buffers.Bind(b)
		idx := uint32(attr)
		if typ.Integer {
			s.dev.VertexAttribIPointer(idx, typ.Count, typ.Type, b.Stride, offset)
		} else {
			s.dev.VertexAttribPointer(idx, typ.Count, typ.Type, typ.Normalized, b.Stride, offset)
		}
		s.stats.StateChange(gpu.StateAttribPointer)
		*slot = Slot{Buffer: b, Offset: offset, Type: typ, Stride: b.Stride, Enabled: slot.Enabled}
	}
	if !slot.Enabled {
		s.dev.EnableVertexAttribArray(uint32(attr))
		s.stats.StateChange(gpu.StateAttribToggle)
		slot.Enabled = true
	}
}

// Unbind clears attr. gpu.AttribAll clears every vertex slot, then the
// element slot.
func (s *State) Unbind(attr gpu.Attribute) {
	switch {
	case attr == gpu.AttribAll:
		for a := gpu.AttribPosition; a < gpu.NumAttributes; a++ {
			s.Unbind(a)
		}
		s.Unbind(gpu.AttribElement)
	case attr == gpu.AttribElement:
		if s.element != nil {
			s.buffers.Unbind(buffer.Element)
			s.element = nil
		}
	case attr.Valid():
		slot := &s.slots[attr]
		if slot.Enabled {
			s.dev.DisableVertexAttribArray(uint32(attr))
			s.stats.StateChange(gpu.StateAttribToggle)
		}
		*slot = Slot{}
	}
}

// Reconcile brings the slots in line with the arrays of model for the
// given flags and the active program's mask. model must be comparable and
// arrays.Vertex interleaved. A repeated call with the same model and state
// issues no native calls.
func (s *State) Reconcile(model any, arrays Arrays, flags Flags) {
	var desired gpu.AttribMask
	if arrays.Vertex != nil {
		desired = ArraysMask(flags) & s.program & withNext(arrays.Vertex.Attribs)
	}
	if arrays.Element != nil {
		desired |= gpu.MaskElement
	}

	var fromShell gpu.AttribMask
	if flags.Shell && !arrays.Shell.Empty() {
		fromShell = desired & shellMask & withNext(arrays.Shell.Attribs)
	}
	shell := fromShell != 0

	mask := desired
	if model != nil && s.model == model {
		dirty := s.dirty
		// frame offsets move every attribute reading the changed frame
		if arrays.Offset != s.offset[0] {
			dirty |= gpu.MaskVertex &^ nextMask
		}
		if arrays.NextOffset != s.offset[1] {
			dirty |= nextMask
		}
		// the element binding may have moved under the buffer manager
		if s.element != nil && s.buffers.Bound(buffer.Element) != s.element {
			dirty |= gpu.MaskElement
		}
		xor := s.arrays ^ desired
		if xor == 0 && dirty&desired == 0 && !shell && !s.shell {
			return
		}
		mask = desired&xor | desired&dirty
		if shell || s.shell {
			// position and normal sources differ between shell and mesh
			mask |= desired & shellMask
		}
	}

	for a := gpu.AttribPosition; a < gpu.NumAttributes; a++ {
		if s.slots[a].Enabled && !desired.Has(a) {
			s.Unbind(a)
		}
	}
	if !desired.Has(gpu.AttribElement) {
		s.Unbind(gpu.AttribElement)
	}

	vertex := mask & gpu.MaskVertex &^ fromShell
	s.BindInterleave(arrays.Vertex, vertex&^nextMask, arrays.Offset)
	s.BindInterleave(arrays.Vertex, vertex&nextMask, arrays.NextOffset)
	if shell {
		s.BindInterleave(arrays.Shell, mask&fromShell&^nextMask, arrays.Offset)
		s.BindInterleave(arrays.Shell, mask&fromShell&nextMask, arrays.NextOffset)
	}
	if mask.Has(gpu.AttribElement) {
		s.Bind(gpu.AttribElement, arrays.Element, 0)
	}

	s.model = model
	s.arrays = desired
	s.dirty = 0
	s.shell = shell
	s.offset = [2]int{arrays.Offset, arrays.NextOffset}
}

const nextMask = gpu.MaskNextPosition | gpu.MaskNextNormal | gpu.MaskNextTangent | gpu.MaskNextBitangent

// withNext adds the interpolation targets of every base attribute in m.
func withNext(m gpu.AttribMask) gpu.AttribMask {
	for _, a := range [...]gpu.Attribute{gpu.AttribPosition, gpu.AttribNormal, gpu.AttribTangent, gpu.AttribBitangent} {
		if m.Has(a) {
			m |= (a + 1).Bit()
		}
	}
	return m
}

// Reset unbinds everything and returns to NoModelBound.
func (s *State) Reset() {
	s.Unbind(gpu.AttribAll)
	s.model = nil
	s.arrays = 0
	s.dirty = 0
	s.shell = false
	s.offset = [2]int{}
}

// UseProgram records the attribute mask of a newly active program and marks
// its attributes for rebinding.
func (s *State) UseProgram(mask gpu.AttribMask) {
	s.program = mask | gpu.MaskElement
	s.dirty |= mask
	mask.Each(func(a gpu.Attribute) {
		s.slots[a].Buffer = nil
	})
}

// BufferDestroyed clears every slot referencing b.
func (s *State) BufferDestroyed(b *buffer.Buffer) {
	hit := false
	for a := gpu.AttribPosition; a < gpu.NumAttributes; a++ {
		if s.slots[a].Buffer == b {
			s.Unbind(a)
			hit = true
		}
	}
	if s.element == b {
		s.element = nil
		hit = true
	}
	if hit {
		s.model = nil
		s.log.Debug("cleared attribute slots of destroyed buffer", zap.Uint32("handle", uint32(b.Handle)))
	}
}
