package attrib

import (
	"errors"
	"testing"

	"github.com/Faultbox/quetoo-render/internal/engine/buffer"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu/gputest"
)

// testLayout is position, normal, diffuse uv and lightmap uv floats.
var testLayout = []buffer.LayoutEntry{
	{Attribute: gpu.AttribPosition, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribNormal, Type: gpu.Float, Count: 3},
	{Attribute: gpu.AttribDiffuseUV, Type: gpu.Float, Count: 2},
	{Attribute: gpu.AttribLightmapUV, Type: gpu.Float, Count: 2},
	{Attribute: gpu.AttribNone},
}

const testStride = 40

type fixture struct {
	dev     *gputest.Recorder
	stats   *gpu.Stats
	buffers *buffer.Manager
	state   *State
	vertex  buffer.Buffer
	shell   buffer.Buffer
	element buffer.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{dev: gputest.New(4096), stats: &gpu.Stats{}}
	f.buffers = buffer.NewManager(f.dev, f.stats, nil)
	f.state = New(f.dev, f.buffers, f.stats, nil)

	cfg := buffer.Config{
		Interleave: true,
		Layout:     testLayout,
		StructSize: testStride,
		Size:       testStride * 8,
		Data:       make([]byte, testStride*8),
	}
	f.buffers.CreateData(&f.vertex, cfg)
	f.buffers.CreateData(&f.shell, cfg)
	f.buffers.CreateElement(&f.element, gpu.UnsignedInt, gpu.StaticDraw, 24, make([]byte, 24))
	f.dev.Reset()
	return f
}

func (f *fixture) arrays() Arrays {
	return Arrays{Vertex: &f.vertex, Element: &f.element}
}

func TestArraysMask(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		want  gpu.AttribMask
	}{
		{"position only", Flags{}, gpu.MaskPosition},
		{"color", Flags{Color: true}, gpu.MaskPosition | gpu.MaskColor},
		{"lighting", Flags{Lighting: true}, gpu.MaskPosition | gpu.MaskNormal},
		{"shell", Flags{Shell: true, Interpolate: true},
			gpu.MaskPosition | gpu.MaskNextPosition | gpu.MaskNormal | gpu.MaskNextNormal},
		{"bump without lighting", Flags{Bumpmap: true}, gpu.MaskPosition},
		{"bump", Flags{Lighting: true, Bumpmap: true},
			gpu.MaskPosition | gpu.MaskNormal | gpu.MaskTangent | gpu.MaskBitangent},
		{"bump interpolated", Flags{Lighting: true, Bumpmap: true, Interpolate: true},
			gpu.MaskPosition | gpu.MaskNextPosition | gpu.MaskNormal | gpu.MaskNextNormal |
				gpu.MaskTangent | gpu.MaskNextTangent | gpu.MaskBitangent | gpu.MaskNextBitangent},
		{"texture units", Flags{Diffuse: true, Lightmap: true},
			gpu.MaskPosition | gpu.MaskDiffuseUV | gpu.MaskLightmapUV},
		{"geometry", Flags{Geometry: gpu.MaskParticle}, gpu.MaskPosition | gpu.MaskParticle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ArraysMask(tt.flags); got != tt.want {
				t.Errorf("expected %b, got %b", tt.want, got)
			}
		})
	}
}

func TestReconcileIdempotent(t *testing.T) {
	f := newFixture(t)
	flags := Flags{Lighting: true, Diffuse: true, Lightmap: true}

	f.state.Reconcile(&f.vertex, f.arrays(), flags)
	if n := f.dev.Count("VertexAttribPointer"); n != 4 {
		t.Errorf("expected 4 pointers, got %d", n)
	}
	if f.state.Element() != &f.element {
		t.Error("expected element buffer bound")
	}

	f.dev.Reset()
	f.state.Reconcile(&f.vertex, f.arrays(), flags)
	if f.dev.Total() != 0 {
		t.Errorf("expected no native calls, got %v", f.dev.Calls)
	}
}

func TestReconcileRestoresElementRebound(t *testing.T) {
	f := newFixture(t)
	flags := Flags{Diffuse: true}
	f.state.Reconcile(&f.vertex, f.arrays(), flags)

	var other buffer.Buffer
	f.buffers.CreateElement(&other, gpu.UnsignedShort, gpu.StaticDraw, 12, make([]byte, 12))
	f.buffers.Bind(&other)

	f.dev.Reset()
	f.state.Reconcile(&f.vertex, f.arrays(), flags)
	if n := f.dev.Count("BindBuffer"); n != 1 {
		t.Errorf("expected 1 element rebind, got %d", n)
	}
	if f.buffers.Bound(buffer.Element) != &f.element {
		t.Error("expected the model's element buffer bound again")
	}
	if got := f.dev.Bound[gpu.ElementArrayBuffer]; got != f.element.Handle {
		t.Errorf("expected native element %d, got %d", f.element.Handle, got)
	}
	if f.dev.Count("VertexAttribPointer") != 0 {
		t.Errorf("expected vertex slots untouched, got %v", f.dev.Calls)
	}
}

func TestReconcilePartial(t *testing.T) {
	f := newFixture(t)
	f.state.Reconcile(&f.vertex, f.arrays(), Flags{Diffuse: true})

	f.dev.Reset()
	f.state.Reconcile(&f.vertex, f.arrays(), Flags{Diffuse: true, Lightmap: true})
	if n := f.dev.Count("VertexAttribPointer"); n != 1 {
		t.Errorf("expected 1 pointer, got %d", n)
	}
	p := f.dev.Pointers[uint32(gpu.AttribLightmapUV)]
	if p.Offset != 32 || p.Stride != testStride || p.Size != 2 {
		t.Errorf("unexpected lightmap pointer %+v", p)
	}

	f.dev.Reset()
	f.state.Reconcile(&f.vertex, f.arrays(), Flags{Lightmap: true})
	if f.dev.Count("DisableVertexAttribArray") != 1 || f.dev.Count("VertexAttribPointer") != 0 {
		t.Errorf("expected only the diffuse slot disabled, got %v", f.dev.Calls)
	}
	if f.state.Slot(gpu.AttribDiffuseUV).Buffer != nil {
		t.Error("expected diffuse slot cleared")
	}
}

func TestReconcileModelSwitchRebinds(t *testing.T) {
	f := newFixture(t)
	flags := Flags{Diffuse: true}
	f.state.Reconcile(&f.vertex, f.arrays(), flags)

	f.dev.Reset()
	f.state.Reconcile(&f.shell, Arrays{Vertex: &f.shell, Element: &f.element}, flags)
	if n := f.dev.Count("VertexAttribPointer"); n != 2 {
		t.Errorf("expected 2 pointers for the new model, got %d", n)
	}
	if f.dev.Pointers[uint32(gpu.AttribPosition)].Buffer != f.shell.Handle {
		t.Error("expected position sourced from the new buffer")
	}
}

func TestShellOverride(t *testing.T) {
	f := newFixture(t)
	arrays := f.arrays()
	arrays.Shell = &f.shell

	f.state.Reconcile(&f.vertex, arrays, Flags{Diffuse: true})
	f.dev.Reset()

	flags := Flags{Diffuse: true, Shell: true}
	f.state.Reconcile(&f.vertex, arrays, flags)
	if got := f.state.Slot(gpu.AttribPosition).Buffer; got != &f.shell {
		t.Error("expected position from the shell buffer")
	}
	if got := f.state.Slot(gpu.AttribNormal).Buffer; got != &f.shell {
		t.Error("expected normal from the shell buffer")
	}
	if got := f.state.Slot(gpu.AttribDiffuseUV).Buffer; got != &f.vertex {
		t.Error("expected diffuse uv to stay on the mesh buffer")
	}

	f.dev.Reset()
	f.state.Reconcile(&f.vertex, arrays, Flags{Diffuse: true})
	if got := f.state.Slot(gpu.AttribPosition).Buffer; got != &f.vertex {
		t.Error("expected position restored to the mesh buffer")
	}
}

func TestInterpolationOffsets(t *testing.T) {
	f := newFixture(t)
	arrays := f.arrays()
	arrays.Offset = testStride * 4
	arrays.NextOffset = testStride * 2

	f.state.Reconcile(&f.vertex, arrays, Flags{Lighting: true, Interpolate: true})

	tests := []struct {
		attr gpu.Attribute
		want int
	}{
		{gpu.AttribPosition, testStride * 4},
		{gpu.AttribNextPosition, testStride * 2},
		{gpu.AttribNormal, testStride*4 + 12},
		{gpu.AttribNextNormal, testStride*2 + 12},
	}
	for _, tt := range tests {
		if got := f.dev.Pointers[uint32(tt.attr)].Offset; got != tt.want {
			t.Errorf("%v: expected offset %d, got %d", tt.attr, tt.want, got)
		}
	}
	if f.state.Arrays().Has(gpu.AttribNextTangent) {
		t.Error("layout without tangents must not request them")
	}
}

func TestFrameOffsetChangeRebinds(t *testing.T) {
	f := newFixture(t)
	arrays := f.arrays()
	flags := Flags{Lighting: true, Interpolate: true}
	f.state.Reconcile(&f.vertex, arrays, flags)
	f.dev.Reset()

	f.state.Reconcile(&f.vertex, arrays, flags)
	if n := f.dev.Count("VertexAttribPointer"); n != 0 {
		t.Fatalf("expected no pointer calls for unchanged frames, got %d", n)
	}

	arrays.NextOffset = testStride * 3
	f.state.Reconcile(&f.vertex, arrays, flags)
	if n := f.dev.Count("VertexAttribPointer"); n != 2 {
		t.Errorf("expected 2 pointer calls for the next frame, got %d", n)
	}
	if got := f.dev.Pointers[uint32(gpu.AttribNextPosition)].Offset; got != testStride*3 {
		t.Errorf("expected next position at %d, got %d", testStride*3, got)
	}
	if got := f.dev.Pointers[uint32(gpu.AttribPosition)].Offset; got != 0 {
		t.Errorf("expected position to stay at 0, got %d", got)
	}
}

func TestUseProgramMarksDirty(t *testing.T) {
	f := newFixture(t)
	flags := Flags{Diffuse: true, Lightmap: true}
	f.state.Reconcile(&f.vertex, f.arrays(), flags)

	f.state.UseProgram(gpu.MaskPosition | gpu.MaskDiffuseUV)
	f.dev.Reset()
	f.state.Reconcile(&f.vertex, f.arrays(), flags)

	if n := f.dev.Count("VertexAttribPointer"); n != 2 {
		t.Errorf("expected position and diffuse rebound, got %d", n)
	}
	if f.state.Slot(gpu.AttribLightmapUV).Enabled {
		t.Error("expected lightmap uv disabled for a program without it")
	}
}

func TestResetUnbindsAll(t *testing.T) {
	f := newFixture(t)
	f.state.Reconcile(&f.vertex, f.arrays(), Flags{Lighting: true, Diffuse: true})
	f.state.Reset()

	for a := gpu.AttribPosition; a < gpu.NumAttributes; a++ {
		if s := f.state.Slot(a); s.Enabled || s.Buffer != nil {
			t.Errorf("%v still bound", a)
		}
	}
	if f.state.Model() != nil || f.state.Element() != nil {
		t.Error("expected NoModelBound")
	}
	if f.buffers.Bound(buffer.Element) != nil {
		t.Error("expected element buffer unbound")
	}

	f.dev.Reset()
	f.state.Reset()
	if f.dev.Total() != 0 {
		t.Errorf("expected second reset to be free, got %v", f.dev.Calls)
	}
}

func TestDestroyClearsSlots(t *testing.T) {
	f := newFixture(t)

	var diffuse buffer.Buffer
	f.buffers.CreateData(&diffuse, buffer.Config{
		Element: buffer.ElementType{Type: gpu.Float, Count: 3},
		Size:    36,
		Data:    make([]byte, 36),
	})
	f.state.Bind(gpu.AttribPosition, &diffuse, 0)
	if f.buffers.Bound(buffer.Data) != &diffuse {
		t.Fatal("expected buffer bound to the data slot")
	}

	f.buffers.Destroy(&diffuse)
	if f.buffers.Bound(buffer.Data) != nil {
		t.Error("expected data slot cleared")
	}
	if f.state.Slot(gpu.AttribPosition).Buffer != nil {
		t.Error("expected position slot cleared")
	}
	if f.dev.Enabled[uint32(gpu.AttribPosition)] {
		t.Error("expected position array disabled")
	}
}

func TestKindMismatchPanics(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		fn   func()
	}{
		{"index on vertex slot", func() { f.state.Bind(gpu.AttribPosition, &f.element, 0) }},
		{"vertex on element slot", func() { f.state.Bind(gpu.AttribElement, &f.vertex, 0) }},
		{"interleave of index", func() { f.state.BindInterleave(&f.element, gpu.MaskPosition, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				err, _ := recover().(error)
				if !errors.Is(err, ErrKindMismatch) {
					t.Errorf("expected ErrKindMismatch, got %v", err)
				}
			}()
			tt.fn()
		})
	}
}

func TestIntegerAttribute(t *testing.T) {
	f := newFixture(t)
	var types buffer.Buffer
	f.buffers.CreateData(&types, buffer.Config{
		Element: buffer.ElementType{Type: gpu.UnsignedInt, Count: 1, Integer: true},
		Size:    16,
		Data:    make([]byte, 16),
	})
	f.state.Bind(gpu.AttribParticleType, &types, 0)
	if f.dev.Count("VertexAttribIPointer") != 1 {
		t.Error("expected integer pointer")
	}
}
