// Package buffer owns GPU buffer objects: creation, growth-only uploads,
// binding, and the registry of live buffers used for leak reports.
package buffer

import (
	"errors"
	"fmt"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

var (
	// ErrInvalidBufferType is raised for a buffer kind outside Data and Element.
	ErrInvalidBufferType = errors.New("buffer: invalid buffer type")
	// ErrLayoutMismatch is raised when an interleave layout does not sum to the declared struct size.
	ErrLayoutMismatch = errors.New("buffer: interleave layout size mismatch")
	// ErrNilData is raised when a sub-range upload is given no source data.
	ErrNilData = errors.New("buffer: sub-range upload without data")
)

// Kind selects vertex data or element indices.
type Kind uint8

const (
	Data Kind = iota
	Element
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "data"
	case Element:
		return "element"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Target returns the native binding point of k.
func (k Kind) Target() gpu.BufferTarget {
	if k == Element {
		return gpu.ElementArrayBuffer
	}
	return gpu.ArrayBuffer
}

// ElementType describes one element of a non-interleaved buffer, or the
// per-attribute components of an interleaved one.
type ElementType struct {
	Type       gpu.ScalarType
	Count      int
	Normalized bool
	Integer    bool
}

// Stride is the byte size of one element.
func (e ElementType) Stride() int {
	return e.Type.Size() * max(e.Count, 1)
}

// IsIndex reports whether e can address vertices.
func (e ElementType) IsIndex() bool {
	switch e.Type {
	case gpu.UnsignedByte, gpu.UnsignedShort, gpu.UnsignedInt:
		return e.Count <= 1 && !e.Normalized
	}
	return false
}

// LayoutEntry places one attribute inside an interleaved vertex struct.
// Tables may be terminated early with an entry whose Attribute is gpu.AttribNone.
type LayoutEntry struct {
	Attribute  gpu.Attribute
	Type       gpu.ScalarType
	Count      int
	Normalized bool
	Integer    bool
}

// AttribLayout is an attribute's resolved placement within a vertex.
type AttribLayout struct {
	ElementType
	Offset int
}

// Config describes a buffer to create.
type Config struct {
	Kind       Kind
	Interleave bool
	Element    ElementType
	// Layout and StructSize are required when Interleave is set.
	Layout     []LayoutEntry
	StructSize int
	Hint       gpu.Usage
	Size       int
	Data       []byte
}

// Buffer is one GPU buffer object. The zero value is an empty, destroyed buffer.
type Buffer struct {
	Kind       Kind
	Element    ElementType
	Interleave bool
	// Attribs is the set of attributes present in an interleaved layout.
	Attribs gpu.AttribMask
	Layout  [gpu.NumAttributes]AttribLayout
	Stride  int
	Size    int
	Hint    gpu.Usage
	Handle  gpu.Handle
}

// Empty reports whether b holds no native buffer.
func (b *Buffer) Empty() bool { return b == nil || b.Handle == 0 }

// Target returns the native binding point of b.
func (b *Buffer) Target() gpu.BufferTarget { return b.Kind.Target() }

// AttribLayout returns the placement of attr, resolving interpolation targets
// to their base attribute. ok is false if the layout lacks the attribute.
func (b *Buffer) AttribLayout(attr gpu.Attribute) (AttribLayout, bool) {
	base := attr.Base()
	if !b.Interleave || !base.Valid() || !b.Attribs.Has(base) {
		return AttribLayout{}, false
	}
	return b.Layout[base], true
}

// resolveLayout fills b's per-attribute offsets from table and checks their
// sum against structSize.
func (b *Buffer) resolveLayout(table []LayoutEntry, structSize int) {
	offset := 0
	for _, e := range table {
		if e.Attribute == gpu.AttribNone {
			break
		}
		if !e.Attribute.Valid() {
			panic(fmt.Errorf("%w: attribute %d out of range", ErrLayoutMismatch, e.Attribute))
		}
		el := ElementType{Type: e.Type, Count: max(e.Count, 1), Normalized: e.Normalized, Integer: e.Integer}
		b.Layout[e.Attribute] = AttribLayout{ElementType: el, Offset: offset}
		b.Attribs |= e.Attribute.Bit()
		offset += el.Stride()
	}
	if offset != structSize {
		panic(fmt.Errorf("%w: layout is %d bytes, struct is %d", ErrLayoutMismatch, offset, structSize))
	}
	b.Stride = structSize
}
