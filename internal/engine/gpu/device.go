// Package gpu defines the native graphics device boundary used by the renderer core.
package gpu

import "image"

// BufferTarget is the binding point of a buffer object.
type BufferTarget uint8

const (
	ArrayBuffer BufferTarget = iota
	ElementArrayBuffer
)

func (t BufferTarget) String() string {
	if t == ElementArrayBuffer {
		return "element"
	}
	return "array"
}

// Usage is the expected update frequency of a buffer's contents.
type Usage uint8

const (
	StaticDraw Usage = iota
	DynamicDraw
	StreamDraw
)

func (u Usage) String() string {
	switch u {
	case DynamicDraw:
		return "dynamic"
	case StreamDraw:
		return "stream"
	default:
		return "static"
	}
}

// ScalarType is a component type of vertex or element data.
type ScalarType uint8

const (
	Byte ScalarType = iota
	UnsignedByte
	Short
	UnsignedShort
	Int
	UnsignedInt
	Float
)

// Size returns the byte size of one component.
func (s ScalarType) Size() int {
	switch s {
	case Byte, UnsignedByte:
		return 1
	case Short, UnsignedShort:
		return 2
	default:
		return 4
	}
}

// Primitive is a draw topology.
type Primitive uint8

const (
	Points Primitive = iota
	Lines
	LineLoop
	LineStrip
	Triangles
	TriangleStrip
	TriangleFan
)

// Primitives returns how many primitives a draw of count vertices produces.
func (p Primitive) Primitives(count int) int {
	if count <= 0 {
		return 0
	}
	switch p {
	case Points, LineLoop:
		return count
	case Lines:
		return count / 2
	case LineStrip:
		return count - 1
	case Triangles:
		return count / 3
	default:
		if count < 3 {
			return 0
		}
		return count - 2
	}
}

// TextureTarget is the dimensionality of a texture object.
type TextureTarget uint8

const (
	Texture2D TextureTarget = iota
	Texture2DArray
)

// PixelFormat is the client-side layout of texel data.
type PixelFormat uint8

const (
	RGB PixelFormat = iota
	RGBA
)

// Channels returns the byte count of one texel.
func (f PixelFormat) Channels() int {
	if f == RGBA {
		return 4
	}
	return 3
}

// Filter is a texture sampling mode.
type Filter uint8

const (
	Nearest Filter = iota
	Linear
	LinearMipmapLinear
)

// Wrap is a texture addressing mode.
type Wrap uint8

const (
	Repeat Wrap = iota
	ClampToEdge
)

// TextureParams are the sampling parameters applied to a bound texture.
type TextureParams struct {
	MinFilter  Filter
	MagFilter  Filter
	WrapS      Wrap
	WrapT      Wrap
	Anisotropy float32
}

// Capability is a toggleable pipeline feature.
type Capability uint8

const (
	Blend Capability = iota
	DepthTest
	CullFace
	ScissorTest
	StencilTest
	PolygonOffsetFill
)

// BlendFactor is a source or destination blend factor.
type BlendFactor uint8

const (
	Zero BlendFactor = iota
	One
	SrcAlpha
	OneMinusSrcAlpha
	DstColor
	SrcColor
)

// ClearMask selects the buffers cleared by Clear.
type ClearMask uint8

const (
	ClearColorBit ClearMask = 1 << iota
	ClearDepthBit
	ClearStencilBit
)

// Handle is a native object name. Zero is never a live object.
type Handle uint32

// ProgramSource is the input to program compilation.
type ProgramSource struct {
	Name     string
	Vertex   string
	Fragment string
	// Attributes are bound to their fixed locations before linking.
	Attributes map[Attribute]string
}

// DeviceInfo describes the native implementation.
type DeviceInfo struct {
	Vendor         string
	Renderer       string
	Version        string
	MaxTextureSize int
	MaxAttributes  int
}

// Device is the native graphics API. Implementations are not safe for
// concurrent use and must be driven from the thread owning the context.
type Device interface {
	GenBuffer() Handle
	DeleteBuffer(h Handle)
	BindBuffer(t BufferTarget, h Handle)
	BufferData(t BufferTarget, size int, data []byte, usage Usage)
	BufferSubData(t BufferTarget, offset int, data []byte)

	EnableVertexAttribArray(index uint32)
	DisableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size int, typ ScalarType, normalized bool, stride, offset int)
	VertexAttribIPointer(index uint32, size int, typ ScalarType, stride, offset int)

	CompileProgram(src ProgramSource) (Handle, error)
	DeleteProgram(h Handle)
	UseProgram(h Handle)
	UniformLocation(program Handle, name string) int32
	Uniform1i(loc int32, v int32)
	Uniform1f(loc int32, v float32)
	Uniform3f(loc int32, x, y, z float32)
	Uniform4f(loc int32, x, y, z, w float32)
	UniformMatrix4(loc int32, m *[16]float32)

	GenTexture() Handle
	DeleteTexture(h Handle)
	ActiveTexture(unit int)
	BindTexture(t TextureTarget, h Handle)
	TexImage2D(level, width, height int, format PixelFormat, pixels []byte)
	TexImage3D(level, width, height, depth int, format PixelFormat, pixels []byte)
	TexSubImage2D(level, x, y, width, height int, format PixelFormat, pixels []byte)
	TexSubImage3D(level, x, y, z, width, height, depth int, format PixelFormat, pixels []byte)
	GenerateMipmap(t TextureTarget)
	SetTextureParams(t TextureTarget, p TextureParams)

	DrawArrays(mode Primitive, first, count int)
	DrawElements(mode Primitive, count int, typ ScalarType, offset int)

	Viewport(r image.Rectangle)
	Scissor(r image.Rectangle)
	SetCapability(c Capability, enabled bool)
	BlendFunc(src, dst BlendFactor)
	DepthMask(enabled bool)
	ClearColor(r, g, b, a float32)
	Clear(mask ClearMask)
	ReadPixels(r image.Rectangle) []byte

	// GetError returns the oldest pending native error code, 0 if none.
	GetError() uint32
	Info() DeviceInfo
}
