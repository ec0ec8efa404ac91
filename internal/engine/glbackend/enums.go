package glbackend

import (
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

func ptr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return gl.Ptr(b)
}

func bufferTarget(t gpu.BufferTarget) uint32 {
	if t == gpu.ElementArrayBuffer {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func bufferUsage(u gpu.Usage) uint32 {
	switch u {
	case gpu.DynamicDraw:
		return gl.DYNAMIC_DRAW
	case gpu.StreamDraw:
		return gl.STREAM_DRAW
	default:
		return gl.STATIC_DRAW
	}
}

func scalarType(s gpu.ScalarType) uint32 {
	switch s {
	case gpu.Byte:
		return gl.BYTE
	case gpu.UnsignedByte:
		return gl.UNSIGNED_BYTE
	case gpu.Short:
		return gl.SHORT
	case gpu.UnsignedShort:
		return gl.UNSIGNED_SHORT
	case gpu.Int:
		return gl.INT
	case gpu.UnsignedInt:
		return gl.UNSIGNED_INT
	default:
		return gl.FLOAT
	}
}

func primitive(p gpu.Primitive) uint32 {
	switch p {
	case gpu.Points:
		return gl.POINTS
	case gpu.Lines:
		return gl.LINES
	case gpu.LineLoop:
		return gl.LINE_LOOP
	case gpu.LineStrip:
		return gl.LINE_STRIP
	case gpu.TriangleStrip:
		return gl.TRIANGLE_STRIP
	case gpu.TriangleFan:
		return gl.TRIANGLE_FAN
	default:
		return gl.TRIANGLES
	}
}

func textureTarget(t gpu.TextureTarget) uint32 {
	if t == gpu.Texture2DArray {
		return gl.TEXTURE_2D_ARRAY
	}
	return gl.TEXTURE_2D
}

func pixelFormat(f gpu.PixelFormat) uint32 {
	if f == gpu.RGBA {
		return gl.RGBA
	}
	return gl.RGB
}

func internalFormat(f gpu.PixelFormat) int32 {
	if f == gpu.RGBA {
		return gl.RGBA8
	}
	return gl.RGB8
}

func filter(f gpu.Filter) int32 {
	switch f {
	case gpu.Nearest:
		return gl.NEAREST
	case gpu.LinearMipmapLinear:
		return gl.LINEAR_MIPMAP_LINEAR
	default:
		return gl.LINEAR
	}
}

func wrap(w gpu.Wrap) int32 {
	if w == gpu.ClampToEdge {
		return gl.CLAMP_TO_EDGE
	}
	return gl.REPEAT
}

func capability(c gpu.Capability) uint32 {
	switch c {
	case gpu.DepthTest:
		return gl.DEPTH_TEST
	case gpu.CullFace:
		return gl.CULL_FACE
	case gpu.ScissorTest:
		return gl.SCISSOR_TEST
	case gpu.StencilTest:
		return gl.STENCIL_TEST
	case gpu.PolygonOffsetFill:
		return gl.POLYGON_OFFSET_FILL
	default:
		return gl.BLEND
	}
}

func blendFactor(f gpu.BlendFactor) uint32 {
	switch f {
	case gpu.Zero:
		return gl.ZERO
	case gpu.One:
		return gl.ONE
	case gpu.SrcAlpha:
		return gl.SRC_ALPHA
	case gpu.OneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case gpu.DstColor:
		return gl.DST_COLOR
	default:
		return gl.SRC_COLOR
	}
}

// GL_TEXTURE_MAX_ANISOTROPY, core in 4.6 and an extension before.
const textureMaxAnisotropy = 0x84FE
