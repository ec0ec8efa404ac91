// Package glbackend implements gpu.Device over OpenGL 4.1 core.
package glbackend

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

// Device drives the OpenGL context current on the calling thread.
type Device struct {
	vao  uint32
	info gpu.DeviceInfo

	// cached so pixel uploads pick the bound texture's target
	target [2]uint32
	unit   int
}

// New initializes the GL function pointers and binds the single vertex array
// object every core profile draw requires.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}

	d := &Device{}
	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	// overlay passes redraw coplanar geometry with PolygonOffsetFill enabled
	gl.DepthFunc(gl.LEQUAL)
	gl.PolygonOffset(-1, -1)

	var maxTex, maxAttribs int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxTex)
	gl.GetIntegerv(gl.MAX_VERTEX_ATTRIBS, &maxAttribs)

	d.info = gpu.DeviceInfo{
		Vendor:         gl.GoStr(gl.GetString(gl.VENDOR)),
		Renderer:       gl.GoStr(gl.GetString(gl.RENDERER)),
		Version:        gl.GoStr(gl.GetString(gl.VERSION)),
		MaxTextureSize: int(maxTex),
		MaxAttributes:  int(maxAttribs),
	}
	if d.info.MaxAttributes < int(gpu.NumAttributes) {
		return nil, fmt.Errorf("gl: %d vertex attributes available, %d required", maxAttribs, gpu.NumAttributes)
	}
	return d, nil
}

// Close releases the vertex array object.
func (d *Device) Close() {
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
}

func (d *Device) Info() gpu.DeviceInfo { return d.info }

func (d *Device) GenBuffer() gpu.Handle {
	var h uint32
	gl.GenBuffers(1, &h)
	return gpu.Handle(h)
}

func (d *Device) DeleteBuffer(h gpu.Handle) {
	id := uint32(h)
	gl.DeleteBuffers(1, &id)
}

func (d *Device) BindBuffer(t gpu.BufferTarget, h gpu.Handle) {
	gl.BindBuffer(bufferTarget(t), uint32(h))
}

func (d *Device) BufferData(t gpu.BufferTarget, size int, data []byte, usage gpu.Usage) {
	if len(data) > 0 {
		gl.BufferData(bufferTarget(t), size, gl.Ptr(data), bufferUsage(usage))
		return
	}
	gl.BufferData(bufferTarget(t), size, nil, bufferUsage(usage))
}

func (d *Device) BufferSubData(t gpu.BufferTarget, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	gl.BufferSubData(bufferTarget(t), offset, len(data), gl.Ptr(data))
}

func (d *Device) EnableVertexAttribArray(index uint32)  { gl.EnableVertexAttribArray(index) }
func (d *Device) DisableVertexAttribArray(index uint32) { gl.DisableVertexAttribArray(index) }

func (d *Device) VertexAttribPointer(index uint32, size int, typ gpu.ScalarType, normalized bool, stride, offset int) {
	gl.VertexAttribPointerWithOffset(index, int32(size), scalarType(typ), normalized, int32(stride), uintptr(offset))
}

func (d *Device) VertexAttribIPointer(index uint32, size int, typ gpu.ScalarType, stride, offset int) {
	gl.VertexAttribIPointer(index, int32(size), scalarType(typ), int32(stride), gl.PtrOffset(offset))
}

func (d *Device) DeleteProgram(h gpu.Handle) { gl.DeleteProgram(uint32(h)) }
func (d *Device) UseProgram(h gpu.Handle)    { gl.UseProgram(uint32(h)) }

func (d *Device) UniformLocation(program gpu.Handle, name string) int32 {
	return gl.GetUniformLocation(uint32(program), gl.Str(name+"\x00"))
}

func (d *Device) Uniform1i(loc int32, v int32)            { gl.Uniform1i(loc, v) }
func (d *Device) Uniform1f(loc int32, v float32)          { gl.Uniform1f(loc, v) }
func (d *Device) Uniform3f(loc int32, x, y, z float32)    { gl.Uniform3f(loc, x, y, z) }
func (d *Device) Uniform4f(loc int32, x, y, z, w float32) { gl.Uniform4f(loc, x, y, z, w) }

func (d *Device) UniformMatrix4(loc int32, m *[16]float32) {
	gl.UniformMatrix4fv(loc, 1, false, &m[0])
}

func (d *Device) GenTexture() gpu.Handle {
	var h uint32
	gl.GenTextures(1, &h)
	return gpu.Handle(h)
}

func (d *Device) DeleteTexture(h gpu.Handle) {
	id := uint32(h)
	gl.DeleteTextures(1, &id)
}

func (d *Device) ActiveTexture(unit int) {
	d.unit = unit
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
}

func (d *Device) BindTexture(t gpu.TextureTarget, h gpu.Handle) {
	gl.BindTexture(textureTarget(t), uint32(h))
}

func (d *Device) TexImage2D(level, width, height int, format gpu.PixelFormat, pixels []byte) {
	f := pixelFormat(format)
	gl.TexImage2D(gl.TEXTURE_2D, int32(level), internalFormat(format), int32(width), int32(height), 0, f, gl.UNSIGNED_BYTE, ptr(pixels))
}

func (d *Device) TexImage3D(level, width, height, depth int, format gpu.PixelFormat, pixels []byte) {
	f := pixelFormat(format)
	gl.TexImage3D(gl.TEXTURE_2D_ARRAY, int32(level), internalFormat(format), int32(width), int32(height), int32(depth), 0, f, gl.UNSIGNED_BYTE, ptr(pixels))
}

func (d *Device) TexSubImage2D(level, x, y, width, height int, format gpu.PixelFormat, pixels []byte) {
	gl.TexSubImage2D(gl.TEXTURE_2D, int32(level), int32(x), int32(y), int32(width), int32(height), pixelFormat(format), gl.UNSIGNED_BYTE, ptr(pixels))
}

func (d *Device) TexSubImage3D(level, x, y, z, width, height, depth int, format gpu.PixelFormat, pixels []byte) {
	gl.TexSubImage3D(gl.TEXTURE_2D_ARRAY, int32(level), int32(x), int32(y), int32(z), int32(width), int32(height), int32(depth), pixelFormat(format), gl.UNSIGNED_BYTE, ptr(pixels))
}

func (d *Device) GenerateMipmap(t gpu.TextureTarget) { gl.GenerateMipmap(textureTarget(t)) }

func (d *Device) SetTextureParams(t gpu.TextureTarget, p gpu.TextureParams) {
	target := textureTarget(t)
	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, filter(p.MinFilter))
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, filter(p.MagFilter))
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, wrap(p.WrapS))
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, wrap(p.WrapT))
	if p.Anisotropy > 1 {
		gl.TexParameterf(target, textureMaxAnisotropy, p.Anisotropy)
	}
}

func (d *Device) DrawArrays(mode gpu.Primitive, first, count int) {
	gl.DrawArrays(primitive(mode), int32(first), int32(count))
}

func (d *Device) DrawElements(mode gpu.Primitive, count int, typ gpu.ScalarType, offset int) {
	gl.DrawElementsWithOffset(primitive(mode), int32(count), scalarType(typ), uintptr(offset))
}

func (d *Device) Viewport(r image.Rectangle) {
	gl.Viewport(int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()))
}

func (d *Device) Scissor(r image.Rectangle) {
	gl.Scissor(int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()))
}

func (d *Device) SetCapability(c gpu.Capability, enabled bool) {
	if enabled {
		gl.Enable(capability(c))
	} else {
		gl.Disable(capability(c))
	}
}

func (d *Device) BlendFunc(src, dst gpu.BlendFactor) { gl.BlendFunc(blendFactor(src), blendFactor(dst)) }
func (d *Device) DepthMask(enabled bool)             { gl.DepthMask(enabled) }
func (d *Device) ClearColor(r, g, b, a float32)      { gl.ClearColor(r, g, b, a) }

func (d *Device) Clear(mask gpu.ClearMask) {
	var bits uint32
	if mask&gpu.ClearColorBit != 0 {
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&gpu.ClearDepthBit != 0 {
		bits |= gl.DEPTH_BUFFER_BIT
	}
	if mask&gpu.ClearStencilBit != 0 {
		bits |= gl.STENCIL_BUFFER_BIT
	}
	gl.Clear(bits)
}

// ReadPixels reads RGB rows bottom-up from the back buffer.
func (d *Device) ReadPixels(r image.Rectangle) []byte {
	px := make([]byte, r.Dx()*r.Dy()*3)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadBuffer(gl.BACK)
	gl.ReadPixels(int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()), gl.RGB, gl.UNSIGNED_BYTE, gl.Ptr(px))
	return px
}

func (d *Device) GetError() uint32 { return gl.GetError() }

var _ gpu.Device = (*Device)(nil)
