// Package gputest provides a recording gpu.Device for tests.
package gputest

import (
	"errors"
	"image"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
)

// Pointer is a recorded vertex attribute pointer.
type Pointer struct {
	Buffer     gpu.Handle
	Size       int
	Type       gpu.ScalarType
	Normalized bool
	Integer    bool
	Stride     int
	Offset     int
}

// Draw is a recorded draw call.
type Draw struct {
	Indexed bool
	Mode    gpu.Primitive
	First   int
	Count   int
	Type    gpu.ScalarType
	Offset  int
}

// Texture is a recorded texture object.
type Texture struct {
	Target        gpu.TextureTarget
	Width, Height int
	Depth         int
	Format        gpu.PixelFormat
	Levels        int
	Pixels        []byte
	SubUploads    int
	Params        gpu.TextureParams
}

// Recorder is an in-memory gpu.Device that counts every call.
type Recorder struct {
	Calls map[string]int
	Draws []Draw

	Buffers  map[gpu.Handle][]byte
	Bound    [2]gpu.Handle
	Enabled  map[uint32]bool
	Pointers map[uint32]Pointer

	Program  gpu.Handle
	Programs map[gpu.Handle]gpu.ProgramSource
	Uniforms map[int32][]float32
	// CompileErr, when set, fails the next CompileProgram.
	CompileErr error

	Textures    map[gpu.Handle]*Texture
	Unit        int
	UnitBinding map[int]gpu.Handle

	Caps       map[gpu.Capability]bool
	Errors     []uint32
	MaxTexture int

	next gpu.Handle
}

// New returns an empty recorder reporting maxTexture as its texture limit.
func New(maxTexture int) *Recorder {
	return &Recorder{
		Calls:       make(map[string]int),
		Buffers:     make(map[gpu.Handle][]byte),
		Enabled:     make(map[uint32]bool),
		Pointers:    make(map[uint32]Pointer),
		Programs:    make(map[gpu.Handle]gpu.ProgramSource),
		Uniforms:    make(map[int32][]float32),
		Textures:    make(map[gpu.Handle]*Texture),
		UnitBinding: make(map[int]gpu.Handle),
		Caps:        make(map[gpu.Capability]bool),
		MaxTexture:  maxTexture,
	}
}

// Reset clears the call counters and draw log, keeping object state.
func (r *Recorder) Reset() {
	r.Calls = make(map[string]int)
	r.Draws = nil
}

// Count returns how many times the named method was called.
func (r *Recorder) Count(name string) int { return r.Calls[name] }

// Total returns the number of recorded calls.
func (r *Recorder) Total() int {
	n := 0
	for _, c := range r.Calls {
		n += c
	}
	return n
}

func (r *Recorder) call(name string) { r.Calls[name]++ }

func (r *Recorder) handle() gpu.Handle {
	r.next++
	return r.next
}

func (r *Recorder) GenBuffer() gpu.Handle {
	r.call("GenBuffer")
	h := r.handle()
	r.Buffers[h] = nil
	return h
}

func (r *Recorder) DeleteBuffer(h gpu.Handle) {
	r.call("DeleteBuffer")
	delete(r.Buffers, h)
	for i := range r.Bound {
		if r.Bound[i] == h {
			r.Bound[i] = 0
		}
	}
}

func (r *Recorder) BindBuffer(t gpu.BufferTarget, h gpu.Handle) {
	r.call("BindBuffer")
	r.Bound[t] = h
}

func (r *Recorder) BufferData(t gpu.BufferTarget, size int, data []byte, _ gpu.Usage) {
	r.call("BufferData")
	b := make([]byte, size)
	copy(b, data)
	r.Buffers[r.Bound[t]] = b
}

func (r *Recorder) BufferSubData(t gpu.BufferTarget, offset int, data []byte) {
	r.call("BufferSubData")
	b := r.Buffers[r.Bound[t]]
	if offset+len(data) > len(b) {
		r.Errors = append(r.Errors, 0x0501)
		return
	}
	copy(b[offset:], data)
}

func (r *Recorder) EnableVertexAttribArray(index uint32) {
	r.call("EnableVertexAttribArray")
	r.Enabled[index] = true
}

func (r *Recorder) DisableVertexAttribArray(index uint32) {
	r.call("DisableVertexAttribArray")
	r.Enabled[index] = false
}

func (r *Recorder) VertexAttribPointer(index uint32, size int, typ gpu.ScalarType, normalized bool, stride, offset int) {
	r.call("VertexAttribPointer")
	r.Pointers[index] = Pointer{Buffer: r.Bound[gpu.ArrayBuffer], Size: size, Type: typ, Normalized: normalized, Stride: stride, Offset: offset}
}

func (r *Recorder) VertexAttribIPointer(index uint32, size int, typ gpu.ScalarType, stride, offset int) {
	r.call("VertexAttribIPointer")
	r.Pointers[index] = Pointer{Buffer: r.Bound[gpu.ArrayBuffer], Size: size, Type: typ, Integer: true, Stride: stride, Offset: offset}
}

func (r *Recorder) CompileProgram(src gpu.ProgramSource) (gpu.Handle, error) {
	r.call("CompileProgram")
	if err := r.CompileErr; err != nil {
		r.CompileErr = nil
		return 0, err
	}
	if src.Vertex == "" || src.Fragment == "" {
		return 0, errors.New("empty shader source")
	}
	h := r.handle()
	r.Programs[h] = src
	return h, nil
}

func (r *Recorder) DeleteProgram(h gpu.Handle) {
	r.call("DeleteProgram")
	delete(r.Programs, h)
}

func (r *Recorder) UseProgram(h gpu.Handle) {
	r.call("UseProgram")
	r.Program = h
}

// UniformLocation hands out a stable location per program and name.
func (r *Recorder) UniformLocation(program gpu.Handle, name string) int32 {
	r.call("UniformLocation")
	if name == "" {
		return -1
	}
	var h int32 = 7
	for _, c := range name {
		h = h*31 + int32(c)
	}
	if h < 0 {
		h = -h
	}
	return h%100000 + int32(program)*100000
}

func (r *Recorder) Uniform1i(loc int32, v int32) {
	r.call("Uniform1i")
	r.Uniforms[loc] = []float32{float32(v)}
}

func (r *Recorder) Uniform1f(loc int32, v float32) {
	r.call("Uniform1f")
	r.Uniforms[loc] = []float32{v}
}

func (r *Recorder) Uniform3f(loc int32, x, y, z float32) {
	r.call("Uniform3f")
	r.Uniforms[loc] = []float32{x, y, z}
}

func (r *Recorder) Uniform4f(loc int32, x, y, z, w float32) {
	r.call("Uniform4f")
	r.Uniforms[loc] = []float32{x, y, z, w}
}

func (r *Recorder) UniformMatrix4(loc int32, m *[16]float32) {
	r.call("UniformMatrix4")
	r.Uniforms[loc] = append([]float32(nil), m[:]...)
}

func (r *Recorder) GenTexture() gpu.Handle {
	r.call("GenTexture")
	h := r.handle()
	r.Textures[h] = &Texture{}
	return h
}

func (r *Recorder) DeleteTexture(h gpu.Handle) {
	r.call("DeleteTexture")
	delete(r.Textures, h)
}

func (r *Recorder) ActiveTexture(unit int) {
	r.call("ActiveTexture")
	r.Unit = unit
}

func (r *Recorder) BindTexture(t gpu.TextureTarget, h gpu.Handle) {
	r.call("BindTexture")
	r.UnitBinding[r.Unit] = h
	if tex := r.Textures[h]; tex != nil {
		tex.Target = t
	}
}

func (r *Recorder) bound() *Texture { return r.Textures[r.UnitBinding[r.Unit]] }

func (r *Recorder) TexImage2D(level, width, height int, format gpu.PixelFormat, pixels []byte) {
	r.call("TexImage2D")
	r.store(level, width, height, 1, format, pixels)
}

func (r *Recorder) TexImage3D(level, width, height, depth int, format gpu.PixelFormat, pixels []byte) {
	r.call("TexImage3D")
	r.store(level, width, height, depth, format, pixels)
}

func (r *Recorder) store(level, width, height, depth int, format gpu.PixelFormat, pixels []byte) {
	tex := r.bound()
	if tex == nil {
		r.Errors = append(r.Errors, 0x0502)
		return
	}
	tex.Levels = max(tex.Levels, level+1)
	if level == 0 {
		tex.Width, tex.Height, tex.Depth, tex.Format = width, height, depth, format
		tex.Pixels = append([]byte(nil), pixels...)
	}
}

func (r *Recorder) TexSubImage2D(level, x, y, width, height int, format gpu.PixelFormat, pixels []byte) {
	r.call("TexSubImage2D")
	if tex := r.bound(); tex != nil {
		tex.SubUploads++
	}
}

func (r *Recorder) TexSubImage3D(level, x, y, z, width, height, depth int, format gpu.PixelFormat, pixels []byte) {
	r.call("TexSubImage3D")
	if tex := r.bound(); tex != nil {
		tex.SubUploads++
	}
}

func (r *Recorder) GenerateMipmap(gpu.TextureTarget) {
	r.call("GenerateMipmap")
}

func (r *Recorder) SetTextureParams(_ gpu.TextureTarget, p gpu.TextureParams) {
	r.call("SetTextureParams")
	if tex := r.bound(); tex != nil {
		tex.Params = p
	}
}

func (r *Recorder) DrawArrays(mode gpu.Primitive, first, count int) {
	r.call("DrawArrays")
	r.Draws = append(r.Draws, Draw{Mode: mode, First: first, Count: count})
}

func (r *Recorder) DrawElements(mode gpu.Primitive, count int, typ gpu.ScalarType, offset int) {
	r.call("DrawElements")
	r.Draws = append(r.Draws, Draw{Indexed: true, Mode: mode, Count: count, Type: typ, Offset: offset})
}

func (r *Recorder) Viewport(image.Rectangle) { r.call("Viewport") }
func (r *Recorder) Scissor(image.Rectangle)  { r.call("Scissor") }

func (r *Recorder) SetCapability(c gpu.Capability, enabled bool) {
	r.call("SetCapability")
	r.Caps[c] = enabled
}

func (r *Recorder) BlendFunc(src, dst gpu.BlendFactor) { r.call("BlendFunc") }
func (r *Recorder) DepthMask(bool)                     { r.call("DepthMask") }
func (r *Recorder) ClearColor(_, _, _, _ float32)      { r.call("ClearColor") }
func (r *Recorder) Clear(gpu.ClearMask)                { r.call("Clear") }

// ReadPixels returns an opaque gray RGB frame of the requested size.
func (r *Recorder) ReadPixels(rect image.Rectangle) []byte {
	r.call("ReadPixels")
	px := make([]byte, rect.Dx()*rect.Dy()*3)
	for i := range px {
		px[i] = 0x80
	}
	return px
}

// GetError pops queued errors in order.
func (r *Recorder) GetError() uint32 {
	r.call("GetError")
	if len(r.Errors) == 0 {
		return 0
	}
	e := r.Errors[0]
	r.Errors = r.Errors[1:]
	return e
}

func (r *Recorder) Info() gpu.DeviceInfo {
	return gpu.DeviceInfo{
		Vendor:         "gputest",
		Renderer:       "recorder",
		Version:        "4.1",
		MaxTextureSize: r.MaxTexture,
		MaxAttributes:  int(gpu.NumAttributes),
	}
}

var _ gpu.Device = (*Recorder)(nil)
