package buffer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/logger"
)

// DestroyListener is told about every buffer before its handle is released.
type DestroyListener interface {
	BufferDestroyed(b *Buffer)
}

// Manager creates and tracks every GPU buffer. It must only be used from the
// thread owning the device.
type Manager struct {
	dev   gpu.Device
	stats *gpu.Stats
	log   *zap.Logger

	live      map[*Buffer]struct{}
	bound     [numKinds]*Buffer
	listeners []DestroyListener

	count [numKinds]int
	bytes [numKinds]int64
}

// NewManager returns a buffer manager over dev. stats may be nil.
func NewManager(dev gpu.Device, stats *gpu.Stats, log *zap.Logger) *Manager {
	return &Manager{
		dev:   dev,
		stats: stats,
		log:   logger.Or(log, "buffer"),
		live:  make(map[*Buffer]struct{}),
	}
}

// OnDestroy registers l to be notified of buffer destruction.
func (m *Manager) OnDestroy(l DestroyListener) {
	m.listeners = append(m.listeners, l)
}

// Create allocates a native buffer into b. A b still holding a buffer is
// destroyed first and reported as a leak.
func (m *Manager) Create(b *Buffer, cfg Config) {
	if cfg.Kind >= numKinds {
		panic(fmt.Errorf("%w: %d", ErrInvalidBufferType, cfg.Kind))
	}
	if !b.Empty() {
		m.log.Warn("buffer created without being destroyed, possible leak",
			zap.Uint32("handle", uint32(b.Handle)), zap.Stringer("kind", b.Kind), zap.Int("size", b.Size))
		m.Destroy(b)
	}

	*b = Buffer{Kind: cfg.Kind, Hint: cfg.Hint, Interleave: cfg.Interleave}
	if cfg.Interleave {
		if cfg.Kind != Data {
			panic(fmt.Errorf("%w: interleaved %v buffer", ErrInvalidBufferType, cfg.Kind))
		}
		b.resolveLayout(cfg.Layout, cfg.StructSize)
	} else {
		b.Element = cfg.Element
		if b.Element.Count == 0 {
			b.Element.Count = 1
		}
		if cfg.Kind == Element && !b.Element.IsIndex() {
			panic(fmt.Errorf("%w: %v buffer with element type %d", ErrInvalidBufferType, cfg.Kind, b.Element.Type))
		}
		b.Stride = b.Element.Stride()
	}

	b.Handle = m.dev.GenBuffer()
	m.live[b] = struct{}{}
	m.count[b.Kind]++

	if cfg.Size > 0 {
		m.Upload(b, cfg.Size, cfg.Data)
	}
}

// CreateData creates a vertex data buffer.
func (m *Manager) CreateData(b *Buffer, cfg Config) {
	cfg.Kind = Data
	m.Create(b, cfg)
}

// CreateElement creates an element index buffer with the given index type.
func (m *Manager) CreateElement(b *Buffer, typ gpu.ScalarType, hint gpu.Usage, size int, data []byte) {
	m.Create(b, Config{
		Kind:    Element,
		Element: ElementType{Type: typ, Count: 1},
		Hint:    hint,
		Size:    size,
		Data:    data,
	})
}

// Upload writes size bytes at the start of b. Growth re-specifies the whole
// buffer; anything else updates in place and never shrinks.
func (m *Manager) Upload(b *Buffer, size int, data []byte) {
	if size == 0 {
		m.log.Warn("zero-size upload ignored", zap.Uint32("handle", uint32(b.Handle)))
		return
	}
	m.Bind(b)

	up := m.uploads(b)
	if size > b.Size {
		m.dev.BufferData(b.Target(), size, fit(data, size), b.Hint)
		m.bytes[b.Kind] += int64(size - b.Size)
		b.Size = size
		if up != nil {
			up.Full++
			up.Bytes += int64(size)
		}
		return
	}
	if data != nil {
		m.dev.BufferSubData(b.Target(), 0, clip(data, size))
		if up != nil {
			up.Partial++
			up.Bytes += int64(size)
		}
	}
}

// UploadSub writes size bytes at byte offset start. When preOffset is set,
// data already begins at start and is sliced accordingly.
func (m *Manager) UploadSub(b *Buffer, start, size int, data []byte, preOffset bool) {
	if data == nil {
		panic(fmt.Errorf("%w: handle %d", ErrNilData, b.Handle))
	}
	if size == 0 {
		m.log.Warn("zero-size sub-upload ignored", zap.Uint32("handle", uint32(b.Handle)))
		return
	}
	if preOffset {
		data = data[start:]
	}

	end := start + size
	if end > b.Size && start == 0 {
		m.Upload(b, size, data)
		return
	}

	m.Bind(b)
	up := m.uploads(b)
	if end > b.Size {
		// the gap before start has no source, so grow without data
		m.dev.BufferData(b.Target(), end, nil, b.Hint)
		m.bytes[b.Kind] += int64(end - b.Size)
		b.Size = end
		if up != nil {
			up.Full++
		}
	}
	m.dev.BufferSubData(b.Target(), start, clip(data, size))
	if up != nil {
		up.Partial++
		up.Bytes += int64(size)
	}
}

// Destroy releases b. Destroying an empty buffer is logged and ignored.
func (m *Manager) Destroy(b *Buffer) {
	if b.Empty() {
		m.log.Debug("destroy of empty buffer ignored")
		return
	}
	if m.bound[b.Kind] == b {
		m.Unbind(b.Kind)
	}
	for _, l := range m.listeners {
		l.BufferDestroyed(b)
	}

	m.dev.DeleteBuffer(b.Handle)
	m.count[b.Kind]--
	m.bytes[b.Kind] -= int64(b.Size)
	delete(m.live, b)
	*b = Buffer{}
}

// Bind makes b current for its kind.
func (m *Manager) Bind(b *Buffer) {
	if m.bound[b.Kind] == b {
		return
	}
	m.dev.BindBuffer(b.Target(), b.Handle)
	m.bound[b.Kind] = b
	m.stats.StateChange(gpu.StateBufferBind)
}

// Unbind clears the current buffer of kind.
func (m *Manager) Unbind(kind Kind) {
	if m.bound[kind] == nil {
		return
	}
	m.dev.BindBuffer(kind.Target(), 0)
	m.bound[kind] = nil
	m.stats.StateChange(gpu.StateBufferBind)
}

// Bound returns the current buffer of kind, or nil.
func (m *Manager) Bound(kind Kind) *Buffer { return m.bound[kind] }

// IsBound reports whether b is current for its kind.
func (m *Manager) IsBound(b *Buffer) bool { return !b.Empty() && m.bound[b.Kind] == b }

// Count returns the number of live buffers of kind.
func (m *Manager) Count(kind Kind) int { return m.count[kind] }

// Bytes returns the allocated bytes of live buffers of kind.
func (m *Manager) Bytes(kind Kind) int64 { return m.bytes[kind] }

// Live returns the number of registered buffers.
func (m *Manager) Live() int { return len(m.live) }

// Registered reports whether b is in the live registry.
func (m *Manager) Registered(b *Buffer) bool {
	_, ok := m.live[b]
	return ok
}

// Shutdown logs every buffer still alive and returns their count.
func (m *Manager) Shutdown() int {
	for b := range m.live {
		m.log.Warn("buffer leaked",
			zap.Uint32("handle", uint32(b.Handle)), zap.Stringer("kind", b.Kind), zap.Int("size", b.Size))
	}
	return len(m.live)
}

func (m *Manager) uploads(b *Buffer) *gpu.UploadStats {
	if m.stats == nil {
		return nil
	}
	return &m.stats.Uploads[b.Target()]
}

// fit returns data as exactly size bytes, zero padding a short slice.
// The device reads size bytes from whatever it is given.
func fit(data []byte, size int) []byte {
	if data == nil || len(data) >= size {
		return clip(data, size)
	}
	padded := make([]byte, size)
	copy(padded, data)
	return padded
}

func clip(data []byte, size int) []byte {
	if len(data) > size {
		return data[:size]
	}
	return data
}
