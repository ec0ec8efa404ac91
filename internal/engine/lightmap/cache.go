package lightmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/quetoo-render/internal/engine/atlas"
)

const (
	cacheMagic  int32 = 0x434d4c51 // "QLMC"
	cacheSuffix       = ".lmcache"

	cacheHeaderSize  = 4 + 8 + 8 + 4
	cachePackersAt   = 4 + 8 + 8
	sessionHeader    = 3 * 4
	incompletePacker = ^uint32(0)
)

// ErrCacheInvalid is returned when a cache file does not match its map or
// is damaged.
var ErrCacheInvalid = errors.New("lightmap: invalid cache")

// CachePath returns the cache file for the map name under dir.
func CachePath(dir, name string) string {
	return filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+cacheSuffix)
}

// CacheHeader is the fixed prefix of a cache file.
type CacheHeader struct {
	Magic   int32
	Size    int64
	ModTime int64
	Packers uint32
}

// ReadCacheHeader decodes the header of a cache file.
func ReadCacheHeader(data []byte) (CacheHeader, error) {
	var h CacheHeader
	if len(data) < cacheHeaderSize {
		return h, fmt.Errorf("%w: header truncated", ErrCacheInvalid)
	}
	h.Magic = int32(binary.LittleEndian.Uint32(data[0:]))
	h.Size = int64(binary.LittleEndian.Uint64(data[4:]))
	h.ModTime = int64(binary.LittleEndian.Uint64(data[12:]))
	h.Packers = binary.LittleEndian.Uint32(data[cachePackersAt:])
	if h.Magic != cacheMagic {
		return h, fmt.Errorf("%w: bad magic %#x", ErrCacheInvalid, uint32(h.Magic))
	}
	return h, nil
}

// readCache replays the placements of a cache file onto sorted. Blocks are
// only modified when the whole file is valid for src.
func readCache(path string, src Source, sorted []*Block, limit uint32) ([]*session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	h, err := ReadCacheHeader(data)
	if err != nil {
		return nil, err
	}
	switch {
	case h.Size != src.Size || h.ModTime != src.ModTime:
		return nil, fmt.Errorf("%w: stale for %s", ErrCacheInvalid, src.Name)
	case h.Packers == incompletePacker:
		return nil, fmt.Errorf("%w: incomplete", ErrCacheInvalid)
	case h.Packers == 0:
		return nil, fmt.Errorf("%w: no packers", ErrCacheInvalid)
	}

	type placement struct{ s, t int }
	placed := make([]placement, len(sorted))
	sessions := make([]*session, 0, h.Packers)
	off, next := cacheHeaderSize, 0

	for i := uint32(0); i < h.Packers; i++ {
		if len(data)-off < sessionHeader {
			return nil, fmt.Errorf("%w: packer %d header truncated", ErrCacheInvalid, i)
		}
		w := binary.LittleEndian.Uint32(data[off:])
		ht := binary.LittleEndian.Uint32(data[off+4:])
		count := int(binary.LittleEndian.Uint32(data[off+8:]))
		off += sessionHeader
		if w == 0 || ht == 0 || w > limit || ht > limit {
			return nil, fmt.Errorf("%w: packer %d is %dx%d", ErrCacheInvalid, i, w, ht)
		}

		p := &atlas.Packer{MaxWidth: limit, MaxHeight: limit}
		n, err := p.UnmarshalBinary(data[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: packer %d: %v", ErrCacheInvalid, i, err)
		}
		off += n

		if count > len(sorted)-next || len(data)-off < count*8 {
			return nil, fmt.Errorf("%w: packer %d placements truncated", ErrCacheInvalid, i)
		}
		for j := 0; j < count; j++ {
			s := int(int32(binary.LittleEndian.Uint32(data[off:])))
			t := int(int32(binary.LittleEndian.Uint32(data[off+4:])))
			off += 8
			blk := sorted[next+j]
			if s < 0 || t < 0 || s+blk.Width > int(w) || t+blk.Height > int(ht) {
				return nil, fmt.Errorf("%w: block %d placed outside packer %d", ErrCacheInvalid, blk.Index, i)
			}
			placed[next+j] = placement{s, t}
		}
		sessions = append(sessions, &session{
			width:  w,
			height: ht,
			packer: p,
			blocks: sorted[next : next+count : next+count],
		})
		next += count
	}
	if next != len(sorted) {
		return nil, fmt.Errorf("%w: %d placements for %d blocks", ErrCacheInvalid, next, len(sorted))
	}
	if off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCacheInvalid, len(data)-off)
	}

	for i, blk := range sorted {
		blk.S, blk.T = placed[i].s, placed[i].t
	}
	return sessions, nil
}

// cacheWriter streams sessions to a cache file. The packer count stays
// marked incomplete until finish.
type cacheWriter struct {
	f       *os.File
	packers uint32
}

func createCache(path string, src Source) (*cacheWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	hdr := make([]byte, cacheHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:], uint32(cacheMagic))
	binary.LittleEndian.PutUint64(hdr[4:], uint64(src.Size))
	binary.LittleEndian.PutUint64(hdr[12:], uint64(src.ModTime))
	binary.LittleEndian.PutUint32(hdr[cachePackersAt:], incompletePacker)
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &cacheWriter{f: f}, nil
}

func (w *cacheWriter) writeSession(s *session) error {
	var buf bytes.Buffer
	buf.Grow(sessionHeader + s.packer.Size() + len(s.blocks)*8)

	var hdr [sessionHeader]byte
	binary.LittleEndian.PutUint32(hdr[0:], s.width)
	binary.LittleEndian.PutUint32(hdr[4:], s.height)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(s.blocks)))
	buf.Write(hdr[:])

	if _, err := s.packer.WriteTo(&buf); err != nil {
		return err
	}
	var st [8]byte
	for _, blk := range s.blocks {
		binary.LittleEndian.PutUint32(st[0:], uint32(int32(blk.S)))
		binary.LittleEndian.PutUint32(st[4:], uint32(int32(blk.T)))
		buf.Write(st[:])
	}
	if _, err := w.f.Write(buf.Bytes()); err != nil {
		return err
	}
	w.packers++
	return nil
}

func (w *cacheWriter) finish() error {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], w.packers)
	if _, err := w.f.WriteAt(n[:], cachePackersAt); err != nil {
		return err
	}
	return w.f.Close()
}

func (w *cacheWriter) abort() {
	w.f.Close()
	os.Remove(w.f.Name())
}
