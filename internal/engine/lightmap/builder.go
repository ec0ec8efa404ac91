package lightmap

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/engine/atlas"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
	"github.com/Faultbox/quetoo-render/internal/logger"
)

// DefaultMaxSize bounds lightmap atlas growth.
const DefaultMaxSize = 4096

// Atlas layers.
const (
	LayerLightmap = iota
	LayerDeluxemap
	NumLayers
)

// ErrLightmapTooLarge is returned when a block or a finished atlas exceeds
// the size the device can hold.
var ErrLightmapTooLarge = errors.New("lightmap: atlas exceeds max texture size")

// Neutral samples used for blocks without data.
var (
	defaultLuxel     = [3]byte{255, 255, 255}
	defaultDirection = [3]byte{127, 127, 255}
)

// Source identifies the map the blocks came from. Size and ModTime gate
// cache reuse.
type Source struct {
	Name        string
	Size        int64
	ModTime     int64
	Directional bool
}

// StatSource describes the map file at path.
func StatSource(path, name string, directional bool) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Source{Name: name, Size: fi.Size(), ModTime: fi.ModTime().Unix(), Directional: directional}, nil
}

// Config tunes a Builder.
type Config struct {
	// CacheDir holds packing caches. Empty disables caching.
	CacheDir string
	MaxSize  int
	Filter   Filter
}

// Atlas is one layered lightmap texture and the blocks packed into it.
type Atlas struct {
	Texture *texture.Texture
	Width   int
	Height  int
	Blocks  []*Block
	Packer  *atlas.Packer
}

// Result is the output of one Build.
type Result struct {
	Atlases []*Atlas
	Cached  bool
}

// Free deletes every atlas texture.
func (r *Result) Free(tm *texture.Manager) {
	for _, a := range r.Atlases {
		tm.Delete(a.Texture)
	}
	r.Atlases = nil
}

// Builder packs lightmap blocks into atlases.
type Builder struct {
	textures *texture.Manager
	cfg      Config
	log      *zap.Logger
}

// NewBuilder returns a builder uploading through textures.
func NewBuilder(textures *texture.Manager, cfg Config, log *zap.Logger) *Builder {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &Builder{textures: textures, cfg: cfg, log: logger.Or(log, "lightmap")}
}

// session is one packer run and the blocks it placed, in pack order.
type session struct {
	width  uint32
	height uint32
	packer *atlas.Packer
	blocks []*Block
}

func (s *session) place(b *Block, n atlas.Node) {
	b.S, b.T = int(n.X), int(n.Y)
	s.width = max(s.width, n.X+n.W)
	s.height = max(s.height, n.Y+n.H)
	s.blocks = append(s.blocks, b)
}

// Sort orders blocks for packing: tallest first, then widest, then by load
// order. The input is not modified.
func Sort(blocks []*Block) []*Block {
	sorted := append([]*Block(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		if a.Width != b.Width {
			return a.Width > b.Width
		}
		return a.Index < b.Index
	})
	return sorted
}

// Build places every block and uploads the atlases. A valid cache for src
// replaces packing; otherwise the packing is written back to the cache.
func (b *Builder) Build(src Source, blocks []*Block) (*Result, error) {
	res := &Result{}
	if len(blocks) == 0 {
		return res, nil
	}
	sorted := Sort(blocks)

	var sessions []*session
	path := ""
	if b.cfg.CacheDir != "" {
		path = CachePath(b.cfg.CacheDir, src.Name)
		var err error
		sessions, err = readCache(path, src, sorted, b.limit())
		if err != nil {
			b.log.Debug("lightmap cache miss", zap.String("path", path), zap.Error(err))
		} else {
			res.Cached = true
		}
	}
	if sessions == nil {
		var err error
		if sessions, err = b.pack(sorted); err != nil {
			return nil, err
		}
	}

	var cw *cacheWriter
	if path != "" && !res.Cached {
		var err error
		if cw, err = createCache(path, src); err != nil {
			b.log.Warn("lightmap cache not written", zap.String("path", path), zap.Error(err))
			cw = nil
		}
	}

	for i, s := range sessions {
		a, err := b.finalize(src, i, s)
		if err != nil {
			if cw != nil {
				cw.abort()
			}
			res.Free(b.textures)
			return nil, err
		}
		res.Atlases = append(res.Atlases, a)

		if cw != nil {
			if err := cw.writeSession(s); err != nil {
				b.log.Warn("lightmap cache write failed", zap.String("path", path), zap.Error(err))
				cw.abort()
				cw = nil
			}
		}
	}
	if cw != nil {
		if err := cw.finish(); err != nil {
			b.log.Warn("lightmap cache write failed", zap.String("path", path), zap.Error(err))
			cw.abort()
		}
	}

	b.log.Info("lightmaps built",
		zap.String("map", src.Name),
		zap.Int("blocks", len(blocks)),
		zap.Int("atlases", len(res.Atlases)),
		zap.Bool("cached", res.Cached))
	return res, nil
}

func (b *Builder) limit() uint32 {
	return uint32(min(b.cfg.MaxSize, b.textures.MaxSize()))
}

// pack places sorted blocks, starting a new session whenever the current
// one cannot grow to fit the next block.
func (b *Builder) pack(sorted []*Block) ([]*session, error) {
	limit := b.limit()
	newSession := func(w, h uint32, remaining int) *session {
		return &session{packer: atlas.NewPacker(limit, limit, w, h, remaining/2)}
	}

	var sessions []*session
	cur := newSession(uint32(sorted[0].Width), uint32(sorted[0].Height), len(sorted))
	for i, blk := range sorted {
		w, h := uint32(blk.Width), uint32(blk.Height)
		if w > limit || h > limit {
			return nil, fmt.Errorf("%w: block %d is %dx%d, limit %d", ErrLightmapTooLarge, blk.Index, w, h, limit)
		}
		n, ok := cur.packer.Insert(w, h)
		if !ok {
			sessions = append(sessions, cur)
			cur = newSession(w, h, len(sorted)-i)
			if n, ok = cur.packer.Insert(w, h); !ok {
				return nil, fmt.Errorf("%w: block %d does not fit an empty atlas", ErrLightmapTooLarge, blk.Index)
			}
		}
		cur.place(blk, n)
	}
	sessions = append(sessions, cur)
	return sessions, nil
}

// roundUp4 rounds n up to a multiple of four.
func roundUp4(n uint32) int { return int((n + 3) &^ 3) }

// finalize assembles the lightmap and deluxemap layers of one session and
// uploads them.
func (b *Builder) finalize(src Source, index int, s *session) (*Atlas, error) {
	w, h := roundUp4(s.width), roundUp4(s.height)
	if maxSize := b.textures.MaxSize(); w > maxSize || h > maxSize {
		return nil, fmt.Errorf("%w: %dx%d, max %d", ErrLightmapTooLarge, w, h, maxSize)
	}

	layer := w * h * 3
	pixels := make([]byte, layer*NumLayers)
	for i := 0; i < layer; i += 3 {
		copy(pixels[i:], defaultLuxel[:])
		copy(pixels[layer+i:], defaultDirection[:])
	}

	a := &Atlas{Width: w, Height: h, Blocks: s.blocks, Packer: s.packer}
	short := 0
	for _, blk := range s.blocks {
		blk.Atlas = a
		if !b.copyBlock(pixels, layer, w, blk, src.Directional) {
			short++
		}
	}
	if short > 0 {
		b.log.Warn("lightmap blocks without samples", zap.String("map", src.Name), zap.Int("blocks", short))
	}

	name := fmt.Sprintf("%s lightmap %d", src.Name, index)
	tex, err := b.textures.UploadLayered(name, w, h, NumLayers, gpu.RGB, pixels, texture.LightmapOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLightmapTooLarge, err)
	}
	a.Texture = tex
	return a, nil
}

// copyBlock writes the samples of blk into both layers at its placement,
// filtering the lightmap layer. It reports false when blk had too few
// samples and was left neutral.
func (b *Builder) copyBlock(pixels []byte, layer, stride int, blk *Block, directional bool) bool {
	step := sampleStride(directional)
	if blk.Samples == nil {
		return true
	}
	if len(blk.Samples) < blk.Width*blk.Height*step {
		return false
	}
	for y := 0; y < blk.Height; y++ {
		row := ((blk.T+y)*stride + blk.S) * 3
		for x := 0; x < blk.Width; x++ {
			in := (y*blk.Width + x) * step
			out := row + x*3
			copy(pixels[out:out+3], blk.Samples[in:in+3])
			if directional {
				copy(pixels[layer+out:layer+out+3], blk.Samples[in+3:in+6])
			}
		}
		b.cfg.Filter.Apply(pixels[row : row+blk.Width*3])
	}
	return true
}
