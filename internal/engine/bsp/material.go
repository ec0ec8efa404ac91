package bsp

import (
	"errors"
	"fmt"
	"os"
	"path"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/quetoo-render/internal/engine/texture"
	"github.com/Faultbox/quetoo-render/internal/logger"
)

// Material is the renderer's view of a texinfo texture.
type Material struct {
	// ID orders materials for bucket sorting. IDs follow first resolution.
	ID      int
	Name    string
	Diffuse *texture.Texture
	Width   int
	Height  int
	// Stages marks animated or multi-pass materials.
	Stages bool
	Flare  bool
}

// NullMaterialSize is the nominal size texture coordinates of a material
// without an image are normalized by.
const NullMaterialSize = 16

// Resolver maps texinfo texture names to materials.
type Resolver interface {
	Resolve(name string) *Material
}

// MaterialDef is the declared render behaviour of one texture.
type MaterialDef struct {
	Stages bool `yaml:"stages"`
	Flare  bool `yaml:"flare"`
}

// LoadMaterialDefs reads a YAML map of texture name to definition. A missing
// file yields no definitions.
func LoadMaterialDefs(file string) (map[string]MaterialDef, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]MaterialDef{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading materials: %w", err)
	}
	defs := map[string]MaterialDef{}
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parsing materials %s: %w", file, err)
	}
	return defs, nil
}

// Materials resolves names by loading textures/<name> from a base path.
// Failed loads fall back to the null texture.
type Materials struct {
	base     string
	textures *texture.Manager
	defs     map[string]MaterialDef
	log      *zap.Logger

	byName map[string]*Material
	order  []*Material
}

// NewMaterials returns a resolver loading images under base.
func NewMaterials(base string, textures *texture.Manager, defs map[string]MaterialDef, log *zap.Logger) *Materials {
	return &Materials{
		base:     base,
		textures: textures,
		defs:     defs,
		log:      logger.Or(log, "bsp"),
		byName:   make(map[string]*Material),
	}
}

// Resolve returns the material for name, loading it on first use.
func (m *Materials) Resolve(name string) *Material {
	if mat, ok := m.byName[name]; ok {
		return mat
	}
	def := m.defs[name]
	mat := &Material{ID: len(m.order), Name: name, Stages: def.Stages, Flare: def.Flare}

	img, file, err := texture.LoadImage(m.base, path.Join("textures", name))
	if err == nil {
		mat.Diffuse, err = m.textures.Upload2D(name, img, texture.DefaultOptions())
	}
	if err != nil {
		m.log.Warn("material image not loaded, using null texture",
			zap.String("material", name), zap.String("file", file),
			zap.Int("width", NullMaterialSize), zap.Int("height", NullMaterialSize), zap.Error(err))
		mat.Diffuse = m.textures.Null()
		mat.Width, mat.Height = NullMaterialSize, NullMaterialSize
	} else {
		mat.Width, mat.Height = mat.Diffuse.Width, mat.Diffuse.Height
	}

	m.byName[name] = mat
	m.order = append(m.order, mat)
	return mat
}

// Len returns the number of resolved materials.
func (m *Materials) Len() int { return len(m.order) }

// Free deletes every loaded material texture.
func (m *Materials) Free() {
	for _, mat := range m.order {
		if mat.Diffuse != m.textures.Null() {
			m.textures.Delete(mat.Diffuse)
		}
	}
	m.byName = make(map[string]*Material)
	m.order = nil
}
