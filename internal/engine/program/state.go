package program

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/engine/attrib"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/logger"
)

// ErrNoShaderSource is returned when neither the shader directory nor the
// built-in sources provide a program.
var ErrNoShaderSource = errors.New("program: no shader source")

// State owns the loaded programs and tracks the active one.
type State struct {
	dev     gpu.Device
	attribs *attrib.State
	stats   *gpu.Stats
	log     *zap.Logger
	dir     string

	programs []*Program
	active   *Program
	matrices Matrices
}

// NewState returns program state. Shader files in dir override the
// built-in sources; dir may be empty.
func NewState(dev gpu.Device, attribs *attrib.State, stats *gpu.Stats, dir string, log *zap.Logger) *State {
	return &State{
		dev:      dev,
		attribs:  attribs,
		stats:    stats,
		log:      logger.Or(log, "program"),
		dir:      dir,
		matrices: NewMatrices(),
	}
}

// Load compiles and initializes v. The active program is unchanged.
func (s *State) Load(v Variant) (*Program, error) {
	name := v.Name()
	vs, fs, err := s.source(name)
	if err != nil {
		return nil, err
	}

	p := &Program{
		Name:    name,
		Arrays:  v.Arrays(),
		Variant: v,
		dev:     s.dev,
		stats:   s.stats,
		log:     s.log,
	}
	p.Handle, err = s.dev.CompileProgram(gpu.ProgramSource{
		Name:       name,
		Vertex:     vs,
		Fragment:   fs,
		Attributes: p.attributes(),
	})
	if err != nil {
		return nil, fmt.Errorf("loading program %s: %w", name, err)
	}

	// matrices are optional per program, so a missing one is not reported
	for id := Matrix(0); id < NumMatrices; id++ {
		u := &p.mvp[id]
		u.prog, u.name = p, id.Uniform()
		u.loc = s.dev.UniformLocation(p.Handle, u.name)
	}

	s.dev.UseProgram(p.Handle)
	v.Init(p)
	s.dev.UseProgram(s.activeHandle())

	s.programs = append(s.programs, p)
	s.log.Debug("program loaded",
		zap.String("program", name),
		zap.Uint32("handle", uint32(p.Handle)),
		zap.Uint32("arrays", uint32(p.Arrays)))
	return p, nil
}

func (s *State) source(name string) (vs, fs string, err error) {
	if s.dir != "" {
		v, verr := os.ReadFile(filepath.Join(s.dir, name+"_vs.glsl"))
		f, ferr := os.ReadFile(filepath.Join(s.dir, name+"_fs.glsl"))
		if verr == nil && ferr == nil {
			return string(v), string(f), nil
		}
		if !errors.Is(verr, os.ErrNotExist) && verr != nil {
			return "", "", fmt.Errorf("reading %s vertex shader: %w", name, verr)
		}
		if !errors.Is(ferr, os.ErrNotExist) && ferr != nil {
			return "", "", fmt.Errorf("reading %s fragment shader: %w", name, ferr)
		}
	}
	if src, ok := builtinSources[name]; ok {
		return src.vertex, src.fragment, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrNoShaderSource, name)
}

func (s *State) activeHandle() gpu.Handle {
	if s.active == nil {
		return 0
	}
	return s.active.Handle
}

// Active returns the active program, nil if none.
func (s *State) Active() *Program { return s.active }

// Programs returns the loaded programs in load order.
func (s *State) Programs() []*Program { return s.programs }

// Use activates p. Activating the active program does nothing; otherwise
// the program's Activate hook runs and its attributes are marked for
// rebinding. A nil p deactivates programs.
func (s *State) Use(p *Program) {
	if s.active == p {
		return
	}
	s.active = p
	s.stats.StateChange(gpu.StateProgram)
	if p == nil {
		s.dev.UseProgram(0)
		return
	}

	s.dev.UseProgram(p.Handle)
	if h, ok := p.Variant.(Activator); ok {
		h.Activate(p)
	}
	s.attribs.UseProgram(p.Arrays)
}

// Matrices returns the shared transforms.
func (s *State) Matrices() *Matrices { return &s.matrices }

// SetMatrix replaces matrix id.
func (s *State) SetMatrix(id Matrix, m mgl32.Mat4) { s.matrices.Set(id, m) }

// UseMatrices uploads every matrix the active program holds an older
// generation of, then runs its MatricesChanged hook if any was sent.
// It returns the number of matrices uploaded.
func (s *State) UseMatrices() int {
	p := s.active
	if p == nil {
		return 0
	}

	n := 0
	for id := Matrix(0); id < NumMatrices; id++ {
		gen := s.matrices.gen[id]
		if p.matrices[id] == gen {
			continue
		}
		p.mvp[id].Set(s.matrices.values[id])
		p.matrices[id] = gen
		n++
	}
	if n > 0 {
		if h, ok := p.Variant.(MatricesUser); ok {
			h.MatricesChanged(p, &s.matrices)
		}
	}
	return n
}

// UseMaterial passes m to the active program's MaterialUser hook.
func (s *State) UseMaterial(m Material) {
	if p := s.active; p != nil {
		if h, ok := p.Variant.(MaterialUser); ok {
			h.UseMaterial(p, m)
		}
	}
}

// UseAlphaTest passes threshold to the active program's AlphaTester hook.
func (s *State) UseAlphaTest(threshold float32) {
	if p := s.active; p != nil {
		if h, ok := p.Variant.(AlphaTester); ok {
			h.UseAlphaTest(p, threshold)
		}
	}
}

// UseTint passes color to the active program's Tinter hook.
func (s *State) UseTint(color mgl32.Vec4) {
	if p := s.active; p != nil {
		if h, ok := p.Variant.(Tinter); ok {
			h.UseTint(p, color)
		}
	}
}

// UseInterpolation passes lerp to the active program's Interpolator hook.
func (s *State) UseInterpolation(lerp float32) {
	if p := s.active; p != nil {
		if h, ok := p.Variant.(Interpolator); ok {
			h.UseInterpolation(p, lerp)
		}
	}
}

// UseTime passes seconds to the active program's Timer hook.
func (s *State) UseTime(seconds float32) {
	if p := s.active; p != nil {
		if h, ok := p.Variant.(Timer); ok {
			h.UseTime(p, seconds)
		}
	}
}

// Shutdown deletes every program.
func (s *State) Shutdown() {
	s.Use(nil)
	for _, p := range s.programs {
		s.dev.DeleteProgram(p.Handle)
	}
	s.programs = nil
}
