package gpu

// StateKind buckets native state changes for telemetry.
type StateKind uint8

const (
	StateBufferBind StateKind = iota
	StateAttribPointer
	StateAttribToggle
	StateProgram
	StateUniform
	StateTextureUnit
	StateTextureBind
	StateCapability
	StateBlend
	StateScissor

	numStateKinds
)

var stateKindNames = [...]string{
	"buffer_bind", "attrib_pointer", "attrib_toggle", "program", "uniform",
	"texture_unit", "texture_bind", "capability", "blend", "scissor",
}

func (k StateKind) String() string {
	if k < numStateKinds {
		return stateKindNames[k]
	}
	return "unknown"
}

// UploadStats counts buffer uploads of one buffer kind.
type UploadStats struct {
	Full    int
	Partial int
	Bytes   int64
}

// Stats is per-frame render telemetry. Counters never influence control flow.
type Stats struct {
	StateChanges [numStateKinds]int
	Uploads      [2]UploadStats // indexed by BufferTarget

	DrawArrays   int
	DrawElements int
	Primitives   int

	Buckets  int
	Surfaces int
}

// StateChange records one native state change of kind k.
func (s *Stats) StateChange(k StateKind) {
	if s != nil {
		s.StateChanges[k]++
	}
}

// TotalStateChanges sums every state change counter.
func (s *Stats) TotalStateChanges() int {
	n := 0
	for _, c := range s.StateChanges {
		n += c
	}
	return n
}

// DrawCalls returns the number of native draws issued.
func (s *Stats) DrawCalls() int { return s.DrawArrays + s.DrawElements }

// ResetFrame clears the per-frame counters. Upload counters span the session.
func (s *Stats) ResetFrame() {
	s.StateChanges = [numStateKinds]int{}
	s.DrawArrays, s.DrawElements, s.Primitives = 0, 0, 0
	s.Buckets, s.Surfaces = 0, 0
}
