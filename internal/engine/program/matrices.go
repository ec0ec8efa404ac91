package program

import "github.com/go-gl/mathgl/mgl32"

// Matrix identifies one of the shared transform matrices.
type Matrix uint8

const (
	ProjectionMatrix Matrix = iota
	ViewMatrix
	ModelMatrix

	NumMatrices
)

var matrixUniforms = [...]string{"projection_mat", "view_mat", "model_mat"}

// Uniform returns the shader uniform the matrix is uploaded to.
func (m Matrix) Uniform() string { return matrixUniforms[m] }

// Matrices holds the current transforms. Every change bumps the matrix's
// generation; programs upload a matrix when their copy is older.
type Matrices struct {
	values [NumMatrices]mgl32.Mat4
	gen    [NumMatrices]uint64
}

// NewMatrices returns identity transforms at generation 1.
func NewMatrices() Matrices {
	var m Matrices
	for i := range m.values {
		m.values[i] = mgl32.Ident4()
		m.gen[i] = 1
	}
	return m
}

// Set replaces matrix id. An unchanged value keeps its generation.
func (m *Matrices) Set(id Matrix, v mgl32.Mat4) {
	if m.values[id] == v {
		return
	}
	m.values[id] = v
	m.gen[id]++
}

// Get returns matrix id.
func (m *Matrices) Get(id Matrix) mgl32.Mat4 { return m.values[id] }

// Generation returns the change count of matrix id.
func (m *Matrices) Generation(id Matrix) uint64 { return m.gen[id] }

// ModelView returns view * model.
func (m *Matrices) ModelView() mgl32.Mat4 {
	return m.values[ViewMatrix].Mul4(m.values[ModelMatrix])
}

// ViewProjection returns projection * view.
func (m *Matrices) ViewProjection() mgl32.Mat4 {
	return m.values[ProjectionMatrix].Mul4(m.values[ViewMatrix])
}
