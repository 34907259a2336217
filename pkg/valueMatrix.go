package depfet

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// Shape is implemented by every matrix type so that sizes can be copied
// and compared between matrices of different element types.
type Shape interface {
	SizeX() int
	SizeY() int
}

// ValueMatrix is a dense 2D matrix stored with x as the slow index:
// element (x, y) lives at x*sizeY + y.
type ValueMatrix[T Number] struct {
	sizeX  int
	sizeY  int
	values []T
}

type PixelMask = ValueMatrix[uint8]
type PixelValues = ValueMatrix[float64]

func NewValueMatrix[T Number](sizeX int, sizeY int) *ValueMatrix[T] {
	m := &ValueMatrix[T]{}
	m.SetSize(sizeX, sizeY)
	return m
}

// SetSize resizes the matrix and clears its content.
func (m *ValueMatrix[T]) SetSize(sizeX int, sizeY int) {
	if sizeX < 0 {
		sizeX = 0
	}
	if sizeY < 0 {
		sizeY = 0
	}
	m.sizeX = sizeX
	m.sizeY = sizeY
	n := sizeX * sizeY
	if cap(m.values) >= n {
		m.values = m.values[:n]
		clear(m.values)
	} else {
		m.values = make([]T, n)
	}
}

func (m *ValueMatrix[T]) SetSizeOf(s Shape) {
	m.SetSize(s.SizeX(), s.SizeY())
}

func (m *ValueMatrix[T]) SizeX() int { return m.sizeX }
func (m *ValueMatrix[T]) SizeY() int { return m.sizeY }
func (m *ValueMatrix[T]) Size() int  { return len(m.values) }

func (m *ValueMatrix[T]) Empty() bool {
	return len(m.values) == 0
}

func (m *ValueMatrix[T]) Clear() {
	clear(m.values)
}

func (m *ValueMatrix[T]) At(x int, y int) T {
	return m.values[x*m.sizeY+y]
}

func (m *ValueMatrix[T]) Set(x int, y int, value T) {
	m.values[x*m.sizeY+y] = value
}

func (m *ValueMatrix[T]) Index(i int) T {
	return m.values[i]
}

func (m *ValueMatrix[T]) SetIndex(i int, value T) {
	m.values[i] = value
}

// Values returns the backing slice in storage order.
func (m *ValueMatrix[T]) Values() []T {
	return m.values
}

func (m *ValueMatrix[T]) inBounds(x int, y int) bool {
	return x >= 0 && x < m.sizeX && y >= 0 && y < m.sizeY
}

// Get is the bounds-checked version of At.
func (m *ValueMatrix[T]) Get(x int, y int) (T, error) {
	if !m.inBounds(x, y) {
		var zero T
		return zero, newFormatError("ValueMatrix.Get", "index (%d,%d) outside %dx%d", x, y, m.sizeX, m.sizeY)
	}
	return m.At(x, y), nil
}

// Put is the bounds-checked version of Set.
func (m *ValueMatrix[T]) Put(x int, y int, value T) error {
	if !m.inBounds(x, y) {
		return newFormatError("ValueMatrix.Put", "index (%d,%d) outside %dx%d", x, y, m.sizeX, m.sizeY)
	}
	m.Set(x, y, value)
	return nil
}

func (m *ValueMatrix[T]) Subtract(other *ValueMatrix[T]) error {
	return SubtractScaled(m, other, 1)
}

func (m *ValueMatrix[T]) Add(other *ValueMatrix[T]) error {
	return AddScaled(m, other, 1)
}

// CopyFrom resizes m to the shape of other and copies its values.
func (m *ValueMatrix[T]) CopyFrom(other *ValueMatrix[T]) {
	m.SetSize(other.sizeX, other.sizeY)
	copy(m.values, other.values)
}

func checkSameShape(op string, a Shape, b Shape) error {
	if a.SizeX() != b.SizeX() || a.SizeY() != b.SizeY() {
		return newFormatError(op, "dimension mismatch %dx%d vs %dx%d",
			a.SizeX(), a.SizeY(), b.SizeX(), b.SizeY())
	}
	return nil
}

// SubtractScaled computes m -= scale*other element-wise. other may have a
// different element type, e.g. a hitmap minus a scaled pixel mask.
func SubtractScaled[T Number, U Number](m *ValueMatrix[T], other *ValueMatrix[U], scale float64) error {
	if err := checkSameShape("Subtract", m, other); err != nil {
		return err
	}
	for i, v := range other.values {
		m.values[i] = T(float64(m.values[i]) - float64(v)*scale)
	}
	return nil
}

// AddScaled computes m += scale*other element-wise.
func AddScaled[T Number, U Number](m *ValueMatrix[T], other *ValueMatrix[U], scale float64) error {
	if err := checkSameShape("Add", m, other); err != nil {
		return err
	}
	for i, v := range other.values {
		m.values[i] = T(float64(m.values[i]) + float64(v)*scale)
	}
	return nil
}

// SetScaled computes m = scale*other element-wise.
func SetScaled[T Number, U Number](m *ValueMatrix[T], other *ValueMatrix[U], scale float64) error {
	if err := checkSameShape("Set", m, other); err != nil {
		return err
	}
	for i, v := range other.values {
		m.values[i] = T(float64(v) * scale)
	}
	return nil
}

// MeanMatrix holds one streaming statistic per pixel.
type MeanMatrix struct {
	sizeX  int
	sizeY  int
	values []IncrementalMean
}

func NewMeanMatrix(sizeX int, sizeY int) *MeanMatrix {
	m := &MeanMatrix{}
	m.SetSize(sizeX, sizeY)
	return m
}

func (m *MeanMatrix) SetSize(sizeX int, sizeY int) {
	m.sizeX = sizeX
	m.sizeY = sizeY
	m.values = make([]IncrementalMean, sizeX*sizeY)
}

func (m *MeanMatrix) SetSizeOf(s Shape) {
	m.SetSize(s.SizeX(), s.SizeY())
}

func (m *MeanMatrix) SizeX() int { return m.sizeX }
func (m *MeanMatrix) SizeY() int { return m.sizeY }
func (m *MeanMatrix) Size() int  { return len(m.values) }

func (m *MeanMatrix) Empty() bool {
	return m == nil || len(m.values) == 0
}

func (m *MeanMatrix) At(x int, y int) *IncrementalMean {
	return &m.values[x*m.sizeY+y]
}

func (m *MeanMatrix) Index(i int) *IncrementalMean {
	return &m.values[i]
}

// Means returns a matrix with the mean of every pixel.
func (m *MeanMatrix) Means() *ValueMatrix[float64] {
	means := NewValueMatrix[float64](m.sizeX, m.sizeY)
	for i := range m.values {
		means.values[i] = m.values[i].Mean()
	}
	return means
}

// Sigmas returns a matrix with the standard deviation of every pixel.
// Pixels without entries are NaN.
func (m *MeanMatrix) Sigmas() *ValueMatrix[float64] {
	sigmas := NewValueMatrix[float64](m.sizeX, m.sizeY)
	for i := range m.values {
		sigmas.values[i] = m.values[i].Sigma()
	}
	return sigmas
}

// SubtractMeans subtracts the per-pixel mean of means from m.
func SubtractMeans[T Number](m *ValueMatrix[T], means *MeanMatrix) error {
	if err := checkSameShape("SubtractMeans", m, means); err != nil {
		return err
	}
	for i := range means.values {
		m.values[i] = T(float64(m.values[i]) - means.values[i].Mean())
	}
	return nil
}
