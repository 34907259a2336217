package depfet

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func TestValueMatrixLayout(t *testing.T) {
	m := NewValueMatrix[float64](3, 4)
	assert.Equal(t, 12, m.Size())
	m.Set(2, 1, 5)
	assert.Equal(t, 5.0, m.Index(2*4+1))

	_, err := m.Get(3, 0)
	var formatErr *FormatError
	assert.True(t, errors.As(err, &formatErr))
	assert.Error(t, m.Put(0, -1, 1))

	m.SetSize(2, 2)
	assert.Equal(t, []float64{0, 0, 0, 0}, m.Values())
	assert.False(t, m.Empty())
	assert.True(t, (&ValueMatrix[int]{}).Empty())
}

func TestValueMatrixArithmetic(t *testing.T) {
	a := NewValueMatrix[float64](2, 2)
	b := NewValueMatrix[float64](2, 2)
	for i := 0; i < 4; i++ {
		a.SetIndex(i, float64(10*i))
		b.SetIndex(i, float64(i))
	}
	require.NoError(t, a.Subtract(b))
	assert.Equal(t, []float64{0, 9, 18, 27}, a.Values())
	require.NoError(t, a.Add(b))
	assert.Equal(t, []float64{0, 10, 20, 30}, a.Values())

	mask := NewValueMatrix[uint8](2, 2)
	mask.Set(1, 1, 1)
	require.NoError(t, SubtractScaled(a, mask, 100))
	assert.Equal(t, -70.0, a.At(1, 1))

	scaled := NewValueMatrix[float64](2, 2)
	require.NoError(t, SetScaled(scaled, b, 0.5))
	assert.Equal(t, []float64{0, 0.5, 1, 1.5}, scaled.Values())

	var c ValueMatrix[float64]
	c.CopyFrom(b)
	assert.Equal(t, b.Values(), c.Values())
	c.SetIndex(0, 42)
	assert.Equal(t, 0.0, b.Index(0))
}

func TestValueMatrixDimensionMismatch(t *testing.T) {
	a := NewValueMatrix[float64](2, 3)
	b := NewValueMatrix[float64](3, 2)
	err := a.Subtract(b)
	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Contains(t, formatErr.Msg, "dimension mismatch")
	assert.Error(t, a.Add(b))
	assert.Error(t, SubtractMeans(a, NewMeanMatrix(3, 2)))
}

func TestIncrementalMeanMatchesPopulationStatistics(t *testing.T) {
	data := []float64{3.5, 7.25, -1, 4, 12.5, 0.75, 6}
	var m IncrementalMean
	for _, x := range data {
		m.AddValue(x)
	}
	mean, variance := stat.PopMeanVariance(data, nil)
	assert.Equal(t, float64(len(data)), m.Entries())
	assert.InDelta(t, mean, m.Mean(), 1e-12)
	assert.InDelta(t, math.Sqrt(variance), m.Sigma(), 1e-12)
	assert.InDelta(t, variance*float64(len(data)), m.Variance(), 1e-9)
}

func TestIncrementalMeanWeights(t *testing.T) {
	var weighted, repeated IncrementalMean
	weighted.Add(2, 3, 0)
	weighted.Add(6, 1, 0)
	for _, x := range []float64{2, 2, 2, 6} {
		repeated.AddValue(x)
	}
	assert.InDelta(t, repeated.Mean(), weighted.Mean(), 1e-12)
	assert.InDelta(t, repeated.Sigma(), weighted.Sigma(), 1e-12)
}

func TestIncrementalMeanEmpty(t *testing.T) {
	var m IncrementalMean
	assert.Equal(t, 0.0, m.Mean())
	assert.True(t, math.IsNaN(m.Sigma()))
	// with no entries the cut accepts everything
	assert.True(t, m.Add(100, 1, 3))
	m.Clear()
	assert.Equal(t, 0.0, m.Entries())
}

func TestIncrementalMeanSigmaCut(t *testing.T) {
	var m IncrementalMean
	for _, x := range []float64{10, 10, 12, 8} {
		m.AddValue(x)
	}
	assert.InDelta(t, math.Sqrt2, m.Sigma(), 1e-12)
	assert.False(t, m.Add(20, 1, 3))
	assert.Equal(t, 4.0, m.Entries())
	assert.True(t, m.Add(11, 1, 3))
	assert.Equal(t, 5.0, m.Entries())
}

func TestMeanMatrix(t *testing.T) {
	m := NewMeanMatrix(2, 1)
	for _, x := range []float64{1, 2, 3} {
		m.At(0, 0).AddValue(x)
		m.At(1, 0).AddValue(2 * x)
	}
	means := m.Means()
	assert.True(t, floats.EqualApprox([]float64{2, 4}, means.Values(), 1e-12))
	sigmas := m.Sigmas()
	assert.InDelta(t, 2*sigmas.At(0, 0), sigmas.At(1, 0), 1e-12)

	values := NewValueMatrix[float64](2, 1)
	values.Set(0, 0, 5)
	values.Set(1, 0, 5)
	require.NoError(t, SubtractMeans(values, m))
	assert.Equal(t, []float64{3, 1}, values.Values())

	assert.True(t, math.IsNaN(NewMeanMatrix(1, 1).Sigmas().Index(0)))
}
