package depfet

import "math"

// IncrementalMean accumulates mean and variance of a stream of weighted
// values with Welford's update.
type IncrementalMean struct {
	entries  float64
	mean     float64
	variance float64
}

// Add adds x with the given weight. If sigmaCut > 0 and x is further than
// sigmaCut standard deviations from the current mean the value is rejected
// and false is returned.
func (m *IncrementalMean) Add(x float64, weight float64, sigmaCut float64) bool {
	if sigmaCut > 0 && math.Abs(x-m.mean) > m.Sigma()*sigmaCut {
		return false
	}
	oldMean := m.mean
	m.entries += weight
	m.mean += weight * (x - oldMean) / m.entries
	m.variance += weight * (x - oldMean) * (x - m.mean)
	return true
}

// AddValue adds x with weight one and no cut.
func (m *IncrementalMean) AddValue(x float64) {
	m.Add(x, 1, 0)
}

func (m *IncrementalMean) Entries() float64 {
	return m.entries
}

func (m *IncrementalMean) Mean() float64 {
	return m.mean
}

// Variance returns the accumulated sum of squared deviations, not divided by
// the number of entries.
func (m *IncrementalMean) Variance() float64 {
	return m.variance
}

// Sigma is NaN while no entries have been added.
func (m *IncrementalMean) Sigma() float64 {
	return math.Sqrt(m.variance / m.entries)
}

func (m *IncrementalMean) Clear() {
	*m = IncrementalMean{}
}
