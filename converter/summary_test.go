package main

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommonModeSummary(t *testing.T) {
	summary := newCommonModeSummary()
	summary.add(3, []float64{1, 3}, []float64{2})
	summary.add(3, []float64{5, 7}, []float64{4})
	summary.add(1, []float64{0}, nil)

	require.Len(t, summary.modules, 2)
	module := summary.modules[3]
	assert.Equal(t, 4.0, module.rows.Entries())
	assert.InDelta(t, 4.0, module.rows.Mean(), 1e-12)
	assert.InDelta(t, math.Sqrt(5), module.rows.Sigma(), 1e-12)
	assert.Equal(t, 2.0, module.cols.Entries())
	assert.InDelta(t, 3.0, module.cols.Mean(), 1e-12)
	assert.InDelta(t, 1.0, module.cols.Sigma(), 1e-12)
	assert.Equal(t, 2.0, module.rowSpread.Entries())
	assert.InDelta(t, math.Sqrt2, module.rowSpread.Mean(), 1e-12)

	// a single row correction has no spread
	assert.Equal(t, 0.0, summary.modules[1].rowSpread.Entries())

	var buf bytes.Buffer
	summary.log(Logger{InfoLog: slog.New(slog.NewTextHandler(&buf, nil))})
	out := buf.String()
	assert.Contains(t, out, "Module 1 common mode")
	assert.Contains(t, out, "Module 3 common mode: rows 4.00 +- 2.24 (4)")
}
