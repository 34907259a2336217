package main

import (
	"fmt"
	"maps"
	"slices"

	"gonum.org/v1/gonum/stat"

	depfet "github.com/depfet-daq/depfetreader_go/pkg"
)

// moduleSummary keeps running statistics of the corrections of one module:
// all row and column corrections, and the spread of the row corrections
// within each event.
type moduleSummary struct {
	rows      depfet.IncrementalMean
	cols      depfet.IncrementalMean
	rowSpread depfet.IncrementalMean
}

// commonModeSummary reports the corrections applied to every module at the
// end of the run.
type commonModeSummary struct {
	modules map[int]*moduleSummary
}

func newCommonModeSummary() *commonModeSummary {
	return &commonModeSummary{
		modules: make(map[int]*moduleSummary),
	}
}

func (s *commonModeSummary) add(module int, rows []float64, cols []float64) {
	summary, ok := s.modules[module]
	if !ok {
		summary = &moduleSummary{}
		s.modules[module] = summary
	}
	for _, v := range rows {
		summary.rows.AddValue(v)
	}
	for _, v := range cols {
		summary.cols.AddValue(v)
	}
	if len(rows) > 1 {
		summary.rowSpread.AddValue(stat.StdDev(rows, nil))
	}
}

func (s *commonModeSummary) log(logger Logger) {
	for _, module := range slices.Sorted(maps.Keys(s.modules)) {
		summary := s.modules[module]
		message := fmt.Sprintf("Module %d common mode: rows %.2f +- %.2f (%g), columns %.2f +- %.2f (%g), row spread per event %.2f",
			module,
			summary.rows.Mean(), summary.rows.Sigma(), summary.rows.Entries(),
			summary.cols.Mean(), summary.cols.Sigma(), summary.cols.Entries(),
			summary.rowSpread.Mean())
		logger.Info(message, "summary")
	}
}
