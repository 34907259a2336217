package depfet

import (
	"fmt"
	"math"
)

// Per module maps, keyed by module number.
type PedestalMap map[int]*MeanMatrix
type NoiseMap map[int]*MeanMatrix
type MaskMap map[int]*PixelMask

// EventSource is anything that yields events one at a time, like a
// DataReader.
type EventSource interface {
	Next() bool
	Event() *Event
	Err() error
}

// ShowProgress reports whether progress should be printed for event, using
// an interval that grows with the number of events read.
func ShowProgress(event int, minOrder int, maxOrder int) bool {
	order := 1
	if event != 0 {
		order = max(min(int(math.Log10(float64(event))), maxOrder), minOrder)
	}
	interval := int(math.Pow(10, float64(order)))
	return event%interval == 0
}

func moduleMatrix(m map[int]*MeanMatrix, module int, shape Shape) (*MeanMatrix, error) {
	matrix, ok := m[module]
	if !ok {
		matrix = NewMeanMatrix(shape.SizeX(), shape.SizeY())
		m[module] = matrix
		return matrix, nil
	}
	if err := checkSameShape(fmt.Sprintf("module %d", module), matrix, shape); err != nil {
		return nil, err
	}
	return matrix, nil
}

// CalculatePedestals runs one pedestal pass over source and returns a new
// snapshot. With sigmaCut > 0 values further than sigmaCut standard
// deviations from the previous snapshot are left out. previous is only read.
func CalculatePedestals(source EventSource, previous PedestalMap, sigmaCut float64, masks MaskMap) (PedestalMap, error) {
	pedestals := make(PedestalMap)
	eventNr := 1
	for source.Next() {
		event := source.Event()
		for i := range event.Frames {
			data := &event.Frames[i]
			current, err := moduleMatrix(pedestals, data.ModuleNr, data)
			if err != nil {
				return nil, err
			}
			mask := masks[data.ModuleNr]
			if mask != nil {
				if err := checkSameShape("pedestal mask", data, mask); err != nil {
					return nil, err
				}
			}
			var prev *MeanMatrix
			if sigmaCut > 0 {
				prev = previous[data.ModuleNr]
				if prev == nil {
					return nil, fmt.Errorf("no previous pedestals for module %d", data.ModuleNr)
				}
				if err := checkSameShape("previous pedestals", data, prev); err != nil {
					return nil, err
				}
			}
			for j, value := range data.values {
				if mask != nil && mask.values[j] != 0 {
					continue
				}
				if prev != nil {
					mean := prev.values[j].Mean()
					width := prev.values[j].Sigma() * sigmaCut
					if math.Abs(value-mean) > width {
						continue
					}
				}
				current.values[j].AddValue(value)
			}
		}
		if configuration.Verbosity > 0 && ShowProgress(eventNr, 1, 3) {
			message := fmt.Sprintf("Pedestal calculation (%g sigma cut): %d events read", sigmaCut, eventNr)
			logger.Info(message, "calibration")
		}
		eventNr++
	}
	if err := source.Err(); err != nil {
		return nil, fmt.Errorf("error reading events for pedestals: %w", err)
	}
	return pedestals, nil
}

// CalculateNoise runs the noise pass: pedestals are subtracted, the common
// mode corrected and values within sigmaCut pedestal widths accumulated.
// The events of source are modified in place.
func CalculateNoise(source EventSource, pedestals PedestalMap, masks MaskMap, commonMode *CommonMode, sigmaCut float64) (NoiseMap, error) {
	noise := make(NoiseMap)
	eventNr := 1
	for source.Next() {
		event := source.Event()
		for i := range event.Frames {
			data := &event.Frames[i]
			ped := pedestals[data.ModuleNr]
			if ped == nil {
				return nil, fmt.Errorf("no pedestals for module %d", data.ModuleNr)
			}
			current, err := moduleMatrix(noise, data.ModuleNr, data)
			if err != nil {
				return nil, err
			}
			if err := SubtractMeans(&data.ValueMatrix, ped); err != nil {
				return nil, err
			}
			commonMode.SetMask(masks[data.ModuleNr])
			if err := commonMode.Apply(&data.ValueMatrix); err != nil {
				return nil, err
			}
			for j, signal := range data.values {
				if math.Abs(signal) > sigmaCut*ped.values[j].Sigma() {
					continue
				}
				current.values[j].AddValue(signal)
			}
		}
		if configuration.Verbosity > 0 && ShowProgress(eventNr, 1, 3) {
			message := fmt.Sprintf("Calculating noise: %d events read", eventNr)
			logger.Info(message, "calibration")
		}
		eventNr++
	}
	if err := source.Err(); err != nil {
		return nil, fmt.Errorf("error reading events for noise: %w", err)
	}
	return noise, nil
}

// NoiseValues returns the final noise (the width of the noise statistic)
// of every module.
func NoiseValues(noise NoiseMap) map[int]*ValueMatrix[float64] {
	values := make(map[int]*ValueMatrix[float64], len(noise))
	for module, n := range noise {
		values[module] = n.Sigmas()
	}
	return values
}

// CalibrationPass describes the event range used for calibration.
type CalibrationPass struct {
	Files    []string
	Events   int
	Skip     int
	SigmaCut float64
}

// Calibrate runs the three calibration passes: pedestals without cut,
// pedestals with a sigma cut around the first result and noise. The reader
// is reopened and skipped before each pass.
func Calibrate(reader *DataReader, pass CalibrationPass, masks MaskMap, commonMode *CommonMode) (PedestalMap, NoiseMap, error) {
	rewind := func() error {
		if err := reader.Open(pass.Files, pass.Events); err != nil {
			return err
		}
		return reader.Skip(pass.Skip)
	}

	if err := rewind(); err != nil {
		return nil, nil, err
	}
	pedestals, err := CalculatePedestals(reader, nil, 0, masks)
	if err != nil {
		return nil, nil, err
	}

	if err := rewind(); err != nil {
		return nil, nil, err
	}
	refined, err := CalculatePedestals(reader, pedestals, pass.SigmaCut, masks)
	if err != nil {
		return nil, nil, err
	}
	pedestals = refined

	if err := rewind(); err != nil {
		return nil, nil, err
	}
	noise, err := CalculateNoise(reader, pedestals, masks, commonMode, pass.SigmaCut)
	if err != nil {
		return nil, nil, err
	}
	return pedestals, noise, nil
}
