package depfet

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
)

// CalibrationData is the calibration of one module as stored in a combined
// calibration file.
type CalibrationData struct {
	Mask      *PixelMask
	Pedestals *ValueMatrix[float64]
	Noise     *ValueMatrix[float64]
}

func NewCalibrationData(sizeX int, sizeY int) *CalibrationData {
	return &CalibrationData{
		Mask:      NewValueMatrix[uint8](sizeX, sizeY),
		Pedestals: NewValueMatrix[float64](sizeX, sizeY),
		Noise:     NewValueMatrix[float64](sizeX, sizeY),
	}
}

// ReadCalibration parses rows of "col row mask pedestal noise". The input is
// read as a stream of whitespace separated values, so a row may span lines.
// Rows can come in any order. Parsing stops at the first malformed row,
// which is reported together with the number of rows read before it.
func ReadCalibration(r io.Reader, calibration *CalibrationData) (int, error) {
	scanner := bufio.NewScanner(r)
	lineNr := 0
	rows := 0
	fields := make([]string, 0, calibrationColumns)
	for scanner.Scan() {
		lineNr++
		for _, field := range strings.Fields(scanner.Text()) {
			fields = append(fields, field)
			if len(fields) < calibrationColumns {
				continue
			}
			if err := parseCalibrationRow(fields, calibration); err != nil {
				return rows, &ErrCalibrationFile{Line: lineNr, Err: err}
			}
			fields = fields[:0]
			rows++
		}
	}
	if err := scanner.Err(); err != nil {
		return rows, &ErrCalibrationFile{Line: lineNr, Err: err}
	}
	if len(fields) > 0 {
		err := fmt.Errorf("expected %d values, found %d before end of input", calibrationColumns, len(fields))
		return rows, &ErrCalibrationFile{Line: lineNr, Err: err}
	}
	return rows, nil
}

// calibrationColumns is the number of values of a calibration row.
const calibrationColumns = 5

func parseCalibrationRow(fields []string, calibration *CalibrationData) error {
	col, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("invalid column: %w", err)
	}
	row, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("invalid row: %w", err)
	}
	masked, err := strconv.ParseUint(fields[2], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid mask flag: %w", err)
	}
	pedestal, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return fmt.Errorf("invalid pedestal: %w", err)
	}
	noise, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return fmt.Errorf("invalid noise: %w", err)
	}
	if err := calibration.Mask.Put(col, row, uint8(masked)); err != nil {
		return err
	}
	calibration.Pedestals.Set(col, row, pedestal)
	calibration.Noise.Set(col, row, noise)
	return nil
}

// ReadCalibrationFile reads a combined calibration file for a module of
// size sizeX x sizeY.
func ReadCalibrationFile(filename string, sizeX int, sizeY int) (*CalibrationData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	calibration := NewCalibrationData(sizeX, sizeY)
	rows, err := ReadCalibration(file, calibration)
	if err != nil {
		if errCal, ok := err.(*ErrCalibrationFile); ok {
			errCal.Filename = filename
		}
		return nil, err
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Read %d calibration rows from %s", rows, filename)
		logger.Info(message, "calibration")
	}
	return calibration, nil
}

// formatValue writes value*scale in a fixed width column, NaN as zero.
func formatValue(w io.Writer, value float64, scale float64) {
	if math.IsNaN(value) {
		value = 0
	}
	fmt.Fprintf(w, "%8.2f ", value*scale)
}

// WriteCalibration writes the combined calibration of one module, one row
// per pixel with the noise given as the width of the noise statistic.
func WriteCalibration(w io.Writer, mask *PixelMask, pedestals *MeanMatrix, noise *MeanMatrix, scale float64) error {
	if err := checkSameShape("WriteCalibration", pedestals, noise); err != nil {
		return err
	}
	if mask != nil {
		if err := checkSameShape("WriteCalibration", pedestals, mask); err != nil {
			return err
		}
	}
	bw := bufio.NewWriter(w)
	for col := 0; col < pedestals.SizeX(); col++ {
		for row := 0; row < pedestals.SizeY(); row++ {
			masked := 0
			if mask != nil {
				masked = int(mask.At(col, row))
			}
			fmt.Fprintf(bw, "%6d%6d%2d ", col, row, masked)
			formatValue(bw, pedestals.At(col, row).Mean(), scale)
			formatValue(bw, noise.At(col, row).Sigma(), scale)
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

// WriteCalibrationFiles writes one combined calibration file per module,
// the name built from pattern and the module number.
func WriteCalibrationFiles(pattern string, masks MaskMap, pedestals PedestalMap, noise NoiseMap, scale float64) error {
	for _, module := range slices.Sorted(maps.Keys(pedestals)) {
		filename := fmt.Sprintf(pattern, module)
		if !strings.Contains(pattern, "%") {
			filename = pattern
		}
		n := noise[module]
		if n == nil {
			return fmt.Errorf("no noise for module %d", module)
		}
		file, err := os.Create(filename)
		if err != nil {
			return &ErrOpenFile{Filename: filename, Err: err}
		}
		err = WriteCalibration(file, masks[module], pedestals[module], n, scale)
		if errClose := file.Close(); err == nil {
			err = errClose
		}
		if err != nil {
			return fmt.Errorf("error writing calibration file %s: %w", filename, err)
		}
		if configuration.Verbosity > 0 {
			message := fmt.Sprintf("Calibration of module %d written to %s", module, filename)
			logger.Info(message, "calibration")
		}
	}
	return nil
}

// WriteMeanMap dumps the mean and then the width of every module, rows of
// constant y, for inspection.
func WriteMeanMap(w io.Writer, data map[int]*MeanMatrix, scale float64) error {
	bw := bufio.NewWriter(w)
	modules := slices.Sorted(maps.Keys(data))
	sections := []struct {
		name  string
		value func(*IncrementalMean) float64
	}{
		{"mean", (*IncrementalMean).Mean},
		{"sigma", (*IncrementalMean).Sigma},
	}
	for _, section := range sections {
		fmt.Fprintf(bw, "%s %d\n", section.name, len(modules))
		for _, module := range modules {
			matrix := data[module]
			fmt.Fprintf(bw, "module %d %d %d\n", module, matrix.SizeX(), matrix.SizeY())
			for y := 0; y < matrix.SizeY(); y++ {
				for x := 0; x < matrix.SizeX(); x++ {
					formatValue(bw, section.value(matrix.At(x, y)), scale)
				}
				bw.WriteString("\n")
			}
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}
