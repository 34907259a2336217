package depfet

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMask(t *testing.T) {
	input := `* masked pixels of module 1
1 2   # hot pixel
-1 3
4 -1
foo 5
6 7
`
	mask := NewValueMatrix[uint8](8, 8)
	n, err := ReadMask(strings.NewReader(input), mask)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint8(1), mask.At(1, 2))
	assert.Equal(t, uint8(1), mask.At(7, 3))
	assert.Equal(t, uint8(1), mask.At(4, 0))
	// parsing stopped before the last pair
	assert.Equal(t, uint8(0), mask.At(6, 7))
	assert.Equal(t, 1+8+8-1, CountMasked(mask))
}

func TestReadMaskOutside(t *testing.T) {
	mask := NewValueMatrix[uint8](8, 8)
	_, err := ReadMask(strings.NewReader("9 9\n"), mask)
	var formatErr *FormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestBuildMasks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mask_1.txt"), []byte("0 0\n"), 0o644))

	event := uniformEvent(1, 4, 4, 0)
	other := uniformEvent(2, 2, 2, 0)
	event.Frames = append(event.Frames, other.Frames...)

	masks, err := BuildMasks(&event, filepath.Join(dir, "mask_%d.txt"))
	require.NoError(t, err)
	require.Len(t, masks, 2)
	assert.Equal(t, 1, CountMasked(masks[1]))
	// no file for module 2, nothing masked
	assert.Equal(t, 0, CountMasked(masks[2]))
	assert.Equal(t, 2, masks[2].SizeX())
}

func calibrationMaps() (*PixelMask, *MeanMatrix, *MeanMatrix) {
	mask := NewValueMatrix[uint8](2, 2)
	mask.Set(1, 0, 1)
	pedestals := NewMeanMatrix(2, 2)
	noise := NewMeanMatrix(2, 2)
	for i := 0; i < 4; i++ {
		pedestals.Index(i).AddValue(float64(i) + 0.25)
		pedestals.Index(i).AddValue(float64(i) + 0.75)
		noise.Index(i).AddValue(-1)
		noise.Index(i).AddValue(1)
	}
	return mask, pedestals, noise
}

func TestWriteCalibration(t *testing.T) {
	mask, pedestals, noise := calibrationMaps()
	// pixel (1,1) never saw an event
	noise.Index(3).Clear()

	var buf bytes.Buffer
	require.NoError(t, WriteCalibration(&buf, mask, pedestals, noise, 1))
	want := "     0     0 0     0.50     1.00 \n" +
		"     0     1 0     1.50     1.00 \n" +
		"     1     0 1     2.50     1.00 \n" +
		"     1     1 0     3.50     0.00 \n"
	assert.Equal(t, want, buf.String())
}

func TestCalibrationRoundTrip(t *testing.T) {
	mask, pedestals, noise := calibrationMaps()
	path := filepath.Join(t.TempDir(), "calibration_%d.txt")
	err := WriteCalibrationFiles(path, MaskMap{3: mask}, PedestalMap{3: pedestals}, NoiseMap{3: noise}, 2)
	require.NoError(t, err)

	calibration, err := ReadCalibrationFile(filepath.Join(filepath.Dir(path), "calibration_3.txt"), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, mask.Values(), calibration.Mask.Values())
	assert.Equal(t, []float64{1, 3, 5, 7}, calibration.Pedestals.Values())
	assert.Equal(t, []float64{2, 2, 2, 2}, calibration.Noise.Values())
}

func TestReadCalibrationMalformed(t *testing.T) {
	input := "0 0 0 1.0 2.0\n\n0 1 0 1.0\n"
	calibration := NewCalibrationData(2, 2)
	n, err := ReadCalibration(strings.NewReader(input), calibration)
	assert.Equal(t, 1, n)
	var calErr *ErrCalibrationFile
	require.True(t, errors.As(err, &calErr))
	assert.Equal(t, 3, calErr.Line)

	_, err = ReadCalibration(strings.NewReader("5 0 0 1.0 2.0\n"), calibration)
	var formatErr *FormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestReadCalibrationTokenStream(t *testing.T) {
	input := "0 0 1 1.5\n2.5 0 1\n0 3.5 4.5 1 0 0 5.5 6.5\n1 1 0 7.5 8.5"
	calibration := NewCalibrationData(2, 2)
	n, err := ReadCalibration(strings.NewReader(input), calibration)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []uint8{1, 0, 0, 0}, calibration.Mask.Values())
	assert.Equal(t, []float64{1.5, 3.5, 5.5, 7.5}, calibration.Pedestals.Values())
	assert.Equal(t, []float64{2.5, 4.5, 6.5, 8.5}, calibration.Noise.Values())
}

func TestReadCalibrationMaskFlagRange(t *testing.T) {
	for _, flag := range []string{"256", "-1"} {
		calibration := NewCalibrationData(2, 2)
		input := "0 0 0 1.0 2.0\n1 0 " + flag + " 1.0 2.0\n"
		n, err := ReadCalibration(strings.NewReader(input), calibration)
		assert.Equal(t, 1, n, flag)
		var calErr *ErrCalibrationFile
		require.True(t, errors.As(err, &calErr), flag)
		assert.Equal(t, 2, calErr.Line, flag)
		assert.Equal(t, uint8(0), calibration.Mask.At(1, 0), flag)
	}
}

func TestWriteMeanMap(t *testing.T) {
	_, pedestals, _ := calibrationMaps()
	var buf bytes.Buffer
	require.NoError(t, WriteMeanMap(&buf, map[int]*MeanMatrix{1: pedestals}, 1))
	want := "mean 1\n" +
		"module 1 2 2\n" +
		"    0.50     2.50 \n" +
		"    1.50     3.50 \n" +
		"\n" +
		"sigma 1\n" +
		"module 1 2 2\n" +
		"    0.25     0.25 \n" +
		"    0.25     0.25 \n" +
		"\n"
	assert.Equal(t, want, buf.String())
}

func TestTextWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	writer, err := NewTextWriter(path, 1)
	require.NoError(t, err)

	frame := ADCValues{ModuleNr: 3}
	frame.SetSize(2, 2)
	frame.Set(0, 0, 1)
	frame.Set(1, 0, 2)
	frame.Set(0, 1, 3)
	frame.Set(1, 1, 4)

	writer.BeginEvent(1, 7, 1)
	writer.WriteFrame(&frame, func(x int, y int, adc float64) float64 {
		if adc < 2 {
			return 0
		}
		return adc
	})
	writer.EndEvent()
	require.NoError(t, writer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "event 1 7 1\n" +
		"module 3 2 2\n" +
		"    0.00     2.00 \n" +
		"    3.00     4.00 \n" +
		"\n"
	assert.Equal(t, want, string(content))
}

func TestHitmap(t *testing.T) {
	mask := NewValueMatrix[uint8](2, 1)
	mask.Set(1, 0, 1)
	hitmap, err := NewHitmap(mask)
	require.NoError(t, err)

	noise := NewValueMatrix[float64](2, 1)
	noise.Set(0, 0, 1)
	noise.Set(1, 0, 1)
	for _, signal := range []float64{10, 3, 7} {
		data := NewValueMatrix[float64](2, 1)
		data.Set(0, 0, signal)
		require.NoError(t, hitmap.Fill(data, noise))
	}
	assert.Equal(t, 17.0, hitmap.Values().At(0, 0))
	assert.Equal(t, -1e4, hitmap.Values().At(1, 0))

	var buf bytes.Buffer
	require.NoError(t, hitmap.Write(&buf))
	assert.Equal(t, "2 1\n17 \n-10000 \n", buf.String())

	assert.Error(t, hitmap.Fill(NewValueMatrix[float64](1, 1), noise))
}
