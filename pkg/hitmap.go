package depfet

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Masked pixels start far below zero so they stand out in a hitmap.
const hitmapMaskOffset = 1e4

// HitmapThreshold is the signal to noise ratio above which a pixel counts
// as hit.
const HitmapThreshold = 5.0

type Hitmap struct {
	values *ValueMatrix[float64]
}

func NewHitmap(mask *PixelMask) (*Hitmap, error) {
	values := NewValueMatrix[float64](mask.SizeX(), mask.SizeY())
	if err := SubtractScaled(values, mask, hitmapMaskOffset); err != nil {
		return nil, err
	}
	return &Hitmap{values: values}, nil
}

// Fill adds the signal of every pixel above HitmapThreshold times its noise.
func (h *Hitmap) Fill(data *ValueMatrix[float64], noise *ValueMatrix[float64]) error {
	if err := checkSameShape("Hitmap", h.values, data); err != nil {
		return err
	}
	if err := checkSameShape("Hitmap noise", h.values, noise); err != nil {
		return err
	}
	for i, signal := range data.values {
		if signal > HitmapThreshold*noise.values[i] {
			h.values.values[i] += signal
		}
	}
	return nil
}

func (h *Hitmap) Values() *ValueMatrix[float64] {
	return h.values
}

// Write writes the size line followed by one line of values per column.
func (h *Hitmap) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", h.values.SizeX(), h.values.SizeY())
	for col := 0; col < h.values.SizeX(); col++ {
		for row := 0; row < h.values.SizeY(); row++ {
			fmt.Fprintf(bw, "%g ", h.values.At(col, row))
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// WriteHitmapFiles writes one hitmap per module, the name built from
// pattern and the module number.
func WriteHitmapFiles(pattern string, hitmaps map[int]*Hitmap) error {
	for module, hitmap := range hitmaps {
		filename := fmt.Sprintf(pattern, module)
		file, err := os.Create(filename)
		if err != nil {
			return &ErrOpenFile{Filename: filename, Err: err}
		}
		err = hitmap.Write(file)
		if errClose := file.Close(); err == nil {
			err = errClose
		}
		if err != nil {
			return fmt.Errorf("error writing hitmap %s: %w", filename, err)
		}
	}
	return nil
}
