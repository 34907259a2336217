package depfet

import (
	"bufio"
	"fmt"
	"os"
)

// TextWriter writes calibrated events as text: an event line followed by one
// block per frame with a row of values for every y.
type TextWriter struct {
	file     *os.File
	out      *bufio.Writer
	Filename string
	Scale    float64
}

func NewTextWriter(filename string, scale float64) (*TextWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Creating text file: %s", filename)
		logger.Info(message, "textWriter")
	}
	return &TextWriter{
		file:     file,
		out:      bufio.NewWriterSize(file, 1<<20),
		Filename: filename,
		Scale:    scale,
	}, nil
}

func (w *TextWriter) BeginEvent(runNumber uint32, eventNumber uint32, nFrames int) {
	fmt.Fprintf(w.out, "event %d %d %d\n", runNumber, eventNumber, nFrames)
}

// WriteFrame writes the module line and the values of the frame. The value
// function allows the caller to zero suppress or flag pixels.
func (w *TextWriter) WriteFrame(frame *ADCValues, value func(x int, y int, adc float64) float64) {
	fmt.Fprintf(w.out, "module %d %d %d\n", frame.ModuleNr, frame.SizeX(), frame.SizeY())
	for y := 0; y < frame.SizeY(); y++ {
		for x := 0; x < frame.SizeX(); x++ {
			adc := frame.At(x, y)
			if value != nil {
				adc = value(x, y, adc)
			}
			formatValue(w.out, adc, w.Scale)
		}
		w.out.WriteString("\n")
	}
}

func (w *TextWriter) EndEvent() {
	w.out.WriteString("\n")
}

func (w *TextWriter) Close() error {
	errFlush := w.out.Flush()
	errClose := w.file.Close()
	if errFlush != nil {
		return fmt.Errorf("error flushing %s: %w", w.Filename, errFlush)
	}
	return errClose
}
