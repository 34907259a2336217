package depfet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadMask reads pixel mask entries into mask. Every entry is a column and a
// row; a negative column masks the whole row and a negative row the whole
// column. A first line starting with '*' is a title and '#' starts a
// comment. Reading stops at the first malformed entry.
func ReadMask(r io.Reader, mask *PixelMask) (int, error) {
	scanner := bufio.NewScanner(r)
	lineNr := 0
	var tokens []string
	for scanner.Scan() {
		line := scanner.Text()
		lineNr++
		if lineNr == 1 && strings.HasPrefix(line, "*") {
			continue
		}
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		tokens = append(tokens, strings.Fields(line)...)
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}

	entries := 0
	for i := 0; i+1 < len(tokens); i += 2 {
		col, errCol := strconv.Atoi(tokens[i])
		row, errRow := strconv.Atoi(tokens[i+1])
		if errCol != nil || errRow != nil {
			break
		}
		if err := maskPixel(mask, col, row); err != nil {
			return entries, err
		}
		entries++
	}
	return entries, nil
}

func maskPixel(mask *PixelMask, col int, row int) error {
	switch {
	case col < 0:
		if row < 0 || row >= mask.SizeY() {
			return newFormatError("maskPixel", "row %d outside mask", row)
		}
		for x := 0; x < mask.SizeX(); x++ {
			mask.Set(x, row, 1)
		}
	case row < 0:
		if col >= mask.SizeX() {
			return newFormatError("maskPixel", "column %d outside mask", col)
		}
		for y := 0; y < mask.SizeY(); y++ {
			mask.Set(col, y, 1)
		}
	default:
		return mask.Put(col, row, 1)
	}
	return nil
}

// ReadMaskFile reads the mask of one module from filename.
func ReadMaskFile(filename string, mask *PixelMask) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()
	n, err := ReadMask(file, mask)
	if err != nil {
		return n, &ErrCalibrationFile{Filename: filename, Err: err}
	}
	return n, nil
}

// BuildMasks creates an empty mask for every module of event and fills it
// from the file named by pattern, formatted with the module number. Modules
// without a mask file are not masked.
func BuildMasks(event *Event, pattern string) (MaskMap, error) {
	masks := make(MaskMap)
	for i := range event.Frames {
		frame := &event.Frames[i]
		if _, ok := masks[frame.ModuleNr]; ok {
			continue
		}
		mask := NewValueMatrix[uint8](frame.SizeX(), frame.SizeY())
		masks[frame.ModuleNr] = mask
		if pattern == "" {
			continue
		}
		filename := fmt.Sprintf(pattern, frame.ModuleNr)
		n, err := ReadMaskFile(filename, mask)
		var errOpen *ErrOpenFile
		if errors.As(err, &errOpen) {
			message := fmt.Sprintf("Could not open mask file for module %d, not masking any pixels: %v", frame.ModuleNr, err)
			logger.Error(message)
			continue
		}
		if err != nil {
			return nil, err
		}
		if configuration.Verbosity > 0 {
			message := fmt.Sprintf("Read %d mask entries for module %d from %s", n, frame.ModuleNr, filename)
			logger.Info(message, "mask")
		}
	}
	return masks, nil
}

// CountMasked returns the number of masked pixels.
func CountMasked(mask *PixelMask) int {
	n := 0
	for _, v := range mask.values {
		if v != 0 {
			n++
		}
	}
	return n
}
