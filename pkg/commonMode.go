package depfet

import (
	"fmt"
	"slices"
)

// CommonMode removes the baseline shared by blocks of pixels. The row stage
// groups nRows consecutive rows split in rowDivider parts along x, the
// column stage groups nCols consecutive columns split in colDivider parts
// along y. The column stage runs on the row corrected data. A zero group
// size disables the stage.
type CommonMode struct {
	nRows      int
	nCols      int
	rowDivider int
	colDivider int
	mask       *PixelMask
	noise      *ValueMatrix[float64]
	cutValue   float64
	rowModes   []float64
	colModes   []float64
	selection  []float64
}

func NewCommonMode(nRows int, nCols int, rowDivider int, colDivider int) *CommonMode {
	if rowDivider < 1 {
		rowDivider = 1
	}
	if colDivider < 1 {
		colDivider = 1
	}
	return &CommonMode{
		nRows:      nRows,
		nCols:      nCols,
		rowDivider: rowDivider,
		colDivider: colDivider,
	}
}

// CuroCommonMode corrects pairs of half rows and single columns.
func CuroCommonMode() *CommonMode {
	return NewCommonMode(2, 1, 2, 1)
}

// DCDCommonMode corrects groups of four full rows and single columns.
func DCDCommonMode() *CommonMode {
	return NewCommonMode(4, 1, 1, 1)
}

func (c *CommonMode) String() string {
	return fmt.Sprintf("CommonMode(rows %d/%d, cols %d/%d)", c.nRows, c.rowDivider, c.nCols, c.colDivider)
}

// SetMask sets the pixels excluded from the correction. They are set to
// zero by Apply. A nil mask disables masking.
func (c *CommonMode) SetMask(mask *PixelMask) {
	c.mask = mask
}

// SetNoise excludes pixels with a value above cut*noise from the median.
// A nil noise map disables the signal exclusion.
func (c *CommonMode) SetNoise(cut float64, noise *ValueMatrix[float64]) {
	c.cutValue = cut
	c.noise = noise
}

// CommonModesRow returns the corrections applied by the row stage in the
// last call to Apply, one per block.
func (c *CommonMode) CommonModesRow() []float64 {
	return c.rowModes
}

// CommonModesCol returns the corrections applied by the column stage.
func (c *CommonMode) CommonModesCol() []float64 {
	return c.colModes
}

func (c *CommonMode) masked(i int) bool {
	return c.mask != nil && c.mask.values[i] != 0
}

func (c *CommonMode) Apply(data *ValueMatrix[float64]) error {
	if c.mask != nil {
		if err := checkSameShape("CommonMode mask", data, c.mask); err != nil {
			return err
		}
	}
	if c.noise != nil {
		if err := checkSameShape("CommonMode noise", data, c.noise); err != nil {
			return err
		}
	}
	for i := range data.values {
		if c.masked(i) {
			data.values[i] = 0
		}
	}

	c.rowModes = c.rowModes[:0]
	c.colModes = c.colModes[:0]
	sizeX := data.SizeX()
	sizeY := data.SizeY()

	if c.nRows > 0 {
		for y0 := 0; y0 < sizeY; y0 += c.nRows {
			y1 := min(y0+c.nRows, sizeY)
			for d := 0; d < c.rowDivider; d++ {
				x0, x1 := divisionRange(sizeX, c.rowDivider, d)
				c.rowModes = append(c.rowModes, c.correctBlock(data, x0, x1, y0, y1))
			}
		}
	}
	if c.nCols > 0 {
		for x0 := 0; x0 < sizeX; x0 += c.nCols {
			x1 := min(x0+c.nCols, sizeX)
			for d := 0; d < c.colDivider; d++ {
				y0, y1 := divisionRange(sizeY, c.colDivider, d)
				c.colModes = append(c.colModes, c.correctBlock(data, x0, x1, y0, y1))
			}
		}
	}
	return nil
}

// divisionRange returns the bounds of part d of n parts of size, the last
// part absorbing the remainder.
func divisionRange(size int, n int, d int) (int, int) {
	width := size / n
	start := d * width
	end := start + width
	if d == n-1 {
		end = size
	}
	return start, end
}

// correctBlock subtracts the median of the block [x0,x1)x[y0,y1) from its
// unmasked pixels and returns the subtracted value.
func (c *CommonMode) correctBlock(data *ValueMatrix[float64], x0 int, x1 int, y0 int, y1 int) float64 {
	c.selection = c.selection[:0]
	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			i := x*data.sizeY + y
			if c.masked(i) {
				continue
			}
			value := data.values[i]
			if c.noise != nil && value > c.cutValue*c.noise.values[i] {
				continue
			}
			c.selection = append(c.selection, value)
		}
	}
	if len(c.selection) == 0 {
		return 0
	}
	slices.Sort(c.selection)
	median := c.selection[len(c.selection)/2]
	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			i := x*data.sizeY + y
			if c.masked(i) {
				continue
			}
			data.values[i] -= median
		}
	}
	return median
}
