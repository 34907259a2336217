package depfet

import "encoding/binary"

type ElementKind int

const (
	Int8 ElementKind = iota
	Int16
	Uint32
)

func (k ElementKind) Size() int {
	switch k {
	case Int8:
		return 1
	case Int16:
		return 2
	default:
		return 4
	}
}

// DataView is a read-only indexed view of a little-endian byte buffer as a
// matrix of fixed width elements. Element (x, y) is at x*nY + y.
type DataView struct {
	data []byte
	kind ElementKind
	nX   int
	nY   int
}

// NewDataView creates a view of nX*nY elements of the given kind. If one of
// the extents is zero it is inferred from the buffer size; if both are zero
// nY is taken as 1.
func NewDataView(data []byte, kind ElementKind, nX int, nY int) (DataView, error) {
	elemSize := kind.Size()
	if nX < 0 || nY < 0 {
		return DataView{}, newFormatError("DataView", "negative extent %dx%d", nX, nY)
	}
	if nX == 0 && nY == 0 {
		nY = 1
	}
	switch {
	case nY == 0:
		nY = len(data) / (nX * elemSize)
	case nX == 0:
		nX = len(data) / (nY * elemSize)
	case nX*nY*elemSize > len(data):
		return DataView{}, newFormatError("DataView",
			"data buffer not large enough: %dx%d elements of %d bytes, buffer has %d bytes",
			nX, nY, elemSize, len(data))
	}
	return DataView{data: data, kind: kind, nX: nX, nY: nY}, nil
}

func (v DataView) SizeX() int { return v.nX }
func (v DataView) SizeY() int { return v.nY }
func (v DataView) Len() int   { return v.nX * v.nY }

// Bytes returns the number of bytes covered by the view.
func (v DataView) Bytes() int { return v.nX * v.nY * v.kind.Size() }

// Index returns element i as an int64, sign extended for the signed kinds.
func (v DataView) Index(i int) int64 {
	switch v.kind {
	case Int8:
		return int64(int8(v.data[i]))
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(v.data[2*i:])))
	default:
		return int64(binary.LittleEndian.Uint32(v.data[4*i:]))
	}
}

func (v DataView) At(x int, y int) int64 {
	return v.Index(x*v.nY + y)
}

// Word returns element i as the raw unsigned value of its width.
func (v DataView) Word(i int) uint32 {
	switch v.kind {
	case Int8:
		return uint32(v.data[i])
	case Int16:
		return uint32(binary.LittleEndian.Uint16(v.data[2*i:]))
	default:
		return binary.LittleEndian.Uint32(v.data[4*i:])
	}
}
