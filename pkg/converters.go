package depfet

import "fmt"

type TopologyKind int

const (
	TopologyS3A TopologyKind = iota
	TopologyS3B2
	TopologyS3B4
	TopologyDCD2
	TopologyDCD4
)

func (k TopologyKind) String() string {
	switch k {
	case TopologyS3A:
		return "S3A"
	case TopologyS3B2:
		return "S3B 2-fold"
	case TopologyS3B4:
		return "S3B 4-fold"
	case TopologyDCD2:
		return "DCD 2-fold"
	case TopologyDCD4:
		return "DCD 4-fold"
	default:
		return fmt.Sprintf("Topology(%d)", int(k))
	}
}

// Topology selects the pixel converter for a data blob. UseMapping only
// affects the DCD converters: when false the data is taken as already sorted.
type Topology struct {
	Kind       TopologyKind
	UseMapping bool
}

func (t Topology) String() string {
	if t.Kind == TopologyDCD2 || t.Kind == TopologyDCD4 {
		return fmt.Sprintf("%v (mapping %t)", t.Kind, t.UseMapping)
	}
	return t.Kind.String()
}

// TopologyFor returns the converter for a device type and readout fold.
// Anything that is not S3B or DCD is decoded as S3A.
func TopologyFor(device DeviceType, fold int, useMapping bool) Topology {
	switch device {
	case DeviceDEPFET128:
		if fold == 4 {
			return Topology{Kind: TopologyS3B4}
		}
		return Topology{Kind: TopologyS3B2}
	case DeviceDCD:
		if fold == 4 {
			return Topology{Kind: TopologyDCD4, UseMapping: useMapping}
		}
		return Topology{Kind: TopologyDCD2, UseMapping: useMapping}
	default:
		return Topology{Kind: TopologyS3A}
	}
}

// Dimensions returns the size of the decoded matrix along x (columns) and
// y (rows).
func (t Topology) Dimensions() (int, int) {
	switch t.Kind {
	case TopologyS3B2:
		return 64, 256
	case TopologyS3B4:
		return 32, 512
	case TopologyDCD2:
		return 64, 32
	case TopologyDCD4:
		return 32, 64
	default:
		return 64, 128
	}
}

// FrameBytes is the number of raw bytes one frame occupies.
func (t Topology) FrameBytes() int {
	switch t.Kind {
	case TopologyS3B2, TopologyS3B4:
		return s3bGates * s3bWordsPerGate * Int16.Size()
	case TopologyDCD2, TopologyDCD4:
		return dcdFrameValues * Int8.Size()
	default:
		return s3aColumns * s3aRows * Uint32.Size()
	}
}

// Convert decodes one frame from data into values, resizing values to the
// topology dimensions. It returns the number of bytes consumed so that a
// blob holding several frames can be walked frame by frame.
func Convert(t Topology, data []byte, startGate int, values *ValueMatrix[float64]) (int, error) {
	var err error
	switch t.Kind {
	case TopologyS3A:
		err = convertS3A(data, values)
	case TopologyS3B2:
		err = convertS3B2Fold(data, startGate, values)
	case TopologyS3B4:
		err = convertS3B4Fold(data, startGate, values)
	case TopologyDCD2:
		err = convertDCD2Fold(data, startGate, t.UseMapping, values)
	case TopologyDCD4:
		err = convertDCD4Fold(data, startGate, t.UseMapping, values)
	default:
		return 0, newFormatError("Convert", "unknown topology %v", t.Kind)
	}
	if err != nil {
		return 0, fmt.Errorf("error converting %v frame: %w", t, err)
	}
	return t.FrameBytes(), nil
}
