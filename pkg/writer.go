package depfet

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/jmbenlloch/go-hdf5"
)

// Writer stores calibrated events in HDF5: an event table, a frame info
// table and one [event, sizeX, sizeY] dataset per frame slot under RD, plus
// the calibration of every module.
type Writer struct {
	File             *hdf5.File
	Filename         string
	FirstEvt         bool
	RunGroup         *hdf5.Group
	RDGroup          *hdf5.Group
	CalibrationGroup *hdf5.Group
	EventTable       *hdf5.Dataset
	FrameInfoTable   *hdf5.Dataset
	ModuleTable      *hdf5.Dataset
	Frames           []*hdf5.Dataset
	EvtCounter       int
	FrameCounter     int
	buffer           []float32
}

func NewWriter(filename string) (*Writer, error) {
	writer := &Writer{Filename: filename}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("hdf5writer: Creating file: %s", filename)
		logger.Info(message, "writer")
	}
	var err error
	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}
	if writer.RunGroup, err = createGroup(writer.File, "Run"); err != nil {
		return nil, err
	}
	if writer.RDGroup, err = createGroup(writer.File, "RD"); err != nil {
		return nil, err
	}
	if writer.CalibrationGroup, err = createGroup(writer.File, "Calibration"); err != nil {
		return nil, err
	}
	if writer.EventTable, err = createTable(writer.RunGroup, "events", EventDataHDF5{}); err != nil {
		return nil, err
	}
	if writer.FrameInfoTable, err = createTable(writer.RunGroup, "frames", FrameInfoHDF5{}); err != nil {
		return nil, err
	}
	if writer.ModuleTable, err = createTable(writer.RunGroup, "modules", ModuleInfoHDF5{}); err != nil {
		return nil, err
	}
	return writer, nil
}

func frameDatasetName(frame *ADCValues) string {
	if frame.FrameNr == 0 {
		return fmt.Sprintf("module_%d", frame.ModuleNr)
	}
	return fmt.Sprintf("module_%d_frame_%d", frame.ModuleNr, frame.FrameNr)
}

// WriteEvent appends every frame of event. The datasets are created from the
// first event, so all events of a file must have the same layout.
func (w *Writer) WriteEvent(event *Event) error {
	if !w.FirstEvt {
		modules := make([]ModuleInfoHDF5, len(event.Frames))
		w.Frames = make([]*hdf5.Dataset, len(event.Frames))
		for i := range event.Frames {
			frame := &event.Frames[i]
			dset, err := create3dArray(w.RDGroup, frameDatasetName(frame), frame.SizeX(), frame.SizeY())
			if err != nil {
				return err
			}
			w.Frames[i] = dset
			modules[i] = ModuleInfoHDF5{
				module: int32(frame.ModuleNr),
				slot:   int32(i),
				size_x: int32(frame.SizeX()),
				size_y: int32(frame.SizeY()),
			}
		}
		if err := writeArrayToTable(w.ModuleTable, &modules, 0); err != nil {
			return fmt.Errorf("error writing module table: %w", err)
		}
		w.FirstEvt = true
	}
	if len(event.Frames) != len(w.Frames) {
		return newFormatError("WriteEvent", "event has %d frames, file has %d", len(event.Frames), len(w.Frames))
	}

	err := writeEntryToTable(w.EventTable, EventDataHDF5{
		evt_number: int32(event.EventNumber),
		run_number: int32(event.RunNumber),
	}, w.EvtCounter)
	if err != nil {
		return fmt.Errorf("error writing event table: %w", err)
	}

	infos := make([]FrameInfoHDF5, len(event.Frames))
	for i := range event.Frames {
		frame := &event.Frames[i]
		infos[i] = FrameInfoHDF5{
			module:     int32(frame.ModuleNr),
			frame:      int32(frame.FrameNr),
			trigger:    int32(frame.TriggerNr),
			start_gate: int32(frame.StartGate),
		}
		w.buffer = toFloat32(w.buffer, frame.Values())
		if err := write3dArray(w.Frames[i], &w.buffer, w.EvtCounter, frame.SizeX(), frame.SizeY()); err != nil {
			return fmt.Errorf("error writing %s: %w", frameDatasetName(frame), err)
		}
	}
	if err := writeArrayToTable(w.FrameInfoTable, &infos, w.FrameCounter); err != nil {
		return fmt.Errorf("error writing frame table: %w", err)
	}
	w.FrameCounter += len(infos)
	w.EvtCounter++
	return nil
}

func toFloat32(buffer []float32, values []float64) []float32 {
	buffer = slices.Grow(buffer[:0], len(values))[:len(values)]
	for i, v := range values {
		buffer[i] = float32(v)
	}
	return buffer
}

// WriteCalibration stores mask, pedestals and noise of every module under
// Calibration/module_<n>.
func (w *Writer) WriteCalibration(masks MaskMap, pedestals PedestalMap, noise NoiseMap) error {
	for _, module := range slices.Sorted(maps.Keys(pedestals)) {
		group, err := w.CalibrationGroup.CreateGroup(fmt.Sprintf("module_%d", module))
		if err != nil {
			return &ErrCreateGroup{GroupName: fmt.Sprintf("module_%d", module), Err: err}
		}
		ped := pedestals[module]
		sizeX, sizeY := ped.SizeX(), ped.SizeY()
		err = create2dMatrix(group, "pedestals", hdf5.T_NATIVE_DOUBLE, ped.Means().Values(), sizeX, sizeY)
		if err == nil && noise[module] != nil {
			err = create2dMatrix(group, "noise", hdf5.T_NATIVE_DOUBLE, noise[module].Sigmas().Values(), sizeX, sizeY)
		}
		if err == nil && masks[module] != nil {
			err = create2dMatrix(group, "mask", hdf5.T_NATIVE_UINT8, masks[module].Values(), sizeX, sizeY)
		}
		if errClose := group.Close(); err == nil {
			err = errClose
		}
		if err != nil {
			return fmt.Errorf("error writing calibration of module %d: %w", module, err)
		}
	}
	return nil
}

func (w *Writer) Close() error {
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Closing file hdf writer %s", w.Filename)
		logger.Info(message, "writer")
	}
	var errs []error

	for i, dset := range w.Frames {
		if err := dset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing frame dataset %d: %w", i, err))
		}
	}
	if err := w.EventTable.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing event table: %w", err))
	}
	if err := w.FrameInfoTable.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing frame table: %w", err))
	}
	if err := w.ModuleTable.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing module table: %w", err))
	}
	if err := w.RunGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing run group: %w", err))
	}
	if err := w.RDGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing RD group: %w", err))
	}
	if err := w.CalibrationGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing calibration group: %w", err))
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
