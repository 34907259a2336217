package depfet

import (
	"errors"
	"fmt"
	"io"
)

// DataReader assembles events from the records of a FrameStream. The
// module layout is taken from the run header at Open and is kept for all
// events read afterwards.
type DataReader struct {
	stream         *FrameStream
	fold           int
	useDCDBMapping bool
	trailingFrames int
	maxEvents      int
	eventCount     int
	mod2Index      map[uint8]int
	modules        []uint8
	filled         []bool
	event          Event
	err            error
}

func NewDataReader() *DataReader {
	return &DataReader{
		stream:         NewFrameStream(nil),
		fold:           2,
		useDCDBMapping: true,
		mod2Index:      make(map[uint8]int),
	}
}

func (r *DataReader) SetReadoutFold(fold int) {
	r.fold = fold
}

func (r *DataReader) SetUseDCDBMapping(useMapping bool) {
	r.useDCDBMapping = useMapping
}

// SetTrailingFrames sets the number of frames following the main frame in
// every data blob. It takes effect at the next Open.
func (r *DataReader) SetTrailingFrames(n int) {
	if n < 0 {
		n = 0
	}
	r.trailingFrames = n
}

func (r *DataReader) Event() *Event {
	return &r.event
}

// Err returns the error that stopped Next, if any. Reaching the end of the
// input is not an error.
func (r *DataReader) Err() error {
	return r.err
}

func (r *DataReader) NumModules() int {
	return len(r.modules)
}

// Modules returns the module numbers in slot order.
func (r *DataReader) Modules() []uint8 {
	return append([]uint8(nil), r.modules...)
}

func (r *DataReader) Close() error {
	return r.stream.Close()
}

// Open starts reading the given files and reads the run header to learn
// which modules are present. maxEvents <= 0 reads all events.
func (r *DataReader) Open(paths []string, maxEvents int) error {
	r.stream.Reset(paths)
	r.maxEvents = maxEvents
	r.eventCount = 0
	r.err = nil
	clear(r.mod2Index)
	r.modules = r.modules[:0]

	header, err := r.stream.ReadHeader()
	if err != nil {
		if err == io.EOF {
			return newFormatError("Open", "no run header found")
		}
		return fmt.Errorf("error reading run header: %w", err)
	}
	if header.DeviceType != DeviceGroup || header.EventType != EventRunBegin {
		return newFormatError("Open", "expected run begin group header, found %v %v",
			header.DeviceType, header.EventType)
	}
	if header.EventSize < 2 {
		return newFormatError("Open", "run header of %d words", header.EventSize)
	}
	nModules := int(header.EventSize-2) / 2
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Group header: %d modules", nModules)
		logger.Info(message, "dataReader")
	}
	for len(r.modules) < nModules {
		moduleHeader, err := r.stream.ReadHeader()
		if err != nil {
			return fmt.Errorf("error reading module header %d of run header: %w", len(r.modules), unexpected(err))
		}
		if !moduleHeader.DeviceType.isDEPFET() {
			if configuration.Verbosity > 1 {
				message := fmt.Sprintf("Skipping %v record in run header", moduleHeader.DeviceType)
				logger.Info(message, "dataReader")
			}
			if moduleHeader.EventSize > 2 {
				if err := r.stream.SkipData(); err != nil {
					return err
				}
			}
			continue
		}
		if _, ok := r.mod2Index[moduleHeader.ModuleNo]; ok {
			return newFormatError("Open", "module %d appears twice in run header", moduleHeader.ModuleNo)
		}
		r.mod2Index[moduleHeader.ModuleNo] = len(r.modules)
		r.modules = append(r.modules, moduleHeader.ModuleNo)
	}

	nFrames := r.trailingFrames + 1
	r.event.resize(nModules * nFrames)
	r.filled = make([]bool, nModules)
	for i, module := range r.modules {
		for frame := 0; frame < nFrames; frame++ {
			slot := &r.event.Frames[i*nFrames+frame]
			slot.ModuleNr = int(module)
			slot.FrameNr = frame
		}
	}
	r.event.RunNumber = r.stream.RunNumber()
	return nil
}

// nextEventHeader returns the header of the next data group, passing over
// run begin and run end groups together with their nested module headers.
func (r *DataReader) nextEventHeader() (Header, error) {
	for {
		header, err := r.stream.ReadHeader()
		if err != nil {
			return header, err
		}
		if header.DeviceType != DeviceGroup {
			if configuration.Verbosity > 1 {
				message := fmt.Sprintf("Unexpected %v record outside of an event, module %d",
					header.DeviceType, header.ModuleNo)
				logger.Info(message, "dataReader")
			}
			if err := r.stream.SkipData(); err != nil {
				return header, err
			}
			continue
		}
		if header.EventType == EventData {
			return header, nil
		}
		if configuration.Verbosity > 0 {
			message := fmt.Sprintf("Run bracket %v", header.EventType)
			logger.Info(message, "dataReader")
		}
		if err := r.skipGroup(header); err != nil {
			return header, err
		}
	}
}

// skipGroup passes over the nested records of a group one header at a time,
// so that a group split between two files is skipped correctly.
func (r *DataReader) skipGroup(group Header) error {
	return r.walkGroup(group, func(header Header) error {
		if header.EventSize > 2 {
			return r.stream.SkipData()
		}
		return nil
	})
}

// walkGroup reads the nested record headers of a group until its declared
// size is used up, calling fn for each of them. fn must consume the payload.
func (r *DataReader) walkGroup(group Header, fn func(Header) error) error {
	if group.EventSize < 2 {
		return newFormatError("walkGroup", "group of %d words", group.EventSize)
	}
	remaining := int(group.EventSize) - 2
	for remaining > 0 {
		header, err := r.stream.readRecordHeader()
		if err == io.EOF {
			return &TruncatedEventError{EventNumber: group.TriggerNumber, Expected: remaining}
		}
		if err != nil {
			return fmt.Errorf("error reading record in group of trigger %d: %w",
				group.TriggerNumber, err)
		}
		if int(header.EventSize) < 2 || int(header.EventSize) > remaining {
			return &TruncatedEventError{
				EventNumber: group.TriggerNumber,
				Expected:    remaining,
				Read:        int(header.EventSize),
			}
		}
		remaining -= int(header.EventSize)
		if err := fn(header); err != nil {
			return err
		}
	}
	return nil
}

// Skip passes over n events reading only their headers. Running out of
// input while skipping is not an error: the following Next returns false.
func (r *DataReader) Skip(n int) error {
	for i := 0; i < n; i++ {
		header, err := r.nextEventHeader()
		if err == io.EOF {
			if configuration.Verbosity > 0 {
				message := fmt.Sprintf("End of input after skipping %d of %d events", i, n)
				logger.Info(message, "dataReader")
			}
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.skipGroup(header); err != nil {
			return err
		}
	}
	if configuration.Verbosity > 0 && n > 0 {
		message := fmt.Sprintf("Skipped %d events", n)
		logger.Info(message, "dataReader")
	}
	return nil
}

// Next reads the next event. It returns false at the end of the input, when
// the maximum number of events is reached or on error; Err tells them apart.
func (r *DataReader) Next() bool {
	if r.err != nil {
		return false
	}
	if r.maxEvents > 0 && r.eventCount >= r.maxEvents {
		if configuration.Verbosity > 0 {
			logger.Info("Max events reached", "dataReader")
		}
		return false
	}
	header, err := r.nextEventHeader()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	if err := r.readEvent(header); err != nil {
		r.err = err
		return false
	}
	r.eventCount++
	return true
}

func (r *DataReader) readEvent(group Header) error {
	r.event.RunNumber = r.stream.RunNumber()
	r.event.EventNumber = group.TriggerNumber
	clear(r.filled)
	read := 0

	err := r.walkGroup(group, func(header Header) error {
		if !header.DeviceType.isDEPFET() || header.EventType != EventData {
			if header.DeviceType == DeviceInfo {
				r.event.RunNumber = r.stream.RunNumber()
			}
			if header.EventSize > 2 {
				return r.stream.SkipData()
			}
			return nil
		}
		index, ok := r.mod2Index[header.ModuleNo]
		if !ok {
			if configuration.Verbosity > 1 {
				message := fmt.Sprintf("Skipping data of module %d not in run header", header.ModuleNo)
				logger.Info(message, "dataReader")
			}
			return r.stream.SkipData()
		}
		if r.filled[index] {
			return newFormatError("readEvent", "module %d read twice in event %d",
				header.ModuleNo, group.TriggerNumber)
		}
		if err := r.stream.ReadData(); err != nil {
			return err
		}
		if err := r.convertData(header, index); err != nil {
			return err
		}
		r.filled[index] = true
		read++
		return nil
	})
	if err != nil {
		var truncated *TruncatedEventError
		if errors.As(err, &truncated) {
			truncated.Expected = len(r.modules)
			truncated.Read = read
		}
		return err
	}
	if read < len(r.modules) {
		return &TruncatedEventError{EventNumber: group.TriggerNumber, Expected: len(r.modules), Read: read}
	}
	if configuration.Verbosity > 1 {
		message := fmt.Sprintf("Event %d of run %d: %d modules", r.event.EventNumber, r.event.RunNumber, read)
		logger.Info(message, "dataReader")
	}
	return nil
}

// convertData decodes the main frame and the trailing frames of the current
// blob into the slots of module index.
func (r *DataReader) convertData(header Header, index int) error {
	topology := TopologyFor(header.DeviceType, r.fold, r.useDCDBMapping)
	info := r.stream.InfoWord()
	data := r.stream.Data()
	nFrames := r.trailingFrames + 1
	offset := 0
	for frame := 0; frame < nFrames; frame++ {
		slot := &r.event.Frames[index*nFrames+frame]
		consumed, err := Convert(topology, data[offset:], int(info.StartGate), &slot.ValueMatrix)
		if err != nil {
			return fmt.Errorf("module %d frame %d: %w", header.ModuleNo, frame, err)
		}
		offset += consumed
		slot.ModuleNr = int(header.ModuleNo)
		slot.TriggerNr = header.TriggerNumber
		slot.StartGate = int(info.StartGate)
		slot.FrameNr = frame
	}
	return nil
}
