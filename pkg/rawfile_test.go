package depfet

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// blob is one module record inside an event group.
type blob struct {
	module    uint8
	device    DeviceType
	startGate uint16
	payload   []byte
}

func (b blob) words() uint32 {
	return 3 + uint32(len(b.payload)/4)
}

// rawFile builds raw data the way the DAQ writes it.
type rawFile struct {
	buf bytes.Buffer
}

func (f *rawFile) header(h Header) {
	f.buf.Write(h.Encode())
}

func (f *rawFile) word(w uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], w)
	f.buf.Write(b[:])
}

func (f *rawFile) info(run uint32) {
	f.header(Header{EventSize: 2, DeviceType: DeviceInfo, TriggerNumber: run})
}

func (f *rawFile) runBegin(device DeviceType, modules ...uint8) {
	f.header(Header{
		EventSize:  2 + 2*uint32(len(modules)),
		EventType:  EventRunBegin,
		DeviceType: DeviceGroup,
	})
	for _, module := range modules {
		f.header(Header{EventSize: 2, EventType: EventRunBegin, ModuleNo: module, DeviceType: device})
	}
}

func (f *rawFile) groupHeader(trigger uint32, blobs ...blob) {
	size := uint32(2)
	for _, b := range blobs {
		size += b.words()
	}
	f.header(Header{EventSize: size, EventType: EventData, DeviceType: DeviceGroup, TriggerNumber: trigger})
}

func (f *rawFile) blob(trigger uint32, b blob) {
	f.header(Header{
		EventSize:     b.words(),
		EventType:     EventData,
		ModuleNo:      b.module,
		DeviceType:    b.device,
		TriggerNumber: trigger,
	})
	f.word(InfoWord{StartGate: b.startGate, FrameCount: 1}.Encode())
	f.buf.Write(b.payload)
}

func (f *rawFile) event(trigger uint32, blobs ...blob) {
	f.groupHeader(trigger, blobs...)
	for _, b := range blobs {
		f.blob(trigger, b)
	}
}

func (f *rawFile) save(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, f.buf.Bytes(), 0o644))
	return path
}

// dcdPayload returns frames DCD frames where value i of frame k is fill(k, i).
func dcdPayload(frames int, fill func(frame int, i int) int8) []byte {
	payload := make([]byte, frames*dcdFrameValues)
	for k := 0; k < frames; k++ {
		for i := 0; i < dcdFrameValues; i++ {
			payload[k*dcdFrameValues+i] = byte(fill(k, i))
		}
	}
	return payload
}

func constantDCD(value int8) []byte {
	return dcdPayload(1, func(int, int) int8 { return value })
}

func dcdBlob(module uint8, payload []byte) blob {
	return blob{module: module, device: DeviceDCD, payload: payload}
}

// newTestReader reads DCD data in 2-fold without the DCDB mapping, so that
// value i of a frame lands on (i%64, i/64).
func newTestReader() *DataReader {
	reader := NewDataReader()
	reader.SetUseDCDBMapping(false)
	return reader
}

// sliceSource replays a fixed list of events.
type sliceSource struct {
	events []Event
	next   int
}

func (s *sliceSource) Next() bool {
	if s.next >= len(s.events) {
		return false
	}
	s.next++
	return true
}

func (s *sliceSource) Event() *Event { return &s.events[s.next-1] }
func (s *sliceSource) Err() error    { return nil }

func uniformEvent(module int, sizeX int, sizeY int, value float64) Event {
	frame := ADCValues{ModuleNr: module}
	frame.SetSize(sizeX, sizeY)
	for i := range frame.Values() {
		frame.SetIndex(i, value)
	}
	return Event{Frames: []ADCValues{frame}}
}
