package depfet

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderAcrossFiles(t *testing.T) {
	var first, second rawFile
	first.info(42)
	first.runBegin(DeviceDCD, 3)
	first.event(1, dcdBlob(3, constantDCD(5)))
	// the group header of the second event ends the first file
	nextBlob := dcdBlob(3, constantDCD(-7))
	first.groupHeader(2, nextBlob)
	second.blob(2, nextBlob)
	paths := []string{first.save(t, "run_0.dat"), second.save(t, "run_1.dat")}

	reader := newTestReader()
	require.NoError(t, reader.Open(paths, 0))
	defer reader.Close()
	assert.Equal(t, []uint8{3}, reader.Modules())

	require.True(t, reader.Next())
	event := reader.Event()
	assert.Equal(t, uint32(42), event.RunNumber)
	assert.Equal(t, uint32(1), event.EventNumber)
	require.Equal(t, 1, event.Len())
	assert.Equal(t, 3, event.Frames[0].ModuleNr)
	assert.Equal(t, 64, event.Frames[0].SizeX())
	assert.Equal(t, 32, event.Frames[0].SizeY())
	assert.Equal(t, 5.0, event.Frames[0].At(10, 10))

	require.True(t, reader.Next())
	assert.Equal(t, uint32(2), event.EventNumber)
	assert.Equal(t, uint32(2), event.Frames[0].TriggerNr)
	assert.Equal(t, -7.0, event.Frames[0].At(63, 31))

	assert.False(t, reader.Next())
	assert.NoError(t, reader.Err())
}

func writeRun(t *testing.T, nEvents int, modules ...uint8) string {
	t.Helper()
	var f rawFile
	f.info(7)
	f.runBegin(DeviceDCD, modules...)
	for e := 0; e < nEvents; e++ {
		blobs := make([]blob, len(modules))
		for i, module := range modules {
			value := int8(e*10 + int(module))
			blobs[i] = dcdBlob(module, constantDCD(value))
			blobs[i].startGate = uint16(e)
		}
		f.event(uint32(100+e), blobs...)
	}
	return f.save(t, "run.dat")
}

func TestReaderSlotsFollowRunHeader(t *testing.T) {
	var f rawFile
	f.runBegin(DeviceDCD, 6, 2)
	// blobs arrive in a different order than in the run header
	f.event(1, dcdBlob(2, constantDCD(2)), dcdBlob(6, constantDCD(6)))
	path := f.save(t, "run.dat")

	reader := newTestReader()
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	require.True(t, reader.Next())
	event := reader.Event()
	require.Equal(t, 2, event.Len())
	assert.Equal(t, 6, event.Frames[0].ModuleNr)
	assert.Equal(t, 6.0, event.Frames[0].At(0, 0))
	assert.Equal(t, 2, event.Frames[1].ModuleNr)
	assert.Equal(t, 2.0, event.Frames[1].At(0, 0))
}

func TestReaderSkipMatchesNext(t *testing.T) {
	path := writeRun(t, 5, 1, 4)

	skipped := newTestReader()
	require.NoError(t, skipped.Open([]string{path}, 0))
	defer skipped.Close()
	require.NoError(t, skipped.Skip(3))
	require.True(t, skipped.Next())

	read := newTestReader()
	require.NoError(t, read.Open([]string{path}, 0))
	defer read.Close()
	for i := 0; i < 4; i++ {
		require.True(t, read.Next())
	}

	opts := cmp.AllowUnexported(ValueMatrix[float64]{})
	if diff := cmp.Diff(read.Event(), skipped.Event(), opts); diff != "" {
		t.Errorf("event after Skip differs (-next +skip):\n%s", diff)
	}
	assert.Equal(t, uint32(103), skipped.Event().EventNumber)
	assert.Equal(t, 3, skipped.Event().Frames[0].StartGate)
}

func TestReaderMaxEvents(t *testing.T) {
	path := writeRun(t, 5, 1)
	reader := newTestReader()
	require.NoError(t, reader.Open([]string{path}, 2))
	defer reader.Close()
	assert.True(t, reader.Next())
	assert.True(t, reader.Next())
	assert.False(t, reader.Next())
	assert.NoError(t, reader.Err())

	// reopening starts again from the first event
	require.NoError(t, reader.Open([]string{path}, 0))
	n := 0
	for reader.Next() {
		n++
	}
	assert.NoError(t, reader.Err())
	assert.Equal(t, 5, n)
}

func TestReaderSkipPastEnd(t *testing.T) {
	path := writeRun(t, 3, 1)
	reader := newTestReader()
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	require.NoError(t, reader.Skip(5))
	assert.False(t, reader.Next())
	assert.NoError(t, reader.Err())
}

func TestReaderRunHeaderSkipsAuxiliaryRecords(t *testing.T) {
	var f rawFile
	f.header(Header{EventSize: 2 + 2*2, EventType: EventRunBegin, DeviceType: DeviceGroup})
	f.header(Header{EventSize: 2, EventType: EventRunBegin, ModuleNo: 4, DeviceType: DeviceDCD})
	f.info(55)
	f.header(Header{EventSize: 3, EventType: EventRunBegin, DeviceType: DeviceTLU})
	f.word(0xDEADBEEF)
	f.header(Header{EventSize: 2, EventType: EventRunBegin, ModuleNo: 9, DeviceType: DeviceDCD})
	f.event(1, dcdBlob(9, constantDCD(9)), dcdBlob(4, constantDCD(4)))
	path := f.save(t, "run.dat")

	reader := newTestReader()
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	assert.Equal(t, []uint8{4, 9}, reader.Modules())
	require.True(t, reader.Next())
	event := reader.Event()
	assert.Equal(t, uint32(55), event.RunNumber)
	assert.Equal(t, 4.0, event.Frames[0].At(0, 0))
	assert.Equal(t, 9.0, event.Frames[1].At(0, 0))
	assert.False(t, reader.Next())
	assert.NoError(t, reader.Err())
}

func TestReaderRequiresRunHeader(t *testing.T) {
	var f rawFile
	f.event(1, dcdBlob(1, constantDCD(0)))
	path := f.save(t, "run.dat")

	reader := newTestReader()
	err := reader.Open([]string{path}, 0)
	var formatErr *FormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestReaderMissingFile(t *testing.T) {
	reader := newTestReader()
	err := reader.Open([]string{"/nonexistent/run.dat"}, 0)
	var openErr *ErrOpenFile
	require.True(t, errors.As(err, &openErr))
	assert.Equal(t, "/nonexistent/run.dat", openErr.Filename)
}

func TestReaderSkipsAuxiliaryRecords(t *testing.T) {
	var f rawFile
	f.runBegin(DeviceDCD, 1)
	tlu := Header{EventSize: 3, EventType: EventData, DeviceType: DeviceTLU, TriggerNumber: 1}
	data := dcdBlob(1, constantDCD(9))
	unknown := dcdBlob(12, constantDCD(1))
	f.header(Header{
		EventSize:     2 + 3 + data.words() + unknown.words(),
		EventType:     EventData,
		DeviceType:    DeviceGroup,
		TriggerNumber: 1,
	})
	f.header(tlu)
	f.word(0xDEADBEEF)
	f.blob(1, unknown)
	f.blob(1, data)
	// a TLU record between events
	f.header(tlu)
	f.word(0xDEADBEEF)
	f.event(2, dcdBlob(1, constantDCD(8)))
	path := f.save(t, "run.dat")

	reader := newTestReader()
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	require.True(t, reader.Next())
	assert.Equal(t, 9.0, reader.Event().Frames[0].At(0, 0))
	require.True(t, reader.Next())
	assert.Equal(t, 8.0, reader.Event().Frames[0].At(0, 0))
	assert.False(t, reader.Next())
	assert.NoError(t, reader.Err())
}

func TestReaderRunBracketsAreSkipped(t *testing.T) {
	var f rawFile
	f.runBegin(DeviceDCD, 1)
	f.event(1, dcdBlob(1, constantDCD(1)))
	f.runBegin(DeviceDCD, 1)
	f.header(Header{EventSize: 4, EventType: EventRunEnd, DeviceType: DeviceGroup})
	f.header(Header{EventSize: 2, EventType: EventRunEnd, ModuleNo: 1, DeviceType: DeviceDCD})
	f.event(2, dcdBlob(1, constantDCD(2)))
	path := f.save(t, "run.dat")

	reader := newTestReader()
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	n := 0
	for reader.Next() {
		n++
		assert.Equal(t, float64(n), reader.Event().Frames[0].At(0, 0))
	}
	assert.NoError(t, reader.Err())
	assert.Equal(t, 2, n)
}

func TestReaderTruncatedEvent(t *testing.T) {
	var f rawFile
	f.runBegin(DeviceDCD, 1, 2)
	f.event(1, dcdBlob(1, constantDCD(1)))
	path := f.save(t, "run.dat")

	reader := newTestReader()
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	assert.False(t, reader.Next())
	var truncated *TruncatedEventError
	require.True(t, errors.As(reader.Err(), &truncated))
	assert.Equal(t, uint32(1), truncated.EventNumber)
	assert.Equal(t, 2, truncated.Expected)
	assert.Equal(t, 1, truncated.Read)
	assert.False(t, reader.Next())
}

func TestReaderEventCutByEndOfInput(t *testing.T) {
	var f rawFile
	f.runBegin(DeviceDCD, 1)
	f.groupHeader(1, dcdBlob(1, constantDCD(1)))
	path := f.save(t, "run.dat")

	reader := newTestReader()
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	assert.False(t, reader.Next())
	var truncated *TruncatedEventError
	require.True(t, errors.As(reader.Err(), &truncated))
	assert.Equal(t, 0, truncated.Read)
}

func TestReaderDuplicateModule(t *testing.T) {
	var f rawFile
	f.runBegin(DeviceDCD, 1)
	f.event(1, dcdBlob(1, constantDCD(1)), dcdBlob(1, constantDCD(1)))
	path := f.save(t, "run.dat")

	reader := newTestReader()
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	assert.False(t, reader.Next())
	var formatErr *FormatError
	assert.True(t, errors.As(reader.Err(), &formatErr))
}

func TestReaderTrailingFrames(t *testing.T) {
	payload := dcdPayload(2, func(frame int, _ int) int8 { return int8(10 * (frame + 1)) })
	var f rawFile
	f.runBegin(DeviceDCD, 5)
	f.event(1, blob{module: 5, device: DeviceDCD, startGate: 3, payload: payload})
	path := f.save(t, "run.dat")

	reader := newTestReader()
	reader.SetTrailingFrames(1)
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	require.True(t, reader.Next())
	event := reader.Event()
	require.Equal(t, 2, event.Len())
	for i, frame := range event.Frames {
		assert.Equal(t, 5, frame.ModuleNr)
		assert.Equal(t, i, frame.FrameNr)
		assert.Equal(t, 3, frame.StartGate)
		assert.Equal(t, float64(10*(i+1)), frame.At(0, 0))
	}
}

func TestReaderFourFold(t *testing.T) {
	var f rawFile
	f.runBegin(DeviceDCD, 1)
	f.event(1, dcdBlob(1, constantDCD(4)))
	path := f.save(t, "run.dat")

	reader := newTestReader()
	reader.SetReadoutFold(4)
	require.NoError(t, reader.Open([]string{path}, 0))
	defer reader.Close()
	require.True(t, reader.Next())
	frame := reader.Event().Frame(0)
	assert.Equal(t, 32, frame.SizeX())
	assert.Equal(t, 64, frame.SizeY())
}
