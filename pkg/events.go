package depfet

// ADCValues is one decoded frame of one module.
type ADCValues struct {
	ValueMatrix[float64]
	ModuleNr  int
	TriggerNr uint32
	StartGate int
	// FrameNr is 0 for the main frame and 1..n for trailing frames.
	FrameNr int
}

// Matrix returns the pixel values of the frame.
func (a *ADCValues) Matrix() *ValueMatrix[float64] {
	return &a.ValueMatrix
}

// Event holds the frames of all modules read for one trigger. The frames of
// a module are stored contiguously, main frame first.
type Event struct {
	RunNumber   uint32
	EventNumber uint32
	Frames      []ADCValues
}

func (e *Event) Len() int {
	return len(e.Frames)
}

func (e *Event) Frame(i int) *ADCValues {
	return &e.Frames[i]
}

// resize sets the number of frame slots, keeping the allocated matrices.
func (e *Event) resize(n int) {
	if cap(e.Frames) >= n {
		e.Frames = e.Frames[:n]
		return
	}
	frames := make([]ADCValues, n)
	copy(frames, e.Frames)
	e.Frames = frames
}
