package depfet

import "fmt"

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error {
	return e.Err
}

// FormatError is returned when data does not fit the shape it is read into:
// a view larger than its buffer, matrices of different dimensions combined
// together or a checked access outside of a matrix.
type FormatError struct {
	Op  string
	Msg string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error in %s: %s", e.Op, e.Msg)
}

func newFormatError(op string, format string, args ...any) *FormatError {
	return &FormatError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// TruncatedEventError is returned when the declared size of an event group
// runs out before every module blob has been read. The raw format has no
// resynchronization marker, so decoding cannot continue after it.
type TruncatedEventError struct {
	EventNumber uint32
	Expected    int
	Read        int
}

func (e *TruncatedEventError) Error() string {
	return fmt.Sprintf("event %d truncated: expected %d module blobs, read %d",
		e.EventNumber, e.Expected, e.Read)
}

// ErrCalibrationFile represents an error reading a calibration or mask file.
type ErrCalibrationFile struct {
	Filename string
	Line     int
	Err      error
}

func (e *ErrCalibrationFile) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("error in calibration file %q line %d: %v", e.Filename, e.Line, e.Err)
	}
	return fmt.Sprintf("error in calibration file %q: %v", e.Filename, e.Err)
}

func (e *ErrCalibrationFile) Unwrap() error {
	return e.Err
}

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}
