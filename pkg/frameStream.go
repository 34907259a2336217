package depfet

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// FrameStream reads raw records from an ordered list of files as if they
// were a single stream. Switching to the next file only happens when a
// header read finds the end of the current one.
type FrameStream struct {
	queue     []string
	filename  string
	file      *os.File
	reader    *bufio.Reader
	header    Header
	infoWord  InfoWord
	data      []byte
	runNumber uint32
	headerBuf [HeaderSize]byte
}

func NewFrameStream(paths []string) *FrameStream {
	s := &FrameStream{}
	s.Reset(paths)
	return s
}

// Reset closes the current file and replaces the queue of files to read.
func (s *FrameStream) Reset(paths []string) {
	s.Close()
	s.queue = append([]string(nil), paths...)
	s.header = Header{}
	s.infoWord = InfoWord{}
	s.runNumber = 0
	s.data = s.data[:0]
}

// OpenNext opens the next queued file. It returns false when the queue is
// empty.
func (s *FrameStream) OpenNext() (bool, error) {
	s.Close()
	if len(s.queue) == 0 {
		return false, nil
	}
	filename := s.queue[0]
	s.queue = s.queue[1:]
	file, err := os.Open(filename)
	if err != nil {
		return false, &ErrOpenFile{Filename: filename, Err: err}
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Opening file %s", filename)
		logger.Info(message, "frameStream")
	}
	s.filename = filename
	s.file = file
	if s.reader == nil {
		s.reader = bufio.NewReaderSize(file, 1<<16)
	} else {
		s.reader.Reset(file)
	}
	return true, nil
}

func (s *FrameStream) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.filename = ""
	return err
}

// readRecordHeader reads the next header, whatever its device type. On a
// clean end of file the next queued file is opened and the read retried;
// io.EOF is returned once all files are exhausted.
func (s *FrameStream) readRecordHeader() (Header, error) {
	for {
		if s.file == nil {
			ok, err := s.OpenNext()
			if err != nil {
				return Header{}, err
			}
			if !ok {
				return Header{}, io.EOF
			}
		}
		_, err := io.ReadFull(s.reader, s.headerBuf[:])
		if err == io.EOF {
			if configuration.Verbosity > 1 {
				message := fmt.Sprintf("End of file %s", s.filename)
				logger.Info(message, "frameStream")
			}
			s.Close()
			continue
		}
		if err != nil {
			return Header{}, fmt.Errorf("error reading header from %s: %w", s.filename, err)
		}
		header, err := DecodeHeader(s.headerBuf[:])
		if err != nil {
			return Header{}, err
		}
		s.header = header
		logHeader(header)
		if header.DeviceType == DeviceInfo {
			s.runNumber = header.TriggerNumber
			if configuration.Verbosity > 0 {
				message := fmt.Sprintf("Run number: %d", s.runNumber)
				logger.Info(message, "frameStream")
			}
		}
		return header, nil
	}
}

// ReadHeader returns the next header of a group or DEPFET record, skipping
// the records of auxiliary devices (BAT, TPLL, UNKNOWN, TLU, INFO). INFO
// records update the run number.
func (s *FrameStream) ReadHeader() (Header, error) {
	for {
		header, err := s.readRecordHeader()
		if err != nil {
			return header, err
		}
		if !header.DeviceType.skipped() {
			return header, nil
		}
		if configuration.Verbosity > 1 {
			message := fmt.Sprintf("Skip device %v, module %d", header.DeviceType, header.ModuleNo)
			logger.Info(message, "frameStream")
		}
		if err := s.SkipData(); err != nil {
			return header, err
		}
	}
}

// ReadData reads the info word and the data words of the current record
// into the reusable buffer.
func (s *FrameStream) ReadData() error {
	if s.header.EventSize < 3 {
		return newFormatError("ReadData", "record of %d words has no data", s.header.EventSize)
	}
	var word [4]byte
	if _, err := io.ReadFull(s.reader, word[:]); err != nil {
		return fmt.Errorf("error reading info word from %s: %w", s.filename, unexpected(err))
	}
	s.infoWord = DecodeInfoWord(binary.LittleEndian.Uint32(word[:]))
	logInfoWord(s.infoWord)

	nBytes := int(s.header.EventSize-3) * 4
	if cap(s.data) < nBytes {
		s.data = make([]byte, nBytes)
	}
	s.data = s.data[:nBytes]
	if _, err := io.ReadFull(s.reader, s.data); err != nil {
		return fmt.Errorf("error reading %d data bytes from %s: %w", nBytes, s.filename, unexpected(err))
	}
	return nil
}

// SkipData moves past the payload of the current record without reading it.
func (s *FrameStream) SkipData() error {
	if s.header.EventSize < 2 {
		return newFormatError("SkipData", "record of %d words is shorter than its header", s.header.EventSize)
	}
	nBytes := int(s.header.EventSize-2) * 4
	if _, err := s.reader.Discard(nBytes); err != nil {
		return fmt.Errorf("error skipping %d bytes in %s: %w", nBytes, s.filename, unexpected(err))
	}
	return nil
}

func (s *FrameStream) Header() Header     { return s.header }
func (s *FrameStream) InfoWord() InfoWord { return s.infoWord }
func (s *FrameStream) RunNumber() uint32  { return s.runNumber }
func (s *FrameStream) Filename() string   { return s.filename }

// Data returns the payload read by the last ReadData call. It is only valid
// until the next call.
func (s *FrameStream) Data() []byte { return s.data }

// A record cut by the end of a file is never a clean end of input.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
