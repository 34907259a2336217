package depfet

import (
	"encoding/binary"
	"fmt"
)

type DeviceType uint8

const (
	DeviceGroup     DeviceType = 0x0
	DeviceDEPFET    DeviceType = 0x2
	DeviceDEPFET128 DeviceType = 0x3
	DeviceDCD       DeviceType = 0x4
	DeviceBAT       DeviceType = 0x5
	DeviceTPLL      DeviceType = 0xA
	DeviceUnknown   DeviceType = 0xB
	DeviceTLU       DeviceType = 0xD
	DeviceInfo      DeviceType = 0xE
	DeviceOther     DeviceType = 0xF
)

func (d DeviceType) String() string {
	switch d {
	case DeviceGroup:
		return "GROUP"
	case DeviceDEPFET:
		return "DEPFET"
	case DeviceDEPFET128:
		return "DEPFET_128"
	case DeviceDCD:
		return "DEPFET_DCD"
	case DeviceBAT:
		return "BAT"
	case DeviceTPLL:
		return "TPLL"
	case DeviceUnknown:
		return "UNKNOWN"
	case DeviceTLU:
		return "TLU"
	case DeviceInfo:
		return "INFO"
	case DeviceOther:
		return "OTHER"
	default:
		return fmt.Sprintf("0x%X", uint8(d))
	}
}

// isDEPFET reports whether records of this device carry pixel data.
func (d DeviceType) isDEPFET() bool {
	return d == DeviceDEPFET || d == DeviceDEPFET128 || d == DeviceDCD
}

// skipped reports whether the header reader passes over records of this
// device without returning them.
func (d DeviceType) skipped() bool {
	switch d {
	case DeviceBAT, DeviceTPLL, DeviceUnknown, DeviceTLU, DeviceInfo:
		return true
	}
	return false
}

type EventType uint8

const (
	EventRunBegin EventType = 0
	EventRunEnd   EventType = 1
	EventData     EventType = 2
)

func (e EventType) String() string {
	switch e {
	case EventRunBegin:
		return "RUN_BEGIN"
	case EventRunEnd:
		return "RUN_END"
	case EventData:
		return "DATA"
	default:
		return fmt.Sprintf("EventType(%d)", uint8(e))
	}
}

// HeaderSize is the size in bytes of a record header: the bitfield word
// followed by the trigger number.
const HeaderSize = 8

type Header struct {
	EventSize     uint32
	Flag0         bool
	Flag1         bool
	EventType     EventType
	ModuleNo      uint8
	DeviceType    DeviceType
	TriggerNumber uint32
}

// DecodeHeader decodes the two little-endian words of a record header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, newFormatError("DecodeHeader", "need %d bytes, got %d", HeaderSize, len(data))
	}
	word := binary.LittleEndian.Uint32(data[0:4])
	header := Header{
		EventSize:     word & 0x000FFFFF,
		Flag0:         CheckBit(word, 20),
		Flag1:         CheckBit(word, 21),
		EventType:     EventType((word >> 22) & 0x3),
		ModuleNo:      uint8((word >> 24) & 0xF),
		DeviceType:    DeviceType((word >> 28) & 0xF),
		TriggerNumber: binary.LittleEndian.Uint32(data[4:8]),
	}
	return header, nil
}

// Encode packs the header into its two word wire representation.
func (h Header) Encode() []byte {
	word := h.EventSize & 0x000FFFFF
	if h.Flag0 {
		word |= 1 << 20
	}
	if h.Flag1 {
		word |= 1 << 21
	}
	word |= (uint32(h.EventType) & 0x3) << 22
	word |= (uint32(h.ModuleNo) & 0xF) << 24
	word |= (uint32(h.DeviceType) & 0xF) << 28
	data := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(data[0:4], word)
	binary.LittleEndian.PutUint32(data[4:8], h.TriggerNumber)
	return data
}

// InfoWord prefixes every data blob. The layout is
// framecnt(10) startgate(7) padding(3) zerosupp(1) startgate_ver(1) temperature(10).
type InfoWord struct {
	FrameCount       uint16
	StartGate        uint16
	Padding          uint8
	ZeroSuppression  bool
	StartGateVersion bool
	TemperatureRaw   uint16
}

func DecodeInfoWord(word uint32) InfoWord {
	return InfoWord{
		FrameCount:       uint16(word & 0x3FF),
		StartGate:        uint16((word >> 10) & 0x7F),
		Padding:          uint8((word >> 17) & 0x7),
		ZeroSuppression:  CheckBit(word, 20),
		StartGateVersion: CheckBit(word, 21),
		TemperatureRaw:   uint16((word >> 22) & 0x3FF),
	}
}

func (w InfoWord) Encode() uint32 {
	word := uint32(w.FrameCount) & 0x3FF
	word |= (uint32(w.StartGate) & 0x7F) << 10
	word |= (uint32(w.Padding) & 0x7) << 17
	if w.ZeroSuppression {
		word |= 1 << 20
	}
	if w.StartGateVersion {
		word |= 1 << 21
	}
	word |= (uint32(w.TemperatureRaw) & 0x3FF) << 22
	return word
}

// Temperature in degrees, the raw value counts quarter degrees.
func (w InfoWord) Temperature() float32 {
	return float32(w.TemperatureRaw) / 4.0
}

func CheckBit(mask uint32, pos uint32) bool {
	return (mask & (1 << pos)) != 0
}

func logHeader(header Header) {
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("DeviceType: %v", header.DeviceType)
		logger.Info(message, "rawHeader")
		message = fmt.Sprintf("EventSize: %d", header.EventSize)
		logger.Info(message, "rawHeader")
		message = fmt.Sprintf("TriggerNr: %d", header.TriggerNumber)
		logger.Info(message, "rawHeader")
		message = fmt.Sprintf("ModuleNo: %d", header.ModuleNo)
		logger.Info(message, "rawHeader")
		message = fmt.Sprintf("EventType: %v", header.EventType)
		logger.Info(message, "rawHeader")
	}
}

func logInfoWord(info InfoWord) {
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Frame count: %d", info.FrameCount)
		logger.Info(message, "rawHeader")
		message = fmt.Sprintf("Start gate: %d", info.StartGate)
		logger.Info(message, "rawHeader")
		message = fmt.Sprintf("Zero suppression: %t", info.ZeroSuppression)
		logger.Info(message, "rawHeader")
		message = fmt.Sprintf("Start gate version: %t", info.StartGateVersion)
		logger.Info(message, "rawHeader")
		message = fmt.Sprintf("Temperature: %.2f", info.Temperature())
		logger.Info(message, "rawHeader")
	}
}
