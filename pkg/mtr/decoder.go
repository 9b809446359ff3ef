// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Drop reasons. None of them abort a receive; frames failing with one of these are
// discarded and the reader resynchronizes.
var (
	// ErrTransportIdle ends a receive: the transport returned no data.
	ErrTransportIdle = errors.New("transport idle")
	// ErrPartialFrame means the transport went idle before the declared length arrived.
	ErrPartialFrame = errors.New("partial frame")
	// ErrUnknownType means the type byte is neither 'S' nor 'M'.
	ErrUnknownType = errors.New("unknown message type")
	// ErrChecksumMismatch means the stored checksum disagrees with the byte sum.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrLengthMismatch means the size byte disagrees with the layout of the type.
	ErrLengthMismatch = errors.New("length mismatch")
)

// DecodeFrame decodes a complete frame, preamble included.
// The returned error wraps one of ErrUnknownType, ErrLengthMismatch or
// ErrChecksumMismatch. The filler byte is not checked.
func DecodeFrame(frame []byte) (Message, error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrPartialFrame, len(frame), headerSize)
	}

	msgType := frame[offsetType]
	var expected int
	switch msgType {
	case MsgData:
		expected = DataFrameSize
	case MsgStatus:
		expected = StatusFrameSize
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownType, msgType)
	}

	if len(frame) != expected || int(frame[offsetSize])+PreambleSize != expected {
		return nil, fmt.Errorf("%w: %s frame is %d bytes (size byte %d), expected %d",
			ErrLengthMismatch, FormatMessageType(msgType), len(frame), frame[offsetSize], expected)
	}

	var msg Message
	var checksumOffset int
	switch msgType {
	case MsgData:
		msg = decodeData(frame)
		checksumOffset = dataChecksumOffset
	default:
		msg = decodeStatus(frame)
		checksumOffset = statusChecksumOffset
	}

	if stored, calculated, ok := VerifyChecksum(frame, checksumOffset); !ok {
		return nil, fmt.Errorf("%w: %s frame stored 0x%02X, calculated 0x%02X",
			ErrChecksumMismatch, FormatMessageType(msgType), stored, calculated)
	}

	return msg, nil
}

func decodeTimestamp(frame []byte) Timestamp {
	return Timestamp{
		Year:        frame[offsetTimestamp],
		Month:       frame[offsetTimestamp+1],
		Day:         frame[offsetTimestamp+2],
		Hour:        frame[offsetTimestamp+3],
		Minute:      frame[offsetTimestamp+4],
		Second:      frame[offsetTimestamp+5],
		Millisecond: binary.LittleEndian.Uint16(frame[offsetMillisecond:]),
	}
}

func decodeStatus(frame []byte) *StatusMessage {
	m := &StatusMessage{
		MTRID:               binary.LittleEndian.Uint16(frame[offsetMTRID:]),
		Timestamp:           decodeTimestamp(frame),
		BatteryStatus:       frame[offsetBattery],
		RecentPackage:       binary.LittleEndian.Uint32(frame[offsetRecentPackage:]),
		OldestPackage:       binary.LittleEndian.Uint32(frame[offsetOldestPackage:]),
		CurrentSessionStart: binary.LittleEndian.Uint32(frame[offsetCurrentSession:]),
		Checksum:            frame[statusChecksumOffset],
		Filler:              frame[statusFillerOffset],
	}
	for i := range m.PreviousSessionStarts {
		m.PreviousSessionStarts[i] = binary.LittleEndian.Uint32(frame[offsetPrevSessions+4*i:])
	}
	return m
}

func decodeData(frame []byte) *DataMessage {
	m := &DataMessage{
		MTRID:         binary.LittleEndian.Uint16(frame[offsetMTRID:]),
		Timestamp:     decodeTimestamp(frame),
		PackageNumber: binary.LittleEndian.Uint32(frame[offsetPackageNumber:]),
		CardID:        uint32(frame[offsetCardID]) | uint32(frame[offsetCardID+1])<<8 | uint32(frame[offsetCardID+2])<<16,
		ProductWeek:   frame[offsetProductWeek],
		ProductYear:   frame[offsetProductYear],
		HeadChecksum:  frame[offsetHeadChecksum],
		ASCII:         string(frame[offsetASCII : offsetASCII+ASCIISize]),
		Checksum:      frame[dataChecksumOffset],
		Filler:        frame[dataFillerOffset],
	}
	for i := range m.Splits {
		off := offsetSplits + i*SplitSize
		m.Splits[i] = Split{
			Code:    frame[off],
			Seconds: binary.LittleEndian.Uint16(frame[off+1:]),
		}
	}
	return m
}
