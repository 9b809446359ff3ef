// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import (
	"encoding/binary"
)

// Encode returns the 59-byte wire frame for the status message. The checksum is
// recomputed; the Checksum field is ignored and Filler is written as is.
func (m *StatusMessage) Encode() []byte {
	frame := make([]byte, StatusFrameSize)
	putHeader(frame, StatusSize, MsgStatus, m.MTRID, m.Timestamp)

	frame[offsetBattery] = m.BatteryStatus
	binary.LittleEndian.PutUint32(frame[offsetRecentPackage:], m.RecentPackage)
	binary.LittleEndian.PutUint32(frame[offsetOldestPackage:], m.OldestPackage)
	binary.LittleEndian.PutUint32(frame[offsetCurrentSession:], m.CurrentSessionStart)
	for i, start := range m.PreviousSessionStarts {
		binary.LittleEndian.PutUint32(frame[offsetPrevSessions+4*i:], start)
	}

	frame[statusChecksumOffset] = Checksum(frame[:statusChecksumOffset])
	frame[statusFillerOffset] = m.Filler
	return frame
}

// Encode returns the 234-byte wire frame for the data message. CardID is truncated
// to 24 bits, ASCII is space padded or truncated to 56 bytes. The checksum is
// recomputed; the Checksum field is ignored and Filler is written as is.
func (m *DataMessage) Encode() []byte {
	frame := make([]byte, DataFrameSize)
	putHeader(frame, DataSize, MsgData, m.MTRID, m.Timestamp)

	binary.LittleEndian.PutUint32(frame[offsetPackageNumber:], m.PackageNumber)
	frame[offsetCardID] = byte(m.CardID)
	frame[offsetCardID+1] = byte(m.CardID >> 8)
	frame[offsetCardID+2] = byte(m.CardID >> 16)
	frame[offsetProductWeek] = m.ProductWeek
	frame[offsetProductYear] = m.ProductYear
	frame[offsetHeadChecksum] = m.HeadChecksum

	for i, split := range m.Splits {
		off := offsetSplits + i*SplitSize
		frame[off] = split.Code
		binary.LittleEndian.PutUint16(frame[off+1:], split.Seconds)
	}

	ascii := frame[offsetASCII : offsetASCII+ASCIISize]
	n := copy(ascii, m.ASCII)
	for i := n; i < ASCIISize; i++ {
		ascii[i] = asciiFiller
	}

	frame[dataChecksumOffset] = Checksum(frame[:dataChecksumOffset])
	frame[dataFillerOffset] = m.Filler
	return frame
}

func putHeader(frame []byte, size, msgType byte, mtrID uint16, ts Timestamp) {
	copy(frame, Preamble[:])
	frame[offsetSize] = size
	frame[offsetType] = msgType
	binary.LittleEndian.PutUint16(frame[offsetMTRID:], mtrID)
	frame[offsetTimestamp] = ts.Year
	frame[offsetTimestamp+1] = ts.Month
	frame[offsetTimestamp+2] = ts.Day
	frame[offsetTimestamp+3] = ts.Hour
	frame[offsetTimestamp+4] = ts.Minute
	frame[offsetTimestamp+5] = ts.Second
	binary.LittleEndian.PutUint16(frame[offsetMillisecond:], ts.Millisecond)
}

// EncodeMessages concatenates the wire frames of msgs, as the device would send
// them in response to a spool-all command.
func EncodeMessages(msgs ...Message) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, m.Encode()...)
	}
	return out
}
