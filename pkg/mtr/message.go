// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import (
	"strings"
	"time"
)

// Message is a decoded MTR message. It is implemented only by *StatusMessage and
// *DataMessage; use a type switch to tell them apart.
type Message interface {
	// Type returns the frame type byte (MsgStatus or MsgData).
	Type() byte
	// DeviceID returns the serial number of the MTR that sent the message.
	DeviceID() uint16
	// Time returns the device timestamp carried in the message.
	Time() Timestamp
	// Encode returns the complete wire frame, preamble and checksum included.
	Encode() []byte

	sealed()
}

// Timestamp is the device clock as sent on the wire. Year is two-digit.
// Millisecond is always 0 with current firmware.
type Timestamp struct {
	Year        uint8
	Month       uint8
	Day         uint8
	Hour        uint8
	Minute      uint8
	Second      uint8
	Millisecond uint16
}

// TimestampFromTime converts t to the device representation.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{
		Year:        uint8(t.Year() % 100),
		Month:       uint8(t.Month()),
		Day:         uint8(t.Day()),
		Hour:        uint8(t.Hour()),
		Minute:      uint8(t.Minute()),
		Second:      uint8(t.Second()),
		Millisecond: uint16(t.Nanosecond() / int(time.Millisecond)),
	}
}

// In converts the timestamp to a time.Time in loc, assuming the 2000s.
func (ts Timestamp) In(loc *time.Location) time.Time {
	return time.Date(
		yearOffset+int(ts.Year), time.Month(ts.Month), int(ts.Day),
		int(ts.Hour), int(ts.Minute), int(ts.Second),
		int(ts.Millisecond)*int(time.Millisecond), loc)
}

// Split is one control passage: the control code and the elapsed seconds.
type Split struct {
	Code    uint8
	Seconds uint16
}

// IsPadding reports whether the entry is an unused (0, 0) slot.
func (s Split) IsPadding() bool {
	return s.Code == 0 && s.Seconds == 0
}

// Splits is the fixed 50-entry split table of a data message. Unused entries are
// zero-filled and must be treated as padding.
type Splits [SplitCount]Split

// Recorded returns the splits up to the last non-padding entry.
func (s *Splits) Recorded() []Split {
	last := -1
	for i, split := range s {
		if !split.IsPadding() {
			last = i
		}
	}
	out := make([]Split, last+1)
	copy(out, s[:last+1])
	return out
}

// NewSplits builds a split table from entries, padding with (0, 0).
// Entries beyond SplitCount are ignored.
func NewSplits(entries ...Split) Splits {
	var s Splits
	copy(s[:], entries)
	return s
}

// StatusMessage is the periodic status message ('S', 59 bytes on the wire).
type StatusMessage struct {
	MTRID         uint16
	Timestamp     Timestamp
	BatteryStatus uint8 // 1 when the battery is low

	// Package bookkeeping. When RecentPackage is 0 the rest should be ignored.
	RecentPackage         uint32
	OldestPackage         uint32
	CurrentSessionStart   uint32
	PreviousSessionStarts [PreviousSessionCount]uint32

	Checksum uint8
	Filler   uint8
}

func (m *StatusMessage) Type() byte       { return MsgStatus }
func (m *StatusMessage) DeviceID() uint16 { return m.MTRID }
func (m *StatusMessage) Time() Timestamp  { return m.Timestamp }
func (m *StatusMessage) sealed()          {}

// BatteryLow reports whether the device flagged a low battery.
func (m *StatusMessage) BatteryLow() bool {
	return m.BatteryStatus == 1
}

// StoredPackages returns how many data messages the device holds.
func (m *StatusMessage) StoredPackages() uint32 {
	if m.RecentPackage == 0 || m.RecentPackage < m.OldestPackage {
		return 0
	}
	return m.RecentPackage - m.OldestPackage + 1
}

// DataMessage carries one e-card readout ('M', 234 bytes on the wire).
type DataMessage struct {
	MTRID         uint16
	Timestamp     Timestamp
	PackageNumber uint32
	CardID        uint32 // 24 bits on the wire

	// Zero when the message is spooled from history.
	ProductWeek  uint8
	ProductYear  uint8
	HeadChecksum uint8

	Splits Splits
	ASCII  string // 56 bytes on the wire, space padded

	Checksum uint8
	Filler   uint8
}

func (m *DataMessage) Type() byte       { return MsgData }
func (m *DataMessage) DeviceID() uint16 { return m.MTRID }
func (m *DataMessage) Time() Timestamp  { return m.Timestamp }
func (m *DataMessage) sealed()          {}

// TrimmedASCII returns the ASCII field without trailing padding.
func (m *DataMessage) TrimmedASCII() string {
	return strings.TrimRight(m.ASCII, " \x00")
}

// DataMessages returns the data messages in msgs, preserving order.
func DataMessages(msgs []Message) []*DataMessage {
	out := make([]*DataMessage, 0, len(msgs))
	for _, m := range msgs {
		if dm, ok := m.(*DataMessage); ok {
			out = append(out, dm)
		}
	}
	return out
}

// StatusMessages returns the status messages in msgs, preserving order.
func StatusMessages(msgs []Message) []*StatusMessage {
	out := make([]*StatusMessage, 0, len(msgs))
	for _, m := range msgs {
		if sm, ok := m.(*StatusMessage); ok {
			out = append(out, sm)
		}
	}
	return out
}
