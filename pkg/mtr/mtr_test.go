// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import (
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_Empty(t *testing.T) {
	assert.Equal(t, byte(0), Checksum(nil))
}

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{name: "single byte", data: []byte{0x42}, expected: 0x42},
		{name: "preamble wraps", data: Preamble[:], expected: 0xFC},
		{name: "sum mod 256", data: []byte{0x80, 0x80, 0x01}, expected: 0x01},
		{name: "ascii", data: []byte("123456789"), expected: 0xDD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Checksum(tt.data))
		})
	}
}

func TestVerifyChecksum(t *testing.T) {
	frame := testDataMessage().Encode()

	stored, calculated, ok := VerifyChecksum(frame, dataChecksumOffset)
	assert.True(t, ok)
	assert.Equal(t, stored, calculated)

	_, _, ok = VerifyChecksum(corruptChecksum(frame), dataChecksumOffset)
	assert.False(t, ok)
}

// ============================================================
// Buffer Tests
// ============================================================

func TestPreambleWindow(t *testing.T) {
	var w preambleWindow
	for _, b := range []byte{0xFF, 0xFF, 0xFF} {
		w.push(b)
		assert.False(t, w.matched())
	}
	w.push(0xFF)
	assert.True(t, w.matched())

	// Oldest byte drops out
	w.push(0x00)
	assert.False(t, w.matched())
	for i := 0; i < 3; i++ {
		w.push(0xFF)
		assert.False(t, w.matched(), "window must hold the 0x00 for %d more pushes", 3-i)
	}
	w.push(0xFF)
	assert.True(t, w.matched())

	w.reset()
	assert.False(t, w.matched())
}

func TestPreambleWindow_KeepsMostRecent(t *testing.T) {
	var w preambleWindow
	for _, b := range []byte{1, 2, 3, 4, 5, 6} {
		w.push(b)
	}
	assert.Equal(t, [PreambleSize]byte{3, 4, 5, 6}, w.buf)
}

func TestFrameBuffer(t *testing.T) {
	b := newFrameBuffer(4)
	b.append(1, 2)
	b.append(3, 4, 5)
	assert.Equal(t, 5, b.len())
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, b.bytes())

	b.reset()
	assert.Equal(t, 0, b.len())
	b.append(9)
	assert.Equal(t, []byte{9}, b.bytes())
}

// ============================================================
// Encoding Tests
// ============================================================

func TestStatusMessage_EncodeLayout(t *testing.T) {
	m := &StatusMessage{
		MTRID:                 0x8179,
		Timestamp:             Timestamp{Year: 25, Month: 3, Day: 14, Hour: 15, Minute: 9, Second: 26},
		BatteryStatus:         1,
		RecentPackage:         120,
		OldestPackage:         1,
		CurrentSessionStart:   100,
		PreviousSessionStarts: [PreviousSessionCount]uint32{50, 20, 1},
	}
	frame := m.Encode()

	require.Len(t, frame, StatusFrameSize)
	assert.Equal(t, Preamble[:], frame[:4])
	assert.Equal(t, byte(StatusSize), frame[4])
	assert.Equal(t, byte('S'), frame[5])
	assert.Equal(t, []byte{0x79, 0x81}, frame[6:8])
	assert.Equal(t, []byte{25, 3, 14, 15, 9, 26, 0, 0}, frame[8:16])
	assert.Equal(t, byte(1), frame[16])
	assert.Equal(t, uint32(120), binary.LittleEndian.Uint32(frame[17:21]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(frame[21:25]))
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(frame[25:29]))
	assert.Equal(t, uint32(50), binary.LittleEndian.Uint32(frame[29:33]))
	assert.Equal(t, Checksum(frame[:57]), frame[57])
	assert.Equal(t, byte(0), frame[58])
}

func TestDataMessage_EncodeLayout(t *testing.T) {
	m := testDataMessage()
	m.CardID = 0x020202
	m.PackageNumber = 0x01020304
	m.ASCII = "This is a test"
	frame := m.Encode()

	require.Len(t, frame, DataFrameSize)
	assert.Equal(t, byte(DataSize), frame[4])
	assert.Equal(t, byte('M'), frame[5])
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, frame[16:20])
	assert.Equal(t, []byte{0x02, 0x02, 0x02}, frame[20:23])
	assert.Equal(t, []byte{0, 0, 0}, frame[23:26])
	assert.Equal(t, []byte{0, 0, 0, 249, 60, 0}, frame[26:32])
	assert.Equal(t, "This is a test"+strings.Repeat(" ", 42), string(frame[176:232]))
	assert.Equal(t, Checksum(frame[:232]), frame[232])
	assert.Equal(t, byte(0), frame[233])
}

func TestEncodeMessages(t *testing.T) {
	data := EncodeMessages(testStatusMessage(), testDataMessage())
	assert.Len(t, data, StatusFrameSize+DataFrameSize)
}

// ============================================================
// Decoding Tests
// ============================================================

func TestDecodeFrame_StatusRoundTrip(t *testing.T) {
	in := testStatusMessage()
	in.MTRID = 33145
	in.BatteryStatus = 1
	in.RecentPackage = 7
	in.OldestPackage = 1
	in.PreviousSessionStarts[6] = 3

	msg, err := DecodeFrame(in.Encode())
	require.NoError(t, err)

	status, ok := msg.(*StatusMessage)
	require.True(t, ok, "expected *StatusMessage, got %T", msg)
	assert.Equal(t, uint16(33145), status.MTRID)
	assert.Equal(t, uint16(33145), status.DeviceID())
	assert.Equal(t, uint8(1), status.BatteryStatus)
	assert.True(t, status.BatteryLow())
	assert.Equal(t, in.Timestamp, status.Timestamp)
	assert.Equal(t, uint32(7), status.StoredPackages())
	assert.Equal(t, uint32(3), status.PreviousSessionStarts[6])
	assert.Equal(t, byte(MsgStatus), status.Type())
}

func TestDecodeFrame_StatusTimestamp(t *testing.T) {
	now := time.Now()
	in := testStatusMessage()
	in.Timestamp = TimestampFromTime(now)
	in.Timestamp.Millisecond = 0

	msg, err := DecodeFrame(in.Encode())
	require.NoError(t, err)

	ts := msg.Time()
	assert.Equal(t, uint8(now.Year()%100), ts.Year)
	assert.Equal(t, uint8(now.Month()), ts.Month)
	assert.Equal(t, uint8(now.Day()), ts.Day)
	assert.Equal(t, uint8(now.Hour()), ts.Hour)
	assert.Equal(t, uint8(now.Minute()), ts.Minute)
	assert.Equal(t, uint8(now.Second()), ts.Second)
	assert.Equal(t, uint16(0), ts.Millisecond)
}

func TestDecodeFrame_DataRoundTrip(t *testing.T) {
	in := testDataMessage()
	in.MTRID = 33145
	in.PackageNumber = 39
	in.CardID = 131586
	in.ASCII = "This is a test"

	msg, err := DecodeFrame(in.Encode())
	require.NoError(t, err)

	data, ok := msg.(*DataMessage)
	require.True(t, ok, "expected *DataMessage, got %T", msg)
	assert.Equal(t, uint16(33145), data.MTRID)
	assert.Equal(t, uint32(39), data.PackageNumber)
	assert.Equal(t, uint32(131586), data.CardID)
	assert.Equal(t, in.Timestamp, data.Timestamp)
	assert.Equal(t, "This is a test"+strings.Repeat(" ", 42), data.ASCII)
	assert.Equal(t, "This is a test", data.TrimmedASCII())
}

func TestDecodeFrame_SplitsPadded(t *testing.T) {
	input := []Split{{0, 0}, {31, 60}, {32, 120}, {33, 180}, {249, 240}}
	in := testDataMessage()
	in.Splits = NewSplits(input...)

	msg, err := DecodeFrame(in.Encode())
	require.NoError(t, err)
	data := msg.(*DataMessage)

	for i, s := range data.Splits {
		if i < len(input) {
			assert.Equal(t, input[i], s, "split %d", i)
		} else {
			assert.True(t, s.IsPadding(), "split %d should be padding", i)
		}
	}
	assert.Equal(t, input, data.Splits.Recorded())
}

func TestDecodeFrame_CardIDMaximum(t *testing.T) {
	in := testDataMessage()
	in.CardID = MaxCardID

	msg, err := DecodeFrame(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, uint32(MaxCardID), msg.(*DataMessage).CardID)
}

func TestDecodeFrame_FillerNotChecked(t *testing.T) {
	in := testDataMessage()
	in.Filler = 0x5A

	msg, err := DecodeFrame(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, uint8(0x5A), msg.(*DataMessage).Filler)
}

func TestDecodeFrame_Errors(t *testing.T) {
	unknown := testDataMessage().Encode()
	unknown[offsetType] = 'X'

	wrongLength := testDataMessage().Encode()
	wrongLength[offsetType] = MsgStatus
	wrongLength[dataChecksumOffset] = Checksum(wrongLength[:dataChecksumOffset])

	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{name: "data checksum", frame: corruptChecksum(testDataMessage().Encode()), want: ErrChecksumMismatch},
		{name: "status checksum", frame: corruptChecksum(testStatusMessage().Encode()), want: ErrChecksumMismatch},
		{name: "unknown type", frame: unknown, want: ErrUnknownType},
		{name: "status type with data length", frame: wrongLength, want: ErrLengthMismatch},
		{name: "truncated header", frame: Preamble[:], want: ErrPartialFrame},
		{name: "truncated data", frame: testDataMessage().Encode()[:100], want: ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeFrame(tt.frame)
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// ============================================================
// Split Tests
// ============================================================

func TestNewSplits_TruncatesAndPads(t *testing.T) {
	entries := make([]Split, SplitCount+5)
	for i := range entries {
		entries[i] = Split{Code: uint8(i + 1), Seconds: uint16(i * 60)}
	}
	s := NewSplits(entries...)
	assert.Equal(t, Split{Code: SplitCount, Seconds: (SplitCount - 1) * 60}, s[SplitCount-1])

	s = NewSplits(Split{31, 60})
	assert.Len(t, s.Recorded(), 1)
	assert.True(t, s[1].IsPadding())
}

func TestSplits_RecordedEmpty(t *testing.T) {
	var s Splits
	assert.Empty(t, s.Recorded())
}

// ============================================================
// Timestamp Tests
// ============================================================

func TestTimestamp_In(t *testing.T) {
	ts := Timestamp{Year: 25, Month: 3, Day: 14, Hour: 15, Minute: 9, Second: 26, Millisecond: 500}
	got := ts.In(time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 14, 15, 9, 26, 500*int(time.Millisecond), time.UTC), got)
	assert.Equal(t, ts, TimestampFromTime(got))
}

// ============================================================
// Filter Tests
// ============================================================

func TestMessageFilters(t *testing.T) {
	msgs := []Message{testDataMessage(), testStatusMessage(), testDataMessage()}
	assert.Len(t, DataMessages(msgs), 2)
	assert.Len(t, StatusMessages(msgs), 1)
	assert.Empty(t, DataMessages(nil))
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateMessage_Clean(t *testing.T) {
	assert.Empty(t, ValidateMessage(testDataMessage()))
	assert.Empty(t, ValidateMessage(testStatusMessage()))
}

func TestValidateMessage_Anomalies(t *testing.T) {
	lowBattery := testStatusMessage()
	lowBattery.BatteryStatus = 1

	badTime := testStatusMessage()
	badTime.Timestamp.Month = 13

	filler := testDataMessage()
	filler.Filler = 1

	order := testDataMessage()
	order.Splits = NewSplits(Split{0, 0}, Split{31, 120}, Split{32, 60})

	interleaved := testDataMessage()
	interleaved.Splits = NewSplits(Split{0, 0}, Split{31, 60}, Split{0, 0}, Split{249, 180})

	ascii := testDataMessage()
	ascii.ASCII = "bad\x01byte"

	tests := []struct {
		name string
		msg  Message
		want AnomalyType
	}{
		{name: "battery low", msg: lowBattery, want: AnomalyBatteryLow},
		{name: "invalid month", msg: badTime, want: AnomalyInvalidTimestamp},
		{name: "non-zero filler", msg: filler, want: AnomalyNonZeroFiller},
		{name: "split order", msg: order, want: AnomalySplitOrder},
		{name: "interleaved padding", msg: interleaved, want: AnomalyInterleavedPadding},
		{name: "non-printable ascii", msg: ascii, want: AnomalyNonPrintableASCII},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateMessage(tt.msg)
			require.NotEmpty(t, errs)
			types := make([]AnomalyType, len(errs))
			for i, e := range errs {
				types[i] = e.Type
				assert.NotEmpty(t, e.Error())
			}
			assert.Contains(t, types, tt.want)
		})
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatMessageType(t *testing.T) {
	assert.Equal(t, "STATUS", FormatMessageType(MsgStatus))
	assert.Equal(t, "DATA", FormatMessageType(MsgData))
	assert.Equal(t, "UNKNOWN", FormatMessageType(0x00))
}

func TestFormatMessage_Data(t *testing.T) {
	m := testDataMessage()
	m.Splits = NewSplits(Split{0, 0}, Split{31, 75}, Split{249, 3725})
	out := FormatMessage(m)

	assert.Contains(t, out, "DATA (0x4D) mtr=1")
	assert.Contains(t, out, "14.03.25 15:09:26.000")
	assert.Contains(t, out, "Card: 000546")
	assert.Contains(t, out, "Splits (3): 0@0:00 31@1:15 249@1:02:05")
}

func TestFormatMessage_Status(t *testing.T) {
	m := testStatusMessage()
	assert.Contains(t, FormatMessage(m), "Packages: none")

	m.RecentPackage = 10
	m.OldestPackage = 1
	m.BatteryStatus = 1
	out := FormatMessage(m)
	assert.Contains(t, out, "STATUS (0x53)")
	assert.Contains(t, out, "Battery: LOW")
	assert.Contains(t, out, "Packages: 1..10 (10 stored)")
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Counters(t *testing.T) {
	s := NewStatistics()
	s.recordReceive()
	s.recordMessage(testDataMessage())
	s.recordMessage(testStatusMessage())
	s.recordDrop(ErrPartialFrame)
	s.recordDrop(ErrChecksumMismatch)
	s.recordDrop(ErrUnknownType)
	s.recordDrop(ErrLengthMismatch)
	s.recordSkipped(12)

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Receives)
	assert.Equal(t, uint64(6), snap.TotalFrames)
	assert.Equal(t, uint64(2), snap.ValidMessages)
	assert.Equal(t, uint64(1), snap.DataMessages)
	assert.Equal(t, uint64(1), snap.StatusMessages)
	assert.Equal(t, uint64(4), snap.Dropped())
	assert.Equal(t, uint64(12), snap.SkippedBytes)

	out := s.String()
	assert.Contains(t, out, "Dropped Frames:")
	assert.Contains(t, out, "Checksum:")

	s.Reset()
	assert.Zero(t, s.Snapshot().TotalFrames)
}

func TestAnomalyType_String(t *testing.T) {
	assert.Equal(t, "battery_low", AnomalyBatteryLow.String())
	assert.Equal(t, "card_id_range", AnomalyCardIDRange.String())
	assert.Equal(t, "anomaly(99)", AnomalyType(99).String())
}
