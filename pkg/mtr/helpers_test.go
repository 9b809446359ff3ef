// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import (
	"bytes"
	"io"
	"time"
)

// ============================================================
// Test Transports
// ============================================================

// segmentTransport delivers segments of bytes with one idle read (0, nil) between
// consecutive segments, as a serial port with a read timeout does when the device
// pauses. Once all segments are consumed it returns err, or idles forever if err is nil.
type segmentTransport struct {
	segments [][]byte
	err      error
	written  bytes.Buffer
}

func newSegmentTransport(segments ...[]byte) *segmentTransport {
	return &segmentTransport{segments: segments}
}

func (f *segmentTransport) Read(p []byte) (int, error) {
	for len(f.segments) > 0 && len(f.segments[0]) == 0 {
		f.segments = f.segments[1:]
		if len(f.segments) > 0 {
			return 0, nil
		}
	}
	if len(f.segments) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		return 0, nil
	}
	n := copy(p, f.segments[0])
	f.segments[0] = f.segments[0][n:]
	return n, nil
}

func (f *segmentTransport) Write(p []byte) (int, error) {
	return f.written.Write(p)
}

// readerTransport adapts a plain reader; io.EOF acts as idle.
func readerTransport(data []byte) Transport {
	return struct {
		io.Reader
		io.Writer
	}{bytes.NewReader(data), io.Discard}
}

// ============================================================
// Message Builders
// ============================================================

var testTime = time.Date(2025, time.March, 14, 15, 9, 26, 0, time.Local)

func testDataMessage() *DataMessage {
	return &DataMessage{
		MTRID:         1,
		Timestamp:     TimestampFromTime(testTime),
		PackageNumber: 1,
		CardID:        546,
		Splits:        NewSplits(Split{0, 0}, Split{249, 60}),
	}
}

func testStatusMessage() *StatusMessage {
	return &StatusMessage{
		MTRID:     1,
		Timestamp: TimestampFromTime(testTime),
	}
}

// corruptChecksum returns a copy of frame with its checksum byte incremented.
func corruptChecksum(frame []byte) []byte {
	out := append([]byte(nil), frame...)
	out[len(out)-2]++
	return out
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
