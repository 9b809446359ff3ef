// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ============================================================
// Command Tests
// ============================================================

func TestSendStatusCommand(t *testing.T) {
	tr := newSegmentTransport()
	require.NoError(t, NewReader(tr).SendStatusCommand())
	assert.Equal(t, "/ST", tr.written.String())
}

func TestSendSpoolAllCommand(t *testing.T) {
	tr := newSegmentTransport()
	require.NoError(t, NewReader(tr).SendSpoolAllCommand())
	assert.Equal(t, "/SA", tr.written.String())
}

type shortWriter struct{ io.Reader }

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

type failingWriter struct{ io.Reader }

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("port closed") }

func TestSendCommand_Errors(t *testing.T) {
	err := NewReader(shortWriter{}).SendStatusCommand()
	assert.ErrorIs(t, err, io.ErrShortWrite)

	err = NewReader(failingWriter{}).SendSpoolAllCommand()
	assert.ErrorContains(t, err, "port closed")
}

// ============================================================
// Receive Tests
// ============================================================

func TestReceive_NoData(t *testing.T) {
	msgs, err := NewReader(newSegmentTransport()).Receive()
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestReceive_NoiseOnly(t *testing.T) {
	noise := []byte{0x00, 0x13, 0xFF, 0xFF, 0xFF, 0x42, 'M', 'S', 0xE6, 0x37}
	r := NewReader(readerTransport(noise))

	msgs, err := r.Receive()
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, uint64(len(noise)), r.Statistics().Snapshot().SkippedBytes)
}

func TestReceive_OneDataMessage(t *testing.T) {
	tr := newSegmentTransport(testDataMessage().Encode())

	msgs, err := NewReader(tr).Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	data, ok := msgs[0].(*DataMessage)
	require.True(t, ok)
	assert.Equal(t, uint16(1), data.MTRID)
	assert.Equal(t, uint32(546), data.CardID)

	var want Splits
	want[0] = Split{0, 0}
	want[1] = Split{249, 60}
	assert.Equal(t, want, data.Splits)
}

func TestReceive_TwoDataMessagesInOrder(t *testing.T) {
	first := testDataMessage()
	second := testDataMessage()
	second.PackageNumber = 2

	msgs, err := NewReader(readerTransport(EncodeMessages(first, second))).Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, uint32(1), msgs[0].(*DataMessage).PackageNumber)
	assert.Equal(t, uint32(2), msgs[1].(*DataMessage).PackageNumber)
}

func TestReceive_Status(t *testing.T) {
	status := testStatusMessage()
	status.MTRID = 33145

	msgs, err := NewReader(newSegmentTransport(status.Encode())).Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uint16(33145), msgs[0].DeviceID())
	assert.IsType(t, &StatusMessage{}, msgs[0])
}

func TestReceive_ChecksumMismatchDropped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	good := testDataMessage()
	good.PackageNumber = 2

	stream := concat(corruptChecksum(testDataMessage().Encode()), good.Encode())
	r := NewReader(readerTransport(stream), WithLogger(zap.New(core)))

	msgs, err := r.Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uint32(2), msgs[0].(*DataMessage).PackageNumber)

	snap := r.Statistics().Snapshot()
	assert.Equal(t, uint64(1), snap.ChecksumErrors)
	assert.Equal(t, uint64(1), snap.ValidMessages)

	dropped := logs.FilterMessage("dropping frame").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "checksum_mismatch", dropped[0].ContextMap()["reason"])
}

func TestReceive_OnlyCorruptFrame(t *testing.T) {
	frame := corruptChecksum(testStatusMessage().Encode())
	msgs, err := NewReader(readerTransport(frame)).Receive()
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestReceive_PartialFrameResyncs(t *testing.T) {
	truncated := testDataMessage().Encode()[:100]
	good := testDataMessage()
	good.PackageNumber = 7

	var reasons []error
	r := NewReader(newSegmentTransport(truncated, good.Encode()),
		WithDropHook(func(reason error) { reasons = append(reasons, reason) }))

	msgs, err := r.Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uint32(7), msgs[0].(*DataMessage).PackageNumber)

	require.Len(t, reasons, 1)
	assert.ErrorIs(t, reasons[0], ErrPartialFrame)
	assert.Equal(t, "partial_frame", DropReason(reasons[0]))
	assert.Equal(t, uint64(1), r.Statistics().Snapshot().PartialFrames)
}

func TestReceive_PreambleAtEndOfStream(t *testing.T) {
	msgs, err := NewReader(readerTransport(Preamble[:])).Receive()
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestReceive_PreambleAndSizeOnly(t *testing.T) {
	r := NewReader(readerTransport(append(Preamble[:], DataSize)))
	msgs, err := r.Receive()
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, uint64(1), r.Statistics().Snapshot().PartialFrames)
}

func TestReceive_UnknownTypeSkipped(t *testing.T) {
	unknown := testDataMessage().Encode()
	unknown[offsetType] = 'X'
	unknown[dataChecksumOffset] = Checksum(unknown[:dataChecksumOffset])

	stream := concat(unknown, testStatusMessage().Encode())
	r := NewReader(readerTransport(stream))

	msgs, err := r.Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.IsType(t, &StatusMessage{}, msgs[0])
	assert.Equal(t, uint64(1), r.Statistics().Snapshot().UnknownTypes)
}

func TestReceive_LengthMismatchSkipped(t *testing.T) {
	// A status frame claiming the data message size
	wrong := testDataMessage().Encode()
	wrong[offsetType] = MsgStatus
	wrong[dataChecksumOffset] = Checksum(wrong[:dataChecksumOffset])

	r := NewReader(readerTransport(concat(wrong, testDataMessage().Encode())))
	msgs, err := r.Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, uint64(1), r.Statistics().Snapshot().LengthMismatches)
}

func TestReceive_NoiseBetweenFrames(t *testing.T) {
	noise := []byte{0x01, 0x02, 0xFF, 0xFF, 0x00, 0x53, 0x4D}
	second := testDataMessage()
	second.PackageNumber = 2

	stream := concat(noise, testDataMessage().Encode(), noise, second.Encode(), noise)
	r := NewReader(readerTransport(stream))

	msgs, err := r.Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, uint64(3*len(noise)), r.Statistics().Snapshot().SkippedBytes)
}

func TestReceive_TransportErrorReturnsDecoded(t *testing.T) {
	tr := newSegmentTransport(testDataMessage().Encode())
	tr.err = errors.New("device unplugged")

	msgs, err := NewReader(tr).Receive()
	require.Error(t, err)
	assert.ErrorContains(t, err, "device unplugged")
	assert.Len(t, msgs, 1)
}

func TestReceive_SuccessiveCalls(t *testing.T) {
	// Each call ends at an idle gap; the next call picks up after it.
	first := testStatusMessage()
	second := testDataMessage()
	tr := newSegmentTransport(first.Encode(), second.Encode())
	r := NewReader(tr)

	msgs, err := r.Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.IsType(t, &StatusMessage{}, msgs[0])

	msgs, err = r.Receive()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.IsType(t, &DataMessage{}, msgs[0])

	assert.Equal(t, uint64(2), r.Statistics().Snapshot().Receives)
}

func TestReceive_SharedStatistics(t *testing.T) {
	stats := NewStatistics()
	for i := 0; i < 3; i++ {
		_, err := NewReader(readerTransport(testDataMessage().Encode()), WithStatistics(stats)).Receive()
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(3), stats.Snapshot().DataMessages)
}

func TestReceive_ChecksumCorruptionExcludesOnlyThatFrame(t *testing.T) {
	third := testDataMessage()
	third.PackageNumber = 3
	msgs := []Message{testStatusMessage(), testDataMessage(), third}

	for corrupt := range msgs {
		t.Run(fmt.Sprintf("frame_%d", corrupt), func(t *testing.T) {
			var stream []byte
			for i, m := range msgs {
				frame := m.Encode()
				if i == corrupt {
					frame = corruptChecksum(frame)
				}
				stream = append(stream, frame...)
			}

			got, err := NewReader(readerTransport(stream)).Receive()
			require.NoError(t, err)
			require.Len(t, got, len(msgs)-1)

			var want []Message
			for i, m := range msgs {
				if i != corrupt {
					want = append(want, m)
				}
			}
			for i := range want {
				assert.Equal(t, want[i].Encode(), got[i].Encode())
			}
		})
	}
}
