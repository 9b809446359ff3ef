// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Transport is the byte link to the device, typically a serial port opened with a
// read timeout. A read returning no bytes (n == 0 with a nil error, or io.EOF)
// signals that the link is idle.
type Transport interface {
	io.Reader
	io.Writer
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for drop reasons and diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStatistics makes the Reader record into stats instead of a private tracker.
func WithStatistics(stats *Statistics) Option {
	return func(r *Reader) {
		if stats != nil {
			r.stats = stats
		}
	}
}

// WithDropHook registers fn to be called with the reason for every dropped frame.
func WithDropHook(fn func(reason error)) Option {
	return func(r *Reader) {
		r.onDrop = fn
	}
}

// Reader receives and decodes MTR messages from a Transport and sends the two
// command codes. It is not safe for concurrent use.
type Reader struct {
	transport Transport
	logger    *zap.Logger
	stats     *Statistics
	onDrop    func(reason error)

	window  preambleWindow
	frame   *frameBuffer
	one     [1]byte
	scratch []byte
}

// NewReader creates a Reader on t.
func NewReader(t Transport, opts ...Option) *Reader {
	r := &Reader{
		transport: t,
		logger:    zap.NewNop(),
		stats:     NewStatistics(),
		frame:     newFrameBuffer(PreambleSize + 255),
		scratch:   make([]byte, 255),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Statistics returns the tracker the Reader records into.
func (r *Reader) Statistics() *Statistics {
	return r.stats
}

// SendStatusCommand asks the device for a status message.
func (r *Reader) SendStatusCommand() error {
	return r.sendCommand(CommandStatus)
}

// SendSpoolAllCommand asks the device for every stored data message.
func (r *Reader) SendSpoolAllCommand() error {
	return r.sendCommand(CommandSpoolAll)
}

func (r *Reader) sendCommand(code string) error {
	n, err := r.transport.Write([]byte(code))
	if err != nil {
		return fmt.Errorf("send %s: %w", code, err)
	}
	if n != len(code) {
		return fmt.Errorf("send %s: wrote %d of %d bytes: %w", code, n, len(code), io.ErrShortWrite)
	}
	r.logger.Debug("sent command", zap.String("command", code))
	return nil
}

// Receive reads frames until the transport goes idle and returns every message that
// decoded with a valid checksum, in arrival order. Partial frames, unknown types,
// length and checksum mismatches are logged and skipped. An empty result is not an
// error. A transport failure other than idle ends the call; the messages decoded so
// far are returned along with the error.
func (r *Reader) Receive() ([]Message, error) {
	messages := make([]Message, 0)
	r.stats.recordReceive()

	for {
		if err := r.synchronize(); err != nil {
			if errors.Is(err, ErrTransportIdle) {
				r.logger.Debug("transport idle, receive complete", zap.Int("messages", len(messages)))
				return messages, nil
			}
			return messages, fmt.Errorf("synchronize: %w", err)
		}

		if err := r.readFrame(); err != nil {
			if errors.Is(err, ErrPartialFrame) {
				r.drop(err)
				continue
			}
			return messages, fmt.Errorf("read frame: %w", err)
		}

		msg, err := DecodeFrame(r.frame.bytes())
		if err != nil {
			r.drop(err)
			continue
		}

		r.stats.recordMessage(msg)
		r.logger.Info("received message",
			zap.Int("number", len(messages)+1),
			zap.String("type", FormatMessageType(msg.Type())),
			zap.String("hex", hex.EncodeToString(r.frame.bytes())))
		messages = append(messages, msg)
	}
}

// synchronize consumes bytes until the most recent four equal the preamble.
func (r *Reader) synchronize() error {
	r.window.reset()
	read := 0
	for !r.window.matched() {
		b, err := r.readByte()
		if err != nil {
			r.stats.recordSkipped(read)
			return err
		}
		r.window.push(b)
		read++
	}
	if skipped := read - PreambleSize; skipped > 0 {
		r.stats.recordSkipped(skipped)
		r.logger.Debug("skipped bytes before preamble", zap.Int("count", skipped))
	}
	return nil
}

// readFrame reads the size byte, the type byte and the declared remainder into
// the frame buffer, which starts with the preamble.
func (r *Reader) readFrame() error {
	r.frame.reset()
	r.frame.append(Preamble[:]...)

	size, err := r.readByte()
	if err != nil {
		return partial(err, "missing size byte")
	}
	r.frame.append(size)

	msgType, err := r.readByte()
	if err != nil {
		return partial(err, "missing type byte")
	}
	r.frame.append(msgType)

	if size < 2 {
		return fmt.Errorf("%w: size byte %d too small", ErrPartialFrame, size)
	}

	return r.readFull(int(size) - 2)
}

// readFull appends exactly n bytes to the frame, or fails with ErrPartialFrame
// when the transport goes idle first.
func (r *Reader) readFull(n int) error {
	got := 0
	for got < n {
		k, err := r.transport.Read(r.scratch[:n-got])
		r.frame.append(r.scratch[:k]...)
		got += k
		if k > 0 && (err == nil || errors.Is(err, io.EOF)) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("%w: got %d of %d bytes after type 0x%02X", ErrPartialFrame, got, n, r.frame.bytes()[offsetType])
	}
	return nil
}

// readByte reads a single byte, mapping an empty read to ErrTransportIdle.
func (r *Reader) readByte() (byte, error) {
	n, err := r.transport.Read(r.one[:])
	if n == 1 {
		return r.one[0], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, ErrTransportIdle
	}
	return 0, err
}

func partial(err error, what string) error {
	if errors.Is(err, ErrTransportIdle) {
		return fmt.Errorf("%w: %s", ErrPartialFrame, what)
	}
	return err
}

func (r *Reader) drop(reason error) {
	r.stats.recordDrop(reason)
	r.logger.Warn("dropping frame",
		zap.String("reason", DropReason(reason)),
		zap.Error(reason))
	if r.onDrop != nil {
		r.onDrop(reason)
	}
}

// DropReason returns a short label for a drop error, for logs and metrics.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrPartialFrame):
		return "partial_frame"
	case errors.Is(err, ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, ErrLengthMismatch):
		return "length_mismatch"
	default:
		return "other"
	}
}
