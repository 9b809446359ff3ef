// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mock emulates an MTR on a byte transport: it answers the status and
// spool-all commands with status frames and generated or recorded data frames.
package mock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/emitor/pkg/mtr"
)

// Device is an emulated MTR. It is not safe for concurrent use.
type Device struct {
	cfg    Config
	mtrID  uint16
	replay []byte
	rng    *rand.Rand
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Device.
type Option func(*Device)

// WithReplay makes the device answer spool-all with data verbatim, typically a
// recording made by the record command, instead of generated readouts.
func WithReplay(data []byte) Option {
	return func(d *Device) { d.replay = data }
}

// WithRand sets the random source, for reproducible readouts.
func WithRand(rng *rand.Rand) Option {
	return func(d *Device) { d.rng = rng }
}

// WithClock sets the clock used for device timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Device) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDevice creates a Device. When cfg.MTRID is 0 a random id is chosen once.
func NewDevice(cfg Config, opts ...Option) *Device {
	d := &Device{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.mtrID = cfg.MTRID
	if d.mtrID == 0 {
		d.mtrID = uint16(d.rng.Intn(0xFFFF) + 1)
	}
	return d
}

// MTRID returns the serial number the device reports.
func (d *Device) MTRID() uint16 {
	return d.mtrID
}

// ListenCommand reads from r until the last three bytes form a known command
// and returns it. Empty reads are retried until ctx is done.
func (d *Device) ListenCommand(ctx context.Context, r io.Reader) (string, error) {
	var window [mtr.CommandSize]byte
	var one [1]byte
	filled := 0

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.Read(one[:])
		if n == 1 {
			if filled == len(window) {
				copy(window[:], window[1:])
				filled--
			}
			window[filled] = one[0]
			filled++

			if filled == len(window) {
				switch cmd := string(window[:]); cmd {
				case mtr.CommandStatus, mtr.CommandSpoolAll:
					d.logger.Info("received command", zap.String("command", cmd))
					return cmd, nil
				}
			}
		}
		if err != nil {
			return "", err
		}
	}
}

// Respond writes the answer to cmd: a status frame for /ST, every data frame
// for /SA.
func (d *Device) Respond(w io.Writer, cmd string) (int, error) {
	var out []byte
	switch cmd {
	case mtr.CommandStatus:
		out = d.StatusFrame()
	case mtr.CommandSpoolAll:
		out = d.SpoolFrames()
	default:
		return 0, fmt.Errorf("unknown command %q", cmd)
	}

	n, err := w.Write(out)
	if err != nil {
		return n, fmt.Errorf("respond to %s: %w", cmd, err)
	}
	d.logger.Info("responded", zap.String("command", cmd), zap.Int("bytes", n))
	return n, nil
}

// Serve answers commands read from rw until ctx is done or the transport
// reaches EOF, which ends Serve without error.
func (d *Device) Serve(ctx context.Context, rw io.ReadWriter) error {
	d.logger.Info("mock MTR ready", zap.Uint16("mtr_id", d.mtrID))
	for {
		cmd, err := d.ListenCommand(ctx, rw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if _, err := d.Respond(rw, cmd); err != nil {
			return err
		}
	}
}

// StatusMessage returns the current status of the device.
func (d *Device) StatusMessage() *mtr.StatusMessage {
	status := &mtr.StatusMessage{
		MTRID:     d.mtrID,
		Timestamp: mtr.TimestampFromTime(d.now().Truncate(time.Second)),
	}
	if d.replay == nil && d.cfg.Messages > 0 {
		status.RecentPackage = uint32(d.cfg.Messages)
		status.OldestPackage = 1
	}
	return status
}

// StatusFrame returns the encoded status message.
func (d *Device) StatusFrame() []byte {
	return d.StatusMessage().Encode()
}

// SpoolFrames returns the bytes sent in answer to spool-all.
func (d *Device) SpoolFrames() []byte {
	if d.replay != nil {
		return d.replay
	}
	return mtr.EncodeMessages(d.Generate()...)
}

// Generate returns cfg.Messages readouts on random courses with random card ids.
// Readouts are two minutes apart, the last one at the current time, and are
// numbered from package 1.
func (d *Device) Generate() []mtr.Message {
	now := d.now().Truncate(time.Second)
	n := d.cfg.Messages
	msgs := make([]mtr.Message, 0, n)
	for i := 1; i <= n; i++ {
		course := d.cfg.Courses[d.rng.Intn(len(d.cfg.Courses))]
		msgs = append(msgs, &mtr.DataMessage{
			MTRID:         d.mtrID,
			Timestamp:     mtr.TimestampFromTime(now.Add(-time.Duration(n-i) * 2 * time.Minute)),
			PackageNumber: uint32(i),
			CardID:        uint32(d.rng.Intn(mtr.MaxCardID) + 1),
			Splits:        mtr.NewSplits(d.splits(course)...),
		})
	}
	return msgs
}

// splits visits each control in course with a random gap of MinGap..MaxGap
// seconds, starting at zero.
func (d *Device) splits(course Course) []mtr.Split {
	out := make([]mtr.Split, len(course.Controls))
	elapsed := 0
	for i, code := range course.Controls {
		if i > 0 {
			elapsed += d.cfg.MinGap + d.rng.Intn(d.cfg.MaxGap-d.cfg.MinGap+1)
		}
		out[i] = mtr.Split{Code: code, Seconds: uint16(elapsed)}
	}
	return out
}
