// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mtrlog writes MTR data messages in the "MTR log file" text format read
// by timing software such as tTime: one comma separated line per e-card readout.
package mtrlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/emitor/pkg/mtr"
	"go.uber.org/zap"
)

// LineTimeLayout is the layout of the two quoted date-time columns.
const LineTimeLayout = "02.01.06 15:04:05"

// Formatter converts data messages to log lines.
type Formatter struct {
	logger *zap.Logger
}

// NewFormatter creates a Formatter. A nil logger disables logging.
func NewFormatter(logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{logger: logger}
}

// Format returns the log line for msg. extractedAt is the wall clock time the
// messages were spooled from the device; its milliseconds are always written as 000.
//
// Columns: "M", "0", mtr id, card id, extraction time, read time, card id again,
// two zeroed product fields, 50 code/seconds pairs and the package number.
func (f *Formatter) Format(msg *mtr.DataMessage, extractedAt time.Time) string {
	var b strings.Builder
	b.Grow(600)

	fmt.Fprintf(&b, `"M","0","%d","%06d",`, msg.MTRID, msg.CardID)
	fmt.Fprintf(&b, `"%s.000",`, extractedAt.Format(LineTimeLayout))
	fmt.Fprintf(&b, `"%s",`, mtr.FormatTimestamp(msg.Timestamp))
	fmt.Fprintf(&b, "%06d,%04d,%04d,", msg.CardID, 0, 0)
	for _, split := range msg.Splits {
		fmt.Fprintf(&b, "%03d,%05d,", split.Code, split.Seconds)
	}
	fmt.Fprintf(&b, "%07d", msg.PackageNumber)

	line := b.String()
	f.logger.Debug("converted message to log line",
		zap.Uint16("mtr_id", msg.MTRID),
		zap.Uint32("package", msg.PackageNumber),
		zap.String("line", line))
	return line
}

// FormatAll formats every data message in msgs, in order. Status messages are skipped.
func (f *Formatter) FormatAll(msgs []mtr.Message, extractedAt time.Time) []string {
	data := mtr.DataMessages(msgs)
	lines := make([]string, 0, len(data))
	for _, msg := range data {
		lines = append(lines, f.Format(msg, extractedAt))
	}
	return lines
}
