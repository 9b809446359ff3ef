// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package archive keeps the raw frames of each extraction as a CBOR sequence,
// so a log file can be regenerated or audited later.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/Thermoquad/emitor/pkg/mtr"
)

// Entry is one archived message. Frame holds the complete wire frame.
type Entry struct {
	RunID       string `cbor:"1,keyasint"`
	ExtractedAt int64  `cbor:"2,keyasint"` // unix milliseconds
	MTRID       uint16 `cbor:"3,keyasint"`
	Type        uint8  `cbor:"4,keyasint"`
	Frame       []byte `cbor:"5,keyasint"`
}

// Message decodes the archived frame.
func (e Entry) Message() (mtr.Message, error) {
	return mtr.DecodeFrame(e.Frame)
}

// Time returns the extraction time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.ExtractedAt)
}

// Writer appends entries for one extraction run.
type Writer struct {
	enc   *cbor.Encoder
	runID uuid.UUID
	count int
}

// NewWriter creates a Writer tagging every entry with runID.
func NewWriter(w io.Writer, runID uuid.UUID) *Writer {
	return &Writer{enc: cbor.NewEncoder(w), runID: runID}
}

// Write archives msg as extracted at extractedAt.
func (w *Writer) Write(msg mtr.Message, extractedAt time.Time) error {
	entry := Entry{
		RunID:       w.runID.String(),
		ExtractedAt: extractedAt.UnixMilli(),
		MTRID:       msg.DeviceID(),
		Type:        msg.Type(),
		Frame:       msg.Encode(),
	}
	if err := w.enc.Encode(entry); err != nil {
		return fmt.Errorf("encode archive entry %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// Count returns the number of entries written.
func (w *Writer) Count() int {
	return w.count
}

// AppendFile appends msgs to the archive file at path, creating it if needed.
func AppendFile(path string, runID uuid.UUID, msgs []mtr.Message, extractedAt time.Time) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	w := NewWriter(f, runID)
	for _, msg := range msgs {
		if err := w.Write(msg, extractedAt); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// ReadAll decodes every entry in r.
func ReadAll(r io.Reader) ([]Entry, error) {
	dec := cbor.NewDecoder(r)
	var entries []Entry
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return entries, fmt.Errorf("decode archive entry %d: %w", len(entries), err)
		}
		entries = append(entries, e)
	}
}

// ReadFile decodes every entry in the archive file at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	return ReadAll(f)
}

// Runs groups entries by run id. Entries keep their archive order within a run.
func Runs(entries []Entry) map[string][]Entry {
	runs := make(map[string][]Entry)
	for _, e := range entries {
		runs[e.RunID] = append(runs[e.RunID], e)
	}
	return runs
}
