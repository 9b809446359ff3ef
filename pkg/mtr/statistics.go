// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks frame and drop counters across receives. It is safe for
// concurrent use so a UI can read it while a Reader records into it.
type Statistics struct {
	mu sync.Mutex
	s  StatisticsSnapshot
}

// StatisticsSnapshot is a point-in-time copy of the counters.
type StatisticsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	Receives         uint64
	TotalFrames      uint64
	ValidMessages    uint64
	StatusMessages   uint64
	DataMessages     uint64
	PartialFrames    uint64
	UnknownTypes     uint64
	ChecksumErrors   uint64
	LengthMismatches uint64
	OtherErrors      uint64
	SkippedBytes     uint64
}

// Dropped returns the number of frames discarded for any reason.
func (s StatisticsSnapshot) Dropped() uint64 {
	return s.PartialFrames + s.UnknownTypes + s.ChecksumErrors + s.LengthMismatches + s.OtherErrors
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{s: StatisticsSnapshot{StartTime: now, LastUpdateTime: now}}
}

// Snapshot returns a copy of the current counters.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}

func (s *Statistics) recordReceive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s.Receives++
}

func (s *Statistics) recordSkipped(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s.SkippedBytes += uint64(n)
}

func (s *Statistics) recordMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s.TotalFrames++
	s.s.ValidMessages++
	switch m.(type) {
	case *StatusMessage:
		s.s.StatusMessages++
	case *DataMessage:
		s.s.DataMessages++
	}
	s.s.LastUpdateTime = time.Now()
}

func (s *Statistics) recordDrop(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s.TotalFrames++
	switch {
	case errors.Is(reason, ErrPartialFrame):
		s.s.PartialFrames++
	case errors.Is(reason, ErrUnknownType):
		s.s.UnknownTypes++
	case errors.Is(reason, ErrChecksumMismatch):
		s.s.ChecksumErrors++
	case errors.Is(reason, ErrLengthMismatch):
		s.s.LengthMismatches++
	default:
		s.s.OtherErrors++
	}
	s.s.LastUpdateTime = time.Now()
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var validPercent float64
	if snap.TotalFrames > 0 {
		validPercent = float64(snap.ValidMessages) * 100.0 / float64(snap.TotalFrames)
	}
	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Receives:        %8d\n", snap.Receives)
	result += fmt.Sprintf("Total Frames:    %8d\n", snap.TotalFrames)
	result += fmt.Sprintf("Valid Messages:  %8d (%.1f%%)\n", snap.ValidMessages, validPercent)
	result += fmt.Sprintf("  Status:           %5d\n", snap.StatusMessages)
	result += fmt.Sprintf("  Data:             %5d\n", snap.DataMessages)

	if snap.Dropped() > 0 {
		result += fmt.Sprintf("Dropped Frames:  %8d\n", snap.Dropped())
		if snap.PartialFrames > 0 {
			result += fmt.Sprintf("  Partial:          %5d\n", snap.PartialFrames)
		}
		if snap.UnknownTypes > 0 {
			result += fmt.Sprintf("  Unknown Type:     %5d\n", snap.UnknownTypes)
		}
		if snap.ChecksumErrors > 0 {
			result += fmt.Sprintf("  Checksum:         %5d\n", snap.ChecksumErrors)
		}
		if snap.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", snap.LengthMismatches)
		}
		if snap.OtherErrors > 0 {
			result += fmt.Sprintf("  Other:            %5d\n", snap.OtherErrors)
		}
	}

	result += fmt.Sprintf("Skipped Bytes:   %8d\n", snap.SkippedBytes)
	result += "================================\n"
	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.s = StatisticsSnapshot{StartTime: now, LastUpdateTime: now}
}
