// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mtr implements the serial protocol spoken by the EMIT MTR timing device.
//
// The device sends preamble-delimited frames carrying either a status message or a
// data message with up to 50 split records. This package locates frames in a raw
// byte stream, validates their byte-sum checksum, and decodes them into typed
// messages. It also encodes messages, which the mock device and the tests rely on.
//
// Wire layout is documented at http://ttime.no/rs232.pdf
package mtr

// Framing
const (
	PreambleByte = 0xFF
	PreambleSize = 4
)

// Preamble marks the start of every frame. Four 0xFF bytes never occur inside a frame.
var Preamble = [PreambleSize]byte{PreambleByte, PreambleByte, PreambleByte, PreambleByte}

// Message types
const (
	MsgStatus = 'S' // 0x53
	MsgData   = 'M' // 0x4D
)

// Size byte values (frame length excluding the preamble)
const (
	StatusSize = 55
	DataSize   = 230
)

// Total frame lengths including the preamble
const (
	StatusFrameSize = PreambleSize + StatusSize // 59
	DataFrameSize   = PreambleSize + DataSize   // 234
)

// Offsets shared by both message types
const (
	offsetSize        = 4
	offsetType        = 5
	offsetMTRID       = 6
	offsetTimestamp   = 8
	offsetMillisecond = 14
	headerSize        = 6 // preamble + size + type
)

// Status message offsets
const (
	offsetBattery        = 16
	offsetRecentPackage  = 17
	offsetOldestPackage  = 21
	offsetCurrentSession = 25
	offsetPrevSessions   = 29
	statusChecksumOffset = 57
	statusFillerOffset   = 58

	PreviousSessionCount = 7
)

// Data message offsets
const (
	offsetPackageNumber = 16
	offsetCardID        = 20
	offsetProductWeek   = 23
	offsetProductYear   = 24
	offsetHeadChecksum  = 25
	offsetSplits        = 26
	offsetASCII         = 176
	dataChecksumOffset  = 232
	dataFillerOffset    = 233

	SplitCount  = 50
	SplitSize   = 3
	ASCIISize   = 56
	MaxCardID   = 1<<24 - 1
	yearOffset  = 2000
	asciiFiller = ' '
)

// Command codes (controller → MTR), three ASCII bytes, no terminator
const (
	CommandStatus   = "/ST"
	CommandSpoolAll = "/SA"
	CommandSize     = 3
)
