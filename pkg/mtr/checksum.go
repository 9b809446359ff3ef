// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

// Checksum computes the MTR frame checksum: the sum of all bytes modulo 256.
// It is taken over every byte from the preamble up to, not including, the checksum byte.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// VerifyChecksum reports whether the byte at checksumOffset equals the checksum of
// everything before it. The frame must be longer than checksumOffset.
func VerifyChecksum(frame []byte, checksumOffset int) (stored, calculated byte, ok bool) {
	stored = frame[checksumOffset]
	calculated = Checksum(frame[:checksumOffset])
	return stored, calculated, stored == calculated
}
