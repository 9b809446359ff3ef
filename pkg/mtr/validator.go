// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import "fmt"

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyBatteryLow AnomalyType = iota
	AnomalyInvalidTimestamp
	AnomalyNonZeroFiller
	AnomalySplitOrder
	AnomalyInterleavedPadding
	AnomalyNonPrintableASCII
	AnomalyCardIDRange
)

var anomalyNames = [...]string{
	AnomalyBatteryLow:         "battery_low",
	AnomalyInvalidTimestamp:   "invalid_timestamp",
	AnomalyNonZeroFiller:      "non_zero_filler",
	AnomalySplitOrder:         "split_order",
	AnomalyInterleavedPadding: "interleaved_padding",
	AnomalyNonPrintableASCII:  "non_printable_ascii",
	AnomalyCardIDRange:        "card_id_range",
}

func (a AnomalyType) String() string {
	if a >= 0 && int(a) < len(anomalyNames) {
		return anomalyNames[a]
	}
	return fmt.Sprintf("anomaly(%d)", int(a))
}

// ValidationError represents a suspicious value in a message that decoded with a
// valid checksum. Validation never rejects a message.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage inspects a decoded message and reports anomalies.
// Returns a slice of validation errors (empty if nothing looks wrong)
func ValidateMessage(m Message) []ValidationError {
	errors := []ValidationError{}

	errors = append(errors, validateTimestamp(m.Time())...)

	switch msg := m.(type) {
	case *StatusMessage:
		if msg.BatteryLow() {
			errors = append(errors, ValidationError{
				Type:    AnomalyBatteryLow,
				Message: fmt.Sprintf("MTR %d reports low battery", msg.MTRID),
				Details: map[string]interface{}{"battery_status": msg.BatteryStatus},
			})
		}
		errors = append(errors, validateFiller(msg.Filler)...)

	case *DataMessage:
		errors = append(errors, validateFiller(msg.Filler)...)
		errors = append(errors, validateSplits(&msg.Splits)...)
		errors = append(errors, validateASCII(msg.ASCII)...)
		if msg.CardID > MaxCardID {
			errors = append(errors, ValidationError{
				Type:    AnomalyCardIDRange,
				Message: fmt.Sprintf("Card id %d does not fit in 24 bits", msg.CardID),
				Details: map[string]interface{}{"card_id": msg.CardID},
			})
		}
	}

	return errors
}

func validateTimestamp(ts Timestamp) []ValidationError {
	if ts.Month >= 1 && ts.Month <= 12 && ts.Day >= 1 && ts.Day <= 31 &&
		ts.Hour <= 23 && ts.Minute <= 59 && ts.Second <= 59 && ts.Millisecond <= 999 {
		return nil
	}
	return []ValidationError{{
		Type: AnomalyInvalidTimestamp,
		Message: fmt.Sprintf("Invalid timestamp %02d.%02d.%02d %02d:%02d:%02d.%03d",
			ts.Day, ts.Month, ts.Year, ts.Hour, ts.Minute, ts.Second, ts.Millisecond),
		Details: map[string]interface{}{"timestamp": ts},
	}}
}

// validateFiller flags a non-zero trailing byte. The decoder accepts such frames.
func validateFiller(filler uint8) []ValidationError {
	if filler == 0 {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyNonZeroFiller,
		Message: fmt.Sprintf("Filler byte is 0x%02X (expected 0x00)", filler),
		Details: map[string]interface{}{"filler": filler},
	}}
}

func validateSplits(splits *Splits) []ValidationError {
	errors := []ValidationError{}
	recorded := splits.Recorded()

	for i := 1; i < len(recorded); i++ {
		if recorded[i].IsPadding() {
			errors = append(errors, ValidationError{
				Type:    AnomalyInterleavedPadding,
				Message: fmt.Sprintf("Padding entry at split %d is followed by recorded splits", i),
				Details: map[string]interface{}{"index": i},
			})
			continue
		}
		prev := recorded[i-1]
		if !prev.IsPadding() && recorded[i].Seconds < prev.Seconds {
			errors = append(errors, ValidationError{
				Type: AnomalySplitOrder,
				Message: fmt.Sprintf("Split %d time %ds is before split %d time %ds",
					i, recorded[i].Seconds, i-1, prev.Seconds),
				Details: map[string]interface{}{"index": i, "seconds": recorded[i].Seconds, "previous": prev.Seconds},
			})
		}
	}

	return errors
}

func validateASCII(s string) []ValidationError {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != 0 && (c < 0x20 || c > 0x7E) {
			return []ValidationError{{
				Type:    AnomalyNonPrintableASCII,
				Message: fmt.Sprintf("ASCII field has byte 0x%02X at offset %d", c, i),
				Details: map[string]interface{}{"offset": i, "byte": c},
			}}
		}
	}
	return nil
}
