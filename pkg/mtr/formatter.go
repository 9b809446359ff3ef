// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtr

import (
	"fmt"
	"strings"
)

// FormatMessage formats a message into a human-readable string
func FormatMessage(m Message) string {
	ts := m.Time()
	result := fmt.Sprintf("[%s] %s (0x%02X) mtr=%d\n", FormatTimestamp(ts), FormatMessageType(m.Type()), m.Type(), m.DeviceID())

	switch msg := m.(type) {
	case *StatusMessage:
		result += formatStatus(msg)
	case *DataMessage:
		result += formatData(msg)
	}

	return result
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType byte) string {
	switch msgType {
	case MsgStatus:
		return "STATUS"
	case MsgData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// FormatTimestamp renders a device timestamp as DD.MM.YY HH:MM:SS.mmm
func FormatTimestamp(ts Timestamp) string {
	return fmt.Sprintf("%02d.%02d.%02d %02d:%02d:%02d.%03d",
		ts.Day, ts.Month, ts.Year, ts.Hour, ts.Minute, ts.Second, ts.Millisecond)
}

func formatStatus(m *StatusMessage) string {
	battery := "OK"
	if m.BatteryLow() {
		battery = "LOW"
	}
	result := fmt.Sprintf("  Battery: %s (%d)\n", battery, m.BatteryStatus)
	if m.RecentPackage == 0 {
		return result + "  Packages: none\n"
	}
	result += fmt.Sprintf("  Packages: %d..%d (%d stored)\n", m.OldestPackage, m.RecentPackage, m.StoredPackages())
	result += fmt.Sprintf("  Current session from: %d\n", m.CurrentSessionStart)
	return result
}

func formatData(m *DataMessage) string {
	result := fmt.Sprintf("  Package: %d, Card: %06d\n", m.PackageNumber, m.CardID)

	recorded := m.Splits.Recorded()
	if len(recorded) == 0 {
		result += "  Splits: none\n"
	} else {
		parts := make([]string, len(recorded))
		for i, s := range recorded {
			parts[i] = fmt.Sprintf("%d@%s", s.Code, formatElapsed(s.Seconds))
		}
		result += fmt.Sprintf("  Splits (%d): %s\n", len(recorded), strings.Join(parts, " "))
	}

	if ascii := m.TrimmedASCII(); ascii != "" {
		result += fmt.Sprintf("  ASCII: %q\n", ascii)
	}
	return result
}

// formatElapsed renders seconds as M:SS or H:MM:SS
func formatElapsed(seconds uint16) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
