// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/emitor/pkg/mtr"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *mtr.Statistics
	snapshot      mtr.StatisticsSnapshot
	eventLog      []eventLogEntry
	maxLogEntries int
	readouts      table.Model
	maxReadouts   int
	lastStatus    *mtr.StatusMessage
	anomalies     uint64
	readErr       error
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time

// formatUptime formats a duration to a human-friendly string
func formatUptime(d time.Duration) string {
	total := uint64(d / time.Second)

	seconds := total % 60
	minutes := (total / 60) % 60
	hours := (total / 3600) % 24
	days := total / 86400

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// formatElapsed renders split seconds as M:SS or H:MM:SS
func formatElapsed(seconds uint16) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// readoutRow converts a data message to a row of the readout table.
func readoutRow(msg *mtr.DataMessage) table.Row {
	recorded := msg.Splits.Recorded()
	elapsed := "-"
	if len(recorded) > 0 {
		elapsed = formatElapsed(recorded[len(recorded)-1].Seconds)
	}
	return table.Row{
		mtr.FormatTimestamp(msg.Timestamp),
		fmt.Sprintf("%d", msg.MTRID),
		fmt.Sprintf("%d", msg.PackageNumber),
		fmt.Sprintf("%06d", msg.CardID),
		fmt.Sprintf("%d", len(recorded)),
		elapsed,
	}
}

func initialModel(connInfo string, statsInterval int, showAll bool, stats *mtr.Statistics) model {
	readouts := table.New(
		table.WithColumns([]table.Column{
			{Title: "Read", Width: 21},
			{Title: "MTR", Width: 6},
			{Title: "Package", Width: 8},
			{Title: "Card", Width: 8},
			{Title: "Splits", Width: 6},
			{Title: "Elapsed", Width: 9},
		}),
		table.WithHeight(8),
		table.WithFocused(false),
	)

	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         stats,
		snapshot:      stats.Snapshot(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		readouts:      readouts,
		maxReadouts:   50,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.snapshot = m.stats.Snapshot()
		return m, tickCmd()

	case readErrMsg:
		m.readErr = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("READ ERROR: %v", msg.err), true)
		}

	case monitorEvent:
		m.snapshot = m.stats.Snapshot()
		m.handleEvent(msg)
	}

	return m, nil
}

func (m *model) handleEvent(e monitorEvent) {
	if e.drop != nil {
		m.addLogEntry(fmt.Sprintf("DROPPED %s: %v", mtr.DropReason(e.drop), e.drop), true)
		return
	}

	msgType := mtr.FormatMessageType(e.msg.Type())
	switch msg := e.msg.(type) {
	case *mtr.StatusMessage:
		m.lastStatus = msg
	case *mtr.DataMessage:
		rows := append(m.readouts.Rows(), readoutRow(msg))
		if len(rows) > m.maxReadouts {
			rows = rows[len(rows)-m.maxReadouts:]
		}
		m.readouts.SetRows(rows)
		m.readouts.GotoBottom()
	}

	if len(e.anomalies) > 0 {
		m.anomalies++
		for _, anomaly := range e.anomalies {
			m.addLogEntry(fmt.Sprintf("%s from MTR %d: %s", msgType, e.msg.DeviceID(), anomaly.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("%s from MTR %d (valid)", msgType, e.msg.DeviceID()), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("EMITOR - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit",
		m.connInfo, func() string {
			if m.showAll {
				return "All messages"
			}
			return "Problems only"
		}())))
	s.WriteString("\n\n")

	// Device status
	if m.lastStatus == nil {
		s.WriteString(warningStyle.Render("⏳ Waiting for status..."))
	} else {
		s.WriteString(statsValueStyle.Render(fmt.Sprintf("✓ MTR %d", m.lastStatus.MTRID)))
		if m.lastStatus.BatteryLow() {
			s.WriteString(" " + errorStyle.Render("battery low"))
		}
		s.WriteString(headerStyle.Render(fmt.Sprintf(" (%d packages stored)", m.lastStatus.StoredPackages())))
	}
	s.WriteString("\n\n")

	// Statistics
	snap := m.snapshot
	var validPercent, dropPercent float64
	if snap.TotalFrames > 0 {
		validPercent = float64(snap.ValidMessages) * 100.0 / float64(snap.TotalFrames)
		dropPercent = float64(snap.Dropped()) * 100.0 / float64(snap.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.ValidMessages, validPercent)),
		statsLabelStyle.Render("Dropped:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.Dropped(), dropPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Status:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.StatusMessages)),
		statsLabelStyle.Render("Data:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.DataMessages)),
		statsLabelStyle.Render("Skipped bytes:"), headerStyle.Render(fmt.Sprintf("%d", snap.SkippedBytes)),
	))

	if snap.Dropped() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %d, %s %d, %s %d, %s %d\n",
			headerStyle.Render("partial"), snap.PartialFrames,
			headerStyle.Render("unknown type"), snap.UnknownTypes,
			headerStyle.Render("checksum"), snap.ChecksumErrors,
			headerStyle.Render("length"), snap.LengthMismatches,
		))
	}

	if m.anomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", m.anomalies)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s",
		statsLabelStyle.Render("Running:"), statsValueStyle.Render(formatUptime(time.Since(snap.StartTime))),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Readouts
	s.WriteString(statsLabelStyle.Render("Readouts:"))
	s.WriteString("\n")
	if len(m.readouts.Rows()) == 0 {
		s.WriteString(boxStyle.Render(headerStyle.Render("(no readouts yet)")))
	} else {
		s.WriteString(boxStyle.Render(m.readouts.View()))
	}
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 28 // Reserve space for header, stats and readouts
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
