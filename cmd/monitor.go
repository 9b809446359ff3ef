// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/emitor/pkg/mtr"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	monitorSpool  bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch readouts, dropped frames and anomalies",
	Long: `Track received readouts, dropped frames and anomalous values with statistics.

This command validates each message and detects:
  - Dropped frames (partial frames, unknown types, length and checksum mismatches)
  - Anomalous values (low battery, impossible timestamps, non-zero filler,
    decreasing split times, padding between splits, non-printable ASCII)
  - Statistics (messages, drops, skipped noise bytes)

By default, only problems are displayed. Use --show-all to display valid
messages too.

Problems are shown as they happen, with periodic statistics summaries in
text mode.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all messages (not just problems)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().BoolVar(&monitorSpool, "spool", false, "Send the spool-all command before listening")
}

// monitorEvent is one receive result, a message or a dropped frame.
type monitorEvent struct {
	at        time.Time
	msg       mtr.Message
	anomalies []mtr.ValidationError
	drop      error
}

// receiveEvents runs receives on reader until ctx is done or the transport
// fails, calling emit for every message. Drops reach emit through the reader's
// drop hook.
func receiveEvents(ctx context.Context, reader *mtr.Reader, emit func(monitorEvent)) error {
	for ctx.Err() == nil {
		msgs, err := reader.Receive()
		for _, msg := range msgs {
			emit(monitorEvent{at: time.Now(), msg: msg, anomalies: mtr.ValidateMessage(msg)})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(ctx, conn, connInfo)
	}
	return runTextMode(ctx, conn, connInfo)
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(ctx context.Context, conn Connection, connInfo string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := mtr.NewStatistics()
	m := initialModel(connInfo, statsInterval, showAll, stats)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	// The TUI owns the terminal, so the reader does not log
	reader := mtr.NewReader(conn,
		mtr.WithStatistics(stats),
		mtr.WithDropHook(func(reason error) {
			p.Send(monitorEvent{at: time.Now(), drop: reason})
		}))

	go func() {
		if monitorSpool {
			if err := reader.SendSpoolAllCommand(); err != nil {
				p.Send(readErrMsg{err: err})
				return
			}
		}
		if err := receiveEvents(ctx, reader, func(e monitorEvent) { p.Send(e) }); err != nil {
			p.Send(readErrMsg{err: err})
		}
	}()

	// Run TUI
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode(ctx context.Context, conn Connection, connInfo string) error {
	fmt.Printf("Emitor - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All messages\n")
	} else {
		fmt.Printf("Mode: Problems only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	events := make(chan monitorEvent, 64)
	stats := mtr.NewStatistics()
	reader := mtr.NewReader(conn,
		mtr.WithLogger(logger),
		mtr.WithStatistics(stats),
		mtr.WithDropHook(func(reason error) {
			events <- monitorEvent{at: time.Now(), drop: reason}
		}))

	if monitorSpool {
		if err := reader.SendSpoolAllCommand(); err != nil {
			return err
		}
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- receiveEvents(ctx, reader, func(e monitorEvent) { events <- e })
	}()

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case e := <-events:
			printEvent(e)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-readErr:
			// Drain events queued before the reader stopped
			for len(events) > 0 {
				printEvent(<-events)
			}
			fmt.Println()
			fmt.Print(stats.String())
			if err != nil && !errors.Is(err, ErrConnectionClosed) {
				return err
			}
			logger.Info("monitor stopped")
			return nil
		}
	}
}

func printEvent(e monitorEvent) {
	timestamp := e.at.Format("15:04:05.000")
	switch {
	case e.drop != nil:
		fmt.Printf("[%s] \033[1;31mDROPPED FRAME:\033[0m %s\n", timestamp, mtr.DropReason(e.drop))
		fmt.Printf("  %v\n\n", e.drop)

	case len(e.anomalies) > 0:
		fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s from MTR %d\n",
			timestamp, mtr.FormatMessageType(e.msg.Type()), e.msg.DeviceID())
		for i, anomaly := range e.anomalies {
			fmt.Printf("  Issue %d: %s\n", i+1, anomaly.Message)
		}
		fmt.Println()

	case showAll:
		fmt.Print(mtr.FormatMessage(e.msg))
	}
}

// readErrMsg reports that the receive goroutine stopped.
type readErrMsg struct {
	err error
}
