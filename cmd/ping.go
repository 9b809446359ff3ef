// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/emitor/pkg/mtr"
)

// Exit codes of the ping command.
const (
	ExitPingLoss       = 1
	ExitPingConnection = 2
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the link by requesting status repeatedly",
	Long: `Send the status command and wait for a status message, several times.

Each reply is reported with the MTR serial number and the round-trip time.
A reply counts only when exactly one status message arrives before the line
goes idle (see --read-timeout).

This is useful for verifying:
  - The serial port or WebSocket bridge is reachable
  - HTTP Basic authentication works (WebSocket)
  - The MTR is powered on and answering

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between pings")
}

// pingOnce sends one status command and returns the single status reply.
func pingOnce(reader *mtr.Reader) (*mtr.StatusMessage, error) {
	if err := reader.SendStatusCommand(); err != nil {
		return nil, fmt.Errorf("send failed: %w", err)
	}
	msgs, err := reader.Receive()
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	statuses := mtr.StatusMessages(msgs)
	if len(statuses) != 1 || len(msgs) != 1 {
		return nil, fmt.Errorf("expected one status message, got %d messages", len(msgs))
	}
	return statuses[0], nil
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount <= 0 {
		return errors.New("count must be positive")
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return &exitError{code: ExitPingConnection, err: err}
	}
	defer conn.Close()

	fmt.Printf("Emitor - Status Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	reader := mtr.NewReader(conn, mtr.WithLogger(logger))
	successCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		status, err := pingOnce(reader)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
		} else {
			battery := "ok"
			if status.BatteryLow() {
				battery = "low"
			}
			fmt.Printf("status from MTR %d, battery=%s, rtt=%v\n",
				status.MTRID, battery, time.Since(startTime).Round(time.Millisecond))
			successCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	// Summary
	failCount := pingCount - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		return &exitError{code: ExitPingLoss, err: fmt.Errorf("%d of %d pings failed", failCount, pingCount)}
	}
	return nil
}
