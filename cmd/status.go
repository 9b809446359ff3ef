// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/emitor/internal/config"
	"github.com/Thermoquad/emitor/internal/poll"
	"github.com/Thermoquad/emitor/pkg/mtr"
)

var (
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Ask the MTR for its status",
	Long: `Send the status command ('/ST') and print the decoded status message.

The connection is retried until an MTR answers or the timeout passes.

Exit codes:
  0 - Status received before timeout
  1 - Timeout reached without a status message, or another error

Useful for checking the cable, the port and the MTR battery before a race.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Second, "Time to wait for a status message")
	statusCmd.Flags().Duration("retry-wait", 5*time.Second, "Wait between attempts")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Emitor - Status\n")
	fmt.Printf("Timeout: %s\n", statusTimeout)
	fmt.Printf("Waiting for status message...\n\n")

	stats := mtr.NewStatistics()
	pollCfg := config.PollConfig{Timeout: statusTimeout, RetryWait: cfg.Poll.RetryWait}
	conn, status, err := poll.New(openPollConnection, pollCfg, logger, mtr.WithStatistics(stats)).WaitForStatus(ctx)
	if err != nil {
		if errors.Is(err, poll.ErrUnresponsive) {
			fmt.Fprintf(os.Stderr, "TIMEOUT: No status message received within %s\n", statusTimeout)
		}
		return err
	}
	defer conn.Close()

	if skipped := stats.Snapshot().SkippedBytes; skipped > 0 {
		fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
	}
	fmt.Printf("SUCCESS: Received status message\n")
	fmt.Print(mtr.FormatMessage(status))

	for _, anomaly := range mtr.ValidateMessage(status) {
		fmt.Printf("  \033[1;33mWARNING:\033[0m %s\n", anomaly.Message)
	}
	return nil
}
