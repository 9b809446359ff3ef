// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/emitor/internal/metrics"
	"github.com/Thermoquad/emitor/pkg/mtr"
)

var (
	rawLogSpool       bool
	rawLogMetricsAddr string
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display received messages in human-readable format",
	Long: `Continuously decode and display MTR messages as they arrive.

Each message is shown with its device timestamp, type and decoded fields.
Frames that fail to decode are reported in the log output. With --spool the
spool-all command is sent first, so the stored readouts scroll by.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogSpool, "spool", false, "Send the spool-all command before listening")
	rawLogCmd.Flags().StringVar(&rawLogMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9273)")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Emitor - Raw Message Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := mtr.NewStatistics()
	if rawLogMetricsAddr != "" {
		srv := &http.Server{
			Addr:              rawLogMetricsAddr,
			Handler:           metrics.New(stats).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	reader := mtr.NewReader(conn, mtr.WithLogger(logger), mtr.WithStatistics(stats))
	if rawLogSpool {
		if err := reader.SendSpoolAllCommand(); err != nil {
			return err
		}
	}

	for ctx.Err() == nil {
		msgs, err := reader.Receive()
		for _, msg := range msgs {
			fmt.Print(mtr.FormatMessage(msg))
		}
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info("connection closed")
				break
			}
			return err
		}
	}

	fmt.Println()
	fmt.Print(stats.String())
	return nil
}
