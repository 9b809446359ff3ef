// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/emitor/internal/archive"
	"github.com/Thermoquad/emitor/internal/metrics"
	"github.com/Thermoquad/emitor/internal/poll"
	"github.com/Thermoquad/emitor/internal/upload"
	"github.com/Thermoquad/emitor/pkg/mtr"
	"github.com/Thermoquad/emitor/pkg/mtrlog"
)

// ExitUnresponsive is the exit status when no MTR answers before the polling timeout.
const ExitUnresponsive = 100

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Spool all readouts from the MTR into a log file",
	Long: `Wait for a live MTR, spool every stored readout and write them as an MTR log file.

The MTR is polled with the status command ('/ST'), reopening the connection on
every attempt, until it answers with a status message. Polling runs forever
unless --poll-timeout is set; on timeout the command exits with status 100.

Once the MTR answers, the spool-all command ('/SA') is sent and every data
message received until the line goes idle becomes one line of the log file.
A {} in the output file name is replaced with the extraction time.

Optionally the raw frames are appended to a CBOR archive, the log file is
uploaded with an HTTP POST form upload, and run metrics are written to a
Prometheus textfile.`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().Duration("poll-timeout", 0, "Give up polling for status after this long (0 polls forever)")
	extractCmd.Flags().Duration("retry-wait", 5*time.Second, "Wait between status polling attempts")
	extractCmd.Flags().StringP("output", "f", "mtr-{}.log", "Output log file name, {} is replaced with a timestamp")
	extractCmd.Flags().String("archive", "", "Append raw frames to this CBOR archive")
	extractCmd.Flags().StringP("upload-url", "d", "", "Upload the log file to this URL (HTTP POST form upload)")
	extractCmd.Flags().Duration("upload-timeout", 30*time.Second, "HTTP upload timeout")
	extractCmd.Flags().String("metrics-textfile", "", "Write run metrics to this Prometheus textfile")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.New()
	log := logger.With(zap.String("run_id", runID.String()))
	stats := mtr.NewStatistics()
	runMetrics := metrics.New(stats)
	start := time.Now()

	cards, err := extract(ctx, log, runID, stats, runMetrics)

	runMetrics.RecordRun(err == nil, cards, time.Since(start), time.Now())
	if cfg.Metrics.Textfile != "" {
		if werr := runMetrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			log.Error("failed to write metrics textfile", zap.String("file", cfg.Metrics.Textfile), zap.Error(werr))
		}
	}

	if errors.Is(err, poll.ErrUnresponsive) {
		log.Info("serial port is unresponsive, exiting", zap.Int("status", ExitUnresponsive))
		return &exitError{code: ExitUnresponsive, err: err}
	}
	return err
}

// extract runs one extraction and returns the number of readouts written.
func extract(ctx context.Context, log *zap.Logger, runID uuid.UUID, stats *mtr.Statistics, runMetrics *metrics.Metrics) (int, error) {
	poller := poll.New(openPollConnection, cfg.Poll, log, mtr.WithStatistics(stats))
	conn, status, err := poller.WaitForStatus(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	runMetrics.MTRInfo.WithLabelValues(strconv.Itoa(int(status.MTRID))).Set(1)
	if status.BatteryLow() {
		log.Warn("MTR battery is low", zap.Uint16("mtr_id", status.MTRID))
	}

	reader := mtr.NewReader(conn, mtr.WithLogger(log), mtr.WithStatistics(stats))
	if err := reader.SendSpoolAllCommand(); err != nil {
		return 0, err
	}
	log.Info("sent spool all command", zap.Uint32("stored_packages", status.StoredPackages()))

	msgs, receiveErr := reader.Receive()
	if receiveErr != nil {
		// Keep what arrived before the failure.
		log.Error("receive ended early", zap.Int("messages", len(msgs)), zap.Error(receiveErr))
	}
	extractedAt := time.Now()

	for _, msg := range msgs {
		for _, anomaly := range mtr.ValidateMessage(msg) {
			log.Warn("message anomaly",
				zap.Stringer("type", anomaly.Type),
				zap.String("detail", anomaly.Message))
		}
	}

	lines := mtrlog.NewFormatter(log).FormatAll(msgs, extractedAt)
	name, err := mtrlog.WriteFile(cfg.Output.File, lines, extractedAt)
	if err != nil {
		return 0, err
	}
	log.Info("wrote log file", zap.String("file", name), zap.Int("readouts", len(lines)))

	if cfg.Output.Archive != "" {
		if err := archive.AppendFile(cfg.Output.Archive, runID, msgs, extractedAt); err != nil {
			log.Error("failed to archive frames", zap.String("file", cfg.Output.Archive), zap.Error(err))
		}
	}

	if cfg.Upload.URL != "" {
		client := upload.NewClient(cfg.Upload.URL, cfg.Upload.Timeout, log)
		if err := client.UploadFile(ctx, name); err != nil {
			log.Error("error when uploading log file", zap.Error(err))
		}
	}

	fmt.Fprintln(os.Stdout, name)
	if receiveErr != nil {
		return len(lines), fmt.Errorf("receive: %w", receiveErr)
	}
	return len(lines), nil
}
