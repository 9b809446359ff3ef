// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/emitor/pkg/mtr"
	"github.com/Thermoquad/emitor/pkg/mtrlog"
)

var recordOutput string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the raw spool-all response to a file",
	Long: `Send the spool-all command and capture every byte the MTR sends until the
line goes idle. The capture is written untouched, so it can be replayed with
"emitor mock --file".

The output pattern's {} is replaced with the current local time.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "f", "mtr-{}.bin", "Output file pattern")
}

// captureRaw reads from r until an idle read (no bytes, no error) or EOF.
// ErrConnectionClosed also ends the capture.
func captureRaw(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				return buf.Bytes(), nil
			}
			return buf.Bytes(), err
		}
		if n == 0 {
			return buf.Bytes(), nil
		}
	}
}

func runRecord(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("recording", zap.String("connection", connInfo))

	reader := mtr.NewReader(conn, mtr.WithLogger(logger))
	if err := reader.SendSpoolAllCommand(); err != nil {
		return err
	}

	data, err := captureRaw(conn)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	name := mtrlog.FileName(recordOutput, time.Now())
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	logger.Info("recording written", zap.String("file", name), zap.Int("bytes", len(data)))
	fmt.Println(name)
	return nil
}
