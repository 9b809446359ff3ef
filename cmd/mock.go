// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/emitor/internal/mock"
)

var (
	mockConfigFile string
	mockMessages   int
	mockReplayFile string
	mockMTRID      uint16
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Emulate an MTR on the configured port",
	Long: `Answer the status and spool-all commands like an MTR would.

Readouts are generated from the courses in --mock-config (or the built-in
courses), or replayed verbatim from a file written by "emitor record".
Pair the port with another emitor instance through a null-modem cable or a
virtual serial pair.`,
	RunE: runMock,
}

func init() {
	rootCmd.AddCommand(mockCmd)
	mockCmd.Flags().StringVar(&mockConfigFile, "mock-config", "", "YAML file with the device id and courses")
	mockCmd.Flags().IntVarP(&mockMessages, "messages", "n", -1, "Number of readouts to generate (overrides the config file)")
	mockCmd.Flags().StringVar(&mockReplayFile, "file", "", "Replay a recording instead of generating readouts")
	mockCmd.Flags().Uint16Var(&mockMTRID, "mtr-id", 0, "Device serial number (0 picks a random one)")
}

// loadMockConfig builds the device configuration from the fixture file and flags.
func loadMockConfig(cmd *cobra.Command) (mock.Config, error) {
	mockCfg := mock.DefaultConfig()
	if mockConfigFile != "" {
		loaded, err := mock.LoadConfig(mockConfigFile)
		if err != nil {
			return mock.Config{}, err
		}
		mockCfg = loaded
	}
	if cmd.Flags().Changed("messages") {
		mockCfg.Messages = mockMessages
	}
	if cmd.Flags().Changed("mtr-id") {
		mockCfg.MTRID = mockMTRID
	}
	if err := mockCfg.Validate(); err != nil {
		return mock.Config{}, err
	}
	return mockCfg, nil
}

func runMock(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mockCfg, err := loadMockConfig(cmd)
	if err != nil {
		return err
	}

	opts := []mock.Option{mock.WithLogger(logger)}
	if mockReplayFile != "" {
		data, err := os.ReadFile(mockReplayFile)
		if err != nil {
			return fmt.Errorf("read replay file: %w", err)
		}
		opts = append(opts, mock.WithReplay(data))
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	device := mock.NewDevice(mockCfg, opts...)
	logger.Info("emulating MTR",
		zap.String("connection", connInfo),
		zap.Uint16("mtr_id", device.MTRID()),
		zap.Int("messages", mockCfg.Messages),
		zap.Bool("replay", mockReplayFile != ""))

	err = device.Serve(ctx, conn)
	switch {
	case err == nil, errors.Is(err, ErrConnectionClosed):
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		logger.Info("mock MTR stopped")
		return nil
	}
	return err
}
