// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Thermoquad/emitor/internal/config"
	"github.com/Thermoquad/emitor/internal/logging"
)

var (
	cfgFile string

	// Loaded in PersistentPreRunE, before any command runs
	cfg    *config.Config
	logger *zap.Logger
)

// flagKeys maps configuration keys to the flags that override them. Flags that
// a command does not define are skipped.
var flagKeys = map[string]string{
	"serial.port":           "port",
	"serial.baud":           "baud",
	"serial.readTimeout":    "read-timeout",
	"websocket.url":         "url",
	"websocket.username":    "username",
	"websocket.noSSLVerify": "no-ssl-verify",
	"poll.timeout":          "poll-timeout",
	"poll.retryWait":        "retry-wait",
	"output.file":           "output",
	"output.archive":        "archive",
	"upload.url":            "upload-url",
	"upload.timeout":        "upload-timeout",
	"metrics.textfile":      "metrics-textfile",
	"logging.level":         "log-level",
	"logging.format":        "log-format",
	"logging.file.filename": "log-file",
}

var rootCmd = &cobra.Command{
	Use:   "emitor",
	Short: "MTR readout extractor",
	Long: `Emitor - A CLI tool for reading e-card readouts from an MTR timing device.

Talks to the MTR over its serial protocol, decodes status and data messages,
and writes them as an "MTR log file" for timing software such as tTime.

Connection modes:
  Serial:    --port /dev/ttyMTR [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

Settings are read from emitor.yaml (or --config), EMITOR_* environment
variables and flags, in increasing priority. For WebSocket authentication the
password is read from the EMITOR_WS_PASSWORD environment variable, or prompted
interactively if not set.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flags := make(map[string]*pflag.Flag, len(flagKeys))
		for key, name := range flagKeys {
			flags[key] = cmd.Flags().Lookup(name)
		}

		var err error
		cfg, err = config.Load(cfgFile, flags)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		logger.Debug("configuration loaded", zap.Any("config", cfg))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default emitor.yaml in . or /etc/emitor)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringP("port", "p", "/dev/ttyMTR", "Serial port device")
	rootCmd.PersistentFlags().IntP("baud", "b", 9600, "Baud rate (serial only)")
	rootCmd.PersistentFlags().Duration("read-timeout", 3*time.Second, "Idle time that ends a receive")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().String("username", "admin", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")
	rootCmd.PersistentFlags().String("log-file", "", "Also log to this rotating file")
}

// exitError carries a process exit status through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode returns the process exit status for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return 1
}

// PrintError writes err the way cobra would have.
func PrintError(err error) {
	fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
}
