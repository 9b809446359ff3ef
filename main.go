// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Emitor - EMIT MTR Log Extractor
//
// A CLI tool for polling EMIT MTR timing units over serial or WebSocket,
// extracting their stored e-card readouts and writing them as log lines.

package main

import (
	"os"

	"github.com/Thermoquad/emitor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.PrintError(err)
		os.Exit(cmd.ExitCode(err))
	}
}
