// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtrlog

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// FileTimeLayout replaces the placeholder in output file name patterns
// (ISO 8601 basic date and time).
const FileTimeLayout = "20060102T150405"

// Placeholder marks where the timestamp goes in a file name pattern.
const Placeholder = "{}"

// FileName expands every placeholder in pattern with now.
func FileName(pattern string, now time.Time) string {
	return strings.ReplaceAll(pattern, Placeholder, now.Format(FileTimeLayout))
}

// WriteFile writes lines, each newline terminated, to the file named by expanding
// pattern with now. An existing file is truncated. It returns the file name.
func WriteFile(pattern string, lines []string, now time.Time) (string, error) {
	name := FileName(pattern, now)

	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("create log file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			return "", fmt.Errorf("write log file %s: %w", name, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("write log file %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close log file %s: %w", name, err)
	}
	return name, nil
}
