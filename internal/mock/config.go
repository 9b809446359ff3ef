// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mock

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/emitor/pkg/mtr"
)

// Course is an ordered list of control codes. Generated readouts visit every
// control in order, starting at the first with zero elapsed seconds.
type Course struct {
	Name     string  `yaml:"name"`
	Controls []uint8 `yaml:"controls"`
}

// Config describes the emulated device and the readouts it generates.
type Config struct {
	MTRID    uint16   `yaml:"mtrId"`    // 0 picks a random id
	Messages int      `yaml:"messages"` // generated data messages per spool
	MinGap   int      `yaml:"minGap"`   // seconds between controls
	MaxGap   int      `yaml:"maxGap"`
	Courses  []Course `yaml:"courses"`
}

// DefaultConfig returns three orienteering courses sharing start and finish codes.
func DefaultConfig() Config {
	return Config{
		Messages: 100,
		MinGap:   60,
		MaxGap:   900,
		Courses: []Course{
			{Name: "A", Controls: []uint8{0, 31, 32, 33, 34, 35, 102, 103, 104, 249}},
			{Name: "B", Controls: []uint8{0, 31, 32, 33, 35, 103, 104, 249}},
			{Name: "C", Controls: []uint8{0, 65, 66, 67, 60, 61, 62, 249}},
		},
	}
}

// LoadConfig reads a YAML fixture. Fields absent from the file keep their
// DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read mock config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse mock config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("mock config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that readouts can be generated from the configuration.
func (c Config) Validate() error {
	if c.Messages < 0 {
		return fmt.Errorf("messages must not be negative, got %d", c.Messages)
	}
	if c.MinGap < 0 || c.MaxGap < c.MinGap {
		return fmt.Errorf("invalid gap range %d..%d", c.MinGap, c.MaxGap)
	}
	if c.MaxGap*(mtr.SplitCount-1) > math.MaxUint16 {
		return fmt.Errorf("maxGap %d overflows the split time field", c.MaxGap)
	}
	if c.Messages > 0 && len(c.Courses) == 0 {
		return errors.New("at least one course is required")
	}
	for _, course := range c.Courses {
		if len(course.Controls) == 0 {
			return fmt.Errorf("course %q has no controls", course.Name)
		}
		if len(course.Controls) > mtr.SplitCount {
			return fmt.Errorf("course %q has %d controls, at most %d fit a readout",
				course.Name, len(course.Controls), mtr.SplitCount)
		}
	}
	return nil
}
