// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads emitor settings from defaults, an optional YAML file,
// EMITOR_ environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, with "." in keys
// replaced by "_" (EMITOR_SERIAL_PORT overrides serial.port).
const EnvPrefix = "EMITOR"

// PasswordEnv holds the websocket bridge password. It is never read from a file.
const PasswordEnv = EnvPrefix + "_WS_PASSWORD"

type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type WebSocketConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"noSSLVerify"`
}

type PollConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"` // 0 polls forever
	RetryWait time.Duration `mapstructure:"retryWait"`
}

type OutputConfig struct {
	File    string `mapstructure:"file"`
	Archive string `mapstructure:"archive"`
}

type UploadConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Poll      PollConfig      `mapstructure:"poll"`
	Output    OutputConfig    `mapstructure:"output"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Load builds the configuration. path names a config file; when empty,
// emitor.yaml is looked up in the working directory and /etc/emitor and may be
// absent. flags maps config keys to command line flags; a flag overrides its key
// only when set on the command line.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/emitor")
		v.SetConfigName("emitor")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no command can work with.
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.readTimeout must be positive, got %s", c.Serial.ReadTimeout)
	}
	if c.Poll.Timeout < 0 {
		return fmt.Errorf("poll.timeout must not be negative, got %s", c.Poll.Timeout)
	}
	if c.Poll.RetryWait < 0 {
		return fmt.Errorf("poll.retryWait must not be negative, got %s", c.Poll.RetryWait)
	}
	if c.Output.File == "" {
		return errors.New("output.file must not be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "/dev/ttyMTR")
	v.SetDefault("serial.baud", 9600)
	v.SetDefault("serial.readTimeout", "3s")

	v.SetDefault("websocket.url", "")
	v.SetDefault("websocket.username", "admin")
	v.SetDefault("websocket.noSSLVerify", false)

	v.SetDefault("poll.timeout", "0s")
	v.SetDefault("poll.retryWait", "5s")

	v.SetDefault("output.file", "mtr-{}.log")
	v.SetDefault("output.archive", "")

	v.SetDefault("upload.url", "")
	v.SetDefault("upload.timeout", "30s")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)
}
