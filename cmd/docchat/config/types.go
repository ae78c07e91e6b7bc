// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"

	"github.com/AleutianAI/docchat/pkg/backend"
	"github.com/AleutianAI/docchat/pkg/chat"
)

// CurrentConfigVersion is written into newly created config files.
const CurrentConfigVersion = "1"

// DocChatConfig is the CLI configuration file.
type DocChatConfig struct {
	// Version of the file layout.
	Version string `yaml:"version"`

	// Server: where the document chat backend listens
	Server ServerConfig `yaml:"server"`

	// Chat: question gating and indicator text
	Chat ChatConfig `yaml:"chat"`

	// UI: terminal output
	UI UIConfig `yaml:"ui"`

	Logging   LoggingConfig   `yaml:"logging"`
	History   HistoryConfig   `yaml:"history"`
	Watch     WatchConfig     `yaml:"watch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	BaseURL       string        `yaml:"base_url" validate:"required,url"` // e.g. http://localhost:5000
	UploadTimeout time.Duration `yaml:"upload_timeout" validate:"gt=0"`
	DialTimeout   time.Duration `yaml:"dial_timeout" validate:"gt=0"`
}

type ChatConfig struct {
	// RequireUpload keeps questions locked until a document is accepted.
	RequireUpload  bool   `yaml:"require_upload"`
	IndicatorLabel string `yaml:"indicator_label" validate:"required,max=40"`
}

type UIConfig struct {
	// Output is auto, interactive, plain, or machine.
	Output    string `yaml:"output" validate:"oneof=auto interactive plain machine"`
	AltScreen bool   `yaml:"alt_screen"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"` // "" disables the log file
	JSON  bool   `yaml:"json"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
}

type WatchConfig struct {
	// Dir is the drop folder watched by "docchat chat". "" disables it.
	Dir    string        `yaml:"dir"`
	Settle time.Duration `yaml:"settle" validate:"gte=0"`
}

type TelemetryConfig struct {
	// MetricsAddr serves /metrics when set, e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	TraceStdout bool   `yaml:"trace_stdout"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() DocChatConfig {
	return DocChatConfig{
		Version: CurrentConfigVersion,
		Server: ServerConfig{
			BaseURL:       "http://localhost:5000",
			UploadTimeout: backend.DefaultUploadTimeout,
			DialTimeout:   backend.DefaultDialTimeout,
		},
		Chat: ChatConfig{
			RequireUpload:  true,
			IndicatorLabel: chat.DefaultIndicatorLabel,
		},
		UI: UIConfig{
			Output: "auto",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.docchat/logs",
		},
		History: HistoryConfig{
			Enabled: true,
			Dir:     "~/.docchat/history",
		},
		Watch: WatchConfig{
			Settle: 500 * time.Millisecond,
		},
	}
}
