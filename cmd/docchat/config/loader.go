// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the docchat CLI configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file, a .env file
// in the working directory, DOCCHAT_* environment variables, then command
// line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/docchat/pkg/ux"
)

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL       = "DOCCHAT_BASE_URL"
	EnvLogLevel      = "DOCCHAT_LOG_LEVEL"
	EnvOutput        = ux.ModeEnvVar
	EnvRequireUpload = "DOCCHAT_REQUIRE_UPLOAD"
	EnvHistoryDir    = "DOCCHAT_HISTORY_DIR"
	EnvWatchDir      = "DOCCHAT_WATCH_DIR"
	EnvMetricsAddr   = "DOCCHAT_METRICS_ADDR"
	EnvUploadTimeout = "DOCCHAT_UPLOAD_TIMEOUT"
	EnvDialTimeout   = "DOCCHAT_DIAL_TIMEOUT"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultPath returns ~/.docchat/docchat.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".docchat", "docchat.yaml"), nil
}

// Loaded is the result of Load.
type Loaded struct {
	Config DocChatConfig
	Path   string

	// Created is true when the file did not exist and defaults were written.
	Created bool
}

// Load reads the config file at path, creating it with defaults when it
// does not exist, then applies the environment and validates the result.
//
// An empty path means DefaultPath.
func Load(path string) (Loaded, error) {
	var out Loaded
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return out, err
		}
		path = p
	}
	out.Path = path

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return out, err
		}
		out.Created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return out, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return out, err
	}
	if err := cfg.Validate(); err != nil {
		return out, err
	}
	out.Config = cfg
	return out, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from DOCCHAT_* variables found by lookup.
func ApplyEnv(cfg *DocChatConfig, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str(EnvBaseURL, &cfg.Server.BaseURL)
	str(EnvLogLevel, &cfg.Logging.Level)
	str(EnvOutput, &cfg.UI.Output)
	str(EnvHistoryDir, &cfg.History.Dir)
	str(EnvWatchDir, &cfg.Watch.Dir)
	str(EnvMetricsAddr, &cfg.Telemetry.MetricsAddr)

	if v, ok := lookup(EnvRequireUpload); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequireUpload, err)
		}
		cfg.Chat.RequireUpload = b
	}
	if err := dur(EnvUploadTimeout, &cfg.Server.UploadTimeout); err != nil {
		return err
	}
	return dur(EnvDialTimeout, &cfg.Server.DialTimeout)
}

// Validate checks field constraints.
func (c DocChatConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ExpandPath expands a leading "~/" to the home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
