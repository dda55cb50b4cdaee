// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package xdg resolves XDG Base Directory paths for acesso.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "acesso"

// ConfigFileName is the configuration file looked up in ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for acesso.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns ConfigDir()/config.yaml when that file exists,
// and "" otherwise.
func DefaultConfigFile() string {
	path := filepath.Join(ConfigDir(), ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
