// SPDX-License-Identifier: Apache-2.0

// Package config reads and writes propane.toml, the connection spec
// `init` writes and every other command reads to find the target
// database (spec.md §6's external CLI surface, expanded per
// SPEC_FULL.md to name a concrete config format).
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileName is the config file's conventional name, resolved relative
// to the current working directory.
const FileName = "propane.toml"

// Connection is the on-disk connection spec: which backend to talk
// to, and the DSN to reach it with.
type Connection struct {
	Backend string `toml:"backend"`
	DSN     string `toml:"dsn"`

	// MigrationsDir is the root of the migration chain, used as given:
	// a relative path is resolved against the current working
	// directory, not against the config file's directory.
	MigrationsDir string `toml:"migrations_dir"`
}

// Load reads and decodes path. A missing file is reported as a plain
// *os.PathError so callers can tell "not configured yet" (run `init`
// first) from a genuine read failure.
func Load(path string) (Connection, error) {
	var c Connection
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Connection{}, err
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = "propane/migrations"
	}
	return c, nil
}

// Write serializes c to path, creating or truncating it.
func Write(path string, c Connection) error {
	if c.MigrationsDir == "" {
		c.MigrationsDir = "propane/migrations"
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encoding %s: %w", path, err)
	}
	return nil
}
