// SPDX-License-Identifier: Apache-2.0

package migration

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/propanedb/propane/pkg/migrations"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compileOnce sync.Once
	tableSchema *jsonschema.Schema
	infoSchema  *jsonschema.Schema
	stateSchema *jsonschema.Schema
	compileErr  error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	load := func(name, url string) (*jsonschema.Schema, error) {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, err
		}
		return c.Compile(url)
	}

	var err error
	tableSchema, err = load("table.schema.json", "table.schema.json")
	if err != nil {
		compileErr = err
		return
	}
	infoSchema, err = load("info.schema.json", "info.schema.json")
	if err != nil {
		compileErr = err
		return
	}
	stateSchema, err = load("state.schema.json", "state.schema.json")
	if err != nil {
		compileErr = err
		return
	}
}

func schemas() (table, info, state *jsonschema.Schema, err error) {
	compileOnce.Do(compileSchemas)
	return tableSchema, infoSchema, stateSchema, compileErr
}

// validateAgainst decodes data and checks it against sch, wrapping
// any violation as a CorruptMigrationError naming path so the caller
// can report exactly which on-disk file failed validation.
func validateAgainst(sch *jsonschema.Schema, path string, data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return migrations.CorruptMigrationError{Path: path, Err: fmt.Errorf("not valid JSON: %w", err)}
	}
	if err := sch.Validate(doc); err != nil {
		return migrations.CorruptMigrationError{Path: path, Err: err}
	}
	return nil
}

// ValidateTableFile checks a ".table" file's bytes against the ATable
// schema before it's unmarshaled into a schema.Table.
func ValidateTableFile(path string, data []byte) error {
	table, _, _, err := schemas()
	if err != nil {
		return fmt.Errorf("migration: compiling jsonschema: %w", err)
	}
	return validateAgainst(table, path, data)
}

// ValidateInfoFile checks an "info.json" file's bytes against the
// MigrationInfo schema.
func ValidateInfoFile(path string, data []byte) error {
	_, info, _, err := schemas()
	if err != nil {
		return fmt.Errorf("migration: compiling jsonschema: %w", err)
	}
	return validateAgainst(info, path, data)
}

// ValidateStateFile checks a "state.json" file's bytes against the
// MigrationsState schema.
func ValidateStateFile(path string, data []byte) error {
	_, _, state, err := schemas()
	if err != nil {
		return fmt.Errorf("migration: compiling jsonschema: %w", err)
	}
	return validateAgainst(state, path, data)
}
