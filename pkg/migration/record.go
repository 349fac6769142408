// SPDX-License-Identifier: Apache-2.0

// Package migration implements C5, the migration record: one node in
// the on-disk history, holding a schema snapshot, per-backend SQL,
// and a pointer to its predecessor.
package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/propanedb/propane/pkg/backend"
	"github.com/propanedb/propane/pkg/bookkeeping"
	"github.com/propanedb/propane/pkg/fs"
	"github.com/propanedb/propane/pkg/migrations"
	"github.com/propanedb/propane/pkg/schema"
)

// CurrentName is the reserved directory name for the synthetic node
// representing the build's current, not-yet-migrated schema.
const CurrentName = "current"

const tableFileSuffix = ".table"

// Info is MigrationInfo: the predecessor pointer written once at
// creation and never mutated.
type Info struct {
	FromName *string `json:"from_name"`
}

// Migration is one node in the chain, rooted at Dir. It reads and
// writes its own files lazily; nothing is cached across calls, since
// the chain that owns it may be walked once and discarded.
type Migration struct {
	Name string
	Dir  string
	FSys fs.FS
}

// New returns a handle to the migration named name living under root,
// sharing fsys with every other migration in the same chain.
func New(root, name string, fsys fs.FS) *Migration {
	return &Migration{Name: name, Dir: root + "/" + name, FSys: fsys}
}

// IsCurrent reports whether this node is the synthetic "current" node.
func (m *Migration) IsCurrent() bool {
	return m.Name == CurrentName
}

// ReadInfo reads info.json. The current node has none; calling this
// on it is a caller error.
func (m *Migration) ReadInfo() (Info, error) {
	path := m.Dir + "/info.json"
	r, err := m.FSys.Read(path)
	if err != nil {
		return Info{}, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	if err := ValidateInfoFile(path, data); err != nil {
		return Info{}, err
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, migrations.SerdeError{Err: err}
	}
	return info, nil
}

// WriteInfo writes info.json. Called exactly once, at creation.
func (m *Migration) WriteInfo(info Info) error {
	w, err := m.FSys.Write(m.Dir + "/info.json")
	if err != nil {
		return err
	}
	defer w.Close()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return migrations.SerdeError{Err: err}
	}
	return nil
}

// GetDB reads every "*.table" file in the migration's directory and
// reassembles them into an ADB. Table order within the reconstructed
// ADB follows the filesystem's listing order, which is why both fs.FS
// implementations return ListDir results sorted by path: rendering
// must stay deterministic across runs.
func (m *Migration) GetDB() (*schema.DB, error) {
	entries, err := m.FSys.ListDir(m.Dir)
	if err != nil {
		return nil, err
	}

	db := schema.New()
	for _, path := range entries {
		if !strings.HasSuffix(path, tableFileSuffix) {
			continue
		}
		r, err := m.FSys.Read(path)
		if err != nil {
			return nil, err
		}
		data, readErr := io.ReadAll(r)
		r.Close()
		if readErr != nil {
			return nil, readErr
		}
		if err := ValidateTableFile(path, data); err != nil {
			return nil, err
		}
		var t schema.Table
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, migrations.SerdeError{Err: err}
		}
		db.ReplaceTable(t)
	}
	return db, nil
}

// WriteDB serializes db into the migration's directory, one ".table"
// file per table.
func (m *Migration) WriteDB(db *schema.DB) error {
	for _, t := range db.Tables() {
		w, err := m.FSys.Write(m.Dir + "/" + t.Name + tableFileSuffix)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		encErr := enc.Encode(t)
		w.Close()
		if encErr != nil {
			return migrations.SerdeError{Err: encErr}
		}
	}
	return nil
}

func sqlPath(dir, backendName, direction string) string {
	return fmt.Sprintf("%s/%s_%s.sql", dir, backendName, direction)
}

// ReadUpSQL reads the forward script for backendName.
func (m *Migration) ReadUpSQL(backendName string) (string, error) {
	return m.readSQL(sqlPath(m.Dir, backendName, "up"))
}

// ReadDownSQL reads the reverse script for backendName.
func (m *Migration) ReadDownSQL(backendName string) (string, error) {
	return m.readSQL(sqlPath(m.Dir, backendName, "down"))
}

func (m *Migration) readSQL(path string) (string, error) {
	r, err := m.FSys.Read(path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteUpSQL writes the forward script for backendName.
func (m *Migration) WriteUpSQL(backendName, sql string) error {
	return m.writeSQL(sqlPath(m.Dir, backendName, "up"), sql)
}

// WriteDownSQL writes the reverse script for backendName.
func (m *Migration) WriteDownSQL(backendName, sql string) error {
	return m.writeSQL(sqlPath(m.Dir, backendName, "down"), sql)
}

func (m *Migration) writeSQL(path, sql string) error {
	w, err := m.FSys.Write(path)
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write([]byte(sql))
	return err
}

// Apply runs this migration's forward SQL against conn and records it
// in the bookkeeping table, per spec.md §4.5's apply semantics. When
// conn also implements backend.Transactional, steps 2 and 3 run
// atomically; otherwise the bookkeeping write only happens once the
// DDL has already succeeded.
func (m *Migration) Apply(ctx context.Context, conn backend.Connection) error {
	sql, err := m.ReadUpSQL(conn.BackendName())
	if err != nil {
		return migrations.MigrationError{
			Msg: fmt.Sprintf("migration %q: no forward SQL for backend %q: %s", m.Name, conn.BackendName(), err),
		}
	}

	if txr, ok := conn.(backend.Transactional); ok {
		return txr.WithTransaction(ctx, func(ctx context.Context, tx backend.Connection) error {
			if err := tx.Execute(ctx, sql); err != nil {
				return err
			}
			return bookkeeping.Record(ctx, tx, m.Name)
		})
	}

	if err := conn.Execute(ctx, sql); err != nil {
		return err
	}
	return bookkeeping.Record(ctx, conn, m.Name)
}
