// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"context"
	"fmt"

	"github.com/propanedb/propane/pkg/backend"
	"github.com/propanedb/propane/pkg/bookkeeping"
	pfs "github.com/propanedb/propane/pkg/fs"
	"github.com/propanedb/propane/pkg/migration"
	"github.com/propanedb/propane/pkg/migrations"
	"github.com/propanedb/propane/pkg/schema"
)

// Chain is the linear migration history rooted at Root, with an
// injectable filesystem so tests can run against an in-memory tree
// (pkg/fs/memfs) instead of the host disk.
type Chain struct {
	Root string
	FSys pfs.FS
	Log  migrations.Logger
}

// FromRoot constructs a chain rooted at root, backed by fsys. log may
// be nil, in which case chain operations are silent.
func FromRoot(root string, fsys pfs.FS, log migrations.Logger) *Chain {
	if log == nil {
		log = migrations.NewNoopLogger()
	}
	return &Chain{Root: root, FSys: fsys, Log: log}
}

func (c *Chain) node(name string) *migration.Migration {
	return migration.New(c.Root, name, c.FSys)
}

// GetCurrent returns the synthetic "current" node: whatever the build
// last emitted into migrations/current/.
func (c *Chain) GetCurrent() *migration.Migration {
	return c.node(migration.CurrentName)
}

// GetLatest returns the chain tip named in state.json, or nil if no
// migrations exist yet.
func (c *Chain) GetLatest() (*migration.Migration, error) {
	s, err := readState(c.FSys, c.Root)
	if err != nil {
		return nil, err
	}
	if s.Latest == nil {
		return nil, nil
	}
	return c.node(*s.Latest), nil
}

// GetAllMigrations walks predecessors from the tip to the root and
// returns them in forward (root-first) order.
func (c *Chain) GetAllMigrations() ([]*migration.Migration, error) {
	tip, err := c.GetLatest()
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, nil
	}
	return c.walkBack(tip, "")
}

// GetMigrationsSince walks from the tip backward, accumulating until
// it reaches the migration named since, and returns the result in
// forward order. Fails if since is never encountered.
func (c *Chain) GetMigrationsSince(since string) ([]*migration.Migration, error) {
	tip, err := c.GetLatest()
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, migrations.MigrationError{Msg: "not in chain"}
	}
	return c.walkBack(tip, since)
}

// walkBack walks predecessors starting at tip, stopping just after
// appending stopAt's successor (i.e. stopAt itself is excluded), and
// returns the accumulated nodes in forward (oldest-first) order. An
// empty stopAt walks all the way to the root. If stopAt is non-empty
// and never encountered, returns MigrationError("not in chain").
func (c *Chain) walkBack(tip *migration.Migration, stopAt string) ([]*migration.Migration, error) {
	var reversed []*migration.Migration
	cur := tip
	found := stopAt == ""
	for {
		if cur.Name == stopAt && stopAt != "" {
			found = true
			break
		}
		reversed = append(reversed, cur)
		info, err := cur.ReadInfo()
		if err != nil {
			return nil, err
		}
		if info.FromName == nil {
			break
		}
		cur = c.node(*info.FromName)
	}
	if !found {
		return nil, migrations.MigrationError{Msg: "not in chain"}
	}

	out := make([]*migration.Migration, len(reversed))
	for i, m := range reversed {
		out[len(reversed)-1-i] = m
	}
	return out, nil
}

// GetUnappliedMigrations returns the migrations after the last
// applied one, in apply order. Per spec.md §4.6/§7, any failure to
// read the bookkeeping table — most commonly because it doesn't
// exist yet — is treated as "nothing applied", returning every
// migration in the chain.
func (c *Chain) GetUnappliedMigrations(ctx context.Context, conn backend.Connection) ([]*migration.Migration, error) {
	all, err := c.GetAllMigrations()
	if err != nil {
		return nil, err
	}

	applied, ok := bookkeeping.Applied(ctx, conn)
	if !ok {
		return all, nil
	}

	lastApplied := -1
	for i, m := range all {
		if applied[m.Name] {
			lastApplied = i
		}
	}
	// lastApplied stays -1 both when the table is empty and when its
	// rows match no chain node; either way every migration is still
	// unapplied, per spec.md §4.6's "all on error/no-match" policy.
	return all[lastApplied+1:], nil
}

// GetLastAppliedMigration loads every row of the bookkeeping table,
// then walks the chain backward from the tip, returning the first
// node whose name is present in that set.
func (c *Chain) GetLastAppliedMigration(ctx context.Context, conn backend.Connection) (*migration.Migration, error) {
	applied, ok := bookkeeping.Applied(ctx, conn)
	if !ok || len(applied) == 0 {
		return nil, nil
	}

	tip, err := c.GetLatest()
	if err != nil {
		return nil, err
	}
	cur := tip
	for cur != nil {
		if applied[cur.Name] {
			return cur, nil
		}
		info, err := cur.ReadInfo()
		if err != nil {
			return nil, err
		}
		if info.FromName == nil {
			return nil, nil
		}
		cur = c.node(*info.FromName)
	}
	return nil, nil
}

// CreateResult is the outcome of CreateMigrationSQL: nil when the two
// schemas were identical and no migration was created.
type CreateResult struct {
	Migration *migration.Migration
	Ops       []migrations.Operation
}

// CreateMigrationSQL is the entry point invoked by the CLI's
// makemigration command: it diffs from (or the empty schema, if from
// is nil) against the current snapshot, renders forward and reverse
// SQL for be, and writes the new migration's files. It returns nil,
// nil when the two schemas are identical.
func (c *Chain) CreateMigrationSQL(ctx context.Context, be backend.Backend, name string, from *migration.Migration) (*CreateResult, error) {
	var fromDB *schema.DB
	var fromName *string
	if from != nil {
		db, err := from.GetDB()
		if err != nil {
			return nil, err
		}
		fromDB = db
		n := from.Name
		fromName = &n
	} else {
		fromDB = schema.New()
	}
	if err := fromDB.ResolveTypes(); err != nil {
		return nil, err
	}

	toDB, err := c.GetCurrent().GetDB()
	if err != nil {
		return nil, err
	}
	if err := toDB.ResolveTypes(); err != nil {
		return nil, err
	}

	ops := migrations.Diff(fromDB, toDB)
	if len(ops) == 0 {
		c.Log.LogNoopMigration(name)
		return nil, nil
	}
	root := from == nil
	ops = bookkeeping.EnsureBookkept(root, ops)

	upSQL, err := be.CreateMigrationSQL(fromDB, ops)
	if err != nil {
		return nil, err
	}
	reverseOps := migrations.Diff(toDB, fromDB)
	downSQL, err := be.CreateMigrationSQL(toDB, reverseOps)
	if err != nil {
		return nil, err
	}

	m := c.node(name)
	if err := c.FSys.EnsureDir(m.Dir); err != nil {
		return nil, err
	}
	if err := m.WriteUpSQL(be.Name(), upSQL); err != nil {
		return nil, err
	}
	if err := m.WriteDownSQL(be.Name(), downSQL); err != nil {
		return nil, err
	}
	if err := m.WriteInfo(migration.Info{FromName: fromName}); err != nil {
		return nil, err
	}
	if err := m.WriteDB(toDB); err != nil {
		return nil, err
	}

	s, err := readState(c.FSys, c.Root)
	if err != nil {
		return nil, err
	}
	if stateMatches(s.Latest, fromName) {
		newLatest := name
		if err := writeState(c.FSys, c.Root, state{Latest: &newLatest}); err != nil {
			return nil, err
		}
		c.Log.LogMigrationCreated(name, fromName)
	} else {
		var actual *string
		if s.Latest != nil {
			v := *s.Latest
			actual = &v
		}
		c.Log.LogDivergentMigration(name, derefOr(fromName, ""), actual)
	}

	return &CreateResult{Migration: m, Ops: ops}, nil
}

// stateMatches reports whether the chain's current tip equals the
// from pointer the caller built this migration against, guarding
// against forked history (spec.md §4.6 step 9).
func stateMatches(latest, from *string) bool {
	if latest == nil || from == nil {
		return latest == nil && from == nil
	}
	return *latest == *from
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

// ApplyAll applies every unapplied migration in order, each fully
// completing (including its bookkeeping write) before the next
// begins, per spec.md §5's ordering guarantee.
func (c *Chain) ApplyAll(ctx context.Context, conn backend.Connection) error {
	pending, err := c.GetUnappliedMigrations(ctx, conn)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := m.Apply(ctx, conn); err != nil {
			return fmt.Errorf("applying %q: %w", m.Name, err)
		}
		c.Log.LogMigrationApplied(m.Name)
	}
	return nil
}
