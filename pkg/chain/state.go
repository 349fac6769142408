// SPDX-License-Identifier: Apache-2.0

// Package chain implements C6: the migration chain rooted at a
// directory, an append-only linked list walked lazily from its tip.
package chain

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"

	pfs "github.com/propanedb/propane/pkg/fs"
	"github.com/propanedb/propane/pkg/migration"
	"github.com/propanedb/propane/pkg/migrations"
)

const stateFileName = "state.json"

// state is MigrationsState: the name of the chain tip, or nil when no
// migrations exist yet.
type state struct {
	Latest *string `json:"latest"`
}

func readState(fsys pfs.FS, root string) (state, error) {
	path := root + "/" + stateFileName
	r, err := fsys.Read(path)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr.Err, fs.ErrNotExist) {
			return state{}, nil
		}
		return state{}, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return state{}, err
	}
	if err := migration.ValidateStateFile(path, data); err != nil {
		return state{}, err
	}

	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return state{}, migrations.SerdeError{Err: err}
	}
	return s, nil
}

func writeState(fsys pfs.FS, root string, s state) error {
	w, err := fsys.Write(root + "/" + stateFileName)
	if err != nil {
		return err
	}
	defer w.Close()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return migrations.SerdeError{Err: err}
	}
	return nil
}
