// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oapi-codegen/nullable"
)

// Nullable re-exports oapi-codegen/nullable's tri-state wrapper
// (absent / null / present) so callers of this package don't need a
// second import for AColumn.Default, which must distinguish "no
// default" from "default is the type's zero value".
type Nullable[T any] = nullable.Nullable[T]

// deferredKind distinguishes a DeferredSqlType's two JSON shapes:
// {"Known": "<SqlType>"} or {"Deferred": "<key>"}.
type deferredKind int

const (
	deferredKindKnown deferredKind = iota
	deferredKindDeferred
)

// DeferredSqlType is either a Known SqlType or a Deferred reference to
// another schema element's resolved type (today: "<Table>.pk", the
// primary-key type of table <Table>). ResolveTypes rewrites every
// Deferred occurrence to Known; see resolve.go.
type DeferredSqlType struct {
	kind        deferredKind
	known       SqlType
	deferredKey string
}

// Known constructs a resolved DeferredSqlType.
func Known(t SqlType) DeferredSqlType {
	return DeferredSqlType{kind: deferredKindKnown, known: t}
}

// Deferred constructs an unresolved DeferredSqlType referencing key
// (conventionally "<Table>.pk").
func Deferred(key string) DeferredSqlType {
	return DeferredSqlType{kind: deferredKindDeferred, deferredKey: key}
}

// IsKnown reports whether the type has been resolved.
func (d DeferredSqlType) IsKnown() bool {
	return d.kind == deferredKindKnown
}

// MustKnown returns the resolved SqlType, panicking if still deferred.
// Callers in the renderer and differ only ever see resolved ADBs
// (resolution happens once, in Chain.CreateMigrationSQL, before either
// runs), so a panic here means an invariant was violated upstream.
func (d DeferredSqlType) MustKnown() SqlType {
	if d.kind != deferredKindKnown {
		panic(fmt.Sprintf("schema: type deferred to %q was never resolved", d.deferredKey))
	}
	return d.known
}

// DeferredKey returns the deferred reference key and true, or ("",
// false) if the type is already Known.
func (d DeferredSqlType) DeferredKey() (string, bool) {
	if d.kind == deferredKindDeferred {
		return d.deferredKey, true
	}
	return "", false
}

func (d DeferredSqlType) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case deferredKindKnown:
		return json.Marshal(map[string]string{"Known": d.known.String()})
	case deferredKindDeferred:
		return json.Marshal(map[string]string{"Deferred": d.deferredKey})
	default:
		return nil, fmt.Errorf("schema: invalid DeferredSqlType")
	}
}

func (d *DeferredSqlType) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: decoding sqltype: %w", err)
	}
	if v, ok := raw["Known"]; ok {
		t, ok := sqlTypeFromString(v)
		if !ok {
			return fmt.Errorf("schema: unknown SqlType %q", v)
		}
		*d = Known(t)
		return nil
	}
	if v, ok := raw["Deferred"]; ok {
		*d = Deferred(v)
		return nil
	}
	return fmt.Errorf("schema: sqltype must have exactly one of Known/Deferred")
}

// DeferredKeyForPrimaryKey builds the conventional deferred reference
// key for "the primary key type of table".
func DeferredKeyForPrimaryKey(table string) string {
	return table + ".pk"
}

// TableForPrimaryKeyDeferredKey parses a deferred key produced by
// DeferredKeyForPrimaryKey, returning the referenced table name.
func TableForPrimaryKeyDeferredKey(key string) (string, bool) {
	return strings.CutSuffix(key, ".pk")
}

// valKind mirrors SqlType's cases for literal default values.
type valKind int

const (
	valKindInteger valKind = iota
	valKindReal
	valKindText
	valKindBlob
	valKindBool
	valKindTimestamp
)

// SqlVal is a literal value of one of the closed SqlType cases, used
// for column default values. It is a closed tagged union encoded the
// same way DeferredSqlType is: a single-key JSON object naming the
// case.
type SqlVal struct {
	kind      valKind
	integer   int64
	real      float64
	text      string
	blob      []byte
	boolean   bool
	timestamp time.Time
}

func IntegerVal(v int64) SqlVal       { return SqlVal{kind: valKindInteger, integer: v} }
func RealVal(v float64) SqlVal        { return SqlVal{kind: valKindReal, real: v} }
func TextVal(v string) SqlVal         { return SqlVal{kind: valKindText, text: v} }
func BlobVal(v []byte) SqlVal         { return SqlVal{kind: valKindBlob, blob: v} }
func BoolVal(v bool) SqlVal           { return SqlVal{kind: valKindBool, boolean: v} }
func TimestampVal(v time.Time) SqlVal { return SqlVal{kind: valKindTimestamp, timestamp: v} }

// Equal reports deep equality between two SqlVal, used by the differ
// to decide whether a column's default changed.
func (v SqlVal) Equal(other SqlVal) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case valKindInteger:
		return v.integer == other.integer
	case valKindReal:
		return v.real == other.real
	case valKindText:
		return v.text == other.text
	case valKindBlob:
		return bytes.Equal(v.blob, other.blob)
	case valKindBool:
		return v.boolean == other.boolean
	case valKindTimestamp:
		return v.timestamp.Equal(other.timestamp)
	default:
		return false
	}
}

// AsInteger, AsReal, AsText, AsBlob, AsBool and AsTimestamp let a
// backend's renderer extract a default value's underlying case
// without importing this package's internals. Each reports false if
// the value isn't that case.
func (v SqlVal) AsInteger() (int64, bool)       { return v.integer, v.kind == valKindInteger }
func (v SqlVal) AsReal() (float64, bool)        { return v.real, v.kind == valKindReal }
func (v SqlVal) AsText() (string, bool)         { return v.text, v.kind == valKindText }
func (v SqlVal) AsBlob() ([]byte, bool)         { return v.blob, v.kind == valKindBlob }
func (v SqlVal) AsBool() (bool, bool)           { return v.boolean, v.kind == valKindBool }
func (v SqlVal) AsTimestamp() (time.Time, bool) { return v.timestamp, v.kind == valKindTimestamp }

func (v SqlVal) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case valKindInteger:
		return json.Marshal(map[string]int64{"Integer": v.integer})
	case valKindReal:
		return json.Marshal(map[string]float64{"Real": v.real})
	case valKindText:
		return json.Marshal(map[string]string{"Text": v.text})
	case valKindBlob:
		return json.Marshal(map[string][]byte{"Blob": v.blob})
	case valKindBool:
		return json.Marshal(map[string]bool{"Bool": v.boolean})
	case valKindTimestamp:
		return json.Marshal(map[string]time.Time{"Timestamp": v.timestamp})
	default:
		return nil, fmt.Errorf("schema: invalid SqlVal")
	}
}

func (v *SqlVal) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: decoding default value: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("schema: default value must have exactly one case")
	}
	for key, val := range raw {
		switch key {
		case "Integer":
			var i int64
			if err := json.Unmarshal(val, &i); err != nil {
				return err
			}
			*v = IntegerVal(i)
		case "Real":
			var f float64
			if err := json.Unmarshal(val, &f); err != nil {
				return err
			}
			*v = RealVal(f)
		case "Text":
			var s string
			if err := json.Unmarshal(val, &s); err != nil {
				return err
			}
			*v = TextVal(s)
		case "Blob":
			var b []byte
			if err := json.Unmarshal(val, &b); err != nil {
				return err
			}
			*v = BlobVal(b)
		case "Bool":
			var b bool
			if err := json.Unmarshal(val, &b); err != nil {
				return err
			}
			*v = BoolVal(b)
		case "Timestamp":
			var t time.Time
			if err := json.Unmarshal(val, &t); err != nil {
				return err
			}
			*v = TimestampVal(t)
		default:
			return fmt.Errorf("schema: unknown default value case %q", key)
		}
	}
	return nil
}
