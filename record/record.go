// Package record gives every persisted record an explicit schema version and
// lazy migrate-on-load. A record serializes as a one-byte version tag
// followed by its borsh body; loading a record below the latest version
// rewrites it through the registered migration chain, one step at a time,
// before business logic sees it.
package record

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	ErrEmptyRecord        = errors.New("record is empty")
	ErrInvalidDataVersion = errors.New("invalid account data version")
)

// Versioned is implemented by the latest shape of a persisted record.
type Versioned interface {
	Serialize(w io.Writer) error
	Deserialize(data []byte) error
}

// Migration rewrites a serialized record (version tag included) from version
// v to version v+1. Fields introduced by a migration get the defaults fixed
// when the migration was written; migrations are never skipped or reordered.
type Migration func(data []byte) ([]byte, error)

// Schema ties a record shape to its version history.
type Schema[T Versioned] struct {
	name       string
	latest     uint8
	newRecord  func() T
	migrations []Migration
}

// NewSchema declares a record family. migrations[i] must migrate version i
// to version i+1; a gap in the chain is a programmer error and panics here
// rather than at load time.
func NewSchema[T Versioned](name string, latest uint8, newRecord func() T, migrations ...Migration) *Schema[T] {
	if len(migrations) != int(latest) {
		panic(fmt.Sprintf("record %s: %d migrations registered, latest version is %d", name, len(migrations), latest))
	}
	return &Schema[T]{
		name:       name,
		latest:     latest,
		newRecord:  newRecord,
		migrations: migrations,
	}
}

// Latest reports the newest declared version.
func (s *Schema[T]) Latest() uint8 { return s.latest }

// Load decodes raw into the latest record shape, applying migrations as
// needed. The second return reports whether the record was upgraded and
// should be persisted back.
func (s *Schema[T]) Load(raw []byte) (T, bool, error) {
	var zero T
	if len(raw) == 0 {
		return zero, false, fmt.Errorf("record %s: %w", s.name, ErrEmptyRecord)
	}

	version := raw[0]
	if version > s.latest {
		return zero, false, fmt.Errorf("record %s: version %d is newer than latest %d: %w",
			s.name, version, s.latest, ErrInvalidDataVersion)
	}

	upgraded := false
	for version < s.latest {
		migrated, err := s.migrations[version](raw)
		if err != nil {
			return zero, false, fmt.Errorf("record %s: migrating version %d: %w", s.name, version, err)
		}
		if len(migrated) == 0 || migrated[0] != version+1 {
			// A migration that fails to advance the tag is a
			// programmer error, not a recoverable runtime condition.
			panic(fmt.Sprintf("record %s: migration from version %d did not reach version %d", s.name, version, version+1))
		}
		raw = migrated
		version = raw[0]
		upgraded = true
	}

	rec := s.newRecord()
	if err := rec.Deserialize(raw[1:]); err != nil {
		return zero, false, fmt.Errorf("record %s: decoding version %d: %w", s.name, version, err)
	}
	return rec, upgraded, nil
}

// Save serializes rec under the latest version tag.
func (s *Schema[T]) Save(rec T) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(s.latest)
	if err := rec.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("record %s: encoding: %w", s.name, err)
	}
	return buf.Bytes(), nil
}
