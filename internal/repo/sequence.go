// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the named-sequence counter used to
// allocate notification and template identifiers.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrEmptySequenceName is returned when NextSequence is called without a name.
var ErrEmptySequenceName = errors.New("sequence name is empty")

// nextSequenceSQL increments (or creates at 1) the counter and returns the new
// value in a single statement. The database serializes concurrent writers,
// so no two callers can observe the same value.
const nextSequenceSQL = `INSERT INTO sequences (id, seq) VALUES (?, 1)
ON CONFLICT(id) DO UPDATE SET seq = seq + 1
RETURNING seq`

// NextSequence atomically increments the counter called name and returns the
// post-increment value. A missing counter is created as if it started at 0.
//
// Values are unique and strictly increasing per name, even across processes
// sharing the database. Values consumed by a failed caller are not reused.
func NextSequence(ctx context.Context, db *gorm.DB, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrEmptySequenceName
	}
	var seq int64
	res := db.WithContext(ctx).Raw(nextSequenceSQL, name).Scan(&seq)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return seq, nil
}
