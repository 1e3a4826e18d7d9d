package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-notification-backend/internal/repo"
)

// IDAllocator hands out unique identifiers from a named counter.
type IDAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// SequenceAllocator allocates ids from the sequences table.
type SequenceAllocator struct {
	DB *gorm.DB
}

// Next returns the next value of the named sequence.
func (a *SequenceAllocator) Next(ctx context.Context, name string) (int64, error) {
	return repo.NextSequence(ctx, a.DB, name)
}
