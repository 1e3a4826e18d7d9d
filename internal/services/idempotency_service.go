// Package services – IdempotencyService
//
// This file records the outcome of admin POST requests so a retried request
// carrying the same Idempotency-Key returns the original resource instead of
// repeating the side effect (a second template, a second live push).
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/repo"
)

// DefaultIdempotencyTTL is how long a recorded result can be replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyService stores and looks up replayable results.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Lookup returns the live record for (memberID, scope, key), or nil when
// there is none.
func (s *IdempotencyService) Lookup(ctx context.Context, memberID int64, scope, key string) (*domain.Idempotency, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, memberID, scope, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Remember records resourceID as the result of (memberID, scope, key). A
// concurrent request that recorded first wins; that is not an error.
func (s *IdempotencyService) Remember(ctx context.Context, memberID int64, scope, key string, resourceID int64, status int) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, memberID, scope, key, resourceID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Purge deletes expired records.
func (s *IdempotencyService) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, time.Now().UTC())
}

// RunJanitor purges expired records every interval until ctx is done.
func (s *IdempotencyService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Purge(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired idempotency records removed")
			}
		}
	}
}
