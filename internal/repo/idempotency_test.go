package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-notification-backend/internal/domain"
)

func TestGetIdempotency_NoScope_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	rec, err := GetIdempotency(context.Background(), db, 1, "   ", "k1", now)
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for empty scope, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:        "expired",
		MemberID:  1,
		Scope:     "templates",
		Key:       "k1",
		Status:    201,
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, 1, "templates", "k1", now)
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}

	rec2, err2 := GetIdempotency(context.Background(), db, 1, "templates", "missing", now)
	if rec2 != nil || !errors.Is(err2, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec2, err2)
	}
}

func TestCreateIdempotency_SuccessDuplicateAndLookup(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	start := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, 9, "resend:4", "k9", 4, 202, 90*time.Minute)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec.ID == "" || rec.MemberID != 9 || rec.Scope != "resend:4" || rec.ResourceID != 4 || rec.Status != 202 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	if _, err := CreateIdempotency(ctx, db, 9, "resend:4", "k9", 5, 200, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetIdempotency(ctx, db, 9, "resend:4", "k9", time.Now().UTC())
	if err != nil || got.ResourceID != 4 {
		t.Fatalf("lookup: got=%+v err=%v", got, err)
	}
}

func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t) // intentionally NOT migrating
	_, err := CreateIdempotency(context.Background(), db, 1, "templates", "k", 1, 200, time.Minute)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected non-duplicate error, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, 1, "templates", "old", 1, 201, -time.Minute); err != nil {
		t.Fatalf("seed old: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, 1, "templates", "new", 2, 201, time.Hour); err != nil {
		t.Fatalf("seed new: %v", err)
	}

	n, err := PurgeExpiredIdempotency(ctx, db, time.Now().UTC())
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	var left int64
	db.Model(&domain.Idempotency{}).Count(&left)
	if left != 1 {
		t.Fatalf("expected 1 record left, got %d", left)
	}
}
