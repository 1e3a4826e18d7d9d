package services

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-notification-backend/internal/domain"
)

func TestIdempotencyService_RememberLookupPurge(t *testing.T) {
	db := newSvcDB(t)
	if err := db.AutoMigrate(&domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := &IdempotencyService{DB: db}
	ctx := context.Background()

	rec, err := svc.Lookup(ctx, 1, "POST /t", "k1")
	if err != nil || rec != nil {
		t.Fatalf("expected miss, got %+v, %v", rec, err)
	}

	if err := svc.Remember(ctx, 1, "POST /t", "k1", 99, 201); err != nil {
		t.Fatalf("remember: %v", err)
	}
	// Second writer loses silently.
	if err := svc.Remember(ctx, 1, "POST /t", "k1", 100, 201); err != nil {
		t.Fatalf("duplicate remember must not fail: %v", err)
	}

	rec, err = svc.Lookup(ctx, 1, "POST /t", "k1")
	if err != nil || rec == nil || rec.ResourceID != 99 || rec.Status != 201 {
		t.Fatalf("unexpected record %+v, %v", rec, err)
	}
	if rec, _ := svc.Lookup(ctx, 2, "POST /t", "k1"); rec != nil {
		t.Fatalf("records are per member")
	}

	// Expire the record and purge it.
	if err := db.Model(&domain.Idempotency{}).Where("1 = 1").
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("expire: %v", err)
	}
	if rec, _ := svc.Lookup(ctx, 1, "POST /t", "k1"); rec != nil {
		t.Fatalf("expired record must not be returned")
	}
	n, err := svc.Purge(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v; want 1", n, err)
	}
}

func TestTemplateAndAdminGet_NotFound(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	if _, err := NewTemplateService(db).Get(ctx, 404); err != ErrTemplateNotFound {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	if _, err := (&AdminService{DB: db}).Get(ctx, 404); err != ErrNotificationNotFound {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}
