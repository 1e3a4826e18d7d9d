package repo

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tbourn/go-notification-backend/internal/domain"
)

func TestNextSequence_StartsAtOneAndIncrements(t *testing.T) {
	db := newTestDB(t, &domain.Sequence{})
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := NextSequence(ctx, db, domain.NotificationSequence)
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		if got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
	}

	// Counters are independent per name.
	got, err := NextSequence(ctx, db, domain.TemplateSequence)
	if err != nil || got != 1 {
		t.Fatalf("template sequence: got=%d err=%v", got, err)
	}
}

func TestNextSequence_EmptyName(t *testing.T) {
	db := newTestDB(t, &domain.Sequence{})
	if _, err := NextSequence(context.Background(), db, "  "); !errors.Is(err, ErrEmptySequenceName) {
		t.Fatalf("expected ErrEmptySequenceName, got %v", err)
	}
}

func TestNextSequence_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	if _, err := NextSequence(context.Background(), db, "x"); err == nil {
		t.Fatalf("expected error when sequences table is missing")
	}
}

func TestNextSequence_ConcurrentCallersGetDistinctValues(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "seq.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	const workers, perWorker = 8, 25
	var (
		mu   sync.Mutex
		seen = make(map[int64]bool, workers*perWorker)
		wg   sync.WaitGroup
	)
	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v, err := NextSequence(context.Background(), db, domain.NotificationSequence)
				if err != nil {
					errCh <- err
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent NextSequence: %v", err)
	}

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d distinct values, got %d", workers*perWorker, len(seen))
	}
	for v := int64(1); v <= workers*perWorker; v++ {
		if !seen[v] {
			t.Fatalf("missing value %d", v)
		}
	}
}
