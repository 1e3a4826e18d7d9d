package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-notification-backend/internal/domain"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Notification{},
		&domain.NotificationSetting{},
		&domain.NotificationTemplate{},
		&domain.Sequence{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// failingIDs always fails allocation.
type failingIDs struct{}

func (failingIDs) Next(context.Context, string) (int64, error) {
	return 0, errors.New("sequence unavailable")
}

// recordingPusher captures live pushes.
type recordingPusher struct {
	mu    sync.Mutex
	sends []pushed
}

type pushed struct {
	memberID int64
	event    string
	payload  any
}

func (p *recordingPusher) Send(memberID int64, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, pushed{memberID, event, payload})
}
