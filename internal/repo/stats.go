// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-notification-backend/internal/domain"
)

// NotificationStats summarizes a member's inbox. Any create, delete or read
// transition changes at least one field.
type NotificationStats struct {
	Count        int64
	Unread       int64
	MaxID        int64
	MaxCreatedAt *time.Time
}

// NotificationsStats returns aggregate metadata for memberID's notifications.
// When the member has none, Count is 0 and MaxCreatedAt is nil.
func NotificationsStats(ctx context.Context, db *gorm.DB, memberID int64) (NotificationStats, error) {
	var st NotificationStats
	q := db.WithContext(ctx).Model(&domain.Notification{}).Where("member_id = ?", memberID)

	// Count
	if err := q.Session(&gorm.Session{}).Count(&st.Count).Error; err != nil {
		return NotificationStats{}, err
	}
	if st.Count == 0 {
		return st, nil
	}
	if err := q.Session(&gorm.Session{}).Where("status = ?", domain.StatusUnread).Count(&st.Unread).Error; err != nil {
		return NotificationStats{}, err
	}

	// Get latest row (avoid MAX() -> TEXT in SQLite)
	var row struct {
		ID        int64
		CreatedAt time.Time
	}
	if err := q.Session(&gorm.Session{}).Select("id, created_at").Order("created_at DESC, id DESC").Limit(1).Scan(&row).Error; err != nil {
		return NotificationStats{}, err
	}
	st.MaxID = row.ID
	st.MaxCreatedAt = &row.CreatedAt
	return st, nil
}
