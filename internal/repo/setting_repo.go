// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for per-member
// notification settings.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-notification-backend/internal/domain"
)

// GetSetting returns the stored setting for memberID or ErrNotFound.
func GetSetting(ctx context.Context, db *gorm.DB, memberID int64) (*domain.NotificationSetting, error) {
	var s domain.NotificationSetting
	if err := db.WithContext(ctx).Where("member_id = ?", memberID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSetting inserts or fully overwrites the setting row for s.MemberID.
// Concurrent first writers converge on one row.
func SaveSetting(ctx context.Context, db *gorm.DB, s *domain.NotificationSetting) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"order_enabled", "delivery_enabled", "point_enabled", "system_enabled"}),
		}).
		Create(s).Error
}
