// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for notification
// templates.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-notification-backend/internal/domain"
)

// CreateTemplate inserts t. The caller allocates t.ID from the template
// sequence.
func CreateTemplate(ctx context.Context, db *gorm.DB, t *domain.NotificationTemplate) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(t).Error
}

// GetTemplate fetches a template by id.
func GetTemplate(ctx context.Context, db *gorm.DB, id int64) (*domain.NotificationTemplate, error) {
	var t domain.NotificationTemplate
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindTemplatesByType returns every template for category c ordered by id,
// so callers that want "the" template deterministically get the oldest.
func FindTemplatesByType(ctx context.Context, db *gorm.DB, c domain.Category) ([]domain.NotificationTemplate, error) {
	var out []domain.NotificationTemplate
	err := db.WithContext(ctx).
		Where("type = ?", c).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// ListTemplates returns all templates ordered by id.
func ListTemplates(ctx context.Context, db *gorm.DB) ([]domain.NotificationTemplate, error) {
	var out []domain.NotificationTemplate
	err := db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// UpdateTemplate overwrites title and message of template id. It returns
// ErrNotFound if no row matched.
func UpdateTemplate(ctx context.Context, db *gorm.DB, id int64, title, message string) error {
	res := db.WithContext(ctx).
		Model(&domain.NotificationTemplate{}).
		Where("id = ?", id).
		Updates(map[string]any{"title": title, "message": message})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteTemplate removes template id. It returns ErrNotFound if no row was
// deleted.
func DeleteTemplate(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.NotificationTemplate{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
