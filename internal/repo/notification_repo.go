// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Notification model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition.
//
// Error semantics:
//   - When a notification is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-notification-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateNotification inserts n as-is. The caller allocates n.ID from the
// notification sequence. A zero CreatedAt is set to now (UTC) and an empty
// Status to UNREAD.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = domain.StatusUnread
	}
	return db.WithContext(ctx).Create(n).Error
}

// GetNotification fetches a notification by id regardless of owner.
func GetNotification(ctx context.Context, db *gorm.DB, id int64) (*domain.Notification, error) {
	var n domain.Notification
	if err := db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// ListRecentNotifications returns up to limit notifications for memberID,
// newest first. Ties on CreatedAt are broken by id descending.
func ListRecentNotifications(ctx context.Context, db *gorm.DB, memberID int64, limit int) ([]domain.Notification, error) {
	out := make([]domain.Notification, 0, limit)
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountUnread returns the number of UNREAD notifications owned by memberID.
func CountUnread(ctx context.Context, db *gorm.DB, memberID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("member_id = ? AND status = ?", memberID, domain.StatusUnread).
		Count(&total).Error
	return total, err
}

// MarkRead flips the listed notifications to READ, restricted to those owned
// by memberID that are currently UNREAD. Ids that are missing, foreign or
// already READ are ignored. It returns the number of rows changed.
func MarkRead(ctx context.Context, db *gorm.DB, memberID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("member_id = ? AND status = ? AND id IN ?", memberID, domain.StatusUnread, ids).
		Update("status", domain.StatusRead)
	return res.RowsAffected, res.Error
}

// DeleteNotification removes the notification with id. It returns
// ErrNotFound if no row was deleted.
func DeleteNotification(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// NotificationFilter narrows an operator search. Zero-valued fields are not
// applied.
type NotificationFilter struct {
	MemberID int64
	Type     domain.Category
	Status   domain.Status
}

func (f NotificationFilter) apply(q *gorm.DB) *gorm.DB {
	if f.MemberID != 0 {
		q = q.Where("member_id = ?", f.MemberID)
	}
	if t := strings.TrimSpace(string(f.Type)); t != "" {
		q = q.Where("type = ?", t)
	}
	if s := strings.TrimSpace(string(f.Status)); s != "" {
		q = q.Where("status = ?", s)
	}
	return q
}

// CountNotifications returns the number of notifications matching f.
func CountNotifications(ctx context.Context, db *gorm.DB, f NotificationFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Notification{})).Count(&total).Error
	return total, err
}

// SearchNotifications returns a page of notifications matching f, newest
// first. Use CountNotifications for pagination metadata.
func SearchNotifications(ctx context.Context, db *gorm.DB, f NotificationFilter, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := f.apply(db.WithContext(ctx).Model(&domain.Notification{})).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
