// Package services – AdminService
//
// This file implements the operator use cases over notifications: filtered
// search across all members and re-sending a stored notification to the
// owner's live connection.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/repo"
)

// EventNotification is the SSE event name used for notification payloads.
const EventNotification = "notification"

// Pusher delivers a payload to a member's live connection, if any. It is best
// effort and never reports failure.
type Pusher interface {
	Send(memberID int64, event string, payload any)
}

// SearchFilter narrows an operator search. Empty fields are not applied.
type SearchFilter struct {
	MemberID int64
	Type     string
	Status   string
}

// AdminService implements operator use cases.
type AdminService struct {
	DB     *gorm.DB
	Pusher Pusher
}

// Search returns a page of notifications matching f, newest first, and the
// total number of matches. Unknown type or status values are rejected.
func (s *AdminService) Search(ctx context.Context, f SearchFilter, page, pageSize int) ([]NotificationResponse, int64, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.Int64("member.id", f.MemberID),
			attribute.String("type", f.Type),
			attribute.String("status", f.Status),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	rf := repo.NotificationFilter{MemberID: f.MemberID}
	if strings.TrimSpace(f.Type) != "" {
		c, ok := domain.ParseCategory(f.Type)
		if !ok {
			return nil, 0, ErrInvalidCategory
		}
		rf.Type = c
	}
	if strings.TrimSpace(f.Status) != "" {
		st, ok := domain.ParseStatus(f.Status)
		if !ok {
			return nil, 0, ErrInvalidStatus
		}
		rf.Status = st
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountNotifications(ctx, s.DB, rf)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []NotificationResponse{}, 0, nil
	}
	items, err := repo.SearchNotifications(ctx, s.DB, rf, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return toNotificationResponses(items), total, nil
}

// Get returns notification id regardless of owner.
func (s *AdminService) Get(ctx context.Context, id int64) (NotificationResponse, error) {
	n, err := repo.GetNotification(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotificationResponse{}, ErrNotificationNotFound
		}
		return NotificationResponse{}, err
	}
	return ToNotificationResponse(n), nil
}

// Resend pushes stored notification id to its owner's live connection again.
// Delivery is best effort; the stored notification is returned either way.
func (s *AdminService) Resend(ctx context.Context, id int64) (NotificationResponse, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "Resend", trace.WithAttributes(attribute.Int64("notification.id", id)))
	defer span.End()

	n, err := repo.GetNotification(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotificationResponse{}, ErrNotificationNotFound
		}
		return NotificationResponse{}, err
	}
	resp := ToNotificationResponse(n)
	if s.Pusher != nil {
		s.Pusher.Send(n.MemberID, EventNotification, resp)
	}
	return resp, nil
}
