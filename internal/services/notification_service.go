// Package services – NotificationService
//
// This file implements NotificationService, which owns the lifecycle of a
// member's notifications: creation (with an id from the notification
// sequence), the recent list, unread counts, single reads, mark-read and
// deletion. Ownership is enforced here so handlers can map ErrWrongOwner and
// ErrNotificationNotFound to HTTP results consistently.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the member and notification identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/repo"
)

// DefaultRecentLimit is the size of the recent list when none is configured.
const DefaultRecentLimit = 20

// NotificationResponse is the wire shape of a notification, used by the REST
// API and as the live push payload.
type NotificationResponse struct {
	ID        int64     `json:"id"        example:"101"`
	Type      string    `json:"type"      example:"ORDER"`
	Message   string    `json:"message"   example:"주문번호 9001에 대한 결제가 완료되었습니다. 금액: 12000원"`
	Status    string    `json:"status"    example:"UNREAD"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToNotificationResponse converts a stored notification to its wire shape.
func ToNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Message:   n.Message,
		Status:    string(n.Status),
		CreatedAt: n.CreatedAt,
	}
}

func toNotificationResponses(ns []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for i := range ns {
		out = append(out, ToNotificationResponse(&ns[i]))
	}
	return out
}

// NotificationService implements member-facing notification use cases.
type NotificationService struct {
	DB  *gorm.DB
	IDs IDAllocator

	// RecentLimit caps the recent list; <= 0 means DefaultRecentLimit.
	RecentLimit int
}

// NewNotificationService wires a NotificationService backed by the sequences
// table.
func NewNotificationService(db *gorm.DB, recentLimit int) *NotificationService {
	return &NotificationService{DB: db, IDs: &SequenceAllocator{DB: db}, RecentLimit: recentLimit}
}

// Create stores a new UNREAD notification for memberID. The id comes from the
// notification sequence; an id burnt by a failed insert is never reused.
func (s *NotificationService) Create(ctx context.Context, memberID int64, c domain.Category, message, traceID string) (*domain.Notification, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int64("member.id", memberID),
			attribute.String("type", string(c)),
			attribute.String("trace.id", traceID),
		),
	)
	defer span.End()

	if !c.Valid() {
		return nil, ErrInvalidCategory
	}
	id, err := s.IDs.Next(ctx, domain.NotificationSequence)
	if err != nil {
		return nil, fmt.Errorf("allocate notification id: %w", err)
	}
	n := &domain.Notification{
		ID:        id,
		MemberID:  memberID,
		Type:      c,
		Message:   message,
		Status:    domain.StatusUnread,
		TraceID:   strings.TrimSpace(traceID),
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateNotification(ctx, s.DB, n); err != nil {
		return nil, fmt.Errorf("store notification %d: %w", id, err)
	}
	span.SetAttributes(attribute.Int64("notification.id", id))
	return n, nil
}

// Recent returns memberID's newest notifications.
func (s *NotificationService) Recent(ctx context.Context, memberID int64) ([]NotificationResponse, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Recent", trace.WithAttributes(attribute.Int64("member.id", memberID)))
	defer span.End()

	limit := s.RecentLimit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	items, err := repo.ListRecentNotifications(ctx, s.DB, memberID, limit)
	if err != nil {
		return nil, err
	}
	return toNotificationResponses(items), nil
}

// Stats returns inbox aggregates used for conditional responses.
func (s *NotificationService) Stats(ctx context.Context, memberID int64) (repo.NotificationStats, error) {
	return repo.NotificationsStats(ctx, s.DB, memberID)
}

// UnreadCount returns the number of UNREAD notifications for memberID.
func (s *NotificationService) UnreadCount(ctx context.Context, memberID int64) (int64, error) {
	return repo.CountUnread(ctx, s.DB, memberID)
}

// Get returns notification id if it belongs to memberID.
func (s *NotificationService) Get(ctx context.Context, memberID, id int64) (NotificationResponse, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.Int64("member.id", memberID),
			attribute.Int64("notification.id", id),
		),
	)
	defer span.End()

	n, err := s.owned(ctx, memberID, id)
	if err != nil {
		return NotificationResponse{}, err
	}
	return ToNotificationResponse(n), nil
}

// MarkRead marks the listed notifications READ. Ids that are missing, owned by
// another member or already READ are skipped. It returns how many changed.
func (s *NotificationService) MarkRead(ctx context.Context, memberID int64, ids []int64) (int64, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(
			attribute.Int64("member.id", memberID),
			attribute.Int("ids", len(ids)),
		),
	)
	defer span.End()

	if len(ids) == 0 {
		return 0, ErrEmptyIDs
	}
	return repo.MarkRead(ctx, s.DB, memberID, ids)
}

// Delete removes notification id if it belongs to memberID.
func (s *NotificationService) Delete(ctx context.Context, memberID, id int64) error {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.Int64("member.id", memberID),
			attribute.Int64("notification.id", id),
		),
	)
	defer span.End()

	if _, err := s.owned(ctx, memberID, id); err != nil {
		return err
	}
	if err := repo.DeleteNotification(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

func (s *NotificationService) owned(ctx context.Context, memberID, id int64) (*domain.Notification, error) {
	n, err := repo.GetNotification(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	if n.MemberID != memberID {
		return nil, ErrWrongOwner
	}
	return n, nil
}
