// Package handlers implements the HTTP endpoints of the notification API.
//
// Handlers are transport-thin: they read the member from the context set by
// middleware.MemberAuth, validate input, call application services, and
// translate results into the response envelope or a coded error.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-notification-backend/internal/domain"
	"github.com/tbourn/go-notification-backend/internal/http/middleware"
	"github.com/tbourn/go-notification-backend/internal/repo"
	"github.com/tbourn/go-notification-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// NotificationService defines the member-facing notification operations.
type NotificationService interface {
	Recent(ctx context.Context, memberID int64) ([]services.NotificationResponse, error)
	Stats(ctx context.Context, memberID int64) (repo.NotificationStats, error)
	UnreadCount(ctx context.Context, memberID int64) (int64, error)
	Get(ctx context.Context, memberID, id int64) (services.NotificationResponse, error)
	MarkRead(ctx context.Context, memberID int64, ids []int64) (int64, error)
	Delete(ctx context.Context, memberID, id int64) error
}

// SettingService defines delivery-settings operations.
type SettingService interface {
	Get(ctx context.Context, memberID int64) (services.SettingResponse, error)
	Update(ctx context.Context, memberID int64, c domain.Category, enabled bool) error
}

// TemplateService defines operator template CRUD.
type TemplateService interface {
	Create(ctx context.Context, in services.TemplateInput) (services.TemplateResponse, error)
	Get(ctx context.Context, id int64) (services.TemplateResponse, error)
	Update(ctx context.Context, id int64, in services.TemplateInput) (services.TemplateResponse, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]services.TemplateResponse, error)
}

// AdminService defines operator notification operations.
type AdminService interface {
	Search(ctx context.Context, f services.SearchFilter, page, pageSize int) ([]services.NotificationResponse, int64, error)
	Get(ctx context.Context, id int64) (services.NotificationResponse, error)
	Resend(ctx context.Context, id int64) (services.NotificationResponse, error)
}

// IdempotencyStore records admin POST results for replay.
type IdempotencyStore interface {
	Lookup(ctx context.Context, memberID int64, scope, key string) (*domain.Idempotency, error)
	Remember(ctx context.Context, memberID int64, scope, key string, resourceID int64, status int) error
}

// StreamServer runs one live event stream per request and lets operators
// close a member's stream.
type StreamServer interface {
	Serve(ctx context.Context, memberID int64, w http.ResponseWriter)
	Disconnect(memberID int64) bool
}

//
// Handler wiring
//

// Deps lists the services the handlers depend on. Idempotency is optional.
type Deps struct {
	Notifications NotificationService
	Settings      SettingService
	Templates     TemplateService
	Admin         AdminService
	Idempotency   IdempotencyStore
	Stream        StreamServer
}

// Handlers groups all HTTP endpoints.
type Handlers struct {
	notifSvc   NotificationService
	settingSvc SettingService
	tplSvc     TemplateService
	adminSvc   AdminService
	idem       IdempotencyStore
	stream     StreamServer
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	return &Handlers{
		notifSvc:   d.Notifications,
		settingSvc: d.Settings,
		tplSvc:     d.Templates,
		adminSvc:   d.Admin,
		idem:       d.Idempotency,
		stream:     d.Stream,
	}
}

// memberID returns the authenticated member or writes 401 and returns false.
func memberID(c *gin.Context) (int64, bool) {
	id, ok := middleware.MemberID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid "+middleware.HeaderMemberID+" header")
		return 0, false
	}
	return id, true
}
